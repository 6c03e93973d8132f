// Package directorytest is a behavioural test suite every
// directory.Directory implementation must pass.
package directorytest

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/server/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh, empty directory returned by newDirectory per subtest.
func Run(t *testing.T, newDirectory func(t *testing.T) directory.Directory) {
	ctx := context.Background()

	t.Run("register and look up", func(t *testing.T) {
		d := newDirectory(t)
		require.NoError(t, d.AddUser(ctx, "bob", "v-bob"))
		require.NoError(t, d.AddUser(ctx, "alice", "v-alice"))

		err := d.AddUser(ctx, "alice", "other")
		assert.ErrorIs(t, err, common.ErrorAlreadyExists)

		u, err := d.User(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Name)
		assert.Equal(t, "v-alice", u.Verifier)
		assert.Empty(t, u.PublicKey)

		_, err = d.User(ctx, "carol")
		assert.ErrorIs(t, err, common.ErrorNotFound)

		names, err := d.UserNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, names)
	})

	t.Run("empty directory lists are empty", func(t *testing.T) {
		d := newDirectory(t)

		names, err := d.UserNames(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		active, err := d.ActiveUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		history, err := d.LoginHistory(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, history)

		stats, err := d.MessageStats(ctx)
		require.NoError(t, err)
		assert.Empty(t, stats)
	})

	t.Run("login and logout", func(t *testing.T) {
		d := newDirectory(t)
		require.NoError(t, d.AddUser(ctx, "alice", "v"))
		require.NoError(t, d.AddUser(ctx, "bob", "v"))

		require.NoError(t, d.RecordLogin(ctx, "alice", "127.0.0.1", 5000, "key-1"))
		require.NoError(t, d.RecordLogin(ctx, "bob", "127.0.0.2", 5001, ""))
		require.NoError(t, d.RecordLogin(ctx, "alice", "127.0.0.3", 5002, "key-2"))

		key, err := d.PublicKey(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "key-2", key)

		active, err := d.ActiveUsers(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "alice", active[0].Name)
		assert.Equal(t, "127.0.0.3", active[0].IP)
		assert.Equal(t, 5002, active[0].Port)
		assert.Equal(t, "bob", active[1].Name)

		history, err := d.LoginHistory(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "127.0.0.1", history[0].IP)
		assert.Equal(t, "127.0.0.3", history[1].IP)

		all, err := d.LoginHistory(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, d.RecordLogout(ctx, "alice"))
		require.NoError(t, d.RecordLogout(ctx, "alice"), "logout twice is harmless")
		active, err = d.ActiveUsers(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "bob", active[0].Name)

		require.NoError(t, d.ClearActive(ctx))
		active, err = d.ActiveUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		assert.ErrorIs(t, d.RecordLogin(ctx, "ghost", "127.0.0.1", 1, ""), common.ErrorNotFound)
		assert.ErrorIs(t, d.RecordLogout(ctx, "ghost"), common.ErrorNotFound)
		_, err = d.PublicKey(ctx, "ghost")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("contacts", func(t *testing.T) {
		d := newDirectory(t)
		for _, n := range []string{"alice", "bob", "carol"} {
			require.NoError(t, d.AddUser(ctx, n, "v"))
		}

		contacts, err := d.Contacts(ctx, "alice")
		require.NoError(t, err)
		assert.NotNil(t, contacts)
		assert.Empty(t, contacts)

		require.NoError(t, d.AddContact(ctx, "alice", "carol"))
		require.NoError(t, d.AddContact(ctx, "alice", "bob"))
		require.NoError(t, d.AddContact(ctx, "alice", "bob"), "adding twice is idempotent")

		contacts, err = d.Contacts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "carol"}, contacts)

		contacts, err = d.Contacts(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, contacts, "edges are directed")

		assert.ErrorIs(t, d.AddContact(ctx, "alice", "ghost"), common.ErrorNotFound)

		require.NoError(t, d.RemoveContact(ctx, "alice", "bob"))
		require.NoError(t, d.RemoveContact(ctx, "alice", "bob"), "missing edge is a no-op")
		require.NoError(t, d.RemoveContact(ctx, "alice", "ghost"), "missing contact is a no-op")

		contacts, err = d.Contacts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"carol"}, contacts)
	})

	t.Run("message counters", func(t *testing.T) {
		d := newDirectory(t)
		require.NoError(t, d.AddUser(ctx, "alice", "v"))
		require.NoError(t, d.AddUser(ctx, "bob", "v"))

		require.NoError(t, d.RecordMessage(ctx, "alice", "bob"))
		require.NoError(t, d.RecordMessage(ctx, "alice", "bob"))
		require.NoError(t, d.RecordMessage(ctx, "bob", "alice"))
		assert.ErrorIs(t, d.RecordMessage(ctx, "alice", "ghost"), common.ErrorNotFound)

		stats, err := d.MessageStats(ctx)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "alice", stats[0].Name)
		assert.Equal(t, 2, stats[0].Sent)
		assert.Equal(t, 1, stats[0].Accepted)
		assert.Equal(t, "bob", stats[1].Name)
		assert.Equal(t, 1, stats[1].Sent)
		assert.Equal(t, 2, stats[1].Accepted)
	})

	t.Run("remove user", func(t *testing.T) {
		d := newDirectory(t)
		require.NoError(t, d.AddUser(ctx, "alice", "v"))
		require.NoError(t, d.AddUser(ctx, "bob", "v"))
		require.NoError(t, d.AddContact(ctx, "alice", "bob"))
		require.NoError(t, d.AddContact(ctx, "bob", "alice"))
		require.NoError(t, d.RecordLogin(ctx, "bob", "127.0.0.1", 5000, "k"))
		require.NoError(t, d.RecordMessage(ctx, "alice", "bob"))

		require.NoError(t, d.RemoveUser(ctx, "bob"))
		assert.ErrorIs(t, d.RemoveUser(ctx, "bob"), common.ErrorNotFound)

		_, err := d.User(ctx, "bob")
		assert.ErrorIs(t, err, common.ErrorNotFound)

		contacts, err := d.Contacts(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, contacts)

		active, err := d.ActiveUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		history, err := d.LoginHistory(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, history)

		require.NoError(t, d.AddUser(ctx, "bob", "v2"), "name can be registered again")
	})
}
