package session

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/jimrelay/internal/common"
)

// Registry maps usernames to their single authenticated session.
type Registry struct {
	byName map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Session)}
}

// Register binds s under its username. It fails with an error wrapping
// common.ErrAuthRejected if another session holds the name, and with
// common.ErrProtocolViolation if s is not authenticated.
func (r *Registry) Register(s *Session) error {
	if !s.Authenticated() {
		return fmt.Errorf("register %q in state %s: %w", s.Username, s.State, common.ErrProtocolViolation)
	}
	if cur, ok := r.byName[s.Username]; ok && cur != s {
		return fmt.Errorf("register %q: %w: username already in use", s.Username, common.ErrAuthRejected)
	}
	r.byName[s.Username] = s
	return nil
}

func (r *Registry) Lookup(username string) (*Session, bool) {
	s, ok := r.byName[username]
	return s, ok
}

// Remove unbinds s. A name held by a different session is left alone.
func (r *Registry) Remove(s *Session) bool {
	cur, ok := r.byName[s.Username]
	if !ok || cur != s {
		return false
	}
	delete(r.byName, s.Username)
	return true
}

func (r *Registry) Len() int {
	return len(r.byName)
}

// Sessions returns the registered sessions ordered by username.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
