package directory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"github.com/dmitrijs2005/jimrelay/internal/server/models"
)

var _ Directory = (*Memory)(nil)

type memUser struct {
	user     models.User
	contacts map[string]struct{}
	sent     int
	accepted int
}

// Memory is a Directory kept in process memory. It is used by the memory
// database driver and in tests.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	users   map[string]*memUser
	active  map[string]models.ActiveUser
	history []models.LoginHistoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]*memUser),
		active: make(map[string]models.ActiveUser),
		now:    time.Now,
	}
}

func (m *Memory) AddUser(_ context.Context, name, verifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[name]; ok {
		return common.ErrorAlreadyExists
	}
	m.nextID++
	m.users[name] = &memUser{
		user:     models.User{ID: m.nextID, Name: name, LastLogin: m.now(), Verifier: verifier},
		contacts: make(map[string]struct{}),
	}
	return nil
}

func (m *Memory) RemoveUser(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[name]; !ok {
		return common.ErrorNotFound
	}
	delete(m.users, name)
	delete(m.active, name)
	for _, u := range m.users {
		delete(u.contacts, name)
	}
	m.history = slices.DeleteFunc(m.history, func(e models.LoginHistoryEntry) bool { return e.Name == name })
	return nil
}

func (m *Memory) User(_ context.Context, name string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := u.user
	return &cp, nil
}

func (m *Memory) UserNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.users))
	for name := range m.users {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *Memory) PublicKey(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		return "", common.ErrorNotFound
	}
	return u.user.PublicKey, nil
}

func (m *Memory) RecordLogin(_ context.Context, name, ip string, port int, publicKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		return common.ErrorNotFound
	}
	at := m.now()
	u.user.LastLogin = at
	u.user.PublicKey = publicKey
	m.active[name] = models.ActiveUser{Name: name, IP: ip, Port: port, LoginTime: at}
	m.history = append(m.history, models.LoginHistoryEntry{Name: name, Time: at, IP: ip, Port: port})
	return nil
}

func (m *Memory) RecordLogout(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[name]; !ok {
		return common.ErrorNotFound
	}
	delete(m.active, name)
	return nil
}

func (m *Memory) AddContact(_ context.Context, owner, contact string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.users[owner]
	if !ok {
		return common.ErrorNotFound
	}
	if _, ok := m.users[contact]; !ok {
		return common.ErrorNotFound
	}
	o.contacts[contact] = struct{}{}
	return nil
}

func (m *Memory) RemoveContact(_ context.Context, owner, contact string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.users[owner]
	if !ok {
		return common.ErrorNotFound
	}
	delete(o.contacts, contact)
	return nil
}

func (m *Memory) Contacts(_ context.Context, owner string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.users[owner]
	if !ok {
		return nil, common.ErrorNotFound
	}
	names := make([]string, 0, len(o.contacts))
	for name := range o.contacts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *Memory) RecordMessage(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.users[from]
	if !ok {
		return common.ErrorNotFound
	}
	r, ok := m.users[to]
	if !ok {
		return common.ErrorNotFound
	}
	f.sent++
	r.accepted++
	return nil
}

func (m *Memory) ActiveUsers(_ context.Context) ([]models.ActiveUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.ActiveUser, 0, len(m.active))
	for _, a := range m.active {
		result = append(result, a)
	}
	slices.SortFunc(result, func(a, b models.ActiveUser) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

func (m *Memory) LoginHistory(_ context.Context, name string) ([]models.LoginHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.LoginHistoryEntry, 0, len(m.history))
	for _, e := range m.history {
		if name == "" || e.Name == name {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) MessageStats(_ context.Context) ([]models.MessageCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.MessageCounter, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, models.MessageCounter{
			Name: u.user.Name, LastLogin: u.user.LastLogin, Sent: u.sent, Accepted: u.accepted,
		})
	}
	slices.SortFunc(result, func(a, b models.MessageCounter) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

func (m *Memory) ClearActive(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.active)
	return nil
}
