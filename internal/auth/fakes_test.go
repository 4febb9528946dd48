package auth

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emprecords/emprecords/internal/audit"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*Principal
	reads  int
	err    error
}

func newMemStore() *memStore {
	return &memStore{byID: map[int64]*Principal{}}
}

func clonePrincipal(p *Principal) *Principal {
	c := *p
	c.Roles = slices.Clone(p.Roles)
	if p.EmployeeID != nil {
		id := *p.EmployeeID
		c.EmployeeID = &id
	}
	return &c
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.byID {
		if p.Username == username {
			return clonePrincipal(p), nil
		}
	}
	return nil, ErrPrincipalNotFound
}

func (m *memStore) FindByID(_ context.Context, id int64) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return clonePrincipal(p), nil
}

func (m *memStore) Save(_ context.Context, p *Principal) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.byID {
		if existing.Username == p.Username && id != p.ID {
			return nil, ErrUsernameTaken
		}
	}
	for _, r := range p.Roles {
		if !slices.Contains(KnownRoles, r) {
			return nil, ErrUnknownRole
		}
	}
	stored := clonePrincipal(p)
	if stored.ID == 0 {
		m.nextID++
		stored.ID = m.nextID
		stored.CreatedAt = time.Now()
	} else if _, ok := m.byID[stored.ID]; !ok {
		return nil, ErrPrincipalNotFound
	}
	stored.UpdatedAt = time.Now()
	m.byID[stored.ID] = stored
	return clonePrincipal(stored), nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrPrincipalNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) link(username string, employeeID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Username == username {
			p.EmployeeID = &employeeID
		}
	}
}

type memAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memAudit) Record(_ context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type memInvalidator struct {
	usernames []string
}

func (m *memInvalidator) Invalidate(_ context.Context, username string) error {
	m.usernames = append(m.usernames, username)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	svc   *Service
	store *memStore
	codec *JWTCodec
	clock *fakeClock
	audit *memAudit
	cache *memInvalidator
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	codec, clock := newTestCodec(t)
	f := &serviceFixture{
		store: newMemStore(),
		codec: codec,
		clock: clock,
		audit: &memAudit{},
		cache: &memInvalidator{},
	}
	svc, err := NewService(ServiceParams{
		Store:    f.store,
		Hasher:   fastHasher(),
		Codec:    codec,
		TokenTTL: 5 * time.Hour,
		Audit:    f.audit,
		Cache:    f.cache,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *serviceFixture) register(t *testing.T, username string, role Role) *Principal {
	t.Helper()
	p, err := f.svc.Register(context.Background(), role, Credentials{Username: username, Password: "password123"})
	require.NoError(t, err)
	return p
}
