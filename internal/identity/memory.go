package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

// MemoryUsers is the user repository used when Postgres is disabled.
type MemoryUsers struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]uuid.UUID
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:    make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *MemoryUsers) Create(_ context.Context, u *domain.User) error {
	email := strings.ToLower(u.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return fmt.Errorf("identity.MemoryUsers.Create: email taken: %w", e.ErrConflict)
	}
	cp := *u
	cp.Email = email
	m.byID[u.ID] = &cp
	m.byEmail[email] = u.ID
	return nil
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("identity.MemoryUsers.GetByEmail: %w", e.ErrNotFound)
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryUsers) Get(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("identity.MemoryUsers.Get: %w", e.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// MemorySessions is the session store used when Redis is disabled.
type MemorySessions struct {
	mu    sync.Mutex
	items map[string]memorySession
	now   func() time.Time
}

type memorySession struct {
	sess    domain.Session
	expires time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{items: make(map[string]memorySession), now: time.Now}
}

func (m *MemorySessions) Save(_ context.Context, s domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.Token] = memorySession{sess: s, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Get(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[token]
	if ok && !m.now().Before(it.expires) {
		delete(m.items, token)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("identity.MemorySessions.Get: %w", e.ErrNotFound)
	}
	s := it.sess
	return &s, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.items, token)
	m.mu.Unlock()
	return nil
}
