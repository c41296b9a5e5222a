package blob

import (
	"context"
	"fmt"
	"sync"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

// MemoryRepo is used when Postgres is disabled.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Blob
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]domain.Blob)}
}

func (r *MemoryRepo) Save(_ context.Context, b *domain.Blob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[b.Ref]; ok {
		return fmt.Errorf("blob.MemoryRepo.Save: %w", e.ErrUniqueViolation)
	}
	r.items[b.Ref] = *b
	return nil
}

func (r *MemoryRepo) Load(_ context.Context, ref string) (*domain.Blob, error) {
	r.mu.RLock()
	b, ok := r.items[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob.MemoryRepo.Load: %w", e.ErrNotFound)
	}
	return &b, nil
}

func (r *MemoryRepo) Delete(_ context.Context, ref string) error {
	r.mu.Lock()
	delete(r.items, ref)
	r.mu.Unlock()
	return nil
}
