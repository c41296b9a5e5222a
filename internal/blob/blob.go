// Package blob keeps uploaded binary content, such as lost-and-found photos,
// and hands out opaque references to it. Content is never decoded here.
package blob

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

const DefaultMaxBytes = 5 << 20

type Repository interface {
	Save(ctx context.Context, b *domain.Blob) error
	Load(ctx context.Context, ref string) (*domain.Blob, error)
	Delete(ctx context.Context, ref string) error
}

type Store struct {
	repo     Repository
	maxBytes int
	now      func() time.Time
}

func NewStore(repo Repository, maxBytes int) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{repo: repo, maxBytes: maxBytes, now: time.Now}
}

// Put stores data and returns its reference. An empty contentType is
// sniffed from the first bytes.
func (s *Store) Put(ctx context.Context, contentType string, data []byte) (string, error) {
	const op = "blob.Store.Put"

	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", op, e.InvalidField("photo"))
	}
	if len(data) > s.maxBytes {
		return "", fmt.Errorf("%s: %d bytes over limit %d: %w", op, len(data), s.maxBytes, e.InvalidField("photo"))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	b := &domain.Blob{
		Ref:         domain.BlobRefPrefix + uuid.NewString(),
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return b.Ref, nil
}

func (s *Store) Get(ctx context.Context, ref string) (*domain.Blob, error) {
	const op = "blob.Store.Get"

	if !strings.HasPrefix(ref, domain.BlobRefPrefix) {
		return nil, fmt.Errorf("%s: ref %q: %w", op, ref, e.ErrNotFound)
	}
	b, err := s.repo.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Discard removes a blob whose owning record was never created.
func (s *Store) Discard(ctx context.Context, ref string) error {
	const op = "blob.Store.Discard"

	if err := s.repo.Delete(ctx, ref); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
