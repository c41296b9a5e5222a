package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/internal/geo"
	"prohori/internal/metrics"
	"prohori/internal/workers"
	"prohori/pkg/e"
)

// Persister is the durable side of the store. A nil Persister keeps the
// store memory-only.
//
//go:generate mockgen -source=store.go -destination=mocks/mock.go
type Persister interface {
	Save(ctx context.Context, inc *domain.Incident) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, updatedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	CellDeg       float64
	RetryAttempts int
	RetryBackoff  time.Duration
	Now           func() time.Time
}

type shelf struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*domain.Incident
}

// Store owns every incident record. Stored values are never mutated in
// place: a status change swaps in a new copy, so readers always see a whole
// record.
//
// A record's shelf entry and index entry change together under the shelf's
// write lock, so Get, ListByKind and Nearby never disagree about it.
type Store struct {
	logger  *slog.Logger
	writer  *workers.ShardWriter
	persist Persister

	shelves map[domain.Kind]*shelf
	indexes map[domain.Kind]*geo.Index

	retryAttempts int
	retryBackoff  time.Duration
	now           func() time.Time
}

func NewStore(writer *workers.ShardWriter, persist Persister, logger *slog.Logger, opts Options) *Store {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 2
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		logger:        logger,
		writer:        writer,
		persist:       persist,
		shelves:       make(map[domain.Kind]*shelf, len(domain.Kinds)),
		indexes:       make(map[domain.Kind]*geo.Index),
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		now:           opts.Now,
	}
	for _, k := range domain.Kinds {
		s.shelves[k] = &shelf{items: make(map[uuid.UUID]*domain.Incident)}
		if k.Geotagged() {
			s.indexes[k] = geo.NewIndex(opts.CellDeg)
		}
	}
	return s
}

// Create assigns id, timestamps and the initial status to a validated draft,
// persists it and makes it visible to reads and radius queries. Either all
// of that happens or none of it. The returned copy is the committed record.
func (s *Store) Create(ctx context.Context, d domain.Draft) (*domain.Incident, error) {
	const op = "memory.Store.Create"

	if !d.Kind.Valid() {
		return nil, fmt.Errorf("%s: kind %q: %w", op, d.Kind, e.ErrInvalidInput)
	}
	if d.Kind.Geotagged() {
		if d.Location == nil {
			return nil, fmt.Errorf("%s: %w", op, e.MissingField("location"))
		}
		if !geo.ValidCoordinates(d.Location.Lat(), d.Location.Lng()) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrInvalidCoordinates)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	now := s.now().UTC()
	inc := &domain.Incident{
		ID:        id,
		Kind:      d.Kind,
		Location:  d.Location,
		Place:     d.Place,
		Status:    d.Kind.InitialStatus(),
		Reporter:  d.Reporter,
		CreatedAt: now,
		UpdatedAt: now,
		Crime:     d.Crime,
		Sos:       d.Sos,
		LostFound: d.LostFound,
	}
	if inc.Reporter.Name == "" {
		inc.Reporter = domain.AnonymousReporter
	}
	inc = inc.Clone()

	err = s.writer.Do(ctx, id, func(ctx context.Context) error {
		if s.persist != nil {
			if err := s.withRetry(ctx, op, func(ctx context.Context) error {
				return s.persist.Save(ctx, inc)
			}); err != nil {
				return err
			}
		}

		sh := s.shelves[inc.Kind]
		sh.mu.Lock()
		if idx := s.indexes[inc.Kind]; idx != nil {
			if err := idx.Insert(id, inc.Location.Lat(), inc.Location.Lng()); err != nil {
				sh.mu.Unlock()
				s.rollbackSave(ctx, id)
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		sh.items[id] = inc
		sh.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("incident stored", slog.String("id", id.String()), slog.String("kind", string(inc.Kind)))
	return inc.Clone(), nil
}

func (s *Store) rollbackSave(ctx context.Context, id uuid.UUID) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Delete(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, e.ErrNotFound) {
		s.logger.Error("rollback of persisted incident failed",
			slog.String("id", id.String()),
			slog.Any("error", err),
		)
	}
}

// Get returns a copy of the record with the given id, whatever its kind.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "memory.Store.Get"

	if err := ctx.Err(); err != nil {
		return nil, e.FromContext(ctx, op)
	}
	inc, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%s: id %s: %w", op, id, e.ErrNotFound)
	}
	return inc.Clone(), nil
}

func (s *Store) lookup(id uuid.UUID) (*domain.Incident, bool) {
	for _, k := range domain.Kinds {
		sh := s.shelves[k]
		sh.mu.RLock()
		inc, ok := sh.items[id]
		sh.mu.RUnlock()
		if ok {
			return inc, true
		}
	}
	return nil, false
}

// ListByKind returns one page of a consistent snapshot of the kind, newest
// first, plus the snapshot size.
func (s *Store) ListByKind(ctx context.Context, kind domain.Kind, page domain.Page) ([]*domain.Incident, int64, error) {
	const op = "memory.Store.ListByKind"

	sh, ok := s.shelves[kind]
	if !ok {
		return nil, 0, fmt.Errorf("%s: kind %q: %w", op, kind, e.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, e.FromContext(ctx, op)
	}

	sh.mu.RLock()
	snapshot := make([]*domain.Incident, 0, len(sh.items))
	for _, inc := range sh.items {
		snapshot = append(snapshot, inc)
	}
	sh.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		a, b := snapshot[i], snapshot[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})

	page = page.Normalize()
	total := int64(len(snapshot))
	start := page.Offset()
	if start >= len(snapshot) {
		return []*domain.Incident{}, total, nil
	}
	end := start + page.Limit
	if end > len(snapshot) {
		end = len(snapshot)
	}

	out := make([]*domain.Incident, 0, end-start)
	for _, inc := range snapshot[start:end] {
		out = append(out, inc.Clone())
	}
	return out, total, nil
}

// Delete hard-deletes a record of a deletable kind.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "memory.Store.Delete"

	return s.writer.Do(ctx, id, func(ctx context.Context) error {
		inc, ok := s.lookup(id)
		if !ok {
			return fmt.Errorf("%s: id %s: %w", op, id, e.ErrNotFound)
		}
		if !inc.Kind.Deletable() {
			return fmt.Errorf("%s: %w", op, &e.TransitionError{ID: id.String(), Kind: string(inc.Kind), Target: "deleted"})
		}

		if s.persist != nil {
			err := s.withRetry(ctx, op, func(ctx context.Context) error {
				return s.persist.Delete(ctx, id)
			})
			if err != nil && !errors.Is(err, e.ErrNotFound) {
				return err
			}
		}

		sh := s.shelves[inc.Kind]
		sh.mu.Lock()
		if idx := s.indexes[inc.Kind]; idx != nil {
			idx.Remove(id)
		}
		delete(sh.items, id)
		sh.mu.Unlock()
		return nil
	})
}

// SetStatus stores status on the record and returns the resulting copy.
// changed is false when the record already had that status; nothing is
// written then.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.Incident, bool, error) {
	const op = "memory.Store.SetStatus"

	var (
		result  *domain.Incident
		changed bool
	)
	err := s.writer.Do(ctx, id, func(ctx context.Context) error {
		cur, ok := s.lookup(id)
		if !ok {
			return fmt.Errorf("%s: id %s: %w", op, id, e.ErrNotFound)
		}
		if !cur.Kind.Allows(status) {
			return fmt.Errorf("%s: %w", op, &e.TransitionError{ID: id.String(), Kind: string(cur.Kind), Target: string(status)})
		}
		if cur.Status == status {
			result = cur.Clone()
			return nil
		}

		updatedAt := s.now().UTC()
		if s.persist != nil {
			if err := s.withRetry(ctx, op, func(ctx context.Context) error {
				return s.persist.UpdateStatus(ctx, id, status, updatedAt)
			}); err != nil {
				return err
			}
		}

		next := cur.Clone()
		next.Status = status
		next.UpdatedAt = updatedAt

		sh := s.shelves[cur.Kind]
		sh.mu.Lock()
		sh.items[id] = next
		sh.mu.Unlock()

		result = next.Clone()
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

func (s *Store) CountByKind(kind domain.Kind) int64 {
	sh, ok := s.shelves[kind]
	if !ok {
		return 0
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return int64(len(sh.items))
}

// Nearby runs a radius query over one geotagged kind and resolves the hits,
// nearest first. Hits deleted after the index was read are skipped. A hit
// still being written is resolved once its writer releases the shelf.
func (s *Store) Nearby(ctx context.Context, kind domain.Kind, lat, lng, radiusMeters float64) ([]domain.NearbyIncident, error) {
	const op = "memory.Store.Nearby"

	idx, ok := s.indexes[kind]
	if !ok {
		return nil, fmt.Errorf("%s: kind %q is not geotagged: %w", op, kind, e.ErrInvalidInput)
	}

	hits, err := idx.QueryRadius(ctx, lat, lng, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sh := s.shelves[kind]
	out := make([]domain.NearbyIncident, 0, len(hits))
	sh.mu.RLock()
	for _, h := range hits {
		inc, ok := sh.items[h.ID]
		if !ok {
			continue
		}
		out = append(out, domain.NearbyIncident{Incident: inc.Clone(), DistanceMeters: h.DistanceMeters})
	}
	sh.mu.RUnlock()
	return out, nil
}

// Warm loads already-persisted records without writing them back. Used once
// at startup, before the store serves traffic.
func (s *Store) Warm(ctx context.Context, records []*domain.Incident) error {
	const op = "memory.Store.Warm"

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return e.FromContext(ctx, op)
		}
		sh, ok := s.shelves[rec.Kind]
		if !ok {
			s.logger.Warn("skipping record of unknown kind", slog.String("id", rec.ID.String()), slog.String("kind", string(rec.Kind)))
			continue
		}
		inc := rec.Clone()
		idx := s.indexes[inc.Kind]
		if idx != nil && inc.Location == nil {
			s.logger.Warn("skipping geotagged record without location", slog.String("id", inc.ID.String()))
			continue
		}

		sh.mu.Lock()
		if idx != nil {
			if err := idx.Insert(inc.ID, inc.Location.Lat(), inc.Location.Lng()); err != nil {
				sh.mu.Unlock()
				s.logger.Warn("skipping record with bad coordinates", slog.String("id", inc.ID.String()), slog.Any("error", err))
				continue
			}
		}
		sh.items[inc.ID] = inc
		sh.mu.Unlock()
	}
	return nil
}

// withRetry retries fn only while it fails with ErrStorageUnavailable.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !e.Retryable(err) || attempt == s.retryAttempts {
			return err
		}

		metrics.StoreRetriesTotal.WithLabelValues(op).Inc()
		s.logger.Warn("storage unavailable, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return e.FromContext(ctx, op)
		case <-time.After(time.Duration(attempt) * s.retryBackoff):
		}
	}
	return err
}
