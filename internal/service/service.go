package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"prohori/internal/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go
type IncidentStore interface {
	Create(ctx context.Context, d domain.Draft) (*domain.Incident, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	ListByKind(ctx context.Context, kind domain.Kind, page domain.Page) ([]*domain.Incident, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.Incident, bool, error)
	CountByKind(kind domain.Kind) int64
	Nearby(ctx context.Context, kind domain.Kind, lat, lng, radiusMeters float64) ([]domain.NearbyIncident, error)
}

type BlobStore interface {
	Put(ctx context.Context, contentType string, data []byte) (string, error)
	Get(ctx context.Context, ref string) (*domain.Blob, error)
	Discard(ctx context.Context, ref string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.IncidentEvent) error
}

type AlertQueue interface {
	Enqueue(ctx context.Context, d domain.SosDispatch) error
	Dequeue(ctx context.Context, timeout time.Duration) (domain.SosDispatch, error)
}

type Service struct {
	Incidents *IncidentService
	Workflow  *Workflow
	Query     *QueryPlanner
	Blobs     BlobStore
}

func NewService(incidents *IncidentService, workflow *Workflow, query *QueryPlanner, blobs BlobStore) *Service {
	return &Service{
		Incidents: incidents,
		Workflow:  workflow,
		Query:     query,
		Blobs:     blobs,
	}
}
