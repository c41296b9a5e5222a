package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/internal/ingest"
	"prohori/internal/metrics"
	"prohori/pkg/e"
)

// IncidentService runs submissions end to end: validation, photo upload,
// the store write, then best-effort notifications.
type IncidentService struct {
	logger    *slog.Logger
	store     IncidentStore
	validator *ingest.Validator
	blobs     BlobStore
	events    EventPublisher
	alerts    AlertQueue
	now       func() time.Time
}

func NewIncidentService(
	store IncidentStore,
	validator *ingest.Validator,
	blobs BlobStore,
	events EventPublisher,
	alerts AlertQueue,
	logger *slog.Logger,
) *IncidentService {
	return &IncidentService{
		logger:    logger,
		store:     store,
		validator: validator,
		blobs:     blobs,
		events:    events,
		alerts:    alerts,
		now:       time.Now,
	}
}

func (s *IncidentService) SubmitCrime(ctx context.Context, req domain.CreateCrimeRequest) (*domain.Incident, error) {
	const op = "service.Incident.SubmitCrime"

	d, err := s.validator.Crime(req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(domain.KindCrime), e.Kind(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.create(ctx, op, d)
}

func (s *IncidentService) SubmitSos(ctx context.Context, req domain.CreateSosRequest) (*domain.Incident, error) {
	const op = "service.Incident.SubmitSos"

	d, err := s.validator.Sos(req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(domain.KindSos), e.Kind(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inc, err := s.create(ctx, op, d)
	if err != nil {
		return nil, err
	}

	s.logger.Info("SOS alert received",
		slog.String("id", inc.ID.String()),
		slog.Float64("lat", inc.Sos.Latitude),
		slog.Float64("lng", inc.Sos.Longitude),
		slog.String("ip", inc.Sos.IP),
	)
	if s.alerts != nil {
		dispatch := domain.SosDispatch{
			AlertID:    inc.ID,
			Lat:        inc.Sos.Latitude,
			Lng:        inc.Sos.Longitude,
			IP:         inc.Sos.IP,
			Reporter:   inc.Reporter,
			ReceivedAt: inc.CreatedAt,
		}
		if err := s.alerts.Enqueue(context.WithoutCancel(ctx), dispatch); err != nil {
			metrics.DispatchTotal.WithLabelValues("enqueue_failed").Inc()
			s.logger.Error("enqueue SOS dispatch failed", slog.String("id", inc.ID.String()), slog.Any("error", err))
		}
	}
	return inc, nil
}

func (s *IncidentService) SubmitLostFound(ctx context.Context, req domain.CreateLostFoundRequest) (*domain.Incident, error) {
	const op = "service.Incident.SubmitLostFound"

	// validate before storing the photo so a rejected case leaves no blob
	if _, err := s.validator.LostFound(req, ""); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(domain.KindLostFound), e.Kind(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var ref string
	if len(req.Photo) > 0 {
		var err error
		ref, err = s.blobs.Put(ctx, req.PhotoType, req.Photo)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues(string(domain.KindLostFound), e.Kind(err)).Inc()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	d, err := s.validator.LostFound(req, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inc, err := s.create(ctx, op, d)
	if err != nil {
		if ref != "" {
			if derr := s.blobs.Discard(context.WithoutCancel(ctx), ref); derr != nil {
				s.logger.Warn("discard orphan photo failed", slog.String("ref", ref), slog.Any("error", derr))
			}
		}
		return nil, err
	}
	return inc, nil
}

func (s *IncidentService) create(ctx context.Context, op string, d domain.Draft) (*domain.Incident, error) {
	// the record is committed once Create returns; nothing below may fail
	inc, err := s.store.Create(ctx, d)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(d.Kind), e.Kind(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(d.Kind), "accepted").Inc()

	s.publish(ctx, domain.IncidentEvent{
		Type:     domain.EventCreated,
		ID:       inc.ID,
		Kind:     inc.Kind,
		Status:   inc.Status,
		Location: inc.Location,
		At:       inc.CreatedAt,
	})
	return inc, nil
}

func (s *IncidentService) Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "service.Incident.Get"

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return inc, nil
}

// GetOfKind is Get for kind-scoped routes: a record of another kind is
// reported as not found.
func (s *IncidentService) GetOfKind(ctx context.Context, kind domain.Kind, id uuid.UUID) (*domain.Incident, error) {
	const op = "service.Incident.GetOfKind"

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if inc.Kind != kind {
		return nil, fmt.Errorf("%s: id %s is %s: %w", op, id, inc.Kind, e.ErrNotFound)
	}
	return inc, nil
}

// Delete hard-deletes a crime report. Other kinds are never deleted.
func (s *IncidentService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "service.Incident.Delete"

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("incident deleted", slog.String("id", id.String()), slog.String("kind", string(inc.Kind)))
	s.publish(ctx, domain.IncidentEvent{
		Type: domain.EventDeleted,
		ID:   id,
		Kind: inc.Kind,
		At:   s.now().UTC(),
	})
	return nil
}

// publish never fails the caller: the mutation is already durable.
func (s *IncidentService) publish(ctx context.Context, ev domain.IncidentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("publish incident event failed",
			slog.String("type", string(ev.Type)),
			slog.String("id", ev.ID.String()),
			slog.Any("error", err),
		)
	}
}
