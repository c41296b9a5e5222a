package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/internal/metrics"
	"prohori/pkg/e"
)

// Workflow moves records between the two statuses of their kind:
// open/resolved for crime and lostfound, pending/handled for sos. Either
// direction is allowed. Setting the current status again is a no-op.
type Workflow struct {
	logger *slog.Logger
	store  IncidentStore
	events EventPublisher
}

func NewWorkflow(store IncidentStore, events EventPublisher, logger *slog.Logger) *Workflow {
	return &Workflow{logger: logger, store: store, events: events}
}

// SetStatus applies target to the record id, which must be of kind. A
// record of another kind, or a target outside the kind's status set, is an
// invalid transition.
func (w *Workflow) SetStatus(ctx context.Context, kind domain.Kind, id uuid.UUID, target domain.Status) (*domain.Incident, error) {
	const op = "service.Workflow.SetStatus"

	cur, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cur.Kind != kind || !kind.Allows(target) {
		metrics.TransitionsTotal.WithLabelValues(string(cur.Kind), "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", op, &e.TransitionError{ID: id.String(), Kind: string(cur.Kind), Target: string(target)})
	}

	inc, changed, err := w.store.SetStatus(ctx, id, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		return inc, nil
	}

	metrics.TransitionsTotal.WithLabelValues(string(inc.Kind), string(inc.Status)).Inc()
	w.logger.Info("incident status changed",
		slog.String("id", id.String()),
		slog.String("kind", string(inc.Kind)),
		slog.String("status", string(inc.Status)),
	)

	if w.events != nil {
		ev := domain.IncidentEvent{
			Type:     domain.EventStatusChanged,
			ID:       inc.ID,
			Kind:     inc.Kind,
			Status:   inc.Status,
			Location: inc.Location,
			At:       inc.UpdatedAt,
		}
		if err := w.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
			w.logger.Warn("publish status event failed", slog.String("id", id.String()), slog.Any("error", err))
		}
	}
	return inc, nil
}

// ResolvedStatus maps the resolve endpoints' flag onto a status.
func ResolvedStatus(resolved bool) domain.Status {
	if resolved {
		return domain.StatusResolved
	}
	return domain.StatusOpen
}

// HandledStatus maps the SOS handle endpoint's flag onto a status.
func HandledStatus(handled bool) domain.Status {
	if handled {
		return domain.StatusHandled
	}
	return domain.StatusPending
}
