package service

import (
	"context"
	"fmt"
	"time"

	"prohori/internal/domain"
	"prohori/internal/geo"
	"prohori/internal/metrics"
	"prohori/pkg/e"
)

type QueryOptions struct {
	Timeout             time.Duration
	DefaultRadiusMeters float64
	MaxRadiusMeters     float64
}

// QueryPlanner answers the read side: recent lists, radius searches and
// admin counts.
type QueryPlanner struct {
	store IncidentStore
	opts  QueryOptions
}

func NewQueryPlanner(store IncidentStore, opts QueryOptions) *QueryPlanner {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.DefaultRadiusMeters <= 0 {
		opts.DefaultRadiusMeters = domain.DefaultNearbyRadiusMeters
	}
	if opts.MaxRadiusMeters <= 0 {
		opts.MaxRadiusMeters = 50000
	}
	return &QueryPlanner{store: store, opts: opts}
}

func (q *QueryPlanner) ListRecent(ctx context.Context, kind domain.Kind, page domain.Page) (domain.ListIncidentsResponse, error) {
	const op = "service.Query.ListRecent"

	page = page.Normalize()
	items, total, err := q.store.ListByKind(ctx, kind, page)
	if err != nil {
		return domain.ListIncidentsResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	if items == nil {
		items = []*domain.Incident{}
	}
	return domain.ListIncidentsResponse{
		Incidents: items,
		Page:      page.Page,
		Limit:     page.Limit,
		Total:     total,
	}, nil
}

// Nearby searches crime reports around a point, nearest first.
func (q *QueryPlanner) Nearby(ctx context.Context, req domain.NearbyRequest) (domain.NearbyResponse, error) {
	const op = "service.Query.Nearby"

	if !req.Lat.Present() {
		return domain.NearbyResponse{}, fmt.Errorf("%s: %w", op, e.MissingField("lat"))
	}
	if !req.Lng.Present() {
		return domain.NearbyResponse{}, fmt.Errorf("%s: %w", op, e.MissingField("lng"))
	}
	lat, err := req.Lat.Float64()
	if err != nil {
		return domain.NearbyResponse{}, fmt.Errorf("%s: %w", op, e.InvalidType("lat"))
	}
	lng, err := req.Lng.Float64()
	if err != nil {
		return domain.NearbyResponse{}, fmt.Errorf("%s: %w", op, e.InvalidType("lng"))
	}
	if !geo.ValidCoordinates(lat, lng) {
		return domain.NearbyResponse{}, fmt.Errorf("%s: %w: %w", op, e.InvalidField("lat"), e.ErrInvalidCoordinates)
	}

	radius := q.opts.DefaultRadiusMeters
	if req.RadiusMeters.Present() {
		radius, err = req.RadiusMeters.Float64()
		if err != nil {
			return domain.NearbyResponse{}, fmt.Errorf("%s: %w", op, e.InvalidType("distance"))
		}
		if !(radius > 0 && radius <= q.opts.MaxRadiusMeters) {
			return domain.NearbyResponse{}, fmt.Errorf("%s: distance must be in (0, %g]: %w", op, q.opts.MaxRadiusMeters, e.InvalidField("distance"))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, q.opts.Timeout)
	defer cancel()

	start := time.Now()
	hits, err := q.store.Nearby(ctx, domain.KindCrime, lat, lng, radius)
	metrics.NearbyDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return domain.NearbyResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.NearbyResults.Observe(float64(len(hits)))

	if hits == nil {
		hits = []domain.NearbyIncident{}
	}
	return domain.NearbyResponse{Incidents: hits}, nil
}

func (q *QueryPlanner) AdminCounts(ctx context.Context) (domain.IncidentCounts, error) {
	const op = "service.Query.AdminCounts"

	if err := ctx.Err(); err != nil {
		return domain.IncidentCounts{}, e.FromContext(ctx, op)
	}
	return domain.IncidentCounts{
		Crimes:    q.store.CountByKind(domain.KindCrime),
		Sos:       q.store.CountByKind(domain.KindSos),
		LostFound: q.store.CountByKind(domain.KindLostFound),
	}, nil
}
