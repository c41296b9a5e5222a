package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/internal/service"
	mock_service "prohori/internal/service/mocks"
	"prohori/pkg/e"
)

func TestQueryPlanner_ListRecent_NormalizesPage(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock_service.NewMockIncidentStore(ctrl)
	q := service.NewQueryPlanner(store, service.QueryOptions{})

	store.EXPECT().
		ListByKind(gomock.Any(), domain.KindSos, domain.Page{Page: 1, Limit: domain.MaxPageLimit}).
		Return(nil, int64(0), nil)

	got, err := q.ListRecent(context.Background(), domain.KindSos, domain.Page{Page: -3, Limit: 1000})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Incidents == nil || len(got.Incidents) != 0 {
		t.Fatalf("expected an empty, non-nil list")
	}
	if got.Page != 1 || got.Limit != domain.MaxPageLimit {
		t.Fatalf("page = %d limit = %d", got.Page, got.Limit)
	}
}

func TestQueryPlanner_Nearby_DefaultRadius(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock_service.NewMockIncidentStore(ctrl)
	q := service.NewQueryPlanner(store, service.QueryOptions{})

	id := uuid.New()
	hit := domain.NearbyIncident{Incident: stored(id, domain.KindCrime), DistanceMeters: 12}

	store.EXPECT().
		Nearby(gomock.Any(), domain.KindCrime, 23.81, 90.41, float64(domain.DefaultNearbyRadiusMeters)).
		DoAndReturn(func(ctx context.Context, _ domain.Kind, _, _, _ float64) ([]domain.NearbyIncident, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("nearby must run under a deadline")
			}
			return []domain.NearbyIncident{hit}, nil
		})

	got, err := q.Nearby(context.Background(), domain.NearbyRequest{Lat: "23.81", Lng: "90.41"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Incidents) != 1 || got.Incidents[0].ID != id {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestQueryPlanner_Nearby_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock_service.NewMockIncidentStore(ctrl)
	q := service.NewQueryPlanner(store, service.QueryOptions{})

	store.EXPECT().Nearby(gomock.Any(), domain.KindCrime, 0.0, 0.0, 250.0).Return(nil, nil)

	got, err := q.Nearby(context.Background(), domain.NearbyRequest{Lat: "0", Lng: "0", RadiusMeters: "250"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Incidents == nil {
		t.Fatalf("expected empty slice")
	}
}

func TestQueryPlanner_Nearby_InvalidInput(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock_service.NewMockIncidentStore(ctrl)
	q := service.NewQueryPlanner(store, service.QueryOptions{MaxRadiusMeters: 1000})

	store.EXPECT().Nearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	cases := []struct {
		name  string
		req   domain.NearbyRequest
		want  error
		field string
	}{
		{"no_lat", domain.NearbyRequest{Lng: "1"}, e.ErrMissingField, "lat"},
		{"no_lng", domain.NearbyRequest{Lat: "1"}, e.ErrMissingField, "lng"},
		{"lat_not_number", domain.NearbyRequest{Lat: "x", Lng: "1"}, e.ErrInvalidType, "lat"},
		{"lng_not_number", domain.NearbyRequest{Lat: "1", Lng: "y"}, e.ErrInvalidType, "lng"},
		{"out_of_range", domain.NearbyRequest{Lat: "91", Lng: "1"}, e.ErrInvalidCoordinates, "lat"},
		{"zero_radius", domain.NearbyRequest{Lat: "1", Lng: "1", RadiusMeters: "0"}, e.ErrInvalidInput, "distance"},
		{"radius_too_big", domain.NearbyRequest{Lat: "1", Lng: "1", RadiusMeters: "1001"}, e.ErrInvalidInput, "distance"},
		{"radius_not_number", domain.NearbyRequest{Lat: "1", Lng: "1", RadiusMeters: "far"}, e.ErrInvalidType, "distance"},
	}
	for _, tc := range cases {
		_, err := q.Nearby(context.Background(), tc.req)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if got := e.FieldOf(err); got != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.name, got, tc.field)
		}
	}
}

func TestQueryPlanner_Nearby_Timeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock_service.NewMockIncidentStore(ctrl)
	q := service.NewQueryPlanner(store, service.QueryOptions{Timeout: 10 * time.Millisecond})

	store.EXPECT().
		Nearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.Kind, _, _, _ float64) ([]domain.NearbyIncident, error) {
			<-ctx.Done()
			return nil, e.FromContext(ctx, "test")
		})

	_, err := q.Nearby(context.Background(), domain.NearbyRequest{Lat: "1", Lng: "1"})
	if e.Kind(err) != "timeout" {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestQueryPlanner_AdminCounts(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mock_service.NewMockIncidentStore(ctrl)
	q := service.NewQueryPlanner(store, service.QueryOptions{})

	store.EXPECT().CountByKind(domain.KindCrime).Return(int64(3))
	store.EXPECT().CountByKind(domain.KindSos).Return(int64(2))
	store.EXPECT().CountByKind(domain.KindLostFound).Return(int64(1))

	got, err := q.AdminCounts(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != (domain.IncidentCounts{Crimes: 3, Sos: 2, LostFound: 1}) {
		t.Fatalf("counts = %+v", got)
	}
}
