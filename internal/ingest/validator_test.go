package ingest_test

import (
	"encoding/json"
	"errors"
	"testing"

	"prohori/internal/domain"
	"prohori/internal/ingest"
	"prohori/pkg/e"
)

func validCrime() domain.CreateCrimeRequest {
	return domain.CreateCrimeRequest{
		Title:       "Phone snatching",
		Description: "Two men on a motorbike",
		Category:    "theft",
		Location: &domain.CrimeLocation{
			Name:        "Farmgate",
			Coordinates: []domain.Number{"90.4125", "23.8103"},
		},
	}
}

func validLostFound() domain.CreateLostFoundRequest {
	return domain.CreateLostFoundRequest{
		Type:     "lost",
		Item:     "wallet",
		Location: "Dhanmondi 27",
		Date:     "2025-10-01",
		Reporter: "Rahim",
		Contact:  "01700000000",
		Email:    "rahim@example.com",
	}
}

func assertMissing(t *testing.T, err error, field string) {
	t.Helper()
	if !errors.Is(err, e.ErrMissingField) {
		t.Fatalf("expected ErrMissingField(%s), got %v", field, err)
	}
	if got := e.FieldOf(err); got != field {
		t.Fatalf("expected missing field %q, got %q", field, got)
	}
}

func TestCrime_OK(t *testing.T) {
	t.Parallel()

	d, err := ingest.New(ingest.Options{}).Crime(validCrime())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Kind != domain.KindCrime {
		t.Fatalf("kind = %q", d.Kind)
	}
	if d.Location.Lat() != 23.8103 || d.Location.Lng() != 90.4125 || d.Location.Type != "Point" {
		t.Fatalf("location = %+v", d.Location)
	}
	if d.Place != "Farmgate" {
		t.Fatalf("place = %q", d.Place)
	}
	if d.Reporter != domain.AnonymousReporter {
		t.Fatalf("expected anonymous reporter, got %+v", d.Reporter)
	}
	if d.Crime.Title != "Phone snatching" || d.Crime.Category != "theft" {
		t.Fatalf("crime details = %+v", d.Crime)
	}
}

func TestCrime_FirstMissingFieldWins(t *testing.T) {
	t.Parallel()

	v := ingest.New(ingest.Options{})

	cases := []struct {
		name   string
		mutate func(*domain.CreateCrimeRequest)
		field  string
	}{
		{"title_and_category", func(r *domain.CreateCrimeRequest) { r.Title = ""; r.Category = "" }, "title"},
		{"everything", func(r *domain.CreateCrimeRequest) { *r = domain.CreateCrimeRequest{} }, "title"},
		{"description", func(r *domain.CreateCrimeRequest) { r.Description = "   " }, "description"},
		{"category_and_location", func(r *domain.CreateCrimeRequest) { r.Category = ""; r.Location = nil }, "category"},
		{"location", func(r *domain.CreateCrimeRequest) { r.Location = nil }, "location"},
		{"coordinates", func(r *domain.CreateCrimeRequest) { r.Location.Coordinates = nil }, "location.coordinates"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := validCrime()
			tc.mutate(&req)
			_, err := v.Crime(req)
			assertMissing(t, err, tc.field)
		})
	}
}

func TestCrime_CoordinateErrors(t *testing.T) {
	t.Parallel()

	v := ingest.New(ingest.Options{})

	req := validCrime()
	req.Location.Coordinates = []domain.Number{"east", "23.8"}
	if _, err := v.Crime(req); !errors.Is(err, e.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}

	req = validCrime()
	req.Location.Coordinates = []domain.Number{"90", "23", "1"}
	if _, err := v.Crime(req); !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	req = validCrime()
	req.Location.Coordinates = []domain.Number{"23.8", "190"}
	_, err := v.Crime(req)
	if !errors.Is(err, e.ErrInvalidCoordinates) || e.Kind(err) != "validation" {
		t.Fatalf("expected validation/ErrInvalidCoordinates, got %v (%s)", err, e.Kind(err))
	}

	req = validCrime()
	req.Location.Coordinates = []domain.Number{"0", "0"}
	if _, err := v.Crime(req); err != nil {
		t.Fatalf("zero crime coordinates must be accepted: %v", err)
	}
}

func TestSos_DecodesNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var req domain.CreateSosRequest
	if err := json.Unmarshal([]byte(`{"latitude": 23.81, "longitude": "90.41"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	req.IP = "203.0.113.9"

	d, err := ingest.New(ingest.Options{}).Sos(req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Sos.Latitude != 23.81 || d.Sos.Longitude != 90.41 || d.Sos.IP != "203.0.113.9" {
		t.Fatalf("sos details = %+v", d.Sos)
	}
	if d.Location.Lat() != 23.81 || d.Location.Lng() != 90.41 {
		t.Fatalf("location = %+v", d.Location)
	}
}

func TestSos_MissingAndInvalid(t *testing.T) {
	t.Parallel()

	v := ingest.New(ingest.Options{})

	_, err := v.Sos(domain.CreateSosRequest{})
	assertMissing(t, err, "latitude")

	_, err = v.Sos(domain.CreateSosRequest{Latitude: "23.8"})
	assertMissing(t, err, "longitude")

	var nullReq domain.CreateSosRequest
	_ = json.Unmarshal([]byte(`{"latitude": null, "longitude": 90}`), &nullReq)
	_, err = v.Sos(nullReq)
	assertMissing(t, err, "latitude")

	_, err = v.Sos(domain.CreateSosRequest{Latitude: "north", Longitude: "90"})
	if !errors.Is(err, e.ErrInvalidType) || e.FieldOf(err) != "latitude" {
		t.Fatalf("expected ErrInvalidType(latitude), got %v", err)
	}

	_, err = v.Sos(domain.CreateSosRequest{Latitude: "95", Longitude: "90"})
	if !errors.Is(err, e.ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestSos_ZeroLatitudeBothPolicies(t *testing.T) {
	t.Parallel()

	req := domain.CreateSosRequest{Latitude: "0", Longitude: "90.4"}

	d, err := ingest.New(ingest.Options{}).Sos(req)
	if err != nil {
		t.Fatalf("default policy must accept latitude 0: %v", err)
	}
	if d.Sos.Latitude != 0 {
		t.Fatalf("latitude = %v", d.Sos.Latitude)
	}

	legacy := ingest.New(ingest.Options{RejectZeroCoordinates: true})
	_, err = legacy.Sos(req)
	assertMissing(t, err, "latitude")

	// the first absent field is still reported first
	_, err = legacy.Sos(domain.CreateSosRequest{Latitude: "0"})
	assertMissing(t, err, "latitude")

	_, err = legacy.Sos(domain.CreateSosRequest{Latitude: "1", Longitude: "0.0"})
	assertMissing(t, err, "longitude")
}

func TestLostFound_FieldOrder(t *testing.T) {
	t.Parallel()

	v := ingest.New(ingest.Options{})

	_, err := v.LostFound(domain.CreateLostFoundRequest{}, "")
	assertMissing(t, err, "type")

	order := []struct {
		field  string
		mutate func(*domain.CreateLostFoundRequest)
	}{
		{"item", func(r *domain.CreateLostFoundRequest) { r.Item = "" }},
		{"location", func(r *domain.CreateLostFoundRequest) { r.Location = " " }},
		{"date", func(r *domain.CreateLostFoundRequest) { r.Date = "" }},
		{"reporter", func(r *domain.CreateLostFoundRequest) { r.Reporter = "" }},
		{"contact", func(r *domain.CreateLostFoundRequest) { r.Contact = "" }},
		{"email", func(r *domain.CreateLostFoundRequest) { r.Email = "" }},
	}
	for _, tc := range order {
		req := validLostFound()
		tc.mutate(&req)
		_, err := v.LostFound(req, "")
		assertMissing(t, err, tc.field)
	}
}

func TestLostFound_OK(t *testing.T) {
	t.Parallel()

	d, err := ingest.New(ingest.Options{}).LostFound(validLostFound(), "blob:abc")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Kind != domain.KindLostFound || d.Location != nil {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if d.Place != "Dhanmondi 27" {
		t.Fatalf("place = %q", d.Place)
	}
	if d.Reporter != (domain.Reporter{Name: "Rahim", Contact: "01700000000"}) {
		t.Fatalf("reporter = %+v", d.Reporter)
	}
	if d.LostFound.Photo != "blob:abc" || d.LostFound.Email != "rahim@example.com" {
		t.Fatalf("details = %+v", d.LostFound)
	}
}
