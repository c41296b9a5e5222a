package components_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"prohori/internal/components"
	"prohori/internal/config"
	"prohori/internal/domain"
)

const apiKey = "test-key"

func memoryConfig() *config.Config {
	return &config.Config{
		Env: "test",
		Http: config.HttpConfig{
			Port:            ":0",
			ShutdownTimeout: time.Second,
			RateRPS:         1000,
			RateBurst:       1000,
			AdminRateRPS:    1000,
			AdminRateBurst:  1000,
			RateTTL:         time.Minute,
		},
		APIKey:   apiKey,
		Dispatch: config.DispatchConfig{Workers: 1, MaxAttempts: 1},
		Index:    config.IndexConfig{CellDeg: 0.05},
		Store:    config.StoreConfig{Shards: 4, QueueSize: 8, RetryAttempts: 2, RetryBackoff: time.Millisecond},
		Query:    config.QueryConfig{Timeout: time.Second, DefaultRadiusMeters: 5000, MaxRadiusMeters: 50000},
		Ingest:   config.IngestConfig{MaxPhotoBytes: 1 << 20},
		Auth:     config.AuthConfig{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		CORS:     config.CORSConfig{Origins: []string{"http://localhost:5173"}},
	}
}

type app struct {
	t       *testing.T
	handler http.Handler
}

func startApp(t *testing.T) *app {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	comps, err := components.InitComponents(ctx, memoryConfig(), logger)
	if err != nil {
		t.Fatalf("InitComponents: %v", err)
	}
	if comps.Dispatcher != nil {
		t.Fatalf("no dispatcher expected without redis")
	}
	go comps.Writer.Run(ctx)
	t.Cleanup(comps.ShutdownAll)

	return &app{t: t, handler: comps.HttpServer.Handler()}
}

func (a *app) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v, body=%s", err, rr.Body.String())
	}
	return out
}

func TestCrimeLifecycle(t *testing.T) {
	a := startApp(t)

	rr := a.do(http.MethodPost, "/api/v1/crimes", `{
		"title": "Phone snatching",
		"description": "Two men on a motorbike",
		"category": "theft",
		"location": {"name": "Farmgate", "coordinates": [90.3890, 23.7570]}
	}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decode[domain.SubmitResponse](t, rr)
	id := created.ID.String()

	rr = a.do(http.MethodGet, "/api/v1/crimes/nearby?lat=23.7575&lng=90.3895&distance=1000", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("nearby: %d %s", rr.Code, rr.Body.String())
	}
	near := decode[domain.NearbyResponse](t, rr)
	if len(near.Incidents) != 1 || near.Incidents[0].ID != created.ID {
		t.Fatalf("nearby = %+v", near)
	}

	rr = a.do(http.MethodGet, "/api/v1/crimes/nearby?lat=22.3569&lng=91.7832", "", nil)
	if got := decode[domain.NearbyResponse](t, rr); len(got.Incidents) != 0 {
		t.Fatalf("far query returned %d incidents", len(got.Incidents))
	}

	rr = a.do(http.MethodPatch, "/api/v1/crimes/"+id+"/resolve", `{"resolved": true}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[domain.StatusResponse](t, rr); got.Incident.Status != domain.StatusResolved {
		t.Fatalf("status = %q", got.Incident.Status)
	}

	// sos routes do not see crimes
	if rr = a.do(http.MethodGet, "/api/v1/sos/"+id, "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("sos get of a crime: %d", rr.Code)
	}
	if rr = a.do(http.MethodGet, "/api/v1/incidents/"+id, "", nil); rr.Code != http.StatusOK {
		t.Fatalf("incident get: %d", rr.Code)
	}

	if rr = a.do(http.MethodDelete, "/api/v1/crimes/"+id, "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: %d", rr.Code)
	}
	if rr = a.do(http.MethodDelete, "/api/v1/crimes/"+id, "", map[string]string{"X-API-Key": apiKey}); rr.Code != http.StatusNoContent {
		t.Fatalf("admin delete: %d %s", rr.Code, rr.Body.String())
	}
	if rr = a.do(http.MethodGet, "/api/v1/crimes/"+id, "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rr.Code)
	}
	rr = a.do(http.MethodGet, "/api/v1/crimes/nearby?lat=23.7575&lng=90.3895", "", nil)
	if got := decode[domain.NearbyResponse](t, rr); len(got.Incidents) != 0 {
		t.Fatalf("deleted crime still nearby")
	}
}

func TestSosAndCounts(t *testing.T) {
	a := startApp(t)

	rr := a.do(http.MethodPost, "/api/v1/sos", `{"latitude": "0", "longitude": 90.4}`, map[string]string{"X-Forwarded-For": "203.0.113.7"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("sos: %d %s", rr.Code, rr.Body.String())
	}
	sos := decode[domain.SubmitResponse](t, rr)
	if sos.Incident.Status != domain.StatusPending {
		t.Fatalf("sos status = %q", sos.Incident.Status)
	}

	rr = a.do(http.MethodPatch, "/api/v1/sos/"+sos.ID.String()+"/handle", `{"handled": true}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("handle: %d %s", rr.Code, rr.Body.String())
	}

	rr = a.do(http.MethodPost, "/api/v1/sos", `{"longitude": 90.4}`, nil)
	if rr.Code != http.StatusBadRequest || !bytes.Contains(rr.Body.Bytes(), []byte(`"latitude"`)) {
		t.Fatalf("missing latitude: %d %s", rr.Code, rr.Body.String())
	}

	rr = a.do(http.MethodPost, "/api/v1/lostfound", `{"type":"lost","item":"wallet","location":"Dhanmondi","date":"2025-10-01","reporter":"Rahim","contact":"017","email":"r@example.com"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("lostfound: %d %s", rr.Code, rr.Body.String())
	}

	if rr = a.do(http.MethodGet, "/api/v1/admin/counts", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous counts: %d", rr.Code)
	}
	rr = a.do(http.MethodGet, "/api/v1/admin/counts", "", map[string]string{"X-API-Key": apiKey})
	if rr.Code != http.StatusOK {
		t.Fatalf("counts: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[domain.IncidentCounts](t, rr); got != (domain.IncidentCounts{Crimes: 0, Sos: 1, LostFound: 1}) {
		t.Fatalf("counts = %+v", got)
	}

	rr = a.do(http.MethodGet, "/api/v1/sos?limit=5", "", nil)
	if got := decode[domain.ListIncidentsResponse](t, rr); got.Total != 1 || got.Limit != 5 {
		t.Fatalf("sos list = %+v", got)
	}

	rr = a.do(http.MethodGet, "/api/v1/lostfound?page=9223372036854775807", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("huge page: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[domain.ListIncidentsResponse](t, rr); len(got.Incidents) != 0 || got.Total != 1 {
		t.Fatalf("huge page list = %+v", got)
	}
}

func TestUserSessionFlow(t *testing.T) {
	a := startApp(t)

	rr := a.do(http.MethodPost, "/api/v1/users/register", `{"name":"Nadia","email":"Nadia@Example.com","password":"12345678"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	if rr = a.do(http.MethodPost, "/api/v1/users/register", `{"name":"Nadia","email":"nadia@example.com","password":"12345678"}`, nil); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rr.Code)
	}

	if rr = a.do(http.MethodPost, "/api/v1/users/login", `{"email":"nadia@example.com","password":"wrong-password"}`, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", rr.Code)
	}
	rr = a.do(http.MethodPost, "/api/v1/users/login", `{"email":"nadia@example.com","password":"12345678"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	login := decode[domain.LoginResponse](t, rr)
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}

	// a plain user is not an admin
	if rr = a.do(http.MethodGet, "/api/v1/admin/counts", "", bearer); rr.Code != http.StatusForbidden {
		t.Fatalf("user counts: %d", rr.Code)
	}

	if rr = a.do(http.MethodPost, "/api/v1/users/logout", "", bearer); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}
	if rr = a.do(http.MethodGet, "/api/v1/admin/counts", "", bearer); rr.Code != http.StatusUnauthorized {
		t.Fatalf("counts after logout: %d", rr.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	a := startApp(t)

	if rr := a.do(http.MethodGet, "/api/v1/health", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	a.do(http.MethodGet, "/api/v1/crimes", "", nil)

	rr := a.do(http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "prohori_http_requests_total") {
		t.Fatalf("metrics output lacks request counter")
	}
}
