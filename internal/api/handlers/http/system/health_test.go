package system_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prohori/internal/api/handlers/http/system"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSystemHealth(t *testing.T) {
	t.Parallel()

	up := system.Check{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := system.Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	cases := []struct {
		name   string
		checks []system.Check
		code   int
		status string
	}{
		{"no_checks", nil, http.StatusOK, "ok"},
		{"all_up", []system.Check{up}, http.StatusOK, "ok"},
		{"one_down", []system.Check{up, down}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := system.NewHandler(newTestLogger(), time.Second, tc.checks...)
			rr := httptest.NewRecorder()
			h.SystemHealth(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			if rr.Code != tc.code {
				t.Fatalf("expected %d got %d", tc.code, rr.Code)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Status != tc.status {
				t.Fatalf("status = %q", body.Status)
			}
			if len(tc.checks) == 2 && (body.Checks["postgres"] != "ok" || body.Checks["redis"] != "down") {
				t.Fatalf("checks = %+v", body.Checks)
			}
		})
	}
}
