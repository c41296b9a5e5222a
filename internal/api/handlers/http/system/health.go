package system

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"prohori/internal/api/respond"
)

// Check is one dependency pinged by the readiness endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Handler struct {
	logger  *slog.Logger
	checks  []Check
	timeout time.Duration
}

func NewHandler(logger *slog.Logger, timeout time.Duration, checks ...Check) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{logger: logger, checks: checks, timeout: timeout}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", c.Name), slog.Any("error", err))
			resp.Checks[c.Name] = "down"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	respond.JSON(w, h.logger, code, resp)
}
