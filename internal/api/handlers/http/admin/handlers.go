package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"prohori/internal/domain"
	"prohori/internal/middleware"
	"prohori/pkg/e"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type IncidentDeleter interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

type CountsGetter interface {
	AdminCounts(ctx context.Context) (domain.IncidentCounts, error)
}

type Handler struct {
	logger  *slog.Logger
	Deleter IncidentDeleter
	Counts  CountsGetter
}

func NewHandler(logger *slog.Logger, deleter IncidentDeleter, counts CountsGetter) *Handler {
	return &Handler{
		logger:  logger,
		Deleter: deleter,
		Counts:  counts,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	l := h.logger
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		l = l.With(slog.String("request_id", reqID))
	}
	if sess, ok := middleware.SessionFrom(r.Context()); ok {
		l = l.With(slog.String("user_id", sess.UserID.String()))
	}
	return l
}

func (h *Handler) CrimeDelete(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		l.Warn("invalid id", slog.String("id", idStr))
		h.handleError(w, r, e.InvalidType("id"))
		return
	}

	if err := h.Deleter.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("crime deleted by admin", slog.String("id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdminCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Counts.AdminCounts(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, counts)
}
