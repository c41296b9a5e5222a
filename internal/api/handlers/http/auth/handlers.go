package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"prohori/internal/api/respond"
	"prohori/internal/domain"
	"prohori/internal/middleware"
	"prohori/pkg/e"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Identity interface {
	Register(ctx context.Context, req domain.RegisterRequest) (domain.Profile, error)
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
	Logout(ctx context.Context, token string) error
}

type Handler struct {
	logger        *slog.Logger
	Identity      Identity
	maxPhotoBytes int
}

func NewHandler(logger *slog.Logger, identity Identity, maxPhotoBytes int) *Handler {
	return &Handler{logger: logger, Identity: identity, maxPhotoBytes: maxPhotoBytes}
}

// Register creates an account. Only an admin session may create another
// admin.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest

	if respond.Multipart(r) {
		photo, photoType, err := respond.ParseMultipart(w, r, "photo", h.maxPhotoBytes)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		req = domain.RegisterRequest{
			Name:      r.FormValue("name"),
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			Role:      domain.Role(r.FormValue("role")),
			Photo:     photo,
			PhotoType: photoType,
		}
	} else if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if req.Role == domain.RoleAdmin {
		sess, ok := middleware.SessionFrom(r.Context())
		if !ok || sess.Role != domain.RoleAdmin {
			h.handleError(w, r, fmt.Errorf("admin role requires an admin session: %w", e.ErrForbidden))
			return
		}
	}

	profile, err := h.Identity.Register(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.log(r).Info("user registered", slog.String("user_id", profile.ID.String()))
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    profile,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	resp, err := h.Identity.Login(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Logout ends the caller's session. It runs behind the session middleware.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		h.handleError(w, r, e.ErrUnauthorized)
		return
	}
	if err := h.Identity.Logout(r.Context(), sess.Token); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.log(r), err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	respond.JSON(w, h.logger, code, v)
}
