package public

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prohori/internal/api/respond"
	"prohori/internal/domain"
	"prohori/internal/service"
	"prohori/pkg/e"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Incidents interface {
	SubmitCrime(ctx context.Context, req domain.CreateCrimeRequest) (*domain.Incident, error)
	SubmitSos(ctx context.Context, req domain.CreateSosRequest) (*domain.Incident, error)
	SubmitLostFound(ctx context.Context, req domain.CreateLostFoundRequest) (*domain.Incident, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	GetOfKind(ctx context.Context, kind domain.Kind, id uuid.UUID) (*domain.Incident, error)
}

type Workflow interface {
	SetStatus(ctx context.Context, kind domain.Kind, id uuid.UUID, target domain.Status) (*domain.Incident, error)
}

type Queries interface {
	ListRecent(ctx context.Context, kind domain.Kind, page domain.Page) (domain.ListIncidentsResponse, error)
	Nearby(ctx context.Context, req domain.NearbyRequest) (domain.NearbyResponse, error)
}

type Blobs interface {
	Get(ctx context.Context, ref string) (*domain.Blob, error)
}

type Handler struct {
	logger        *slog.Logger
	Incidents     Incidents
	Workflow      Workflow
	Queries       Queries
	Blobs         Blobs
	maxPhotoBytes int
}

func NewHandler(logger *slog.Logger, incidents Incidents, workflow Workflow, queries Queries, blobs Blobs, maxPhotoBytes int) *Handler {
	return &Handler{
		logger:        logger,
		Incidents:     incidents,
		Workflow:      workflow,
		Queries:       queries,
		Blobs:         blobs,
		maxPhotoBytes: maxPhotoBytes,
	}
}

// --- crimes ---

func (h *Handler) CrimeCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	var req domain.CreateCrimeRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	inc, err := h.Incidents.SubmitCrime(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("crime reported", slog.String("id", inc.ID.String()), slog.String("category", inc.Crime.Category))
	h.writeJSON(w, http.StatusCreated, domain.SubmitResponse{Message: "Crime reported", ID: inc.ID, Incident: inc})
}

func (h *Handler) CrimeList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.KindCrime)
}

func (h *Handler) CrimeNearby(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("CrimeNearby", slog.String("query", r.URL.RawQuery))

	q := r.URL.Query()
	req := domain.NearbyRequest{
		Lat:          domain.Number(q.Get("lat")),
		Lng:          domain.Number(q.Get("lng")),
		RadiusMeters: domain.Number(q.Get("distance")),
	}

	resp, err := h.Queries.Nearby(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CrimeGet(w http.ResponseWriter, r *http.Request) {
	h.getOfKind(w, r, domain.KindCrime)
}

func (h *Handler) CrimeResolve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, domain.KindCrime)
}

// --- sos ---

func (h *Handler) SosCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSosRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	req.IP = clientIP(r)

	inc, err := h.Incidents.SubmitSos(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, domain.SubmitResponse{Message: "SOS alert stored", ID: inc.ID, Incident: inc})
}

func (h *Handler) SosList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.KindSos)
}

func (h *Handler) SosGet(w http.ResponseWriter, r *http.Request) {
	h.getOfKind(w, r, domain.KindSos)
}

func (h *Handler) SosHandle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req domain.HandleRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if req.Handled == nil {
		h.handleError(w, r, e.MissingField("handled"))
		return
	}

	h.setStatus(w, r, domain.KindSos, id, service.HandledStatus(*req.Handled))
}

// --- lost and found ---

// LostFoundCreate accepts a JSON body, or multipart/form-data with an
// optional "photo" file.
func (h *Handler) LostFoundCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLostFoundRequest

	if respond.Multipart(r) {
		photo, photoType, err := respond.ParseMultipart(w, r, "photo", h.maxPhotoBytes)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		req = domain.CreateLostFoundRequest{
			Type:      r.FormValue("type"),
			Item:      r.FormValue("item"),
			Location:  r.FormValue("location"),
			Date:      r.FormValue("date"),
			Reporter:  r.FormValue("reporter"),
			Contact:   r.FormValue("contact"),
			Email:     r.FormValue("email"),
			Photo:     photo,
			PhotoType: photoType,
		}
	} else if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	inc, err := h.Incidents.SubmitLostFound(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, domain.SubmitResponse{Message: "Case reported", ID: inc.ID, Incident: inc})
}

func (h *Handler) LostFoundList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.KindLostFound)
}

func (h *Handler) LostFoundGet(w http.ResponseWriter, r *http.Request) {
	h.getOfKind(w, r, domain.KindLostFound)
}

func (h *Handler) LostFoundResolve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, domain.KindLostFound)
}

// --- any kind ---

func (h *Handler) IncidentGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	inc, err := h.Incidents.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) BlobGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.Blobs.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b.Data); err != nil {
		h.log(r).Warn("blob write failed", slog.String("ref", b.Ref), slog.Any("error", err))
	}
}

// --- shared ---

func (h *Handler) list(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	page := domain.Page{
		Page:  parseInt(r.URL.Query().Get("page"), 1),
		Limit: parseInt(r.URL.Query().Get("limit"), domain.DefaultPageLimit),
	}

	resp, err := h.Queries.ListRecent(r.Context(), kind, page)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOfKind(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	id, err := parseID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	inc, err := h.Incidents.GetOfKind(r.Context(), kind, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	id, err := parseID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req domain.ResolveRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if req.Resolved == nil {
		h.handleError(w, r, e.MissingField("resolved"))
		return
	}

	h.setStatus(w, r, kind, id, service.ResolvedStatus(*req.Resolved))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, kind domain.Kind, id uuid.UUID, target domain.Status) {
	inc, err := h.Workflow.SetStatus(r.Context(), kind, id, target)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, domain.StatusResponse{
		Message:  "marked as " + string(inc.Status),
		Incident: inc,
	})
}

// clientIP prefers the first X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
