// Package respond writes JSON bodies and maps errors onto HTTP statuses.
// Every error body has the shape {"error":{"kind","message","field"}}.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"prohori/pkg/e"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func JSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("json encode failed", slog.Any("error", err))
	}
}

func Status(kind string) int {
	switch kind {
	case "missing_field", "validation", "invalid_type":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "invalid_transition", "conflict":
		return http.StatusConflict
	case "timeout":
		return http.StatusGatewayTimeout
	case "storage_unavailable":
		return http.StatusServiceUnavailable
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "rate_limited":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error logs err and writes its error body. Internal failures are reported
// without detail.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := e.Kind(err)
	code := Status(kind)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("kind", kind),
		slog.Any("error", err),
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	JSON(w, logger, code, ErrorBody{Error: ErrorDetail{
		Kind:    kind,
		Message: message(kind, err),
		Field:   e.FieldOf(err),
	}})
}

func message(kind string, err error) string {
	var te *e.TransitionError
	if errors.As(err, &te) {
		return te.Error()
	}
	if errors.Is(err, e.ErrInvalidCoordinates) {
		return e.ErrInvalidCoordinates.Error()
	}
	var fe *e.FieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	switch kind {
	case "not_found":
		return e.ErrNotFound.Error()
	case "timeout":
		return "request timed out"
	case "storage_unavailable":
		return e.ErrStorageUnavailable.Error()
	case "unauthorized":
		return e.ErrUnauthorized.Error()
	case "forbidden":
		return e.ErrForbidden.Error()
	case "conflict":
		return e.ErrConflict.Error()
	case "validation":
		return e.ErrInvalidInput.Error()
	case "rate_limited":
		return e.ErrRateLimited.Error()
	default:
		return e.ErrInternal.Error()
	}
}

// DecodeJSON reads exactly one JSON object from the body into v. A value of
// the wrong JSON type is reported as InvalidType on its field.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return e.InvalidType(typeErr.Field)
		}
		return fmt.Errorf("invalid JSON: %v: %w", err, e.ErrInvalidInput)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON: trailing data: %w", e.ErrInvalidInput)
	}
	return nil
}

// Multipart reports whether r carries a multipart/form-data body.
func Multipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// ParseMultipart parses the form of r and returns the optional file sent
// under field. Form values stay available through r.FormValue.
func ParseMultipart(w http.ResponseWriter, r *http.Request, field string, maxFileBytes int) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFileBytes)+MaxBodyBytes)
	if err := r.ParseMultipartForm(MaxBodyBytes); err != nil {
		return nil, "", fmt.Errorf("invalid multipart body: %v: %w", err, e.ErrInvalidInput)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, fh, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %v: %w", field, err, e.InvalidField(field))
	}
	defer f.Close()

	// one byte over the cap lets the blob store reject it by size
	data, err := io.ReadAll(io.LimitReader(f, int64(maxFileBytes)+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %v: %w", field, err, e.InvalidField(field))
	}
	return data, fh.Header.Get("Content-Type"), nil
}
