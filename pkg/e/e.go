package e

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	goredis "github.com/redis/go-redis/v9"
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingField       = errors.New("missing field")
	ErrInvalidType        = errors.New("invalid type")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInternal           = errors.New("internal error")
	ErrDeadline           = errors.New("deadline exceeded")
	ErrCanceled           = errors.New("context canceled")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUniqueViolation    = errors.New("unique violation")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAlertQueueEmpty    = errors.New("alert queue is empty")
	ErrRateLimited        = errors.New("rate limited")
)

// FieldError names the request field a validation failure is about.
// Reason is ErrMissingField, ErrInvalidType or ErrInvalidInput.
type FieldError struct {
	Field  string
	Reason error
}

func (f *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Field)
}

func (f *FieldError) Unwrap() error { return f.Reason }

func MissingField(field string) error {
	return &FieldError{Field: field, Reason: ErrMissingField}
}

func InvalidType(field string) error {
	return &FieldError{Field: field, Reason: ErrInvalidType}
}

func InvalidField(field string) error {
	return &FieldError{Field: field, Reason: ErrInvalidInput}
}

// TransitionError is returned when a workflow target does not belong to the
// record's kind.
type TransitionError struct {
	ID     string
	Kind   string
	Target string
}

func (t *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s %s -> %s", t.Kind, t.ID, t.Target)
}

func (t *TransitionError) Unwrap() error { return ErrInvalidTransition }

// FieldOf returns the field name carried by err, if any.
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

// Kind is the machine-readable class of err used in API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidType):
		return "invalid_type"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidCoordinates):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrDeadline), errors.Is(err, ErrCanceled):
		return "timeout"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUniqueViolation):
		return "conflict"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

// Retryable reports whether err may be retried. Input and workflow errors
// never are.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func WrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrUniqueViolation)
		case "23503", "23514":
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		case "57P01", "57P02", "57P03", "53300":
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrStorageUnavailable)
		default:
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrInternal)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, goredis.Nil) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrStorageUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrStorageUnavailable)
	}
	if errors.Is(err, goredis.ErrClosed) {
		return fmt.Errorf("%s: %w", op, ErrStorageUnavailable)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrInternal)
}

// FromContext converts an expired or canceled ctx into the taxonomy.
func FromContext(ctx context.Context, op string) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	default:
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
}
