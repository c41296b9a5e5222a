package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Number is a coordinate exactly as submitted: a JSON number or a numeric
// string. The empty value means the field was absent or null.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	*n = Number(s)
	return nil
}

func (n Number) Present() bool { return n != "" }

func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
}

type CrimeLocation struct {
	Name        string   `json:"name,omitempty"`
	Coordinates []Number `json:"coordinates" validate:"required"`
}

type CreateCrimeRequest struct {
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description" validate:"required"`
	Category    string         `json:"category" validate:"required"`
	Location    *CrimeLocation `json:"location" validate:"required"`
	User        *Reporter      `json:"user,omitempty"`
}

type CreateSosRequest struct {
	Latitude  Number    `json:"latitude" validate:"required"`
	Longitude Number    `json:"longitude" validate:"required"`
	User      *Reporter `json:"user,omitempty"`
	IP        string    `json:"-"`
}

type CreateLostFoundRequest struct {
	Type     string `json:"type" validate:"required"`
	Item     string `json:"item" validate:"required"`
	Location string `json:"location" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Reporter string `json:"reporter" validate:"required"`
	Contact  string `json:"contact" validate:"required"`
	Email    string `json:"email" validate:"required"`
	// Photo is set by the HTTP layer from a multipart upload; PhotoType is
	// its content type.
	Photo     []byte `json:"-"`
	PhotoType string `json:"-"`
}

// ResolveRequest is the body of the resolve endpoints. A pointer keeps an
// explicit false distinct from an absent field.
type ResolveRequest struct {
	Resolved *bool `json:"resolved"`
}

type HandleRequest struct {
	Handled *bool `json:"handled"`
}

type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize fills defaults and caps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset saturates at math.MaxInt instead of overflowing, so a huge page
// number reads as past the end.
func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

type ListIncidentsResponse struct {
	Incidents []*Incident `json:"incidents"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
	Total     int64       `json:"total"`
}

type SubmitResponse struct {
	Message  string    `json:"message"`
	ID       uuid.UUID `json:"id"`
	Incident *Incident `json:"incident"`
}

type StatusResponse struct {
	Message  string    `json:"message"`
	Incident *Incident `json:"incident"`
}
