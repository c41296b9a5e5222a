// Package ingest turns raw submissions into store drafts.
//
// Required fields are checked in declaration order of the request structs
// and the first missing one is reported, so a client that fixes errors one at
// a time always converges in the same sequence. Coordinates may arrive as
// JSON numbers or numeric strings and are coerced here.
package ingest

import (
	"fmt"
	"strings"

	"prohori/internal/domain"
	"prohori/internal/geo"
	"prohori/pkg/e"
	"prohori/pkg/validator"
)

type Options struct {
	// RejectZeroCoordinates treats an SOS latitude or longitude of exactly 0
	// as absent. Off by default: 0 is the equator or the prime meridian.
	RejectZeroCoordinates bool
}

type Validator struct {
	opts Options
}

func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

func (v *Validator) Crime(req domain.CreateCrimeRequest) (domain.Draft, error) {
	const op = "ingest.Crime"

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)

	if err := validator.Check(req); err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	const field = "location.coordinates"
	if len(req.Location.Coordinates) != 2 {
		return domain.Draft{}, fmt.Errorf("%s: want [lon, lat]: %w", op, e.InvalidField(field))
	}
	lng, err := coerce(field, req.Location.Coordinates[0])
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}
	lat, err := coerce(field, req.Location.Coordinates[1])
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}
	if !geo.ValidCoordinates(lat, lng) {
		return domain.Draft{}, fmt.Errorf("%s: %w: %w", op, e.InvalidField(field), e.ErrInvalidCoordinates)
	}

	return domain.Draft{
		Kind:     domain.KindCrime,
		Location: domain.NewGeoPoint(lat, lng),
		Place:    strings.TrimSpace(req.Location.Name),
		Reporter: reporterOrAnonymous(req.User),
		Crime: &domain.CrimeDetails{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
		},
	}, nil
}

func (v *Validator) Sos(req domain.CreateSosRequest) (domain.Draft, error) {
	const op = "ingest.Sos"

	if v.opts.RejectZeroCoordinates {
		req.Latitude = zeroAsAbsent(req.Latitude)
		req.Longitude = zeroAsAbsent(req.Longitude)
	}
	if err := validator.Check(req); err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	lat, err := coerce("latitude", req.Latitude)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}
	lng, err := coerce("longitude", req.Longitude)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}
	if lat < -90 || lat > 90 {
		return domain.Draft{}, fmt.Errorf("%s: %w: %w", op, e.InvalidField("latitude"), e.ErrInvalidCoordinates)
	}
	if !geo.ValidCoordinates(lat, lng) {
		return domain.Draft{}, fmt.Errorf("%s: %w: %w", op, e.InvalidField("longitude"), e.ErrInvalidCoordinates)
	}

	return domain.Draft{
		Kind:     domain.KindSos,
		Location: domain.NewGeoPoint(lat, lng),
		Reporter: reporterOrAnonymous(req.User),
		Sos: &domain.SosDetails{
			Latitude:  lat,
			Longitude: lng,
			IP:        strings.TrimSpace(req.IP),
		},
	}, nil
}

// LostFound validates a lost-and-found case. The photo, if any, is stored
// by the caller; photoRef is its blob reference.
func (v *Validator) LostFound(req domain.CreateLostFoundRequest, photoRef string) (domain.Draft, error) {
	const op = "ingest.LostFound"

	req.Type = strings.TrimSpace(req.Type)
	req.Item = strings.TrimSpace(req.Item)
	req.Location = strings.TrimSpace(req.Location)
	req.Date = strings.TrimSpace(req.Date)
	req.Reporter = strings.TrimSpace(req.Reporter)
	req.Contact = strings.TrimSpace(req.Contact)
	req.Email = strings.TrimSpace(req.Email)

	if err := validator.Check(req); err != nil {
		return domain.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.Draft{
		Kind:     domain.KindLostFound,
		Place:    req.Location,
		Reporter: domain.Reporter{Name: req.Reporter, Contact: req.Contact},
		LostFound: &domain.LostFoundDetails{
			Type:  req.Type,
			Item:  req.Item,
			Date:  req.Date,
			Email: req.Email,
			Photo: photoRef,
		},
	}, nil
}

func coerce(field string, n domain.Number) (float64, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, e.InvalidType(field)
	}
	return f, nil
}

func zeroAsAbsent(n domain.Number) domain.Number {
	if f, err := n.Float64(); err == nil && f == 0 {
		return ""
	}
	return n
}

func reporterOrAnonymous(u *domain.Reporter) domain.Reporter {
	if u == nil {
		return domain.AnonymousReporter
	}
	r := domain.Reporter{Name: strings.TrimSpace(u.Name), Contact: strings.TrimSpace(u.Contact)}
	if r.Name == "" {
		r.Name = domain.AnonymousReporter.Name
	}
	return r
}
