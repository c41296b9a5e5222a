package domain

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCrime     Kind = "crime"
	KindSos       Kind = "sos"
	KindLostFound Kind = "lostfound"
)

// Kinds lists every incident kind in reporting order.
var Kinds = []Kind{KindCrime, KindSos, KindLostFound}

func (k Kind) Valid() bool {
	switch k {
	case KindCrime, KindSos, KindLostFound:
		return true
	}
	return false
}

// Deletable reports whether records of this kind may be hard-deleted.
func (k Kind) Deletable() bool { return k == KindCrime }

// Geotagged reports whether records of this kind carry coordinates.
func (k Kind) Geotagged() bool { return k == KindCrime || k == KindSos }

type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusPending  Status = "pending"
	StatusHandled  Status = "handled"
)

// InitialStatus is the "open" member of the kind's status set.
func (k Kind) InitialStatus() Status {
	if k == KindSos {
		return StatusPending
	}
	return StatusOpen
}

// Allows reports whether s belongs to the kind's status set.
func (k Kind) Allows(s Status) bool {
	switch k {
	case KindCrime, KindLostFound:
		return s == StatusOpen || s == StatusResolved
	case KindSos:
		return s == StatusPending || s == StatusHandled
	}
	return false
}

// GeoPoint is a GeoJSON point; Coordinates are [lon, lat].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func NewGeoPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (p *GeoPoint) Lat() float64 { return p.Coordinates[1] }
func (p *GeoPoint) Lng() float64 { return p.Coordinates[0] }

type Reporter struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// AnonymousReporter is stored when a submission names nobody.
var AnonymousReporter = Reporter{Name: "Anonymous", Contact: ""}

type CrimeDetails struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type SosDetails struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IP        string  `json:"ip,omitempty"`
}

type LostFoundDetails struct {
	Type  string `json:"type"`
	Item  string `json:"item"`
	Date  string `json:"date"`
	Email string `json:"email"`
	Photo string `json:"photo,omitempty"`
}

// Incident is one stored record. Values handed out by the store are copies;
// mutate only through the store.
type Incident struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"kind"`
	Location  *GeoPoint         `json:"location,omitempty"`
	Place     string            `json:"place,omitempty"`
	Status    Status            `json:"status"`
	Reporter  Reporter          `json:"reporter"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Crime     *CrimeDetails     `json:"crime,omitempty"`
	Sos       *SosDetails       `json:"sos,omitempty"`
	LostFound *LostFoundDetails `json:"lostfound,omitempty"`
}

// Clone returns a deep copy of inc.
func (inc *Incident) Clone() *Incident {
	if inc == nil {
		return nil
	}
	c := *inc
	if inc.Location != nil {
		loc := *inc.Location
		c.Location = &loc
	}
	if inc.Crime != nil {
		v := *inc.Crime
		c.Crime = &v
	}
	if inc.Sos != nil {
		v := *inc.Sos
		c.Sos = &v
	}
	if inc.LostFound != nil {
		v := *inc.LostFound
		c.LostFound = &v
	}
	return &c
}

// Draft is a validated submission that has not been assigned an id yet.
type Draft struct {
	Kind      Kind
	Location  *GeoPoint
	Place     string
	Reporter  Reporter
	Crime     *CrimeDetails
	Sos       *SosDetails
	LostFound *LostFoundDetails
}
