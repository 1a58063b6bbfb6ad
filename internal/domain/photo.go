package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Photo is the subset of a library photo the trip engine works with.
// Binary storage and EXIF extraction live elsewhere; by the time a Photo
// reaches this service its coordinates and capture time are already known
// (or known to be absent).
type Photo struct {
	ID       uuid.UUID `json:"id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Filename string    `json:"filename,omitempty"`

	// Coordinates is nil when the photo carries no geotag.
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	// CapturedAt is nil when the capture time is unknown. Such photos are
	// never clustering candidates.
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	// TripID is the back-reference to the owning trip; nil means unassigned.
	TripID *uuid.UUID `json:"trip_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCandidate reports whether p can be fed to the clustering engine:
// it has coordinates, a capture time, and no trip.
func (p Photo) IsCandidate() bool {
	return p.Coordinates != nil && p.CapturedAt != nil && p.TripID == nil
}

// Coords returns the photo's coordinates, or the zero value when absent.
// Callers must filter on Coordinates != nil first.
func (p Photo) Coords() Coordinates {
	if p.Coordinates == nil {
		return Coordinates{}
	}
	return *p.Coordinates
}

// Captured returns the capture time, or the zero time when absent.
func (p Photo) Captured() time.Time {
	if p.CapturedAt == nil {
		return time.Time{}
	}
	return *p.CapturedAt
}
