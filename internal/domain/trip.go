// Package domain contains the core data types for the photo trips service.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox is the smallest lat/lng rectangle containing a set of points.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether c lies inside or on the edge of the box.
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Latitude >= b.South && c.Latitude <= b.North &&
		c.Longitude >= b.West && c.Longitude <= b.East
}

// Location summarises where a trip happened.
type Location struct {
	CentroidLat float64     `json:"centroid_lat"`
	CentroidLng float64     `json:"centroid_lng"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Trip groups photos from one outing.
// A trip is the top-level aggregate; photos point back to it via Photo.TripID.
type Trip struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	MemberIDs   []uuid.UUID `json:"member_ids"`

	// Location is nil when no member has coordinates.
	Location *Location `json:"location,omitempty"`
	StartAt  *time.Time `json:"start_at,omitempty"`
	EndAt    *time.Time `json:"end_at,omitempty"`
	CoverID  *uuid.UUID `json:"cover_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMember reports whether id is in the trip's member set.
func (t Trip) HasMember(id uuid.UUID) bool {
	for _, m := range t.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// TripPatch carries the fields UpdateTrip may change. Nil means "leave as is".
// Membership is deliberately absent: it changes only through the dedicated
// add/remove operations so the Photo.TripID back-reference stays consistent.
type TripPatch struct {
	Name        *string
	Description *string
	StartAt     *time.Time
	EndAt       *time.Time
	CoverID     *uuid.UUID
}

// IsEmpty reports whether the patch changes nothing.
func (p TripPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.StartAt == nil && p.EndAt == nil && p.CoverID == nil
}
