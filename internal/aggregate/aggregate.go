// Package aggregate derives a trip's summary attributes from its member photos.
// Everything here is pure: no I/O, no clock, no randomness.
package aggregate

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/domain"
)

// Derived holds the fields of a Trip computed from its members.
type Derived struct {
	Location *domain.Location
	StartAt  *time.Time
	EndAt    *time.Time
	CoverID  uuid.UUID

	// Earliest is the member chosen as cover. DisplayName is derived from it.
	Earliest domain.Photo
}

// Aggregate computes the derived fields for members.
// Returns domain.ErrInvalidInput if members is empty.
//
// Members without coordinates stay members but contribute nothing to the
// location. Location is nil, not a zero box, when none has coordinates.
// The cover is the member with the earliest capture time; ties go to the
// member that appears first in members. If no member has a capture time the
// first member is the cover.
func Aggregate(members []domain.Photo) (Derived, error) {
	if len(members) == 0 {
		return Derived{}, fmt.Errorf("aggregate.Aggregate: %w: no members", domain.ErrInvalidInput)
	}

	var d Derived
	d.Location = Locate(members)

	cover := -1
	for i, p := range members {
		if p.CapturedAt == nil {
			continue
		}
		at := *p.CapturedAt
		if d.StartAt == nil || at.Before(*d.StartAt) {
			start := at
			d.StartAt = &start
			cover = i
		}
		if d.EndAt == nil || at.After(*d.EndAt) {
			end := at
			d.EndAt = &end
		}
	}
	if cover < 0 {
		cover = 0
	}
	d.Earliest = members[cover]
	d.CoverID = members[cover].ID

	return d, nil
}

// Locate returns the centroid and bounding box of the geotagged members,
// or nil when none is geotagged.
func Locate(members []domain.Photo) *domain.Location {
	var (
		n              int
		sumLat, sumLng float64
	)
	north, east := math.Inf(-1), math.Inf(-1)
	south, west := math.Inf(1), math.Inf(1)
	for _, p := range members {
		if p.Coordinates == nil {
			continue
		}
		c := *p.Coordinates
		n++
		sumLat += c.Latitude
		sumLng += c.Longitude
		north = math.Max(north, c.Latitude)
		south = math.Min(south, c.Latitude)
		east = math.Max(east, c.Longitude)
		west = math.Min(west, c.Longitude)
	}
	if n == 0 {
		return nil
	}

	loc := &domain.Location{
		CentroidLat: sumLat / float64(n),
		CentroidLng: sumLng / float64(n),
		BoundingBox: domain.BoundingBox{North: north, South: south, East: east, West: west},
	}
	// Floating point summation can land a hair outside the box when all
	// members share a coordinate.
	loc.CentroidLat = clamp(loc.CentroidLat, south, north)
	loc.CentroidLng = clamp(loc.CentroidLng, west, east)
	return loc
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
