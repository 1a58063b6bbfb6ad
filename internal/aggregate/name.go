package aggregate

import (
	"fmt"
	"strings"

	"github.com/pkordes/photo-trips/internal/domain"
)

// UntitledTrip is used when nothing better can be derived.
const UntitledTrip = "Untitled trip"

// DisplayName builds a trip name from the earliest member: its place and its
// capture date, e.g. "Lisbon · Jun 1, 2025". An empty place falls back to the
// member's coordinates as text. DisplayName never fails.
func DisplayName(place string, earliest domain.Photo) string {
	where := strings.TrimSpace(place)
	if where == "" && earliest.Coordinates != nil {
		where = CoordinateText(*earliest.Coordinates)
	}

	var when string
	if earliest.CapturedAt != nil {
		when = earliest.CapturedAt.UTC().Format("Jan 2, 2006")
	}

	switch {
	case where != "" && when != "":
		return where + " · " + when
	case where != "":
		return where
	case when != "":
		return "Trip · " + when
	default:
		return UntitledTrip
	}
}

// CoordinateText renders c with four decimals, about 11 m of precision.
func CoordinateText(c domain.Coordinates) string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}
