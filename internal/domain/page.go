package domain

// Trip list paging bounds used by GET /trips.
const (
	DefaultTripPageLimit = 20
	MaxTripPageLimit     = 100
)

// PaginationParams selects one page of an owner's trip list, newest first.
// Page counts from 1.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams reads the optional ?page and ?limit query values of a
// trip listing. Missing or non-positive values fall back to page 1 and
// DefaultTripPageLimit; limit is clamped to MaxTripPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultTripPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, MaxTripPageLimit)
	}
	return p
}

// Offset is the number of trips that precede the page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
