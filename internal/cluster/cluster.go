// Package cluster partitions a time-ordered sequence of geotagged records into
// contiguous groups ("trips") using distance and time-gap thresholds.
//
// The engine chains each record against the immediately preceding one, not
// against the group's centroid, so a group may drift across a long multi-stop
// outing as long as every consecutive hop stays within the thresholds.
package cluster

import (
	"time"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/geo"
)

// Record is anything with a position and a capture time.
// domain.Photo satisfies it.
type Record interface {
	Coords() domain.Coordinates
	Captured() time.Time
}

// Thresholds bound when two consecutive records belong to the same group.
type Thresholds struct {
	MaxDistanceKm   float64
	MaxTimeGapHours float64
	MinSize         int
}

// FromOptions converts the service-level options into engine thresholds.
func FromOptions(o domain.ClusterOptions) Thresholds {
	return Thresholds{
		MaxDistanceKm:   o.MaxDistanceKm,
		MaxTimeGapHours: o.MaxTimeGapHours,
		MinSize:         o.MinSize,
	}
}

// Linked reports whether next may follow prev in the same group.
func (t Thresholds) Linked(prev, next Record) bool {
	gap := next.Captured().Sub(prev.Captured()).Hours()
	if gap > t.MaxTimeGapHours {
		return false
	}
	return geo.DistanceKm(prev.Coords(), next.Coords()) <= t.MaxDistanceKm
}

// Segment splits records into maximal runs of linked neighbours, ignoring
// MinSize. Concatenating the result reconstructs records exactly.
//
// records must be sorted ascending by capture time and every record must
// carry coordinates and a timestamp; Segment does not check either.
func Segment[R Record](records []R, t Thresholds) [][]R {
	if len(records) == 0 {
		return nil
	}

	var runs [][]R
	start := 0
	for i := 1; i < len(records); i++ {
		if t.Linked(records[i-1], records[i]) {
			continue
		}
		runs = append(runs, records[start:i:i])
		start = i
	}
	runs = append(runs, records[start:len(records):len(records)])
	return runs
}

// Cluster returns the runs produced by Segment that have at least MinSize
// members, in input order. Smaller runs are discarded entirely.
// The result is deterministic for a given input and thresholds.
func Cluster[R Record](records []R, t Thresholds) [][]R {
	var groups [][]R
	for _, run := range Segment(records, t) {
		if len(run) >= t.MinSize {
			groups = append(groups, run)
		}
	}
	return groups
}
