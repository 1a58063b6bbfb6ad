package cluster_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/photo-trips/internal/cluster"
	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/geo"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func photoAt(lat, lng float64, at time.Time) domain.Photo {
	return domain.Photo{
		ID:          uuid.New(),
		Coordinates: &domain.Coordinates{Latitude: lat, Longitude: lng},
		CapturedAt:  &at,
	}
}

func defaults() cluster.Thresholds {
	return cluster.FromOptions(domain.DefaultClusterOptions())
}

func ids(ps []domain.Photo) []uuid.UUID {
	out := make([]uuid.UUID, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestCluster_Empty(t *testing.T) {
	assert.Empty(t, cluster.Cluster([]domain.Photo{}, defaults()))
	assert.Empty(t, cluster.Segment([]domain.Photo(nil), defaults()))
}

func TestCluster_ThreeNearbyPhotosHourApart(t *testing.T) {
	photos := []domain.Photo{
		photoAt(10, 20, t0),
		photoAt(10.1, 20.1, t0.Add(time.Hour)),
		photoAt(10.2, 20.2, t0.Add(2*time.Hour)),
	}

	groups := cluster.Cluster(photos, defaults())

	require.Len(t, groups, 1)
	assert.Equal(t, ids(photos), ids(groups[0]))
}

func TestCluster_TimeGapSplitsBelowMinSize(t *testing.T) {
	photos := []domain.Photo{
		photoAt(10, 20, t0),
		photoAt(10.1, 20.1, t0.Add(30*time.Hour)),
		photoAt(10.2, 20.2, t0.Add(31*time.Hour)),
	}

	groups := cluster.Cluster(photos, defaults())

	assert.Empty(t, groups)
	// Both runs still exist before the size filter.
	assert.Len(t, cluster.Segment(photos, defaults()), 2)
}

func TestCluster_DistanceSplits(t *testing.T) {
	var photos []domain.Photo
	for i := 0; i < 3; i++ {
		photos = append(photos, photoAt(48.85, 2.35, t0.Add(time.Duration(i)*time.Minute)))
	}
	// Same afternoon, but London.
	for i := 0; i < 3; i++ {
		photos = append(photos, photoAt(51.50, -0.12, t0.Add(time.Duration(i+10)*time.Minute)))
	}

	groups := cluster.Cluster(photos, defaults())

	require.Len(t, groups, 2)
	assert.Equal(t, ids(photos[:3]), ids(groups[0]))
	assert.Equal(t, ids(photos[3:]), ids(groups[1]))
}

func TestCluster_SingleRecord(t *testing.T) {
	photos := []domain.Photo{photoAt(1, 1, t0)}

	assert.Empty(t, cluster.Cluster(photos, defaults()))

	th := defaults()
	th.MinSize = 1
	assert.Len(t, cluster.Cluster(photos, th), 1)
}

func TestCluster_ExactThresholdsAreInclusive(t *testing.T) {
	a := photoAt(0, 0, t0)
	b := photoAt(0, 0, t0.Add(24*time.Hour))
	th := defaults()
	th.MinSize = 2

	groups := cluster.Cluster([]domain.Photo{a, b}, th)

	require.Len(t, groups, 1)

	th.MaxDistanceKm = geo.DistanceKm(a.Coords(), domain.Coordinates{Latitude: 0.1, Longitude: 0})
	c := photoAt(0.1, 0, t0.Add(25*time.Hour))
	groups = cluster.Cluster([]domain.Photo{a, b, c}, th)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 3)
}

// A road trip of short hops drifts far from where it started but stays one
// group because each hop is compared with the previous photo only.
func TestCluster_ChainsAgainstPreviousRecord(t *testing.T) {
	var photos []domain.Photo
	for i := 0; i < 10; i++ {
		// ~33 km east per hop along the equator.
		photos = append(photos, photoAt(0, float64(i)*0.3, t0.Add(time.Duration(i)*2*time.Hour)))
	}
	first, last := photos[0].Coords(), photos[len(photos)-1].Coords()
	require.Greater(t, geo.DistanceKm(first, last), 250.0)

	groups := cluster.Cluster(photos, defaults())

	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 10)
}

func randomWalk(r *rand.Rand, n int) []domain.Photo {
	lat, lng := 40.0, -3.0
	at := t0
	photos := make([]domain.Photo, 0, n)
	for i := 0; i < n; i++ {
		// Mostly small steps, with the occasional jump in space or time.
		step := 0.05
		if r.Intn(8) == 0 {
			step = 2
		}
		lat += (r.Float64()*2 - 1) * step
		lng += (r.Float64()*2 - 1) * step
		gap := time.Duration(r.Intn(180)) * time.Minute
		if r.Intn(10) == 0 {
			gap = time.Duration(24+r.Intn(72)) * time.Hour
		}
		at = at.Add(gap)
		photos = append(photos, photoAt(lat, lng, at))
	}
	return photos
}

func TestCluster_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	th := defaults()

	for round := 0; round < 50; round++ {
		photos := randomWalk(r, 1+r.Intn(60))

		runs := cluster.Segment(photos, th)
		groups := cluster.Cluster(photos, th)

		// Contiguity: the runs, in order, reconstruct the input.
		var rebuilt []uuid.UUID
		for _, run := range runs {
			rebuilt = append(rebuilt, ids(run)...)
		}
		require.Equal(t, ids(photos), rebuilt)

		for _, g := range groups {
			// Minimum size.
			require.GreaterOrEqual(t, len(g), th.MinSize)
			// Threshold respect between time-adjacent members.
			for i := 1; i < len(g); i++ {
				require.LessOrEqual(t, geo.DistanceKm(g[i-1].Coords(), g[i].Coords()), th.MaxDistanceKm)
				require.LessOrEqual(t, g[i].Captured().Sub(g[i-1].Captured()).Hours(), th.MaxTimeGapHours)
			}
		}

		// Determinism.
		again := cluster.Cluster(photos, th)
		require.Equal(t, len(groups), len(again))
		for i := range groups {
			require.Equal(t, ids(groups[i]), ids(again[i]))
		}
	}
}

func TestSegment_DoesNotAliasAcrossRuns(t *testing.T) {
	photos := []domain.Photo{
		photoAt(0, 0, t0),
		photoAt(0, 0, t0.Add(48*time.Hour)),
	}

	runs := cluster.Segment(photos, defaults())
	require.Len(t, runs, 2)

	runs[0] = append(runs[0], photoAt(5, 5, t0))

	assert.Equal(t, photos[1].ID, runs[1][0].ID, "appending to one run must not clobber the next")
}
