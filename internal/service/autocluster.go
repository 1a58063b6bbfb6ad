package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/cluster"
	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/metrics"
	"github.com/pkordes/photo-trips/internal/repo"
	"github.com/pkordes/photo-trips/internal/validation"
)

// GroupFailure records a clustered group whose trip could not be created.
type GroupFailure struct {
	// Index is the group's position in capture order, starting at 0.
	Index    int         `json:"index"`
	PhotoIDs []uuid.UUID `json:"photo_ids"`
	Err      error       `json:"-"`
}

// AutoClusterResult reports what one AutoCluster run did. A failed group
// does not abort the run: Created and Failures together cover every group.
type AutoClusterResult struct {
	Candidates int            `json:"candidates"`
	Groups     int            `json:"groups"`
	Created    []domain.Trip  `json:"created"`
	Failures   []GroupFailure `json:"failures"`
}

// Summary renders e.g. "created 2 of 3 candidate trips".
func (r AutoClusterResult) Summary() string {
	return fmt.Sprintf("created %d of %d candidate trips", len(r.Created), r.Groups)
}

// AutoCluster groups the owner's unassigned, geotagged, timestamped photos
// into trips. Each group becomes one trip named after its earliest photo.
//
// Groups are created independently: a store failure or a lost race
// (domain.ErrConflict) on one group is recorded in the result and the run
// moves on. The returned error is non-nil only when the run could not start.
func (s *TripService) AutoCluster(ctx context.Context, ownerID uuid.UUID, opts domain.ClusterOptions) (AutoClusterResult, error) {
	if ownerID == uuid.Nil {
		return AutoClusterResult{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if err := validation.Struct(opts); err != nil {
		return AutoClusterResult{}, err
	}

	started := time.Now()
	listed, err := s.photos.ListCandidates(ctx, ownerID)
	if err != nil {
		return AutoClusterResult{}, fmt.Errorf("service.TripService.AutoCluster: %w", domain.NewStoreError("load candidates", err))
	}

	candidates := make([]domain.Photo, 0, len(listed))
	for _, p := range listed {
		if p.IsCandidate() {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CapturedAt.Before(*candidates[j].CapturedAt)
	})

	groups := cluster.Cluster(candidates, cluster.FromOptions(opts))
	result := AutoClusterResult{
		Candidates: len(candidates),
		Groups:     len(groups),
		Created:    make([]domain.Trip, 0, len(groups)),
		Failures:   []GroupFailure{},
	}

	for i, group := range groups {
		trip, err := s.create(ctx, draft{owner: ownerID, members: group, claim: true})
		if err != nil {
			s.log.WarnContext(ctx, "auto-cluster group failed",
				"owner_id", ownerID,
				"group", i,
				"photos", len(group),
				"error", err,
			)
			result.Failures = append(result.Failures, GroupFailure{Index: i, PhotoIDs: idsOf(group), Err: err})
			continue
		}
		result.Created = append(result.Created, trip)
	}

	metrics.RecordAutoCluster(result.Candidates, len(result.Created), len(result.Failures), time.Since(started))
	s.log.InfoContext(ctx, "auto-cluster finished",
		"owner_id", ownerID,
		"candidates", result.Candidates,
		"summary", result.Summary(),
	)
	return result, nil
}

// ReconcileOrphans repairs drift between the owner's trips and the photos'
// back-references, as left behind by a write sequence that failed part way
// without a transaction. For each trip it:
//   - drops members whose photo is gone or points at a different trip,
//   - re-points members whose photo has no trip,
//   - adds photos that point at the trip but are missing from its members.
//
// Derived fields of every repaired trip are recomputed. It returns the
// number of trips changed.
func (s *TripService) ReconcileOrphans(ctx context.Context, ownerID uuid.UUID) (int, error) {
	if ownerID == uuid.Nil {
		return 0, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}

	trips, err := s.trips.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("service.TripService.ReconcileOrphans: %w", domain.NewStoreError("list trips", err))
	}

	repaired := 0
	for _, trip := range trips {
		changed, err := s.reconcile(ctx, trip)
		if err != nil {
			return repaired, fmt.Errorf("service.TripService.ReconcileOrphans: trip %s: %w", trip.ID, err)
		}
		if changed {
			repaired++
		}
	}
	if repaired > 0 {
		s.log.InfoContext(ctx, "reconciled trips", "owner_id", ownerID, "repaired", repaired)
	}
	return repaired, nil
}

func (s *TripService) reconcile(ctx context.Context, trip domain.Trip) (bool, error) {
	changed := false
	err := s.tx.WithinTx(ctx, func(photos repo.PhotoRepo, trips repo.TripRepo) error {
		listed, err := photos.ListByIDs(ctx, trip.OwnerID, trip.MemberIDs)
		if err != nil {
			return domain.NewStoreError("load photos", err)
		}
		pointing, err := photos.ListByTrip(ctx, trip.ID)
		if err != nil {
			return domain.NewStoreError("list trip photos", err)
		}

		var (
			keep     []uuid.UUID
			members  []domain.Photo
			reattach []uuid.UUID
			dirty    bool
		)
		kept := make(map[uuid.UUID]struct{}, len(trip.MemberIDs))
		for _, p := range inOrder(trip.MemberIDs, listed) {
			switch {
			case p.TripID == nil:
				reattach = append(reattach, p.ID)
			case *p.TripID != trip.ID:
				continue
			}
			keep = append(keep, p.ID)
			members = append(members, p)
			kept[p.ID] = struct{}{}
		}
		if len(keep) != len(trip.MemberIDs) {
			dirty = true
		}
		for _, p := range pointing {
			if _, ok := kept[p.ID]; ok || p.OwnerID != trip.OwnerID {
				continue
			}
			keep = append(keep, p.ID)
			members = append(members, p)
			dirty = true
		}
		if !dirty && len(reattach) == 0 {
			return nil
		}

		now := s.clock.Now()
		if _, err := photos.SetTrip(ctx, trip.OwnerID, reattach, &trip.ID, now); err != nil {
			return domain.NewStoreError("reattach photos", err)
		}
		if keep == nil {
			keep = []uuid.UUID{}
		}
		trip.MemberIDs = keep
		derive(&trip, members)
		trip.UpdatedAt = now
		if _, err := trips.Update(ctx, trip); err != nil {
			return domain.NewStoreError("update trip", err)
		}
		changed = true
		return nil
	})
	return changed, err
}
