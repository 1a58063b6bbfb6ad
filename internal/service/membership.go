package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/aggregate"
	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/repo"
)

// AddPhotosToTrip adds the owner's photos among photoIDs to the trip.
// Ids that are already members are skipped, so re-adding is a no-op; photos
// in another trip are moved. The trip's location is recomputed over all
// members, its date span only ever widens, and a cover is chosen if it had
// none. Returns domain.ErrInvalidInput if no id names an owned photo.
func (s *TripService) AddPhotosToTrip(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error) {
	if len(photoIDs) == 0 {
		return domain.Trip{}, fmt.Errorf("%w: at least one photo is required", domain.ErrInvalidInput)
	}
	ids := dedupe(photoIDs)

	var result domain.Trip
	err := s.tx.WithinTx(ctx, func(photos repo.PhotoRepo, trips repo.TripRepo) error {
		trip, err := loadOwned(ctx, trips, tripID, ownerID)
		if err != nil {
			return err
		}

		found, err := photos.ListByIDs(ctx, ownerID, ids)
		if err != nil {
			return domain.NewStoreError("load photos", err)
		}
		if len(found) == 0 {
			return fmt.Errorf("%w: none of the photos exist or belong to the owner", domain.ErrInvalidInput)
		}

		var added []domain.Photo
		for _, p := range inOrder(ids, found) {
			if !trip.HasMember(p.ID) {
				added = append(added, p)
			}
		}
		if len(added) == 0 {
			result = trip
			return nil
		}

		now := s.clock.Now()
		if err := s.detachFromPrevious(ctx, photos, trips, added, trip.ID, now); err != nil {
			return err
		}
		if _, err := photos.SetTrip(ctx, ownerID, idsOf(added), &trip.ID, now); err != nil {
			return domain.NewStoreError("assign photos", err)
		}

		existing, err := photos.ListByIDs(ctx, ownerID, trip.MemberIDs)
		if err != nil {
			return domain.NewStoreError("load photos", err)
		}
		members := append(inOrder(trip.MemberIDs, existing), added...)
		trip.MemberIDs = append(trip.MemberIDs, idsOf(added)...)
		widen(&trip, members)
		trip.UpdatedAt = now

		result, err = trips.Update(ctx, trip)
		if err != nil {
			return domain.NewStoreError("update trip", err)
		}
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.AddPhotosToTrip: %w", err)
	}
	return result, nil
}

// RemovePhotosFromTrip detaches the listed members from the trip and
// recomputes its derived fields from the remaining ones. Ids that are not
// members are ignored. Removing every member leaves an empty trip.
func (s *TripService) RemovePhotosFromTrip(ctx context.Context, tripID, ownerID uuid.UUID, photoIDs []uuid.UUID) (domain.Trip, error) {
	if len(photoIDs) == 0 {
		return domain.Trip{}, fmt.Errorf("%w: at least one photo is required", domain.ErrInvalidInput)
	}

	var result domain.Trip
	err := s.tx.WithinTx(ctx, func(photos repo.PhotoRepo, trips repo.TripRepo) error {
		trip, err := loadOwned(ctx, trips, tripID, ownerID)
		if err != nil {
			return err
		}

		drop := make(map[uuid.UUID]struct{}, len(photoIDs))
		for _, id := range photoIDs {
			if trip.HasMember(id) {
				drop[id] = struct{}{}
			}
		}
		if len(drop) == 0 {
			result = trip
			return nil
		}

		removed := make([]uuid.UUID, 0, len(drop))
		kept := make([]uuid.UUID, 0, len(trip.MemberIDs))
		for _, id := range trip.MemberIDs {
			if _, ok := drop[id]; ok {
				removed = append(removed, id)
			} else {
				kept = append(kept, id)
			}
		}

		now := s.clock.Now()
		if _, err := photos.ClearTrip(ctx, ownerID, removed, tripID, now); err != nil {
			return domain.NewStoreError("detach photos", err)
		}

		remaining, err := photos.ListByIDs(ctx, ownerID, kept)
		if err != nil {
			return domain.NewStoreError("load photos", err)
		}
		trip.MemberIDs = kept
		derive(&trip, inOrder(kept, remaining))
		trip.UpdatedAt = now

		result, err = trips.Update(ctx, trip)
		if err != nil {
			return domain.NewStoreError("update trip", err)
		}
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.RemovePhotosFromTrip: %w", err)
	}
	return result, nil
}

// widen recomputes the location from members and extends the date span to
// cover them without shrinking it. A cover is picked only if none is set.
func widen(trip *domain.Trip, members []domain.Photo) {
	d, err := aggregate.Aggregate(members)
	if err != nil {
		return
	}
	trip.Location = d.Location
	if d.StartAt != nil && (trip.StartAt == nil || d.StartAt.Before(*trip.StartAt)) {
		trip.StartAt = d.StartAt
	}
	if d.EndAt != nil && (trip.EndAt == nil || d.EndAt.After(*trip.EndAt)) {
		trip.EndAt = d.EndAt
	}
	if trip.CoverID == nil {
		cover := d.CoverID
		trip.CoverID = &cover
	}
}
