// Package service contains the business logic for the photo trips API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/aggregate"
	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/repo"
)

// Clock supplies the current time. Tests pass a fixed clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports wall-clock time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// PlaceNamer resolves coordinates to a human-readable place name.
// Lookups are best effort: on error the trip name falls back to coordinates.
type PlaceNamer interface {
	PlaceName(ctx context.Context, c domain.Coordinates) (string, error)
}

// TripService implements trip lifecycle and clustering.
// It is stateless apart from its injected collaborators and safe for
// concurrent use.
type TripService struct {
	photos repo.PhotoRepo
	trips  repo.TripRepo
	tx     repo.Transactor
	clock  Clock
	places PlaceNamer
	log    *slog.Logger
}

// Option customises a TripService.
type Option func(*TripService)

// WithTransactor groups each operation's writes in a transaction.
// Without it writes are applied one by one (repo.NoTx).
func WithTransactor(tx repo.Transactor) Option {
	return func(s *TripService) { s.tx = tx }
}

// WithPlaceNamer enables place names in generated trip names.
func WithPlaceNamer(p PlaceNamer) Option {
	return func(s *TripService) { s.places = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *TripService) { s.log = l }
}

// NewTripService constructs a TripService backed by the provided repos.
// A nil clock means SystemClock.
func NewTripService(photos repo.PhotoRepo, trips repo.TripRepo, clock Clock, opts ...Option) *TripService {
	s := &TripService{photos: photos, trips: trips, clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.tx == nil {
		s.tx = repo.NoTx(photos, trips)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// CreateTripInput is the payload for CreateTrip.
type CreateTripInput struct {
	OwnerID     uuid.UUID
	Name        string
	Description string
	PhotoIDs    []uuid.UUID

	// Explicit dates override the ones derived from members.
	StartAt *time.Time
	EndAt   *time.Time
}

// CreateTrip builds a trip from the owner's photos among in.PhotoIDs.
// Unknown and foreign ids are dropped; if none remain it returns
// domain.ErrInvalidInput. Photos already in another trip are moved.
func (s *TripService) CreateTrip(ctx context.Context, in CreateTripInput) (domain.Trip, error) {
	if in.OwnerID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if len(in.PhotoIDs) == 0 {
		return domain.Trip{}, fmt.Errorf("%w: at least one photo is required", domain.ErrInvalidInput)
	}
	if in.StartAt != nil && in.EndAt != nil && in.StartAt.After(*in.EndAt) {
		return domain.Trip{}, fmt.Errorf("%w: start_at must not be after end_at", domain.ErrInvalidInput)
	}

	ids := dedupe(in.PhotoIDs)
	found, err := s.photos.ListByIDs(ctx, in.OwnerID, ids)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.CreateTrip: %w", domain.NewStoreError("load photos", err))
	}
	members := inOrder(ids, found)
	if len(members) == 0 {
		return domain.Trip{}, fmt.Errorf("%w: none of the photos exist or belong to the owner", domain.ErrInvalidInput)
	}

	trip, err := s.create(ctx, draft{
		owner:       in.OwnerID,
		name:        in.Name,
		description: in.Description,
		startAt:     in.StartAt,
		endAt:       in.EndAt,
		members:     members,
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.CreateTrip: %w", err)
	}
	return trip, nil
}

// CreateEmptyTrip creates a trip with no members. Name is required since
// there is nothing to derive one from.
func (s *TripService) CreateEmptyTrip(ctx context.Context, ownerID uuid.UUID, name, description string) (domain.Trip, error) {
	if ownerID == uuid.Nil {
		return domain.Trip{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Trip{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	result, err := s.trips.Create(ctx, domain.Trip{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		MemberIDs:   []uuid.UUID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.CreateEmptyTrip: %w", domain.NewStoreError("insert trip", err))
	}
	return result, nil
}

// GetTrip returns a trip owned by ownerID.
// Returns domain.ErrNotFound if it does not exist and domain.ErrForbidden if
// it belongs to someone else.
func (s *TripService) GetTrip(ctx context.Context, tripID, ownerID uuid.UUID) (domain.Trip, error) {
	trip, err := loadOwned(ctx, s.trips, tripID, ownerID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetTrip: %w", err)
	}
	return trip, nil
}

// ListTrips returns one page of the owner's trips, most recent first, and the
// total number of trips. Always returns a non-nil slice.
func (s *TripService) ListTrips(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	trips, total, err := s.trips.ListByOwnerPaged(ctx, ownerID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.ListTrips: %w", domain.NewStoreError("list trips", err))
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, total, nil
}

// UpdateTrip applies patch to a trip owned by ownerID. Only the fields in
// domain.TripPatch can change. CoverID must name a current member and the
// resulting StartAt must not be after EndAt.
func (s *TripService) UpdateTrip(ctx context.Context, tripID, ownerID uuid.UUID, patch domain.TripPatch) (domain.Trip, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Trip{}, fmt.Errorf("%w: name must not be blank", domain.ErrInvalidInput)
	}
	if patch.StartAt != nil && patch.EndAt != nil && patch.StartAt.After(*patch.EndAt) {
		return domain.Trip{}, fmt.Errorf("%w: start_at must not be after end_at", domain.ErrInvalidInput)
	}
	if patch.IsEmpty() {
		return s.GetTrip(ctx, tripID, ownerID)
	}

	var result domain.Trip
	err := s.tx.WithinTx(ctx, func(_ repo.PhotoRepo, trips repo.TripRepo) error {
		trip, err := loadOwned(ctx, trips, tripID, ownerID)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			trip.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			trip.Description = *patch.Description
		}
		if patch.StartAt != nil {
			start := *patch.StartAt
			trip.StartAt = &start
		}
		if patch.EndAt != nil {
			end := *patch.EndAt
			trip.EndAt = &end
		}
		if patch.CoverID != nil {
			if !trip.HasMember(*patch.CoverID) {
				return fmt.Errorf("%w: cover photo is not a member of the trip", domain.ErrInvalidInput)
			}
			cover := *patch.CoverID
			trip.CoverID = &cover
		}
		if trip.StartAt != nil && trip.EndAt != nil && trip.StartAt.After(*trip.EndAt) {
			return fmt.Errorf("%w: start_at must not be after end_at", domain.ErrInvalidInput)
		}

		trip.UpdatedAt = s.clock.Now()
		result, err = trips.Update(ctx, trip)
		if err != nil {
			return domain.NewStoreError("update trip", err)
		}
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.UpdateTrip: %w", err)
	}
	return result, nil
}

// DeleteTrip detaches every member of the trip and then removes it.
// Photos are detached first so an interrupted delete never leaves a photo
// pointing at a trip that no longer exists.
func (s *TripService) DeleteTrip(ctx context.Context, tripID, ownerID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(photos repo.PhotoRepo, trips repo.TripRepo) error {
		trip, err := loadOwned(ctx, trips, tripID, ownerID)
		if err != nil {
			return err
		}

		// Photos may point at the trip without being listed as members after
		// an earlier partial failure; detach those too.
		pointing, err := photos.ListByTrip(ctx, tripID)
		if err != nil {
			return domain.NewStoreError("list trip photos", err)
		}
		ids := dedupe(append(append([]uuid.UUID{}, trip.MemberIDs...), idsOf(pointing)...))

		if _, err := photos.ClearTrip(ctx, ownerID, ids, tripID, s.clock.Now()); err != nil {
			return domain.NewStoreError("detach photos", err)
		}
		if err := trips.Delete(ctx, tripID); err != nil {
			return domain.NewStoreError("delete trip", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.TripService.DeleteTrip: %w", err)
	}
	return nil
}

// draft is a trip about to be created from a non-empty member list.
type draft struct {
	owner       uuid.UUID
	name        string
	description string
	startAt     *time.Time
	endAt       *time.Time
	members     []domain.Photo

	// claim assigns only photos that are still unassigned and fails with
	// domain.ErrConflict if any was taken in the meantime.
	claim bool
}

// create aggregates d.members, inserts the trip and points the members at it.
func (s *TripService) create(ctx context.Context, d draft) (domain.Trip, error) {
	derived, err := aggregate.Aggregate(d.members)
	if err != nil {
		return domain.Trip{}, err
	}

	now := s.clock.Now()
	cover := derived.CoverID
	trip := domain.Trip{
		ID:          uuid.New(),
		OwnerID:     d.owner,
		Name:        strings.TrimSpace(d.name),
		Description: d.description,
		MemberIDs:   idsOf(d.members),
		Location:    derived.Location,
		StartAt:     derived.StartAt,
		EndAt:       derived.EndAt,
		CoverID:     &cover,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.startAt != nil {
		start := *d.startAt
		trip.StartAt = &start
	}
	if d.endAt != nil {
		end := *d.endAt
		trip.EndAt = &end
	}
	if trip.StartAt != nil && trip.EndAt != nil && trip.StartAt.After(*trip.EndAt) {
		return domain.Trip{}, fmt.Errorf("%w: start_at must not be after end_at", domain.ErrInvalidInput)
	}
	if trip.Name == "" {
		// Resolved outside the transaction: lookups may be slow.
		trip.Name = s.displayName(ctx, derived.Earliest)
	}

	var result domain.Trip
	err = s.tx.WithinTx(ctx, func(photos repo.PhotoRepo, trips repo.TripRepo) error {
		result, err = trips.Create(ctx, trip)
		if err != nil {
			return domain.NewStoreError("insert trip", err)
		}

		if d.claim {
			n, err := photos.ClaimForTrip(ctx, d.owner, trip.MemberIDs, trip.ID, now)
			if err != nil {
				return domain.NewStoreError("claim photos", err)
			}
			if int(n) != len(trip.MemberIDs) {
				return fmt.Errorf("%w: %d of %d photos were assigned to another trip", domain.ErrConflict, len(trip.MemberIDs)-int(n), len(trip.MemberIDs))
			}
			return nil
		}

		if err := s.detachFromPrevious(ctx, photos, trips, d.members, trip.ID, now); err != nil {
			return err
		}
		if _, err := photos.SetTrip(ctx, d.owner, trip.MemberIDs, &trip.ID, now); err != nil {
			return domain.NewStoreError("assign photos", err)
		}
		return nil
	})
	if err != nil {
		return domain.Trip{}, err
	}
	return result, nil
}

// detachFromPrevious removes members that belong to a trip other than keep
// from that trip's member set and recomputes its derived fields.
func (s *TripService) detachFromPrevious(ctx context.Context, photos repo.PhotoRepo, trips repo.TripRepo, members []domain.Photo, keep uuid.UUID, now time.Time) error {
	var order []uuid.UUID
	moved := make(map[uuid.UUID][]uuid.UUID)
	for _, p := range members {
		if p.TripID == nil || *p.TripID == keep {
			continue
		}
		prev := *p.TripID
		if _, ok := moved[prev]; !ok {
			order = append(order, prev)
		}
		moved[prev] = append(moved[prev], p.ID)
	}

	for _, prev := range order {
		err := trips.RemoveMembers(ctx, prev, moved[prev], now)
		if errors.Is(err, domain.ErrNotFound) {
			// Dangling back-reference; the photo is re-pointed below anyway.
			continue
		}
		if err != nil {
			return domain.NewStoreError("detach from previous trip", err)
		}
		if err := s.refresh(ctx, photos, trips, prev, now); err != nil {
			return err
		}
	}
	return nil
}

// refresh recomputes the derived fields of tripID from its current members.
func (s *TripService) refresh(ctx context.Context, photos repo.PhotoRepo, trips repo.TripRepo, tripID uuid.UUID, now time.Time) error {
	trip, err := trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.NewStoreError("load trip", err)
	}
	members, err := photos.ListByIDs(ctx, trip.OwnerID, trip.MemberIDs)
	if err != nil {
		return domain.NewStoreError("load photos", err)
	}

	derive(&trip, inOrder(trip.MemberIDs, members))
	trip.UpdatedAt = now
	if _, err := trips.Update(ctx, trip); err != nil {
		return domain.NewStoreError("update trip", err)
	}
	return nil
}

// derive overwrites trip's location, span and cover from members. An
// existing cover is kept while it is still a member.
func derive(trip *domain.Trip, members []domain.Photo) {
	if len(members) == 0 {
		trip.Location = nil
		trip.StartAt, trip.EndAt = nil, nil
		trip.CoverID = nil
		return
	}

	d, err := aggregate.Aggregate(members)
	if err != nil {
		return
	}
	trip.Location = d.Location
	trip.StartAt, trip.EndAt = d.StartAt, d.EndAt
	if trip.CoverID == nil || !trip.HasMember(*trip.CoverID) {
		cover := d.CoverID
		trip.CoverID = &cover
	}
}

func (s *TripService) displayName(ctx context.Context, earliest domain.Photo) string {
	var place string
	if s.places != nil && earliest.Coordinates != nil {
		name, err := s.places.PlaceName(ctx, *earliest.Coordinates)
		if err != nil {
			s.log.DebugContext(ctx, "place lookup failed", "photo_id", earliest.ID, "error", err)
		} else {
			place = name
		}
	}
	return aggregate.DisplayName(place, earliest)
}

// loadOwned fetches a trip and checks that ownerID owns it.
func loadOwned(ctx context.Context, trips repo.TripRepo, tripID, ownerID uuid.UUID) (domain.Trip, error) {
	trip, err := trips.GetByID(ctx, tripID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Trip{}, err
	}
	if err != nil {
		return domain.Trip{}, domain.NewStoreError("load trip", err)
	}
	if trip.OwnerID != ownerID {
		return domain.Trip{}, domain.ErrForbidden
	}
	return trip, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// inOrder returns the photos among found in the order their ids appear in ids.
// The store may return rows in any order; the cover tie-break depends on it.
func inOrder(ids []uuid.UUID, found []domain.Photo) []domain.Photo {
	byID := make(map[uuid.UUID]domain.Photo, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]domain.Photo, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out
}

func idsOf(photos []domain.Photo) []uuid.UUID {
	ids := make([]uuid.UUID, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	return ids
}
