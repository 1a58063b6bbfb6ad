package service_test

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/photo-trips/internal/domain"
	"github.com/pkordes/photo-trips/internal/repo"
)

// memStore is an in-memory test double for repo.PhotoRepo, repo.TripRepo and
// repo.Transactor. Set fail[method] to make that method return an error, or
// failFn for per-call control. WithinTx restores a snapshot when the unit of
// work fails, like a Postgres transaction would.
type memStore struct {
	mu     sync.Mutex
	photos map[uuid.UUID]domain.Photo
	trips  map[uuid.UUID]domain.Trip

	fail   map[string]error
	failFn func(method string) error

	// beforeClaim runs at the start of ClaimForTrip, outside the lock.
	beforeClaim func()

	calls []string
}

func newMemStore() *memStore {
	return &memStore{
		photos: make(map[uuid.UUID]domain.Photo),
		trips:  make(map[uuid.UUID]domain.Trip),
		fail:   make(map[string]error),
	}
}

// photoRepo and tripRepo split memStore's two Create/GetByID method sets.
type photoRepo struct{ *memStore }
type tripRepo struct{ *memStore }

var (
	_ repo.PhotoRepo  = photoRepo{}
	_ repo.TripRepo   = tripRepo{}
	_ repo.Transactor = (*memStore)(nil)
)

func (s *memStore) check(method string) error {
	s.calls = append(s.calls, method)
	if err := s.fail[method]; err != nil {
		return err
	}
	if s.failFn != nil {
		return s.failFn(method)
	}
	return nil
}

func (s *memStore) called(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *memStore) WithinTx(_ context.Context, fn func(photos repo.PhotoRepo, trips repo.TripRepo) error) error {
	s.mu.Lock()
	photos := make(map[uuid.UUID]domain.Photo, len(s.photos))
	for k, v := range s.photos {
		photos[k] = clonePhoto(v)
	}
	trips := make(map[uuid.UUID]domain.Trip, len(s.trips))
	for k, v := range s.trips {
		trips[k] = cloneTrip(v)
	}
	s.mu.Unlock()

	if err := fn(photoRepo{s}, tripRepo{s}); err != nil {
		s.mu.Lock()
		s.photos, s.trips = photos, trips
		s.mu.Unlock()
		return err
	}
	return nil
}

// seed stores photos directly, bypassing failure hooks.
func (s *memStore) seed(photos ...domain.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range photos {
		s.photos[p.ID] = clonePhoto(p)
	}
}

func (s *memStore) photo(id uuid.UUID) domain.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePhoto(s.photos[id])
}

// repoint moves a photo to tripID directly, the way a concurrent writer would.
func (s *memStore) repoint(photoID, tripID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.photos[photoID]
	p.TripID = &tripID
	s.photos[photoID] = p
}

func (s *memStore) tripCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trips)
}

// ---- repo.PhotoRepo --------------------------------------------------------

func (r photoRepo) Create(ctx context.Context, p domain.Photo) (domain.Photo, error) {
	return r.memStore.CreatePhoto(ctx, p)
}

func (r photoRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Photo, error) {
	return r.memStore.GetPhoto(ctx, id)
}

func (s *memStore) CreatePhoto(_ context.Context, p domain.Photo) (domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreatePhoto"); err != nil {
		return domain.Photo{}, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.photos[p.ID] = clonePhoto(p)
	return p, nil
}

func (s *memStore) GetPhoto(_ context.Context, id uuid.UUID) (domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetPhoto"); err != nil {
		return domain.Photo{}, err
	}
	p, ok := s.photos[id]
	if !ok {
		return domain.Photo{}, domain.ErrNotFound
	}
	return clonePhoto(p), nil
}

func (s *memStore) ListByIDs(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListByIDs"); err != nil {
		return nil, err
	}
	var out []domain.Photo
	for _, id := range ids {
		if p, ok := s.photos[id]; ok && p.OwnerID == ownerID {
			out = append(out, clonePhoto(p))
		}
	}
	sortByCapture(out)
	return out, nil
}

func (s *memStore) ListCandidates(_ context.Context, ownerID uuid.UUID) ([]domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListCandidates"); err != nil {
		return nil, err
	}
	var out []domain.Photo
	for _, p := range s.photos {
		if p.OwnerID == ownerID && p.IsCandidate() {
			out = append(out, clonePhoto(p))
		}
	}
	sortByCapture(out)
	return out, nil
}

func (s *memStore) ListByTrip(_ context.Context, tripID uuid.UUID) ([]domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListByTrip"); err != nil {
		return nil, err
	}
	var out []domain.Photo
	for _, p := range s.photos {
		if p.TripID != nil && *p.TripID == tripID {
			out = append(out, clonePhoto(p))
		}
	}
	sortByCapture(out)
	return out, nil
}

func (s *memStore) SetTrip(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID *uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("SetTrip"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		p, ok := s.photos[id]
		if !ok || p.OwnerID != ownerID {
			continue
		}
		p.TripID = copyID(tripID)
		p.UpdatedAt = now
		s.photos[id] = p
		n++
	}
	return n, nil
}

func (s *memStore) ClaimForTrip(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID uuid.UUID, now time.Time) (int64, error) {
	if s.beforeClaim != nil {
		s.beforeClaim()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ClaimForTrip"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		p, ok := s.photos[id]
		if !ok || p.OwnerID != ownerID || p.TripID != nil {
			continue
		}
		p.TripID = &tripID
		p.UpdatedAt = now
		s.photos[id] = p
		n++
	}
	return n, nil
}

func (s *memStore) ClearTrip(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ClearTrip"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		p, ok := s.photos[id]
		if !ok || p.OwnerID != ownerID || p.TripID == nil || *p.TripID != tripID {
			continue
		}
		p.TripID = nil
		p.UpdatedAt = now
		s.photos[id] = p
		n++
	}
	return n, nil
}

// ---- repo.TripRepo ---------------------------------------------------------

func (r tripRepo) Create(ctx context.Context, t domain.Trip) (domain.Trip, error) {
	return r.memStore.CreateTrip(ctx, t)
}

func (r tripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return r.memStore.GetTrip(ctx, id)
}

func (s *memStore) CreateTrip(_ context.Context, t domain.Trip) (domain.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreateTrip"); err != nil {
		return domain.Trip{}, err
	}
	if t.MemberIDs == nil {
		t.MemberIDs = []uuid.UUID{}
	}
	s.trips[t.ID] = cloneTrip(t)
	return cloneTrip(t), nil
}

func (s *memStore) GetTrip(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetTrip"); err != nil {
		return domain.Trip{}, err
	}
	t, ok := s.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	return cloneTrip(t), nil
}

func (s *memStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListByOwner"); err != nil {
		return nil, err
	}
	return s.byOwner(ownerID), nil
}

func (s *memStore) ListByOwnerPaged(_ context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListByOwnerPaged"); err != nil {
		return nil, 0, err
	}
	all := s.byOwner(ownerID)
	lo := min(p.Offset(), len(all))
	hi := min(lo+p.Limit, len(all))
	return all[lo:hi], int64(len(all)), nil
}

func (s *memStore) byOwner(ownerID uuid.UUID) []domain.Trip {
	var out []domain.Trip
	for _, t := range s.trips {
		if t.OwnerID == ownerID {
			out = append(out, cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].StartAt, out[j].StartAt
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return out
}

func (s *memStore) Update(_ context.Context, t domain.Trip) (domain.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("Update"); err != nil {
		return domain.Trip{}, err
	}
	old, ok := s.trips[t.ID]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	t.OwnerID, t.CreatedAt = old.OwnerID, old.CreatedAt
	s.trips[t.ID] = cloneTrip(t)
	return cloneTrip(t), nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("Delete"); err != nil {
		return err
	}
	if _, ok := s.trips[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.trips, id)
	return nil
}

func (s *memStore) RemoveMembers(_ context.Context, tripID uuid.UUID, ids []uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("RemoveMembers"); err != nil {
		return err
	}
	t, ok := s.trips[tripID]
	if !ok {
		return domain.ErrNotFound
	}
	t.MemberIDs = slices.DeleteFunc(slices.Clone(t.MemberIDs), func(id uuid.UUID) bool {
		return slices.Contains(ids, id)
	})
	if t.CoverID != nil && slices.Contains(ids, *t.CoverID) {
		t.CoverID = nil
	}
	t.UpdatedAt = now
	s.trips[tripID] = t
	return nil
}

// ---- helpers ---------------------------------------------------------------

func sortByCapture(photos []domain.Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		a, b := photos[i].CapturedAt, photos[j].CapturedAt
		switch {
		case a == nil && b == nil:
			return photos[i].ID.String() < photos[j].ID.String()
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return photos[i].ID.String() < photos[j].ID.String()
		}
		return a.Before(*b)
	})
}

func clonePhoto(p domain.Photo) domain.Photo {
	p.TripID = copyID(p.TripID)
	return p
}

func cloneTrip(t domain.Trip) domain.Trip {
	t.MemberIDs = slices.Clone(t.MemberIDs)
	t.CoverID = copyID(t.CoverID)
	return t
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
