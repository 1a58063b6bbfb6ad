// Package repo contains all database access logic for the photo trips service.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/photo-trips/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not the concrete Postgres implementation,
// which allows the service to be unit-tested with a fake.
type TripRepo interface {
	// Create inserts a new trip. The caller supplies the ID and timestamps.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// ListByOwner returns every trip of an owner, most recent start first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error)

	// ListByOwnerPaged returns one page of an owner's trips and the total count.
	ListByOwnerPaged(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// Update overwrites the mutable and derived fields of an existing trip,
	// including its member set, and returns the updated record.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Delete removes a trip by ID. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// RemoveMembers drops ids from a trip's member set. Ids that are not
	// members are ignored. Returns domain.ErrNotFound if the trip does not exist.
	RemoveMembers(ctx context.Context, tripID uuid.UUID, ids []uuid.UUID, now time.Time) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, owner_id, name, description, member_ids,
		centroid_lat, centroid_lng, bbox_north, bbox_south, bbox_east, bbox_west,
		start_at, end_at, cover_id, created_at, updated_at`

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES (@id, @owner_id, @name, @description, @member_ids,
		        @centroid_lat, @centroid_lng, @bbox_north, @bbox_south, @bbox_east, @bbox_west,
		        @start_at, @end_at, @cover_id, @created_at, @updated_at)
		RETURNING ` + tripColumns

	args := tripArgs(trip)
	args["owner_id"] = trip.OwnerID
	args["created_at"] = trip.CreatedAt

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListByOwner returns all trips of ownerID, most recent start first.
func (r *pgTripRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error) {
	q := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE owner_id = @owner_id
		ORDER BY start_at DESC NULLS LAST, created_at DESC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListByOwner: %w", err)
	}
	trips, err := collectTrips(rows)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListByOwner: %w", err)
	}
	return trips, nil
}

// ListByOwnerPaged returns one page of trips plus the owner's total trip count.
func (r *pgTripRepo) ListByOwnerPaged(ctx context.Context, ownerID uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	const countQ = `SELECT count(*) FROM trips WHERE owner_id = @owner_id`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"owner_id": ownerID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwnerPaged: count: %w", err)
	}

	q := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE owner_id = @owner_id
		ORDER BY start_at DESC NULLS LAST, created_at DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"owner_id": ownerID,
		"limit":    p.Limit,
		"offset":   p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwnerPaged: %w", err)
	}
	trips, err := collectTrips(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListByOwnerPaged: %w", err)
	}
	return trips, total, nil
}

// Update overwrites the mutable fields of a trip and returns the updated record.
// owner_id and created_at are never changed.
func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET name         = @name,
		    description  = @description,
		    member_ids   = @member_ids,
		    centroid_lat = @centroid_lat,
		    centroid_lng = @centroid_lng,
		    bbox_north   = @bbox_north,
		    bbox_south   = @bbox_south,
		    bbox_east    = @bbox_east,
		    bbox_west    = @bbox_west,
		    start_at     = @start_at,
		    end_at       = @end_at,
		    cover_id     = @cover_id,
		    updated_at   = @updated_at
		WHERE id = @id
		RETURNING ` + tripColumns

	row := r.db.QueryRow(ctx, q, tripArgs(trip))
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return result, nil
}

// Delete removes a trip by primary key.
func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// RemoveMembers subtracts ids from member_ids in a single statement.
// A removed cover is cleared so cover_id never points outside the member set.
func (r *pgTripRepo) RemoveMembers(ctx context.Context, tripID uuid.UUID, ids []uuid.UUID, now time.Time) error {
	const q = `
		UPDATE trips
		SET member_ids = ARRAY(
		        SELECT m FROM unnest(member_ids) AS m
		        WHERE m <> ALL(@ids::uuid[])
		    ),
		    cover_id   = CASE WHEN cover_id = ANY(@ids::uuid[]) THEN NULL ELSE cover_id END,
		    updated_at = @updated_at
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": tripID, "ids": ids, "updated_at": now})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.RemoveMembers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.RemoveMembers: %w", domain.ErrNotFound)
	}
	return nil
}

// tripArgs maps the writable columns of trip to named arguments.
// A nil Location becomes NULL in all six location columns.
func tripArgs(trip domain.Trip) pgx.NamedArgs {
	members := trip.MemberIDs
	if members == nil {
		members = []uuid.UUID{}
	}
	args := pgx.NamedArgs{
		"id":           trip.ID,
		"name":         trip.Name,
		"description":  trip.Description,
		"member_ids":   members,
		"centroid_lat": nil,
		"centroid_lng": nil,
		"bbox_north":   nil,
		"bbox_south":   nil,
		"bbox_east":    nil,
		"bbox_west":    nil,
		"start_at":     trip.StartAt, // nil becomes NULL
		"end_at":       trip.EndAt,
		"cover_id":     trip.CoverID,
		"updated_at":   trip.UpdatedAt,
	}
	if loc := trip.Location; loc != nil {
		args["centroid_lat"] = loc.CentroidLat
		args["centroid_lng"] = loc.CentroidLng
		args["bbox_north"] = loc.BoundingBox.North
		args["bbox_south"] = loc.BoundingBox.South
		args["bbox_east"] = loc.BoundingBox.East
		args["bbox_west"] = loc.BoundingBox.West
	}
	return args
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID conversions and the nullable location and span columns.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t                     domain.Trip
		id, ownerID, coverID  pgtype.UUID
		members               []pgtype.UUID
		lat, lng, n, so, e, w pgtype.Float8
		startAt, endAt        pgtype.Timestamptz
	)

	err := s.Scan(&id, &ownerID, &t.Name, &t.Description, &members,
		&lat, &lng, &n, &so, &e, &w,
		&startAt, &endAt, &coverID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OwnerID = uuid.UUID(ownerID.Bytes)
	t.MemberIDs = make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		t.MemberIDs = append(t.MemberIDs, uuid.UUID(m.Bytes))
	}
	if lat.Valid && lng.Valid {
		t.Location = &domain.Location{
			CentroidLat: lat.Float64,
			CentroidLng: lng.Float64,
			BoundingBox: domain.BoundingBox{North: n.Float64, South: so.Float64, East: e.Float64, West: w.Float64},
		}
	}
	t.StartAt = timePtr(startAt)
	t.EndAt = timePtr(endAt)
	t.CoverID = uuidPtr(coverID)

	return t, nil
}

// collectTrips drains rows into a slice and closes them.
func collectTrips(rows pgx.Rows) ([]domain.Trip, error) {
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return trips, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	v := ts.Time
	return &v
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	v := uuid.UUID(u.Bytes)
	return &v
}
