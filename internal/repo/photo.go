package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/photo-trips/internal/domain"
)

// PhotoRepo defines the persistence operations for Photos that the trip engine
// needs. Reads that take an ownerID are scoped to that owner.
type PhotoRepo interface {
	// Create inserts a photo record. Used by ingest glue and test fixtures;
	// binary storage and EXIF extraction happen upstream.
	Create(ctx context.Context, photo domain.Photo) (domain.Photo, error)

	// GetByID retrieves a single photo. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Photo, error)

	// ListByIDs returns the photos among ids that exist and belong to ownerID.
	// Unknown or foreign ids are silently skipped.
	ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]domain.Photo, error)

	// ListCandidates returns ownerID's photos that have coordinates, a capture
	// time, and no trip, ordered by captured_at ascending (id breaks ties).
	ListCandidates(ctx context.Context, ownerID uuid.UUID) ([]domain.Photo, error)

	// ListByTrip returns every photo whose trip_id is tripID.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Photo, error)

	// SetTrip sets trip_id (nil clears it) and updated_at on the owner's photos
	// in ids. It is a single statement, so it applies to all rows or none.
	// Returns the number of rows changed.
	SetTrip(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID *uuid.UUID, now time.Time) (int64, error)

	// ClaimForTrip is SetTrip restricted to photos whose trip_id is still NULL.
	// Callers compare the returned count with len(ids) to detect a lost race.
	ClaimForTrip(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID uuid.UUID, now time.Time) (int64, error)

	// ClearTrip sets trip_id to NULL on the owner's photos in ids that still
	// point at tripID. Photos already moved to another trip are left alone.
	ClearTrip(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID uuid.UUID, now time.Time) (int64, error)
}

// pgPhotoRepo is the Postgres implementation of PhotoRepo.
type pgPhotoRepo struct {
	db db
}

// NewPhotoRepo constructs a PhotoRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPhotoRepo(db db) PhotoRepo {
	return &pgPhotoRepo{db: db}
}

const photoColumns = `id, owner_id, filename, latitude, longitude, captured_at, trip_id, created_at, updated_at`

// Create inserts a photo row. A zero ID lets the database generate one.
func (r *pgPhotoRepo) Create(ctx context.Context, photo domain.Photo) (domain.Photo, error) {
	q := `
		INSERT INTO photos (id, owner_id, filename, latitude, longitude, captured_at, trip_id)
		VALUES (COALESCE(@id, gen_random_uuid()), @owner_id, @filename, @latitude, @longitude, @captured_at, @trip_id)
		RETURNING ` + photoColumns

	args := pgx.NamedArgs{
		"id":          nil,
		"owner_id":    photo.OwnerID,
		"filename":    photo.Filename,
		"latitude":    nil,
		"longitude":   nil,
		"captured_at": photo.CapturedAt,
		"trip_id":     photo.TripID,
	}
	if photo.ID != uuid.Nil {
		args["id"] = photo.ID
	}
	if c := photo.Coordinates; c != nil {
		args["latitude"] = c.Latitude
		args["longitude"] = c.Longitude
	}

	result, err := scanPhoto(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Photo{}, fmt.Errorf("repo.PhotoRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a photo by primary key.
func (r *pgPhotoRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Photo, error) {
	q := `SELECT ` + photoColumns + ` FROM photos WHERE id = @id`

	result, err := scanPhoto(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Photo{}, fmt.Errorf("repo.PhotoRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListByIDs returns the owned, existing subset of ids.
func (r *pgPhotoRepo) ListByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]domain.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE owner_id = @owner_id AND id = ANY(@ids::uuid[])
		ORDER BY captured_at ASC NULLS LAST, id`

	photos, err := r.list(ctx, q, pgx.NamedArgs{"owner_id": ownerID, "ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.PhotoRepo.ListByIDs: %w", err)
	}
	return photos, nil
}

// ListCandidates returns the clustering candidates of ownerID in capture order.
func (r *pgPhotoRepo) ListCandidates(ctx context.Context, ownerID uuid.UUID) ([]domain.Photo, error) {
	q := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE owner_id = @owner_id
		  AND trip_id IS NULL
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND captured_at IS NOT NULL
		ORDER BY captured_at ASC, id`

	photos, err := r.list(ctx, q, pgx.NamedArgs{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("repo.PhotoRepo.ListCandidates: %w", err)
	}
	return photos, nil
}

// ListByTrip returns the photos pointing at tripID.
func (r *pgPhotoRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Photo, error) {
	q := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE trip_id = @trip_id
		ORDER BY captured_at ASC NULLS LAST, id`

	photos, err := r.list(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.PhotoRepo.ListByTrip: %w", err)
	}
	return photos, nil
}

// SetTrip updates trip_id on every owned photo in ids.
func (r *pgPhotoRepo) SetTrip(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID *uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `
		UPDATE photos
		SET trip_id = @trip_id, updated_at = @updated_at
		WHERE owner_id = @owner_id AND id = ANY(@ids::uuid[])`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"trip_id":    tripID, // nil becomes NULL
		"updated_at": now,
		"owner_id":   ownerID,
		"ids":        ids,
	})
	if err != nil {
		return 0, fmt.Errorf("repo.PhotoRepo.SetTrip: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimForTrip assigns tripID only to photos that are still unassigned.
func (r *pgPhotoRepo) ClaimForTrip(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `
		UPDATE photos
		SET trip_id = @trip_id, updated_at = @updated_at
		WHERE owner_id = @owner_id AND id = ANY(@ids::uuid[]) AND trip_id IS NULL`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"trip_id":    tripID,
		"updated_at": now,
		"owner_id":   ownerID,
		"ids":        ids,
	})
	if err != nil {
		return 0, fmt.Errorf("repo.PhotoRepo.ClaimForTrip: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClearTrip detaches the photos in ids from tripID only.
func (r *pgPhotoRepo) ClearTrip(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, tripID uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `
		UPDATE photos
		SET trip_id = NULL, updated_at = @updated_at
		WHERE owner_id = @owner_id AND id = ANY(@ids::uuid[]) AND trip_id = @trip_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"updated_at": now,
		"owner_id":   ownerID,
		"ids":        ids,
		"trip_id":    tripID,
	})
	if err != nil {
		return 0, fmt.Errorf("repo.PhotoRepo.ClearTrip: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgPhotoRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Photo, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []domain.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return photos, nil
}

// scanPhoto maps a single database row into a domain.Photo.
func scanPhoto(s scanner) (domain.Photo, error) {
	var (
		p                   domain.Photo
		id, ownerID, tripID pgtype.UUID
		lat, lng            pgtype.Float8
		capturedAt          pgtype.Timestamptz
	)

	err := s.Scan(&id, &ownerID, &p.Filename, &lat, &lng, &capturedAt, &tripID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Photo{}, domain.ErrNotFound
		}
		return domain.Photo{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	p.OwnerID = uuid.UUID(ownerID.Bytes)
	if lat.Valid && lng.Valid {
		p.Coordinates = &domain.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	p.CapturedAt = timePtr(capturedAt)
	p.TripID = uuidPtr(tripID)

	return p, nil
}
