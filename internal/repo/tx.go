package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transactor runs a unit of work against photo and trip repos that share one
// transaction. fn's error is returned unchanged after rollback so callers can
// still match domain sentinels with errors.Is.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(photos PhotoRepo, trips TripRepo) error) error
}

// beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx. A pgx.Tx
// begins a savepoint, so integration tests can nest units of work inside the
// per-test rollback transaction.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgTransactor struct {
	db beginner
}

// NewTransactor returns a Transactor that wraps each unit of work in a
// Postgres transaction: the trip write and the photo batch write commit or
// roll back together.
func NewTransactor(db beginner) Transactor {
	return &pgTransactor{db: db}
}

func (t *pgTransactor) WithinTx(ctx context.Context, fn func(photos PhotoRepo, trips TripRepo) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: begin: %w", err)
	}
	defer func() {
		if err != nil {
			// The original error wins over any rollback error.
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(NewPhotoRepo(tx), NewTripRepo(tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: commit: %w", err)
	}
	return nil
}

type noTx struct {
	photos PhotoRepo
	trips  TripRepo
}

// NoTx returns a Transactor that runs fn directly against photos and trips.
// Each write commits on its own; use it for stores without multi-record
// transactions. A failure between two writes leaves the earlier one in place.
func NoTx(photos PhotoRepo, trips TripRepo) Transactor {
	return noTx{photos: photos, trips: trips}
}

func (n noTx) WithinTx(_ context.Context, fn func(photos PhotoRepo, trips TripRepo) error) error {
	return fn(n.photos, n.trips)
}
