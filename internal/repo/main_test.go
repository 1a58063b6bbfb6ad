package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkordes/photo-trips/migrations"
	"github.com/pkordes/photo-trips/testutil"
)

// TestMain runs before any test in the repo_test package.
// It applies all pending migrations to the test database so individual tests
// never need to think about schema state.
func TestMain(m *testing.M) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		// No test DB configured: integration tests skip themselves, the
		// pgxmock-based tests still run.
		os.Exit(m.Run())
	}

	// goose needs database/sql, not a pgx pool.
	db := testutil.MustOpenSQLDB(os.Getenv("TEST_DATABASE_URL"))

	if _, err := migrations.Up(context.Background(), db); err != nil {
		db.Close()
		log.Fatalf("TestMain: run migrations: %v", err)
	}
	db.Close()

	os.Exit(m.Run())
}
