package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/camp-occupancy/internal/persistence"
	"github.com/example/camp-occupancy/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration tests.
type SQLiteHarness struct {
	Store   *sqlite.Store
	Users   persistence.UserRepository
	Sites   persistence.SiteRepository
	Camps   persistence.CampRepository
	Rooms   persistence.RoomRepository
	Workers persistence.WorkerRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated database in a temporary directory. The
// database is closed when the test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "campstats.db")
	store, err := sqlite.Open("file:" + path + "?_pragma=foreign_keys(1)")
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:   store,
		Users:   store,
		Sites:   store,
		Camps:   store,
		Rooms:   store,
		Workers: store,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Seed inserts every record of the scenario, failing the test on error.
func (h *SQLiteHarness) Seed(tb testing.TB, scenario Scenario) {
	tb.Helper()
	ctx := context.Background()

	for _, site := range scenario.Sites {
		if err := h.Sites.CreateSite(ctx, site); err != nil {
			tb.Fatalf("seed site %s: %v", site.ID, err)
		}
	}
	for _, user := range scenario.Users {
		if err := h.Users.CreateUser(ctx, user.Persistence()); err != nil {
			tb.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	for _, camp := range scenario.Camps {
		if err := h.Camps.CreateCamp(ctx, camp.Persistence()); err != nil {
			tb.Fatalf("seed camp %s: %v", camp.ID, err)
		}
	}
	rooms := make([]persistence.Room, 0, len(scenario.Rooms))
	for _, room := range scenario.Rooms {
		rooms = append(rooms, room.Persistence())
	}
	if err := h.Rooms.CreateRooms(ctx, rooms); err != nil {
		tb.Fatalf("seed rooms: %v", err)
	}
	workers := make([]persistence.Worker, 0, len(scenario.Workers))
	for _, worker := range scenario.Workers {
		workers = append(workers, worker.Persistence())
	}
	if err := h.Workers.CreateWorkers(ctx, workers); err != nil {
		tb.Fatalf("seed workers: %v", err)
	}
}
