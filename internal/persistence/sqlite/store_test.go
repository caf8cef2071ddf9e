package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/camp-occupancy/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "campstats.db")
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.now = func() time.Time { return time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedCamp(t *testing.T, store *Store, id, site string) persistence.Camp {
	t.Helper()
	camp := persistence.Camp{
		ID:         id,
		Name:       "Kamp " + id,
		OwnerEmail: "Owner@Example.com",
		Site:       site,
	}
	require.NoError(t, store.CreateCamp(context.Background(), camp))
	return camp
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM schema_migrations`))
	require.Equal(t, 1, count)
}

func TestStore_CampRoundTripWithShares(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	camp := persistence.Camp{
		ID:              "camp-1",
		Name:            "Kuzey Kampı",
		OwnerEmail:      "Owner@Example.com",
		Site:            "Y",
		IsPublic:        true,
		SharedWithSites: []string{"X", "X", " Z "},
		SharedWith: []persistence.CampShare{
			{Email: "Reader@Example.com", Permission: "read"},
			{Email: "writer@example.com", Permission: "write"},
		},
	}
	require.NoError(t, store.CreateCamp(ctx, camp))

	got, err := store.GetCamp(ctx, "camp-1")
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", got.OwnerEmail)
	require.Equal(t, "Y", got.Site)
	require.True(t, got.IsPublic)
	require.Equal(t, []string{"X", "Z"}, got.SharedWithSites)
	require.Equal(t, []persistence.CampShare{
		{Email: "reader@example.com", Permission: "read"},
		{Email: "writer@example.com", Permission: "write"},
	}, got.SharedWith)

	got.Name = "Güney Kampı"
	got.Site = "ignored"
	got.SharedWithSites = nil
	got.SharedWith = got.SharedWith[:1]
	require.NoError(t, store.UpdateCamp(ctx, got))

	updated, err := store.GetCamp(ctx, "camp-1")
	require.NoError(t, err)
	require.Equal(t, "Güney Kampı", updated.Name)
	require.Equal(t, "Y", updated.Site, "site column must never change")
	require.Empty(t, updated.SharedWithSites)
	require.Len(t, updated.SharedWith, 1)
}

func TestStore_ListCampsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCamp(t, store, "a", "X")
	seedCamp(t, store, "b", "Y")
	seedCamp(t, store, "c", "X")

	all, err := store.ListCamps(ctx, persistence.CampFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	bySite, err := store.ListCamps(ctx, persistence.CampFilter{Site: "X"})
	require.NoError(t, err)
	require.Len(t, bySite, 2)

	byIDs, err := store.ListCamps(ctx, persistence.CampFilter{IDs: []string{"b", "c"}, Site: "X"})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	require.Equal(t, "c", byIDs[0].ID)

	_, err = store.GetCamp(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_RoomsAndWorkers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCamp(t, store, "camp-a", "X")
	seedCamp(t, store, "camp-b", "Y")

	require.NoError(t, store.CreateRooms(ctx, []persistence.Room{
		{ID: "r1", CampID: "camp-a", Number: "101", Capacity: 4, Project: "X"},
		{ID: "r2", CampID: "camp-b", Number: "201", Capacity: 2, Project: "Y"},
	}))

	err := store.CreateRooms(ctx, []persistence.Room{
		{ID: "r3", CampID: "camp-a", Number: "102", Capacity: 2},
		{ID: "r4", CampID: "camp-a", Number: "101", Capacity: 2},
	})
	require.ErrorIs(t, err, persistence.ErrDuplicate)
	_, err = store.GetRoom(ctx, "r3")
	require.ErrorIs(t, err, persistence.ErrNotFound, "batch must be rolled back")

	require.NoError(t, store.CreateWorkers(ctx, []persistence.Worker{
		{ID: "w1", CampID: "camp-a", RoomID: "r1", FirstName: "Ali", LastName: "Yılmaz", Project: "X"},
		{ID: "w2", CampID: "camp-a", RoomID: "r1", FirstName: "Ayşe", LastName: "Demir", Project: "Y"},
	}))

	count, err := store.CountWorkersInRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, store.MoveWorker(ctx, "w2", "r2", "camp-b"))
	moved, err := store.GetWorker(ctx, "w2")
	require.NoError(t, err)
	require.Equal(t, "r2", moved.RoomID)
	require.Equal(t, "camp-b", moved.CampID)

	campA, err := store.ListWorkersByCamp(ctx, "camp-a")
	require.NoError(t, err)
	require.Len(t, campA, 1)

	err = store.MoveWorker(ctx, "w1", "r2", "camp-a")
	require.ErrorIs(t, err, persistence.ErrConstraintViolation)

	require.NoError(t, store.DeleteRoom(ctx, "r2"))
	_, err = store.GetWorker(ctx, "w2")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, store.DeleteCamp(ctx, "camp-a"))
	rooms, err := store.ListRoomsByCamp(ctx, "camp-a")
	require.NoError(t, err)
	require.Empty(t, rooms)
	require.ErrorIs(t, store.DeleteCamp(ctx, "camp-a"), persistence.ErrNotFound)
}

func TestStore_UsersAndSites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, persistence.User{
		ID:                 "u1",
		Email:              "Mehmet@Example.com",
		DisplayName:        "Mehmet",
		PasswordHash:       "hash",
		Role:               "user",
		Site:               "X",
		SiteAccessApproved: true,
	}))
	user, err := store.GetUserByEmail(ctx, "mehmet@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.True(t, user.SiteAccessApproved)
	require.False(t, user.CanViewCamps)

	err = store.CreateUser(ctx, persistence.User{ID: "u2", Email: "MEHMET@example.com", Role: "user"})
	require.ErrorIs(t, err, persistence.ErrDuplicate)

	err = store.CreateUser(ctx, persistence.User{ID: "u3", Email: "x@example.com", Role: "emperor"})
	require.ErrorIs(t, err, persistence.ErrConstraintViolation)

	require.NoError(t, store.CreateSite(ctx, persistence.Site{ID: "s2", Name: "Zonguldak"}))
	require.NoError(t, store.CreateSite(ctx, persistence.Site{ID: "s1", Name: "Ankara"}))
	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	require.Equal(t, []persistence.Site{{ID: "s1", Name: "Ankara"}, {ID: "s2", Name: "Zonguldak"}}, sites)
}
