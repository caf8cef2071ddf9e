package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/camp-occupancy/internal/persistence"
)

func newTestCampService(records *memoryRecords, cache CacheInvalidator) *CampService {
	clock := newFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewCampServiceWithLogger(records, cache, sequentialIDs("camp"), clock.Now, discardLogger)
}

func TestCampService_CreateCamp(t *testing.T) {
	t.Run("creates camp owned by principal and invalidates its views", func(t *testing.T) {
		records := newMemoryRecords()
		cache := &recordingInvalidator{}
		svc := newTestCampService(records, cache)

		camp, err := svc.CreateCamp(context.Background(), CreateCampParams{
			Principal: ordinaryUser("u-1", "Ayse@Example.com", true),
			Input: CampInput{
				Name:            "  Kuzey Kampı ",
				Site:            "X",
				SharedWithSites: []string{"Y"},
				SharedWith: []CampShare{
					{Email: "Ali@example.com"},
					{Email: "ali@example.com", Permission: PermissionWrite},
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "camp-1", camp.ID)
		assert.Equal(t, "Kuzey Kampı", camp.Name)
		assert.Equal(t, "ayse@example.com", camp.OwnerEmail)
		assert.Empty(t, camp.SharedWithSites, "site shares require a public camp")
		assert.Equal(t, []CampShare{{Email: "ali@example.com", Permission: PermissionRead}}, camp.SharedWith)

		trigger, target := cache.last()
		assert.Equal(t, TriggerCampCreate, trigger)
		assert.Equal(t, []string{"camp-1"}, target.CampIDs)
		assert.ElementsMatch(t, []string{"ayse@example.com", "ali@example.com"}, target.Emails)
		assert.Equal(t, []string{"X"}, target.Sites)
	})

	t.Run("validates input", func(t *testing.T) {
		svc := newTestCampService(newMemoryRecords(), nil)

		_, err := svc.CreateCamp(context.Background(), CreateCampParams{
			Principal: founder(),
			Input: CampInput{
				SharedWith: []CampShare{{Email: "not-an-email", Permission: "owner"}},
			},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "name")
		assert.Contains(t, vErr.FieldErrors, "site")
		assert.Contains(t, vErr.FieldErrors, "shared_with[0].email")
		assert.Contains(t, vErr.FieldErrors, "shared_with[0].permission")
	})

	t.Run("site admin may only create camps for the active site", func(t *testing.T) {
		svc := newTestCampService(newMemoryRecords(), nil)

		_, err := svc.CreateCamp(context.Background(), CreateCampParams{
			Principal: siteAdmin("X"),
			Input:     CampInput{Name: "Güney", Site: "Y"},
		})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("rejects undetermined principals", func(t *testing.T) {
		svc := newTestCampService(newMemoryRecords(), nil)

		_, err := svc.CreateCamp(context.Background(), CreateCampParams{Input: CampInput{Name: "A", Site: "X"}})
		assert.ErrorIs(t, err, ErrAccessUndetermined)
	})
}

func TestCampService_UpdateCamp(t *testing.T) {
	records := newMemoryRecords()
	cache := &recordingInvalidator{}
	svc := newTestCampService(records, cache)
	records.addCamp(Camp{ID: "camp-a", Name: "A", OwnerEmail: "owner@example.com", Site: "X", IsPublic: true, SharedWithSites: []string{"Y"}})

	t.Run("keeps the site and invalidates old and new sharing targets", func(t *testing.T) {
		camp, err := svc.UpdateCamp(context.Background(), UpdateCampParams{
			Principal: siteAdmin("X"),
			CampID:    "camp-a",
			Input:     CampInput{Name: "A2", IsPublic: true, SharedWithSites: []string{"Z"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "X", camp.Site)
		assert.Equal(t, []string{"Z"}, camp.SharedWithSites)

		trigger, target := cache.last()
		assert.Equal(t, TriggerCampUpdate, trigger)
		assert.ElementsMatch(t, []string{"X", "Y", "Z"}, target.Sites)
	})

	t.Run("refuses to change the site", func(t *testing.T) {
		_, err := svc.UpdateCamp(context.Background(), UpdateCampParams{
			Principal: founder(),
			CampID:    "camp-a",
			Input:     CampInput{Name: "A3", Site: "Y"},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "site")
	})

	t.Run("requires write access", func(t *testing.T) {
		_, err := svc.UpdateCamp(context.Background(), UpdateCampParams{
			Principal: siteAdmin("Y"),
			CampID:    "camp-a",
			Input:     CampInput{Name: "A4"},
		})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown camp", func(t *testing.T) {
		_, err := svc.UpdateCamp(context.Background(), UpdateCampParams{
			Principal: founder(),
			CampID:    "missing",
			Input:     CampInput{Name: "A5"},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCampService_DeleteCamp(t *testing.T) {
	records := newMemoryRecords()
	cache := &recordingInvalidator{}
	svc := newTestCampService(records, cache)
	seedScenario(records, true)

	err := svc.DeleteCamp(context.Background(), ordinaryUser("u-9", "someone@example.com", true), "camp-a")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, svc.DeleteCamp(context.Background(), ordinaryUser("u-1", "owner.a@example.com", false), "camp-a"))
	_, err = records.GetCamp(context.Background(), "camp-a")
	assert.ErrorIs(t, err, ErrNotFound)
	workers, _ := records.ListWorkers(context.Background(), "camp-a")
	assert.Empty(t, workers)

	trigger, target := cache.last()
	assert.Equal(t, TriggerCampDelete, trigger)
	assert.Equal(t, []string{"camp-a"}, target.CampIDs)
}

func TestCampService_JoinAndLeave(t *testing.T) {
	records := newMemoryRecords()
	cache := &recordingInvalidator{}
	svc := newTestCampService(records, cache)
	seedScenario(records, true)
	ctx := context.Background()
	visitor := ordinaryUser("u-2", "Misafir@example.com", true)

	_, err := svc.JoinCamp(ctx, visitor, "camp-a")
	assert.ErrorIs(t, err, ErrUnauthorized, "private camps cannot be joined")

	camp, err := svc.JoinCamp(ctx, visitor, "camp-b")
	require.NoError(t, err)
	assert.Equal(t, []CampShare{{Email: "misafir@example.com", Permission: PermissionRead}}, camp.SharedWith)
	trigger, target := cache.last()
	assert.Equal(t, TriggerCampJoin, trigger)
	assert.Contains(t, target.Emails, "misafir@example.com")

	_, err = svc.JoinCamp(ctx, visitor, "camp-b")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.LeaveCamp(ctx, ordinaryUser("u-3", "owner.b@example.com", true), "camp-b")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "camp_id")

	camp, err = svc.LeaveCamp(ctx, visitor, "camp-b")
	require.NoError(t, err)
	assert.Empty(t, camp.SharedWith)
	trigger, target = cache.last()
	assert.Equal(t, TriggerCampLeave, trigger)
	assert.Contains(t, target.Emails, "misafir@example.com", "the leaving user's views are dropped too")

	_, err = svc.LeaveCamp(ctx, visitor, "camp-b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCampService_GetCamp(t *testing.T) {
	records := newMemoryRecords()
	svc := newTestCampService(records, nil)
	seedScenario(records, false)

	camp, err := svc.GetCamp(context.Background(), siteAdmin("X"), "camp-a")
	require.NoError(t, err)
	assert.Equal(t, "Kamp A", camp.Name)

	_, err = svc.GetCamp(context.Background(), siteAdmin("X"), "camp-b")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, mapRepoError(fmt.Errorf("get: %w", persistence.ErrNotFound), "", ""), ErrNotFound)
	assert.ErrorIs(t, mapRepoError(persistence.ErrDuplicate, "", ""), ErrAlreadyExists)

	var vErr *ValidationError
	require.ErrorAs(t, mapRepoError(persistence.ErrDuplicate, "number", "taken"), &vErr)
	assert.Equal(t, "taken", vErr.FieldErrors["number"])

	require.ErrorAs(t, mapRepoError(persistence.ErrConstraintViolation, "", ""), &vErr)
	assert.Contains(t, vErr.FieldErrors, "record")

	assert.NoError(t, mapRepoError(nil, "", ""))
}
