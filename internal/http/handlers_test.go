package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/camp-occupancy/internal/application"
)

const validToken = "valid-token"

var testNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func siteAdminX() application.Principal {
	return application.Principal{
		UserID:      "admin-X",
		Email:       "admin.x@example.com",
		DisplayName: "Site Admin X",
		Role:        application.SiteAdminRole{Site: "X"},
	}
}

type stubSessions struct {
	principal application.Principal
	err       error
}

func (s *stubSessions) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	if s.err != nil {
		return application.Principal{}, s.err
	}
	if token != validToken {
		return application.Principal{}, fmt.Errorf("%w: signature is invalid", application.ErrUnauthorized)
	}
	return s.principal, nil
}

type stubAuth struct {
	result application.AuthenticateResult
	err    error
	params []application.AuthenticateParams
	ended  []application.Principal
}

func (s *stubAuth) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.params = append(s.params, params)
	return s.result, s.err
}

func (s *stubAuth) EndSession(_ context.Context, principal application.Principal) error {
	s.ended = append(s.ended, principal)
	return nil
}

type stubStats struct {
	result  application.StatsResult
	err     error
	targets []application.StatsTarget
	removed int
	camps   []application.Camp
	stale   bool
}

func (s *stubStats) GetAggregateStats(context.Context, application.Principal) (application.StatsResult, error) {
	return s.result, s.err
}

func (s *stubStats) InvalidateStatsFor(_ context.Context, _ application.Principal, target application.StatsTarget) (int, error) {
	s.targets = append(s.targets, target)
	return s.removed, s.err
}

func (s *stubStats) ListVisibleCamps(context.Context, application.Principal) ([]application.Camp, bool, error) {
	return s.camps, s.stale, s.err
}

type stubSites struct {
	sites []application.Site
	err   error
}

func (s *stubSites) ListSites(context.Context) ([]application.Site, error) {
	return append([]application.Site(nil), s.sites...), s.err
}

// stubRecords implements the camp, room and worker services. Every call is
// recorded as "Method:id" and err, when set, is returned instead of a result.
type stubRecords struct {
	err   error
	calls []string
	camp  application.CampInput
	room  application.RoomInput
	rows  []application.WorkerImportRow
	move  application.MoveWorkerParams
}

func (s *stubRecords) record(call, id string) {
	s.calls = append(s.calls, call+":"+id)
}

func (s *stubRecords) CreateCamp(_ context.Context, params application.CreateCampParams) (application.Camp, error) {
	s.record("CreateCamp", "")
	s.camp = params.Input
	if s.err != nil {
		return application.Camp{}, s.err
	}
	return application.Camp{ID: "camp-new", Name: params.Input.Name, Site: params.Input.Site, OwnerEmail: params.Principal.Email, CreatedAt: testNow, UpdatedAt: testNow}, nil
}

func (s *stubRecords) UpdateCamp(_ context.Context, params application.UpdateCampParams) (application.Camp, error) {
	s.record("UpdateCamp", params.CampID)
	s.camp = params.Input
	return application.Camp{ID: params.CampID, Name: params.Input.Name}, s.err
}

func (s *stubRecords) DeleteCamp(_ context.Context, _ application.Principal, campID string) error {
	s.record("DeleteCamp", campID)
	return s.err
}

func (s *stubRecords) JoinCamp(_ context.Context, _ application.Principal, campID string) (application.Camp, error) {
	s.record("JoinCamp", campID)
	return application.Camp{ID: campID}, s.err
}

func (s *stubRecords) LeaveCamp(_ context.Context, _ application.Principal, campID string) (application.Camp, error) {
	s.record("LeaveCamp", campID)
	return application.Camp{ID: campID}, s.err
}

func (s *stubRecords) CreateRoom(_ context.Context, params application.CreateRoomParams) (application.Room, error) {
	s.record("CreateRoom", params.CampID)
	s.room = params.Input
	return application.Room{ID: "room-new", CampID: params.CampID, Number: params.Input.Number, Capacity: params.Input.Capacity}, s.err
}

func (s *stubRecords) ImportRooms(_ context.Context, params application.ImportRoomsParams) ([]application.Room, error) {
	s.record("ImportRooms", params.CampID)
	if s.err != nil {
		return nil, s.err
	}
	rooms := make([]application.Room, 0, len(params.Inputs))
	for i, input := range params.Inputs {
		rooms = append(rooms, application.Room{ID: fmt.Sprintf("room-%d", i), CampID: params.CampID, Number: input.Number})
	}
	return rooms, nil
}

func (s *stubRecords) UpdateRoom(_ context.Context, params application.UpdateRoomParams) (application.Room, error) {
	s.record("UpdateRoom", params.RoomID)
	s.room = params.Input
	return application.Room{ID: params.RoomID}, s.err
}

func (s *stubRecords) DeleteRoom(_ context.Context, _ application.Principal, roomID string) error {
	s.record("DeleteRoom", roomID)
	return s.err
}

func (s *stubRecords) ListRooms(_ context.Context, _ application.Principal, campID string) ([]application.Room, error) {
	s.record("ListRooms", campID)
	return []application.Room{{ID: "room-1", CampID: campID, Number: "101", Capacity: 4}}, s.err
}

func (s *stubRecords) CreateWorker(_ context.Context, params application.CreateWorkerParams) (application.Worker, error) {
	s.record("CreateWorker", params.RoomID)
	return application.Worker{ID: "worker-new", RoomID: params.RoomID, FirstName: params.Input.FirstName}, s.err
}

func (s *stubRecords) ImportWorkers(_ context.Context, params application.ImportWorkersParams) ([]application.Worker, error) {
	s.record("ImportWorkers", params.CampID)
	s.rows = params.Rows
	return nil, s.err
}

func (s *stubRecords) UpdateWorker(_ context.Context, params application.UpdateWorkerParams) (application.Worker, error) {
	s.record("UpdateWorker", params.WorkerID)
	return application.Worker{ID: params.WorkerID}, s.err
}

func (s *stubRecords) MoveWorker(_ context.Context, params application.MoveWorkerParams) (application.Worker, error) {
	s.record("MoveWorker", params.WorkerID)
	s.move = params
	return application.Worker{ID: params.WorkerID, RoomID: params.TargetRoomID}, s.err
}

func (s *stubRecords) DeleteWorker(_ context.Context, _ application.Principal, workerID string) error {
	s.record("DeleteWorker", workerID)
	return s.err
}

func (s *stubRecords) ListWorkers(_ context.Context, _ application.Principal, campID string) ([]application.Worker, error) {
	s.record("ListWorkers", campID)
	return nil, s.err
}

type routerHarness struct {
	handler  http.Handler
	sessions *stubSessions
	auth     *stubAuth
	stats    *stubStats
	sites    *stubSites
	records  *stubRecords
	registry *prometheus.Registry
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &routerHarness{
		sessions: &stubSessions{principal: siteAdminX()},
		auth:     &stubAuth{},
		stats:    &stubStats{},
		sites:    &stubSites{},
		records:  &stubRecords{},
		registry: prometheus.NewRegistry(),
	}
	h.handler = NewRouter(RouterConfig{
		Auth:     NewAuthHandler(h.auth, logger),
		Stats:    NewStatsHandler(h.stats, logger),
		Sites:    NewSiteHandler(h.sites, logger),
		Camps:    NewCampHandler(h.records, h.stats, logger),
		Rooms:    NewRoomHandler(h.records, logger),
		Workers:  NewWorkerHandler(h.records, logger),
		Sessions: h.sessions,
		Gatherer: h.registry,
		Logger:   logger,
	})
	return h
}

func (h *routerHarness) do(t *testing.T, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+validToken)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		expires := testNow.Add(24 * time.Hour)
		h.auth.result = application.AuthenticateResult{
			User:      application.User{ID: "admin-X"},
			Principal: siteAdminX(),
			Token:     "issued-token",
			ExpiresAt: expires,
		}

		rec := h.do(t, http.MethodPost, "/sessions", `{"email":" Admin.X@Example.com ","password":"pw"}`, false)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "issued-token", rec.Header().Get("X-Session-Token"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, sessionCookieName, cookies[0].Name)
		assert.Equal(t, "issued-token", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)

		body := decodeBody[loginResponse](t, rec)
		assert.Equal(t, expires.Format(time.RFC3339Nano), body.ExpiresAt)
		assert.Equal(t, principalDTO{
			UserID:      "admin-X",
			Email:       "admin.x@example.com",
			DisplayName: "Site Admin X",
			Role:        application.RoleNameSiteAdmin,
			Site:        "X",
		}, body.Principal)
		require.Len(t, h.auth.params, 1)
		assert.Equal(t, "admin.x@example.com", h.auth.params[0].Email)
	})

	t.Run("invalid credentials map to 401", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.auth.err = application.ErrInvalidCredentials

		rec := h.do(t, http.MethodPost, "/sessions", `{"email":"a@example.com","password":"nope"}`, false)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, codeInvalidCredentials, decodeBody[errorResponse](t, rec).ErrorCode)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		rec := h.do(t, http.MethodPost, "/sessions", `{"email":`, false)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errBadRequestBody.Error(), decodeBody[errorResponse](t, rec).Message)
		assert.Empty(t, h.auth.params)
	})

	t.Run("logout ends the session and clears the cookie", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		rec := h.do(t, http.MethodDelete, "/sessions/current", "", true)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, h.auth.ended, 1)
		assert.Equal(t, "admin-X", h.auth.ended[0].UserID)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})
}

func TestStatsHandlers(t *testing.T) {
	t.Parallel()

	t.Run("serializes the aggregate with flags and ordered sites", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.stats.result = application.StatsResult{
			Data: application.AggregateStats{
				Mode:                application.ModeScoped,
				SiteAttributionAxis: application.AxisCampSite,
				TotalWorkers:        7,
				TotalBeds:           15,
				OccupiedBeds:        7,
				AvailableBeds:       8,
				OccupancyRate:       47,
				TotalCamps:          2,
				TotalSites:          3,
				FailedCamps:         1,
				FailedCampIDs:       []string{"camp-c"},
				Partial:             true,
				PerSite: map[string]application.SiteStat{
					"İçel":    {Workers: 4, Capacity: 10, Camps: 1, OccupancyRate: 40},
					"Ilgaz":   {Workers: 3, Capacity: 5, Camps: 1, OccupancyRate: 60},
					"Çankırı": {},
					"Cizre":   {},
				},
				PerCamp: map[string]application.CampStat{
					"camp-b": {CampID: "camp-b", CampSite: "Ilgaz", TotalCapacity: 5, TotalWorkers: 3},
					"camp-a": {CampID: "camp-a", CampSite: "İçel", TotalCapacity: 10, TotalWorkers: 4},
				},
				Violations: []application.CapacityViolation{{CampID: "camp-a", RoomID: "room-a2", Number: "102", Capacity: 2, Occupants: 3}},
				ComputedAt: testNow,
			},
			Stale:       true,
			Partial:     true,
			FailedCamps: 1,
		}

		rec := h.do(t, http.MethodGet, "/stats", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[statsResponse](t, rec)
		assert.True(t, body.Stale)
		assert.True(t, body.Partial)
		assert.Equal(t, 1, body.FailedCamps)
		assert.Equal(t, "scoped", body.Data.Mode)
		assert.Equal(t, "camp_site", body.Data.SiteAttributionAxis)
		assert.Equal(t, 47, body.Data.OccupancyRate)
		assert.Equal(t, []string{"camp-c"}, body.Data.FailedCampIDs)

		names := make([]string, 0, len(body.Data.Sites))
		for _, site := range body.Data.Sites {
			names = append(names, site.Site)
		}
		assert.Equal(t, []string{"Cizre", "Çankırı", "Ilgaz", "İçel"}, names)
		assert.Equal(t, 60, body.Data.PerSite["Ilgaz"].OccupancyRate)

		require.Len(t, body.Data.Camps, 2)
		assert.Equal(t, "camp-a", body.Data.Camps[0].CampID)
		require.Len(t, body.Data.Violations, 1)
		assert.Equal(t, 3, body.Data.Violations[0].Occupants)
		assert.Equal(t, testNow.Format(time.RFC3339Nano), body.Data.ComputedAt)
	})

	t.Run("empty aggregate still emits lists", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		rec := h.do(t, http.MethodGet, "/stats", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"sites":[]`)
		assert.Contains(t, rec.Body.String(), `"violations":[]`)
	})

	t.Run("undetermined access maps to 403", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.stats.err = application.ErrAccessUndetermined

		rec := h.do(t, http.MethodGet, "/stats", "", true)

		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, codeAccessUndetermined, decodeBody[errorResponse](t, rec).ErrorCode)
	})

	t.Run("invalidation forwards the target", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.stats.removed = 3

		rec := h.do(t, http.MethodPost, "/stats/invalidate", `{"site":" X "}`, true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, decodeBody[invalidateResponse](t, rec).Removed)
		assert.Equal(t, []application.StatsTarget{{Site: "X"}}, h.stats.targets)
	})

	t.Run("invalidation validation errors are localized", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.stats.err = &application.ValidationError{FieldErrors: map[string]string{"target": "exactly one of camp_id or site is required"}}

		rec := h.do(t, http.MethodPost, "/stats/invalidate", `{"camp_id":"a","site":"X"}`, true)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody[errorResponse](t, rec)
		assert.Equal(t, codeValidation, body.ErrorCode)
		assert.Equal(t, "camp_id veya site alanlarından yalnızca biri belirtilmelidir.", body.Errors["target"])
	})
}

func TestSiteHandlers(t *testing.T) {
	t.Parallel()

	h := newRouterHarness(t)
	h.sites.sites = []application.Site{
		{ID: "s1", Name: "Çankırı"},
		{ID: "s2", Name: "İçel"},
		{ID: "s3", Name: "Cizre"},
		{ID: "s4", Name: "Ilgaz"},
		{ID: "s5", Name: "Adana"},
	}

	rec := h.do(t, http.MethodGet, "/sites", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[listSitesResponse](t, rec)
	names := make([]string, 0, len(body.Sites))
	for _, site := range body.Sites {
		names = append(names, site.Name)
	}
	assert.Equal(t, []string{"Adana", "Cizre", "Çankırı", "Ilgaz", "İçel"}, names)
}

func TestCampHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list returns visible camps with the stale flag", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.stats.camps = []application.Camp{{ID: "camp-a", Site: "X"}}
		h.stats.stale = true

		rec := h.do(t, http.MethodGet, "/camps", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[listCampsResponse](t, rec)
		assert.True(t, body.Stale)
		require.Len(t, body.Camps, 1)
		assert.Equal(t, "camp-a", body.Camps[0].ID)
	})

	t.Run("create maps the request body", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		rec := h.do(t, http.MethodPost, "/camps", `{"name":"Kuzey","site":"X","is_public":true,"shared_with_sites":["Y"],"shared_with":[{"email":"b@example.com","permission":"write"}]}`, true)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, application.CampInput{
			Name:            "Kuzey",
			Site:            "X",
			IsPublic:        true,
			SharedWithSites: []string{"Y"},
			SharedWith:      []application.CampShare{{Email: "b@example.com", Permission: application.PermissionWrite}},
		}, h.records.camp)
		body := decodeBody[campResponse](t, rec)
		assert.Equal(t, "camp-new", body.Camp.ID)
		assert.Equal(t, "admin.x@example.com", body.Camp.OwnerEmail)
	})

	t.Run("validation errors are localized", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.records.err = &application.ValidationError{FieldErrors: map[string]string{
			"name":                      "name is required",
			"shared_with[0].permission": "permission must be read or write",
		}}

		rec := h.do(t, http.MethodPost, "/camps", `{}`, true)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeBody[errorResponse](t, rec)
		assert.Equal(t, map[string]string{
			"name":                      "Ad zorunludur.",
			"shared_with[0].permission": "Yetki read veya write olmalıdır.",
		}, body.Errors)
	})

	t.Run("path identifiers reach the service", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/camps/camp-a", `{"name":"Güney"}`, true).Code)
		assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/camps/camp-a", "", true).Code)
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/camps/camp-b/join", "", true).Code)
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/camps/camp-b/leave", "", true).Code)

		assert.Equal(t, []string{"UpdateCamp:camp-a", "DeleteCamp:camp-a", "JoinCamp:camp-b", "LeaveCamp:camp-b"}, h.records.calls)
	})

	t.Run("service sentinels map to status codes", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{application.ErrUnauthorized, http.StatusForbidden, codeForbidden},
			{application.ErrNotFound, http.StatusNotFound, codeNotFound},
			{application.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists},
			{errors.New("disk full"), http.StatusInternalServerError, ""},
		}
		for _, tc := range tests {
			h := newRouterHarness(t)
			h.records.err = tc.err

			rec := h.do(t, http.MethodDelete, "/camps/camp-a", "", true)

			assert.Equal(t, tc.status, rec.Code, tc.err.Error())
			assert.Equal(t, tc.code, decodeBody[errorResponse](t, rec).ErrorCode)
		}
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("routes nested and top level room paths", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		list := h.do(t, http.MethodGet, "/camps/camp-a/rooms", "", true)
		require.Equal(t, http.StatusOK, list.Code)
		assert.Len(t, decodeBody[listRoomsResponse](t, list).Rooms, 1)

		created := h.do(t, http.MethodPost, "/camps/camp-a/rooms", `{"number":"101","capacity":4,"project":"X"}`, true)
		require.Equal(t, http.StatusCreated, created.Code)
		assert.Equal(t, application.RoomInput{Number: "101", Capacity: 4, Project: "X"}, h.records.room)

		imported := h.do(t, http.MethodPost, "/camps/camp-a/rooms/import", `{"rooms":[{"number":"201","capacity":2},{"number":"202","capacity":2}]}`, true)
		require.Equal(t, http.StatusCreated, imported.Code)
		assert.Len(t, decodeBody[listRoomsResponse](t, imported).Rooms, 2)

		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/rooms/room-1", `{"number":"101","capacity":6}`, true).Code)
		assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/rooms/room-1", "", true).Code)

		assert.Equal(t, []string{
			"ListRooms:camp-a",
			"CreateRoom:camp-a",
			"ImportRooms:camp-a",
			"UpdateRoom:room-1",
			"DeleteRoom:room-1",
		}, h.records.calls)
	})

	t.Run("capacity below occupancy is localized", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.records.err = &application.ValidationError{FieldErrors: map[string]string{"capacity": "capacity is below current occupancy of 4"}}

		rec := h.do(t, http.MethodPut, "/rooms/room-1", `{"number":"101","capacity":2}`, true)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "Kapasite mevcut doluluğun altında kalamaz: 4", decodeBody[errorResponse](t, rec).Errors["capacity"])
	})
}

func TestWorkerHandlers(t *testing.T) {
	t.Parallel()

	t.Run("routes worker paths", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/camps/camp-a/workers", "", true).Code)
		assert.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/rooms/room-1/workers", `{"first_name":"Ali","last_name":"Kaya"}`, true).Code)
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/workers/worker-1", `{"first_name":"Ali","last_name":"Kaya"}`, true).Code)
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/workers/worker-1/move", `{"room_id":"room-2"}`, true).Code)
		assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/workers/worker-1", "", true).Code)

		assert.Equal(t, []string{
			"ListWorkers:camp-a",
			"CreateWorker:room-1",
			"UpdateWorker:worker-1",
			"MoveWorker:worker-1",
			"DeleteWorker:worker-1",
		}, h.records.calls)
		assert.Equal(t, "room-2", h.records.move.TargetRoomID)
		assert.Equal(t, "admin-X", h.records.move.Principal.UserID)
	})

	t.Run("import carries room ids per row", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		rec := h.do(t, http.MethodPost, "/camps/camp-a/workers/import", `{"workers":[{"room_id":"room-1","first_name":"Ayşe","last_name":"Demir","project":"Y"}]}`, true)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, []application.WorkerImportRow{{
			RoomID: "room-1",
			Input:  application.WorkerInput{FirstName: "Ayşe", LastName: "Demir", Project: "Y"},
		}}, h.records.rows)
	})

	t.Run("move without target room is rejected", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)

		rec := h.do(t, http.MethodPost, "/workers/worker-1/move", `{}`, true)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, h.records.calls)
	})

	t.Run("full room maps to 409", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		h.records.err = fmt.Errorf("%w: room 101 has 4 of 4 beds taken", application.ErrCapacityExceeded)

		rec := h.do(t, http.MethodPost, "/rooms/room-1/workers", `{"first_name":"Ali","last_name":"Kaya"}`, true)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, codeCapacityExceeded, decodeBody[errorResponse](t, rec).ErrorCode)
	})
}

func TestRouterFallbacks(t *testing.T) {
	t.Parallel()

	h := newRouterHarness(t)

	notFound := h.do(t, http.MethodGet, "/nowhere", "", true)
	assert.Equal(t, http.StatusNotFound, notFound.Code)
	assert.Equal(t, localizedStatusMessage(http.StatusNotFound), decodeBody[errorResponse](t, notFound).Message)

	wrongMethod := h.do(t, http.MethodPatch, "/camps", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, wrongMethod.Code)

	wrongSessionMethod := h.do(t, http.MethodGet, "/sessions", "", false)
	assert.Equal(t, http.StatusMethodNotAllowed, wrongSessionMethod.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newRouterHarness(t)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "campstats_test_total", Help: "Test counter."})
	h.registry.MustRegister(counter)
	counter.Add(2)

	rec := h.do(t, http.MethodGet, "/metrics", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campstats_test_total 2")
}
