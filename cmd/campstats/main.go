package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/camp-occupancy/internal/application"
	"github.com/example/camp-occupancy/internal/config"
	httptransport "github.com/example/camp-occupancy/internal/http"
	"github.com/example/camp-occupancy/internal/logging"
	"github.com/example/camp-occupancy/internal/persistence"
	"github.com/example/camp-occupancy/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger(os.Stdout, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stdout, cfg.LogLevel)

	storage, err := openStorage(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		logger.Error("failed to prepare storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := newApp(cfg, storage, registry, time.Now, logger)
	defer app.shutdown()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("campstats API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// openStorage opens the database, checks the connection and applies the
// migrations. The store is closed again on failure.
func openStorage(ctx context.Context, dsn string, logger *slog.Logger) (*sqlite.Store, error) {
	storage, err := sqlite.OpenWithLogger(dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := storage.Ping(pingCtx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("ping storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}

// app holds the wired HTTP handler and the state that needs draining on exit.
type app struct {
	handler http.Handler
	stats   *application.StatsService
	cache   *application.StatsCache
}

// store is the persistence surface the server needs.
type store interface {
	persistence.UserRepository
	persistence.SiteRepository
	persistence.CampRepository
	persistence.RoomRepository
	persistence.WorkerRepository
}

func newApp(cfg config.Config, storage store, registry *prometheus.Registry, now func() time.Time, logger *slog.Logger) *app {
	idGenerator := func() string { return uuid.NewString() }

	camps := newCampRepositoryAdapter(storage)
	rooms := newRoomRepositoryAdapter(storage)
	workers := newWorkerRepositoryAdapter(storage)
	sites := newSiteDirectoryAdapter(storage)
	credentials := newCredentialStoreAdapter(storage)

	metrics := application.NewMetrics(registry)
	cache := application.NewStatsCache(cfg.CacheMaxEntries, now, metrics)
	collector := application.NewStatCollector(rooms, workers, cfg.CollectTimeout, metrics, logger)
	aggregator := application.NewAggregator(collector, cfg.CollectConcurrency, now, metrics, logger)
	statsService := application.NewStatsService(camps, aggregator, cache, application.StatsServiceConfig{
		TTL:            application.TTLPolicy{Privileged: cfg.PrivilegedStatsTTL, User: cfg.UserStatsTTL},
		RefreshTimeout: cfg.RefreshTimeout,
		Metrics:        metrics,
		Logger:         logger,
	})

	campService := application.NewCampServiceWithLogger(camps, cache, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(camps, rooms, workers, cache, idGenerator, now, logger)
	workerService := application.NewWorkerServiceWithLogger(camps, rooms, workers, cache, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(credentials, statsService, nil, []byte(cfg.SessionSecret), now, cfg.SessionTTL, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(authService, logger),
		Stats:      httptransport.NewStatsHandler(statsService, logger),
		Sites:      httptransport.NewSiteHandler(sites, logger),
		Camps:      httptransport.NewCampHandler(campService, statsService, logger),
		Rooms:      httptransport.NewRoomHandler(roomService, logger),
		Workers:    httptransport.NewWorkerHandler(workerService, logger),
		Sessions:   authService,
		Gatherer:   registry,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{handler: handler, stats: statsService, cache: cache}
}

// shutdown waits for detached refreshes and drops every cached view.
func (a *app) shutdown() {
	a.stats.Wait()
	a.cache.Purge()
}

// toApplicationError translates persistence sentinels the services match on
// directly. Others pass through for the services to map.
func toApplicationError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return application.ErrNotFound
	}
	return err
}

type campRepositoryAdapter struct {
	repo persistence.CampRepository
}

func newCampRepositoryAdapter(repo persistence.CampRepository) *campRepositoryAdapter {
	return &campRepositoryAdapter{repo: repo}
}

func (a *campRepositoryAdapter) GetCamp(ctx context.Context, id string) (application.Camp, error) {
	stored, err := a.repo.GetCamp(ctx, id)
	if err != nil {
		return application.Camp{}, toApplicationError(err)
	}
	return toApplicationCamp(stored), nil
}

func (a *campRepositoryAdapter) ListCamps(ctx context.Context, filter application.CampFilter) ([]application.Camp, error) {
	stored, err := a.repo.ListCamps(ctx, persistence.CampFilter{IDs: filter.IDs, Site: filter.Site})
	if err != nil {
		return nil, toApplicationError(err)
	}
	camps := make([]application.Camp, 0, len(stored))
	for _, camp := range stored {
		camps = append(camps, toApplicationCamp(camp))
	}
	return camps, nil
}

func (a *campRepositoryAdapter) CreateCamp(ctx context.Context, camp application.Camp) (application.Camp, error) {
	if err := a.repo.CreateCamp(ctx, toPersistenceCamp(camp)); err != nil {
		return application.Camp{}, toApplicationError(err)
	}
	return a.GetCamp(ctx, camp.ID)
}

func (a *campRepositoryAdapter) UpdateCamp(ctx context.Context, camp application.Camp) (application.Camp, error) {
	if err := a.repo.UpdateCamp(ctx, toPersistenceCamp(camp)); err != nil {
		return application.Camp{}, toApplicationError(err)
	}
	return a.GetCamp(ctx, camp.ID)
}

func (a *campRepositoryAdapter) DeleteCamp(ctx context.Context, id string) error {
	return toApplicationError(a.repo.DeleteCamp(ctx, id))
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context, campID string) ([]application.Room, error) {
	stored, err := a.repo.ListRoomsByCamp(ctx, campID)
	if err != nil {
		return nil, toApplicationError(err)
	}
	rooms := make([]application.Room, 0, len(stored))
	for _, room := range stored {
		rooms = append(rooms, toApplicationRoom(room))
	}
	return rooms, nil
}

func (a *roomRepositoryAdapter) CreateRooms(ctx context.Context, rooms []application.Room) ([]application.Room, error) {
	models := make([]persistence.Room, 0, len(rooms))
	for _, room := range rooms {
		models = append(models, toPersistenceRoom(room))
	}
	if err := a.repo.CreateRooms(ctx, models); err != nil {
		return nil, toApplicationError(err)
	}
	return append([]application.Room(nil), rooms...), nil
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, toApplicationError(err)
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, toApplicationError(err)
	}
	return room, nil
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return toApplicationError(a.repo.DeleteRoom(ctx, id))
}

type workerRepositoryAdapter struct {
	repo persistence.WorkerRepository
}

func newWorkerRepositoryAdapter(repo persistence.WorkerRepository) *workerRepositoryAdapter {
	return &workerRepositoryAdapter{repo: repo}
}

func (a *workerRepositoryAdapter) ListWorkers(ctx context.Context, campID string) ([]application.Worker, error) {
	stored, err := a.repo.ListWorkersByCamp(ctx, campID)
	if err != nil {
		return nil, toApplicationError(err)
	}
	workers := make([]application.Worker, 0, len(stored))
	for _, worker := range stored {
		workers = append(workers, toApplicationWorker(worker))
	}
	return workers, nil
}

func (a *workerRepositoryAdapter) CreateWorkers(ctx context.Context, workers []application.Worker) ([]application.Worker, error) {
	models := make([]persistence.Worker, 0, len(workers))
	for _, worker := range workers {
		models = append(models, toPersistenceWorker(worker))
	}
	if err := a.repo.CreateWorkers(ctx, models); err != nil {
		return nil, toApplicationError(err)
	}
	return append([]application.Worker(nil), workers...), nil
}

func (a *workerRepositoryAdapter) GetWorker(ctx context.Context, id string) (application.Worker, error) {
	stored, err := a.repo.GetWorker(ctx, id)
	if err != nil {
		return application.Worker{}, toApplicationError(err)
	}
	return toApplicationWorker(stored), nil
}

func (a *workerRepositoryAdapter) UpdateWorker(ctx context.Context, worker application.Worker) (application.Worker, error) {
	if err := a.repo.UpdateWorker(ctx, toPersistenceWorker(worker)); err != nil {
		return application.Worker{}, toApplicationError(err)
	}
	return worker, nil
}

func (a *workerRepositoryAdapter) CountWorkersInRoom(ctx context.Context, roomID string) (int, error) {
	count, err := a.repo.CountWorkersInRoom(ctx, roomID)
	return count, toApplicationError(err)
}

func (a *workerRepositoryAdapter) MoveWorker(ctx context.Context, workerID, roomID, campID string) (application.Worker, error) {
	if err := a.repo.MoveWorker(ctx, workerID, roomID, campID); err != nil {
		return application.Worker{}, toApplicationError(err)
	}
	return a.GetWorker(ctx, workerID)
}

func (a *workerRepositoryAdapter) DeleteWorker(ctx context.Context, id string) error {
	return toApplicationError(a.repo.DeleteWorker(ctx, id))
}

type siteDirectoryAdapter struct {
	repo persistence.SiteRepository
}

func newSiteDirectoryAdapter(repo persistence.SiteRepository) *siteDirectoryAdapter {
	return &siteDirectoryAdapter{repo: repo}
}

func (a *siteDirectoryAdapter) ListSites(ctx context.Context) ([]application.Site, error) {
	stored, err := a.repo.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	sites := make([]application.Site, 0, len(stored))
	for _, site := range stored {
		sites = append(sites, application.Site{ID: site.ID, Name: site.Name})
	}
	return sites, nil
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, toApplicationError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:                 model.ID,
		Email:              model.Email,
		DisplayName:        model.DisplayName,
		Role:               model.Role,
		Site:               model.Site,
		SiteAccessApproved: model.SiteAccessApproved,
		CanViewCamps:       model.CanViewCamps,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

func toApplicationCamp(model persistence.Camp) application.Camp {
	camp := application.Camp{
		ID:              model.ID,
		Name:            model.Name,
		Description:     model.Description,
		OwnerEmail:      model.OwnerEmail,
		Site:            model.Site,
		IsPublic:        model.IsPublic,
		SharedWithSites: append([]string(nil), model.SharedWithSites...),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
	for _, share := range model.SharedWith {
		camp.SharedWith = append(camp.SharedWith, application.CampShare{
			Email:      share.Email,
			Permission: application.SharePermission(share.Permission),
		})
	}
	return camp
}

func toPersistenceCamp(camp application.Camp) persistence.Camp {
	model := persistence.Camp{
		ID:              camp.ID,
		Name:            camp.Name,
		Description:     camp.Description,
		OwnerEmail:      camp.OwnerEmail,
		Site:            camp.Site,
		IsPublic:        camp.IsPublic,
		SharedWithSites: append([]string(nil), camp.SharedWithSites...),
		CreatedAt:       camp.CreatedAt,
		UpdatedAt:       camp.UpdatedAt,
	}
	for _, share := range camp.SharedWith {
		model.SharedWith = append(model.SharedWith, persistence.CampShare{
			Email:      share.Email,
			Permission: string(share.Permission),
		})
	}
	return model
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:        model.ID,
		CampID:    model.CampID,
		Number:    model.Number,
		Capacity:  model.Capacity,
		Project:   model.Project,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		CampID:    room.CampID,
		Number:    room.Number,
		Capacity:  room.Capacity,
		Project:   room.Project,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationWorker(model persistence.Worker) application.Worker {
	return application.Worker{
		ID:             model.ID,
		CampID:         model.CampID,
		RoomID:         model.RoomID,
		FirstName:      model.FirstName,
		LastName:       model.LastName,
		RegistrationNo: model.RegistrationNo,
		Project:        model.Project,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func toPersistenceWorker(worker application.Worker) persistence.Worker {
	return persistence.Worker{
		ID:             worker.ID,
		CampID:         worker.CampID,
		RoomID:         worker.RoomID,
		FirstName:      worker.FirstName,
		LastName:       worker.LastName,
		RegistrationNo: worker.RegistrationNo,
		Project:        worker.Project,
		CreatedAt:      worker.CreatedAt,
		UpdatedAt:      worker.UpdatedAt,
	}
}
