package testfixtures

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/camp-occupancy/internal/application"
)

// ServiceFactory assists tests with constructing the statistics engine using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// EngineDeps captures the record store collaborators of the engine. Zero
// settings fall back to test friendly defaults.
type EngineDeps struct {
	Camps       application.CampRepository
	Rooms       application.RoomRepository
	Workers     application.WorkerRepository
	Credentials application.CredentialStore

	TTL            application.TTLPolicy
	CollectTimeout time.Duration
	RefreshTimeout time.Duration
	Concurrency    int
	MaxEntries     int
	SessionSecret  []byte
	Registry       *prometheus.Registry
	Logger         *slog.Logger
}

// Engine bundles the wired services.
type Engine struct {
	Registry *prometheus.Registry
	Metrics  *application.Metrics
	Cache    *application.StatsCache
	Stats    *application.StatsService
	Camps    *application.CampService
	Rooms    *application.RoomService
	Workers  *application.WorkerService
	Auth     *application.AuthService
}

// NewEngine wires the cache, collector, aggregator and services the same way
// the server does, with the factory clock and identifiers.
func (f *ServiceFactory) NewEngine(deps EngineDeps) *Engine {
	now := f.Clock.NowFunc()
	idGen := f.IDGenerator.NextFunc()

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if deps.CollectTimeout <= 0 {
		deps.CollectTimeout = time.Second
	}
	if deps.RefreshTimeout < deps.CollectTimeout {
		deps.RefreshTimeout = 10 * deps.CollectTimeout
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	if deps.MaxEntries <= 0 {
		deps.MaxEntries = 64
	}
	if len(deps.SessionSecret) == 0 {
		deps.SessionSecret = []byte("test-secret")
	}

	metrics := application.NewMetrics(registry)
	cache := application.NewStatsCache(deps.MaxEntries, now, metrics)
	collector := application.NewStatCollector(deps.Rooms, deps.Workers, deps.CollectTimeout, metrics, deps.Logger)
	aggregator := application.NewAggregator(collector, deps.Concurrency, now, metrics, deps.Logger)
	stats := application.NewStatsService(deps.Camps, aggregator, cache, application.StatsServiceConfig{
		TTL:            deps.TTL,
		RefreshTimeout: deps.RefreshTimeout,
		Metrics:        metrics,
		Logger:         deps.Logger,
	})

	return &Engine{
		Registry: registry,
		Metrics:  metrics,
		Cache:    cache,
		Stats:    stats,
		Camps:    application.NewCampServiceWithLogger(deps.Camps, cache, idGen, now, deps.Logger),
		Rooms:    application.NewRoomServiceWithLogger(deps.Camps, deps.Rooms, deps.Workers, cache, idGen, now, deps.Logger),
		Workers:  application.NewWorkerServiceWithLogger(deps.Camps, deps.Rooms, deps.Workers, cache, idGen, now, deps.Logger),
		Auth:     application.NewAuthServiceWithLogger(deps.Credentials, stats, nil, deps.SessionSecret, now, time.Hour, deps.Logger),
	}
}

// NewMemoryEngine seeds a MemoryStore with scenario and wires an engine over it.
func (f *ServiceFactory) NewMemoryEngine(scenario Scenario) (*Engine, *MemoryStore) {
	store := NewMemoryStore()
	store.Seed(scenario)
	engine := f.NewEngine(EngineDeps{
		Camps:       store,
		Rooms:       store,
		Workers:     store,
		Credentials: store,
	})
	return engine, store
}
