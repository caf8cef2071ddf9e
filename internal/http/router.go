package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Auth    *AuthHandler
	Stats   *StatsHandler
	Sites   *SiteHandler
	Camps   *CampHandler
	Rooms   *RoomHandler
	Workers *WorkerHandler
	// Sessions guards every route except POST /sessions and GET /metrics.
	Sessions SessionValidator
	// Gatherer backs GET /metrics when set.
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	responder := newResponder(defaultLogger(cfg.Logger))
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: localizedStatusMessage(http.StatusMethodNotAllowed)})
	})

	if cfg.Auth != nil {
		router.HandleFunc("/sessions", cfg.Auth.CreateSession).Methods(http.MethodPost)
	}
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	protected := router.NewRoute().Subrouter()
	if cfg.Sessions != nil {
		protected.Use(RequireSession(cfg.Sessions, cfg.Logger))
	}

	if cfg.Auth != nil {
		protected.HandleFunc("/sessions/current", cfg.Auth.DeleteCurrentSession).Methods(http.MethodDelete)
	}

	if cfg.Stats != nil {
		protected.HandleFunc("/stats", cfg.Stats.Get).Methods(http.MethodGet)
		protected.HandleFunc("/stats/invalidate", cfg.Stats.Invalidate).Methods(http.MethodPost)
	}

	if cfg.Sites != nil {
		protected.HandleFunc("/sites", cfg.Sites.List).Methods(http.MethodGet)
	}

	if cfg.Camps != nil {
		protected.HandleFunc("/camps", cfg.Camps.List).Methods(http.MethodGet)
		protected.HandleFunc("/camps", cfg.Camps.Create).Methods(http.MethodPost)
		protected.HandleFunc("/camps/{id}", cfg.Camps.Update).Methods(http.MethodPut)
		protected.HandleFunc("/camps/{id}", cfg.Camps.Delete).Methods(http.MethodDelete)
		protected.HandleFunc("/camps/{id}/join", cfg.Camps.Join).Methods(http.MethodPost)
		protected.HandleFunc("/camps/{id}/leave", cfg.Camps.Leave).Methods(http.MethodPost)
	}

	if cfg.Rooms != nil {
		protected.HandleFunc("/camps/{id}/rooms", cfg.Rooms.List).Methods(http.MethodGet)
		protected.HandleFunc("/camps/{id}/rooms", cfg.Rooms.Create).Methods(http.MethodPost)
		protected.HandleFunc("/camps/{id}/rooms/import", cfg.Rooms.Import).Methods(http.MethodPost)
		protected.HandleFunc("/rooms/{id}", cfg.Rooms.Update).Methods(http.MethodPut)
		protected.HandleFunc("/rooms/{id}", cfg.Rooms.Delete).Methods(http.MethodDelete)
	}

	if cfg.Workers != nil {
		protected.HandleFunc("/camps/{id}/workers", cfg.Workers.List).Methods(http.MethodGet)
		protected.HandleFunc("/camps/{id}/workers/import", cfg.Workers.Import).Methods(http.MethodPost)
		protected.HandleFunc("/rooms/{id}/workers", cfg.Workers.Create).Methods(http.MethodPost)
		protected.HandleFunc("/workers/{id}", cfg.Workers.Update).Methods(http.MethodPut)
		protected.HandleFunc("/workers/{id}", cfg.Workers.Delete).Methods(http.MethodDelete)
		protected.HandleFunc("/workers/{id}/move", cfg.Workers.Move).Methods(http.MethodPost)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
