package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/example/camp-occupancy/internal/application"
)

type statsService interface {
	GetAggregateStats(ctx context.Context, principal application.Principal) (application.StatsResult, error)
	InvalidateStatsFor(ctx context.Context, principal application.Principal, target application.StatsTarget) (int, error)
}

type StatsHandler struct {
	service   statsService
	responder responder
	logger    *slog.Logger
}

func NewStatsHandler(service statsService, logger *slog.Logger) *StatsHandler {
	base := defaultLogger(logger)
	return &StatsHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *StatsHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "StatsHandler", operation, attrs...)
}

// Get handles GET /stats. Record store failures never fail the request; they
// surface through the stale, partial and failed_camps flags.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID)

	result, err := h.service.GetAggregateStats(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "stats lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("stale", result.Stale, "partial", result.Partial, "failed_camps", result.FailedCamps).InfoContext(r.Context(), "stats served")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statsResponse{
		Data:        toStatsDTO(result.Data),
		Stale:       result.Stale,
		Partial:     result.Partial,
		FailedCamps: result.FailedCamps,
	})
}

// Invalidate handles POST /stats/invalidate.
func (h *StatsHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Invalidate", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode invalidation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	target := application.StatsTarget{CampID: strings.TrimSpace(req.CampID), Site: strings.TrimSpace(req.Site)}
	logger := h.log(r.Context(), "Invalidate", "principal_id", principal.UserID, "camp_id", target.CampID, "site", target.Site)

	removed, err := h.service.InvalidateStatsFor(r.Context(), principal, target)
	if err != nil {
		logger.ErrorContext(r.Context(), "stats invalidation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("removed", removed).InfoContext(r.Context(), "stats invalidated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, invalidateResponse{Removed: removed})
}

type invalidateRequest struct {
	CampID string `json:"camp_id"`
	Site   string `json:"site"`
}

type invalidateResponse struct {
	Removed int `json:"removed"`
}

type statsResponse struct {
	Data        statsDTO `json:"data"`
	Stale       bool     `json:"stale"`
	Partial     bool     `json:"partial"`
	FailedCamps int      `json:"failed_camps"`
}

type statsDTO struct {
	Mode                string                 `json:"mode"`
	SiteAttributionAxis string                 `json:"site_attribution_axis"`
	TotalWorkers        int                    `json:"total_workers"`
	TotalBeds           int                    `json:"total_beds"`
	OccupiedBeds        int                    `json:"occupied_beds"`
	AvailableBeds       int                    `json:"available_beds"`
	OccupancyRate       int                    `json:"occupancy_rate"`
	TotalCamps          int                    `json:"total_camps"`
	TotalSites          int                    `json:"total_sites"`
	FailedCampIDs       []string               `json:"failed_camp_ids,omitempty"`
	PerSite             map[string]siteStatDTO `json:"per_site"`
	Sites               []siteStatDTO          `json:"sites"`
	Camps               []campStatDTO          `json:"camps"`
	Violations          []violationDTO         `json:"violations"`
	ComputedAt          string                 `json:"computed_at,omitempty"`
}

type siteStatDTO struct {
	Site          string `json:"site"`
	Workers       int    `json:"workers"`
	Capacity      int    `json:"capacity"`
	Camps         int    `json:"camps"`
	OccupancyRate int    `json:"occupancy_rate"`
}

type campStatDTO struct {
	CampID        string  `json:"camp_id"`
	CampSite      string  `json:"camp_site"`
	Rooms         int     `json:"rooms"`
	TotalCapacity int     `json:"total_capacity"`
	TotalWorkers  int     `json:"total_workers"`
	OccupiedBeds  int     `json:"occupied_beds"`
	AvailableBeds int     `json:"available_beds"`
	OccupancyRate float64 `json:"occupancy_rate"`
	Unassigned    int     `json:"unassigned"`
}

type violationDTO struct {
	CampID    string `json:"camp_id"`
	RoomID    string `json:"room_id"`
	Number    string `json:"number"`
	Capacity  int    `json:"capacity"`
	Occupants int    `json:"occupants"`
}

// toStatsDTO flattens an aggregate. Sites are listed in Turkish collation
// order and camps by id.
func toStatsDTO(stats application.AggregateStats) statsDTO {
	dto := statsDTO{
		Mode:                string(stats.Mode),
		SiteAttributionAxis: string(stats.SiteAttributionAxis),
		TotalWorkers:        stats.TotalWorkers,
		TotalBeds:           stats.TotalBeds,
		OccupiedBeds:        stats.OccupiedBeds,
		AvailableBeds:       stats.AvailableBeds,
		OccupancyRate:       stats.OccupancyRate,
		TotalCamps:          stats.TotalCamps,
		TotalSites:          stats.TotalSites,
		FailedCampIDs:       stats.FailedCampIDs,
		PerSite:             make(map[string]siteStatDTO, len(stats.PerSite)),
		Sites:               make([]siteStatDTO, 0, len(stats.PerSite)),
		Camps:               make([]campStatDTO, 0, len(stats.PerCamp)),
		Violations:          make([]violationDTO, 0, len(stats.Violations)),
	}
	if !stats.ComputedAt.IsZero() {
		dto.ComputedAt = stats.ComputedAt.UTC().Format(time.RFC3339Nano)
	}

	names := make([]string, 0, len(stats.PerSite))
	for site, stat := range stats.PerSite {
		dto.PerSite[site] = siteStatDTO{
			Site:          site,
			Workers:       stat.Workers,
			Capacity:      stat.Capacity,
			Camps:         stat.Camps,
			OccupancyRate: stat.OccupancyRate,
		}
		names = append(names, site)
	}
	sortSiteNames(names)
	for _, site := range names {
		dto.Sites = append(dto.Sites, dto.PerSite[site])
	}

	for _, stat := range stats.PerCamp {
		dto.Camps = append(dto.Camps, campStatDTO{
			CampID:        stat.CampID,
			CampSite:      stat.CampSite,
			Rooms:         stat.Rooms,
			TotalCapacity: stat.TotalCapacity,
			TotalWorkers:  stat.TotalWorkers,
			OccupiedBeds:  stat.OccupiedBeds,
			AvailableBeds: stat.AvailableBeds,
			OccupancyRate: stat.OccupancyRate,
			Unassigned:    stat.Unassigned,
		})
	}
	sort.Slice(dto.Camps, func(i, j int) bool { return dto.Camps[i].CampID < dto.Camps[j].CampID })

	for _, v := range stats.Violations {
		dto.Violations = append(dto.Violations, violationDTO{
			CampID:    v.CampID,
			RoomID:    v.RoomID,
			Number:    v.Number,
			Capacity:  v.Capacity,
			Occupants: v.Occupants,
		})
	}
	return dto
}

// requirePrincipal writes a 401 and reports false when the request carries no principal.
func requirePrincipal(ctx context.Context, w http.ResponseWriter, responder responder) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		responder.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: codeInvalidSession,
			Message:   errMissingSessionToken.Error(),
		})
		return application.Principal{}, false
	}
	return principal, true
}
