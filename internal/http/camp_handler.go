package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/camp-occupancy/internal/application"
)

type campService interface {
	CreateCamp(ctx context.Context, params application.CreateCampParams) (application.Camp, error)
	UpdateCamp(ctx context.Context, params application.UpdateCampParams) (application.Camp, error)
	DeleteCamp(ctx context.Context, principal application.Principal, campID string) error
	JoinCamp(ctx context.Context, principal application.Principal, campID string) (application.Camp, error)
	LeaveCamp(ctx context.Context, principal application.Principal, campID string) (application.Camp, error)
}

// visibleCampLister serves the cached list of camps a principal may see.
type visibleCampLister interface {
	ListVisibleCamps(ctx context.Context, principal application.Principal) ([]application.Camp, bool, error)
}

type CampHandler struct {
	service   campService
	lister    visibleCampLister
	responder responder
	logger    *slog.Logger
}

func NewCampHandler(service campService, lister visibleCampLister, logger *slog.Logger) *CampHandler {
	base := defaultLogger(logger)
	return &CampHandler{service: service, lister: lister, responder: newResponder(base), logger: base}
}

func (h *CampHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CampHandler", operation, attrs...)
}

// List handles GET /camps.
func (h *CampHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.lister == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	camps, stale, err := h.lister.ListVisibleCamps(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "camp list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(camps), "stale", stale).InfoContext(r.Context(), "camps listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCampsResponse{Camps: toCampDTOs(camps), Stale: stale})
}

// Create handles POST /camps.
func (h *CampHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}

	var req campRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode camp request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	camp, err := h.service.CreateCamp(r.Context(), application.CreateCampParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "camp creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("camp_id", camp.ID).InfoContext(r.Context(), "camp created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, campResponse{Camp: toCampDTO(camp)})
}

// Update handles PUT /camps/{id}.
func (h *CampHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	campID := pathID(r)
	if campID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCampID)
		return
	}

	var req campRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "camp_id", campID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode camp update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "camp_id", campID)
	camp, err := h.service.UpdateCamp(r.Context(), application.UpdateCampParams{
		Principal: principal,
		CampID:    campID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "camp update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "camp updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, campResponse{Camp: toCampDTO(camp)})
}

// Delete handles DELETE /camps/{id}.
func (h *CampHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	campID := pathID(r)
	if campID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCampID)
		return
	}

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "camp_id", campID)
	if err := h.service.DeleteCamp(r.Context(), principal, campID); err != nil {
		logger.ErrorContext(r.Context(), "camp delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "camp deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Join handles POST /camps/{id}/join.
func (h *CampHandler) Join(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.membership(w, r, "Join", h.service.JoinCamp)
}

// Leave handles POST /camps/{id}/leave.
func (h *CampHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.membership(w, r, "Leave", h.service.LeaveCamp)
}

func (h *CampHandler) membership(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, application.Principal, string) (application.Camp, error)) {
	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	campID := pathID(r)
	if campID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCampID)
		return
	}

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "camp_id", campID)
	camp, err := apply(r.Context(), principal, campID)
	if err != nil {
		logger.ErrorContext(r.Context(), "camp membership change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "camp membership changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, campResponse{Camp: toCampDTO(camp)})
}

// pathID returns the {id} route variable.
func pathID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}

type campRequest struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Site            string     `json:"site"`
	IsPublic        bool       `json:"is_public"`
	SharedWithSites []string   `json:"shared_with_sites"`
	SharedWith      []shareDTO `json:"shared_with"`
}

func (r campRequest) toInput() application.CampInput {
	input := application.CampInput{
		Name:            r.Name,
		Description:     r.Description,
		Site:            r.Site,
		IsPublic:        r.IsPublic,
		SharedWithSites: r.SharedWithSites,
	}
	for _, share := range r.SharedWith {
		input.SharedWith = append(input.SharedWith, application.CampShare{
			Email:      share.Email,
			Permission: application.SharePermission(share.Permission),
		})
	}
	return input
}

type shareDTO struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

type campResponse struct {
	Camp campDTO `json:"camp"`
}

type listCampsResponse struct {
	Camps []campDTO `json:"camps"`
	Stale bool      `json:"stale"`
}

type campDTO struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	OwnerEmail      string     `json:"owner_email"`
	Site            string     `json:"site"`
	IsPublic        bool       `json:"is_public"`
	SharedWithSites []string   `json:"shared_with_sites,omitempty"`
	SharedWith      []shareDTO `json:"shared_with,omitempty"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

func toCampDTO(camp application.Camp) campDTO {
	dto := campDTO{
		ID:              camp.ID,
		Name:            camp.Name,
		Description:     camp.Description,
		OwnerEmail:      camp.OwnerEmail,
		Site:            camp.Site,
		IsPublic:        camp.IsPublic,
		SharedWithSites: camp.SharedWithSites,
		CreatedAt:       camp.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       camp.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, share := range camp.SharedWith {
		dto.SharedWith = append(dto.SharedWith, shareDTO{Email: share.Email, Permission: string(share.Permission)})
	}
	return dto
}

func toCampDTOs(camps []application.Camp) []campDTO {
	out := make([]campDTO, 0, len(camps))
	for _, camp := range camps {
		out = append(out, toCampDTO(camp))
	}
	return out
}
