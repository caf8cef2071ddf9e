package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/camp-occupancy/internal/application"
)

type workerService interface {
	CreateWorker(ctx context.Context, params application.CreateWorkerParams) (application.Worker, error)
	ImportWorkers(ctx context.Context, params application.ImportWorkersParams) ([]application.Worker, error)
	UpdateWorker(ctx context.Context, params application.UpdateWorkerParams) (application.Worker, error)
	MoveWorker(ctx context.Context, params application.MoveWorkerParams) (application.Worker, error)
	DeleteWorker(ctx context.Context, principal application.Principal, workerID string) error
	ListWorkers(ctx context.Context, principal application.Principal, campID string) ([]application.Worker, error)
}

type WorkerHandler struct {
	service   workerService
	responder responder
	logger    *slog.Logger
}

func NewWorkerHandler(service workerService, logger *slog.Logger) *WorkerHandler {
	base := defaultLogger(logger)
	return &WorkerHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WorkerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WorkerHandler", operation, attrs...)
}

// List handles GET /camps/{id}/workers.
func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
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

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "camp_id", campID)
	workers, err := h.service.ListWorkers(r.Context(), principal, campID)
	if err != nil {
		logger.ErrorContext(r.Context(), "worker list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(workers)).InfoContext(r.Context(), "workers listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listWorkersResponse{Workers: toWorkerDTOs(workers)})
}

// Create handles POST /rooms/{id}/workers.
func (h *WorkerHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	roomID := pathID(r)
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	var req workerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", roomID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode worker request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", roomID)
	worker, err := h.service.CreateWorker(r.Context(), application.CreateWorkerParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "worker creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("worker_id", worker.ID).InfoContext(r.Context(), "worker created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, workerResponse{Worker: toWorkerDTO(worker)})
}

// Import handles POST /camps/{id}/workers/import. The batch is all or nothing.
func (h *WorkerHandler) Import(w http.ResponseWriter, r *http.Request) {
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

	var req importWorkersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Import", "principal_id", principal.UserID, "camp_id", campID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode worker import", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	rows := make([]application.WorkerImportRow, 0, len(req.Workers))
	for _, row := range req.Workers {
		rows = append(rows, application.WorkerImportRow{
			RoomID: strings.TrimSpace(row.RoomID),
			Input:  row.workerRequest.toInput(),
		})
	}

	logger := h.log(r.Context(), "Import", "principal_id", principal.UserID, "camp_id", campID, "rows", len(rows))
	workers, err := h.service.ImportWorkers(r.Context(), application.ImportWorkersParams{
		Principal: principal,
		CampID:    campID,
		Rows:      rows,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "worker import failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "workers imported")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listWorkersResponse{Workers: toWorkerDTOs(workers)})
}

// Update handles PUT /workers/{id}.
func (h *WorkerHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	workerID := pathID(r)
	if workerID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	var req workerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "worker_id", workerID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode worker update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "worker_id", workerID)
	worker, err := h.service.UpdateWorker(r.Context(), application.UpdateWorkerParams{
		Principal: principal,
		WorkerID:  workerID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "worker update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "worker updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, workerResponse{Worker: toWorkerDTO(worker)})
}

// Move handles POST /workers/{id}/move.
func (h *WorkerHandler) Move(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	workerID := pathID(r)
	if workerID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	var req moveWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RoomID) == "" {
		h.log(r.Context(), "Move", "principal_id", principal.UserID, "worker_id", workerID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid worker move request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	logger := h.log(r.Context(), "Move", "principal_id", principal.UserID, "worker_id", workerID, "target_room_id", req.RoomID)
	worker, err := h.service.MoveWorker(r.Context(), application.MoveWorkerParams{
		Principal:    principal,
		WorkerID:     workerID,
		TargetRoomID: strings.TrimSpace(req.RoomID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "worker move failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "worker moved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, workerResponse{Worker: toWorkerDTO(worker)})
}

// Delete handles DELETE /workers/{id}.
func (h *WorkerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := requirePrincipal(r.Context(), w, h.responder)
	if !ok {
		return
	}
	workerID := pathID(r)
	if workerID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "worker_id", workerID)
	if err := h.service.DeleteWorker(r.Context(), principal, workerID); err != nil {
		logger.ErrorContext(r.Context(), "worker delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "worker deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type workerRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	RegistrationNo string `json:"registration_no"`
	Project        string `json:"project"`
}

func (r workerRequest) toInput() application.WorkerInput {
	return application.WorkerInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		RegistrationNo: r.RegistrationNo,
		Project:        r.Project,
	}
}

type workerImportRow struct {
	RoomID string `json:"room_id"`
	workerRequest
}

type importWorkersRequest struct {
	Workers []workerImportRow `json:"workers"`
}

type moveWorkerRequest struct {
	RoomID string `json:"room_id"`
}

type workerResponse struct {
	Worker workerDTO `json:"worker"`
}

type listWorkersResponse struct {
	Workers []workerDTO `json:"workers"`
}

type workerDTO struct {
	ID             string `json:"id"`
	CampID         string `json:"camp_id"`
	RoomID         string `json:"room_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	RegistrationNo string `json:"registration_no,omitempty"`
	Project        string `json:"project"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toWorkerDTO(worker application.Worker) workerDTO {
	return workerDTO{
		ID:             worker.ID,
		CampID:         worker.CampID,
		RoomID:         worker.RoomID,
		FirstName:      worker.FirstName,
		LastName:       worker.LastName,
		RegistrationNo: worker.RegistrationNo,
		Project:        worker.Project,
		CreatedAt:      worker.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      worker.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toWorkerDTOs(workers []application.Worker) []workerDTO {
	out := make([]workerDTO, 0, len(workers))
	for _, worker := range workers {
		out = append(out, toWorkerDTO(worker))
	}
	return out
}
