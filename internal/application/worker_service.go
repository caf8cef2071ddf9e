package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// WorkerService orchestrates validation, authorization, persistence and cache
// invalidation for workers.
type WorkerService struct {
	camps       CampReader
	rooms       RoomRepository
	workers     WorkerRepository
	hooks       mutationHooks
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewWorkerService constructs a worker service with the provided dependencies.
func NewWorkerService(camps CampReader, rooms RoomRepository, workers WorkerRepository, cache CacheInvalidator, idGenerator func() string, now func() time.Time) *WorkerService {
	return NewWorkerServiceWithLogger(camps, rooms, workers, cache, idGenerator, now, nil)
}

// NewWorkerServiceWithLogger constructs a worker service with a specified logger.
func NewWorkerServiceWithLogger(camps CampReader, rooms RoomRepository, workers WorkerRepository, cache CacheInvalidator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *WorkerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &WorkerService{
		camps:       camps,
		rooms:       rooms,
		workers:     workers,
		hooks:       mutationHooks{camps: camps, cache: cache},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *WorkerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "WorkerService", operation, attrs...)
}

func (s *WorkerService) configured() error {
	if s == nil {
		return fmt.Errorf("WorkerService is nil")
	}
	if s.rooms == nil || s.workers == nil {
		return fmt.Errorf("worker repositories not configured")
	}
	return nil
}

// CreateWorker lodges a new worker in a room with a free bed.
func (s *WorkerService) CreateWorker(ctx context.Context, params CreateWorkerParams) (worker Worker, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateWorker", append(principalAttrs(params.Principal), "room_id", params.RoomID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create worker", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("worker_id", worker.ID, "camp_id", worker.CampID).InfoContext(ctx, "worker created")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	var camp Camp
	camp, err = loadWritableCamp(ctx, s.camps, params.Principal, room.CampID)
	if err != nil {
		return
	}

	input := normalizeWorkerInput(params.Input, room)
	if vErr := validateWorkerInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.ensureFreeBeds(ctx, room, 1); err != nil {
		return
	}

	now := s.now()
	var created []Worker
	created, err = s.workers.CreateWorkers(ctx, []Worker{{
		ID:             s.idGenerator(),
		CampID:         room.CampID,
		RoomID:         room.ID,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		RegistrationNo: input.RegistrationNo,
		Project:        input.Project,
		CreatedAt:      now,
		UpdatedAt:      now,
	}})
	if err != nil {
		err = mapRepoError(err, "room_id", "room is not available")
		return
	}
	worker = created[0]

	s.hooks.afterContentChange(ctx, logger, TriggerWorkerCreate, camp)
	return
}

// ImportWorkers lodges a batch of workers in rooms of one camp. Either every
// worker is created or none is.
func (s *WorkerService) ImportWorkers(ctx context.Context, params ImportWorkersParams) (workers []Worker, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ImportWorkers", append(principalAttrs(params.Principal),
		"camp_id", params.CampID,
		"row_count", len(params.Rows),
	)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to import workers", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(workers)).InfoContext(ctx, "workers imported")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}
	if len(params.Rows) == 0 {
		vErr := &ValidationError{}
		vErr.add("workers", "at least one worker is required")
		err = vErr
		return
	}

	var camp Camp
	camp, err = loadWritableCamp(ctx, s.camps, params.Principal, params.CampID)
	if err != nil {
		return
	}
	var rooms []Room
	rooms, err = s.rooms.ListRooms(ctx, camp.ID)
	if err != nil {
		return
	}
	roomsByID := make(map[string]Room, len(rooms))
	for _, room := range rooms {
		roomsByID[room.ID] = room
	}

	vErr := &ValidationError{}
	requested := make(map[string]int)
	order := make([]string, 0)
	now := s.now()
	batch := make([]Worker, 0, len(params.Rows))
	for i, row := range params.Rows {
		prefix := fmt.Sprintf("workers[%d].", i)
		room, ok := roomsByID[strings.TrimSpace(row.RoomID)]
		if !ok {
			vErr.add(prefix+"room_id", "room does not belong to camp")
			continue
		}
		input := normalizeWorkerInput(row.Input, room)
		vErr.merge(prefix, validateWorkerInput(input))
		if _, seen := requested[room.ID]; !seen {
			order = append(order, room.ID)
		}
		requested[room.ID]++
		batch = append(batch, Worker{
			ID:             s.idGenerator(),
			CampID:         camp.ID,
			RoomID:         room.ID,
			FirstName:      input.FirstName,
			LastName:       input.LastName,
			RegistrationNo: input.RegistrationNo,
			Project:        input.Project,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	for _, roomID := range order {
		if err = s.ensureFreeBeds(ctx, roomsByID[roomID], requested[roomID]); err != nil {
			return
		}
	}

	workers, err = s.workers.CreateWorkers(ctx, batch)
	if err != nil {
		err = mapRepoError(err, "workers", "workers could not be stored")
		return
	}

	s.hooks.afterContentChange(ctx, logger, TriggerWorkerImport, camp)
	return
}

// UpdateWorker rewrites a worker's personal details. Room changes go through MoveWorker.
func (s *WorkerService) UpdateWorker(ctx context.Context, params UpdateWorkerParams) (worker Worker, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateWorker", append(principalAttrs(params.Principal), "worker_id", params.WorkerID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update worker", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "worker updated")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}

	var existing Worker
	existing, err = s.workers.GetWorker(ctx, params.WorkerID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	var camp Camp
	camp, err = loadWritableCamp(ctx, s.camps, params.Principal, existing.CampID)
	if err != nil {
		return
	}

	input := normalizeWorkerInput(params.Input, Room{Project: existing.Project})
	if vErr := validateWorkerInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.FirstName = input.FirstName
	updated.LastName = input.LastName
	updated.RegistrationNo = input.RegistrationNo
	updated.Project = input.Project
	updated.UpdatedAt = s.now()

	worker, err = s.workers.UpdateWorker(ctx, updated)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterContentChange(ctx, logger, TriggerWorkerUpdate, camp)
	return
}

// MoveWorker reassigns a worker to another room, possibly in another camp.
// The move is a single store operation; the worker is never duplicated or orphaned.
func (s *WorkerService) MoveWorker(ctx context.Context, params MoveWorkerParams) (worker Worker, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "MoveWorker", append(principalAttrs(params.Principal),
		"worker_id", params.WorkerID,
		"target_room_id", params.TargetRoomID,
	)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to move worker", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("camp_id", worker.CampID).InfoContext(ctx, "worker moved")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}

	var existing Worker
	existing, err = s.workers.GetWorker(ctx, params.WorkerID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	if existing.RoomID == strings.TrimSpace(params.TargetRoomID) {
		vErr := &ValidationError{}
		vErr.add("room_id", "worker is already in this room")
		err = vErr
		return
	}

	var source Camp
	source, err = loadWritableCamp(ctx, s.camps, params.Principal, existing.CampID)
	if err != nil {
		return
	}
	var target Room
	target, err = s.rooms.GetRoom(ctx, strings.TrimSpace(params.TargetRoomID))
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	destination := source
	if target.CampID != source.ID {
		destination, err = loadWritableCamp(ctx, s.camps, params.Principal, target.CampID)
		if err != nil {
			return
		}
	}
	if err = s.ensureFreeBeds(ctx, target, 1); err != nil {
		return
	}

	worker, err = s.workers.MoveWorker(ctx, existing.ID, target.ID, target.CampID)
	if err != nil {
		err = mapRepoError(err, "room_id", "room does not belong to camp")
		return
	}

	s.hooks.afterContentChange(ctx, logger, TriggerWorkerReassign, source, destination)
	return
}

// DeleteWorker removes a worker from its room.
func (s *WorkerService) DeleteWorker(ctx context.Context, principal Principal, workerID string) (err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteWorker", append(principalAttrs(principal), "worker_id", workerID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete worker", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "worker deleted")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}

	var existing Worker
	existing, err = s.workers.GetWorker(ctx, workerID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	var camp Camp
	camp, err = loadWritableCamp(ctx, s.camps, principal, existing.CampID)
	if err != nil {
		return
	}
	if err = s.workers.DeleteWorker(ctx, existing.ID); err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterContentChange(ctx, logger, TriggerWorkerDelete, camp)
	return nil
}

// ListWorkers returns the workers of a camp visible to the principal, ordered by name.
func (s *WorkerService) ListWorkers(ctx context.Context, principal Principal, campID string) (workers []Worker, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListWorkers", append(principalAttrs(principal), "camp_id", campID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list workers", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(workers)).InfoContext(ctx, "workers listed")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}
	if _, err = loadVisibleCamp(ctx, s.camps, principal, campID); err != nil {
		return
	}

	var raw []Worker
	raw, err = s.workers.ListWorkers(ctx, campID)
	if err != nil {
		return
	}
	workers = make([]Worker, len(raw))
	copy(workers, raw)
	sort.SliceStable(workers, func(i, j int) bool {
		if workers[i].LastName != workers[j].LastName {
			return workers[i].LastName < workers[j].LastName
		}
		if workers[i].FirstName != workers[j].FirstName {
			return workers[i].FirstName < workers[j].FirstName
		}
		return workers[i].ID < workers[j].ID
	})
	return
}

// ensureFreeBeds fails with ErrCapacityExceeded unless room has free beds for additional workers.
func (s *WorkerService) ensureFreeBeds(ctx context.Context, room Room, additional int) error {
	occupants, err := s.workers.CountWorkersInRoom(ctx, room.ID)
	if err != nil {
		return err
	}
	if occupants+additional > room.Capacity {
		return fmt.Errorf("%w: room %s has %d of %d beds taken", ErrCapacityExceeded, room.Number, occupants, room.Capacity)
	}
	return nil
}

// normalizeWorkerInput trims fields and defaults the project to the room's allocation.
func normalizeWorkerInput(input WorkerInput, room Room) WorkerInput {
	out := WorkerInput{
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		RegistrationNo: strings.TrimSpace(input.RegistrationNo),
		Project:        strings.TrimSpace(input.Project),
	}
	if out.Project == "" {
		out.Project = room.Project
	}
	return out
}

func validateWorkerInput(input WorkerInput) *ValidationError {
	vErr := &ValidationError{}
	if input.FirstName == "" {
		vErr.add("first_name", "first name is required")
	}
	if input.LastName == "" {
		vErr.add("last_name", "last name is required")
	}
	if input.Project == "" {
		vErr.add("project", "project is required")
	}
	return vErr
}
