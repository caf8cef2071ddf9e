package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// RoomService orchestrates validation, authorization, persistence and cache
// invalidation for rooms.
type RoomService struct {
	camps       CampReader
	rooms       RoomRepository
	workers     WorkerRepository
	hooks       mutationHooks
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(camps CampReader, rooms RoomRepository, workers WorkerRepository, cache CacheInvalidator, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(camps, rooms, workers, cache, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(camps CampReader, rooms RoomRepository, workers WorkerRepository, cache CacheInvalidator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		camps:       camps,
		rooms:       rooms,
		workers:     workers,
		hooks:       mutationHooks{camps: camps, cache: cache},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and adds a room to a camp the principal may write.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom", append(principalAttrs(params.Principal), "camp_id", params.CampID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	var rooms []Room
	rooms, err = s.createRooms(ctx, params.Principal, params.CampID, []RoomInput{params.Input}, TriggerRoomCreate, logger)
	if err != nil {
		return
	}
	room = rooms[0]
	return
}

// ImportRooms adds a batch of rooms to a camp. Either every room is created or none is.
func (s *RoomService) ImportRooms(ctx context.Context, params ImportRoomsParams) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ImportRooms", append(principalAttrs(params.Principal),
		"camp_id", params.CampID,
		"row_count", len(params.Inputs),
	)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to import rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms imported")
	}()

	if len(params.Inputs) == 0 {
		vErr := &ValidationError{}
		vErr.add("rooms", "at least one room is required")
		err = vErr
		return
	}
	rooms, err = s.createRooms(ctx, params.Principal, params.CampID, params.Inputs, TriggerRoomImport, logger)
	return
}

func (s *RoomService) createRooms(ctx context.Context, principal Principal, campID string, inputs []RoomInput, trigger string, logger *slog.Logger) ([]Room, error) {
	if s.rooms == nil {
		return nil, fmt.Errorf("room repository not configured")
	}
	if err := requireIdentity(principal); err != nil {
		return nil, err
	}
	camp, err := loadWritableCamp(ctx, s.camps, principal, campID)
	if err != nil {
		return nil, err
	}

	vErr := &ValidationError{}
	numbers := make(map[string]int, len(inputs))
	now := s.now()
	rooms := make([]Room, 0, len(inputs))
	for i, raw := range inputs {
		input := normalizeRoomInput(raw, camp)
		prefix := ""
		if len(inputs) > 1 {
			prefix = fmt.Sprintf("rooms[%d].", i)
		}
		vErr.merge(prefix, validateRoomInput(input))
		if first, ok := numbers[input.Number]; ok && input.Number != "" {
			vErr.add(prefix+"number", fmt.Sprintf("duplicates row %d", first))
		} else {
			numbers[input.Number] = i
		}
		rooms = append(rooms, Room{
			ID:        s.idGenerator(),
			CampID:    camp.ID,
			Number:    input.Number,
			Capacity:  input.Capacity,
			Project:   input.Project,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	created, err := s.rooms.CreateRooms(ctx, rooms)
	if err != nil {
		return nil, mapRepoError(err, "number", "room number already exists in camp")
	}

	s.hooks.afterContentChange(ctx, logger, trigger, camp)
	return created, nil
}

// UpdateRoom validates input and updates a room. Capacity may not drop below
// the number of workers currently lodged in it.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom", append(principalAttrs(params.Principal), "room_id", params.RoomID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	var camp Camp
	camp, err = loadWritableCamp(ctx, s.camps, params.Principal, existing.CampID)
	if err != nil {
		return
	}

	input := normalizeRoomInput(params.Input, camp)
	vErr := validateRoomInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.workers != nil && input.Capacity < existing.Capacity {
		var occupants int
		occupants, err = s.workers.CountWorkersInRoom(ctx, existing.ID)
		if err != nil {
			return
		}
		if input.Capacity < occupants {
			vErr.add("capacity", fmt.Sprintf("capacity is below current occupancy of %d", occupants))
			err = vErr
			return
		}
	}

	updated := existing
	updated.Number = input.Number
	updated.Capacity = input.Capacity
	updated.Project = input.Project
	updated.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRepoError(err, "number", "room number already exists in camp")
		return
	}

	s.hooks.afterContentChange(ctx, logger, TriggerRoomUpdate, camp)
	return
}

// DeleteRoom removes a room and the workers lodged in it.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) (err error) {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", append(principalAttrs(principal), "room_id", roomID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room deleted")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	var camp Camp
	camp, err = loadWritableCamp(ctx, s.camps, principal, existing.CampID)
	if err != nil {
		return
	}

	if err = s.rooms.DeleteRoom(ctx, existing.ID); err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterContentChange(ctx, logger, TriggerRoomDelete, camp)
	return nil
}

// ListRooms returns the rooms of a camp visible to the principal, ordered by number.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal, campID string) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms", append(principalAttrs(principal), "camp_id", campID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}
	if _, err = loadVisibleCamp(ctx, s.camps, principal, campID); err != nil {
		return
	}

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx, campID)
	if err != nil {
		return
	}
	rooms = make([]Room, len(raw))
	copy(rooms, raw)
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Number == rooms[j].Number {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Number < rooms[j].Number
	})
	return
}

// normalizeRoomInput trims fields and allocates unassigned rooms to the camp's site.
func normalizeRoomInput(input RoomInput, camp Camp) RoomInput {
	out := RoomInput{
		Number:   strings.TrimSpace(input.Number),
		Capacity: input.Capacity,
		Project:  strings.TrimSpace(input.Project),
	}
	if out.Project == "" {
		out.Project = camp.Site
	}
	return out
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Number == "" {
		vErr.add("number", "number is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	return vErr
}

func loadWritableCamp(ctx context.Context, camps CampReader, principal Principal, campID string) (Camp, error) {
	if camps == nil {
		return Camp{}, fmt.Errorf("camp repository not configured")
	}
	camp, err := camps.GetCamp(ctx, campID)
	if err != nil {
		return Camp{}, mapRepoError(err, "", "")
	}
	if !CanWrite(principal, camp) {
		return Camp{}, ErrUnauthorized
	}
	return camp, nil
}

func loadVisibleCamp(ctx context.Context, camps CampReader, principal Principal, campID string) (Camp, error) {
	if camps == nil {
		return Camp{}, fmt.Errorf("camp repository not configured")
	}
	camp, err := camps.GetCamp(ctx, campID)
	if err != nil {
		return Camp{}, mapRepoError(err, "", "")
	}
	if !CanView(principal, camp) {
		return Camp{}, ErrUnauthorized
	}
	return camp, nil
}
