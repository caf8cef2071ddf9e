package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{current: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func sequentialIDs(prefix string) func() string {
	var (
		mu   sync.Mutex
		next int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next)
	}
}

// memoryRecords is an in-memory record store implementing the camp, room and
// worker repositories. Error fields force failures.
type memoryRecords struct {
	mu      sync.Mutex
	camps   map[string]Camp
	rooms   map[string]Room
	workers map[string]Worker

	listCampsErr error
	getCampErr   error
	roomErrs     map[string]error
	workerErrs   map[string]error
	listCalls    int

	// beforeListWorkers runs outside the lock ahead of every worker listing.
	beforeListWorkers func(campID string)
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{
		camps:      make(map[string]Camp),
		rooms:      make(map[string]Room),
		workers:    make(map[string]Worker),
		roomErrs:   make(map[string]error),
		workerErrs: make(map[string]error),
	}
}

func (m *memoryRecords) addCamp(camp Camp) Camp {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camps[camp.ID] = camp
	return camp
}

func (m *memoryRecords) addRoom(room Room) Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	return room
}

// addWorkers lodges count workers of project in room.
func (m *memoryRecords) addWorkers(room Room, project string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("%s-w%d", room.ID, len(m.workers)+1)
		m.workers[id] = Worker{
			ID:        id,
			CampID:    room.CampID,
			RoomID:    room.ID,
			FirstName: "Ali",
			LastName:  fmt.Sprintf("Yılmaz %03d", len(m.workers)+1),
			Project:   project,
		}
	}
}

func (m *memoryRecords) GetCamp(ctx context.Context, id string) (Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getCampErr != nil {
		return Camp{}, m.getCampErr
	}
	camp, ok := m.camps[id]
	if !ok {
		return Camp{}, ErrNotFound
	}
	return camp, nil
}

func (m *memoryRecords) ListCamps(ctx context.Context, filter CampFilter) ([]Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listCampsErr != nil {
		return nil, m.listCampsErr
	}
	out := make([]Camp, 0, len(m.camps))
	for _, camp := range m.camps {
		if filter.Site != "" && camp.Site != filter.Site {
			continue
		}
		out = append(out, camp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRecords) CreateCamp(ctx context.Context, camp Camp) (Camp, error) {
	return m.addCamp(camp), nil
}

func (m *memoryRecords) UpdateCamp(ctx context.Context, camp Camp) (Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.camps[camp.ID]; !ok {
		return Camp{}, ErrNotFound
	}
	m.camps[camp.ID] = camp
	return camp, nil
}

func (m *memoryRecords) DeleteCamp(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.camps[id]; !ok {
		return ErrNotFound
	}
	delete(m.camps, id)
	for roomID, room := range m.rooms {
		if room.CampID == id {
			delete(m.rooms, roomID)
		}
	}
	for workerID, worker := range m.workers {
		if worker.CampID == id {
			delete(m.workers, workerID)
		}
	}
	return nil
}

func (m *memoryRecords) ListRooms(ctx context.Context, campID string) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.roomErrs[campID]; err != nil {
		return nil, err
	}
	var out []Room
	for _, room := range m.rooms {
		if room.CampID == campID {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRecords) CreateRooms(ctx context.Context, rooms []Room) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range rooms {
		m.rooms[room.ID] = room
	}
	return append([]Room(nil), rooms...), nil
}

func (m *memoryRecords) GetRoom(ctx context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (m *memoryRecords) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memoryRecords) DeleteRoom(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	for workerID, worker := range m.workers {
		if worker.RoomID == id {
			delete(m.workers, workerID)
		}
	}
	return nil
}

func (m *memoryRecords) ListWorkers(ctx context.Context, campID string) ([]Worker, error) {
	if m.beforeListWorkers != nil {
		m.beforeListWorkers(campID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.workerErrs[campID]; err != nil {
		return nil, err
	}
	var out []Worker
	for _, worker := range m.workers {
		if worker.CampID == campID {
			out = append(out, worker)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRecords) CreateWorkers(ctx context.Context, workers []Worker) ([]Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, worker := range workers {
		m.workers[worker.ID] = worker
	}
	return append([]Worker(nil), workers...), nil
}

func (m *memoryRecords) GetWorker(ctx context.Context, id string) (Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	worker, ok := m.workers[id]
	if !ok {
		return Worker{}, ErrNotFound
	}
	return worker, nil
}

func (m *memoryRecords) UpdateWorker(ctx context.Context, worker Worker) (Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[worker.ID] = worker
	return worker, nil
}

func (m *memoryRecords) CountWorkersInRoom(ctx context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, worker := range m.workers {
		if worker.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (m *memoryRecords) MoveWorker(ctx context.Context, workerID, roomID, campID string) (Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	worker, ok := m.workers[workerID]
	if !ok {
		return Worker{}, ErrNotFound
	}
	worker.RoomID = roomID
	worker.CampID = campID
	m.workers[workerID] = worker
	return worker, nil
}

func (m *memoryRecords) DeleteWorker(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[id]; !ok {
		return ErrNotFound
	}
	delete(m.workers, id)
	return nil
}

// recordingInvalidator captures invalidation calls.
type recordingInvalidator struct {
	mu       sync.Mutex
	triggers []string
	targets  []InvalidationTarget
}

func (r *recordingInvalidator) InvalidateMatching(trigger string, target InvalidationTarget) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	r.targets = append(r.targets, target)
	return 1
}

func (r *recordingInvalidator) last() (string, InvalidationTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.triggers) == 0 {
		return "", InvalidationTarget{}
	}
	return r.triggers[len(r.triggers)-1], r.targets[len(r.targets)-1]
}

func founder() Principal {
	return Principal{UserID: "founder-1", Email: "kurucu@example.com", Role: FounderRole{}}
}

func central() Principal {
	return Principal{UserID: "central-1", Email: "merkez@example.com", Role: CentralRole{}}
}

func siteAdmin(site string) Principal {
	return Principal{UserID: "admin-" + site, Email: "admin." + site + "@example.com", Role: SiteAdminRole{Site: site}}
}

func ordinaryUser(id, email string, approved bool) Principal {
	return Principal{
		UserID: id,
		Email:  email,
		Role: UserRole{Site: "X", Permissions: Permissions{
			SiteAccessApproved: approved,
			CanViewCamps:       approved,
		}},
	}
}

// seedScenario stores camp A (site X, capacity 10, 4 workers of project X)
// and camp B (site Y, capacity 5, 3 workers of project X, public and shared
// with site X).
func seedScenario(records *memoryRecords, shareBWithX bool) (Camp, Camp) {
	campA := records.addCamp(Camp{ID: "camp-a", Name: "Kamp A", OwnerEmail: "owner.a@example.com", Site: "X"})
	campB := Camp{ID: "camp-b", Name: "Kamp B", OwnerEmail: "owner.b@example.com", Site: "Y", IsPublic: true}
	if shareBWithX {
		campB.SharedWithSites = []string{"X"}
	}
	campB = records.addCamp(campB)

	roomA := records.addRoom(Room{ID: "room-a1", CampID: campA.ID, Number: "101", Capacity: 10, Project: "X"})
	records.addWorkers(roomA, "X", 4)
	roomB := records.addRoom(Room{ID: "room-b1", CampID: campB.ID, Number: "201", Capacity: 5, Project: "Y"})
	records.addWorkers(roomB, "X", 3)
	return campA, campB
}
