package testfixtures

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/example/camp-occupancy/internal/application"
	"github.com/example/camp-occupancy/internal/persistence"
)

// MemoryStore is an in-memory record store implementing the application
// repositories, the site directory and the credential store. Deletes cascade
// like the SQLite schema does.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]application.UserCredentials
	sites   []application.Site
	camps   map[string]application.Camp
	rooms   map[string]application.Room
	workers map[string]application.Worker

	// ListCampsErr, when set, fails every camp listing.
	ListCampsErr error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]application.UserCredentials),
		camps:   make(map[string]application.Camp),
		rooms:   make(map[string]application.Room),
		workers: make(map[string]application.Worker),
	}
}

// Seed loads every record of the scenario.
func (m *MemoryStore) Seed(scenario Scenario) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, site := range scenario.Sites {
		m.sites = append(m.sites, application.Site{ID: site.ID, Name: site.Name})
	}
	for _, user := range scenario.Users {
		m.users[strings.ToLower(user.Email)] = user.Credentials()
	}
	for _, camp := range scenario.Camps {
		m.camps[camp.ID] = camp.Application()
	}
	for _, room := range scenario.Rooms {
		m.rooms[room.ID] = room.Application()
	}
	for _, worker := range scenario.Workers {
		m.workers[worker.ID] = worker.Application()
	}
}

func cloneCamp(camp application.Camp) application.Camp {
	camp.SharedWithSites = slices.Clone(camp.SharedWithSites)
	camp.SharedWith = slices.Clone(camp.SharedWith)
	return camp
}

func (m *MemoryStore) GetUserCredentialsByEmail(_ context.Context, email string) (application.UserCredentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return application.UserCredentials{}, application.ErrNotFound
	}
	return creds, nil
}

func (m *MemoryStore) ListSites(context.Context) ([]application.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sites), nil
}

func (m *MemoryStore) GetCamp(_ context.Context, id string) (application.Camp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	camp, ok := m.camps[id]
	if !ok {
		return application.Camp{}, application.ErrNotFound
	}
	return cloneCamp(camp), nil
}

func (m *MemoryStore) ListCamps(_ context.Context, filter application.CampFilter) ([]application.Camp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListCampsErr != nil {
		return nil, m.ListCampsErr
	}
	out := make([]application.Camp, 0, len(m.camps))
	for _, camp := range m.camps {
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, camp.ID) {
			continue
		}
		if filter.Site != "" && camp.Site != filter.Site {
			continue
		}
		out = append(out, cloneCamp(camp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateCamp(_ context.Context, camp application.Camp) (application.Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.camps[camp.ID]; ok {
		return application.Camp{}, persistence.ErrDuplicate
	}
	m.camps[camp.ID] = cloneCamp(camp)
	return cloneCamp(camp), nil
}

func (m *MemoryStore) UpdateCamp(_ context.Context, camp application.Camp) (application.Camp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.camps[camp.ID]; !ok {
		return application.Camp{}, application.ErrNotFound
	}
	m.camps[camp.ID] = cloneCamp(camp)
	return cloneCamp(camp), nil
}

func (m *MemoryStore) DeleteCamp(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.camps[id]; !ok {
		return application.ErrNotFound
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

func (m *MemoryStore) ListRooms(_ context.Context, campID string) ([]application.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]application.Room, 0)
	for _, room := range m.rooms {
		if room.CampID == campID {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// CreateRooms stores the batch atomically. A number already used in the camp
// fails the whole batch with persistence.ErrDuplicate.
func (m *MemoryStore) CreateRooms(_ context.Context, rooms []application.Room) ([]application.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range rooms {
		for _, existing := range m.rooms {
			if existing.CampID == room.CampID && existing.Number == room.Number {
				return nil, persistence.ErrDuplicate
			}
		}
	}
	for _, room := range rooms {
		m.rooms[room.ID] = room
	}
	return slices.Clone(rooms), nil
}

func (m *MemoryStore) GetRoom(_ context.Context, id string) (application.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return application.Room{}, application.ErrNotFound
	}
	return room, nil
}

func (m *MemoryStore) UpdateRoom(_ context.Context, room application.Room) (application.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return application.Room{}, application.ErrNotFound
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *MemoryStore) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return application.ErrNotFound
	}
	delete(m.rooms, id)
	for workerID, worker := range m.workers {
		if worker.RoomID == id {
			delete(m.workers, workerID)
		}
	}
	return nil
}

func (m *MemoryStore) ListWorkers(_ context.Context, campID string) ([]application.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]application.Worker, 0)
	for _, worker := range m.workers {
		if worker.CampID == campID {
			out = append(out, worker)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateWorkers(_ context.Context, workers []application.Worker) ([]application.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, worker := range workers {
		if _, ok := m.rooms[worker.RoomID]; !ok {
			return nil, persistence.ErrConstraintViolation
		}
	}
	for _, worker := range workers {
		m.workers[worker.ID] = worker
	}
	return slices.Clone(workers), nil
}

func (m *MemoryStore) GetWorker(_ context.Context, id string) (application.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	worker, ok := m.workers[id]
	if !ok {
		return application.Worker{}, application.ErrNotFound
	}
	return worker, nil
}

func (m *MemoryStore) UpdateWorker(_ context.Context, worker application.Worker) (application.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[worker.ID]; !ok {
		return application.Worker{}, application.ErrNotFound
	}
	m.workers[worker.ID] = worker
	return worker, nil
}

func (m *MemoryStore) CountWorkersInRoom(_ context.Context, roomID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, worker := range m.workers {
		if worker.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MoveWorker(_ context.Context, workerID, roomID, campID string) (application.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	worker, ok := m.workers[workerID]
	if !ok {
		return application.Worker{}, application.ErrNotFound
	}
	worker.RoomID = roomID
	worker.CampID = campID
	m.workers[workerID] = worker
	return worker, nil
}

func (m *MemoryStore) DeleteWorker(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[id]; !ok {
		return application.ErrNotFound
	}
	delete(m.workers, id)
	return nil
}
