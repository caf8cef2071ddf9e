package persistence

import "context"

// UserRepository exposes lookups and registration for accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// SiteRepository exposes the construction site registry.
type SiteRepository interface {
	CreateSite(ctx context.Context, site Site) error
	ListSites(ctx context.Context) ([]Site, error)
}

// CampFilter narrows camp listings. Zero values disable a criterion.
type CampFilter struct {
	IDs  []string
	Site string
}

// CampRepository exposes CRUD operations for camps and their share lists.
type CampRepository interface {
	CreateCamp(ctx context.Context, camp Camp) error
	UpdateCamp(ctx context.Context, camp Camp) error
	GetCamp(ctx context.Context, id string) (Camp, error)
	ListCamps(ctx context.Context, filter CampFilter) ([]Camp, error)
	DeleteCamp(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRooms(ctx context.Context, rooms []Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRoomsByCamp(ctx context.Context, campID string) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// WorkerRepository exposes CRUD operations for workers.
type WorkerRepository interface {
	CreateWorkers(ctx context.Context, workers []Worker) error
	UpdateWorker(ctx context.Context, worker Worker) error
	GetWorker(ctx context.Context, id string) (Worker, error)
	ListWorkersByCamp(ctx context.Context, campID string) ([]Worker, error)
	CountWorkersInRoom(ctx context.Context, roomID string) (int, error)
	MoveWorker(ctx context.Context, workerID, roomID, campID string) error
	DeleteWorker(ctx context.Context, id string) error
}
