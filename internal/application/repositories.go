package application

import "context"

// CampReader lists and loads camps from the record store.
type CampReader interface {
	GetCamp(ctx context.Context, id string) (Camp, error)
	ListCamps(ctx context.Context, filter CampFilter) ([]Camp, error)
}

// CampRepository captures the camp persistence operations needed by the services.
type CampRepository interface {
	CampReader
	CreateCamp(ctx context.Context, camp Camp) (Camp, error)
	UpdateCamp(ctx context.Context, camp Camp) (Camp, error)
	DeleteCamp(ctx context.Context, id string) error
}

// RoomReader lists the rooms of a camp.
type RoomReader interface {
	ListRooms(ctx context.Context, campID string) ([]Room, error)
}

// RoomRepository captures the room persistence operations needed by the services.
type RoomRepository interface {
	RoomReader
	CreateRooms(ctx context.Context, rooms []Room) ([]Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// WorkerReader lists the workers lodged in a camp.
type WorkerReader interface {
	ListWorkers(ctx context.Context, campID string) ([]Worker, error)
}

// WorkerRepository captures the worker persistence operations needed by the services.
type WorkerRepository interface {
	WorkerReader
	CreateWorkers(ctx context.Context, workers []Worker) ([]Worker, error)
	GetWorker(ctx context.Context, id string) (Worker, error)
	UpdateWorker(ctx context.Context, worker Worker) (Worker, error)
	CountWorkersInRoom(ctx context.Context, roomID string) (int, error)
	MoveWorker(ctx context.Context, workerID, roomID, campID string) (Worker, error)
	DeleteWorker(ctx context.Context, id string) error
}

// SiteDirectory exposes the construction site registry.
type SiteDirectory interface {
	ListSites(ctx context.Context) ([]Site, error)
}

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
}
