package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	Email       string
	DisplayName string
	Role        Role
}

// SharePermission identifies the access granted by a camp share entry.
type SharePermission string

const (
	// PermissionRead allows viewing a camp and its contents.
	PermissionRead SharePermission = "read"
	// PermissionWrite additionally allows mutating rooms and workers.
	PermissionWrite SharePermission = "write"
)

// CampShare grants a single user access to a camp.
type CampShare struct {
	Email      string
	Permission SharePermission
}

// Camp represents a lodging facility.
type Camp struct {
	ID              string
	Name            string
	Description     string
	OwnerEmail      string
	Site            string
	IsPublic        bool
	SharedWithSites []string
	SharedWith      []CampShare
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Room represents a room inside a camp. Project names the site the beds are allocated to.
type Room struct {
	ID        string
	CampID    string
	Number    string
	Capacity  int
	Project   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Worker represents a person lodged in a room. Project names the site the worker is employed by.
type Worker struct {
	ID             string
	CampID         string
	RoomID         string
	FirstName      string
	LastName       string
	RegistrationNo string
	Project        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Site is an entry of the construction site registry.
type Site struct {
	ID   string
	Name string
}

// CampFilter narrows camp listings. Zero values disable a criterion.
type CampFilter struct {
	IDs  []string
	Site string
}

// User represents an account exposed by the application services.
type User struct {
	ID                 string
	Email              string
	DisplayName        string
	Role               string
	Site               string
	SiteAccessApproved bool
	CanViewCamps       bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// CampInput captures caller provided camp fields.
type CampInput struct {
	Name            string
	Description     string
	Site            string
	IsPublic        bool
	SharedWithSites []string
	SharedWith      []CampShare
}

// CreateCampParams wraps the data required to create a camp.
type CreateCampParams struct {
	Principal Principal
	Input     CampInput
}

// UpdateCampParams wraps the data required to update a camp.
type UpdateCampParams struct {
	Principal Principal
	CampID    string
	Input     CampInput
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Number   string
	Capacity int
	Project  string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	CampID    string
	Input     RoomInput
}

// ImportRoomsParams wraps a batch of rooms created together.
type ImportRoomsParams struct {
	Principal Principal
	CampID    string
	Inputs    []RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// WorkerInput captures caller provided worker fields.
type WorkerInput struct {
	FirstName      string
	LastName       string
	RegistrationNo string
	Project        string
}

// CreateWorkerParams wraps the data required to lodge a worker in a room.
type CreateWorkerParams struct {
	Principal Principal
	RoomID    string
	Input     WorkerInput
}

// WorkerImportRow is a single row of a worker import targeting a room of the camp.
type WorkerImportRow struct {
	RoomID string
	Input  WorkerInput
}

// ImportWorkersParams wraps a batch of workers created together.
type ImportWorkersParams struct {
	Principal Principal
	CampID    string
	Rows      []WorkerImportRow
}

// UpdateWorkerParams wraps the data required to update worker details.
type UpdateWorkerParams struct {
	Principal Principal
	WorkerID  string
	Input     WorkerInput
}

// MoveWorkerParams wraps the data required to reassign a worker to another room.
type MoveWorkerParams struct {
	Principal    Principal
	WorkerID     string
	TargetRoomID string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      User
	Principal Principal
	Token     string
	ExpiresAt time.Time
}
