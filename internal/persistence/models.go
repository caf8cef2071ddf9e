package persistence

import "time"

// User represents an account allowed to sign in and view camps.
type User struct {
	ID                 string
	Email              string
	DisplayName        string
	PasswordHash       string
	Role               string
	Site               string
	SiteAccessApproved bool
	CanViewCamps       bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Site represents an entry of the construction site registry.
type Site struct {
	ID   string
	Name string
}

// CampShare grants a user access to a camp.
type CampShare struct {
	Email      string
	Permission string
}

// Camp represents a lodging facility record.
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

// Room represents a room inside a camp.
type Room struct {
	ID        string
	CampID    string
	Number    string
	Capacity  int
	Project   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Worker represents a worker lodged in a room.
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
