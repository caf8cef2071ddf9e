package testfixtures

import (
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/camp-occupancy/internal/application"
	"github.com/example/camp-occupancy/internal/persistence"
)

var (
	userCounter   uint64
	campCounter   uint64
	roomCounter   uint64
	workerCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account.
type UserFixture struct {
	ID                 string
	Email              string
	DisplayName        string
	PasswordHash       string
	Role               string
	Site               string
	SiteAccessApproved bool
	CanViewCamps       bool
	CreatedAt          time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an ordinary user with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: fmt.Sprintf("Kullanıcı %03d", idx),
		Role:        application.RoleNameUser,
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserPasswordHash sets the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithUserRole sets the role name and site affiliation.
func WithUserRole(role, site string) UserOption {
	return func(f *UserFixture) {
		f.Role = role
		f.Site = site
	}
}

// WithUserPermissions sets the per-user flags that unlock shared camps.
func WithUserPermissions(approved, canView bool) UserOption {
	return func(f *UserFixture) {
		f.SiteAccessApproved = approved
		f.CanViewCamps = canView
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:                 f.ID,
		Email:              f.Email,
		DisplayName:        f.DisplayName,
		Role:               f.Role,
		Site:               f.Site,
		SiteAccessApproved: f.SiteAccessApproved,
		CanViewCamps:       f.CanViewCamps,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.CreatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

// Principal resolves the fixture's role. It panics on an unknown role name,
// which is a broken fixture rather than a test condition.
func (f UserFixture) Principal() application.Principal {
	principal, err := application.PrincipalForUser(f.Application())
	if err != nil {
		panic(fmt.Sprintf("fixture %s: %v", f.ID, err))
	}
	return principal
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:                 f.ID,
		Email:              f.Email,
		DisplayName:        f.DisplayName,
		PasswordHash:       f.PasswordHash,
		Role:               f.Role,
		Site:               f.Site,
		SiteAccessApproved: f.SiteAccessApproved,
		CanViewCamps:       f.CanViewCamps,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.CreatedAt,
	}
}

// ----------------------------- Camp fixtures -----------------------------

// CampFixture represents a deterministic camp.
type CampFixture struct {
	ID              string
	Name            string
	OwnerEmail      string
	Site            string
	IsPublic        bool
	SharedWithSites []string
	SharedWith      []application.CampShare
	CreatedAt       time.Time
}

// CampOption configures the generated camp fixture.
type CampOption func(*CampFixture)

// NewCampFixture returns a private camp with optional overrides.
func NewCampFixture(opts ...CampOption) CampFixture {
	idx := atomic.AddUint64(&campCounter, 1)
	fixture := CampFixture{
		ID:         fmt.Sprintf("camp-%03d", idx),
		Name:       fmt.Sprintf("Kamp %03d", idx),
		OwnerEmail: fmt.Sprintf("owner-%03d@example.com", idx),
		Site:       "X",
		CreatedAt:  referenceTime.Add(time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCampID overrides the generated camp ID.
func WithCampID(id string) CampOption {
	return func(f *CampFixture) { f.ID = id }
}

// WithCampSite sets the site the camp belongs to.
func WithCampSite(site string) CampOption {
	return func(f *CampFixture) { f.Site = site }
}

// WithCampOwner sets the owner email.
func WithCampOwner(email string) CampOption {
	return func(f *CampFixture) { f.OwnerEmail = email }
}

// WithCampSharedWithSites makes the camp public and shares it with sites.
func WithCampSharedWithSites(sites ...string) CampOption {
	return func(f *CampFixture) {
		f.IsPublic = true
		f.SharedWithSites = append(f.SharedWithSites, sites...)
	}
}

// WithCampShare grants a user access to the camp.
func WithCampShare(email string, permission application.SharePermission) CampOption {
	return func(f *CampFixture) {
		f.SharedWith = append(f.SharedWith, application.CampShare{Email: email, Permission: permission})
	}
}

// Application returns the fixture as an application.Camp value.
func (f CampFixture) Application() application.Camp {
	return application.Camp{
		ID:              f.ID,
		Name:            f.Name,
		OwnerEmail:      f.OwnerEmail,
		Site:            f.Site,
		IsPublic:        f.IsPublic,
		SharedWithSites: slices.Clone(f.SharedWithSites),
		SharedWith:      slices.Clone(f.SharedWith),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Camp value.
func (f CampFixture) Persistence() persistence.Camp {
	camp := persistence.Camp{
		ID:              f.ID,
		Name:            f.Name,
		OwnerEmail:      f.OwnerEmail,
		Site:            f.Site,
		IsPublic:        f.IsPublic,
		SharedWithSites: slices.Clone(f.SharedWithSites),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
	for _, share := range f.SharedWith {
		camp.SharedWith = append(camp.SharedWith, persistence.CampShare{Email: share.Email, Permission: string(share.Permission)})
	}
	return camp
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room.
type RoomFixture struct {
	ID        string
	CampID    string
	Number    string
	Capacity  int
	Project   string
	CreatedAt time.Time
}

// NewRoomFixture returns a room of camp with the given capacity, allocated to project.
func NewRoomFixture(campID string, capacity int, project string) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	return RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		CampID:    campID,
		Number:    fmt.Sprintf("%d", 100+idx),
		Capacity:  capacity,
		Project:   project,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:        f.ID,
		CampID:    f.CampID,
		Number:    f.Number,
		Capacity:  f.Capacity,
		Project:   f.Project,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		CampID:    f.CampID,
		Number:    f.Number,
		Capacity:  f.Capacity,
		Project:   f.Project,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ----------------------------- Worker fixtures -----------------------------

// WorkerFixture represents a deterministic worker.
type WorkerFixture struct {
	ID        string
	CampID    string
	RoomID    string
	FirstName string
	LastName  string
	Project   string
	CreatedAt time.Time
}

// NewWorkerFixtures returns count workers lodged in room, employed by project.
func NewWorkerFixtures(room RoomFixture, project string, count int) []WorkerFixture {
	out := make([]WorkerFixture, 0, count)
	for range count {
		idx := atomic.AddUint64(&workerCounter, 1)
		out = append(out, WorkerFixture{
			ID:        fmt.Sprintf("worker-%03d", idx),
			CampID:    room.CampID,
			RoomID:    room.ID,
			FirstName: fmt.Sprintf("İşçi%03d", idx),
			LastName:  "Yılmaz",
			Project:   project,
			CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
		})
	}
	return out
}

// Application returns the fixture as an application.Worker value.
func (f WorkerFixture) Application() application.Worker {
	return application.Worker{
		ID:        f.ID,
		CampID:    f.CampID,
		RoomID:    f.RoomID,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Project:   f.Project,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Worker value.
func (f WorkerFixture) Persistence() persistence.Worker {
	return persistence.Worker{
		ID:        f.ID,
		CampID:    f.CampID,
		RoomID:    f.RoomID,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Project:   f.Project,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ----------------------------- Scenario -----------------------------

// Scenario is the two-site layout shared by integration tests. Camp A on site
// X holds 4 workers of project X in 10 beds. Camp B on site Y holds 3 workers
// of project X in 5 beds allocated to Y.
type Scenario struct {
	Sites   []persistence.Site
	Users   []UserFixture
	Camps   []CampFixture
	Rooms   []RoomFixture
	Workers []WorkerFixture
}

// Scenario user emails.
const (
	FounderEmail    = "founder@example.com"
	SiteAdminXEmail = "admin.x@example.com"
	SiteAdminYEmail = "admin.y@example.com"
	UserXEmail      = "user.x@example.com"
)

// NewScenario builds the layout. When shareBWithX is set camp B is public and
// shared with site X. passwordHash is stored for every user.
func NewScenario(shareBWithX bool, passwordHash string) Scenario {
	campA := NewCampFixture(WithCampID("camp-a"), WithCampSite("X"), WithCampOwner("owner.a@example.com"))
	campBOpts := []CampOption{WithCampID("camp-b"), WithCampSite("Y"), WithCampOwner("owner.b@example.com")}
	if shareBWithX {
		campBOpts = append(campBOpts, WithCampSharedWithSites("X"))
	}
	campB := NewCampFixture(campBOpts...)

	roomA := NewRoomFixture(campA.ID, 10, "X")
	roomB := NewRoomFixture(campB.ID, 5, "Y")

	workers := NewWorkerFixtures(roomA, "X", 4)
	workers = append(workers, NewWorkerFixtures(roomB, "X", 3)...)

	return Scenario{
		Sites: []persistence.Site{{ID: "X", Name: "X"}, {ID: "Y", Name: "Y"}},
		Users: []UserFixture{
			NewUserFixture(WithUserID("founder"), WithUserEmail(FounderEmail), WithUserRole(application.RoleNameFounder, ""), WithUserPasswordHash(passwordHash)),
			NewUserFixture(WithUserID("admin-x"), WithUserEmail(SiteAdminXEmail), WithUserRole(application.RoleNameSiteAdmin, "X"), WithUserPasswordHash(passwordHash)),
			NewUserFixture(WithUserID("admin-y"), WithUserEmail(SiteAdminYEmail), WithUserRole(application.RoleNameSiteAdmin, "Y"), WithUserPasswordHash(passwordHash)),
			NewUserFixture(WithUserID("user-x"), WithUserEmail(UserXEmail), WithUserRole(application.RoleNameUser, "X"), WithUserPermissions(true, true), WithUserPasswordHash(passwordHash)),
		},
		Camps:   []CampFixture{campA, campB},
		Rooms:   []RoomFixture{roomA, roomB},
		Workers: workers,
	}
}

// User returns the scenario user with email.
func (s Scenario) User(email string) UserFixture {
	for _, user := range s.Users {
		if user.Email == email {
			return user
		}
	}
	panic("scenario has no user " + email)
}

// TestPassword is the plaintext behind PasswordHash.
const TestPassword = "Sifre123!"

var testHashParams = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// PasswordHash hashes password with cheap argon2id parameters.
func PasswordHash(tb testing.TB, password string) string {
	tb.Helper()
	hash, err := application.HashPassword(password, testHashParams)
	if err != nil {
		tb.Fatalf("hash password: %v", err)
	}
	return hash
}
