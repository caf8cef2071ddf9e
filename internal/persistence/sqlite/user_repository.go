package sqlite

import (
	"context"
	"strings"

	"github.com/example/camp-occupancy/internal/persistence"
)

type userRow struct {
	ID                 string `db:"id"`
	Email              string `db:"email"`
	DisplayName        string `db:"display_name"`
	PasswordHash       string `db:"password_hash"`
	Role               string `db:"role"`
	Site               string `db:"site"`
	SiteAccessApproved bool   `db:"site_access_approved"`
	CanViewCamps       bool   `db:"can_view_camps"`
	CreatedAt          string `db:"created_at"`
	UpdatedAt          string `db:"updated_at"`
}

const userColumns = `id, email, display_name, password_hash, role, site, site_access_approved, can_view_camps, created_at, updated_at`

// CreateUser stores a new account.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	now := s.timestamp()
	created := formatTime(user.CreatedAt)
	if created == "" {
		created = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.PasswordHash,
		user.Role,
		user.Site,
		boolToInt(user.SiteAccessApproved),
		boolToInt(user.CanViewCamps),
		created,
		now,
	)
	return mapError(err)
}

// GetUser retrieves an account by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return persistence.User{}, mapError(err)
	}
	return row.toModel()
}

// GetUserByEmail retrieves an account by its case-insensitive email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return persistence.User{}, mapError(err)
	}
	return row.toModel()
}

func (r userRow) toModel() (persistence.User, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:                 r.ID,
		Email:              r.Email,
		DisplayName:        r.DisplayName,
		PasswordHash:       r.PasswordHash,
		Role:               r.Role,
		Site:               r.Site,
		SiteAccessApproved: r.SiteAccessApproved,
		CanViewCamps:       r.CanViewCamps,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}, nil
}
