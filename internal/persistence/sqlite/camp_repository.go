package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/camp-occupancy/internal/persistence"
)

type campRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	OwnerEmail  string `db:"owner_email"`
	Site        string `db:"site"`
	IsPublic    bool   `db:"is_public"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

type campSiteShareRow struct {
	CampID string `db:"camp_id"`
	Site   string `db:"site"`
}

type campShareRow struct {
	CampID     string `db:"camp_id"`
	Email      string `db:"email"`
	Permission string `db:"permission"`
}

const campColumns = `id, name, description, owner_email, site, is_public, created_at, updated_at`

// CreateCamp inserts a camp together with its share lists.
func (s *Store) CreateCamp(ctx context.Context, camp persistence.Camp) error {
	if camp.ID == "" || strings.TrimSpace(camp.Site) == "" {
		return persistence.ErrConstraintViolation
	}
	now := s.timestamp()
	created := formatTime(camp.CreatedAt)
	if created == "" {
		created = now
	}

	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO camps (`+campColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			camp.ID,
			camp.Name,
			camp.Description,
			strings.ToLower(camp.OwnerEmail),
			camp.Site,
			boolToInt(camp.IsPublic),
			created,
			now,
		)
		if err != nil {
			return mapError(err)
		}
		return replaceCampShares(ctx, tx, camp)
	})
}

// UpdateCamp rewrites mutable camp fields and its share lists. The site column is never updated.
func (s *Store) UpdateCamp(ctx context.Context, camp persistence.Camp) error {
	if camp.ID == "" {
		return persistence.ErrNotFound
	}
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE camps
			SET name = ?, description = ?, owner_email = ?, is_public = ?, updated_at = ?
			WHERE id = ?`,
			camp.Name,
			camp.Description,
			strings.ToLower(camp.OwnerEmail),
			boolToInt(camp.IsPublic),
			s.timestamp(),
			camp.ID,
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return replaceCampShares(ctx, tx, camp)
	})
}

// GetCamp retrieves a camp with its share lists.
func (s *Store) GetCamp(ctx context.Context, id string) (persistence.Camp, error) {
	camps, err := s.ListCamps(ctx, persistence.CampFilter{IDs: []string{id}})
	if err != nil {
		return persistence.Camp{}, err
	}
	if len(camps) == 0 {
		return persistence.Camp{}, persistence.ErrNotFound
	}
	return camps[0], nil
}

// ListCamps returns camps matching filter ordered by name then ID.
func (s *Store) ListCamps(ctx context.Context, filter persistence.CampFilter) ([]persistence.Camp, error) {
	query := `SELECT ` + campColumns + ` FROM camps`
	conditions := make([]string, 0, 2)
	args := make([]any, 0, len(filter.IDs)+1)
	if len(filter.IDs) > 0 {
		conditions = append(conditions, "id IN (?)")
		args = append(args, filter.IDs)
	}
	if filter.Site != "" {
		conditions = append(conditions, "site = ?")
		args = append(args, filter.Site)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC, id ASC"

	if len(filter.IDs) > 0 {
		expanded, expandedArgs, err := sqlx.In(query, args...)
		if err != nil {
			return nil, fmt.Errorf("sqlite: expand camp filter: %w", err)
		}
		query, args = s.db.Rebind(expanded), expandedArgs
	}

	var rows []campRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	siteShares, shares, err := s.loadCampShares(ctx, ids)
	if err != nil {
		return nil, err
	}

	camps := make([]persistence.Camp, 0, len(rows))
	for _, row := range rows {
		camp, err := row.toModel()
		if err != nil {
			return nil, err
		}
		camp.SharedWithSites = siteShares[row.ID]
		camp.SharedWith = shares[row.ID]
		camps = append(camps, camp)
	}
	return camps, nil
}

// DeleteCamp removes a camp together with its rooms, workers and shares.
func (s *Store) DeleteCamp(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, statement := range []string{
			`DELETE FROM workers WHERE camp_id = ?`,
			`DELETE FROM rooms WHERE camp_id = ?`,
			`DELETE FROM camp_shared_sites WHERE camp_id = ?`,
			`DELETE FROM camp_shares WHERE camp_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, statement, id); err != nil {
				return mapError(err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM camps WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func (s *Store) loadCampShares(ctx context.Context, campIDs []string) (map[string][]string, map[string][]persistence.CampShare, error) {
	siteQuery, siteArgs, err := sqlx.In(`SELECT camp_id, site FROM camp_shared_sites WHERE camp_id IN (?) ORDER BY site`, campIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: expand shared sites query: %w", err)
	}
	var siteRows []campSiteShareRow
	if err := s.db.SelectContext(ctx, &siteRows, s.db.Rebind(siteQuery), siteArgs...); err != nil {
		return nil, nil, mapError(err)
	}

	shareQuery, shareArgs, err := sqlx.In(`SELECT camp_id, email, permission FROM camp_shares WHERE camp_id IN (?) ORDER BY email`, campIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: expand shares query: %w", err)
	}
	var shareRows []campShareRow
	if err := s.db.SelectContext(ctx, &shareRows, s.db.Rebind(shareQuery), shareArgs...); err != nil {
		return nil, nil, mapError(err)
	}

	sites := make(map[string][]string, len(siteRows))
	for _, row := range siteRows {
		sites[row.CampID] = append(sites[row.CampID], row.Site)
	}
	shares := make(map[string][]persistence.CampShare, len(shareRows))
	for _, row := range shareRows {
		shares[row.CampID] = append(shares[row.CampID], persistence.CampShare{Email: row.Email, Permission: row.Permission})
	}
	return sites, shares, nil
}

func replaceCampShares(ctx context.Context, tx *sqlx.Tx, camp persistence.Camp) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM camp_shared_sites WHERE camp_id = ?`, camp.ID); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM camp_shares WHERE camp_id = ?`, camp.ID); err != nil {
		return mapError(err)
	}
	for _, site := range uniqueStrings(camp.SharedWithSites) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO camp_shared_sites (camp_id, site) VALUES (?, ?)`, camp.ID, site); err != nil {
			return mapError(err)
		}
	}
	seen := make(map[string]struct{}, len(camp.SharedWith))
	for _, share := range camp.SharedWith {
		email := strings.ToLower(strings.TrimSpace(share.Email))
		if _, ok := seen[email]; ok || email == "" {
			continue
		}
		seen[email] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO camp_shares (camp_id, email, permission) VALUES (?, ?, ?)`,
			camp.ID, email, share.Permission,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r campRow) toModel() (persistence.Camp, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.Camp{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.Camp{}, err
	}
	return persistence.Camp{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OwnerEmail:  r.OwnerEmail,
		Site:        r.Site,
		IsPublic:    r.IsPublic,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
