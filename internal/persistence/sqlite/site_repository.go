package sqlite

import (
	"context"
	"strings"

	"github.com/example/camp-occupancy/internal/persistence"
)

type siteRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// CreateSite registers a construction site.
func (s *Store) CreateSite(ctx context.Context, site persistence.Site) error {
	if site.ID == "" || strings.TrimSpace(site.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sites (id, name) VALUES (?, ?)`, site.ID, strings.TrimSpace(site.Name))
	return mapError(err)
}

// ListSites returns the site registry ordered by name.
func (s *Store) ListSites(ctx context.Context) ([]persistence.Site, error) {
	var rows []siteRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name FROM sites ORDER BY name ASC, id ASC`); err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sites := make([]persistence.Site, 0, len(rows))
	for _, row := range rows {
		sites = append(sites, persistence.Site{ID: row.ID, Name: row.Name})
	}
	return sites, nil
}
