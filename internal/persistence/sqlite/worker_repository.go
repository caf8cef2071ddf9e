package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/camp-occupancy/internal/persistence"
)

type workerRow struct {
	ID             string `db:"id"`
	CampID         string `db:"camp_id"`
	RoomID         string `db:"room_id"`
	FirstName      string `db:"first_name"`
	LastName       string `db:"last_name"`
	RegistrationNo string `db:"registration_no"`
	Project        string `db:"project"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

const workerColumns = `id, camp_id, room_id, first_name, last_name, registration_no, project, created_at, updated_at`

// CreateWorkers inserts workers atomically.
func (s *Store) CreateWorkers(ctx context.Context, workers []persistence.Worker) error {
	if len(workers) == 0 {
		return nil
	}
	now := s.timestamp()
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, worker := range workers {
			if worker.ID == "" || worker.RoomID == "" || worker.CampID == "" {
				return persistence.ErrConstraintViolation
			}
			created := formatTime(worker.CreatedAt)
			if created == "" {
				created = now
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO workers (`+workerColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				worker.ID, worker.CampID, worker.RoomID, worker.FirstName, worker.LastName,
				worker.RegistrationNo, worker.Project, created, now,
			); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// UpdateWorker updates personal fields and project. Room assignment changes go through MoveWorker.
func (s *Store) UpdateWorker(ctx context.Context, worker persistence.Worker) error {
	if worker.ID == "" {
		return persistence.ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE workers
		SET first_name = ?, last_name = ?, registration_no = ?, project = ?, updated_at = ?
		WHERE id = ?`,
		worker.FirstName, worker.LastName, worker.RegistrationNo, worker.Project, s.timestamp(), worker.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result.RowsAffected())
}

// GetWorker retrieves a worker by ID.
func (s *Store) GetWorker(ctx context.Context, id string) (persistence.Worker, error) {
	if id == "" {
		return persistence.Worker{}, persistence.ErrNotFound
	}
	var row workerRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+workerColumns+` FROM workers WHERE id = ?`, id); err != nil {
		return persistence.Worker{}, mapError(err)
	}
	return row.toModel()
}

// ListWorkersByCamp returns every worker lodged in the camp.
func (s *Store) ListWorkersByCamp(ctx context.Context, campID string) ([]persistence.Worker, error) {
	var rows []workerRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+workerColumns+` FROM workers WHERE camp_id = ? ORDER BY last_name ASC, first_name ASC, id ASC`, campID,
	); err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	workers := make([]persistence.Worker, 0, len(rows))
	for _, row := range rows {
		worker, err := row.toModel()
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	return workers, nil
}

// CountWorkersInRoom returns the number of workers currently assigned to a room.
func (s *Store) CountWorkersInRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM workers WHERE room_id = ?`, roomID); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// MoveWorker reassigns a worker to another room in a single statement so the
// worker is never duplicated or orphaned.
func (s *Store) MoveWorker(ctx context.Context, workerID, roomID, campID string) error {
	if workerID == "" {
		return persistence.ErrNotFound
	}
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		var owningCamp string
		if err := tx.GetContext(ctx, &owningCamp, `SELECT camp_id FROM rooms WHERE id = ?`, roomID); err != nil {
			return mapError(err)
		}
		if owningCamp != campID {
			return fmt.Errorf("%w: room %s belongs to camp %s", persistence.ErrConstraintViolation, roomID, owningCamp)
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE workers SET room_id = ?, camp_id = ?, updated_at = ? WHERE id = ?`,
			roomID, campID, s.timestamp(), workerID,
		)
		if err != nil {
			return mapError(err)
		}
		return expectAffected(result.RowsAffected())
	})
}

// DeleteWorker removes a worker by ID.
func (s *Store) DeleteWorker(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result.RowsAffected())
}

func expectAffected(affected int64, err error) error {
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r workerRow) toModel() (persistence.Worker, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.Worker{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.Worker{}, err
	}
	return persistence.Worker{
		ID:             r.ID,
		CampID:         r.CampID,
		RoomID:         r.RoomID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		RegistrationNo: r.RegistrationNo,
		Project:        r.Project,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}, nil
}
