package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/camp-occupancy/internal/persistence"
)

type roomRow struct {
	ID        string `db:"id"`
	CampID    string `db:"camp_id"`
	Number    string `db:"number"`
	Capacity  int    `db:"capacity"`
	Project   string `db:"project"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

const roomColumns = `id, camp_id, number, capacity, project, created_at, updated_at`

// CreateRooms inserts rooms atomically; a single invalid room aborts the batch.
func (s *Store) CreateRooms(ctx context.Context, rooms []persistence.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	now := s.timestamp()
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, room := range rooms {
			if room.ID == "" || room.CampID == "" || room.Capacity <= 0 {
				return persistence.ErrConstraintViolation
			}
			created := formatTime(room.CreatedAt)
			if created == "" {
				created = now
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rooms (`+roomColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				room.ID, room.CampID, room.Number, room.Capacity, room.Project, created, now,
			); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// UpdateRoom updates number, capacity and project of an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrNotFound
	}
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE rooms
		SET number = ?, capacity = ?, project = ?, updated_at = ?
		WHERE id = ?`,
		room.Number, room.Capacity, room.Project, s.timestamp(), room.ID,
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
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	var row roomRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id); err != nil {
		return persistence.Room{}, mapError(err)
	}
	return row.toModel()
}

// ListRoomsByCamp returns the rooms of a camp ordered by number.
func (s *Store) ListRoomsByCamp(ctx context.Context, campID string) ([]persistence.Room, error) {
	var rows []roomRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+roomColumns+` FROM rooms WHERE camp_id = ? ORDER BY number ASC, id ASC`, campID,
	); err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes a room and the workers lodged in it.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM workers WHERE room_id = ?`, id); err != nil {
			return mapError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
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

func (r roomRow) toModel() (persistence.Room, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.Room{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.Room{}, err
	}
	return persistence.Room{
		ID:        r.ID,
		CampID:    r.CampID,
		Number:    r.Number,
		Capacity:  r.Capacity,
		Project:   r.Project,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
