package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ptportal/internal/model"
)

// ListSessionTypes returns session types ordered by ID.
func (db *DB) ListSessionTypes(ctx context.Context, activeOnly bool) ([]model.SessionType, error) {
	query := `SELECT id, name, duration_minutes, max_athletes, is_active FROM session_types`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []model.SessionType
	for rows.Next() {
		var st model.SessionType
		if err := rows.Scan(&st.ID, &st.Name, &st.DurationMinutes, &st.MaxAthletes, &st.IsActive); err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	return types, rows.Err()
}

// GetSessionType returns a session type by ID, active or not.
func (db *DB) GetSessionType(ctx context.Context, id int64) (*model.SessionType, error) {
	var st model.SessionType
	err := db.QueryRowContext(ctx, `
		SELECT id, name, duration_minutes, max_athletes, is_active
		FROM session_types WHERE id = ?`,
		id,
	).Scan(&st.ID, &st.Name, &st.DurationMinutes, &st.MaxAthletes, &st.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session type %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
