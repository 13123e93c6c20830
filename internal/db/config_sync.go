package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ptportal/internal/config"
	"ptportal/internal/model"
)

// SyncScheduleFromConfig applies schedule.yaml to the database.
// It overwrites settings, upserts session types and marks missing ones
// inactive, replaces the weekly templates and closes configured holidays.
func (db *DB) SyncScheduleFromConfig(ctx context.Context, cfg *config.ScheduleConfig) error {
	if cfg == nil {
		return fmt.Errorf("schedule config is nil")
	}

	if err := db.UpdateSchedulingSettings(ctx, cfg.SchedulingSettings()); err != nil {
		return fmt.Errorf("sync settings: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := dbTime(time.Now())
	seen := make(map[int64]struct{})

	for _, st := range cfg.SessionTypeModels() {
		// Preserve created_at if the session type already exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_types (id, name, duration_minutes, max_athletes, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM session_types WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				duration_minutes = excluded.duration_minutes,
				max_athletes = excluded.max_athletes,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			st.ID, st.Name, st.DurationMinutes, st.MaxAthletes, st.IsActive, st.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync session type %d: %w", st.ID, err)
		}
		seen[st.ID] = struct{}{}
	}

	// Deactivate session types that disappeared from config.
	rows, err := tx.QueryContext(ctx, `SELECT id FROM session_types WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `UPDATE session_types SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate session type %d: %w", id, err)
		}
	}

	// Templates are owned by the config file.
	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_templates`); err != nil {
		return fmt.Errorf("clear templates: %w", err)
	}
	for _, tpl := range cfg.TemplateModels() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO availability_templates (day_of_week, start_time, end_time, is_active, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)`,
			int(tpl.DayOfWeek), tpl.StartTime, tpl.EndTime, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert template %s %s-%s: %w", tpl.DayOfWeek, tpl.StartTime, tpl.EndTime, err)
		}
	}

	removedHolidays, err := syncHolidays(ctx, tx, cfg.Holidays, now)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.Info().
		Int("session_types", len(seen)).
		Int("deactivated", len(stale)).
		Int("holidays", len(cfg.Holidays)).
		Int("holidays_removed", removedHolidays).
		Msg("Schedule synced from config")
	return nil
}

// syncHolidays makes the config-owned whole-day blackouts match holidays.
// Holidays dropped from the file are deleted; a day off staff created for
// the same date is left alone.
func syncHolidays(ctx context.Context, tx *sql.Tx, holidays []config.HolidayConfig, now time.Time) (int, error) {
	wanted := make(map[model.Date]struct{}, len(holidays))
	for _, h := range holidays {
		wanted[h.Date] = struct{}{}

		var id int64
		var fromConfig bool
		err := tx.QueryRowContext(ctx, `
			SELECT id, from_config FROM availability_exceptions
			WHERE exception_date = ? AND start_time IS NULL`,
			h.Date,
		).Scan(&id, &fromConfig)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
				INSERT INTO availability_exceptions (exception_date, start_time, is_available, reason, from_config, created_at, updated_at)
				VALUES (?, NULL, 0, ?, 1, ?, ?)`,
				h.Date, h.Name, now, now,
			)
		case err == nil && fromConfig:
			_, err = tx.ExecContext(ctx, `
				UPDATE availability_exceptions SET is_available = 0, reason = ?, updated_at = ? WHERE id = ?`,
				h.Name, now, id,
			)
		}
		if err != nil {
			return 0, fmt.Errorf("sync holiday %s: %w", h.Date, err)
		}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, exception_date FROM availability_exceptions
		WHERE from_config = 1 AND start_time IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("list config holidays: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		var date model.Date
		if err := rows.Scan(&id, &date); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := wanted[date]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_exceptions WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("remove holiday %d: %w", id, err)
		}
	}
	return len(stale), nil
}
