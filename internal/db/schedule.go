package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ptportal/internal/model"
)

// GetSchedulingSettings returns the singleton settings row.
func (db *DB) GetSchedulingSettings(ctx context.Context) (model.SchedulingSettings, error) {
	var s model.SchedulingSettings
	err := db.QueryRowContext(ctx, `
		SELECT booking_window_days, min_booking_notice_hours, updated_at
		FROM scheduling_settings WHERE id = 1`,
	).Scan(&s.BookingWindowDays, &s.MinBookingNoticeHours, &s.UpdatedAt)
	if err != nil {
		return model.SchedulingSettings{}, fmt.Errorf("get scheduling settings: %w", err)
	}
	return s, nil
}

// UpdateSchedulingSettings overwrites the singleton settings row.
func (db *DB) UpdateSchedulingSettings(ctx context.Context, s model.SchedulingSettings) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO scheduling_settings (id, booking_window_days, min_booking_notice_hours, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			booking_window_days = excluded.booking_window_days,
			min_booking_notice_hours = excluded.min_booking_notice_hours,
			updated_at = excluded.updated_at`,
		s.BookingWindowDays, s.MinBookingNoticeHours, dbTime(time.Now()),
	)
	return err
}

// ListActiveTemplates returns active weekly templates ordered by weekday and start.
func (db *DB) ListActiveTemplates(ctx context.Context) ([]model.AvailabilityTemplate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day_of_week, start_time, end_time, is_active
		FROM availability_templates
		WHERE is_active = 1
		ORDER BY day_of_week, start_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []model.AvailabilityTemplate
	for rows.Next() {
		var t model.AvailabilityTemplate
		var day int
		if err := rows.Scan(&t.ID, &day, &t.StartTime, &t.EndTime, &t.IsActive); err != nil {
			return nil, err
		}
		t.DayOfWeek = time.Weekday(day)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// CreateTemplate inserts a weekly template and sets its ID.
func (db *DB) CreateTemplate(ctx context.Context, t *model.AvailabilityTemplate) error {
	if t == nil {
		return fmt.Errorf("template is nil")
	}
	if t.EndTime <= t.StartTime {
		return fmt.Errorf("template end_time must be after start_time")
	}

	now := dbTime(time.Now())
	res, err := db.ExecContext(ctx, `
		INSERT INTO availability_templates (day_of_week, start_time, end_time, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int(t.DayOfWeek), t.StartTime, t.EndTime, t.IsActive, now, now,
	)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// ListExceptions returns exceptions dated within [from, to], inclusive.
func (db *DB) ListExceptions(ctx context.Context, from, to model.Date) ([]model.AvailabilityException, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, exception_date, start_time, is_available, reason
		FROM availability_exceptions
		WHERE exception_date >= ? AND exception_date <= ?
		ORDER BY exception_date, start_time, id`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []model.AvailabilityException
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanException(row rowScanner) (model.AvailabilityException, error) {
	var e model.AvailabilityException
	var startTime, reason sql.NullString
	if err := row.Scan(&e.ID, &e.ExceptionDate, &startTime, &e.IsAvailable, &reason); err != nil {
		return e, err
	}
	if startTime.Valid {
		c, err := model.ParseClock(startTime.String)
		if err != nil {
			return e, fmt.Errorf("exception %d: %w", e.ID, err)
		}
		e.StartTime = &c
	}
	if reason.Valid {
		e.Reason = reason.String
	}
	return e, nil
}

// SetDayOff closes a whole date. Calling it twice for the same date updates the reason.
func (db *DB) SetDayOff(ctx context.Context, date model.Date, reason string) (*model.AvailabilityException, error) {
	return db.upsertException(ctx, model.AvailabilityException{
		ExceptionDate: date,
		IsAvailable:   false,
		Reason:        reason,
	})
}

// SetTimeBlackout removes the slot starting at start on date.
func (db *DB) SetTimeBlackout(ctx context.Context, date model.Date, start model.ClockTime, reason string) (*model.AvailabilityException, error) {
	return db.upsertException(ctx, model.AvailabilityException{
		ExceptionDate: date,
		StartTime:     &start,
		IsAvailable:   false,
		Reason:        reason,
	})
}

// upsertException keeps at most one exception per (date, start_time). Rows
// written here belong to staff, so a holiday row they touch is no longer
// removed when it disappears from schedule.yaml.
func (db *DB) upsertException(ctx context.Context, e model.AvailabilityException) (*model.AvailabilityException, error) {
	if e.ExceptionDate.IsZero() {
		return nil, fmt.Errorf("exception date is required")
	}

	var start any
	if e.StartTime != nil {
		start = *e.StartTime
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := dbTime(time.Now())
	var existingID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM availability_exceptions
		WHERE exception_date = ? AND start_time IS ?`,
		e.ExceptionDate, start,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE availability_exceptions
			SET is_available = ?, reason = ?, from_config = 0, updated_at = ?
			WHERE id = ?`,
			e.IsAvailable, e.Reason, now, existingID,
		)
		if err != nil {
			return nil, fmt.Errorf("update exception: %w", err)
		}
		e.ID = existingID
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO availability_exceptions (exception_date, start_time, is_available, reason, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ExceptionDate, start, e.IsAvailable, e.Reason, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert exception: %w", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("get last id: %w", err)
		}
	default:
		return nil, fmt.Errorf("check existing exception: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &e, nil
}

// DeleteException removes an exception by ID.
func (db *DB) DeleteException(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM availability_exceptions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
