package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ptportal/internal/model"
)

const bookingColumns = `id, session_type_id, athlete_name, athlete_email,
	start_time, end_time, status, created_at, updated_at`

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	var sessionTypeID sql.NullInt64
	var email sql.NullString
	err := row.Scan(
		&b.ID, &sessionTypeID, &b.AthleteName, &email,
		&b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}
	if sessionTypeID.Valid {
		b.SessionTypeID = sessionTypeID.Int64
	}
	if email.Valid {
		b.AthleteEmail = email.String
	}
	return b, nil
}

// ListActiveBookings returns pending and confirmed bookings that overlap [from, to).
func (db *DB) ListActiveBookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status IN (?, ?) AND start_time < ? AND end_time > ?
		ORDER BY start_time, id`,
		model.StatusPending, model.StatusConfirmed, dbTime(to), dbTime(from),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetBooking returns a booking by ID.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts b if fewer than maxAthletes active bookings overlap
// its interval. The count and insert run in one transaction so two
// concurrent requests cannot both take the last place.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking, maxAthletes int) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}
	if !b.EndTime.After(b.StartTime) {
		return fmt.Errorf("booking end must be after start")
	}
	if maxAthletes <= 0 {
		maxAthletes = model.DefaultMaxAthletes
	}
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if !model.IsValidStatus(b.Status) {
		return fmt.Errorf("invalid booking status %q", b.Status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE status IN (?, ?) AND start_time < ? AND end_time > ?`,
		model.StatusPending, model.StatusConfirmed, dbTime(b.EndTime), dbTime(b.StartTime),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	if overlapping >= maxAthletes {
		return ErrNotAvailable
	}

	var sessionTypeID any
	if b.SessionTypeID != 0 {
		sessionTypeID = b.SessionTypeID
	}

	now := dbTime(time.Now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			session_type_id, athlete_name, athlete_email,
			start_time, end_time, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionTypeID, b.AthleteName, b.AthleteEmail,
		dbTime(b.StartTime), dbTime(b.EndTime), b.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// UpdateBookingStatus moves a booking to status. Reactivating a cancelled,
// completed or no-show booking re-checks the capacity of its session type
// against the other active bookings overlapping it, in the same transaction
// as the update.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	if !model.IsValidStatus(status) {
		return fmt.Errorf("invalid booking status %q", status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	var maxAthletes, overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT b.status, COALESCE(st.max_athletes, ?),
			(SELECT COUNT(*) FROM bookings o
			 WHERE o.id != b.id AND o.status IN (?, ?)
			   AND o.start_time < b.end_time AND o.end_time > b.start_time)
		FROM bookings b
		LEFT JOIN session_types st ON st.id = b.session_type_id
		WHERE b.id = ?`,
		model.DefaultMaxAthletes, model.StatusPending, model.StatusConfirmed, id,
	).Scan(&current, &maxAthletes, &overlapping)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load booking %d: %w", id, err)
	}

	if !model.IsActiveStatus(current) && model.IsActiveStatus(status) && overlapping >= maxAthletes {
		return ErrNotAvailable
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, dbTime(time.Now()), id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// CancelBooking marks a booking cancelled and returns it.
func (db *DB) CancelBooking(ctx context.Context, id int64) (*model.Booking, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?`,
		model.StatusCancelled, dbTime(time.Now()), id, model.StatusCancelled,
	)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	b, err := db.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return b, ErrAlreadyCancelled
	}
	return b, nil
}
