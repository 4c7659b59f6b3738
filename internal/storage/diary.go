package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"telegram-fitness-bot/internal/models"
)

// ---------- weight ----------------------------------------------------------

// UpsertWeight stores one value per user, date and period; e.UpdatedAt is
// written as given.
func (d *DB) UpsertWeight(ctx context.Context, e models.WeightEntry) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO weight_entries (user_id, date, period, value, updated_at)
        VALUES (?,?,?,?,?)
        ON CONFLICT(user_id, date, period) DO UPDATE SET
            value=excluded.value, updated_at=excluded.updated_at
    `, e.UserID, e.Date, string(e.Period), e.Value, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert weight: %w", err)
	}
	return nil
}

// WeightsByDate returns the user's entries for date, morning first.
func (d *DB) WeightsByDate(ctx context.Context, userID int64, date string) ([]models.WeightEntry, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT user_id, date, period, value, updated_at
        FROM weight_entries WHERE user_id=? AND date=?
        ORDER BY CASE period WHEN 'morning' THEN 0 ELSE 1 END`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	defer rows.Close()

	var res []models.WeightEntry
	for rows.Next() {
		var e models.WeightEntry
		var period string
		if err := rows.Scan(&e.UserID, &e.Date, &period, &e.Value, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Period = models.Period(period)
		res = append(res, e)
	}
	return res, rows.Err()
}

// ---------- recovery --------------------------------------------------------

// UpsertRecovery перезаписывает отметки за день целиком.
func (d *DB) UpsertRecovery(ctx context.Context, e models.RecoveryEntry) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO recovery_entries (user_id, date, sleep, nutrition, stretching, updated_at)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT(user_id, date) DO UPDATE SET
            sleep=excluded.sleep,
            nutrition=excluded.nutrition,
            stretching=excluded.stretching,
            updated_at=excluded.updated_at
    `, e.UserID, e.Date, e.Sleep, e.Nutrition, e.Stretching, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert recovery: %w", err)
	}
	return nil
}

// Recovery returns nil when nothing was recorded for date.
func (d *DB) Recovery(ctx context.Context, userID int64, date string) (*models.RecoveryEntry, error) {
	var e models.RecoveryEntry
	err := d.QueryRowContext(ctx, `
        SELECT user_id, date, sleep, nutrition, stretching, updated_at
        FROM recovery_entries WHERE user_id=? AND date=?`, userID, date,
	).Scan(&e.UserID, &e.Date, &e.Sleep, &e.Nutrition, &e.Stretching, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recovery: %w", err)
	}
	return &e, nil
}

// ---------- plans -----------------------------------------------------------

// PlanEntriesByDate returns the user's plan for date in session order.
func (d *DB) PlanEntriesByDate(ctx context.Context, userID int64, date string) ([]models.PlanEntry, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT user_id, date, session, position, title, details
        FROM plan_entries WHERE user_id=? AND date=?
        ORDER BY session, position, id`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list plan entries: %w", err)
	}
	defer rows.Close()

	var res []models.PlanEntry
	for rows.Next() {
		var p models.PlanEntry
		if err := rows.Scan(&p.UserID, &p.Date, &p.Session, &p.Position, &p.Title, &p.Details); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
