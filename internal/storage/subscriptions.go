package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"telegram-fitness-bot/internal/models"
)

const subscriptionCols = `user_id, chat_id, enabled, timezone, send_time, last_dispatched_date`

// UpsertSubscription merges patch onto the user's subscription, creating a
// disabled one first if none exists.
func (d *DB) UpsertSubscription(ctx context.Context, userID, chatID int64, p models.SubscriptionPatch, now time.Time) error {
	enabled, tz, at := nullable(p.Enabled), nullable(p.Timezone), nullable(p.SendTime)
	_, err := d.ExecContext(ctx, `
        INSERT INTO subscriptions (user_id, chat_id, enabled, timezone, send_time, updated_at)
        VALUES (?, ?, COALESCE(?, 0), ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            chat_id   = excluded.chat_id,
            enabled   = COALESCE(?, subscriptions.enabled),
            timezone  = COALESCE(?, subscriptions.timezone),
            send_time = COALESCE(?, subscriptions.send_time),
            updated_at = excluded.updated_at
    `, userID, chatID, enabled, tz, at, now.Unix(), enabled, tz, at)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription returns nil when the user has no subscription row.
func (d *DB) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	row := d.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id=?`, userID)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListDispatchable returns enabled subscriptions with both timezone and send
// time configured.
func (d *DB) ListDispatchable(ctx context.Context) ([]models.Subscription, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT `+subscriptionCols+` FROM subscriptions
        WHERE enabled=1
          AND timezone IS NOT NULL AND timezone<>''
          AND send_time IS NOT NULL AND send_time<>''
        ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var res []models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

// ClaimDispatch marks the subscription as being dispatched for date. It
// succeeds only when date is later than the last dispatched date and no live
// claim for date exists; claims older than lease are treated as abandoned.
func (d *DB) ClaimDispatch(ctx context.Context, userID int64, date string, now time.Time, lease time.Duration) (bool, error) {
	r, err := d.ExecContext(ctx, `
        UPDATE subscriptions SET claim_date=?, claimed_at=?
        WHERE user_id=? AND enabled=1
          -- даты YYYY-MM-DD сравниваются как строки
          AND (last_dispatched_date IS NULL OR last_dispatched_date<?)
          AND (claim_date IS NULL OR claim_date<>? OR claimed_at<=?)
    `, date, now.Unix(), userID, date, date, now.Add(-lease).Unix())
	if err != nil {
		return false, fmt.Errorf("claim dispatch: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteDispatch records a confirmed send for date.
func (d *DB) CompleteDispatch(ctx context.Context, userID int64, date string) error {
	_, err := d.ExecContext(ctx, `
        UPDATE subscriptions
        SET last_dispatched_date=?, claim_date=NULL, claimed_at=NULL
        WHERE user_id=?`, date, userID)
	if err != nil {
		return fmt.Errorf("complete dispatch: %w", err)
	}
	return nil
}

// ReleaseDispatch drops a claim after a failed send so the next tick retries.
func (d *DB) ReleaseDispatch(ctx context.Context, userID int64, date string) error {
	_, err := d.ExecContext(ctx, `
        UPDATE subscriptions SET claim_date=NULL, claimed_at=NULL
        WHERE user_id=? AND claim_date=?`, userID, date)
	if err != nil {
		return fmt.Errorf("release dispatch: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		s            models.Subscription
		tz, at, last sql.NullString
	)
	if err := row.Scan(&s.UserID, &s.ChatID, &s.Enabled, &tz, &at, &last); err != nil {
		return nil, err
	}
	s.Timezone, s.SendTime, s.LastDispatchedDate = strPtr(tz), strPtr(at), strPtr(last)
	return &s, nil
}
