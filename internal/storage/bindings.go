package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"telegram-fitness-bot/internal/models"
)

var (
	// ErrLinkCodeInvalid covers unknown, expired and already consumed codes.
	ErrLinkCodeInvalid = errors.New("link code is invalid or already used")
	ErrAlreadyLinked   = errors.New("chat is already linked")
)

// ---------- link codes ------------------------------------------------------

// InsertLinkCode stores a code issued elsewhere.
func (d *DB) InsertLinkCode(ctx context.Context, lc models.LinkCode) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO link_codes (code, user_id, expires_at) VALUES (?,?,?)`,
		normalizeCode(lc.Code), lc.UserID, lc.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("insert link code: %w", err)
	}
	return nil
}

// IssueLinkCode generates a random six digit code for userID.
func (d *DB) IssueLinkCode(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (models.LinkCode, error) {
	lc := models.LinkCode{UserID: userID, ExpiresAt: now.Add(ttl)}
	var lastErr error
	// коллизия по PK маловероятна, но возможна
	for attempt := 0; attempt < 5; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return models.LinkCode{}, err
		}
		lc.Code = fmt.Sprintf("%06d", n.Int64())
		if lastErr = d.InsertLinkCode(ctx, lc); lastErr == nil {
			return lc, nil
		}
	}
	return models.LinkCode{}, lastErr
}

// RedeemLinkCode consumes code and binds chatID to the code's user in one
// transaction. A previous binding of the same user moves to chatID together
// with the user's subscription.
func (d *DB) RedeemLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (int64, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bound int64
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM chat_bindings WHERE chat_id=?`, chatID).Scan(&bound)
	switch {
	case err == nil:
		return 0, ErrAlreadyLinked
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("check binding: %w", err)
	}

	var userID int64
	err = tx.QueryRowContext(ctx, `
        UPDATE link_codes SET consumed_at=?
        WHERE code=? AND consumed_at IS NULL AND expires_at>?
        RETURNING user_id`, now.Unix(), normalizeCode(code), now.Unix(),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrLinkCodeInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("consume link code: %w", err)
	}

	// старая привязка пользователя переезжает в новый чат
	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_bindings WHERE user_id=?`, userID); err != nil {
		return 0, fmt.Errorf("drop old binding: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
        INSERT INTO chat_bindings (chat_id, user_id, linked_at) VALUES (?,?,?)`,
		chatID, userID, now.Unix()); err != nil {
		return 0, fmt.Errorf("bind chat: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
        UPDATE subscriptions SET chat_id=?, updated_at=? WHERE user_id=?`,
		chatID, now.Unix(), userID); err != nil {
		return 0, fmt.Errorf("move subscription: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ---------- bindings --------------------------------------------------------

// Binding returns the binding of chatID or nil when the chat is not linked.
func (d *DB) Binding(ctx context.Context, chatID int64) (*models.ChatBinding, error) {
	var b models.ChatBinding
	err := d.QueryRowContext(ctx, `
        SELECT chat_id, user_id, linked_at FROM chat_bindings WHERE chat_id=?`, chatID,
	).Scan(&b.ChatID, &b.UserID, &b.LinkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get binding: %w", err)
	}
	return &b, nil
}

// UnlinkAccount removes the chat binding and every subscription row of the
// chat atomically. Unlinking an unlinked chat removes nothing.
func (d *DB) UnlinkAccount(ctx context.Context, chatID int64) (models.UnlinkResult, error) {
	var res models.UnlinkResult

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx, `DELETE FROM chat_bindings WHERE chat_id=?`, chatID)
	if err != nil {
		return res, fmt.Errorf("delete binding: %w", err)
	}
	if res.Bindings, err = r.RowsAffected(); err != nil {
		return res, err
	}

	r, err = tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE chat_id=?`, chatID)
	if err != nil {
		return models.UnlinkResult{}, fmt.Errorf("delete subscriptions: %w", err)
	}
	if res.Subscriptions, err = r.RowsAffected(); err != nil {
		return models.UnlinkResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.UnlinkResult{}, err
	}
	return res, nil
}
