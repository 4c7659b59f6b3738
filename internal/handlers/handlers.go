package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"telegram-fitness-bot/internal/conversation"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/utils"
)

// Conversation is what a handler may see of an inbound message: the chat,
// the text (or callback data) and a way to answer.
type Conversation interface {
	ChatID() int64
	Text() string
	Reply(ctx context.Context, text string, kb *models.Keyboard) error
}

// Store is the persistence used by the chat flows.
type Store interface {
	Binding(ctx context.Context, chatID int64) (*models.ChatBinding, error)
	RedeemLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (int64, error)
	UnlinkAccount(ctx context.Context, chatID int64) (models.UnlinkResult, error)

	UpsertSubscription(ctx context.Context, userID, chatID int64, p models.SubscriptionPatch, now time.Time) error
	GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error)

	UpsertWeight(ctx context.Context, e models.WeightEntry) error
	WeightsByDate(ctx context.Context, userID int64, date string) ([]models.WeightEntry, error)
	UpsertRecovery(ctx context.Context, e models.RecoveryEntry) error
	Recovery(ctx context.Context, userID int64, date string) (*models.RecoveryEntry, error)

	PlanEntriesByDate(ctx context.Context, userID int64, date string) ([]models.PlanEntry, error)
}

type Handler struct {
	db        Store
	conv      *conversation.Store
	locks     *conversation.Locker
	clock     clockwork.Clock
	log       *slog.Logger
	defaultTZ *time.Location
}

// NewHandler wires the chat flows. defaultTZ is used for users without a
// configured timezone; an unknown name falls back to UTC.
func NewHandler(db Store, conv *conversation.Store, clock clockwork.Clock, log *slog.Logger, defaultTZ string) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = utils.Discard()
	}
	loc, err := utils.LoadZone(defaultTZ)
	if err != nil {
		loc = time.UTC
	}
	return &Handler{
		db:        db,
		conv:      conv,
		locks:     conversation.NewLocker(),
		clock:     clock,
		log:       log.With("component", "handlers"),
		defaultTZ: loc,
	}
}

// HandleText routes a text message: cancellation and menu actions first,
// then the pending input if any. Text that matches nothing is ignored.
func (h *Handler) HandleText(ctx context.Context, c Conversation) {
	chatID := c.ChatID()
	unlock := h.locks.Lock(chatID)
	defer unlock()

	text := strings.TrimSpace(c.Text())
	pending := h.conv.Pending(chatID)

	if pending != models.PendingNone && isCancel(text) {
		h.conv.Reset(chatID)
		h.reply(ctx, c, txtCancelled, mainKB)
		return
	}

	if action := ResolveAction(text); action != ActionNone {
		// кнопка меню сбрасывает незавершённый ввод
		if pending != models.PendingNone && action != ActionCancelLink {
			h.log.Debug("pending input superseded", "chat_id", chatID, "pending", pending, "action", action)
			h.conv.Reset(chatID)
		}
		h.runAction(ctx, c, action)
		return
	}

	if pending != models.PendingNone {
		h.resolvePending(ctx, c, pending, text)
	}
}

func (h *Handler) reply(ctx context.Context, c Conversation, text string, kb *models.Keyboard) {
	if err := c.Reply(ctx, text, kb); err != nil {
		h.log.Warn("reply failed", "chat_id", c.ChatID(), "err", err)
	}
}

// binding returns the chat's binding or answers why there is none.
func (h *Handler) binding(ctx context.Context, c Conversation) *models.ChatBinding {
	b, err := h.db.Binding(ctx, c.ChatID())
	if err != nil {
		h.log.Error("load binding", "chat_id", c.ChatID(), "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return nil
	}
	if b == nil {
		h.conv.Reset(c.ChatID())
		h.reply(ctx, c, txtLinkFirst, mainKB)
	}
	return b
}

// userZone is the user's configured timezone or the default one.
func (h *Handler) userZone(ctx context.Context, userID int64) *time.Location {
	sub, err := h.db.GetSubscription(ctx, userID)
	if err != nil {
		h.log.Warn("load subscription", "user_id", userID, "err", err)
		return h.defaultTZ
	}
	if sub == nil || sub.Timezone == nil {
		return h.defaultTZ
	}
	loc, err := utils.LoadZone(*sub.Timezone)
	if err != nil {
		return h.defaultTZ
	}
	return loc
}

func (h *Handler) today(ctx context.Context, userID int64) string {
	date, _ := utils.LocalDay(h.clock.Now(), h.userZone(ctx, userID))
	return date
}
