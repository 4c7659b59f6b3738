package handlers

import (
	"context"
	"fmt"
	"strings"

	"telegram-fitness-bot/internal/messages"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/utils"
)

func (h *Handler) runAction(ctx context.Context, c Conversation, a Action) {
	switch a {
	case ActionHelp:
		h.reply(ctx, c, txtHelp, mainKB)
	case ActionLink:
		h.handleLink(ctx, c)
	case ActionCancelLink:
		h.handleCancelLink(ctx, c)
	case ActionUnlink:
		h.handleUnlink(ctx, c)
	default:
		b := h.binding(ctx, c)
		if b == nil {
			return
		}
		h.runLinkedAction(ctx, c, b, a)
	}
}

func (h *Handler) runLinkedAction(ctx context.Context, c Conversation, b *models.ChatBinding, a Action) {
	switch a {
	case ActionToday:
		h.sendPlan(ctx, c, b.UserID, h.today(ctx, b.UserID))
	case ActionDate:
		h.handleDatePicker(ctx, c, b)
	case ActionDailyReport:
		h.handleDailyReport(ctx, c, b)
	case ActionWeight:
		h.conv.SetPending(c.ChatID(), models.PendingWeightDate)
		h.reply(ctx, c, txtWeightDatePrompt, weightDateKB)
	case ActionSubscribe:
		h.handleSubscribe(ctx, c, b, true)
	case ActionUnsubscribe:
		h.handleSubscribe(ctx, c, b, false)
	case ActionTime:
		h.conv.SetPending(c.ChatID(), models.PendingTime)
		h.reply(ctx, c, txtTimePrompt, cancelKB)
	case ActionTimezone:
		h.conv.SetPending(c.ChatID(), models.PendingTimezone)
		h.reply(ctx, c, txtTZPrompt, cancelKB)
	}
}

// ---------------- привязка аккаунта --------------------

func (h *Handler) handleLink(ctx context.Context, c Conversation) {
	b, err := h.db.Binding(ctx, c.ChatID())
	if err != nil {
		h.log.Error("load binding", "chat_id", c.ChatID(), "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	if b != nil {
		h.conv.Reset(c.ChatID())
		h.reply(ctx, c, txtAlreadyLink, mainKB)
		return
	}
	h.conv.SetPending(c.ChatID(), models.PendingLinkCode)
	h.reply(ctx, c, txtLinkPrompt, linkKB)
}

func (h *Handler) handleCancelLink(ctx context.Context, c Conversation) {
	if h.conv.Pending(c.ChatID()) != models.PendingLinkCode {
		h.reply(ctx, c, txtNoLinkPending, mainKB)
		return
	}
	h.conv.Reset(c.ChatID())
	h.reply(ctx, c, txtLinkCancelled, mainKB)
}

func (h *Handler) handleUnlink(ctx context.Context, c Conversation) {
	res, err := h.db.UnlinkAccount(ctx, c.ChatID())
	if err != nil {
		h.log.Error("unlink", "chat_id", c.ChatID(), "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	h.conv.Reset(c.ChatID())
	if res.Bindings == 0 {
		h.reply(ctx, c, txtNotLinked, mainKB)
		return
	}
	h.log.Info("account unlinked", "chat_id", c.ChatID(), "subscriptions", res.Subscriptions)
	h.reply(ctx, c, fmt.Sprintf(txtUnlinked, res.Subscriptions), mainKB)
}

// ---------------- plans & report --------------------

func (h *Handler) sendPlan(ctx context.Context, c Conversation, userID int64, date string) {
	entries, err := h.db.PlanEntriesByDate(ctx, userID, date)
	if err != nil {
		h.log.Error("load plan", "user_id", userID, "date", date, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	h.reply(ctx, c, messages.RenderPlan(date, entries), nil)
}

const planCallbackPrefix = "plan:"

func (h *Handler) handleDatePicker(ctx context.Context, c Conversation, b *models.ChatBinding) {
	today := h.today(ctx, b.UserID)

	kb := &models.Keyboard{Inline: true}
	var line []models.Button
	for shift := -1; shift <= 5; shift++ {
		date, err := utils.ShiftDate(today, shift)
		if err != nil {
			continue
		}
		label := messages.HumanDate(date)[:5]
		if shift == 0 {
			label = tokenToday
		}
		line = append(line, models.Button{Text: label, Data: planCallbackPrefix + date})
		if len(line) == 4 {
			kb.Rows = append(kb.Rows, line)
			line = nil
		}
	}
	if len(line) > 0 {
		kb.Rows = append(kb.Rows, line)
	}
	h.reply(ctx, c, txtPickDate, kb)
}

func (h *Handler) handleDailyReport(ctx context.Context, c Conversation, b *models.ChatBinding) {
	date := h.today(ctx, b.UserID)

	plan, err := h.db.PlanEntriesByDate(ctx, b.UserID, date)
	if err != nil {
		h.log.Error("load plan", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	weights, err := h.db.WeightsByDate(ctx, b.UserID, date)
	if err != nil {
		h.log.Error("load weights", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	rec, err := h.db.Recovery(ctx, b.UserID, date)
	if err != nil {
		h.log.Error("load recovery", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}

	h.reply(ctx, c, messages.RenderDailyReport(date, plan, weights, rec), nil)

	h.conv.SetPending(c.ChatID(), models.PendingRecoveryFields)
	h.conv.SetRecoveryDraft(c.ChatID(), models.RecoveryDraft{Date: date})
	h.reply(ctx, c, txtRecoveryPrompt, cancelKB)
}

// ---------------- подписка --------------------

func (h *Handler) handleSubscribe(ctx context.Context, c Conversation, b *models.ChatBinding, enable bool) {
	if err := h.db.UpsertSubscription(ctx, b.UserID, c.ChatID(), models.SubscriptionPatch{Enabled: &enable}, h.clock.Now()); err != nil {
		h.log.Error("toggle subscription", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	if !enable {
		h.reply(ctx, c, txtUnsubscribed, mainKB)
		return
	}

	sub, err := h.db.GetSubscription(ctx, b.UserID)
	if err != nil || sub == nil {
		h.log.Error("load subscription", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	if !sub.Configured() {
		var missing []string
		if sub.SendTime == nil {
			missing = append(missing, "время рассылки")
		}
		if sub.Timezone == nil {
			missing = append(missing, "часовой пояс")
		}
		h.reply(ctx, c, fmt.Sprintf(txtSubscribedIncmp, strings.Join(missing, " и ")), mainKB)
		return
	}
	h.reply(ctx, c, fmt.Sprintf(txtSubscribed, *sub.SendTime, *sub.Timezone), mainKB)
}
