package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telegram-fitness-bot/internal/messages"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/utils"
)

const periodCallbackPrefix = "weight_period:"

func periodKB(selected models.Period) *models.Keyboard {
	morning, evening := "🌅 Утро", "🌙 Вечер"
	if selected == models.PeriodEvening {
		evening = "✅ " + evening
	} else {
		morning = "✅ " + morning
	}
	return &models.Keyboard{Inline: true, Rows: [][]models.Button{{
		{Text: morning, Data: periodCallbackPrefix + string(models.PeriodMorning)},
		{Text: evening, Data: periodCallbackPrefix + string(models.PeriodEvening)},
	}}}
}

// HandleCallback handles inline button presses. c.Text() is the callback
// data. The transport answers the callback query itself.
func (h *Handler) HandleCallback(ctx context.Context, c Conversation) {
	unlock := h.locks.Lock(c.ChatID())
	defer unlock()

	data := c.Text()
	switch {
	case strings.HasPrefix(data, planCallbackPrefix):
		h.handlePlanCallback(ctx, c, strings.TrimPrefix(data, planCallbackPrefix))
	case strings.HasPrefix(data, periodCallbackPrefix):
		h.handlePeriodCallback(ctx, c, models.Period(strings.TrimPrefix(data, periodCallbackPrefix)))
	default:
		h.log.Debug("unknown callback", "chat_id", c.ChatID(), "data", data)
	}
}

func (h *Handler) handlePlanCallback(ctx context.Context, c Conversation, date string) {
	if _, err := time.Parse(utils.DateLayout, date); err != nil {
		// кнопка от старой версии бота
		h.reply(ctx, c, txtStaleButton, nil)
		return
	}
	b := h.binding(ctx, c)
	if b == nil {
		return
	}
	h.sendPlan(ctx, c, b.UserID, date)
}

func (h *Handler) handlePeriodCallback(ctx context.Context, c Conversation, p models.Period) {
	if p != models.PeriodMorning && p != models.PeriodEvening {
		h.reply(ctx, c, txtStaleButton, nil)
		return
	}
	draft, ok := h.conv.WeightDraft(c.ChatID())
	if !ok || h.conv.Pending(c.ChatID()) != models.PendingWeightValue {
		h.reply(ctx, c, txtStaleButton, nil)
		return
	}
	draft.Period = p
	h.conv.SetWeightDraft(c.ChatID(), draft)
	h.reply(ctx, c, fmt.Sprintf(txtPeriodChosen, messages.PeriodName(p)), periodKB(p))
}
