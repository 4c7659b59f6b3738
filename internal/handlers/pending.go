package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"telegram-fitness-bot/internal/messages"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/storage"
	"telegram-fitness-bot/internal/utils"
)

// resolvePending consumes text for the chat's pending input. Invalid input
// keeps the state so the user can try again.
func (h *Handler) resolvePending(ctx context.Context, c Conversation, kind models.PendingKind, text string) {
	if kind == models.PendingLinkCode {
		h.resolveLinkCode(ctx, c, text)
		return
	}

	b := h.binding(ctx, c)
	if b == nil {
		return
	}

	switch kind {
	case models.PendingWeightDate:
		h.resolveWeightDate(ctx, c, b, text)
	case models.PendingWeightValue:
		h.resolveWeightValue(ctx, c, b, text)
	case models.PendingTime:
		h.resolveTime(ctx, c, b, text)
	case models.PendingTimezone:
		h.resolveTimezone(ctx, c, b, text)
	case models.PendingRecoveryFields:
		h.resolveRecovery(ctx, c, b, text)
	default:
		h.log.Warn("unexpected pending kind", "chat_id", c.ChatID(), "kind", kind)
		h.conv.Reset(c.ChatID())
	}
}

var linkCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

func (h *Handler) resolveLinkCode(ctx context.Context, c Conversation, text string) {
	if !linkCodeRe.MatchString(text) {
		h.reply(ctx, c, txtLinkBadFormat, linkKB)
		return
	}

	userID, err := h.db.RedeemLinkCode(ctx, text, c.ChatID(), h.clock.Now())
	switch {
	case errors.Is(err, storage.ErrLinkCodeInvalid):
		h.reply(ctx, c, txtLinkInvalid, linkKB)
		return
	case errors.Is(err, storage.ErrAlreadyLinked):
		h.conv.Reset(c.ChatID())
		h.reply(ctx, c, txtAlreadyLink, mainKB)
		return
	case err != nil:
		h.log.Error("redeem link code", "chat_id", c.ChatID(), "err", err)
		h.reply(ctx, c, txtTryLater, linkKB)
		return
	}

	h.conv.Reset(c.ChatID())
	h.log.Info("chat linked", "chat_id", c.ChatID(), "user_id", userID)
	h.reply(ctx, c, txtLinked, mainKB)
}

func (h *Handler) resolveWeightDate(ctx context.Context, c Conversation, b *models.ChatBinding, text string) {
	date, err := parseDayToken(text, h.clock.Now().In(h.userZone(ctx, b.UserID)))
	if err != nil {
		h.reply(ctx, c, txtWeightDateBad, weightDateKB)
		return
	}

	draft := models.WeightDraft{Date: date, Period: models.PeriodMorning}
	h.conv.SetPending(c.ChatID(), models.PendingWeightValue)
	h.conv.SetWeightDraft(c.ChatID(), draft)
	h.promptWeightValue(ctx, c, draft)
}

func (h *Handler) promptWeightValue(ctx context.Context, c Conversation, d models.WeightDraft) {
	text := fmt.Sprintf(txtWeightValue, messages.HumanDate(d.Date), messages.PeriodName(d.Period))
	h.reply(ctx, c, text, periodKB(d.Period))
}

func (h *Handler) resolveWeightValue(ctx context.Context, c Conversation, b *models.ChatBinding, text string) {
	draft, ok := h.conv.WeightDraft(c.ChatID())
	if !ok {
		h.conv.Reset(c.ChatID())
		h.reply(ctx, c, txtDraftExpired, mainKB)
		return
	}

	value, err := parseWeight(text)
	if err != nil {
		h.reply(ctx, c, txtWeightBad, periodKB(draft.Period))
		return
	}

	entry := models.WeightEntry{
		UserID:    b.UserID,
		Date:      draft.Date,
		Period:    draft.Period,
		Value:     value,
		UpdatedAt: h.clock.Now().Unix(),
	}
	if err := h.db.UpsertWeight(ctx, entry); err != nil {
		h.log.Error("save weight", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}

	h.conv.Reset(c.ChatID())
	saved := fmt.Sprintf(txtWeightSaved, messages.FormatWeight(value), messages.HumanDate(draft.Date), messages.PeriodName(draft.Period))
	h.reply(ctx, c, saved, mainKB)
}

func (h *Handler) resolveTime(ctx context.Context, c Conversation, b *models.ChatBinding, text string) {
	clock, err := utils.ParseClock(text)
	if err != nil {
		h.reply(ctx, c, txtTimeBad, cancelKB)
		return
	}
	if err := h.db.UpsertSubscription(ctx, b.UserID, c.ChatID(), models.SubscriptionPatch{SendTime: &clock}, h.clock.Now()); err != nil {
		h.log.Error("save send time", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	h.conv.ClearPending(c.ChatID())
	h.reply(ctx, c, fmt.Sprintf(txtTimeSaved, clock), mainKB)
}

func (h *Handler) resolveTimezone(ctx context.Context, c Conversation, b *models.ChatBinding, text string) {
	loc, err := utils.LoadZone(text)
	if err != nil {
		h.reply(ctx, c, txtTZBad, cancelKB)
		return
	}
	name := loc.String()
	if err := h.db.UpsertSubscription(ctx, b.UserID, c.ChatID(), models.SubscriptionPatch{Timezone: &name}, h.clock.Now()); err != nil {
		h.log.Error("save timezone", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}
	h.conv.ClearPending(c.ChatID())
	// показываем локальное время, чтобы пользователь сверил пояс
	_, local := utils.LocalDay(h.clock.Now(), loc)
	h.reply(ctx, c, fmt.Sprintf(txtTZSaved, name, local), mainKB)
}

func (h *Handler) resolveRecovery(ctx context.Context, c Conversation, b *models.ChatBinding, text string) {
	draft, ok := h.conv.RecoveryDraft(c.ChatID())
	if !ok {
		h.conv.Reset(c.ChatID())
		h.reply(ctx, c, txtDraftExpired, mainKB)
		return
	}

	fields, err := parseRecovery(text)
	if err != nil {
		h.reply(ctx, c, txtRecoveryBad, cancelKB) // черновик остаётся, ждём повторный ввод
		return
	}

	entry := models.RecoveryEntry{
		UserID:     b.UserID,
		Date:       draft.Date,
		Sleep:      fields[0],
		Nutrition:  fields[1],
		Stretching: fields[2],
		UpdatedAt:  h.clock.Now().Unix(),
	}
	if err := h.db.UpsertRecovery(ctx, entry); err != nil {
		h.log.Error("save recovery", "user_id", b.UserID, "err", err)
		h.reply(ctx, c, txtTryLater, nil)
		return
	}

	h.conv.Reset(c.ChatID())
	h.reply(ctx, c, fmt.Sprintf(txtRecoverySaved, messages.HumanDate(draft.Date)), mainKB)
}

// ---------------- parsing --------------------

const maxWeight = 400

var errBadInput = errors.New("bad input")

func parseWeight(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > maxWeight {
		return 0, errBadInput
	}
	return v, nil
}

// parseDayToken resolves a keyboard token or a typed date relative to now,
// which must already be in the user's zone. Future dates are rejected.
func parseDayToken(s string, now time.Time) (string, error) {
	today := now.Format(utils.DateLayout)
	s = strings.TrimSpace(s)

	switch strings.ToLower(s) {
	case strings.ToLower(tokenToday):
		return today, nil
	case strings.ToLower(tokenYesterday):
		return utils.ShiftDate(today, -1)
	case strings.ToLower(tokenDayBeforeYd):
		return utils.ShiftDate(today, -2)
	}

	var (
		t   time.Time
		err error
	)
	switch {
	case len(s) == len("02.01"):
		t, err = time.Parse("02.01.2006", s+"."+strconv.Itoa(now.Year()))
	case strings.Contains(s, "."):
		t, err = time.Parse("02.01.2006", s)
	default:
		t, err = time.Parse(utils.DateLayout, s)
	}
	if err != nil {
		return "", errBadInput
	}
	date := t.Format(utils.DateLayout)
	if date > today && len(s) == len("02.01") {
		date = t.AddDate(-1, 0, 0).Format(utils.DateLayout) // 31.12 typed on Jan 1st
	}
	if date > today {
		return "", errBadInput
	}
	return date, nil
}

var recoveryWords = map[string]bool{
	"да": true, "yes": true, "y": true, "+": true, "1": true, "true": true,
	"нет": false, "no": false, "n": false, "-": false, "0": false, "false": false,
}

// parseRecovery reads sleep, nutrition and stretching answers in that order.
func parseRecovery(s string) ([3]bool, error) {
	var out [3]bool
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t' || r == '\n'
	})
	if len(tokens) != len(out) {
		return out, errBadInput
	}
	for i, tok := range tokens {
		v, ok := recoveryWords[tok]
		if !ok {
			return out, errBadInput
		}
		out[i] = v
	}
	return out, nil
}
