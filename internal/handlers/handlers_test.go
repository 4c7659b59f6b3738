package handlers

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-fitness-bot/internal/conversation"
	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/storage"
)

// 12:00 in Moscow
var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type reply struct {
	Text string
	KB   *models.Keyboard
}

// fakeChat records everything the bot answers in one chat.
type fakeChat struct {
	id      int64
	mu      sync.Mutex
	replies []reply
}

func (c *fakeChat) record(text string, kb *models.Keyboard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, reply{Text: text, KB: kb})
}

func (c *fakeChat) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies)
}

func (c *fakeChat) last() reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return reply{}
	}
	return c.replies[len(c.replies)-1]
}

type message struct {
	chat *fakeChat
	text string
}

func (m message) ChatID() int64 { return m.chat.id }
func (m message) Text() string  { return m.text }

func (m message) Reply(_ context.Context, text string, kb *models.Keyboard) error {
	m.chat.record(text, kb)
	return nil
}

type fixture struct {
	h     *Handler
	db    *storage.DB
	clock *clockwork.FakeClock
	codes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(now)
	h := NewHandler(db, conversation.NewStore(0, time.Hour), clock, nil, "Europe/Moscow")
	return &fixture{h: h, db: db, clock: clock}
}

func (f *fixture) send(chat *fakeChat, text string) reply {
	f.h.HandleText(context.Background(), message{chat: chat, text: text})
	return chat.last()
}

func (f *fixture) press(chat *fakeChat, data string) reply {
	f.h.HandleCallback(context.Background(), message{chat: chat, text: data})
	return chat.last()
}

func (f *fixture) link(t *testing.T, chatID, userID int64) {
	t.Helper()
	ctx := context.Background()
	f.codes++
	code := fmt.Sprintf("T%05d", f.codes)
	require.NoError(t, f.db.InsertLinkCode(ctx, models.LinkCode{Code: code, UserID: userID, ExpiresAt: now.Add(time.Hour)}))
	_, err := f.db.RedeemLinkCode(ctx, code, chatID, now)
	require.NoError(t, err)
}

func (f *fixture) addPlan(t *testing.T, userID int64, date string, session, pos int, title string) {
	t.Helper()
	_, err := f.db.ExecContext(context.Background(),
		`INSERT INTO plan_entries (user_id, date, session, position, title) VALUES (?,?,?,?,?)`,
		userID, date, session, pos, title)
	require.NoError(t, err)
}

func TestResolveAction(t *testing.T) {
	cases := map[string]Action{
		labelToday:              ActionToday,
		"  " + labelWeight + " ": ActionWeight,
		"/today":                ActionToday,
		"/TODAY":                ActionToday,
		"/today@fitbot":         ActionToday,
		"/start ref_42":         ActionHelp,
		"/report":               ActionDailyReport,
		labelCancelLink:         ActionCancelLink,
		labelTimezone:           ActionTimezone,
		"/unsubscribe":          ActionUnsubscribe,
		"план на сегодня":       ActionNone,
		"hello":                 ActionNone,
		"":                      ActionNone,
		"/unknown":              ActionNone,
	}
	for in, want := range cases {
		assert.Equal(t, want, ResolveAction(in), "input %q", in)
	}
}

func TestUnknownTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}

	f.send(chat, "привет")
	f.send(chat, "72.5")
	assert.Zero(t, chat.count())
}

func TestLinkedActionsRequireBinding(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}

	for _, label := range []string{labelToday, labelWeight, labelTime, labelSubscribe} {
		assert.Equal(t, txtLinkFirst, f.send(chat, label).Text, label)
		assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id))
	}
	assert.Equal(t, txtHelp, f.send(chat, "/start").Text)
}

func TestLinkCodeRedeemedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.InsertLinkCode(ctx, models.LinkCode{Code: "482913", UserID: 7, ExpiresAt: now.Add(15*time.Minute)}))

	first := &fakeChat{id: 100}
	assert.Equal(t, txtLinkPrompt, f.send(first, labelLink).Text)
	assert.Equal(t, models.PendingLinkCode, f.h.conv.Pending(first.id))
	assert.Equal(t, txtLinkBadFormat, f.send(first, "48291").Text)
	assert.Equal(t, models.PendingLinkCode, f.h.conv.Pending(first.id))
	assert.Equal(t, txtLinked, f.send(first, " 482913 ").Text)
	assert.Equal(t, models.PendingNone, f.h.conv.Pending(first.id))

	second := &fakeChat{id: 200}
	f.send(second, "/link")
	assert.Equal(t, txtLinkInvalid, f.send(second, "482913").Text)
	assert.Equal(t, models.PendingLinkCode, f.h.conv.Pending(second.id))

	b, err := f.db.Binding(ctx, first.id)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.EqualValues(t, 7, b.UserID)

	b, err = f.db.Binding(ctx, second.id)
	require.NoError(t, err)
	assert.Nil(t, b)

	assert.Equal(t, txtAlreadyLink, f.send(first, labelLink).Text)
}

func TestCancelLink(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}

	assert.Equal(t, txtNoLinkPending, f.send(chat, labelCancelLink).Text)
	f.send(chat, labelLink)
	assert.Equal(t, txtLinkCancelled, f.send(chat, labelCancelLink).Text)
	assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id))
}

func TestExpiredLinkCodeKeepsPrompt(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.InsertLinkCode(context.Background(), models.LinkCode{Code: "ABC123", UserID: 7, ExpiresAt: now.Add(time.Minute)}))
	chat := &fakeChat{id: 100}

	f.send(chat, labelLink)
	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, txtLinkInvalid, f.send(chat, "abc123").Text)
	assert.Equal(t, models.PendingLinkCode, f.h.conv.Pending(chat.id))
}

func TestConcurrentRedeemBindsOneChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.InsertLinkCode(ctx, models.LinkCode{Code: "777777", UserID: 7, ExpiresAt: now.Add(time.Hour)}))

	chats := make([]*fakeChat, 8)
	for i := range chats {
		chats[i] = &fakeChat{id: int64(100 + i)}
		f.send(chats[i], labelLink)
	}

	var wg sync.WaitGroup
	for _, c := range chats {
		wg.Add(1)
		go func(c *fakeChat) {
			defer wg.Done()
			f.send(c, "777777")
		}(c)
	}
	wg.Wait()

	linked := 0
	for _, c := range chats {
		if c.last().Text == txtLinked {
			linked++
		}
	}
	assert.Equal(t, 1, linked)
}

func TestCancelClearsEveryPendingKind(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	flows := map[string][]string{
		"link_code":    {"/unlink", labelLink},
		"weight_date":  {labelWeight},
		"weight_value": {labelWeight, tokenYesterday},
		"time":         {labelTime},
		"timezone":     {labelTimezone},
		"recovery":     {labelDailyReport},
	}
	for name, steps := range flows {
		for _, word := range []string{"Отмена", "cancel", "/cancel", "ОТМЕНА"} {
			for _, s := range steps {
				f.send(chat, s)
			}
			require.NotEqual(t, models.PendingNone, f.h.conv.Pending(chat.id), name)

			assert.Equal(t, txtCancelled, f.send(chat, word).Text, name)
			assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id), name)
			_, ok := f.h.conv.WeightDraft(chat.id)
			assert.False(t, ok, name)
			_, ok = f.h.conv.RecoveryDraft(chat.id)
			assert.False(t, ok, name)

			if name == "link_code" {
				f.link(t, chat.id, 7)
			}
		}
	}
}

func TestCancelWithoutPendingIsIgnored(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.send(chat, "отмена")
	assert.Zero(t, chat.count())
}

func TestWeightFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	r := f.send(chat, labelWeight)
	assert.Equal(t, txtWeightDatePrompt, r.Text)
	assert.Equal(t, weightDateKB, r.KB)

	assert.Equal(t, txtWeightDateBad, f.send(chat, "завтра").Text)
	assert.Equal(t, txtWeightDateBad, f.send(chat, "11.03.2026").Text)
	assert.Equal(t, models.PendingWeightDate, f.h.conv.Pending(chat.id))

	r = f.send(chat, tokenYesterday)
	assert.Equal(t, "Дата: 09.03.2026, период: утро.\nВыберите период кнопкой и введите вес в кг, например 72.5", r.Text)
	require.NotNil(t, r.KB)
	assert.True(t, r.KB.Inline)
	assert.Equal(t, models.PendingWeightValue, f.h.conv.Pending(chat.id))

	for _, bad := range []string{"-5", "abc", "0", "401", "NaN", "Inf"} {
		assert.Equal(t, txtWeightBad, f.send(chat, bad).Text, bad)
		assert.Equal(t, models.PendingWeightValue, f.h.conv.Pending(chat.id), bad)
	}
	got, err := f.db.WeightsByDate(ctx, 7, "2026-03-09")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Equal(t, "Период: вечер. Теперь введите вес в кг.", f.press(chat, "weight_period:evening").Text)

	assert.Equal(t, "Записал: 72.5 кг (09.03.2026, вечер).", f.send(chat, "72,5").Text)
	assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id))
	_, ok := f.h.conv.WeightDraft(chat.id)
	assert.False(t, ok)

	got, err = f.db.WeightsByDate(ctx, 7, "2026-03-09")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.PeriodEvening, got[0].Period)
	assert.InDelta(t, 72.5, got[0].Value, 1e-9)
}

func TestWeightDateDefaultsToMorning(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	f.send(chat, "/weight")
	f.send(chat, "10.03")
	f.send(chat, "80")

	got, err := f.db.WeightsByDate(context.Background(), 7, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.PeriodMorning, got[0].Period)
}

func TestPeriodButtonOutsideFlowIsStale(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	assert.Equal(t, txtStaleButton, f.press(chat, "weight_period:evening").Text)
	assert.Equal(t, txtStaleButton, f.press(chat, "plan:yesterday").Text)
}

func TestTimeAndTimezone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	assert.Equal(t, txtTimePrompt, f.send(chat, labelTime).Text)
	for _, bad := range []string{"25:00", "7.30", "07:60", "later"} {
		assert.Equal(t, txtTimeBad, f.send(chat, bad).Text, bad)
		assert.Equal(t, models.PendingTime, f.h.conv.Pending(chat.id))
	}
	assert.Equal(t, "Время рассылки: 07:30.", f.send(chat, "7:30").Text)
	assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id))

	f.send(chat, "/timezone")
	for _, bad := range []string{"Mars/Base", "Local", ""} {
		f.send(chat, bad)
		assert.Equal(t, models.PendingTimezone, f.h.conv.Pending(chat.id), bad)
	}
	// 09:00 UTC is 14:00 in Yekaterinburg
	assert.Equal(t, "Часовой пояс: Asia/Yekaterinburg. Сейчас там 14:00.", f.send(chat, "Asia/Yekaterinburg").Text)

	sub, err := f.db.GetSubscription(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.False(t, sub.Enabled)
	assert.Equal(t, "07:30", *sub.SendTime)
	assert.Equal(t, "Asia/Yekaterinburg", *sub.Timezone)
	assert.EqualValues(t, chat.id, sub.ChatID)
}

func TestSubscribeReportsMissingSettings(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	assert.Equal(t, "Подписка включена, но план не придёт, пока не заданы: время рассылки и часовой пояс.",
		f.send(chat, labelSubscribe).Text)

	f.send(chat, labelTime)
	f.send(chat, "08:15")
	assert.Equal(t, "Подписка включена, но план не придёт, пока не заданы: часовой пояс.",
		f.send(chat, "/subscribe").Text)

	f.send(chat, labelTimezone)
	f.send(chat, "Europe/Berlin")
	assert.Equal(t, "Подписка включена. План будет приходить в 08:15 (Europe/Berlin).", f.send(chat, "/subscribe").Text)

	assert.Equal(t, txtUnsubscribed, f.send(chat, labelUnsubscribe).Text)
	sub, err := f.db.GetSubscription(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, sub.Enabled)
}

func TestUnlinkTwice(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)
	f.send(chat, labelSubscribe)

	assert.Equal(t, "Аккаунт отвязан. Удалено подписок: 1.", f.send(chat, labelUnlink).Text)
	assert.Equal(t, txtNotLinked, f.send(chat, labelUnlink).Text)

	sub, err := f.db.GetSubscription(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestMenuSupersedesPendingInput(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)
	f.addPlan(t, 7, "2026-03-10", 1, 0, "Бег")

	f.send(chat, labelWeight)
	f.send(chat, tokenToday)
	require.Equal(t, models.PendingWeightValue, f.h.conv.Pending(chat.id))

	r := f.send(chat, labelToday)
	assert.Contains(t, r.Text, "1. Бег")
	assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id))
	_, ok := f.h.conv.WeightDraft(chat.id)
	assert.False(t, ok)

	f.send(chat, labelTime)
	assert.Equal(t, txtTZPrompt, f.send(chat, labelTimezone).Text)
	assert.Equal(t, models.PendingTimezone, f.h.conv.Pending(chat.id))
}

func TestDailyReportOpensRecoveryFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)
	require.NoError(t, f.db.UpsertWeight(ctx, models.WeightEntry{UserID: 7, Date: "2026-03-10", Period: models.PeriodMorning, Value: 80.5}))

	r := f.send(chat, labelDailyReport)
	assert.Equal(t, txtRecoveryPrompt, r.Text)
	require.Equal(t, 2, chat.count())
	assert.Contains(t, chat.replies[0].Text, "Вес: утро 80.5 кг")
	assert.Equal(t, models.PendingRecoveryFields, f.h.conv.Pending(chat.id))

	assert.Equal(t, txtRecoveryBad, f.send(chat, "да нет").Text)
	assert.Equal(t, txtRecoveryBad, f.send(chat, "да может нет").Text)
	assert.Equal(t, models.PendingRecoveryFields, f.h.conv.Pending(chat.id))

	assert.Equal(t, "Восстановление за 10.03.2026 сохранено.", f.send(chat, "Да, -, yes").Text)
	assert.Equal(t, models.PendingNone, f.h.conv.Pending(chat.id))

	rec, err := f.db.Recovery(ctx, 7, "2026-03-10")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Sleep)
	assert.False(t, rec.Nutrition)
	assert.True(t, rec.Stretching)
}

func TestSavedEntriesUseHandlerClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)
	f.clock.Advance(2 * time.Hour)
	want := f.clock.Now().Unix()

	f.send(chat, "/weight")
	f.send(chat, "10.03")
	f.send(chat, "80")
	weights, err := f.db.WeightsByDate(ctx, 7, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, weights, 1)
	assert.Equal(t, want, weights[0].UpdatedAt)

	f.send(chat, labelDailyReport)
	f.send(chat, "да да да")
	rec, err := f.db.Recovery(ctx, 7, "2026-03-10")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, want, rec.UpdatedAt)

	f.send(chat, labelTime)
	f.send(chat, "07:30")
	var subUpdated int64
	require.NoError(t, f.db.QueryRowContext(ctx, `SELECT updated_at FROM subscriptions WHERE user_id=7`).Scan(&subUpdated))
	assert.Equal(t, want, subUpdated)
}

func TestTodayUsesUserTimezone(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)
	f.addPlan(t, 7, "2026-03-10", 1, 0, "Бег")
	f.addPlan(t, 7, "2026-03-11", 1, 0, "Плавание")

	assert.Contains(t, f.send(chat, labelToday).Text, "Бег")

	// 12:00 UTC is already the 11th in Auckland
	f.clock.Advance(3 * time.Hour)
	f.send(chat, labelTimezone)
	f.send(chat, "Pacific/Auckland")
	assert.Contains(t, f.send(chat, labelToday).Text, "Плавание")
}

func TestDatePicker(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)
	f.addPlan(t, 7, "2026-03-12", 1, 0, "Йога")

	r := f.send(chat, labelDate)
	assert.Equal(t, txtPickDate, r.Text)
	require.NotNil(t, r.KB)
	assert.True(t, r.KB.Inline)

	var data []string
	for _, row := range r.KB.Rows {
		for _, b := range row {
			data = append(data, b.Data)
		}
	}
	require.Len(t, data, 7)
	assert.Equal(t, "plan:2026-03-09", data[0])
	assert.Equal(t, "plan:2026-03-15", data[6])
	assert.Equal(t, tokenToday, r.KB.Rows[0][1].Text)

	assert.Contains(t, f.press(chat, "plan:2026-03-12").Text, "1. Йога")
}

func TestParseDayToken(t *testing.T) {
	today := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"Сегодня":    "2026-01-01",
		"вчера":      "2025-12-31",
		"Позавчера":  "2025-12-30",
		"31.12":      "2025-12-31",
		"01.01":      "2026-01-01",
		"15.06.2025": "2025-06-15",
		"2025-06-15": "2025-06-15",
	}
	for in, want := range cases {
		got, err := parseDayToken(in, today)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"02.01.2026", "2026-01-02", "32.01", "tomorrow", ""} {
		_, err := parseDayToken(bad, today)
		assert.Error(t, err, bad)
	}
}

// Random input sequences must never leave a draft without its flow.
func TestDraftsFollowPendingKind(t *testing.T) {
	f := newFixture(t)
	chat := &fakeChat{id: 100}
	f.link(t, chat.id, 7)

	texts := []string{
		labelWeight, labelDailyReport, labelTime, labelTimezone, labelToday, labelLink,
		labelHelp, tokenToday, tokenYesterday, "72.5", "-5", "abc", "да нет да",
		"07:30", "Europe/Moscow", "Отмена", "hello",
	}
	callbacks := []string{"weight_period:evening", "weight_period:morning", "plan:2026-03-10"}

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		if rnd.Intn(5) == 0 {
			f.press(chat, callbacks[rnd.Intn(len(callbacks))])
		} else {
			f.send(chat, texts[rnd.Intn(len(texts))])
		}

		pending := f.h.conv.Pending(chat.id)
		if _, ok := f.h.conv.WeightDraft(chat.id); ok {
			require.Equal(t, models.PendingWeightValue, pending, "step %d", i)
		}
		if _, ok := f.h.conv.RecoveryDraft(chat.id); ok {
			require.Equal(t, models.PendingRecoveryFields, pending, "step %d", i)
		}
		if pending == models.PendingWeightValue {
			_, ok := f.h.conv.WeightDraft(chat.id)
			require.True(t, ok, "step %d", i)
		}
	}
}
