package handlers

import (
	"strings"

	"telegram-fitness-bot/internal/models"
)

type Action int

const (
	ActionNone Action = iota
	ActionToday
	ActionDate
	ActionDailyReport
	ActionWeight
	ActionHelp
	ActionLink
	ActionCancelLink
	ActionUnlink
	ActionSubscribe
	ActionUnsubscribe
	ActionTime
	ActionTimezone
)

var actionNames = [...]string{
	ActionNone:        "none",
	ActionToday:       "today",
	ActionDate:        "date",
	ActionDailyReport: "daily_report",
	ActionWeight:      "weight",
	ActionHelp:        "help",
	ActionLink:        "link",
	ActionCancelLink:  "cancel_link",
	ActionUnlink:      "unlink",
	ActionSubscribe:   "subscribe",
	ActionUnsubscribe: "unsubscribe",
	ActionTime:        "time",
	ActionTimezone:    "timezone",
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[a]
}

// Button labels. The bot generates them itself, so matching is exact.
const (
	labelToday       = "📅 План на сегодня"
	labelDate        = "🗓 План на дату"
	labelDailyReport = "📝 Отчёт за день"
	labelWeight      = "⚖️ Записать вес"
	labelHelp        = "❓ Помощь"
	labelLink        = "🔗 Привязать аккаунт"
	labelCancelLink  = "✖️ Отменить привязку"
	labelUnlink      = "🔓 Отвязать аккаунт"
	labelSubscribe   = "🔔 Подписаться"
	labelUnsubscribe = "🔕 Отписаться"
	labelTime        = "⏰ Время рассылки"
	labelTimezone    = "🌍 Часовой пояс"

	labelCancel = "Отмена"
)

var actionIndex = map[string]Action{}

func register(a Action, keys ...string) {
	for _, k := range keys {
		actionIndex[strings.ToLower(k)] = a
	}
}

func init() {
	register(ActionToday, labelToday, "/today")
	register(ActionDate, labelDate, "/date")
	register(ActionDailyReport, labelDailyReport, "/report")
	register(ActionWeight, labelWeight, "/weight")
	register(ActionHelp, labelHelp, "/help", "/start")
	register(ActionLink, labelLink, "/link")
	register(ActionCancelLink, labelCancelLink, "/cancellink")
	register(ActionUnlink, labelUnlink, "/unlink")
	register(ActionSubscribe, labelSubscribe, "/subscribe")
	register(ActionUnsubscribe, labelUnsubscribe, "/unsubscribe")
	register(ActionTime, labelTime, "/time")
	register(ActionTimezone, labelTimezone, "/timezone")
}

// ResolveAction maps a button label or slash command to an action.
// Unknown text yields ActionNone.
func ResolveAction(text string) Action {
	key := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(key, "/") {
		if i := strings.IndexAny(key, " \t\n"); i > 0 {
			key = key[:i] // "/start payload"
		}
		if i := strings.IndexByte(key, '@'); i > 0 {
			key = key[:i] // "/today@fitbot"
		}
	}
	return actionIndex[key]
}

var cancelWords = map[string]bool{
	"cancel":  true,
	"/cancel": true,
	"отмена":  true,
}

func isCancel(text string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(text))]
}

func row(labels ...string) []models.Button {
	r := make([]models.Button, len(labels))
	for i, l := range labels {
		r[i] = models.Button{Text: l}
	}
	return r
}

var mainKB = &models.Keyboard{Rows: [][]models.Button{
	row(labelToday, labelDate),
	row(labelDailyReport, labelWeight),
	row(labelSubscribe, labelUnsubscribe),
	row(labelTime, labelTimezone),
	row(labelLink, labelUnlink),
	row(labelHelp),
}}

var cancelKB = &models.Keyboard{Rows: [][]models.Button{row(labelCancel)}}

var linkKB = &models.Keyboard{Rows: [][]models.Button{row(labelCancelLink)}}

const (
	tokenToday       = "Сегодня"
	tokenYesterday   = "Вчера"
	tokenDayBeforeYd = "Позавчера"
)

var weightDateKB = &models.Keyboard{Rows: [][]models.Button{
	row(tokenToday, tokenYesterday, tokenDayBeforeYd),
	row(labelCancel),
}}
