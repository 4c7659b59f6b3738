package models

import "time"

// ChatBinding links a private telegram chat to an application user.
type ChatBinding struct {
	ChatID   int64 `db:"chat_id"   json:"chat_id"`
	UserID   int64 `db:"user_id"   json:"user_id"`
	LinkedAt int64 `db:"linked_at" json:"linked_at"`
}

// Subscription holds daily plan delivery settings for a user.
// Enabled with a nil Timezone or SendTime is a valid but inert record.
type Subscription struct {
	UserID             int64   `db:"user_id"              json:"user_id"`
	ChatID             int64   `db:"chat_id"              json:"chat_id"`
	Enabled            bool    `db:"enabled"              json:"enabled"`
	Timezone           *string `db:"timezone"             json:"timezone,omitempty"`  // IANA name
	SendTime           *string `db:"send_time"            json:"send_time,omitempty"` // "HH:MM"
	LastDispatchedDate *string `db:"last_dispatched_date" json:"last_dispatched_date,omitempty"`
}

// Configured reports whether the scheduler has everything it needs.
func (s Subscription) Configured() bool {
	return s.Timezone != nil && *s.Timezone != "" && s.SendTime != nil && *s.SendTime != ""
}

// SubscriptionPatch is merged onto an existing subscription. Nil fields keep
// their stored value.
type SubscriptionPatch struct {
	Enabled  *bool
	Timezone *string
	SendTime *string
}

// UnlinkResult reports how many rows an unlink removed.
type UnlinkResult struct {
	Bindings      int64
	Subscriptions int64
}

type Period string

const (
	PeriodMorning Period = "morning"
	PeriodEvening Period = "evening"
)

// WeightEntry is unique per (user, date, period).
type WeightEntry struct {
	UserID    int64   `db:"user_id"`
	Date      string  `db:"date"` // YYYY-MM-DD
	Period    Period  `db:"period"`
	Value     float64 `db:"value"`
	UpdatedAt int64   `db:"updated_at"`
}

// RecoveryEntry is unique per (user, date).
type RecoveryEntry struct {
	UserID     int64  `db:"user_id"`
	Date       string `db:"date"`
	Sleep      bool   `db:"sleep"`
	Nutrition  bool   `db:"nutrition"`
	Stretching bool   `db:"stretching"`
	UpdatedAt  int64  `db:"updated_at"`
}

// PlanEntry is a task of the planning subsystem; read-only here.
type PlanEntry struct {
	UserID   int64  `db:"user_id"`
	Date     string `db:"date"`
	Session  int    `db:"session"`
	Position int    `db:"position"`
	Title    string `db:"title"`
	Details  string `db:"details"`
}

// LinkCode is a one-time code issued by the web application.
type LinkCode struct {
	Code       string     `db:"code"`
	UserID     int64      `db:"user_id"`
	ExpiresAt  time.Time  `db:"expires_at"`
	ConsumedAt *time.Time `db:"consumed_at"`
}

// WeightDraft accumulates the weight flow until a value is entered.
type WeightDraft struct {
	Date   string
	Period Period
}

// RecoveryDraft remembers which day the recovery answers belong to.
type RecoveryDraft struct {
	Date string
}

// Button is a keyboard button. Data is only used by inline keyboards.
type Button struct {
	Text string
	Data string
}

// Keyboard is transport-neutral reply markup.
type Keyboard struct {
	Inline bool
	Remove bool
	Rows   [][]Button
}
