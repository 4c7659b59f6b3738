package models

// PendingKind is the follow-up input a chat is expected to send next.
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingLinkCode
	PendingWeightDate
	PendingWeightValue
	PendingTime
	PendingTimezone
	PendingRecoveryFields
)

var pendingNames = [...]string{
	PendingNone:           "none",
	PendingLinkCode:       "awaiting_link_code",
	PendingWeightDate:     "awaiting_weight_date",
	PendingWeightValue:    "awaiting_weight_value",
	PendingTime:           "awaiting_time",
	PendingTimezone:       "awaiting_timezone",
	PendingRecoveryFields: "awaiting_recovery_fields",
}

func (k PendingKind) String() string {
	if k < 0 || int(k) >= len(pendingNames) {
		return "unknown"
	}
	return pendingNames[k]
}

// WeightFlow reports whether the kind belongs to the weight entry flow.
func (k PendingKind) WeightFlow() bool {
	return k == PendingWeightDate || k == PendingWeightValue
}
