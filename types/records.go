package types

import "time"

// TimeLayout is the wire format for every timestamp kept in the store.
// Documents written by older bot generations carry zone-less ISO-8601
// strings, so that stays the canonical layout.
const TimeLayout = "2006-01-02T15:04:05"

func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// UserRecord is an open-schema profile document. Every bot of the fleet
// stores its own fields here; only user_id and the rate-limit counters
// are owned by this library.
type UserRecord map[string]interface{}

func (u UserRecord) UserID() int64 {
	switch v := u["user_id"].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (u UserRecord) ActionsToday() int {
	switch v := u["actions_today"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// LastActionDate returns the raw stored timestamp, empty if the user
// has never acted.
func (u UserRecord) LastActionDate() string {
	if s, ok := u["last_action_date"].(string); ok {
		return s
	}
	return ""
}

// Lang returns the user's stored language code, empty if unknown.
func (u UserRecord) Lang() string {
	if s, ok := u["lang"].(string); ok {
		return s
	}
	return ""
}

type Order struct {
	OrderID  string `bson:"order_id" json:"order_id"`
	Amount   int64  `bson:"amount" json:"amount"`
	Currency string `bson:"currency" json:"currency"`
	Status   string `bson:"status" json:"status"`
	Date     string `bson:"date" json:"date"`
}

type PaymentEvent struct {
	OrderID        string `bson:"order_id" json:"order_id"`
	Amount         int64  `bson:"amount" json:"amount"`
	Currency       string `bson:"currency" json:"currency"`
	Status         string `bson:"status" json:"status"`
	Date           string `bson:"date" json:"date"`
	ExpirationDate string `bson:"expiration_date" json:"expiration_date"`
	Plan           string `bson:"plan" json:"plan"`
	DurationDays   int    `bson:"duration_days" json:"duration_days"`
}

// SubscriptionRecord is shared fleet-wide. IsPremium as stored may be
// stale; the authoritative answer is PremiumExpiration against the
// current instant (RecordStore.CheckSubscriptionStatus).
type SubscriptionRecord struct {
	UserID            int64          `bson:"user_id" json:"user_id"`
	IsPremium         bool           `bson:"is_premium" json:"is_premium"`
	PremiumExpiration string         `bson:"premium_expiration,omitempty" json:"premium_expiration,omitempty"`
	LastPayment       string         `bson:"last_payment,omitempty" json:"last_payment,omitempty"`
	Payments          []PaymentEvent `bson:"payments,omitempty" json:"payments,omitempty"`
}
