package store

import (
	"testing"
	"time"

	"github.com/maratbg/tgfleet/types"
)

func fixedClock(t time.Time) types.Clock {
	return types.ClockFunc(func() time.Time { return t })
}

func TestGetUserCreatesFromTemplate(t *testing.T) {
	s := NewMemoryStore(map[string]interface{}{
		"location":    nil,
		"recommended": []string{},
	})

	rec, err := s.GetUser(123)
	if err != nil {
		t.Fatal(err)
	}
	if rec.UserID() != 123 {
		t.Errorf("user_id = %d, want 123", rec.UserID())
	}
	if _, ok := rec["location"]; !ok {
		t.Error("template field location missing")
	}
	if _, ok := rec["recommended"]; !ok {
		t.Error("template field recommended missing")
	}
}

func TestUpdateUserOnMissingUserCreatesFirst(t *testing.T) {
	s := NewMemoryStore(map[string]interface{}{"location": nil})

	if err := s.UpdateUser(123, map[string]interface{}{"location": "Paris"}); err != nil {
		t.Fatal(err)
	}
	rec, err := s.GetUser(123)
	if err != nil {
		t.Fatal(err)
	}
	if rec["location"] != "Paris" {
		t.Errorf("location = %v, want Paris", rec["location"])
	}
	if rec.UserID() != 123 {
		t.Errorf("user_id = %d, want 123", rec.UserID())
	}
}

func TestGetSubscriptionDefaultWithoutCreation(t *testing.T) {
	s := NewMemoryStore(nil)

	sub, err := s.GetSubscription(123)
	if err != nil {
		t.Fatal(err)
	}
	if sub.UserID != 123 || sub.IsPremium {
		t.Errorf("got %+v, want synthetic non-premium default", sub)
	}
	if len(s.subs) != 0 {
		t.Error("GetSubscription must not create a document")
	}
}

func TestAddSubscriptionPaymentAppendsAndUpdates(t *testing.T) {
	s := NewMemoryStore(nil)

	first := types.PaymentEvent{
		OrderID:        "o1",
		Date:           "2024-01-01T10:00:00",
		ExpirationDate: "2024-01-31T10:00:00",
		Plan:           "1month_sub",
		DurationDays:   30,
	}
	second := types.PaymentEvent{
		OrderID:        "o2",
		Date:           "2024-01-15T10:00:00",
		ExpirationDate: "2024-04-14T10:00:00",
		Plan:           "3months_sub",
		DurationDays:   90,
	}

	if err := s.AddSubscriptionPayment(123, first); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSubscriptionPayment(123, second); err != nil {
		t.Fatal(err)
	}

	sub, err := s.GetSubscription(123)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Payments) != 2 {
		t.Fatalf("payments length = %d, want 2", len(sub.Payments))
	}
	if !sub.IsPremium {
		t.Error("is_premium should be set")
	}
	if sub.PremiumExpiration != second.ExpirationDate {
		t.Errorf("premium_expiration = %q, want %q", sub.PremiumExpiration, second.ExpirationDate)
	}
	if sub.LastPayment != second.Date {
		t.Errorf("last_payment = %q, want %q", sub.LastPayment, second.Date)
	}
}

func TestCheckSubscriptionStatus(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		expiration string
		premium    bool
		want       bool
	}{
		{"active", "2024-02-01T00:00:00", true, true},
		{"expired", "2024-01-01T00:00:00", true, false},
		{"not premium", "", false, false},
		{"malformed expiration", "not-a-date", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMemoryStore(nil).WithClock(fixedClock(now))
			if tc.premium {
				if err := s.UpdateSubscription(123, map[string]interface{}{
					"is_premium":         true,
					"premium_expiration": tc.expiration,
				}); err != nil {
					t.Fatal(err)
				}
			}
			got, err := s.CheckSubscriptionStatus(123)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("status = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUpdateOrderMissingIsNoop(t *testing.T) {
	s := NewMemoryStore(nil)

	if err := s.UpdateOrder(123, "nope", map[string]interface{}{"status": "refunded"}); err != nil {
		t.Errorf("missing order must be a silent no-op, got %v", err)
	}
	orders, err := s.GetOrders(123)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 0 {
		t.Errorf("no-op update created %d orders", len(orders))
	}
}

func TestAddAndUpdateOrder(t *testing.T) {
	s := NewMemoryStore(nil)

	order := types.Order{OrderID: "ch_1", Amount: 1000, Currency: "XTR", Status: "completed", Date: "2024-01-01T10:00:00"}
	if err := s.AddOrder(123, order); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateOrder(123, "ch_1", map[string]interface{}{"status": "refunded"}); err != nil {
		t.Fatal(err)
	}

	orders, err := s.GetOrders(123)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("orders length = %d, want 1", len(orders))
	}
	if orders[0].Status != "refunded" {
		t.Errorf("status = %q, want refunded", orders[0].Status)
	}
	if orders[0].Amount != 1000 || orders[0].Currency != "XTR" {
		t.Errorf("untouched fields changed: %+v", orders[0])
	}
}
