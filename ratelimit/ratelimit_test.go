package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/maratbg/tgfleet/i18n"
	"github.com/maratbg/tgfleet/store"
	"github.com/maratbg/tgfleet/subscription"
	"github.com/maratbg/tgfleet/types"
)

func fixedClock(t time.Time) types.Clock {
	return types.ClockFunc(func() time.Time { return t })
}

// spyStore counts adapter calls on top of a real store.
type spyStore struct {
	types.RecordStore
	getUserCalls    int
	updateUserCalls int
}

func (s *spyStore) GetUser(userID int64) (types.UserRecord, error) {
	s.getUserCalls++
	return s.RecordStore.GetUser(userID)
}

func (s *spyStore) UpdateUser(userID int64, fields map[string]interface{}) error {
	s.updateUserCalls++
	return s.RecordStore.UpdateUser(userID, fields)
}

func TestExactlyNActionsThenDenied(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	l := New(mem, fixedClock(now), 3)

	for i := 0; i < 3; i++ {
		ok, err := l.CheckAndIncrement(42)
		if err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("action %d should be permitted", i+1)
		}
	}

	ok, err := l.CheckAndIncrement(42)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("4th action should be denied")
	}

	rec, _ := mem.GetUser(42)
	if got := rec.ActionsToday(); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}
}

func TestPremiumBypassDoesNoCounterIO(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	if err := mem.AddSubscriptionPayment(42, types.PaymentEvent{
		Date:           "2024-01-01T09:00:00",
		ExpirationDate: "2024-02-01T09:00:00",
	}); err != nil {
		t.Fatal(err)
	}

	spy := &spyStore{RecordStore: mem}
	l := New(spy, fixedClock(now), 0) // limit 0: only the bypass can admit

	for i := 0; i < 5; i++ {
		ok, err := l.CheckAndIncrement(42)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("premium user denied on check %d", i+1)
		}
	}
	if spy.getUserCalls != 0 || spy.updateUserCalls != 0 {
		t.Errorf("premium checks touched the counter: %d reads, %d writes",
			spy.getUserCalls, spy.updateUserCalls)
	}
}

func TestStaleDateResetsCounter(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	if err := mem.UpdateUser(42, map[string]interface{}{
		"actions_today":    5,
		"last_action_date": "2024-01-01T15:00:00",
	}); err != nil {
		t.Fatal(err)
	}

	l := New(mem, fixedClock(now), 3)
	ok, err := l.CheckAndIncrement(42)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("first action of a new day should be permitted")
	}

	rec, _ := mem.GetUser(42)
	if got := rec.ActionsToday(); got != 1 {
		t.Errorf("counter after reset+increment = %d, want 1", got)
	}
	if got := rec.LastActionDate(); got != types.FormatTime(now) {
		t.Errorf("last_action_date = %q, want %q", got, types.FormatTime(now))
	}
}

func TestDayBoundaryIsCalendarDate(t *testing.T) {
	// 23:59 and 00:01 are different days; the counter starts over.
	lateNight := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil)
	if err := mem.UpdateUser(42, map[string]interface{}{
		"actions_today":    3,
		"last_action_date": types.FormatTime(lateNight),
	}); err != nil {
		t.Fatal(err)
	}

	justAfterMidnight := time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)
	l := New(mem, fixedClock(justAfterMidnight), 3)
	ok, err := l.CheckAndIncrement(42)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("action just after midnight should be permitted")
	}
}

func TestZeroLimitDeniesEverything(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	l := New(mem, fixedClock(now), 0)

	ok, err := l.CheckAndIncrement(42)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("limit 0 must deny every non-premium action")
	}
}

func TestSameDayUnderLimitScenario(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	if err := mem.UpdateUser(42, map[string]interface{}{
		"actions_today":    2,
		"last_action_date": "2024-01-01T09:00:00",
	}); err != nil {
		t.Fatal(err)
	}

	l := New(mem, fixedClock(now), 3)

	ok, err := l.CheckAndIncrement(42)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("3rd action of the day should be permitted")
	}
	rec, _ := mem.GetUser(42)
	if got := rec.ActionsToday(); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}

	ok, err = l.CheckAndIncrement(42)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("4th action of the day should be denied")
	}
	rec, _ = mem.GetUser(42)
	if got := rec.ActionsToday(); got != 3 {
		t.Errorf("counter after denial = %d, want 3", got)
	}
}

type fakeMessenger struct {
	replies   []string
	keyboards [][][]types.KeyboardOption
}

func (m *fakeMessenger) Reply(_ context.Context, _ int64, text string) error {
	m.replies = append(m.replies, text)
	return nil
}

func (m *fakeMessenger) SendKeyboard(_ context.Context, _ int64, text string, rows [][]types.KeyboardOption) error {
	m.replies = append(m.replies, text)
	m.keyboards = append(m.keyboards, rows)
	return nil
}

func TestDenialSendsOffer(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	l := New(mem, fixedClock(now), 0)

	m := &fakeMessenger{}
	offer := subscription.Offer{Translator: i18n.Common(), BotsAmount: 5}

	ok, err := l.CheckWithOffer(context.Background(), m, offer, 42, 42, "en")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected denial")
	}

	if len(m.replies) != 3 {
		t.Fatalf("got %d messages, want 3 (exceeded, upsell, plan keyboard)", len(m.replies))
	}
	if m.replies[0] != i18n.T("rate_limit.exceeded", "en") {
		t.Errorf("first reply = %q", m.replies[0])
	}
	if len(m.keyboards) != 1 {
		t.Fatalf("got %d keyboards, want 1", len(m.keyboards))
	}
	rows := m.keyboards[0]
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("unexpected keyboard layout: %v", rows)
	}
	if rows[0][0].Code != subscription.CallbackMonthly ||
		rows[0][1].Code != subscription.CallbackQuarterly ||
		rows[1][0].Code != subscription.CallbackYearly {
		t.Errorf("unexpected callback codes: %v", rows)
	}
}

func TestPermittedCheckSendsNothing(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore(nil).WithClock(fixedClock(now))
	l := New(mem, fixedClock(now), 3)

	m := &fakeMessenger{}
	offer := subscription.Offer{Translator: i18n.Common(), BotsAmount: 5}

	ok, err := l.CheckWithOffer(context.Background(), m, offer, 42, 42, "en")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected permit")
	}
	if len(m.replies) != 0 {
		t.Errorf("permitted check sent %d messages", len(m.replies))
	}
}
