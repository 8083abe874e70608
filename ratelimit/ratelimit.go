package ratelimit

import (
	"context"
	"time"

	"github.com/maratbg/tgfleet/subscription"
	"github.com/maratbg/tgfleet/types"
)

// Limiter gates a non-premium user's daily action quota. State is
// (actions_today, last_action_date) in the user's store document;
// nothing is cached in-process, so every bot of the fleet sees the
// same counter.
//
// The check and the increment are separate store operations: two
// near-simultaneous actions by one user on different processes can
// both read the pre-increment count and both be admitted. The limit is
// best-effort, not a hard cap.
type Limiter struct {
	store types.RecordStore
	clock types.Clock
	limit int
}

func New(store types.RecordStore, clock types.Clock, limit int) *Limiter {
	return &Limiter{store: store, clock: clock, limit: limit}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CheckLimit reports whether the user may act now, without counting
// the action. A last_action_date from a previous calendar day resets
// the stored counter to zero first; days are compared by calendar
// date, not a rolling 24h window, so 23:59 and 00:01 are two days.
func (l *Limiter) CheckLimit(userID int64) (bool, types.UserRecord, error) {
	rec, err := l.store.GetUser(userID)
	if err != nil {
		return false, nil, err
	}
	now := l.clock.Now()

	if last := rec.LastActionDate(); last != "" {
		if t, perr := types.ParseTime(last); perr == nil && sameDay(t, now) {
			return rec.ActionsToday() < l.limit, rec, nil
		}
		// Prior-day (or unreadable) date: persist the reset so the
		// zeroed counter is visible to every process.
		rec["actions_today"] = 0
		rec["last_action_date"] = types.FormatTime(now)
		if err := l.store.UpdateUser(userID, map[string]interface{}{
			"actions_today":    0,
			"last_action_date": types.FormatTime(now),
		}); err != nil {
			return false, nil, err
		}
	}

	return 0 < l.limit, rec, nil
}

// IncrementActionCount counts one action against rec's user: counter
// plus one, last_action_date now.
func (l *Limiter) IncrementActionCount(userID int64, rec types.UserRecord) error {
	count := rec.ActionsToday() + 1
	now := types.FormatTime(l.clock.Now())
	if err := l.store.UpdateUser(userID, map[string]interface{}{
		"actions_today":    count,
		"last_action_date": now,
	}); err != nil {
		return err
	}
	rec["actions_today"] = count
	rec["last_action_date"] = now
	return nil
}

// CheckAndIncrement is the one operation callers should use: it
// decides and, on permit, counts the action in the same call. An
// active subscription bypasses the counter entirely; no counter read
// or write happens for premium users.
func (l *Limiter) CheckAndIncrement(userID int64) (bool, error) {
	premium, err := l.store.CheckSubscriptionStatus(userID)
	if err != nil {
		return false, err
	}
	if premium {
		return true, nil
	}

	allowed, rec, err := l.CheckLimit(userID)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}
	if err := l.IncrementActionCount(userID, rec); err != nil {
		return false, err
	}
	return true, nil
}

// CheckWithOffer runs CheckAndIncrement and, on deny, tells the user
// the limit is reached and offers the subscription tiers in their
// language.
func (l *Limiter) CheckWithOffer(ctx context.Context, m types.Messenger, offer subscription.Offer, userID, chatID int64, langHint string) (bool, error) {
	ok, err := l.CheckAndIncrement(userID)
	if err != nil || ok {
		return ok, err
	}

	lang := langHint
	if rec, uerr := l.store.GetUser(userID); uerr == nil && rec.Lang() != "" {
		lang = rec.Lang()
	}
	if err := m.Reply(ctx, chatID, offer.Translator.Translate("rate_limit.exceeded", lang, nil)); err != nil {
		return false, err
	}
	return false, offer.Send(ctx, m, chatID, lang)
}
