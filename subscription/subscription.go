package subscription

import (
	"context"
	"strconv"

	"github.com/maratbg/tgfleet/types"
)

// Callback codes carried by the subscription keyboard buttons, and the
// invoice payloads they turn into. The payload is what settlement sees
// as the plan code.
const (
	CallbackMonthly   = "sub_1month"
	CallbackQuarterly = "sub_3months"
	CallbackYearly    = "sub_1year"

	PlanMonthly   = "1month_sub"
	PlanQuarterly = "3months_sub"
	PlanYearly    = "1year_sub"
)

var planDays = map[string]int{
	PlanMonthly:   30,
	PlanQuarterly: 90,
	PlanYearly:    365,
}

// PriceStars is the Telegram Stars price per plan.
var PriceStars = map[string]int{
	PlanMonthly:   400,
	PlanQuarterly: 1100,
	PlanYearly:    3600,
}

// ResolvePlan maps a plan code to its duration in calendar days. An
// unknown code is a normal outcome, not an error; the caller branches.
func ResolvePlan(code string) (days int, ok bool) {
	days, ok = planDays[code]
	return days, ok
}

// PlanForCallback maps a keyboard callback code to the plan code.
func PlanForCallback(cb string) (string, bool) {
	switch cb {
	case CallbackMonthly:
		return PlanMonthly, true
	case CallbackQuarterly:
		return PlanQuarterly, true
	case CallbackYearly:
		return PlanYearly, true
	default:
		return "", false
	}
}

// Offer presents the subscription tiers to a user who hit the limit or
// asked for them.
type Offer struct {
	Translator types.Translator
	// BotsAmount is the fleet size; the upsell mentions the other
	// BotsAmount-1 bots one subscription unlocks.
	BotsAmount int
}

// KeyboardRows builds the tier keyboard: monthly and quarterly on the
// first row, yearly on its own.
func (o Offer) KeyboardRows(lang string) [][]types.KeyboardOption {
	tr := o.Translator
	return [][]types.KeyboardOption{
		{
			{Label: tr.Translate("subscription.plans.1month", lang, nil), Code: CallbackMonthly},
			{Label: tr.Translate("subscription.plans.3months", lang, nil), Code: CallbackQuarterly},
		},
		{
			{Label: tr.Translate("subscription.plans.1year", lang, nil), Code: CallbackYearly},
		},
	}
}

// Send delivers the upsell message followed by the plan keyboard.
func (o Offer) Send(ctx context.Context, m types.Messenger, chatID int64, lang string) error {
	count := o.BotsAmount - 1
	if count < 0 {
		count = 0
	}
	if err := m.Reply(ctx, chatID, o.Translator.Translate("subscription.unlock_bots", lang,
		map[string]string{"count": strconv.Itoa(count)})); err != nil {
		return err
	}
	return m.SendKeyboard(ctx, chatID,
		o.Translator.Translate("subscription.choose_plan", lang, nil),
		o.KeyboardRows(lang))
}

// StatusMessage renders the user's current entitlement. The live
// answer comes from the store's expiration comparison, not the cached
// is_premium flag.
func StatusMessage(store types.RecordStore, tr types.Translator, userID int64, lang string) (string, error) {
	active, err := store.CheckSubscriptionStatus(userID)
	if err != nil {
		return "", err
	}
	if !active {
		return tr.Translate("subscription.status.inactive", lang, nil), nil
	}
	sub, err := store.GetSubscription(userID)
	if err != nil {
		return "", err
	}
	date := sub.PremiumExpiration
	if t, perr := types.ParseTime(sub.PremiumExpiration); perr == nil {
		date = t.Format("2006-01-02")
	}
	return tr.Translate("subscription.status.active", lang, map[string]string{"date": date}), nil
}
