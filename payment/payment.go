package payment

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/maratbg/tgfleet/i18n"
	"github.com/maratbg/tgfleet/subscription"
	"github.com/maratbg/tgfleet/types"
)

// ErrUnknownPlan marks a settled charge whose payload did not resolve
// to a plan. Recoverable: the user still gets a reply, nothing is
// written to the ledger.
var ErrUnknownPlan = errors.New("unknown subscription plan")

// Answer text for a failed pre-checkout acknowledgement. Deliberately
// generic and unlocalized; at this stage we may not know the user.
const preCheckoutErrMessage = "An error occurred while processing your payment"

// Charge is a completed payment as reported by the provider.
type Charge struct {
	OrderID  string
	Amount   int64
	Currency string
	// Payload carries the plan code the invoice was issued with.
	Payload string
}

// Processor turns provider payment events into ledger state.
type Processor struct {
	Store      types.RecordStore
	Translator types.Translator
	Logger     types.ActionLogger
	Clock      types.Clock
	BotName    string
}

// Settle records a completed charge: the raw event is always logged,
// then the plan is resolved; on success the generic order and the
// subscription extension are written and a localized success reply is
// returned. An unknown plan writes nothing and returns the localized
// payment-issue reply together with ErrUnknownPlan.
func (p *Processor) Settle(userID int64, lang string, ch Charge) (string, error) {
	if p.Logger != nil {
		p.Logger.LogAction(userID, "successful_payment", p.BotName, map[string]interface{}{
			"payload":  ch.Payload,
			"amount":   ch.Amount,
			"currency": ch.Currency,
		})
	}

	days, ok := subscription.ResolvePlan(ch.Payload)
	if !ok {
		return p.Translator.Translate("subscription.payment_issue", lang, nil), ErrUnknownPlan
	}

	now := p.Clock.Now()
	date := types.FormatTime(now)
	if err := p.Store.AddOrder(userID, types.Order{
		OrderID:  ch.OrderID,
		Amount:   ch.Amount,
		Currency: ch.Currency,
		Status:   "completed",
		Date:     date,
	}); err != nil {
		return "", err
	}

	expiration := now.AddDate(0, 0, days)
	if err := p.Store.AddSubscriptionPayment(userID, types.PaymentEvent{
		OrderID:        ch.OrderID,
		Amount:         ch.Amount,
		Currency:       ch.Currency,
		Status:         "completed",
		Date:           date,
		ExpirationDate: types.FormatTime(expiration),
		Plan:           ch.Payload,
		DurationDays:   days,
	}); err != nil {
		return "", err
	}

	return p.Translator.Translate("subscription.success", lang,
		map[string]string{"date": expiration.Format("2006-01-02")}), nil
}

// PreCheckout acknowledges an inbound charge request. Everything is
// approved at this stage; validation happens on settlement. If the
// acknowledgement itself fails, a generic decline is sent instead.
func (p *Processor) PreCheckout(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.PreCheckoutQuery == nil {
		return
	}
	_, err := b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: update.PreCheckoutQuery.ID,
		OK:                 true,
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", update.PreCheckoutQuery.From.ID).
			Msg("pre-checkout answer failed")
		_, _ = b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
			PreCheckoutQueryID: update.PreCheckoutQuery.ID,
			OK:                 false,
			ErrorMessage:       preCheckoutErrMessage,
		})
	}
}

// HandleSuccessfulPayment is the settlement entry point for Telegram
// updates.
func (p *Processor) HandleSuccessfulPayment(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.SuccessfulPayment == nil {
		return
	}
	msg := update.Message
	userID := msg.Chat.ID
	var langCode string
	if msg.From != nil {
		userID = msg.From.ID
		langCode = msg.From.LanguageCode
	}

	lang := string(i18n.FromLanguageCode(langCode))
	if rec, err := p.Store.GetUser(userID); err == nil && rec.Lang() != "" {
		lang = rec.Lang()
	}

	sp := msg.SuccessfulPayment
	orderID := sp.ProviderPaymentChargeID
	if orderID == "" {
		orderID = sp.TelegramPaymentChargeID
	}
	reply, err := p.Settle(userID, lang, Charge{
		OrderID:  orderID,
		Amount:   int64(sp.TotalAmount),
		Currency: sp.Currency,
		Payload:  sp.InvoicePayload,
	})
	if err != nil && !errors.Is(err, ErrUnknownPlan) {
		log.Error().Err(err).Int64("user_id", userID).Str("order_id", orderID).
			Str("amount", strconv.FormatInt(int64(sp.TotalAmount), 10)).
			Msg("failed to settle payment")
		return
	}

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   reply,
	})
}
