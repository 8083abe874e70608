package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"

	"github.com/maratbg/tgfleet/i18n"
	"github.com/maratbg/tgfleet/payment"
	"github.com/maratbg/tgfleet/subscription"
	"github.com/maratbg/tgfleet/support"
	"github.com/maratbg/tgfleet/types"
)

// Handlers wires the fleet-common commands every bot carries: the
// /more listing, /status, the support flow and the subscription
// purchase path.
type Handlers struct {
	botName   string
	store     types.RecordStore
	tr        types.Translator
	logger    types.ActionLogger
	offer     subscription.Offer
	processor *payment.Processor
	support   *support.Support
	// bots maps URL to display name for the /more listing.
	bots map[string]string
}

type Deps struct {
	BotName    string
	Store      types.RecordStore
	Translator types.Translator
	Logger     types.ActionLogger
	Offer      subscription.Offer
	Processor  *payment.Processor
	Support    *support.Support
	Bots       map[string]string
}

func New(d Deps) *Handlers {
	return &Handlers{
		botName:   d.BotName,
		store:     d.Store,
		tr:        d.Translator,
		logger:    d.Logger,
		offer:     d.Offer,
		processor: d.Processor,
		support:   d.Support,
		bots:      d.Bots,
	}
}

// Register attaches the common handlers to the bot. Bot-specific
// handlers are registered by the owning process on top.
func (h *Handlers) Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/more", bot.MatchTypeExact, h.MoreBotsList)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, h.SubscriptionStatus)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/premium", bot.MatchTypeExact, h.SubscriptionOffer)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "sub_", bot.MatchTypePrefix, h.BuyCallback)

	if h.support != nil {
		b.RegisterHandler(bot.HandlerTypeMessageText, "/support", bot.MatchTypeExact, h.support.HandleCommand)
		b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
			return update.Message != nil && update.Message.From != nil &&
				update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/") &&
				h.support.IsWaiting(update.Message.From.ID)
		}, h.supportResponse)
	}

	if h.processor != nil {
		b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
			return update.PreCheckoutQuery != nil
		}, h.processor.PreCheckout)
		b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
			return update.Message != nil && update.Message.SuccessfulPayment != nil
		}, h.processor.HandleSuccessfulPayment)
	}
}

// botListLines renders the fleet map as HTML link lines, sorted by
// URL so every call produces the same listing.
func botListLines(bots map[string]string) []string {
	urls := make([]string, 0, len(bots))
	for url := range bots {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	lines := make([]string, 0, len(urls))
	for _, url := range urls {
		lines = append(lines, fmt.Sprintf("- <a href='%s'>%s</a>", url, bots[url]))
	}
	return lines
}

func (h *Handlers) lang(from *models.User, userID int64) string {
	if rec, err := h.store.GetUser(userID); err == nil && rec.Lang() != "" {
		return rec.Lang()
	}
	if from != nil {
		return string(i18n.FromLanguageCode(from.LanguageCode))
	}
	return i18n.DefaultLang
}

// MoreBotsList replies with the full fleet listing as HTML links.
func (h *Handlers) MoreBotsList(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	lang := h.lang(update.Message.From, userID)

	text := h.tr.Translate("more_bots.header", lang, nil) + "\n\n" +
		strings.Join(botListLines(h.bots), "\n")

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	})
	if h.logger != nil {
		h.logger.LogAction(userID, "more_bots_list_command", h.botName, nil)
	}
}

// SubscriptionStatus replies with the user's current entitlement.
func (h *Handlers) SubscriptionStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	lang := h.lang(update.Message.From, userID)

	text, err := subscription.StatusMessage(h.store, h.tr, userID, lang)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to read subscription status")
		return
	}
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
	if h.logger != nil {
		h.logger.LogAction(userID, "status_command", h.botName, nil)
	}
}

// SubscriptionOffer presents the tier keyboard on request.
func (h *Handlers) SubscriptionOffer(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	lang := h.lang(update.Message.From, userID)
	if err := h.offer.Send(ctx, NewTelegramMessenger(b), update.Message.Chat.ID, lang); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to send subscription offer")
	}
}

// BuyCallback turns a tier button press into a Stars invoice.
func (h *Handlers) BuyCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
	})

	plan, ok := subscription.PlanForCallback(update.CallbackQuery.Data)
	if !ok {
		return
	}
	chatID := chatIDFromCallback(update.CallbackQuery)
	if chatID == 0 {
		chatID = update.CallbackQuery.From.ID
	}
	lang := h.lang(&update.CallbackQuery.From, update.CallbackQuery.From.ID)

	var label string
	switch plan {
	case subscription.PlanMonthly:
		label = h.tr.Translate("subscription.plans.1month", lang, nil)
	case subscription.PlanQuarterly:
		label = h.tr.Translate("subscription.plans.3months", lang, nil)
	case subscription.PlanYearly:
		label = h.tr.Translate("subscription.plans.1year", lang, nil)
	}

	_, err := b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:      chatID,
		Title:       "Premium subscription",
		Description: "Unlimited access to all bots of the fleet",
		Payload:     plan,
		Currency:    "XTR",
		Prices: []models.LabeledPrice{
			{Label: label, Amount: subscription.PriceStars[plan]},
		},
		ProviderToken: "",
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", update.CallbackQuery.From.ID).
			Str("plan", plan).Msg("failed to send invoice")
	}
}

func (h *Handlers) supportResponse(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.support.HandleUserResponse(ctx, b, update)
}

func chatIDFromCallback(q *models.CallbackQuery) int64 {
	if q.Message.Message != nil {
		return q.Message.Message.Chat.ID
	}
	if q.Message.InaccessibleMessage != nil {
		return q.Message.InaccessibleMessage.Chat.ID
	}
	return 0
}

// ErrorsHandler is meant for bot.WithErrorsHandler: every polling or
// handler error ends up in the process log and in the fleet's action
// log. The callback carries no update, so the audit entry has no user
// attached.
func ErrorsHandler(botName string, logger types.ActionLogger) func(error) {
	return func(err error) {
		log.Error().Err(err).Str("bot", botName).Msg("bot error")
		if logger != nil {
			logger.LogAction(0, "error_handler", botName,
				map[string]interface{}{"error": err.Error()})
		}
	}
}
