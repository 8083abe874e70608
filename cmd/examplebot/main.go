package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maratbg/tgfleet/botlog"
	"github.com/maratbg/tgfleet/config"
	"github.com/maratbg/tgfleet/handlers"
	"github.com/maratbg/tgfleet/i18n"
	"github.com/maratbg/tgfleet/payment"
	"github.com/maratbg/tgfleet/ratelimit"
	"github.com/maratbg/tgfleet/store"
	"github.com/maratbg/tgfleet/subscription"
	"github.com/maratbg/tgfleet/support"
	"github.com/maratbg/tgfleet/types"
)

// Minimal bot of the fleet: every inbound text message is one rate
// limited "action". Real bots register their own handlers on top of
// the common set.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	botName := strings.TrimSpace(os.Getenv("BOT_NAME"))
	if botName == "" {
		botName = "ExampleBot"
	}

	client, err := store.NewClient(cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer client.Close()

	recordStore := store.NewMongoStore(client, store.Config{
		Database:       envOr("BOT_DB_NAME", "example_bot"),
		SubscriptionDB: cfg.SubscriptionDBName,
		Debug:          cfg.Debug,
		UserTemplate: map[string]interface{}{
			"lang": nil,
		},
	})

	catalog := i18n.Common()
	if err := catalog.MergeDir("locales"); err != nil {
		log.Fatal().Err(err).Msg("failed to load bot locales")
	}

	actionLog := botlog.New(client, cfg.LogsDBName, cfg.Debug)

	rateLimit := envInt("RATE_LIMIT", 5)
	limiter := ratelimit.New(recordStore, types.SystemClock{}, rateLimit)

	offer := subscription.Offer{
		Translator: catalog,
		BotsAmount: cfg.BotsAmount,
	}

	processor := &payment.Processor{
		Store:      recordStore,
		Translator: catalog,
		Logger:     actionLog,
		Clock:      types.SystemClock{},
		BotName:    botName,
	}

	var sup *support.Support
	if addr := redisAddr(); addr != "" {
		rdb, err := store.NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), envInt("REDIS_DB", 0))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		state := store.NewRedisStateStore(rdb, botName, 24)
		sup = support.New(state, client, cfg.SubscriptionDBName, botName, catalog, actionLog)
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		log.Fatal().Msg("BOT_TOKEN is not set")
	}

	httpClient := &http.Client{Timeout: 10 * time.Minute}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		botToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
		bot.WithErrorsHandler(handlers.ErrorsHandler(botName, actionLog)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	common := handlers.New(handlers.Deps{
		BotName:    botName,
		Store:      recordStore,
		Translator: catalog,
		Logger:     actionLog,
		Offer:      offer,
		Processor:  processor,
		Support:    sup,
		Bots:       cfg.Bots,
	})
	common.Register(b)

	messenger := handlers.NewTelegramMessenger(b)
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil && update.Message.From != nil &&
			update.Message.Text != "" && !strings.HasPrefix(update.Message.Text, "/")
	}, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		userID := update.Message.From.ID
		chatID := update.Message.Chat.ID
		lang := string(i18n.FromLanguageCode(update.Message.From.LanguageCode))

		ok, err := limiter.CheckWithOffer(ctx, messenger, offer, userID, chatID, lang)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("rate limit check failed")
			return
		}
		if !ok {
			return
		}
		actionLog.LogAction(userID, "echo_message", botName, nil)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   update.Message.Text,
		})
	})

	log.Info().Str("bot", botName).Int("rate_limit", rateLimit).Msg("bot started")
	b.Start(ctx)
}

func envOr(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func redisAddr() string {
	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if host == "" {
		return ""
	}
	port := strings.TrimSpace(os.Getenv("REDIS_PORT"))
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", host, port)
}
