package support

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/maratbg/tgfleet/i18n"
	"github.com/maratbg/tgfleet/store"
	"github.com/maratbg/tgfleet/types"
)

const waitingFlag = "support_waiting"

// StateStore keeps the short-lived "next message is a support request"
// flag, shared across the fleet so any process can pick up the reply.
type StateStore interface {
	SetFlag(userID int64, name string, value bool) error
	GetFlag(userID int64, name string) (bool, error)
}

// Support collects user problem reports into a fleet-wide inbox.
type Support struct {
	state   StateStore
	tickets *mongo.Collection
	tr      types.Translator
	logger  types.ActionLogger
	clock   types.Clock
	botName string
}

func New(state StateStore, client *store.Client, dbName, botName string, tr types.Translator, logger types.ActionLogger) *Support {
	return &Support{
		state:   state,
		tickets: client.Collection(dbName, "support"),
		tr:      tr,
		logger:  logger,
		clock:   types.SystemClock{},
		botName: botName,
	}
}

// HandleCommand reacts to /support: prompt the user and arm the
// waiting flag.
func (s *Support) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	lang := string(i18n.FromLanguageCode(update.Message.From.LanguageCode))

	if err := s.state.SetFlag(userID, waitingFlag, true); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to arm support flag")
		return
	}
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   s.tr.Translate("support.message", lang, nil),
	})
	if s.logger != nil {
		s.logger.LogAction(userID, "support_command", s.botName, nil)
	}
}

// IsWaiting reports whether the user's next message should be treated
// as a support request.
func (s *Support) IsWaiting(userID int64) bool {
	waiting, _ := s.state.GetFlag(userID, waitingFlag)
	return waiting
}

// HandleUserResponse stores the message as a ticket if the user was in
// the waiting state. Returns true when the message was consumed.
func (s *Support) HandleUserResponse(ctx context.Context, b *bot.Bot, update *models.Update) bool {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return false
	}
	userID := update.Message.From.ID
	if !s.IsWaiting(userID) {
		return false
	}
	lang := string(i18n.FromLanguageCode(update.Message.From.LanguageCode))

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.tickets.InsertOne(insertCtx, bson.M{
		"_id":       uuid.NewString(),
		"user_id":   userID,
		"username":  update.Message.From.Username,
		"message":   update.Message.Text,
		"bot_name":  s.botName,
		"timestamp": types.FormatTime(s.clock.Now()),
		"resolved":  false,
	})
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to store support ticket")
		return false
	}

	_ = s.state.SetFlag(userID, waitingFlag, false)
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   s.tr.Translate("support.response", lang, nil),
	})
	if s.logger != nil {
		s.logger.LogAction(userID, "support_message_sent", s.botName,
			map[string]interface{}{"message": update.Message.Text})
	}
	return true
}
