package botlog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/maratbg/tgfleet/store"
	"github.com/maratbg/tgfleet/types"
)

// Logger writes user action entries to the fleet-wide logs database.
// Best effort: a failed insert is logged and swallowed, never surfaced
// to the operation that triggered it.
type Logger struct {
	collection *mongo.Collection
	clock      types.Clock
}

var _ types.ActionLogger = (*Logger)(nil)

func New(client *store.Client, logsDBName string, debug bool) *Logger {
	col := "logs"
	if debug {
		col = "logs_test"
	}
	return &Logger{
		collection: client.Collection(logsDBName, col),
		clock:      types.SystemClock{},
	}
}

func (l *Logger) LogAction(userID int64, actionType, botName string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := l.collection.InsertOne(ctx, bson.M{
		"user_id":     userID,
		"action_type": actionType,
		"bot_name":    botName,
		"timestamp":   types.FormatTime(l.clock.Now()),
		"details":     details,
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("action_type", actionType).
			Msg("failed to write action log entry")
	}
}
