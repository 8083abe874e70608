package types

import (
	"context"
	"time"
)

// Clock supplies the current instant. Injected so day-rollover and
// expiration logic is testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// KeyboardOption is one button of a structured option list: a
// user-visible label plus an opaque callback code.
type KeyboardOption struct {
	Label string
	Code  string
}

// Messenger is the outbound chat transport. The core only sends plain
// localized strings and option lists; it never formats markup.
type Messenger interface {
	Reply(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]KeyboardOption) error
}

// Translator resolves a dotted key for a language, falling back to the
// default language and finally to the raw key.
type Translator interface {
	Translate(key, lang string, params map[string]string) string
}

// ActionLogger records user actions for operators. Fire-and-forget:
// implementations must never block or fail the primary operation.
type ActionLogger interface {
	LogAction(userID int64, actionType, botName string, details map[string]interface{})
}
