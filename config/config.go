package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries the fleet-wide settings every bot process loads at
// start. MONGO_URI, SUBSCRIPTION_DB_NAME and BOTS_AMOUNT are required;
// everything else has a default.
type Config struct {
	MongoURI           string
	SubscriptionDBName string
	LogsDBName         string
	BotsAmount         int
	Debug              bool
	// Bots maps bot URL to display name, used by the /more listing.
	Bots map[string]string
}

// Load reads config.env (if present) and then the environment. Missing
// required variables are reported together in one error.
func Load() (*Config, error) {
	_ = godotenv.Load("config.env")

	cfg := &Config{
		MongoURI:           strings.TrimSpace(os.Getenv("MONGO_URI")),
		SubscriptionDBName: strings.TrimSpace(os.Getenv("SUBSCRIPTION_DB_NAME")),
		LogsDBName:         strings.TrimSpace(os.Getenv("LOGS_DB_NAME")),
		Debug:              parseBool(os.Getenv("DEBUG")),
		Bots:               map[string]string{},
	}
	if cfg.LogsDBName == "" {
		cfg.LogsDBName = "bot_logs"
	}

	var missing []string
	if cfg.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if cfg.SubscriptionDBName == "" {
		missing = append(missing, "SUBSCRIPTION_DB_NAME")
	}
	amount := strings.TrimSpace(os.Getenv("BOTS_AMOUNT"))
	if amount == "" {
		missing = append(missing, "BOTS_AMOUNT")
	} else {
		n, err := strconv.Atoi(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid BOTS_AMOUNT %q: %w", amount, err)
		}
		cfg.BotsAmount = n
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required constants are not set: %s", strings.Join(missing, ", "))
	}

	if raw := strings.TrimSpace(os.Getenv("BOTS")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Bots); err != nil {
			return nil, fmt.Errorf("invalid BOTS value: %w", err)
		}
	}

	return cfg, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
