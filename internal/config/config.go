package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Config is the process wiring: addresses, credentials and poll cadences.
// Numeric training/gate/drift policy lives in the YAML policy file.
type Config struct {
	DatabaseURL string
	RedisURL    string

	HTTPPort int
	APIKey   string

	ArtifactsDir string
	PolicyPath   string

	KafkaBrokers   []string
	OutcomeTopic   string
	OutcomeGroupID string

	TelegramBotToken string
	TelegramChatID   int64

	DriftPollSecs      int
	PosteriorFlushSecs int
	FeatureWindowSize  int
	PredictionLogSize  int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, posterior and prediction persistence disabled")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, feature window degrades to its in-process ring")
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set, API authentication disabled")
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.ArtifactsDir = strings.TrimSpace(os.Getenv("ARTIFACTS_DIR"))
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = "artifacts"
	}

	cfg.PolicyPath = strings.TrimSpace(os.Getenv("POLICY_PATH"))
	if cfg.PolicyPath == "" {
		cfg.PolicyPath = "config/policy.yaml"
	}

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn().Msg("KAFKA_BROKERS not set, outcome stream consumer disabled")
	}

	cfg.OutcomeTopic = strings.TrimSpace(os.Getenv("OUTCOME_TOPIC"))
	if cfg.OutcomeTopic == "" {
		cfg.OutcomeTopic = "trade-outcomes"
	}
	cfg.OutcomeGroupID = strings.TrimSpace(os.Getenv("OUTCOME_GROUP_ID"))
	if cfg.OutcomeGroupID == "" {
		cfg.OutcomeGroupID = "verdict-engine"
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		}
	}
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, operator notifications disabled")
	}

	cfg.DriftPollSecs = 300
	if v := strings.TrimSpace(os.Getenv("DRIFT_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DriftPollSecs = n
		}
	}

	cfg.PosteriorFlushSecs = 30
	if v := strings.TrimSpace(os.Getenv("POSTERIOR_FLUSH_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PosteriorFlushSecs = n
		}
	}

	cfg.FeatureWindowSize = 500
	if v := strings.TrimSpace(os.Getenv("FEATURE_WINDOW_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FeatureWindowSize = n
		}
	}

	cfg.PredictionLogSize = 256
	if v := strings.TrimSpace(os.Getenv("PREDICTION_LOG_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PredictionLogSize = n
		}
	}

	return cfg
}
