package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	Port        int    `env:"PORT" envDefault:"3001"`
	ClientURL   string `env:"CLIENT_URL"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:teamchat.db"`
	RedisURL    string `env:"REDIS_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Responder
	AnthropicKey       string `env:"ANTHROPIC_API_KEY,required"`
	AnthropicURL       string `env:"ANTHROPIC_API_URL" envDefault:"https://api.anthropic.com/v1"`
	ResponderModel     string `env:"RESPONDER_MODEL" envDefault:"claude-3-5-haiku-latest"`
	AuxModel           string `env:"AUX_MODEL" envDefault:"claude-3-haiku-20240307"`
	ResponderMaxTokens int    `env:"RESPONDER_MAX_TOKENS" envDefault:"1024"`
	StreamResponses    bool   `env:"STREAM_RESPONSES" envDefault:"true"`
	ChatTokenLimit     int64  `env:"CHAT_TOKEN_LIMIT" envDefault:"100000"`

	// Web search
	SearchAPIKey   string        `env:"SEARCH_API_KEY"`
	SearchEngineID string        `env:"SEARCH_ENGINE_ID"`
	SearchURL      string        `env:"SEARCH_API_URL" envDefault:"https://www.googleapis.com/customsearch/v1"`
	SearchCacheTTL time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"30m"`

	// Membership tickets
	TicketSecret string        `env:"TICKET_SECRET,required"`
	TicketTTL    time.Duration `env:"TICKET_TTL" envDefault:"12h"`
}

// Load читает .env.local/.env (если есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) SearchConfigured() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}
