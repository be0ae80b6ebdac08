package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendOff    = "off"
)

// App holds the bot's runtime configuration.
type App struct {
	Name     string `env:"APP_NAME" envDefault:"quiz-bot"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	Language string `env:"QUIZ_LANG" envDefault:"en"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Telegram    Telegram
	Questions   Questions
	Sessions    Sessions
	Redis       Redis
	Leaderboard Leaderboard
	Metrics     Metrics
}

// Telegram configures the Bot API client.
type Telegram struct {
	Token         string `env:"QUIZ_BOT_TOKEN,notEmpty"`
	Debug         bool   `env:"TELEGRAM_DEBUG" envDefault:"false"`
	UpdateTimeout int    `env:"TELEGRAM_UPDATE_TIMEOUT" envDefault:"60"`
}

// Questions locates the question bank.
type Questions struct {
	Path    string `env:"QUESTIONS_PATH" envDefault:"questions.json"`
	Lenient bool   `env:"QUESTIONS_LENIENT" envDefault:"false"`
}

// Sessions selects where per-user conversations are kept between messages.
type Sessions struct {
	Backend    string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SQLitePath string        `env:"SESSION_SQLITE_PATH" envDefault:"quiz_bot_data.db"`
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`
}

// Redis holds connection settings shared by the session store and the leaderboard.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

// Leaderboard selects the leaderboard backend.
type Leaderboard struct {
	Backend string `env:"LEADERBOARD_BACKEND" envDefault:"memory"`
	TopN    int    `env:"LEADERBOARD_TOP" envDefault:"10"`
}

// Metrics exposes Prometheus metrics when Addr is set.
type Metrics struct {
	Addr string `env:"METRICS_ADDR" envDefault:""`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the struct tags cannot express.
func (c *App) Validate() error {
	switch c.Sessions.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q", c.Sessions.Backend)
	}
	switch c.Leaderboard.Backend {
	case BackendMemory, BackendRedis, BackendOff:
	default:
		return fmt.Errorf("invalid LEADERBOARD_BACKEND %q", c.Leaderboard.Backend)
	}
	if c.Questions.Path == "" {
		return fmt.Errorf("QUESTIONS_PATH must not be empty")
	}
	if c.Telegram.UpdateTimeout <= 0 {
		return fmt.Errorf("TELEGRAM_UPDATE_TIMEOUT must be positive")
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *App) NeedsRedis() bool {
	return c.Sessions.Backend == BackendRedis || c.Leaderboard.Backend == BackendRedis
}
