package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const secretPath = "/run/secrets/telegram_bot_token"

type Config struct {
	TelegramToken string
	DBPath        string
	DefaultTZ     string

	TickInterval        time.Duration
	DispatchConcurrency int
	DispatchLease       time.Duration

	ConversationTTL      time.Duration
	ConversationCapacity int
	LinkCodeTTL          time.Duration

	LogLevel  string
	LogFormat string
	OpsAddr   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("db_path", "bot.db")
	v.SetDefault("default_tz", "Europe/Moscow")
	v.SetDefault("tick_interval", time.Minute)
	v.SetDefault("dispatch_concurrency", 4)
	v.SetDefault("dispatch_lease", 5*time.Minute)
	v.SetDefault("conversation_ttl", 30*time.Minute)
	v.SetDefault("conversation_capacity", 10000)
	v.SetDefault("link_code_ttl", 15*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("ops_addr", "")
}

// Load reads .env (if any) and the process environment. The bot token is
// only required by commands that talk to telegram, see RequireToken.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		TelegramToken:        botToken(v),
		DBPath:               strings.TrimSpace(v.GetString("db_path")),
		DefaultTZ:            strings.TrimSpace(v.GetString("default_tz")),
		TickInterval:         v.GetDuration("tick_interval"),
		DispatchConcurrency:  v.GetInt("dispatch_concurrency"),
		DispatchLease:        v.GetDuration("dispatch_lease"),
		ConversationTTL:      v.GetDuration("conversation_ttl"),
		ConversationCapacity: v.GetInt("conversation_capacity"),
		LinkCodeTTL:          v.GetDuration("link_code_ttl"),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            v.GetString("log_format"),
		OpsAddr:              strings.TrimSpace(v.GetString("ops_addr")),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("config: DB_PATH is empty")
	case c.TickInterval < time.Second:
		return errors.New("config: TICK_INTERVAL must be at least 1s")
	case c.DispatchConcurrency < 1:
		return errors.New("config: DISPATCH_CONCURRENCY must be positive")
	case c.DispatchLease <= 0:
		return errors.New("config: DISPATCH_LEASE must be positive")
	}
	if _, err := time.LoadLocation(c.DefaultTZ); err != nil || c.DefaultTZ == "" {
		return errors.New("config: DEFAULT_TZ is not a valid IANA zone")
	}
	return nil
}

// RequireToken fails when no bot token was found.
func (c Config) RequireToken() error {
	if c.TelegramToken == "" {
		return errors.New("config: bot token not found in docker secret or TELEGRAM_BOT_TOKEN")
	}
	return nil
}

func botToken(v *viper.Viper) string {
	if data, err := os.ReadFile(secretPath); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token
		}
	}
	return strings.TrimSpace(v.GetString("telegram_bot_token"))
}
