package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"newsdroid/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Coins                []string `validate:"min=1,dive,required"`
	SignalMode           string   `validate:"oneof=categorical continuous"`
	WindowMinutes        int      `validate:"gte=0"`
	FallbackValue        float64  `validate:"gte=-1,lte=1"`
	IntervalSecs         int      `validate:"gt=0"`
	RunTimeoutSecs       int      `validate:"gt=0,ltfield=IntervalSecs"`
	NewsFetchTimeoutSecs int      `validate:"gt=0,ltefield=RunTimeoutSecs"`
	OracleTimeoutSecs    int      `validate:"gt=0,ltefield=RunTimeoutSecs"`

	NewsFeedURL    string `validate:"omitempty,url"`
	NewsMaxItems   int    `validate:"gt=0"`
	NewsQueryHours int    `validate:"gte=0"`

	OpenAIAPIKey      string
	OpenAIModel       string  `validate:"required"`
	OpenAITemperature float64 `validate:"gte=0,lte=2"`
	OpenAIMaxTokens   int     `validate:"gt=0"`

	RedisURL          string
	SignalCacheTTLSec int      `validate:"gt=0"`
	KafkaBrokers      []string `validate:"dive,hostname_port"`
	KafkaSignalTopic  string   `validate:"required_with=KafkaBrokers"`

	TelegramBotToken string
	TelegramChatID   int64

	HTTPAddr string `validate:"required"`
	APIKey   string

	MCPTransport string `validate:"oneof=stdio http"`
	MCPHTTPBind  string `validate:"required"`
	MCPHTTPPort  int    `validate:"gt=0,lte=65535"`

	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json console"`
	TracingEnabled bool
	OTLPEndpoint   string
}

func Load() *Config {
	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIKey:           os.Getenv("API_KEY"),
		NewsFeedURL:      strings.TrimSpace(os.Getenv("NEWS_FEED_URL")),
		KafkaSignalTopic: strings.TrimSpace(os.Getenv("KAFKA_SIGNAL_TOPIC")),
		OTLPEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	cfg.Coins = envList("SIGNAL_COINS")
	if len(cfg.Coins) == 0 {
		cfg.Coins = []string{"Bitcoin"}
	}
	cfg.KafkaBrokers = envList("KAFKA_BROKERS")
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSignalTopic == "" {
		cfg.KafkaSignalTopic = "newsdroid.signals"
	}

	cfg.SignalMode = strings.ToLower(envString("SIGNAL_MODE", string(domain.ModeCategorical)))
	cfg.WindowMinutes = envInt("SIGNAL_WINDOW_MINUTES", 60, 0)
	cfg.FallbackValue = envFloat("SIGNAL_FALLBACK_VALUE", 0)
	cfg.IntervalSecs = envInt("SIGNAL_INTERVAL_SECS", 60, 1)
	cfg.RunTimeoutSecs = envInt("SIGNAL_RUN_TIMEOUT_SECS", 50, 1)
	cfg.NewsFetchTimeoutSecs = envInt("NEWS_FETCH_TIMEOUT_SECS", 15, 1)
	cfg.OracleTimeoutSecs = envInt("ORACLE_TIMEOUT_SECS", 30, 1)
	cfg.NewsMaxItems = envInt("NEWS_MAX_ITEMS", 40, 1)
	cfg.NewsQueryHours = envInt("NEWS_QUERY_HOURS", 1, 0)

	cfg.OpenAIModel = envString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAITemperature = envFloat("OPENAI_TEMPERATURE", 0)
	cfg.OpenAIMaxTokens = envInt("OPENAI_MAX_TOKENS", 8, 1)

	cfg.SignalCacheTTLSec = envInt("SIGNAL_CACHE_TTL_SECS", 300, 1)

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		} else {
			log.Warn().Str("value", v).Msg("TELEGRAM_CHAT_ID is not an integer, notifications disabled")
		}
	}

	cfg.HTTPAddr = envString("HTTP_ADDR", ":8080")

	cfg.MCPTransport = strings.ToLower(envString("MCP_TRANSPORT", "stdio"))
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPBind = envString("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = envInt("MCP_HTTP_PORT", 8090, 1)

	cfg.LogLevel = strings.ToLower(envString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(envString("LOG_FORMAT", "json"))
	cfg.TracingEnabled = !strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "false")

	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, every run will fall back")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set")
	}

	return cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c *Config) Mode() domain.SignalMode {
	return domain.SignalMode(c.SignalMode)
}

func (c *Config) Window() domain.RecencyWindow {
	return domain.RecencyWindow{Minutes: c.WindowMinutes}
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSecs) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.NewsFetchTimeoutSecs) * time.Second
}

func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSecs) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.SignalCacheTTLSec) * time.Second
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt falls back to def when the value is missing, malformed or below floor.
func envInt(key string, def, floor int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid integer, using default")
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid number, using default")
		return def
	}
	return f
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
