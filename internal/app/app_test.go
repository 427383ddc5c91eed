package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsdroid/internal/bot"
	"newsdroid/internal/config"
	"newsdroid/internal/publish"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

type stubWriter struct{ closed bool }

func (s *stubWriter) WriteMessages(context.Context, ...kafka.Message) error { return nil }
func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, k := range []string{"SIGNAL_COINS", "KAFKA_BROKERS", "OPENAI_API_KEY", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	return config.Load()
}

func stubDeps(t *testing.T, redisErr error) *stubWriter {
	t.Helper()
	origRedis, origKafka, origBot := connectRedisFunc, newKafkaWriterFunc, newTelegramBotFunc
	t.Cleanup(func() {
		connectRedisFunc, newKafkaWriterFunc, newTelegramBotFunc = origRedis, origKafka, origBot
	})

	connectRedisFunc = func(ctx context.Context, addr string) (*redis.Client, error) {
		if redisErr != nil {
			return nil, redisErr
		}
		return redis.NewClient(&redis.Options{Addr: addr}), nil
	}
	w := &stubWriter{}
	newKafkaWriterFunc = func([]string, string) publish.MessageWriter { return w }
	newTelegramBotFunc = func(zerolog.Logger, string, *bot.Commands) (*tele.Bot, error) { return nil, nil }
	return w
}

func TestBuildWiresPublishers(t *testing.T) {
	w := stubDeps(t, nil)
	cfg := testConfig(t)
	cfg.KafkaBrokers = []string{"kafka:9092"}
	cfg.KafkaSignalTopic = "signals"

	a, err := Build(context.Background(), cfg, zerolog.Nop(), trace.NewNoopTracerProvider().Tracer("test"), Options{Telegram: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Cache == nil {
		t.Fatal("expected redis cache")
	}
	if a.Fanout.Len() != 2 {
		t.Fatalf("expected cache and kafka publishers, got %d", a.Fanout.Len())
	}
	if a.Bot != nil {
		t.Fatal("no bot expected without token")
	}
	if got := a.Job.Coins(); len(got) != 1 || got[0] != "Bitcoin" {
		t.Fatalf("unexpected coins %v", got)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Fatal("kafka writer should be closed")
	}
}

func TestBuildWithoutRedis(t *testing.T) {
	stubDeps(t, errors.New("connection refused"))
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg, zerolog.Nop(), trace.NewNoopTracerProvider().Tracer("test"), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()
	if a.Cache != nil || a.Fanout.Len() != 0 {
		t.Fatalf("expected no publishers, cache=%v fanout=%d", a.Cache, a.Fanout.Len())
	}

	rec := httptest.NewRecorder()
	a.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector output, got %d", rec.Code)
	}
	if a.Handler() == nil {
		t.Fatal("expected handler")
	}
}

func TestBuildTelegramError(t *testing.T) {
	stubDeps(t, nil)
	newTelegramBotFunc = func(zerolog.Logger, string, *bot.Commands) (*tele.Bot, error) {
		return nil, errors.New("unauthorized")
	}
	cfg := testConfig(t)

	if _, err := Build(context.Background(), cfg, zerolog.Nop(), trace.NewNoopTracerProvider().Tracer("test"), Options{Telegram: true}); err == nil {
		t.Fatal("expected telegram error")
	}
}

func TestBuildTelegramRunsThroughJob(t *testing.T) {
	stubDeps(t, errors.New("connection refused"))
	var gotCmds *bot.Commands
	newTelegramBotFunc = func(_ zerolog.Logger, _ string, cmds *bot.Commands) (*tele.Bot, error) {
		gotCmds = cmds
		return &tele.Bot{}, nil
	}
	cfg := testConfig(t)
	cfg.TelegramChatID = 42

	a, err := Build(context.Background(), cfg, zerolog.Nop(), trace.NewNoopTracerProvider().Tracer("test"), Options{Telegram: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()
	if a.Bot == nil || gotCmds == nil {
		t.Fatal("expected bot with commands")
	}
	if a.Fanout.Len() != 1 {
		t.Fatalf("expected telegram notifier in fanout, got %d", a.Fanout.Len())
	}
}
