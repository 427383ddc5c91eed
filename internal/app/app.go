package app

import (
	"context"
	"errors"
	"net/http"

	"newsdroid/internal/bot"
	"newsdroid/internal/cache"
	"newsdroid/internal/config"
	"newsdroid/internal/handler"
	"newsdroid/internal/job"
	"newsdroid/internal/metrics"
	"newsdroid/internal/oracle"
	"newsdroid/internal/provider"
	"newsdroid/internal/publish"
	"newsdroid/internal/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

var (
	connectRedisFunc   = cache.Connect
	newLLMClientFunc   = oracle.NewOpenAIClient
	newKafkaWriterFunc = func(brokers []string, topic string) publish.MessageWriter {
		return publish.NewKafkaWriter(brokers, topic)
	}
	newTelegramBotFunc = bot.NewBot
)

type Options struct {
	// Telegram starts the command bot. Only one process may long-poll a token.
	Telegram bool
}

// App is the wired signal service shared by the HTTP server and the MCP server.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	Pipeline *signal.Pipeline
	Cache    *cache.SignalCache
	Fanout   *publish.Fanout
	Job      *job.SignalJob
	Bot      *tele.Bot

	closers []func() error
}

func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, tracer trace.Tracer, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Tracer: tracer}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	feed := provider.NewNewsFeedProvider(tracer, provider.NewsFeedConfig{
		BaseURL:    cfg.NewsFeedURL,
		QueryHours: cfg.NewsQueryHours,
		MaxItems:   cfg.NewsMaxItems,
		Timeout:    cfg.FetchTimeout(),
	})

	var llm oracle.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llm = newLLMClientFunc(cfg.OpenAIAPIKey)
	}
	oracleClient := oracle.NewClient(tracer, llm, oracle.Config{
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		MaxTokens:   cfg.OpenAIMaxTokens,
	})

	a.Pipeline = signal.NewPipeline(tracer, log, feed, oracleClient, a.Metrics, signal.Config{
		Mode:          cfg.Mode(),
		Window:        cfg.Window(),
		FallbackValue: cfg.FallbackValue,
		FetchTimeout:  cfg.FetchTimeout(),
		OracleTimeout: cfg.OracleTimeout(),
		RunTimeout:    cfg.RunTimeout(),
	})

	var publishers []publish.Publisher

	if rdb, err := connectRedisFunc(ctx, cfg.RedisURL); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, latest-signal cache disabled")
	} else {
		a.closers = append(a.closers, rdb.Close)
		a.Cache = cache.NewSignalCache(tracer, redisClient(rdb), cfg.CacheTTL())
		publishers = append(publishers, a.Cache)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := newKafkaWriterFunc(cfg.KafkaBrokers, cfg.KafkaSignalTopic)
		a.closers = append(a.closers, writer.Close)
		publishers = append(publishers, publish.NewKafkaPublisher(tracer, writer, cfg.KafkaSignalTopic))
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaSignalTopic).Msg("kafka publisher enabled")
	}

	a.Fanout = publish.NewFanout(tracer, log, a.Metrics, 0, publishers...)
	a.Job = job.NewSignalJob(tracer, log, a.Pipeline, a.Fanout, a.Metrics, cfg.Coins, cfg.Interval())

	if opts.Telegram {
		cmds := bot.NewCommands(log, a.latestReader(), a.Job, cfg.Coins, cfg.RunTimeout())
		b, err := newTelegramBotFunc(log, cfg.TelegramBotToken, cmds)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Bot = b
		if b != nil && cfg.TelegramChatID != 0 {
			a.Fanout.Add(bot.NewNotifier(b, cfg.TelegramChatID))
		}
	}
	return a, nil
}

// redisClient narrows *redis.Client to the cache interface.
func redisClient(c *redis.Client) cache.RedisClient { return c }

// latestReader avoids handing a typed nil cache to consumers.
func (a *App) latestReader() bot.LatestReader {
	if a.Cache == nil {
		return nil
	}
	return a.Cache
}

func (a *App) Handler() *handler.Handler {
	var (
		latest handler.LatestReader
		runner handler.Runner
	)
	if a.Cache != nil {
		latest = a.Cache
	}
	if a.Job != nil {
		runner = a.Job
	}
	return handler.New(a.Tracer, latest, runner, a.MetricsHandler())
}

func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
