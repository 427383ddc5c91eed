package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdroid/internal/app"
	"newsdroid/internal/config"
	"newsdroid/internal/logger"
	"newsdroid/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	tele "gopkg.in/telebot.v3"
)

var version = "dev"

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	startJobFunc           = func(a *app.App, ctx context.Context) { a.Job.Start(ctx) }
	startBotFunc           = func(b *tele.Bot) { go b.Start() }
	stopBotFunc            = func(b *tele.Bot) { b.Stop() }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	if err := cfg.Validate(); err != nil {
		zlog.Error().Err(err).Msg("configuration rejected")
		exitFunc(1)
		return
	}

	log, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		zlog.Error().Err(err).Msg("failed to build logger")
		exitFunc(1)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:  cfg.TracingEnabled,
		Endpoint: cfg.OTLPEndpoint,
		Version:  version,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize tracer")
		exitFunc(1)
		return
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	a, err := buildAppFunc(ctx, cfg, log, tracer, app.Options{Telegram: true})
	if err != nil {
		log.Error().Err(err).Msg("failed to wire service")
		exitFunc(1)
		return
	}
	defer a.Close()

	jobDone := make(chan struct{})
	go func() {
		startJobFunc(a, ctx)
		close(jobDone)
	}()

	if a.Bot != nil {
		startBotFunc(a.Bot)
		log.Info().Msg("telegram bot started")
	}

	r := newRouterFunc()
	r.Use(gin.Recovery(), requestLogger(log), otelgin.Middleware(tracing.DefaultServiceName))
	a.Handler().RegisterRoutes(r, cfg.APIKey)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()
	if a.Bot != nil {
		stopBotFunc(a.Bot)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	select {
	case <-jobDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("signal runs still in flight at exit")
	}

	log.Info().Msg("server exiting")
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
