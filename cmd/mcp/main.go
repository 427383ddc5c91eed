package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"newsdroid/internal/app"
	"newsdroid/internal/config"
	"newsdroid/internal/logger"
	"newsdroid/internal/mcpserver"
	"newsdroid/pkg/tracing"

	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
)

var version = "dev"

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	newLoggerFunc  = logger.New
	initTracerFunc = tracing.InitTracer
	buildAppFunc   = app.Build
	serveStdioFunc = mcpserver.ServeStdio
	serveHTTPFunc  = mcpserver.ServeHTTP
	exitFunc       = os.Exit
)

func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	if err := cfg.Validate(); err != nil {
		zlog.Error().Err(err).Msg("configuration rejected")
		exitFunc(1)
		return
	}

	// stdout belongs to the stdio transport.
	log, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		zlog.Error().Err(err).Msg("failed to build logger")
		exitFunc(1)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: tracing.DefaultServiceName + "-mcp",
		Version:     version,
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

	a, err := buildAppFunc(ctx, cfg, log, tracer, app.Options{})
	if err != nil {
		log.Error().Err(err).Msg("failed to wire service")
		exitFunc(1)
		return
	}
	defer a.Close()

	server := mcpserver.New(log, a.Job, version)

	switch cfg.MCPTransport {
	case "http":
		log.Info().Str("bind", cfg.MCPHTTPBind).Int("port", cfg.MCPHTTPPort).Msg("mcp http transport listening")
		err = serveHTTPFunc(ctx, server, cfg.MCPHTTPBind, cfg.MCPHTTPPort)
	default:
		log.Info().Msg("mcp stdio transport ready")
		err = serveStdioFunc(ctx, server)
	}
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("mcp server stopped")
	}
	log.Info().Msg("mcp server exiting")
}
