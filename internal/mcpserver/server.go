package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsdroid/internal/domain"
	"newsdroid/internal/job"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

type Runner interface {
	RunNow(ctx context.Context, coin string) (domain.Report, error)
	Coins() []string
}

type SignalInput struct {
	Coin string `json:"coin" jsonschema:"tracked coin name, e.g. Bitcoin"`
}

type tools struct {
	log    zerolog.Logger
	runner Runner
}

// New builds an MCP server exposing news_signal and tracked_coins.
func New(log zerolog.Logger, runner Runner, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "newsdroid", Version: version}, nil)
	t := &tools{log: log.With().Str("component", "mcp").Logger(), runner: runner}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "news_signal",
		Description: "Evaluate recent news headlines for a tracked coin and return the trading signal report.",
	}, t.newsSignal)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "tracked_coins",
		Description: "List the coins this service evaluates.",
	}, t.trackedCoins)
	return server
}

func (t *tools) newsSignal(ctx context.Context, _ *mcp.CallToolRequest, in SignalInput) (*mcp.CallToolResult, any, error) {
	coin := strings.TrimSpace(in.Coin)
	if coin == "" {
		return errorResult("coin is required"), nil, nil
	}
	report, err := t.runner.RunNow(ctx, coin)
	switch {
	case errors.Is(err, job.ErrUnknownCoin):
		return errorResult(fmt.Sprintf("%s is not tracked; tracked coins: %s", coin, strings.Join(t.runner.Coins(), ", "))), nil, nil
	case errors.Is(err, job.ErrInFlight):
		return errorResult(fmt.Sprintf("a run for %s is already in flight, retry shortly", coin)), nil, nil
	case err != nil:
		return nil, nil, err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal report: %w", err)
	}
	t.log.Info().Str("coin", report.Coin).Str("signal", report.Signal.String()).Msg("news_signal served")
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}}}, nil, nil
}

func (t *tools) trackedCoins(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: strings.Join(t.runner.Coins(), "\n")}}}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: msg}}}
}

// ServeStdio runs the server on stdin/stdout until ctx is done or the client disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// ServeHTTP exposes the streamable HTTP transport on bind:port until ctx is done.
func ServeHTTP(ctx context.Context, server *mcp.Server, bind string, port int) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	srv := &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
