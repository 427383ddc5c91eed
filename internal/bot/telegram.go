package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"newsdroid/internal/domain"
	"newsdroid/internal/job"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

type LatestReader interface {
	Latest(ctx context.Context, coin string) (domain.Report, bool, error)
}

// Runner runs a coin through the same in-flight guard as scheduled ticks.
type Runner interface {
	RunNow(ctx context.Context, coin string) (domain.Report, error)
}

// Commands answers chat commands from the latest cached report, running the coin on a miss.
type Commands struct {
	log     zerolog.Logger
	cache   LatestReader
	runner  Runner
	coins   map[string]string
	names   []string
	timeout time.Duration
}

func NewCommands(log zerolog.Logger, cache LatestReader, runner Runner, coins []string, timeout time.Duration) *Commands {
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	byKey := make(map[string]string, len(coins))
	for _, c := range coins {
		byKey[strings.ToLower(c)] = c
	}
	return &Commands{log: log, cache: cache, runner: runner, coins: byKey, names: coins, timeout: timeout}
}

// SignalReply renders the answer to "/signal <coin>".
func (c *Commands) SignalReply(ctx context.Context, args []string) string {
	if len(c.names) == 0 {
		return "No coins are tracked"
	}
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /signal %s\nTracked: %s", c.names[0], strings.Join(c.names, ", "))
	}
	coin, ok := c.coins[strings.ToLower(strings.Join(args, " "))]
	if !ok {
		return fmt.Sprintf("Unknown coin: %s\nTracked: %s", strings.Join(args, " "), strings.Join(c.names, ", "))
	}

	if c.cache != nil {
		report, found, err := c.cache.Latest(ctx, coin)
		if err != nil {
			c.log.Warn().Err(err).Str("coin", coin).Msg("cache read failed, evaluating now")
		}
		if found {
			return FormatReport(report)
		}
	}
	if c.runner == nil {
		return fmt.Sprintf("No signal for %s yet", coin)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	report, err := c.runner.RunNow(ctx, coin)
	switch {
	case errors.Is(err, job.ErrInFlight):
		return fmt.Sprintf("A run for %s is already in flight, try again shortly", coin)
	case err != nil:
		c.log.Warn().Err(err).Str("coin", coin).Msg("signal run rejected")
		return fmt.Sprintf("No signal for %s yet", coin)
	case report.Cancelled:
		return fmt.Sprintf("Run for %s was cancelled", coin)
	}
	return FormatReport(report)
}

// FormatReport is the chat rendering of a report.
func FormatReport(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", r.Coin, r.Signal.String())
	fmt.Fprintf(&b, "Headlines: %d used of %d\n", r.HeadlinesUsed, r.HeadlinesSeen)
	if r.Fallback {
		fmt.Fprintf(&b, "Fallback: %s\n", r.FallbackKind)
	}
	fmt.Fprintf(&b, "At: %s", r.GeneratedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// Sender is the subset of *tele.Bot used for notifications.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier posts a chat message whenever a coin's signal changes.
type Notifier struct {
	sender Sender
	chatID int64

	mu   sync.Mutex
	last map[string]domain.Signal
}

func NewNotifier(sender Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID, last: make(map[string]domain.Signal)}
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Publish(_ context.Context, report domain.Report) error {
	n.mu.Lock()
	prev, seen := n.last[report.Coin]
	if seen && prev == report.Signal {
		n.mu.Unlock()
		return nil
	}
	n.last[report.Coin] = report.Signal
	n.mu.Unlock()

	if _, err := n.sender.Send(tele.ChatID(n.chatID), FormatReport(report)); err != nil {
		n.mu.Lock()
		if seen {
			n.last[report.Coin] = prev
		} else {
			delete(n.last, report.Coin)
		}
		n.mu.Unlock()
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}

var newTeleBot = tele.NewBot

// NewBot builds the bot and registers /ping and /signal. It returns nil when token is empty.
func NewBot(log zerolog.Logger, token string, cmds *Commands) (*tele.Bot, error) {
	if strings.TrimSpace(token) == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := newTeleBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/signal", func(c tele.Context) error {
		return c.Send(cmds.SignalReply(context.Background(), c.Args()))
	})
	return b, nil
}
