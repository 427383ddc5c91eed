package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"newsdroid/internal/domain"
	"newsdroid/internal/job"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

type stubCache struct {
	report domain.Report
	found  bool
	err    error
}

func (s *stubCache) Latest(context.Context, string) (domain.Report, bool, error) {
	return s.report, s.found, s.err
}

type stubRunner struct {
	coins []string
	err   error
}

func (s *stubRunner) RunNow(_ context.Context, coin string) (domain.Report, error) {
	s.coins = append(s.coins, coin)
	if s.err != nil {
		return domain.Report{}, s.err
	}
	return domain.Report{Coin: coin, Signal: domain.Neutral(domain.ModeCategorical), Fallback: true, FallbackKind: domain.KindFeedUnavailable}, nil
}

type stubSender struct {
	sent []string
	to   []string
	err  error
}

func (s *stubSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.to = append(s.to, to.Recipient())
	s.sent = append(s.sent, what.(string))
	return &tele.Message{}, nil
}

func TestNewBotSkipsWithoutToken(t *testing.T) {
	b, err := NewBot(zerolog.Nop(), "", nil)
	if err != nil || b != nil {
		t.Fatalf("expected nil bot without token, got %v %v", b, err)
	}
}

func TestSignalReplyUsage(t *testing.T) {
	c := NewCommands(zerolog.Nop(), nil, nil, []string{"Bitcoin", "Ethereum"}, time.Second)
	if got := c.SignalReply(context.Background(), nil); !strings.HasPrefix(got, "Usage: /signal Bitcoin") {
		t.Fatalf("unexpected usage reply %q", got)
	}
	if got := c.SignalReply(context.Background(), []string{"Dogecoin"}); !strings.HasPrefix(got, "Unknown coin: Dogecoin") {
		t.Fatalf("unexpected unknown reply %q", got)
	}
}

func TestSignalReplyFromCache(t *testing.T) {
	cache := &stubCache{found: true, report: domain.Report{
		Coin:          "Bitcoin",
		Signal:        domain.Categorical(domain.CategoryBuy),
		HeadlinesUsed: 4,
		HeadlinesSeen: 9,
		GeneratedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	runner := &stubRunner{}
	c := NewCommands(zerolog.Nop(), cache, runner, []string{"Bitcoin"}, time.Second)

	got := c.SignalReply(context.Background(), []string{"bitcoin"})
	want := "Bitcoin: Buy (+1)\nHeadlines: 4 used of 9\nAt: 2026-03-01T12:00:00Z"
	if got != want {
		t.Fatalf("unexpected reply:\n%s\nwant:\n%s", got, want)
	}
	if len(runner.coins) != 0 {
		t.Fatal("cache hit must not evaluate")
	}
}

func TestSignalReplyRunsOnMiss(t *testing.T) {
	runner := &stubRunner{}
	c := NewCommands(zerolog.Nop(), &stubCache{err: errors.New("redis down")}, runner, []string{"Bitcoin"}, time.Second)

	got := c.SignalReply(context.Background(), []string{"BITCOIN"})
	if len(runner.coins) != 1 || runner.coins[0] != "Bitcoin" {
		t.Fatalf("expected evaluation with canonical coin name, got %v", runner.coins)
	}
	if !strings.Contains(got, "Fallback: feed_unavailable") {
		t.Fatalf("expected fallback line, got %q", got)
	}
}

func TestNotifierSendsOnlyOnChange(t *testing.T) {
	s := &stubSender{}
	n := NewNotifier(s, -100123)
	buy := domain.Report{Coin: "Bitcoin", Signal: domain.Categorical(domain.CategoryBuy)}
	sell := domain.Report{Coin: "Bitcoin", Signal: domain.Categorical(domain.CategorySell)}

	for _, r := range []domain.Report{buy, buy, sell, sell, buy} {
		if err := n.Publish(context.Background(), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(s.sent) != 3 {
		t.Fatalf("expected 3 notifications, got %d: %v", len(s.sent), s.sent)
	}
	if s.to[0] != "-100123" {
		t.Fatalf("unexpected recipient %q", s.to[0])
	}
}

func TestNotifierRetriesAfterSendFailure(t *testing.T) {
	s := &stubSender{err: errors.New("forbidden")}
	n := NewNotifier(s, 1)
	r := domain.Report{Coin: "Bitcoin", Signal: domain.Categorical(domain.CategoryBuy)}

	if err := n.Publish(context.Background(), r); err == nil {
		t.Fatal("expected send error")
	}
	s.err = nil
	if err := n.Publish(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("failed notification should be resent, got %d", len(s.sent))
	}
}

func TestSignalReplyRespectsInFlightRun(t *testing.T) {
	runner := &stubRunner{err: job.ErrInFlight}
	c := NewCommands(zerolog.Nop(), &stubCache{}, runner, []string{"Bitcoin"}, time.Second)

	got := c.SignalReply(context.Background(), []string{"Bitcoin"})
	if !strings.Contains(got, "already in flight") {
		t.Fatalf("expected in-flight reply, got %q", got)
	}
	if len(runner.coins) != 1 {
		t.Fatalf("expected a single guarded run attempt, got %v", runner.coins)
	}
}
