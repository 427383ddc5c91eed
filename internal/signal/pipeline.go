package signal

import (
	"context"
	"errors"
	"time"

	"newsdroid/internal/domain"
	"newsdroid/internal/metrics"
	"newsdroid/internal/oracle"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type HeadlineFetcher interface {
	FetchHeadlines(ctx context.Context, term string) ([]domain.Headline, error)
}

type Oracle interface {
	Classify(ctx context.Context, prompt string) (oracle.Completion, error)
}

type Config struct {
	Mode   domain.SignalMode
	Window domain.RecencyWindow
	// FallbackValue is the continuous-mode value used when a run fails. Categorical runs fall back to Neutral.
	FallbackValue float64
	FetchTimeout  time.Duration
	OracleTimeout time.Duration
	RunTimeout    time.Duration
}

// Pipeline turns recent headlines about a coin into a signal. It holds no state between runs.
type Pipeline struct {
	tracer  trace.Tracer
	log     zerolog.Logger
	feed    HeadlineFetcher
	oracle  Oracle
	metrics *metrics.Recorder
	cfg     Config

	now   func() time.Time
	newID func() string
}

func NewPipeline(tracer trace.Tracer, log zerolog.Logger, feed HeadlineFetcher, llm Oracle, rec *metrics.Recorder, cfg Config) *Pipeline {
	if !cfg.Mode.IsValid() {
		cfg.Mode = domain.ModeCategorical
	}
	cfg.FallbackValue = clamp(cfg.FallbackValue, -1, 1)
	return &Pipeline{
		tracer:  tracer,
		log:     log.With().Str("component", "signal").Logger(),
		feed:    feed,
		oracle:  llm,
		metrics: rec,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (p *Pipeline) Mode() domain.SignalMode {
	return p.cfg.Mode
}

// Run evaluates coin and returns only the signal. It never fails.
func (p *Pipeline) Run(ctx context.Context, coin string) domain.Signal {
	return p.Evaluate(ctx, coin).Signal
}

// Evaluate runs fetch, window, prompt, oracle and parse for coin. Every failure
// is converted into the fallback signal and recorded on the report.
func (p *Pipeline) Evaluate(ctx context.Context, coin string) domain.Report {
	ctx, span := p.tracer.Start(ctx, "signal.evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("signal.coin", coin), attribute.String("signal.mode", string(p.cfg.Mode)))

	start := p.now()
	report := domain.Report{
		RunID:       p.newID(),
		Coin:        coin,
		GeneratedAt: start.UTC(),
	}
	log := p.log.With().Str("run_id", report.RunID).Str("coin", coin).Logger()

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	finish := func(r domain.Report) domain.Report {
		r.Duration = p.now().Sub(start)
		outcome := "ok"
		switch {
		case r.Cancelled:
			outcome = "cancelled"
		case r.Fallback:
			outcome = "fallback"
		}
		p.metrics.RecordRun(coin, outcome)
		if !r.Cancelled {
			p.metrics.RecordSignal(coin, r.Signal.Numeric())
		}
		span.SetAttributes(attribute.String("signal.value", r.Signal.String()), attribute.Bool("signal.fallback", r.Fallback), attribute.Bool("signal.cancelled", r.Cancelled))
		return r
	}
	fail := func(r domain.Report, err error) domain.Report {
		if errors.Is(ctx.Err(), context.Canceled) {
			return finish(p.cancelled(log, r, err))
		}
		return finish(p.fallback(log, r, err))
	}

	headlines, err := p.fetch(ctx, coin)
	if err != nil {
		return fail(report, err)
	}
	report.HeadlinesSeen = len(headlines)

	recent := FilterWindow(headlines, p.cfg.Window, p.now())
	report.HeadlinesUsed = len(recent)
	if len(recent) == 0 {
		log.Info().Int("headlines_seen", report.HeadlinesSeen).Msg("no headlines in window, signal is neutral")
		report.Signal = domain.Neutral(p.cfg.Mode)
		return finish(report)
	}

	completion, err := p.classify(ctx, BuildPrompt(coin, recent, p.cfg.Mode))
	report.OracleCalled = true
	if err != nil {
		return fail(report, err)
	}
	report.RawResponse = completion.Text
	report.Model = completion.Model

	sig, err := ParseResponse(completion.Text, p.cfg.Mode)
	if err != nil {
		return finish(p.fallback(log, report, err))
	}
	report.Signal = sig

	log.Info().
		Str("signal", sig.String()).
		Int("headlines_used", report.HeadlinesUsed).
		Str("model", report.Model).
		Msg("signal evaluated")
	return finish(report)
}

func (p *Pipeline) fetch(ctx context.Context, coin string) ([]domain.Headline, error) {
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}
	started := p.now()
	defer func() { p.metrics.RecordLatency("fetch", p.now().Sub(started).Seconds()) }()

	headlines, err := p.feed.FetchHeadlines(ctx, coin)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, domain.NewError(domain.KindTimeout, "signal.fetch", err)
	}
	return headlines, err
}

func (p *Pipeline) classify(ctx context.Context, prompt string) (oracle.Completion, error) {
	if p.cfg.OracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.OracleTimeout)
		defer cancel()
	}
	started := p.now()
	defer func() { p.metrics.RecordLatency("oracle", p.now().Sub(started).Seconds()) }()

	completion, err := p.oracle.Classify(ctx, prompt)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return oracle.Completion{}, domain.NewError(domain.KindTimeout, "signal.classify", err)
	}
	return completion, err
}

func (p *Pipeline) fallbackSignal() domain.Signal {
	if p.cfg.Mode == domain.ModeContinuous {
		return domain.Continuous(p.cfg.FallbackValue)
	}
	return domain.Neutral(p.cfg.Mode)
}

// cancelled marks a run whose caller went away. It is neither a fallback nor a timeout.
func (p *Pipeline) cancelled(log zerolog.Logger, report domain.Report, err error) domain.Report {
	report.Signal = domain.Neutral(p.cfg.Mode)
	report.Cancelled = true
	log.Info().Err(err).Msg("signal run cancelled")
	return report
}

func (p *Pipeline) fallback(log zerolog.Logger, report domain.Report, err error) domain.Report {
	kind := domain.KindOf(err)
	report.Signal = p.fallbackSignal()
	report.Fallback = true
	report.FallbackKind = kind
	report.FallbackError = err.Error()

	p.metrics.RecordFallback(report.Coin, string(kind))
	log.Warn().
		Err(err).
		Str("error_kind", string(kind)).
		Str("signal", report.Signal.String()).
		Msg("signal run fell back")
	return report
}
