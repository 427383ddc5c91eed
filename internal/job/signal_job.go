package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"newsdroid/internal/domain"
	"newsdroid/internal/metrics"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrUnknownCoin = errors.New("coin is not tracked")
	ErrInFlight    = errors.New("a run for this coin is already in flight")
)

type Evaluator interface {
	Evaluate(ctx context.Context, coin string) domain.Report
}

type Publisher interface {
	Publish(ctx context.Context, report domain.Report) error
}

// SignalJob evaluates every tracked coin once per interval. A coin whose
// previous run has not finished skips the tick.
type SignalJob struct {
	tracer    trace.Tracer
	log       zerolog.Logger
	evaluator Evaluator
	publisher Publisher
	metrics   *metrics.Recorder
	interval  time.Duration

	coins    []string
	inFlight map[string]*atomic.Bool
	wg       sync.WaitGroup
}

func NewSignalJob(tracer trace.Tracer, log zerolog.Logger, evaluator Evaluator, publisher Publisher, rec *metrics.Recorder, coins []string, interval time.Duration) *SignalJob {
	if interval <= 0 {
		interval = time.Minute
	}
	guards := make(map[string]*atomic.Bool, len(coins))
	tracked := make([]string, 0, len(coins))
	for _, c := range coins {
		key := strings.ToLower(c)
		if _, dup := guards[key]; dup {
			continue
		}
		guards[key] = &atomic.Bool{}
		tracked = append(tracked, c)
	}
	return &SignalJob{
		tracer:    tracer,
		log:       log.With().Str("component", "signal-job").Logger(),
		evaluator: evaluator,
		publisher: publisher,
		metrics:   rec,
		interval:  interval,
		coins:     tracked,
		inFlight:  guards,
	}
}

func (j *SignalJob) Coins() []string {
	return append([]string(nil), j.coins...)
}

// Start blocks until ctx is done, then waits for in-flight runs to finish.
func (j *SignalJob) Start(ctx context.Context) {
	if j.evaluator == nil {
		j.log.Warn().Msg("signal job disabled: no evaluator")
		<-ctx.Done()
		return
	}
	j.log.Info().Strs("coins", j.coins).Dur("interval", j.interval).Msg("signal job started")

	j.tick(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.wg.Wait()
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *SignalJob) tick(ctx context.Context) {
	for _, coin := range j.coins {
		guard := j.inFlight[strings.ToLower(coin)]
		if !guard.CompareAndSwap(false, true) {
			j.metrics.RecordSkipped(coin)
			j.log.Warn().Str("coin", coin).Msg("previous run still in flight, skipping tick")
			continue
		}
		j.wg.Add(1)
		go func(coin string) {
			defer j.wg.Done()
			defer guard.Store(false)
			j.runOnce(ctx, coin)
		}(coin)
	}
}

// RunNow evaluates a tracked coin synchronously and publishes the report.
func (j *SignalJob) RunNow(ctx context.Context, coin string) (domain.Report, error) {
	guard, ok := j.inFlight[strings.ToLower(strings.TrimSpace(coin))]
	if !ok || j.evaluator == nil {
		return domain.Report{}, ErrUnknownCoin
	}
	if !guard.CompareAndSwap(false, true) {
		return domain.Report{}, ErrInFlight
	}
	defer guard.Store(false)
	return j.runOnce(ctx, j.canonical(coin)), nil
}

func (j *SignalJob) canonical(coin string) string {
	for _, c := range j.coins {
		if strings.EqualFold(c, strings.TrimSpace(coin)) {
			return c
		}
	}
	return coin
}

func (j *SignalJob) runOnce(ctx context.Context, coin string) domain.Report {
	ctx, span := j.tracer.Start(ctx, "signal-job.run-once")
	defer span.End()
	span.SetAttributes(attribute.String("signal.coin", coin))

	report := j.evaluator.Evaluate(ctx, coin)
	if report.Cancelled {
		j.log.Debug().Str("coin", coin).Str("run_id", report.RunID).Msg("run cancelled, report not published")
		return report
	}
	if j.publisher != nil {
		if err := j.publisher.Publish(ctx, report); err != nil {
			j.log.Debug().Err(err).Str("coin", coin).Msg("report published with errors")
		}
	}
	return report
}
