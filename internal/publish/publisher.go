package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdroid/internal/domain"
	"newsdroid/internal/metrics"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Publisher hands an evaluated report to one downstream consumer.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, report domain.Report) error
}

// Fanout delivers each report to every publisher. A failing publisher is
// logged and counted but never blocks the others.
type Fanout struct {
	tracer     trace.Tracer
	log        zerolog.Logger
	metrics    *metrics.Recorder
	publishers []Publisher
	timeout    time.Duration
}

func NewFanout(tracer trace.Tracer, log zerolog.Logger, rec *metrics.Recorder, timeout time.Duration, publishers ...Publisher) *Fanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &Fanout{
		tracer:     tracer,
		log:        log.With().Str("component", "publish").Logger(),
		metrics:    rec,
		publishers: active,
		timeout:    timeout,
	}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Len() int { return len(f.publishers) }

// Add appends a publisher. It must not be called once reports are flowing.
func (f *Fanout) Add(p Publisher) {
	if p != nil {
		f.publishers = append(f.publishers, p)
	}
}

// Publish returns the joined publisher errors for callers that want them.
func (f *Fanout) Publish(ctx context.Context, report domain.Report) error {
	ctx, span := f.tracer.Start(ctx, "publish.fanout")
	defer span.End()
	span.SetAttributes(attribute.String("signal.coin", report.Coin), attribute.Int("publish.targets", len(f.publishers)))

	var errs []error
	for _, p := range f.publishers {
		pctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := p.Publish(pctx, report)
		cancel()

		f.metrics.RecordPublish(p.Name(), err)
		if err != nil {
			f.log.Error().Err(err).
				Str("publisher", p.Name()).
				Str("coin", report.Coin).
				Str("run_id", report.RunID).
				Msg("publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
