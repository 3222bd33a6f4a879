// Package dispatch runs admitted evaluations on goroutines isolated from
// the request-handling path. A pathological query can burn its own
// goroutine for as long as it likes without blocking request acceptance or
// shutdown signaling, and a crashed evaluation becomes an error payload
// instead of a dead process.
package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/dhaneshkk/prolog-service/internal/admission"
	"github.com/dhaneshkk/prolog-service/internal/build"
	"github.com/dhaneshkk/prolog-service/internal/runner"
	"github.com/dhaneshkk/prolog-service/pkg/logger"
)

var (
	evaluationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: build.ProjectName,
		Name:      "evaluations_in_flight",
		Help:      "The number of evaluations currently holding a permit.",
	})

	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "evaluations_total",
		Help:      "The total number of dispatched evaluations by outcome.",
	}, []string{"outcome"})

	evaluationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "evaluation_duration_seconds",
		Help:      "Wall time of evaluation runs, from permit grant to completion.",
		Buckets:   prometheus.DefBuckets,
	})
)

type evaluation struct {
	entries []runner.Entry
	err     error
}

// Dispatcher couples the admission controller with the evaluation runner.
type Dispatcher struct {
	admission *admission.Controller
	runner    *runner.Runner
	logger    logger.Logger
}

func New(ctrl *admission.Controller, r *runner.Runner, l logger.Logger) *Dispatcher {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Dispatcher{admission: ctrl, runner: r, logger: l}
}

// Dispatch acquires a permit (waiting as long as ctx allows), runs the
// evaluation on its own goroutine, and waits for it to finish. The permit
// is released on that goroutine's completion path, so it survives every
// exit: normal return, runner error, or panic. The caller's ctx only gates
// admission; once the evaluation starts it runs to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, program, query string) ([]runner.Entry, error) {
	permit, err := d.admission.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan evaluation, 1)

	go func() {
		defer permit.Release()

		start := time.Now()
		evaluationsInFlight.Inc()
		defer func() {
			evaluationsInFlight.Dec()
			evaluationDurationSeconds.Observe(time.Since(start).Seconds())
		}()

		var result evaluation
		recovered := panics.Try(func() {
			// the runner must not inherit the request's cancellation:
			// evaluations run to completion even if the client leaves
			result.entries, result.err = d.runner.Run(context.Background(), program, query)
		})
		if recovered != nil {
			result = evaluation{err: recovered.AsError()}
			d.logger.Error("evaluation panicked",
				zap.Any("panic", recovered.Value),
				zap.ByteString("stacktrace", recovered.Stack),
			)
		}

		switch {
		case recovered != nil:
			evaluationsTotal.WithLabelValues("panic").Inc()
		case result.err != nil:
			evaluationsTotal.WithLabelValues("error").Inc()
		default:
			evaluationsTotal.WithLabelValues("ok").Inc()
		}

		done <- result
	}()

	result := <-done
	return result.entries, result.err
}
