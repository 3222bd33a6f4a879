// Package runner executes one program/query pair against a fresh
// evaluation context and renders the full outcome sequence as response
// entries.
package runner

import (
	"context"
	"fmt"

	"github.com/dhaneshkk/prolog-service/pkg/encoder"
	"github.com/dhaneshkk/prolog-service/pkg/engine"
	"github.com/dhaneshkk/prolog-service/pkg/logger"
	"go.uber.org/zap"
)

// Entry is one element of a query response: {"result": bool},
// {"exception": term}, {"error": text}, or an object of encoded bindings.
type Entry map[string]any

// Runner owns the load-query-encode sequence. It holds no per-request
// state; each Run constructs and discards its own evaluation context.
type Runner struct {
	engine engine.Engine
	logger logger.Logger
}

func New(eng engine.Engine, l logger.Logger) *Runner {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Runner{engine: eng, logger: l}
}

// Run evaluates query against program and returns one entry per outcome,
// in outcome order. Per-outcome engine errors become inline entries and do
// not stop the drain; only a context that cannot be constructed or a query
// that cannot start fails the whole call.
func (r *Runner) Run(ctx context.Context, program, query string) ([]Entry, error) {
	evalCtx, err := r.engine.NewContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("create evaluation context: %w", err)
	}
	defer func() {
		if err := evalCtx.Close(); err != nil {
			r.logger.Warn("failed to close evaluation context", zap.Error(err))
		}
	}()

	evalCtx.Load(ctx, "user", program)

	outcomes, err := evalCtx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer outcomes.Close()

	entries := make([]Entry, 0)
	for {
		outcome, ok := outcomes.Next()
		if !ok {
			break
		}
		entries = append(entries, entryFor(outcome))
	}

	return entries, nil
}

func entryFor(o engine.Outcome) Entry {
	switch o.Kind {
	case engine.OutcomeTrue:
		return Entry{"result": true}
	case engine.OutcomeFalse:
		return Entry{"result": false}
	case engine.OutcomeException:
		return Entry{"exception": encoder.EncodeTerm(o.Exception)}
	case engine.OutcomeSolution:
		return Entry(encoder.EncodeBindings(o.Bindings))
	case engine.OutcomeError:
		return Entry{"error": o.Diagnostic}
	default:
		return Entry{"error": fmt.Sprintf("unrecognized outcome kind %d", o.Kind)}
	}
}
