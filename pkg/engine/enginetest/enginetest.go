// Package enginetest provides a scripted in-memory engine for tests. Each
// context replays whatever the handler returns for its program/query pair,
// which keeps gateway tests independent of any real interpreter.
package enginetest

import (
	"context"
	"sync/atomic"

	"github.com/dhaneshkk/prolog-service/pkg/engine"
)

// HandlerFunc decides the outcome sequence (or query start error) for one
// evaluation. It runs on the evaluating goroutine, so a slow or panicking
// handler simulates a slow or crashing evaluation.
type HandlerFunc func(program, query string) ([]engine.Outcome, error)

// Engine is a scripted engine.Engine.
type Engine struct {
	// Handler drives every query. Defaults to "one plain success".
	Handler HandlerFunc

	// NewContextErr, when set, makes context construction fail.
	NewContextErr error

	// CloseErr, when set, is returned by every context's Close.
	CloseErr error

	contexts atomic.Int64
	active   atomic.Int64
}

var _ engine.Engine = (*Engine)(nil)

// Succeed returns an engine whose every query yields the given outcomes.
func Succeed(outcomes ...engine.Outcome) *Engine {
	return &Engine{Handler: func(string, string) ([]engine.Outcome, error) {
		return outcomes, nil
	}}
}

func (e *Engine) NewContext(_ context.Context) (engine.Context, error) {
	if e.NewContextErr != nil {
		return nil, e.NewContextErr
	}
	e.contexts.Add(1)
	e.active.Add(1)
	return &fakeContext{engine: e}, nil
}

// ContextsCreated returns how many contexts were ever constructed.
func (e *Engine) ContextsCreated() int {
	return int(e.contexts.Load())
}

// ActiveContexts returns how many constructed contexts are not yet closed.
func (e *Engine) ActiveContexts() int {
	return int(e.active.Load())
}

type fakeContext struct {
	engine  *Engine
	program string
}

var _ engine.Context = (*fakeContext)(nil)

func (c *fakeContext) Load(_ context.Context, _, program string) {
	c.program = program
}

func (c *fakeContext) Query(_ context.Context, query string) (engine.Outcomes, error) {
	handler := c.engine.Handler
	if handler == nil {
		handler = func(string, string) ([]engine.Outcome, error) {
			return []engine.Outcome{{Kind: engine.OutcomeTrue}}, nil
		}
	}
	outcomes, err := handler(c.program, query)
	if err != nil {
		return nil, err
	}
	return &scriptedOutcomes{outcomes: outcomes}, nil
}

func (c *fakeContext) Close() error {
	c.engine.active.Add(-1)
	return c.engine.CloseErr
}

type scriptedOutcomes struct {
	outcomes []engine.Outcome
	pos      int
}

var _ engine.Outcomes = (*scriptedOutcomes)(nil)

func (s *scriptedOutcomes) Next() (engine.Outcome, bool) {
	if s.pos >= len(s.outcomes) {
		return engine.Outcome{}, false
	}
	o := s.outcomes[s.pos]
	s.pos++
	return o, true
}

func (s *scriptedOutcomes) Close() error {
	s.pos = len(s.outcomes)
	return nil
}
