// Package ichiban adapts the embeddable ichiban/prolog interpreter to the
// engine capability consumed by the service. Every evaluation context wraps
// a fresh interpreter bound to in-memory streams, so no two requests can
// ever observe the same interpreter state.
package ichiban

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ichiban/prolog"
	pl "github.com/ichiban/prolog/engine"
	"go.uber.org/zap"

	"github.com/dhaneshkk/prolog-service/pkg/engine"
	"github.com/dhaneshkk/prolog-service/pkg/logger"
)

// Engine mints isolated evaluation contexts backed by ichiban/prolog.
type Engine struct {
	logger logger.Logger
}

var _ engine.Engine = (*Engine)(nil)

func New(l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Engine{logger: l}
}

func (e *Engine) NewContext(_ context.Context) (engine.Context, error) {
	var out bytes.Buffer
	interp := prolog.New(strings.NewReader(""), &out)
	if interp == nil {
		return nil, fmt.Errorf("interpreter construction failed")
	}
	return &evalContext{interp: interp, logger: e.logger}, nil
}

// evalContext is owned by exactly one in-flight evaluation. It is not safe
// for concurrent use and is discarded after the request completes.
type evalContext struct {
	interp *prolog.Interpreter
	logger logger.Logger
	closed bool
}

var _ engine.Context = (*evalContext)(nil)

// Load consults the program text. The engine contract exposes no failure
// signal for malformed programs; a load error is logged and otherwise
// swallowed, leaving the context inert or partially defined. This is a
// known gap, not new error semantics.
func (c *evalContext) Load(_ context.Context, module, program string) {
	if err := c.interp.Exec(program); err != nil {
		c.logger.Warn("program load failed, continuing with an inert context",
			zap.String("module", module),
			zap.Error(err),
		)
	}
}

func (c *evalContext) Query(_ context.Context, query string) (engine.Outcomes, error) {
	sols, err := c.interp.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query start: %w", err)
	}
	return &outcomes{sols: sols}, nil
}

func (c *evalContext) Close() error {
	c.closed = true
	c.interp = nil
	return nil
}

// outcomes drains an ichiban solution iterator exactly once. A query that
// produces no solutions and no error yields a single false outcome, the way
// a failed goal reports.
type outcomes struct {
	sols     *prolog.Solutions
	yielded  bool
	finished bool
}

var _ engine.Outcomes = (*outcomes)(nil)

func (o *outcomes) Next() (engine.Outcome, bool) {
	if o.finished {
		return engine.Outcome{}, false
	}

	if o.sols.Next() {
		o.yielded = true
		bindings, err := o.scanBindings()
		if err != nil {
			return engine.Outcome{Kind: engine.OutcomeError, Diagnostic: err.Error()}, true
		}
		if len(bindings) == 0 {
			return engine.Outcome{Kind: engine.OutcomeTrue}, true
		}
		return engine.Outcome{Kind: engine.OutcomeSolution, Bindings: bindings}, true
	}

	o.finished = true

	if err := o.sols.Err(); err != nil {
		if ball, ok := exceptionTerm(err); ok {
			return engine.Outcome{Kind: engine.OutcomeException, Exception: ball}, true
		}
		return engine.Outcome{Kind: engine.OutcomeError, Diagnostic: err.Error()}, true
	}

	if !o.yielded {
		return engine.Outcome{Kind: engine.OutcomeFalse}, true
	}

	return engine.Outcome{}, false
}

func (o *outcomes) Close() error {
	o.finished = true
	return o.sols.Close()
}

// termScanner receives the raw interpreter term for one binding. The
// interpreter's Scan hands any destination implementing prolog.Scanner the
// unconverted term plus its environment, which is the only scan shape that
// keeps compound structure intact.
type termScanner struct {
	term engine.Term
}

var _ prolog.Scanner = (*termScanner)(nil)

func (s *termScanner) Scan(_ *pl.VM, t pl.Term, env *pl.Env) error {
	s.term = convertTerm(t, env)
	return nil
}

// scanBindings extracts the current solution's bindings with term structure
// preserved. The textual rendering remains as a last resort so no solution
// is ever lost.
func (o *outcomes) scanBindings() ([]engine.Binding, error) {
	scanned := map[string]termScanner{}
	if err := o.sols.Scan(scanned); err == nil {
		terms := make(map[string]engine.Term, len(scanned))
		for name, s := range scanned {
			terms[name] = s.term
		}
		return sortedBindings(terms), nil
	}

	text := map[string]prolog.TermString{}
	if err := o.sols.Scan(text); err != nil {
		return nil, fmt.Errorf("scan solution: %w", err)
	}
	terms := make(map[string]engine.Term, len(text))
	for name, v := range text {
		terms[name] = engine.Opaque{Text: string(v)}
	}
	return sortedBindings(terms), nil
}

// sortedBindings orders bindings by variable name. The engine's own
// emission order does not survive the map scan; name order is stable and
// the mapping is documented as unordered.
func sortedBindings(m map[string]engine.Term) []engine.Binding {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make([]engine.Binding, 0, len(names))
	for _, name := range names {
		bindings = append(bindings, engine.Binding{Name: name, Term: m[name]})
	}
	return bindings
}

// exceptionTerm reports whether err carries a thrown Prolog term and, if
// so, converts the ball. The ball is a renamed copy, already detached from
// any environment.
func exceptionTerm(err error) (engine.Term, bool) {
	type baller interface {
		Term() pl.Term
	}
	if ex, ok := err.(baller); ok {
		return convertTerm(ex.Term(), nil), true
	}
	return nil, false
}

// convertTerm maps a raw interpreter term into the service term model,
// resolving variables through env at every level. It is total: the final
// arm degrades to a textual rendering.
func convertTerm(t pl.Term, env *pl.Env) engine.Term {
	switch x := env.Resolve(t).(type) {
	case pl.Atom:
		return engine.Atom(x.String())
	case pl.Integer:
		return engine.NewInteger(int64(x))
	case pl.Float:
		return engine.Float(float64(x))
	case pl.Variable:
		return engine.Variable(fmt.Sprintf("_%d", int64(x)))
	case pl.Compound:
		if list, ok := convertList(x, env); ok {
			return list
		}
		args := make([]engine.Term, 0, x.Arity())
		for i := 0; i < x.Arity(); i++ {
			args = append(args, convertTerm(x.Arg(i), env))
		}
		return engine.Compound{Functor: x.Functor().String(), Args: args}
	case nil:
		return engine.Variable("_")
	default:
		return engine.Opaque{Text: fmt.Sprint(t)}
	}
}

// convertList unfolds a '.'/2 cons chain terminated by [] into a List.
// Improper and partial lists stay compounds.
func convertList(c pl.Compound, env *pl.Env) (engine.Term, bool) {
	if c.Functor().String() != "." || c.Arity() != 2 {
		return nil, false
	}

	var elems engine.List
	var cur pl.Term = c
	for {
		comp, ok := env.Resolve(cur).(pl.Compound)
		if !ok || comp.Functor().String() != "." || comp.Arity() != 2 {
			break
		}
		elems = append(elems, convertTerm(comp.Arg(0), env))
		cur = comp.Arg(1)
	}

	if atom, ok := env.Resolve(cur).(pl.Atom); ok && atom.String() == "[]" {
		return elems, true
	}
	return nil, false
}
