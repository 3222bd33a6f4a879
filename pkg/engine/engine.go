// Package engine defines the evaluation-engine capability the service is
// built against, together with the term and outcome model shared by every
// adapter. The engine itself is an external collaborator: the service only
// relies on the contract below.
package engine

import "context"

// OutcomeKind discriminates the variants of an Outcome.
type OutcomeKind int

const (
	// OutcomeTrue is a plain success without bindings.
	OutcomeTrue OutcomeKind = iota

	// OutcomeFalse is a plain failure.
	OutcomeFalse

	// OutcomeException is a success of the error channel: the query threw.
	OutcomeException

	// OutcomeSolution is a success carrying variable bindings.
	OutcomeSolution

	// OutcomeError is an engine-level per-outcome error. It does not
	// terminate the outcome sequence.
	OutcomeError
)

// Binding associates one variable name with its term. Names are unique
// within an outcome; order is the engine's emission order.
type Binding struct {
	Name string
	Term Term
}

// Outcome is one element of a query's result sequence.
type Outcome struct {
	Kind OutcomeKind

	// Bindings is set for OutcomeSolution.
	Bindings []Binding

	// Exception is set for OutcomeException.
	Exception Term

	// Diagnostic is set for OutcomeError.
	Diagnostic string
}

// Outcomes is a lazy, single-use iteration over a query's results. It is
// not restartable: each Context yields its sequence exactly once.
type Outcomes interface {
	// Next returns the next outcome. ok is false once the sequence is
	// exhausted.
	Next() (outcome Outcome, ok bool)

	// Close releases the resources backing the iteration. Safe to call
	// after exhaustion.
	Close() error
}

// Context is an isolated, non-shareable interpreter instance bound to
// in-memory I/O. A Context belongs to exactly one in-flight request: it is
// created fresh per evaluation, never pooled, and destroyed afterwards.
type Context interface {
	// Load consults the given program text into the named module. The
	// engine contract offers no failure signal for malformed programs:
	// they simply leave the context inert or partially defined.
	// Implementations may surface diagnostics through their own logging,
	// but callers must not depend on any.
	Load(ctx context.Context, module, program string)

	// Query starts evaluation of the query text and returns its lazy
	// outcome sequence. An error here is a top-level failure (the query
	// never started), not a per-outcome condition.
	Query(ctx context.Context, query string) (Outcomes, error)

	// Close destroys the context.
	Close() error
}

// Engine is the capability that mints fresh evaluation contexts.
type Engine interface {
	NewContext(ctx context.Context) (Context, error)
}
