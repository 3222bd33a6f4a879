package engine

import (
	"fmt"
	"math/big"
	"strings"
)

// Term is the recursive value representation produced by the evaluation
// engine. The set of variants is open ended: any value with a textual
// rendering qualifies, so adapters can pass through term kinds this model
// does not cover and consumers degrade to the textual form.
type Term interface {
	fmt.Stringer
}

// Integer is an arbitrary-precision integer term.
type Integer struct {
	Value *big.Int
}

// NewInteger returns an Integer term for the given int64.
func NewInteger(v int64) Integer {
	return Integer{Value: big.NewInt(v)}
}

func (t Integer) String() string {
	if t.Value == nil {
		return "0"
	}
	return t.Value.String()
}

// Rational is an arbitrary-precision rational term.
type Rational struct {
	Value *big.Rat
}

func (t Rational) String() string {
	if t.Value == nil {
		return "0"
	}
	return t.Value.RatString()
}

// Float is a floating point term.
type Float float64

func (t Float) String() string {
	return fmt.Sprintf("%g", float64(t))
}

// Atom is a Prolog atom.
type Atom string

func (t Atom) String() string {
	return string(t)
}

// String is a Prolog string.
type String string

func (t String) String() string {
	return string(t)
}

// List is an ordered sequence of terms.
type List []Term

func (t List) String() string {
	elems := make([]string, 0, len(t))
	for _, e := range t {
		elems = append(elems, e.String())
	}
	return "[" + strings.Join(elems, ",") + "]"
}

// Compound is a functor applied to one or more arguments.
type Compound struct {
	Functor string
	Args    []Term
}

func (t Compound) String() string {
	args := make([]string, 0, len(t.Args))
	for _, a := range t.Args {
		args = append(args, a.String())
	}
	return t.Functor + "(" + strings.Join(args, ",") + ")"
}

// Variable is an unbound (or residual) variable.
type Variable string

func (t Variable) String() string {
	return string(t)
}

// Opaque is the forward-compatibility fallback for term kinds the model
// does not cover. It carries a best-effort textual rendering.
type Opaque struct {
	Text string
}

func (t Opaque) String() string {
	return t.Text
}
