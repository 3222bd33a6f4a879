// Package encoder converts engine terms into the JSON value model served
// to clients.
package encoder

import (
	"fmt"

	"github.com/dhaneshkk/prolog-service/pkg/engine"
)

// EncodeTerm maps one term to a JSON-compatible value. The mapping is total
// and deterministic; unknown term kinds degrade to their textual rendering
// instead of failing.
//
// Integers and rationals are rendered as decimal strings so that
// arbitrary-size numbers survive the trip through JSON unchanged.
func EncodeTerm(t engine.Term) any {
	switch v := t.(type) {
	case engine.Integer:
		return v.String()
	case engine.Rational:
		return v.String()
	case engine.Float:
		return float64(v)
	case engine.Atom:
		return string(v)
	case engine.String:
		return string(v)
	case engine.List:
		elems := make([]any, 0, len(v))
		for _, e := range v {
			elems = append(elems, EncodeTerm(e))
		}
		return elems
	case engine.Compound:
		args := make([]any, 0, len(v.Args))
		for _, a := range v.Args {
			args = append(args, EncodeTerm(a))
		}
		return map[string]any{
			"functor": v.Functor,
			"args":    args,
		}
	case engine.Variable:
		return map[string]any{"var": string(v)}
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// EncodeBindings encodes each binding's term keyed by its variable name.
// Key order in the resulting map is not semantically significant; consumers
// must treat the result as an unordered mapping.
func EncodeBindings(bindings []engine.Binding) map[string]any {
	out := make(map[string]any, len(bindings))
	for _, b := range bindings {
		out[b.Name] = EncodeTerm(b.Term)
	}
	return out
}
