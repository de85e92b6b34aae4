package filter

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/input"
	"github.com/ezachrisen/tripwire/rule"
	"github.com/google/cel-go/cel"
)

// ErrEmptyFilter is returned for a filter with no field set.
var ErrEmptyFilter = errors.New("empty filter")

// File is a rule file written with the default filters and effects.
type File = rule.File[Filter, Effect]

// Scope is the compile scope of one block. Its condition is the guard of
// the block conjoined with the guards of all enclosing blocks, so an else
// branch nested in a rule is only reachable inside that rule's parent.
type Scope struct {
	condition boolean.ExpressionID
	depth     int
}

// Condition returns the guard of the scope, or the zero ExpressionID for
// the root block.
func (s *Scope) Condition() boolean.ExpressionID { return s.condition }

// Depth is 0 for the root block.
func (s *Scope) Depth() int { return s.depth }

// Guard is an effect and the condition under which it applies.
type Guard struct {
	Condition boolean.ExpressionID
	Effect    Effect
	Depth     int
}

// Backend compiles Filters and Effects into a generation under
// construction. It is used for one compilation.
type Backend struct {
	*boolean.Builder
	inputs *input.Inputs
	env    *cel.Env
	guards []Guard
}

var _ rule.Backend[Filter, Effect, Scope] = (*Backend)(nil)

// NewBackend returns a backend adding to b. env checks CEL expressions; nil
// uses NewEnv.
func NewBackend(b *boolean.Builder, env *cel.Env) (*Backend, error) {
	if env == nil {
		var err error
		if env, err = NewEnv(); err != nil {
			return nil, fmt.Errorf("creating expression environment: %w", err)
		}
	}
	return &Backend{Builder: b, inputs: input.NewInputs(), env: env}, nil
}

// Inputs returns the interned inputs of the compiled filters.
func (b *Backend) Inputs() *input.Inputs { return b.inputs }

// Guards returns the compiled effects in compile order.
func (b *Backend) Guards() []Guard { return b.guards }

func (b *Backend) Scope(parent *Scope, condition boolean.ExpressionID) Scope {
	if parent == nil {
		return Scope{condition: condition}
	}
	s := Scope{condition: condition, depth: parent.depth + 1}
	switch {
	case !parent.condition.IsValid():
	case !condition.IsValid():
		s.condition = parent.condition
	case parent.condition != condition:
		s.condition = b.And(parent.condition, condition)
	}
	return s
}

func (b *Backend) CompileEffect(s *Scope, e Effect) error {
	if e.Kind() == "" {
		return fmt.Errorf("effect with no kind")
	}
	condition := s.condition
	if !condition.IsValid() {
		condition = b.Literal(true)
	}
	b.guards = append(b.guards, Guard{Condition: condition, Effect: e, Depth: s.depth})
	return nil
}

func (b *Backend) CompileFilter(s *Scope, f Filter) (boolean.ExpressionID, error) {
	switch f.Kind() {
	case "direction":
		if *f.Direction == Both {
			return b.Literal(true), nil
		}
		return variable[FlowDirection, Direction](b, FlowDirection{}, *f.Direction), nil
	case "port":
		return anyOf[Destination, netip.AddrPort](b, Destination{}, f.Port), nil
	case "ip-address":
		return anyOf[Destination, netip.AddrPort](b, Destination{}, f.IPAddress), nil
	case "hostname":
		return anyOf[Hostname, string](b, Hostname{}, f.Hostname), nil
	case "server-name":
		return anyOf[ServerName, TLSName](b, ServerName{}, f.ServerName), nil
	case "method":
		ms := make([]MethodPattern, len(f.Method))
		for i, p := range f.Method {
			ms[i] = MethodPattern{p}
		}
		return anyOf[HTTPRequest, *http.Request](b, HTTPRequest{}, ms), nil
	case "url":
		ms := make([]URLPattern, len(f.URL))
		for i, p := range f.URL {
			ms[i] = URLPattern{p}
		}
		return anyOf[HTTPRequest, *http.Request](b, HTTPRequest{}, ms), nil
	case "header":
		return variable[HTTPRequest, *http.Request](b, HTTPRequest{}, *f.Header), nil
	case "expr":
		x, err := CompileExpr(b.env, f.Expr)
		if err != nil {
			return boolean.ExpressionID{}, err
		}
		return variable[Attributes, map[string]any](b, Attributes{}, x), nil
	case "prompt":
		return variable[Prompt, boolean.Maybe](b, Prompt{Question: f.Prompt}, Answer{}), nil
	}
	return boolean.ExpressionID{}, ErrEmptyFilter
}

// variable interns (e, m) and returns its variable, labelled with the
// predicate.
func variable[E input.Extractor, D any](b *Backend, e E, m input.Matcher[D]) boolean.ExpressionID {
	v := input.Add[E, D](b.inputs, e, m, func() boolean.VariableID {
		return b.LabeledVariable(input.Describe(e, m))
	})
	return v.Expression()
}

// anyOf is the disjunction of one variable per matcher.
func anyOf[E input.Extractor, D any, M input.Matcher[D]](b *Backend, e E, ms []M) boolean.ExpressionID {
	xs := make([]boolean.ExpressionID, len(ms))
	for i, m := range ms {
		xs[i] = variable[E, D](b, e, m)
	}
	return b.Or(xs...)
}
