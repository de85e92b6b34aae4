package filter

import (
	"fmt"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"
	"github.com/google/cel-go/interpreter"
)

// Names of the attributes CEL expressions can refer to.
const (
	AttrDirection  = "direction"
	AttrIP         = "ip"
	AttrPort       = "port"
	AttrHostname   = "hostname"
	AttrServerName = "server_name"
	AttrMethod     = "method"
	AttrURL        = "url"
	AttrPath       = "path"
	AttrHeaders    = "headers"
)

var attributeNames = []string{
	AttrDirection, AttrIP, AttrPort, AttrHostname, AttrServerName,
	AttrMethod, AttrURL, AttrPath, AttrHeaders,
}

// NewEnv returns the CEL environment expressions are checked against.
// Headers are keyed by lower case name; repeated headers are joined with
// ", ".
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(AttrDirection, cel.StringType),
		cel.Variable(AttrIP, cel.StringType),
		cel.Variable(AttrPort, cel.IntType),
		cel.Variable(AttrHostname, cel.StringType),
		cel.Variable(AttrServerName, cel.StringType),
		cel.Variable(AttrMethod, cel.StringType),
		cel.Variable(AttrURL, cel.StringType),
		cel.Variable(AttrPath, cel.StringType),
		cel.Variable(AttrHeaders, cel.MapType(cel.StringType, cel.StringType)),
		ext.Strings(),
	)
}

// Expr is a boolean CEL expression over the attributes of a flow.
// Attributes that are not known yet are unknown to the expression, so it
// decides as soon as the known ones settle it.
type Expr struct {
	source  string
	program cel.Program
}

// CompileExpr parses and checks source. The expression must be boolean.
func CompileExpr(env *cel.Env, source string) (Expr, error) {
	ast, iss := env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return Expr{}, fmt.Errorf("checking expression %q: %w", source, iss.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return Expr{}, fmt.Errorf("expression %q has type %s, want bool", source, t)
	}
	prg, err := env.Program(ast, cel.EvalOptions(cel.OptPartialEval))
	if err != nil {
		return Expr{}, fmt.Errorf("generating program for %q: %w", source, err)
	}
	return Expr{source: source, program: prg}, nil
}

func (x Expr) Key() string { return x.source }

func (x Expr) String() string { return x.source }

// Match evaluates the expression. An expression that fails at run time, for
// example by reading a header the request does not have, is false.
func (x Expr) Match(attrs map[string]any) boolean.Maybe {
	if x.program == nil {
		return boolean.Indefinite
	}
	var unknown []*interpreter.AttributePattern
	for _, name := range attributeNames {
		if _, ok := attrs[name]; !ok {
			unknown = append(unknown, cel.AttributePattern(name))
		}
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	act, err := cel.PartialVars(attrs, unknown...)
	if err != nil {
		return boolean.Indefinite
	}
	out, _, err := x.program.Eval(act)
	switch {
	case types.IsUnknown(out):
		return boolean.Indefinite
	case err != nil:
		return boolean.False
	}
	b, ok := out.(types.Bool)
	return boolean.Definite(ok && bool(b))
}
