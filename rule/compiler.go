package rule

import (
	"errors"
	"fmt"

	"github.com/ezachrisen/tripwire/boolean"
)

// ErrRequiresUserInteraction is matched by every UserInteractionError.
var ErrRequiresUserInteraction = errors.New("requires user interaction")

// UserInteractionError is returned when a filter or effect can only be
// satisfied by asking the user and the compiler was configured without
// user interaction.
type UserInteractionError struct {
	Name string
}

func (e *UserInteractionError) Error() string {
	return fmt.Sprintf("the %s requires user interaction", e.Name)
}

func (e *UserInteractionError) Is(target error) bool {
	return target == ErrRequiresUserInteraction
}

// Interactive is implemented by filters and effects that may need the user
// to answer. name identifies the filter or effect in errors.
type Interactive interface {
	RequiresUserInteraction() (name string, required bool)
}

// Combinator is the part of the graph surface the compiler folds conditions
// with. *boolean.Builder implements it.
type Combinator interface {
	And(xs ...boolean.ExpressionID) boolean.ExpressionID
	Or(xs ...boolean.ExpressionID) boolean.ExpressionID
	Not(x boolean.ExpressionID) boolean.ExpressionID
}

// Backend turns filters into graph expressions and registers effects.
//
// Scope opens a child scope of parent (nil for the root block) that is
// reachable when condition holds. The condition of the root block is the
// zero ExpressionID: the block is always reachable.
type Backend[F, E, S any] interface {
	Combinator
	Scope(parent *S, condition boolean.ExpressionID) S
	CompileFilter(scope *S, filter F) (boolean.ExpressionID, error)
	CompileEffect(scope *S, effect E) error
}

// Config controls compilation.
type Config struct {
	// UserInteraction allows filters and effects that ask the user.
	UserInteraction bool
}

// Compiler lowers rule blocks through a Backend.
type Compiler[F, E, S any] struct {
	config  Config
	backend Backend[F, E, S]
}

func NewCompiler[F, E, S any](config Config, backend Backend[F, E, S]) *Compiler[F, E, S] {
	return &Compiler[F, E, S]{config: config, backend: backend}
}

// CompileBlock opens a scope guarded by condition, compiles the rules of the
// block inside it and then its effects.
func (c *Compiler[F, E, S]) CompileBlock(block Block[F, E], condition boolean.ExpressionID, parent *S) error {
	scope := c.backend.Scope(parent, condition)

	for i := range block.Rules {
		if err := c.CompileRule(block.Rules[i], condition, &scope); err != nil {
			return err
		}
	}

	for _, e := range block.Effects {
		if err := c.interactive(e); err != nil {
			return err
		}
		if err := c.backend.CompileEffect(&scope, e); err != nil {
			return fmt.Errorf("compiling effect %v: %w", e, err)
		}
	}
	return nil
}

// CompileRule compiles the branches of r. Then is guarded by the
// conjunction of condition and r.If, Else by its negation. A rule with two
// empty branches is skipped without compiling its conditions.
func (c *Compiler[F, E, S]) CompileRule(r Rule[F, E], condition boolean.ExpressionID, scope *S) error {
	if r.Then.IsEmpty() && r.Else.IsEmpty() {
		return nil
	}

	xs := make([]boolean.ExpressionID, 0, len(r.If)+1)
	if condition.IsValid() {
		xs = append(xs, condition)
	}
	xs, err := c.compileInto(r.If, xs, scope)
	if err != nil {
		return err
	}
	then := c.backend.And(xs...)

	if !r.Then.IsEmpty() {
		if err := c.CompileBlock(r.Then, then, scope); err != nil {
			return err
		}
	}
	if !r.Else.IsEmpty() {
		if err := c.CompileBlock(r.Else, c.backend.Not(then), scope); err != nil {
			return err
		}
	}
	return nil
}

// CompileConditions folds cs with And.
func (c *Compiler[F, E, S]) CompileConditions(cs Conditions[F], scope *S) (boolean.ExpressionID, error) {
	xs, err := c.compileInto(cs, nil, scope)
	if err != nil {
		return boolean.ExpressionID{}, err
	}
	return c.backend.And(xs...), nil
}

// CompileCondition compiles one condition. A not condition negates the
// conjunction of its children: not [a, b] is not (a and b).
func (c *Compiler[F, E, S]) CompileCondition(cond Condition[F], scope *S) (boolean.ExpressionID, error) {
	switch cond.Op {
	case OpTerminal:
		if err := c.interactive(cond.Filter); err != nil {
			return boolean.ExpressionID{}, err
		}
		x, err := c.backend.CompileFilter(scope, cond.Filter)
		if err != nil {
			return boolean.ExpressionID{}, fmt.Errorf("compiling filter %v: %w", cond.Filter, err)
		}
		return x, nil
	case OpNot:
		x, err := c.CompileConditions(cond.Sub, scope)
		if err != nil {
			return boolean.ExpressionID{}, err
		}
		return c.backend.Not(x), nil
	case OpAnd:
		return c.CompileConditions(cond.Sub, scope)
	case OpOr:
		xs, err := c.compileInto(cond.Sub, nil, scope)
		if err != nil {
			return boolean.ExpressionID{}, err
		}
		return c.backend.Or(xs...), nil
	}
	return boolean.ExpressionID{}, fmt.Errorf("unknown condition operator %v", cond.Op)
}

func (c *Compiler[F, E, S]) compileInto(cs Conditions[F], xs []boolean.ExpressionID, scope *S) ([]boolean.ExpressionID, error) {
	for _, cond := range cs {
		x, err := c.CompileCondition(cond, scope)
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	return xs, nil
}

func (c *Compiler[F, E, S]) interactive(v any) error {
	if c.config.UserInteraction {
		return nil
	}
	if i, ok := v.(Interactive); ok {
		if name, required := i.RequiresUserInteraction(); required {
			return &UserInteractionError{Name: name}
		}
	}
	return nil
}
