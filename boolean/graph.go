// Package boolean provides an append-only graph of boolean expressions and an
// incremental tri-state evaluator for it.
//
// A Builder inserts literals, variables and Not/And/Or combinators into a
// node table. Build freezes the table into a Graph: an immutable generation
// that any number of Evaluators can read concurrently without locking. Each
// generation carries a process-wide instance tag, and every ExpressionID
// remembers the generation it was created in. Using an ExpressionID with a
// different generation is a programming error and panics.
//
// Evaluators are cheap, per-flow objects. Variables are assigned one at a
// time with Set, and the consequences are propagated forward through the
// dependents of the variable until nothing more can be decided. A value that
// became definite never changes again.
package boolean

import (
	"fmt"
	"sync/atomic"
)

// Kind is the kind of a node in the graph.
type Kind uint8

const (
	KindLiteral Kind = iota
	KindVariable
	KindNot
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindVariable:
		return "variable"
	case KindNot:
		return "not"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// literal nodes always occupy the first two slots of the table
const (
	falseIndex uint32 = 0
	trueIndex  uint32 = 1
)

type node struct {
	kind       Kind
	value      bool // only for literals
	label      string
	inputs     []uint32
	dependents []uint32
}

// instances hands out generation tags. Zero is never used, so the zero
// ExpressionID can stand for "no expression".
var instances atomic.Uint64

// ExpressionID identifies a node within one graph generation.
type ExpressionID struct {
	instance uint64
	index    uint32
}

// IsValid reports whether id refers to an expression. The zero ExpressionID
// is not valid and is used where an expression is optional.
func (id ExpressionID) IsValid() bool {
	return id.instance != 0
}

func (id ExpressionID) String() string {
	if !id.IsValid() {
		return "<none>"
	}
	return fmt.Sprintf("#%d.%d", id.instance, id.index)
}

// VariableID is an ExpressionID that references a variable node.
type VariableID struct {
	ExpressionID
}

// Expression returns the variable as a plain expression.
func (v VariableID) Expression() ExpressionID {
	return v.ExpressionID
}

// Graph is a published, immutable generation of the expression graph.
type Graph struct {
	instance uint64
	nodes    []node
}

// Instance returns the generation tag of g.
func (g *Graph) Instance() uint64 {
	return g.instance
}

// Len returns the number of nodes in g, including the two literals.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Literal returns the expression for the constant b.
func (g *Graph) Literal(b bool) ExpressionID {
	if b {
		return g.id(trueIndex)
	}
	return g.id(falseIndex)
}

// Kind returns the kind of the node behind id.
func (g *Graph) Kind(id ExpressionID) Kind {
	g.expect("kind", id)
	return g.nodes[id.index].kind
}

// Label returns the debug label of the node behind id, if any.
func (g *Graph) Label(id ExpressionID) string {
	g.expect("label", id)
	return g.nodes[id.index].label
}

// Inputs returns the operands of the node behind id.
func (g *Graph) Inputs(id ExpressionID) []ExpressionID {
	g.expect("inputs", id)
	n := g.nodes[id.index]
	ids := make([]ExpressionID, len(n.inputs))
	for i, in := range n.inputs {
		ids[i] = g.id(in)
	}
	return ids
}

// Evaluator returns a new Evaluator bound to g.
func (g *Graph) Evaluator() *Evaluator {
	return NewEvaluator(g)
}

func (g *Graph) id(index uint32) ExpressionID {
	return ExpressionID{instance: g.instance, index: index}
}

// expect panics if id was not created in g.
func (g *Graph) expect(op string, id ExpressionID) {
	if id.instance != g.instance {
		violate(op, "use of foreign expression %s in generation %d", id, g.instance)
	}
	if int(id.index) >= len(g.nodes) {
		violate(op, "expression %s is out of range (%d nodes)", id, len(g.nodes))
	}
}

// Builder inserts nodes into a generation that has not been published yet.
// A Builder is not safe for concurrent use, and cannot be used after Build.
type Builder struct {
	g     *Graph
	built bool
}

// NewBuilder starts a new, empty generation containing only the two
// literals.
func NewBuilder() *Builder {
	g := &Graph{
		instance: instances.Add(1),
		nodes:    make([]node, 2, 16),
	}
	g.nodes[falseIndex] = node{kind: KindLiteral, value: false}
	g.nodes[trueIndex] = node{kind: KindLiteral, value: true}
	return &Builder{g: g}
}

// Instance returns the generation tag of the graph under construction.
func (b *Builder) Instance() uint64 {
	return b.g.instance
}

// Len returns the number of nodes inserted so far.
func (b *Builder) Len() int {
	return len(b.g.nodes)
}

// Build freezes the generation and returns it.
func (b *Builder) Build() *Graph {
	b.check("build")
	b.built = true
	return b.g
}

// Literal returns the expression for the constant value.
func (b *Builder) Literal(value bool) ExpressionID {
	b.check("literal")
	return b.g.Literal(value)
}

// Variable adds a new fact slot.
func (b *Builder) Variable() VariableID {
	return b.LabeledVariable("")
}

// LabeledVariable adds a new fact slot carrying a label for diagnostics.
func (b *Builder) LabeledVariable(label string) VariableID {
	b.check("variable")
	return VariableID{b.add(node{kind: KindVariable, label: label})}
}

// Not returns the negation of x. Negating the same expression twice yields
// the same node.
func (b *Builder) Not(x ExpressionID) ExpressionID {
	b.check("not")
	b.g.expect("not", x)
	for _, d := range b.g.nodes[x.index].dependents {
		if b.g.nodes[d].kind == KindNot {
			return b.g.id(d)
		}
	}
	return b.add(node{kind: KindNot, inputs: []uint32{x.index}})
}

// And returns the conjunction of xs. With no operands it is the literal
// true, and a single operand is returned unchanged.
func (b *Builder) And(xs ...ExpressionID) ExpressionID {
	b.check("and")
	return b.combine("and", KindAnd, xs)
}

// Or returns the disjunction of xs. With no operands it is the literal
// false, and a single operand is returned unchanged.
func (b *Builder) Or(xs ...ExpressionID) ExpressionID {
	b.check("or")
	return b.combine("or", KindOr, xs)
}

func (b *Builder) combine(op string, kind Kind, xs []ExpressionID) ExpressionID {
	inputs := make([]uint32, 0, len(xs))
	seen := make(map[uint32]struct{}, len(xs))
	for _, x := range xs {
		b.g.expect(op, x)
		if _, dup := seen[x.index]; dup {
			continue
		}
		seen[x.index] = struct{}{}
		inputs = append(inputs, x.index)
	}

	switch len(inputs) {
	case 0:
		return b.g.Literal(kind == KindAnd)
	case 1:
		return b.g.id(inputs[0])
	}

	if index, ok := b.find(kind, inputs, seen); ok {
		return b.g.id(index)
	}
	return b.add(node{kind: kind, inputs: inputs})
}

// find looks for an existing node of kind whose operands are exactly the
// set of inputs. Candidates are taken from the input with the fewest
// dependents.
func (b *Builder) find(kind Kind, inputs []uint32, set map[uint32]struct{}) (uint32, bool) {
	narrowest := inputs[0]
	for _, in := range inputs[1:] {
		if len(b.g.nodes[in].dependents) < len(b.g.nodes[narrowest].dependents) {
			narrowest = in
		}
	}

candidates:
	for _, d := range b.g.nodes[narrowest].dependents {
		n := b.g.nodes[d]
		if n.kind != kind || len(n.inputs) != len(inputs) {
			continue
		}
		for _, in := range n.inputs {
			if _, ok := set[in]; !ok {
				continue candidates
			}
		}
		return d, true
	}
	return 0, false
}

func (b *Builder) add(n node) ExpressionID {
	index := uint32(len(b.g.nodes))
	b.g.nodes = append(b.g.nodes, n)
	for _, in := range n.inputs {
		b.g.nodes[in].dependents = append(b.g.nodes[in].dependents, index)
	}
	return b.g.id(index)
}

func (b *Builder) check(op string) {
	if b.built {
		violate(op, "generation %d is already published", b.g.instance)
	}
}
