// Package rule lowers a tree of rules into an expression graph.
//
// A rule file is a Block: a list of Rules and a list of Effects. Each Rule
// has a condition (If) and two optional blocks, Then and Else. The Compiler
// walks the tree depth first and hands every terminal filter and every
// effect to a Backend, which owns the concrete filter and effect types.
// Effects are registered in a Scope guarded by the condition under which the
// enclosing block is reachable.
//
// The package is generic over the filter type F and the effect type E, so
// the same compiler and the same YAML layout serve any catalog of filters.
package rule

import (
	"fmt"
	"strings"
)

// Op selects how a Condition is evaluated.
type Op uint8

const (
	// OpTerminal conditions are a single filter.
	OpTerminal Op = iota
	// OpNot is the negation of the conjunction of its sub-conditions.
	OpNot
	// OpAnd is the conjunction of its sub-conditions.
	OpAnd
	// OpOr is the disjunction of its sub-conditions.
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpTerminal:
		return "terminal"
	case OpNot:
		return "not"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Block is a list of rules and the effects that apply when the block is
// reached.
type Block[F, E any] struct {
	Rules   []Rule[F, E]
	Effects []E
}

// IsEmpty reports whether the block has neither rules nor effects.
func (b Block[F, E]) IsEmpty() bool {
	return len(b.Rules) == 0 && len(b.Effects) == 0
}

// A Rule selects one of two blocks. Then is reached when every condition in
// If holds, Else when at least one does not. A rule without conditions
// always takes Then.
type Rule[F, E any] struct {
	If   Conditions[F]
	Then Block[F, E]
	Else Block[F, E]
}

// Conditions is an implicit conjunction.
type Conditions[F any] []Condition[F]

// Condition is either a terminal filter (Op == OpTerminal) or a combination
// of sub-conditions.
type Condition[F any] struct {
	Op     Op
	Filter F
	Sub    Conditions[F]
}

// Filter returns a terminal condition.
func Filter[F any](filter F) Condition[F] {
	return Condition[F]{Op: OpTerminal, Filter: filter}
}

// Not returns a condition that holds unless all of cs hold.
func Not[F any](cs ...Condition[F]) Condition[F] {
	return Condition[F]{Op: OpNot, Sub: cs}
}

// And returns a condition that holds when all of cs hold.
func And[F any](cs ...Condition[F]) Condition[F] {
	return Condition[F]{Op: OpAnd, Sub: cs}
}

// Or returns a condition that holds when any of cs holds.
func Or[F any](cs ...Condition[F]) Condition[F] {
	return Condition[F]{Op: OpOr, Sub: cs}
}

func (c Condition[F]) String() string {
	switch c.Op {
	case OpTerminal:
		return fmt.Sprint(c.Filter)
	case OpNot:
		return "not(" + c.Sub.join(" and ") + ")"
	case OpAnd:
		return "(" + c.Sub.join(" and ") + ")"
	case OpOr:
		return "(" + c.Sub.join(" or ") + ")"
	}
	return c.Op.String()
}

func (cs Conditions[F]) String() string {
	if len(cs) == 0 {
		return "always"
	}
	return cs.join(" and ")
}

func (cs Conditions[F]) join(sep string) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, sep)
}

// Tree returns a tree representation of the block, showing the condition of
// every rule, its branches and the effects of each block. Recursion stops
// at 20 levels.
//
// Example output:
//
//	rules
//	├── if port 443 and server-name *.example.com
//	│   ├── then
//	│   │   └── log user
//	│   └── else
//	│       └── drop
//	└── drop
func (b Block[F, E]) Tree() string {
	var sb strings.Builder
	sb.WriteString("rules\n")
	b.buildTree(&sb, "", 0)
	return sb.String()
}

type treeNode struct {
	label    string
	children func(sb *strings.Builder, prefix string, depth int)
}

func (b Block[F, E]) treeNodes() []treeNode {
	nodes := make([]treeNode, 0, len(b.Rules)+len(b.Effects))
	for _, r := range b.Rules {
		r := r
		nodes = append(nodes, treeNode{
			label:    "if " + r.If.String(),
			children: r.buildTree,
		})
	}
	for _, e := range b.Effects {
		nodes = append(nodes, treeNode{label: fmt.Sprint(e)})
	}
	return nodes
}

func (b Block[F, E]) buildTree(sb *strings.Builder, prefix string, depth int) {
	writeTree(sb, prefix, depth, b.treeNodes())
}

func (r Rule[F, E]) buildTree(sb *strings.Builder, prefix string, depth int) {
	var nodes []treeNode
	if !r.Then.IsEmpty() {
		nodes = append(nodes, treeNode{label: "then", children: r.Then.buildTree})
	}
	if !r.Else.IsEmpty() {
		nodes = append(nodes, treeNode{label: "else", children: r.Else.buildTree})
	}
	writeTree(sb, prefix, depth, nodes)
}

func writeTree(sb *strings.Builder, prefix string, depth int, nodes []treeNode) {
	if depth >= 20 {
		return
	}
	for i, n := range nodes {
		connector, childPrefix := "├── ", "│   "
		if i == len(nodes)-1 {
			connector, childPrefix = "└── ", "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(n.label)
		sb.WriteString("\n")
		if n.children != nil {
			n.children(sb, prefix+childPrefix, depth+1)
		}
	}
}
