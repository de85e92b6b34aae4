package boolean

type expressionState struct {
	value Maybe
	// inputs of the node that have not become definite yet
	pending int
}

// Evaluator assigns facts to the variables of one graph generation and
// tracks the resulting value of every expression that depends on them.
//
// An Evaluator belongs to a single flow. It is not safe for concurrent use,
// but any number of Evaluators can share the same Graph.
type Evaluator struct {
	graph  *Graph
	values map[uint32]*expressionState
}

// NewEvaluator returns an Evaluator bound to g with both literals already
// assigned and propagated.
func NewEvaluator(g *Graph) *Evaluator {
	e := &Evaluator{
		graph:  g,
		values: make(map[uint32]*expressionState, 8),
	}
	e.values[falseIndex] = &expressionState{value: False}
	e.values[trueIndex] = &expressionState{value: True}
	e.propagate(falseIndex, false)
	e.propagate(trueIndex, true)
	return e
}

// Graph returns the generation e is bound to.
func (e *Evaluator) Graph() *Graph {
	return e.graph
}

// Set assigns value to the variable v and propagates it.
//
// Setting a variable to the value it already has does nothing. Setting it to
// the opposite value panics with a *ContractViolation, as does passing a
// variable from another generation.
func (e *Evaluator) Set(v VariableID, value bool) {
	id := v.ExpressionID
	if id.instance != e.graph.instance {
		violate("set", "variable %s does not belong to generation %d", id, e.graph.instance)
	}
	e.graph.expect("set", id)
	if kind := e.graph.nodes[id.index].kind; kind != KindVariable {
		violate("set", "expression %s is a %s, not a variable", id, kind)
	}

	st := e.state(id.index)
	switch {
	case st.value.Is(value):
		return
	case st.value.IsDefinite():
		violate("set", "variable %s is already %s, cannot assign %t", id, st.value, value)
	}
	st.value = Definite(value)
	e.propagate(id.index, value)
}

// Get returns the current value of x. Expressions that no fact has reached
// yet are Indefinite.
func (e *Evaluator) Get(x ExpressionID) Maybe {
	e.graph.expect("get", x)
	if st, ok := e.values[x.index]; ok {
		return st.value
	}
	return Indefinite
}

// Definite returns the number of nodes, literals included, whose value is
// known.
func (e *Evaluator) Definite() int {
	n := 0
	for _, st := range e.values {
		if st.value.IsDefinite() {
			n++
		}
	}
	return n
}

func (e *Evaluator) state(index uint32) *expressionState {
	st, ok := e.values[index]
	if !ok {
		st = &expressionState{pending: len(e.graph.nodes[index].inputs)}
		e.values[index] = st
	}
	return st
}

// propagate pushes a newly definite value to the dependents of a node, and
// from there onwards for every dependent that became definite in turn.
func (e *Evaluator) propagate(index uint32, value bool) {
	type resolved struct {
		index uint32
		value bool
	}
	stack := []resolved{{index, value}}

	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, d := range e.graph.nodes[r.index].dependents {
			n := &e.graph.nodes[d]
			st := e.state(d)
			if st.pending == 0 {
				violate("propagate", "node %d (%s) received more inputs than it has", d, n.kind)
			}
			st.pending--

			next := Indefinite
			switch n.kind {
			case KindNot:
				next = Definite(!r.value)
			case KindAnd:
				switch {
				case !r.value:
					next = False
				case st.pending == 0 && !st.value.IsDefinite():
					next = True
				}
			case KindOr:
				switch {
				case r.value:
					next = True
				case st.pending == 0 && !st.value.IsDefinite():
					next = False
				}
			default:
				violate("propagate", "node %d (%s) cannot have inputs", d, n.kind)
			}

			switch {
			case !next.IsDefinite(), st.value.Equal(next):
			case st.value.IsDefinite():
				violate("propagate", "node %d (%s) is already %s, cannot become %s", d, n.kind, st.value, next)
			default:
				st.value = next
				stack = append(stack, resolved{d, next == True})
			}
		}
	}
}
