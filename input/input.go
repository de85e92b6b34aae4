// Package input deduplicates the predicates that feed an expression graph.
//
// A predicate is an (extractor, matcher) pair. The extractor names a kind of
// fact about a flow and the data it is evaluated against, for example "the
// destination port" or "the TLS server name". The matcher is one concrete
// test of that data, for example "is 443" or "matches *.example.com".
//
// Inputs interns equal pairs into a single graph variable, so a predicate
// written in several rules is represented, and evaluated, once. At evaluation
// time ForEach extracts the data for each distinct extractor once and feeds
// the verdict of every matcher sharing it into an Evaluator.
package input

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/ezachrisen/tripwire/boolean"
)

// Extractor constrains extractor kinds. Extractors are compared by value.
type Extractor interface {
	comparable
	fmt.Stringer
}

// Matcher evaluates one predicate against extracted data. A matcher that
// cannot decide from the data it was given returns boolean.Indefinite.
type Matcher[D any] interface {
	Match(data D) boolean.Maybe
}

// MatchFunc adapts a function to Matcher. Functions have no value equality,
// so two MatchFuncs are never interned together.
type MatchFunc[D any] func(D) boolean.Maybe

func (f MatchFunc[D]) Match(data D) boolean.Maybe {
	return f(data)
}

// Keyed matchers are identified by their key instead of their field values.
// Matchers holding state that cannot be hashed or compared, like compiled
// patterns, should implement it.
type Keyed interface {
	Key() string
}

// Input is one interned (extractor, matcher) pair and the variable it feeds.
type Input[E Extractor, D any] struct {
	extractor E
	matcher   Matcher[D]
	hash      uint64
	variable  boolean.VariableID
}

func (in *Input[E, D]) Extractor() E {
	return in.extractor
}

func (in *Input[E, D]) Matcher() Matcher[D] {
	return in.matcher
}

func (in *Input[E, D]) Variable() boolean.VariableID {
	return in.variable
}

func (in *Input[E, D]) String() string {
	return Describe(in.extractor, in.matcher)
}

// Describe renders a predicate for labels and diagnostics.
func Describe(extractor fmt.Stringer, matcher any) string {
	if k, ok := matcher.(Keyed); ok {
		return fmt.Sprintf("%s %s", extractor, k.Key())
	}
	if s, ok := matcher.(fmt.Stringer); ok {
		return fmt.Sprintf("%s %s", extractor, s)
	}
	return fmt.Sprintf("%s %T", extractor, matcher)
}

// InputSet holds the inputs of one extractor kind.
type InputSet[E Extractor, D any] struct {
	inputs []*Input[E, D]
	byHash map[uint64][]int

	// distinct extractors in the order they were first registered, and the
	// inputs sharing each one
	extractors  []E
	byExtractor map[E][]int
}

func newInputSet[E Extractor, D any]() *InputSet[E, D] {
	return &InputSet[E, D]{
		byHash:      map[uint64][]int{},
		byExtractor: map[E][]int{},
	}
}

// Len returns the number of distinct inputs.
func (s *InputSet[E, D]) Len() int {
	return len(s.inputs)
}

// Extractors returns the number of distinct extractors.
func (s *InputSet[E, D]) Extractors() int {
	return len(s.extractors)
}

// Each calls f for every input in registration order.
func (s *InputSet[E, D]) Each(f func(in *Input[E, D])) {
	for _, in := range s.inputs {
		f(in)
	}
}

func (s *InputSet[E, D]) kind() string {
	return kindOf[E]().String()
}

func (s *InputSet[E, D]) insert(extractor E, matcher Matcher[D], create func() boolean.VariableID) boolean.VariableID {
	hash := hashInput(extractor, matcher)
	for _, i := range s.byHash[hash] {
		in := s.inputs[i]
		if in.extractor == extractor && sameMatcher(in.matcher, matcher) {
			return in.variable
		}
	}

	in := &Input[E, D]{
		extractor: extractor,
		matcher:   matcher,
		hash:      hash,
		variable:  create(),
	}
	i := len(s.inputs)
	s.inputs = append(s.inputs, in)
	s.byHash[hash] = append(s.byHash[hash], i)
	if _, ok := s.byExtractor[extractor]; !ok {
		s.extractors = append(s.extractors, extractor)
	}
	s.byExtractor[extractor] = append(s.byExtractor[extractor], i)
	return in.variable
}

// set is the type-erased view of an InputSet used by Inputs.
type set interface {
	Len() int
	kind() string
}

// Inputs is the registry of input sets, one per extractor kind. The set of
// kinds is open: any comparable type satisfying Extractor can be registered.
//
// Inputs is filled while a graph generation is built and read-only
// afterwards; it is not safe for concurrent registration.
type Inputs struct {
	sets map[reflect.Type]set
}

func NewInputs() *Inputs {
	return &Inputs{sets: map[reflect.Type]set{}}
}

// Add interns the predicate (extractor, matcher). If an equal pair was
// added before, its variable is returned; otherwise create is called to
// allocate a new one.
//
// Registering the same extractor kind with two different data types panics.
func Add[E Extractor, D any](in *Inputs, extractor E, matcher Matcher[D], create func() boolean.VariableID) boolean.VariableID {
	key := kindOf[E]()
	s, ok := in.sets[key]
	if !ok {
		s = newInputSet[E, D]()
		in.sets[key] = s
	}
	typed, ok := s.(*InputSet[E, D])
	if !ok {
		panic(fmt.Sprintf("input: extractor %s registered as %T, now with data type %s", key, s, kindOf[D]()))
	}
	return typed.insert(extractor, matcher, create)
}

// Lookup returns the input set for extractor kind E, or nil if nothing of
// that kind was registered.
func Lookup[E Extractor, D any](in *Inputs) *InputSet[E, D] {
	key := kindOf[E]()
	s, ok := in.sets[key]
	if !ok {
		return nil
	}
	typed, ok := s.(*InputSet[E, D])
	if !ok {
		panic(fmt.Sprintf("input: extractor %s looked up with data type %s, registered as %T", key, kindOf[D](), s))
	}
	return typed
}

// Len returns the number of distinct inputs across all kinds.
func (in *Inputs) Len() int {
	n := 0
	for _, s := range in.sets {
		n += s.Len()
	}
	return n
}

// Kinds returns the names of the registered extractor kinds, sorted.
func (in *Inputs) Kinds() []string {
	kinds := make([]string, 0, len(in.sets))
	for _, s := range in.sets {
		kinds = append(kinds, s.kind())
	}
	sort.Strings(kinds)
	return kinds
}

// kindOf is the runtime type tag of T.
func kindOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
