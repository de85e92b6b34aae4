package input

import "github.com/ezachrisen/tripwire/boolean"

// Update feeds the facts of one flow into its Evaluator.
type Update struct {
	inputs    *Inputs
	evaluator *boolean.Evaluator
}

// NewUpdate binds the registry of a generation to an Evaluator of the same
// generation.
func NewUpdate(inputs *Inputs, evaluator *boolean.Evaluator) *Update {
	return &Update{inputs: inputs, evaluator: evaluator}
}

// Evaluator returns the Evaluator u feeds.
func (u *Update) Evaluator() *boolean.Evaluator {
	return u.evaluator
}

// ForEach feeds newly available data of extractor kind E. The extract
// function is called once per distinct registered extractor, and every
// matcher sharing that extractor is tested against the same data. Matchers
// that decide are assigned to their variables; undecided ones are left alone
// and can be fed again later.
//
// ForEach returns the number of variables assigned.
func ForEach[E Extractor, D any](u *Update, extract func(extractor E) D) int {
	s := Lookup[E, D](u.inputs)
	if s == nil {
		return 0
	}
	n := 0
	for _, e := range s.extractors {
		data := extract(e)
		for _, i := range s.byExtractor[e] {
			in := s.inputs[i]
			if v, ok := in.matcher.Match(data).Bool(); ok {
				u.evaluator.Set(in.variable, v)
				n++
			}
		}
	}
	return n
}
