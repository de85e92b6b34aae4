package input_test

import (
	"strings"
	"testing"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/input"
	"github.com/matryer/is"
)

type port struct{}

func (port) String() string { return "port" }

type header struct{ Name string }

func (h header) String() string { return "header " + h.Name }

type portIs uint16

func (p portIs) Match(port uint16) boolean.Maybe {
	if port == 0 {
		return boolean.Indefinite
	}
	return boolean.Definite(uint16(p) == port)
}

type portIn []uint16

func (p portIn) Match(port uint16) boolean.Maybe {
	for _, x := range p {
		if x == port {
			return boolean.True
		}
	}
	return boolean.False
}

type prefix struct{ p string }

func (m prefix) Key() string { return m.p }

func (m prefix) Match(s string) boolean.Maybe {
	if s == "" {
		return boolean.Indefinite
	}
	return boolean.Definite(strings.HasPrefix(s, m.p))
}

// anyMatcher is comparable, but not every value of V is.
type anyMatcher struct{ V any }

func (m anyMatcher) Match(uint16) boolean.Maybe { return boolean.Indefinite }

type counter struct {
	b *boolean.Builder
	n int
}

func (c *counter) create() boolean.VariableID {
	c.n++
	return c.b.Variable()
}

func TestAddInterns(t *testing.T) {
	is := is.New(t)
	c := &counter{b: boolean.NewBuilder()}
	in := input.NewInputs()

	a := input.Add[port, uint16](in, port{}, portIs(443), c.create)
	b := input.Add[port, uint16](in, port{}, portIs(443), c.create)
	is.Equal(a, b)
	is.Equal(c.n, 1)

	other := input.Add[port, uint16](in, port{}, portIs(80), c.create)
	is.True(other != a)
	is.Equal(c.n, 2)

	// slices are compared by content
	s1 := input.Add[port, uint16](in, port{}, portIn{80, 8080}, c.create)
	s2 := input.Add[port, uint16](in, port{}, portIn{80, 8080}, c.create)
	s3 := input.Add[port, uint16](in, port{}, portIn{80}, c.create)
	is.Equal(s1, s2)
	is.True(s1 != s3)

	// keyed matchers are compared by key
	h1 := input.Add[header, string](in, header{"User-Agent"}, prefix{"curl/"}, c.create)
	h2 := input.Add[header, string](in, header{"User-Agent"}, prefix{"curl/"}, c.create)
	h3 := input.Add[header, string](in, header{"Accept"}, prefix{"curl/"}, c.create)
	is.Equal(h1, h2)
	is.True(h1 != h3)

	is.Equal(in.Len(), 6)
	is.Equal(in.Kinds(), []string{"input_test.header", "input_test.port"})
	set := input.Lookup[port, uint16](in)
	is.Equal(set.Len(), 4)
	is.Equal(set.Extractors(), 1)
}

func TestInterfaceFieldsHoldingSlices(t *testing.T) {
	is := is.New(t)
	c := &counter{b: boolean.NewBuilder()}
	in := input.NewInputs()

	a := input.Add[port, uint16](in, port{}, anyMatcher{V: []string{"a"}}, c.create)
	b := input.Add[port, uint16](in, port{}, anyMatcher{V: []string{"a"}}, c.create)
	d := input.Add[port, uint16](in, port{}, anyMatcher{V: []string{"b"}}, c.create)
	m := input.Add[port, uint16](in, port{}, anyMatcher{V: map[string]int{"a": 1}}, c.create)
	n := input.Add[port, uint16](in, port{}, anyMatcher{V: map[string]int{"a": 1}}, c.create)
	x := input.Add[port, uint16](in, port{}, anyMatcher{V: 7}, c.create)
	y := input.Add[port, uint16](in, port{}, anyMatcher{V: 7}, c.create)
	is.Equal(a, b)
	is.True(a != d)
	is.Equal(m, n)
	is.Equal(x, y)
	is.Equal(c.n, 4)
}

func TestMatchFuncsAreNeverInterned(t *testing.T) {
	is := is.New(t)
	c := &counter{b: boolean.NewBuilder()}
	in := input.NewInputs()

	f := input.MatchFunc[uint16](func(p uint16) boolean.Maybe { return boolean.Definite(p > 1024) })
	a := input.Add[port, uint16](in, port{}, f, c.create)
	b := input.Add[port, uint16](in, port{}, f, c.create)
	is.True(a != b)
}

func TestDifferentMatcherTypesDoNotCollide(t *testing.T) {
	is := is.New(t)
	c := &counter{b: boolean.NewBuilder()}
	in := input.NewInputs()

	a := input.Add[port, uint16](in, port{}, portIs(80), c.create)
	b := input.Add[port, uint16](in, port{}, portIn{80}, c.create)
	is.True(a != b)
}

func TestDataTypeMismatchPanics(t *testing.T) {
	in := input.NewInputs()
	c := &counter{b: boolean.NewBuilder()}
	input.Add[port, uint16](in, port{}, portIs(80), c.create)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	input.Add[port, string](in, port{}, prefix{"x"}, c.create)
}

func TestForEach(t *testing.T) {
	is := is.New(t)
	b := boolean.NewBuilder()
	in := input.NewInputs()

	is443 := input.Add[port, uint16](in, port{}, portIs(443), b.Variable)
	is80 := input.Add[port, uint16](in, port{}, portIs(80), b.Variable)
	ua := input.Add[header, string](in, header{"User-Agent"}, prefix{"curl/"}, b.Variable)
	accept := input.Add[header, string](in, header{"Accept"}, prefix{"text/"}, b.Variable)
	either := b.Or(is443.Expression(), ua.Expression())
	g := b.Build()

	e := g.Evaluator()
	u := input.NewUpdate(in, e)
	is.Equal(u.Evaluator(), e)

	// nothing known yet
	n := input.ForEach[port](u, func(port) uint16 { return 0 })
	is.Equal(n, 0)
	is.Equal(e.Get(is443.Expression()), boolean.Indefinite)

	calls := 0
	n = input.ForEach[port](u, func(port) uint16 {
		calls++
		return 443
	})
	is.Equal(calls, 1) // one distinct extractor, two matchers
	is.Equal(n, 2)
	is.Equal(e.Get(is443.Expression()), boolean.True)
	is.Equal(e.Get(is80.Expression()), boolean.False)
	is.Equal(e.Get(either), boolean.True)

	requested := []string{}
	input.ForEach[header](u, func(h header) string {
		requested = append(requested, h.Name)
		if h.Name == "User-Agent" {
			return "curl/8.4.0"
		}
		return "" // not seen yet
	})
	is.Equal(requested, []string{"User-Agent", "Accept"})
	is.Equal(e.Get(ua.Expression()), boolean.True)
	is.Equal(e.Get(accept.Expression()), boolean.Indefinite)

	// a kind nothing was registered for is a no-op
	type unused struct{ header }
	is.Equal(input.ForEach[unused](u, func(unused) int { return 1 }), 0)
}

func TestDescribe(t *testing.T) {
	is := is.New(t)
	is.Equal(input.Describe(header{"Host"}, prefix{"www."}), "header Host www.")
	is.Equal(input.Describe(port{}, portIs(1)), "port input_test.portIs")
}
