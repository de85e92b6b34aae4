package filter_test

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/ezachrisen/tripwire/input"
	"github.com/ezachrisen/tripwire/rule"
	"github.com/matryer/is"
)

type compiled struct {
	graph   *boolean.Graph
	backend *filter.Backend
}

func compileBlock(t *testing.T, config rule.Config, block rule.Block[filter.Filter, filter.Effect]) (compiled, error) {
	t.Helper()
	b, err := filter.NewBackend(boolean.NewBuilder(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c := rule.NewCompiler[filter.Filter, filter.Effect, filter.Scope](config, b)
	if err := c.CompileBlock(block, boolean.ExpressionID{}, nil); err != nil {
		return compiled{}, err
	}
	return compiled{graph: b.Build(), backend: b}, nil
}

func mustCompile(t *testing.T, block rule.Block[filter.Filter, filter.Effect]) compiled {
	t.Helper()
	c, err := compileBlock(t, rule.Config{}, block)
	if err != nil {
		t.Fatalf("compiling: %v", err)
	}
	return c
}

func when(effect filter.Effect, conditions ...rule.Condition[filter.Filter]) rule.Rule[filter.Filter, filter.Effect] {
	return rule.Rule[filter.Filter, filter.Effect]{
		If:   conditions,
		Then: rule.Block[filter.Filter, filter.Effect]{Effects: []filter.Effect{effect}},
	}
}

func feedDestination(u *input.Update, dst netip.AddrPort) {
	input.ForEach[filter.Destination](u, func(filter.Destination) netip.AddrPort { return dst })
}

func feedServerName(u *input.Update, name filter.TLSName) {
	input.ForEach[filter.ServerName](u, func(filter.ServerName) filter.TLSName { return name })
}

func TestPortAndServerName(t *testing.T) {
	is := is.New(t)

	block := rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{
			when(filter.Log(filter.LogUser, "", "example"),
				rule.Filter(filter.PortIs(443)),
				rule.Filter(filter.SniMatches("*.example.com"))),
		},
	}
	c := mustCompile(t, block)
	guards := c.backend.Guards()
	is.Equal(len(guards), 1)
	guard := guards[0].Condition

	e := c.graph.Evaluator()
	u := input.NewUpdate(c.backend.Inputs(), e)

	feedDestination(u, netip.MustParseAddrPort("192.0.2.10:443"))
	is.Equal(e.Get(guard), boolean.Indefinite)

	feedServerName(u, filter.TLSName{Name: "www.example.com"})
	is.Equal(e.Get(guard), boolean.True)
}

func TestShortCircuitOnFirstFact(t *testing.T) {
	is := is.New(t)

	block := rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{
			when(filter.Drop(), rule.Filter(filter.PortIs(443)), rule.Filter(filter.SniMatches("*.example.com"))),
		},
	}
	c := mustCompile(t, block)
	e := c.graph.Evaluator()
	u := input.NewUpdate(c.backend.Inputs(), e)

	feedDestination(u, netip.MustParseAddrPort("192.0.2.10:80"))
	is.Equal(e.Get(c.backend.Guards()[0].Condition), boolean.False)
}

func TestFiltersAreInternedAcrossRules(t *testing.T) {
	is := is.New(t)

	block := rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{
			when(filter.Drop(), rule.Filter(filter.PortIs(443, 8443))),
			when(filter.Log(filter.LogFile, "tls", ""), rule.Filter(filter.PortIs(8443)), rule.Filter(filter.SniMatches("*.example.com"))),
			when(filter.Interrupt("?"), rule.Filter(filter.SniMatches("*.EXAMPLE.com"))),
		},
	}
	c, err := compileBlock(t, rule.Config{UserInteraction: true}, block)
	is.NoErr(err)

	is.Equal(c.backend.Inputs().Len(), 3) // 443, 8443, *.example.com
	is.Equal(c.backend.Inputs().Kinds(), []string{"filter.Destination", "filter.ServerName"})

	// one extraction serves both port matchers
	calls := 0
	e := c.graph.Evaluator()
	u := input.NewUpdate(c.backend.Inputs(), e)
	input.ForEach[filter.Destination](u, func(filter.Destination) netip.AddrPort {
		calls++
		return netip.MustParseAddrPort("192.0.2.10:8443")
	})
	is.Equal(calls, 1)

	guards := c.backend.Guards()
	is.Equal(e.Get(guards[0].Condition), boolean.True)
	is.Equal(e.Get(guards[1].Condition), boolean.Indefinite)
}

func TestNestedElseStaysInsideParent(t *testing.T) {
	is := is.New(t)

	inner := rule.Rule[filter.Filter, filter.Effect]{
		If:   rule.Conditions[filter.Filter]{rule.Filter(filter.SniMatches("*.example.com"))},
		Else: rule.Block[filter.Filter, filter.Effect]{Effects: []filter.Effect{filter.Drop()}},
	}
	block := rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{{
			If:   rule.Conditions[filter.Filter]{rule.Filter(filter.PortIs(443))},
			Then: rule.Block[filter.Filter, filter.Effect]{Rules: []rule.Rule[filter.Filter, filter.Effect]{inner}},
		}},
	}
	c := mustCompile(t, block)
	drop := c.backend.Guards()[0]
	is.Equal(drop.Depth, 2)

	e := c.graph.Evaluator()
	u := input.NewUpdate(c.backend.Inputs(), e)
	feedDestination(u, netip.MustParseAddrPort("192.0.2.10:80"))
	is.Equal(e.Get(drop.Condition), boolean.False) // outside the parent rule

	e = c.graph.Evaluator()
	u = input.NewUpdate(c.backend.Inputs(), e)
	feedDestination(u, netip.MustParseAddrPort("192.0.2.10:443"))
	feedServerName(u, filter.TLSName{Name: "www.example.org"})
	is.Equal(e.Get(drop.Condition), boolean.True)
}

func TestRootEffectsAlwaysApply(t *testing.T) {
	is := is.New(t)

	c := mustCompile(t, rule.Block[filter.Filter, filter.Effect]{Effects: []filter.Effect{filter.Log(filter.LogFile, "", "")}})
	e := c.graph.Evaluator()
	is.Equal(e.Get(c.backend.Guards()[0].Condition), boolean.True)
}

func TestDirectionBothIsAlwaysTrue(t *testing.T) {
	is := is.New(t)

	c := mustCompile(t, rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{when(filter.Drop(), rule.Filter(filter.DirectionIs(filter.Both)))},
	})
	is.Equal(c.backend.Inputs().Len(), 0)
	is.Equal(c.graph.Evaluator().Get(c.backend.Guards()[0].Condition), boolean.True)
}

func TestPromptAndAttributes(t *testing.T) {
	is := is.New(t)

	block := rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{
			when(filter.Drop(), rule.Filter(filter.ExprIs(`port == 22`)), rule.Filter(filter.Ask("Allow ssh?"))),
		},
	}
	_, err := compileBlock(t, rule.Config{}, block)
	is.True(errors.Is(err, rule.ErrRequiresUserInteraction))

	c, err := compileBlock(t, rule.Config{UserInteraction: true}, block)
	is.NoErr(err)
	guard := c.backend.Guards()[0].Condition

	e := c.graph.Evaluator()
	u := input.NewUpdate(c.backend.Inputs(), e)
	input.ForEach[filter.Attributes](u, func(filter.Attributes) map[string]any {
		return map[string]any{filter.AttrPort: 22}
	})
	is.Equal(e.Get(guard), boolean.Indefinite)

	input.ForEach[filter.Prompt](u, func(p filter.Prompt) boolean.Maybe {
		is.Equal(p.Question, "Allow ssh?")
		return boolean.False
	})
	is.Equal(e.Get(guard), boolean.False)
}

func TestInterruptRequiresInteraction(t *testing.T) {
	is := is.New(t)

	_, err := compileBlock(t, rule.Config{}, rule.Block[filter.Filter, filter.Effect]{
		Effects: []filter.Effect{filter.Interrupt("")},
	})
	var uerr *rule.UserInteractionError
	is.True(errors.As(err, &uerr))
	is.Equal(uerr.Name, "interrupt effect")
}

func TestCompileErrors(t *testing.T) {
	is := is.New(t)

	_, err := compileBlock(t, rule.Config{}, rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{when(filter.Drop(), rule.Filter(filter.ExprIs(`port +`)))},
	})
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "compiling filter expr"))

	_, err = compileBlock(t, rule.Config{}, rule.Block[filter.Filter, filter.Effect]{
		Rules: []rule.Rule[filter.Filter, filter.Effect]{when(filter.Drop(), rule.Filter(filter.Filter{}))},
	})
	is.True(errors.Is(err, filter.ErrEmptyFilter))
}
