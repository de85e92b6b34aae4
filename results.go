package tripwire

import (
	"fmt"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Verdict is the current state of one effect for a flow.
type Verdict struct {
	Guard filter.Guard

	// True once the effect applies, False once it can no longer apply.
	Value boolean.Maybe
}

// Result is a snapshot of the verdicts of a flow, in rule file order.
type Result struct {
	Verdicts []Verdict
}

// Result returns the current verdict of every effect of the flow's ruleset.
func (f *Flow) Result() *Result {
	r := &Result{Verdicts: make([]Verdict, len(f.ruleset.guards))}
	for i, g := range f.ruleset.guards {
		r.Verdicts[i] = Verdict{Guard: g, Value: f.eval.Get(g.Condition)}
	}
	return r
}

// Fired returns the effects that apply.
func (r *Result) Fired() []filter.Effect {
	var effects []filter.Effect
	for _, v := range r.Verdicts {
		if v.Value.Is(true) {
			effects = append(effects, v.Guard.Effect)
		}
	}
	return effects
}

// Pending returns the number of effects still undecided.
func (r *Result) Pending() int {
	n := 0
	for _, v := range r.Verdicts {
		if !v.Value.IsDefinite() {
			n++
		}
	}
	return n
}

// Decided reports whether no effect is pending.
func (r *Result) Decided() bool {
	return r.Pending() == 0
}

// Drop reports whether a drop effect applies.
func (r *Result) Drop() bool {
	for _, e := range r.Fired() {
		if e.Drop {
			return true
		}
	}
	return false
}

// String produces a table of the effects and their verdicts.
func (r *Result) String() string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("\nTRIPWIRE RESULT (%d fired, %d pending)\n", len(r.Fired()), r.Pending()))
	tw.AppendHeader(table.Row{"#", "Effect", "Depth", "Verdict"})
	for i, v := range r.Verdicts {
		tw.AppendRow(table.Row{i, v.Guard.Effect, v.Guard.Depth, verdictString(v.Value)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func verdictString(m boolean.Maybe) string {
	switch m {
	case boolean.True:
		return "FIRED"
	case boolean.False:
		return "NO"
	default:
		return "PENDING"
	}
}
