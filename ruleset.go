package tripwire

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/ezachrisen/tripwire/input"
	"github.com/ezachrisen/tripwire/rule"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Ruleset is one compiled rule file: a graph generation, the inputs feeding
// its variables and the effects guarded by its expressions. A Ruleset is
// immutable and may be shared by any number of flows.
type Ruleset struct {
	Meta rule.Metadata

	graph    *boolean.Graph
	inputs   *input.Inputs
	guards   []filter.Guard
	block    rule.Block[filter.Filter, filter.Effect]
	path     string
	compiled time.Time
}

func newRuleset(g *boolean.Graph, f *filter.File) *Ruleset {
	rs := &Ruleset{
		graph:    g,
		inputs:   input.NewInputs(),
		compiled: time.Now(),
	}
	if f != nil {
		rs.Meta = f.Meta
		rs.block = f.Block
	}
	return rs
}

// Graph returns the graph generation of the ruleset.
func (rs *Ruleset) Graph() *boolean.Graph { return rs.graph }

// Inputs returns the interned inputs of the ruleset.
func (rs *Ruleset) Inputs() *input.Inputs { return rs.inputs }

// Guards returns the effects of the ruleset in rule file order.
func (rs *Ruleset) Guards() []filter.Guard { return rs.guards }

// Path is the file the ruleset was loaded from, if any.
func (rs *Ruleset) Path() string { return rs.path }

// Compiled is when the ruleset was compiled.
func (rs *Ruleset) Compiled() time.Time { return rs.compiled }

// Tree renders the rule hierarchy.
func (rs *Ruleset) Tree() string { return rs.block.Tree() }

// String lists the effects of the ruleset and their conditions.
func (rs *Ruleset) String() string {
	name := rs.Meta.Name
	if name == "" {
		name = "(unnamed)"
	}
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("\nRULESET %s\n%s nodes, %s inputs, %s effects, generation %d\n",
		name,
		humanize.Comma(int64(rs.graph.Len())),
		humanize.Comma(int64(rs.inputs.Len())),
		humanize.Comma(int64(len(rs.guards))),
		rs.graph.Instance()))
	tw.AppendHeader(table.Row{"#", "Effect", "Depth", "Condition"})

	maxWidthOfConditionColumn := 60
	maxConditionLength := 0
	for i, g := range rs.guards {
		cond := rs.graph.Describe(g.Condition)
		if len(cond) > maxConditionLength {
			maxConditionLength = len(cond)
		}
		tw.AppendRow(table.Row{i, g.Effect, g.Depth, cond})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: maxWidthOfConditionColumn},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	// Only add the row separator if a condition is wide enough to wrap.
	if maxConditionLength > maxWidthOfConditionColumn {
		style.Options.SeparateRows = true
	}
	tw.SetStyle(style)
	return tw.Render()
}
