package boolean

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// String renders the node table of g.
func (g *Graph) String() string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("\nGENERATION %d (%s nodes)\n", g.instance, humanize.Comma(int64(len(g.nodes)))))
	tw.AppendHeader(table.Row{"Node", "Kind", "Inputs", "Label"})

	for i, n := range g.nodes {
		kind := n.kind.String()
		if n.kind == KindLiteral {
			kind = fmt.Sprintf("%t", n.value)
		}
		tw.AppendRow(table.Row{i, kind, joinIndexes(n.inputs), n.label})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: 40},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func joinIndexes(xs []uint32) string {
	s := make([]string, len(xs))
	for i, x := range xs {
		s[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(s, ", ")
}

// Describe renders the expression behind id as text. Variables show their
// label, or their node number when unlabelled. Nesting deeper than 8 levels
// is elided.
func (g *Graph) Describe(id ExpressionID) string {
	g.expect("describe", id)
	var sb strings.Builder
	g.describe(&sb, id.index, 0)
	return sb.String()
}

func (g *Graph) describe(sb *strings.Builder, index uint32, depth int) {
	n := g.nodes[index]
	if depth > 8 {
		sb.WriteString("…")
		return
	}
	switch n.kind {
	case KindLiteral:
		fmt.Fprintf(sb, "%t", n.value)
	case KindVariable:
		if n.label != "" {
			sb.WriteString(n.label)
		} else {
			fmt.Fprintf(sb, "v%d", index)
		}
	case KindNot:
		sb.WriteString("not ")
		g.describe(sb, n.inputs[0], depth+1)
	case KindAnd, KindOr:
		sep := " and "
		if n.kind == KindOr {
			sep = " or "
		}
		sb.WriteString("(")
		for i, in := range n.inputs {
			if i > 0 {
				sb.WriteString(sep)
			}
			g.describe(sb, in, depth+1)
		}
		sb.WriteString(")")
	}
}
