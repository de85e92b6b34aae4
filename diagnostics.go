package tripwire

import (
	"fmt"
	"strings"

	"github.com/Delta456/box-cli-maker/v2"
	"github.com/alexeyco/simpletable"
	"github.com/dustin/go-humanize"
)

// Diagnostics renders the state of the flow: the facts fed so far, the
// attributes known to expressions and the verdict of every effect with its
// condition.
func (f *Flow) Diagnostics() string {
	Box := box.New(box.Config{Px: 2, Py: 1, Type: "Double", Color: "Cyan", TitlePos: "Top", ContentAlign: "Left"})

	s := strings.Builder{}
	g := f.ruleset.graph
	s.WriteString("Ruleset:\n")
	s.WriteString("--------\n")
	name := f.ruleset.Meta.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&s, "%s, generation %d, %s of %s expressions decided\n\n",
		name, g.Instance(), humanize.Comma(int64(f.eval.Definite())), humanize.Comma(int64(g.Len())))

	s.WriteString("Facts:\n")
	s.WriteString("------\n")
	s.WriteString(f.factTable().String())
	s.WriteString("\n\n")

	if len(f.attrs) > 0 {
		s.WriteString("Attributes:\n")
		s.WriteString("-----------\n")
		s.WriteString(f.attributeTable().String())
		s.WriteString("\n\n")
	}

	s.WriteString("Effects:\n")
	s.WriteString("--------\n")
	s.WriteString(f.verdictTable().String())
	return Box.String("TRIPWIRE FLOW DIAGNOSTIC REPORT", s.String())
}

func (f *Flow) factTable() *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "#"},
			{Align: simpletable.AlignCenter, Text: "Fact"},
			{Align: simpletable.AlignCenter, Text: "Value"},
			{Align: simpletable.AlignCenter, Text: "Decided"},
		},
	}
	for i, fact := range f.facts {
		r := []*simpletable.Cell{
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d", i)},
			{Text: fact.Kind},
			{Text: fact.Value},
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d", fact.Assigned)},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}
	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func (f *Flow) attributeTable() *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Name"},
			{Align: simpletable.AlignCenter, Text: "Value"},
		},
	}
	for _, k := range sortedKeys(f.attrs) {
		r := []*simpletable.Cell{
			{Text: k},
			{Text: fmt.Sprintf("%v", f.attrs[k])},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}
	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func (f *Flow) verdictTable() *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Effect"},
			{Align: simpletable.AlignCenter, Text: "Verdict"},
			{Align: simpletable.AlignCenter, Text: "Condition"},
		},
	}
	g := f.ruleset.graph
	for _, v := range f.Result().Verdicts {
		r := []*simpletable.Cell{
			{Text: v.Guard.Effect.String()},
			{Text: verdictString(v.Value)},
			{Text: wordWrap(g.Describe(v.Guard.Condition), 80)},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}
	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func wordWrap(text string, lineWidth int) string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return text
	}
	wrapped := words[0]
	spaceLeft := lineWidth - len(wrapped)
	for _, word := range words[1:] {
		if len(word)+1 > spaceLeft {
			wrapped += "\n" + word
			spaceLeft = lineWidth - len(word)
		} else {
			wrapped += " " + word
			spaceLeft -= 1 + len(word)
		}
	}
	return wrapped
}
