package filter

import (
	"fmt"
	"strings"

	"github.com/ezachrisen/tripwire/boolean"
	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"
)

// Glob matches TLS server names. A "*" label matches exactly one label of
// the name, so "*.example.com" matches "www.example.com" but neither
// "example.com" nor "a.b.example.com". Labels compare in their ASCII
// (punycode) form, case-insensitively.
type Glob struct {
	source string
	labels []string
}

func CompileGlob(source string) (Glob, error) {
	s := strings.TrimSuffix(strings.TrimSpace(source), ".")
	if s == "" {
		return Glob{}, fmt.Errorf("empty server name pattern")
	}
	labels := strings.Split(s, ".")
	for i, l := range labels {
		if l == "*" {
			continue
		}
		a, err := idna.Lookup.ToASCII(l)
		if err != nil || a == "" {
			return Glob{}, fmt.Errorf("invalid server name pattern %q: label %q", source, l)
		}
		labels[i] = a
	}
	return Glob{source: source, labels: labels}, nil
}

func MustCompileGlob(source string) Glob {
	g, err := CompileGlob(source)
	if err != nil {
		panic(err)
	}
	return g
}

func (g Glob) Key() string { return strings.Join(g.labels, ".") }

func (g Glob) String() string { return g.source }

// Match tests a server name. A name that is not known yet is undecided. A
// partial name holds the trailing labels of the real name, the first of
// which may itself be cut short; it is rejected as soon as one of its
// complete labels contradicts the pattern, and is undecided otherwise.
func (g Glob) Match(n TLSName) boolean.Maybe {
	if n.Name == "" {
		return boolean.Indefinite
	}
	labels := normalizeName(n.Name)
	if !n.Partial {
		return boolean.Definite(g.matchLabels(labels))
	}

	complete := labels[1:]
	if len(complete) >= len(g.labels) {
		return boolean.False
	}
	offset := len(g.labels) - len(complete)
	for i, l := range complete {
		if p := g.labels[offset+i]; p != "*" && p != l {
			return boolean.False
		}
	}
	return boolean.Indefinite
}

func (g Glob) matchLabels(labels []string) bool {
	if len(labels) != len(g.labels) {
		return false
	}
	for i, p := range g.labels {
		if p != "*" && p != labels[i] {
			return false
		}
	}
	return true
}

func (g *Glob) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := CompileGlob(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*g = parsed
	return nil
}

func (g Glob) MarshalYAML() (any, error) {
	return g.source, nil
}

// normalizeName splits a server name into lower case ASCII labels. Labels
// that are not valid IDNA are kept lower cased as they are.
func normalizeName(name string) []string {
	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	for i, l := range labels {
		if a, err := idna.Lookup.ToASCII(l); err == nil {
			labels[i] = a
		} else {
			labels[i] = strings.ToLower(l)
		}
	}
	return labels
}
