package rule

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File is a parsed rule file.
//
//	meta:
//	  name: block trackers
//	rules:
//	  - if:
//	      - port: [443]
//	      - or:
//	          - server-name: ["*.tracker.example"]
//	          - not:
//	              - direction: request
//	    then:
//	      effects: [drop]
//	    else:
//	      effects:
//	        - log: {message: allowed}
//	effects:
//	  - log: {target: file}
type File[F, E any] struct {
	Meta Metadata
	Block[F, E]
}

// Metadata describes a rule file. Keys the file sets that have no field
// here are kept in Other.
type Metadata struct {
	Author          string         `yaml:"author,omitempty"`
	Name            string         `yaml:"name,omitempty"`
	Description     string         `yaml:"description,omitempty"`
	Tags            []string       `yaml:"tags,omitempty"`
	UserInteraction bool           `yaml:"user_interaction,omitempty"`
	Version         string         `yaml:"version,omitempty"`
	Other           map[string]any `yaml:",inline"`
}

// Decode reads one rule file from r. An empty document is an empty file.
func Decode[F, E any](r io.Reader) (*File[F, E], error) {
	var f File[F, E]
	err := yaml.NewDecoder(r).Decode(&f)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	return &f, nil
}

// LoadFile reads the rule file at path.
func LoadFile[F, E any](path string) (*File[F, E], error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	defer fh.Close()
	f, err := Decode[F, E](bufio.NewReader(fh))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Encode writes f to w in the layout Decode reads.
func Encode[F, E any](w io.Writer, f *File[F, E]) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	return enc.Close()
}

// WriteFile writes f to path. The file is replaced in one step, so a
// watcher never sees it half written.
func WriteFile[F, E any](path string, f *File[F, E]) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := Encode(w, f); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}

// The encoded forms fix the key order and leave out empty parts.
type (
	encodedFile[F, E any] struct {
		Meta    *Metadata    `yaml:"meta,omitempty"`
		Rules   []Rule[F, E] `yaml:"rules,omitempty"`
		Effects []E          `yaml:"effects,omitempty"`
	}
	encodedBlock[F, E any] struct {
		Rules   []Rule[F, E] `yaml:"rules,omitempty"`
		Effects []E          `yaml:"effects,omitempty"`
	}
	encodedRule[F, E any] struct {
		If   Conditions[F] `yaml:"if,omitempty"`
		Then *Block[F, E]  `yaml:"then,omitempty"`
		Else *Block[F, E]  `yaml:"else,omitempty"`
	}
)

func (m Metadata) isZero() bool {
	return m.Author == "" && m.Name == "" && m.Description == "" && len(m.Tags) == 0 &&
		!m.UserInteraction && m.Version == "" && len(m.Other) == 0
}

func (f File[F, E]) MarshalYAML() (any, error) {
	out := encodedFile[F, E]{Rules: f.Rules, Effects: f.Effects}
	if !f.Meta.isZero() {
		out.Meta = &f.Meta
	}
	return out, nil
}

func (b Block[F, E]) MarshalYAML() (any, error) {
	return encodedBlock[F, E]{Rules: b.Rules, Effects: b.Effects}, nil
}

func (r Rule[F, E]) MarshalYAML() (any, error) {
	out := encodedRule[F, E]{If: r.If}
	if !r.Then.IsEmpty() {
		out.Then = &r.Then
	}
	if !r.Else.IsEmpty() {
		out.Else = &r.Else
	}
	return out, nil
}

// MarshalYAML writes a terminal condition as its filter and the others as
// a single-key mapping.
func (c Condition[F]) MarshalYAML() (any, error) {
	if c.Op == OpTerminal {
		return c.Filter, nil
	}
	return map[string]Conditions[F]{c.Op.String(): c.Sub}, nil
}

func (f *File[F, E]) UnmarshalYAML(value *yaml.Node) error {
	fields, err := mapping(value, "rule file", "meta", "rules", "effects")
	if err != nil {
		return err
	}
	if n, ok := fields["meta"]; ok {
		if err := n.Decode(&f.Meta); err != nil {
			return err
		}
	}
	return f.Block.decode(fields)
}

func (b *Block[F, E]) UnmarshalYAML(value *yaml.Node) error {
	fields, err := mapping(value, "block", "rules", "effects")
	if err != nil {
		return err
	}
	return b.decode(fields)
}

func (b *Block[F, E]) decode(fields map[string]*yaml.Node) error {
	if n, ok := fields["rules"]; ok {
		if err := n.Decode(&b.Rules); err != nil {
			return err
		}
	}
	if n, ok := fields["effects"]; ok {
		if err := n.Decode(&b.Effects); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rule[F, E]) UnmarshalYAML(value *yaml.Node) error {
	fields, err := mapping(value, "rule", "if", "then", "else")
	if err != nil {
		return err
	}
	if n, ok := fields["if"]; ok {
		if err := n.Decode(&r.If); err != nil {
			return err
		}
	}
	if n, ok := fields["then"]; ok {
		if err := n.Decode(&r.Then); err != nil {
			return err
		}
	}
	if n, ok := fields["else"]; ok {
		if err := n.Decode(&r.Else); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalYAML accepts a list of conditions or a single one.
func (cs *Conditions[F]) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var list []Condition[F]
		if err := value.Decode(&list); err != nil {
			return err
		}
		*cs = list
		return nil
	}
	var c Condition[F]
	if err := value.Decode(&c); err != nil {
		return err
	}
	*cs = Conditions[F]{c}
	return nil
}

// UnmarshalYAML decodes a mapping with the single key not, and or or as a
// sub-condition, and anything else as a terminal filter.
func (c *Condition[F]) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode && len(value.Content) == 2 {
		var op Op
		switch value.Content[0].Value {
		case "not":
			op = OpNot
		case "and":
			op = OpAnd
		case "or":
			op = OpOr
		}
		if op != OpTerminal {
			var sub Conditions[F]
			if err := value.Content[1].Decode(&sub); err != nil {
				return err
			}
			*c = Condition[F]{Op: op, Sub: sub}
			return nil
		}
	}
	var f F
	if err := value.Decode(&f); err != nil {
		return err
	}
	*c = Filter(f)
	return nil
}

// mapping returns the values of a mapping node by key, rejecting keys not in
// allowed.
func mapping(value *yaml.Node, what string, allowed ...string) (map[string]*yaml.Node, error) {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return map[string]*yaml.Node{}, nil
	}
	if value.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %s must be a mapping", value.Line, what)
	}
	fields := make(map[string]*yaml.Node, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		known := false
		for _, a := range allowed {
			if key.Value == a {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("line %d: unknown %s key %q", key.Line, what, key.Value)
		}
		if _, dup := fields[key.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate %s key %q", key.Line, what, key.Value)
		}
		fields[key.Value] = value.Content[i+1]
	}
	return fields, nil
}
