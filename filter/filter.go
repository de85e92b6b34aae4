// Package filter is the default catalog of filters and effects for rule
// files, and the Backend that compiles them into an expression graph.
//
// Filters are written as single-key mappings:
//
//	- direction: request
//	- port: [443, "8000-8999"]
//	- ip-address: ["10.0.0.0/8", "::1"]
//	- hostname: ['.*\.example\.com']
//	- server-name: ["*.example.com"]
//	- method: [POST, PUT]
//	- url: ['https://api\.example\.com/v1/.*']
//	- header: {name: user-agent, value: 'curl/.*'}
//	- expr: 'method == "POST" && port == 443'
//	- prompt: "Allow this upload?"
//
// A filter with a list holds when any element matches. Every element is
// interned as its own variable, so an element shared between rules is
// evaluated once per flow.
//
// Effects are "drop", log and interrupt:
//
//	- drop
//	- log: {target: file, name: uploads, message: upload seen}
//	- interrupt: {prompt: "Inspect this request?"}
package filter

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter is one terminal condition. Exactly one field is set.
type Filter struct {
	Direction  *Direction     `yaml:"direction,omitempty"`
	Port       []Ports        `yaml:"port,omitempty"`
	IPAddress  []Network      `yaml:"ip-address,omitempty"`
	Hostname   []Pattern      `yaml:"hostname,omitempty"`
	ServerName []Glob         `yaml:"server-name,omitempty"`
	Method     []Pattern      `yaml:"method,omitempty"`
	URL        []Pattern      `yaml:"url,omitempty"`
	Header     *HeaderPattern `yaml:"header,omitempty"`
	Expr       string         `yaml:"expr,omitempty"`
	Prompt     string         `yaml:"prompt,omitempty"`
}

// DirectionIs returns a direction filter.
func DirectionIs(d Direction) Filter {
	return Filter{Direction: &d}
}

// PortIs returns a filter matching any of the destination ports.
func PortIs(ports ...uint16) Filter {
	f := Filter{}
	for _, p := range ports {
		f.Port = append(f.Port, Port(p))
	}
	return f
}

// PortIn returns a filter matching any of the port ranges.
func PortIn(ranges ...Ports) Filter {
	return Filter{Port: ranges}
}

// IPIn returns a filter matching destinations inside any of the networks.
func IPIn(networks ...Network) Filter {
	return Filter{IPAddress: networks}
}

// HostnameMatches returns a filter matching requested host names. It panics
// if a pattern does not compile.
func HostnameMatches(patterns ...string) Filter {
	f := Filter{}
	for _, p := range patterns {
		f.Hostname = append(f.Hostname, MustCompilePattern(p))
	}
	return f
}

// SniMatches returns a filter matching TLS server names against globs. It
// panics if a glob does not compile.
func SniMatches(globs ...string) Filter {
	f := Filter{}
	for _, g := range globs {
		f.ServerName = append(f.ServerName, MustCompileGlob(g))
	}
	return f
}

// MethodMatches returns a filter matching HTTP request methods.
func MethodMatches(patterns ...string) Filter {
	f := Filter{}
	for _, p := range patterns {
		f.Method = append(f.Method, MustCompilePattern(p))
	}
	return f
}

// URLMatches returns a filter matching absolute request URLs.
func URLMatches(patterns ...string) Filter {
	f := Filter{}
	for _, p := range patterns {
		f.URL = append(f.URL, MustCompilePattern(p))
	}
	return f
}

// HeaderMatches returns a filter matching a request header.
func HeaderMatches(name, value string) Filter {
	return Filter{Header: &HeaderPattern{Name: MustCompilePattern(name), Value: MustCompilePattern(value)}}
}

// ExprIs returns a CEL expression filter.
func ExprIs(source string) Filter {
	return Filter{Expr: source}
}

// Ask returns a filter that holds when the user confirms question.
func Ask(question string) Filter {
	return Filter{Prompt: question}
}

var filterKeys = []string{
	"direction", "port", "ip-address", "hostname", "server-name",
	"method", "url", "header", "expr", "prompt",
}

// Kind returns the key the filter is written with.
func (f Filter) Kind() string {
	switch {
	case f.Direction != nil:
		return "direction"
	case f.Port != nil:
		return "port"
	case f.IPAddress != nil:
		return "ip-address"
	case f.Hostname != nil:
		return "hostname"
	case f.ServerName != nil:
		return "server-name"
	case f.Method != nil:
		return "method"
	case f.URL != nil:
		return "url"
	case f.Header != nil:
		return "header"
	case f.Expr != "":
		return "expr"
	case f.Prompt != "":
		return "prompt"
	}
	return ""
}

func (f Filter) String() string {
	switch f.Kind() {
	case "direction":
		return "direction " + f.Direction.String()
	case "port":
		return "port " + joinValues(f.Port)
	case "ip-address":
		return "ip-address " + joinValues(f.IPAddress)
	case "hostname":
		return "hostname " + joinValues(f.Hostname)
	case "server-name":
		return "server-name " + joinValues(f.ServerName)
	case "method":
		return "method " + joinValues(f.Method)
	case "url":
		return "url " + joinValues(f.URL)
	case "header":
		return "header " + f.Header.String()
	case "expr":
		return fmt.Sprintf("expr %q", f.Expr)
	case "prompt":
		return fmt.Sprintf("prompt %q", f.Prompt)
	}
	return "empty filter"
}

func joinValues[T fmt.Stringer](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// RequiresUserInteraction reports prompt filters.
func (f Filter) RequiresUserInteraction() (string, bool) {
	return f.String(), f.Prompt != ""
}

// MarshalYAML writes the filter as a mapping with its one key.
func (f Filter) MarshalYAML() (any, error) {
	if f.Kind() == "" {
		return nil, ErrEmptyFilter
	}
	type plain Filter
	return plain(f), nil
}

func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: a filter is a mapping with one of the keys %s", value.Line, strings.Join(filterKeys, ", "))
	}
	key := value.Content[0].Value
	i := sort.SearchStrings(sortedFilterKeys, key)
	if i == len(sortedFilterKeys) || sortedFilterKeys[i] != key {
		return fmt.Errorf("line %d: unknown filter %q", value.Content[0].Line, key)
	}

	// a list filter also accepts a single element
	list := value
	if v := value.Content[1]; v.Kind == yaml.ScalarNode && isListFilter(key) {
		list = &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				value.Content[0],
				{Kind: yaml.SequenceNode, Line: v.Line, Column: v.Column, Content: []*yaml.Node{v}},
			},
		}
	}

	type plain Filter
	var p plain
	if err := list.Decode(&p); err != nil {
		return err
	}
	*f = Filter(p)
	if f.Kind() != key {
		return fmt.Errorf("line %d: empty %s filter", value.Line, key)
	}
	return nil
}

var sortedFilterKeys = func() []string {
	keys := append([]string(nil), filterKeys...)
	sort.Strings(keys)
	return keys
}()

func isListFilter(key string) bool {
	switch key {
	case "port", "ip-address", "hostname", "server-name", "method", "url":
		return true
	}
	return false
}
