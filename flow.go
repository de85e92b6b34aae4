package tripwire

import (
	"fmt"
	"net/http"
	"net/netip"
	"sort"
	"strings"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/ezachrisen/tripwire/input"
)

// Flow evaluates the rules of one Ruleset against one network flow. Facts
// are fed with the Set methods in any order, as they become known; feeding
// the same fact again has no effect. A Flow is not safe for concurrent use.
type Flow struct {
	ruleset *Ruleset
	eval    *boolean.Evaluator
	update  *input.Update

	// attrs are the facts known so far, for CEL expressions
	attrs map[string]any
	facts []Fact
}

// Fact is one fact fed to a flow, for diagnostics.
type Fact struct {
	Kind     string
	Value    string
	Assigned int // variables the fact decided
}

func newFlow(rs *Ruleset) *Flow {
	e := rs.graph.Evaluator()
	return &Flow{
		ruleset: rs,
		eval:    e,
		update:  input.NewUpdate(rs.inputs, e),
		attrs:   map[string]any{},
	}
}

// Ruleset returns the ruleset the flow was created with.
func (f *Flow) Ruleset() *Ruleset { return f.ruleset }

// SetDirection records the direction of the traffic.
func (f *Flow) SetDirection(d filter.Direction) {
	n := input.ForEach[filter.FlowDirection](f.update, func(filter.FlowDirection) filter.Direction {
		return d
	})
	attrs := map[string]any{}
	if d != filter.Both {
		attrs[filter.AttrDirection] = d.String()
	}
	f.record("direction", d.String(), n, attrs)
}

// SetDestination records the address the client connects to.
func (f *Flow) SetDestination(dst netip.AddrPort) {
	n := input.ForEach[filter.Destination](f.update, func(filter.Destination) netip.AddrPort {
		return dst
	})
	attrs := map[string]any{}
	if dst.IsValid() {
		attrs[filter.AttrIP] = dst.Addr().Unmap().String()
		if dst.Port() != 0 {
			attrs[filter.AttrPort] = int64(dst.Port())
		}
	}
	f.record("destination", dst.String(), n, attrs)
}

// SetHostname records the host name the client asked the proxy for.
func (f *Flow) SetHostname(host string) {
	n := input.ForEach[filter.Hostname](f.update, func(filter.Hostname) string {
		return host
	})
	attrs := map[string]any{}
	if host != "" {
		attrs[filter.AttrHostname] = strings.ToLower(strings.TrimSuffix(host, "."))
	}
	f.record("hostname", host, n, attrs)
}

// SetServerName records the TLS server name. A partial name can be followed
// by the complete one.
func (f *Flow) SetServerName(name filter.TLSName) {
	n := input.ForEach[filter.ServerName](f.update, func(filter.ServerName) filter.TLSName {
		return name
	})
	attrs := map[string]any{}
	value := name.Name
	if name.Partial {
		value += " (partial)"
	} else if name.Name != "" {
		attrs[filter.AttrServerName] = strings.ToLower(strings.TrimSuffix(name.Name, "."))
	}
	f.record("server-name", value, n, attrs)
}

// SetRequest records the HTTP request line and headers. The body is not
// read.
func (f *Flow) SetRequest(r *http.Request) {
	n := input.ForEach[filter.HTTPRequest](f.update, func(filter.HTTPRequest) *http.Request {
		return r
	})
	if r == nil {
		f.record("request", "<nil>", n, nil)
		return
	}
	attrs := map[string]any{
		filter.AttrMethod:  r.Method,
		filter.AttrHeaders: flattenHeader(r.Header),
	}
	if r.URL != nil {
		attrs[filter.AttrPath] = r.URL.Path
		attrs[filter.AttrURL] = filter.RequestURL(r)
	}
	f.record("request", fmt.Sprintf("%s %s", r.Method, r.URL), n, attrs)
}

// Confirm asks answer for every prompt of the ruleset. Prompts answer
// leaves Indefinite can be asked again by a later call.
func (f *Flow) Confirm(answer func(question string) boolean.Maybe) {
	n := input.ForEach[filter.Prompt](f.update, func(p filter.Prompt) boolean.Maybe {
		return answer(p.Question)
	})
	f.record("prompt", "", n, nil)
}

// Value returns the current value of an expression of the flow's ruleset.
func (f *Flow) Value(x boolean.ExpressionID) boolean.Maybe {
	return f.eval.Get(x)
}

// Decided reports whether every effect of the ruleset is decided.
func (f *Flow) Decided() bool {
	for _, g := range f.ruleset.guards {
		if !f.eval.Get(g.Condition).IsDefinite() {
			return false
		}
	}
	return true
}

// Facts returns the facts fed so far, in order.
func (f *Flow) Facts() []Fact { return f.facts }

func (f *Flow) record(kind, value string, assigned int, attrs map[string]any) {
	if len(attrs) > 0 {
		for k, v := range attrs {
			f.attrs[k] = v
		}
		snapshot := make(map[string]any, len(f.attrs))
		for k, v := range f.attrs {
			snapshot[k] = v
		}
		assigned += input.ForEach[filter.Attributes](f.update, func(filter.Attributes) map[string]any {
			return snapshot
		})
	}
	f.facts = append(f.facts, Fact{Kind: kind, Value: value, Assigned: assigned})
}

// flattenHeader keys headers by lower case name and joins repeated values.
func flattenHeader(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for name, values := range h {
		m[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
