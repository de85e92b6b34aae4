package filter

import (
	"fmt"
	"net/http"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/ezachrisen/tripwire/boolean"
	"gopkg.in/yaml.v3"
)

// Match tests the direction of a flow. Both matches every direction; a flow
// whose direction is not known yet is undecided.
func (d Direction) Match(flow Direction) boolean.Maybe {
	if d == Both {
		return boolean.True
	}
	if flow == Both {
		return boolean.Indefinite
	}
	return boolean.Definite(d == flow)
}

// Ports is an inclusive range of destination ports. A single port has
// Lo == Hi.
type Ports struct {
	Lo, Hi uint16
}

// Port returns the range holding only p.
func Port(p uint16) Ports {
	return Ports{Lo: p, Hi: p}
}

// ParsePorts parses "443" or "8000-8999".
func ParsePorts(s string) (Ports, error) {
	lo, hi, isRange := strings.Cut(strings.TrimSpace(s), "-")
	l, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 16)
	if err != nil {
		return Ports{}, fmt.Errorf("invalid port %q", s)
	}
	p := Ports{Lo: uint16(l), Hi: uint16(l)}
	if isRange {
		h, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 16)
		if err != nil {
			return Ports{}, fmt.Errorf("invalid port range %q", s)
		}
		p.Hi = uint16(h)
	}
	if p.Lo == 0 || p.Lo > p.Hi {
		return Ports{}, fmt.Errorf("invalid port range %q", s)
	}
	return p, nil
}

func (p Ports) String() string {
	if p.Lo == p.Hi {
		return strconv.Itoa(int(p.Lo))
	}
	return fmt.Sprintf("%d-%d", p.Lo, p.Hi)
}

func (p Ports) Match(dst netip.AddrPort) boolean.Maybe {
	if !dst.IsValid() || dst.Port() == 0 {
		return boolean.Indefinite
	}
	return boolean.Definite(p.Lo <= dst.Port() && dst.Port() <= p.Hi)
}

func (p *Ports) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParsePorts(value.Value)
	if err != nil || value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: invalid port %q", value.Line, value.Value)
	}
	*p = parsed
	return nil
}

func (p Ports) MarshalYAML() (any, error) {
	return p.String(), nil
}

// Network matches destination addresses inside a prefix. IPv4 addresses
// mapped into IPv6 are unmapped before matching.
type Network struct {
	prefix netip.Prefix
}

// ParseNetwork parses a prefix in CIDR notation or a single address.
func ParseNetwork(s string) (Network, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Network{}, err
		}
		return Network{prefix: p.Masked()}, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Network{}, err
	}
	a = a.Unmap()
	return Network{prefix: netip.PrefixFrom(a, a.BitLen())}, nil
}

func (n Network) Prefix() netip.Prefix { return n.prefix }

func (n Network) Key() string { return n.prefix.String() }

func (n Network) String() string { return n.prefix.String() }

func (n Network) Match(dst netip.AddrPort) boolean.Maybe {
	if !dst.IsValid() {
		return boolean.Indefinite
	}
	return boolean.Definite(n.prefix.Contains(dst.Addr().Unmap()))
}

func (n *Network) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseNetwork(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid ip address %q: %w", value.Line, value.Value, err)
	}
	*n = parsed
	return nil
}

func (n Network) MarshalYAML() (any, error) {
	return n.String(), nil
}

// Pattern is a regular expression that must match the whole input.
type Pattern struct {
	source string
	re     *regexp.Regexp
	// folded ignores case, for host names
	folded *regexp.Regexp
}

func CompilePattern(source string) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + source + `)$`)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", source, err)
	}
	folded, err := regexp.Compile(`(?i)^(?:` + source + `)$`)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", source, err)
	}
	return Pattern{source: source, re: re, folded: folded}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(source string) Pattern {
	p, err := CompilePattern(source)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Key() string { return p.source }

func (p Pattern) String() string { return p.source }

// MatchString reports whether s matches. The zero Pattern matches nothing.
func (p Pattern) MatchString(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

// Match tests a host name, ignoring case and a trailing dot. An empty name
// is not known yet.
func (p Pattern) Match(host string) boolean.Maybe {
	if host == "" {
		return boolean.Indefinite
	}
	return boolean.Definite(p.folded != nil && p.folded.MatchString(strings.TrimSuffix(host, ".")))
}

func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := CompilePattern(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*p = parsed
	return nil
}

func (p Pattern) MarshalYAML() (any, error) {
	return p.source, nil
}

// MethodPattern matches the request method.
type MethodPattern struct{ Pattern }

func (m MethodPattern) Match(r *http.Request) boolean.Maybe {
	if r == nil || r.Method == "" {
		return boolean.Indefinite
	}
	return boolean.Definite(m.MatchString(r.Method))
}

// URLPattern matches the absolute request URL. For requests in origin form
// the scheme and host are taken from the request.
type URLPattern struct{ Pattern }

func (m URLPattern) Match(r *http.Request) boolean.Maybe {
	if r == nil || r.URL == nil {
		return boolean.Indefinite
	}
	return boolean.Definite(m.MatchString(RequestURL(r)))
}

// RequestURL returns the absolute URL of r.
func RequestURL(r *http.Request) string {
	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	return u.String()
}

// HeaderPattern matches when some header whose name matches Name has a
// value matching Value. Names are tried in canonical and lower case.
type HeaderPattern struct {
	Name  Pattern `yaml:"name"`
	Value Pattern `yaml:"value"`
}

func (h HeaderPattern) Key() string {
	return h.Name.Key() + "\x00" + h.Value.Key()
}

func (h HeaderPattern) String() string {
	return fmt.Sprintf("%s: %s", h.Name, h.Value)
}

func (h *HeaderPattern) UnmarshalYAML(value *yaml.Node) error {
	var plain struct {
		Name  *Pattern `yaml:"name"`
		Value *Pattern `yaml:"value"`
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: a header filter is {name: pattern, value: pattern}", value.Line)
	}
	if err := decodeStrict(value, &plain, "name", "value"); err != nil {
		return err
	}
	switch {
	case plain.Name == nil:
		return fmt.Errorf("line %d: header filter without name", value.Line)
	case plain.Value == nil:
		return fmt.Errorf("line %d: header filter without value", value.Line)
	}
	*h = HeaderPattern{Name: *plain.Name, Value: *plain.Value}
	return nil
}

func (h HeaderPattern) Match(r *http.Request) boolean.Maybe {
	if r == nil || r.Header == nil {
		return boolean.Indefinite
	}
	for name, values := range r.Header {
		if !h.Name.MatchString(name) && !h.Name.MatchString(strings.ToLower(name)) {
			continue
		}
		for _, v := range values {
			if h.Value.MatchString(v) {
				return boolean.True
			}
		}
	}
	return boolean.False
}
