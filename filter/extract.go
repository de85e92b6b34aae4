package filter

import (
	"fmt"
	"strings"

	"github.com/ezachrisen/tripwire/boolean"
	"gopkg.in/yaml.v3"
)

// Extractor kinds. Each names one fact about a flow; the comment gives the
// data a flow supplies for it.

// FlowDirection is the direction of the traffic being inspected. Data: Direction.
type FlowDirection struct{}

func (FlowDirection) String() string { return "direction" }

// Destination is the address the client connects to. Data: netip.AddrPort.
type Destination struct{}

func (Destination) String() string { return "destination" }

// Hostname is the host name the client asked for before it was resolved,
// from a proxy CONNECT or SOCKS request. Data: string.
type Hostname struct{}

func (Hostname) String() string { return "hostname" }

// ServerName is the server name the client sent in its TLS hello. Data: TLSName.
type ServerName struct{}

func (ServerName) String() string { return "server-name" }

// HTTPRequest is the HTTP request line and headers. Data: *http.Request.
type HTTPRequest struct{}

func (HTTPRequest) String() string { return "http" }

// Attributes are the facts known about a flow so far, by name, for CEL
// expressions. Data: map[string]any.
type Attributes struct{}

func (Attributes) String() string { return "attributes" }

// Prompt is the user's answer to Question. Data: boolean.Maybe, Indefinite
// until the user answered.
type Prompt struct {
	Question string
}

func (p Prompt) String() string { return fmt.Sprintf("prompt %q", p.Question) }

// Direction of traffic through the proxy.
type Direction uint8

const (
	// Both is the zero value: as a filter it matches every flow, as data it
	// means the direction is not known.
	Both Direction = iota
	Request
	Response
)

func (d Direction) String() string {
	switch d {
	case Request:
		return "request"
	case Response:
		return "response"
	}
	return "both"
}

func (d *Direction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "request":
		*d = Request
	case "response":
		*d = Response
	case "both":
		*d = Both
	default:
		return fmt.Errorf("line %d: invalid direction %q", value.Line, s)
	}
	return nil
}

func (d Direction) MarshalYAML() (any, error) {
	return d.String(), nil
}

// TLSName is a server name read from a TLS client hello. Partial is set when
// only the trailing part of the name is known, for example because the hello
// was split across reads.
type TLSName struct {
	Name    string
	Partial bool
}

// Answer passes the user's answer through.
type Answer struct{}

func (Answer) Match(answer boolean.Maybe) boolean.Maybe {
	return answer
}

func (Answer) String() string { return "answer" }
