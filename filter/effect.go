package filter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogTarget selects where a log effect writes.
type LogTarget uint8

const (
	// LogUser shows the entry to the user.
	LogUser LogTarget = iota
	// LogFile appends the entry to the flow log.
	LogFile
)

func (t LogTarget) String() string {
	if t == LogFile {
		return "file"
	}
	return "user"
}

func (t *LogTarget) UnmarshalYAML(value *yaml.Node) error {
	switch value.Value {
	case "user":
		*t = LogUser
	case "file":
		*t = LogFile
	default:
		return fmt.Errorf("line %d: invalid log target %q", value.Line, value.Value)
	}
	return nil
}

func (t LogTarget) MarshalYAML() (any, error) {
	return t.String(), nil
}

// LogEffect records the flow.
type LogEffect struct {
	Target  LogTarget `yaml:"target,omitempty"`
	Name    string    `yaml:"name,omitempty"`
	Message string    `yaml:"message,omitempty"`
}

// InterruptEffect holds the flow until the user lets it continue.
type InterruptEffect struct {
	Prompt string `yaml:"prompt,omitempty"`
}

// Effect is what happens to a flow when the block holding it is reached.
// Exactly one of Log, Interrupt and Drop is set.
type Effect struct {
	Log       *LogEffect
	Interrupt *InterruptEffect
	Drop      bool
}

func Log(target LogTarget, name, message string) Effect {
	return Effect{Log: &LogEffect{Target: target, Name: name, Message: message}}
}

func Interrupt(prompt string) Effect {
	return Effect{Interrupt: &InterruptEffect{Prompt: prompt}}
}

func Drop() Effect {
	return Effect{Drop: true}
}

// Kind returns the key the effect is written with.
func (e Effect) Kind() string {
	switch {
	case e.Log != nil:
		return "log"
	case e.Interrupt != nil:
		return "interrupt"
	case e.Drop:
		return "drop"
	}
	return ""
}

func (e Effect) String() string {
	switch e.Kind() {
	case "log":
		var sb strings.Builder
		sb.WriteString("log ")
		sb.WriteString(e.Log.Target.String())
		if e.Log.Name != "" {
			sb.WriteString(" ")
			sb.WriteString(e.Log.Name)
		}
		if e.Log.Message != "" {
			fmt.Fprintf(&sb, " %q", e.Log.Message)
		}
		return sb.String()
	case "interrupt":
		if e.Interrupt.Prompt != "" {
			return fmt.Sprintf("interrupt %q", e.Interrupt.Prompt)
		}
		return "interrupt"
	case "drop":
		return "drop"
	}
	return "no effect"
}

// RequiresUserInteraction reports interrupts.
func (e Effect) RequiresUserInteraction() (string, bool) {
	return "interrupt effect", e.Interrupt != nil
}

// MarshalYAML writes drop as a scalar and the other effects as a mapping
// with one key.
func (e Effect) MarshalYAML() (any, error) {
	switch e.Kind() {
	case "log":
		return map[string]*LogEffect{"log": e.Log}, nil
	case "interrupt":
		return map[string]*InterruptEffect{"interrupt": e.Interrupt}, nil
	case "drop":
		return "drop", nil
	}
	return nil, fmt.Errorf("empty effect")
}

func (e *Effect) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		switch value.Value {
		case "drop":
			*e = Drop()
		case "log":
			*e = Effect{Log: &LogEffect{}}
		case "interrupt":
			*e = Effect{Interrupt: &InterruptEffect{}}
		default:
			return fmt.Errorf("line %d: unknown effect %q", value.Line, value.Value)
		}
		return nil
	}
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: an effect is drop, log or interrupt", value.Line)
	}
	key, body := value.Content[0], value.Content[1]
	switch key.Value {
	case "log":
		var l LogEffect
		if err := decodeStrict(body, &l, "target", "name", "message"); err != nil {
			return err
		}
		*e = Effect{Log: &l}
	case "interrupt":
		var i InterruptEffect
		if err := decodeStrict(body, &i, "prompt"); err != nil {
			return err
		}
		*e = Effect{Interrupt: &i}
	case "drop":
		*e = Drop()
	default:
		return fmt.Errorf("line %d: unknown effect %q", key.Line, key.Value)
	}
	return nil
}

// decodeStrict decodes a mapping into v, rejecting keys not in allowed.
// A null body leaves v unchanged.
func decodeStrict(body *yaml.Node, v any, allowed ...string) error {
	if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
		return nil
	}
	if body.Kind == yaml.MappingNode {
	next:
		for i := 0; i < len(body.Content); i += 2 {
			k := body.Content[i]
			for _, a := range allowed {
				if k.Value == a {
					continue next
				}
			}
			return fmt.Errorf("line %d: unknown key %q", k.Line, k.Value)
		}
	}
	return body.Decode(v)
}
