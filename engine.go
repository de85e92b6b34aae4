package tripwire

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/ezachrisen/tripwire/filter"
	"github.com/ezachrisen/tripwire/rule"
	"github.com/google/cel-go/cel"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// Engine compiles rule files and hands out flows bound to the current
// Ruleset. An Engine is safe for concurrent use.
type Engine struct {
	// mu serializes compilations so generations are published in order
	mu sync.Mutex

	handle  *boolean.Handle
	current atomic.Pointer[Ruleset]

	opts    EngineOptions
	log     *logrus.Entry
	metrics *engineMetrics
}

// NewEngine returns an engine holding an empty Ruleset: no effects ever fire
// until rules are compiled.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{handle: boolean.NewHandle()}
	applyEngineOptions(&e.opts, opts...)

	e.log = e.opts.Logger
	if e.log == nil {
		e.log = logrus.NewEntry(logrus.StandardLogger())
	}
	e.metrics = newEngineMetrics(e.opts.Registry)

	e.current.Store(newRuleset(e.handle.Load(), nil))
	return e
}

// Ruleset returns the current Ruleset.
func (e *Engine) Ruleset() *Ruleset {
	return e.current.Load()
}

// Compile compiles f and publishes the result as the current Ruleset. If
// compilation fails, the current Ruleset stays in force and the error is
// returned. A filter or effect that needs the user fails with an error
// matching rule.ErrRequiresUserInteraction unless the engine was created
// with UserInteraction(true).
func (e *Engine) Compile(f *filter.File) (*Ruleset, error) {
	return e.compile(f, "")
}

func (e *Engine) compile(f *filter.File, path string) (*Ruleset, error) {
	if f == nil {
		return nil, fmt.Errorf("attempt to compile nil rule file")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	var backend *filter.Backend
	g, err := e.handle.Modify(func(b *boolean.Builder) error {
		var err error
		backend, err = filter.NewBackend(b, e.opts.Env)
		if err != nil {
			return err
		}
		c := rule.NewCompiler[filter.Filter, filter.Effect, filter.Scope](
			rule.Config{UserInteraction: e.opts.UserInteraction}, backend)
		return c.CompileBlock(f.Block, boolean.ExpressionID{}, nil)
	})
	if err != nil {
		e.metrics.compileFailures.Inc(1)
		e.log.WithError(err).WithField("rules", f.Meta.Name).Error("rules rejected, keeping current rules")
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	rs := newRuleset(g, f)
	rs.path = path
	rs.inputs = backend.Inputs()
	rs.guards = backend.Guards()
	e.current.Store(rs)

	e.metrics.compiles.UpdateSince(start)
	e.metrics.nodes.Update(int64(g.Len()))
	e.metrics.inputs.Update(int64(rs.inputs.Len()))
	e.log.WithFields(logrus.Fields{
		"rules":      f.Meta.Name,
		"generation": g.Instance(),
		"nodes":      g.Len(),
		"inputs":     rs.inputs.Len(),
		"effects":    len(rs.guards),
		"took":       time.Since(start),
	}).Info("rules compiled")
	if f.Meta.UserInteraction && !e.opts.UserInteraction {
		e.log.WithField("rules", f.Meta.Name).Warn("rule file expects user interaction, which is disabled")
	}
	return rs, nil
}

// LoadFile decodes and compiles the rule file at path.
func (e *Engine) LoadFile(path string) (*Ruleset, error) {
	f, err := rule.LoadFile[filter.Filter, filter.Effect](path)
	if err != nil {
		e.metrics.compileFailures.Inc(1)
		e.log.WithError(err).WithField("path", path).Error("rules rejected, keeping current rules")
		return nil, err
	}
	rs, err := e.compile(f, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// NewFlow starts the evaluation of one flow against the current Ruleset.
func (e *Engine) NewFlow() *Flow {
	e.metrics.flows.Inc(1)
	return newFlow(e.current.Load())
}

// EngineOptions are set with EngineOption functions passed to NewEngine.
type EngineOptions struct {
	// Allow filters and effects that ask the user.
	UserInteraction bool

	// Logger receives compile and reload events. Defaults to the logrus
	// standard logger.
	Logger *logrus.Entry

	// Registry receives the engine metrics. Defaults to a private registry.
	Registry metrics.Registry

	// Env checks CEL expressions. Defaults to filter.NewEnv.
	Env *cel.Env

	// Debounce is how long Watch waits for a rule file to settle after a
	// change. Defaults to 100ms.
	Debounce time.Duration
}

// EngineOption is a functional option for NewEngine.
type EngineOption func(f *EngineOptions)

// Given an array of EngineOption functions, apply their effect
// on the EngineOptions struct.
func applyEngineOptions(o *EngineOptions, opts ...EngineOption) {
	o.Debounce = 100 * time.Millisecond
	for _, opt := range opts {
		opt(o)
	}
}

// UserInteraction allows rules that prompt the user.
func UserInteraction(b bool) EngineOption {
	return func(f *EngineOptions) {
		f.UserInteraction = b
	}
}

// Logger sets the log destination.
func Logger(l *logrus.Entry) EngineOption {
	return func(f *EngineOptions) {
		f.Logger = l
	}
}

// Registry sets the metrics registry.
func Registry(r metrics.Registry) EngineOption {
	return func(f *EngineOptions) {
		f.Registry = r
	}
}

// Env sets the CEL environment for expr filters.
func Env(env *cel.Env) EngineOption {
	return func(f *EngineOptions) {
		f.Env = env
	}
}

// Debounce sets how long Watch waits before reloading a changed file.
func Debounce(d time.Duration) EngineOption {
	return func(f *EngineOptions) {
		f.Debounce = d
	}
}
