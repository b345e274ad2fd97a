// Package agentrun provides a high-level façade over the run engine for
// executing a single agent request end to end: input guardrails, handoff
// routing, backend completion, tool dispatch and output guardrails. Most
// applications interact with this package by:
//  1. Creating a Runtime via New() with a backend registry or a fixed backend
//  2. Declaring agents with agent.New (tools, guardrails, handoffs, settings)
//  3. Executing requests with Run (buffered) or RunStream (incremental)
//
// The façade delegates orchestration to engine.Run while keeping setup
// concise. Defaults are safe for local development; production deployments
// typically supply a frozen registry and a structured logger.
package agentrun

import (
	"context"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/engine"
	"github.com/hupe1980/agentrun/logging"
)

// Options configure the Runtime.
type Options struct {
	// Registry resolves named backends referenced by agent settings. A nil
	// registry is valid when Backend is set.
	Registry *backend.Registry

	// Backend, when set, handles every completion and the registry is
	// bypassed.
	Backend backend.Backend

	// Logger receives structured run events. Defaults to NoOpLogger.
	Logger logging.Logger

	// MaxHandoffDepth bounds handoff delegation chains. Zero selects
	// engine.DefaultMaxHandoffDepth.
	MaxHandoffDepth int
}

// Runtime carries the shared execution dependencies applied to every run.
type Runtime struct {
	opts Options
}

// New creates a Runtime with optional overrides.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runtime{opts: opts}
}

// Registry returns the runtime's backend registry, which may be nil.
func (rt *Runtime) Registry() *backend.Registry { return rt.opts.Registry }

// Run executes one buffered request against the given agent and returns the
// aggregated result. Each call creates a fresh single-use engine.Run.
func Run[C any](ctx context.Context, rt *Runtime, def *agent.Definition[C], input string, rc C) (*engine.Result, error) {
	return newRun(rt, def, input, rc).Execute(ctx)
}

// RunStream executes one request against the given agent, delivering content
// fragments to sink as they arrive. The returned result is identical to what
// Run would produce for the same request.
func RunStream[C any](ctx context.Context, rt *Runtime, def *agent.Definition[C], input string, rc C, sink engine.Sink) (*engine.Result, error) {
	return newRun(rt, def, input, rc).ExecuteStream(ctx, sink)
}

func newRun[C any](rt *Runtime, def *agent.Definition[C], input string, rc C) *engine.Run[C] {
	return engine.New(def, input, rc, func(o *engine.Options) {
		o.Registry = rt.opts.Registry
		o.Backend = rt.opts.Backend
		o.Logger = rt.opts.Logger
		o.MaxHandoffDepth = rt.opts.MaxHandoffDepth
	})
}
