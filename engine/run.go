// Package engine implements the orchestration core: a Run consumes exactly
// one user request and coordinates guardrail validation, handoff routing,
// the backend call/response cycle, tool dispatch and result assembly.
// Buffered and streaming execution share one state machine; streaming is a
// delivery-channel concern layered on top via a fragment sink.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/logging"
)

// RunState tracks the lifecycle of a Run. Transitions are monotonic:
// NotStarted → Running → Completed or Failed, never backwards.
type RunState int

const (
	// StateNotStarted is the initial state.
	StateNotStarted RunState = iota
	// StateRunning marks an execution in progress.
	StateRunning
	// StateCompleted marks a successful, finished run.
	StateCompleted
	// StateFailed marks an aborted run.
	StateFailed
)

// String returns the state name.
func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultMaxHandoffDepth bounds handoff chains; mutually recursive agent
// configurations would otherwise delegate without bound.
const DefaultMaxHandoffDepth = 10

// Options configure a Run.
type Options struct {
	// Registry resolves named backends from Settings.Backend.
	Registry *backend.Registry
	// Backend, when set, is used directly and the registry is bypassed.
	Backend backend.Backend
	// Logger receives structured run events. Defaults to NoOpLogger.
	Logger logging.Logger
	// MaxHandoffDepth bounds handoff delegation chains.
	MaxHandoffDepth int
}

// Result is the outcome of a completed run.
type Result struct {
	// FinalOutput is the guardrail-validated answer text.
	FinalOutput string
	// Messages is the full ordered conversation, opening with the system
	// instructions followed by the validated user input.
	Messages []core.Message
	// Usage aggregates token accounting across the run's backend calls.
	Usage backend.Usage
}

// Sink delivers one content fragment during streaming execution. The engine
// awaits each invocation before consuming the next fragment; a slow sink
// throttles the producer.
type Sink func(fragment string) error

// Run executes one request against one agent definition. A Run instance is
// consumed by exactly one Execute or ExecuteStream call; reuse fails with
// *InvalidStateError. C is the caller-supplied run context type visible to
// tools and handoff predicates.
type Run[C any] struct {
	def   *agent.Definition[C]
	input string
	rc    C
	opts  Options
	runID string
	depth int

	mu    sync.Mutex
	state RunState
}

// New constructs a Run bound to an agent definition, raw input text and run
// context value.
func New[C any](def *agent.Definition[C], input string, rc C, optFns ...func(o *Options)) *Run[C] {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		MaxHandoffDepth: DefaultMaxHandoffDepth,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxHandoffDepth <= 0 {
		opts.MaxHandoffDepth = DefaultMaxHandoffDepth
	}
	return &Run[C]{
		def:   def,
		input: input,
		rc:    rc,
		opts:  opts,
		runID: core.NewID(),
	}
}

// State reports the current lifecycle state.
func (r *Run[C]) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ID returns the run identifier used in log correlation.
func (r *Run[C]) ID() string { return r.runID }

// Execute runs the buffered path: the backend's Complete call is used and
// the final output arrives only in the Result.
func (r *Run[C]) Execute(ctx context.Context) (*Result, error) {
	return r.execute(ctx, nil)
}

// ExecuteStream runs the streaming path: content fragments are forwarded to
// sink in chronological order as the backend produces them, and the
// identical orchestration algorithm yields the same Result as Execute.
func (r *Run[C]) ExecuteStream(ctx context.Context, sink Sink) (*Result, error) {
	return r.execute(ctx, sink)
}

// execute is the single orchestration routine shared by both delivery modes.
func (r *Run[C]) execute(ctx context.Context, sink Sink) (*Result, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}

	logger := logging.NewRunLogger(r.opts.Logger).WithRun(r.def.Name(), r.runID)
	logger.Debug("run.start", "input_len", len(r.input), "depth", r.depth, "streaming", sink != nil)

	result, err := r.orchestrate(ctx, sink, logger)
	if err != nil {
		r.finish(StateFailed)
		logger.Error("run.failed", "error", err.Error())
		return nil, err
	}

	r.finish(StateCompleted)
	logger.Info("run.completed", "messages", len(result.Messages), "output_len", len(result.FinalOutput))
	return result, nil
}

func (r *Run[C]) orchestrate(ctx context.Context, sink Sink, logger *logging.RunLogger) (*Result, error) {
	guardrails := r.def.Guardrails()

	// Step 1: input guardrail chain, first failure aborts.
	input, err := guardrails.ValidateInput(r.input)
	if err != nil {
		logGuardrail(logger, err)
		return nil, err
	}

	// Step 2: handoffs in declared order; the first match fully delegates.
	for i, h := range r.def.Handoffs() {
		if !h.Condition(input, r.rc) {
			continue
		}
		if r.depth+1 > r.opts.MaxHandoffDepth {
			return nil, &HandoffDepthError{Agent: h.Target.Name(), Depth: r.depth + 1}
		}
		logger.Info("run.handoff", "position", i, "target", h.Target.Name())
		child := New(h.Target, input, r.rc, func(o *Options) { *o = r.opts })
		child.depth = r.depth + 1
		return child.execute(ctx, sink)
	}

	b, err := r.resolveBackend()
	if err != nil {
		return nil, err
	}

	// Step 3: initial history and first backend call.
	messages := []core.Message{
		core.SystemMessage(r.def.Instructions()),
		core.UserMessage(input),
	}
	req := backend.Request{
		Messages: messages,
		Settings: r.def.Settings(),
		Tools:    r.toolSchemas(),
	}

	var usage backend.Usage
	resp, err := r.callBackend(ctx, b, req, sink, logger)
	if err != nil {
		return nil, err
	}
	usage.Add(resp.Usage)

	// Steps 4–5: either the text is the candidate output, or one round of
	// tool dispatch followed by a second call whose text is the candidate.
	candidate := resp.Text
	if len(resp.ToolCalls) > 0 {
		messages = append(messages, core.AssistantToolCallMessage(resp.Text, resp.ToolCalls))

		results, err := r.dispatchToolCalls(ctx, resp.ToolCalls, logger)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			messages = append(messages, core.ToolMessage(res))
		}

		req.Messages = messages
		second, err := r.callBackend(ctx, b, req, sink, logger)
		if err != nil {
			return nil, err
		}
		usage.Add(second.Usage)
		// Single round-trip design: tool calls in the second response are
		// not dispatched.
		candidate = second.Text
	}

	// Step 6: output guardrail chain.
	output, err := guardrails.ValidateOutput(candidate)
	if err != nil {
		logGuardrail(logger, err)
		return nil, err
	}

	// Step 7: close the conversation unless the last message already
	// carries the identical text.
	last := messages[len(messages)-1]
	if last.Role != core.RoleAssistant || last.Text != output {
		messages = append(messages, core.AssistantMessage(output))
	}

	return &Result{FinalOutput: output, Messages: messages, Usage: usage}, nil
}

// callBackend issues one backend request, buffered or streamed depending on
// the presence of a sink. Cancellation is checked before the call, one of
// the run's suspension points.
func (r *Run[C]) callBackend(ctx context.Context, b backend.Backend, req backend.Request, sink Sink, logger *logging.RunLogger) (*backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		resp *backend.Response
		err  error
	)
	if sink == nil {
		resp, err = b.Complete(ctx, req)
	} else {
		// The producer goroutine only exits through this context; an early
		// aggregator return (sink failure) must release it.
		streamCtx, cancel := context.WithCancel(ctx)
		events, errCh := b.Stream(streamCtx, req)
		resp, err = aggregate(streamCtx, events, errCh, sink)
		cancel()
	}
	logger.LogBackendCall(r.def.Settings().Backend, sink != nil, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Run[C]) resolveBackend() (backend.Backend, error) {
	if r.opts.Backend != nil {
		return r.opts.Backend, nil
	}
	name := r.def.Settings().Backend
	if r.opts.Registry == nil {
		return nil, &BackendUnavailableError{Name: name}
	}
	b, ok := r.opts.Registry.Resolve(name)
	if !ok {
		return nil, &BackendUnavailableError{Name: name}
	}
	return b, nil
}

func (r *Run[C]) toolSchemas() []backend.ToolSchema {
	tools := r.def.Tools()
	if len(tools) == 0 {
		return nil
	}
	schemas := make([]backend.ToolSchema, len(tools))
	for i, t := range tools {
		schemas[i] = backend.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return schemas
}

func (r *Run[C]) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateNotStarted {
		return &InvalidStateError{State: r.state}
	}
	r.state = StateRunning
	return nil
}

func (r *Run[C]) finish(state RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

func logGuardrail(logger *logging.RunLogger, err error) {
	if v, ok := err.(*guardrail.Violation); ok {
		logger.Warn("run.guardrail.failed", "stage", string(v.Stage), "position", v.Position, "reason", v.Reason)
		return
	}
	logger.Warn("run.guardrail.failed", "error", err.Error())
}
