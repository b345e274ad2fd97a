package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/tool"
)

type runCtx struct {
	user string
}

func addTool(t *testing.T) tool.Tool[runCtx] {
	t.Helper()
	add, err := tool.NewFunction("add", "Add two numbers",
		[]backend.Parameter{
			{Name: "a", Type: backend.ParameterTypeNumber, Required: true},
			{Name: "b", Type: backend.ParameterTypeNumber, Required: true},
		},
		func(_ context.Context, _ runCtx, args core.Map) (core.Value, error) {
			a, _ := args["a"].Float()
			b, _ := args["b"].Float()
			return core.NumberValue(a + b), nil
		})
	require.NoError(t, err)
	return add
}

func newAgent(t *testing.T, optFns ...func(o *agent.Options[runCtx])) *agent.Definition[runCtx] {
	t.Helper()
	def, err := agent.New("assistant", "You are a helpful assistant.", optFns...)
	require.NoError(t, err)
	return def
}

func withBackend(b backend.Backend) func(o *Options) {
	return func(o *Options) { o.Backend = b }
}

func TestExecuteWithoutToolCalls(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "hello there"}})
	def := newAgent(t)

	result, err := New(def, "hi", runCtx{}, withBackend(fake)).Execute(context.Background())
	require.NoError(t, err)

	// Exactly one backend request when no tools are requested.
	assert.Equal(t, 1, fake.CallCount())
	assert.Equal(t, "hello there", result.FinalOutput)

	// Message invariant: system(instructions), user(validated input), then
	// the final assistant message.
	require.Len(t, result.Messages, 3)
	assert.Equal(t, core.SystemMessage("You are a helpful assistant."), result.Messages[0])
	assert.Equal(t, core.UserMessage("hi"), result.Messages[1])
	assert.Equal(t, core.AssistantMessage("hello there"), result.Messages[2])
}

func TestExecuteIsDeterministic(t *testing.T) {
	def := newAgent(t)

	var first *Result
	for i := 0; i < 5; i++ {
		fake := backend.NewScripted([]*backend.Response{{Text: "stable answer"}})
		result, err := New(def, "same input", runCtx{}, withBackend(fake)).Execute(context.Background())
		require.NoError(t, err)
		if first == nil {
			first = result
			continue
		}
		assert.Equal(t, first, result)
	}
}

func TestToolRoundTrip(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{
		{ToolCalls: []core.ToolCallRequest{{
			ID:   "call-1",
			Name: "add",
			Args: core.Map{"a": core.NumberValue(2), "b": core.NumberValue(3)},
		}}},
		{Text: "5"},
	})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{addTool(t)}
	})

	result, err := New(def, "what is 2+3?", runCtx{}, withBackend(fake)).Execute(context.Background())
	require.NoError(t, err)

	// Exactly two backend requests when tools are requested.
	assert.Equal(t, 2, fake.CallCount())
	assert.Equal(t, "5", result.FinalOutput)

	// Exactly one tool-role message carrying "5", referencing the call id
	// of the preceding assistant turn.
	var toolMessages []core.Message
	for _, m := range result.Messages {
		if m.Role == core.RoleTool {
			toolMessages = append(toolMessages, m)
		}
	}
	require.Len(t, toolMessages, 1)
	assert.Equal(t, "call-1", toolMessages[0].ToolCallID)
	assert.Equal(t, "5", toolMessages[0].Text)

	// The tool schema was offered on both requests.
	for _, req := range fake.Requests() {
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "add", req.Tools[0].Name)
	}
}

func TestToolCallsExecuteInRequestOrder(t *testing.T) {
	var invoked []string
	record := func(name string) tool.Tool[runCtx] {
		rec, err := tool.NewFunction(name, "Record invocation", nil,
			func(context.Context, runCtx, core.Map) (core.Value, error) {
				invoked = append(invoked, name)
				return core.StringValue("ok"), nil
			})
		require.NoError(t, err)
		return rec
	}

	fake := backend.NewScripted([]*backend.Response{
		{ToolCalls: []core.ToolCallRequest{
			{ID: "c1", Name: "second"},
			{ID: "c2", Name: "first"},
		}},
		{Text: "done"},
	})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{record("first"), record("second")}
	})

	_, err := New(def, "go", runCtx{}, withBackend(fake)).Execute(context.Background())
	require.NoError(t, err)
	// Request order, not declaration order.
	assert.Equal(t, []string{"second", "first"}, invoked)
}

func TestToolNotFoundAbortsRun(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{
		{ToolCalls: []core.ToolCallRequest{{ID: "c1", Name: "missing"}}},
		{Text: "never reached"},
	})
	def := newAgent(t)

	run := New(def, "go", runCtx{}, withBackend(fake))
	_, err := run.Execute(context.Background())

	var notFound *ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Tool)
	assert.Equal(t, StateFailed, run.State())
	// The second backend call is never issued.
	assert.Equal(t, 1, fake.CallCount())
}

func TestToolFailureAbortsBatch(t *testing.T) {
	boom, err := tool.NewFunction[runCtx]("boom", "Always fails", nil,
		func(context.Context, runCtx, core.Map) (core.Value, error) {
			return core.Null(), assert.AnError
		})
	require.NoError(t, err)

	var laterInvoked bool
	later, err := tool.NewFunction[runCtx]("later", "Should not run", nil,
		func(context.Context, runCtx, core.Map) (core.Value, error) {
			laterInvoked = true
			return core.Null(), nil
		})
	require.NoError(t, err)

	fake := backend.NewScripted([]*backend.Response{
		{ToolCalls: []core.ToolCallRequest{
			{ID: "c1", Name: "boom"},
			{ID: "c2", Name: "later"},
		}},
	})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{boom, later}
	})

	_, err = New(def, "go", runCtx{}, withBackend(fake)).Execute(context.Background())

	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "boom", execErr.Tool)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, laterInvoked)
}

func TestToolReceivesRunContext(t *testing.T) {
	whoami, err := tool.NewFunction("whoami", "Report the caller", nil,
		func(_ context.Context, rc runCtx, _ core.Map) (core.Value, error) {
			return core.StringValue(rc.user), nil
		})
	require.NoError(t, err)

	fake := backend.NewScripted([]*backend.Response{
		{ToolCalls: []core.ToolCallRequest{{ID: "c1", Name: "whoami"}}},
		{Text: "you are alice"},
	})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{whoami}
	})

	result, err := New(def, "who am I?", runCtx{user: "alice"}, withBackend(fake)).Execute(context.Background())
	require.NoError(t, err)

	var toolMsg core.Message
	for _, m := range result.Messages {
		if m.Role == core.RoleTool {
			toolMsg = m
		}
	}
	assert.Equal(t, "alice", toolMsg.Text)
}

func TestInputGuardrailShortCircuit(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "unused"}})
	pattern := guardrail.MustPattern(`weather`)
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Guardrails = []guardrail.Guardrail{guardrail.MaxLength{Max: 5}, pattern}
	})

	run := New(def, "0123456789", runCtx{}, withBackend(fake))
	_, err := run.Execute(context.Background())

	var violation *guardrail.Violation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, guardrail.StageInput, violation.Stage)
	assert.Equal(t, 0, violation.Position)
	assert.Equal(t, StateFailed, run.State())
	// The backend is never consulted on input rejection.
	assert.Equal(t, 0, fake.CallCount())
}

func TestOutputGuardrailFailureDiscardsHistory(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "this output is far too long"}})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Guardrails = []guardrail.Guardrail{guardrail.MaxLength{Max: 10}}
	})

	run := New(def, "short", runCtx{}, withBackend(fake))
	result, err := run.Execute(context.Background())

	var violation *guardrail.Violation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, guardrail.StageOutput, violation.Stage)
	assert.Nil(t, result)
	assert.Equal(t, StateFailed, run.State())
}

func TestGuardrailTransformReachesBackendAndResult(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "  padded  "}})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Guardrails = []guardrail.Guardrail{guardrail.Trim{}}
	})

	result, err := New(def, "   hello   ", runCtx{}, withBackend(fake)).Execute(context.Background())
	require.NoError(t, err)

	// Validated input reaches the history; validated output is final.
	assert.Equal(t, core.UserMessage("hello"), result.Messages[1])
	assert.Equal(t, "padded", result.FinalOutput)
}

func TestReuseRejected(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "once"}})
	def := newAgent(t)

	run := New(def, "hi", runCtx{}, withBackend(fake))
	_, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.State())

	_, err = run.Execute(context.Background())
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateCompleted, invalid.State)
	// No additional backend call happened.
	assert.Equal(t, 1, fake.CallCount())
}

func TestHandoffPrecedence(t *testing.T) {
	weatherBackend := backend.NewScripted([]*backend.Response{{Text: "sunny"}})
	weatherAgent, err := agent.New("weather", "Answer weather questions.", func(o *agent.Options[runCtx]) {
		o.Settings = backend.Settings{}
	})
	require.NoError(t, err)

	travelAgent, err := agent.New[runCtx]("travel", "Answer travel questions.")
	require.NoError(t, err)

	var travelEvaluated bool
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Handoffs = []agent.Handoff[runCtx]{
			{Target: weatherAgent, Condition: func(input string, _ runCtx) bool {
				return strings.Contains(input, "weather")
			}},
			{Target: travelAgent, Condition: func(input string, _ runCtx) bool {
				travelEvaluated = true
				return strings.Contains(input, "travel")
			}},
		}
	})

	result, err := New(def, "weather and travel plans", runCtx{}, withBackend(weatherBackend)).Execute(context.Background())
	require.NoError(t, err)

	// First declared handoff wins; the second predicate is never evaluated.
	assert.False(t, travelEvaluated)
	assert.Equal(t, "sunny", result.FinalOutput)
	// The delegated run owns the conversation: its system message carries
	// the target agent's instructions.
	assert.Equal(t, core.SystemMessage("Answer weather questions."), result.Messages[0])
	assert.Equal(t, core.UserMessage("weather and travel plans"), result.Messages[1])
}

func TestHandoffDepthLimit(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "leaf"}})

	// Build a delegation chain longer than the configured depth limit.
	leaf, err := agent.New[runCtx]("leaf", "Leaf agent.")
	require.NoError(t, err)
	next := leaf
	for i := 0; i < 5; i++ {
		target := next
		next, err = agent.New("chain", "Chain agent.", func(o *agent.Options[runCtx]) {
			o.Handoffs = []agent.Handoff[runCtx]{{
				Target:    target,
				Condition: func(string, runCtx) bool { return true },
			}}
		})
		require.NoError(t, err)
	}

	run := New(next, "go", runCtx{}, withBackend(fake), func(o *Options) { o.MaxHandoffDepth = 3 })
	_, err = run.Execute(context.Background())

	var depthErr *HandoffDepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, 4, depthErr.Depth)
	assert.Equal(t, StateFailed, run.State())

	// A chain within the limit completes.
	run = New(next, "go", runCtx{}, withBackend(fake), func(o *Options) { o.MaxHandoffDepth = 10 })
	result, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "leaf", result.FinalOutput)
}

func TestBackendUnavailable(t *testing.T) {
	registry := backend.NewRegistry()
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Settings = backend.Settings{Backend: "missing"}
	})

	run := New(def, "hi", runCtx{}, func(o *Options) { o.Registry = registry })
	_, err := run.Execute(context.Background())

	var unavailable *BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "missing", unavailable.Name)
	assert.Equal(t, StateFailed, run.State())
}

func TestRegistryResolution(t *testing.T) {
	registry := backend.NewRegistry()
	fake := backend.NewScripted([]*backend.Response{{Text: "from registry"}})
	require.NoError(t, registry.Register("fake", fake))
	registry.Freeze()

	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Settings = backend.Settings{Backend: "fake"}
	})

	result, err := New(def, "hi", runCtx{}, func(o *Options) { o.Registry = registry }).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from registry", result.FinalOutput)
}

func TestCancellationBeforeBackendCall(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{{Text: "never"}})
	def := newAgent(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := New(def, "hi", runCtx{}, withBackend(fake))
	_, err := run.Execute(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, run.State())
	assert.Equal(t, 0, fake.CallCount())
}

func TestUsageAggregation(t *testing.T) {
	fake := backend.NewScripted([]*backend.Response{
		{
			ToolCalls: []core.ToolCallRequest{{ID: "c1", Name: "add",
				Args: core.Map{"a": core.NumberValue(1), "b": core.NumberValue(1)}}},
			Usage: &backend.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
		{
			Text:  "2",
			Usage: &backend.Usage{PromptTokens: 20, CompletionTokens: 2, TotalTokens: 22},
		},
	})
	def := newAgent(t, func(o *agent.Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{addTool(t)}
	})

	result, err := New(def, "1+1", runCtx{}, withBackend(fake)).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backend.Usage{PromptTokens: 30, CompletionTokens: 7, TotalTokens: 37}, result.Usage)
}
