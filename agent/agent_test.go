package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/tool"
)

type runCtx struct{}

func echoTool(t *testing.T, name string) tool.Tool[runCtx] {
	t.Helper()
	echo, err := tool.NewFunction(name, "Echo the input", nil,
		func(_ context.Context, _ runCtx, args core.Map) (core.Value, error) {
			return core.ObjectValue(args), nil
		})
	require.NoError(t, err)
	return echo
}

func TestNewValidates(t *testing.T) {
	_, err := New[runCtx]("", "instructions")
	assert.Error(t, err)

	_, err = New("twins", "instructions", func(o *Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{echoTool(t, "echo"), echoTool(t, "echo")}
	})
	assert.Error(t, err)

	_, err = New("dangling", "instructions", func(o *Options[runCtx]) {
		o.Handoffs = []Handoff[runCtx]{{Target: nil, Condition: func(string, runCtx) bool { return true }}}
	})
	assert.Error(t, err)
}

func TestDefinitionAccessors(t *testing.T) {
	def, err := New("helper", "You are helpful.", func(o *Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{echoTool(t, "echo")}
		o.Guardrails = []guardrail.Guardrail{guardrail.MaxLength{Max: 10}}
		o.Settings = backend.Settings{Backend: "fake", Model: "test-model"}
	})
	require.NoError(t, err)

	assert.Equal(t, "helper", def.Name())
	assert.Equal(t, "You are helpful.", def.Instructions())
	assert.Equal(t, "test-model", def.Settings().Model)
	assert.Len(t, def.Tools(), 1)
	assert.Len(t, def.Guardrails(), 1)

	echo, ok := def.Tool("echo")
	assert.True(t, ok)
	assert.Equal(t, "echo", echo.Name())

	_, ok = def.Tool("missing")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	original, err := New("helper", "You are helpful.", func(o *Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{echoTool(t, "echo")}
	})
	require.NoError(t, err)

	clone, err := original.Clone(func(o *Options[runCtx]) {
		o.Tools = append(o.Tools, echoTool(t, "shout"))
		o.Guardrails = append(o.Guardrails, guardrail.Trim{})
	})
	require.NoError(t, err)

	// Clone diverged, original untouched.
	assert.Len(t, clone.Tools(), 2)
	assert.Len(t, clone.Guardrails(), 1)
	assert.Len(t, original.Tools(), 1)
	assert.Len(t, original.Guardrails(), 0)
	assert.Equal(t, original.Name(), clone.Name())
}

func TestCloneKeepsValidation(t *testing.T) {
	original, err := New("helper", "You are helpful.", func(o *Options[runCtx]) {
		o.Tools = []tool.Tool[runCtx]{echoTool(t, "echo")}
	})
	require.NoError(t, err)

	_, err = original.Clone(func(o *Options[runCtx]) {
		o.Tools = append(o.Tools, echoTool(t, "echo"))
	})
	assert.Error(t, err)
}
