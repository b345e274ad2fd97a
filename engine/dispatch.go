package engine

import (
	"context"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// dispatchToolCalls executes the requested tool calls strictly in request
// order: a missing tool or a handler failure aborts immediately, later calls
// in the batch are not executed and no partial results survive. Cancellation
// is checked before each execution.
func (r *Run[C]) dispatchToolCalls(ctx context.Context, calls []core.ToolCallRequest, logger *logging.RunLogger) ([]core.ToolCallResult, error) {
	results := make([]core.ToolCallResult, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, ok := r.def.Tool(call.Name)
		if !ok {
			return nil, &ToolNotFoundError{Tool: call.Name, Agent: r.def.Name()}
		}

		start := time.Now()
		value, err := t.Call(ctx, r.rc, call.Args)
		logger.LogToolCall(call.Name, call.ID, time.Since(start), err)
		if err != nil {
			return nil, &ToolExecutionError{Tool: call.Name, Err: err}
		}

		results = append(results, core.ToolCallResult{
			ToolCallID: call.ID,
			Text:       renderToolResult(value),
		})
	}
	return results, nil
}

// renderToolResult serializes a tool result for the conversation. String
// values pass through raw; composites render as compact JSON; anything
// unrepresentable falls back to readable text inside Value.Text.
func renderToolResult(v core.Value) string {
	return v.Text()
}
