// Package tool implements the tool-calling subsystem that lets agents invoke
// structured capabilities with schema-validated arguments and consistent
// error handling. Tools are generic over the run context type C, the opaque
// caller-supplied value threaded through a run, so handlers receive their
// real context type without runtime assertions.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
)

// Tool is a named capability invokable by the model with structured
// parameters.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended) and
//     descriptions; both are shown to the model
//   - Declare their parameters so arguments can be validated before the
//     handler runs
//   - Be safe for concurrent use; a tool is shared across runs
type Tool[C any] interface {
	// Name returns the unique identifier for this tool within an agent.
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Parameters returns the ordered parameter specifications.
	Parameters() []backend.Parameter

	// Call executes the tool. ctx carries cancellation, rc is the run
	// context value shared with handoff predicates, and args is the decoded
	// parameter mapping supplied by the model.
	Call(ctx context.Context, rc C, args core.Map) (core.Value, error)
}

// Error codes used by the built-in tool implementations.
const (
	// CodeValidation marks a schema / argument mismatch.
	CodeValidation = "VALIDATION_ERROR"
	// CodeExecution marks a failure inside the tool handler.
	CodeExecution = "EXECUTION_ERROR"
)

// Error represents a failure during tool execution.
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Schema renders a tool's declaration in the shape offered to backends.
func Schema[C any](t Tool[C]) backend.ToolSchema {
	return backend.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}
