package engine

import "fmt"

// InvalidStateError reports a run instance reused after execution started.
type InvalidStateError struct {
	State RunState
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("run already consumed (state %s); create a new run per execution", e.State)
}

// BackendUnavailableError reports that the named backend is not registered.
type BackendUnavailableError struct {
	Name string
}

// Error implements the error interface.
func (e *BackendUnavailableError) Error() string {
	if e.Name == "" {
		return "no backend configured: set Options.Backend or register a default in the registry"
	}
	return fmt.Sprintf("backend %q not registered", e.Name)
}

// ToolNotFoundError reports a tool call naming a tool the agent does not
// carry.
type ToolNotFoundError struct {
	Tool  string
	Agent string
}

// Error implements the error interface.
func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found on agent %s", e.Tool, e.Agent)
}

// ToolExecutionError wraps a tool handler failure with the tool's name.
type ToolExecutionError struct {
	Tool string
	Err  error
}

// Error implements the error interface.
func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ToolExecutionError) Unwrap() error { return e.Err }

// HandoffDepthError reports a handoff chain exceeding the configured depth
// limit, guarding against mutually recursive agent configurations.
type HandoffDepthError struct {
	Agent string
	Depth int
}

// Error implements the error interface.
func (e *HandoffDepthError) Error() string {
	return fmt.Sprintf("handoff depth %d exceeded delegating to agent %s", e.Depth, e.Agent)
}
