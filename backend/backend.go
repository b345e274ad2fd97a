// Package backend defines the language-model backend contract the engine
// depends on: a buffered completion call and a streaming call emitting
// fragment events, both over the same request shape. Provider adapters live
// in subpackages; any implementation of Backend (including the scripted fake
// in this package) is a valid collaborator.
package backend

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/core"
)

// ResponseFormat constrains the shape of backend output text.
type ResponseFormat string

const (
	// ResponseFormatText requests free-form text (the default).
	ResponseFormatText ResponseFormat = "text"
	// ResponseFormatJSON requests a JSON document.
	ResponseFormatJSON ResponseFormat = "json"
)

// Settings carries per-agent model parameters. Optional fields are pointers
// so absence can be distinguished from zero values; adapters apply only what
// their provider supports.
type Settings struct {
	// Backend names the registry entry to resolve. Empty selects the
	// engine's default backend.
	Backend string `json:"backend,omitempty"`
	// Model is the provider-specific model identifier.
	Model          string                `json:"model,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	TopP           *float64              `json:"top_p,omitempty"`
	MaxTokens      *int64                `json:"max_tokens,omitempty"`
	Seed           *int64                `json:"seed,omitempty"`
	ResponseFormat ResponseFormat        `json:"response_format,omitempty"`
	// Extra holds provider-specific key/value parameters adapters may
	// interpret.
	Extra map[string]core.Value `json:"extra,omitempty"`
}

// ParameterType enumerates the accepted tool parameter types.
type ParameterType string

const (
	ParameterTypeString  ParameterType = "string"
	ParameterTypeNumber  ParameterType = "number"
	ParameterTypeBoolean ParameterType = "boolean"
	ParameterTypeArray   ParameterType = "array"
	ParameterTypeObject  ParameterType = "object"
)

// Parameter describes one tool parameter.
type Parameter struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        ParameterType `json:"type"`
	Required    bool          `json:"required,omitempty"`
}

// ToolSchema declaratively exposes a callable tool to the model.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

// JSONSchema renders the ordered parameter list as a minimal JSON Schema
// object, the shape providers expect for function declarations.
func (s ToolSchema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	var required []string
	for _, p := range s.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Usage captures token accounting for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Request is the normalized backend input: ordered conversation history,
// model settings and the tool schema offered to the model.
type Request struct {
	Messages []core.Message `json:"messages"`
	Settings Settings       `json:"settings"`
	Tools    []ToolSchema   `json:"tools,omitempty"`
}

// Response is the normalized backend output for one completion.
type Response struct {
	Text      string                 `json:"text"`
	ToolCalls []core.ToolCallRequest `json:"tool_calls,omitempty"`
	Usage     *Usage                 `json:"usage,omitempty"`
}

// StreamEventKind discriminates streaming events.
type StreamEventKind int

const (
	// StreamEventContent carries a text fragment.
	StreamEventContent StreamEventKind = iota
	// StreamEventToolCall carries a partial tool call.
	StreamEventToolCall
	// StreamEventEnd terminates the stream, optionally carrying usage.
	StreamEventEnd
)

// ToolCallFragment is a partial tool call keyed by id. Name and Args may
// arrive across several fragments; consumers merge them in order.
type ToolCallFragment struct {
	ID   string   `json:"id,omitempty"`
	Name string   `json:"name,omitempty"`
	Args core.Map `json:"args,omitempty"`
}

// StreamEvent is one element of a backend's streaming output.
type StreamEvent struct {
	Kind     StreamEventKind   `json:"kind"`
	Content  string            `json:"content,omitempty"`
	ToolCall *ToolCallFragment `json:"tool_call,omitempty"`
	Usage    *Usage            `json:"usage,omitempty"`
}

// Backend is the language-model collaborator contract. Complete performs a
// buffered call. Stream performs the same call but delivers output as an
// ordered event sequence; implementations close both channels when the
// stream is exhausted and emit at most one error. Bounded event channels
// provide producer backpressure: the engine consumes events strictly one at
// a time.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, <-chan error)
}

// RequestError reports a transport or provider failure for a backend call.
type RequestError struct {
	Backend    string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s request failed (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s request failed: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error { return e.Err }

// MalformedArgumentsError reports a tool-call argument payload that could not
// be decoded into a parameter mapping.
type MalformedArgumentsError struct {
	CallID string
	Err    error
}

// Error implements the error interface.
func (e *MalformedArgumentsError) Error() string {
	return fmt.Sprintf("malformed tool call arguments (call %s): %v", e.CallID, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *MalformedArgumentsError) Unwrap() error { return e.Err }
