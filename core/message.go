package core

import "github.com/google/uuid"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem carries the agent instructions; always the opening message.
	RoleSystem Role = "system"
	// RoleUser carries the validated caller input.
	RoleUser Role = "user"
	// RoleAssistant carries backend text and tool-call requests.
	RoleAssistant Role = "assistant"
	// RoleTool carries the result of a single tool call.
	RoleTool Role = "tool"
)

// ToolCallRequest is a backend-requested invocation of a named tool.
type ToolCallRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args Map    `json:"args,omitempty"`
}

// ToolCallResult pairs a tool call id with the serialized result text.
type ToolCallResult struct {
	ToolCallID string `json:"tool_call_id"`
	Text       string `json:"text"`
}

// Message is one entry of the conversation history sent to a backend.
//
// For assistant messages ToolCalls holds any tool invocations requested in
// that turn. For tool messages ToolCallID references an id from the
// immediately preceding assistant turn and Text carries the result.
type Message struct {
	Role       Role              `json:"role"`
	Text       string            `json:"text,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// SystemMessage builds the instructions message.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Text: text} }

// UserMessage builds a user input message.
func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }

// AssistantMessage builds a plain assistant text message.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Text: text} }

// AssistantToolCallMessage builds an assistant turn that requests tool calls,
// optionally alongside text.
func AssistantToolCallMessage(text string, calls []ToolCallRequest) Message {
	return Message{Role: RoleAssistant, Text: text, ToolCalls: calls}
}

// ToolMessage builds a tool-role message carrying one tool call result.
func ToolMessage(result ToolCallResult) Message {
	return Message{Role: RoleTool, ToolCallID: result.ToolCallID, Text: result.Text}
}

// NewID generates a unique identifier for runs and tool calls.
func NewID() string { return uuid.NewString() }
