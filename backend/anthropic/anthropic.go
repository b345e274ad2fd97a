// Package anthropic adapts the Anthropic Messages API (including streaming
// and tool use) to the agentrun backend contract.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
)

// Options configure the Anthropic backend adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Backend wraps the Anthropic Messages API behind backend.Backend.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	params := b.buildParams(req)

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &backend.RequestError{Backend: "anthropic", Message: err.Error(), Err: err}
	}
	return convertMessage(resp)
}

// Stream implements backend.Backend. Text deltas are forwarded immediately;
// tool use blocks are reconstructed from the accumulated message once the
// event stream finishes.
func (b *Backend) Stream(ctx context.Context, req backend.Request) (<-chan backend.StreamEvent, <-chan error) {
	out := make(chan backend.StreamEvent, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := b.buildParams(req)
		stream := b.client.Messages.NewStreaming(ctx, params)

		var acc anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				errCh <- &backend.RequestError{Backend: "anthropic", Message: err.Error(), Err: err}
				return
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- backend.StreamEvent{Kind: backend.StreamEventContent, Content: text.Text}:
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- &backend.RequestError{Backend: "anthropic", Message: err.Error(), Err: err}
			return
		}

		final, err := convertMessage(&acc)
		if err != nil {
			errCh <- err
			return
		}
		for i := range final.ToolCalls {
			call := final.ToolCalls[i]
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- backend.StreamEvent{Kind: backend.StreamEventToolCall, ToolCall: &backend.ToolCallFragment{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			}}:
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- backend.StreamEvent{Kind: backend.StreamEventEnd, Usage: final.Usage}:
		}
	}()

	return out, errCh
}

// convertMessage maps an SDK message to the normalized response shape.
func convertMessage(msg *anthropic.Message) (*backend.Response, error) {
	out := &backend.Response{}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args, err := core.DecodeMap(toolBlock.Input)
			if err != nil {
				return nil, &backend.MalformedArgumentsError{CallID: toolBlock.ID, Err: err}
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCallRequest{
				ID:   toolBlock.ID,
				Name: toolBlock.Name,
				Args: args,
			})
		}
	}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		out.Usage = &backend.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}
	return out, nil
}

// buildParams assembles the SDK request from the normalized one.
func (b *Backend) buildParams(req backend.Request) anthropic.MessageNewParams {
	model := b.opts.Model
	if req.Settings.Model != "" {
		model = anthropic.Model(req.Settings.Model)
	}
	temperature := b.opts.Temperature
	if req.Settings.Temperature != nil {
		temperature = *req.Settings.Temperature
	}
	maxTokens := b.opts.MaxTokens
	if req.Settings.MaxTokens != nil {
		maxTokens = *req.Settings.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if req.Settings.TopP != nil {
		params.TopP = anthropic.Float(*req.Settings.TopP)
	}
	if system := extractSystem(req.Messages); len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// buildMessages converts history into Anthropic messages. System messages
// are handled separately; tool results become tool_result blocks inside a
// user turn, as the Messages API requires.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			continue
		case core.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		case core.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Args.Any(), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case core.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		}
	}
	return out
}

func extractSystem(messages []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range messages {
		if m.Role == core.RoleSystem && m.Text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Text})
		}
	}
	return blocks
}

func buildTools(schemas []backend.ToolSchema) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(schemas))
	for i, schema := range schemas {
		doc := schema.JSONSchema()
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if properties, ok := doc["properties"]; ok {
			inputSchema.Properties = properties
		}
		if required, ok := doc["required"].([]string); ok {
			inputSchema.Required = required
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, schema.Name)
	}
	return tools
}
