// Package openai adapts the OpenAI Chat Completions API (including streaming
// and function/tool calling) to the agentrun backend contract. It converts
// the normalized Request into the SDK's message format and back.
package openai

import (
	"context"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
)

// aggCall accumulates partial tool call streaming deltas (id, name,
// arguments) until the finish reason arrives.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI backend adapter. Unset settings fall back to
// these defaults per request.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Backend wraps the OpenAI Chat Completions API behind backend.Backend.
type Backend struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI backend using the default client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	params := b.buildParams(req)

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &backend.RequestError{Backend: "openai", Message: err.Error(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &backend.RequestError{Backend: "openai", Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	out := &backend.Response{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		args, err := core.DecodeMap([]byte(tc.Function.Arguments))
		if err != nil {
			return nil, &backend.MalformedArgumentsError{CallID: tc.ID, Err: err}
		}
		out.ToolCalls = append(out.ToolCalls, core.ToolCallRequest{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &backend.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}
	return out, nil
}

// Stream implements backend.Backend. Text deltas are forwarded as content
// fragments immediately; tool call deltas are accumulated per index and
// emitted as merged fragments once the stream finishes, followed by the end
// event.
func (b *Backend) Stream(ctx context.Context, req backend.Request) (<-chan backend.StreamEvent, <-chan error) {
	out := make(chan backend.StreamEvent, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := b.buildParams(req)
		stream := b.client.Chat.Completions.NewStreaming(ctx, params)

		agg := map[int64]*aggCall{}
		var order []int64
		var usage *backend.Usage

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 {
				usage = &backend.Usage{
					PromptTokens:     int(chunk.Usage.PromptTokens),
					CompletionTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:      int(chunk.Usage.TotalTokens),
				}
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- backend.StreamEvent{Kind: backend.StreamEventContent, Content: choice.Delta.Content}:
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := agg[tc.Index]
					if !ok {
						ac = &aggCall{}
						agg[tc.Index] = ac
						order = append(order, tc.Index)
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					ac.args += tc.Function.Arguments
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- &backend.RequestError{Backend: "openai", Message: err.Error(), Err: err}
			return
		}

		for _, idx := range order {
			ac := agg[idx]
			args, err := core.DecodeMap([]byte(ac.args))
			if err != nil {
				errCh <- &backend.MalformedArgumentsError{CallID: ac.id, Err: err}
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- backend.StreamEvent{Kind: backend.StreamEventToolCall, ToolCall: &backend.ToolCallFragment{
				ID:   ac.id,
				Name: ac.name,
				Args: args,
			}}:
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- backend.StreamEvent{Kind: backend.StreamEventEnd, Usage: usage}:
		}
	}()

	return out, errCh
}

// buildParams assembles the SDK request from the normalized one.
func (b *Backend) buildParams(req backend.Request) openai.ChatCompletionNewParams {
	model := b.opts.Model
	if req.Settings.Model != "" {
		model = req.Settings.Model
	}
	temperature := b.opts.Temperature
	if req.Settings.Temperature != nil {
		temperature = *req.Settings.Temperature
	}
	maxTokens := b.opts.MaxCompletionTokens
	if req.Settings.MaxTokens != nil {
		maxTokens = *req.Settings.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Messages),
		Model:               model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if req.Settings.TopP != nil {
		params.TopP = openai.Float(*req.Settings.TopP)
	}
	if req.Settings.Seed != nil {
		params.Seed = openai.Int(*req.Settings.Seed)
	}
	if req.Settings.ResponseFormat == backend.ResponseFormatJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, schema := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        schema.Name,
					Description: openai.String(schema.Description),
					Parameters:  schema.JSONSchema(),
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// buildMessages converts the conversation history into SDK messages.
func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case core.RoleUser:
			out = append(out, openai.UserMessage(m.Text))
		case core.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls)),
			}
			if m.Text != "" {
				assistant.Content.OfString = openai.String(m.Text)
			}
			for i, tc := range m.ToolCalls {
				assistant.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Args.EncodeJSON(),
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case core.RoleTool:
			out = append(out, openai.ToolMessage(m.Text, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}
