// Package gemini adapts the Google Gemini API (via the google.golang.org/genai
// SDK) to the agentrun backend contract. System messages map to the model's
// system instruction, assistant turns to the "model" role, and tool results to
// function response parts.
package gemini

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
)

// Options configure the Gemini backend adapter. Unset settings fall back to
// these defaults per request.
type Options struct {
	// APIKey authenticates against the Gemini API. Empty means the SDK reads
	// it from the environment.
	APIKey string

	Model           string
	Temperature     float64
	MaxOutputTokens int32
}

// Backend wraps the Gemini API behind backend.Backend.
type Backend struct {
	client *genai.Client
	opts   Options
}

// New creates a Gemini backend with a fresh client.
func New(ctx context.Context, optFns ...func(o *Options)) (*Backend, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &backend.RequestError{Backend: "gemini", Message: err.Error(), Err: err}
	}

	return &Backend{client: client, opts: opts}, nil
}

// NewFromClient creates a Gemini backend from an existing client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, req backend.Request) (*backend.Response, error) {
	contents, config := b.buildRequest(req)

	resp, err := b.client.Models.GenerateContent(ctx, b.model(req), contents, config)
	if err != nil {
		return nil, &backend.RequestError{Backend: "gemini", Message: err.Error(), Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &backend.RequestError{Backend: "gemini", Message: "no candidates returned"}
	}

	out := &backend.Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, convertFunctionCall(part.FunctionCall))
		}
	}
	out.Usage = convertUsage(resp.UsageMetadata)
	return out, nil
}

// Stream implements backend.Backend. Gemini delivers function calls as whole
// parts rather than argument deltas, so each one becomes a single complete
// tool call fragment.
func (b *Backend) Stream(ctx context.Context, req backend.Request) (<-chan backend.StreamEvent, <-chan error) {
	out := make(chan backend.StreamEvent, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, config := b.buildRequest(req)

		var usage *backend.Usage

		for resp, err := range b.client.Models.GenerateContentStream(ctx, b.model(req), contents, config) {
			if err != nil {
				errCh <- &backend.RequestError{Backend: "gemini", Message: err.Error(), Err: err}
				return
			}
			if resp.UsageMetadata != nil {
				usage = convertUsage(resp.UsageMetadata)
			}
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Thought {
						continue
					}
					var event backend.StreamEvent
					switch {
					case part.FunctionCall != nil:
						call := convertFunctionCall(part.FunctionCall)
						event = backend.StreamEvent{
							Kind: backend.StreamEventToolCall,
							ToolCall: &backend.ToolCallFragment{
								ID:   call.ID,
								Name: call.Name,
								Args: call.Args,
							},
						}
					case part.Text != "":
						event = backend.StreamEvent{Kind: backend.StreamEventContent, Content: part.Text}
					default:
						continue
					}
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- event:
					}
				}
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

func (b *Backend) model(req backend.Request) string {
	if req.Settings.Model != "" {
		return req.Settings.Model
	}
	return b.opts.Model
}

func (b *Backend) buildRequest(req backend.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(b.opts.Temperature)),
		MaxOutputTokens: b.opts.MaxOutputTokens,
	}
	if req.Settings.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Settings.Temperature))
	}
	if req.Settings.TopP != nil {
		config.TopP = genai.Ptr(float32(*req.Settings.TopP))
	}
	if req.Settings.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.Settings.MaxTokens)
	}
	if req.Settings.Seed != nil {
		config.Seed = genai.Ptr(int32(*req.Settings.Seed))
	}
	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}
	if v, ok := req.Settings.Extra["include_thoughts"]; ok {
		if b, _ := v.Bool(); b {
			config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
		}
	}

	contents, system := buildContents(req.Messages)
	config.SystemInstruction = system
	return contents, config
}

// buildContents converts the normalized transcript. System messages are
// extracted into the system instruction rather than appearing in the turn
// list. Gemini addresses function responses by tool name, so the assistant's
// earlier tool calls are indexed to recover the name from the call ID.
func buildContents(messages []core.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content

	callNames := map[string]string{}
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			callNames[tc.ID] = tc.Name
		}
	}

	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			if m.Text != "" {
				system = &genai.Content{Parts: []*genai.Part{{Text: m.Text}}}
			}
		case core.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Text}},
			})
		case core.RoleAssistant:
			var parts []*genai.Part
			if m.Text != "" {
				parts = append(parts, &genai.Part{Text: m.Text})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args.Any(),
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		case core.RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     callNames[m.ToolCallID],
						Response: map[string]any{"result": m.Text},
					},
				}},
			})
		}
	}

	return contents, system
}

func buildTools(schemas []backend.ToolSchema) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(schemas))
	for i, schema := range schemas {
		fd := &genai.FunctionDeclaration{
			Name:        schema.Name,
			Description: schema.Description,
		}
		if raw, err := json.Marshal(schema.JSONSchema()); err == nil {
			var params genai.Schema
			if err := json.Unmarshal(raw, &params); err == nil {
				fd.Parameters = &params
			}
		}
		declarations[i] = fd
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertFunctionCall maps a Gemini function call to a tool call request.
// Gemini omits the call ID on some models, so a fresh one is generated to
// keep call and result correlated in the transcript.
func convertFunctionCall(fc *genai.FunctionCall) core.ToolCallRequest {
	id := fc.ID
	if id == "" {
		id = core.NewID()
	}
	args := core.Map{}
	for k, v := range fc.Args {
		args[k] = core.FromAny(v)
	}
	return core.ToolCallRequest{ID: id, Name: fc.Name, Args: args}
}

func convertUsage(meta *genai.GenerateContentResponseUsageMetadata) *backend.Usage {
	if meta == nil {
		return nil
	}
	return &backend.Usage{
		PromptTokens:     int(meta.PromptTokenCount),
		CompletionTokens: int(meta.CandidatesTokenCount),
		TotalTokens:      int(meta.TotalTokenCount),
	}
}
