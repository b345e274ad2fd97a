package backend

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedBackend is a deterministic in-memory Backend for tests and
// examples. It replays a fixed sequence of responses, records every request
// it receives, and streams text in fixed-size rune fragments so streaming
// consumers can be exercised without a live provider.
type ScriptedBackend struct {
	mu        sync.Mutex
	responses []*Response
	requests  []Request
	calls     int
	fragment  int
}

// ScriptedOptions configure a ScriptedBackend.
type ScriptedOptions struct {
	// FragmentSize is the rune count per streamed content fragment.
	FragmentSize int
}

// NewScripted creates a backend replaying the given responses in order. Once
// the script is exhausted the last response repeats; calling an empty script
// fails.
func NewScripted(responses []*Response, optFns ...func(o *ScriptedOptions)) *ScriptedBackend {
	opts := ScriptedOptions{FragmentSize: 4}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ScriptedBackend{responses: responses, fragment: opts.FragmentSize}
}

// Complete implements Backend.
func (s *ScriptedBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.next(req)
}

// Stream implements Backend. Content is emitted as rune fragments followed
// by one fragment per tool call (id and name first, arguments second) and a
// terminating end event.
func (s *ScriptedBackend) Stream(ctx context.Context, req Request) (<-chan StreamEvent, <-chan error) {
	out := make(chan StreamEvent, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := s.next(req)
		if err != nil {
			errCh <- err
			return
		}

		runes := []rune(resp.Text)
		for start := 0; start < len(runes); start += s.fragment {
			end := start + s.fragment
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- StreamEvent{Kind: StreamEventContent, Content: string(runes[start:end])}:
			}
		}

		for _, call := range resp.ToolCalls {
			// Split each call across two fragments to exercise merging.
			fragments := []StreamEvent{
				{Kind: StreamEventToolCall, ToolCall: &ToolCallFragment{ID: call.ID, Name: call.Name}},
				{Kind: StreamEventToolCall, ToolCall: &ToolCallFragment{ID: call.ID, Args: call.Args.Clone()}},
			}
			for _, fragment := range fragments {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- fragment:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- StreamEvent{Kind: StreamEventEnd, Usage: resp.Usage}:
		}
	}()

	return out, errCh
}

func (s *ScriptedBackend) next(req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return nil, &RequestError{Backend: "scripted", Message: "no scripted responses"}
	}
	s.requests = append(s.requests, req)
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	resp := s.responses[idx]
	if resp == nil {
		return nil, &RequestError{Backend: "scripted", Message: fmt.Sprintf("scripted response %d is nil", idx)}
	}
	return resp, nil
}

// CallCount reports how many requests were issued.
func (s *ScriptedBackend) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns a copy of the recorded requests in arrival order.
func (s *ScriptedBackend) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
