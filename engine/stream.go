package engine

import (
	"context"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
)

// aggregate reduces a backend's streaming event sequence into the same shape
// the buffered path produces. Content fragments are forwarded to the sink in
// order and concatenated into the full text; each sink invocation is awaited
// before the next event is consumed, which is the run's only backpressure
// mechanism. Partial tool calls are merged by id: new ids open an
// accumulator in first-seen order, parameter maps union with new keys
// winning, and a name replaces the accumulated one only when non-empty.
func aggregate(ctx context.Context, events <-chan backend.StreamEvent, errCh <-chan error, sink Sink) (*backend.Response, error) {
	var (
		text  []byte
		order []string
		calls = map[string]*core.ToolCallRequest{}
		usage *backend.Usage
	)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				// Producer finished; surface its terminal error if any.
				if err := <-errCh; err != nil {
					return nil, err
				}
				return assemble(text, order, calls, usage), nil
			}
			switch ev.Kind {
			case backend.StreamEventContent:
				if sink != nil {
					if err := sink(ev.Content); err != nil {
						return nil, err
					}
				}
				text = append(text, ev.Content...)
			case backend.StreamEventToolCall:
				if ev.ToolCall != nil {
					mergeFragment(ev.ToolCall, calls, &order)
				}
			case backend.StreamEventEnd:
				if ev.Usage != nil {
					usage = ev.Usage
				}
			}
		}
	}
}

func mergeFragment(frag *backend.ToolCallFragment, calls map[string]*core.ToolCallRequest, order *[]string) {
	call, ok := calls[frag.ID]
	if !ok {
		call = &core.ToolCallRequest{ID: frag.ID}
		calls[frag.ID] = call
		*order = append(*order, frag.ID)
	}
	if frag.Name != "" {
		call.Name = frag.Name
	}
	if len(frag.Args) > 0 {
		call.Args = call.Args.Merge(frag.Args)
	}
}

func assemble(text []byte, order []string, calls map[string]*core.ToolCallRequest, usage *backend.Usage) *backend.Response {
	resp := &backend.Response{Text: string(text), Usage: usage}
	for _, id := range order {
		resp.ToolCalls = append(resp.ToolCalls, *calls[id])
	}
	return resp
}
