// Package agent defines the immutable agent configuration consumed by the
// engine: instructions, ordered tools, ordered guardrails, ordered handoffs
// and backend settings. A Definition is generic over the run context type C
// shared by its tools and handoff predicates.
package agent

import (
	"fmt"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/tool"
)

// Handoff conditionally redirects a run to another agent configuration. The
// first handoff whose Condition reports true for the validated input fully
// delegates the run to Target.
type Handoff[C any] struct {
	// Target is the agent the run is delegated to.
	Target *Definition[C]
	// Condition decides whether this handoff fires. It receives the
	// validated input text and the caller-supplied run context.
	Condition func(input string, rc C) bool
}

// Options collect the configurable parts of a Definition. Used by New and
// Clone through functional option callbacks.
type Options[C any] struct {
	Tools      []tool.Tool[C]
	Guardrails []guardrail.Guardrail
	Handoffs   []Handoff[C]
	Settings   backend.Settings
}

// Definition is an immutable agent configuration. Construct it via New;
// derive variants via Clone. A Definition and its tools, guardrails and
// handoffs are shared, read-only inputs to any number of concurrent runs.
type Definition[C any] struct {
	name         string
	instructions string
	tools        []tool.Tool[C]
	guardrails   guardrail.Chain
	handoffs     []Handoff[C]
	settings     backend.Settings
}

// New constructs a Definition. Tool names must be unique within the agent;
// handoffs must carry a target and a condition.
func New[C any](name, instructions string, optFns ...func(o *Options[C])) (*Definition[C], error) {
	if name == "" {
		return nil, fmt.Errorf("agent name must not be empty")
	}

	var opts Options[C]
	for _, fn := range optFns {
		fn(&opts)
	}

	seen := make(map[string]struct{}, len(opts.Tools))
	for _, t := range opts.Tools {
		if t == nil {
			return nil, fmt.Errorf("agent %s: tool must not be nil", name)
		}
		if _, dup := seen[t.Name()]; dup {
			return nil, fmt.Errorf("agent %s: duplicate tool name %q", name, t.Name())
		}
		seen[t.Name()] = struct{}{}
	}
	for i, h := range opts.Handoffs {
		if h.Target == nil {
			return nil, fmt.Errorf("agent %s: handoff %d has no target", name, i)
		}
		if h.Condition == nil {
			return nil, fmt.Errorf("agent %s: handoff %d has no condition", name, i)
		}
	}

	return &Definition[C]{
		name:         name,
		instructions: instructions,
		tools:        cloneSlice(opts.Tools),
		guardrails:   guardrail.Chain(cloneSlice(opts.Guardrails)),
		handoffs:     cloneSlice(opts.Handoffs),
		settings:     opts.Settings,
	}, nil
}

// Name returns the agent name.
func (d *Definition[C]) Name() string { return d.name }

// Instructions returns the system instructions text.
func (d *Definition[C]) Instructions() string { return d.instructions }

// Tools returns a copy of the ordered tool list.
func (d *Definition[C]) Tools() []tool.Tool[C] { return cloneSlice(d.tools) }

// Guardrails returns a copy of the ordered guardrail chain.
func (d *Definition[C]) Guardrails() guardrail.Chain { return d.guardrails.Clone() }

// Handoffs returns a copy of the ordered handoff list.
func (d *Definition[C]) Handoffs() []Handoff[C] { return cloneSlice(d.handoffs) }

// Settings returns the backend settings.
func (d *Definition[C]) Settings() backend.Settings { return d.settings }

// Tool looks up a tool by name.
func (d *Definition[C]) Tool(name string) (tool.Tool[C], bool) {
	for _, t := range d.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Clone produces an independent Definition seeded with copies of this
// agent's lists; option callbacks may mutate them without affecting the
// original. The same construction rules as New apply.
func (d *Definition[C]) Clone(optFns ...func(o *Options[C])) (*Definition[C], error) {
	seed := func(o *Options[C]) {
		o.Tools = cloneSlice(d.tools)
		o.Guardrails = d.guardrails.Clone()
		o.Handoffs = cloneSlice(d.handoffs)
		o.Settings = d.settings
	}
	return New(d.name, d.instructions, append([]func(o *Options[C]){seed}, optFns...)...)
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
