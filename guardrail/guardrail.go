// Package guardrail implements input/output validation for agent runs. A
// guardrail may transform the text it validates or fail with a reason; a
// Chain evaluates guardrails strictly in declared order with first-failure
// short-circuit semantics and reports the failing position for diagnostics.
package guardrail

import "fmt"

// Stage distinguishes which direction of a run a violation occurred in.
type Stage string

const (
	// StageInput marks validation of the raw user input before the first
	// backend call.
	StageInput Stage = "input"
	// StageOutput marks validation of the candidate final output.
	StageOutput Stage = "output"
)

// Guardrail validates and optionally transforms text flowing into or out of
// a run. Both methods are synchronous; returning an error fails the run.
// Implementations must be safe for concurrent use, they are shared across
// runs.
type Guardrail interface {
	// ValidateInput checks the user input, returning the (possibly
	// transformed) text or an error describing the violation.
	ValidateInput(input string) (string, error)

	// ValidateOutput checks the candidate final output with the same
	// contract as ValidateInput.
	ValidateOutput(output string) (string, error)
}

// Violation reports which guardrail failed and why. Position is the
// zero-based index of the guardrail in its declared chain.
type Violation struct {
	Stage    Stage
	Position int
	Reason   string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return fmt.Sprintf("%s guardrail %d rejected text: %s", v.Stage, v.Position, v.Reason)
}

// Chain is an ordered guardrail pipeline. No guardrail is skipped on an
// earlier guardrail's success; only failure short-circuits.
type Chain []Guardrail

// ValidateInput runs every guardrail's ValidateInput in order, threading the
// transformed text forward. The first failure aborts with a *Violation
// carrying the failing position; later guardrails are not invoked.
func (c Chain) ValidateInput(input string) (string, error) {
	text := input
	for i, g := range c {
		var err error
		text, err = g.ValidateInput(text)
		if err != nil {
			return "", &Violation{Stage: StageInput, Position: i, Reason: err.Error()}
		}
	}
	return text, nil
}

// ValidateOutput mirrors ValidateInput for the output direction.
func (c Chain) ValidateOutput(output string) (string, error) {
	text := output
	for i, g := range c {
		var err error
		text, err = g.ValidateOutput(text)
		if err != nil {
			return "", &Violation{Stage: StageOutput, Position: i, Reason: err.Error()}
		}
	}
	return text, nil
}

// Clone returns an independent copy of the chain.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	out := make(Chain, len(c))
	copy(out, c)
	return out
}
