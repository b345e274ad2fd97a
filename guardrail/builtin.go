package guardrail

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength rejects text longer than Max runes.
type MaxLength struct {
	Max int
}

// ValidateInput implements Guardrail.
func (g MaxLength) ValidateInput(input string) (string, error) { return g.check(input) }

// ValidateOutput implements Guardrail.
func (g MaxLength) ValidateOutput(output string) (string, error) { return g.check(output) }

func (g MaxLength) check(text string) (string, error) {
	if n := utf8.RuneCountInString(text); n > g.Max {
		return "", fmt.Errorf("text length %d exceeds maximum %d", n, g.Max)
	}
	return text, nil
}

// Pattern rejects text not matching a required regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern compiles expr into a Pattern guardrail.
func NewPattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return &Pattern{re: re}, nil
}

// MustPattern is NewPattern panicking on a bad expression. For package-level
// guardrail variables.
func MustPattern(expr string) *Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidateInput implements Guardrail.
func (g *Pattern) ValidateInput(input string) (string, error) { return g.check(input) }

// ValidateOutput implements Guardrail.
func (g *Pattern) ValidateOutput(output string) (string, error) { return g.check(output) }

func (g *Pattern) check(text string) (string, error) {
	if !g.re.MatchString(text) {
		return "", fmt.Errorf("text does not match required pattern %q", g.re.String())
	}
	return text, nil
}

// Trim normalizes surrounding whitespace. It transforms and never fails.
type Trim struct{}

// ValidateInput implements Guardrail.
func (Trim) ValidateInput(input string) (string, error) { return strings.TrimSpace(input), nil }

// ValidateOutput implements Guardrail.
func (Trim) ValidateOutput(output string) (string, error) { return strings.TrimSpace(output), nil }
