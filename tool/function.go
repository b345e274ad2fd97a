package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/agentrun/backend"
	"github.com/hupe1980/agentrun/core"
)

// Handler is the function signature wrapped by FunctionTool.
type Handler[C any] func(ctx context.Context, rc C, args core.Map) (core.Value, error)

// FunctionTool adapts a plain Go function into a Tool. Arguments are
// validated against the declared parameter schema (compiled once at
// construction) before the handler is invoked; validation failures surface
// as *Error with code VALIDATION_ERROR, handler failures as EXECUTION_ERROR
// unless the handler already returned an *Error. A FunctionTool has no
// mutable state after construction and is safe for concurrent use.
type FunctionTool[C any] struct {
	name        string
	description string
	parameters  []backend.Parameter
	schema      *gojsonschema.Schema
	fn          Handler[C]
}

// NewFunction constructs a FunctionTool from an explicit parameter list and
// handler. Construction fails when the parameter list does not form a valid
// schema.
func NewFunction[C any](name, description string, parameters []backend.Parameter, fn Handler[C]) (*FunctionTool[C], error) {
	if name == "" {
		return nil, fmt.Errorf("tool name must not be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: handler must not be nil", name)
	}
	doc := backend.ToolSchema{Name: name, Parameters: parameters}.JSONSchema()
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
	}
	return &FunctionTool[C]{
		name:        name,
		description: description,
		parameters:  parameters,
		schema:      schema,
		fn:          fn,
	}, nil
}

// MustFunction is NewFunction panicking on construction errors. For
// package-level tool variables with known-good schemas.
func MustFunction[C any](name, description string, parameters []backend.Parameter, fn Handler[C]) *FunctionTool[C] {
	t, err := NewFunction(name, description, parameters, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Name implements Tool.
func (t *FunctionTool[C]) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool[C]) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool[C]) Parameters() []backend.Parameter { return t.parameters }

// Call validates args against the declared schema then invokes the handler.
func (t *FunctionTool[C]) Call(ctx context.Context, rc C, args core.Map) (core.Value, error) {
	if args == nil {
		args = core.Map{}
	}
	result, err := t.schema.Validate(gojsonschema.NewGoLoader(args.Any()))
	if err != nil {
		return core.Null(), &Error{Tool: t.name, Message: err.Error(), Code: CodeValidation, Err: err}
	}
	if !result.Valid() {
		return core.Null(), &Error{Tool: t.name, Message: formatSchemaErrors(result), Code: CodeValidation}
	}

	value, err := t.fn(ctx, rc, args)
	if err != nil {
		var toolErr *Error
		if errors.As(err, &toolErr) {
			return core.Null(), toolErr
		}
		return core.Null(), &Error{Tool: t.name, Message: err.Error(), Code: CodeExecution, Err: err}
	}
	return value, nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	var b strings.Builder
	b.WriteString("parameter validation failed")
	for _, desc := range result.Errors() {
		b.WriteString("; ")
		b.WriteString(desc.String())
	}
	return b.String()
}
