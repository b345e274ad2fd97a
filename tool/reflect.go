package tool

import (
	"reflect"
	"strings"

	"github.com/hupe1980/agentrun/backend"
)

// ParametersFromStruct derives a parameter list from a struct type using
// reflection. This is a convenience for declaring function tools whose
// arguments already exist as a Go type:
//
//	type lookupArgs struct {
//		City  string `json:"city" description:"City name"`
//		Limit int    `json:"limit,omitempty" description:"Max results"`
//	}
//
//	params := tool.ParametersFromStruct(lookupArgs{})
//
// Field names follow the json tag, descriptions come from the description
// tag, and fields are required unless the json tag carries omitempty or the
// field is a pointer. Unexported fields and fields tagged json:"-" are
// skipped.
func ParametersFromStruct(structType any) []backend.Parameter {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var params []backend.Parameter
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			if tagName := strings.Split(jsonTag, ",")[0]; tagName != "" {
				name = tagName
			}
		}

		params = append(params, backend.Parameter{
			Name:        name,
			Description: field.Tag.Get("description"),
			Type:        parameterType(field.Type),
			Required:    !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr,
		})
	}
	return params
}

func parameterType(t reflect.Type) backend.ParameterType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return backend.ParameterTypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return backend.ParameterTypeNumber
	case reflect.Bool:
		return backend.ParameterTypeBoolean
	case reflect.Slice, reflect.Array:
		return backend.ParameterTypeArray
	default:
		return backend.ParameterTypeObject
	}
}

func hasOmitEmpty(jsonTag string) bool {
	for _, part := range strings.Split(jsonTag, ",")[1:] {
		if part == "omitempty" {
			return true
		}
	}
	return false
}
