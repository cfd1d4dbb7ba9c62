package openapi

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

// TypeMapping is an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string
	Format string
}

var paramTypeToOpenAPI = map[string]TypeMapping{
	dispatch.TypeString:  {"string", ""},
	dispatch.TypeNumber:  {"number", "double"},
	dispatch.TypeInteger: {"integer", "int64"},
	dispatch.TypeArray:   {"array", ""},
}

// MapParam returns the OpenAPI type for an operation parameter. Date
// parameters get the date format.
func MapParam(p dispatch.Param) TypeMapping {
	m, ok := paramTypeToOpenAPI[p.Type]
	if !ok {
		return TypeMapping{"string", ""}
	}
	if m.Type == "string" && (p.Name == "dob" || p.Name == "date" || strings.HasSuffix(p.Name, "_date")) {
		m.Format = "date"
	}
	return m
}

func paramSchema(p dispatch.Param) *openapi3.Schema {
	m := MapParam(p)
	s := &openapi3.Schema{
		Type:        &openapi3.Types{m.Type},
		Format:      m.Format,
		Description: p.Description,
	}
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	}
	return s
}

// argumentsSchema builds the object schema for an operation's arguments.
func argumentsSchema(def dispatch.Definition) *openapi3.Schema {
	s := &openapi3.Schema{
		Type:        &openapi3.Types{"object"},
		Description: def.Description,
		Properties:  openapi3.Schemas{},
	}
	for _, p := range def.Params {
		s.Properties[p.Name] = &openapi3.SchemaRef{Value: paramSchema(p)}
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// schemaName turns an operation name into a component schema name:
// "get_patient" becomes "GetPatientArguments".
func schemaName(op string) string {
	var b strings.Builder
	for _, part := range strings.Split(op, "_") {
		b.WriteString(capitalize(part))
	}
	b.WriteString("Arguments")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
