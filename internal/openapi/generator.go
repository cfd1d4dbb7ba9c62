// Package openapi describes the gateway's HTTP surface as an OpenAPI 3.1
// document.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

// Generate builds the document for the gateway at baseURL.
func Generate(version, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "ehrgate",
			Description: "Authenticated access to patient records for AI assistants and client applications.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addSharedSchemas(doc)

	names := make([]interface{}, 0, len(dispatch.Definitions()))
	for _, def := range dispatch.Definitions() {
		doc.Components.Schemas[schemaName(def.Name)] = &openapi3.SchemaRef{Value: argumentsSchema(def)}
		names = append(names, def.Name)
	}
	doc.Components.Schemas["CallRequest"].Value.Properties["tool"].Value.Enum = names

	doc.Paths = openapi3.NewPaths()
	addGatewayPaths(doc)
	return doc
}

func addSharedSchemas(doc *openapi3.T) {
	str := func() *openapi3.SchemaRef { return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()} }
	obj := func(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   required,
		}}
	}

	doc.Components.Schemas["ErrorResponse"] = obj(openapi3.Schemas{
		"error": obj(openapi3.Schemas{
			"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"message": str(),
			"context": &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()},
		}),
	})
	doc.Components.Schemas["OperationError"] = obj(openapi3.Schemas{
		"status":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: []interface{}{"error"}}},
		"message": str(),
		"tool":    str(),
	}, "status", "message", "tool")
	doc.Components.Schemas["CallRequest"] = obj(openapi3.Schemas{
		"tool":      str(),
		"arguments": &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()},
	}, "tool")
	doc.Components.Schemas["AuthenticateRequest"] = obj(openapi3.Schemas{
		"client_id":     str(),
		"client_secret": str(),
		"app_id":        str(),
	}, "client_id", "client_secret", "app_id")
	doc.Components.Schemas["TokenResponse"] = obj(openapi3.Schemas{
		"status":       str(),
		"access_token": str(),
		"token_type":   str(),
		"expires_in":   &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()},
		"scope":        str(),
		"client_info": obj(openapi3.Schemas{
			"client_id": str(),
			"app_id":    str(),
			"app_name":  str(),
			"role":      str(),
		}),
	})
	doc.Components.Schemas["ToolList"] = obj(openapi3.Schemas{
		"tools": &openapi3.SchemaRef{Value: openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema())},
	})
	doc.Components.Schemas["Status"] = obj(openapi3.Schemas{
		"status": str(),
	})
}

func addGatewayPaths(doc *openapi3.T) {
	ref := func(name string) *openapi3.SchemaRef {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
	}
	object := &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}

	doc.Paths.Set("/", &openapi3.PathItem{
		Get: simpleOperation("System", "serverInfo", "Server name, version, and endpoints.", object),
	})
	doc.Paths.Set("/health", &openapi3.PathItem{
		Get: simpleOperation("System", "health", "Gateway health.", ref("Status")),
	})
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: simpleOperation("System", "liveness", "Liveness probe.", ref("Status")),
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: withResponse(simpleOperation("System", "readiness", "Readiness probe; pings the database.", ref("Status")),
			"503", "Database unreachable", ref("Status")),
	})
	doc.Paths.Set("/metrics", &openapi3.PathItem{
		Get: textOperation("System", "metrics", "Prometheus metrics."),
	})

	listTools := simpleOperation("Tools", "listTools", "Catalog of callable operations with input schemas.", ref("ToolList"))
	listToolsPost := simpleOperation("Tools", "listToolsPost", "Catalog of callable operations with input schemas.", ref("ToolList"))
	doc.Paths.Set("/tools", &openapi3.PathItem{Get: listTools, Post: listToolsPost})

	call := simpleOperation("Tools", "callTool",
		"Invoke an operation. A bearer token is used when arguments.access_token is absent.", object)
	call.RequestBody = jsonBody("Tool name and arguments.", ref("CallRequest"))
	call.Security = &openapi3.SecurityRequirements{{}, {"bearerAuth": {}}}
	withResponse(call, "400", "Invalid call", ref("OperationError"))
	withResponse(call, "401", "Missing or invalid token", ref("OperationError"))
	withResponse(call, "403", "Scope not granted", ref("OperationError"))
	withResponse(call, "404", "Unknown tool or record", ref("OperationError"))
	withResponse(call, "409", "Conflict", ref("OperationError"))
	doc.Paths.Set("/call", &openapi3.PathItem{Post: call})

	auth := simpleOperation("Auth", "authenticate", "Exchange client credentials for an access token.", ref("TokenResponse"))
	auth.RequestBody = jsonBody("Client credentials.", ref("AuthenticateRequest"))
	withResponse(auth, "400", "Missing fields", ref("ErrorResponse"))
	withResponse(auth, "401", "Invalid client credentials", ref("ErrorResponse"))
	doc.Paths.Set("/authenticate", &openapi3.PathItem{Post: auth})

	doc.Paths.Set("/sse", &openapi3.PathItem{
		Get: eventStreamOperation("Streams", "events",
			"Server-push stream: endpoint and tools/list events, then a ping every heartbeat interval."),
	})
	doc.Paths.Set("/ws", &openapi3.PathItem{
		Get: withResponse(textOperation("Streams", "socket", "JSON-RPC over WebSocket."),
			"101", "Switching protocols", nil),
	})

	mcp := simpleOperation("MCP", "mcp", "Model Context Protocol over streamable HTTP.", object)
	mcp.RequestBody = jsonBody("JSON-RPC request.", object)
	doc.Paths.Set("/mcp", &openapi3.PathItem{Post: mcp})

	doc.Paths.Set("/openapi.json", &openapi3.PathItem{
		Get: simpleOperation("System", "openapi", "This document.", object),
	})
}

func simpleOperation(tag, id, summary string, schema *openapi3.SchemaRef) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		OperationID: id,
		Summary:     summary,
		Responses:   newResponses("200", "OK", "application/json", schema),
	}
}

func textOperation(tag, id, summary string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		OperationID: id,
		Summary:     summary,
		Responses:   newResponses("200", "OK", "text/plain", &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}),
	}
}

func eventStreamOperation(tag, id, summary string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		OperationID: id,
		Summary:     summary,
		Responses:   newResponses("200", "Event stream", "text/event-stream", &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}),
	}
}

func jsonBody(description string, schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

// newResponses builds a Responses map with a single success response.
func newResponses(statusCode, description, mediaType string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()
	desc := description
	resp := &openapi3.Response{Description: &desc}
	if schema != nil {
		resp.Content = openapi3.Content{mediaType: &openapi3.MediaType{Schema: schema}}
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: resp})
	return responses
}

func withResponse(op *openapi3.Operation, statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Operation {
	desc := description
	resp := &openapi3.Response{Description: &desc}
	if schema != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	op.Responses.Set(statusCode, &openapi3.ResponseRef{Value: resp})
	return op
}
