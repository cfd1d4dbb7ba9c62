package openapi

import (
	"encoding/json"
	"testing"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

func TestGenerate_Info(t *testing.T) {
	doc := Generate("1.2.3", "http://localhost:8000")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want %q", doc.OpenAPI, "3.1.0")
	}
	if doc.Info == nil || doc.Info.Title != "ehrgate" || doc.Info.Version != "1.2.3" {
		t.Errorf("Info = %+v", doc.Info)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8000" {
		t.Errorf("Servers not set correctly")
	}
}

func TestGenerate_Paths(t *testing.T) {
	doc := Generate("dev", "http://localhost:8000")

	for _, path := range []string{
		"/", "/health", "/healthz", "/readyz", "/metrics", "/tools",
		"/call", "/authenticate", "/sse", "/ws", "/mcp", "/openapi.json",
	} {
		if doc.Paths.Value(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}

	tools := doc.Paths.Value("/tools")
	if tools.Get == nil || tools.Post == nil {
		t.Error("/tools should accept GET and POST")
	}
	auth := doc.Paths.Value("/authenticate").Post
	if auth == nil || auth.Responses.Value("401") == nil || auth.Responses.Value("400") == nil {
		t.Error("/authenticate should document 400 and 401")
	}
	if doc.Paths.Value("/sse").Get.Responses.Value("200").Value.Content.Get("text/event-stream") == nil {
		t.Error("/sse should produce text/event-stream")
	}
}

func TestGenerate_OperationSchemas(t *testing.T) {
	doc := Generate("dev", "http://localhost:8000")

	for _, def := range dispatch.Definitions() {
		ref, ok := doc.Components.Schemas[schemaName(def.Name)]
		if !ok {
			t.Errorf("missing schema for %s", def.Name)
			continue
		}
		if len(ref.Value.Properties) != len(def.Params) {
			t.Errorf("%s: %d properties, want %d", def.Name, len(ref.Value.Properties), len(def.Params))
		}
	}

	args := doc.Components.Schemas["CreatePatientArguments"].Value
	if args.Properties["dob"].Value.Format != "date" {
		t.Errorf("dob format = %q", args.Properties["dob"].Value.Format)
	}
	want := []string{"access_token", "first_name", "last_name", "dob"}
	if len(args.Required) != len(want) {
		t.Fatalf("required = %v", args.Required)
	}
	for i := range want {
		if args.Required[i] != want[i] {
			t.Errorf("required[%d] = %q, want %q", i, args.Required[i], want[i])
		}
	}

	tool := doc.Components.Schemas["CallRequest"].Value.Properties["tool"].Value
	if len(tool.Enum) != len(dispatch.Definitions()) {
		t.Errorf("tool enum has %d entries", len(tool.Enum))
	}
}

func TestGenerate_MarshalsToJSON(t *testing.T) {
	b, err := json.Marshal(Generate("dev", "http://localhost:8000"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	schemes := out["components"].(map[string]interface{})["securitySchemes"].(map[string]interface{})
	if _, ok := schemes["bearerAuth"]; !ok {
		t.Error("bearerAuth security scheme missing")
	}
}

func TestMapParam(t *testing.T) {
	tests := []struct {
		param dispatch.Param
		want  TypeMapping
	}{
		{dispatch.Param{Name: "mrn", Type: dispatch.TypeString}, TypeMapping{"string", ""}},
		{dispatch.Param{Name: "date", Type: dispatch.TypeString}, TypeMapping{"string", "date"}},
		{dispatch.Param{Name: "refills", Type: dispatch.TypeInteger}, TypeMapping{"integer", "int64"}},
		{dispatch.Param{Name: "weight", Type: dispatch.TypeNumber}, TypeMapping{"number", "double"}},
		{dispatch.Param{Name: "scopes", Type: dispatch.TypeArray}, TypeMapping{"array", ""}},
		{dispatch.Param{Name: "x", Type: "mystery"}, TypeMapping{"string", ""}},
	}
	for _, tt := range tests {
		if got := MapParam(tt.param); got != tt.want {
			t.Errorf("MapParam(%+v) = %+v, want %+v", tt.param, got, tt.want)
		}
	}
}

func TestSchemaName(t *testing.T) {
	tests := map[string]string{
		"get_patient":          "GetPatientArguments",
		"schedule_appointment": "ScheduleAppointmentArguments",
		"authenticate":         "AuthenticateArguments",
	}
	for in, want := range tests {
		if got := schemaName(in); got != want {
			t.Errorf("schemaName(%q) = %q, want %q", in, got, want)
		}
	}
}
