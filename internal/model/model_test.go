package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDefaultPoolConfig(t *testing.T) {
	pc := DefaultPoolConfig()

	if pc.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want 25", pc.MaxOpenConns)
	}
	if pc.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want 5", pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want %v", pc.ConnMaxLifetime, 5*time.Minute)
	}
	if pc.ConnMaxIdleTime != 1*time.Minute {
		t.Errorf("ConnMaxIdleTime = %v, want %v", pc.ConnMaxIdleTime, 1*time.Minute)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"doctor", RoleDoctor, false},
		{"Nurse", RoleNurse, false},
		{"  patient ", RolePatient, false},
		{"ADMIN", RoleAdmin, false},
		{"system", RoleSystem, false},
		{"surgeon", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRole(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRole(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRolePrivileged(t *testing.T) {
	for _, r := range Roles {
		want := r == RoleAdmin || r == RoleSystem
		if got := r.Privileged(); got != want {
			t.Errorf("%s.Privileged() = %v, want %v", r, got, want)
		}
	}
}

func TestRoleListMentionsEveryRole(t *testing.T) {
	list := RoleList()
	for _, r := range Roles {
		if !strings.Contains(list, string(r)) {
			t.Errorf("RoleList() = %q, missing %q", list, r)
		}
	}
}

func TestCredentialJSONHidesSecretHash(t *testing.T) {
	c := Credential{
		ID:         1,
		ClientID:   "client_abc",
		SecretHash: "deadbeef",
		AppID:      "app-1",
		AppName:    "Bedside Tablet",
		Role:       RoleNurse,
		Scopes:     []string{"read:vitals"},
		IsActive:   true,
		RateLimit:  DefaultRateLimit,
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(b), "deadbeef") {
		t.Errorf("secret hash leaked into JSON: %s", b)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if m["role"] != "nurse" {
		t.Errorf("role = %v, want nurse", m["role"])
	}
	if _, ok := m["last_used"]; ok {
		t.Error("last_used should be omitted when nil")
	}
}

func TestPatientJSONHidesSSN(t *testing.T) {
	p := Patient{MRN: "MRN000001", FirstName: "Ada", LastName: "Lovelace", SSN: "123-45-6789"}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(b), "123-45-6789") {
		t.Errorf("SSN leaked into JSON: %s", b)
	}
	if p.FullName() != "Ada Lovelace" {
		t.Errorf("FullName() = %q, want %q", p.FullName(), "Ada Lovelace")
	}
}

func TestNewOperationError(t *testing.T) {
	e := NewOperationError("get_patient", "Patient with MRN X not found")
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"status":"error","message":"Patient with MRN X not found","tool":"get_patient"}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
