package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/ehrgate/ehrgate/internal/dispatch"
)

// run executes the root command with args against a fresh viper instance.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile, devMode = "", false

	var out bytes.Buffer
	cmd := newRootCmd("1.2.3", "abc123", "2026-10-01")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a config pointing at a fresh SQLite file.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ehrgate.yaml")
	body := "database:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "ehr.db") + "\n" +
		"auth:\n  jwt_secret: cli-test-signing-key\n" +
		"logging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]interface{}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info["version"] != "1.2.3" || info["commit"] != "abc123" {
		t.Errorf("info = %v", info)
	}
	if n, _ := info["operations"].(float64); int(n) != len(dispatch.Definitions()) {
		t.Errorf("operations = %v, want %d", info["operations"], len(dispatch.Definitions()))
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ehrgate.yaml")

	if _, err := run(t, "config", "init", "--path", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := run(t, "config", "init", "--path", path); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := run(t, "config", "init", "--path", path, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "socket_port: 7777") {
		t.Errorf("config file = %q, %v", data, err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "cli-test-signing-key") {
		t.Errorf("signing key printed:\n%s", out)
	}
	if !strings.Contains(out, "socket_port: 7777") {
		t.Errorf("defaults missing:\n%s", out)
	}
}

func TestOpenAPI(t *testing.T) {
	out, err := run(t, "openapi", "--base-url", "https://ehr.example.com")
	if err != nil {
		t.Fatalf("openapi: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v", doc["openapi"])
	}
	if !strings.Contains(out, "https://ehr.example.com") {
		t.Error("base URL missing from servers")
	}
}

func TestClientLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "client", "register",
		"--app-id", "copilot", "--app-name", "Copilot Agent", "--role", "doctor",
		"--scope", "read:patients", "--scope", "read:medications", "--json")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var cred struct {
		ClientID     string   `json:"client_id"`
		ClientSecret string   `json:"client_secret"`
		Scopes       []string `json:"scopes"`
	}
	if err := json.Unmarshal([]byte(out), &cred); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if cred.ClientID == "" || cred.ClientSecret == "" || len(cred.Scopes) != 2 {
		t.Fatalf("credential = %+v", cred)
	}

	out, err = run(t, "--config", cfg, "client", "list")
	if err != nil || !strings.Contains(out, cred.ClientID) || strings.Contains(out, cred.ClientSecret) {
		t.Errorf("list = %q, %v", out, err)
	}

	out, err = run(t, "--config", cfg, "token", "--client-id", cred.ClientID, "--app-id", "copilot", "--secret", cred.ClientSecret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(out), &tok); err != nil || tok.AccessToken == "" {
		t.Fatalf("token output = %q, %v", out, err)
	}

	out, err = run(t, "--config", cfg, "token", "verify", tok.AccessToken)
	if err != nil || !strings.Contains(out, `"valid": true`) {
		t.Errorf("verify = %q, %v", out, err)
	}
	if _, err := run(t, "--config", cfg, "token", "verify", "not-a-token"); err == nil {
		t.Error("verify of garbage should fail")
	}

	if _, err := run(t, "--config", cfg, "client", "deactivate", cred.ClientID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := run(t, "--config", cfg, "token", "--client-id", cred.ClientID, "--app-id", "copilot", "--secret", cred.ClientSecret); err == nil {
		t.Error("token for a deactivated client should fail")
	}
	if _, err := run(t, "--config", cfg, "client", "activate", cred.ClientID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := run(t, "--config", cfg, "client", "activate", "ehr_missing"); err == nil {
		t.Error("activate of unknown client should fail")
	}
}

func TestTokenReadsSecretFromStdin(t *testing.T) {
	got, err := readSecret(strings.NewReader("s3cret\n"), &bytes.Buffer{})
	if err != nil || got != "s3cret" {
		t.Errorf("readSecret = %q, %v", got, err)
	}
	if _, err := readSecret(strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Error("empty stdin should fail")
	}
}

func TestSeedDemo(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "seed", "--no-clients", "--json")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var sum struct {
		Patients  int `json:"patients"`
		Providers int `json:"providers"`
	}
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if sum.Patients != 2 || sum.Providers != 3 {
		t.Errorf("summary = %+v", sum)
	}

	if out, err := run(t, "--config", cfg, "db", "ping"); err != nil || !strings.Contains(out, "sqlite reachable") {
		t.Errorf("db ping = %q, %v", out, err)
	}
}
