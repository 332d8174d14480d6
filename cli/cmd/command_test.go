package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSchema = `
resources:
  - kind: automation
    list:
      url: /api/v2/automations
    dataField: automations
    idFields: [title]
    configurationObject: true
    deploy:
      add:
        url: /api/v2/automations
        method: post
        envelopeField: automation
  - kind: group
    list:
      url: /api/v2/groups
    dataField: groups
    idFields: [name]
    configurationObject: true
`

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfigFile(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	schemaPath := writeTestFile(t, dir, "schema.yaml", testSchema)
	return writeTestFile(t, dir, "config.yaml", fmt.Sprintf(`
adapter: zendesk
schemaFile: %s
service:
  baseUrl: %s
`, schemaPath, baseURL))
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestSchemaValidateCommand(t *testing.T) {
	t.Parallel()

	configPath := testConfigFile(t, "https://example.zendesk.com")
	out, _, err := runCommand(t, "schema", "validate", "--config", configPath)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "schema is valid: 2 resource kinds") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSchemaListCommand(t *testing.T) {
	t.Parallel()

	configPath := testConfigFile(t, "https://example.zendesk.com")
	out, _, err := runCommand(t, "schema", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "automation (configuration object)") || !strings.Contains(out, "group") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFetchCommandWritesElements(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/automations":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"automations": []any{map[string]any{"title": "Close stale", "position": 1}},
			})
		case "/api/v2/groups":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"groups": []any{map[string]any{"name": "Support"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	configPath := testConfigFile(t, server.URL)
	outDir := t.TempDir()
	out, _, err := runCommand(t, "fetch", "--config", configPath, "--out", outDir)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "wrote 2 elements") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "automation", "Close stale.yaml")); err != nil {
		t.Fatalf("element file missing: %v", err)
	}
}

func TestDeployDryRunRendersRequests(t *testing.T) {
	t.Parallel()

	configPath := testConfigFile(t, "https://example.zendesk.com")
	planPath := writeTestFile(t, t.TempDir(), "plan.yaml", `
changes:
  - action: add
    kind: automation
    after:
      title: Fresh
      active: true
`)
	out, _, err := runCommand(t, "deploy", "--config", configPath, "--plan", planPath, "--dry-run")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "POST /api/v2/automations") || !strings.Contains(out, `"title": "Fresh"`) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDeployCommandAppliesPlan(t *testing.T) {
	t.Parallel()

	var posted int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v2/automations" {
			posted++
			_ = json.NewEncoder(w).Encode(map[string]any{"automation": map[string]any{"id": 1}})
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	configPath := testConfigFile(t, server.URL)
	planPath := writeTestFile(t, t.TempDir(), "plan.yaml", `
changes:
  - action: add
    kind: automation
    after:
      title: Fresh
      active: true
`)
	out, _, err := runCommand(t, "deploy", "--config", configPath, "--plan", planPath)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if posted != 1 {
		t.Fatalf("expected one POST, got %d", posted)
	}
	if !strings.Contains(out, "applied 1, leftover 0, failed 0") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDeployRejectsMalformedPlan(t *testing.T) {
	t.Parallel()

	configPath := testConfigFile(t, "https://example.zendesk.com")
	planPath := writeTestFile(t, t.TempDir(), "plan.yaml", `
changes:
  - action: add
    kind: automation
`)
	_, _, err := runCommand(t, "deploy", "--config", configPath, "--plan", planPath)
	if err == nil || !strings.Contains(err.Error(), "after state") {
		t.Fatalf("expected plan rejection, got %v", err)
	}
}
