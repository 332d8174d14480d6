package schema

import (
	"testing"

	"github.com/expr-lang/expr"
	"github.com/google/go-cmp/cmp"

	"github.com/michalshavit1/salto/faults"
)

func automationSchema() *ResourceSchema {
	return &ResourceSchema{
		Kind:      "automation",
		List:      &ListConfig{URL: "/api/v2/automations", CursorField: "next_page"},
		DataField: "automations",
		IDFields:  []string{"title"},
		Deploy: map[Operation]*RequestTemplate{
			OperationAdd: {
				URL:           "/api/v2/automations",
				Method:        "POST",
				EnvelopeField: "automation",
			},
			OperationModify: {
				URL:           "/api/v2/automations/{id}",
				Method:        "PUT",
				EnvelopeField: "automation",
				URLFields:     map[string]string{"id": "id"},
			},
			OperationRemove: {
				URL:       "/api/v2/automations/{id}",
				Method:    "DELETE",
				URLFields: map[string]string{"id": "id"},
			},
		},
		Order: &OrderConfig{
			PositionField:      "position",
			SecondarySortField: "title",
			Reorder: &RequestTemplate{
				URL:           "/api/v2/automations/update_many",
				Method:        "PUT",
				EnvelopeField: "automations",
			},
		},
		ConfigurationObject: true,
	}
}

func TestNewRegistryLookup(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(&Document{Resources: []*ResourceSchema{automationSchema()}})
	if err != nil {
		t.Fatalf("registry build failed: %v", err)
	}

	rs, err := reg.Lookup("automation")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if rs.Kind != "automation" {
		t.Fatalf("unexpected schema: %q", rs.Kind)
	}

	if _, err := reg.Lookup("macro"); !faults.IsCategory(err, faults.NotFoundError) {
		t.Fatalf("expected not-found for unknown kind, got %v", err)
	}

	if _, ok := reg.LookupOrder(OrderKind("automation")); !ok {
		t.Fatalf("expected order kind mapping for automation")
	}
	if !reg.IsConfigurationObject("automation") {
		t.Fatalf("expected automation to be a configuration object")
	}
	if reg.IsConfigurationObject("macro") {
		t.Fatalf("unknown kinds are not configuration objects")
	}
}

func TestNewRegistryRejectsUnboundPlaceholder(t *testing.T) {
	t.Parallel()

	rs := automationSchema()
	rs.Deploy[OperationModify].URLFields = nil

	_, err := NewRegistry(&Document{Resources: []*ResourceSchema{rs}})
	if !faults.IsCategory(err, faults.ConfigurationError) {
		t.Fatalf("expected configuration error for unbound placeholder, got %v", err)
	}
}

func TestNewRegistryRejectsUnknownStandaloneKind(t *testing.T) {
	t.Parallel()

	rs := automationSchema()
	rs.Standalone = []StandaloneField{{Field: "variants", Kind: "automation_variant"}}

	_, err := NewRegistry(&Document{Resources: []*ResourceSchema{rs}})
	if !faults.IsCategory(err, faults.ConfigurationError) {
		t.Fatalf("expected configuration error for unknown standalone kind, got %v", err)
	}
}

func TestNewRegistryRejectsBadGuard(t *testing.T) {
	t.Parallel()

	rs := automationSchema()
	rs.Deploy[OperationAdd].Guard = "action ==" // incomplete expression

	_, err := NewRegistry(&Document{Resources: []*ResourceSchema{rs}})
	if !faults.IsCategory(err, faults.ConfigurationError) {
		t.Fatalf("expected configuration error for bad guard, got %v", err)
	}
}

func TestNewRegistryCompilesGuardOnce(t *testing.T) {
	t.Parallel()

	rs := automationSchema()
	rs.Deploy[OperationAdd].Guard = "values.active == true"

	reg, err := NewRegistry(&Document{Resources: []*ResourceSchema{rs}})
	if err != nil {
		t.Fatalf("registry build failed: %v", err)
	}
	loaded, err := reg.Lookup("automation")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	program := loaded.Deploy[OperationAdd].GuardProgram()
	if program == nil {
		t.Fatalf("expected the guard to be compiled at build time")
	}
	verdict, err := expr.Run(program, map[string]any{"values": map[string]any{"active": true}})
	if err != nil {
		t.Fatalf("compiled guard failed to evaluate: %v", err)
	}
	if verdict != true {
		t.Fatalf("unexpected guard verdict: %#v", verdict)
	}
	if loaded.Deploy[OperationModify].GuardProgram() != nil {
		t.Fatalf("templates without a guard must carry no program")
	}
}

func TestURLPlaceholders(t *testing.T) {
	t.Parallel()

	got := URLPlaceholders("/api/{group}/items/{id}/sub/{id}")
	if diff := cmp.Diff([]string{"group", "id"}, got); diff != "" {
		t.Fatalf("unexpected placeholders (-want +got):\n%s", diff)
	}
	if got := URLPlaceholders("/api/items"); got != nil {
		t.Fatalf("expected no placeholders, got %v", got)
	}
}

func TestCheckAPIVersion(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(&Document{
		MinAPIVersion: "2.5.0",
		Resources:     []*ResourceSchema{automationSchema()},
	})
	if err != nil {
		t.Fatalf("registry build failed: %v", err)
	}

	if err := reg.CheckAPIVersion("2.6.1"); err != nil {
		t.Fatalf("expected 2.6.1 to pass: %v", err)
	}
	if err := reg.CheckAPIVersion(""); err != nil {
		t.Fatalf("empty reported version must pass: %v", err)
	}
	if err := reg.CheckAPIVersion("2.4.0"); !faults.IsCategory(err, faults.ConfigurationError) {
		t.Fatalf("expected version gate failure, got %v", err)
	}
}

func TestParseDocument(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
minApiVersion: "2.0.0"
resources:
  - kind: automation
    list:
      url: /api/v2/automations
      cursorField: next_page
    dataField: automations
    idFields: [title]
    enums:
      active: ["true", "false"]
    deploy:
      add:
        url: /api/v2/automations
        method: POST
        envelopeField: automation
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Resources) != 1 || doc.Resources[0].Kind != "automation" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if _, err := NewRegistry(doc); err != nil {
		t.Fatalf("parsed document must build a registry: %v", err)
	}
}

func TestValidateListPage(t *testing.T) {
	t.Parallel()

	rs := automationSchema()

	if err := ValidateListPage(rs, map[string]any{"automations": []any{}}); err != nil {
		t.Fatalf("valid page rejected: %v", err)
	}
	if err := ValidateListPage(rs, map[string]any{"automations": map[string]any{"title": "x"}}); err != nil {
		t.Fatalf("singleton envelope rejected: %v", err)
	}

	err := ValidateListPage(rs, map[string]any{"items": []any{}})
	if !faults.IsCategory(err, faults.MalformedServiceResponse) {
		t.Fatalf("expected malformed response for missing envelope, got %v", err)
	}
	err = ValidateListPage(rs, "oops")
	if !faults.IsCategory(err, faults.MalformedServiceResponse) {
		t.Fatalf("expected malformed response for scalar page, got %v", err)
	}
	err = ValidateListPage(rs, map[string]any{"automations": "oops"})
	if !faults.IsCategory(err, faults.MalformedServiceResponse) {
		t.Fatalf("expected malformed response for scalar envelope, got %v", err)
	}
}
