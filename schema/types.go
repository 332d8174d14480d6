package schema

import (
	"github.com/expr-lang/expr/vm"
)

// Declarative per-kind mapping rules. Loaded once at adapter initialization
// and read-only afterwards; every fetch and deploy shares the same tables.

// OrderMembersField holds the ordered member references on a synthetic
// order element; OrderElementKey is that element's natural key.
const (
	OrderMembersField = "items"
	OrderElementKey   = "order"
)

type Operation string

const (
	OperationAdd    Operation = "add"
	OperationModify Operation = "modify"
	OperationRemove Operation = "remove"
)

type Document struct {
	// MinAPIVersion gates the whole table against the service's reported
	// API version (semver).
	MinAPIVersion string            `yaml:"minApiVersion,omitempty" json:"minApiVersion,omitempty"`
	Resources     []*ResourceSchema `yaml:"resources" json:"resources"`
}

type ResourceSchema struct {
	Kind string `yaml:"kind" json:"kind"`

	// List describes the paginated listing endpoint.
	List *ListConfig `yaml:"list,omitempty" json:"list,omitempty"`

	// DataField is the dotted path of the data envelope inside a listing
	// page. DataJQ is an alternative jq expression for envelopes a plain
	// path cannot reach; when both are set, DataJQ wins.
	DataField string `yaml:"dataField,omitempty" json:"dataField,omitempty"`
	DataJQ    string `yaml:"dataJq,omitempty" json:"dataJq,omitempty"`

	// IDFields are walked in order; non-empty values are joined into the
	// element's natural key. FileNameFields fall back to IDFields.
	IDFields       []string `yaml:"idFields" json:"idFields"`
	FileNameFields []string `yaml:"fileNameFields,omitempty" json:"fileNameFields,omitempty"`

	OmitFields []OmitRule          `yaml:"omitFields,omitempty" json:"omitFields,omitempty"`
	Standalone []StandaloneField   `yaml:"standaloneFields,omitempty" json:"standaloneFields,omitempty"`
	Enums      map[string][]string `yaml:"enums,omitempty" json:"enums,omitempty"`

	Deploy map[Operation]*RequestTemplate `yaml:"deploy,omitempty" json:"deploy,omitempty"`

	// Order marks kinds whose relative order is a first-class server-side
	// attribute, deployed through a single batched reorder request.
	Order *OrderConfig `yaml:"order,omitempty" json:"order,omitempty"`

	// ConfigurationObject admits the kind into reference resolution.
	ConfigurationObject bool `yaml:"configurationObject,omitempty" json:"configurationObject,omitempty"`
}

type ListConfig struct {
	URL string `yaml:"url" json:"url"`
	// CursorField is the dotted path of the next-page cursor in a page
	// payload; empty means the listing is a single page.
	CursorField string `yaml:"cursorField,omitempty" json:"cursorField,omitempty"`
	// CursorParam is the query parameter carrying the cursor on follow-up
	// requests; defaults to the last segment of CursorField.
	CursorParam string `yaml:"cursorParam,omitempty" json:"cursorParam,omitempty"`
}

type OmitRule struct {
	Name string `yaml:"name" json:"name"`
	// Type restricts the rule to values of a declared kind
	// (string, number, bool, object, array); empty matches any.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

type StandaloneField struct {
	Field string `yaml:"field" json:"field"`
	Kind  string `yaml:"kind" json:"kind"`
}

type RequestTemplate struct {
	URL           string            `yaml:"url" json:"url"`
	Method        string            `yaml:"method" json:"method"`
	EnvelopeField string            `yaml:"envelopeField,omitempty" json:"envelopeField,omitempty"`
	URLFields     map[string]string `yaml:"urlFields,omitempty" json:"urlFields,omitempty"`
	// Guard is an optional boolean expression over {action, values};
	// changes it rejects pass through as leftovers.
	Guard string `yaml:"guard,omitempty" json:"guard,omitempty"`

	guard *vm.Program
}

// GuardProgram returns the guard compiled at registry build time, or nil
// when the template declares none.
func (t *RequestTemplate) GuardProgram() *vm.Program {
	if t == nil {
		return nil
	}
	return t.guard
}

type OrderConfig struct {
	PositionField      string           `yaml:"positionField" json:"positionField"`
	SecondarySortField string           `yaml:"secondarySortField,omitempty" json:"secondarySortField,omitempty"`
	Reorder            *RequestTemplate `yaml:"reorder" json:"reorder"`
	// MemberIDField names the member attribute carrying the service-side
	// integer identifier sent in reorder payloads; defaults to "id".
	MemberIDField string `yaml:"memberIdField,omitempty" json:"memberIdField,omitempty"`
	// Visible keeps the synthetic order element out of the hidden set.
	Visible bool `yaml:"visible,omitempty" json:"visible,omitempty"`
}
