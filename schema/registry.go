package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/michalshavit1/salto/faults"
)

// OrderKindSuffix names the synthetic ordered-collection kind derived from a
// member kind, e.g. "automation" -> "automation_order".
const OrderKindSuffix = "_order"

func OrderKind(memberKind string) string {
	return memberKind + OrderKindSuffix
}

// Registry is the read-only lookup surface over the schema tables. Built
// once; safe to share across concurrently in-flight fetches and deploys.
type Registry struct {
	schemas    map[string]*ResourceSchema
	orderKinds map[string]*ResourceSchema
	minVersion *semver.Version
}

func NewRegistry(doc *Document) (*Registry, error) {
	if doc == nil {
		return nil, faults.NewTypedError(faults.ConfigurationError, "schema document is required", nil)
	}

	reg := &Registry{
		schemas:    make(map[string]*ResourceSchema, len(doc.Resources)),
		orderKinds: make(map[string]*ResourceSchema),
	}

	if raw := strings.TrimSpace(doc.MinAPIVersion); raw != "" {
		version, err := semver.NewVersion(raw)
		if err != nil {
			return nil, faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("invalid minApiVersion %q", raw), err)
		}
		reg.minVersion = version
	}

	for _, rs := range doc.Resources {
		if rs == nil {
			continue
		}
		kind := strings.TrimSpace(rs.Kind)
		if kind == "" {
			return nil, faults.NewTypedError(faults.ConfigurationError, "resource schema without kind", nil)
		}
		if _, exists := reg.schemas[kind]; exists {
			return nil, faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("duplicate resource kind %q", kind), nil)
		}
		if err := validateSchema(rs); err != nil {
			return nil, err
		}
		reg.schemas[kind] = rs
		if rs.Order != nil {
			reg.orderKinds[OrderKind(kind)] = rs
		}
	}

	// Standalone declarations must point at kinds the registry can map.
	for kind, rs := range reg.schemas {
		for _, standalone := range rs.Standalone {
			if _, ok := reg.schemas[standalone.Kind]; !ok {
				return nil, faults.NewTypedError(faults.ConfigurationError,
					fmt.Sprintf("kind %q declares standalone field %q of unknown kind %q",
						kind, standalone.Field, standalone.Kind), nil)
			}
		}
	}

	return reg, nil
}

func validateSchema(rs *ResourceSchema) error {
	if len(rs.IDFields) == 0 {
		return faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("kind %q has no identifier fields", rs.Kind), nil)
	}
	for op, tmpl := range rs.Deploy {
		switch op {
		case OperationAdd, OperationModify, OperationRemove:
		default:
			return faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("kind %q has deploy template for unknown operation %q", rs.Kind, op), nil)
		}
		if err := validateTemplate(rs.Kind, string(op), tmpl); err != nil {
			return err
		}
	}
	if rs.Order != nil {
		if strings.TrimSpace(rs.Order.PositionField) == "" {
			return faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("kind %q order config has no position field", rs.Kind), nil)
		}
		if rs.Order.Reorder == nil {
			return faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("kind %q order config has no reorder template", rs.Kind), nil)
		}
		if err := validateTemplate(rs.Kind, "reorder", rs.Order.Reorder); err != nil {
			return err
		}
	}
	return nil
}

func validateTemplate(kind, op string, tmpl *RequestTemplate) error {
	if tmpl == nil {
		return faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("kind %q has an empty %s template", kind, op), nil)
	}
	if strings.TrimSpace(tmpl.URL) == "" {
		return faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("kind %q %s template has no url", kind, op), nil)
	}
	if strings.TrimSpace(tmpl.Method) == "" {
		return faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("kind %q %s template has no method", kind, op), nil)
	}
	for _, placeholder := range URLPlaceholders(tmpl.URL) {
		source, ok := tmpl.URLFields[placeholder]
		if !ok || strings.TrimSpace(source) == "" {
			return faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("kind %q %s template placeholder %q has no source field", kind, op, placeholder), nil)
		}
	}
	if guard := strings.TrimSpace(tmpl.Guard); guard != "" {
		program, err := expr.Compile(guard, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("kind %q %s template guard does not compile", kind, op), err)
		}
		tmpl.guard = program
	}
	return nil
}

// URLPlaceholders extracts {name} placeholders from a URL template, in order
// of appearance, deduplicated.
func URLPlaceholders(url string) []string {
	var names []string
	seen := make(map[string]struct{})
	for {
		start := strings.IndexByte(url, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(url[start:], '}')
		if end < 0 {
			return names
		}
		name := strings.TrimSpace(url[start+1 : start+end])
		if name != "" {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
		url = url[start+end+1:]
	}
}

func (r *Registry) Lookup(kind string) (*ResourceSchema, error) {
	rs, ok := r.schemas[kind]
	if !ok {
		return nil, faults.NewTypedError(faults.NotFoundError,
			fmt.Sprintf("no schema for resource kind %q", kind), nil)
	}
	return rs, nil
}

// LookupOrder maps a synthetic ordered-collection kind back to the member
// kind's schema.
func (r *Registry) LookupOrder(orderKind string) (*ResourceSchema, bool) {
	rs, ok := r.orderKinds[orderKind]
	return rs, ok
}

func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.schemas))
	for kind := range r.schemas {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// IsConfigurationObject is the predicate reference resolution scans with.
func (r *Registry) IsConfigurationObject(kind string) bool {
	rs, ok := r.schemas[kind]
	return ok && rs.ConfigurationObject
}

// CheckAPIVersion compares the service's reported API version against the
// table's minimum. An empty reported version is accepted: not every service
// exposes one.
func (r *Registry) CheckAPIVersion(reported string) error {
	if r.minVersion == nil || strings.TrimSpace(reported) == "" {
		return nil
	}
	version, err := semver.NewVersion(strings.TrimSpace(reported))
	if err != nil {
		return faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("service reported unparsable API version %q", reported), err)
	}
	if version.LessThan(r.minVersion) {
		return faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("service API version %s is below required %s", version, r.minVersion), nil)
	}
	return nil
}

func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, faults.NewTypedError(faults.ConfigurationError, "failed to parse schema document", err)
	}
	return &doc, nil
}

func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("failed to read schema file %q", path), err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(doc)
}
