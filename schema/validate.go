package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/unigraph"
)

// ValidationError is a single problem found in a definition or in a
// property map checked against a definition.
type ValidationError struct {
	Label    string
	Property string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("%s.%s: %s", e.Label, e.Property, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Label, e.Message)
}

// ValidationResult holds the results of a validation.
type ValidationResult struct {
	Errors []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationResult) add(label, prop, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Label: label, Property: prop, Message: fmt.Sprintf(format, args...)})
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	if !r.HasErrors() {
		return "ok"
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err converts the result into an error of the given kind, or nil.
func (r *ValidationResult) Err(kind unigraph.ErrorKind) error {
	if !r.HasErrors() {
		return nil
	}
	return unigraph.NewError(kind, r.String())
}

// ValidateVertexLabel checks a vertex label definition.
func ValidateVertexLabel(def VertexLabel) error {
	var r ValidationResult
	validateLabel(&r, def.Label, def.Properties)
	return r.Err(unigraph.KindSchemaViolation)
}

// ValidateEdgeLabel checks an edge label definition.
func ValidateEdgeLabel(def EdgeLabel) error {
	var r ValidationResult
	validateLabel(&r, def.Label, def.Properties)
	return r.Err(unigraph.KindSchemaViolation)
}

// ValidateIndex checks an index definition.
func ValidateIndex(def IndexDefinition) error {
	var r ValidationResult
	if def.Name == "" {
		r.add(def.Label, "", "index name is required")
	}
	if def.Label == "" {
		r.add(def.Name, "", "index label is required")
	}
	if len(def.Properties) == 0 {
		r.add(def.Label, "", "index %q has no properties", def.Name)
	}
	if def.Type == IndexGeospatial && len(def.Properties) != 1 {
		r.add(def.Label, "", "geospatial index %q must cover exactly one property", def.Name)
	}
	return r.Err(unigraph.KindSchemaViolation)
}

func validateLabel(r *ValidationResult, label string, props []PropertyDefinition) {
	if label == "" {
		r.add("<unnamed>", "", "label is required")
	}
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		switch {
		case p.Name == "":
			r.add(label, "", "property name is required")
		case seen[p.Name]:
			r.add(label, p.Name, "defined twice")
		case int(p.Type) >= len(propertyTypeNames):
			r.add(label, p.Name, "unknown type %d", p.Type)
		case p.Default != nil && !p.Type.Accepts(p.Default.Kind()):
			r.add(label, p.Name, "default of kind %s does not fit type %s", p.Default.Kind(), p.Type)
		}
		seen[p.Name] = true
	}
}

// Check validates a full property map against the label definition:
// required properties must be present and non-null, and declared properties
// must hold values of their declared type. Undeclared properties are allowed.
func (def *VertexLabel) Check(props unigraph.PropertyMap) error {
	return checkProps(def.Label, def.Properties, props, false)
}

// CheckPatch validates a partial update against the label definition.
// Required properties may be absent but not set to null.
func (def *VertexLabel) CheckPatch(props unigraph.PropertyMap) error {
	return checkProps(def.Label, def.Properties, props, true)
}

// Check validates a full property map against the edge label definition.
func (def *EdgeLabel) Check(props unigraph.PropertyMap) error {
	return checkProps(def.Label, def.Properties, props, false)
}

// CheckPatch validates a partial update against the edge label definition.
func (def *EdgeLabel) CheckPatch(props unigraph.PropertyMap) error {
	return checkProps(def.Label, def.Properties, props, true)
}

// AllowsEndpoints reports whether an edge may connect the vertex types.
func (def *EdgeLabel) AllowsEndpoints(from, to string) bool {
	return allowed(def.FromLabels, from) && allowed(def.ToLabels, to)
}

func allowed(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, l := range list {
		if l == v {
			return true
		}
	}
	return false
}

func checkProps(label string, defs []PropertyDefinition, props unigraph.PropertyMap, patch bool) error {
	var r ValidationResult
	for _, d := range defs {
		v, ok := props.Get(d.Name)
		switch {
		case !ok && d.Required && !patch && d.Default == nil:
			r.add(label, d.Name, "required property missing")
		case ok && v.IsNull() && d.Required:
			r.add(label, d.Name, "required property is null")
		case ok && !v.IsNull() && !d.Type.Accepts(v.Kind()):
			r.add(label, d.Name, "value of kind %s does not fit type %s", v.Kind(), d.Type)
		}
	}
	return r.Err(unigraph.KindSchemaViolation)
}

// ApplyDefaults returns props extended with the defaults of declared
// properties that are absent.
func ApplyDefaults(defs []PropertyDefinition, props unigraph.PropertyMap) unigraph.PropertyMap {
	out := props[:len(props):len(props)]
	for _, d := range defs {
		if d.Default != nil && !props.Has(d.Name) {
			out = append(out, unigraph.Property{Name: d.Name, Value: *d.Default})
		}
	}
	return out
}
