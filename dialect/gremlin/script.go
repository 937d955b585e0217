package gremlin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/unigraph"
)

// script is a Groovy script whose literals are all passed as bindings.
type script struct {
	lines    []string
	bindings map[string]any
	n        int
}

func newScript() *script {
	return &script{bindings: make(map[string]any)}
}

// bind adds an already encoded binding and returns its name.
func (s *script) bind(x any) string {
	name := "p" + strconv.Itoa(s.n)
	s.n++
	s.bindings[name] = x
	return name
}

// value binds a property value.
func (s *script) value(v unigraph.Value) (string, error) {
	x, err := encode(v)
	if err != nil {
		return "", err
	}
	return s.bind(x), nil
}

// values binds a list of property values.
func (s *script) values(vs []unigraph.Value) (string, error) {
	xs := make([]any, len(vs))
	for i, v := range vs {
		x, err := encode(v)
		if err != nil {
			return "", err
		}
		xs[i] = x
	}
	return s.bind(typed{"g:List", xs}), nil
}

func (s *script) id(id unigraph.ElementID) string {
	return s.bind(encodeID(id))
}

// names binds strings as a comma separated argument list.
func (s *script) names(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = s.bind(n)
	}
	return strings.Join(out, ", ")
}

func (s *script) add(format string, args ...any) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

// mark and reset let a batch undo the lines it appended.
type mark struct{ lines, n int }

func (s *script) mark() mark { return mark{len(s.lines), s.n} }

func (s *script) reset(m mark) {
	s.lines = s.lines[:m.lines]
	for i := m.n; i < s.n; i++ {
		delete(s.bindings, "p"+strconv.Itoa(i))
	}
	s.n = m.n
}

func (s *script) String() string { return strings.Join(s.lines, "\n") }

// properties renders property steps for props. Vertex properties are
// written with single cardinality.
func (s *script) properties(props unigraph.PropertyMap, vertex bool) (string, error) {
	var b strings.Builder
	for _, p := range props {
		if p.Value.IsNull() {
			continue
		}
		k := s.bind(p.Name)
		v, err := s.value(p.Value)
		if err != nil {
			return "", fmt.Errorf("property %q: %w", p.Name, err)
		}
		if vertex {
			fmt.Fprintf(&b, ".property(single, %s, %s)", k, v)
		} else {
			fmt.Fprintf(&b, ".property(%s, %s)", k, v)
		}
	}
	return b.String(), nil
}

// removals renders a step dropping the properties that props sets to null.
func (s *script) removals(props unigraph.PropertyMap) string {
	var names []string
	for _, p := range props {
		if p.Value.IsNull() {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return ".sideEffect(properties(" + s.names(names) + ").drop())"
}

// filter renders one condition as a has step. Negations use not() so that
// elements without the property match.
func (s *script) filter(c unigraph.FilterCondition) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	key := s.bind(c.Property)
	if c.Operator.IsList() {
		vs, err := s.values(c.Values)
		if err != nil {
			return "", err
		}
		if c.Operator == unigraph.OpNotIn {
			return fmt.Sprintf(".not(has(%s, within(%s)))", key, vs), nil
		}
		return fmt.Sprintf(".has(%s, within(%s))", key, vs), nil
	}
	v, err := s.value(c.Value)
	if err != nil {
		return "", err
	}
	var pred string
	switch c.Operator {
	case unigraph.OpEqual:
		pred = "eq"
	case unigraph.OpNotEqual:
		return fmt.Sprintf(".not(has(%s, eq(%s)))", key, v), nil
	case unigraph.OpLessThan:
		pred = "lt"
	case unigraph.OpLessThanOrEqual:
		pred = "lte"
	case unigraph.OpGreaterThan:
		pred = "gt"
	case unigraph.OpGreaterThanOrEqual:
		pred = "gte"
	case unigraph.OpContains:
		pred = "containing"
	case unigraph.OpStartsWith:
		pred = "startingWith"
	case unigraph.OpEndsWith:
		pred = "endingWith"
	case unigraph.OpRegexMatch:
		pred = "regex"
	default:
		return "", unigraph.Errorf(unigraph.KindInvalidQuery, "gremlin: unsupported operator %s", c.Operator)
	}
	return fmt.Sprintf(".has(%s, %s(%s))", key, pred, v), nil
}

func (s *script) filters(conds []unigraph.FilterCondition) (string, error) {
	var b strings.Builder
	for _, c := range conds {
		f, err := s.filter(c)
		if err != nil {
			return "", err
		}
		b.WriteString(f)
	}
	return b.String(), nil
}

// page renders a range step. Sorting is done by the caller, since order()
// drops elements missing the key.
func (s *script) page(offset, limit int) string {
	switch {
	case limit > 0:
		return fmt.Sprintf(".range(%s, %s)", s.bind(typed{"g:Int64", offset}), s.bind(typed{"g:Int64", offset + limit}))
	case offset > 0:
		return fmt.Sprintf(".skip(%s)", s.bind(typed{"g:Int64", offset}))
	}
	return ""
}

// edgeStep returns the incident edge step of d, e.g. outE(p0, p1).
func (s *script) edgeStep(d unigraph.Direction, types []string) string {
	step := "outE"
	switch d {
	case unigraph.Incoming:
		step = "inE"
	case unigraph.Both:
		step = "bothE"
	}
	return step + "(" + s.names(types) + ")"
}

// walkStep returns one hop in direction d, edge included.
func (s *script) walkStep(d unigraph.Direction, types []string) string {
	switch d {
	case unigraph.Incoming:
		return s.edgeStep(d, types) + ".outV()"
	case unigraph.Both:
		return s.edgeStep(d, types) + ".otherV()"
	}
	return s.edgeStep(d, types) + ".inV()"
}
