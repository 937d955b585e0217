package arangodb

import (
	"strconv"
	"strings"

	"github.com/syssam/unigraph"
)

// maxLimit is the LIMIT count used when only an offset is given.
const maxLimit = 1<<53 - 1

// query accumulates AQL filter lines and bind variables.
type query struct {
	lines []string
	vars  map[string]any
	n     int
}

func newQuery() *query {
	return &query{vars: make(map[string]any)}
}

// bind stores a value under a fresh name and returns its reference.
func (q *query) bind(v any) string {
	name := "p" + strconv.Itoa(q.n)
	q.n++
	q.vars[name] = v
	return "@" + name
}

// collection binds a collection name and returns its reference.
func (q *query) collection(name string) string {
	ref := "c" + strconv.Itoa(q.n)
	q.n++
	q.vars["@"+ref] = name
	return "@@" + ref
}

// collections binds a list of collection names for traversals.
func (q *query) collections(names []string) string {
	refs := make([]string, len(names))
	for i, n := range names {
		refs[i] = q.collection(n)
	}
	return strings.Join(refs, ", ")
}

func (q *query) set(name string, v any) {
	q.vars[name] = v
}

// attr returns a bound attribute access such as d.@p0.
func (q *query) attr(variable, name string) string {
	return variable + "." + q.bind(name)
}

func (q *query) and(cond string) {
	q.lines = append(q.lines, "FILTER "+cond)
}

// filter adds one condition on the attributes of variable. Missing
// attributes are null in AQL and match only the negated operators.
// Ordering operators compare values of the same JSON type only.
func (q *query) filter(variable string, c unigraph.FilterCondition) error {
	if err := c.Validate(); err != nil {
		return err
	}
	a := q.attr(variable, c.Property)
	if c.Operator.IsList() {
		list, err := attrs(c.Values)
		if err != nil {
			return err
		}
		ref := q.bind(list)
		if c.Operator == unigraph.OpIn {
			q.and(a + " IN " + ref)
		} else {
			q.and(a + " NOT IN " + ref)
		}
		return nil
	}
	x, err := attr(c.Value)
	if err != nil {
		return err
	}
	ref := q.bind(x)
	switch c.Operator {
	case unigraph.OpEqual:
		q.and(a + " == " + ref)
	case unigraph.OpNotEqual:
		q.and(a + " != " + ref)
	case unigraph.OpLessThan:
		q.and(sameType(a, ref) + a + " < " + ref)
	case unigraph.OpLessThanOrEqual:
		q.and(sameType(a, ref) + a + " <= " + ref)
	case unigraph.OpGreaterThan:
		q.and(sameType(a, ref) + a + " > " + ref)
	case unigraph.OpGreaterThanOrEqual:
		q.and(sameType(a, ref) + a + " >= " + ref)
	case unigraph.OpContains:
		q.and("IS_STRING(" + a + ") AND CONTAINS(" + a + ", " + ref + ")")
	case unigraph.OpStartsWith:
		q.and("IS_STRING(" + a + ") AND STARTS_WITH(" + a + ", " + ref + ")")
	case unigraph.OpEndsWith:
		q.and("IS_STRING(" + a + ") AND RIGHT(" + a + ", LENGTH(" + ref + ")) == " + ref)
	case unigraph.OpRegexMatch:
		q.and("IS_STRING(" + a + ") AND REGEX_TEST(" + a + ", " + ref + ")")
	}
	return nil
}

func sameType(a, ref string) string {
	return "TYPENAME(" + a + ") == TYPENAME(" + ref + ") AND "
}

func (q *query) filters(variable string, fs []unigraph.FilterCondition) error {
	for _, f := range fs {
		if err := q.filter(variable, f); err != nil {
			return err
		}
	}
	return nil
}

// page appends SORT and LIMIT lines.
func (q *query) page(variable string, sort []unigraph.SortSpec, offset, limit int) {
	if len(sort) > 0 {
		keys := make([]string, len(sort))
		for i, s := range sort {
			dir := " DESC"
			if s.Ascending {
				dir = " ASC"
			}
			keys[i] = q.attr(variable, s.Property) + dir
		}
		q.lines = append(q.lines, "SORT "+strings.Join(keys, ", "))
	}
	if offset <= 0 && limit <= 0 {
		return
	}
	if limit <= 0 {
		limit = maxLimit
	}
	q.lines = append(q.lines, "LIMIT "+q.bind(int64(max(offset, 0)))+", "+q.bind(int64(limit)))
}

// body joins the accumulated lines.
func (q *query) body() string {
	if len(q.lines) == 0 {
		return ""
	}
	return " " + strings.Join(q.lines, " ")
}

// source renders the iteration source over the named collections: the
// collection itself, or a UNION of subqueries for several.
func (q *query) source(names []string) string {
	if len(names) == 1 {
		return q.collection(names[0])
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "(FOR x IN " + q.collection(n) + " RETURN x)"
	}
	return "UNION(" + strings.Join(parts, ", ") + ")"
}

// direction returns the traversal keyword.
func direction(d unigraph.Direction) string {
	switch d {
	case unigraph.Incoming:
		return "INBOUND"
	case unigraph.Both:
		return "ANY"
	}
	return "OUTBOUND"
}
