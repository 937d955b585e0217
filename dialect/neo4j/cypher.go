package neo4j

import (
	"strconv"
	"strings"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/schema"
)

// quote returns a backtick-quoted Cypher identifier.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// labelPattern returns ":`a`:`b`".
func labelPattern(labels ...string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteByte(':')
		b.WriteString(quote(l))
	}
	return b.String()
}

// typeAlternation returns ":`a`|`b`" or "" for no types.
func typeAlternation(types []string) string {
	if len(types) == 0 {
		return ""
	}
	q := make([]string, len(types))
	for i, t := range types {
		q[i] = quote(t)
	}
	return ":" + strings.Join(q, "|")
}

// statement accumulates a Cypher statement and its parameters.
type statement struct {
	where  []string
	params map[string]any
	n      int
}

func newStatement() *statement {
	return &statement{params: make(map[string]any)}
}

// bind stores a parameter under a fresh name and returns its reference.
func (s *statement) bind(v any) string {
	name := "p" + strconv.Itoa(s.n)
	s.n++
	s.params[name] = v
	return "$" + name
}

func (s *statement) set(name string, v any) {
	s.params[name] = v
}

func (s *statement) and(cond string) {
	s.where = append(s.where, cond)
}

// filter adds one condition on the properties of the variable. Missing
// properties match only the negated operators.
func (s *statement) filter(variable string, c unigraph.FilterCondition) error {
	if err := c.Validate(); err != nil {
		return err
	}
	prop := variable + "." + quote(c.Property)
	if c.Operator.IsList() {
		list, err := listParam(c.Values)
		if err != nil {
			return err
		}
		ref := s.bind(list)
		if c.Operator == unigraph.OpIn {
			s.and(prop + " IN " + ref)
		} else {
			s.and("(" + prop + " IS NULL OR NOT " + prop + " IN " + ref + ")")
		}
		return nil
	}
	x, err := param(c.Value)
	if err != nil {
		return err
	}
	ref := s.bind(x)
	switch c.Operator {
	case unigraph.OpEqual:
		s.and(prop + " = " + ref)
	case unigraph.OpNotEqual:
		s.and("(" + prop + " IS NULL OR " + prop + " <> " + ref + ")")
	case unigraph.OpLessThan:
		s.and(prop + " < " + ref)
	case unigraph.OpLessThanOrEqual:
		s.and(prop + " <= " + ref)
	case unigraph.OpGreaterThan:
		s.and(prop + " > " + ref)
	case unigraph.OpGreaterThanOrEqual:
		s.and(prop + " >= " + ref)
	case unigraph.OpContains:
		s.and(prop + " CONTAINS " + ref)
	case unigraph.OpStartsWith:
		s.and(prop + " STARTS WITH " + ref)
	case unigraph.OpEndsWith:
		s.and(prop + " ENDS WITH " + ref)
	case unigraph.OpRegexMatch:
		s.and(prop + " =~ " + ref)
	}
	return nil
}

func (s *statement) filters(variable string, fs []unigraph.FilterCondition) error {
	for _, f := range fs {
		if err := s.filter(variable, f); err != nil {
			return err
		}
	}
	return nil
}

// whereClause returns " WHERE a AND b" or "".
func (s *statement) whereClause() string {
	if len(s.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(s.where, " AND ")
}

// page renders ORDER BY, SKIP and LIMIT.
func (s *statement) page(variable string, sort []unigraph.SortSpec, offset, limit int) string {
	var b strings.Builder
	for i, o := range sort {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(variable + "." + quote(o.Property))
		if !o.Ascending {
			b.WriteString(" DESC")
		}
	}
	if offset > 0 {
		b.WriteString(" SKIP " + s.bind(int64(offset)))
	}
	if limit > 0 {
		b.WriteString(" LIMIT " + s.bind(int64(limit)))
	}
	return b.String()
}

// excludeMetadata hides schema records from untyped vertex scans.
func (s *statement) excludeMetadata(variable string) {
	s.and("NOT " + variable + labelPattern(schema.MetadataType))
}

// arrow returns the left and right halves of a relationship pattern for
// the direction as seen from the left node.
func arrow(d unigraph.Direction) (string, string) {
	switch d {
	case unigraph.Incoming:
		return "<-", "-"
	case unigraph.Both:
		return "-", "-"
	}
	return "-", "->"
}
