package unigraph

import (
	"bytes"
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Operator is a filter comparison operator.
type Operator uint8

// Operators.
const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpContains
	OpStartsWith
	OpEndsWith
	OpRegexMatch
	OpIn
	OpNotIn
)

var opNames = [...]string{
	OpEqual:              "eq",
	OpNotEqual:           "neq",
	OpLessThan:           "lt",
	OpLessThanOrEqual:    "lte",
	OpGreaterThan:        "gt",
	OpGreaterThanOrEqual: "gte",
	OpContains:           "contains",
	OpStartsWith:         "starts-with",
	OpEndsWith:           "ends-with",
	OpRegexMatch:         "regex",
	OpIn:                 "in",
	OpNotIn:              "not-in",
}

func (o Operator) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Operator(%d)", o)
}

// ParseOperator returns the operator with the given name.
func ParseOperator(s string) (Operator, error) {
	for i, n := range opNames {
		if n == s {
			return Operator(i), nil
		}
	}
	return 0, Errorf(KindInvalidQuery, "unknown filter operator %q", s)
}

// IsList reports whether the operator takes a list operand.
func (o Operator) IsList() bool { return o == OpIn || o == OpNotIn }

// FilterCondition is a single (property, operator, value) triple. List
// operators take their operand from Values.
type FilterCondition struct {
	Property string
	Operator Operator
	Value    Value
	Values   []Value
}

// Validate checks the shape of the condition.
func (c FilterCondition) Validate() error {
	if c.Property == "" {
		return Errorf(KindInvalidQuery, "filter: empty property name")
	}
	if int(c.Operator) >= len(opNames) {
		return Errorf(KindInvalidQuery, "filter: unknown operator %d", c.Operator)
	}
	switch c.Operator {
	case OpContains, OpStartsWith, OpEndsWith, OpRegexMatch:
		if c.Value.Kind() != KindString {
			return Errorf(KindInvalidQuery, "filter: %s on %q needs a string operand, got %s", c.Operator, c.Property, c.Value.Kind())
		}
	}
	if c.Operator == OpRegexMatch {
		s, _ := c.Value.AsString()
		if _, err := regexp.Compile(s); err != nil {
			return &Error{Kind: KindInvalidQuery, Msg: "filter: bad regex", Err: err}
		}
	}
	return nil
}

// Operand returns the operand as a single value or, for list operators, the
// list of values.
func (c FilterCondition) Operand() any {
	if c.Operator.IsList() {
		return c.Values
	}
	return c.Value
}

// Field builds filter conditions and sort keys on a named property.
//
// Usage:
//
//	opts.Filters = []unigraph.FilterCondition{
//		unigraph.Field("age").GTE(unigraph.Int64(18)),
//		unigraph.Field("name").HasPrefix("A"),
//	}
type Field string

// Name returns the property name.
func (f Field) Name() string { return string(f) }

// EQ returns a condition that checks if the property equals v.
func (f Field) EQ(v Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpEqual, Value: v}
}

// NEQ returns a condition that checks if the property does not equal v.
func (f Field) NEQ(v Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpNotEqual, Value: v}
}

// LT returns a condition that checks if the property is less than v.
func (f Field) LT(v Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpLessThan, Value: v}
}

// LTE returns a condition that checks if the property is less than or equal to v.
func (f Field) LTE(v Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpLessThanOrEqual, Value: v}
}

// GT returns a condition that checks if the property is greater than v.
func (f Field) GT(v Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpGreaterThan, Value: v}
}

// GTE returns a condition that checks if the property is greater than or equal to v.
func (f Field) GTE(v Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpGreaterThanOrEqual, Value: v}
}

// Contains returns a condition that checks if the property contains the substring.
func (f Field) Contains(s string) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpContains, Value: String(s)}
}

// HasPrefix returns a condition that checks if the property starts with s.
func (f Field) HasPrefix(s string) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpStartsWith, Value: String(s)}
}

// HasSuffix returns a condition that checks if the property ends with s.
func (f Field) HasSuffix(s string) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpEndsWith, Value: String(s)}
}

// Regex returns a condition that checks if the property matches the pattern.
func (f Field) Regex(pattern string) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpRegexMatch, Value: String(pattern)}
}

// In returns a condition that checks if the property is one of vs.
func (f Field) In(vs ...Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpIn, Values: vs}
}

// NotIn returns a condition that checks if the property is none of vs.
func (f Field) NotIn(vs ...Value) FilterCondition {
	return FilterCondition{Property: string(f), Operator: OpNotIn, Values: vs}
}

// Asc returns an ascending sort key on the property.
func (f Field) Asc() SortSpec { return SortSpec{Property: string(f), Ascending: true} }

// Desc returns a descending sort key on the property.
func (f Field) Desc() SortSpec { return SortSpec{Property: string(f)} }

// SortSpec is one sort key. Keys are applied left to right.
type SortSpec struct {
	Property  string
	Ascending bool
}

// Match evaluates the condition against a property map. A missing property
// never matches, except for OpNotEqual and OpNotIn.
func (c FilterCondition) Match(props PropertyMap) (bool, error) {
	v, ok := props.Get(c.Property)
	if !ok || v.IsNull() {
		return c.Operator == OpNotEqual || c.Operator == OpNotIn, nil
	}
	switch c.Operator {
	case OpEqual:
		return Compare(v, c.Value) == 0, nil
	case OpNotEqual:
		return Compare(v, c.Value) != 0, nil
	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		if !orderable(v, c.Value) {
			return false, nil
		}
		r := Compare(v, c.Value)
		switch c.Operator {
		case OpLessThan:
			return r < 0, nil
		case OpLessThanOrEqual:
			return r <= 0, nil
		case OpGreaterThan:
			return r > 0, nil
		default:
			return r >= 0, nil
		}
	case OpContains, OpStartsWith, OpEndsWith, OpRegexMatch:
		s, ok := v.AsString()
		if !ok {
			return false, nil
		}
		arg, _ := c.Value.AsString()
		switch c.Operator {
		case OpContains:
			return strings.Contains(s, arg), nil
		case OpStartsWith:
			return strings.HasPrefix(s, arg), nil
		case OpEndsWith:
			return strings.HasSuffix(s, arg), nil
		}
		re, err := regexp.Compile(arg)
		if err != nil {
			return false, &Error{Kind: KindInvalidQuery, Msg: "filter: bad regex", Err: err}
		}
		return re.MatchString(s), nil
	case OpIn, OpNotIn:
		found := slices.ContainsFunc(c.Values, func(x Value) bool { return Compare(v, x) == 0 })
		return found == (c.Operator == OpIn), nil
	}
	return false, Errorf(KindInvalidQuery, "filter: unknown operator %d", c.Operator)
}

// MatchAll reports whether every condition matches.
func MatchAll(props PropertyMap, conds []FilterCondition) (bool, error) {
	for _, c := range conds {
		ok, err := c.Match(props)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Compare orders two values. Numbers compare numerically across integer and
// float kinds; other kinds compare within their own kind. Values of
// unrelated kinds are ordered by kind, and null sorts first.
func Compare(a, b Value) int {
	if a.kind.IsNumeric() && b.kind.IsNumeric() {
		return compareNumbers(a, b)
	}
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		x, y := a.v.(bool), b.v.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case KindString:
		return strings.Compare(a.v.(string), b.v.(string))
	case KindBytes:
		return bytes.Compare(a.v.([]byte), b.v.([]byte))
	case KindDate:
		return a.v.(Date).Std().Compare(b.v.(Date).Std())
	case KindTime:
		x, y := a.v.(Time), b.v.(Time)
		return cmp.Or(cmp.Compare(x.Hour, y.Hour), cmp.Compare(x.Minute, y.Minute),
			cmp.Compare(x.Second, y.Second), cmp.Compare(x.Nanosecond, y.Nanosecond))
	case KindDatetime:
		return a.v.(Datetime).Std().Compare(b.v.(Datetime).Std())
	case KindDuration:
		x, y := a.v.(Duration), b.v.(Duration)
		return cmp.Or(cmp.Compare(x.Seconds, y.Seconds), cmp.Compare(x.Nanoseconds, y.Nanoseconds))
	}
	if a.Equal(b) {
		return 0
	}
	return strings.Compare(a.String(), b.String())
}

func orderable(a, b Value) bool {
	return (a.kind.IsNumeric() && b.kind.IsNumeric()) || a.kind == b.kind
}

func compareNumbers(a, b Value) int {
	ai, aok := a.AsInt64()
	bi, bok := b.AsInt64()
	if aok && bok && a.kind.IsInteger() && b.kind.IsInteger() {
		return cmp.Compare(ai, bi)
	}
	if a.kind == KindUint64 && b.kind == KindUint64 {
		return cmp.Compare(a.v.(uint64), b.v.(uint64))
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	return cmp.Compare(af, bf)
}

// SortElements sorts items in place by the sort keys applied left to right.
// Items missing a key sort before items holding it. The sort is stable.
func SortElements[T any](items []T, props func(T) PropertyMap, keys []SortSpec) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(items, func(x, y T) int {
		px, py := props(x), props(y)
		for _, k := range keys {
			vx, _ := px.Get(k.Property)
			vy, _ := py.Get(k.Property)
			r := Compare(vx, vy)
			if !k.Ascending {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
		return 0
	})
}

// Page applies offset and limit to items. A zero limit means no limit.
func Page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
