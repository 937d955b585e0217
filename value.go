package unigraph

import (
	"bytes"
	"fmt"
	"math"
	"time"
)

// Kind is the variant tag of a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindDate
	KindTime
	KindDatetime
	KindDuration
	KindPoint
	KindLineString
	KindPolygon
)

var valueKindNames = [...]string{
	KindNull:       "null",
	KindBool:       "bool",
	KindInt8:       "int8",
	KindInt16:      "int16",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindUint8:      "uint8",
	KindUint16:     "uint16",
	KindUint32:     "uint32",
	KindUint64:     "uint64",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindString:     "string",
	KindBytes:      "bytes",
	KindDate:       "date",
	KindTime:       "time",
	KindDatetime:   "datetime",
	KindDuration:   "duration",
	KindPoint:      "point",
	KindLineString: "linestring",
	KindPolygon:    "polygon",
}

func (k Kind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsInteger reports whether the kind is a signed or unsigned integer.
func (k Kind) IsInteger() bool { return k >= KindInt8 && k <= KindUint64 }

// IsNumeric reports whether the kind is an integer or a float.
func (k Kind) IsNumeric() bool { return k >= KindInt8 && k <= KindFloat64 }

// Value is a property value. Exactly one variant is active; the zero Value
// is null. Temporal and geospatial values are validated when constructed.
type Value struct {
	kind Kind
	v    any
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, v: b} }

// Int8 returns an 8-bit integer value.
func Int8(i int8) Value { return Value{kind: KindInt8, v: i} }

// Int16 returns a 16-bit integer value.
func Int16(i int16) Value { return Value{kind: KindInt16, v: i} }

// Int32 returns a 32-bit integer value.
func Int32(i int32) Value { return Value{kind: KindInt32, v: i} }

// Int64 returns a 64-bit integer value.
func Int64(i int64) Value { return Value{kind: KindInt64, v: i} }

// Uint8 returns an unsigned 8-bit integer value.
func Uint8(i uint8) Value { return Value{kind: KindUint8, v: i} }

// Uint16 returns an unsigned 16-bit integer value.
func Uint16(i uint16) Value { return Value{kind: KindUint16, v: i} }

// Uint32 returns an unsigned 32-bit integer value.
func Uint32(i uint32) Value { return Value{kind: KindUint32, v: i} }

// Uint64 returns an unsigned 64-bit integer value.
func Uint64(i uint64) Value { return Value{kind: KindUint64, v: i} }

// Float32 returns a 32-bit float value.
func Float32(f float32) Value { return Value{kind: KindFloat32, v: f} }

// Float64 returns a 64-bit float value.
func Float64(f float64) Value { return Value{kind: KindFloat64, v: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, v: s} }

// Bytes returns a byte sequence value. The slice is copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, v: bytes.Clone(b)} }

// DateValue returns a date value.
func DateValue(d Date) (Value, error) {
	if err := d.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindDate, v: d}, nil
}

// TimeValue returns a time-of-day value.
func TimeValue(t Time) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindTime, v: t}, nil
}

// DatetimeValue returns a datetime value.
func DatetimeValue(dt Datetime) (Value, error) {
	if err := dt.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindDatetime, v: dt}, nil
}

// DurationValue returns a duration value.
func DurationValue(d Duration) (Value, error) {
	if err := d.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindDuration, v: d}, nil
}

// PointValue returns a point value.
func PointValue(p Point) (Value, error) {
	if err := p.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindPoint, v: p}, nil
}

// LineStringValue returns a line string value.
func LineStringValue(l LineString) (Value, error) {
	if err := l.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindLineString, v: l}, nil
}

// PolygonValue returns a polygon value.
func PolygonValue(p Polygon) (Value, error) {
	if err := p.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: KindPolygon, v: p}, nil
}

// Kind returns the active variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns the Go value of the active variant. Temporal and
// geospatial variants are returned as the types of this package.
func (v Value) Interface() any { return v.v }

// AsBool returns the boolean variant.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok && v.kind == KindBool
}

// AsString returns the string variant.
func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok && v.kind == KindString
}

// AsBytes returns the byte sequence variant.
func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.v.([]byte)
	return b, ok && v.kind == KindBytes
}

// AsInt64 returns any signed or unsigned integer variant widened to int64.
// It fails for uint64 values that overflow int64.
func (v Value) AsInt64() (int64, bool) {
	switch x := v.v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// AsFloat64 returns any numeric variant widened to float64.
func (v Value) AsFloat64() (float64, bool) {
	switch x := v.v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case uint64:
		return float64(x), true
	}
	if i, ok := v.AsInt64(); ok {
		return float64(i), true
	}
	return 0, false
}

// AsDate returns the date variant.
func (v Value) AsDate() (Date, bool) {
	d, ok := v.v.(Date)
	return d, ok
}

// AsTime returns the time variant.
func (v Value) AsTime() (Time, bool) {
	t, ok := v.v.(Time)
	return t, ok
}

// AsDatetime returns the datetime variant.
func (v Value) AsDatetime() (Datetime, bool) {
	dt, ok := v.v.(Datetime)
	return dt, ok
}

// AsDuration returns the duration variant.
func (v Value) AsDuration() (Duration, bool) {
	d, ok := v.v.(Duration)
	return d, ok
}

// AsPoint returns the point variant.
func (v Value) AsPoint() (Point, bool) {
	p, ok := v.v.(Point)
	return p, ok
}

// AsLineString returns the line string variant.
func (v Value) AsLineString() (LineString, bool) {
	l, ok := v.v.(LineString)
	return l, ok
}

// AsPolygon returns the polygon variant.
func (v Value) AsPolygon() (Polygon, bool) {
	p, ok := v.v.(Polygon)
	return p, ok
}

// String returns a display form of the value.
func (v Value) String() string {
	switch x := v.v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("bytes(%d)", len(x))
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Equal reports whether two values have the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBytes:
		return bytes.Equal(v.v.([]byte), o.v.([]byte))
	case KindDatetime:
		a, b := v.v.(Datetime), o.v.(Datetime)
		return a.Date == b.Date && a.Time == b.Time && offsetEqual(a.Offset, b.Offset)
	case KindPoint:
		return pointEqual(v.v.(Point), o.v.(Point))
	case KindLineString:
		return pointsEqual(v.v.(LineString).Points, o.v.(LineString).Points)
	case KindPolygon:
		a, b := v.v.(Polygon), o.v.(Polygon)
		if !pointsEqual(a.Exterior, b.Exterior) || len(a.Holes) != len(b.Holes) {
			return false
		}
		for i := range a.Holes {
			if !pointsEqual(a.Holes[i], b.Holes[i]) {
				return false
			}
		}
		return true
	default:
		return v.v == o.v
	}
}

// ValueOf converts a Go value into a Value. Supported inputs are nil, the
// scalar Go types, []byte, time.Time (datetime with offset), time.Duration,
// the temporal and geospatial types of this package, and Value itself.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int64(int64(x)), nil
	case int8:
		return Int8(x), nil
	case int16:
		return Int16(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return Int64(x), nil
	case uint:
		return Uint64(uint64(x)), nil
	case uint8:
		return Uint8(x), nil
	case uint16:
		return Uint16(x), nil
	case uint32:
		return Uint32(x), nil
	case uint64:
		return Uint64(x), nil
	case float32:
		return Float32(x), nil
	case float64:
		return Float64(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case time.Time:
		return DatetimeValue(DatetimeOf(x))
	case time.Duration:
		return DurationValue(DurationOf(x))
	case Date:
		return DateValue(x)
	case Time:
		return TimeValue(x)
	case Datetime:
		return DatetimeValue(x)
	case Duration:
		return DurationValue(x)
	case Point:
		return PointValue(x)
	case LineString:
		return LineStringValue(x)
	case Polygon:
		return PolygonValue(x)
	}
	return Value{}, Errorf(KindInvalidPropertyType, "unsupported Go type %T", x)
}

// MustValue is like ValueOf but panics on error. It simplifies literals in
// tests and examples.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

func offsetEqual(a, b *int16) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
