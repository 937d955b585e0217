package gremlin

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/unigraph"
)

// typed is a GraphSON 3 typed value.
type typed struct {
	Type  string `json:"@type"`
	Value any    `json:"@value"`
}

// Decoded GraphSON values that have no plain Go counterpart.
type (
	token     string // g:T, e.g. id or label
	direction string // g:Direction, IN or OUT
	relation  string // janusgraph:RelationIdentifier

	// entry is one key of a g:Map. Keys keep their wire order.
	entry struct {
		key   any
		value any
	}
	gmap []entry

	vprop struct {
		key   string
		value any
	}
	prop struct {
		key   string
		value any
	}
	gpath struct {
		objects []any
	}
)

// get returns the value of a scalar key.
func (m gmap) get(key any) (any, bool) {
	for _, e := range m {
		if sameKey(e.key, key) {
			return e.value, true
		}
	}
	return nil, false
}

func sameKey(a, b any) bool {
	switch a := a.(type) {
	case string:
		b, ok := b.(string)
		return ok && a == b
	case token:
		b, ok := b.(token)
		return ok && a == b
	case direction:
		b, ok := b.(direction)
		return ok && a == b
	case int64:
		b, ok := b.(int64)
		return ok && a == b
	}
	return false
}

// encode converts a value into its GraphSON 3 form. JanusGraph types are
// used for geometries.
func encode(v unigraph.Value) (any, error) {
	switch v.Kind() {
	case unigraph.KindNull:
		return nil, nil
	case unigraph.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case unigraph.KindInt8:
		i, _ := v.AsInt64()
		return typed{"gx:Byte", i}, nil
	case unigraph.KindInt16:
		i, _ := v.AsInt64()
		return typed{"gx:Int16", i}, nil
	case unigraph.KindInt32, unigraph.KindUint8, unigraph.KindUint16:
		i, _ := v.AsInt64()
		return typed{"g:Int32", i}, nil
	case unigraph.KindInt64, unigraph.KindUint32:
		i, _ := v.AsInt64()
		return typed{"g:Int64", i}, nil
	case unigraph.KindUint64:
		u := v.Interface().(uint64)
		if u > math.MaxInt64 {
			return typed{"gx:BigInteger", json.Number(strconv.FormatUint(u, 10))}, nil
		}
		return typed{"g:Int64", int64(u)}, nil
	case unigraph.KindFloat32:
		return typed{"g:Float", floatJSON(v)}, nil
	case unigraph.KindFloat64:
		return typed{"g:Double", floatJSON(v)}, nil
	case unigraph.KindString:
		s, _ := v.AsString()
		return s, nil
	case unigraph.KindBytes:
		b, _ := v.AsBytes()
		return typed{"gx:ByteBuffer", base64.StdEncoding.EncodeToString(b)}, nil
	case unigraph.KindDate:
		d, _ := v.AsDate()
		return typed{"gx:LocalDate", d.String()}, nil
	case unigraph.KindTime:
		t, _ := v.AsTime()
		return typed{"gx:LocalTime", t.String()}, nil
	case unigraph.KindDatetime:
		dt, _ := v.AsDatetime()
		if dt.Offset == nil {
			return typed{"gx:LocalDateTime", dt.String()}, nil
		}
		return typed{"gx:OffsetDateTime", dt.String()}, nil
	case unigraph.KindDuration:
		d, _ := v.AsDuration()
		return typed{"gx:Duration", isoDuration(d)}, nil
	case unigraph.KindPoint:
		p, _ := v.AsPoint()
		return geoshape("Point", p.Coordinates()), nil
	case unigraph.KindLineString:
		l, _ := v.AsLineString()
		return geoshape("LineString", coordinates(l.Points)), nil
	case unigraph.KindPolygon:
		p, _ := v.AsPolygon()
		rings := make([][][]float64, 0, len(p.Holes)+1)
		for _, r := range p.Rings() {
			rings = append(rings, coordinates(r))
		}
		return geoshape("Polygon", rings), nil
	}
	return nil, unigraph.Errorf(unigraph.KindInvalidPropertyType, "gremlin: unsupported value kind %s", v.Kind())
}

// floatJSON renders non-finite floats the way GraphSON does.
func floatJSON(v unigraph.Value) any {
	f, _ := v.AsFloat64()
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

func geoshape(kind string, coords any) typed {
	return typed{"janusgraph:Geoshape", map[string]any{
		"geometry": map[string]any{"type": kind, "coordinates": coords},
	}}
}

func coordinates(pts []unigraph.Point) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Coordinates()
	}
	return out
}

// isoDuration formats d the way java.time.Duration parses it. Negative
// durations carry the sign on the seconds.
func isoDuration(d unigraph.Duration) string {
	secs, nanos := d.Seconds, int64(d.Nanoseconds)
	sign := ""
	if secs < 0 && nanos > 0 {
		secs, nanos = -(secs + 1), int64(time.Second)-nanos
		sign = "-"
	}
	if nanos == 0 {
		return fmt.Sprintf("PT%s%dS", sign, secs)
	}
	return fmt.Sprintf("PT%s%d.%09dS", sign, secs, nanos)
}

// encodeID converts an element identifier into its GraphSON form.
func encodeID(id unigraph.ElementID) any {
	if i, ok := id.AsInt64(); ok {
		return typed{"g:Int64", i}
	}
	if u, ok := id.AsUUID(); ok {
		return typed{"g:UUID", u.String()}
	}
	s, _ := id.AsString()
	return s
}

// decode parses a GraphSON 3 payload.
func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, unigraph.WrapError(unigraph.KindInternal, fmt.Errorf("gremlin: decode graphson: %w", err))
	}
	return fromGraphSON(x)
}

func fromGraphSON(x any) (any, error) {
	switch t := x.(type) {
	case json.Number:
		return number(t)
	case []any:
		return list(t)
	case map[string]any:
		typ, ok := t["@type"].(string)
		if !ok {
			m := make(gmap, 0, len(t))
			for _, k := range slices.Sorted(maps.Keys(t)) {
				d, err := fromGraphSON(t[k])
				if err != nil {
					return nil, err
				}
				m = append(m, entry{k, d})
			}
			return m, nil
		}
		return fromTyped(typ, t["@value"])
	}
	return x, nil
}

func number(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: bad number %q", n)
	}
	return f, nil
}

func list(xs []any) ([]any, error) {
	out := make([]any, len(xs))
	for i, x := range xs {
		d, err := fromGraphSON(x)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func fromTyped(typ string, v any) (any, error) {
	switch typ {
	case "g:Int32", "g:Int64", "gx:Byte", "gx:Int16":
		n, ok := v.(json.Number)
		if !ok {
			return nil, malformed(typ, v)
		}
		return number(n)
	case "g:Float", "g:Double", "gx:BigDecimal":
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case string:
			return strconv.ParseFloat(strings.Replace(n, "Infinity", "Inf", 1), 64)
		}
		return nil, malformed(typ, v)
	case "gx:BigInteger":
		n, ok := v.(json.Number)
		if !ok {
			return nil, malformed(typ, v)
		}
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return unigraph.Uint64(u), nil
		}
		return n.Float64()
	case "g:List", "g:Set":
		xs, ok := v.([]any)
		if !ok {
			return nil, malformed(typ, v)
		}
		return list(xs)
	case "g:BulkSet":
		xs, ok := v.([]any)
		if !ok || len(xs)%2 != 0 {
			return nil, malformed(typ, v)
		}
		var out []any
		for i := 0; i < len(xs); i += 2 {
			x, err := fromGraphSON(xs[i])
			if err != nil {
				return nil, err
			}
			n, err := fromGraphSON(xs[i+1])
			if err != nil {
				return nil, err
			}
			bulk, _ := n.(int64)
			for range max(bulk, 1) {
				out = append(out, x)
			}
		}
		return out, nil
	case "g:Map":
		xs, ok := v.([]any)
		if !ok || len(xs)%2 != 0 {
			return nil, malformed(typ, v)
		}
		m := make(gmap, 0, len(xs)/2)
		for i := 0; i < len(xs); i += 2 {
			k, err := fromGraphSON(xs[i])
			if err != nil {
				return nil, err
			}
			val, err := fromGraphSON(xs[i+1])
			if err != nil {
				return nil, err
			}
			m = append(m, entry{k, val})
		}
		return m, nil
	case "g:UUID":
		s, _ := v.(string)
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, malformed(typ, v)
		}
		return u, nil
	case "g:Date", "g:Timestamp":
		n, ok := v.(json.Number)
		if !ok {
			return nil, malformed(typ, v)
		}
		ms, err := n.Int64()
		if err != nil {
			return nil, malformed(typ, v)
		}
		return time.UnixMilli(ms).UTC(), nil
	case "g:T":
		s, _ := v.(string)
		return token(s), nil
	case "g:Direction":
		s, _ := v.(string)
		return direction(s), nil
	case "g:Traverser":
		m, _ := v.(map[string]any)
		return fromGraphSON(m["value"])
	case "g:Vertex":
		return graphVertex(v)
	case "g:Edge":
		return graphEdge(v)
	case "g:VertexProperty", "g:Property":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, malformed(typ, v)
		}
		val, err := fromGraphSON(m["value"])
		if err != nil {
			return nil, err
		}
		if typ == "g:Property" {
			k, _ := m["key"].(string)
			return prop{k, val}, nil
		}
		k, _ := m["label"].(string)
		return vprop{k, val}, nil
	case "g:Path":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, malformed(typ, v)
		}
		objs, err := fromGraphSON(m["objects"])
		if err != nil {
			return nil, err
		}
		xs, _ := objs.([]any)
		return gpath{xs}, nil
	case "gx:ByteBuffer":
		s, _ := v.(string)
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, malformed(typ, v)
		}
		return unigraph.Bytes(b), nil
	case "gx:LocalDate", "gx:LocalTime", "gx:LocalDateTime", "gx:OffsetDateTime", "gx:ZonedDateTime", "gx:Instant", "gx:Duration":
		s, _ := v.(string)
		val, err := temporal(typ, s)
		if err != nil {
			return nil, malformed(typ, v)
		}
		return val, nil
	case "janusgraph:RelationIdentifier":
		if m, ok := v.(map[string]any); ok {
			if s, ok := m["relationId"].(string); ok {
				return relation(s), nil
			}
		}
		if s, ok := v.(string); ok {
			return relation(s), nil
		}
		return nil, malformed(typ, v)
	case "janusgraph:Geoshape":
		val, err := geometry(v)
		if err != nil {
			return nil, malformed(typ, v)
		}
		return val, nil
	}
	return fromGraphSON(v)
}

func malformed(typ string, v any) error {
	return unigraph.Errorf(unigraph.KindInternal, "gremlin: malformed %s value %v", typ, v)
}

func graphVertex(v any) (unigraph.Vertex, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return unigraph.Vertex{}, malformed("g:Vertex", v)
	}
	id, err := fromGraphSON(m["id"])
	if err != nil {
		return unigraph.Vertex{}, err
	}
	vid, ok := idOf(id)
	if !ok {
		return unigraph.Vertex{}, malformed("g:Vertex", v)
	}
	label, _ := m["label"].(string)
	out := unigraph.Vertex{ID: vid, Type: label, Properties: unigraph.PropertyMap{}}
	ps, _ := m["properties"].(map[string]any)
	for name, x := range ps {
		d, err := fromGraphSON(x)
		if err != nil {
			return unigraph.Vertex{}, err
		}
		xs, _ := d.([]any)
		if len(xs) == 0 {
			continue
		}
		out.Properties = append(out.Properties, unigraph.Property{Name: name, Value: valueOf(xs[0])})
	}
	out.Properties = out.Properties.Sorted()
	return out, nil
}

func graphEdge(v any) (unigraph.Edge, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return unigraph.Edge{}, malformed("g:Edge", v)
	}
	var ids [3]unigraph.ElementID
	for i, k := range []string{"id", "outV", "inV"} {
		x, err := fromGraphSON(m[k])
		if err != nil {
			return unigraph.Edge{}, err
		}
		if ids[i], ok = idOf(x); !ok {
			return unigraph.Edge{}, malformed("g:Edge", v)
		}
	}
	label, _ := m["label"].(string)
	out := unigraph.Edge{ID: ids[0], Type: label, From: ids[1], To: ids[2], Properties: unigraph.PropertyMap{}}
	ps, _ := m["properties"].(map[string]any)
	for name, x := range ps {
		d, err := fromGraphSON(x)
		if err != nil {
			return unigraph.Edge{}, err
		}
		out.Properties = append(out.Properties, unigraph.Property{Name: name, Value: valueOf(d)})
	}
	out.Properties = out.Properties.Sorted()
	return out, nil
}

// temporal parses the java.time string forms.
func temporal(typ, s string) (unigraph.Value, error) {
	switch typ {
	case "gx:LocalDate":
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return unigraph.Value{}, err
		}
		return unigraph.DateValue(unigraph.DateOf(t))
	case "gx:LocalTime":
		t, err := parseAny(s, "15:04:05.999999999", "15:04")
		if err != nil {
			return unigraph.Value{}, err
		}
		return unigraph.TimeValue(unigraph.TimeOf(t))
	case "gx:LocalDateTime":
		t, err := parseAny(s, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04")
		if err != nil {
			return unigraph.Value{}, err
		}
		return unigraph.DatetimeValue(unigraph.LocalDatetimeOf(t))
	case "gx:Duration":
		d, err := parseDuration(s)
		if err != nil {
			return unigraph.Value{}, err
		}
		return unigraph.DurationValue(d)
	}
	// Zoned values carry the zone name in brackets after the offset.
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	t, err := parseAny(s, time.RFC3339Nano, "2006-01-02T15:04Z07:00")
	if err != nil {
		return unigraph.Value{}, err
	}
	return unigraph.DatetimeValue(unigraph.DatetimeOf(t))
}

func parseAny(s string, layouts ...string) (t time.Time, err error) {
	for _, l := range layouts {
		if t, err = time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return t, err
}

// parseDuration parses the java.time.Duration form PTnHnMn.nS where every
// component may be negative.
func parseDuration(s string) (unigraph.Duration, error) {
	rest, ok := strings.CutPrefix(s, "PT")
	if !ok || rest == "" {
		return unigraph.Duration{}, fmt.Errorf("bad duration %q", s)
	}
	var total time.Duration
	var secs, nanos int64
	for rest != "" {
		i := strings.IndexAny(rest, "HMS")
		if i <= 0 {
			return unigraph.Duration{}, fmt.Errorf("bad duration %q", s)
		}
		num, unit := rest[:i], rest[i]
		rest = rest[i+1:]
		if unit != 'S' {
			n, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return unigraph.Duration{}, err
			}
			if unit == 'H' {
				secs += n * 3600
			} else {
				secs += n * 60
			}
			continue
		}
		neg := strings.HasPrefix(num, "-")
		whole, frac, _ := strings.Cut(strings.TrimPrefix(num, "-"), ".")
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return unigraph.Duration{}, err
		}
		var f int64
		if frac != "" {
			f, err = strconv.ParseInt((frac + "000000000")[:9], 10, 64)
			if err != nil {
				return unigraph.Duration{}, err
			}
		}
		if neg {
			n, f = -n, -f
		}
		secs += n
		nanos += f
	}
	total = time.Duration(nanos)
	if total < 0 {
		secs--
		total += time.Second
	}
	return unigraph.Duration{Seconds: secs, Nanoseconds: uint32(total)}, nil
}

// geometry decodes a JanusGraph Geoshape, with or without the geometry
// wrapper object.
func geometry(v any) (unigraph.Value, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return unigraph.Value{}, fmt.Errorf("geoshape is not an object")
	}
	if g, ok := m["geometry"].(map[string]any); ok {
		m = g
	}
	kind, _ := m["type"].(string)
	raw, err := json.Marshal(m["coordinates"])
	if err != nil {
		return unigraph.Value{}, err
	}
	switch kind {
	case "Point":
		var c []float64
		if err := json.Unmarshal(raw, &c); err != nil {
			return unigraph.Value{}, err
		}
		p, err := unigraph.PointFromCoordinates(c)
		if err != nil {
			return unigraph.Value{}, err
		}
		return unigraph.PointValue(p)
	case "LineString":
		var cs [][]float64
		if err := json.Unmarshal(raw, &cs); err != nil {
			return unigraph.Value{}, err
		}
		pts, err := points(cs)
		if err != nil {
			return unigraph.Value{}, err
		}
		return unigraph.LineStringValue(unigraph.LineString{Points: pts})
	case "Polygon":
		var rs [][][]float64
		if err := json.Unmarshal(raw, &rs); err != nil {
			return unigraph.Value{}, err
		}
		if len(rs) == 0 {
			return unigraph.Value{}, fmt.Errorf("polygon without rings")
		}
		var p unigraph.Polygon
		for i, r := range rs {
			pts, err := points(r)
			if err != nil {
				return unigraph.Value{}, err
			}
			if i == 0 {
				p.Exterior = pts
			} else {
				p.Holes = append(p.Holes, pts)
			}
		}
		return unigraph.PolygonValue(p)
	}
	return unigraph.Value{}, fmt.Errorf("unsupported geoshape %q", kind)
}

func points(cs [][]float64) ([]unigraph.Point, error) {
	out := make([]unigraph.Point, len(cs))
	for i, c := range cs {
		p, err := unigraph.PointFromCoordinates(c)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
