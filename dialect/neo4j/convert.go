package neo4j

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/syssam/unigraph"
)

// typeKey holds the primary type of a vertex. Neo4j does not preserve label
// order, so the type label alone cannot be told apart from secondary ones.
const typeKey = "__type"

// Spatial reference ids of WGS-84 points.
const (
	sridWGS84   = 4326
	sridWGS84_3 = 4979
)

// param converts a value into a Bolt parameter.
func param(v unigraph.Value) (any, error) {
	switch v.Kind() {
	case unigraph.KindNull:
		return nil, nil
	case unigraph.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case unigraph.KindUint64:
		u := v.Interface().(uint64)
		if u > math.MaxInt64 {
			return nil, unigraph.Errorf(unigraph.KindInvalidPropertyType, "uint64 %d overflows the integer type of neo4j", u)
		}
		return int64(u), nil
	case unigraph.KindFloat32, unigraph.KindFloat64:
		f, _ := v.AsFloat64()
		return f, nil
	case unigraph.KindString:
		s, _ := v.AsString()
		return s, nil
	case unigraph.KindBytes:
		b, _ := v.AsBytes()
		return b, nil
	case unigraph.KindDate:
		d, _ := v.AsDate()
		return neo4j.DateOf(d.Std()), nil
	case unigraph.KindTime:
		t, _ := v.AsTime()
		return neo4j.LocalTimeOf(time.Date(0, 1, 1, int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), time.UTC)), nil
	case unigraph.KindDatetime:
		dt, _ := v.AsDatetime()
		if dt.Offset == nil {
			return neo4j.LocalDateTimeOf(dt.Std()), nil
		}
		return dt.Std(), nil
	case unigraph.KindDuration:
		d, _ := v.AsDuration()
		return neo4j.DurationOf(0, 0, d.Seconds, int(d.Nanoseconds)), nil
	case unigraph.KindPoint:
		p, _ := v.AsPoint()
		if p.Altitude != nil {
			return dbtype.Point3D{X: p.Longitude, Y: p.Latitude, Z: *p.Altitude, SpatialRefId: sridWGS84_3}, nil
		}
		return dbtype.Point2D{X: p.Longitude, Y: p.Latitude, SpatialRefId: sridWGS84}, nil
	case unigraph.KindLineString, unigraph.KindPolygon:
		// Stored as WKT; read back as strings.
		return v.String(), nil
	}
	if i, ok := v.AsInt64(); ok {
		return i, nil
	}
	return nil, unigraph.Errorf(unigraph.KindInvalidPropertyType, "neo4j: cannot store %s", v.Kind())
}

// params converts a property map into a Bolt map. Later entries win.
func params(props unigraph.PropertyMap) (map[string]any, error) {
	m := make(map[string]any, len(props))
	for _, p := range props {
		x, err := param(p.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		m[p.Name] = x
	}
	return m, nil
}

// listParam converts filter operands of list operators.
func listParam(vs []unigraph.Value) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		x, err := param(v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// value converts a Bolt value. Lists and maps have no property counterpart
// and are returned as their JSON text.
func value(x any) unigraph.Value {
	switch x := x.(type) {
	case nil:
		return unigraph.Null()
	case bool:
		return unigraph.Bool(x)
	case int64:
		return unigraph.Int64(x)
	case float64:
		return unigraph.Float64(x)
	case string:
		return unigraph.String(x)
	case []byte:
		return unigraph.Bytes(x)
	case dbtype.Date:
		v, _ := unigraph.DateValue(unigraph.DateOf(x.Time()))
		return v
	case dbtype.LocalTime:
		v, _ := unigraph.TimeValue(unigraph.TimeOf(x.Time()))
		return v
	case dbtype.Time:
		v, _ := unigraph.TimeValue(unigraph.TimeOf(x.Time()))
		return v
	case dbtype.LocalDateTime:
		v, _ := unigraph.DatetimeValue(unigraph.LocalDatetimeOf(x.Time()))
		return v
	case time.Time:
		v, _ := unigraph.DatetimeValue(unigraph.DatetimeOf(x))
		return v
	case dbtype.Duration:
		secs := x.Months*30*86400 + x.Days*86400 + x.Seconds
		v, _ := unigraph.DurationValue(unigraph.Duration{Seconds: secs, Nanoseconds: uint32(x.Nanos)})
		return v
	case dbtype.Point2D:
		v, err := unigraph.PointValue(unigraph.Point{Longitude: x.X, Latitude: x.Y})
		if err != nil {
			return unigraph.String(x.String())
		}
		return v
	case dbtype.Point3D:
		z := x.Z
		v, err := unigraph.PointValue(unigraph.Point{Longitude: x.X, Latitude: x.Y, Altitude: &z})
		if err != nil {
			return unigraph.String(x.String())
		}
		return v
	}
	b, err := json.Marshal(x)
	if err != nil {
		return unigraph.String(fmt.Sprint(x))
	}
	return unigraph.String(string(b))
}

func properties(m map[string]any, skip string) unigraph.PropertyMap {
	props := make(unigraph.PropertyMap, 0, len(m))
	for k, x := range m {
		if k == skip {
			continue
		}
		props = append(props, unigraph.Property{Name: k, Value: value(x)})
	}
	return props.Sorted()
}

func vertexOf(n dbtype.Node) unigraph.Vertex {
	typ, _ := n.Props[typeKey].(string)
	labels := make([]string, 0, len(n.Labels))
	for _, l := range n.Labels {
		if typ == "" {
			typ = l
			continue
		}
		if l != typ {
			labels = append(labels, l)
		}
	}
	return unigraph.Vertex{
		ID:         unigraph.StringID(n.ElementId),
		Type:       typ,
		Labels:     labels,
		Properties: properties(n.Props, typeKey),
	}
}

func edgeOf(r dbtype.Relationship) unigraph.Edge {
	return unigraph.Edge{
		ID:         unigraph.StringID(r.ElementId),
		Type:       r.Type,
		From:       unigraph.StringID(r.StartElementId),
		To:         unigraph.StringID(r.EndElementId),
		Properties: properties(r.Props, ""),
	}
}

func pathOf(p dbtype.Path) unigraph.Path {
	vs := make([]unigraph.Vertex, len(p.Nodes))
	for i, n := range p.Nodes {
		vs[i] = vertexOf(n)
	}
	es := make([]unigraph.Edge, len(p.Relationships))
	for i, r := range p.Relationships {
		es[i] = edgeOf(r)
	}
	return unigraph.NewPath(vs, es)
}

// elementID returns the element id string of id. Identifiers of another
// form cannot name a Neo4j element.
func elementID(id unigraph.ElementID) (string, bool) {
	return id.AsString()
}
