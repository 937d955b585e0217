package arangodb

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/syssam/unigraph"
)

// System attributes of documents and edges.
var system = map[string]bool{"_id": true, "_key": true, "_rev": true, "_from": true, "_to": true}

// attr converts a value into its JSON document form. Temporal values are
// stored as ISO-8601 strings and bytes as base64; both read back as strings.
// Geospatial values are stored as GeoJSON so geo indexes apply.
func attr(v unigraph.Value) (any, error) {
	switch v.Kind() {
	case unigraph.KindNull:
		return nil, nil
	case unigraph.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case unigraph.KindUint64:
		return v.Interface(), nil
	case unigraph.KindFloat32, unigraph.KindFloat64:
		f, _ := v.AsFloat64()
		return f, nil
	case unigraph.KindString:
		s, _ := v.AsString()
		return s, nil
	case unigraph.KindBytes:
		b, _ := v.AsBytes()
		return base64.StdEncoding.EncodeToString(b), nil
	case unigraph.KindDate, unigraph.KindTime, unigraph.KindDatetime, unigraph.KindDuration:
		return v.String(), nil
	case unigraph.KindPoint:
		p, _ := v.AsPoint()
		return geoJSON{Type: "Point", Coordinates: p.Coordinates()}, nil
	case unigraph.KindLineString:
		l, _ := v.AsLineString()
		return geoJSON{Type: "LineString", Coordinates: coords(l.Points)}, nil
	case unigraph.KindPolygon:
		p, _ := v.AsPolygon()
		rings := make([][][]float64, 0, len(p.Holes)+1)
		for _, r := range p.Rings() {
			rings = append(rings, coords(r))
		}
		return geoJSON{Type: "Polygon", Coordinates: rings}, nil
	}
	if i, ok := v.AsInt64(); ok {
		return i, nil
	}
	return nil, unigraph.Errorf(unigraph.KindInvalidPropertyType, "arangodb: cannot store %s", v.Kind())
}

type geoJSON struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

func coords(pts []unigraph.Point) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Coordinates()
	}
	return out
}

// document converts a property map into a document body. Later entries win.
func document(props unigraph.PropertyMap) (map[string]any, error) {
	m := make(map[string]any, len(props))
	for _, p := range props {
		if system[p.Name] {
			return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "arangodb: property %q is a system attribute", p.Name)
		}
		x, err := attr(p.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		m[p.Name] = x
	}
	return m, nil
}

func attrs(vs []unigraph.Value) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		x, err := attr(v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// decode parses a JSON result keeping numbers exact.
func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, unigraph.WrapError(unigraph.KindInternal, err)
	}
	return x, nil
}

// value converts a decoded JSON value. Integral numbers become Int64.
// GeoJSON objects become geospatial values; other objects and arrays are
// returned as their JSON text.
func value(x any) unigraph.Value {
	switch x := x.(type) {
	case nil:
		return unigraph.Null()
	case bool:
		return unigraph.Bool(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return unigraph.Int64(i)
		}
		f, _ := x.Float64()
		return unigraph.Float64(f)
	case float64:
		return unigraph.Float64(x)
	case string:
		return unigraph.String(x)
	case map[string]any:
		if v, ok := geometry(x); ok {
			return v
		}
	}
	b, err := json.Marshal(x)
	if err != nil {
		return unigraph.String(fmt.Sprint(x))
	}
	return unigraph.String(string(b))
}

// geometry recognizes the GeoJSON objects written by attr.
func geometry(m map[string]any) (unigraph.Value, bool) {
	typ, _ := m["type"].(string)
	c, ok := m["coordinates"]
	if !ok || len(m) != 2 {
		return unigraph.Value{}, false
	}
	switch typ {
	case "Point":
		p, ok := point(c)
		if !ok {
			return unigraph.Value{}, false
		}
		v, err := unigraph.PointValue(p)
		return v, err == nil
	case "LineString":
		pts, ok := points(c)
		if !ok {
			return unigraph.Value{}, false
		}
		v, err := unigraph.LineStringValue(unigraph.LineString{Points: pts})
		return v, err == nil
	case "Polygon":
		rs, _ := c.([]any)
		if len(rs) == 0 {
			return unigraph.Value{}, false
		}
		var poly unigraph.Polygon
		for i, r := range rs {
			pts, ok := points(r)
			if !ok {
				return unigraph.Value{}, false
			}
			if i == 0 {
				poly.Exterior = pts
			} else {
				poly.Holes = append(poly.Holes, pts)
			}
		}
		v, err := unigraph.PolygonValue(poly)
		return v, err == nil
	}
	return unigraph.Value{}, false
}

func point(x any) (unigraph.Point, bool) {
	xs, _ := x.([]any)
	c := make([]float64, 0, len(xs))
	for _, x := range xs {
		n, ok := x.(json.Number)
		if !ok {
			return unigraph.Point{}, false
		}
		f, err := n.Float64()
		if err != nil {
			return unigraph.Point{}, false
		}
		c = append(c, f)
	}
	p, err := unigraph.PointFromCoordinates(c)
	return p, err == nil
}

func points(x any) ([]unigraph.Point, bool) {
	xs, _ := x.([]any)
	if len(xs) == 0 {
		return nil, false
	}
	out := make([]unigraph.Point, len(xs))
	for i, x := range xs {
		p, ok := point(x)
		if !ok {
			return nil, false
		}
		out[i] = p
	}
	return out, true
}

// properties returns the user attributes of a document, sorted by name.
func properties(doc map[string]any) unigraph.PropertyMap {
	props := make(unigraph.PropertyMap, 0, len(doc))
	for k, x := range doc {
		if system[k] {
			continue
		}
		props = append(props, unigraph.Property{Name: k, Value: value(x)})
	}
	return props.Sorted()
}

// isEdgeDoc reports whether doc carries edge endpoints.
func isEdgeDoc(doc map[string]any) bool {
	_, from := doc["_from"].(string)
	_, to := doc["_to"].(string)
	return from && to
}

func vertexOf(doc map[string]any) (unigraph.Vertex, bool) {
	id, _ := doc["_id"].(string)
	coll, _, ok := splitID(unigraph.StringID(id))
	if !ok || isEdgeDoc(doc) {
		return unigraph.Vertex{}, false
	}
	return unigraph.Vertex{ID: unigraph.StringID(id), Type: coll, Properties: properties(doc)}, true
}

func edgeOf(doc map[string]any) (unigraph.Edge, bool) {
	id, _ := doc["_id"].(string)
	coll, _, ok := splitID(unigraph.StringID(id))
	if !ok || !isEdgeDoc(doc) {
		return unigraph.Edge{}, false
	}
	return unigraph.Edge{
		ID:         unigraph.StringID(id),
		Type:       coll,
		From:       unigraph.StringID(doc["_from"].(string)),
		To:         unigraph.StringID(doc["_to"].(string)),
		Properties: properties(doc),
	}, true
}

// object decodes a result document. Non-objects yield nil.
func object(raw json.RawMessage) (map[string]any, error) {
	x, err := decode(raw)
	if err != nil {
		return nil, err
	}
	m, _ := x.(map[string]any)
	return m, nil
}
