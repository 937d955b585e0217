package gremlin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/unigraph"
)

// valueOf converts a decoded GraphSON value. Collections and elements have
// no value variant and are returned as JSON text.
func valueOf(x any) unigraph.Value {
	switch t := x.(type) {
	case nil:
		return unigraph.Null()
	case unigraph.Value:
		return t
	case bool:
		return unigraph.Bool(t)
	case int64:
		return unigraph.Int64(t)
	case float64:
		return unigraph.Float64(t)
	case string:
		return unigraph.String(t)
	case uuid.UUID:
		return unigraph.String(t.String())
	case time.Time:
		v, err := unigraph.DatetimeValue(unigraph.DatetimeOf(t))
		if err != nil {
			return unigraph.String(t.Format(time.RFC3339Nano))
		}
		return v
	case token:
		return unigraph.String(string(t))
	case direction:
		return unigraph.String(string(t))
	case relation:
		return unigraph.String(string(t))
	case vprop:
		return valueOf(t.value)
	case prop:
		return valueOf(t.value)
	}
	b, err := json.Marshal(plain(x))
	if err != nil {
		return unigraph.String(fmt.Sprint(x))
	}
	return unigraph.String(string(b))
}

// plain converts a decoded value into JSON-friendly Go values.
func plain(x any) any {
	switch t := x.(type) {
	case []any:
		out := make([]any, len(t))
		for i, y := range t {
			out[i] = plain(y)
		}
		return out
	case gmap:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[valueOf(e.key).String()] = plain(e.value)
		}
		return out
	case gpath:
		return plain(t.objects)
	case unigraph.Vertex:
		return map[string]any{"id": t.ID.Native(), "label": t.Type, "properties": plainProps(t.Properties)}
	case unigraph.Edge:
		return map[string]any{"id": t.ID.Native(), "label": t.Type, "outV": t.From.Native(), "inV": t.To.Native(), "properties": plainProps(t.Properties)}
	case unigraph.Value:
		return t.Interface()
	case vprop, prop, token, direction, relation, uuid.UUID, time.Time:
		return valueOf(t).Interface()
	}
	return x
}

func plainProps(ps unigraph.PropertyMap) map[string]any {
	out := make(map[string]any, len(ps))
	for _, p := range ps {
		out[p.Name] = p.Value.Interface()
	}
	return out
}

// idOf converts a decoded element identifier.
func idOf(x any) (unigraph.ElementID, bool) {
	switch t := x.(type) {
	case int64:
		return unigraph.Int64ID(t), true
	case string:
		return unigraph.StringID(t), true
	case uuid.UUID:
		return unigraph.UUIDID(t), true
	case relation:
		return unigraph.StringID(string(t)), true
	}
	return unigraph.ElementID{}, false
}

// Keys of elementMap results.
const (
	keyID    = token("id")
	keyLabel = token("label")
	keyIn    = direction("IN")
	keyOut   = direction("OUT")
)

// vertexOf converts a g:Vertex or a vertex elementMap.
func vertexOf(x any) (unigraph.Vertex, bool) {
	switch t := x.(type) {
	case unigraph.Vertex:
		return t, true
	case gmap:
		if _, ok := t.get(keyIn); ok {
			return unigraph.Vertex{}, false
		}
		id, label, ok := header(t)
		if !ok {
			return unigraph.Vertex{}, false
		}
		return unigraph.Vertex{ID: id, Type: label, Properties: properties(t)}, true
	}
	return unigraph.Vertex{}, false
}

// edgeOf converts a g:Edge or an edge elementMap.
func edgeOf(x any) (unigraph.Edge, bool) {
	switch t := x.(type) {
	case unigraph.Edge:
		return t, true
	case gmap:
		id, label, ok := header(t)
		if !ok {
			return unigraph.Edge{}, false
		}
		from, ok1 := endpoint(t, keyOut)
		to, ok2 := endpoint(t, keyIn)
		if !ok1 || !ok2 {
			return unigraph.Edge{}, false
		}
		return unigraph.Edge{ID: id, Type: label, From: from, To: to, Properties: properties(t)}, true
	}
	return unigraph.Edge{}, false
}

func header(m gmap) (unigraph.ElementID, string, bool) {
	x, ok := m.get(keyID)
	if !ok {
		return unigraph.ElementID{}, "", false
	}
	id, ok := idOf(x)
	if !ok {
		return unigraph.ElementID{}, "", false
	}
	l, _ := m.get(keyLabel)
	label, _ := l.(string)
	return id, label, true
}

func endpoint(m gmap, d direction) (unigraph.ElementID, bool) {
	x, ok := m.get(d)
	if !ok {
		return unigraph.ElementID{}, false
	}
	end, ok := x.(gmap)
	if !ok {
		return idOf(x)
	}
	id, _, ok := header(end)
	return id, ok
}

// properties returns the string-keyed entries of an elementMap sorted by
// name. Multi-valued properties keep their first value.
func properties(m gmap) unigraph.PropertyMap {
	out := unigraph.PropertyMap{}
	for _, e := range m {
		k, ok := e.key.(string)
		if !ok {
			continue
		}
		v := e.value
		if xs, ok := v.([]any); ok && len(xs) > 0 {
			v = xs[0]
		}
		out = append(out, unigraph.Property{Name: k, Value: valueOf(v)})
	}
	return out.Sorted()
}

// pathOf converts a g:Path whose objects alternate vertices and edges.
func pathOf(x any) (unigraph.Path, bool) {
	p, ok := x.(gpath)
	if !ok || len(p.objects)%2 == 0 {
		return unigraph.Path{}, false
	}
	var (
		vs []unigraph.Vertex
		es []unigraph.Edge
	)
	for i, o := range p.objects {
		if i%2 == 0 {
			v, ok := vertexOf(o)
			if !ok {
				return unigraph.Path{}, false
			}
			vs = append(vs, v)
			continue
		}
		e, ok := edgeOf(o)
		if !ok {
			return unigraph.Path{}, false
		}
		es = append(es, e)
	}
	return unigraph.NewPath(vs, es), true
}

// rowOf converts a map with string keys into a row in key order.
func rowOf(x any) (unigraph.Row, bool) {
	m, ok := x.(gmap)
	if !ok {
		return nil, false
	}
	row := make(unigraph.Row, 0, len(m))
	for _, e := range m {
		k, ok := e.key.(string)
		if !ok {
			return nil, false
		}
		row = append(row, unigraph.Property{Name: k, Value: valueOf(e.value)})
	}
	return row, true
}
