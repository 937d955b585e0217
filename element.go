package unigraph

import (
	"fmt"
	"sort"
)

// Property is a single named value.
type Property struct {
	Name  string
	Value Value
}

// PropertyMap is an ordered list of properties. Names are not required to be
// unique; when a map is written to a backend, later entries win.
//
// Maps decoded from a backend are ordered by name.
type PropertyMap []Property

// Props builds a property map from alternating name and Go value arguments.
// It panics on malformed input and is intended for literals.
func Props(kv ...any) PropertyMap {
	if len(kv)%2 != 0 {
		panic("unigraph: Props requires name/value pairs")
	}
	m := make(PropertyMap, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("unigraph: Props name at %d is %T, not string", i, kv[i]))
		}
		m = append(m, Property{Name: name, Value: MustValue(kv[i+1])})
	}
	return m
}

// Get returns the last value stored under name.
func (m PropertyMap) Get(name string) (Value, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Name == name {
			return m[i].Value, true
		}
	}
	return Value{}, false
}

// Has reports whether the map holds a value under name.
func (m PropertyMap) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Names returns the distinct names in first-appearance order.
func (m PropertyMap) Names() []string {
	seen := make(map[string]struct{}, len(m))
	names := make([]string, 0, len(m))
	for _, p := range m {
		if _, ok := seen[p.Name]; !ok {
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names
}

// Normalize collapses duplicate names, keeping the last value of each name
// at the position of its first appearance.
func (m PropertyMap) Normalize() PropertyMap {
	if len(m) == 0 {
		return PropertyMap{}
	}
	out := make(PropertyMap, 0, len(m))
	idx := make(map[string]int, len(m))
	for _, p := range m {
		if i, ok := idx[p.Name]; ok {
			out[i].Value = p.Value
			continue
		}
		idx[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

// Merge returns m patched with update: names in update replace or extend m,
// names absent from update are kept, and null values in update remove the
// name. The result is normalized.
func (m PropertyMap) Merge(update PropertyMap) PropertyMap {
	merged := append(m.Normalize(), update.Normalize()...).Normalize()
	out := merged[:0]
	for _, p := range merged {
		if !p.Value.IsNull() {
			out = append(out, p)
		}
	}
	return out
}

// Sorted returns a normalized copy ordered by name.
func (m PropertyMap) Sorted() PropertyMap {
	out := m.Normalize()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Equal reports whether both maps hold the same names with equal values,
// regardless of order.
func (m PropertyMap) Equal(o PropertyMap) bool {
	a, b := m.Sorted(), o.Sorted()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

// Vertex is a graph node.
type Vertex struct {
	ID         ElementID
	Type       string
	Labels     []string // Secondary labels, empty on backends without multi-label support.
	Properties PropertyMap
}

// Edge is a directed relationship between two vertices.
type Edge struct {
	ID         ElementID
	Type       string
	From       ElementID
	To         ElementID
	Properties PropertyMap
}

// Other returns the endpoint of e opposite to id.
func (e *Edge) Other(id ElementID) ElementID {
	if e.From == id {
		return e.To
	}
	return e.From
}

// Path is an alternating walk of vertices and edges.
type Path struct {
	Vertices []Vertex
	Edges    []Edge
	Length   int
}

// NewPath returns a path over the given elements with its length set.
func NewPath(vertices []Vertex, edges []Edge) Path {
	return Path{Vertices: vertices, Edges: edges, Length: len(edges)}
}

// Validate checks that the length equals the edge count and that the
// vertex sequence is one longer than the edge sequence.
func (p *Path) Validate() error {
	if p.Length != len(p.Edges) {
		return Errorf(KindInternal, "path: length %d does not match %d edges", p.Length, len(p.Edges))
	}
	if len(p.Vertices) != len(p.Edges)+1 {
		return Errorf(KindInternal, "path: %d vertices for %d edges", len(p.Vertices), len(p.Edges))
	}
	return nil
}

// Subgraph is a set of vertices and the edges between them.
type Subgraph struct {
	Vertices []Vertex
	Edges    []Edge
}

// Direction selects edges by orientation relative to a vertex.
type Direction uint8

// Directions.
const (
	Outgoing Direction = iota
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Direction(%d)", d)
}

// Validate reports an invalid-query error for unknown directions.
func (d Direction) Validate() error {
	if d > Both {
		return Errorf(KindInvalidQuery, "unknown direction %d", d)
	}
	return nil
}
