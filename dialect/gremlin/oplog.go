package gremlin

import (
	"slices"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/schema"
)

// oplog holds the pending mutations of an op-log transaction: the script
// replayed on commit and the elements it creates, replaces or deletes. A
// nil element marks a deletion.
type oplog struct {
	s        *script
	vertices map[unigraph.ElementID]*unigraph.Vertex
	edges    map[unigraph.ElementID]*unigraph.Edge
	vorder   []unigraph.ElementID
	eorder   []unigraph.ElementID
	bypassed bool // a native query ran outside the log
}

func newOplog() *oplog {
	return &oplog{
		s:        newScript(),
		vertices: make(map[unigraph.ElementID]*unigraph.Vertex),
		edges:    make(map[unigraph.ElementID]*unigraph.Edge),
	}
}

// pending reports whether mutations wait for commit.
func (l *oplog) pending() bool { return len(l.s.lines) > 0 }

// vertex returns the pending state of id. known is false when the log
// does not touch the vertex.
func (l *oplog) vertex(id unigraph.ElementID) (v *unigraph.Vertex, known bool) {
	v, known = l.vertices[id]
	if v != nil {
		c := *v
		v = &c
	}
	return v, known
}

func (l *oplog) edge(id unigraph.ElementID) (e *unigraph.Edge, known bool) {
	e, known = l.edges[id]
	if e != nil {
		c := *e
		e = &c
	}
	return e, known
}

func (l *oplog) putVertex(v unigraph.Vertex) {
	if _, ok := l.vertices[v.ID]; !ok {
		l.vorder = append(l.vorder, v.ID)
	}
	l.vertices[v.ID] = &v
}

func (l *oplog) putEdge(e unigraph.Edge) {
	if _, ok := l.edges[e.ID]; !ok {
		l.eorder = append(l.eorder, e.ID)
	}
	l.edges[e.ID] = &e
}

// dropVertex deletes a vertex and the pending edges incident to it. Stored
// incident edges are hidden by visible.
func (l *oplog) dropVertex(id unigraph.ElementID) {
	if _, ok := l.vertices[id]; !ok {
		l.vorder = append(l.vorder, id)
	}
	l.vertices[id] = nil
	for _, e := range l.edges {
		if e != nil && (e.From == id || e.To == id) {
			l.edges[e.ID] = nil
		}
	}
}

func (l *oplog) dropEdge(id unigraph.ElementID) {
	if _, ok := l.edges[id]; !ok {
		l.eorder = append(l.eorder, id)
	}
	l.edges[id] = nil
}

// deleted reports whether the log deletes vertex id.
func (l *oplog) deleted(id unigraph.ElementID) bool {
	v, ok := l.vertices[id]
	return ok && v == nil
}

// visible reports whether a stored edge survives the log.
func (l *oplog) visible(e unigraph.Edge) bool {
	return !l.deleted(e.From) && !l.deleted(e.To)
}

// typeMatch reports whether a vertex is selected by a type filter. The
// empty type selects every type except schema records.
func typeMatch(v unigraph.Vertex, typ string) bool {
	if typ == "" {
		return v.Type != schema.MetadataType
	}
	return v.Type == typ
}

// applyVertices overlays the log on stored vertices of typ, appending the
// vertices the log creates.
func (l *oplog) applyVertices(stored []unigraph.Vertex, typ string) []unigraph.Vertex {
	seen := make(map[unigraph.ElementID]bool, len(stored))
	out := make([]unigraph.Vertex, 0, len(stored))
	for _, v := range stored {
		seen[v.ID] = true
		if p, ok := l.vertices[v.ID]; ok {
			if p != nil && typeMatch(*p, typ) {
				out = append(out, *p)
			}
			continue
		}
		out = append(out, v)
	}
	for _, id := range l.vorder {
		if p := l.vertices[id]; p != nil && !seen[id] && typeMatch(*p, typ) {
			out = append(out, *p)
		}
	}
	return out
}

// applyEdges overlays the log on stored edges, appending the pending edges
// accepted by keep.
func (l *oplog) applyEdges(stored []unigraph.Edge, keep func(unigraph.Edge) bool) []unigraph.Edge {
	seen := make(map[unigraph.ElementID]bool, len(stored))
	out := make([]unigraph.Edge, 0, len(stored))
	for _, e := range stored {
		seen[e.ID] = true
		if p, ok := l.edges[e.ID]; ok {
			if p != nil {
				out = append(out, *p)
			}
			continue
		}
		if l.visible(e) {
			out = append(out, e)
		}
	}
	for _, id := range l.eorder {
		if p := l.edges[id]; p != nil && !seen[id] && keep(*p) {
			out = append(out, *p)
		}
	}
	return out
}

// selectElements applies filters, sort keys and paging on the client.
func selectElements[T any](items []T, props func(T) unigraph.PropertyMap, filters []unigraph.FilterCondition,
	sort []unigraph.SortSpec, offset, limit int) ([]T, error) {
	out := items[:0:0]
	for _, x := range items {
		ok, err := unigraph.MatchAll(props(x), filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, x)
		}
	}
	unigraph.SortElements(out, props, sort)
	return slices.Clip(unigraph.Page(out, offset, limit)), nil
}

func vertexProps(v unigraph.Vertex) unigraph.PropertyMap { return v.Properties }
func edgeProps(e unigraph.Edge) unigraph.PropertyMap     { return e.Properties }
