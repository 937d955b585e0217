// Package graphwalk composes traversals from adjacency lookups for backends
// without a native algorithm, or when a native algorithm cannot express the
// requested constraints.
//
// All searches are breadth-first. Within one hop, edges are visited in the
// order of their identifiers, so discovery order (and therefore truncation)
// is stable across calls with identical inputs.
package graphwalk

import (
	"context"
	"slices"
	"strings"

	"github.com/syssam/unigraph"
)

// Source is the slice of a transaction a walk needs. Every dialect.Tx
// satisfies it.
type Source interface {
	GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error)
	ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error)
}

// Walker runs traversals over a Source. Vertices are fetched once per walker;
// a Walker must not outlive the transaction it reads from.
type Walker struct {
	src      Source
	vertices map[unigraph.ElementID]*unigraph.Vertex
}

// New returns a walker reading from src.
func New(src Source) *Walker {
	return &Walker{src: src, vertices: make(map[unigraph.ElementID]*unigraph.Vertex)}
}

type hop struct {
	edge unigraph.Edge
	next unigraph.ElementID
}

// vertex returns the vertex or nil when it does not resolve.
func (w *Walker) vertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	if v, ok := w.vertices[id]; ok {
		return v, nil
	}
	v, err := w.src.GetVertex(ctx, id)
	if err != nil {
		return nil, err
	}
	w.vertices[id] = v
	return v, nil
}

func (w *Walker) hops(ctx context.Context, id unigraph.ElementID, dir unigraph.Direction, edgeTypes []string) ([]hop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	edges, err := w.src.ConnectedEdges(ctx, id, unigraph.AdjacencyOptions{Direction: dir, EdgeTypes: edgeTypes})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(edges, func(a, b unigraph.Edge) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	edges = slices.CompactFunc(edges, func(a, b unigraph.Edge) bool { return a.ID == b.ID })
	hs := make([]hop, 0, len(edges))
	for _, e := range edges {
		next := e.To
		switch {
		case dir == unigraph.Incoming:
			next = e.From
		case dir == unigraph.Both:
			next = e.Other(id)
		}
		hs = append(hs, hop{edge: e, next: next})
	}
	return hs, nil
}

// constraints evaluates PathOptions filters on discovered elements.
type constraints struct {
	opts unigraph.PathOptions
}

func (c constraints) edge(e *unigraph.Edge) (bool, error) {
	return unigraph.MatchAll(e.Properties, c.opts.EdgeFilters)
}

func (c constraints) vertex(v *unigraph.Vertex) (bool, error) {
	if len(c.opts.VertexTypes) > 0 && !slices.Contains(c.opts.VertexTypes, v.Type) {
		return false, nil
	}
	return unigraph.MatchAll(v.Properties, c.opts.VertexFilters)
}

func validatePathOptions(opts unigraph.PathOptions) error {
	if err := opts.Direction.Validate(); err != nil {
		return err
	}
	if opts.MaxDepth < 0 {
		return unigraph.Errorf(unigraph.KindInvalidQuery, "negative max depth %d", opts.MaxDepth)
	}
	for _, f := range slices.Concat(opts.VertexFilters, opts.EdgeFilters) {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// step expands one hop from id, returning admitted hops with their target
// vertices loaded.
func (w *Walker) step(ctx context.Context, id unigraph.ElementID, c constraints) ([]hop, []*unigraph.Vertex, error) {
	hs, err := w.hops(ctx, id, c.opts.Direction, c.opts.EdgeTypes)
	if err != nil {
		return nil, nil, err
	}
	var (
		out []hop
		vs  []*unigraph.Vertex
	)
	for _, h := range hs {
		ok, err := c.edge(&h.edge)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		v, err := w.vertex(ctx, h.next)
		if err != nil {
			return nil, nil, err
		}
		if v == nil {
			continue
		}
		if ok, err = c.vertex(v); err != nil {
			return nil, nil, err
		} else if !ok {
			continue
		}
		out = append(out, h)
		vs = append(vs, v)
	}
	return out, vs, nil
}
