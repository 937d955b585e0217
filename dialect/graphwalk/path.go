package graphwalk

import (
	"context"

	"github.com/syssam/unigraph"
)

type parent struct {
	from unigraph.ElementID
	edge unigraph.Edge
}

// ShortestPath returns a path of minimum edge count from one vertex to
// another, or nil when none exists within the constraints. A missing
// endpoint yields nil. Vertex constraints apply to every vertex but the
// first.
func (w *Walker) ShortestPath(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (*unigraph.Path, error) {
	if err := validatePathOptions(opts); err != nil {
		return nil, err
	}
	src, err := w.vertex(ctx, from)
	if err != nil || src == nil {
		return nil, err
	}
	if from == to {
		p := unigraph.NewPath([]unigraph.Vertex{*src}, nil)
		return &p, nil
	}
	c := constraints{opts: opts}
	parents := map[unigraph.ElementID]parent{}
	visited := map[unigraph.ElementID]bool{from: true}
	frontier := []unigraph.ElementID{from}
	for depth := 0; len(frontier) > 0 && (opts.MaxDepth == 0 || depth < opts.MaxDepth); depth++ {
		var next []unigraph.ElementID
		for _, id := range frontier {
			hs, _, err := w.step(ctx, id, c)
			if err != nil {
				return nil, err
			}
			for _, h := range hs {
				if visited[h.next] {
					continue
				}
				visited[h.next] = true
				parents[h.next] = parent{from: id, edge: h.edge}
				if h.next == to {
					return w.unwind(ctx, from, to, parents)
				}
				next = append(next, h.next)
			}
		}
		frontier = next
	}
	return nil, nil
}

func (w *Walker) unwind(ctx context.Context, from, to unigraph.ElementID, parents map[unigraph.ElementID]parent) (*unigraph.Path, error) {
	var (
		vs []unigraph.Vertex
		es []unigraph.Edge
	)
	for id := to; ; {
		v, err := w.vertex(ctx, id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, unigraph.Errorf(unigraph.KindInternal, "graphwalk: vertex %s vanished during walk", id)
		}
		vs = append(vs, *v)
		if id == from {
			break
		}
		p := parents[id]
		es = append(es, p.edge)
		id = p.from
	}
	reverse(vs)
	reverse(es)
	p := unigraph.NewPath(vs, es)
	return &p, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// PathExists reports whether ShortestPath would return a path, without
// building one.
func (w *Walker) PathExists(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (bool, error) {
	if err := validatePathOptions(opts); err != nil {
		return false, err
	}
	src, err := w.vertex(ctx, from)
	if err != nil || src == nil {
		return false, err
	}
	if from == to {
		return true, nil
	}
	c := constraints{opts: opts}
	visited := map[unigraph.ElementID]bool{from: true}
	frontier := []unigraph.ElementID{from}
	for depth := 0; len(frontier) > 0 && (opts.MaxDepth == 0 || depth < opts.MaxDepth); depth++ {
		var next []unigraph.ElementID
		for _, id := range frontier {
			hs, _, err := w.step(ctx, id, c)
			if err != nil {
				return false, err
			}
			for _, h := range hs {
				if h.next == to {
					return true, nil
				}
				if !visited[h.next] {
					visited[h.next] = true
					next = append(next, h.next)
				}
			}
		}
		frontier = next
	}
	return false, nil
}

// partial is a path under construction. Vertices repeat nowhere.
type partial struct {
	ids   []unigraph.ElementID
	verts []unigraph.Vertex
	edges []unigraph.Edge
}

func (p partial) contains(id unigraph.ElementID) bool {
	for _, x := range p.ids {
		if x == id {
			return true
		}
	}
	return false
}

func (p partial) extend(h hop, v *unigraph.Vertex) partial {
	return partial{
		ids:   append(p.ids[:len(p.ids):len(p.ids)], h.next),
		verts: append(p.verts[:len(p.verts):len(p.verts)], *v),
		edges: append(p.edges[:len(p.edges):len(p.edges)], h.edge),
	}
}

// AllPaths enumerates simple paths (no repeated vertex) between two
// vertices, shortest first, stopping after limit paths when limit is
// positive. A path from a vertex to itself is the single zero-length path.
func (w *Walker) AllPaths(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions, limit int) ([]unigraph.Path, error) {
	if err := validatePathOptions(opts); err != nil {
		return nil, err
	}
	src, err := w.vertex(ctx, from)
	if err != nil || src == nil {
		return nil, err
	}
	if from == to {
		return []unigraph.Path{unigraph.NewPath([]unigraph.Vertex{*src}, nil)}, nil
	}
	var (
		c     = constraints{opts: opts}
		paths []unigraph.Path
		queue = []partial{{ids: []unigraph.ElementID{from}, verts: []unigraph.Vertex{*src}}}
	)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if opts.MaxDepth > 0 && len(cur.edges) >= opts.MaxDepth {
			continue
		}
		last := cur.ids[len(cur.ids)-1]
		hs, vs, err := w.step(ctx, last, c)
		if err != nil {
			return nil, err
		}
		for i, h := range hs {
			if cur.contains(h.next) {
				continue
			}
			p := cur.extend(h, vs[i])
			if h.next == to {
				paths = append(paths, unigraph.NewPath(p.verts, p.edges))
				if limit > 0 && len(paths) >= limit {
					return paths, nil
				}
				continue
			}
			queue = append(queue, p)
		}
	}
	return paths, nil
}
