package graphwalk

import (
	"context"

	"github.com/syssam/unigraph"
)

// Neighborhood expands breadth-first from center up to opts.Depth hops. The
// result holds center first, then vertices in discovery order, and the
// edges whose both endpoints were kept. When MaxVertices is positive the
// expansion stops once that many vertices are held, center included.
func (w *Walker) Neighborhood(ctx context.Context, center unigraph.ElementID, opts unigraph.NeighborhoodOptions) (*unigraph.Subgraph, error) {
	if err := opts.Direction.Validate(); err != nil {
		return nil, err
	}
	if opts.Depth < 0 {
		return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "negative neighborhood depth %d", opts.Depth)
	}
	if opts.MaxVertices < 0 {
		return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "negative max vertices %d", opts.MaxVertices)
	}
	cv, err := w.vertex(ctx, center)
	if err != nil {
		return nil, err
	}
	if cv == nil {
		return nil, unigraph.NotFound(center)
	}
	var (
		sg       = &unigraph.Subgraph{Vertices: []unigraph.Vertex{*cv}}
		kept     = map[unigraph.ElementID]bool{center: true}
		seenEdge = map[unigraph.ElementID]bool{}
		candEdge []unigraph.Edge
		frontier = []unigraph.ElementID{center}
		full     = func() bool { return opts.MaxVertices > 0 && len(sg.Vertices) >= opts.MaxVertices }
	)
	for depth := 0; depth < opts.Depth && len(frontier) > 0 && !full(); depth++ {
		var next []unigraph.ElementID
	expand:
		for _, id := range frontier {
			hs, err := w.hops(ctx, id, opts.Direction, opts.EdgeTypes)
			if err != nil {
				return nil, err
			}
			for _, h := range hs {
				if !seenEdge[h.edge.ID] {
					seenEdge[h.edge.ID] = true
					candEdge = append(candEdge, h.edge)
				}
				if kept[h.next] {
					continue
				}
				if full() {
					break expand
				}
				v, err := w.vertex(ctx, h.next)
				if err != nil {
					return nil, err
				}
				if v == nil {
					continue
				}
				kept[h.next] = true
				sg.Vertices = append(sg.Vertices, *v)
				next = append(next, h.next)
			}
		}
		frontier = next
	}
	for _, e := range candEdge {
		if kept[e.From] && kept[e.To] {
			sg.Edges = append(sg.Edges, e)
		}
	}
	return sg, nil
}

// AtDistance returns the vertices whose shortest hop distance from source
// is exactly distance, in discovery order. Distance zero yields the source.
func (w *Walker) AtDistance(ctx context.Context, source unigraph.ElementID, distance int, dir unigraph.Direction, edgeTypes []string) ([]unigraph.Vertex, error) {
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	if distance < 0 {
		return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "negative distance %d", distance)
	}
	sv, err := w.vertex(ctx, source)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, unigraph.NotFound(source)
	}
	if distance == 0 {
		return []unigraph.Vertex{*sv}, nil
	}
	visited := map[unigraph.ElementID]bool{source: true}
	frontier := []unigraph.ElementID{source}
	for depth := 0; depth < distance && len(frontier) > 0; depth++ {
		var next []unigraph.ElementID
		for _, id := range frontier {
			hs, err := w.hops(ctx, id, dir, edgeTypes)
			if err != nil {
				return nil, err
			}
			for _, h := range hs {
				if !visited[h.next] {
					visited[h.next] = true
					next = append(next, h.next)
				}
			}
		}
		frontier = next
	}
	out := make([]unigraph.Vertex, 0, len(frontier))
	for _, id := range frontier {
		v, err := w.vertex(ctx, id)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}
