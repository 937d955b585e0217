package dialect

import (
	"context"
	"fmt"

	"github.com/syssam/unigraph"
)

// Union joins per-direction adjacency results for Direction Both. Elements
// are deduplicated by identifier keeping the first occurrence; limit applies
// after the union.
func Union[T any](id func(T) unigraph.ElementID, limit int, parts ...[]T) []T {
	seen := make(map[unigraph.ElementID]struct{})
	var out []T
	for _, part := range parts {
		for _, x := range part {
			k := id(x)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, x)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

// VertexID returns the identifier of v.
func VertexID(v unigraph.Vertex) unigraph.ElementID { return v.ID }

// EdgeID returns the identifier of e.
func EdgeID(e unigraph.Edge) unigraph.ElementID { return e.ID }

// Directions expands Both into Outgoing then Incoming.
func Directions(d unigraph.Direction) []unigraph.Direction {
	if d == unigraph.Both {
		return []unigraph.Direction{unigraph.Outgoing, unigraph.Incoming}
	}
	return []unigraph.Direction{d}
}

// matchFilters builds equality filters for the natural key of an upsert.
func matchFilters(props unigraph.PropertyMap, names []string) ([]unigraph.FilterCondition, error) {
	filters := make([]unigraph.FilterCondition, 0, len(names))
	for _, name := range names {
		v, ok := props.Get(name)
		if !ok || v.IsNull() {
			return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "upsert: match key %q has no value in properties", name)
		}
		filters = append(filters, unigraph.Field(name).EQ(v))
	}
	return filters, nil
}

// UpsertVertex implements upsert over the primitive operations of tx. An
// identifier that resolves selects the vertex to replace; otherwise the
// first vertex of opts.Type matching the MatchOn properties is replaced;
// otherwise a vertex is created.
func UpsertVertex(ctx context.Context, tx Tx, opts unigraph.UpsertVertexOptions) (*unigraph.Vertex, error) {
	if opts.ID != nil {
		v, err := tx.GetVertex(ctx, *opts.ID)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return tx.UpdateVertex(ctx, v.ID, opts.Properties)
		}
	}
	if len(opts.MatchOn) > 0 {
		filters, err := matchFilters(opts.Properties, opts.MatchOn)
		if err != nil {
			return nil, err
		}
		vs, err := tx.FindVertices(ctx, unigraph.FindVerticesOptions{Type: opts.Type, Filters: filters, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(vs) > 0 {
			return tx.UpdateVertex(ctx, vs[0].ID, opts.Properties)
		}
	}
	return tx.CreateVertex(ctx, opts.Type, nil, opts.Properties)
}

// UpsertEdge is UpsertVertex for edges. The natural key also includes the
// endpoints.
func UpsertEdge(ctx context.Context, tx Tx, opts unigraph.UpsertEdgeOptions) (*unigraph.Edge, error) {
	if opts.ID != nil {
		e, err := tx.GetEdge(ctx, *opts.ID)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return tx.UpdateEdge(ctx, e.ID, opts.Properties)
		}
	}
	if len(opts.MatchOn) > 0 {
		filters, err := matchFilters(opts.Properties, opts.MatchOn)
		if err != nil {
			return nil, err
		}
		es, err := tx.ConnectedEdges(ctx, opts.From, unigraph.AdjacencyOptions{
			Direction: unigraph.Outgoing,
			EdgeTypes: []string{opts.Type},
		})
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			if e.To != opts.To {
				continue
			}
			ok, err := unigraph.MatchAll(e.Properties, filters)
			if err != nil {
				return nil, err
			}
			if ok {
				return tx.UpdateEdge(ctx, e.ID, opts.Properties)
			}
		}
	}
	return tx.CreateEdge(ctx, opts.Type, opts.From, opts.To, opts.Properties)
}

// CreateVertices creates vertices one by one inside tx. The first failure
// is returned with the index of the failing spec; vertices created before
// it are undone by rolling back tx.
func CreateVertices(ctx context.Context, tx Tx, specs []unigraph.VertexSpec) ([]unigraph.Vertex, error) {
	out := make([]unigraph.Vertex, 0, len(specs))
	for i, s := range specs {
		v, err := tx.CreateVertex(ctx, s.Type, s.Labels, s.Properties)
		if err != nil {
			return nil, fmt.Errorf("batch vertex %d: %w", i, err)
		}
		out = append(out, *v)
	}
	return out, nil
}

// CreateEdges is CreateVertices for edges.
func CreateEdges(ctx context.Context, tx Tx, specs []unigraph.EdgeSpec) ([]unigraph.Edge, error) {
	out := make([]unigraph.Edge, 0, len(specs))
	for i, s := range specs {
		e, err := tx.CreateEdge(ctx, s.Type, s.From, s.To, s.Properties)
		if err != nil {
			return nil, fmt.Errorf("batch edge %d: %w", i, err)
		}
		out = append(out, *e)
	}
	return out, nil
}
