package client

import (
	"context"
	"slices"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/dialect/graphwalk"
)

func validatePath(opts unigraph.PathOptions) error {
	if err := opts.Direction.Validate(); err != nil {
		return err
	}
	if opts.MaxDepth < 0 {
		return unigraph.Errorf(unigraph.KindInvalidQuery, "negative max depth %d", opts.MaxDepth)
	}
	if err := validateFilters(opts.VertexFilters); err != nil {
		return err
	}
	return validateFilters(opts.EdgeFilters)
}

// ShortestPath returns a path with the fewest edges between two vertices, or
// nil when none exists within opts. The native algorithm of the backend is
// used when it can express opts.
func (tx *Tx) ShortestPath(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (*unigraph.Path, error) {
	return call(ctx, tx, "shortest-path", dialect.ClassTraversal, func(ctx context.Context) (*unigraph.Path, error) {
		if err := validatePath(opts); err != nil {
			return nil, err
		}
		if n, ok := tx.tx.(dialect.ShortestPather); ok {
			p, err := n.ShortestPath(ctx, from, to, opts)
			if !dialect.IsNotNative(err) {
				return p, err
			}
		}
		return graphwalk.New(tx.tx).ShortestPath(ctx, from, to, opts)
	})
}

// AllPaths returns simple paths between two vertices, shortest first. A
// positive limit caps the number of paths.
func (tx *Tx) AllPaths(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions, limit int) ([]unigraph.Path, error) {
	return call(ctx, tx, "all-paths", dialect.ClassTraversal, func(ctx context.Context) ([]unigraph.Path, error) {
		if err := validatePath(opts); err != nil {
			return nil, err
		}
		if limit < 0 {
			return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "negative limit %d", limit)
		}
		if n, ok := tx.tx.(dialect.AllPather); ok {
			if n.ShortestFirst() {
				ps, err := n.AllPaths(ctx, from, to, opts, limit)
				if !dialect.IsNotNative(err) {
					return ps, err
				}
			} else {
				// Unordered backends page before we can sort, so fetch every path.
				ps, err := n.AllPaths(ctx, from, to, opts, 0)
				if !dialect.IsNotNative(err) {
					if err != nil {
						return nil, err
					}
					slices.SortStableFunc(ps, func(a, b unigraph.Path) int { return a.Length - b.Length })
					if limit > 0 && len(ps) > limit {
						ps = ps[:limit]
					}
					return ps, nil
				}
			}
		}
		return graphwalk.New(tx.tx).AllPaths(ctx, from, to, opts, limit)
	})
}

// PathExists reports whether to is reachable from from within opts.
func (tx *Tx) PathExists(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (bool, error) {
	return call(ctx, tx, "path-exists", dialect.ClassTraversal, func(ctx context.Context) (bool, error) {
		if err := validatePath(opts); err != nil {
			return false, err
		}
		if n, ok := tx.tx.(dialect.PathExister); ok {
			found, err := n.PathExists(ctx, from, to, opts)
			if !dialect.IsNotNative(err) {
				return found, err
			}
		}
		return graphwalk.New(tx.tx).PathExists(ctx, from, to, opts)
	})
}

// Neighborhood returns the subgraph within opts.Depth hops of center. The
// center is the first vertex of the result and counts toward MaxVertices.
func (tx *Tx) Neighborhood(ctx context.Context, center unigraph.ElementID, opts unigraph.NeighborhoodOptions) (*unigraph.Subgraph, error) {
	return call(ctx, tx, "neighborhood", dialect.ClassTraversal, func(ctx context.Context) (*unigraph.Subgraph, error) {
		return graphwalk.New(tx.tx).Neighborhood(ctx, center, opts)
	})
}

// VerticesAtDistance returns the vertices whose shortest hop distance from
// source is exactly distance.
func (tx *Tx) VerticesAtDistance(ctx context.Context, source unigraph.ElementID, distance int, dir unigraph.Direction, edgeTypes []string) ([]unigraph.Vertex, error) {
	return call(ctx, tx, "vertices-at-distance", dialect.ClassTraversal, func(ctx context.Context) ([]unigraph.Vertex, error) {
		return graphwalk.New(tx.tx).AtDistance(ctx, source, distance, dir, edgeTypes)
	})
}
