package arangodb

import (
	"context"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
)

// ends validates a path request and returns the edge collections to walk.
// It reports false when no path can exist.
func (tx *Tx) ends(from, to unigraph.ElementID, opts unigraph.PathOptions) ([]string, bool, error) {
	if opts.HasElementFilters() || from == to {
		return nil, false, dialect.ErrNotNative
	}
	_, ok1 := tx.owner(from, false)
	_, ok2 := tx.owner(to, false)
	names := tx.edgeCollections(opts.EdgeTypes)
	return names, ok1 && ok2 && len(names) > 0, nil
}

// ShortestPath implements dialect.ShortestPather with SHORTEST_PATH. The
// depth bound is checked on the result.
func (tx *Tx) ShortestPath(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (*unigraph.Path, error) {
	names, ok, err := tx.ends(from, to, opts)
	if !ok {
		return nil, err
	}
	q := newQuery()
	q.set("from", handle(from))
	q.set("to", handle(to))
	aql := "FOR v, e IN " + direction(opts.Direction) + " SHORTEST_PATH @from TO @to " + q.collections(names) +
		" RETURN { v: v, e: e }"
	steps, err := tx.objects(ctx, aql, q.vars)
	if err != nil || len(steps) == 0 {
		return nil, err
	}
	var (
		vs []unigraph.Vertex
		es []unigraph.Edge
	)
	for i, s := range steps {
		vd, _ := s["v"].(map[string]any)
		v, ok := vertexOf(vd)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "arangodb: malformed shortest path step %d", i)
		}
		vs = append(vs, v)
		if i == 0 {
			continue
		}
		ed, _ := s["e"].(map[string]any)
		e, ok := edgeOf(ed)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "arangodb: malformed shortest path step %d", i)
		}
		es = append(es, e)
	}
	if opts.MaxDepth > 0 && len(es) > opts.MaxDepth {
		return nil, nil
	}
	p := unigraph.NewPath(vs, es)
	return &p, nil
}

// PathExists implements dialect.PathExister.
func (tx *Tx) PathExists(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (bool, error) {
	p, err := tx.ShortestPath(ctx, from, to, opts)
	return p != nil, err
}

// AllPaths implements dialect.AllPather with K_PATHS, keeping simple paths
// only. Unbounded searches are left to composition.
func (tx *Tx) AllPaths(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions, limit int) ([]unigraph.Path, error) {
	if opts.MaxDepth == 0 {
		return nil, dialect.ErrNotNative
	}
	names, ok, err := tx.ends(from, to, opts)
	if !ok {
		return nil, err
	}
	q := newQuery()
	q.set("from", handle(from))
	q.set("to", handle(to))
	aql := "FOR p IN 1.." + q.bind(int64(opts.MaxDepth)) + " " + direction(opts.Direction) +
		" K_PATHS @from TO @to " + q.collections(names) +
		" FILTER LENGTH(p.vertices) == LENGTH(UNIQUE(p.vertices[*]._id))" +
		" SORT LENGTH(p.edges)"
	if limit > 0 {
		aql += " LIMIT " + q.bind(int64(limit))
	}
	docs, err := tx.objects(ctx, aql+" RETURN p", q.vars)
	if err != nil {
		return nil, err
	}
	out := make([]unigraph.Path, 0, len(docs))
	for _, d := range docs {
		p, ok := pathOf(d)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "arangodb: malformed path")
		}
		out = append(out, p)
	}
	return out, nil
}

// ShortestFirst implements dialect.AllPather.
func (tx *Tx) ShortestFirst() bool { return true }
