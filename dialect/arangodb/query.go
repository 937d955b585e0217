package arangodb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/syssam/unigraph"
)

// ExecuteQuery implements dialect.Tx. The query is AQL; params become bind
// variables, so collection parameters are passed as "@name" entries.
// Results of documents or edges are returned as elements, objects with
// vertices and edges arrays as paths, other objects as rows and everything
// else as values.
func (tx *Tx) ExecuteQuery(ctx context.Context, query string, ps unigraph.PropertyMap, opts unigraph.QueryOptions) (*unigraph.QueryExecutionResult, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	vars := make(map[string]any, len(ps))
	for _, p := range ps {
		x, err := attr(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		vars[p.Name] = x
	}
	if opts.Explain && !opts.Profile {
		plan, err := tx.db.explain(ctx, query, vars)
		if err != nil {
			return nil, convert(err)
		}
		s := indent(plan)
		return &unigraph.QueryExecutionResult{Result: unigraph.QueryResult{Kind: unigraph.ResultValues}, Explanation: &s}, nil
	}
	start := time.Now()
	c, err := tx.db.query(ctx, tx.tid, query, vars, opts.Profile)
	if err != nil {
		return nil, convert(err)
	}
	elapsed := c.elapsed
	if elapsed <= 0 {
		elapsed = time.Since(start)
	}
	docs := c.docs
	if opts.MaxResults > 0 && len(docs) > opts.MaxResults {
		docs = docs[:opts.MaxResults]
	}
	res, err := reshape(docs)
	if err != nil {
		return nil, err
	}
	writes := c.writes
	out := &unigraph.QueryExecutionResult{Result: res, ExecutionTime: &elapsed, RowsAffected: &writes}
	if c.profile != nil {
		s := indent(c.profile)
		out.Profile = &s
		out.Explanation = &s
	}
	return out, nil
}

// reshape decodes result documents into the narrowest result kind.
func reshape(raws []json.RawMessage) (unigraph.QueryResult, error) {
	xs := make([]any, len(raws))
	for i, raw := range raws {
		x, err := decode(raw)
		if err != nil {
			return unigraph.QueryResult{}, err
		}
		xs[i] = x
	}
	if len(xs) == 0 {
		return unigraph.QueryResult{Kind: unigraph.ResultValues}, nil
	}
	if vs, ok := all(xs, vertexOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultVertices, Vertices: vs}, nil
	}
	if es, ok := all(xs, edgeOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultEdges, Edges: es}, nil
	}
	if ps, ok := all(xs, pathOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultPaths, Paths: ps}, nil
	}
	if rows, ok := all(xs, rowOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultRows, Rows: rows}, nil
	}
	vs := make([]unigraph.Value, len(xs))
	for i, x := range xs {
		vs[i] = value(x)
	}
	return unigraph.QueryResult{Kind: unigraph.ResultValues, Values: vs}, nil
}

// all converts every object with conv, or reports false.
func all[T any](xs []any, conv func(map[string]any) (T, bool)) ([]T, bool) {
	out := make([]T, len(xs))
	for i, x := range xs {
		m, ok := x.(map[string]any)
		if !ok {
			return nil, false
		}
		if out[i], ok = conv(m); !ok {
			return nil, false
		}
	}
	return out, true
}

// pathOf converts a traversal path object {vertices, edges}.
func pathOf(m map[string]any) (unigraph.Path, bool) {
	vxs, ok1 := m["vertices"].([]any)
	exs, ok2 := m["edges"].([]any)
	if !ok1 || !ok2 || len(vxs) != len(exs)+1 {
		return unigraph.Path{}, false
	}
	vs, ok := all(vxs, vertexOf)
	if !ok {
		return unigraph.Path{}, false
	}
	es, ok := all(exs, edgeOf)
	if !ok {
		return unigraph.Path{}, false
	}
	return unigraph.NewPath(vs, es), true
}

// rowOf converts a plain object into a row ordered by attribute name.
func rowOf(m map[string]any) (unigraph.Row, bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	row := make(unigraph.Row, len(keys))
	for i, k := range keys {
		row[i] = unigraph.Property{Name: k, Value: value(m[k])}
	}
	return row, true
}

// indent pretty-prints a JSON payload.
func indent(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(b)
}
