package gremlin

import (
	"context"
	"time"

	"github.com/syssam/unigraph"
)

// ExecuteQuery implements dialect.Tx. The query is a Gremlin-Groovy script;
// params are passed as bindings. A query in an op-log transaction runs
// immediately against the committed graph and is not part of the log.
func (tx *Tx) ExecuteQuery(ctx context.Context, query string, ps unigraph.PropertyMap, opts unigraph.QueryOptions) (*unigraph.QueryExecutionResult, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	if opts.Explain && !opts.Profile {
		return nil, unigraph.Unsupported("gremlin: explain without execution")
	}
	s := newScript()
	s.lines = []string{query}
	for _, p := range ps.Normalize() {
		x, err := encode(p.Value)
		if err != nil {
			return nil, unigraph.WrapError(unigraph.KindInvalidPropertyType, err)
		}
		s.bindings[p.Name] = x
	}
	var extra map[string]any
	if opts.Timeout > 0 {
		extra = map[string]any{"evaluationTimeout": typed{"g:Int64", opts.Timeout.Milliseconds()}}
	}
	if tx.log != nil {
		tx.log.bypassed = true
	}
	start := time.Now()
	xs, err := tx.submit(ctx, s, extra)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	if opts.MaxResults > 0 && len(xs) > opts.MaxResults {
		xs = xs[:opts.MaxResults]
	}
	return &unigraph.QueryExecutionResult{Result: reshape(xs), ExecutionTime: &elapsed}, nil
}

// reshape returns the narrowest result kind shared by every item.
func reshape(xs []any) unigraph.QueryResult {
	if len(xs) == 0 {
		return unigraph.QueryResult{Kind: unigraph.ResultValues}
	}
	if vs, ok := all(xs, vertexOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultVertices, Vertices: vs}
	}
	if es, ok := all(xs, edgeOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultEdges, Edges: es}
	}
	if ps, ok := all(xs, pathOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultPaths, Paths: ps}
	}
	if rows, ok := all(xs, rowOf); ok {
		return unigraph.QueryResult{Kind: unigraph.ResultRows, Rows: rows}
	}
	vs := make([]unigraph.Value, len(xs))
	for i, x := range xs {
		vs[i] = valueOf(x)
	}
	return unigraph.QueryResult{Kind: unigraph.ResultValues, Values: vs}
}

func all[T any](xs []any, conv func(any) (T, bool)) ([]T, bool) {
	out := make([]T, len(xs))
	for i, x := range xs {
		v, ok := conv(x)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
