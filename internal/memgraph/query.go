package memgraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/syssam/unigraph"
)

// ExecuteQuery implements dialect.Tx for a small command language:
//
//	vertices [type]
//	edges [type]
//	count vertices|edges [type]
//
// Every parameter becomes an equality filter on the property of the same
// name.
func (tx *Tx) ExecuteQuery(ctx context.Context, query string, params unigraph.PropertyMap, opts unigraph.QueryOptions) (*unigraph.QueryExecutionResult, error) {
	if err := tx.enter(ctx, "execute-query", false); err != nil {
		return nil, err
	}
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "memgraph: empty query")
	}
	count := fields[0] == "count"
	if count {
		fields = fields[1:]
	}
	if len(fields) == 0 || len(fields) > 2 || fields[0] != "vertices" && fields[0] != "edges" {
		return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "memgraph: cannot parse %q", query)
	}
	typ := ""
	if len(fields) == 2 {
		typ = fields[1]
	}
	filters := make([]unigraph.FilterCondition, 0, len(params))
	for _, p := range params.Normalize() {
		filters = append(filters, unigraph.Field(p.Name).EQ(p.Value))
	}

	res := &unigraph.QueryExecutionResult{}
	if opts.Explain || opts.Profile {
		plan := fmt.Sprintf("scan %s type=%q filters=%d", fields[0], typ, len(filters))
		if count {
			plan = "count <- " + plan
		}
		res.Explanation = &plan
		if opts.Explain && !opts.Profile {
			return res, nil
		}
	}

	start := time.Now()
	switch {
	case fields[0] == "vertices":
		vs, err := tx.FindVertices(ctx, unigraph.FindVerticesOptions{Type: typ, Filters: filters})
		if err != nil {
			return nil, err
		}
		if count {
			res.Result = unigraph.QueryResult{Kind: unigraph.ResultValues, Values: []unigraph.Value{unigraph.Int64(int64(len(vs)))}}
		} else {
			res.Result = unigraph.QueryResult{Kind: unigraph.ResultVertices, Vertices: unigraph.Page(vs, 0, opts.MaxResults)}
		}
	default:
		var types []string
		if typ != "" {
			types = []string{typ}
		}
		es, err := tx.FindEdges(ctx, unigraph.FindEdgesOptions{Types: types, Filters: filters})
		if err != nil {
			return nil, err
		}
		if count {
			res.Result = unigraph.QueryResult{Kind: unigraph.ResultValues, Values: []unigraph.Value{unigraph.Int64(int64(len(es)))}}
		} else {
			res.Result = unigraph.QueryResult{Kind: unigraph.ResultEdges, Edges: unigraph.Page(es, 0, opts.MaxResults)}
		}
	}
	elapsed := time.Since(start)
	res.ExecutionTime = &elapsed
	if opts.Profile {
		prof := fmt.Sprintf("rows=%d time=%s", res.Result.Len(), elapsed)
		res.Profile = &prof
	}
	return res, nil
}
