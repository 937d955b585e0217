package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/syssam/unigraph"
)

// ExecuteQuery implements dialect.Tx. The query is Cypher; params are bound
// as Cypher parameters. Single-column results of nodes, relationships or
// paths are returned as elements, other single-column results as values and
// wider results as rows.
func (tx *Tx) ExecuteQuery(ctx context.Context, query string, ps unigraph.PropertyMap, opts unigraph.QueryOptions) (*unigraph.QueryExecutionResult, error) {
	m, err := params(ps)
	if err != nil {
		return nil, err
	}
	switch {
	case opts.Profile:
		query = "PROFILE " + query
	case opts.Explain:
		query = "EXPLAIN " + query
	}
	start := time.Now()
	res, err := tx.run(ctx, query, m)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	out := &unigraph.QueryExecutionResult{Result: reshape(res, opts.MaxResults)}
	if res.summary == nil {
		out.ExecutionTime = &elapsed
		return out, nil
	}
	t := res.summary.ResultAvailableAfter() + res.summary.ResultConsumedAfter()
	if t <= 0 {
		t = elapsed
	}
	out.ExecutionTime = &t
	if c := res.summary.Counters(); c != nil && c.ContainsUpdates() {
		n := int64(c.NodesCreated() + c.NodesDeleted() + c.RelationshipsCreated() + c.RelationshipsDeleted() + c.PropertiesSet())
		out.RowsAffected = &n
	}
	if p := res.summary.Plan(); p != nil {
		s := renderPlan(p)
		out.Explanation = &s
	}
	if p := res.summary.Profile(); p != nil {
		s := renderProfile(p)
		out.Profile = &s
		if out.Explanation == nil {
			out.Explanation = &s
		}
	}
	return out, nil
}

// reshape turns records into the narrowest result kind.
func reshape(res *result, limit int) unigraph.QueryResult {
	recs := res.records
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	if len(res.keys) != 1 {
		if len(recs) == 0 {
			return unigraph.QueryResult{Kind: unigraph.ResultRows}
		}
		rows := make([]unigraph.Row, len(recs))
		for i, r := range recs {
			row := make(unigraph.Row, len(r.Keys))
			for j, k := range r.Keys {
				row[j] = unigraph.Property{Name: k, Value: value(r.Values[j])}
			}
			rows[i] = row
		}
		return unigraph.QueryResult{Kind: unigraph.ResultRows, Rows: rows}
	}
	col := column(&result{records: recs})
	switch kindOf(col) {
	case unigraph.ResultVertices:
		vs := make([]unigraph.Vertex, len(col))
		for i, x := range col {
			vs[i] = vertexOf(x.(dbtype.Node))
		}
		return unigraph.QueryResult{Kind: unigraph.ResultVertices, Vertices: vs}
	case unigraph.ResultEdges:
		es := make([]unigraph.Edge, len(col))
		for i, x := range col {
			es[i] = edgeOf(x.(dbtype.Relationship))
		}
		return unigraph.QueryResult{Kind: unigraph.ResultEdges, Edges: es}
	case unigraph.ResultPaths:
		ps := make([]unigraph.Path, len(col))
		for i, x := range col {
			ps[i] = pathOf(x.(dbtype.Path))
		}
		return unigraph.QueryResult{Kind: unigraph.ResultPaths, Paths: ps}
	}
	vs := make([]unigraph.Value, len(col))
	for i, x := range col {
		vs[i] = value(x)
	}
	return unigraph.QueryResult{Kind: unigraph.ResultValues, Values: vs}
}

// kindOf returns the element kind shared by every value, or ResultValues.
func kindOf(col []any) unigraph.ResultKind {
	if len(col) == 0 {
		return unigraph.ResultValues
	}
	var kind unigraph.ResultKind
	for i, x := range col {
		k := unigraph.ResultValues
		switch x.(type) {
		case dbtype.Node:
			k = unigraph.ResultVertices
		case dbtype.Relationship:
			k = unigraph.ResultEdges
		case dbtype.Path:
			k = unigraph.ResultPaths
		}
		if i > 0 && k != kind {
			return unigraph.ResultValues
		}
		kind = k
	}
	return kind
}

func renderPlan(p neo4j.Plan) string {
	var b strings.Builder
	var walk func(p neo4j.Plan, depth int)
	walk = func(p neo4j.Plan, depth int) {
		fmt.Fprintf(&b, "%s%s%s\n", strings.Repeat("  ", depth), p.Operator(), details(p.Arguments()))
		for _, c := range p.Children() {
			walk(c, depth+1)
		}
	}
	walk(p, 0)
	return strings.TrimRight(b.String(), "\n")
}

func renderProfile(p neo4j.ProfiledPlan) string {
	var b strings.Builder
	var walk func(p neo4j.ProfiledPlan, depth int)
	walk = func(p neo4j.ProfiledPlan, depth int) {
		fmt.Fprintf(&b, "%s%s rows=%d dbHits=%d%s\n", strings.Repeat("  ", depth), p.Operator(), p.Records(), p.DbHits(), details(p.Arguments()))
		for _, c := range p.Children() {
			walk(c, depth+1)
		}
	}
	walk(p, 0)
	return strings.TrimRight(b.String(), "\n")
}

// details renders the Details argument of a plan operator.
func details(args map[string]any) string {
	if d, ok := args["Details"].(string); ok && d != "" {
		return " (" + d + ")"
	}
	return ""
}
