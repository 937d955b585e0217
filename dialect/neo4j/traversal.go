package neo4j

import (
	"context"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
)

const matchEnds = "MATCH (a), (b) WHERE elementId(a) = $from AND elementId(b) = $to "

// varLength renders the relationship pattern "-[:T*1..d]->".
func varLength(opts unigraph.PathOptions) string {
	left, right := arrow(opts.Direction)
	hops := "*"
	if opts.MaxDepth > 0 {
		hops += "1.." + strconv.Itoa(opts.MaxDepth)
	}
	return left + "[" + typeAlternation(opts.EdgeTypes) + hops + "]" + right
}

// endpoints returns the statement parameters of a path search, or false
// when the request is better served by composition.
func endpoints(from, to unigraph.ElementID, opts unigraph.PathOptions) (map[string]any, bool, error) {
	if opts.HasElementFilters() || from == to {
		return nil, false, dialect.ErrNotNative
	}
	fid, ok1 := elementID(from)
	tid, ok2 := elementID(to)
	if !ok1 || !ok2 {
		return nil, false, nil
	}
	return map[string]any{"from": fid, "to": tid}, true, nil
}

// ShortestPath implements dialect.ShortestPather with shortestPath().
func (tx *Tx) ShortestPath(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (*unigraph.Path, error) {
	p, ok, err := endpoints(from, to, opts)
	if !ok {
		return nil, err
	}
	res, err := tx.run(ctx, matchEnds+"MATCH p = shortestPath((a)"+varLength(opts)+"(b)) RETURN p", p)
	if err != nil {
		return nil, err
	}
	for _, x := range column(res) {
		if dp, ok := x.(dbtype.Path); ok {
			path := pathOf(dp)
			return &path, nil
		}
	}
	return nil, nil
}

// PathExists implements dialect.PathExister.
func (tx *Tx) PathExists(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (bool, error) {
	p, ok, err := endpoints(from, to, opts)
	if !ok {
		return false, err
	}
	n, err := tx.count(ctx, matchEnds+"MATCH p = shortestPath((a)"+varLength(opts)+"(b)) RETURN count(p)", p)
	return n > 0, err
}

// AllPaths implements dialect.AllPather. Unbounded searches are left to
// composition, which stops at simple paths.
func (tx *Tx) AllPaths(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions, limit int) ([]unigraph.Path, error) {
	if opts.MaxDepth == 0 {
		return nil, dialect.ErrNotNative
	}
	p, ok, err := endpoints(from, to, opts)
	if !ok {
		return nil, err
	}
	cypher := matchEnds + "MATCH p = (a)" + varLength(opts) + "(b)" +
		" WHERE all(x IN nodes(p) WHERE single(y IN nodes(p) WHERE y = x))" +
		" RETURN p ORDER BY length(p)"
	if limit > 0 {
		cypher += " LIMIT $limit"
		p["limit"] = int64(limit)
	}
	res, err := tx.run(ctx, cypher, p)
	if err != nil {
		return nil, err
	}
	var out []unigraph.Path
	for _, x := range column(res) {
		if dp, ok := x.(dbtype.Path); ok {
			out = append(out, pathOf(dp))
		}
	}
	return out, nil
}

// ShortestFirst implements dialect.AllPather.
func (tx *Tx) ShortestFirst() bool { return true }
