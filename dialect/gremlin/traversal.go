package gremlin

import (
	"context"
	"fmt"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
)

// walk renders a repeat traversal from one vertex to another over simple
// paths, stopping at the target or after MaxDepth hops.
//
// Callers order the paths on the server with byLength before any limit,
// since not every provider runs repeat breadth-first.
func walk(s *script, from, to unigraph.ElementID, opts unigraph.PathOptions) string {
	target := s.id(to)
	until := "hasId(" + target + ")"
	if opts.MaxDepth > 0 {
		until = fmt.Sprintf("or(%s, loops().is(gte(%s)))", until, s.bind(typed{"g:Int32", opts.MaxDepth}))
	}
	return fmt.Sprintf("g.V(%s).repeat(%s.simplePath()).until(%s).hasId(%s)",
		s.id(from), s.walkStep(opts.Direction, opts.EdgeTypes), until, target)
}

// native reports whether a path search can run on the server. Pending
// op-log mutations and element filters are left to composition.
func (tx *Tx) native(from, to unigraph.ElementID, opts unigraph.PathOptions) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	if tx.dirty() || opts.HasElementFilters() || from == to {
		return dialect.ErrNotNative
	}
	return nil
}

// byLength orders paths by their object count, shortest first.
const byLength = ".order().by(count(local))"

func (tx *Tx) paths(ctx context.Context, s *script) ([]unigraph.Path, error) {
	xs, err := tx.eval(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]unigraph.Path, 0, len(xs))
	for _, x := range xs {
		p, ok := pathOf(x)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: expected a path, got %T", x)
		}
		out = append(out, p)
	}
	return out, nil
}

// ShortestPath implements dialect.ShortestPather. Every simple path to the
// target within MaxDepth is enumerated before the shortest is picked, so
// set MaxDepth on large graphs.
func (tx *Tx) ShortestPath(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (*unigraph.Path, error) {
	if err := tx.native(from, to, opts); err != nil {
		return nil, err
	}
	s := newScript()
	s.add("%s.path().by(elementMap())%s.limit(1)", walk(s, from, to, opts), byLength)
	ps, err := tx.paths(ctx, s)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

// AllPaths implements dialect.AllPather.
func (tx *Tx) AllPaths(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions, limit int) ([]unigraph.Path, error) {
	if err := tx.native(from, to, opts); err != nil {
		return nil, err
	}
	s := newScript()
	q := walk(s, from, to, opts) + ".path().by(elementMap())" + byLength
	if limit > 0 {
		q += ".limit(" + s.bind(typed{"g:Int64", limit}) + ")"
	}
	s.add("%s", q)
	return tx.paths(ctx, s)
}

// ShortestFirst implements dialect.AllPather. Paths are ordered on the
// server.
func (tx *Tx) ShortestFirst() bool { return true }

// PathExists implements dialect.PathExister.
func (tx *Tx) PathExists(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (bool, error) {
	if err := tx.native(from, to, opts); err != nil {
		return false, err
	}
	s := newScript()
	s.add("%s.limit(1).count()", walk(s, from, to, opts))
	xs, err := tx.eval(ctx, s)
	if err != nil || len(xs) == 0 {
		return false, err
	}
	n, _ := xs[0].(int64)
	return n > 0, nil
}
