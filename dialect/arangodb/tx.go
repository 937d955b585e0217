package arangodb

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// Tx is a stream transaction.
type Tx struct {
	db   database
	tid  string
	cols map[string]bool // collections at begin, name to edge flag
	done bool
}

var (
	_ dialect.Tx             = (*Tx)(nil)
	_ dialect.ShortestPather = (*Tx)(nil)
	_ dialect.AllPather      = (*Tx)(nil)
	_ dialect.PathExister    = (*Tx)(nil)
	_ dialect.Liveness       = (*Tx)(nil)
)

func (tx *Tx) run(ctx context.Context, aql string, vars map[string]any) (*cursor, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	c, err := tx.db.query(ctx, tx.tid, aql, vars, false)
	if err != nil {
		return nil, convert(err)
	}
	return c, nil
}

// objects runs a query and decodes every non-null object it returns.
func (tx *Tx) objects(ctx context.Context, aql string, vars map[string]any) ([]map[string]any, error) {
	c, err := tx.run(ctx, aql, vars)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(c.docs))
	for _, raw := range c.docs {
		m, err := object(raw)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *Tx) vertices(ctx context.Context, aql string, vars map[string]any) ([]unigraph.Vertex, error) {
	docs, err := tx.objects(ctx, aql, vars)
	if err != nil {
		return nil, err
	}
	var out []unigraph.Vertex
	for _, d := range docs {
		v, ok := vertexOf(d)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "arangodb: expected a vertex document, got %v", d["_id"])
		}
		out = append(out, v)
	}
	return out, nil
}

func (tx *Tx) edges(ctx context.Context, aql string, vars map[string]any) ([]unigraph.Edge, error) {
	docs, err := tx.objects(ctx, aql, vars)
	if err != nil {
		return nil, err
	}
	var out []unigraph.Edge
	for _, d := range docs {
		e, ok := edgeOf(d)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "arangodb: expected an edge document, got %v", d["_id"])
		}
		out = append(out, e)
	}
	return out, nil
}

func (tx *Tx) vertex(ctx context.Context, aql string, vars map[string]any) (*unigraph.Vertex, error) {
	vs, err := tx.vertices(ctx, aql, vars)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	return &vs[0], nil
}

func (tx *Tx) edge(ctx context.Context, aql string, vars map[string]any) (*unigraph.Edge, error) {
	es, err := tx.edges(ctx, aql, vars)
	if err != nil || len(es) == 0 {
		return nil, err
	}
	return &es[0], nil
}

// count runs a query returning one number per result and reports how many
// results there were.
func (tx *Tx) count(ctx context.Context, aql string, vars map[string]any) (int, error) {
	c, err := tx.run(ctx, aql, vars)
	if err != nil {
		return 0, err
	}
	return len(c.docs), nil
}

// names returns the sorted collections of one kind. Vertex scans skip the
// metadata collection.
func (tx *Tx) names(edge bool) []string {
	var out []string
	for name, e := range tx.cols {
		if e == edge && name != schema.MetadataType {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// edgeCollections returns the edge collections among types, or every edge
// collection when types is empty.
func (tx *Tx) edgeCollections(types []string) []string {
	if len(types) == 0 {
		return tx.names(true)
	}
	var out []string
	for _, t := range types {
		if edge, ok := tx.cols[t]; ok && edge && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// owner returns the collection of id when it is a known collection of the
// given kind.
func (tx *Tx) owner(id unigraph.ElementID, edge bool) (string, bool) {
	coll, _, ok := splitID(id)
	if !ok {
		return "", false
	}
	e, known := tx.cols[coll]
	return coll, known && e == edge
}

func (tx *Tx) writable(typ string, edge bool) error {
	kind := "document"
	if edge {
		kind = "edge"
	}
	if typ == "" {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "arangodb: %s type is required", kind)
	}
	if e, ok := tx.cols[typ]; !ok || e != edge {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "arangodb: no %s collection %q", kind, typ)
	}
	return nil
}

// stored returns the document of a create or full replace. Null values
// are dropped.
func stored(props unigraph.PropertyMap) (map[string]any, error) {
	return document(unigraph.PropertyMap(nil).Merge(props))
}

// CreateVertex implements dialect.Tx.
func (tx *Tx) CreateVertex(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	if len(labels) > 0 {
		return nil, unigraph.Unsupported("arangodb: secondary labels")
	}
	if err := tx.writable(typ, false); err != nil {
		return nil, err
	}
	doc, err := stored(props)
	if err != nil {
		return nil, err
	}
	q := newQuery()
	aql := "INSERT " + q.bind(doc) + " INTO " + q.collection(typ) + " RETURN NEW"
	v, err := tx.vertex(ctx, aql, q.vars)
	if err == nil && v == nil {
		err = unigraph.Errorf(unigraph.KindInternal, "arangodb: insert returned no document")
	}
	return v, err
}

// GetVertex implements dialect.Tx.
func (tx *Tx) GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	if _, ok := tx.owner(id, false); !ok {
		return nil, nil
	}
	return tx.vertex(ctx, "RETURN DOCUMENT(@id)", map[string]any{"id": handle(id)})
}

// UpdateVertex implements dialect.Tx.
func (tx *Tx) UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	doc, err := stored(props)
	if err != nil {
		return nil, err
	}
	return tx.updateVertex(ctx, id, "REPLACE old WITH %s IN %s RETURN NEW", doc)
}

// UpdateVertexProperties implements dialect.Tx. Null values remove the
// attribute.
func (tx *Tx) UpdateVertexProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	doc, err := document(props.Normalize())
	if err != nil {
		return nil, err
	}
	return tx.updateVertex(ctx, id, "UPDATE old WITH %s IN %s OPTIONS { keepNull: false } RETURN NEW", doc)
}

func (tx *Tx) updateVertex(ctx context.Context, id unigraph.ElementID, op string, doc map[string]any) (*unigraph.Vertex, error) {
	coll, ok := tx.owner(id, false)
	if !ok {
		return nil, unigraph.NotFound(id)
	}
	q := newQuery()
	q.set("id", handle(id))
	v, err := tx.vertex(ctx, modify(q, op, doc, coll), q.vars)
	if err == nil && v == nil {
		err = unigraph.NotFound(id)
	}
	return v, err
}

// modify renders "LET old = DOCUMENT(@id) FILTER old != null" followed by
// the modification op, formatted with the bound document and collection.
func modify(q *query, op string, doc any, coll string) string {
	return "LET old = DOCUMENT(@id) FILTER old != null " + fmt.Sprintf(op, q.bind(doc), q.collection(coll))
}

// DeleteVertex implements dialect.Tx. Incident edges are always removed;
// ArangoDB does not keep edges consistent with their endpoints.
func (tx *Tx) DeleteVertex(ctx context.Context, id unigraph.ElementID, _ bool) error {
	v, err := tx.GetVertex(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return unigraph.NotFound(id)
	}
	for _, e := range tx.names(true) {
		q := newQuery()
		q.set("id", handle(id))
		c := q.collection(e)
		aql := "FOR e IN " + c + " FILTER e._from == @id OR e._to == @id REMOVE e IN " + c
		if _, err := tx.run(ctx, aql, q.vars); err != nil {
			return err
		}
	}
	q := newQuery()
	q.set("id", handle(id))
	_, err = tx.run(ctx, "LET old = DOCUMENT(@id) REMOVE old IN "+q.collection(v.Type), q.vars)
	return err
}

// FindVertices implements dialect.Tx. Without a type every document
// collection is scanned.
func (tx *Tx) FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error) {
	names := tx.names(false)
	if opts.Type != "" {
		names = nil
		if edge, ok := tx.cols[opts.Type]; ok && !edge {
			names = []string{opts.Type}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	q := newQuery()
	src := q.source(names)
	if err := q.filters("d", opts.Filters); err != nil {
		return nil, err
	}
	q.page("d", opts.Sort, opts.Offset, opts.Limit)
	return tx.vertices(ctx, "FOR d IN "+src+q.body()+" RETURN d", q.vars)
}

// CreateEdge implements dialect.Tx. Both endpoints must exist.
func (tx *Tx) CreateEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	if err := tx.writable(typ, true); err != nil {
		return nil, err
	}
	doc, err := stored(props)
	if err != nil {
		return nil, err
	}
	for _, id := range []unigraph.ElementID{from, to} {
		v, err := tx.GetVertex(ctx, id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, unigraph.NotFound(id)
		}
	}
	q := newQuery()
	q.set("from", handle(from))
	q.set("to", handle(to))
	aql := "INSERT MERGE(" + q.bind(doc) + ", { _from: @from, _to: @to }) INTO " + q.collection(typ) + " RETURN NEW"
	e, err := tx.edge(ctx, aql, q.vars)
	if err == nil && e == nil {
		err = unigraph.Errorf(unigraph.KindInternal, "arangodb: insert returned no document")
	}
	return e, err
}

// GetEdge implements dialect.Tx.
func (tx *Tx) GetEdge(ctx context.Context, id unigraph.ElementID) (*unigraph.Edge, error) {
	if _, ok := tx.owner(id, true); !ok {
		return nil, nil
	}
	return tx.edge(ctx, "RETURN DOCUMENT(@id)", map[string]any{"id": handle(id)})
}

// UpdateEdge implements dialect.Tx. The endpoints are kept.
func (tx *Tx) UpdateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	doc, err := stored(props)
	if err != nil {
		return nil, err
	}
	return tx.updateEdge(ctx, id, "REPLACE old WITH MERGE(%s, { _from: old._from, _to: old._to }) IN %s RETURN NEW", doc)
}

// UpdateEdgeProperties implements dialect.Tx.
func (tx *Tx) UpdateEdgeProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	doc, err := document(props.Normalize())
	if err != nil {
		return nil, err
	}
	return tx.updateEdge(ctx, id, "UPDATE old WITH %s IN %s OPTIONS { keepNull: false } RETURN NEW", doc)
}

func (tx *Tx) updateEdge(ctx context.Context, id unigraph.ElementID, op string, doc map[string]any) (*unigraph.Edge, error) {
	coll, ok := tx.owner(id, true)
	if !ok {
		return nil, unigraph.NotFound(id)
	}
	q := newQuery()
	q.set("id", handle(id))
	e, err := tx.edge(ctx, modify(q, op, doc, coll), q.vars)
	if err == nil && e == nil {
		err = unigraph.NotFound(id)
	}
	return e, err
}

// DeleteEdge implements dialect.Tx.
func (tx *Tx) DeleteEdge(ctx context.Context, id unigraph.ElementID) error {
	coll, ok := tx.owner(id, true)
	if !ok {
		return unigraph.NotFound(id)
	}
	q := newQuery()
	q.set("id", handle(id))
	n, err := tx.count(ctx, "LET old = DOCUMENT(@id) FILTER old != null REMOVE old IN "+q.collection(coll)+" RETURN 1", q.vars)
	if err == nil && n == 0 {
		err = unigraph.NotFound(id)
	}
	return err
}

// FindEdges implements dialect.Tx.
func (tx *Tx) FindEdges(ctx context.Context, opts unigraph.FindEdgesOptions) ([]unigraph.Edge, error) {
	names := tx.edgeCollections(opts.Types)
	if len(names) == 0 {
		return nil, nil
	}
	q := newQuery()
	src := q.source(names)
	if err := q.filters("d", opts.Filters); err != nil {
		return nil, err
	}
	q.page("d", opts.Sort, opts.Offset, opts.Limit)
	return tx.edges(ctx, "FOR d IN "+src+q.body()+" RETURN d", q.vars)
}

// neighbours renders a one-step traversal from id in direction d.
func (tx *Tx) neighbours(id unigraph.ElementID, d unigraph.Direction, opts unigraph.AdjacencyOptions, ret string) (string, map[string]any, bool) {
	if _, ok := tx.owner(id, false); !ok {
		return "", nil, false
	}
	names := tx.edgeCollections(opts.EdgeTypes)
	if len(names) == 0 {
		return "", nil, false
	}
	q := newQuery()
	q.set("start", handle(id))
	aql := "FOR v, e IN 1..1 " + direction(d) + " @start " + q.collections(names) + " FILTER v != null"
	if opts.Limit > 0 {
		aql += " LIMIT " + q.bind(int64(opts.Limit))
	}
	return aql + " RETURN " + ret, q.vars, true
}

// ConnectedEdges implements dialect.Tx.
func (tx *Tx) ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error) {
	var parts [][]unigraph.Edge
	for _, d := range dialect.Directions(opts.Direction) {
		aql, vars, ok := tx.neighbours(id, d, opts, "e")
		if !ok {
			return nil, nil
		}
		es, err := tx.edges(ctx, aql, vars)
		if err != nil {
			return nil, err
		}
		parts = append(parts, es)
	}
	return dialect.Union(dialect.EdgeID, opts.Limit, parts...), nil
}

// AdjacentVertices implements dialect.Tx.
func (tx *Tx) AdjacentVertices(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Vertex, error) {
	// DISTINCT must come last, so the limit is applied by the union.
	unlimited := opts
	unlimited.Limit = 0
	var parts [][]unigraph.Vertex
	for _, d := range dialect.Directions(opts.Direction) {
		aql, vars, ok := tx.neighbours(id, d, unlimited, "DISTINCT v")
		if !ok {
			return nil, nil
		}
		vs, err := tx.vertices(ctx, aql, vars)
		if err != nil {
			return nil, err
		}
		parts = append(parts, vs)
	}
	return dialect.Union(dialect.VertexID, opts.Limit, parts...), nil
}

// CreateVertices implements dialect.Tx.
func (tx *Tx) CreateVertices(ctx context.Context, specs []unigraph.VertexSpec) ([]unigraph.Vertex, error) {
	return dialect.CreateVertices(ctx, tx, specs)
}

// CreateEdges implements dialect.Tx.
func (tx *Tx) CreateEdges(ctx context.Context, specs []unigraph.EdgeSpec) ([]unigraph.Edge, error) {
	return dialect.CreateEdges(ctx, tx, specs)
}

// UpsertVertex implements dialect.Tx.
func (tx *Tx) UpsertVertex(ctx context.Context, opts unigraph.UpsertVertexOptions) (*unigraph.Vertex, error) {
	return dialect.UpsertVertex(ctx, tx, opts)
}

// UpsertEdge implements dialect.Tx.
func (tx *Tx) UpsertEdge(ctx context.Context, opts unigraph.UpsertEdgeOptions) (*unigraph.Edge, error) {
	return dialect.UpsertEdge(ctx, tx, opts)
}

// Commit implements dialect.Tx.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	tx.done = true
	return convert(tx.db.commit(ctx, tx.tid))
}

// Rollback implements dialect.Tx.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	tx.done = true
	return convert(tx.db.abort(ctx, tx.tid))
}

// Alive implements dialect.Liveness by asking the server for the status of
// the stream transaction.
func (tx *Tx) Alive(ctx context.Context) bool {
	if tx.done {
		return false
	}
	ok, err := tx.db.running(ctx, tx.tid)
	return err == nil && ok
}
