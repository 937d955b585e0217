package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
)

// Tx is an explicit Bolt transaction.
type Tx struct {
	s    session
	done bool
}

var (
	_ dialect.Tx             = (*Tx)(nil)
	_ dialect.ShortestPather = (*Tx)(nil)
	_ dialect.AllPather      = (*Tx)(nil)
	_ dialect.PathExister    = (*Tx)(nil)
)

func (tx *Tx) run(ctx context.Context, cypher string, params map[string]any) (*result, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	res, err := tx.s.run(ctx, cypher, params)
	if err != nil {
		return nil, convert(err)
	}
	return res, nil
}

// column returns the first column of every record.
func column(res *result) []any {
	out := make([]any, 0, len(res.records))
	for _, r := range res.records {
		if len(r.Values) > 0 {
			out = append(out, r.Values[0])
		}
	}
	return out
}

func (tx *Tx) vertices(ctx context.Context, cypher string, params map[string]any) ([]unigraph.Vertex, error) {
	res, err := tx.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var out []unigraph.Vertex
	for _, x := range column(res) {
		n, ok := x.(dbtype.Node)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "neo4j: expected a node, got %T", x)
		}
		out = append(out, vertexOf(n))
	}
	return out, nil
}

func (tx *Tx) edges(ctx context.Context, cypher string, params map[string]any) ([]unigraph.Edge, error) {
	res, err := tx.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var out []unigraph.Edge
	for _, x := range column(res) {
		r, ok := x.(dbtype.Relationship)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "neo4j: expected a relationship, got %T", x)
		}
		out = append(out, edgeOf(r))
	}
	return out, nil
}

func (tx *Tx) vertex(ctx context.Context, cypher string, params map[string]any) (*unigraph.Vertex, error) {
	vs, err := tx.vertices(ctx, cypher, params)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	return &vs[0], nil
}

func (tx *Tx) edge(ctx context.Context, cypher string, params map[string]any) (*unigraph.Edge, error) {
	es, err := tx.edges(ctx, cypher, params)
	if err != nil || len(es) == 0 {
		return nil, err
	}
	return &es[0], nil
}

// count runs a statement returning one integer.
func (tx *Tx) count(ctx context.Context, cypher string, params map[string]any) (int64, error) {
	res, err := tx.run(ctx, cypher, params)
	if err != nil {
		return 0, err
	}
	col := column(res)
	if len(col) == 0 {
		return 0, nil
	}
	n, ok := col[0].(int64)
	if !ok {
		return 0, unigraph.Errorf(unigraph.KindInternal, "neo4j: expected an integer, got %T", col[0])
	}
	return n, nil
}

const (
	matchVertex = "MATCH (n) WHERE elementId(n) = $id "
	matchEdge   = "MATCH ()-[r]->() WHERE elementId(r) = $id "
)

// CreateVertex implements dialect.Tx.
func (tx *Tx) CreateVertex(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	if typ == "" {
		return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "vertex type is required")
	}
	m, err := params(props.Normalize())
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if l == "" {
			return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "empty vertex label")
		}
	}
	m[typeKey] = typ
	all := append([]string{typ}, labels...)
	v, err := tx.vertex(ctx, "CREATE (n"+labelPattern(all...)+") SET n = $props RETURN n", map[string]any{"props": m})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, unigraph.Errorf(unigraph.KindInternal, "neo4j: create returned no node")
	}
	return v, nil
}

// GetVertex implements dialect.Tx.
func (tx *Tx) GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	eid, ok := elementID(id)
	if !ok {
		return nil, nil
	}
	return tx.vertex(ctx, matchVertex+"RETURN n", map[string]any{"id": eid})
}

// UpdateVertex implements dialect.Tx. The type property survives the
// replacement.
func (tx *Tx) UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.updateVertex(ctx, id, props,
		matchVertex+"WITH n, n."+quote(typeKey)+" AS t SET n = $props SET n."+quote(typeKey)+" = t RETURN n")
}

// UpdateVertexProperties implements dialect.Tx. Null values remove keys.
func (tx *Tx) UpdateVertexProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.updateVertex(ctx, id, props, matchVertex+"SET n += $props RETURN n")
}

func (tx *Tx) updateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap, cypher string) (*unigraph.Vertex, error) {
	eid, ok := elementID(id)
	if !ok {
		return nil, unigraph.NotFound(id)
	}
	m, err := params(props)
	if err != nil {
		return nil, err
	}
	delete(m, typeKey)
	v, err := tx.vertex(ctx, cypher, map[string]any{"id": eid, "props": m})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, unigraph.NotFound(id)
	}
	return v, nil
}

// DeleteVertex implements dialect.Tx.
func (tx *Tx) DeleteVertex(ctx context.Context, id unigraph.ElementID, deleteEdges bool) error {
	eid, ok := elementID(id)
	if !ok {
		return unigraph.NotFound(id)
	}
	p := map[string]any{"id": eid}
	res, err := tx.run(ctx, matchVertex+"OPTIONAL MATCH (n)-[r]-() RETURN count(r)", p)
	if err != nil {
		return err
	}
	col := column(res)
	if len(col) == 0 {
		return unigraph.NotFound(id)
	}
	if degree, _ := col[0].(int64); degree > 0 && !deleteEdges {
		return &unigraph.Error{Kind: unigraph.KindConstraintViolation, ID: &id, Msg: "vertex still has incident edges"}
	}
	_, err = tx.run(ctx, matchVertex+"DETACH DELETE n", p)
	return err
}

// FindVertices implements dialect.Tx.
func (tx *Tx) FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error) {
	st := newStatement()
	pattern := "(n)"
	if opts.Type != "" {
		pattern = "(n" + labelPattern(opts.Type) + ")"
		st.and("n." + quote(typeKey) + " = " + st.bind(opts.Type))
	} else {
		st.excludeMetadata("n")
	}
	if err := st.filters("n", opts.Filters); err != nil {
		return nil, err
	}
	cypher := "MATCH " + pattern + st.whereClause() + " RETURN n" + st.page("n", opts.Sort, opts.Offset, opts.Limit)
	return tx.vertices(ctx, cypher, st.params)
}

// CreateEdge implements dialect.Tx.
func (tx *Tx) CreateEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	if typ == "" {
		return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "edge type is required")
	}
	fid, ok := elementID(from)
	if !ok {
		return nil, unigraph.NotFound(from)
	}
	tid, ok := elementID(to)
	if !ok {
		return nil, unigraph.NotFound(to)
	}
	m, err := params(props.Normalize())
	if err != nil {
		return nil, err
	}
	e, err := tx.edge(ctx,
		"MATCH (a) WHERE elementId(a) = $from MATCH (b) WHERE elementId(b) = $to CREATE (a)-[r"+labelPattern(typ)+"]->(b) SET r = $props RETURN r",
		map[string]any{"from": fid, "to": tid, "props": m})
	if err != nil || e != nil {
		return e, err
	}
	// Nothing matched; report the endpoint that is missing.
	n, err := tx.count(ctx, matchVertex+"RETURN count(n)", map[string]any{"id": fid})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, unigraph.NotFound(from)
	}
	return nil, unigraph.NotFound(to)
}

// GetEdge implements dialect.Tx.
func (tx *Tx) GetEdge(ctx context.Context, id unigraph.ElementID) (*unigraph.Edge, error) {
	eid, ok := elementID(id)
	if !ok {
		return nil, nil
	}
	return tx.edge(ctx, matchEdge+"RETURN r", map[string]any{"id": eid})
}

// UpdateEdge implements dialect.Tx.
func (tx *Tx) UpdateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return tx.updateEdge(ctx, id, props, matchEdge+"SET r = $props RETURN r")
}

// UpdateEdgeProperties implements dialect.Tx.
func (tx *Tx) UpdateEdgeProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return tx.updateEdge(ctx, id, props, matchEdge+"SET r += $props RETURN r")
}

func (tx *Tx) updateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap, cypher string) (*unigraph.Edge, error) {
	eid, ok := elementID(id)
	if !ok {
		return nil, unigraph.NotFound(id)
	}
	m, err := params(props)
	if err != nil {
		return nil, err
	}
	e, err := tx.edge(ctx, cypher, map[string]any{"id": eid, "props": m})
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, unigraph.NotFound(id)
	}
	return e, nil
}

// DeleteEdge implements dialect.Tx.
func (tx *Tx) DeleteEdge(ctx context.Context, id unigraph.ElementID) error {
	eid, ok := elementID(id)
	if !ok {
		return unigraph.NotFound(id)
	}
	n, err := tx.count(ctx, matchEdge+"DELETE r RETURN count(*)", map[string]any{"id": eid})
	if err != nil {
		return err
	}
	if n == 0 {
		return unigraph.NotFound(id)
	}
	return nil
}

// FindEdges implements dialect.Tx.
func (tx *Tx) FindEdges(ctx context.Context, opts unigraph.FindEdgesOptions) ([]unigraph.Edge, error) {
	st := newStatement()
	if len(opts.Types) > 0 {
		st.and("type(r) IN " + st.bind(opts.Types))
	}
	if err := st.filters("r", opts.Filters); err != nil {
		return nil, err
	}
	cypher := "MATCH ()-[r]->()" + st.whereClause() + " RETURN r" + st.page("r", opts.Sort, opts.Offset, opts.Limit)
	return tx.edges(ctx, cypher, st.params)
}

// adjacency builds the statement returning variable ret for one direction.
func adjacency(eid string, d unigraph.Direction, opts unigraph.AdjacencyOptions, ret string) (string, map[string]any) {
	left, right := arrow(d)
	st := newStatement()
	st.set("id", eid)
	cypher := fmt.Sprintf("MATCH (a)%s[r%s]%s(b) WHERE elementId(a) = $id RETURN %s",
		left, typeAlternation(opts.EdgeTypes), right, ret)
	cypher += st.page("", nil, 0, opts.Limit)
	return cypher, st.params
}

// ConnectedEdges implements dialect.Tx.
func (tx *Tx) ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error) {
	if err := opts.Direction.Validate(); err != nil {
		return nil, err
	}
	eid, ok := elementID(id)
	if !ok {
		return nil, nil
	}
	var parts [][]unigraph.Edge
	for _, d := range dialect.Directions(opts.Direction) {
		cypher, p := adjacency(eid, d, opts, "r")
		es, err := tx.edges(ctx, cypher, p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, es)
	}
	return dialect.Union(dialect.EdgeID, opts.Limit, parts...), nil
}

// AdjacentVertices implements dialect.Tx.
func (tx *Tx) AdjacentVertices(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Vertex, error) {
	if err := opts.Direction.Validate(); err != nil {
		return nil, err
	}
	eid, ok := elementID(id)
	if !ok {
		return nil, nil
	}
	var parts [][]unigraph.Vertex
	for _, d := range dialect.Directions(opts.Direction) {
		cypher, p := adjacency(eid, d, opts, "DISTINCT b")
		vs, err := tx.vertices(ctx, cypher, p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, vs)
	}
	return dialect.Union(dialect.VertexID, opts.Limit, parts...), nil
}

// CreateVertices implements dialect.Tx. The vertices are created in the
// open transaction; a failure leaves the earlier ones to the rollback.
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
	return convert(tx.s.commit(ctx))
}

// Rollback implements dialect.Tx.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	tx.done = true
	return convert(tx.s.rollback(ctx))
}
