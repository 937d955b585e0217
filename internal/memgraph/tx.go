package memgraph

import (
	"context"
	"slices"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// Tx is a snapshot transaction.
type Tx struct {
	drv   *Driver
	st    *store
	base  uint64
	dirty bool
	done  bool
}

var _ dialect.Tx = (*Tx)(nil)

func (tx *Tx) enter(ctx context.Context, op string, write bool) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.drv.hook != nil {
		if err := tx.drv.hook(ctx, op); err != nil {
			return err
		}
	}
	if write {
		tx.dirty = true
	}
	return nil
}

func key(id unigraph.ElementID) (int64, bool) { return id.AsInt64() }

func clean(props unigraph.PropertyMap) unigraph.PropertyMap {
	return unigraph.PropertyMap(nil).Merge(props).Sorted()
}

func copyVertex(v *unigraph.Vertex) *unigraph.Vertex {
	c := *v
	c.Labels = slices.Clone(v.Labels)
	c.Properties = slices.Clone(v.Properties)
	return &c
}

func copyEdge(e *unigraph.Edge) *unigraph.Edge {
	c := *e
	c.Properties = slices.Clone(e.Properties)
	return &c
}

func (tx *Tx) vertex(id unigraph.ElementID) (int64, *unigraph.Vertex) {
	k, ok := key(id)
	if !ok {
		return 0, nil
	}
	return k, tx.st.vertices[k]
}

func (tx *Tx) edge(id unigraph.ElementID) (int64, *unigraph.Edge) {
	k, ok := key(id)
	if !ok {
		return 0, nil
	}
	return k, tx.st.edges[k]
}

// CreateVertex implements dialect.Tx.
func (tx *Tx) CreateVertex(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	if err := tx.enter(ctx, "create-vertex", true); err != nil {
		return nil, err
	}
	if typ == "" {
		return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "vertex type is required")
	}
	k := tx.drv.nextID.Add(1)
	v := &unigraph.Vertex{ID: unigraph.Int64ID(k), Type: typ, Labels: slices.Clone(labels), Properties: clean(props)}
	tx.st.vertices[k] = v
	tx.st.vorder = append(tx.st.vorder, k)
	return copyVertex(v), nil
}

// GetVertex implements dialect.Tx.
func (tx *Tx) GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	if err := tx.enter(ctx, "get-vertex", false); err != nil {
		return nil, err
	}
	if _, v := tx.vertex(id); v != nil {
		return copyVertex(v), nil
	}
	return nil, nil
}

func (tx *Tx) updateVertex(ctx context.Context, op string, id unigraph.ElementID, patch func(unigraph.PropertyMap) unigraph.PropertyMap) (*unigraph.Vertex, error) {
	if err := tx.enter(ctx, op, true); err != nil {
		return nil, err
	}
	k, v := tx.vertex(id)
	if v == nil {
		return nil, unigraph.NotFound(id)
	}
	nv := copyVertex(v)
	nv.Properties = patch(v.Properties)
	tx.st.vertices[k] = nv
	return copyVertex(nv), nil
}

// UpdateVertex implements dialect.Tx.
func (tx *Tx) UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.updateVertex(ctx, "update-vertex", id, func(unigraph.PropertyMap) unigraph.PropertyMap { return clean(props) })
}

// UpdateVertexProperties implements dialect.Tx.
func (tx *Tx) UpdateVertexProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.updateVertex(ctx, "update-vertex-properties", id, func(old unigraph.PropertyMap) unigraph.PropertyMap {
		return old.Merge(props).Sorted()
	})
}

func (tx *Tx) incident(k int64) []int64 {
	var out []int64
	for _, ek := range tx.st.eorder {
		e := tx.st.edges[ek]
		from, _ := key(e.From)
		to, _ := key(e.To)
		if from == k || to == k {
			out = append(out, ek)
		}
	}
	return out
}

// DeleteVertex implements dialect.Tx. Incident edges block the delete
// unless deleteEdges is set.
func (tx *Tx) DeleteVertex(ctx context.Context, id unigraph.ElementID, deleteEdges bool) error {
	if err := tx.enter(ctx, "delete-vertex", true); err != nil {
		return err
	}
	k, v := tx.vertex(id)
	if v == nil {
		return unigraph.NotFound(id)
	}
	inc := tx.incident(k)
	if len(inc) > 0 && !deleteEdges {
		return &unigraph.Error{Kind: unigraph.KindConstraintViolation, ID: &v.ID, Msg: "vertex still has incident edges"}
	}
	for _, ek := range inc {
		delete(tx.st.edges, ek)
		tx.st.eorder = remove(tx.st.eorder, ek)
	}
	delete(tx.st.vertices, k)
	tx.st.vorder = remove(tx.st.vorder, k)
	return nil
}

func validateFilters(filters []unigraph.FilterCondition) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindVertices implements dialect.Tx. An empty type selects every type but
// the schema metadata records.
func (tx *Tx) FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error) {
	if err := tx.enter(ctx, "find-vertices", false); err != nil {
		return nil, err
	}
	if err := validateFilters(opts.Filters); err != nil {
		return nil, err
	}
	var out []unigraph.Vertex
	for _, k := range tx.st.vorder {
		v := tx.st.vertices[k]
		if opts.Type == "" && v.Type == schema.MetadataType || opts.Type != "" && v.Type != opts.Type {
			continue
		}
		ok, err := unigraph.MatchAll(v.Properties, opts.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *copyVertex(v))
		}
	}
	unigraph.SortElements(out, func(v unigraph.Vertex) unigraph.PropertyMap { return v.Properties }, opts.Sort)
	return unigraph.Page(out, opts.Offset, opts.Limit), nil
}

// CreateEdge implements dialect.Tx.
func (tx *Tx) CreateEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	if err := tx.enter(ctx, "create-edge", true); err != nil {
		return nil, err
	}
	if typ == "" {
		return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "edge type is required")
	}
	for _, id := range []unigraph.ElementID{from, to} {
		if _, v := tx.vertex(id); v == nil {
			return nil, unigraph.NotFound(id)
		}
	}
	k := tx.drv.nextID.Add(1)
	e := &unigraph.Edge{ID: unigraph.Int64ID(k), Type: typ, From: from, To: to, Properties: clean(props)}
	tx.st.edges[k] = e
	tx.st.eorder = append(tx.st.eorder, k)
	return copyEdge(e), nil
}

// GetEdge implements dialect.Tx.
func (tx *Tx) GetEdge(ctx context.Context, id unigraph.ElementID) (*unigraph.Edge, error) {
	if err := tx.enter(ctx, "get-edge", false); err != nil {
		return nil, err
	}
	if _, e := tx.edge(id); e != nil {
		return copyEdge(e), nil
	}
	return nil, nil
}

func (tx *Tx) updateEdge(ctx context.Context, op string, id unigraph.ElementID, patch func(unigraph.PropertyMap) unigraph.PropertyMap) (*unigraph.Edge, error) {
	if err := tx.enter(ctx, op, true); err != nil {
		return nil, err
	}
	k, e := tx.edge(id)
	if e == nil {
		return nil, unigraph.NotFound(id)
	}
	ne := copyEdge(e)
	ne.Properties = patch(e.Properties)
	tx.st.edges[k] = ne
	return copyEdge(ne), nil
}

// UpdateEdge implements dialect.Tx.
func (tx *Tx) UpdateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return tx.updateEdge(ctx, "update-edge", id, func(unigraph.PropertyMap) unigraph.PropertyMap { return clean(props) })
}

// UpdateEdgeProperties implements dialect.Tx.
func (tx *Tx) UpdateEdgeProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return tx.updateEdge(ctx, "update-edge-properties", id, func(old unigraph.PropertyMap) unigraph.PropertyMap {
		return old.Merge(props).Sorted()
	})
}

// DeleteEdge implements dialect.Tx.
func (tx *Tx) DeleteEdge(ctx context.Context, id unigraph.ElementID) error {
	if err := tx.enter(ctx, "delete-edge", true); err != nil {
		return err
	}
	k, e := tx.edge(id)
	if e == nil {
		return unigraph.NotFound(id)
	}
	delete(tx.st.edges, k)
	tx.st.eorder = remove(tx.st.eorder, k)
	return nil
}

// FindEdges implements dialect.Tx.
func (tx *Tx) FindEdges(ctx context.Context, opts unigraph.FindEdgesOptions) ([]unigraph.Edge, error) {
	if err := tx.enter(ctx, "find-edges", false); err != nil {
		return nil, err
	}
	if err := validateFilters(opts.Filters); err != nil {
		return nil, err
	}
	var out []unigraph.Edge
	for _, k := range tx.st.eorder {
		e := tx.st.edges[k]
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, e.Type) {
			continue
		}
		ok, err := unigraph.MatchAll(e.Properties, opts.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *copyEdge(e))
		}
	}
	unigraph.SortElements(out, func(e unigraph.Edge) unigraph.PropertyMap { return e.Properties }, opts.Sort)
	return unigraph.Page(out, opts.Offset, opts.Limit), nil
}

// edgesFrom lists edges incident to id in one direction, in insertion order.
func (tx *Tx) edgesFrom(id unigraph.ElementID, dir unigraph.Direction, types []string) []unigraph.Edge {
	var out []unigraph.Edge
	for _, k := range tx.st.eorder {
		e := tx.st.edges[k]
		if len(types) > 0 && !slices.Contains(types, e.Type) {
			continue
		}
		if dir == unigraph.Outgoing && e.From == id || dir == unigraph.Incoming && e.To == id {
			out = append(out, *copyEdge(e))
		}
	}
	return out
}

// ConnectedEdges implements dialect.Tx. An unknown vertex has no edges.
func (tx *Tx) ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error) {
	if err := tx.enter(ctx, "connected-edges", false); err != nil {
		return nil, err
	}
	if err := opts.Direction.Validate(); err != nil {
		return nil, err
	}
	var parts [][]unigraph.Edge
	for _, d := range dialect.Directions(opts.Direction) {
		parts = append(parts, tx.edgesFrom(id, d, opts.EdgeTypes))
	}
	return dialect.Union(dialect.EdgeID, opts.Limit, parts...), nil
}

// AdjacentVertices implements dialect.Tx.
func (tx *Tx) AdjacentVertices(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Vertex, error) {
	if err := tx.enter(ctx, "adjacent-vertices", false); err != nil {
		return nil, err
	}
	if err := opts.Direction.Validate(); err != nil {
		return nil, err
	}
	var parts [][]unigraph.Vertex
	for _, d := range dialect.Directions(opts.Direction) {
		var vs []unigraph.Vertex
		for _, e := range tx.edgesFrom(id, d, opts.EdgeTypes) {
			other := e.To
			if d == unigraph.Incoming {
				other = e.From
			}
			if _, v := tx.vertex(other); v != nil {
				vs = append(vs, *copyVertex(v))
			}
		}
		parts = append(parts, vs)
	}
	return dialect.Union(dialect.VertexID, opts.Limit, parts...), nil
}

// CreateVertices implements dialect.Tx. The batch is all or nothing.
func (tx *Tx) CreateVertices(ctx context.Context, specs []unigraph.VertexSpec) ([]unigraph.Vertex, error) {
	snap := tx.st.clone()
	out, err := dialect.CreateVertices(ctx, tx, specs)
	if err != nil {
		tx.st = snap
	}
	return out, err
}

// CreateEdges implements dialect.Tx. The batch is all or nothing.
func (tx *Tx) CreateEdges(ctx context.Context, specs []unigraph.EdgeSpec) ([]unigraph.Edge, error) {
	snap := tx.st.clone()
	out, err := dialect.CreateEdges(ctx, tx, specs)
	if err != nil {
		tx.st = snap
	}
	return out, err
}

// UpsertVertex implements dialect.Tx.
func (tx *Tx) UpsertVertex(ctx context.Context, opts unigraph.UpsertVertexOptions) (*unigraph.Vertex, error) {
	return dialect.UpsertVertex(ctx, tx, opts)
}

// UpsertEdge implements dialect.Tx.
func (tx *Tx) UpsertEdge(ctx context.Context, opts unigraph.UpsertEdgeOptions) (*unigraph.Edge, error) {
	return dialect.UpsertEdge(ctx, tx, opts)
}

// Commit implements dialect.Tx. Transactions without writes never conflict.
func (tx *Tx) Commit(ctx context.Context) error {
	if err := tx.enter(ctx, "commit", false); err != nil {
		return err
	}
	tx.done = true
	if !tx.dirty {
		return nil
	}
	return tx.drv.publish(tx)
}

// Rollback implements dialect.Tx.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	tx.done = true
	if tx.drv.hook != nil {
		return tx.drv.hook(ctx, "rollback")
	}
	return nil
}
