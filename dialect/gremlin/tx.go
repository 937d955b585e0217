package gremlin

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// Tx is a session transaction, or an op-log transaction when log is set.
type Tx struct {
	d       *Driver
	c       *conn  // session mode
	session string // session mode
	log     *oplog // op-log mode
	done    bool
}

var (
	_ dialect.Tx             = (*Tx)(nil)
	_ dialect.ShortestPather = (*Tx)(nil)
	_ dialect.AllPather      = (*Tx)(nil)
	_ dialect.PathExister    = (*Tx)(nil)
)

func (tx *Tx) eval(ctx context.Context, s *script) ([]any, error) {
	return tx.submit(ctx, s, nil)
}

// submit runs s in the session of tx, or sessionless in op-log mode.
func (tx *Tx) submit(ctx context.Context, s *script, extra map[string]any) ([]any, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	args := tx.d.args(s)
	for k, v := range extra {
		args[k] = v
	}
	if tx.log != nil {
		c, err := tx.d.pool.get(ctx)
		if err != nil {
			return nil, convert(err)
		}
		defer tx.d.pool.put(c)
		out, err := c.submit(ctx, "eval", processorEval, args)
		return out, convert(err)
	}
	args["session"] = tx.session
	args["manageTransaction"] = false
	out, err := tx.c.submit(ctx, "eval", processorSession, args)
	return out, convert(err)
}

// dirty reports whether reads must apply pending op-log mutations.
func (tx *Tx) dirty() bool { return tx.log != nil && tx.log.pending() }

func (tx *Tx) vertices(ctx context.Context, s *script) ([]unigraph.Vertex, error) {
	xs, err := tx.eval(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]unigraph.Vertex, 0, len(xs))
	for _, x := range xs {
		v, ok := vertexOf(x)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: expected a vertex, got %T", x)
		}
		out = append(out, v)
	}
	return out, nil
}

func (tx *Tx) edges(ctx context.Context, s *script) ([]unigraph.Edge, error) {
	xs, err := tx.eval(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]unigraph.Edge, 0, len(xs))
	for _, x := range xs {
		e, ok := edgeOf(x)
		if !ok {
			return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: expected an edge, got %T", x)
		}
		out = append(out, e)
	}
	return out, nil
}

func (tx *Tx) vertex(ctx context.Context, s *script) (*unigraph.Vertex, error) {
	vs, err := tx.vertices(ctx, s)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	return &vs[0], nil
}

func (tx *Tx) edge(ctx context.Context, s *script) (*unigraph.Edge, error) {
	es, err := tx.edges(ctx, s)
	if err != nil || len(es) == 0 {
		return nil, err
	}
	return &es[0], nil
}

// stored returns props without nulls in name order.
func stored(props unigraph.PropertyMap) unigraph.PropertyMap {
	return unigraph.PropertyMap(nil).Merge(props).Sorted()
}

func checkVertex(typ string, labels []string) error {
	if typ == "" {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "vertex type is required")
	}
	if len(labels) > 0 {
		return unigraph.Unsupported("gremlin: secondary vertex labels")
	}
	return nil
}

// typeStep selects vertices of typ, or every vertex but schema records.
func typeStep(s *script, typ string) string {
	if typ == "" {
		return ".not(hasLabel(" + s.bind(schema.MetadataType) + "))"
	}
	return ".hasLabel(" + s.bind(typ) + ")"
}

// CreateVertex implements dialect.Tx.
func (tx *Tx) CreateVertex(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	if err := checkVertex(typ, labels); err != nil {
		return nil, err
	}
	props = stored(props)
	if tx.log != nil {
		m := tx.log.s.mark()
		v, err := tx.stageVertex(typ, props)
		if err != nil {
			tx.log.s.reset(m)
			return nil, err
		}
		tx.log.putVertex(v)
		return &v, nil
	}
	s := newScript()
	l := s.bind(typ)
	ps, err := s.properties(props, true)
	if err != nil {
		return nil, err
	}
	s.add("g.addV(%s)%s.elementMap()", l, ps)
	v, err := tx.vertex(ctx, s)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: create returned no vertex")
	}
	return v, nil
}

// stageVertex appends the creation of a vertex to the op-log script.
func (tx *Tx) stageVertex(typ string, props unigraph.PropertyMap) (unigraph.Vertex, error) {
	s := tx.log.s
	id := unigraph.UUIDID(uuid.New())
	l, ref := s.bind(typ), s.id(id)
	ps, err := s.properties(props, true)
	if err != nil {
		return unigraph.Vertex{}, err
	}
	s.add("g.addV(%s).property(T.id, %s)%s.iterate()", l, ref, ps)
	return unigraph.Vertex{ID: id, Type: typ, Properties: props}, nil
}

// GetVertex implements dialect.Tx.
func (tx *Tx) GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	if tx.log != nil {
		if v, known := tx.log.vertex(id); known {
			return v, nil
		}
	}
	s := newScript()
	s.add("g.V(%s).elementMap()", s.id(id))
	return tx.vertex(ctx, s)
}

// UpdateVertex implements dialect.Tx.
func (tx *Tx) UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.updateVertex(ctx, id, props, true)
}

// UpdateVertexProperties implements dialect.Tx.
func (tx *Tx) UpdateVertexProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.updateVertex(ctx, id, props, false)
}

func (tx *Tx) updateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap, replace bool) (*unigraph.Vertex, error) {
	cur, err := tx.GetVertex(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, unigraph.NotFound(id)
	}
	props = props.Normalize()
	s := newScript()
	if tx.log != nil {
		s = tx.log.s
	}
	m := s.mark()
	ref := s.id(id)
	step, next := ".sideEffect(properties().drop())", stored(props)
	if !replace {
		step, next = s.removals(props), cur.Properties.Merge(props).Sorted()
	}
	ps, err := s.properties(props, true)
	if err != nil {
		s.reset(m)
		return nil, err
	}
	line := "g.V(" + ref + ")" + step + ps
	if tx.log != nil {
		s.add("%s.iterate()", line)
		v := unigraph.Vertex{ID: cur.ID, Type: cur.Type, Properties: next}
		tx.log.putVertex(v)
		return &v, nil
	}
	s.add("%s.elementMap()", line)
	v, err := tx.vertex(ctx, s)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, unigraph.NotFound(id)
	}
	return v, nil
}

// DeleteVertex implements dialect.Tx. Incident edges are always removed
// with the vertex.
func (tx *Tx) DeleteVertex(ctx context.Context, id unigraph.ElementID, _ bool) error {
	cur, err := tx.GetVertex(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return unigraph.NotFound(id)
	}
	if tx.log != nil {
		s := tx.log.s
		s.add("g.V(%s).drop().iterate()", s.id(id))
		tx.log.dropVertex(id)
		return nil
	}
	s := newScript()
	s.add("g.V(%s).drop().iterate()", s.id(id))
	_, err = tx.eval(ctx, s)
	return err
}

// FindVertices implements dialect.Tx. Sorting, and everything while op-log
// mutations are pending, is done on the client.
func (tx *Tx) FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	dirty := tx.dirty()
	local := dirty || len(opts.Sort) > 0
	s := newScript()
	q := "g.V()" + typeStep(s, opts.Type)
	var filters []unigraph.FilterCondition
	if dirty {
		filters = opts.Filters
	} else {
		f, err := s.filters(opts.Filters)
		if err != nil {
			return nil, err
		}
		q += f
	}
	if !local {
		q += s.page(opts.Offset, opts.Limit)
	}
	s.add("%s.elementMap()", q)
	vs, err := tx.vertices(ctx, s)
	if err != nil {
		return nil, err
	}
	if dirty {
		vs = tx.log.applyVertices(vs, opts.Type)
	}
	if local {
		return selectElements(vs, vertexProps, filters, opts.Sort, opts.Offset, opts.Limit)
	}
	return vs, nil
}

// CreateEdge implements dialect.Tx.
func (tx *Tx) CreateEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	if typ == "" {
		return nil, unigraph.Errorf(unigraph.KindSchemaViolation, "edge type is required")
	}
	if err := tx.endpoints(ctx, from, to); err != nil {
		return nil, err
	}
	props = stored(props)
	if tx.log != nil {
		m := tx.log.s.mark()
		e, err := tx.stageEdge(typ, from, to, props)
		if err != nil {
			tx.log.s.reset(m)
			return nil, err
		}
		tx.log.putEdge(e)
		return &e, nil
	}
	s := newScript()
	f, l, t := s.id(from), s.bind(typ), s.id(to)
	ps, err := s.properties(props, false)
	if err != nil {
		return nil, err
	}
	s.add("g.V(%s).addE(%s).to(__.V(%s))%s.elementMap()", f, l, t, ps)
	e, err := tx.edge(ctx, s)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: create returned no edge")
	}
	return e, nil
}

// endpoints checks that both vertices exist.
func (tx *Tx) endpoints(ctx context.Context, ids ...unigraph.ElementID) error {
	for _, id := range ids {
		v, err := tx.GetVertex(ctx, id)
		if err != nil {
			return err
		}
		if v == nil {
			return unigraph.NotFound(id)
		}
	}
	return nil
}

func (tx *Tx) stageEdge(typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (unigraph.Edge, error) {
	s := tx.log.s
	id := unigraph.UUIDID(uuid.New())
	f, l, t, ref := s.id(from), s.bind(typ), s.id(to), s.id(id)
	ps, err := s.properties(props, false)
	if err != nil {
		return unigraph.Edge{}, err
	}
	s.add("g.V(%s).addE(%s).to(__.V(%s)).property(T.id, %s)%s.iterate()", f, l, t, ref, ps)
	return unigraph.Edge{ID: id, Type: typ, From: from, To: to, Properties: props}, nil
}

// GetEdge implements dialect.Tx.
func (tx *Tx) GetEdge(ctx context.Context, id unigraph.ElementID) (*unigraph.Edge, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	if tx.log != nil {
		if e, known := tx.log.edge(id); known {
			return e, nil
		}
	}
	s := newScript()
	s.add("g.E(%s).elementMap()", s.id(id))
	e, err := tx.edge(ctx, s)
	if err != nil || e == nil {
		return nil, err
	}
	if tx.log != nil && !tx.log.visible(*e) {
		return nil, nil
	}
	return e, nil
}

// UpdateEdge implements dialect.Tx.
func (tx *Tx) UpdateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return tx.updateEdge(ctx, id, props, true)
}

// UpdateEdgeProperties implements dialect.Tx.
func (tx *Tx) UpdateEdgeProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return tx.updateEdge(ctx, id, props, false)
}

func (tx *Tx) updateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap, replace bool) (*unigraph.Edge, error) {
	cur, err := tx.GetEdge(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, unigraph.NotFound(id)
	}
	props = props.Normalize()
	s := newScript()
	if tx.log != nil {
		s = tx.log.s
	}
	m := s.mark()
	ref := s.id(id)
	step, next := ".sideEffect(properties().drop())", stored(props)
	if !replace {
		step, next = s.removals(props), cur.Properties.Merge(props).Sorted()
	}
	ps, err := s.properties(props, false)
	if err != nil {
		s.reset(m)
		return nil, err
	}
	line := "g.E(" + ref + ")" + step + ps
	if tx.log != nil {
		s.add("%s.iterate()", line)
		e := unigraph.Edge{ID: cur.ID, Type: cur.Type, From: cur.From, To: cur.To, Properties: next}
		tx.log.putEdge(e)
		return &e, nil
	}
	s.add("%s.elementMap()", line)
	e, err := tx.edge(ctx, s)
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
	cur, err := tx.GetEdge(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return unigraph.NotFound(id)
	}
	if tx.log != nil {
		s := tx.log.s
		s.add("g.E(%s).drop().iterate()", s.id(id))
		tx.log.dropEdge(id)
		return nil
	}
	s := newScript()
	s.add("g.E(%s).drop().iterate()", s.id(id))
	_, err = tx.eval(ctx, s)
	return err
}

// FindEdges implements dialect.Tx.
func (tx *Tx) FindEdges(ctx context.Context, opts unigraph.FindEdgesOptions) ([]unigraph.Edge, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	dirty := tx.dirty()
	local := dirty || len(opts.Sort) > 0
	s := newScript()
	q := "g.E()"
	if len(opts.Types) > 0 {
		q += ".hasLabel(" + s.names(opts.Types) + ")"
	}
	var filters []unigraph.FilterCondition
	if dirty {
		filters = opts.Filters
	} else {
		f, err := s.filters(opts.Filters)
		if err != nil {
			return nil, err
		}
		q += f
	}
	if !local {
		q += s.page(opts.Offset, opts.Limit)
	}
	s.add("%s.elementMap()", q)
	es, err := tx.edges(ctx, s)
	if err != nil {
		return nil, err
	}
	if dirty {
		es = tx.log.applyEdges(es, func(e unigraph.Edge) bool {
			return len(opts.Types) == 0 || slices.Contains(opts.Types, e.Type)
		})
	}
	if local {
		return selectElements(es, edgeProps, filters, opts.Sort, opts.Offset, opts.Limit)
	}
	return es, nil
}

// incident returns the edges of id in direction d, which is Outgoing or
// Incoming.
func (tx *Tx) incident(ctx context.Context, id unigraph.ElementID, d unigraph.Direction, types []string, limit int) ([]unigraph.Edge, error) {
	dirty := tx.dirty()
	s := newScript()
	q := "g.V(" + s.id(id) + ")." + s.edgeStep(d, types)
	if !dirty {
		q += s.page(0, limit)
	}
	s.add("%s.elementMap()", q)
	es, err := tx.edges(ctx, s)
	if err != nil || !dirty {
		return es, err
	}
	es = tx.log.applyEdges(es, func(e unigraph.Edge) bool {
		end := e.From
		if d == unigraph.Incoming {
			end = e.To
		}
		return end == id && (len(types) == 0 || slices.Contains(types, e.Type))
	})
	return unigraph.Page(es, 0, limit), nil
}

// ConnectedEdges implements dialect.Tx.
func (tx *Tx) ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	var parts [][]unigraph.Edge
	for _, d := range dialect.Directions(opts.Direction) {
		es, err := tx.incident(ctx, id, d, opts.EdgeTypes, opts.Limit)
		if err != nil {
			return nil, err
		}
		parts = append(parts, es)
	}
	return dialect.Union(dialect.EdgeID, opts.Limit, parts...), nil
}

// AdjacentVertices implements dialect.Tx.
func (tx *Tx) AdjacentVertices(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Vertex, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	var parts [][]unigraph.Vertex
	for _, d := range dialect.Directions(opts.Direction) {
		vs, err := tx.adjacent(ctx, id, d, opts.EdgeTypes, opts.Limit)
		if err != nil {
			return nil, err
		}
		parts = append(parts, vs)
	}
	return dialect.Union(dialect.VertexID, opts.Limit, parts...), nil
}

func (tx *Tx) adjacent(ctx context.Context, id unigraph.ElementID, d unigraph.Direction, types []string, limit int) ([]unigraph.Vertex, error) {
	if !tx.dirty() {
		s := newScript()
		s.add("g.V(%s).%s.dedup()%s.elementMap()", s.id(id), s.walkStep(d, types), s.page(0, limit))
		return tx.vertices(ctx, s)
	}
	es, err := tx.incident(ctx, id, d, types, 0)
	if err != nil {
		return nil, err
	}
	var out []unigraph.Vertex
	for _, e := range es {
		other := e.To
		if d == unigraph.Incoming {
			other = e.From
		}
		v, err := tx.GetVertex(ctx, other)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// CreateVertices implements dialect.Tx. In session mode the batch is one
// script; in op-log mode it is validated, then logged as a whole.
func (tx *Tx) CreateVertices(ctx context.Context, specs []unigraph.VertexSpec) ([]unigraph.Vertex, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	for i, sp := range specs {
		if err := checkVertex(sp.Type, sp.Labels); err != nil {
			return nil, fmt.Errorf("batch vertex %d: %w", i, err)
		}
	}
	if len(specs) == 0 {
		return []unigraph.Vertex{}, nil
	}
	if tx.log != nil {
		m := tx.log.s.mark()
		out := make([]unigraph.Vertex, 0, len(specs))
		for i, sp := range specs {
			v, err := tx.stageVertex(sp.Type, stored(sp.Properties))
			if err != nil {
				tx.log.s.reset(m)
				return nil, fmt.Errorf("batch vertex %d: %w", i, err)
			}
			out = append(out, v)
		}
		for _, v := range out {
			tx.log.putVertex(v)
		}
		return out, nil
	}
	s := newScript()
	vars := make([]string, len(specs))
	for i, sp := range specs {
		l := s.bind(sp.Type)
		ps, err := s.properties(stored(sp.Properties), true)
		if err != nil {
			return nil, fmt.Errorf("batch vertex %d: %w", i, err)
		}
		vars[i] = "v" + strconv.Itoa(i)
		s.add("%s = g.addV(%s)%s.elementMap().next()", vars[i], l, ps)
	}
	s.add("[%s]", strings.Join(vars, ", "))
	vs, err := tx.vertices(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(vs) != len(specs) {
		return nil, unigraph.Errorf(unigraph.KindInternal, "gremlin: batch created %d of %d vertices", len(vs), len(specs))
	}
	return vs, nil
}

// CreateEdges implements dialect.Tx. Endpoints are checked before anything
// is written.
func (tx *Tx) CreateEdges(ctx context.Context, specs []unigraph.EdgeSpec) ([]unigraph.Edge, error) {
	if tx.done {
		return nil, unigraph.ErrTxNotActive
	}
	if tx.log == nil {
		return dialect.CreateEdges(ctx, tx, specs)
	}
	for i, sp := range specs {
		if sp.Type == "" {
			return nil, fmt.Errorf("batch edge %d: %w", i, unigraph.Errorf(unigraph.KindSchemaViolation, "edge type is required"))
		}
		if err := tx.endpoints(ctx, sp.From, sp.To); err != nil {
			return nil, fmt.Errorf("batch edge %d: %w", i, err)
		}
	}
	m := tx.log.s.mark()
	out := make([]unigraph.Edge, 0, len(specs))
	for i, sp := range specs {
		e, err := tx.stageEdge(sp.Type, sp.From, sp.To, stored(sp.Properties))
		if err != nil {
			tx.log.s.reset(m)
			return nil, fmt.Errorf("batch edge %d: %w", i, err)
		}
		out = append(out, e)
	}
	for _, e := range out {
		tx.log.putEdge(e)
	}
	return out, nil
}

// UpsertVertex implements dialect.Tx. The match key is the type and the
// MatchOn properties.
func (tx *Tx) UpsertVertex(ctx context.Context, opts unigraph.UpsertVertexOptions) (*unigraph.Vertex, error) {
	return dialect.UpsertVertex(ctx, tx, opts)
}

// UpsertEdge implements dialect.Tx. The match key is the type, the
// endpoints and the MatchOn properties.
func (tx *Tx) UpsertEdge(ctx context.Context, opts unigraph.UpsertEdgeOptions) (*unigraph.Edge, error) {
	return dialect.UpsertEdge(ctx, tx, opts)
}

// Commit implements dialect.Tx. An op-log transaction submits its log as
// one script.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	if tx.log != nil {
		tx.done = true
		if !tx.log.pending() {
			return nil
		}
		_, err := tx.d.eval(ctx, tx.log.s)
		return err
	}
	s := newScript()
	s.add("g.tx().commit()")
	_, err := tx.eval(ctx, s)
	tx.end(ctx)
	return err
}

// Rollback implements dialect.Tx. An op-log transaction that ran a native
// query cannot undo it and reports unsupported-operation.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return unigraph.ErrTxNotActive
	}
	if tx.log != nil {
		tx.done = true
		if tx.log.bypassed {
			return unigraph.Unsupported("gremlin: rollback of native queries in an op-log transaction")
		}
		return nil
	}
	var err error
	if !tx.c.broken {
		s := newScript()
		s.add("g.tx().rollback()")
		_, err = tx.eval(ctx, s)
	}
	tx.end(ctx)
	return err
}

// end closes the session, which rolls back anything left open, and
// returns the connection. A broken connection is replaced to deliver the
// close request.
func (tx *Tx) end(ctx context.Context) {
	tx.done = true
	c := tx.c
	if c.broken {
		tx.d.pool.put(c)
		var err error
		if c, err = tx.d.pool.get(ctx); err != nil {
			tx.d.log.Warn("gremlin: session not closed", "session", tx.session, "error", err)
			return
		}
	}
	defer tx.d.pool.put(c)
	if _, err := c.submit(ctx, "close", processorSession, map[string]any{"session": tx.session}); err != nil {
		tx.d.log.Debug("gremlin: close session", "session", tx.session, "error", err)
	}
}
