package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
)

// State is the lifecycle state of a transaction.
type State uint32

// Transaction states. Committed and rolled-back are terminal.
const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// Tx is a transaction bound to one backend session. Its methods may be
// called from several goroutines; they are issued to the backend one at a
// time, in call order.
//
// Once committed or rolled back, every method fails with
// unigraph.ErrTxNotActive.
//
// If the context of an operation ends before the backend answers, the
// transaction is rolled back and the operation fails with timeout (deadline)
// or transaction-failed (cancellation).
type Tx struct {
	g        *Graph
	tx       dialect.Tx
	readOnly bool

	mu     sync.Mutex // serializes backend calls
	state  atomic.Uint32
	poison error // first failed batch, fails the commit

	hmu        sync.Mutex
	onCommit   []CommitHook
	onRollback []RollbackHook
}

// State returns the current state.
func (tx *Tx) State() State { return State(tx.state.Load()) }

// IsActive reports whether the transaction is neither committed nor rolled
// back.
func (tx *Tx) IsActive() bool { return tx.State() == StateActive }

// Alive is IsActive, additionally confirmed by the backend when the adapter
// can query transaction status.
func (tx *Tx) Alive(ctx context.Context) bool {
	if !tx.IsActive() {
		return false
	}
	if l, ok := tx.tx.(dialect.Liveness); ok {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		return l.Alive(ctx)
	}
	return true
}

// ReadOnly reports whether the transaction was begun with the read-only hint.
func (tx *Tx) ReadOnly() bool { return tx.readOnly }

// Graph returns the graph the transaction belongs to.
func (tx *Tx) Graph() *Graph { return tx.g }

// do runs one backend operation under the transaction lock.
func (tx *Tx) do(ctx context.Context, op string, class dialect.OpClass, fn func(context.Context) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.IsActive() {
		return unigraph.ErrTxNotActive
	}
	start := time.Now()
	err := tx.g.authorize(ctx, op, class)
	if err == nil {
		if err = fn(ctx); err != nil {
			err = tx.fail(ctx, op, err)
		}
	}
	tx.g.observe(ctx, op, class, start, err)
	return err
}

// call is do for operations returning a value.
func call[T any](ctx context.Context, tx *Tx, op string, class dialect.OpClass, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := tx.do(ctx, op, class, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// fail classifies err and, when the caller's context ended, rolls the
// transaction back. tx.mu is held.
func (tx *Tx) fail(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		kind := unigraph.KindTransactionFailed
		if errors.Is(cerr, context.DeadlineExceeded) {
			kind = unigraph.KindTimeout
		}
		out := &unigraph.Error{Kind: kind, Op: op, Msg: "operation interrupted, transaction rolled back", Err: err}
		if rerr := tx.rollbackDetached(ctx); rerr != nil {
			return &unigraph.RollbackError{Err: rerr, Cause: out}
		}
		return out
	}
	if unigraph.IsTxNotActive(err) {
		// The backend dropped the session.
		tx.finish(StateRolledBack)
	}
	return classify(op, err)
}

// classify annotates unigraph errors with the operation and wraps foreign
// errors as internal errors.
func classify(op string, err error) error {
	var e *unigraph.Error
	switch {
	case errors.As(err, &e):
		if direct, ok := err.(*unigraph.Error); ok && direct != unigraph.ErrTxNotActive {
			return direct.WithOp(op)
		}
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &unigraph.Error{Kind: unigraph.KindTimeout, Op: op, Err: err}
	}
	return &unigraph.Error{Kind: unigraph.KindInternal, Op: op, Msg: err.Error(), Err: err}
}

func (tx *Tx) finish(s State) {
	if tx.state.CompareAndSwap(uint32(StateActive), uint32(s)) {
		tx.g.release(tx)
	}
}

// rollback runs the rollback hooks and the backend rollback. The transaction
// is rolled back locally whatever the backend answers. tx.mu is held.
func (tx *Tx) rollback(ctx context.Context) error {
	base := RollbackFunc(func(ctx context.Context, _ *Tx) error { return tx.tx.Rollback(ctx) })
	err := tx.rollbacker(base).Rollback(ctx, tx)
	tx.finish(StateRolledBack)
	return err
}

func (tx *Tx) rollbackDetached(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tx.g.rollbackTimeout)
	defer cancel()
	err := tx.rollback(rctx)
	if err != nil {
		tx.g.log.WarnContext(ctx, "unigraph: rollback after interrupted operation failed",
			"dialect", tx.g.drv.Dialect(), "error", err)
	}
	return err
}

// Commit commits the transaction. A transaction in which a batch operation
// failed is rolled back instead, and Commit fails with transaction-failed.
// A failed commit leaves the transaction rolled back.
func (tx *Tx) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.IsActive() {
		return unigraph.ErrTxNotActive
	}
	start := time.Now()
	var err error
	if tx.poison != nil {
		err = &unigraph.Error{
			Kind: unigraph.KindTransactionFailed,
			Op:   "commit",
			Msg:  "a batch operation failed; transaction rolled back",
			Err:  tx.poison,
		}
		if rerr := tx.rollbackDetached(ctx); rerr != nil {
			err = &unigraph.RollbackError{Err: rerr, Cause: err}
		}
	} else {
		base := CommitFunc(func(ctx context.Context, _ *Tx) error { return tx.tx.Commit(ctx) })
		err = tx.committer(base).Commit(ctx, tx)
		if err != nil {
			tx.finish(StateRolledBack)
			if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = &unigraph.Error{Kind: unigraph.KindTimeout, Op: "commit", Err: err}
			} else {
				err = classify("commit", err)
			}
		} else {
			tx.finish(StateCommitted)
		}
	}
	tx.g.observe(ctx, "commit", dialect.ClassTx, start, err)
	return err
}

// Rollback undoes every operation issued since the transaction began.
func (tx *Tx) Rollback(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.IsActive() {
		return unigraph.ErrTxNotActive
	}
	start := time.Now()
	err := tx.rollback(ctx)
	if err != nil {
		err = classify("rollback", err)
	}
	tx.g.observe(ctx, "rollback", dialect.ClassTx, start, err)
	return err
}

func validateLimits(limit, offset int) error {
	if limit < 0 || offset < 0 {
		return unigraph.Errorf(unigraph.KindInvalidQuery, "negative limit or offset")
	}
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

// CreateVertex creates a vertex of the given type.
func (tx *Tx) CreateVertex(ctx context.Context, typ string, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return tx.CreateVertexWithLabels(ctx, typ, nil, props)
}

// CreateVertexWithLabels creates a vertex with secondary labels. Backends
// without multi-label vertices fail with unsupported-operation when labels
// is not empty.
func (tx *Tx) CreateVertexWithLabels(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return call(ctx, tx, "create-vertex", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Vertex, error) {
		props, err := tx.g.schema.checkVertex(ctx, typ, props, false)
		if err != nil {
			return nil, err
		}
		return tx.tx.CreateVertex(ctx, typ, labels, props)
	})
}

// GetVertex returns the vertex, or nil when the identifier does not resolve.
func (tx *Tx) GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	return call(ctx, tx, "get-vertex", dialect.ClassRead, func(ctx context.Context) (*unigraph.Vertex, error) {
		return tx.tx.GetVertex(ctx, id)
	})
}

// UpdateVertex replaces the whole property map of a vertex.
func (tx *Tx) UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return call(ctx, tx, "update-vertex", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Vertex, error) {
		props, err := tx.checkExistingVertex(ctx, id, props, false)
		if err != nil {
			return nil, err
		}
		return tx.tx.UpdateVertex(ctx, id, props)
	})
}

// UpdateVertexProperties patches a vertex: names in props replace or extend
// the stored ones, other names are kept, null values remove the name.
func (tx *Tx) UpdateVertexProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error) {
	return call(ctx, tx, "update-vertex-properties", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Vertex, error) {
		props, err := tx.checkExistingVertex(ctx, id, props, true)
		if err != nil {
			return nil, err
		}
		return tx.tx.UpdateVertexProperties(ctx, id, props)
	})
}

func (tx *Tx) checkExistingVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap, patch bool) (unigraph.PropertyMap, error) {
	if !tx.g.enforceSchema {
		return props, nil
	}
	v, err := tx.tx.GetVertex(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, unigraph.NotFound(id)
	}
	return tx.g.schema.checkVertex(ctx, v.Type, props, patch)
}

// DeleteVertex deletes a vertex. When deleteEdges is false and the vertex
// still has edges, backends enforcing referential integrity fail with
// constraint-violation; the others delete the edges too.
func (tx *Tx) DeleteVertex(ctx context.Context, id unigraph.ElementID, deleteEdges bool) error {
	return tx.do(ctx, "delete-vertex", dialect.ClassWrite, func(ctx context.Context) error {
		return tx.tx.DeleteVertex(ctx, id, deleteEdges)
	})
}

// FindVertices returns the vertices matching opts.
func (tx *Tx) FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error) {
	return call(ctx, tx, "find-vertices", dialect.ClassRead, func(ctx context.Context) ([]unigraph.Vertex, error) {
		if err := validateLimits(opts.Limit, opts.Offset); err != nil {
			return nil, err
		}
		if err := validateFilters(opts.Filters); err != nil {
			return nil, err
		}
		return tx.tx.FindVertices(ctx, opts)
	})
}

// CreateEdge creates an edge. It fails with element-not-found when either
// endpoint does not exist.
func (tx *Tx) CreateEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return call(ctx, tx, "create-edge", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Edge, error) {
		props, err := tx.checkEdge(ctx, typ, from, to, props)
		if err != nil {
			return nil, err
		}
		return tx.tx.CreateEdge(ctx, typ, from, to, props)
	})
}

func (tx *Tx) checkEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (unigraph.PropertyMap, error) {
	if !tx.g.enforceSchema {
		return props, nil
	}
	ends := [2]string{}
	for i, id := range []unigraph.ElementID{from, to} {
		v, err := tx.tx.GetVertex(ctx, id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, unigraph.NotFound(id)
		}
		ends[i] = v.Type
	}
	return tx.g.schema.checkEdge(ctx, typ, ends[0], ends[1], props, false)
}

// GetEdge returns the edge, or nil when the identifier does not resolve.
func (tx *Tx) GetEdge(ctx context.Context, id unigraph.ElementID) (*unigraph.Edge, error) {
	return call(ctx, tx, "get-edge", dialect.ClassRead, func(ctx context.Context) (*unigraph.Edge, error) {
		return tx.tx.GetEdge(ctx, id)
	})
}

// UpdateEdge replaces the whole property map of an edge.
func (tx *Tx) UpdateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return call(ctx, tx, "update-edge", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Edge, error) {
		props, err := tx.checkExistingEdge(ctx, id, props, false)
		if err != nil {
			return nil, err
		}
		return tx.tx.UpdateEdge(ctx, id, props)
	})
}

// UpdateEdgeProperties patches an edge like UpdateVertexProperties.
func (tx *Tx) UpdateEdgeProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error) {
	return call(ctx, tx, "update-edge-properties", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Edge, error) {
		props, err := tx.checkExistingEdge(ctx, id, props, true)
		if err != nil {
			return nil, err
		}
		return tx.tx.UpdateEdgeProperties(ctx, id, props)
	})
}

func (tx *Tx) checkExistingEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap, patch bool) (unigraph.PropertyMap, error) {
	if !tx.g.enforceSchema {
		return props, nil
	}
	e, err := tx.tx.GetEdge(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, unigraph.NotFound(id)
	}
	return tx.g.schema.checkEdge(ctx, e.Type, "", "", props, patch)
}

// DeleteEdge deletes an edge.
func (tx *Tx) DeleteEdge(ctx context.Context, id unigraph.ElementID) error {
	return tx.do(ctx, "delete-edge", dialect.ClassWrite, func(ctx context.Context) error {
		return tx.tx.DeleteEdge(ctx, id)
	})
}

// FindEdges returns the edges matching opts.
func (tx *Tx) FindEdges(ctx context.Context, opts unigraph.FindEdgesOptions) ([]unigraph.Edge, error) {
	return call(ctx, tx, "find-edges", dialect.ClassRead, func(ctx context.Context) ([]unigraph.Edge, error) {
		if err := validateLimits(opts.Limit, opts.Offset); err != nil {
			return nil, err
		}
		if err := validateFilters(opts.Filters); err != nil {
			return nil, err
		}
		return tx.tx.FindEdges(ctx, opts)
	})
}

func validateAdjacency(opts unigraph.AdjacencyOptions) error {
	if err := opts.Direction.Validate(); err != nil {
		return err
	}
	return validateLimits(opts.Limit, 0)
}

// AdjacentVertices returns the neighbours of a vertex. For Direction Both,
// outgoing neighbours come first, and a vertex reached both ways is listed
// once.
func (tx *Tx) AdjacentVertices(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Vertex, error) {
	return call(ctx, tx, "adjacent-vertices", dialect.ClassRead, func(ctx context.Context) ([]unigraph.Vertex, error) {
		if err := validateAdjacency(opts); err != nil {
			return nil, err
		}
		return tx.tx.AdjacentVertices(ctx, id, opts)
	})
}

// ConnectedEdges returns the edges incident to a vertex.
func (tx *Tx) ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error) {
	return call(ctx, tx, "connected-edges", dialect.ClassRead, func(ctx context.Context) ([]unigraph.Edge, error) {
		if err := validateAdjacency(opts); err != nil {
			return nil, err
		}
		return tx.tx.ConnectedEdges(ctx, id, opts)
	})
}

// CreateVertices creates a batch of vertices. If any of them fails, the
// transaction can no longer commit: Commit rolls it back and fails.
func (tx *Tx) CreateVertices(ctx context.Context, specs []unigraph.VertexSpec) ([]unigraph.Vertex, error) {
	return call(ctx, tx, "create-vertices", dialect.ClassWrite, func(ctx context.Context) ([]unigraph.Vertex, error) {
		if tx.g.enforceSchema {
			specs = append([]unigraph.VertexSpec(nil), specs...)
			for i := range specs {
				props, err := tx.g.schema.checkVertex(ctx, specs[i].Type, specs[i].Properties, false)
				if err != nil {
					return nil, fmt.Errorf("batch vertex %d: %w", i, err)
				}
				specs[i].Properties = props
			}
		}
		vs, err := tx.tx.CreateVertices(ctx, specs)
		if err != nil && tx.poison == nil {
			tx.poison = err
		}
		return vs, err
	})
}

// CreateEdges creates a batch of edges, with the failure semantics of
// CreateVertices.
func (tx *Tx) CreateEdges(ctx context.Context, specs []unigraph.EdgeSpec) ([]unigraph.Edge, error) {
	return call(ctx, tx, "create-edges", dialect.ClassWrite, func(ctx context.Context) ([]unigraph.Edge, error) {
		if tx.g.enforceSchema {
			specs = append([]unigraph.EdgeSpec(nil), specs...)
			for i := range specs {
				props, err := tx.checkEdge(ctx, specs[i].Type, specs[i].From, specs[i].To, specs[i].Properties)
				if err != nil {
					return nil, fmt.Errorf("batch edge %d: %w", i, err)
				}
				specs[i].Properties = props
			}
		}
		es, err := tx.tx.CreateEdges(ctx, specs)
		if err != nil && tx.poison == nil {
			tx.poison = err
		}
		return es, err
	})
}

// UpsertVertex updates the vertex identified by opts.ID or by the MatchOn
// natural key, or creates it.
func (tx *Tx) UpsertVertex(ctx context.Context, opts unigraph.UpsertVertexOptions) (*unigraph.Vertex, error) {
	return call(ctx, tx, "upsert-vertex", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Vertex, error) {
		props, err := tx.g.schema.checkVertex(ctx, opts.Type, opts.Properties, false)
		if err != nil {
			return nil, err
		}
		opts.Properties = props
		return tx.tx.UpsertVertex(ctx, opts)
	})
}

// UpsertEdge updates the edge identified by opts.ID or by type, endpoints
// and the MatchOn natural key, or creates it.
func (tx *Tx) UpsertEdge(ctx context.Context, opts unigraph.UpsertEdgeOptions) (*unigraph.Edge, error) {
	return call(ctx, tx, "upsert-edge", dialect.ClassWrite, func(ctx context.Context) (*unigraph.Edge, error) {
		props, err := tx.checkEdge(ctx, opts.Type, opts.From, opts.To, opts.Properties)
		if err != nil {
			return nil, err
		}
		opts.Properties = props
		return tx.tx.UpsertEdge(ctx, opts)
	})
}

// ExecuteQuery runs a backend-native query through the transaction. A
// positive opts.Timeout bounds the query.
func (tx *Tx) ExecuteQuery(ctx context.Context, query string, params unigraph.PropertyMap, opts unigraph.QueryOptions) (*unigraph.QueryExecutionResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	return call(ctx, tx, "execute-query", dialect.ClassQuery, func(ctx context.Context) (*unigraph.QueryExecutionResult, error) {
		if query == "" {
			return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "empty query")
		}
		if opts.MaxResults < 0 {
			return nil, unigraph.Errorf(unigraph.KindInvalidQuery, "negative max results")
		}
		return tx.tx.ExecuteQuery(ctx, query, params, opts)
	})
}
