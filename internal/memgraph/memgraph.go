// Package memgraph is an in-memory dialect.Driver. Every transaction works
// on a private snapshot; commit publishes it unless another transaction
// committed writes in the meantime, which fails with transaction-conflict.
//
// It backs the tests of the client and is registered as dialect.Memory.
package memgraph

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

func init() {
	dialect.Register(dialect.Memory, func(_ context.Context, _ unigraph.Config) (dialect.Driver, error) {
		return New(), nil
	})
}

// Hook runs before every transaction operation; a non-nil error fails the
// operation. Tests use it to inject faults and latency.
type Hook func(ctx context.Context, op string) error

// Option configures a Driver.
type Option func(*Driver)

// WithHook installs a fault hook.
func WithHook(h Hook) Option {
	return func(d *Driver) { d.hook = h }
}

// WithLogger sets the logger used for commit conflicts.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is the in-memory graph.
type Driver struct {
	mu     sync.Mutex
	state  *store
	nextID atomic.Int64
	closed atomic.Bool
	hook   Hook
	log    *slog.Logger
	schema *schema.Emulated
}

// New returns an empty graph.
func New(opts ...Option) *Driver {
	d := &Driver{state: newStore(), log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.schema = schema.NewEmulated(func(ctx context.Context) (schema.Store, error) {
		return d.BeginTx(ctx, dialect.TxOptions{})
	})
	return d
}

var _ dialect.Driver = (*Driver)(nil)

// Dialect implements dialect.Driver.
func (d *Driver) Dialect() string { return dialect.Memory }

// BeginTx implements dialect.Driver.
func (d *Driver) BeginTx(ctx context.Context, _ dialect.TxOptions) (dialect.Tx, error) {
	if d.closed.Load() {
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "memgraph: driver closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	snap := d.state.clone()
	d.mu.Unlock()
	return &Tx{drv: d, st: snap, base: snap.version}, nil
}

// Ping implements dialect.Driver.
func (d *Driver) Ping(context.Context) error {
	if d.closed.Load() {
		return unigraph.Errorf(unigraph.KindConnectionFailed, "memgraph: driver closed")
	}
	return nil
}

// Statistics implements dialect.Driver. Metadata records are not counted.
func (d *Driver) Statistics(context.Context) (*unigraph.Statistics, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var (
		vertices, props uint64
		labels          = map[string]struct{}{}
	)
	for _, id := range d.state.vorder {
		v := d.state.vertices[id]
		if v.Type == schema.MetadataType {
			continue
		}
		vertices++
		props += uint64(len(v.Properties))
		labels[v.Type] = struct{}{}
		for _, l := range v.Labels {
			labels[l] = struct{}{}
		}
	}
	for _, id := range d.state.eorder {
		props += uint64(len(d.state.edges[id].Properties))
	}
	return &unigraph.Statistics{
		VertexCount:        unigraph.Ptr(vertices),
		EdgeCount:          unigraph.Ptr(uint64(len(d.state.eorder))),
		LabelCount:         unigraph.Ptr(uint32(len(labels))),
		PropertyCount:      unigraph.Ptr(props),
		NativeTransactions: true,
	}, nil
}

// Schema implements dialect.Driver.
func (d *Driver) Schema() schema.Manager { return d.schema }

// Close implements dialect.Driver.
func (d *Driver) Close(context.Context) error {
	d.closed.Store(true)
	return nil
}

func (d *Driver) publish(tx *Tx) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.version != tx.base {
		d.log.Debug("memgraph: commit conflict", "base", tx.base, "current", d.state.version)
		return unigraph.Errorf(unigraph.KindTransactionConflict, "memgraph: concurrent commit since begin")
	}
	tx.st.version = d.state.version + 1
	d.state = tx.st
	return nil
}

// store is one version of the graph. Elements are never mutated in place;
// updates replace the pointer, so clones share unchanged elements.
type store struct {
	version  uint64
	vertices map[int64]*unigraph.Vertex
	vorder   []int64
	edges    map[int64]*unigraph.Edge
	eorder   []int64
}

func newStore() *store {
	return &store{vertices: map[int64]*unigraph.Vertex{}, edges: map[int64]*unigraph.Edge{}}
}

func (s *store) clone() *store {
	return &store{
		version:  s.version,
		vertices: maps.Clone(s.vertices),
		vorder:   slices.Clone(s.vorder),
		edges:    maps.Clone(s.edges),
		eorder:   slices.Clone(s.eorder),
	}
}

func remove(order []int64, id int64) []int64 {
	return slices.DeleteFunc(order, func(x int64) bool { return x == id })
}
