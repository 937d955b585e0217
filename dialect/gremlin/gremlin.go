// Package gremlin implements a dialect.Driver for Gremlin Server over
// WebSocket with GraphSON 3, flavoured for JanusGraph.
//
// Vertex types are vertex labels and edge types are edge labels; secondary
// labels are not supported. Element identifiers are the ones the graph
// assigns: JanusGraph vertex ids are unigraph.Int64ID and relation ids are
// unigraph.StringID.
//
// Two transaction modes exist. In session mode every transaction is a
// server session committed with g.tx().commit(). In op-log mode, meant for
// graphs without transactions, mutations are kept in an ordered log and
// submitted as one script on commit; such graphs must accept user-supplied
// identifiers because the adapter assigns UUIDs to new elements.
//
// Provider options:
//
//	path              endpoint path (default /gremlin)
//	scheme            ws or wss (default ws)
//	transactions      session or oplog (default session)
//	traversal_source  server traversal source aliased as g (default g)
//	graph             server graph aliased as graph (default graph)
//	management        janusgraph or none (default janusgraph)
//	index_backend     mixed index backend (default search)
package gremlin

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// DefaultPort is the Gremlin Server port.
const DefaultPort = 8182

func init() {
	dialect.Register(dialect.JanusGraph, func(ctx context.Context, cfg unigraph.Config) (dialect.Driver, error) {
		return Open(ctx, cfg)
	})
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger of the driver.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is a connection pool to one Gremlin Server.
type Driver struct {
	pool         *pool
	log          *slog.Logger
	aliases      map[string]any
	oplog        bool
	management   bool
	indexBackend string
	schema       *schemaManager
}

var _ dialect.Driver = (*Driver)(nil)

// Open connects to the server named by cfg and verifies connectivity. At
// most cfg.MaxConnections connections are open at any time; a session
// transaction holds one until it ends.
func Open(ctx context.Context, cfg unigraph.Config, opts ...Option) (*Driver, error) {
	cfg = cfg.WithDefaults(DefaultPort)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme := cfg.Option("scheme", "ws")
	if scheme != "ws" && scheme != "wss" {
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "gremlin: unknown scheme %q", scheme)
	}
	mode := cfg.Option("transactions", "session")
	if mode != "session" && mode != "oplog" {
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "gremlin: unknown transaction mode %q", mode)
	}
	d := &Driver{
		pool:         newPool(cfg.MaxConnections, dialer(cfg, scheme, cfg.Option("path", "/gremlin"))),
		log:          slog.Default(),
		aliases:      make(map[string]any),
		oplog:        mode == "oplog",
		management:   cfg.Option("management", "janusgraph") == "janusgraph",
		indexBackend: cfg.Option("index_backend", "search"),
	}
	if src := cfg.Option("traversal_source", "g"); src != "g" {
		d.aliases["g"] = src
	}
	if g := cfg.Option("graph", "graph"); g != "graph" {
		d.aliases["graph"] = g
	}
	for _, opt := range opts {
		opt(d)
	}
	d.schema = newSchemaManager(d)
	if err := d.Ping(ctx); err != nil {
		d.pool.close()
		return nil, err
	}
	return d, nil
}

// Dialect implements dialect.Driver.
func (d *Driver) Dialect() string { return dialect.JanusGraph }

// args returns the eval arguments of s.
func (d *Driver) args(s *script) map[string]any {
	args := map[string]any{
		"gremlin":  s.String(),
		"bindings": s.bindings,
		"language": "gremlin-groovy",
	}
	if len(d.aliases) > 0 {
		args["aliases"] = d.aliases
	}
	return args
}

// eval runs s outside of any session. The server commits a sessionless
// script as a whole or not at all.
func (d *Driver) eval(ctx context.Context, s *script) ([]any, error) {
	c, err := d.pool.get(ctx)
	if err != nil {
		return nil, convert(err)
	}
	defer d.pool.put(c)
	out, err := c.submit(ctx, "eval", processorEval, d.args(s))
	return out, convert(err)
}

// BeginTx implements dialect.Driver. The read-only hint is ignored.
func (d *Driver) BeginTx(ctx context.Context, opts dialect.TxOptions) (dialect.Tx, error) {
	return d.begin(ctx)
}

func (d *Driver) begin(ctx context.Context) (*Tx, error) {
	if d.oplog {
		return &Tx{d: d, log: newOplog()}, nil
	}
	c, err := d.pool.get(ctx)
	if err != nil {
		return nil, convert(err)
	}
	return &Tx{d: d, c: c, session: uuid.NewString()}, nil
}

// Ping implements dialect.Driver.
func (d *Driver) Ping(ctx context.Context) error {
	s := newScript()
	s.add("g.inject(0)")
	_, err := d.eval(ctx, s)
	return err
}

// Statistics implements dialect.Driver. The label count covers vertex and
// edge labels; property counts are not reported. Transactions are native
// in session mode only.
func (d *Driver) Statistics(ctx context.Context) (*unigraph.Statistics, error) {
	s := newScript()
	meta := s.bind(schema.MetadataType)
	s.add("[g.V().not(hasLabel(%s)).count().next(), g.E().count().next(), "+
		"g.V().not(hasLabel(%s)).label().dedup().count().next() + g.E().label().dedup().count().next()]", meta, meta)
	xs, err := d.eval(ctx, s)
	if err != nil {
		return nil, err
	}
	var counts [3]int64
	for i := range counts {
		if i < len(xs) {
			counts[i], _ = xs[i].(int64)
		}
	}
	return &unigraph.Statistics{
		VertexCount:        unigraph.Ptr(uint64(counts[0])),
		EdgeCount:          unigraph.Ptr(uint64(counts[1])),
		LabelCount:         unigraph.Ptr(uint32(counts[2])),
		NativeTransactions: !d.oplog,
	}, nil
}

// Schema implements dialect.Driver.
func (d *Driver) Schema() schema.Manager { return d.schema }

// Close implements dialect.Driver. Idle connections are closed; the ones
// held by open transactions are closed when those end.
func (d *Driver) Close(context.Context) error {
	d.pool.close()
	return nil
}
