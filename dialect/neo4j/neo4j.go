// Package neo4j implements a dialect.Driver for Neo4j over Bolt.
//
// Vertices are nodes. The vertex type is a label of the node and is also
// stored in the reserved property __type; the other labels are secondary
// labels. Edges are relationships. Element identifiers are Neo4j element ids
// (unigraph.StringID).
//
// Provider options:
//
//	scheme  bolt, neo4j, bolt+s or neo4j+s (default neo4j)
//	realm   authentication realm
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// DefaultPort is the Bolt port.
const DefaultPort = 7687

func init() {
	dialect.Register(dialect.Neo4j, func(ctx context.Context, cfg unigraph.Config) (dialect.Driver, error) {
		return Open(ctx, cfg)
	})
}

// result is a fully consumed statement result.
type result struct {
	keys    []string
	records []*neo4j.Record
	summary neo4j.ResultSummary // nil when the runner does not report one
}

// session is one explicit transaction.
type session interface {
	run(ctx context.Context, cypher string, params map[string]any) (*result, error)
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// conn opens sessions. Tests substitute a scripted implementation.
type conn interface {
	begin(ctx context.Context, opts dialect.TxOptions) (session, error)
	verify(ctx context.Context) error
	close(ctx context.Context) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger of the driver.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is a Neo4j connection pool.
type Driver struct {
	conn   conn
	log    *slog.Logger
	schema *schemaManager
}

var _ dialect.Driver = (*Driver)(nil)

// Open connects to the server named by cfg and verifies connectivity.
func Open(ctx context.Context, cfg unigraph.Config, opts ...Option) (*Driver, error) {
	cfg = cfg.WithDefaults(DefaultPort)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme := cfg.Option("scheme", "neo4j")
	switch scheme {
	case "bolt", "neo4j", "bolt+s", "neo4j+s", "bolt+ssc", "neo4j+ssc":
	default:
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "neo4j: unknown scheme %q", scheme)
	}
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, cfg.Option("realm", ""))
	}
	uri := fmt.Sprintf("%s://%s", scheme, cfg.Addresses()[0])
	drv, err := neo4j.NewDriverWithContext(uri, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxConnections
		c.ConnectionAcquisitionTimeout = cfg.Timeout
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, unigraph.WrapError(unigraph.KindConnectionFailed, err)
	}
	d := newDriver(&bolt{driver: drv, database: cfg.Database, timeout: cfg.Timeout}, opts...)
	if err := d.Ping(ctx); err != nil {
		_ = drv.Close(ctx)
		return nil, err
	}
	return d, nil
}

func newDriver(c conn, opts ...Option) *Driver {
	d := &Driver{conn: c, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.schema = newSchemaManager(d)
	return d
}

// Dialect implements dialect.Driver.
func (d *Driver) Dialect() string { return dialect.Neo4j }

// BeginTx implements dialect.Driver.
func (d *Driver) BeginTx(ctx context.Context, opts dialect.TxOptions) (dialect.Tx, error) {
	return d.begin(ctx, opts)
}

func (d *Driver) begin(ctx context.Context, opts dialect.TxOptions) (*Tx, error) {
	s, err := d.conn.begin(ctx, opts)
	if err != nil {
		return nil, convert(err)
	}
	return &Tx{s: s}, nil
}

// Ping implements dialect.Driver.
func (d *Driver) Ping(ctx context.Context) error {
	return convert(d.conn.verify(ctx))
}

// Statistics implements dialect.Driver.
func (d *Driver) Statistics(ctx context.Context) (*unigraph.Statistics, error) {
	tx, err := d.begin(ctx, dialect.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()
	stats := &unigraph.Statistics{NativeTransactions: true}
	counts := []struct {
		cypher string
		set    func(int64)
	}{
		{"MATCH (n) WHERE NOT n" + labelPattern(schema.MetadataType) + " RETURN count(n)", func(n int64) { stats.VertexCount = unigraph.Ptr(uint64(n)) }},
		{"MATCH ()-[r]->() RETURN count(r)", func(n int64) { stats.EdgeCount = unigraph.Ptr(uint64(n)) }},
		{"CALL db.labels() YIELD label RETURN count(label)", func(n int64) { stats.LabelCount = unigraph.Ptr(uint32(n)) }},
		{"CALL db.propertyKeys() YIELD propertyKey RETURN count(propertyKey)", func(n int64) { stats.PropertyCount = unigraph.Ptr(uint64(n)) }},
	}
	for _, c := range counts {
		n, err := tx.count(ctx, c.cypher, nil)
		if err != nil {
			return nil, err
		}
		c.set(n)
	}
	return stats, nil
}

// Schema implements dialect.Driver.
func (d *Driver) Schema() schema.Manager { return d.schema }

// Close implements dialect.Driver.
func (d *Driver) Close(ctx context.Context) error {
	return convert(d.conn.close(ctx))
}

// bolt is the conn of a neo4j.DriverWithContext.
type bolt struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

func (b *bolt) begin(ctx context.Context, opts dialect.TxOptions) (session, error) {
	mode := neo4j.AccessModeWrite
	if opts.ReadOnly {
		mode = neo4j.AccessModeRead
	}
	s := b.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: b.database, AccessMode: mode})
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = b.timeout
	}
	tx, err := s.BeginTransaction(ctx, neo4j.WithTxTimeout(timeout))
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return &boltSession{s: s, tx: tx}, nil
}

func (b *bolt) verify(ctx context.Context) error { return b.driver.VerifyConnectivity(ctx) }

func (b *bolt) close(ctx context.Context) error { return b.driver.Close(ctx) }

type boltSession struct {
	s  neo4j.SessionWithContext
	tx neo4j.ExplicitTransaction
}

func (b *boltSession) run(ctx context.Context, cypher string, params map[string]any) (*result, error) {
	res, err := b.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, err
	}
	recs, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	sum, err := res.Consume(ctx)
	if err != nil {
		return nil, err
	}
	return &result{keys: keys, records: recs, summary: sum}, nil
}

func (b *boltSession) commit(ctx context.Context) error {
	defer b.s.Close(context.WithoutCancel(ctx))
	return b.tx.Commit(ctx)
}

func (b *boltSession) rollback(ctx context.Context) error {
	defer b.s.Close(context.WithoutCancel(ctx))
	return b.tx.Rollback(ctx)
}
