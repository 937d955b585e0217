// Package client is the entry point of unigraph: it opens a Graph over a
// registered adapter and runs every operation through a Tx that enforces the
// transaction state machine.
//
//	import (
//		"github.com/syssam/unigraph/client"
//		"github.com/syssam/unigraph/dialect"
//		_ "github.com/syssam/unigraph/dialect/neo4j"
//	)
//
//	g, err := client.Open(ctx, dialect.Neo4j, cfg)
//	if err != nil {
//		return err
//	}
//	defer g.Close(ctx)
//
//	tx, err := g.Tx(ctx)
//	...
//	ada, err := tx.CreateVertex(ctx, "person", unigraph.Props("name", "Ada"))
//	...
//	return tx.Commit(ctx)
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/privacy"
	"github.com/syssam/unigraph/schema"
)

// DefaultRollbackTimeout bounds rollbacks issued on behalf of a caller whose
// context already ended, and rollbacks issued by Close.
const DefaultRollbackTimeout = 10 * time.Second

// config holds the options shared by a Graph and its transactions.
type config struct {
	log             *slog.Logger
	observers       dialect.Observers
	cache           unigraph.Cache
	cacheTTL        time.Duration
	enforceSchema   bool
	rollbackTimeout time.Duration
	database        string
	policy          privacy.Rule
}

// Option configures a Graph.
type Option func(*config)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithObserver adds an observer notified after every operation.
func WithObserver(o dialect.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithCache caches schema label definitions. A zero ttl never expires
// entries; definitions written through the Graph invalidate them.
func WithCache(cache unigraph.Cache, ttl time.Duration) Option {
	return func(c *config) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// EnforceSchema validates vertex and edge writes against the label
// definitions stored in the schema manager. Types without a definition are
// not checked.
func EnforceSchema() Option {
	return func(c *config) { c.enforceSchema = true }
}

// WithPolicy authorizes every transaction and schema operation with rule,
// usually a privacy.Policy. Denied operations fail with
// authorization-failed.
func WithPolicy(rule privacy.Rule) Option {
	return func(c *config) { c.policy = rule }
}

// WithRollbackTimeout sets the timeout of rollbacks issued by the client
// itself.
func WithRollbackTimeout(d time.Duration) Option {
	return func(c *config) { c.rollbackTimeout = d }
}

// Graph is a handle on one backend. It is safe for concurrent use; each
// transaction is bound to one backend session.
type Graph struct {
	config
	drv    dialect.Driver
	schema *Schema

	mu     sync.Mutex
	txs    map[*Tx]struct{}
	closed bool
}

// Open opens a graph over the adapter registered under dialectName.
func Open(ctx context.Context, dialectName string, cfg unigraph.Config, opts ...Option) (*Graph, error) {
	drv, err := dialect.Open(ctx, dialectName, cfg)
	if err != nil {
		return nil, err
	}
	return New(drv, append([]Option{func(c *config) { c.database = cfg.Database }}, opts...)...), nil
}

// New returns a graph over an opened driver.
func New(drv dialect.Driver, opts ...Option) *Graph {
	c := config{log: slog.Default(), rollbackTimeout: DefaultRollbackTimeout}
	for _, opt := range opts {
		opt(&c)
	}
	g := &Graph{config: c, drv: drv, txs: make(map[*Tx]struct{})}
	g.schema = newSchema(g)
	return g
}

// Dialect returns the dialect name of the underlying driver.
func (g *Graph) Dialect() string { return g.drv.Dialect() }

// Driver returns the underlying driver.
func (g *Graph) Driver() dialect.Driver { return g.drv }

// Tx returns a new read-write transaction.
func (g *Graph) Tx(ctx context.Context) (*Tx, error) {
	return g.BeginTx(ctx, dialect.TxOptions{})
}

// ReadTx returns a new transaction hinted as read-only.
func (g *Graph) ReadTx(ctx context.Context) (*Tx, error) {
	return g.BeginTx(ctx, dialect.TxOptions{ReadOnly: true})
}

// BeginTx returns a new transaction with the given options.
func (g *Graph) BeginTx(ctx context.Context, opts dialect.TxOptions) (*Tx, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "graph is closed")
	}
	start := time.Now()
	dtx, err := g.drv.BeginTx(ctx, opts)
	g.observe(ctx, "begin", dialect.ClassTx, start, err)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	tx := &Tx{g: g, tx: dtx, readOnly: opts.ReadOnly}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		_ = dtx.Rollback(context.WithoutCancel(ctx))
		return nil, unigraph.Errorf(unigraph.KindConnectionFailed, "graph is closed")
	}
	g.txs[tx] = struct{}{}
	return tx, nil
}

// WithTx runs fn in a new transaction, committing when fn returns nil and
// rolling back when it fails or panics.
func (g *Graph) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := g.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback(ctx)
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil && !unigraph.IsTxNotActive(rerr) {
			return &unigraph.RollbackError{Err: rerr, Cause: err}
		}
		return err
	}
	return tx.Commit(ctx)
}

// Ping checks liveness without mutating state.
func (g *Graph) Ping(ctx context.Context) error {
	start := time.Now()
	err := g.drv.Ping(ctx)
	g.observe(ctx, "ping", dialect.ClassRead, start, err)
	return err
}

// Statistics returns best-effort counts. Counts the backend cannot report
// are nil.
func (g *Graph) Statistics(ctx context.Context) (*unigraph.Statistics, error) {
	start := time.Now()
	st, err := g.drv.Statistics(ctx)
	g.observe(ctx, "statistics", dialect.ClassRead, start, err)
	return st, err
}

// Schema returns the schema front of the graph.
func (g *Graph) Schema() *Schema { return g.schema }

var _ schema.Manager = (*Schema)(nil)

// Close rolls back every open transaction and releases the driver. It is
// safe to call more than once.
func (g *Graph) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	open := make([]*Tx, 0, len(g.txs))
	for tx := range g.txs {
		open = append(open, tx)
	}
	g.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
		eg   errgroup.Group
	)
	eg.SetLimit(8)
	for _, tx := range open {
		eg.Go(func() error {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.rollbackTimeout)
			defer cancel()
			if err := tx.Rollback(rctx); err != nil && !unigraph.IsTxNotActive(err) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	if len(open) > 0 {
		g.log.DebugContext(ctx, "unigraph: rolled back open transactions on close",
			"dialect", g.drv.Dialect(), "count", len(open), "failed", len(errs))
	}
	if err := g.drv.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return unigraph.NewAggregateError(errs...)
	}
	return nil
}

func (g *Graph) release(tx *Tx) {
	g.mu.Lock()
	delete(g.txs, tx)
	g.mu.Unlock()
}

// authorize evaluates the policy for op.
func (g *Graph) authorize(ctx context.Context, op string, class dialect.OpClass) error {
	if g.policy == nil {
		return nil
	}
	err := g.policy.Eval(ctx, privacy.Operation{Dialect: g.drv.Dialect(), Database: g.database, Name: op, Class: class})
	if err == nil || errors.Is(err, privacy.Skip) || errors.Is(err, privacy.Allow) {
		return nil
	}
	return &unigraph.Error{Kind: unigraph.KindAuthorizationFailed, Op: op, Msg: "denied by policy", Err: err}
}

func (g *Graph) observe(ctx context.Context, op string, class dialect.OpClass, start time.Time, err error) {
	if len(g.observers) == 0 {
		return
	}
	g.observers.Observe(ctx, dialect.OpInfo{
		Dialect:  g.drv.Dialect(),
		Op:       op,
		Class:    class,
		Duration: time.Since(start),
		Err:      err,
	})
}
