// Package arangodb implements a dialect.Driver for ArangoDB over HTTP.
//
// Vertex types are document collections and edge types are edge
// collections; writing a type whose collection does not exist fails with
// schema-violation. Element identifiers are document handles such as
// "person/123" (unigraph.StringID). Secondary labels are not supported.
// Transactions are stream transactions declaring every collection that
// exists when they begin.
//
// Provider options:
//
//	scheme  http or https (default http)
package arangodb

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// DefaultPort is the HTTP port of arangod.
const DefaultPort = 8529

func init() {
	dialect.Register(dialect.ArangoDB, func(ctx context.Context, cfg unigraph.Config) (dialect.Driver, error) {
		return Open(ctx, cfg)
	})
}

// collection is a non-system collection.
type collection struct {
	name string
	edge bool
}

// cursor is a fully read AQL result.
type cursor struct {
	docs    []json.RawMessage
	writes  int64
	elapsed time.Duration
	profile json.RawMessage // set when profiling was requested
}

// database is the part of an ArangoDB database the adapter uses. Tests
// substitute a scripted implementation.
type database interface {
	version(ctx context.Context) error
	collections(ctx context.Context) ([]collection, error)
	createCollection(ctx context.Context, name string, edge bool) error
	count(ctx context.Context, name string) (int64, error)

	begin(ctx context.Context, cols []string, opts dialect.TxOptions) (string, error)
	commit(ctx context.Context, tid string) error
	abort(ctx context.Context, tid string) error
	running(ctx context.Context, tid string) (bool, error)
	query(ctx context.Context, tid, aql string, vars map[string]any, profile bool) (*cursor, error)
	explain(ctx context.Context, aql string, vars map[string]any) (json.RawMessage, error)

	ensureIndex(ctx context.Context, coll string, def schema.IndexDefinition) error
	indexes(ctx context.Context, coll string) ([]schema.IndexInfo, error)
	dropIndex(ctx context.Context, coll, name string) (bool, error)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger of the driver.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is a connection to one ArangoDB database.
type Driver struct {
	db     database
	log    *slog.Logger
	schema *schemaManager
}

var _ dialect.Driver = (*Driver)(nil)

// Open connects to the database named by cfg (default _system), verifies
// connectivity and creates the metadata collection when missing.
func Open(ctx context.Context, cfg unigraph.Config, opts ...Option) (*Driver, error) {
	cfg = cfg.WithDefaults(DefaultPort)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, convert(err)
	}
	d := newDriver(db, opts...)
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	if err := d.ensureCollection(ctx, schema.MetadataType, false); err != nil {
		return nil, err
	}
	return d, nil
}

func newDriver(db database, opts ...Option) *Driver {
	d := &Driver{db: db, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.schema = newSchemaManager(d)
	return d
}

// Dialect implements dialect.Driver.
func (d *Driver) Dialect() string { return dialect.ArangoDB }

// BeginTx implements dialect.Driver.
func (d *Driver) BeginTx(ctx context.Context, opts dialect.TxOptions) (dialect.Tx, error) {
	return d.begin(ctx, opts)
}

func (d *Driver) begin(ctx context.Context, opts dialect.TxOptions) (*Tx, error) {
	cols, err := d.refresh(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	tid, err := d.db.begin(ctx, names, opts)
	if err != nil {
		return nil, convert(err)
	}
	return &Tx{db: d.db, tid: tid, cols: cols}, nil
}

// refresh lists the collections, mapping names to the edge flag.
func (d *Driver) refresh(ctx context.Context) (map[string]bool, error) {
	list, err := d.db.collections(ctx)
	if err != nil {
		return nil, convert(err)
	}
	cols := make(map[string]bool, len(list))
	for _, c := range list {
		cols[c.name] = c.edge
	}
	return cols, nil
}

// ensureCollection creates the collection unless it exists with the same
// kind. An existing collection of the other kind is a schema violation.
func (d *Driver) ensureCollection(ctx context.Context, name string, edge bool) error {
	cols, err := d.refresh(ctx)
	if err != nil {
		return err
	}
	if e, ok := cols[name]; ok {
		if e != edge {
			return unigraph.Errorf(unigraph.KindSchemaViolation, "arangodb: collection %q exists with another kind", name)
		}
		return nil
	}
	if err := d.db.createCollection(ctx, name, edge); err != nil {
		return convert(err)
	}
	d.log.Debug("arangodb: created collection", "name", name, "edge", edge)
	return nil
}

// Ping implements dialect.Driver.
func (d *Driver) Ping(ctx context.Context) error {
	return convert(d.db.version(ctx))
}

// Statistics implements dialect.Driver. Counts come from collection
// counters; the property count is not reported.
func (d *Driver) Statistics(ctx context.Context) (*unigraph.Statistics, error) {
	cols, err := d.refresh(ctx)
	if err != nil {
		return nil, err
	}
	var vertices, edges uint64
	var labels uint32
	for name, edge := range cols {
		if name == schema.MetadataType {
			continue
		}
		n, err := d.db.count(ctx, name)
		if err != nil {
			return nil, convert(err)
		}
		if edge {
			edges += uint64(n)
		} else {
			vertices += uint64(n)
		}
		labels++
	}
	return &unigraph.Statistics{
		VertexCount:        &vertices,
		EdgeCount:          &edges,
		LabelCount:         &labels,
		NativeTransactions: true,
	}, nil
}

// Schema implements dialect.Driver.
func (d *Driver) Schema() schema.Manager { return d.schema }

// Close implements dialect.Driver. HTTP connections need no teardown.
func (d *Driver) Close(context.Context) error { return nil }

// splitID splits a document handle into collection and key.
func splitID(id unigraph.ElementID) (coll, key string, ok bool) {
	s, ok := id.AsString()
	if !ok {
		return "", "", false
	}
	coll, key, ok = strings.Cut(s, "/")
	if !ok || coll == "" || key == "" {
		return "", "", false
	}
	return coll, key, true
}

// handle returns the document handle of id.
func handle(id unigraph.ElementID) string {
	s, _ := id.AsString()
	return s
}
