package arangodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	driver "github.com/arangodb/go-driver"
	"github.com/arangodb/go-driver/http"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// arango is the database of a go-driver client. Requests whose context has
// no deadline are bounded by timeout.
type arango struct {
	client  driver.Client
	db      driver.Database
	timeout time.Duration
}

var _ database = (*arango)(nil)

// connectionConfig returns the HTTP connection settings for cfg.
func connectionConfig(cfg unigraph.Config) (http.ConnectionConfig, error) {
	scheme := cfg.Option("scheme", "http")
	if scheme != "http" && scheme != "https" {
		return http.ConnectionConfig{}, unigraph.Errorf(unigraph.KindConnectionFailed, "arangodb: unknown scheme %q", scheme)
	}
	cc := http.ConnectionConfig{ConnLimit: cfg.MaxConnections}
	for _, addr := range cfg.Addresses() {
		cc.Endpoints = append(cc.Endpoints, scheme+"://"+addr)
	}
	return cc, nil
}

func connect(ctx context.Context, cfg unigraph.Config) (*arango, error) {
	hc, err := connectionConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := http.NewConnection(hc)
	if err != nil {
		return nil, unigraph.WrapError(unigraph.KindConnectionFailed, err)
	}
	cc := driver.ClientConfig{Connection: conn}
	if cfg.Username != "" {
		cc.Authentication = driver.BasicAuthentication(cfg.Username, cfg.Password)
	}
	client, err := driver.NewClient(cc)
	if err != nil {
		return nil, unigraph.WrapError(unigraph.KindConnectionFailed, err)
	}
	name := cfg.Database
	if name == "" {
		name = "_system"
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	db, err := client.Database(ctx, name)
	if err != nil {
		return nil, err
	}
	return &arango{client: client, db: db, timeout: cfg.Timeout}, nil
}

// within runs fn under the connection timeout unless ctx carries its own
// deadline. Expiry of the connection timeout is reported as a timeout error.
func within[T any](a *arango, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if _, ok := ctx.Deadline(); ok || a.timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	out, err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, &unigraph.Error{
			Kind: unigraph.KindTimeout,
			Msg:  fmt.Sprintf("arangodb: no response within %s", a.timeout),
			Err:  err,
		}
	}
	return out, err
}

func (a *arango) do(ctx context.Context, fn func(context.Context) error) error {
	_, err := within(a, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (a *arango) version(ctx context.Context) error {
	return a.do(ctx, func(ctx context.Context) error {
		_, err := a.client.Version(ctx)
		return err
	})
}

func (a *arango) collections(ctx context.Context) ([]collection, error) {
	return within(a, ctx, a.listCollections)
}

func (a *arango) listCollections(ctx context.Context) ([]collection, error) {
	cs, err := a.db.Collections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]collection, 0, len(cs))
	for _, c := range cs {
		if strings.HasPrefix(c.Name(), "_") {
			continue
		}
		props, err := c.Properties(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, collection{name: c.Name(), edge: props.Type == driver.CollectionTypeEdge})
	}
	return out, nil
}

func (a *arango) createCollection(ctx context.Context, name string, edge bool) error {
	opts := &driver.CreateCollectionOptions{Type: driver.CollectionTypeDocument}
	if edge {
		opts.Type = driver.CollectionTypeEdge
	}
	return a.do(ctx, func(ctx context.Context) error {
		_, err := a.db.CreateCollection(ctx, name, opts)
		return err
	})
}

func (a *arango) count(ctx context.Context, name string) (int64, error) {
	return within(a, ctx, func(ctx context.Context) (int64, error) {
		c, err := a.db.Collection(ctx, name)
		if err != nil {
			return 0, err
		}
		return c.Count(ctx)
	})
}

func (a *arango) begin(ctx context.Context, cols []string, opts dialect.TxOptions) (string, error) {
	tc := driver.TransactionCollections{Write: cols}
	if opts.ReadOnly {
		tc = driver.TransactionCollections{Read: cols}
	}
	return within(a, ctx, func(ctx context.Context) (string, error) {
		tid, err := a.db.BeginTransaction(ctx, tc, &driver.BeginTransactionOptions{
			AllowImplicit: true,
			LockTimeout:   opts.Timeout,
		})
		return string(tid), err
	})
}

func (a *arango) commit(ctx context.Context, tid string) error {
	return a.do(ctx, func(ctx context.Context) error {
		return a.db.CommitTransaction(ctx, driver.TransactionID(tid), nil)
	})
}

func (a *arango) abort(ctx context.Context, tid string) error {
	return a.do(ctx, func(ctx context.Context) error {
		return a.db.AbortTransaction(ctx, driver.TransactionID(tid), nil)
	})
}

func (a *arango) running(ctx context.Context, tid string) (bool, error) {
	return within(a, ctx, func(ctx context.Context) (bool, error) {
		st, err := a.db.TransactionStatus(ctx, driver.TransactionID(tid))
		if err != nil {
			return false, err
		}
		return st.Status == driver.TransactionRunning, nil
	})
}

func (a *arango) query(ctx context.Context, tid, aql string, vars map[string]any, profile bool) (*cursor, error) {
	return within(a, ctx, func(ctx context.Context) (*cursor, error) {
		return a.runQuery(ctx, tid, aql, vars, profile)
	})
}

func (a *arango) runQuery(ctx context.Context, tid, aql string, vars map[string]any, profile bool) (*cursor, error) {
	if tid != "" {
		ctx = driver.WithTransactionID(ctx, driver.TransactionID(tid))
	}
	if profile {
		ctx = driver.WithQueryProfile(ctx, 2)
	}
	c, err := a.db.Query(ctx, aql, vars)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	out := &cursor{}
	for {
		var doc json.RawMessage
		_, err := c.ReadDocument(ctx, &doc)
		if driver.IsNoMoreDocuments(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		out.docs = append(out.docs, doc)
	}
	stats := c.Statistics()
	out.writes = stats.WritesExecuted()
	out.elapsed = stats.ExecutionTime()
	if profile {
		if raw, ok, err := c.Extra().GetProfileRaw(); err == nil && ok {
			out.profile = raw
		}
	}
	return out, nil
}

// explain posts to the explain endpoint, which the client does not wrap.
func (a *arango) explain(ctx context.Context, aql string, vars map[string]any) (json.RawMessage, error) {
	return within(a, ctx, func(ctx context.Context) (json.RawMessage, error) {
		return a.postExplain(ctx, aql, vars)
	})
}

func (a *arango) postExplain(ctx context.Context, aql string, vars map[string]any) (json.RawMessage, error) {
	conn := a.client.Connection()
	req, err := conn.NewRequest("POST", path.Join("_db", a.db.Name(), "_api/explain"))
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = map[string]any{}
	}
	if _, err := req.SetBody(map[string]any{"query": aql, "bindVars": vars}); err != nil {
		return nil, err
	}
	resp, err := conn.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.CheckStatus(200); err != nil {
		return nil, err
	}
	var out struct {
		Plan json.RawMessage `json:"plan"`
	}
	if err := resp.ParseBody("", &out); err != nil {
		return nil, err
	}
	return out.Plan, nil
}

func (a *arango) ensureIndex(ctx context.Context, coll string, def schema.IndexDefinition) error {
	return a.do(ctx, func(ctx context.Context) error { return a.createIndex(ctx, coll, def) })
}

func (a *arango) createIndex(ctx context.Context, coll string, def schema.IndexDefinition) error {
	c, err := a.db.Collection(ctx, coll)
	if err != nil {
		return err
	}
	switch def.Type {
	case schema.IndexText:
		_, _, err = c.EnsureFullTextIndex(ctx, def.Properties, &driver.EnsureFullTextIndexOptions{Name: def.Name})
	case schema.IndexGeospatial:
		_, _, err = c.EnsureGeoIndex(ctx, def.Properties, &driver.EnsureGeoIndexOptions{Name: def.Name, GeoJSON: true})
	default:
		_, _, err = c.EnsurePersistentIndex(ctx, def.Properties, &driver.EnsurePersistentIndexOptions{Name: def.Name, Unique: def.Unique})
	}
	return err
}

func (a *arango) indexes(ctx context.Context, coll string) ([]schema.IndexInfo, error) {
	return within(a, ctx, func(ctx context.Context) ([]schema.IndexInfo, error) {
		return a.listIndexes(ctx, coll)
	})
}

func (a *arango) listIndexes(ctx context.Context, coll string) ([]schema.IndexInfo, error) {
	c, err := a.db.Collection(ctx, coll)
	if err != nil {
		return nil, err
	}
	ixs, err := c.Indexes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schema.IndexInfo, 0, len(ixs))
	for _, ix := range ixs {
		typ, ok := indexType(ix.Type())
		if !ok {
			continue
		}
		out = append(out, schema.IndexInfo{
			IndexDefinition: schema.IndexDefinition{
				Name:       ix.UserName(),
				Label:      coll,
				Properties: ix.Fields(),
				Type:       typ,
				Unique:     ix.Unique(),
				Container:  coll,
			},
			Status: schema.StatusActive,
		})
	}
	return out, nil
}

func (a *arango) dropIndex(ctx context.Context, coll, name string) (bool, error) {
	return within(a, ctx, func(ctx context.Context) (bool, error) {
		return a.removeIndex(ctx, coll, name)
	})
}

func (a *arango) removeIndex(ctx context.Context, coll, name string) (bool, error) {
	c, err := a.db.Collection(ctx, coll)
	if err != nil {
		return false, err
	}
	ixs, err := c.Indexes(ctx)
	if err != nil {
		return false, err
	}
	for _, ix := range ixs {
		if ix.UserName() == name {
			return true, ix.Remove(ctx)
		}
	}
	return false, nil
}

// indexType maps native index types. Primary and edge indexes are internal
// and skipped.
func indexType(t driver.IndexType) (schema.IndexType, bool) {
	switch t {
	case driver.PrimaryIndex, driver.EdgeIndex:
		return 0, false
	case driver.FullTextIndex, driver.InvertedIndex:
		return schema.IndexText, true
	case driver.GeoIndex:
		return schema.IndexGeospatial, true
	}
	return schema.IndexRange, true
}
