package dialect

import (
	"context"
	"errors"
	"time"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/schema"
)

// Dialect names.
const (
	Neo4j      = "neo4j"
	ArangoDB   = "arangodb"
	JanusGraph = "janusgraph"
	Memory     = "memory"
)

// TxOptions configures a transaction.
type TxOptions struct {
	// ReadOnly is a hint; adapters may route or lock differently but must
	// not depend on it for correctness.
	ReadOnly bool
	// Timeout bounds the lifetime of the transaction on backends that
	// support it. Zero uses the connection timeout.
	Timeout time.Duration
}

// Driver is a connection to one backend.
type Driver interface {
	// Dialect returns the dialect name of the driver.
	Dialect() string
	// BeginTx opens a transaction bound to one backend session.
	BeginTx(ctx context.Context, opts TxOptions) (Tx, error)
	// Ping checks liveness without mutating state.
	Ping(ctx context.Context) error
	// Statistics returns best-effort graph counts.
	Statistics(ctx context.Context) (*unigraph.Statistics, error)
	// Schema returns the schema manager of the backend.
	Schema() schema.Manager
	// Close releases the connection. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Tx is one backend transaction. Implementations may assume that calls are
// issued sequentially; the client serializes them.
type Tx interface {
	CreateVertex(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error)
	// GetVertex returns nil, nil when the identifier does not resolve.
	GetVertex(ctx context.Context, id unigraph.ElementID) (*unigraph.Vertex, error)
	UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error)
	UpdateVertexProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error)
	DeleteVertex(ctx context.Context, id unigraph.ElementID, deleteEdges bool) error
	FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error)

	CreateEdge(ctx context.Context, typ string, from, to unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error)
	// GetEdge returns nil, nil when the identifier does not resolve.
	GetEdge(ctx context.Context, id unigraph.ElementID) (*unigraph.Edge, error)
	UpdateEdge(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error)
	UpdateEdgeProperties(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Edge, error)
	DeleteEdge(ctx context.Context, id unigraph.ElementID) error
	FindEdges(ctx context.Context, opts unigraph.FindEdgesOptions) ([]unigraph.Edge, error)

	AdjacentVertices(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Vertex, error)
	ConnectedEdges(ctx context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error)

	CreateVertices(ctx context.Context, specs []unigraph.VertexSpec) ([]unigraph.Vertex, error)
	CreateEdges(ctx context.Context, specs []unigraph.EdgeSpec) ([]unigraph.Edge, error)
	UpsertVertex(ctx context.Context, opts unigraph.UpsertVertexOptions) (*unigraph.Vertex, error)
	UpsertEdge(ctx context.Context, opts unigraph.UpsertEdgeOptions) (*unigraph.Edge, error)

	ExecuteQuery(ctx context.Context, query string, params unigraph.PropertyMap, opts unigraph.QueryOptions) (*unigraph.QueryExecutionResult, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ErrNotNative is returned by native traversal implementations that cannot
// express the requested constraints. The caller then falls back to
// composition over primitive lookups.
var ErrNotNative = errors.New("dialect: traversal not expressible natively")

// ShortestPather is implemented by transactions with a native shortest-path
// algorithm. It returns nil, nil when no path exists.
type ShortestPather interface {
	ShortestPath(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (*unigraph.Path, error)
}

// AllPather is implemented by transactions with native path enumeration.
// ShortestFirst reports whether results are ordered by length.
type AllPather interface {
	AllPaths(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions, limit int) ([]unigraph.Path, error)
	ShortestFirst() bool
}

// PathExister is implemented by transactions that can test reachability
// without materializing a path.
type PathExister interface {
	PathExists(ctx context.Context, from, to unigraph.ElementID, opts unigraph.PathOptions) (bool, error)
}

// Liveness is implemented by transactions that can ask the backend whether
// the transaction is still open.
type Liveness interface {
	Alive(ctx context.Context) bool
}

// IsNotNative reports whether err asks for a composed fallback.
func IsNotNative(err error) bool {
	return errors.Is(err, ErrNotNative)
}
