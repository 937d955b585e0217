// Package dialect defines the contract between the unigraph client and the
// backend adapters.
//
// # Adapters
//
// Every backend is a package under dialect that registers itself from init:
//
//	func init() {
//		dialect.Register(dialect.Neo4j, Open)
//	}
//
// Which adapters are available is decided by what the binary imports:
//
//	import _ "github.com/syssam/unigraph/dialect/neo4j"
//
// A Driver produces Tx values. A Tx translates each unified operation into
// backend requests and each response back into unigraph types. Errors leave
// a Tx carrying exactly one unigraph.ErrorKind.
//
// # Traversal
//
// Transactions may implement ShortestPather, AllPather and PathExister when
// the backend has a native algorithm. Returning ErrNotNative, or not
// implementing the interface, makes the client compose the traversal from
// adjacency lookups (see package graphwalk).
//
// # Observers
//
// Observers receive an OpInfo after every operation issued through the
// client:
//
//	stats := dialect.NewStatsObserver(dialect.WithSlowThreshold(50 * time.Millisecond))
//	metrics, _ := dialect.NewMetrics(prometheus.DefaultRegisterer)
//	g, err := client.Open(ctx, dialect.Neo4j, cfg,
//		client.WithObserver(stats),
//		client.WithObserver(metrics),
//		client.WithObserver(dialect.NewDebugObserver(logger)),
//	)
package dialect
