package unigraph

import "time"

// FindVerticesOptions selects vertices. Filters are combined with implicit
// conjunction; offset and limit apply after filtering and sorting.
type FindVerticesOptions struct {
	Type    string // Empty selects every type.
	Filters []FilterCondition
	Sort    []SortSpec
	Limit   int // Zero means no limit.
	Offset  int
}

// FindEdgesOptions selects edges of any of Types, or of every type when empty.
type FindEdgesOptions struct {
	Types   []string
	Filters []FilterCondition
	Sort    []SortSpec
	Limit   int
	Offset  int
}

// AdjacencyOptions selects the neighbourhood of one vertex.
type AdjacencyOptions struct {
	Direction Direction
	EdgeTypes []string // Empty selects every type.
	Limit     int
}

// VertexSpec describes a vertex to create.
type VertexSpec struct {
	Type       string
	Labels     []string
	Properties PropertyMap
}

// EdgeSpec describes an edge to create.
type EdgeSpec struct {
	Type       string
	From       ElementID
	To         ElementID
	Properties PropertyMap
}

// UpsertVertexOptions describes an upsert. When ID is set and resolves, the
// vertex is updated (full replace). Otherwise, when MatchOn names properties,
// the first vertex of Type whose values for those names equal the ones in
// Properties is updated. Otherwise a vertex is created.
type UpsertVertexOptions struct {
	ID         *ElementID
	Type       string
	Properties PropertyMap
	MatchOn    []string
}

// UpsertEdgeOptions describes an edge upsert. Without a resolving ID, the
// natural key is Type, From, To and the properties named by MatchOn.
type UpsertEdgeOptions struct {
	ID         *ElementID
	Type       string
	From       ElementID
	To         ElementID
	Properties PropertyMap
	MatchOn    []string
}

// PathOptions constrains path searches.
type PathOptions struct {
	MaxDepth      int      // Zero means unbounded.
	EdgeTypes     []string // Empty selects every type.
	VertexTypes   []string // Intermediate and end vertices must be of one of these types.
	VertexFilters []FilterCondition
	EdgeFilters   []FilterCondition
	Direction     Direction // Outgoing unless set.
}

// HasElementFilters reports whether vertex types or property filters are set.
func (o PathOptions) HasElementFilters() bool {
	return len(o.VertexTypes) > 0 || len(o.VertexFilters) > 0 || len(o.EdgeFilters) > 0
}

// NeighborhoodOptions constrains a neighbourhood expansion.
type NeighborhoodOptions struct {
	Depth       int
	Direction   Direction
	EdgeTypes   []string
	MaxVertices int // Zero means no limit.
}

// QueryOptions tunes a native query.
type QueryOptions struct {
	Timeout    time.Duration
	MaxResults int
	Explain    bool // Return the plan without executing the query.
	Profile    bool // Execute and return runtime metrics.
}

// ResultKind selects the active variant of a QueryResult.
type ResultKind uint8

// Result kinds.
const (
	ResultValues ResultKind = iota
	ResultVertices
	ResultEdges
	ResultPaths
	ResultRows
)

func (k ResultKind) String() string {
	switch k {
	case ResultVertices:
		return "vertices"
	case ResultEdges:
		return "edges"
	case ResultPaths:
		return "paths"
	case ResultRows:
		return "rows"
	}
	return "values"
}

// Row is one tabular result row, ordered by column.
type Row = PropertyMap

// QueryResult is the reshaped result of a native query. Only the slice
// matching Kind is populated.
type QueryResult struct {
	Kind     ResultKind
	Vertices []Vertex
	Edges    []Edge
	Paths    []Path
	Values   []Value
	Rows     []Row
}

// Len returns the number of results.
func (r *QueryResult) Len() int {
	switch r.Kind {
	case ResultVertices:
		return len(r.Vertices)
	case ResultEdges:
		return len(r.Edges)
	case ResultPaths:
		return len(r.Paths)
	case ResultRows:
		return len(r.Rows)
	}
	return len(r.Values)
}

// QueryExecutionResult is a query result with optional execution metadata.
// Fields the backend does not report are nil.
type QueryExecutionResult struct {
	Result        QueryResult
	ExecutionTime *time.Duration
	RowsAffected  *int64
	Explanation   *string
	Profile       *string
}

// Statistics is a best-effort summary of a graph. Counts the backend cannot
// report are nil, never estimated.
type Statistics struct {
	VertexCount   *uint64
	EdgeCount     *uint64
	LabelCount    *uint32
	PropertyCount *uint64

	// NativeTransactions is false when transactions are emulated and
	// isolation between concurrent transactions is weaker than the backend's.
	NativeTransactions bool
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
