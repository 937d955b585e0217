package neo4j

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

type call struct {
	cypher string
	params map[string]any
}

// fakeConn answers statements with a handler and records them.
type fakeConn struct {
	mu        sync.Mutex
	handle    func(cypher string, params map[string]any) (*result, error)
	calls     []call
	commits   int
	rollbacks int
}

func (c *fakeConn) begin(context.Context, dialect.TxOptions) (session, error) {
	return &fakeSession{c: c}, nil
}

func (c *fakeConn) verify(context.Context) error { return nil }

func (c *fakeConn) close(context.Context) error { return nil }

func (c *fakeConn) last() call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

type fakeSession struct{ c *fakeConn }

func (s *fakeSession) run(_ context.Context, cypher string, params map[string]any) (*result, error) {
	s.c.mu.Lock()
	s.c.calls = append(s.c.calls, call{cypher, params})
	s.c.mu.Unlock()
	if s.c.handle == nil {
		return &result{}, nil
	}
	return s.c.handle(cypher, params)
}

func (s *fakeSession) commit(context.Context) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.commits++
	return nil
}

func (s *fakeSession) rollback(context.Context) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.rollbacks++
	return nil
}

func rows(key string, values ...any) *result {
	res := &result{keys: []string{key}}
	for _, v := range values {
		res.records = append(res.records, &neo4j.Record{Keys: []string{key}, Values: []any{v}})
	}
	return res
}

func node(id, typ string, labels []string, props map[string]any) dbtype.Node {
	p := map[string]any{typeKey: typ}
	for k, v := range props {
		p[k] = v
	}
	return dbtype.Node{ElementId: id, Labels: labels, Props: p}
}

func newTestTx(t *testing.T, c *fakeConn) *Tx {
	t.Helper()
	tx, err := newDriver(c).begin(context.Background(), dialect.TxOptions{})
	require.NoError(t, err)
	return tx
}

func TestKindOfCode(t *testing.T) {
	tests := []struct {
		code string
		want unigraph.ErrorKind
	}{
		{"Neo.ClientError.Security.Unauthorized", unigraph.KindAuthenticationFailed},
		{"Neo.ClientError.Security.Forbidden", unigraph.KindAuthorizationFailed},
		{"Neo.ClientError.Schema.ConstraintValidationFailed", unigraph.KindConstraintViolation},
		{"Neo.ClientError.Statement.SyntaxError", unigraph.KindInvalidQuery},
		{"Neo.ClientError.Statement.ParameterMissing", unigraph.KindInvalidQuery},
		{"Neo.ClientError.Statement.TypeError", unigraph.KindInvalidPropertyType},
		{"Neo.TransientError.Transaction.DeadlockDetected", unigraph.KindDeadlockDetected},
		{"Neo.TransientError.Transaction.Outdated", unigraph.KindTransactionConflict},
		{"Neo.ClientError.Transaction.TransactionTimedOut", unigraph.KindTransactionTimeout},
		{"Neo.ClientError.Transaction.TransactionNotFound", unigraph.KindTransactionFailed},
		{"Neo.TransientError.General.DatabaseUnavailable", unigraph.KindServiceUnavailable},
		{"Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists", unigraph.KindDuplicateElement},
		{"Neo.DatabaseError.General.UnknownError", unigraph.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, kindOfCode(tt.code))
		})
	}
}

func TestConvert(t *testing.T) {
	assert.NoError(t, convert(nil))
	err := convert(&neo4j.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed", Msg: "already exists"})
	assert.True(t, unigraph.IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "already exists")

	assert.ErrorIs(t, convert(context.DeadlineExceeded), context.DeadlineExceeded)
	assert.Equal(t, unigraph.KindInternal, unigraph.KindOf(convert(errors.New("boom"))))
	nf := unigraph.NotFound(unigraph.StringID("x"))
	assert.Same(t, error(nf), convert(nf))
}

func TestParam(t *testing.T) {
	_, err := param(unigraph.Uint64(1 << 63))
	assert.True(t, unigraph.IsKind(err, unigraph.KindInvalidPropertyType))

	x, err := param(unigraph.Int16(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), x)

	p, _ := unigraph.PointValue(unigraph.Point{Longitude: 4.9, Latitude: 52.4})
	x, err = param(p)
	require.NoError(t, err)
	assert.Equal(t, dbtype.Point2D{X: 4.9, Y: 52.4, SpatialRefId: sridWGS84}, x)
	assert.True(t, value(x).Equal(p))

	d := value(dbtype.Duration{Days: 1, Seconds: 5, Nanos: 10})
	dur, ok := d.AsDuration()
	require.True(t, ok)
	assert.Equal(t, unigraph.Duration{Seconds: 86405, Nanoseconds: 10}, dur)

	assert.Equal(t, unigraph.String(`[1,"a"]`), value([]any{int64(1), "a"}))
}

func TestVertexOf(t *testing.T) {
	v := vertexOf(node("4:x:1", "person", []string{"employee", "person"}, map[string]any{"name": "Ada"}))
	assert.Equal(t, unigraph.StringID("4:x:1"), v.ID)
	assert.Equal(t, "person", v.Type)
	assert.Equal(t, []string{"employee"}, v.Labels)
	assert.True(t, v.Properties.Equal(unigraph.Props("name", "Ada")))

	t.Run("NoTypeProperty", func(t *testing.T) {
		v := vertexOf(dbtype.Node{ElementId: "1", Labels: []string{"city", "capital"}})
		assert.Equal(t, "city", v.Type)
		assert.Equal(t, []string{"capital"}, v.Labels)
	})
}

func TestFindVerticesStatement(t *testing.T) {
	c := &fakeConn{}
	tx := newTestTx(t, c)
	_, err := tx.FindVertices(context.Background(), unigraph.FindVerticesOptions{
		Type: "person",
		Filters: []unigraph.FilterCondition{
			unigraph.Field("age").GTE(unigraph.Int64(18)),
			unigraph.Field("nick").NEQ(unigraph.String("x")),
		},
		Sort:   []unigraph.SortSpec{unigraph.Field("age").Desc()},
		Offset: 5,
		Limit:  10,
	})
	require.NoError(t, err)
	got := c.last()
	assert.Equal(t,
		"MATCH (n:`person`) WHERE n.`__type` = $p0 AND n.`age` >= $p1 AND (n.`nick` IS NULL OR n.`nick` <> $p2) RETURN n ORDER BY n.`age` DESC SKIP $p3 LIMIT $p4",
		got.cypher)
	assert.Equal(t, map[string]any{"p0": "person", "p1": int64(18), "p2": "x", "p3": int64(5), "p4": int64(10)}, got.params)

	_, err = tx.FindVertices(context.Background(), unigraph.FindVerticesOptions{})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n) WHERE NOT n:`unigraph_schema` RETURN n", c.last().cypher)

	_, err = tx.FindVertices(context.Background(), unigraph.FindVerticesOptions{
		Filters: []unigraph.FilterCondition{unigraph.Field("a").Regex("(")},
	})
	assert.True(t, unigraph.IsKind(err, unigraph.KindInvalidQuery))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "`we``ird`", quote("we`ird"))
	assert.Equal(t, ":`a`|`b`", typeAlternation([]string{"a", "b"}))
	assert.Equal(t, "", typeAlternation(nil))
}

func TestCreateVertex(t *testing.T) {
	c := &fakeConn{handle: func(cypher string, params map[string]any) (*result, error) {
		props := params["props"].(map[string]any)
		return rows("n", dbtype.Node{ElementId: "4:x:7", Labels: []string{"person", "admin"}, Props: props}), nil
	}}
	tx := newTestTx(t, c)
	v, err := tx.CreateVertex(context.Background(), "person", []string{"admin"}, unigraph.Props("name", "Ada", "name", "Grace"))
	require.NoError(t, err)
	assert.Equal(t, "CREATE (n:`person`:`admin`) SET n = $props RETURN n", c.last().cypher)
	assert.Equal(t, "person", v.Type)
	assert.Equal(t, []string{"admin"}, v.Labels)
	assert.True(t, v.Properties.Equal(unigraph.Props("name", "Grace")), "later entries win")

	_, err = tx.CreateVertex(context.Background(), "person", []string{""}, nil)
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))
}

func TestUpdateVertexKeepsType(t *testing.T) {
	c := &fakeConn{}
	tx := newTestTx(t, c)
	_, err := tx.UpdateVertex(context.Background(), unigraph.StringID("1"), unigraph.Props(typeKey, "other", "a", int64(1)))
	assert.True(t, unigraph.IsNotFound(err))
	got := c.last()
	assert.Contains(t, got.cypher, "SET n = $props SET n.`__type` = t")
	assert.NotContains(t, got.params["props"], typeKey)

	_, err = tx.UpdateVertex(context.Background(), unigraph.Int64ID(1), nil)
	assert.True(t, unigraph.IsNotFound(err), "integer ids never name a neo4j element")
}

func TestDeleteVertex(t *testing.T) {
	degree := map[string]any{"1": int64(0), "2": int64(3)}
	c := &fakeConn{handle: func(cypher string, params map[string]any) (*result, error) {
		if strings.Contains(cypher, "count(r)") {
			d, ok := degree[params["id"].(string)]
			if !ok {
				return &result{keys: []string{"count(r)"}}, nil
			}
			return rows("count(r)", d), nil
		}
		return &result{}, nil
	}}
	tx := newTestTx(t, c)
	ctx := context.Background()

	require.NoError(t, tx.DeleteVertex(ctx, unigraph.StringID("1"), false))
	assert.Contains(t, c.last().cypher, "DETACH DELETE n")

	err := tx.DeleteVertex(ctx, unigraph.StringID("2"), false)
	assert.True(t, unigraph.IsConstraintViolation(err))
	require.NoError(t, tx.DeleteVertex(ctx, unigraph.StringID("2"), true))

	assert.True(t, unigraph.IsNotFound(tx.DeleteVertex(ctx, unigraph.StringID("3"), true)))
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	c := &fakeConn{handle: func(cypher string, params map[string]any) (*result, error) {
		if strings.HasPrefix(cypher, matchVertex) {
			n := int64(0)
			if params["id"] == "a" {
				n = 1
			}
			return rows("count(n)", n), nil
		}
		return &result{keys: []string{"r"}}, nil
	}}
	tx := newTestTx(t, c)
	ctx := context.Background()

	_, err := tx.CreateEdge(ctx, "knows", unigraph.StringID("a"), unigraph.StringID("b"), nil)
	var ue *unigraph.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, unigraph.KindElementNotFound, ue.Kind)
	assert.Equal(t, unigraph.StringID("b"), *ue.ID)

	_, err = tx.CreateEdge(ctx, "knows", unigraph.StringID("z"), unigraph.StringID("a"), nil)
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, unigraph.StringID("z"), *ue.ID)
}

func TestAdjacencyStatements(t *testing.T) {
	rel := dbtype.Relationship{ElementId: "r1", StartElementId: "a", EndElementId: "a", Type: "self"}
	c := &fakeConn{handle: func(string, map[string]any) (*result, error) {
		return rows("r", rel), nil
	}}
	tx := newTestTx(t, c)
	es, err := tx.ConnectedEdges(context.Background(), unigraph.StringID("a"), unigraph.AdjacencyOptions{
		Direction: unigraph.Both,
		EdgeTypes: []string{"self"},
	})
	require.NoError(t, err)
	assert.Len(t, es, 1, "a self loop is listed once")
	require.Len(t, c.calls, 2)
	assert.Equal(t, "MATCH (a)-[r:`self`]->(b) WHERE elementId(a) = $id RETURN r", c.calls[0].cypher)
	assert.Equal(t, "MATCH (a)<-[r:`self`]-(b) WHERE elementId(a) = $id RETURN r", c.calls[1].cypher)
}

func TestExecuteQueryReshape(t *testing.T) {
	tests := []struct {
		name string
		res  *result
		max  int
		kind unigraph.ResultKind
		n    int
	}{
		{name: "Vertices", res: rows("n", node("1", "a", nil, nil), node("2", "a", nil, nil)), kind: unigraph.ResultVertices, n: 2},
		{name: "Truncated", res: rows("n", node("1", "a", nil, nil), node("2", "a", nil, nil)), max: 1, kind: unigraph.ResultVertices, n: 1},
		{name: "Edges", res: rows("r", dbtype.Relationship{ElementId: "r"}), kind: unigraph.ResultEdges, n: 1},
		{name: "Paths", res: rows("p", dbtype.Path{Nodes: []dbtype.Node{node("1", "a", nil, nil)}}), kind: unigraph.ResultPaths, n: 1},
		{name: "Mixed", res: rows("x", node("1", "a", nil, nil), int64(2)), kind: unigraph.ResultValues, n: 2},
		{name: "Empty", res: &result{keys: []string{"x"}}, kind: unigraph.ResultValues, n: 0},
		{name: "Rows", res: &result{keys: []string{"a", "b"}, records: []*neo4j.Record{
			{Keys: []string{"a", "b"}, Values: []any{int64(1), "x"}},
		}}, kind: unigraph.ResultRows, n: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTestTx(t, &fakeConn{handle: func(string, map[string]any) (*result, error) { return tt.res, nil }})
			out, err := tx.ExecuteQuery(context.Background(), "RETURN 1", nil, unigraph.QueryOptions{MaxResults: tt.max})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, out.Result.Kind)
			assert.Equal(t, tt.n, out.Result.Len())
			assert.NotNil(t, out.ExecutionTime)
		})
	}

	t.Run("Explain", func(t *testing.T) {
		c := &fakeConn{}
		tx := newTestTx(t, c)
		_, err := tx.ExecuteQuery(context.Background(), "MATCH (n) RETURN n", unigraph.Props("x", int64(1)), unigraph.QueryOptions{Explain: true})
		require.NoError(t, err)
		assert.Equal(t, "EXPLAIN MATCH (n) RETURN n", c.last().cypher)
		assert.Equal(t, map[string]any{"x": int64(1)}, c.last().params)
	})
}

func TestNativeTraversal(t *testing.T) {
	c := &fakeConn{}
	tx := newTestTx(t, c)
	ctx := context.Background()
	a, b := unigraph.StringID("a"), unigraph.StringID("b")

	_, err := tx.ShortestPath(ctx, a, b, unigraph.PathOptions{VertexTypes: []string{"x"}})
	assert.True(t, dialect.IsNotNative(err))
	_, err = tx.PathExists(ctx, a, a, unigraph.PathOptions{})
	assert.True(t, dialect.IsNotNative(err))
	_, err = tx.AllPaths(ctx, a, b, unigraph.PathOptions{}, 0)
	assert.True(t, dialect.IsNotNative(err))

	p, err := tx.ShortestPath(ctx, a, b, unigraph.PathOptions{MaxDepth: 3, EdgeTypes: []string{"next"}, Direction: unigraph.Both})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, matchEnds+"MATCH p = shortestPath((a)-[:`next`*1..3]-(b)) RETURN p", c.last().cypher)

	_, err = tx.AllPaths(ctx, a, b, unigraph.PathOptions{MaxDepth: 2}, 5)
	require.NoError(t, err)
	assert.Contains(t, c.last().cypher, "(a)-[*1..2]->(b)")
	assert.Equal(t, int64(5), c.last().params["limit"])

	ok, err := tx.PathExists(ctx, unigraph.Int64ID(1), b, unigraph.PathOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTxState(t *testing.T) {
	c := &fakeConn{}
	tx := newTestTx(t, c)
	ctx := context.Background()
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 1, c.commits)
	assert.ErrorIs(t, tx.Rollback(ctx), unigraph.ErrTxNotActive)
	_, err := tx.GetVertex(ctx, unigraph.StringID("1"))
	assert.ErrorIs(t, err, unigraph.ErrTxNotActive)
}

func TestListIndexes(t *testing.T) {
	c := &fakeConn{handle: func(cypher string, _ map[string]any) (*result, error) {
		if !strings.HasSuffix(cypher, "ORDER BY name") {
			return &result{}, nil
		}
		keys := []string{"name", "type", "labelsOrTypes", "properties", "state", "owningConstraint"}
		return &result{keys: keys, records: []*neo4j.Record{
			{Keys: keys, Values: []any{"person_email", "RANGE", []any{"person"}, []any{"email"}, "ONLINE", "person_email"}},
			{Keys: keys, Values: []any{"place_loc", "POINT", []any{"place"}, []any{"loc"}, "POPULATING", nil}},
		}}, nil
	}}
	m := newDriver(c).Schema()
	infos, err := m.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, infos[0].Unique)
	assert.Equal(t, schema.StatusActive, infos[0].Status)
	assert.Equal(t, "person", infos[0].Label)
	assert.Equal(t, schema.IndexGeospatial, infos[1].Type)
	assert.Equal(t, schema.StatusPending, infos[1].Status)

	info, err := m.GetIndex(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.True(t, unigraph.IsNotFound(m.DropIndex(context.Background(), "nope")))
}

func TestCreateIndexStatement(t *testing.T) {
	c := &fakeConn{}
	m := newDriver(c).Schema()
	ctx := context.Background()
	require.NoError(t, m.CreateIndex(ctx, schema.Index("person_email").On("person").Fields("email").Unique().Definition()))
	assert.Equal(t, "CREATE CONSTRAINT `person_email` FOR (e:`person`) REQUIRE (e.`email`) IS UNIQUE", c.last().cypher)
	require.NoError(t, m.CreateIndex(ctx, schema.Index("bio").On("person").Fields("bio").Type(schema.IndexText).Definition()))
	assert.Equal(t, "CREATE TEXT INDEX `bio` FOR (e:`person`) ON (e.`bio`)", c.last().cypher)
}
