package gremlin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// req is a request as the fake server sees it.
type req struct {
	op        string
	processor string
	gremlin   string
	session   string
	bindings  map[string]any
	args      map[string]any
}

type reply struct {
	code       int
	message    string
	exceptions []string
	data       []any
}

func ok(data ...any) []reply { return []reply{{code: statusSuccess, data: data}} }

// fakeServer speaks the Gremlin Server WebSocket protocol and answers eval
// requests with a handler.
type fakeServer struct {
	mu       sync.Mutex
	reqs     []req
	handle   func(r req) []reply
	username string
	password string
	sasl     string
	srv      *httptest.Server
}

func newFakeServer(t *testing.T, handle func(r req) []reply) *fakeServer {
	t.Helper()
	f := &fakeServer{handle: handle}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) addr() string { return f.srv.Listener.Addr().String() }

func (f *fakeServer) requests() []req {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]req(nil), f.reqs...)
}

// last returns the last eval request.
func (f *fakeServer) last() req {
	rs := f.requests()
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].op == "eval" {
			return rs[i]
		}
	}
	return req{}
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	authed := f.username == ""
	var held *req
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		n := int(msg[0])
		if !strings.HasPrefix(string(msg[1:1+n]), "application/vnd.gremlin-v3.0+json") {
			return
		}
		var body struct {
			RequestID struct {
				Value string `json:"@value"`
			} `json:"requestId"`
			Op        string         `json:"op"`
			Processor string         `json:"processor"`
			Args      map[string]any `json:"args"`
		}
		if err := json.Unmarshal(msg[1+n:], &body); err != nil {
			return
		}
		rq := req{op: body.Op, processor: body.Processor, args: body.Args}
		rq.gremlin, _ = body.Args["gremlin"].(string)
		rq.session, _ = body.Args["session"].(string)
		rq.bindings, _ = body.Args["bindings"].(map[string]any)

		var replies []reply
		switch {
		case rq.op == "authentication":
			f.mu.Lock()
			f.sasl, _ = rq.args["sasl"].(string)
			f.mu.Unlock()
			want := base64.StdEncoding.EncodeToString([]byte("\x00" + f.username + "\x00" + f.password))
			if f.sasl != want || held == nil {
				replies = []reply{{code: statusUnauthorized, message: "bad credentials"}}
				break
			}
			authed = true
			rq, held = *held, nil
			replies = f.dispatch(rq)
		case !authed:
			held = &rq
			replies = []reply{{code: statusAuthenticate}}
		default:
			replies = f.dispatch(rq)
		}
		for _, rp := range replies {
			if err := ws.WriteJSON(respond(body.RequestID.Value, rp)); err != nil {
				return
			}
		}
	}
}

func (f *fakeServer) dispatch(rq req) []reply {
	f.mu.Lock()
	f.reqs = append(f.reqs, rq)
	handle := f.handle
	f.mu.Unlock()
	switch {
	case rq.op == "close":
		return []reply{{code: statusNoContent}}
	case rq.gremlin == "g.inject(0)":
		return ok(gint(0))
	case handle == nil:
		return []reply{{code: statusNoContent}}
	}
	return handle(rq)
}

func respond(id string, rp reply) map[string]any {
	exceptions := make([]any, len(rp.exceptions))
	for i, e := range rp.exceptions {
		exceptions[i] = e
	}
	out := map[string]any{
		"requestId": id,
		"status": map[string]any{
			"code":       rp.code,
			"message":    rp.message,
			"attributes": gm("exceptions", glist(exceptions...)),
		},
		"result": map[string]any{"data": nil, "meta": gm()},
	}
	if rp.data != nil {
		out["result"] = map[string]any{"data": glist(rp.data...), "meta": gm()}
	}
	return out
}

func gint(n int64) map[string]any { return map[string]any{"@type": "g:Int64", "@value": n} }

func glist(xs ...any) map[string]any {
	if xs == nil {
		xs = []any{}
	}
	return map[string]any{"@type": "g:List", "@value": xs}
}

func gm(kv ...any) map[string]any {
	if kv == nil {
		kv = []any{}
	}
	return map[string]any{"@type": "g:Map", "@value": kv}
}

func gt(s string) map[string]any { return map[string]any{"@type": "g:T", "@value": s} }

func gdir(s string) map[string]any { return map[string]any{"@type": "g:Direction", "@value": s} }

// vmap is the elementMap of a vertex.
func vmap(id int64, label string, kv ...any) map[string]any {
	return gm(append([]any{gt("id"), gint(id), gt("label"), label}, kv...)...)
}

// emap is the elementMap of an edge.
func emap(id, label string, from, to int64, kv ...any) map[string]any {
	return gm(append([]any{
		gt("id"), map[string]any{"@type": "janusgraph:RelationIdentifier", "@value": map[string]any{"relationId": id}},
		gt("label"), label,
		gdir("IN"), gm(gt("id"), gint(to), gt("label"), "person"),
		gdir("OUT"), gm(gt("id"), gint(from), gt("label"), "person"),
	}, kv...)...)
}

func openDriver(t *testing.T, f *fakeServer, opts map[string]string) *Driver {
	t.Helper()
	d, err := Open(context.Background(), unigraph.Config{
		Hosts:    []string{f.addr()},
		Timeout:  5 * time.Second,
		Options:  opts,
		Username: f.username,
		Password: f.password,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func begin(t *testing.T, d *Driver) *Tx {
	t.Helper()
	tx, err := d.BeginTx(context.Background(), dialect.TxOptions{})
	require.NoError(t, err)
	return tx.(*Tx)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  ServerError
		want unigraph.ErrorKind
	}{
		{ServerError{Code: statusUnauthorized}, unigraph.KindAuthenticationFailed},
		{ServerError{Code: statusForbidden}, unigraph.KindAuthorizationFailed},
		{ServerError{Code: statusMalformedRequest}, unigraph.KindInvalidQuery},
		{ServerError{Code: statusTimeout}, unigraph.KindTimeout},
		{ServerError{Code: statusTemporary}, unigraph.KindServiceUnavailable},
		{ServerError{Code: statusServerError, Exceptions: []string{"org.janusgraph.core.SchemaViolationException"}}, unigraph.KindSchemaViolation},
		{ServerError{Code: statusServerError, Exceptions: []string{"org.janusgraph.diskstorage.locking.PermanentLockingException"}}, unigraph.KindTransactionConflict},
		{ServerError{Code: statusEvaluation, Exceptions: []string{"groovy.lang.MissingPropertyException"}}, unigraph.KindInvalidQuery},
		{ServerError{Code: statusEvaluation, Message: "Adding this property for key [email] and value [a] violates a uniqueness constraint"}, unigraph.KindConstraintViolation},
		{ServerError{Code: statusEvaluation, Message: "property key age is not defined"}, unigraph.KindSchemaViolation},
		{ServerError{Code: statusEvaluation, Message: "startup failed: unexpected token, syntax error"}, unigraph.KindInvalidQuery},
		{ServerError{Code: statusServerError, Message: "boom"}, unigraph.KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, kindOf(&tt.err), tt.err.Error())
	}
}

func TestConvert(t *testing.T) {
	assert.NoError(t, convert(nil))
	assert.ErrorIs(t, convert(context.Canceled), context.Canceled)
	ue := unigraph.NotFound(unigraph.Int64ID(1))
	assert.Same(t, ue, convert(ue))
	err := convert(&ServerError{Code: statusTimeout, Message: "slow"})
	assert.True(t, unigraph.IsKind(err, unigraph.KindTimeout))
	assert.True(t, unigraph.IsKind(convert(websocket.ErrBadHandshake), unigraph.KindConnectionFailed))
	assert.True(t, unigraph.IsKind(convert(errors.New("x")), unigraph.KindInternal))
}

func TestValueRoundTrip(t *testing.T) {
	date, err := unigraph.DateValue(unigraph.Date{Year: 2024, Month: 5, Day: 1})
	require.NoError(t, err)
	local, err := unigraph.DatetimeValue(unigraph.LocalDatetimeOf(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)))
	require.NoError(t, err)
	zoned, err := unigraph.DatetimeValue(unigraph.DatetimeOf(time.Date(2024, 5, 1, 10, 30, 0, 0, time.FixedZone("", 2*3600))))
	require.NoError(t, err)
	dur, err := unigraph.DurationValue(unigraph.DurationOf(90*time.Second + 500*time.Millisecond))
	require.NoError(t, err)
	point, err := unigraph.PointValue(unigraph.Point{Longitude: 13.4, Latitude: 52.5})
	require.NoError(t, err)

	for _, v := range []unigraph.Value{
		unigraph.Bool(true),
		unigraph.Int64(-7),
		unigraph.Float64(2.5),
		unigraph.String("ada"),
		unigraph.Bytes([]byte{1, 2, 3}),
		date, local, zoned, dur, point,
	} {
		x, err := encode(v)
		require.NoError(t, err)
		b, err := json.Marshal(x)
		require.NoError(t, err)
		d, err := decode(b)
		require.NoError(t, err)
		got := valueOf(d)
		assert.True(t, v.Equal(got), "%s: got %s", v, got)
	}
}

func TestEncodeIntegers(t *testing.T) {
	x, err := encode(unigraph.Int32(5))
	require.NoError(t, err)
	assert.Equal(t, typed{"g:Int32", int64(5)}, x)
	x, err = encode(unigraph.Uint64(1 << 63))
	require.NoError(t, err)
	assert.Equal(t, "gx:BigInteger", x.(typed).Type)
}

func TestDecodeElements(t *testing.T) {
	raw, err := json.Marshal(glist(
		vmap(1, "person", "name", glist("ada")),
		emap("4r-1-2", "knows", 1, 2, "since", gint(2020)),
	))
	require.NoError(t, err)
	x, err := decode(raw)
	require.NoError(t, err)
	xs := x.([]any)
	require.Len(t, xs, 2)

	v, isVertex := vertexOf(xs[0])
	require.True(t, isVertex)
	assert.Equal(t, unigraph.Int64ID(1), v.ID)
	assert.Equal(t, "person", v.Type)
	assert.Equal(t, unigraph.Props("name", "ada"), v.Properties)

	_, isVertex = vertexOf(xs[1])
	assert.False(t, isVertex)
	e, isEdge := edgeOf(xs[1])
	require.True(t, isEdge)
	assert.Equal(t, unigraph.StringID("4r-1-2"), e.ID)
	assert.Equal(t, unigraph.Int64ID(1), e.From)
	assert.Equal(t, unigraph.Int64ID(2), e.To)
	since, _ := e.Properties.Get("since")
	assert.True(t, unigraph.Int64(2020).Equal(since))
}

func TestOpenPings(t *testing.T) {
	f := newFakeServer(t, nil)
	openDriver(t, f, nil)
	rs := f.requests()
	require.Len(t, rs, 1)
	assert.Equal(t, "g.inject(0)", rs[0].gremlin)
	assert.Equal(t, processorEval, rs[0].processor)
	assert.Equal(t, "gremlin-groovy", rs[0].args["language"])
}

func TestOpenRejectsOptions(t *testing.T) {
	for _, opts := range []map[string]string{{"scheme": "http"}, {"transactions": "xa"}} {
		_, err := Open(context.Background(), unigraph.Config{Hosts: []string{"localhost"}, Options: opts})
		assert.True(t, unigraph.IsKind(err, unigraph.KindConnectionFailed), "%v", opts)
	}
}

func TestAliases(t *testing.T) {
	f := newFakeServer(t, nil)
	openDriver(t, f, map[string]string{"traversal_source": "social", "graph": "socialGraph"})
	aliases, _ := f.last().args["aliases"].(map[string]any)
	assert.Equal(t, map[string]any{"g": "social", "graph": "socialGraph"}, aliases)
}

func TestAuthentication(t *testing.T) {
	f := newFakeServer(t, nil)
	f.username, f.password = "neo", "secret"
	openDriver(t, f, nil)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x00neo\x00secret")), f.sasl)
	assert.Equal(t, "g.inject(0)", f.last().gremlin)
}

func TestAuthenticationWithoutCredentials(t *testing.T) {
	f := newFakeServer(t, nil)
	f.username, f.password = "neo", "secret"
	_, err := Open(context.Background(), unigraph.Config{Hosts: []string{f.addr()}})
	assert.True(t, unigraph.IsKind(err, unigraph.KindAuthenticationFailed))
}

func TestCreateVertexSession(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return ok(vmap(7, "person", "name", glist("ada")))
	})
	d := openDriver(t, f, nil)
	tx := begin(t, d)
	v, err := tx.CreateVertex(context.Background(), "person", nil, unigraph.Props("name", "ada"))
	require.NoError(t, err)
	assert.Equal(t, unigraph.Int64ID(7), v.ID)

	r := f.last()
	assert.Equal(t, "g.addV(p0).property(single, p1, p2).elementMap()", r.gremlin)
	assert.Equal(t, map[string]any{"p0": "person", "p1": "name", "p2": "ada"}, r.bindings)
	assert.Equal(t, processorSession, r.processor)
	assert.Equal(t, tx.session, r.session)
	assert.Equal(t, false, r.args["manageTransaction"])
}

func TestCreateVertexValidation(t *testing.T) {
	f := newFakeServer(t, nil)
	tx := begin(t, openDriver(t, f, nil))
	_, err := tx.CreateVertex(context.Background(), "", nil, nil)
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))
	_, err = tx.CreateVertex(context.Background(), "person", []string{"admin"}, nil)
	assert.True(t, unigraph.IsUnsupported(err))
	assert.Len(t, f.requests(), 1)
}

func TestFindVerticesScript(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok() })
	tx := begin(t, openDriver(t, f, nil))
	_, err := tx.FindVertices(context.Background(), unigraph.FindVerticesOptions{
		Type: "person",
		Filters: []unigraph.FilterCondition{
			{Property: "age", Operator: unigraph.OpGreaterThan, Value: unigraph.Int64(30)},
			{Property: "name", Operator: unigraph.OpNotEqual, Value: unigraph.String("bob")},
			{Property: "city", Operator: unigraph.OpIn, Values: []unigraph.Value{unigraph.String("Oslo")}},
		},
		Offset: 5,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, "g.V().hasLabel(p0).has(p1, gt(p2)).not(has(p3, eq(p4))).has(p5, within(p6)).range(p7, p8).elementMap()", f.last().gremlin)
}

func TestFindVerticesSortsOnClient(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return ok(
			vmap(1, "person", "name", glist("carol")),
			vmap(2, "person", "name", glist("ada")),
			vmap(3, "person", "name", glist("bob")),
		)
	})
	tx := begin(t, openDriver(t, f, nil))
	vs, err := tx.FindVertices(context.Background(), unigraph.FindVerticesOptions{
		Sort:  []unigraph.SortSpec{{Property: "name", Ascending: true}},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "g.V().not(hasLabel(p0)).elementMap()", f.last().gremlin)
	assert.Equal(t, schema.MetadataType, f.last().bindings["p0"])
	require.Len(t, vs, 2)
	assert.Equal(t, unigraph.Int64ID(2), vs[0].ID)
	assert.Equal(t, unigraph.Int64ID(3), vs[1].ID)
}

func TestUpdateVertexMissing(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok() })
	tx := begin(t, openDriver(t, f, nil))
	_, err := tx.UpdateVertexProperties(context.Background(), unigraph.Int64ID(9), unigraph.Props("name", "x"))
	assert.True(t, unigraph.IsNotFound(err))
}

func TestUpdateVertexProperties(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return ok(vmap(1, "person", "name", glist("ada")))
	})
	tx := begin(t, openDriver(t, f, nil))
	_, err := tx.UpdateVertexProperties(context.Background(), unigraph.Int64ID(1),
		unigraph.PropertyMap{{Name: "age", Value: unigraph.Null()}, {Name: "name", Value: unigraph.String("ada")}})
	require.NoError(t, err)
	assert.Equal(t, "g.V(p0).sideEffect(properties(p1).drop()).property(single, p2, p3).elementMap()", f.last().gremlin)
	assert.Equal(t, "name", f.last().bindings["p2"])

	_, err = tx.UpdateVertex(context.Background(), unigraph.Int64ID(1), unigraph.Props("name", "ada"))
	require.NoError(t, err)
	assert.Equal(t, "g.V(p0).sideEffect(properties().drop()).property(single, p1, p2).elementMap()", f.last().gremlin)
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		if id, _ := r.bindings["p0"].(map[string]any); id["@value"] == float64(1) {
			return ok(vmap(1, "person"))
		}
		return ok()
	})
	tx := begin(t, openDriver(t, f, nil))
	_, err := tx.CreateEdge(context.Background(), "knows", unigraph.Int64ID(1), unigraph.Int64ID(2), nil)
	require.Error(t, err)
	assert.True(t, unigraph.IsNotFound(err))
}

func TestCreateEdge(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		if strings.Contains(r.gremlin, "addE") {
			return ok(emap("e1", "knows", 1, 2))
		}
		return ok(vmap(1, "person"))
	})
	tx := begin(t, openDriver(t, f, nil))
	e, err := tx.CreateEdge(context.Background(), "knows", unigraph.Int64ID(1), unigraph.Int64ID(2), unigraph.Props("since", 2020))
	require.NoError(t, err)
	assert.Equal(t, unigraph.StringID("e1"), e.ID)
	assert.Equal(t, "g.V(p0).addE(p1).to(__.V(p2)).property(p3, p4).elementMap()", f.last().gremlin)
	assert.Equal(t, "since", f.last().bindings["p3"], "property names bind before their values")
	assert.NotEqual(t, "since", f.last().bindings["p4"])
}

func TestConnectedEdgesBoth(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		if strings.Contains(r.gremlin, "outE") {
			return ok(emap("e1", "knows", 1, 2), emap("loop", "knows", 1, 1))
		}
		return ok(emap("e0", "knows", 3, 1), emap("loop", "knows", 1, 1))
	})
	tx := begin(t, openDriver(t, f, nil))
	es, err := tx.ConnectedEdges(context.Background(), unigraph.Int64ID(1), unigraph.AdjacencyOptions{Direction: unigraph.Both, EdgeTypes: []string{"knows"}})
	require.NoError(t, err)
	assert.Len(t, es, 3)
	var scripts []string
	for _, r := range f.requests()[1:] {
		scripts = append(scripts, r.gremlin)
	}
	assert.Equal(t, []string{"g.V(p0).outE(p1).elementMap()", "g.V(p0).inE(p1).elementMap()"}, scripts)
}

func TestAdjacentVertices(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok(vmap(2, "person")) })
	tx := begin(t, openDriver(t, f, nil))
	vs, err := tx.AdjacentVertices(context.Background(), unigraph.Int64ID(1), unigraph.AdjacencyOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "g.V(p0).outE().inV().dedup().range(p1, p2).elementMap()", f.last().gremlin)
}

func TestCreateVerticesBatch(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return ok(vmap(1, "person"), vmap(2, "city"))
	})
	tx := begin(t, openDriver(t, f, nil))
	vs, err := tx.CreateVertices(context.Background(), []unigraph.VertexSpec{{Type: "person"}, {Type: "city"}})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "v0 = g.addV(p0).elementMap().next()\nv1 = g.addV(p1).elementMap().next()\n[v0, v1]", f.last().gremlin)

	_, err = tx.CreateVertices(context.Background(), []unigraph.VertexSpec{{Type: "person"}, {}})
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))
}

func TestSessionCommit(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok() })
	d := openDriver(t, f, nil)
	tx := begin(t, d)
	require.NoError(t, tx.Commit(context.Background()))
	rs := f.requests()
	require.Len(t, rs, 3)
	assert.Equal(t, "g.tx().commit()", rs[1].gremlin)
	assert.Equal(t, "close", rs[2].op)
	assert.Equal(t, tx.session, rs[2].session)

	assert.ErrorIs(t, tx.Commit(context.Background()), unigraph.ErrTxNotActive)
	_, err := tx.GetVertex(context.Background(), unigraph.Int64ID(1))
	assert.ErrorIs(t, err, unigraph.ErrTxNotActive)
}

func TestSessionRollback(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok() })
	tx := begin(t, openDriver(t, f, nil))
	require.NoError(t, tx.Rollback(context.Background()))
	rs := f.requests()
	assert.Equal(t, "g.tx().rollback()", rs[len(rs)-2].gremlin)
	assert.Equal(t, "close", rs[len(rs)-1].op)
	assert.ErrorIs(t, tx.Rollback(context.Background()), unigraph.ErrTxNotActive)
}

func TestServerError(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return []reply{{code: statusServerError, message: "violation", exceptions: []string{"org.janusgraph.core.SchemaViolationException"}}}
	})
	tx := begin(t, openDriver(t, f, nil))
	_, err := tx.CreateVertex(context.Background(), "person", nil, nil)
	require.Error(t, err)
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"org.janusgraph.core.SchemaViolationException"}, se.Exceptions)
}

func TestPartialContent(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return []reply{
			{code: statusPartialContent, data: []any{gint(1), gint(2)}},
			{code: statusSuccess, data: []any{gint(3)}},
		}
	})
	tx := begin(t, openDriver(t, f, nil))
	res, err := tx.ExecuteQuery(context.Background(), "g.V().id()", nil, unigraph.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, unigraph.ResultValues, res.Result.Kind)
	assert.Equal(t, []unigraph.Value{unigraph.Int64(1), unigraph.Int64(2), unigraph.Int64(3)}, res.Result.Values)
	assert.NotNil(t, res.ExecutionTime)
}

func TestExecuteQuery(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		return ok(vmap(1, "person"), vmap(2, "person"), vmap(3, "person"))
	})
	tx := begin(t, openDriver(t, f, nil))
	res, err := tx.ExecuteQuery(context.Background(), "g.V().hasLabel(kind)", unigraph.Props("kind", "person"),
		unigraph.QueryOptions{MaxResults: 2, Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, unigraph.ResultVertices, res.Result.Kind)
	assert.Len(t, res.Result.Vertices, 2)

	r := f.last()
	assert.Equal(t, "g.V().hasLabel(kind)", r.gremlin)
	assert.Equal(t, "person", r.bindings["kind"])
	assert.Equal(t, map[string]any{"@type": "g:Int64", "@value": float64(3000)}, r.args["evaluationTimeout"])

	_, err = tx.ExecuteQuery(context.Background(), "g.V()", nil, unigraph.QueryOptions{Explain: true})
	assert.True(t, unigraph.IsUnsupported(err))
}

func TestReshapeRows(t *testing.T) {
	raw, err := json.Marshal(glist(gm("name", "ada", "age", gint(36))))
	require.NoError(t, err)
	x, err := decode(raw)
	require.NoError(t, err)
	res := reshape(x.([]any))
	require.Equal(t, unigraph.ResultRows, res.Kind)
	assert.Equal(t, unigraph.Row{{Name: "name", Value: unigraph.String("ada")}, {Name: "age", Value: unigraph.Int64(36)}}, res.Rows[0])
}

func TestShortestPath(t *testing.T) {
	path := map[string]any{"@type": "g:Path", "@value": map[string]any{
		"labels":  glist(),
		"objects": glist(vmap(1, "person"), emap("e1", "knows", 1, 2), vmap(2, "person")),
	}}
	f := newFakeServer(t, func(r req) []reply { return ok(path) })
	tx := begin(t, openDriver(t, f, nil))
	p, err := tx.ShortestPath(context.Background(), unigraph.Int64ID(1), unigraph.Int64ID(2), unigraph.PathOptions{MaxDepth: 3, EdgeTypes: []string{"knows"}})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, p.Vertices, 2)
	assert.Len(t, p.Edges, 1)
	assert.Equal(t,
		"g.V(p2).repeat(outE(p3).inV().simplePath()).until(or(hasId(p0), loops().is(gte(p1)))).hasId(p0).path().by(elementMap()).order().by(count(local)).limit(1)",
		f.last().gremlin)

	_, err = tx.ShortestPath(context.Background(), unigraph.Int64ID(1), unigraph.Int64ID(1), unigraph.PathOptions{})
	assert.ErrorIs(t, err, dialect.ErrNotNative)
	_, err = tx.ShortestPath(context.Background(), unigraph.Int64ID(1), unigraph.Int64ID(2), unigraph.PathOptions{VertexTypes: []string{"city"}})
	assert.ErrorIs(t, err, dialect.ErrNotNative)
}

func TestAllPathsOrdersBeforeLimit(t *testing.T) {
	path := func(ids ...int64) any {
		objs := []any{vmap(ids[0], "person")}
		for i, id := range ids[1:] {
			objs = append(objs, emap(fmt.Sprintf("e%d", i), "knows", ids[i], id), vmap(id, "person"))
		}
		return map[string]any{"@type": "g:Path", "@value": map[string]any{"labels": glist(), "objects": glist(objs...)}}
	}
	f := newFakeServer(t, func(r req) []reply { return ok(path(1, 3, 2), path(1, 2)) })
	tx := begin(t, openDriver(t, f, nil))
	ps, err := tx.AllPaths(context.Background(), unigraph.Int64ID(1), unigraph.Int64ID(2), unigraph.PathOptions{}, 2)
	require.NoError(t, err)
	assert.Equal(t,
		"g.V(p1).repeat(outE().inV().simplePath()).until(hasId(p0)).hasId(p0).path().by(elementMap()).order().by(count(local)).limit(p2)",
		f.last().gremlin)
	require.Len(t, ps, 2)
	assert.Len(t, ps[0].Edges, 2, "server order is kept")
	assert.True(t, tx.ShortestFirst())
}

func TestPathExists(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok(gint(1)) })
	tx := begin(t, openDriver(t, f, nil))
	found, err := tx.PathExists(context.Background(), unigraph.Int64ID(1), unigraph.Int64ID(2), unigraph.PathOptions{Direction: unigraph.Both})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, f.last().gremlin, "bothE().otherV().simplePath()")
	assert.True(t, strings.HasSuffix(f.last().gremlin, ".limit(1).count()"))
}

func TestStatistics(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok(gint(10), gint(4), gint(3)) })
	d := openDriver(t, f, nil)
	st, err := d.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), *st.VertexCount)
	assert.Equal(t, uint64(4), *st.EdgeCount)
	assert.Equal(t, uint32(3), *st.LabelCount)
	assert.True(t, st.NativeTransactions)
}

func TestPoolBound(t *testing.T) {
	f := newFakeServer(t, nil)
	d, err := Open(context.Background(), unigraph.Config{Hosts: []string{f.addr()}, MaxConnections: 1})
	require.NoError(t, err)
	defer d.Close(context.Background())
	tx := begin(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = d.BeginTx(ctx, dialect.TxOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(context.Background()))
	tx2 := begin(t, d)
	require.NoError(t, tx2.Commit(context.Background()))
}

func TestOplogTransaction(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply {
		if strings.HasPrefix(r.gremlin, "g.V().hasLabel") || r.gremlin == "g.V(p0).elementMap()" {
			return ok(vmap(1, "person", "name", glist("bob")))
		}
		return ok()
	})
	d := openDriver(t, f, map[string]string{"transactions": "oplog"})
	tx := begin(t, d)
	ctx := context.Background()

	v, err := tx.CreateVertex(ctx, "person", nil, unigraph.Props("name", "ada"))
	require.NoError(t, err)
	_, isUUID := v.ID.AsUUID()
	assert.True(t, isUUID)
	assert.Len(t, f.requests(), 1, "creation is deferred")

	got, err := tx.GetVertex(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Len(t, f.requests(), 1)

	vs, err := tx.FindVertices(ctx, unigraph.FindVerticesOptions{Type: "person"})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, unigraph.Int64ID(1), vs[0].ID)
	assert.Equal(t, v.ID, vs[1].ID)

	require.NoError(t, tx.DeleteVertex(ctx, unigraph.Int64ID(1), true))
	vs, err = tx.FindVertices(ctx, unigraph.FindVerticesOptions{Type: "person"})
	require.NoError(t, err)
	require.Len(t, vs, 1)

	_, err = tx.ShortestPath(ctx, v.ID, unigraph.Int64ID(2), unigraph.PathOptions{})
	assert.ErrorIs(t, err, dialect.ErrNotNative)

	require.NoError(t, tx.Commit(ctx))
	r := f.last()
	assert.Equal(t, processorEval, r.processor)
	assert.Empty(t, r.session)
	lines := strings.Split(r.gremlin, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "g.addV(p0).property(T.id, p1)"))
	assert.Equal(t, "g.V(p4).drop().iterate()", lines[1])
	id, _ := v.ID.AsUUID()
	assert.Equal(t, map[string]any{"@type": "g:UUID", "@value": id.String()}, r.bindings["p1"])
}

func TestOplogRollback(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok() })
	d := openDriver(t, f, map[string]string{"transactions": "oplog"})
	ctx := context.Background()

	tx := begin(t, d)
	_, err := tx.CreateVertex(ctx, "person", nil, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	assert.Len(t, f.requests(), 1)

	tx = begin(t, d)
	_, err = tx.ExecuteQuery(ctx, "g.V().drop()", nil, unigraph.QueryOptions{})
	require.NoError(t, err)
	assert.True(t, unigraph.IsUnsupported(tx.Rollback(ctx)))

	st, err := d.Statistics(ctx)
	require.NoError(t, err)
	assert.False(t, st.NativeTransactions)
}

func TestOplogCreateEdgesIsAtomic(t *testing.T) {
	f := newFakeServer(t, func(r req) []reply { return ok() })
	d := openDriver(t, f, map[string]string{"transactions": "oplog"})
	ctx := context.Background()
	tx := begin(t, d)
	a, err := tx.CreateVertex(ctx, "person", nil, nil)
	require.NoError(t, err)
	b, err := tx.CreateVertex(ctx, "person", nil, nil)
	require.NoError(t, err)

	_, err = tx.CreateEdges(ctx, []unigraph.EdgeSpec{
		{Type: "knows", From: a.ID, To: b.ID},
		{Type: "knows", From: a.ID, To: unigraph.Int64ID(99)},
	})
	assert.True(t, unigraph.IsNotFound(err))
	assert.Len(t, tx.log.s.lines, 2)

	es, err := tx.CreateEdges(ctx, []unigraph.EdgeSpec{{Type: "knows", From: a.ID, To: b.ID}})
	require.NoError(t, err)
	require.Len(t, es, 1)
	out, err := tx.ConnectedEdges(ctx, a.ID, unigraph.AdjacencyOptions{})
	require.NoError(t, err)
	assert.Equal(t, es, out)
	adj, err := tx.AdjacentVertices(ctx, a.ID, unigraph.AdjacencyOptions{})
	require.NoError(t, err)
	require.Len(t, adj, 1)
	assert.Equal(t, b.ID, adj[0].ID)
}

func TestCreateIndexUniqueness(t *testing.T) {
	f := newFakeServer(t, nil)
	d := openDriver(t, f, nil)
	err := d.Schema().CreateIndex(context.Background(), schema.IndexDefinition{
		Name: "by_bio", Label: "person", Properties: []string{"bio"}, Type: schema.IndexText, Unique: true,
	})
	assert.True(t, unigraph.IsConstraintViolation(err))
	assert.Len(t, f.requests(), 1)
}

func TestDefineVertexLabelScript(t *testing.T) {
	var mgmt string
	f := newFakeServer(t, func(r req) []reply {
		switch {
		case strings.HasPrefix(r.gremlin, "mgmt"):
			mgmt = r.gremlin
		case strings.Contains(r.gremlin, "addV"):
			return ok(vmap(100, schema.MetadataType))
		}
		return ok()
	})
	d := openDriver(t, f, nil)
	err := d.Schema().DefineVertexLabel(context.Background(), schema.VertexLabel{
		Label: "person",
		Properties: []schema.PropertyDefinition{
			{Name: "name", Type: schema.TypeString},
			{Name: "tags", Type: schema.TypeList},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"mgmt = graph.openManagement()",
		"try {",
		"if (!mgmt.containsVertexLabel(p0)) { mgmt.makeVertexLabel(p0).make() }",
		"if (!mgmt.containsPropertyKey(p1)) { mgmt.makePropertyKey(p1).dataType(String.class).cardinality(Cardinality.SINGLE).make() }",
		"mgmt.commit()",
		"} catch (e) { mgmt.rollback(); throw e }",
	}, "\n"), mgmt)
}
