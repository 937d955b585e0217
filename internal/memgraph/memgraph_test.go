package memgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

func begin(t *testing.T, d *Driver) dialect.Tx {
	t.Helper()
	tx, err := d.BeginTx(context.Background(), dialect.TxOptions{})
	require.NoError(t, err)
	return tx
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	d := New()
	w := begin(t, d)
	v, err := w.CreateVertex(ctx, "person", nil, unigraph.Props("name", "Ada"))
	require.NoError(t, err)

	r := begin(t, d)
	got, err := r.GetVertex(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "uncommitted writes are invisible")

	require.NoError(t, w.Commit(ctx))
	got, err = r.GetVertex(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "snapshot taken at begin")
	require.NoError(t, r.Commit(ctx), "read-only commit never conflicts")

	got, err = begin(t, d).GetVertex(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Properties.Equal(unigraph.Props("name", "Ada")))
}

func TestCommitConflict(t *testing.T) {
	ctx := context.Background()
	d := New()
	a, b := begin(t, d), begin(t, d)
	_, err := a.CreateVertex(ctx, "x", nil, nil)
	require.NoError(t, err)
	_, err = b.CreateVertex(ctx, "y", nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Commit(ctx))
	err = b.Commit(ctx)
	assert.True(t, unigraph.IsKind(err, unigraph.KindTransactionConflict))
	assert.True(t, unigraph.IsRetryable(err))
}

func TestBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	tx := begin(t, New())
	a, err := tx.CreateVertex(ctx, "person", nil, nil)
	require.NoError(t, err)
	_, err = tx.CreateEdges(ctx, []unigraph.EdgeSpec{
		{Type: "knows", From: a.ID, To: a.ID},
		{Type: "knows", From: a.ID, To: unigraph.Int64ID(999)},
	})
	require.Error(t, err)
	assert.True(t, unigraph.IsNotFound(err))
	es, err := tx.FindEdges(ctx, unigraph.FindEdgesOptions{})
	require.NoError(t, err)
	assert.Empty(t, es)
}

func TestForeignIdentifiersDoNotResolve(t *testing.T) {
	ctx := context.Background()
	tx := begin(t, New())
	v, err := tx.GetVertex(ctx, unigraph.StringID("1"))
	require.NoError(t, err)
	assert.Nil(t, v)
	_, err = tx.UpdateVertex(ctx, unigraph.StringID("1"), nil)
	assert.True(t, unigraph.IsNotFound(err))
}

func TestExecuteQuery(t *testing.T) {
	ctx := context.Background()
	tx := begin(t, New())
	for _, n := range []string{"Ada", "Bob", "Cy"} {
		_, err := tx.CreateVertex(ctx, "person", nil, unigraph.Props("name", n))
		require.NoError(t, err)
	}

	res, err := tx.ExecuteQuery(ctx, "vertices person", nil, unigraph.QueryOptions{MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, unigraph.ResultVertices, res.Result.Kind)
	assert.Len(t, res.Result.Vertices, 2)
	assert.NotNil(t, res.ExecutionTime)
	assert.Nil(t, res.Explanation)

	res, err = tx.ExecuteQuery(ctx, "count vertices", unigraph.Props("name", "Bob"), unigraph.QueryOptions{Profile: true})
	require.NoError(t, err)
	require.Equal(t, unigraph.ResultValues, res.Result.Kind)
	n, _ := res.Result.Values[0].AsInt64()
	assert.EqualValues(t, 1, n)
	assert.NotNil(t, res.Profile)

	res, err = tx.ExecuteQuery(ctx, "edges", nil, unigraph.QueryOptions{Explain: true})
	require.NoError(t, err)
	require.NotNil(t, res.Explanation)
	assert.Zero(t, res.Result.Len())
	assert.Nil(t, res.ExecutionTime)

	_, err = tx.ExecuteQuery(ctx, "MATCH (n) RETURN n", nil, unigraph.QueryOptions{})
	assert.True(t, unigraph.IsKind(err, unigraph.KindInvalidQuery))
}

func TestHook(t *testing.T) {
	boom := errors.New("boom")
	d := New(WithHook(func(_ context.Context, op string) error {
		if op == "create-edge" {
			return boom
		}
		return nil
	}))
	tx := begin(t, d)
	_, err := tx.CreateEdge(context.Background(), "e", unigraph.Int64ID(1), unigraph.Int64ID(2), nil)
	assert.ErrorIs(t, err, boom)
}

func TestStatisticsAndSchema(t *testing.T) {
	ctx := context.Background()
	d := New()
	require.NoError(t, d.Schema().DefineVertexLabel(ctx, schema.VertexLabel{
		Label:      "person",
		Properties: []schema.PropertyDefinition{schema.String("name").Required().Definition()},
	}))
	tx := begin(t, d)
	a, err := tx.CreateVertex(ctx, "person", []string{"employee"}, unigraph.Props("name", "Ada"))
	require.NoError(t, err)
	_, err = tx.CreateEdge(ctx, "self", a.ID, a.ID, unigraph.Props("since", int64(2020)))
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	st, err := d.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, *st.VertexCount, "metadata records are not counted")
	assert.EqualValues(t, 1, *st.EdgeCount)
	assert.EqualValues(t, 2, *st.LabelCount)
	assert.EqualValues(t, 2, *st.PropertyCount)
	assert.True(t, st.NativeTransactions)

	labels, err := d.Schema().ListVertexLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"person"}, labels)

	vs, err := begin(t, d).FindVertices(ctx, unigraph.FindVerticesOptions{})
	require.NoError(t, err)
	assert.Len(t, vs, 1, "untyped find hides metadata records")

	require.NoError(t, d.Close(ctx))
	require.Error(t, d.Ping(ctx))
	_, err = d.BeginTx(ctx, dialect.TxOptions{})
	assert.True(t, unigraph.IsKind(err, unigraph.KindConnectionFailed))
}
