package dialect

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
)

func TestStatsObserver(t *testing.T) {
	ctx := context.Background()
	s := NewStatsObserver()
	s.Observe(ctx, OpInfo{Dialect: Memory, Op: "get-vertex", Class: ClassRead, Duration: time.Millisecond})
	s.Observe(ctx, OpInfo{Dialect: Memory, Op: "create-vertex", Class: ClassWrite, Duration: time.Millisecond})
	s.Observe(ctx, OpInfo{Dialect: Memory, Op: "execute-query", Class: ClassQuery, Duration: time.Millisecond, Err: errors.New("boom")})
	s.Observe(ctx, OpInfo{Dialect: Memory, Op: "shortest-path", Class: ClassTraversal, Duration: time.Millisecond})
	s.Observe(ctx, OpInfo{Dialect: Memory, Op: "commit", Class: ClassTx})
	s.Observe(ctx, OpInfo{Dialect: Memory, Op: "rollback", Class: ClassTx, Err: errors.New("gone")})

	snap := s.OpStats().Stats()
	assert.EqualValues(t, 1, snap.TotalReads)
	assert.EqualValues(t, 1, snap.TotalWrites)
	assert.EqualValues(t, 1, snap.TotalQueries)
	assert.EqualValues(t, 1, snap.TotalTraversals)
	assert.EqualValues(t, 1, snap.Commits)
	assert.EqualValues(t, 0, snap.Rollbacks)
	assert.EqualValues(t, 2, snap.Errors)
	assert.EqualValues(t, 4, snap.Total())
	assert.Equal(t, time.Millisecond, snap.AvgDuration())
	assert.Contains(t, snap.String(), "reads=1 writes=1")

	s.OpStats().Reset()
	assert.Zero(t, s.OpStats().Stats().Total())
	assert.Zero(t, StatsSnapshot{}.AvgDuration())
}

func TestStatsObserverSlowOps(t *testing.T) {
	ctx := context.Background()
	var slow []string
	s := NewStatsObserver(
		WithSlowThreshold(10*time.Millisecond),
		WithSlowOpHook(func(_ context.Context, info OpInfo) { slow = append(slow, info.Op) }),
	)
	assert.Equal(t, 10*time.Millisecond, s.SlowThreshold())

	s.Observe(ctx, OpInfo{Op: "fast", Duration: time.Millisecond})
	s.Observe(ctx, OpInfo{Op: "slow", Duration: 20 * time.Millisecond})
	assert.Equal(t, []string{"slow"}, slow)
	assert.EqualValues(t, 1, s.OpStats().Stats().SlowOps)

	s.SetSlowThreshold(time.Second)
	s.Observe(ctx, OpInfo{Op: "slow-again", Duration: 20 * time.Millisecond})
	assert.Len(t, slow, 1)
}

func TestSlowOpLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewStatsObserver(WithSlowThreshold(0), WithSlowOpLog(logger))
	s.Observe(context.Background(), OpInfo{Dialect: Neo4j, Op: "find-vertices", Duration: time.Millisecond})
	out := buf.String()
	assert.Contains(t, out, "slow graph operation detected")
	assert.Contains(t, out, "op=find-vertices")
	assert.Contains(t, out, "dialect=neo4j")
}

func TestDebugObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := NewDebugObserver(logger)
	d.Observe(context.Background(), OpInfo{Dialect: ArangoDB, Op: "get-edge", Class: ClassRead})
	d.Observe(context.Background(), OpInfo{Dialect: ArangoDB, Op: "commit", Class: ClassTx, Err: unigraph.ErrTransactionConflict})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "level=DEBUG")
	assert.Contains(t, lines[0], "class=read")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], "kind=transaction-conflict")
	assert.Contains(t, lines[1], `error="unigraph: transaction conflict"`)

	buf.Reset()
	d.Observe(context.Background(), OpInfo{Dialect: Neo4j, Op: "ping", Class: ClassTx, Err: context.DeadlineExceeded})
	assert.Contains(t, buf.String(), "kind="+unigraph.KindOf(context.DeadlineExceeded).String())
}

func TestObservers(t *testing.T) {
	var n int
	count := ObserverFunc(func(context.Context, OpInfo) { n++ })
	Observers{count, count, Observers{count}}.Observe(context.Background(), OpInfo{})
	assert.Equal(t, 3, n)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.Observe(ctx, OpInfo{Dialect: JanusGraph, Op: "create-edge", Class: ClassWrite, Duration: time.Millisecond})
	m.Observe(ctx, OpInfo{Dialect: JanusGraph, Op: "create-edge", Class: ClassWrite, Err: unigraph.NotFound(unigraph.StringID("x"))})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ops.WithLabelValues(JanusGraph, "create-edge", "write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues(JanusGraph, "create-edge", "element-not-found")))

	_, err = NewMetrics(reg)
	require.Error(t, err, "registering twice must fail")

	unregistered, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, unregistered)
}

func TestRegistry(t *testing.T) {
	name := "test-registry"
	drv := &nopDriver{}
	Register(name, func(context.Context, unigraph.Config) (Driver, error) { return drv, nil })
	assert.Contains(t, Dialects(), name)

	got, err := Open(context.Background(), name, unigraph.Config{})
	require.NoError(t, err)
	assert.Same(t, drv, got)

	_, err = Open(context.Background(), "no-such-dialect", unigraph.Config{})
	assert.True(t, unigraph.IsUnsupported(err))

	assert.Panics(t, func() { Register(name, func(context.Context, unigraph.Config) (Driver, error) { return nil, nil }) })
	assert.Panics(t, func() { Register("nil-open", nil) })
}

func TestIsNotNative(t *testing.T) {
	assert.True(t, IsNotNative(ErrNotNative))
	assert.True(t, IsNotNative(errors.Join(errors.New("x"), ErrNotNative)))
	assert.False(t, IsNotNative(unigraph.ErrUnsupportedOperation))
}

type nopDriver struct{ Driver }
