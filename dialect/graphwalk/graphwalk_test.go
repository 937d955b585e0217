package graphwalk

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
)

// fakeGraph is an adjacency-list Source.
type fakeGraph struct {
	vertices map[unigraph.ElementID]*unigraph.Vertex
	edges    []unigraph.Edge
	calls    int
}

func (g *fakeGraph) GetVertex(_ context.Context, id unigraph.ElementID) (*unigraph.Vertex, error) {
	return g.vertices[id], nil
}

func (g *fakeGraph) ConnectedEdges(_ context.Context, id unigraph.ElementID, opts unigraph.AdjacencyOptions) ([]unigraph.Edge, error) {
	g.calls++
	var out []unigraph.Edge
	for _, e := range g.edges {
		if len(opts.EdgeTypes) > 0 && !slices.Contains(opts.EdgeTypes, e.Type) {
			continue
		}
		isOut := e.From == id && opts.Direction != unigraph.Incoming
		in := e.To == id && opts.Direction != unigraph.Outgoing
		if isOut || in {
			out = append(out, e)
		}
	}
	return out, nil
}

func vid(s string) unigraph.ElementID { return unigraph.StringID(s) }

// newGraph builds a graph from "from>to:type" edge specs; vertex type is
// the first letter of its name.
func newGraph(specs ...string) *fakeGraph {
	g := &fakeGraph{vertices: map[unigraph.ElementID]*unigraph.Vertex{}}
	add := func(name string) {
		if _, ok := g.vertices[vid(name)]; !ok {
			g.vertices[vid(name)] = &unigraph.Vertex{
				ID:         vid(name),
				Type:       name[:1],
				Properties: unigraph.Props("name", name),
			}
		}
	}
	for i, s := range specs {
		var from, to, typ string
		rest := s
		for j := range rest {
			if rest[j] == '>' {
				from, rest = rest[:j], rest[j+1:]
				break
			}
		}
		for j := range rest {
			if rest[j] == ':' {
				to, typ = rest[:j], rest[j+1:]
				break
			}
		}
		add(from)
		add(to)
		g.edges = append(g.edges, unigraph.Edge{
			ID:         unigraph.Int64ID(int64(i + 1)),
			Type:       typ,
			From:       vid(from),
			To:         vid(to),
			Properties: unigraph.Props("w", int64(i+1)),
		})
	}
	return g
}

func names(vs []unigraph.Vertex) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		s, _ := v.ID.AsString()
		out[i] = s
	}
	return out
}

func TestShortestPath(t *testing.T) {
	ctx := context.Background()
	g := newGraph("a>b:knows", "b>c:knows", "a>x:likes", "x>c:likes", "c>d:knows", "e>f:knows")

	t.Run("minimum edges", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("d"), unigraph.PathOptions{})
		require.NoError(t, err)
		require.NotNil(t, p)
		require.NoError(t, p.Validate())
		assert.Equal(t, 3, p.Length)
		assert.Equal(t, []string{"a", "b", "c", "d"}, names(p.Vertices))
	})
	t.Run("disconnected", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("f"), unigraph.PathOptions{})
		require.NoError(t, err)
		assert.Nil(t, p)
	})
	t.Run("direction", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("d"), vid("a"), unigraph.PathOptions{})
		require.NoError(t, err)
		assert.Nil(t, p)
		p, err = New(g).ShortestPath(ctx, vid("d"), vid("a"), unigraph.PathOptions{Direction: unigraph.Incoming})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 3, p.Length)
	})
	t.Run("max depth", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("d"), unigraph.PathOptions{MaxDepth: 2})
		require.NoError(t, err)
		assert.Nil(t, p)
	})
	t.Run("edge types", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("c"), unigraph.PathOptions{EdgeTypes: []string{"likes"}})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, []string{"a", "x", "c"}, names(p.Vertices))
	})
	t.Run("vertex filters", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("c"), unigraph.PathOptions{
			VertexFilters: []unigraph.FilterCondition{unigraph.Field("name").NEQ(unigraph.String("b"))},
		})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, []string{"a", "x", "c"}, names(p.Vertices))
	})
	t.Run("edge filters", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("c"), unigraph.PathOptions{
			EdgeFilters: []unigraph.FilterCondition{unigraph.Field("w").GT(unigraph.Int64(1))},
		})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, []string{"a", "x", "c"}, names(p.Vertices))

		p, err = New(g).ShortestPath(ctx, vid("a"), vid("c"), unigraph.PathOptions{
			EdgeFilters: []unigraph.FilterCondition{unigraph.Field("w").GT(unigraph.Int64(3))},
		})
		require.NoError(t, err)
		assert.Nil(t, p)
	})
	t.Run("same vertex", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("a"), vid("a"), unigraph.PathOptions{})
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Zero(t, p.Length)
		assert.Len(t, p.Vertices, 1)
	})
	t.Run("missing endpoint", func(t *testing.T) {
		p, err := New(g).ShortestPath(ctx, vid("zz"), vid("a"), unigraph.PathOptions{})
		require.NoError(t, err)
		assert.Nil(t, p)
	})
	t.Run("bad options", func(t *testing.T) {
		_, err := New(g).ShortestPath(ctx, vid("a"), vid("b"), unigraph.PathOptions{MaxDepth: -1})
		assert.True(t, unigraph.IsKind(err, unigraph.KindInvalidQuery))
	})
}

func TestPathExists(t *testing.T) {
	ctx := context.Background()
	g := newGraph("a>b:knows", "b>c:knows", "e>f:knows")
	ok, err := New(g).PathExists(ctx, vid("a"), vid("c"), unigraph.PathOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = New(g).PathExists(ctx, vid("a"), vid("f"), unigraph.PathOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = New(g).PathExists(ctx, vid("a"), vid("c"), unigraph.PathOptions{VertexTypes: []string{"x"}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllPaths(t *testing.T) {
	ctx := context.Background()
	g := newGraph("a>b:knows", "b>d:knows", "a>c:knows", "c>b:knows", "a>d:knows", "d>a:knows")

	paths, err := New(g).AllPaths(ctx, vid("a"), vid("d"), unigraph.PathOptions{}, 0)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for i := 1; i < len(paths); i++ {
		assert.LessOrEqual(t, paths[i-1].Length, paths[i].Length, "shortest first")
	}
	assert.Equal(t, []string{"a", "d"}, names(paths[0].Vertices))
	assert.Equal(t, []string{"a", "c", "b", "d"}, names(paths[2].Vertices))

	limited, err := New(g).AllPaths(ctx, vid("a"), vid("d"), unigraph.PathOptions{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	shallow, err := New(g).AllPaths(ctx, vid("a"), vid("d"), unigraph.PathOptions{MaxDepth: 2}, 0)
	require.NoError(t, err)
	assert.Len(t, shallow, 2)

	self, err := New(g).AllPaths(ctx, vid("a"), vid("a"), unigraph.PathOptions{}, 0)
	require.NoError(t, err)
	require.Len(t, self, 1)
	assert.Zero(t, self[0].Length)
}

func TestNeighborhood(t *testing.T) {
	ctx := context.Background()
	g := newGraph("a>b:knows", "a>c:knows", "b>d:knows", "c>d:knows", "d>e:knows", "f>a:knows")

	sg, err := New(g).Neighborhood(ctx, vid("a"), unigraph.NeighborhoodOptions{Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(sg.Vertices))
	assert.Len(t, sg.Edges, 4, "d reached twice, both edges kept, vertex once")

	both, err := New(g).Neighborhood(ctx, vid("a"), unigraph.NeighborhoodOptions{Depth: 1, Direction: unigraph.Both})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "f"}, names(both.Vertices))

	zero, err := New(g).Neighborhood(ctx, vid("a"), unigraph.NeighborhoodOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(zero.Vertices))
	assert.Empty(t, zero.Edges)

	_, err = New(g).Neighborhood(ctx, vid("nope"), unigraph.NeighborhoodOptions{Depth: 1})
	assert.True(t, unigraph.IsNotFound(err))
}

func TestNeighborhoodTruncationIsStable(t *testing.T) {
	ctx := context.Background()
	g := newGraph("a>b:knows", "a>c:knows", "a>d:knows", "b>e:knows", "c>f:knows")
	// Shuffle storage order; discovery follows edge identifiers.
	g.edges[0], g.edges[2] = g.edges[2], g.edges[0]

	var first []string
	for range 5 {
		sg, err := New(g).Neighborhood(ctx, vid("a"), unigraph.NeighborhoodOptions{Depth: 3, MaxVertices: 3})
		require.NoError(t, err)
		got := names(sg.Vertices)
		if first == nil {
			first = got
		}
		assert.Equal(t, first, got)
	}
	assert.Equal(t, []string{"a", "b", "c"}, first)
}

func TestAtDistance(t *testing.T) {
	ctx := context.Background()
	g := newGraph("a>b:knows", "b>c:knows", "a>c:knows", "z>a:knows", "c>d:likes")

	tests := []struct {
		name      string
		distance  int
		dir       unigraph.Direction
		edgeTypes []string
		want      []string
	}{
		{"zero", 0, unigraph.Outgoing, nil, []string{"a"}},
		{"one", 1, unigraph.Outgoing, nil, []string{"b", "c"}},
		{"exact not at most", 2, unigraph.Outgoing, nil, []string{"d"}},
		{"typed", 2, unigraph.Outgoing, []string{"knows"}, []string{}},
		{"incoming only", 1, unigraph.Incoming, nil, []string{"z"}},
		{"beyond", 5, unigraph.Outgoing, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := New(g).AtDistance(ctx, vid("a"), tt.distance, tt.dir, tt.edgeTypes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(vs))
		})
	}

	_, err := New(g).AtDistance(ctx, vid("a"), -1, unigraph.Outgoing, nil)
	assert.True(t, unigraph.IsKind(err, unigraph.KindInvalidQuery))
}

func TestWalkerHonoursCancellation(t *testing.T) {
	g := newGraph("a>b:knows")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(g).ShortestPath(ctx, vid("a"), vid("b"), unigraph.PathOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
