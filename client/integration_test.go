//go:build integration

package client_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/client"
	"github.com/syssam/unigraph/dialect"
	_ "github.com/syssam/unigraph/dialect/arangodb"
	_ "github.com/syssam/unigraph/dialect/gremlin"
	_ "github.com/syssam/unigraph/dialect/neo4j"
)

type backend struct {
	dialect string
	image   string
	port    nat.Port
	env     map[string]string
	wait    wait.Strategy
	config  func(host string, port int) unigraph.Config
}

var backends = []backend{
	{
		dialect: dialect.Neo4j,
		image:   "neo4j:5",
		port:    "7687/tcp",
		env:     map[string]string{"NEO4J_AUTH": "neo4j/integration"},
		wait:    wait.ForLog("Started."),
		config: func(host string, port int) unigraph.Config {
			return unigraph.Config{Hosts: []string{host}, Port: port, Username: "neo4j", Password: "integration"}
		},
	},
	{
		dialect: dialect.ArangoDB,
		image:   "arangodb:3.11",
		port:    "8529/tcp",
		env:     map[string]string{"ARANGO_ROOT_PASSWORD": "integration"},
		wait:    wait.ForHTTP("/_api/version").WithPort("8529/tcp").WithBasicAuth("root", "integration"),
		config: func(host string, port int) unigraph.Config {
			return unigraph.Config{Hosts: []string{host}, Port: port, Username: "root", Password: "integration"}
		},
	},
	{
		dialect: dialect.JanusGraph,
		image:   "janusgraph/janusgraph:1.0",
		port:    "8182/tcp",
		wait:    wait.ForListeningPort("8182/tcp"),
		config: func(host string, port int) unigraph.Config {
			// The default image runs berkeleyje with lucene as "search".
			return unigraph.Config{Hosts: []string{host}, Port: port}
		},
	},
}

func startBackend(t *testing.T, b backend) *client.Graph {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        b.image,
			ExposedPorts: []string{string(b.port)},
			Env:          b.env,
			WaitingFor:   wait.ForAll(wait.ForListeningPort(b.port), b.wait).WithDeadline(3 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err, "starting %s", b.image)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, b.port)
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	var g *client.Graph
	// Servers often accept connections before they accept queries.
	require.Eventually(t, func() bool {
		g, err = client.Open(ctx, b.dialect, b.config(host, port))
		return err == nil
	}, time.Minute, 2*time.Second, "opening %s: %v", b.dialect, err)
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}

func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration tests need docker")
	}
	for _, b := range backends {
		t.Run(b.dialect, func(t *testing.T) {
			t.Parallel()
			g := startBackend(t, b)
			t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, g) })
			t.Run("Rollback", func(t *testing.T) { testRollback(t, g) })
			t.Run("Traversal", func(t *testing.T) { testTraversal(t, g) })
			t.Run("Statistics", func(t *testing.T) { testStatistics(t, g) })
		})
	}
}

func testLifecycle(t *testing.T, g *client.Graph) {
	ctx := context.Background()
	var aliceID, bobID, edgeID unigraph.ElementID
	err := g.WithTx(ctx, func(tx *client.Tx) error {
		alice, err := tx.CreateVertex(ctx, "person", unigraph.Props("name", "alice", "age", 30))
		if err != nil {
			return err
		}
		bob, err := tx.CreateVertex(ctx, "person", unigraph.Props("name", "bob", "age", 25))
		if err != nil {
			return err
		}
		e, err := tx.CreateEdge(ctx, "knows", alice.ID, bob.ID, unigraph.Props("since", 2020))
		if err != nil {
			return err
		}
		aliceID, bobID, edgeID = alice.ID, bob.ID, e.ID
		return nil
	})
	require.NoError(t, err)

	tx, err := g.ReadTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	v, err := tx.GetVertex(ctx, aliceID)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "person", v.Type)
	name, _ := v.Properties.Get("name")
	assert.Equal(t, unigraph.String("alice"), name)

	found, err := tx.FindVertices(ctx, unigraph.FindVerticesOptions{
		Type:    "person",
		Filters: []unigraph.FilterCondition{unigraph.Field("age").GT(unigraph.Int64(26))},
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, aliceID, found[0].ID)

	e, err := tx.GetEdge(ctx, edgeID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, aliceID, e.From)
	assert.Equal(t, bobID, e.To)

	out, err := tx.AdjacentVertices(ctx, bobID, unigraph.AdjacencyOptions{Direction: unigraph.Both})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, aliceID, out[0].ID)
	require.NoError(t, tx.Rollback(ctx))

	err = g.WithTx(ctx, func(tx *client.Tx) error {
		if _, err := tx.UpdateVertexProperties(ctx, bobID, unigraph.Props("age", 26)); err != nil {
			return err
		}
		return tx.DeleteVertex(ctx, aliceID, true)
	})
	require.NoError(t, err)

	tx, err = g.ReadTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	gone, err := tx.GetVertex(ctx, aliceID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	goneEdge, err := tx.GetEdge(ctx, edgeID)
	require.NoError(t, err)
	assert.Nil(t, goneEdge)
	bob, err := tx.GetVertex(ctx, bobID)
	require.NoError(t, err)
	age, _ := bob.Properties.Get("age")
	n, _ := age.AsInt64()
	assert.EqualValues(t, 26, n)
}

func testRollback(t *testing.T, g *client.Graph) {
	ctx := context.Background()
	tx, err := g.Tx(ctx)
	require.NoError(t, err)
	v, err := tx.CreateVertex(ctx, "ghost", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	assert.False(t, tx.IsActive())

	_, err = tx.GetVertex(ctx, v.ID)
	assert.ErrorIs(t, err, unigraph.ErrTxNotActive)

	tx, err = g.ReadTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	got, err := tx.GetVertex(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testTraversal(t *testing.T, g *client.Graph) {
	ctx := context.Background()
	var ids []unigraph.ElementID
	err := g.WithTx(ctx, func(tx *client.Tx) error {
		specs := make([]unigraph.VertexSpec, 4)
		for i := range specs {
			specs[i] = unigraph.VertexSpec{Type: "stop", Properties: unigraph.Props("name", fmt.Sprintf("s%d", i))}
		}
		vs, err := tx.CreateVertices(ctx, specs)
		if err != nil {
			return err
		}
		for _, v := range vs {
			ids = append(ids, v.ID)
		}
		// s0 -> s1 -> s2 -> s3 and the shortcut s0 -> s2.
		_, err = tx.CreateEdges(ctx, []unigraph.EdgeSpec{
			{Type: "route", From: ids[0], To: ids[1]},
			{Type: "route", From: ids[1], To: ids[2]},
			{Type: "route", From: ids[2], To: ids[3]},
			{Type: "route", From: ids[0], To: ids[2]},
		})
		return err
	})
	require.NoError(t, err)

	tx, err := g.ReadTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	opts := unigraph.PathOptions{Direction: unigraph.Outgoing, EdgeTypes: []string{"route"}}

	p, err := tx.ShortestPath(ctx, ids[0], ids[3], opts)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Length)

	ok, err := tx.PathExists(ctx, ids[3], ids[0], opts)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := tx.AllPaths(ctx, ids[0], ids[3], opts, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].Length)
	assert.Equal(t, 3, all[1].Length)
}

func testStatistics(t *testing.T, g *client.Graph) {
	st, err := g.Statistics(context.Background())
	require.NoError(t, err)
	if st.VertexCount != nil {
		assert.Positive(t, *st.VertexCount)
	}
}
