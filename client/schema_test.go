package client_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/client"
	"github.com/syssam/unigraph/internal/memgraph"
	"github.com/syssam/unigraph/schema"
)

func TestEnforceSchema(t *testing.T) {
	ctx := context.Background()
	g := newGraph(t, client.EnforceSchema())
	require.NoError(t, g.Schema().DefineVertexLabel(ctx, schema.VertexLabel{
		Label: "person",
		Properties: []schema.PropertyDefinition{
			schema.String("name").Required().Definition(),
			schema.Int64("age").Default(unigraph.Int64(0)).Definition(),
		},
	}))
	require.NoError(t, g.Schema().DefineEdgeLabel(ctx, schema.EdgeLabel{
		Label:      "knows",
		FromLabels: []string{"person"},
		ToLabels:   []string{"person"},
	}))
	tx := newTx(t, g)

	_, err := tx.CreateVertex(ctx, "person", unigraph.Props("age", int64(3)))
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation), "required property missing")
	_, err = tx.CreateVertex(ctx, "person", unigraph.Props("name", int64(3)))
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation), "wrong property type")

	ada, err := tx.CreateVertex(ctx, "person", unigraph.Props("name", "Ada"))
	require.NoError(t, err)
	age, ok := ada.Properties.Get("age")
	require.True(t, ok, "defaults are applied")
	assert.Equal(t, unigraph.Int64(0), age)

	_, err = tx.UpdateVertexProperties(ctx, ada.ID, unigraph.PropertyMap{{Name: "name", Value: unigraph.Null()}})
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))
	_, err = tx.UpdateVertexProperties(ctx, ada.ID, unigraph.Props("age", int64(37)))
	require.NoError(t, err)

	city, err := tx.CreateVertex(ctx, "city", nil)
	require.NoError(t, err, "undeclared types are not checked")
	_, err = tx.CreateEdge(ctx, "knows", ada.ID, city.ID, nil)
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation), "endpoint types are checked")
	_, err = tx.CreateEdge(ctx, "knows", ada.ID, ada.ID, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func TestSchemaCache(t *testing.T) {
	ctx := context.Background()
	var lookups atomic.Int64
	drv := memgraph.New(memgraph.WithHook(func(_ context.Context, op string) error {
		if op == "find-vertices" {
			lookups.Add(1)
		}
		return nil
	}))
	cache := unigraph.NewMemoryCache()
	g := newGraphOver(t, drv, client.WithCache(cache, 0))
	s := g.Schema()

	def, err := s.VertexLabel(ctx, "person")
	require.NoError(t, err)
	assert.Nil(t, def)
	n := lookups.Load()
	def, err = s.VertexLabel(ctx, "person")
	require.NoError(t, err)
	assert.Nil(t, def)
	assert.Equal(t, n, lookups.Load(), "undefined labels are cached")

	require.NoError(t, s.DefineVertexLabel(ctx, schema.VertexLabel{
		Label:      "person",
		Properties: []schema.PropertyDefinition{schema.String("name").Definition()},
	}))
	def, err = s.VertexLabel(ctx, "person")
	require.NoError(t, err)
	require.NotNil(t, def, "definitions invalidate the cached entry")
	assert.Equal(t, "name", def.Properties[0].Name)

	n = lookups.Load()
	_, err = s.VertexLabel(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, n, lookups.Load())

	key := unigraph.CacheKey{Dialect: g.Dialect(), Kind: "vertex-label", Name: "person"}.String()
	b, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEmpty(t, b)

	require.NoError(t, s.Invalidate(ctx))
	b, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestSchemaPassThrough(t *testing.T) {
	ctx := context.Background()
	g := newGraph(t)
	s := g.Schema()
	require.NoError(t, s.CreateIndex(ctx, schema.Index("person_name").On("person").Fields("name").Definition()))
	info, err := s.GetIndex(ctx, "person_name")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, schema.StatusDeclared, info.Status)

	infos, err := s.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
	require.NoError(t, s.DropIndex(ctx, "person_name"))

	require.NoError(t, s.DefineEdgeType(ctx, schema.EdgeType{Collection: "knows", FromCollections: []string{"person"}, ToCollections: []string{"person"}}))
	types, err := s.ListEdgeTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "knows", types[0].Collection)

	require.NoError(t, s.CreateContainer(ctx, "people", schema.VertexContainer))
	cs, err := s.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "people", cs[0].Name)
}
