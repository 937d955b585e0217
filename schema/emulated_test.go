package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/internal/memgraph"
	"github.com/syssam/unigraph/schema"
)

func TestEmulatedLabels(t *testing.T) {
	ctx := context.Background()
	m := memgraph.New().Schema()

	person := schema.VertexLabel{
		Label: "person",
		Properties: []schema.PropertyDefinition{
			schema.String("name").Required().Definition(),
			schema.Int64("age").Default(unigraph.Int64(18)).Definition(),
		},
	}
	require.NoError(t, m.DefineVertexLabel(ctx, person))
	require.NoError(t, m.DefineVertexLabel(ctx, schema.VertexLabel{Label: "city"}))
	require.NoError(t, m.DefineEdgeLabel(ctx, schema.EdgeLabel{Label: "lives_in", FromLabels: []string{"person"}, ToLabels: []string{"city"}}))

	got, err := m.VertexLabel(ctx, "person")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "person", got.Label)
	require.Len(t, got.Properties, 2)
	require.NotNil(t, got.Properties[1].Default)
	assert.True(t, got.Properties[1].Default.Equal(unigraph.Int64(18)))

	missing, err := m.VertexLabel(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	labels, err := m.ListVertexLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "person"}, labels)

	t.Run("RedefineReplaces", func(t *testing.T) {
		person.Properties = person.Properties[:1]
		require.NoError(t, m.DefineVertexLabel(ctx, person))
		got, err := m.VertexLabel(ctx, "person")
		require.NoError(t, err)
		assert.Len(t, got.Properties, 1)
		labels, err := m.ListVertexLabels(ctx)
		require.NoError(t, err)
		assert.Len(t, labels, 2)
	})

	edge, err := m.EdgeLabel(ctx, "lives_in")
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, []string{"city"}, edge.ToLabels)

	err = m.DefineVertexLabel(ctx, schema.VertexLabel{})
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))
}

func TestEmulatedIndexes(t *testing.T) {
	ctx := context.Background()
	m := memgraph.New().Schema()

	require.NoError(t, m.CreateIndex(ctx, schema.Index("person_name").On("person").Fields("name").Type(schema.IndexText).Definition()))
	err := m.CreateIndex(ctx, schema.Index("person_email").On("person").Fields("email").Unique().Definition())
	assert.True(t, unigraph.IsConstraintViolation(err), "uniqueness cannot be enforced")

	info, err := m.GetIndex(ctx, "person_name")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, schema.StatusDeclared, info.Status)
	assert.Equal(t, schema.IndexText, info.Type)
	assert.Equal(t, []string{"name"}, info.Properties)

	require.NoError(t, m.DropIndex(ctx, "person_name"))
	info, err = m.GetIndex(ctx, "person_name")
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.True(t, unigraph.IsNotFound(m.DropIndex(ctx, "person_name")))
}

func TestEmulatedContainers(t *testing.T) {
	ctx := context.Background()
	m := memgraph.New().Schema()
	require.NoError(t, m.CreateContainer(ctx, "people", schema.VertexContainer))
	require.NoError(t, m.CreateContainer(ctx, "knows", schema.EdgeContainer))
	err := m.CreateContainer(ctx, schema.MetadataType, schema.VertexContainer)
	assert.True(t, unigraph.IsKind(err, unigraph.KindSchemaViolation))

	cs, err := m.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "knows", cs[0].Name)
	assert.Equal(t, schema.EdgeContainer, cs[0].Type)
	assert.Nil(t, cs[0].ElementCount)

	require.NoError(t, m.DefineEdgeType(ctx, schema.EdgeType{Collection: "knows", FromCollections: []string{"people"}, ToCollections: []string{"people"}}))
	ets, err := m.ListEdgeTypes(ctx)
	require.NoError(t, err)
	require.Len(t, ets, 1)
	assert.Equal(t, []string{"people"}, ets[0].FromCollections)
}
