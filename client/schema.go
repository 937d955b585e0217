package client

import (
	"bytes"
	"context"
	"time"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// Cache record kinds.
const (
	cacheVertexLabel = "vertex-label"
	cacheEdgeLabel   = "edge-label"
)

// undefined marks a label known to have no definition. It is the msgpack
// encoding of nil, which no encoded label can equal.
var undefined = []byte{0xc0}

// Schema is the schema manager of a Graph. It observes every call, caches
// label definitions when the graph has a cache, and validates writes when
// the graph enforces the schema.
type Schema struct {
	g *Graph
	m schema.Manager
}

func newSchema(g *Graph) *Schema {
	return &Schema{g: g, m: g.drv.Schema()}
}

// Manager returns the adapter's schema manager.
func (s *Schema) Manager() schema.Manager { return s.m }

func (s *Schema) key(kind, name string) unigraph.CacheKey {
	return unigraph.CacheKey{Dialect: s.g.drv.Dialect(), Database: s.g.database, Kind: kind, Name: name}
}

// Invalidate drops every cached definition of the graph.
func (s *Schema) Invalidate(ctx context.Context) error {
	if s.g.cache == nil {
		return nil
	}
	return s.g.cache.DeletePrefix(ctx, s.key("", "").Prefix())
}

func (s *Schema) do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := s.g.authorize(ctx, op, dialect.ClassSchema)
	if err == nil {
		err = fn(ctx)
	}
	s.g.observe(ctx, op, dialect.ClassSchema, start, err)
	return err
}

func (s *Schema) forget(ctx context.Context, kind, name string) {
	if s.g.cache == nil {
		return
	}
	if err := s.g.cache.Delete(ctx, s.key(kind, name).String()); err != nil {
		s.g.log.WarnContext(ctx, "unigraph: schema cache delete failed", "kind", kind, "name", name, "error", err)
	}
}

// DefineVertexLabel implements schema.Manager.
func (s *Schema) DefineVertexLabel(ctx context.Context, def schema.VertexLabel) error {
	return s.do(ctx, "define-vertex-label", func(ctx context.Context) error {
		defer s.forget(ctx, cacheVertexLabel, def.Label)
		return s.m.DefineVertexLabel(ctx, def)
	})
}

// DefineEdgeLabel implements schema.Manager.
func (s *Schema) DefineEdgeLabel(ctx context.Context, def schema.EdgeLabel) error {
	return s.do(ctx, "define-edge-label", func(ctx context.Context) error {
		defer s.forget(ctx, cacheEdgeLabel, def.Label)
		return s.m.DefineEdgeLabel(ctx, def)
	})
}

// VertexLabel implements schema.Manager.
func (s *Schema) VertexLabel(ctx context.Context, label string) (def *schema.VertexLabel, err error) {
	err = s.do(ctx, "get-vertex-label", func(ctx context.Context) error {
		def, err = s.vertexLabel(ctx, label)
		return err
	})
	return def, err
}

// EdgeLabel implements schema.Manager.
func (s *Schema) EdgeLabel(ctx context.Context, label string) (def *schema.EdgeLabel, err error) {
	err = s.do(ctx, "get-edge-label", func(ctx context.Context) error {
		def, err = s.edgeLabel(ctx, label)
		return err
	})
	return def, err
}

func (s *Schema) vertexLabel(ctx context.Context, label string) (*schema.VertexLabel, error) {
	return cached(ctx, s, cacheVertexLabel, label, s.m.VertexLabel, schema.MarshalVertexLabel, schema.UnmarshalVertexLabel)
}

func (s *Schema) edgeLabel(ctx context.Context, label string) (*schema.EdgeLabel, error) {
	return cached(ctx, s, cacheEdgeLabel, label, s.m.EdgeLabel, schema.MarshalEdgeLabel, schema.UnmarshalEdgeLabel)
}

// cached reads a definition through the graph cache. Cache failures fall
// through to the backend.
func cached[T any](
	ctx context.Context, s *Schema, kind, name string,
	load func(context.Context, string) (*T, error),
	enc func(T) ([]byte, error),
	dec func([]byte) (*T, error),
) (*T, error) {
	c := s.g.cache
	if c == nil {
		return load(ctx, name)
	}
	key := s.key(kind, name).String()
	b, err := c.Get(ctx, key)
	switch {
	case err != nil:
		s.g.log.WarnContext(ctx, "unigraph: schema cache get failed", "key", key, "error", err)
	case bytes.Equal(b, undefined):
		return nil, nil
	case b != nil:
		if def, err := dec(b); err == nil {
			return def, nil
		}
	}
	def, err := load(ctx, name)
	if err != nil {
		return nil, err
	}
	b = undefined
	if def != nil {
		if b, err = enc(*def); err != nil {
			return def, nil
		}
	}
	if err := c.Set(ctx, key, b, s.g.cacheTTL); err != nil {
		s.g.log.WarnContext(ctx, "unigraph: schema cache set failed", "key", key, "error", err)
	}
	return def, nil
}

// ListVertexLabels implements schema.Manager.
func (s *Schema) ListVertexLabels(ctx context.Context) (labels []string, err error) {
	err = s.do(ctx, "list-vertex-labels", func(ctx context.Context) error {
		labels, err = s.m.ListVertexLabels(ctx)
		return err
	})
	return labels, err
}

// ListEdgeLabels implements schema.Manager.
func (s *Schema) ListEdgeLabels(ctx context.Context) (labels []string, err error) {
	err = s.do(ctx, "list-edge-labels", func(ctx context.Context) error {
		labels, err = s.m.ListEdgeLabels(ctx)
		return err
	})
	return labels, err
}

// CreateIndex implements schema.Manager.
func (s *Schema) CreateIndex(ctx context.Context, def schema.IndexDefinition) error {
	return s.do(ctx, "create-index", func(ctx context.Context) error {
		return s.m.CreateIndex(ctx, def)
	})
}

// DropIndex implements schema.Manager.
func (s *Schema) DropIndex(ctx context.Context, name string) error {
	return s.do(ctx, "drop-index", func(ctx context.Context) error {
		return s.m.DropIndex(ctx, name)
	})
}

// ListIndexes implements schema.Manager.
func (s *Schema) ListIndexes(ctx context.Context) (infos []schema.IndexInfo, err error) {
	err = s.do(ctx, "list-indexes", func(ctx context.Context) error {
		infos, err = s.m.ListIndexes(ctx)
		return err
	})
	return infos, err
}

// GetIndex implements schema.Manager.
func (s *Schema) GetIndex(ctx context.Context, name string) (info *schema.IndexInfo, err error) {
	err = s.do(ctx, "get-index", func(ctx context.Context) error {
		info, err = s.m.GetIndex(ctx, name)
		return err
	})
	return info, err
}

// DefineEdgeType implements schema.Manager.
func (s *Schema) DefineEdgeType(ctx context.Context, def schema.EdgeType) error {
	return s.do(ctx, "define-edge-type", func(ctx context.Context) error {
		return s.m.DefineEdgeType(ctx, def)
	})
}

// ListEdgeTypes implements schema.Manager.
func (s *Schema) ListEdgeTypes(ctx context.Context) (types []schema.EdgeType, err error) {
	err = s.do(ctx, "list-edge-types", func(ctx context.Context) error {
		types, err = s.m.ListEdgeTypes(ctx)
		return err
	})
	return types, err
}

// CreateContainer implements schema.Manager.
func (s *Schema) CreateContainer(ctx context.Context, name string, typ schema.ContainerType) error {
	return s.do(ctx, "create-container", func(ctx context.Context) error {
		return s.m.CreateContainer(ctx, name, typ)
	})
}

// ListContainers implements schema.Manager.
func (s *Schema) ListContainers(ctx context.Context) (cs []schema.Container, err error) {
	err = s.do(ctx, "list-containers", func(ctx context.Context) error {
		cs, err = s.m.ListContainers(ctx)
		return err
	})
	return cs, err
}

// checkVertex validates a vertex write when the graph enforces the schema.
// Full writes get the declared defaults.
func (s *Schema) checkVertex(ctx context.Context, typ string, props unigraph.PropertyMap, patch bool) (unigraph.PropertyMap, error) {
	if !s.g.enforceSchema {
		return props, nil
	}
	def, err := s.vertexLabel(ctx, typ)
	if err != nil || def == nil {
		return props, err
	}
	if patch {
		return props, def.CheckPatch(props)
	}
	props = schema.ApplyDefaults(def.Properties, props)
	return props, def.Check(props)
}

// checkEdge is checkVertex for edges. Endpoint types are checked when
// fromType is set.
func (s *Schema) checkEdge(ctx context.Context, typ, fromType, toType string, props unigraph.PropertyMap, patch bool) (unigraph.PropertyMap, error) {
	if !s.g.enforceSchema {
		return props, nil
	}
	def, err := s.edgeLabel(ctx, typ)
	if err != nil || def == nil {
		return props, err
	}
	if fromType != "" && !def.AllowsEndpoints(fromType, toType) {
		return nil, unigraph.Errorf(unigraph.KindSchemaViolation,
			"edge %q cannot connect %q to %q", typ, fromType, toType)
	}
	if patch {
		return props, def.CheckPatch(props)
	}
	props = schema.ApplyDefaults(def.Properties, props)
	return props, def.Check(props)
}
