package arangodb

import (
	"cmp"
	"context"
	"slices"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// schemaManager maps labels and containers to collections and indexes to
// native indexes. Label definitions and edge types are kept as records.
type schemaManager struct {
	*schema.Emulated
	d *Driver
}

var _ schema.Manager = (*schemaManager)(nil)

func newSchemaManager(d *Driver) *schemaManager {
	return &schemaManager{
		d: d,
		Emulated: schema.NewEmulated(func(ctx context.Context) (schema.Store, error) {
			tx, err := d.begin(ctx, dialect.TxOptions{})
			if err != nil {
				return nil, err
			}
			return tx, nil
		}),
	}
}

// DefineVertexLabel implements schema.Manager. The document collection of
// the label is created when missing.
func (m *schemaManager) DefineVertexLabel(ctx context.Context, def schema.VertexLabel) error {
	if err := schema.ValidateVertexLabel(def); err != nil {
		return err
	}
	if err := m.d.ensureCollection(ctx, cmp.Or(def.Container, def.Label), false); err != nil {
		return err
	}
	return m.Emulated.DefineVertexLabel(ctx, def)
}

// DefineEdgeLabel implements schema.Manager. The edge collection of the
// label is created when missing.
func (m *schemaManager) DefineEdgeLabel(ctx context.Context, def schema.EdgeLabel) error {
	if err := schema.ValidateEdgeLabel(def); err != nil {
		return err
	}
	if err := m.d.ensureCollection(ctx, cmp.Or(def.Container, def.Label), true); err != nil {
		return err
	}
	return m.Emulated.DefineEdgeLabel(ctx, def)
}

// DefineEdgeType implements schema.Manager.
func (m *schemaManager) DefineEdgeType(ctx context.Context, def schema.EdgeType) error {
	if def.Collection != "" {
		if err := m.d.ensureCollection(ctx, def.Collection, true); err != nil {
			return err
		}
	}
	return m.Emulated.DefineEdgeType(ctx, def)
}

// CreateContainer implements schema.Manager with a native collection.
func (m *schemaManager) CreateContainer(ctx context.Context, name string, typ schema.ContainerType) error {
	if name == "" || name == schema.MetadataType {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "container name %q is reserved or empty", name)
	}
	cols, err := m.d.refresh(ctx)
	if err != nil {
		return err
	}
	if _, ok := cols[name]; ok {
		return unigraph.Errorf(unigraph.KindDuplicateElement, "arangodb: collection %q exists", name)
	}
	return convert(m.d.db.createCollection(ctx, name, typ == schema.EdgeContainer))
}

// ListContainers implements schema.Manager. Element counts come from the
// collection counters.
func (m *schemaManager) ListContainers(ctx context.Context) ([]schema.Container, error) {
	names, cols, err := m.collections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Container, 0, len(names))
	for _, name := range names {
		n, err := m.d.db.count(ctx, name)
		if err != nil {
			return nil, convert(err)
		}
		c := schema.Container{Name: name, Type: schema.VertexContainer, ElementCount: unigraph.Ptr(uint64(n))}
		if cols[name] {
			c.Type = schema.EdgeContainer
		}
		out = append(out, c)
	}
	return out, nil
}

// collections returns the sorted user collections.
func (m *schemaManager) collections(ctx context.Context) ([]string, map[string]bool, error) {
	cols, err := m.d.refresh(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		if name != schema.MetadataType {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, cols, nil
}

// CreateIndex implements schema.Manager. Exact and range indexes are
// persistent indexes, text indexes are fulltext indexes and geospatial
// indexes are GeoJSON geo indexes.
func (m *schemaManager) CreateIndex(ctx context.Context, def schema.IndexDefinition) error {
	if err := schema.ValidateIndex(def); err != nil {
		return err
	}
	coll := cmp.Or(def.Container, def.Label)
	cols, err := m.d.refresh(ctx)
	if err != nil {
		return err
	}
	if _, ok := cols[coll]; !ok {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "arangodb: no collection %q", coll)
	}
	if def.Type == schema.IndexText && len(def.Properties) != 1 {
		return unigraph.Errorf(unigraph.KindUnsupportedOperation, "arangodb: text index %q must cover one property", def.Name)
	}
	existing, err := m.GetIndex(ctx, def.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return unigraph.Errorf(unigraph.KindDuplicateElement, "index %q", def.Name)
	}
	return convert(m.d.db.ensureIndex(ctx, coll, def))
}

// DropIndex implements schema.Manager.
func (m *schemaManager) DropIndex(ctx context.Context, name string) error {
	names, _, err := m.collections(ctx)
	if err != nil {
		return err
	}
	for _, coll := range names {
		ok, err := m.d.db.dropIndex(ctx, coll, name)
		if err != nil {
			return convert(err)
		}
		if ok {
			return nil
		}
	}
	return unigraph.Errorf(unigraph.KindElementNotFound, "index %q", name)
}

// ListIndexes implements schema.Manager.
func (m *schemaManager) ListIndexes(ctx context.Context) ([]schema.IndexInfo, error) {
	names, _, err := m.collections(ctx)
	if err != nil {
		return nil, err
	}
	var out []schema.IndexInfo
	for _, coll := range names {
		infos, err := m.d.db.indexes(ctx, coll)
		if err != nil {
			return nil, convert(err)
		}
		out = append(out, infos...)
	}
	slices.SortFunc(out, func(a, b schema.IndexInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// GetIndex implements schema.Manager.
func (m *schemaManager) GetIndex(ctx context.Context, name string) (*schema.IndexInfo, error) {
	infos, err := m.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Name == name {
			return &infos[i], nil
		}
	}
	return nil, nil
}
