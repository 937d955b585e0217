package schema

import (
	"context"
	"errors"
	"slices"

	"github.com/syssam/unigraph"
)

// Store is the slice of a transaction the emulated manager needs. Every
// adapter transaction satisfies it.
type Store interface {
	FindVertices(ctx context.Context, opts unigraph.FindVerticesOptions) ([]unigraph.Vertex, error)
	CreateVertex(ctx context.Context, typ string, labels []string, props unigraph.PropertyMap) (*unigraph.Vertex, error)
	UpdateVertex(ctx context.Context, id unigraph.ElementID, props unigraph.PropertyMap) (*unigraph.Vertex, error)
	DeleteVertex(ctx context.Context, id unigraph.ElementID, deleteEdges bool) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BeginFunc opens a read-write transaction for metadata access.
type BeginFunc func(ctx context.Context) (Store, error)

// Emulated implements Manager by persisting every definition as a record
// vertex of type MetadataType. Indexes are reported as declared; unique
// indexes are refused with constraint-violation because nothing enforces
// them. Adapters embed Emulated and override what their backend supports.
type Emulated struct {
	begin BeginFunc
}

// NewEmulated returns an emulated manager storing records through begin.
func NewEmulated(begin BeginFunc) *Emulated {
	return &Emulated{begin: begin}
}

var _ Manager = (*Emulated)(nil)

// DefineVertexLabel implements Manager.
func (m *Emulated) DefineVertexLabel(ctx context.Context, def VertexLabel) error {
	if err := ValidateVertexLabel(def); err != nil {
		return err
	}
	b, err := MarshalVertexLabel(def)
	if err != nil {
		return unigraph.WrapError(unigraph.KindInternal, err)
	}
	return m.Put(ctx, Record{Kind: KindVertexLabel, Name: def.Label, Payload: b})
}

// DefineEdgeLabel implements Manager.
func (m *Emulated) DefineEdgeLabel(ctx context.Context, def EdgeLabel) error {
	if err := ValidateEdgeLabel(def); err != nil {
		return err
	}
	b, err := MarshalEdgeLabel(def)
	if err != nil {
		return unigraph.WrapError(unigraph.KindInternal, err)
	}
	return m.Put(ctx, Record{Kind: KindEdgeLabel, Name: def.Label, Payload: b})
}

// VertexLabel implements Manager.
func (m *Emulated) VertexLabel(ctx context.Context, label string) (*VertexLabel, error) {
	r, err := m.Get(ctx, KindVertexLabel, label)
	if err != nil || r == nil {
		return nil, err
	}
	return UnmarshalVertexLabel(r.Payload)
}

// EdgeLabel implements Manager.
func (m *Emulated) EdgeLabel(ctx context.Context, label string) (*EdgeLabel, error) {
	r, err := m.Get(ctx, KindEdgeLabel, label)
	if err != nil || r == nil {
		return nil, err
	}
	return UnmarshalEdgeLabel(r.Payload)
}

// ListVertexLabels implements Manager.
func (m *Emulated) ListVertexLabels(ctx context.Context) ([]string, error) {
	return m.names(ctx, KindVertexLabel)
}

// ListEdgeLabels implements Manager.
func (m *Emulated) ListEdgeLabels(ctx context.Context) ([]string, error) {
	return m.names(ctx, KindEdgeLabel)
}

// CreateIndex implements Manager. The index is recorded as declared.
func (m *Emulated) CreateIndex(ctx context.Context, def IndexDefinition) error {
	if err := ValidateIndex(def); err != nil {
		return err
	}
	if def.Unique {
		return unigraph.Errorf(unigraph.KindConstraintViolation,
			"index %q: uniqueness cannot be enforced by this backend", def.Name)
	}
	return m.PutIndex(ctx, IndexInfo{IndexDefinition: def, Status: StatusDeclared})
}

// PutIndex records an index with an explicit status.
func (m *Emulated) PutIndex(ctx context.Context, info IndexInfo) error {
	b, err := marshal(info)
	if err != nil {
		return unigraph.WrapError(unigraph.KindInternal, err)
	}
	return m.Put(ctx, Record{Kind: KindIndex, Name: info.Name, Payload: b})
}

// DropIndex implements Manager. Dropping an unknown index fails with
// element-not-found.
func (m *Emulated) DropIndex(ctx context.Context, name string) error {
	found, err := m.Delete(ctx, KindIndex, name)
	if err != nil {
		return err
	}
	if !found {
		return unigraph.Errorf(unigraph.KindElementNotFound, "index %q", name)
	}
	return nil
}

// ListIndexes implements Manager.
func (m *Emulated) ListIndexes(ctx context.Context) ([]IndexInfo, error) {
	recs, err := m.List(ctx, KindIndex)
	if err != nil {
		return nil, err
	}
	out := make([]IndexInfo, 0, len(recs))
	for _, r := range recs {
		var info IndexInfo
		if err := unmarshal(r.Payload, &info); err != nil {
			return nil, unigraph.WrapError(unigraph.KindInternal, err)
		}
		out = append(out, info)
	}
	return out, nil
}

// GetIndex implements Manager.
func (m *Emulated) GetIndex(ctx context.Context, name string) (*IndexInfo, error) {
	r, err := m.Get(ctx, KindIndex, name)
	if err != nil || r == nil {
		return nil, err
	}
	var info IndexInfo
	if err := unmarshal(r.Payload, &info); err != nil {
		return nil, unigraph.WrapError(unigraph.KindInternal, err)
	}
	return &info, nil
}

// DefineEdgeType implements Manager.
func (m *Emulated) DefineEdgeType(ctx context.Context, def EdgeType) error {
	if def.Collection == "" {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "edge type: collection is required")
	}
	b, err := marshal(def)
	if err != nil {
		return unigraph.WrapError(unigraph.KindInternal, err)
	}
	return m.Put(ctx, Record{Kind: KindEdgeType, Name: def.Collection, Payload: b})
}

// ListEdgeTypes implements Manager.
func (m *Emulated) ListEdgeTypes(ctx context.Context) ([]EdgeType, error) {
	recs, err := m.List(ctx, KindEdgeType)
	if err != nil {
		return nil, err
	}
	out := make([]EdgeType, 0, len(recs))
	for _, r := range recs {
		var et EdgeType
		if err := unmarshal(r.Payload, &et); err != nil {
			return nil, unigraph.WrapError(unigraph.KindInternal, err)
		}
		out = append(out, et)
	}
	return out, nil
}

// CreateContainer implements Manager. Containers are declared only.
func (m *Emulated) CreateContainer(ctx context.Context, name string, typ ContainerType) error {
	if name == "" || name == MetadataType {
		return unigraph.Errorf(unigraph.KindSchemaViolation, "container name %q is reserved or empty", name)
	}
	b, err := marshal(Container{Name: name, Type: typ})
	if err != nil {
		return unigraph.WrapError(unigraph.KindInternal, err)
	}
	return m.Put(ctx, Record{Kind: KindContainer, Name: name, Payload: b})
}

// ListContainers implements Manager. Element counts are not reported.
func (m *Emulated) ListContainers(ctx context.Context) ([]Container, error) {
	recs, err := m.List(ctx, KindContainer)
	if err != nil {
		return nil, err
	}
	out := make([]Container, 0, len(recs))
	for _, r := range recs {
		var c Container
		if err := unmarshal(r.Payload, &c); err != nil {
			return nil, unigraph.WrapError(unigraph.KindInternal, err)
		}
		c.ElementCount = nil
		out = append(out, c)
	}
	return out, nil
}

// Put upserts a record keyed by kind and name.
func (m *Emulated) Put(ctx context.Context, r Record) error {
	return m.inTx(ctx, func(s Store) error {
		existing, err := find(ctx, s, r.Kind, r.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			_, err = s.UpdateVertex(ctx, existing[0].ID, r.Properties())
			return err
		}
		_, err = s.CreateVertex(ctx, MetadataType, nil, r.Properties())
		return err
	})
}

// Get returns the record or nil.
func (m *Emulated) Get(ctx context.Context, kind RecordKind, name string) (*Record, error) {
	var rec *Record
	err := m.inTx(ctx, func(s Store) error {
		vs, err := find(ctx, s, kind, name)
		if err != nil || len(vs) == 0 {
			return err
		}
		r, err := RecordFromVertex(vs[0])
		rec = &r
		return err
	})
	return rec, err
}

// List returns every record of the kind ordered by name.
func (m *Emulated) List(ctx context.Context, kind RecordKind) ([]Record, error) {
	var recs []Record
	err := m.inTx(ctx, func(s Store) error {
		vs, err := find(ctx, s, kind, "")
		if err != nil {
			return err
		}
		for _, v := range vs {
			r, err := RecordFromVertex(v)
			if err != nil {
				return err
			}
			recs = append(recs, r)
		}
		return nil
	})
	slices.SortFunc(recs, func(a, b Record) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return recs, err
}

// Delete removes a record, reporting whether it existed.
func (m *Emulated) Delete(ctx context.Context, kind RecordKind, name string) (bool, error) {
	var found bool
	err := m.inTx(ctx, func(s Store) error {
		vs, err := find(ctx, s, kind, name)
		if err != nil {
			return err
		}
		for _, v := range vs {
			if err := s.DeleteVertex(ctx, v.ID, true); err != nil {
				return err
			}
			found = true
		}
		return nil
	})
	return found, err
}

func (m *Emulated) names(ctx context.Context, kind RecordKind) ([]string, error) {
	recs, err := m.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	return names, nil
}

func (m *Emulated) inTx(ctx context.Context, fn func(Store) error) error {
	s, err := m.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		if rerr := s.Rollback(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return s.Commit(ctx)
}

func find(ctx context.Context, s Store, kind RecordKind, name string) ([]unigraph.Vertex, error) {
	filters := []unigraph.FilterCondition{unigraph.Field(propKind).EQ(unigraph.String(string(kind)))}
	if name != "" {
		filters = append(filters, unigraph.Field(propName).EQ(unigraph.String(name)))
	}
	return s.FindVertices(ctx, unigraph.FindVerticesOptions{Type: MetadataType, Filters: filters})
}
