package gremlin

import (
	"context"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/schema"
)

// schemaManager keeps definitions as records. With JanusGraph management
// enabled, labels and property keys are also declared on the graph and
// indexes are built as composite or mixed graph indexes.
type schemaManager struct {
	*schema.Emulated
	d *Driver
}

var _ schema.Manager = (*schemaManager)(nil)

func newSchemaManager(d *Driver) *schemaManager {
	return &schemaManager{
		d: d,
		Emulated: schema.NewEmulated(func(ctx context.Context) (schema.Store, error) {
			tx, err := d.begin(ctx)
			if err != nil {
				return nil, err
			}
			return tx, nil
		}),
	}
}

// javaClass is the JanusGraph data type of a property type. Types without
// one are left to dynamic keys.
var javaClass = map[schema.PropertyType]string{
	schema.TypeBool:    "Boolean.class",
	schema.TypeInt32:   "Integer.class",
	schema.TypeInt64:   "Long.class",
	schema.TypeFloat32: "Float.class",
	schema.TypeFloat64: "Double.class",
	schema.TypeString:  "String.class",
	schema.TypeBytes:   "byte[].class",
	schema.TypePoint:   "Geoshape.class",
}

// management wraps body in a management transaction that is rolled back
// when a line throws.
func management(s *script, body func()) {
	s.add("mgmt = graph.openManagement()")
	s.add("try {")
	body()
	s.add("mgmt.commit()")
	s.add("} catch (e) { mgmt.rollback(); throw e }")
}

// keys declares the property keys of defs that are missing.
func keys(s *script, defs []schema.PropertyDefinition) {
	for _, p := range defs {
		class, ok := javaClass[p.Type]
		if !ok {
			continue
		}
		k := s.bind(p.Name)
		s.add("if (!mgmt.containsPropertyKey(%s)) { mgmt.makePropertyKey(%s).dataType(%s).cardinality(Cardinality.SINGLE).make() }", k, k, class)
	}
}

// DefineVertexLabel implements schema.Manager.
func (m *schemaManager) DefineVertexLabel(ctx context.Context, def schema.VertexLabel) error {
	if err := schema.ValidateVertexLabel(def); err != nil {
		return err
	}
	if m.d.management {
		s := newScript()
		management(s, func() {
			l := s.bind(def.Label)
			s.add("if (!mgmt.containsVertexLabel(%s)) { mgmt.makeVertexLabel(%s).make() }", l, l)
			keys(s, def.Properties)
		})
		if _, err := m.d.eval(ctx, s); err != nil {
			return err
		}
	}
	return m.Emulated.DefineVertexLabel(ctx, def)
}

// DefineEdgeLabel implements schema.Manager. Edge labels are created with
// MULTI multiplicity.
func (m *schemaManager) DefineEdgeLabel(ctx context.Context, def schema.EdgeLabel) error {
	if err := schema.ValidateEdgeLabel(def); err != nil {
		return err
	}
	if m.d.management {
		s := newScript()
		management(s, func() {
			l := s.bind(def.Label)
			s.add("if (!mgmt.containsEdgeLabel(%s)) { mgmt.makeEdgeLabel(%s).multiplicity(Multiplicity.MULTI).make() }", l, l)
			keys(s, def.Properties)
		})
		if _, err := m.d.eval(ctx, s); err != nil {
			return err
		}
	}
	return m.Emulated.DefineEdgeLabel(ctx, def)
}

// CreateIndex implements schema.Manager. Exact indexes are composite
// indexes and may be unique; the other types are mixed indexes on the
// configured backend. The label and property keys must already be defined.
func (m *schemaManager) CreateIndex(ctx context.Context, def schema.IndexDefinition) error {
	if !m.d.management {
		return m.Emulated.CreateIndex(ctx, def)
	}
	if err := schema.ValidateIndex(def); err != nil {
		return err
	}
	if def.Unique && def.Type != schema.IndexExact {
		return unigraph.Errorf(unigraph.KindConstraintViolation,
			"index %q: only exact indexes can be unique", def.Name)
	}
	existing, err := m.Emulated.GetIndex(ctx, def.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return unigraph.Errorf(unigraph.KindDuplicateElement, "index %q", def.Name)
	}
	edge, err := m.Emulated.EdgeLabel(ctx, def.Label)
	if err != nil {
		return err
	}
	class, getLabel := "Vertex.class", "getVertexLabel"
	if edge != nil {
		class, getLabel = "Edge.class", "getEdgeLabel"
	}
	s := newScript()
	management(s, func() {
		l := s.bind(def.Label)
		s.add("b = mgmt.buildIndex(%s, %s)", s.bind(def.Name), class)
		s.add("l = mgmt.%s(%s)", getLabel, l)
		s.add(`if (l == null) { throw new IllegalArgumentException("label " + %s + " is not defined") }`, l)
		for _, name := range def.Properties {
			k := s.bind(name)
			s.add("k = mgmt.getPropertyKey(%s)", k)
			s.add(`if (k == null) { throw new IllegalArgumentException("property key " + %s + " is not defined") }`, k)
			if def.Type == schema.IndexText {
				s.add("b.addKey(k, Mapping.TEXT.asParameter())")
			} else {
				s.add("b.addKey(k)")
			}
		}
		s.add("b.indexOnly(l)")
		switch {
		case def.Type != schema.IndexExact:
			s.add("b.buildMixedIndex(%s)", s.bind(m.d.indexBackend))
		case def.Unique:
			s.add("b.unique().buildCompositeIndex()")
		default:
			s.add("b.buildCompositeIndex()")
		}
	})
	if _, err := m.d.eval(ctx, s); err != nil {
		return err
	}
	return m.PutIndex(ctx, schema.IndexInfo{IndexDefinition: def, Status: schema.StatusPending})
}

// DropIndex implements schema.Manager. The graph index is disabled; its
// removal is left to a JanusGraph maintenance job.
func (m *schemaManager) DropIndex(ctx context.Context, name string) error {
	if m.d.management {
		info, err := m.Emulated.GetIndex(ctx, name)
		if err != nil {
			return err
		}
		if info == nil {
			return unigraph.Errorf(unigraph.KindElementNotFound, "index %q", name)
		}
		s := newScript()
		management(s, func() {
			s.add("i = mgmt.getGraphIndex(%s)", s.bind(name))
			s.add("if (i != null) { mgmt.updateIndex(i, SchemaAction.DISABLE_INDEX) }")
		})
		if _, err := m.d.eval(ctx, s); err != nil {
			return err
		}
	}
	return m.Emulated.DropIndex(ctx, name)
}

// ListIndexes implements schema.Manager.
func (m *schemaManager) ListIndexes(ctx context.Context) ([]schema.IndexInfo, error) {
	infos, err := m.Emulated.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.refresh(ctx, infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// GetIndex implements schema.Manager.
func (m *schemaManager) GetIndex(ctx context.Context, name string) (*schema.IndexInfo, error) {
	info, err := m.Emulated.GetIndex(ctx, name)
	if err != nil || info == nil {
		return info, err
	}
	infos := []schema.IndexInfo{*info}
	if err := m.refresh(ctx, infos); err != nil {
		return nil, err
	}
	return &infos[0], nil
}

// refresh replaces the recorded status of infos with the state of the
// graph indexes: active when every key is enabled, declared when the index
// is missing or disabled and pending otherwise.
func (m *schemaManager) refresh(ctx context.Context, infos []schema.IndexInfo) error {
	if !m.d.management || len(infos) == 0 {
		return nil
	}
	names := make([]any, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	s := newScript()
	s.add("mgmt = graph.openManagement()")
	s.add("r = %s.collect { n -> i = mgmt.getGraphIndex(n); "+
		"st = i == null ? [] : i.getFieldKeys().collect { i.getIndexStatus(it).toString() }.unique(); "+
		"[n, st.isEmpty() ? 'MISSING' : st == ['ENABLED'] ? 'ENABLED' : st.contains('DISABLED') ? 'DISABLED' : 'PENDING'] }",
		s.bind(typed{"g:List", names}))
	s.add("mgmt.rollback()")
	s.add("r")
	xs, err := m.d.eval(ctx, s)
	if err != nil {
		return err
	}
	status := make(map[string]string, len(xs))
	for _, x := range xs {
		pair, ok := x.([]any)
		if !ok || len(pair) != 2 {
			return unigraph.Errorf(unigraph.KindInternal, "gremlin: unexpected index status %v", x)
		}
		n, _ := pair[0].(string)
		st, _ := pair[1].(string)
		status[n] = st
	}
	for i := range infos {
		switch status[infos[i].Name] {
		case "ENABLED":
			infos[i].Status = schema.StatusActive
		case "PENDING":
			infos[i].Status = schema.StatusPending
		case "MISSING", "DISABLED":
			infos[i].Status = schema.StatusDeclared
		default:
			return unigraph.Errorf(unigraph.KindInternal, "gremlin: no status for index %q", infos[i].Name)
		}
	}
	return nil
}
