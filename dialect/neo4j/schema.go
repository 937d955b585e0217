package neo4j

import (
	"context"
	"strings"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/dialect"
	"github.com/syssam/unigraph/schema"
)

// schemaManager keeps label definitions, edge types and containers as
// records and maps indexes to native Neo4j indexes and constraints.
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

// ddl runs one schema statement in its own transaction. Neo4j refuses
// schema changes in transactions that also write data.
func (m *schemaManager) ddl(ctx context.Context, cypher string, params map[string]any) (*result, error) {
	tx, err := m.d.begin(ctx, dialect.TxOptions{})
	if err != nil {
		return nil, err
	}
	res, err := tx.run(ctx, cypher, params)
	if err != nil {
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil {
			m.d.log.Warn("neo4j: rollback after schema statement failed", "error", rerr)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateIndex implements schema.Manager. Unique indexes become uniqueness
// constraints. Labels defined as edge labels are indexed on relationships.
func (m *schemaManager) CreateIndex(ctx context.Context, def schema.IndexDefinition) error {
	if err := schema.ValidateIndex(def); err != nil {
		return err
	}
	edge, err := m.EdgeLabel(ctx, def.Label)
	if err != nil {
		return err
	}
	pattern := "(e" + labelPattern(def.Label) + ")"
	if edge != nil {
		pattern = "()-[e" + labelPattern(def.Label) + "]-()"
	}
	props := make([]string, len(def.Properties))
	for i, p := range def.Properties {
		props[i] = "e." + quote(p)
	}
	on := "(" + strings.Join(props, ", ") + ")"
	var cypher string
	switch {
	case def.Unique:
		cypher = "CREATE CONSTRAINT " + quote(def.Name) + " FOR " + pattern + " REQUIRE " + on + " IS UNIQUE"
	case def.Type == schema.IndexText:
		cypher = "CREATE TEXT INDEX " + quote(def.Name) + " FOR " + pattern + " ON " + on
	case def.Type == schema.IndexGeospatial:
		cypher = "CREATE POINT INDEX " + quote(def.Name) + " FOR " + pattern + " ON " + on
	default:
		cypher = "CREATE RANGE INDEX " + quote(def.Name) + " FOR " + pattern + " ON " + on
	}
	_, err = m.ddl(ctx, cypher, nil)
	return err
}

// DropIndex implements schema.Manager.
func (m *schemaManager) DropIndex(ctx context.Context, name string) error {
	res, err := m.ddl(ctx, "SHOW INDEXES YIELD name, owningConstraint WHERE name = $name RETURN owningConstraint", map[string]any{"name": name})
	if err != nil {
		return err
	}
	if col := column(res); len(col) > 0 {
		if c, ok := col[0].(string); ok && c != "" {
			_, err = m.ddl(ctx, "DROP CONSTRAINT "+quote(c), nil)
			return err
		}
		_, err = m.ddl(ctx, "DROP INDEX "+quote(name), nil)
		return err
	}
	res, err = m.ddl(ctx, "SHOW CONSTRAINTS YIELD name WHERE name = $name RETURN name", map[string]any{"name": name})
	if err != nil {
		return err
	}
	if len(column(res)) == 0 {
		return unigraph.Errorf(unigraph.KindElementNotFound, "index %q", name)
	}
	_, err = m.ddl(ctx, "DROP CONSTRAINT "+quote(name), nil)
	return err
}

// ListIndexes implements schema.Manager. Token lookup indexes are omitted.
func (m *schemaManager) ListIndexes(ctx context.Context) ([]schema.IndexInfo, error) {
	res, err := m.ddl(ctx, "SHOW INDEXES YIELD name, type, labelsOrTypes, properties, state, owningConstraint"+
		" WHERE type <> 'LOOKUP'"+
		" RETURN name, type, labelsOrTypes, properties, state, owningConstraint ORDER BY name", nil)
	if err != nil {
		return nil, err
	}
	out := make([]schema.IndexInfo, 0, len(res.records))
	for _, r := range res.records {
		if len(r.Values) < 6 {
			return nil, unigraph.Errorf(unigraph.KindInternal, "neo4j: short SHOW INDEXES record")
		}
		name, _ := r.Values[0].(string)
		typ, _ := r.Values[1].(string)
		state, _ := r.Values[4].(string)
		info := schema.IndexInfo{
			IndexDefinition: schema.IndexDefinition{
				Name:       name,
				Properties: stringList(r.Values[3]),
				Type:       indexType(typ),
				Unique:     r.Values[5] != nil,
			},
			Status: indexStatus(state),
		}
		if labels := stringList(r.Values[2]); len(labels) > 0 {
			info.Label = labels[0]
		}
		out = append(out, info)
	}
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

func indexType(t string) schema.IndexType {
	switch t {
	case "TEXT", "FULLTEXT":
		return schema.IndexText
	case "POINT":
		return schema.IndexGeospatial
	}
	return schema.IndexRange
}

func indexStatus(state string) schema.IndexStatus {
	switch state {
	case "ONLINE":
		return schema.StatusActive
	case "POPULATING":
		return schema.StatusPending
	}
	return schema.StatusDeclared
}

func stringList(x any) []string {
	xs, _ := x.([]any)
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
