package schema

import (
	"context"
	"fmt"

	"github.com/syssam/unigraph"
)

// MetadataType is the reserved vertex type (or collection) holding emulated
// schema records. Adapters hide it from element queries.
const MetadataType = "unigraph_schema"

// PropertyType is the declared type of a property.
type PropertyType uint8

// Property types.
const (
	TypeBool PropertyType = iota
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
	TypeDate
	TypeDatetime
	TypePoint
	TypeList
	TypeMap
)

var propertyTypeNames = [...]string{
	TypeBool:     "bool",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeString:   "string",
	TypeBytes:    "bytes",
	TypeDate:     "date",
	TypeDatetime: "datetime",
	TypePoint:    "point",
	TypeList:     "list",
	TypeMap:      "map",
}

func (t PropertyType) String() string {
	if int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return fmt.Sprintf("PropertyType(%d)", t)
}

// Accepts reports whether a value of kind k may be stored under the type.
// Integer types accept narrower integers; float types accept integers.
func (t PropertyType) Accepts(k unigraph.Kind) bool {
	switch t {
	case TypeBool:
		return k == unigraph.KindBool
	case TypeInt32:
		switch k {
		case unigraph.KindInt8, unigraph.KindInt16, unigraph.KindInt32, unigraph.KindUint8, unigraph.KindUint16:
			return true
		}
	case TypeInt64:
		return k.IsInteger() && k != unigraph.KindUint64
	case TypeFloat32, TypeFloat64:
		return k.IsNumeric()
	case TypeString:
		return k == unigraph.KindString
	case TypeBytes:
		return k == unigraph.KindBytes
	case TypeDate:
		return k == unigraph.KindDate
	case TypeDatetime:
		return k == unigraph.KindDatetime
	case TypePoint:
		return k == unigraph.KindPoint
	case TypeList, TypeMap:
		// Collections have no Value variant; backends report them as strings.
		return true
	}
	return false
}

// PropertyDefinition declares one property of a label.
type PropertyDefinition struct {
	Name     string
	Type     PropertyType
	Required bool
	Unique   bool
	Default  *unigraph.Value
}

// VertexLabel defines a vertex type.
type VertexLabel struct {
	Label      string
	Properties []PropertyDefinition
	Container  string // Optional storage container (e.g. a collection).
}

// EdgeLabel defines an edge type.
type EdgeLabel struct {
	Label      string
	Properties []PropertyDefinition
	FromLabels []string // Allowed source vertex types, empty for any.
	ToLabels   []string // Allowed target vertex types, empty for any.
	Container  string
}

// IndexType is the kind of an index.
type IndexType uint8

// Index types.
const (
	IndexExact IndexType = iota
	IndexRange
	IndexText
	IndexGeospatial
)

func (t IndexType) String() string {
	switch t {
	case IndexRange:
		return "range"
	case IndexText:
		return "text"
	case IndexGeospatial:
		return "geospatial"
	}
	return "exact"
}

// IndexDefinition declares an index over properties of one label.
type IndexDefinition struct {
	Name       string
	Label      string
	Properties []string
	Type       IndexType
	Unique     bool
	Container  string
}

// IndexStatus reports whether an index is enforced by the backend.
type IndexStatus uint8

// Index statuses.
const (
	// StatusActive indexes are built and used by the backend.
	StatusActive IndexStatus = iota
	// StatusPending indexes exist on the backend but are still being built.
	StatusPending
	// StatusDeclared indexes are recorded but not enforced by the backend.
	StatusDeclared
)

func (s IndexStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDeclared:
		return "declared"
	}
	return "active"
}

// IndexInfo is an index definition with its status.
type IndexInfo struct {
	IndexDefinition
	Status IndexStatus
}

// EdgeType constrains which vertex containers an edge container connects.
type EdgeType struct {
	Collection      string
	FromCollections []string
	ToCollections   []string
}

// ContainerType distinguishes vertex and edge containers.
type ContainerType uint8

// Container types.
const (
	VertexContainer ContainerType = iota
	EdgeContainer
)

func (t ContainerType) String() string {
	if t == EdgeContainer {
		return "edge"
	}
	return "vertex"
}

// Container is a storage namespace (a collection, or a label on backends
// without collections).
type Container struct {
	Name         string
	Type         ContainerType
	ElementCount *uint64 // Nil when the backend cannot count cheaply.
}

// Manager is the schema API offered by every adapter.
type Manager interface {
	DefineVertexLabel(ctx context.Context, def VertexLabel) error
	DefineEdgeLabel(ctx context.Context, def EdgeLabel) error
	// VertexLabel returns nil when the label is not defined.
	VertexLabel(ctx context.Context, label string) (*VertexLabel, error)
	// EdgeLabel returns nil when the label is not defined.
	EdgeLabel(ctx context.Context, label string) (*EdgeLabel, error)
	ListVertexLabels(ctx context.Context) ([]string, error)
	ListEdgeLabels(ctx context.Context) ([]string, error)

	CreateIndex(ctx context.Context, def IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]IndexInfo, error)
	// GetIndex returns nil when no index has the name.
	GetIndex(ctx context.Context, name string) (*IndexInfo, error)

	DefineEdgeType(ctx context.Context, def EdgeType) error
	ListEdgeTypes(ctx context.Context) ([]EdgeType, error)

	CreateContainer(ctx context.Context, name string, typ ContainerType) error
	ListContainers(ctx context.Context) ([]Container, error)
}
