package schema

import "github.com/syssam/unigraph"

// PropertyBuilder builds a PropertyDefinition.
type PropertyBuilder struct {
	def PropertyDefinition
}

// Property returns a builder for a property of the given type.
func Property(name string, typ PropertyType) *PropertyBuilder {
	return &PropertyBuilder{def: PropertyDefinition{Name: name, Type: typ}}
}

// Bool returns a builder for a boolean property.
func Bool(name string) *PropertyBuilder { return Property(name, TypeBool) }

// Int32 returns a builder for a 32-bit integer property.
func Int32(name string) *PropertyBuilder { return Property(name, TypeInt32) }

// Int64 returns a builder for a 64-bit integer property.
func Int64(name string) *PropertyBuilder { return Property(name, TypeInt64) }

// Float64 returns a builder for a float property.
func Float64(name string) *PropertyBuilder { return Property(name, TypeFloat64) }

// String returns a builder for a string property.
func String(name string) *PropertyBuilder { return Property(name, TypeString) }

// Bytes returns a builder for a byte sequence property.
func Bytes(name string) *PropertyBuilder { return Property(name, TypeBytes) }

// Date returns a builder for a date property.
func Date(name string) *PropertyBuilder { return Property(name, TypeDate) }

// Datetime returns a builder for a datetime property.
func Datetime(name string) *PropertyBuilder { return Property(name, TypeDatetime) }

// Point returns a builder for a point property.
func Point(name string) *PropertyBuilder { return Property(name, TypePoint) }

// Required marks the property as mandatory.
func (b *PropertyBuilder) Required() *PropertyBuilder {
	b.def.Required = true
	return b
}

// Unique marks the property values as unique within the label.
func (b *PropertyBuilder) Unique() *PropertyBuilder {
	b.def.Unique = true
	return b
}

// Default sets the default value.
func (b *PropertyBuilder) Default(v unigraph.Value) *PropertyBuilder {
	b.def.Default = &v
	return b
}

// Definition returns the built definition.
func (b *PropertyBuilder) Definition() PropertyDefinition {
	return b.def
}

// IndexBuilder builds an IndexDefinition.
type IndexBuilder struct {
	def IndexDefinition
}

// Index returns a builder for a named index.
func Index(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// On sets the indexed label.
func (b *IndexBuilder) On(label string) *IndexBuilder {
	b.def.Label = label
	return b
}

// Fields sets the indexed properties.
func (b *IndexBuilder) Fields(names ...string) *IndexBuilder {
	b.def.Properties = append(b.def.Properties, names...)
	return b
}

// Type sets the index type.
func (b *IndexBuilder) Type(t IndexType) *IndexBuilder {
	b.def.Type = t
	return b
}

// Unique requests uniqueness enforcement.
func (b *IndexBuilder) Unique() *IndexBuilder {
	b.def.Unique = true
	return b
}

// Container sets the storage container.
func (b *IndexBuilder) Container(name string) *IndexBuilder {
	b.def.Container = name
	return b
}

// Definition returns the built definition.
func (b *IndexBuilder) Definition() IndexDefinition {
	return b.def
}
