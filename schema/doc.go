// Package schema provides the structural metadata layer of the graph API:
// vertex and edge label definitions, indexes, edge-type constraints and
// containers.
//
// Backends differ widely in what they enforce. Every adapter exposes the
// same Manager; what a backend cannot store natively is kept by the Emulated
// manager as records in a reserved metadata namespace (MetadataType). Indexes
// that a backend cannot build are accepted and reported with StatusDeclared.
//
// # Definitions
//
// Label definitions are built from property builders:
//
//	person := schema.VertexLabel{
//	    Label: "person",
//	    Properties: []schema.PropertyDefinition{
//	        schema.String("name").Required().Definition(),
//	        schema.Int64("age").Definition(),
//	        schema.String("email").Unique().Definition(),
//	    },
//	}
//
// Indexes use the index builder:
//
//	schema.Index("person_email").On("person").Fields("email").Unique().Definition()
//
// # Records
//
// Emulated definitions are encoded with msgpack and stored as vertices of
// type MetadataType with the properties kind, name and payload. The record
// layout is internal to adapters.
package schema
