// Package unigraph defines the vendor-neutral graph model shared by every
// backend adapter: property values, element identifiers, vertices, edges,
// paths, filters, configuration and the closed error taxonomy.
//
// # Values
//
// A Value holds exactly one variant: a scalar, a temporal value (date, time,
// datetime with optional UTC offset, duration) or a geospatial value (point,
// line string, polygon). Temporal and geospatial constructors validate their
// input and fail with KindInvalidPropertyType instead of clamping.
//
// # Identifiers
//
// ElementID is a closed variant over string, int64 and UUID identifiers.
// Identifiers are opaque outside the adapter that produced them.
//
// # Errors
//
// Every failure is an *Error carrying one ErrorKind. Callers match kinds with
// errors.Is against the per-kind sentinels or with KindOf:
//
//	if errors.Is(err, unigraph.ErrTransactionConflict) {
//		// retry the whole transaction
//	}
//
// Absent elements on read paths are reported as nil results, not errors.
// Nothing in this module retries on its own.
package unigraph
