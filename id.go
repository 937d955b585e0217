package unigraph

import (
	"strconv"

	"github.com/google/uuid"
)

type idKind uint8

const (
	idNone idKind = iota
	idString
	idInt64
	idUUID
)

// ElementID identifies a vertex or an edge. Backends disagree on native key
// types, so the identifier is a closed variant over string, 64-bit integer
// and UUID values. There is no conversion between variants: an identifier is
// meaningful only to the adapter that produced it.
//
// ElementID is comparable and may be used as a map key.
type ElementID struct {
	kind idKind
	s    string
	i    int64
	u    uuid.UUID
}

// StringID returns a string-valued identifier.
func StringID(s string) ElementID { return ElementID{kind: idString, s: s} }

// Int64ID returns an integer-valued identifier.
func Int64ID(i int64) ElementID { return ElementID{kind: idInt64, i: i} }

// UUIDID returns a UUID-valued identifier.
func UUIDID(u uuid.UUID) ElementID { return ElementID{kind: idUUID, u: u} }

// IsZero reports whether the identifier holds no variant.
func (id ElementID) IsZero() bool { return id.kind == idNone }

// AsString returns the string variant.
func (id ElementID) AsString() (string, bool) { return id.s, id.kind == idString }

// AsInt64 returns the integer variant.
func (id ElementID) AsInt64() (int64, bool) { return id.i, id.kind == idInt64 }

// AsUUID returns the UUID variant.
func (id ElementID) AsUUID() (uuid.UUID, bool) { return id.u, id.kind == idUUID }

// String returns a display form. It is not a serialization format.
func (id ElementID) String() string {
	switch id.kind {
	case idString:
		return strconv.Quote(id.s)
	case idInt64:
		return strconv.FormatInt(id.i, 10)
	case idUUID:
		return id.u.String()
	default:
		return "<none>"
	}
}

// Native returns the Go value of the active variant: string, int64 or
// uuid.UUID, or nil for the zero identifier.
func (id ElementID) Native() any {
	switch id.kind {
	case idString:
		return id.s
	case idInt64:
		return id.i
	case idUUID:
		return id.u
	default:
		return nil
	}
}
