package schema

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/unigraph"
)

// RecordKind names the kind of an emulated schema record.
type RecordKind string

// Record kinds.
const (
	KindVertexLabel RecordKind = "vertex-label"
	KindEdgeLabel   RecordKind = "edge-label"
	KindIndex       RecordKind = "index"
	KindEdgeType    RecordKind = "edge-type"
	KindContainer   RecordKind = "container"
)

// Record property names.
const (
	propKind    = "kind"
	propName    = "name"
	propPayload = "payload"
)

// wireValue is the msgpack layout of a unigraph.Value.
type wireValue struct {
	K  uint8               `msgpack:"k"`
	B  bool                `msgpack:"b,omitempty"`
	I  int64               `msgpack:"i,omitempty"`
	U  uint64              `msgpack:"u,omitempty"`
	F  float64             `msgpack:"f,omitempty"`
	S  string              `msgpack:"s,omitempty"`
	Y  []byte              `msgpack:"y,omitempty"`
	D  *unigraph.Date       `msgpack:"d,omitempty"`
	T  *unigraph.Time       `msgpack:"t,omitempty"`
	DT *unigraph.Datetime   `msgpack:"dt,omitempty"`
	DU *unigraph.Duration   `msgpack:"du,omitempty"`
	P  *unigraph.Point      `msgpack:"p,omitempty"`
	L  *unigraph.LineString `msgpack:"l,omitempty"`
	G  *unigraph.Polygon    `msgpack:"g,omitempty"`
}

func encodeValue(v unigraph.Value) wireValue {
	w := wireValue{K: uint8(v.Kind())}
	switch x := v.Interface().(type) {
	case bool:
		w.B = x
	case float32:
		w.F = float64(x)
	case float64:
		w.F = x
	case uint64:
		w.U = x
	case string:
		w.S = x
	case []byte:
		w.Y = x
	case unigraph.Date:
		w.D = &x
	case unigraph.Time:
		w.T = &x
	case unigraph.Datetime:
		w.DT = &x
	case unigraph.Duration:
		w.DU = &x
	case unigraph.Point:
		w.P = &x
	case unigraph.LineString:
		w.L = &x
	case unigraph.Polygon:
		w.G = &x
	default:
		w.I, _ = v.AsInt64()
	}
	return w
}

func decodeValue(w wireValue) (unigraph.Value, error) {
	switch unigraph.Kind(w.K) {
	case unigraph.KindNull:
		return unigraph.Null(), nil
	case unigraph.KindBool:
		return unigraph.Bool(w.B), nil
	case unigraph.KindInt8:
		return unigraph.Int8(int8(w.I)), nil
	case unigraph.KindInt16:
		return unigraph.Int16(int16(w.I)), nil
	case unigraph.KindInt32:
		return unigraph.Int32(int32(w.I)), nil
	case unigraph.KindInt64:
		return unigraph.Int64(w.I), nil
	case unigraph.KindUint8:
		return unigraph.Uint8(uint8(w.I)), nil
	case unigraph.KindUint16:
		return unigraph.Uint16(uint16(w.I)), nil
	case unigraph.KindUint32:
		return unigraph.Uint32(uint32(w.I)), nil
	case unigraph.KindUint64:
		return unigraph.Uint64(w.U), nil
	case unigraph.KindFloat32:
		return unigraph.Float32(float32(w.F)), nil
	case unigraph.KindFloat64:
		return unigraph.Float64(w.F), nil
	case unigraph.KindString:
		return unigraph.String(w.S), nil
	case unigraph.KindBytes:
		return unigraph.Bytes(w.Y), nil
	case unigraph.KindDate:
		if w.D != nil {
			return unigraph.DateValue(*w.D)
		}
	case unigraph.KindTime:
		if w.T != nil {
			return unigraph.TimeValue(*w.T)
		}
	case unigraph.KindDatetime:
		if w.DT != nil {
			return unigraph.DatetimeValue(*w.DT)
		}
	case unigraph.KindDuration:
		if w.DU != nil {
			return unigraph.DurationValue(*w.DU)
		}
	case unigraph.KindPoint:
		if w.P != nil {
			return unigraph.PointValue(*w.P)
		}
	case unigraph.KindLineString:
		if w.L != nil {
			return unigraph.LineStringValue(*w.L)
		}
	case unigraph.KindPolygon:
		if w.G != nil {
			return unigraph.PolygonValue(*w.G)
		}
	}
	return unigraph.Value{}, unigraph.Errorf(unigraph.KindInternal, "schema: corrupt value record of kind %d", w.K)
}

type wireProperty struct {
	Name     string       `msgpack:"name"`
	Type     PropertyType `msgpack:"type"`
	Required bool         `msgpack:"required,omitempty"`
	Unique   bool         `msgpack:"unique,omitempty"`
	Default  *wireValue   `msgpack:"default,omitempty"`
}

type wireLabel struct {
	Label      string         `msgpack:"label"`
	Properties []wireProperty `msgpack:"properties"`
	FromLabels []string       `msgpack:"from,omitempty"`
	ToLabels   []string       `msgpack:"to,omitempty"`
	Container  string         `msgpack:"container,omitempty"`
}

func encodeProps(defs []PropertyDefinition) []wireProperty {
	out := make([]wireProperty, len(defs))
	for i, d := range defs {
		out[i] = wireProperty{Name: d.Name, Type: d.Type, Required: d.Required, Unique: d.Unique}
		if d.Default != nil {
			w := encodeValue(*d.Default)
			out[i].Default = &w
		}
	}
	return out
}

func decodeProps(ws []wireProperty) ([]PropertyDefinition, error) {
	out := make([]PropertyDefinition, len(ws))
	for i, w := range ws {
		out[i] = PropertyDefinition{Name: w.Name, Type: w.Type, Required: w.Required, Unique: w.Unique}
		if w.Default != nil {
			v, err := decodeValue(*w.Default)
			if err != nil {
				return nil, err
			}
			out[i].Default = &v
		}
	}
	return out, nil
}

// MarshalVertexLabel encodes a vertex label definition.
func MarshalVertexLabel(def VertexLabel) ([]byte, error) {
	return msgpack.Marshal(wireLabel{Label: def.Label, Properties: encodeProps(def.Properties), Container: def.Container})
}

// UnmarshalVertexLabel decodes a vertex label definition.
func UnmarshalVertexLabel(b []byte) (*VertexLabel, error) {
	var w wireLabel
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("schema: decode vertex label: %w", err)
	}
	props, err := decodeProps(w.Properties)
	if err != nil {
		return nil, err
	}
	return &VertexLabel{Label: w.Label, Properties: props, Container: w.Container}, nil
}

// MarshalEdgeLabel encodes an edge label definition.
func MarshalEdgeLabel(def EdgeLabel) ([]byte, error) {
	return msgpack.Marshal(wireLabel{
		Label: def.Label, Properties: encodeProps(def.Properties),
		FromLabels: def.FromLabels, ToLabels: def.ToLabels, Container: def.Container,
	})
}

// UnmarshalEdgeLabel decodes an edge label definition.
func UnmarshalEdgeLabel(b []byte) (*EdgeLabel, error) {
	var w wireLabel
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("schema: decode edge label: %w", err)
	}
	props, err := decodeProps(w.Properties)
	if err != nil {
		return nil, err
	}
	return &EdgeLabel{Label: w.Label, Properties: props, FromLabels: w.FromLabels, ToLabels: w.ToLabels, Container: w.Container}, nil
}

// marshal encodes plain definitions (indexes, edge types, containers).
func marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func unmarshal(b []byte, v any) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return fmt.Errorf("schema: decode record: %w", err)
	}
	return nil
}

// Record is an emulated schema record as stored in the metadata namespace.
type Record struct {
	Kind    RecordKind
	Name    string
	Payload []byte
}

// Properties returns the property map persisted for the record.
func (r Record) Properties() unigraph.PropertyMap {
	return unigraph.PropertyMap{
		{Name: propKind, Value: unigraph.String(string(r.Kind))},
		{Name: propName, Value: unigraph.String(r.Name)},
		{Name: propPayload, Value: unigraph.Bytes(r.Payload)},
	}
}

// RecordFromVertex decodes a record from a metadata vertex. Backends without
// a byte type return the payload as a base64 string, which is accepted too.
func RecordFromVertex(v unigraph.Vertex) (Record, error) {
	var r Record
	kind, _ := v.Properties.Get(propKind)
	name, _ := v.Properties.Get(propName)
	payload, _ := v.Properties.Get(propPayload)
	k, ok1 := kind.AsString()
	n, ok2 := name.AsString()
	if !ok1 || !ok2 {
		return r, unigraph.Errorf(unigraph.KindInternal, "schema: malformed metadata record %s", v.ID)
	}
	r.Kind, r.Name = RecordKind(k), n
	if b, ok := payload.AsBytes(); ok {
		r.Payload = b
		return r, nil
	}
	if s, ok := payload.AsString(); ok {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return r, unigraph.WrapError(unigraph.KindInternal, fmt.Errorf("schema: metadata payload: %w", err))
		}
		r.Payload = b
		return r, nil
	}
	return r, unigraph.Errorf(unigraph.KindInternal, "schema: metadata record %s has no payload", v.ID)
}
