package unigraph_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/unigraph"
)

func TestTemporalValidation(t *testing.T) {
	t.Parallel()
	off := int16(19 * 60)
	tests := []struct {
		name    string
		build   func() (unigraph.Value, error)
		wantErr bool
	}{
		{"date", func() (unigraph.Value, error) { return unigraph.DateValue(unigraph.Date{Year: 2024, Month: 2, Day: 29}) }, false},
		{"date_month_zero", func() (unigraph.Value, error) { return unigraph.DateValue(unigraph.Date{Year: 2024, Month: 0, Day: 1}) }, true},
		{"date_month_13", func() (unigraph.Value, error) { return unigraph.DateValue(unigraph.Date{Year: 2024, Month: 13, Day: 1}) }, true},
		{"date_feb_30", func() (unigraph.Value, error) { return unigraph.DateValue(unigraph.Date{Year: 2023, Month: 2, Day: 29}) }, true},
		{"time", func() (unigraph.Value, error) { return unigraph.TimeValue(unigraph.Time{Hour: 23, Minute: 59, Second: 59}) }, false},
		{"time_hour_24", func() (unigraph.Value, error) { return unigraph.TimeValue(unigraph.Time{Hour: 24}) }, true},
		{"time_nanos", func() (unigraph.Value, error) { return unigraph.TimeValue(unigraph.Time{Nanosecond: 1_000_000_000}) }, true},
		{"datetime_offset", func() (unigraph.Value, error) {
			return unigraph.DatetimeValue(unigraph.Datetime{Date: unigraph.Date{Year: 2024, Month: 1, Day: 1}, Offset: &off})
		}, true},
		{"duration_nanos", func() (unigraph.Value, error) { return unigraph.DurationValue(unigraph.Duration{Nanoseconds: 1e9}) }, true},
		{"point", func() (unigraph.Value, error) { return unigraph.PointValue(unigraph.Point{Longitude: 13.4, Latitude: 52.5}) }, false},
		{"point_lat", func() (unigraph.Value, error) { return unigraph.PointValue(unigraph.Point{Latitude: 91}) }, true},
		{"linestring_short", func() (unigraph.Value, error) {
			return unigraph.LineStringValue(unigraph.LineString{Points: []unigraph.Point{{}}})
		}, true},
		{"polygon_open", func() (unigraph.Value, error) {
			return unigraph.PolygonValue(unigraph.Polygon{Exterior: []unigraph.Point{{}, {Longitude: 1}, {Latitude: 1}, {Longitude: 1, Latitude: 1}}})
		}, true},
		{"polygon", func() (unigraph.Value, error) {
			return unigraph.PolygonValue(unigraph.Polygon{Exterior: []unigraph.Point{{}, {Longitude: 1}, {Latitude: 1}, {}}})
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.build()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, unigraph.KindInvalidPropertyType, unigraph.KindOf(err))
				assert.True(t, v.IsNull())
				return
			}
			require.NoError(t, err)
			assert.False(t, v.IsNull())
		})
	}
}

func TestValueOf(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 5, 17, 10, 30, 0, 500, time.FixedZone("", 2*3600))
	v, err := unigraph.ValueOf(ts)
	require.NoError(t, err)
	dt, ok := v.AsDatetime()
	require.True(t, ok)
	require.NotNil(t, dt.Offset)
	assert.EqualValues(t, 120, *dt.Offset)
	assert.True(t, dt.Std().Equal(ts))
	assert.Equal(t, "2024-05-17T10:30:00.000000500+02:00", dt.String())

	v = unigraph.MustValue(90*time.Second + 5)
	d, ok := v.AsDuration()
	require.True(t, ok)
	assert.Equal(t, unigraph.Duration{Seconds: 90, Nanoseconds: 5}, d)
	assert.Equal(t, 90*time.Second+5, d.Std())

	_, err = unigraph.ValueOf(struct{}{})
	assert.True(t, unigraph.IsKind(err, unigraph.KindInvalidPropertyType))
}

func TestValueAccessors(t *testing.T) {
	t.Parallel()
	assert.Equal(t, unigraph.KindUint16, unigraph.Uint16(7).Kind())
	i, ok := unigraph.Uint16(7).AsInt64()
	assert.True(t, ok)
	assert.EqualValues(t, 7, i)

	_, ok = unigraph.Uint64(1 << 63).AsInt64()
	assert.False(t, ok)

	f, ok := unigraph.Int32(3).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = unigraph.String("x").AsBool()
	assert.False(t, ok)

	raw := []byte{1, 2}
	b := unigraph.Bytes(raw)
	raw[0] = 9
	got, _ := b.AsBytes()
	assert.Equal(t, []byte{1, 2}, got)
}

func TestValueEqual(t *testing.T) {
	t.Parallel()
	alt := 10.0
	alt2 := 10.0
	assert.True(t, unigraph.Int64(1).Equal(unigraph.Int64(1)))
	assert.False(t, unigraph.Int64(1).Equal(unigraph.Int32(1)))
	assert.True(t, unigraph.Bytes([]byte("a")).Equal(unigraph.Bytes([]byte("a"))))
	assert.True(t, unigraph.MustValue(unigraph.Point{Latitude: 1, Altitude: &alt}).Equal(unigraph.MustValue(unigraph.Point{Latitude: 1, Altitude: &alt2})))
	assert.False(t, unigraph.MustValue(unigraph.Point{Latitude: 1, Altitude: &alt}).Equal(unigraph.MustValue(unigraph.Point{Latitude: 1})))
	assert.True(t, unigraph.Null().Equal(unigraph.Value{}))
}

func TestElementID(t *testing.T) {
	t.Parallel()
	u := uuid.New()
	ids := []unigraph.ElementID{unigraph.StringID("7"), unigraph.Int64ID(7), unigraph.UUIDID(u)}

	// No variant coerces into another.
	assert.NotEqual(t, ids[0], ids[1])
	_, ok := ids[0].AsInt64()
	assert.False(t, ok)
	_, ok = ids[1].AsString()
	assert.False(t, ok)
	got, ok := ids[2].AsUUID()
	assert.True(t, ok)
	assert.Equal(t, u, got)

	seen := map[unigraph.ElementID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 3)
	assert.True(t, unigraph.ElementID{}.IsZero())
	assert.Equal(t, `"7"`, ids[0].String())
	assert.Equal(t, "7", ids[1].String())
}
