package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// one degree of latitude along a meridian
	d := Haversine(Point{116.0, 39.0}, Point{116.0, 40.0})
	assert.InDelta(t, 111.19, d, 0.01)

	assert.Zero(t, Haversine(Point{120, 30}, Point{120, 30}))
}

func TestRouteAcceptsLineStringAndBareArray(t *testing.T) {
	want := Route{{116.30, 39.90}, {116.35, 39.95}, {116.40, 39.98}}

	var fromObj Route
	require.NoError(t, json.Unmarshal([]byte(`{"type":"LineString","coordinates":[[116.30,39.90],[116.35,39.95],[116.40,39.98]]}`), &fromObj))
	assert.Equal(t, want, fromObj)

	var fromArr Route
	require.NoError(t, json.Unmarshal([]byte(`[[116.30,39.90],[116.35,39.95],[116.40,39.98]]`), &fromArr))
	assert.Equal(t, want, fromArr)
}

func TestRouteRejectsOtherGeometry(t *testing.T) {
	var r Route
	err := json.Unmarshal([]byte(`{"type":"Polygon","coordinates":[]}`), &r)
	assert.Error(t, err)
}

func TestRouteRoundTripPreservesOrder(t *testing.T) {
	in := Route{{1, 1}, {3, 3}, {2, 2}, {0, 0}}

	v, err := in.Value()
	require.NoError(t, err)

	var out Route
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)
	assert.Contains(t, v.(string), `"type":"LineString"`)
}

func TestRouteValidate(t *testing.T) {
	assert.Error(t, Route{{1, 1}}.Validate())
	assert.Error(t, Route{{1, 1}, {200, 1}}.Validate())
	assert.NoError(t, Route{{1, 1}, {2, 2}}.Validate())
}

func TestGeometryKeepsObjectVerbatim(t *testing.T) {
	raw := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`
	var g Geometry
	require.NoError(t, json.Unmarshal([]byte(raw), &g))

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &g))
}

func TestMissionDerivedFields(t *testing.T) {
	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := Mission{
		Route:     Route{{116.0, 39.0}, {116.0, 40.0}},
		TotalTime: 60,
		Status:    MissionExecuting,
		EndTime:   &end,
	}

	assert.Equal(t, 111.19, m.RouteDistance())
	require.NotNil(t, m.FlightSpeed())
	assert.Equal(t, 111.19, *m.FlightSpeed())

	m.TotalTime = 0
	assert.Nil(t, m.FlightSpeed())

	assert.True(t, m.Overdue(end))
	assert.False(t, m.Overdue(end.Add(-time.Second)))
}

func TestPageResult(t *testing.T) {
	p := Page{Page: 0, PageSize: 500}.Normalize()
	assert.Equal(t, Page{Page: 1, PageSize: MaxPageSize}, p)

	res := NewPageResult[int](nil, 201, p)
	assert.Equal(t, 3, res.TotalPages)
	assert.NotNil(t, res.Items)
}
