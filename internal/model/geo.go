package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Point is a GeoJSON position: [longitude, latitude].
type Point [2]float64

// Lng returns the longitude.
func (p Point) Lng() float64 { return p[0] }

// Lat returns the latitude.
func (p Point) Lat() float64 { return p[1] }

// Valid reports whether the coordinates are within WGS84 bounds.
func (p Point) Valid() bool {
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90 &&
		!math.IsNaN(p[0]) && !math.IsNaN(p[1])
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng() - a.Lng()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Route is an ordered polyline. It reads either a GeoJSON LineString or a
// bare coordinate array and always writes a LineString.
type Route []Point

type lineString struct {
	Type        string  `json:"type"`
	Coordinates []Point `json:"coordinates"`
}

// Length sums the great-circle distance between consecutive points.
func (r Route) Length() float64 {
	var km float64
	for i := 1; i < len(r); i++ {
		km += Haversine(r[i-1], r[i])
	}
	return km
}

// Validate checks that the route has at least two in-range points.
func (r Route) Validate() error {
	if len(r) < 2 {
		return errors.New("route needs at least two points")
	}
	for i, p := range r {
		if !p.Valid() {
			return fmt.Errorf("route point %d out of range", i)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Route) MarshalJSON() ([]byte, error) {
	coords := []Point(r)
	if coords == nil {
		coords = []Point{}
	}
	return json.Marshal(lineString{Type: "LineString", Coordinates: coords})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Route) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = nil
		return nil
	}
	if b[0] == '[' {
		var pts []Point
		if err := json.Unmarshal(b, &pts); err != nil {
			return fmt.Errorf("route coordinates: %w", err)
		}
		*r = pts
		return nil
	}
	var ls lineString
	if err := json.Unmarshal(b, &ls); err != nil {
		return fmt.Errorf("route: %w", err)
	}
	if ls.Type != "LineString" {
		return fmt.Errorf("route: unsupported geometry type %q", ls.Type)
	}
	*r = ls.Coordinates
	return nil
}

// Value implements driver.Valuer; routes are stored as JSON.
func (r Route) Value() (driver.Value, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *Route) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return r.UnmarshalJSON(v)
	case string:
		return r.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("route: cannot scan %T", src)
}

// Geometry is a GeoJSON object stored verbatim. Only its shape as a JSON
// object is checked.
type Geometry json.RawMessage

// MarshalJSON implements json.Marshaler.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if len(g) == 0 {
		return []byte("null"), nil
	}
	return g, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Geometry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*g = nil
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return errors.New("area must be a GeoJSON object")
	}
	*g = append((*g)[:0], b...)
	return nil
}

// Empty reports whether no geometry was supplied.
func (g Geometry) Empty() bool { return len(g) == 0 }

// Value implements driver.Valuer.
func (g Geometry) Value() (driver.Value, error) {
	if len(g) == 0 {
		return "{}", nil
	}
	return string(g), nil
}

// Scan implements sql.Scanner.
func (g *Geometry) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*g = nil
	case []byte:
		*g = append(Geometry(nil), v...)
	case string:
		*g = Geometry(v)
	default:
		return fmt.Errorf("geometry: cannot scan %T", src)
	}
	return nil
}
