package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// AOI is a parcel polygon in a known CRS. Name carries the parcel APN.
type AOI struct {
	Name     string
	CRS      string
	Geometry orb.MultiPolygon
}

// NewAOI accepts a Polygon or MultiPolygon and validates it.
func NewAOI(name, crs string, g orb.Geometry) (AOI, error) {
	var mp orb.MultiPolygon
	switch v := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{v}
	case orb.MultiPolygon:
		mp = v
	default:
		return AOI{}, fmt.Errorf("aoi %s: unsupported geometry %T: %w", name, g, ErrEmptyAOI)
	}
	a := AOI{Name: name, CRS: crs, Geometry: mp}
	if err := a.Validate(); err != nil {
		return AOI{}, err
	}
	return a, nil
}

// Validate rejects empty or zero-area geometries.
func (a AOI) Validate() error {
	if len(a.Geometry) == 0 {
		return fmt.Errorf("aoi %s: no polygons: %w", a.Name, ErrEmptyAOI)
	}
	area := a.Area()
	if area <= 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return fmt.Errorf("aoi %s: area %v: %w", a.Name, area, ErrEmptyAOI)
	}
	return nil
}

// Bounds returns the combined bounding box of all polygons.
func (a AOI) Bounds() orb.Bound { return a.Geometry.Bound() }

// Area is the planar area in squared CRS units.
func (a AOI) Area() float64 { return math.Abs(planar.Area(a.Geometry)) }

// Contains reports whether p falls inside any polygon (holes excluded).
func (a AOI) Contains(p orb.Point) bool {
	return planar.MultiPolygonContains(a.Geometry, p)
}

// Intersects reports whether two AOIs in the same CRS share any point.
func (a AOI) Intersects(b AOI) bool {
	if !a.Bounds().Intersects(b.Bounds()) {
		return false
	}
	for _, p := range a.Geometry {
		for _, q := range b.Geometry {
			if polygonsIntersect(p, q) {
				return true
			}
		}
	}
	return false
}

func polygonsIntersect(p, q orb.Polygon) bool {
	if len(p) == 0 || len(q) == 0 || len(p[0]) == 0 || len(q[0]) == 0 {
		return false
	}
	if planar.PolygonContains(q, p[0][0]) || planar.PolygonContains(p, q[0][0]) {
		return true
	}
	for _, rp := range p {
		for _, rq := range q {
			if ringsCross(rp, rq) {
				return true
			}
		}
	}
	return false
}

func ringsCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}
