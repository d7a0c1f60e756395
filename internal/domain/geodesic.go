package domain

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// earthRadiusMeters is the IUGG mean radius.
const earthRadiusMeters = 6371008.8

// GeodesicAcres returns the area on the sphere of a lon/lat multipolygon.
func GeodesicAcres(mp orb.MultiPolygon) float64 {
	var steradians float64
	for _, poly := range mp {
		for i, ring := range poly {
			a := ringSteradians(ring)
			if i == 0 {
				steradians += a
			} else {
				steradians -= a
			}
		}
	}
	if steradians < 0 {
		steradians = 0
	}
	return RoundAcres(steradians * earthRadiusMeters * earthRadiusMeters / SquareMetersPerAcre)
}

func ringSteradians(ring orb.Ring) float64 {
	pts := make([]s2.Point, 0, len(ring))
	for i, p := range ring {
		if i == len(ring)-1 && len(ring) > 1 && p == ring[0] {
			break
		}
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p[1], p[0])))
	}
	if len(pts) < 3 {
		return 0
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area()
}
