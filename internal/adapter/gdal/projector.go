package gdal

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

const (
	bufferSegments = 8
	// Bounds are densified before projection so curved edges stay covered.
	boundsDensify = 16
)

// ProjectAOI transforms the AOI geometry into dstCRS.
func (t *Toolbox) ProjectAOI(aoi domain.AOI, dstCRS string) (domain.AOI, error) {
	if aoi.CRS == dstCRS {
		return aoi, nil
	}
	mp, err := t.reproject(aoi.Geometry, aoi.CRS, dstCRS)
	if err != nil {
		return domain.AOI{}, fmt.Errorf("project %s to %s: %w", aoi.Name, dstCRS, err)
	}
	return domain.NewAOI(aoi.Name, dstCRS, mp)
}

// Buffer grows the AOI by distance in its own CRS units.
func (t *Toolbox) Buffer(aoi domain.AOI, distance float64) (domain.AOI, error) {
	g, err := t.geometry(aoi.Geometry, aoi.CRS)
	if err != nil {
		return domain.AOI{}, err
	}
	defer g.Close()

	buffered, err := g.Buffer(distance, bufferSegments)
	if err != nil {
		return domain.AOI{}, fmt.Errorf("buffer %s by %g: %w", aoi.Name, distance, err)
	}
	defer buffered.Close()

	mp, err := multiPolygon(buffered)
	if err != nil {
		return domain.AOI{}, err
	}
	return domain.NewAOI(aoi.Name, aoi.CRS, mp)
}

// ProjectBounds returns the bounding box of b after projection into dstCRS.
func (t *Toolbox) ProjectBounds(b orb.Bound, srcCRS, dstCRS string) (orb.Bound, error) {
	if srcCRS == dstCRS {
		return b, nil
	}
	mp, err := t.reproject(orb.MultiPolygon{{densify(b, boundsDensify)}}, srcCRS, dstCRS)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("project bounds to %s: %w", dstCRS, err)
	}
	return mp.Bound(), nil
}

func (t *Toolbox) reproject(mp orb.MultiPolygon, srcCRS, dstCRS string) (orb.MultiPolygon, error) {
	g, err := t.geometry(mp, srcCRS)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	dst, err := t.spatialRef(dstCRS)
	if err != nil {
		return nil, err
	}
	if err := g.Reproject(dst); err != nil {
		return nil, err
	}
	return multiPolygon(g)
}

func (t *Toolbox) geometry(mp orb.MultiPolygon, crs string) (*godal.Geometry, error) {
	sr, err := t.spatialRef(crs)
	if err != nil {
		return nil, err
	}
	data, err := wkb.Marshal(mp)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	return godal.NewGeometryFromWKB(data, sr)
}

// multiPolygon decodes g, keeping only its polygonal parts.
func multiPolygon(g *godal.Geometry) (orb.MultiPolygon, error) {
	data, err := g.WKB()
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	decoded, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return polygons(decoded), nil
}

func polygons(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	case orb.Collection:
		var out orb.MultiPolygon
		for _, part := range v {
			out = append(out, polygons(part)...)
		}
		return out
	}
	return nil
}

// densify returns the bound's ring with n points per edge.
func densify(b orb.Bound, n int) orb.Ring {
	corners := []orb.Point{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}}
	ring := make(orb.Ring, 0, 4*n+1)
	for i, p := range corners {
		q := corners[(i+1)%len(corners)]
		for k := 0; k < n; k++ {
			f := float64(k) / float64(n)
			ring = append(ring, orb.Point{p[0] + f*(q[0]-p[0]), p[1] + f*(q[1]-p[1])})
		}
	}
	return append(ring, b.Min)
}
