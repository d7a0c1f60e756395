package parcels

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func readShapefile(path, nameField string) ([]feature, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	defer r.Close()

	nameIdx := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), nameField) {
			nameIdx = i
			break
		}
	}

	var out []feature
	for r.Next() {
		n, shape := r.Shape()
		name := fmt.Sprintf("feature-%d", n)
		if nameIdx >= 0 {
			if v := strings.TrimSpace(r.ReadAttribute(n, nameIdx)); v != "" {
				name = v
			}
		}
		out = append(out, feature{name: name, geometry: shapePolygons(shape)})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, domain.ErrIO, err)
	}
	return out, nil
}

func shapePolygons(s shp.Shape) orb.MultiPolygon {
	switch p := s.(type) {
	case *shp.Polygon:
		return assembleRings(splitParts(p.Parts, p.Points))
	case *shp.PolygonZ:
		return assembleRings(splitParts(p.Parts, p.Points))
	case *shp.PolygonM:
		return assembleRings(splitParts(p.Parts, p.Points))
	}
	return nil
}

func splitParts(parts []int32, points []shp.Point) []orb.Ring {
	rings := make([]orb.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

// assembleRings groups shapefile rings into polygons. Clockwise rings are
// outer boundaries; counter-clockwise rings are holes of the outer ring
// that contains them.
func assembleRings(rings []orb.Ring) orb.MultiPolygon {
	var mp orb.MultiPolygon
	var holes []orb.Ring
	for _, r := range rings {
		if len(r) < 4 {
			continue
		}
		if r.Orientation() == orb.CW {
			mp = append(mp, orb.Polygon{r})
		} else {
			holes = append(holes, r)
		}
	}
	for _, h := range holes {
		placed := false
		for i := range mp {
			if planar.RingContains(mp[i][0], h[0]) {
				mp[i] = append(mp[i], h)
				placed = true
				break
			}
		}
		// An orphaned hole is really a mis-wound outer ring.
		if !placed {
			mp = append(mp, orb.Polygon{h})
		}
	}
	return mp
}
