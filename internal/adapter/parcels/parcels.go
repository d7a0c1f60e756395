// Package parcels loads parcel and boundary polygons from GeoJSON or ESRI
// shapefiles.
package parcels

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
)

// ErrUnsupportedFormat is returned for files that are neither GeoJSON nor shapefiles.
var ErrUnsupportedFormat = errors.New("unsupported parcel file format")

// feature is one named polygonal record from a source file.
type feature struct {
	name     string
	geometry orb.MultiPolygon
}

// Load reads the polygons in path, naming each by nameField. Records sharing
// a name are merged into one AOI, in order of first appearance. Records
// without polygonal geometry are dropped.
func Load(path, nameField, crs string) ([]domain.AOI, error) {
	features, err := read(path, nameField)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var merged []feature
	for _, f := range features {
		if len(f.geometry) == 0 {
			continue
		}
		if i, ok := index[f.name]; ok {
			merged[i].geometry = append(merged[i].geometry, f.geometry...)
			continue
		}
		index[f.name] = len(merged)
		merged = append(merged, f)
	}

	out := make([]domain.AOI, 0, len(merged))
	for _, f := range merged {
		aoi, err := domain.NewAOI(f.name, crs, f.geometry)
		if err != nil {
			return nil, fmt.Errorf("parcel %q in %s: %w", f.name, path, err)
		}
		out = append(out, aoi)
	}
	return out, nil
}

// LoadBoundary reads every polygon in path as a single AOI called name.
func LoadBoundary(path, name, crs string) (domain.AOI, error) {
	features, err := read(path, "")
	if err != nil {
		return domain.AOI{}, err
	}
	var mp orb.MultiPolygon
	for _, f := range features {
		mp = append(mp, f.geometry...)
	}
	aoi, err := domain.NewAOI(name, crs, mp)
	if err != nil {
		return domain.AOI{}, fmt.Errorf("boundary %s: %w", path, err)
	}
	return aoi, nil
}

// WithinBoundary keeps the parcels that intersect boundary and puts the
// boundary itself first, so the whole area is reported alongside its parcels.
// Both must share a CRS.
func WithinBoundary(parcels []domain.AOI, boundary domain.AOI) []domain.AOI {
	out := []domain.AOI{boundary}
	for _, p := range parcels {
		if p.Name != boundary.Name && p.Intersects(boundary) {
			out = append(out, p)
		}
	}
	return out
}

func read(path, nameField string) ([]feature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return readGeoJSON(path, nameField)
	case ".shp":
		return readShapefile(path, nameField)
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
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
