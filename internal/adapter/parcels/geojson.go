package parcels

import (
	"fmt"
	"os"
	"strconv"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb/geojson"
)

func readGeoJSON(path, nameField string) ([]feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, domain.ErrIO, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		out = append(out, feature{
			name:     propertyName(f.Properties, nameField, i),
			geometry: polygons(f.Geometry),
		})
	}
	return out, nil
}

// propertyName renders the name property as text. Parcel numbers are often
// stored as JSON numbers; those print without exponent or trailing zeros.
func propertyName(props geojson.Properties, field string, index int) string {
	switch v := props[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return fmt.Sprintf("feature-%d", index)
	default:
		return fmt.Sprint(v)
	}
}
