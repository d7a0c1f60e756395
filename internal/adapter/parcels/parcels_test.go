package parcels

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wgs84 = "EPSG:4326"

const parcelsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"Name": "001-010-01"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"Name": 1201301},
     "geometry": {"type": "Polygon", "coordinates": [[[5,5],[6,5],[6,6],[5,6],[5,5]]]}},
    {"type": "Feature", "properties": {"Name": "001-010-01"},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]}},
    {"type": "Feature", "properties": {"Name": "road"},
     "geometry": {"type": "LineString", "coordinates": [[0,0],[9,9]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[20,20],[21,20],[21,21],[20,21],[20,20]]]}}
  ]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_GeoJSON(t *testing.T) {
	path := writeFile(t, "parcels.geojson", parcelsGeoJSON)

	aois, err := Load(path, "Name", wgs84)
	require.NoError(t, err)

	names := make([]string, len(aois))
	for i, a := range aois {
		names[i] = a.Name
		assert.Equal(t, wgs84, a.CRS)
	}
	assert.Equal(t, []string{"001-010-01", "1201301", "feature-4"}, names)

	// Duplicate names merge into one multipolygon.
	assert.Len(t, aois[0].Geometry, 2)
	assert.InDelta(t, 2.0, aois[0].Area(), 1e-9)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{
			name: "unsupported extension",
			path: func(t *testing.T) string { return writeFile(t, "parcels.kml", "<kml/>") },
			want: ErrUnsupportedFormat,
		},
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.geojson") },
			want: domain.ErrIO,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t), "Name", wgs84)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.json", "{"), "Name", wgs84)
		assert.Error(t, err)
	})
}

func TestLoadBoundary(t *testing.T) {
	path := writeFile(t, "boundary.geojson", parcelsGeoJSON)

	b, err := LoadBoundary(path, "All_Valley", wgs84)
	require.NoError(t, err)
	assert.Equal(t, "All_Valley", b.Name)
	assert.Len(t, b.Geometry, 4)
}

func TestWithinBoundary(t *testing.T) {
	mk := func(name string, p orb.Polygon) domain.AOI {
		a, err := domain.NewAOI(name, wgs84, p)
		require.NoError(t, err)
		return a
	}
	sq := func(x0, y0, x1, y1 float64) orb.Polygon {
		return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
	}
	boundary := mk("watershed", sq(0, 0, 10, 10))
	parcels := []domain.AOI{
		mk("inside", sq(1, 1, 2, 2)),
		mk("outside", sq(20, 20, 21, 21)),
		mk("straddles", sq(9, 9, 11, 11)),
		mk("watershed", sq(0, 0, 10, 10)),
	}

	got := WithinBoundary(parcels, boundary)

	names := make([]string, len(got))
	for i, a := range got {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"watershed", "inside", "straddles"}, names)
}

func TestLoad_Shapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcels.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))

	// Outer rings are clockwise, holes counter-clockwise.
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1}}
	other := []shp.Point{{X: 10, Y: 10}, {X: 10, Y: 11}, {X: 11, Y: 11}, {X: 11, Y: 10}, {X: 10, Y: 10}}

	withHole := shp.Polygon(*shp.NewPolyLine([][]shp.Point{outer, hole}))
	n := w.Write(&withHole)
	require.NoError(t, w.WriteAttribute(int(n), 0, "APN-1"))
	single := shp.Polygon(*shp.NewPolyLine([][]shp.Point{other}))
	n = w.Write(&single)
	require.NoError(t, w.WriteAttribute(int(n), 0, "APN-2"))
	w.Close()

	aois, err := Load(path, "name", "EPSG:32610")
	require.NoError(t, err)
	require.Len(t, aois, 2)

	assert.Equal(t, "APN-1", aois[0].Name)
	require.Len(t, aois[0].Geometry, 1)
	assert.Len(t, aois[0].Geometry[0], 2, "hole attached to its outer ring")
	assert.InDelta(t, 15.0, aois[0].Area(), 1e-9)
	assert.False(t, aois[0].Contains(orb.Point{1.5, 1.5}))
	assert.True(t, aois[0].Contains(orb.Point{3, 3}))

	assert.Equal(t, "APN-2", aois[1].Name)
	assert.InDelta(t, 1.0, aois[1].Area(), 1e-9)
}

func TestAssembleRings_OrphanHole(t *testing.T) {
	ccw := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	mp := assembleRings([]orb.Ring{ccw})
	require.Len(t, mp, 1)
	assert.Len(t, mp[0], 1)
}
