package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func record(apn string, severeGentle, severeSteep float64) domain.ParcelRecord {
	var acres domain.AcreageTable
	acres.Acres[domain.SlopeGentle][domain.SeveritySevere] = severeGentle
	acres.Acres[domain.SlopeSteep][domain.SeveritySevere] = severeSteep
	acres.Acres[domain.SlopeGentle][domain.SeverityLow] = 1
	acres.Total = severeGentle + severeSteep + 1
	acres.PixelAcres = 0.0247
	return domain.ParcelRecord{
		APN:         apn,
		Acreage:     acres,
		ParcelAcres: acres.Total + 0.5,
		Geometry:    orb.MultiPolygon{{{{-121.3, 40.4}, {-121.2, 40.4}, {-121.2, 40.5}, {-121.3, 40.5}, {-121.3, 40.4}}}},
		ProcessedAt: time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func table(records ...domain.ParcelRecord) domain.Table {
	t := domain.Table{Tiers: domain.DefaultTiers()}
	for _, r := range records {
		t.Append(r)
	}
	return t
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"011180013":   "011180013",
		"001-010-01":  "001-010-01",
		"a/b":         "a_b",
		"All Valley ": "All_Valley",
		"..":          "_",
		"":            "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestLayout(t *testing.T) {
	l := Layout{Dir: "out"}

	assert.Equal(t, "doc/a_b.html", l.ReportLink("a/b"))
	assert.Equal(t, filepath.Join("out", "doc", "a_b.html"), l.ReportPath("a/b"))
	assert.Equal(t, filepath.Join("out", "figs", "a_b"), l.FigureDir("a/b"))
	assert.Equal(t, filepath.Join("out", TableHTML), l.Path(TableHTML))
}

func TestSorted(t *testing.T) {
	tb := table(record("low", 1, 9), record("high", 5, 0), record("tie", 1, 0))

	got := Sorted(tb)

	apns := []string{got[0].APN, got[1].APN, got[2].APN}
	assert.Equal(t, []string{"high", "low", "tie"}, apns)
	assert.Equal(t, "low", tb.Records[0].APN, "input table is not reordered")
}

func TestWriteTable(t *testing.T) {
	l := Layout{Dir: t.TempDir()}
	require.NoError(t, l.WriteTable(table(record("011180014", 1.5, 0), record("011180013", 2.25, 0.5))))

	page := readFile(t, l.Path(TableHTML))
	assert.Contains(t, page, `<a href="doc/011180013.html">011180013</a>`)
	assert.Contains(t, page, "<th>BA&gt;75 &amp; S&lt;15</th>")
	assert.Less(t, strings.Index(page, "011180013"), strings.Index(page, "011180014"))

	f, err := os.Open(l.Path(TableCSV))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, "APN", header[0])
	assert.Equal(t, "BA>75 All Slopes", header[1])
	assert.Equal(t, "BA>75 & S<15", header[1+SortColumn])
	assert.Equal(t, "Report", header[len(header)-1])

	assert.Equal(t, "011180013", rows[1][0])
	assert.Equal(t, "2.75", rows[1][1])
	assert.Equal(t, "2.25", rows[1][1+SortColumn])
	assert.Equal(t, "doc/011180013.html", rows[1][len(header)-1])
}

func TestReadTable(t *testing.T) {
	l := Layout{Dir: t.TempDir()}
	in := table(record("011180014", 1.5, 0), record("011180013", 2.25, 0.5))
	require.NoError(t, l.WriteTable(in))

	got, err := l.ReadTable(domain.DefaultTiers())
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	rec := got.Records[0]
	assert.Equal(t, "011180013", rec.APN)
	assert.Equal(t, 2.75, rec.Acreage.AllSlopesSevere())
	assert.Equal(t, 2.25, rec.Acreage.At(domain.SlopeGentle, domain.SeveritySevere))
	assert.Equal(t, 1.0, rec.Acreage.At(domain.SlopeGentle, domain.SeverityLow))
	assert.Equal(t, 3.75, rec.Acreage.Total)
	assert.Equal(t, 4.25, rec.ParcelAcres)
	assert.Equal(t, "doc/011180013.html", rec.ReportPath)

	other := domain.DefaultTiers()
	other.Slope[0] = 10
	_, err = l.ReadTable(other)
	assert.Error(t, err, "headers from different tiers")

	_, err = Layout{Dir: t.TempDir()}.ReadTable(domain.DefaultTiers())
	assert.Error(t, err)
}

func TestWriteParcel(t *testing.T) {
	l := Layout{Dir: t.TempDir()}
	rec := record("011180013", 2.25, 0.5)
	figs := map[string]string{
		"slope.png":         filepath.Join(l.FigureDir(rec.APN), "slope.png"),
		"ba_slope_hist.png": filepath.Join(l.FigureDir(rec.APN), "ba_slope_hist.png"),
	}

	path, err := l.WriteParcel(rec, domain.DefaultTiers(), domain.DefaultPalette(), figs)
	require.NoError(t, err)
	assert.Equal(t, l.ReportPath(rec.APN), path)

	page := readFile(t, path)
	assert.Contains(t, page, "Parcel 011180013")
	assert.Contains(t, page, `src="../figs/011180013/slope.png"`)
	assert.Contains(t, page, "BA loss &gt; 75%")
	assert.Contains(t, page, "<td>2.75</td>", "severe column total")

	p := domain.DefaultPalette().Bins[domain.SlopeGentle][domain.SeveritySevere]
	assert.Contains(t, page, cssString(p.R, p.G, p.B))
}

func cssString(r, g, b uint8) string {
	return "#" + hex2(r) + hex2(g) + hex2(b)
}

func hex2(v uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0xf]})
}

func TestLoadOwners(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "owners.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("USFS: [a, b]\nNPS:\n  - c\n"), 0o600))
	o, err := LoadOwners(yml)
	require.NoError(t, err)
	assert.Equal(t, Owners{"USFS": {"a", "b"}, "NPS": {"c"}}, o)

	js := filepath.Join(dir, "apns.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"CDFW": ["d"]}`), 0o600))
	o, err = LoadOwners(js)
	require.NoError(t, err)
	assert.Equal(t, Owners{"CDFW": {"d"}}, o)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("PRIVATE: [x]\n"), 0o600))
	_, err = LoadOwners(bad)
	assert.Error(t, err)

	_, err = LoadOwners(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	tb := table(
		record("All_Valley", 100, 100),
		record("a", 1, 0),
		record("b", 2, 0),
		record("c", 10, 0),
		record("d", 0.5, 0.25),
	)
	owners := Owners{"USFS": {"a", "b"}, "NPS": {"c"}, "CDFW": {"missing"}}

	rows := Summarize(tb, owners, "All_Valley")

	require.Len(t, rows, 4)
	byOwner := map[string]OwnerRow{}
	for _, r := range rows {
		byOwner[r.Owner] = r
	}
	assert.Equal(t, "NPS", rows[0].Owner, "sorted by headline")
	assert.Equal(t, 3.0, byOwner["USFS"].Values[0])
	assert.Equal(t, 2, byOwner["USFS"].Parcels)
	assert.Equal(t, 0.75, byOwner[PrivateOwner].Values[0])
	assert.Equal(t, 1, byOwner[PrivateOwner].Parcels, "boundary row excluded")
	assert.Equal(t, 0, byOwner["CDFW"].Parcels)

	l := Layout{Dir: t.TempDir()}
	require.NoError(t, l.WriteSummary(tb.Tiers, rows))
	assert.Contains(t, readFile(t, l.Path(SummaryHTML)), "<td>PRIVATE</td>")
}

func TestWriteMap(t *testing.T) {
	l := Layout{Dir: t.TempDir()}
	noGeom := record("nogeom", 1, 0)
	noGeom.Geometry = nil
	overlay := orb.Bound{Min: orb.Point{-121.5, 40.2}, Max: orb.Point{-121.1, 40.6}}

	require.NoError(t, l.WriteMap([]domain.ParcelRecord{record("011180013", 2, 1), noGeom}, &overlay))

	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFile(t, l.Path(MapGeoJSON))), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "doc/011180013.html", fc.Features[0].Properties["report"])
	assert.Equal(t, 3.0, fc.Features[0].Properties["ba_gt75_all_slopes"])

	page := readFile(t, l.Path(MapHTML))
	assert.Contains(t, page, "L.imageOverlay")
	assert.Contains(t, page, "[[40.2,-121.5],[40.6,-121.1]]")
	assert.Contains(t, page, "011180013")

	require.NoError(t, l.WriteMap(nil, nil))
	assert.NotContains(t, readFile(t, l.Path(MapHTML)), "L.imageOverlay(")
}

// --- mocks ---

type fakeTools struct {
	exists     bool
	reprojects int
	open       *domain.Raster
	openErr    error
}

func (f *fakeTools) Exists(string) bool { return f.exists }

func (f *fakeTools) Open(string) (*domain.Raster, error) { return f.open, f.openErr }

func (f *fakeTools) Write(string, *domain.Raster) error { return nil }

func (f *fakeTools) Reproject(_, _ string, opts domain.ReprojectOptions) error {
	f.reprojects++
	if opts.CRS != WebCRS {
		return errors.New("unexpected crs")
	}
	return nil
}

func (f *fakeTools) Mosaic([]string, string) error { return nil }

func (f *fakeTools) ProjectAOI(aoi domain.AOI, dst string) (domain.AOI, error) {
	aoi.CRS = dst
	return aoi, nil
}

func (f *fakeTools) Buffer(aoi domain.AOI, d float64) (domain.AOI, error) {
	b := aoi.Bounds().Pad(d)
	return domain.NewAOI(aoi.Name, aoi.CRS, b.ToPolygon())
}

func (f *fakeTools) ProjectBounds(b orb.Bound, _, _ string) (orb.Bound, error) { return b, nil }

func TestWriteOverlay(t *testing.T) {
	m := mat.NewDense(10, 10, nil)
	m.Apply(func(r, c int, _ float64) float64 { return float64(r*10 + c) }, m)
	m.Set(0, 0, math.NaN())
	sev, err := domain.NewRaster([]*mat.Dense{m}, domain.Transform{0, 10, 0, 100, 0, -10}, WebCRS, math.NaN())
	require.NoError(t, err)
	area, err := domain.NewAOI("All_Valley", LonLat, orb.Polygon{{{40, 40}, {60, 40}, {60, 60}, {40, 60}, {40, 40}}})
	require.NoError(t, err)

	tools := &fakeTools{open: sev}
	l := Layout{Dir: t.TempDir()}

	b, err := l.WriteOverlay(tools, "data/ba.tif", area, 10, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 1, tools.reprojects)
	assert.Equal(t, orb.Bound{Min: orb.Point{30, 30}, Max: orb.Point{70, 70}}, b)
	_, err = os.Stat(l.Path(OverlayPNG))
	assert.NoError(t, err)

	tools.exists = true
	_, err = l.WriteOverlay(tools, "data/ba.tif", area, 10, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, tools.reprojects, "cached projection reused")
}
