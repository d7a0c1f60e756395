package gdal

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Exists reports whether path opens as a raster with readable pixels. Files
// that are truncated or otherwise unreadable report false.
func (t *Toolbox) Exists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		t.logger.Warn("unreadable raster will be rebuilt", "path", path, "error", err)
		return false
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands == 0 || st.SizeX == 0 || st.SizeY == 0 {
		return false
	}
	// The last row is the last thing written; reading it catches truncation.
	lastRow := make([]float64, st.SizeX)
	if err := ds.Bands()[0].Read(0, st.SizeY-1, lastRow, st.SizeX, 1); err != nil {
		t.logger.Warn("truncated raster will be rebuilt", "path", path, "error", err)
		return false
	}
	return true
}

// Open reads every band of path as float64. A raster without a nodata
// value reads back with NaN nodata.
func (t *Toolbox) Open(path string) (*domain.Raster, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("read geotransform of %s: %w: %w", path, domain.ErrIO, err)
	}

	st := ds.Structure()
	bands := ds.Bands()
	out := make([]*mat.Dense, len(bands))
	nodata := math.NaN()
	for i, b := range bands {
		buf := make([]float64, st.SizeX*st.SizeY)
		if err := b.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
			return nil, fmt.Errorf("read band %d of %s: %w: %w", i+1, path, domain.ErrIO, err)
		}
		out[i] = mat.NewDense(st.SizeY, st.SizeX, buf)
		if nd, ok := b.NoData(); ok && i == 0 {
			nodata = nd
		}
	}

	r, err := domain.NewRaster(out, domain.Transform(gt), t.crsLabel(ds.Projection()), nodata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Write stores r as a deflate-compressed float64 GeoTIFF.
func (t *Toolbox) Write(path string, r *domain.Raster) error {
	rows, cols := r.Dims()
	staged := t.stagePath(path, filepath.Ext(path))
	if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, domain.ErrIO, err)
	}

	ds, err := godal.Create(godal.GTiff, staged, len(r.Bands), godal.Float64, cols, rows,
		godal.CreationOption("COMPRESS=DEFLATE", "PREDICTOR=3"))
	if err != nil {
		return fmt.Errorf("create %s: %w: %w", path, domain.ErrIO, err)
	}
	if err := t.fill(ds, r); err != nil {
		ds.Close()        //nolint:errcheck // already failing
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w: %w", path, domain.ErrIO, err)
	}
	if err := ds.Close(); err != nil {
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("flush %s: %w: %w", path, domain.ErrIO, err)
	}
	if err := commit(staged, path); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, domain.ErrIO, err)
	}
	return nil
}

func (t *Toolbox) fill(ds *godal.Dataset, r *domain.Raster) error {
	if err := ds.SetGeoTransform([6]float64(r.Transform)); err != nil {
		return err
	}
	if r.CRS != "" {
		sr, err := t.spatialRef(r.CRS)
		if err != nil {
			return err
		}
		if err := ds.SetSpatialRef(sr); err != nil {
			return err
		}
	}
	rows, cols := r.Dims()
	for i, b := range ds.Bands() {
		if err := b.SetNoData(r.NoData); err != nil {
			return err
		}
		if err := b.Write(0, 0, denseData(r.Bands[i]), cols, rows); err != nil {
			return err
		}
	}
	return nil
}

// denseData returns m's values row-major without the stride padding.
func denseData(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		out = append(out, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols]...)
	}
	return out
}

// Footprint returns the ground extent and CRS of path without reading pixels.
func (t *Toolbox) Footprint(path string) (orb.Bound, string, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return orb.Bound{}, "", fmt.Errorf("open %s: %w: %w", path, domain.ErrIO, err)
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return orb.Bound{}, "", fmt.Errorf("read geotransform of %s: %w: %w", path, domain.ErrIO, err)
	}
	st := ds.Structure()
	x0, y0 := gt[0], gt[3]
	x1 := x0 + float64(st.SizeX)*gt[1] + float64(st.SizeY)*gt[2]
	y1 := y0 + float64(st.SizeX)*gt[4] + float64(st.SizeY)*gt[5]
	b := orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x0, y0}}.Extend(orb.Point{x1, y1})
	return b, t.crsLabel(ds.Projection()), nil
}
