package gdal

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/airbusgeo/godal"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
)

var tiffCreation = []string{"-of", "GTiff", "-co", "COMPRESS=DEFLATE", "-co", "BIGTIFF=IF_SAFER"}

// Reproject warps src into dst. Setting both Extent and Resolution reproduces
// an existing grid exactly.
func (t *Toolbox) Reproject(src, dst string, opts domain.ReprojectOptions) error {
	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", src, domain.ErrIO, err)
	}
	defer ds.Close()

	staged := t.stagePath(dst, ".tif")
	switches := warpSwitches(opts)
	t.logger.Debug("warping raster", "src", src, "dst", dst, "switches", switches)

	out, err := ds.Warp(staged, switches)
	if err != nil {
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("warp %s: %w: %w", src, domain.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("flush warp of %s: %w: %w", src, domain.ErrIO, err)
	}
	return commit(staged, dst)
}

func warpSwitches(opts domain.ReprojectOptions) []string {
	s := append([]string{"-overwrite"}, tiffCreation...)
	if opts.CRS != "" {
		s = append(s, "-t_srs", opts.CRS)
	}
	if opts.Resolution != nil {
		s = append(s, "-tr", ftoa(opts.Resolution.X), ftoa(opts.Resolution.Y))
	}
	if opts.Extent != nil {
		e := opts.Extent
		s = append(s, "-te", ftoa(e.Min[0]), ftoa(e.Min[1]), ftoa(e.Max[0]), ftoa(e.Max[1]))
	}
	if opts.Resampling != "" {
		s = append(s, "-r", string(opts.Resampling))
	}
	if opts.NoData != nil {
		s = append(s, "-dstnodata", ftoa(*opts.NoData))
	}
	return s
}

// Mosaic merges srcs into a single GeoTIFF at the finest input resolution.
// Later sources win where tiles overlap.
func (t *Toolbox) Mosaic(srcs []string, dst string) error {
	if len(srcs) == 0 {
		return errors.New("mosaic: no source rasters")
	}
	vrtPath := t.stagePath(dst, ".vrt")
	defer os.Remove(vrtPath) //nolint:errcheck // best-effort cleanup

	vrt, err := godal.BuildVRT(vrtPath, srcs, []string{"-resolution", "highest", "-overwrite"})
	if err != nil {
		return fmt.Errorf("build mosaic of %d rasters: %w: %w", len(srcs), domain.ErrIO, err)
	}
	defer vrt.Close()

	staged := t.stagePath(dst, ".tif")
	out, err := vrt.Translate(staged, tiffCreation)
	if err != nil {
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("translate mosaic: %w: %w", domain.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("flush mosaic: %w: %w", domain.ErrIO, err)
	}
	return commit(staged, dst)
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
