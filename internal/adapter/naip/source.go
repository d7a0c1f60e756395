// Package naip serves aerial imagery from a local directory of NAIP GeoTIFF
// tiles.
package naip

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// NoData marks pixels outside the parcel in the masked imagery.
const NoData = 0.0

// RasterTools is the raster plumbing the source needs.
type RasterTools interface {
	domain.RasterStore
	domain.Warper
	domain.Projector
	Footprint(path string) (orb.Bound, string, error)
}

// footprint is a tile's extent in its own CRS.
type footprint struct {
	bounds orb.Bound
	crs    string
}

// Source implements domain.ImagerySource over a tile directory. Tile
// footprints are cached by path, size and modification time.
type Source struct {
	dir        string
	tmpDir     string
	tools      RasterTools
	footprints *lruCache[footprint]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewSource indexes tiles under dir lazily, remembering up to indexSize
// footprints.
func NewSource(dir, tmpDir string, indexSize int, tools RasterTools, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{
		dir:        dir,
		tmpDir:     tmpDir,
		tools:      tools,
		footprints: newLRUCache[footprint](indexSize),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchImagery mosaics the tiles touching aoi, warps the mosaic to dstCRS and
// masks everything outside the AOI to NoData.
func (s *Source) FetchImagery(ctx context.Context, aoi domain.AOI, dstCRS, dst string) error {
	tiles, err := s.covering(ctx, aoi)
	if err != nil {
		return err
	}
	if len(tiles) == 0 {
		return fmt.Errorf("no imagery tiles in %s cover %s: %w", s.dir, aoi.Name, domain.ErrEmptyAOI)
	}
	s.logger.Debug("imagery tiles selected", "aoi", aoi.Name, "tiles", len(tiles))

	if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	id := uuid.NewString()
	mosaic := filepath.Join(s.tmpDir, "naip-"+id+".tif")
	warped := filepath.Join(s.tmpDir, "naip-"+id+"-warped.tif")
	defer os.Remove(mosaic) //nolint:errcheck // best-effort cleanup
	defer os.Remove(warped) //nolint:errcheck // best-effort cleanup

	if err := s.tools.Mosaic(tiles, mosaic); err != nil {
		return err
	}
	nodata := NoData
	if err := s.tools.Reproject(mosaic, warped, domain.ReprojectOptions{CRS: dstCRS, NoData: &nodata}); err != nil {
		return err
	}

	img, err := s.tools.Open(warped)
	if err != nil {
		return err
	}
	local, err := s.tools.ProjectAOI(aoi, dstCRS)
	if err != nil {
		return err
	}
	masked, err := domain.Crop(img, local, NoData)
	if err != nil {
		return err
	}
	return s.tools.Write(dst, masked)
}

// covering lists the tiles whose footprint overlaps aoi.
func (s *Source) covering(ctx context.Context, aoi domain.AOI) ([]string, error) {
	var out []string
	bounds := map[string]orb.Bound{}
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isTile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		fp, err := s.footprint(path, info)
		if err != nil {
			s.logger.Warn("skipping unreadable imagery tile", "path", path, "error", err)
			return nil
		}
		b, ok := bounds[fp.crs]
		if !ok {
			if b, err = s.tools.ProjectBounds(aoi.Bounds(), aoi.CRS, fp.crs); err != nil {
				return err
			}
			bounds[fp.crs] = b
		}
		if b.Intersects(fp.bounds) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index imagery in %s: %w", s.dir, err)
	}
	return out, nil
}

func (s *Source) footprint(path string, info fs.FileInfo) (footprint, error) {
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if fp, ok := s.footprints.get(key); ok {
		s.metrics.ImageryIndex.WithLabelValues("hit").Inc()
		return fp, nil
	}
	s.metrics.ImageryIndex.WithLabelValues("miss").Inc()

	b, crs, err := s.tools.Footprint(path)
	if err != nil {
		return footprint{}, err
	}
	fp := footprint{bounds: b, crs: crs}
	s.footprints.put(key, fp)
	return fp, nil
}

func isTile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}
