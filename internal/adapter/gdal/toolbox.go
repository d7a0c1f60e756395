// Package gdal implements raster storage, warping and geometry projection on
// top of the GDAL library.
package gdal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
)

var registerOnce sync.Once

// Toolbox wraps GDAL. It satisfies domain.RasterStore, domain.Warper and
// domain.Projector. Spatial references are parsed once per CRS string and
// reused for the lifetime of the toolbox.
type Toolbox struct {
	tmpDir string
	logger *slog.Logger

	mu   sync.Mutex
	refs map[string]*godal.SpatialRef
}

// NewToolbox registers the GDAL drivers and returns a toolbox that stages
// intermediate files in tmpDir (the working directory when empty).
func NewToolbox(tmpDir string, logger *slog.Logger) *Toolbox {
	registerOnce.Do(godal.RegisterAll)
	return &Toolbox{
		tmpDir: tmpDir,
		logger: logger,
		refs:   map[string]*godal.SpatialRef{},
	}
}

// Close releases the cached spatial references.
func (t *Toolbox) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, sr := range t.refs {
		sr.Close()
		delete(t.refs, k)
	}
}

// spatialRef returns the cached reference for crs, which may be an
// authority code such as "EPSG:32610" or a WKT string.
func (t *Toolbox) spatialRef(crs string) (*godal.SpatialRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sr, ok := t.refs[crs]; ok {
		return sr, nil
	}
	sr, err := godal.NewSpatialRef(crs)
	if err != nil {
		return nil, fmt.Errorf("parse crs %q: %w", crs, err)
	}
	t.refs[crs] = sr
	return sr, nil
}

// crsLabel names a dataset projection by the first cached CRS describing the
// same system, so rasters written as "EPSG:32610" read back under that name.
// Unknown projections keep their WKT.
func (t *Toolbox) crsLabel(wkt string) string {
	if wkt == "" {
		return ""
	}
	sr, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return wkt
	}
	defer sr.Close()

	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.refs))
	for name := range t.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if t.refs[name].IsSame(sr) {
			return name
		}
	}
	return wkt
}

// stagePath returns a unique file next to dst. Outputs are written there and
// renamed into place so an interrupted run never leaves a partial dst.
func (t *Toolbox) stagePath(dst, ext string) string {
	dir := t.tmpDir
	if dir == "" {
		dir = filepath.Dir(dst)
	}
	return filepath.Join(dir, fmt.Sprintf(".stage-%s%s", uuid.NewString(), ext))
}

func commit(staged, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(staged, dst); err != nil {
		os.Remove(staged) //nolint:errcheck // best-effort cleanup
		return err
	}
	return nil
}
