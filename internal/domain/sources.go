package domain

import (
	"context"

	"github.com/paulmach/orb"
)

// Resampling selects the warp kernel.
type Resampling string

const (
	ResampleNearest  Resampling = "near"
	ResampleBilinear Resampling = "bilinear"
)

// ReprojectOptions configure a warp. Zero values keep the source setting.
type ReprojectOptions struct {
	CRS        string
	Resolution *Resolution
	// Extent pins the output grid; combined with Resolution it reproduces an
	// existing grid exactly.
	Extent     *orb.Bound
	Resampling Resampling
	NoData     *float64
}

// RasterStore reads and writes georeferenced rasters.
type RasterStore interface {
	// Exists reports whether path holds a readable raster. A corrupt file
	// reports false so it is rebuilt.
	Exists(path string) bool
	Open(path string) (*Raster, error)
	Write(path string, r *Raster) error
}

// Warper changes raster grids file to file.
type Warper interface {
	Reproject(src, dst string, opts ReprojectOptions) error
	Mosaic(srcs []string, dst string) error
}

// Projector converts geometries between coordinate systems. Implementations
// hold their own projection state; callers pass them in explicitly.
type Projector interface {
	ProjectAOI(aoi AOI, dstCRS string) (AOI, error)
	Buffer(aoi AOI, distance float64) (AOI, error)
	ProjectBounds(b orb.Bound, srcCRS, dstCRS string) (orb.Bound, error)
}

// ElevationSource writes an elevation raster covering aoi to dst in dstCRS.
type ElevationSource interface {
	FetchElevation(ctx context.Context, aoi AOI, dstCRS, dst string) error
}

// ImagerySource writes an aerial image mosaic covering aoi to dst in dstCRS.
type ImagerySource interface {
	FetchImagery(ctx context.Context, aoi AOI, dstCRS, dst string) error
}
