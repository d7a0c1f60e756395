package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

const windowEpsilon = 1e-9

// Crop masks every pixel whose centre lies outside the AOI to nodata and trims
// the grid to the AOI's bounding box. The AOI must be in the raster's CRS.
//
// Polygons are filled with the even-odd rule, one scanline per pixel row, so
// holes stay masked.
func Crop(r *Raster, aoi AOI, nodata float64) (*Raster, error) {
	if err := aoi.Validate(); err != nil {
		return nil, err
	}
	r0, r1, c0, c1 := boundWindow(r, aoi.Bounds())
	if r0 >= r1 || c0 >= c1 {
		return nil, fmt.Errorf("crop %s: aoi outside raster extent: %w", aoi.Name, ErrEmptyAOI)
	}

	out := r.Window(r0, r1, c0, c1)
	out.NoData = nodata
	rows, cols := out.Dims()
	inside := make([]bool, cols)
	var kept int

	for row := 0; row < rows; row++ {
		y := out.Transform.PixelCenter(row, 0)[1]
		clear(inside)
		kept += fillScanline(inside, out.Transform, aoi.Geometry, y)
		for _, b := range out.Bands {
			for col, in := range inside {
				if !in {
					b.Set(row, col, nodata)
				}
			}
		}
	}
	if kept == 0 {
		return nil, fmt.Errorf("crop %s: no pixel centres inside aoi: %w", aoi.Name, ErrEmptyAOI)
	}
	return out, nil
}

// CropBound trims the raster to a rectangle without masking.
func CropBound(r *Raster, b orb.Bound) (*Raster, error) {
	r0, r1, c0, c1 := boundWindow(r, b)
	if r0 >= r1 || c0 >= c1 {
		return nil, fmt.Errorf("crop to %v: %w", b, ErrEmptyAOI)
	}
	return r.Window(r0, r1, c0, c1), nil
}

// boundWindow converts a ground bound into a clamped pixel window.
func boundWindow(r *Raster, b orb.Bound) (r0, r1, c0, c1 int) {
	rows, cols := r.Dims()
	t := r.Transform
	c0 = clampInt(int(math.Floor((b.Min[0]-t[0])/t[1]+windowEpsilon)), 0, cols)
	c1 = clampInt(int(math.Ceil((b.Max[0]-t[0])/t[1]-windowEpsilon)), 0, cols)
	r0 = clampInt(int(math.Floor((b.Max[1]-t[3])/t[5]+windowEpsilon)), 0, rows)
	r1 = clampInt(int(math.Ceil((b.Min[1]-t[3])/t[5]-windowEpsilon)), 0, rows)
	return r0, r1, c0, c1
}

// fillScanline marks the columns whose centres fall inside mp along the
// horizontal line y and returns how many were marked.
func fillScanline(inside []bool, t Transform, mp orb.MultiPolygon, y float64) int {
	var xs []float64
	for _, poly := range mp {
		for _, ring := range poly {
			n := len(ring)
			for i := 0; i < n; i++ {
				p, q := ring[i], ring[(i+1)%n]
				if (p[1] <= y) == (q[1] <= y) {
					continue
				}
				xs = append(xs, p[0]+(y-p[1])*(q[0]-p[0])/(q[1]-p[1]))
			}
		}
	}
	sort.Float64s(xs)

	var marked int
	for i := 0; i+1 < len(xs); i += 2 {
		start := int(math.Ceil((xs[i]-t[0])/t[1] - 0.5))
		end := int(math.Ceil((xs[i+1]-t[0])/t[1] - 0.5))
		start = clampInt(start, 0, len(inside))
		end = clampInt(end, 0, len(inside))
		for c := start; c < end; c++ {
			if !inside[c] {
				inside[c] = true
				marked++
			}
		}
	}
	return marked
}

// MaskCount returns the number of finite pixels of m.
func MaskCount(m *mat.Dense) int {
	return len(FiniteValues(m))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
