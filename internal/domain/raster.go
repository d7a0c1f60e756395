package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Transform is a GDAL-ordered affine geotransform.
type Transform [6]float64

// Resolution returns the absolute pixel size in CRS units.
func (t Transform) Resolution() Resolution {
	return Resolution{X: math.Abs(t[1]), Y: math.Abs(t[5])}
}

// NorthUp reports whether the transform has no rotation and rows run south.
func (t Transform) NorthUp() bool {
	return t[2] == 0 && t[4] == 0 && t[1] > 0 && t[5] < 0
}

// Offset returns the transform of a window starting at (row, col).
func (t Transform) Offset(row, col int) Transform {
	out := t
	out[0] = t[0] + float64(col)*t[1] + float64(row)*t[2]
	out[3] = t[3] + float64(col)*t[4] + float64(row)*t[5]
	return out
}

// PixelCenter returns the ground coordinate of the centre of pixel (row, col).
func (t Transform) PixelCenter(row, col int) orb.Point {
	c, r := float64(col)+0.5, float64(row)+0.5
	return orb.Point{t[0] + c*t[1] + r*t[2], t[3] + c*t[4] + r*t[5]}
}

// Resolution is the ground size of one pixel.
type Resolution struct {
	X, Y float64
}

// Mean is the average of the two axes, used as the slope sample distance.
func (r Resolution) Mean() float64 { return (r.X + r.Y) / 2 }

// Raster is a georeferenced grid with one matrix per band.
//
// Rasters are treated as immutable: every operation in this package returns a
// new value and never writes into the input bands.
type Raster struct {
	Bands     []*mat.Dense
	Transform Transform
	CRS       string
	NoData    float64
}

// NewRaster validates band shapes and the transform.
func NewRaster(bands []*mat.Dense, t Transform, crs string, nodata float64) (*Raster, error) {
	if len(bands) == 0 {
		return nil, errors.New("raster has no bands")
	}
	rows, cols := bands[0].Dims()
	for i, b := range bands[1:] {
		if r, c := b.Dims(); r != rows || c != cols {
			return nil, fmt.Errorf("band %d is %dx%d, want %dx%d", i+2, r, c, rows, cols)
		}
	}
	if !t.NorthUp() {
		return nil, fmt.Errorf("unsupported transform %v: only north-up grids are handled", [6]float64(t))
	}
	return &Raster{Bands: bands, Transform: t, CRS: crs, NoData: nodata}, nil
}

// Dims returns rows and columns.
func (r *Raster) Dims() (rows, cols int) {
	return r.Bands[0].Dims()
}

// Band returns the first band, the only one for elevation, slope and severity.
func (r *Raster) Band() *mat.Dense { return r.Bands[0] }

// Resolution returns the pixel size.
func (r *Raster) Resolution() Resolution { return r.Transform.Resolution() }

// Bounds returns the ground extent covered by the grid.
func (r *Raster) Bounds() orb.Bound {
	rows, cols := r.Dims()
	t := r.Transform
	x0, y0 := t[0], t[3]
	x1 := x0 + float64(cols)*t[1]
	y1 := y0 + float64(rows)*t[5]
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// Masked returns a copy with nodata pixels replaced by NaN.
func (r *Raster) Masked() *Raster {
	bands := make([]*mat.Dense, len(r.Bands))
	for i, b := range r.Bands {
		m := mat.DenseCopyOf(b)
		if !math.IsNaN(r.NoData) {
			raw := m.RawMatrix()
			for row := 0; row < raw.Rows; row++ {
				line := raw.Data[row*raw.Stride : row*raw.Stride+raw.Cols]
				for j, v := range line {
					if v == r.NoData {
						line[j] = math.NaN()
					}
				}
			}
		}
		bands[i] = m
	}
	return &Raster{Bands: bands, Transform: r.Transform, CRS: r.CRS, NoData: math.NaN()}
}

// Window copies rows [r0,r1) and columns [c0,c1) into a new raster with the
// transform shifted to the window origin.
func (r *Raster) Window(r0, r1, c0, c1 int) *Raster {
	bands := make([]*mat.Dense, len(r.Bands))
	for i, b := range r.Bands {
		bands[i] = mat.DenseCopyOf(b.Slice(r0, r1, c0, c1))
	}
	return &Raster{Bands: bands, Transform: r.Transform.Offset(r0, c0), CRS: r.CRS, NoData: r.NoData}
}

// FiniteValues returns every finite value of m in row-major order.
func FiniteValues(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for row := 0; row < raw.Rows; row++ {
		for _, v := range raw.Data[row*raw.Stride : row*raw.Stride+raw.Cols] {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				out = append(out, v)
			}
		}
	}
	return out
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
