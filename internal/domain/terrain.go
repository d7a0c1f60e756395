package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hillshade light source defaults.
const (
	HillshadeAzimuth  = 315.0
	HillshadeAltitude = 45.0
)

// gradient returns the row and column derivatives of m in pixel units using
// central differences inside the grid and one-sided differences on its edges.
func gradient(m *mat.Dense) (dRow, dCol *mat.Dense) {
	rows, cols := m.Dims()
	dRow = mat.NewDense(rows, cols, nil)
	dCol = mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			switch {
			case r == 0:
				dRow.Set(r, c, m.At(1, c)-m.At(0, c))
			case r == rows-1:
				dRow.Set(r, c, m.At(r, c)-m.At(r-1, c))
			default:
				dRow.Set(r, c, (m.At(r+1, c)-m.At(r-1, c))/2)
			}
			switch {
			case c == 0:
				dCol.Set(r, c, m.At(r, 1)-m.At(r, 0))
			case c == cols-1:
				dCol.Set(r, c, m.At(r, c)-m.At(r, c-1))
			default:
				dCol.Set(r, c, (m.At(r, c+1)-m.At(r, c-1))/2)
			}
		}
	}
	return dRow, dCol
}

func checkTerrainInput(dem *Raster) error {
	rows, cols := dem.Dims()
	if rows < 2 || cols < 2 {
		return fmt.Errorf("elevation grid %dx%d is too small for a gradient: %w", rows, cols, ErrEmptyAOI)
	}
	return nil
}

// Slope derives slope in degrees from an elevation raster, sampling the
// gradient at the mean ground resolution. NaN elevations propagate.
func Slope(dem *Raster) (*Raster, error) {
	if err := checkTerrainInput(dem); err != nil {
		return nil, err
	}
	elev := dem.Masked().Band()
	dRow, dCol := gradient(elev)
	spacing := dem.Resolution().Mean()

	rows, cols := elev.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(r, c int, _ float64) float64 {
		rise := math.Hypot(dRow.At(r, c), dCol.At(r, c)) / spacing
		return math.Atan(rise) * 180 / math.Pi
	}, out)
	return &Raster{Bands: []*mat.Dense{out}, Transform: dem.Transform, CRS: dem.CRS, NoData: math.NaN()}, nil
}

// Hillshade shades the elevation surface with a light at the given azimuth
// and altitude (degrees), with unit pixel spacing and no vertical
// exaggeration. Intensities are stretched to [0,1] over the finite range.
func Hillshade(dem *Raster, azimuth, altitude float64) (*Raster, error) {
	if err := checkTerrainInput(dem); err != nil {
		return nil, err
	}
	elev := dem.Masked().Band()
	dRow, dCol := gradient(elev)

	az := (90 - azimuth) * math.Pi / 180
	alt := altitude * math.Pi / 180
	lx, ly, lz := math.Cos(az)*math.Cos(alt), math.Sin(az)*math.Cos(alt), math.Sin(alt)

	rows, cols := elev.Dims()
	out := mat.NewDense(rows, cols, nil)
	lo, hi := math.Inf(1), math.Inf(-1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			// Image rows grow southward, so the north-facing derivative flips sign.
			nx, ny, nz := -dCol.At(r, c), dRow.At(r, c), 1.0
			norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
			v := (nx*lx + ny*ly + nz*lz) / norm
			out.Set(r, c, v)
			if isFinite(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	if hi-lo > 1e-6 {
		out.Apply(func(_, _ int, v float64) float64 { return (v - lo) / (hi - lo) }, out)
	}
	return &Raster{Bands: []*mat.Dense{out}, Transform: dem.Transform, CRS: dem.CRS, NoData: math.NaN()}, nil
}
