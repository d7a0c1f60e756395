package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultAlignTolerance is the allowed origin and resolution drift, in pixels.
const DefaultAlignTolerance = 0.01

// AlignedPair holds slope and severity grids of identical shape on one grid.
type AlignedPair struct {
	Slope     *mat.Dense
	Severity  *mat.Dense
	Transform Transform
	CRS       string
}

// Dims returns the shared shape.
func (p AlignedPair) Dims() (rows, cols int) { return p.Slope.Dims() }

// Resolution returns the shared pixel size.
func (p AlignedPair) Resolution() Resolution { return p.Transform.Resolution() }

// Align checks that slope and severity share a CRS, resolution and origin
// (within tolerance pixels) and truncates both to their common rows and
// columns from (0,0). A negative or non-finite tolerance means
// DefaultAlignTolerance. Rasters on different grids fail with a
// *GridMismatchError instead of being compared positionally.
func Align(slope, severity *Raster, tolerance float64) (AlignedPair, error) {
	if tolerance < 0 || !isFinite(tolerance) {
		tolerance = DefaultAlignTolerance
	}
	a, b := slope.Transform, severity.Transform
	mismatch := func(format string, args ...any) (AlignedPair, error) {
		return AlignedPair{}, &GridMismatchError{Reason: fmt.Sprintf(format, args...), A: a, B: b}
	}

	if slope.CRS != severity.CRS {
		return mismatch("crs differs")
	}
	ra, rb := a.Resolution(), b.Resolution()
	if math.Abs(ra.X-rb.X) > tolerance*ra.X || math.Abs(ra.Y-rb.Y) > tolerance*ra.Y {
		return mismatch("resolution %gx%g vs %gx%g", ra.X, ra.Y, rb.X, rb.Y)
	}
	dx := math.Abs(a[0]-b[0]) / ra.X
	dy := math.Abs(a[3]-b[3]) / ra.Y
	if dx > tolerance || dy > tolerance {
		return mismatch("origin offset %.3f,%.3f px", dx, dy)
	}

	rowsA, colsA := slope.Dims()
	rowsB, colsB := severity.Dims()
	rows, cols := min(rowsA, rowsB), min(colsA, colsB)

	return AlignedPair{
		Slope:     mat.DenseCopyOf(slope.Band().Slice(0, rows, 0, cols)),
		Severity:  mat.DenseCopyOf(severity.Band().Slice(0, rows, 0, cols)),
		Transform: a,
		CRS:       slope.CRS,
	}, nil
}
