package domain

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const testCRS = "EPSG:32610"

// northUp returns a transform with origin (x0, y0) and square pixels.
func northUp(x0, y0, res float64) Transform {
	return Transform{x0, res, 0, y0, 0, -res}
}

func filledRaster(t *testing.T, rows, cols int, value, res float64) *Raster {
	t.Helper()
	m := mat.NewDense(rows, cols, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return value }, m)
	r, err := NewRaster([]*mat.Dense{m}, northUp(0, float64(rows)*res, res), testCRS, math.NaN())
	require.NoError(t, err)
	return r
}

func gridRaster(t *testing.T, values [][]float64, res float64) *Raster {
	t.Helper()
	rows, cols := len(values), len(values[0])
	m := mat.NewDense(rows, cols, nil)
	for r, line := range values {
		for c, v := range line {
			m.Set(r, c, v)
		}
	}
	out, err := NewRaster([]*mat.Dense{m}, northUp(0, float64(rows)*res, res), testCRS, math.NaN())
	require.NoError(t, err)
	return out
}

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func testAOI(t *testing.T, name string, g orb.Geometry) AOI {
	t.Helper()
	a, err := NewAOI(name, testCRS, g)
	require.NoError(t, err)
	return a
}
