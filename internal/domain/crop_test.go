package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrop(t *testing.T) {
	t.Run("square inside raster", func(t *testing.T) {
		src := filledRaster(t, 10, 10, 7, 1)
		aoi := testAOI(t, "sq", square(2, 2, 6, 6))

		out, err := Crop(src, aoi, math.NaN())
		require.NoError(t, err)

		rows, cols := out.Dims()
		assert.Equal(t, 4, rows)
		assert.Equal(t, 4, cols)
		assert.Equal(t, 2.0, out.Transform[0])
		assert.Equal(t, 6.0, out.Transform[3])
		assert.Len(t, FiniteValues(out.Band()), 16)
		assert.Equal(t, orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{6, 6}}, out.Bounds())
	})

	t.Run("triangle masks corner", func(t *testing.T) {
		src := filledRaster(t, 10, 10, 1, 1)
		tri := orb.Polygon{{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}
		out, err := Crop(src, testAOI(t, "tri", tri), -9999)
		require.NoError(t, err)

		// Top-right pixel centre (9.5, 9.5) lies above the hypotenuse.
		assert.Equal(t, -9999.0, out.Band().At(0, 9))
		// Bottom-left pixel centre (0.5, 0.5) is inside.
		assert.Equal(t, 1.0, out.Band().At(9, 0))
		assert.Equal(t, -9999.0, out.NoData)
	})

	t.Run("hole stays masked", func(t *testing.T) {
		src := filledRaster(t, 6, 6, 1, 1)
		donut := orb.Polygon{
			{{0, 0}, {6, 0}, {6, 6}, {0, 6}, {0, 0}},
			{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}},
		}
		out, err := Crop(src, testAOI(t, "donut", donut), math.NaN())
		require.NoError(t, err)

		assert.True(t, math.IsNaN(out.Band().At(2, 2)))
		assert.True(t, math.IsNaN(out.Band().At(3, 3)))
		assert.Equal(t, 1.0, out.Band().At(0, 0))
		assert.Len(t, FiniteValues(out.Band()), 32)
	})

	t.Run("aoi outside extent", func(t *testing.T) {
		src := filledRaster(t, 5, 5, 1, 1)
		_, err := Crop(src, testAOI(t, "far", square(100, 100, 110, 110)), math.NaN())
		assert.True(t, errors.Is(err, ErrEmptyAOI))
	})

	t.Run("aoi smaller than a pixel centre", func(t *testing.T) {
		src := filledRaster(t, 5, 5, 1, 1)
		_, err := Crop(src, testAOI(t, "sliver", square(1.01, 1.01, 1.2, 1.2)), math.NaN())
		assert.True(t, errors.Is(err, ErrEmptyAOI))
	})

	t.Run("source is not modified", func(t *testing.T) {
		src := filledRaster(t, 4, 4, 3, 1)
		_, err := Crop(src, testAOI(t, "half", square(0, 0, 2, 4)), math.NaN())
		require.NoError(t, err)
		assert.Len(t, FiniteValues(src.Band()), 16)
	})
}

func TestCropBound(t *testing.T) {
	src := filledRaster(t, 10, 10, 1, 2)
	out, err := CropBound(src, orb.Bound{Min: orb.Point{4, 4}, Max: orb.Point{9, 9}})
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, Transform{4, 2, 0, 10, 0, -2}, out.Transform)
}

func TestRasterMasked(t *testing.T) {
	src := gridRaster(t, [][]float64{{1, -1}, {-1, 2}}, 1)
	src.NoData = -1

	m := src.Masked()
	assert.True(t, math.IsNaN(m.Band().At(0, 1)))
	assert.Equal(t, 2.0, m.Band().At(1, 1))
	assert.Equal(t, -1.0, src.Band().At(0, 1), "source keeps its nodata values")
}

func TestNewRasterRejectsRotation(t *testing.T) {
	src := filledRaster(t, 2, 2, 0, 1)
	_, err := NewRaster(src.Bands, Transform{0, 1, 0.5, 2, 0, -1}, testCRS, 0)
	assert.Error(t, err)
}
