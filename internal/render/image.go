// Package render draws the per-parcel figures and the web map overlay with
// gonum/plot.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// Scalar paints a single band through cm, stretching it over [lo, hi].
// Non-finite pixels are transparent.
func Scalar(m *mat.Dense, cm palette.ColorMap, lo, hi float64) image.Image {
	if !(hi > lo) {
		hi = lo + 1
	}
	cm.SetMin(lo)
	cm.SetMax(hi)

	rows, cols := m.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			col, err := cm.At(math.Max(lo, math.Min(hi, v)))
			if err != nil {
				continue
			}
			img.Set(c, r, col)
		}
	}
	return img
}

// Gray paints a band in grayscale over [lo, hi].
func Gray(m *mat.Dense, lo, hi float64) image.Image {
	return Scalar(m, grayMap(), lo, hi)
}

// Hot paints a band with a black-red-yellow-white ramp over its finite range.
func Hot(m *mat.Dense) image.Image {
	lo, hi := finiteRange(m)
	return Scalar(m, moreland.ExtendedBlackBody(), lo, hi)
}

// RGB composes the first three bands of an 8-bit image. Zero channel values
// are nodata in aerial imagery and are shown as 255.
func RGB(r *domain.Raster) (image.Image, error) {
	if len(r.Bands) < 3 {
		return nil, fmt.Errorf("imagery has %d bands, want 3", len(r.Bands))
	}
	rows, cols := r.Dims()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	channel := func(v float64) uint8 {
		if v == 0 || math.IsNaN(v) {
			return 255
		}
		return uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: channel(r.Bands[0].At(y, x)),
				G: channel(r.Bands[1].At(y, x)),
				B: channel(r.Bands[2].At(y, x)),
				A: 255,
			})
		}
	}
	return img, nil
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close() //nolint:errcheck // encode error wins
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func finiteRange(m *mat.Dense) (lo, hi float64) {
	values := domain.FiniteValues(m)
	if len(values) == 0 {
		return 0, 1
	}
	return floats.Min(values), floats.Max(values)
}

// grayScale is a linear black to white ColorMap.
type grayScale struct {
	min, max float64
	alpha    float64
}

func grayMap() *grayScale { return &grayScale{max: 1, alpha: 1} }

func (g *grayScale) At(v float64) (color.Color, error) {
	switch {
	case v < g.min:
		return nil, palette.ErrUnderflow
	case v > g.max:
		return nil, palette.ErrOverflow
	}
	f := (v - g.min) / (g.max - g.min)
	l := uint8(math.Round(f * 255))
	return color.NRGBA{R: l, G: l, B: l, A: uint8(math.Round(g.alpha * 255))}, nil
}

func (g *grayScale) SetMax(v float64)   { g.max = v }
func (g *grayScale) SetMin(v float64)   { g.min = v }
func (g *grayScale) Max() float64       { return g.max }
func (g *grayScale) Min() float64       { return g.min }
func (g *grayScale) SetAlpha(a float64) { g.alpha = a }
func (g *grayScale) Alpha() float64     { return g.alpha }

func (g *grayScale) Palette(n int) palette.Palette {
	return paletteOf(g, n)
}

type colors []color.Color

func (c colors) Colors() []color.Color { return c }

// paletteOf samples n evenly spaced colors from cm.
func paletteOf(cm palette.ColorMap, n int) palette.Palette {
	out := make(colors, n)
	for i := range out {
		v := cm.Min()
		if n > 1 {
			v += float64(i) * (cm.Max() - cm.Min()) / float64(n-1)
		}
		c, err := cm.At(v)
		if err != nil {
			c = color.Black
		}
		out[i] = c
	}
	return out
}
