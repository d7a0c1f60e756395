package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const feetPerMeter = 1 / 0.3048

// mapPlot places img over its ground extent with East/North axes.
func mapPlot(title string, img image.Image, b orb.Bound) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "East"
	p.Y.Label.Text = "North"
	p.Add(plotter.NewImage(img, b.Min[0], b.Min[1], b.Max[0], b.Max[1]))
	return p
}

// addOutline draws every ring of aoi on p.
func addOutline(p *plot.Plot, aoi domain.AOI, c color.Color) error {
	for _, poly := range aoi.Geometry {
		for _, ring := range poly {
			pts := make(plotter.XYs, len(ring))
			for i, pt := range ring {
				pts[i] = plotter.XY{X: pt[0], Y: pt[1]}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("outline %s: %w", aoi.Name, err)
			}
			line.Color = c
			line.Width = vg.Points(2)
			p.Add(line)
		}
	}
	return nil
}

// histogramPlot draws pre-binned counts scaled to acres. An empty histogram
// gives a titled placeholder panel.
func histogramPlot(xlabel string, h domain.Histogram, pixelAcres float64) *plot.Plot {
	p := plot.New()
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "acres"
	if len(h.Counts) == 0 {
		p.Title.Text = "No data"
		return p
	}

	bins := make([]plotter.HistogramBin, len(h.Counts))
	for i, n := range h.Counts {
		bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: n * pixelAcres}
	}
	p.Add(&plotter.Histogram{
		Bins:      bins,
		Width:     domain.HistogramBinWidth,
		FillColor: color.RGBA{R: 31, G: 119, B: 180, A: 255},
		LineStyle: plotter.DefaultLineStyle,
	})
	return p
}

// ContourIntervals picks the major and minor contour spacing in feet and the
// minor line width for a parcel of the given ground area.
func ContourIntervals(areaM2 float64) (major, minor float64, width vg.Length) {
	km2 := areaM2 / 1e6
	switch {
	case km2 > 10:
		return 50, 10, vg.Points(0.25)
	case km2 > 0.1:
		return 20, 4, vg.Points(0.25)
	default:
		return 10, 1, vg.Points(1)
	}
}

// ContourLevels lists minor and major levels spanning [lo, hi], aligned to
// multiples of major.
func ContourLevels(lo, hi, major, minor float64) (minors, majors []float64) {
	start := math.Floor(lo/major) * major
	end := math.Ceil(hi)
	for i := 0; ; i++ {
		v := start + float64(i)*minor
		if v >= end {
			break
		}
		if math.Abs(math.Remainder(v, major)) < 1e-9 {
			majors = append(majors, v)
		} else {
			minors = append(minors, v)
		}
	}
	return minors, majors
}

// elevationGrid adapts an elevation band to plotter.GridXYZ, in feet, with
// rows flipped so Y increases.
type elevationGrid struct {
	z         *mat.Dense
	transform domain.Transform
}

func (g elevationGrid) Dims() (c, r int) {
	rows, cols := g.z.Dims()
	return cols, rows
}

func (g elevationGrid) Z(c, r int) float64 {
	rows, _ := g.z.Dims()
	return g.z.At(rows-1-r, c) * feetPerMeter
}

func (g elevationGrid) X(c int) float64 { return g.transform.PixelCenter(0, c)[0] }

func (g elevationGrid) Y(r int) float64 {
	rows, _ := g.z.Dims()
	return g.transform.PixelCenter(rows-1-r, 0)[1]
}

type single struct{ c color.Color }

func (s single) Colors() []color.Color { return []color.Color{s.c} }

// contourPlot draws elevation contours in feet with thicker major lines.
func contourPlot(dem *domain.Raster, areaM2 float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Elevation contours [ft]"
	p.X.Label.Text = "East"
	p.Y.Label.Text = "North"

	grid := elevationGrid{z: dem.Masked().Band(), transform: dem.Transform}
	values := domain.FiniteValues(grid.z)
	if len(values) == 0 {
		return nil, fmt.Errorf("contours: no finite elevation: %w", domain.ErrEmptyAOI)
	}
	major, minor, width := ContourIntervals(areaM2)
	minors, majors := ContourLevels(floats.Min(values)*feetPerMeter, floats.Max(values)*feetPerMeter, major, minor)

	sets := []struct {
		levels []float64
		width  vg.Length
	}{{minors, width}, {majors, 2 * width}}
	for _, s := range sets {
		// A single level leaves the palette scale undefined.
		if len(s.levels) < 2 {
			continue
		}
		c := plotter.NewContour(grid, s.levels, single{color.Black})
		c.LineStyles = []draw.LineStyle{{Color: color.Black, Width: s.width}}
		p.Add(c)
	}
	return p, nil
}
