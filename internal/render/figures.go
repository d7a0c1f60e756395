package render

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Figure file names inside a parcel's figure directory.
const (
	FigureSlope     = "slope.png"
	FigureHillshade = "hillshade.png"
	FigureSeverity  = "ba.png"
	FigureImagery   = "naip.png"
	FigureContour   = "contour.png"
	FigureClasses   = "ba_slope.png"
	FigureComposite = "ba_slope_hist.png"
)

// SlopeDisplayMax caps the slope figure's gray ramp, in degrees.
const SlopeDisplayMax = 30

const figureSize = 8 * vg.Inch

// Figures holds everything drawn for one parcel. Rasters and AOI share a CRS.
// Imagery is optional, and a zero Histogram draws as an empty panel.
type Figures struct {
	AOI            domain.AOI
	DEM            *domain.Raster
	Slope          *domain.Raster
	Hillshade      *domain.Raster
	Severity       *domain.Raster
	Imagery        *domain.Raster
	Classification *domain.Classification
	SlopeHist      domain.Histogram
	SeverityHist   domain.Histogram
	PixelAcres     float64
}

// Parcel writes every figure into dir and returns the paths written, keyed by
// file name. A failing figure does not stop the others; their errors are
// joined.
func Parcel(dir string, f Figures) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	written := map[string]string{}
	var errs []error
	save := func(name string, build func() (*plot.Plot, error)) {
		p, err := build()
		if err == nil {
			path := filepath.Join(dir, name)
			if err = p.Save(figureSize, figureSize, path); err == nil {
				written[name] = path
				return
			}
		}
		errs = append(errs, fmt.Errorf("figure %s: %w", name, err))
	}

	save(FigureSlope, func() (*plot.Plot, error) {
		p := mapPlot("Slope [degrees]", Gray(f.Slope.Masked().Band(), 0, SlopeDisplayMax), f.Slope.Bounds())
		return p, addOutline(p, f.AOI, color.RGBA{R: 255, A: 255})
	})
	save(FigureHillshade, func() (*plot.Plot, error) {
		p := mapPlot("Hillshade", Gray(f.Hillshade.Band(), 0, 1), f.Hillshade.Bounds())
		return p, addOutline(p, f.AOI, color.White)
	})
	save(FigureSeverity, func() (*plot.Plot, error) {
		lo, hi := finiteRange(f.Severity.Masked().Band())
		p := mapPlot("Basal area loss [%]", Gray(f.Severity.Masked().Band(), lo, hi), f.Severity.Bounds())
		return p, addOutline(p, f.AOI, color.RGBA{R: 255, A: 255})
	})
	save(FigureContour, func() (*plot.Plot, error) {
		p, err := contourPlot(f.DEM, f.AOI.Area())
		if err != nil {
			return nil, err
		}
		return p, addOutline(p, f.AOI, color.Black)
	})
	save(FigureClasses, func() (*plot.Plot, error) {
		return classesPlot(f.Classification), nil
	})
	if f.Imagery != nil {
		save(FigureImagery, func() (*plot.Plot, error) { return imageryPlot(f.Imagery) })
	}

	path := filepath.Join(dir, FigureComposite)
	if err := composite(path, f); err != nil {
		errs = append(errs, fmt.Errorf("figure %s: %w", FigureComposite, err))
	} else {
		written[FigureComposite] = path
	}
	return written, errors.Join(errs...)
}

func imageryPlot(r *domain.Raster) (*plot.Plot, error) {
	img, err := RGB(r)
	if err != nil {
		return nil, err
	}
	return mapPlot("NAIP imagery", img, r.Bounds()), nil
}

func classesPlot(c *domain.Classification) *plot.Plot {
	return mapPlot("Slope x burn severity", c.Colors, gridBound(c.Transform, c.Rows, c.Cols))
}

// composite lays imagery, classification and both histograms out on a 2x2 page.
func composite(path string, f Figures) error {
	top := plot.New()
	top.Title.Text = "No imagery"
	if f.Imagery != nil {
		p, err := imageryPlot(f.Imagery)
		if err != nil {
			return err
		}
		top = p
	}
	plots := [][]*plot.Plot{
		{top, classesPlot(f.Classification)},
		{
			histogramPlot("slope [degrees]", f.SlopeHist, f.PixelAcres),
			histogramPlot("Basal area (BA) loss [%]", f.SeverityHist, f.PixelAcres),
		},
	}

	img := vgimg.New(2*figureSize, 2*figureSize)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(out); err != nil {
		out.Close() //nolint:errcheck // write error wins
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// Overlay writes the burn severity web map overlay: a hot colormap PNG with
// transparent nodata.
func Overlay(path string, severity *domain.Raster) error {
	return WritePNG(path, Hot(severity.Masked().Band()))
}

func gridBound(t domain.Transform, rows, cols int) orb.Bound {
	x0, y0 := t[0], t[3]
	x1, y1 := x0+float64(cols)*t[1], y0+float64(rows)*t[5]
	return orb.Bound{
		Min: orb.Point{min(x0, x1), min(y0, y1)},
		Max: orb.Point{max(x0, x1), max(y0, y1)},
	}
}
