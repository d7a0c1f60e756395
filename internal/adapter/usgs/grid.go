package usgs

import (
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/paulmach/orb"
)

// grid is the request raster over a bounding box, truncated to whole metres.
type grid struct {
	width, height int
	transform     domain.Transform
}

func newGrid(b orb.Bound) grid {
	w := int(b.Max[0] - b.Min[0])
	h := int(b.Max[1] - b.Min[1])
	g := grid{width: w, height: h}
	if w > 0 && h > 0 {
		g.transform = domain.Transform{
			b.Min[0], (b.Max[0] - b.Min[0]) / float64(w), 0,
			b.Max[1], 0, -(b.Max[1] - b.Min[1]) / float64(h),
		}
	}
	return g
}

// window is a block of the grid in pixel space.
type window struct {
	row, col   int
	rows, cols int
}

// windows tiles the grid into blocks of at most size x size pixels,
// walking columns in the outer loop.
func (g grid) windows(size int) []window {
	var out []window
	for col := 0; col < g.width; col += size {
		cols := min(size, g.width-col)
		for row := 0; row < g.height; row += size {
			out = append(out, window{row: row, col: col, rows: min(size, g.height-row), cols: cols})
		}
	}
	return out
}

// bounds returns the ground extent of w.
func (g grid) bounds(w window) orb.Bound {
	t := g.transform
	x0 := t[0] + float64(w.col)*t[1]
	x1 := t[0] + float64(w.col+w.cols)*t[1]
	y0 := t[3] + float64(w.row)*t[5]
	y1 := t[3] + float64(w.row+w.rows)*t[5]
	return orb.Bound{Min: orb.Point{x0, y1}, Max: orb.Point{x1, y0}}
}
