package domain

import (
	"image"
)

// Label is the integer class of one pixel: 0..11 for the bins, or one of the
// negative sentinels.
type Label int8

const (
	// LabelBackground marks a non-finite slope pixel (outside the parcel).
	LabelBackground Label = -1
	// LabelUnbinned marks a finite slope pixel whose slope or severity value
	// matched no tier (a threshold value or a missing severity).
	LabelUnbinned Label = -2
)

// BinLabel returns the label of (s, v).
func BinLabel(s SlopeTier, v SeverityTier) Label {
	return Label(int(s)*NumSeverityTiers + int(v))
}

// Bin decodes a bin label.
func (l Label) Bin() (SlopeTier, SeverityTier, bool) {
	if l < 0 || int(l) >= NumBins {
		return 0, 0, false
	}
	return SlopeTier(int(l) / NumSeverityTiers), SeverityTier(int(l) % NumSeverityTiers), true
}

// Classification is the per-pixel result of Classify.
type Classification struct {
	Rows, Cols int
	Labels     []Label
	Colors     *image.RGBA
	Transform  Transform
	CRS        string
}

// At returns the label of (row, col).
func (c *Classification) At(row, col int) Label { return c.Labels[row*c.Cols+col] }

// Count returns how many pixels carry l.
func (c *Classification) Count(l Label) int {
	n := 0
	for _, x := range c.Labels {
		if x == l {
			n++
		}
	}
	return n
}

// Mask returns the boolean mask of one bin in row-major order.
func (c *Classification) Mask(s SlopeTier, v SeverityTier) []bool {
	want := BinLabel(s, v)
	out := make([]bool, len(c.Labels))
	for i, x := range c.Labels {
		out[i] = x == want
	}
	return out
}

// Classify labels every pixel of the pair and paints the color grid. Each
// pixel ends up in exactly one bin, background or unbinned.
func Classify(pair AlignedPair, tiers Tiers, palette Palette) *Classification {
	rows, cols := pair.Dims()
	c := &Classification{
		Rows:      rows,
		Cols:      cols,
		Labels:    make([]Label, rows*cols),
		Colors:    image.NewRGBA(image.Rect(0, 0, cols, rows)),
		Transform: pair.Transform,
		CRS:       pair.CRS,
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			l := classifyPixel(pair.Slope.At(row, col), pair.Severity.At(row, col), tiers)
			c.Labels[row*cols+col] = l
			c.Colors.SetRGBA(col, row, palette.Color(l))
		}
	}
	return c
}

func classifyPixel(slope, severity float64, tiers Tiers) Label {
	if !isFinite(slope) {
		return LabelBackground
	}
	s, ok := tiers.SlopeTier(slope)
	if !ok {
		return LabelUnbinned
	}
	v, ok := tiers.SeverityTier(severity)
	if !ok {
		return LabelUnbinned
	}
	return BinLabel(s, v)
}
