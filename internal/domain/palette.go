package domain

import (
	"image/color"
	"math"
)

// Ramp is a sequential colormap sampled by linear interpolation between
// evenly spaced anchors.
type Ramp []color.RGBA

// At returns the color at f in [0,1].
func (r Ramp) At(f float64) color.RGBA {
	if len(r) == 0 {
		return color.RGBA{A: 255}
	}
	f = math.Max(0, math.Min(1, f))
	pos := f * float64(len(r)-1)
	i := int(math.Floor(pos))
	if i >= len(r)-1 {
		return r[len(r)-1]
	}
	frac := pos - float64(i)
	a, b := r[i], r[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + frac*(float64(y)-float64(x))))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

func hex(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// Sequential nine-class ramps, one per severity column.
var (
	RampPurples = Ramp{hex(0xfcfbfd), hex(0xefedf5), hex(0xdadaeb), hex(0xbcbddc), hex(0x9e9ac8), hex(0x807dba), hex(0x6a51a3), hex(0x54278f), hex(0x3f007d)}
	RampBlues   = Ramp{hex(0xf7fbff), hex(0xdeebf7), hex(0xc6dbef), hex(0x9ecae1), hex(0x6baed6), hex(0x4292c6), hex(0x2171b5), hex(0x08519c), hex(0x08306b)}
	RampGreens  = Ramp{hex(0xf7fcf5), hex(0xe5f5e0), hex(0xc7e9c0), hex(0xa1d99b), hex(0x74c476), hex(0x41ab5d), hex(0x238b45), hex(0x006d2c), hex(0x00441b)}
	RampOranges = Ramp{hex(0xfff5eb), hex(0xfee6ce), hex(0xfdd0a2), hex(0xfdae6b), hex(0xfd8d3c), hex(0xf16913), hex(0xd94801), hex(0xa63603), hex(0x7f2704)}
)

// Palette maps bins to display colors.
type Palette struct {
	Bins       [NumSlopeTiers][NumSeverityTiers]color.RGBA
	Background color.RGBA
	Unbinned   color.RGBA
}

// BinIntensity is the 0-255 ramp position for a slope tier: max(200*(i+1)/3, 50).
func BinIntensity(s SlopeTier) int {
	return max(200*(int(s)+1)/3, 50)
}

// DefaultPalette colors each severity column with its own ramp and each slope
// row with a fixed intensity along it.
func DefaultPalette() Palette {
	ramps := [NumSeverityTiers]Ramp{RampPurples, RampBlues, RampGreens, RampOranges}
	p := Palette{
		Background: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Unbinned:   color.RGBA{A: 255},
	}
	for s := SlopeSteep; s <= SlopeGentle; s++ {
		f := float64(BinIntensity(s)) / 255
		for v := SeverityLow; v <= SeveritySevere; v++ {
			p.Bins[s][v] = ramps[v].At(f)
		}
	}
	return p
}

// Color returns the display color for a label.
func (p Palette) Color(l Label) color.RGBA {
	if s, v, ok := l.Bin(); ok {
		return p.Bins[s][v]
	}
	if l == LabelBackground {
		return p.Background
	}
	return p.Unbinned
}
