package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SquareMetersPerAcre converts ground area to acres.
const SquareMetersPerAcre = 4046.86

// AcreageTable is the 3x4 slope x severity acreage summary of one parcel.
type AcreageTable struct {
	Acres      [NumSlopeTiers][NumSeverityTiers]float64 `json:"acres"`
	Pixels     [NumSlopeTiers][NumSeverityTiers]int     `json:"pixels"`
	PixelAcres float64                                  `json:"pixel_acres"`
	Total      float64                                  `json:"total_acres"`
	Background int                                      `json:"background_pixels"`
	Unbinned   int                                      `json:"unbinned_pixels"`
}

// PixelAcres is the area of one pixel in acres.
func PixelAcres(res Resolution) float64 {
	return res.X * res.Y / SquareMetersPerAcre
}

// Aggregate counts the pixels of every bin and converts them to acres at two
// decimals. Total covers binned pixels only, and the twelve bins always add up
// to it exactly.
func Aggregate(c *Classification, res Resolution) AcreageTable {
	t := AcreageTable{PixelAcres: PixelAcres(res)}
	binned := 0
	for _, l := range c.Labels {
		if s, v, ok := l.Bin(); ok {
			t.Pixels[s][v]++
			binned++
			continue
		}
		if l == LabelBackground {
			t.Background++
		} else {
			t.Unbinned++
		}
	}
	t.Total = RoundAcres(float64(binned) * t.PixelAcres)
	t.apportion()
	return t
}

// apportion splits Total into hundredths of an acre by largest remainder.
// Every bin gets the floor of its exact share; the cents left over go to the
// bins with the largest fractional parts, lower bin index first on ties.
func (t *AcreageTable) apportion() {
	const eps = 1e-9
	var (
		cents [NumBins]int
		rem   [NumBins]float64
		order []int
		sum   int
	)
	for s := range t.Pixels {
		for v, n := range t.Pixels[s] {
			if n == 0 {
				continue
			}
			i := s*NumSeverityTiers + v
			exact := float64(n) * t.PixelAcres * 100
			cents[i] = int(math.Floor(exact + eps))
			rem[i] = exact - float64(cents[i])
			sum += cents[i]
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })

	left := int(math.Round(t.Total*100)) - sum
	for k := 0; left > 0 && k < len(order); k++ {
		cents[order[k]]++
		left--
	}
	for k := len(order) - 1; left < 0 && k >= 0; k-- {
		if cents[order[k]] > 0 {
			cents[order[k]]--
			left++
		}
	}
	for i, c := range cents {
		t.Acres[i/NumSeverityTiers][i%NumSeverityTiers] = float64(c) / 100
	}
}

// At returns the acreage of one bin.
func (t AcreageTable) At(s SlopeTier, v SeverityTier) float64 { return t.Acres[s][v] }

// SeverityColumn sums one severity tier over every slope tier.
func (t AcreageTable) SeverityColumn(v SeverityTier) float64 {
	col := make([]float64, NumSlopeTiers)
	for s := range t.Acres {
		col[s] = t.Acres[s][v]
	}
	return floats.Sum(col)
}

// SlopeRow sums one slope tier over every severity tier.
func (t AcreageTable) SlopeRow(s SlopeTier) float64 {
	return floats.Sum(t.Acres[s][:])
}

// AllSlopesSevere is the headline metric: acreage above the top severity cut
// regardless of slope.
func (t AcreageTable) AllSlopesSevere() float64 {
	return t.SeverityColumn(SeveritySevere)
}

// BinSum adds up the twelve rounded bins.
func (t AcreageTable) BinSum() float64 {
	var sum float64
	for s := range t.Acres {
		sum += floats.Sum(t.Acres[s][:])
	}
	return sum
}

// RoundAcres rounds to two decimals.
func RoundAcres(v float64) float64 {
	return math.Round(v*100) / 100
}
