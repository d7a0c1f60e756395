package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	NumSlopeTiers    = 3
	NumSeverityTiers = 4
	NumBins          = NumSlopeTiers * NumSeverityTiers
)

// SlopeTier indexes table rows, steepest first.
type SlopeTier int

const (
	SlopeSteep SlopeTier = iota
	SlopeModerate
	SlopeGentle
)

// SeverityTier indexes table columns, least severe first.
type SeverityTier int

const (
	SeverityLow SeverityTier = iota
	SeverityModerate
	SeverityHigh
	SeveritySevere
)

// Tiers holds the classification thresholds. Slope is {gentle, steep} in
// degrees, Severity the three BA loss cut points in percent.
type Tiers struct {
	Slope    [2]float64
	Severity [3]float64
}

// DefaultTiers returns 15/30 degree slope and 25/50/75 percent severity cuts.
func DefaultTiers() Tiers {
	return Tiers{
		Slope:    [2]float64{15, 30},
		Severity: [3]float64{25, 50, 75},
	}
}

// Validate requires finite, strictly increasing thresholds.
func (t Tiers) Validate() error {
	cuts := [][]float64{t.Slope[:], t.Severity[:]}
	for _, c := range cuts {
		for i, v := range c {
			if !isFinite(v) {
				return errors.New("tier threshold must be finite")
			}
			if i > 0 && v <= c[i-1] {
				return fmt.Errorf("tier thresholds must increase: %v", c)
			}
		}
	}
	return nil
}

// SlopeTier bins s. Values on a threshold and non-finite values match no tier.
func (t Tiers) SlopeTier(s float64) (SlopeTier, bool) {
	switch {
	case s > t.Slope[1]:
		return SlopeSteep, true
	case s > t.Slope[0] && s < t.Slope[1]:
		return SlopeModerate, true
	case s < t.Slope[0]:
		return SlopeGentle, true
	}
	return 0, false
}

// SeverityTier bins b with the same strict comparisons.
func (t Tiers) SeverityTier(b float64) (SeverityTier, bool) {
	c := t.Severity
	switch {
	case b < c[0]:
		return SeverityLow, true
	case b > c[0] && b < c[1]:
		return SeverityModerate, true
	case b > c[1] && b < c[2]:
		return SeverityHigh, true
	case b > c[2]:
		return SeveritySevere, true
	}
	return 0, false
}

// SlopeLabels are the row headings of the acreage table.
func (t Tiers) SlopeLabels() [NumSlopeTiers]string {
	lo, hi := num(t.Slope[0]), num(t.Slope[1])
	return [NumSlopeTiers]string{
		"Slope > " + hi + "%",
		hi + "% > Slope > " + lo + "%",
		"Slope < " + lo + "%",
	}
}

// SeverityLabels are the column headings of the acreage table.
func (t Tiers) SeverityLabels() [NumSeverityTiers]string {
	a, b, c := num(t.Severity[0]), num(t.Severity[1]), num(t.Severity[2])
	return [NumSeverityTiers]string{
		"BA loss < " + a + "%",
		a + "% < BA loss < " + b + "%",
		b + "% < BA loss < " + c + "%",
		"BA loss > " + c + "%",
	}
}

// ShortSlope and ShortSeverity label the cross-parcel table columns.
func (t Tiers) ShortSlope() [NumSlopeTiers]string {
	lo, hi := num(t.Slope[0]), num(t.Slope[1])
	return [NumSlopeTiers]string{"S>" + hi, hi + ">S>" + lo, "S<" + lo}
}

func (t Tiers) ShortSeverity() [NumSeverityTiers]string {
	a, b, c := num(t.Severity[0]), num(t.Severity[1]), num(t.Severity[2])
	return [NumSeverityTiers]string{"BA<" + a, a + "<BA<" + b, b + "<BA<" + c, "BA>" + c}
}

func num(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
