package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// HistogramBinWidth is the bin width used for slope and severity histograms.
const HistogramBinWidth = 5.0

// SlopeHistogramStart is the first slope bin edge.
const SlopeHistogramStart = -5.0

// Histogram holds bin edges (len(Counts)+1) and per-bin pixel counts.
type Histogram struct {
	Edges  []float64
	Counts []float64
}

// Total returns the number of counted values.
func (h Histogram) Total() float64 { return floats.Sum(h.Counts) }

// NewHistogram bins the finite values of m with fixed width starting at start.
// Values below start are ignored; the last bin always reaches past the maximum.
// A grid without finite values yields ErrEmptyAOI.
func NewHistogram(m *mat.Dense, start, width float64) (Histogram, error) {
	if width <= 0 {
		return Histogram{}, errors.New("histogram bin width must be positive")
	}
	values := FiniteValues(m)
	kept := values[:0]
	for _, v := range values {
		if v >= start {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return Histogram{}, fmt.Errorf("histogram: no finite values: %w", ErrEmptyAOI)
	}
	sort.Float64s(kept)

	n := int(math.Floor((kept[len(kept)-1]-start)/width)) + 1
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = start + float64(i)*width
	}
	for edges[len(edges)-1] <= kept[len(kept)-1] {
		edges = append(edges, edges[len(edges)-1]+width)
	}
	counts := stat.Histogram(nil, edges, kept, nil)
	return Histogram{Edges: edges, Counts: counts}, nil
}

// SeverityHistogram starts at the smallest finite severity value.
func SeverityHistogram(m *mat.Dense) (Histogram, error) {
	values := FiniteValues(m)
	if len(values) == 0 {
		return Histogram{}, fmt.Errorf("severity histogram: no finite values: %w", ErrEmptyAOI)
	}
	return NewHistogram(m, floats.Min(values), HistogramBinWidth)
}

// SlopeHistogram starts at SlopeHistogramStart.
func SlopeHistogram(m *mat.Dense) (Histogram, error) {
	return NewHistogram(m, SlopeHistogramStart, HistogramBinWidth)
}
