package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func classificationOf(t *testing.T, rows, cols int, slope, severity float64) *Classification {
	t.Helper()
	pair := alignedPair(t, filledRaster(t, rows, cols, slope, 10), filledRaster(t, rows, cols, severity, 10))
	return Classify(pair, DefaultTiers(), DefaultPalette())
}

func TestAggregate_PixelAcres(t *testing.T) {
	c := classificationOf(t, 10, 10, 45, 90)

	table := Aggregate(c, Resolution{X: 10, Y: 10})

	// 100 px * 100 m2 / 4046.86 = 2.4711 acres.
	assert.InDelta(t, 100.0*10*10/SquareMetersPerAcre, table.PixelAcres*100, 1e-12)
	assert.Equal(t, 2.47, table.At(SlopeSteep, SeveritySevere))
	assert.Equal(t, 100, table.Pixels[SlopeSteep][SeveritySevere])
	assert.Equal(t, 2.47, table.Total)
	assert.Equal(t, 2.47, table.AllSlopesSevere())
}

func TestAggregate_Linear(t *testing.T) {
	res := Resolution{X: 10, Y: 10}
	single := Aggregate(classificationOf(t, 10, 10, 20, 60), res)
	double := Aggregate(classificationOf(t, 20, 10, 20, 60), res)

	s := single.At(SlopeModerate, SeverityHigh)
	d := double.At(SlopeModerate, SeverityHigh)
	assert.InDelta(t, 2*s, d, 0.01)
}

func TestAggregate_TotalMatchesBins(t *testing.T) {
	slope := gridRaster(t, [][]float64{
		{45, 45, 20, 20, math.NaN()},
		{5, 5, 20, 45, math.NaN()},
		{5, 15, 30, 5, 45},
	}, 30)
	sev := gridRaster(t, [][]float64{
		{90, 10, 60, 30, 90},
		{90, 90, 60, 80, 10},
		{40, 90, 90, 60, 50},
	}, 30)
	c := Classify(alignedPair(t, slope, sev), DefaultTiers(), DefaultPalette())

	res := Resolution{X: 30, Y: 30}
	table := Aggregate(c, res)

	binned := len(c.Labels) - c.Count(LabelBackground) - c.Count(LabelUnbinned)
	direct := float64(binned) * PixelAcres(res)
	assert.Equal(t, 10, binned)
	assert.Equal(t, RoundAcres(direct), table.Total)
	assert.InDelta(t, table.Total, table.BinSum(), 1e-9)
	assert.InDelta(t, direct, table.BinSum(), 0.005)
	assert.Equal(t, 2, table.Background)
	assert.Equal(t, 3, table.Unbinned)
}

func TestAggregate_BinsSumToTotalAtTenMeters(t *testing.T) {
	// One pixel in each of the twelve bins: each holds 0.0247 acre, so
	// independent rounding would give 0.24 against a total of 0.30.
	slopes := []float64{45, 20, 5}
	severities := []float64{10, 30, 60, 90}
	var slopeRow, sevRow []float64
	for _, s := range slopes {
		for _, v := range severities {
			slopeRow = append(slopeRow, s)
			sevRow = append(sevRow, v)
		}
	}
	c := Classify(alignedPair(t, gridRaster(t, [][]float64{slopeRow}, 10), gridRaster(t, [][]float64{sevRow}, 10)),
		DefaultTiers(), DefaultPalette())

	table := Aggregate(c, Resolution{X: 10, Y: 10})

	for s := range table.Pixels {
		for v := range table.Pixels[s] {
			assert.Equal(t, 1, table.Pixels[s][v])
		}
	}
	assert.Equal(t, 0.30, table.Total)
	assert.InDelta(t, 0.30, table.BinSum(), 1e-9)
	assert.InDelta(t, 12*PixelAcres(Resolution{X: 10, Y: 10}), table.BinSum(), 0.005)

	// 2.47 cents per bin: six bins round up to 0.03, the rest stay at 0.02,
	// lowest bins first on equal remainders.
	assert.Equal(t, 0.03, table.At(SlopeSteep, SeverityLow))
	assert.Equal(t, 0.03, table.At(SlopeModerate, SeverityModerate))
	assert.Equal(t, 0.02, table.At(SlopeModerate, SeverityHigh))
	assert.Equal(t, 0.02, table.At(SlopeGentle, SeveritySevere))
}

func TestAggregate_BinsSumToTotal(t *testing.T) {
	tests := []struct {
		name   string
		counts [NumBins]int
		res    float64
	}{
		{"uneven 10 m", [NumBins]int{7, 0, 13, 1, 0, 0, 250, 3, 41, 0, 9, 2}, 10},
		{"single bin", [NumBins]int{0, 0, 0, 0, 0, 1000}, 10},
		{"30 m", [NumBins]int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, 30},
		{"sub-cent pixels", [NumBins]int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolution{X: tt.res, Y: tt.res}
			c := &Classification{}
			binned := 0
			for i, n := range tt.counts {
				l := Label(i)
				for range n {
					c.Labels = append(c.Labels, l)
				}
				binned += n
			}

			table := Aggregate(c, res)

			assert.Equal(t, RoundAcres(float64(binned)*PixelAcres(res)), table.Total)
			assert.InDelta(t, table.Total, table.BinSum(), 1e-9)
			for s := range table.Pixels {
				for v, n := range table.Pixels[s] {
					exact := float64(n) * PixelAcres(res)
					assert.InDelta(t, exact, table.Acres[s][v], 0.01, "bin (%d,%d)", s, v)
					if n == 0 {
						assert.Zero(t, table.Acres[s][v])
					}
				}
			}
		})
	}
}

func TestAggregate_AllSlopesSevere(t *testing.T) {
	slope := gridRaster(t, [][]float64{{45, 20, 5, 5}}, 10)
	sev := gridRaster(t, [][]float64{{90, 90, 90, 10}}, 10)
	c := Classify(alignedPair(t, slope, sev), DefaultTiers(), DefaultPalette())

	// One acre per pixel.
	table := Aggregate(c, Resolution{X: SquareMetersPerAcre, Y: 1})

	assert.InDelta(t, 3.0, table.AllSlopesSevere(), 1e-9)
	assert.InDelta(t, 2.0, table.SlopeRow(SlopeGentle), 1e-9)
	assert.InDelta(t, 1.0, table.SeverityColumn(SeverityLow), 1e-9)
}

func TestAggregate_NoValidPixels(t *testing.T) {
	c := classificationOf(t, 4, 4, math.NaN(), 90)

	table := Aggregate(c, Resolution{X: 1, Y: 1})

	assert.Zero(t, table.Total)
	assert.Zero(t, table.BinSum())
	assert.Equal(t, 16, table.Background)
}

func TestRoundAcres(t *testing.T) {
	assert.Equal(t, 0.25, RoundAcres(0.247))
	assert.Equal(t, 1.0, RoundAcres(0.999))
	assert.Equal(t, 0.0, RoundAcres(0.004))
}
