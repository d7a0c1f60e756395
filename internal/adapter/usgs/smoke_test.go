//go:build usgs

package usgs

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/burnscar-etl/internal/adapter/gdal"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/observability"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real 3DEP service and need GDAL installed.
// Run with: go test -tags=usgs ./internal/adapter/usgs/ -v -count=1

func TestSmoke_FetchElevation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	tools := gdal.NewToolbox(dir, logger)
	defer tools.Close()

	c := NewClient(DefaultEndpoint, 60*time.Second, 2048, dir, tools, observability.NewMetricsForTesting(), logger)

	// A few hundred metres of Warner Valley, Plumas County.
	aoi, err := domain.NewAOI("smoke", "EPSG:4326", orb.Bound{
		Min: orb.Point{-121.305, 40.435}, Max: orb.Point{-121.300, 40.438},
	}.ToPolygon())
	require.NoError(t, err)

	dst := filepath.Join(dir, "dem.tif")
	require.NoError(t, c.FetchElevation(context.Background(), aoi, "EPSG:32610", dst))

	dem, err := tools.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32610", dem.CRS)
	values := domain.FiniteValues(dem.Masked().Band())
	require.NotEmpty(t, values)
	// Warner Valley sits around 1500 m.
	assert.InDelta(t, 1500, values[len(values)/2], 500)
}
