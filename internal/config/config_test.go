package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testParcels   = "testdata/parcels.geojson"
	testSeverity  = "testdata/ba7.tif"
)

// setRequired sets the two inputs every run needs.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PARCELS_FILE", testParcels)
	t.Setenv("BURN_SEVERITY_FILE", testSeverity)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testParcels, cfg.ParcelsFile)
	assert.Equal(t, testSeverity, cfg.BurnSeverityFile)
	assert.Equal(t, "Name", cfg.ParcelNameField)
	assert.Equal(t, "EPSG:4326", cfg.ParcelCRS)
	assert.Equal(t, "All_Valley", cfg.BoundaryName)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, filepath.Join("out", "tmp"), cfg.TempDir())
	assert.Equal(t, "EPSG:32610", cfg.DstCRS)
	assert.Equal(t, 15.0, cfg.DEMBuffer)
	assert.Equal(t, 30.0, cfg.SeverityBuffer)
	assert.Equal(t, 10000.0, cfg.OverlayBuffer)
	assert.Equal(t, domain.DefaultAlignTolerance, cfg.AlignTolerance)
	assert.Equal(t, domain.DefaultTiers(), cfg.Tiers)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 512, cfg.NAIPIndexSize)
	assert.Equal(t, 60*time.Second, cfg.USGSTimeout)
	assert.Equal(t, 2048, cfg.USGSBlockSize)
	assert.Contains(t, cfg.USGSEndpoint, "3DEPElevation")
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "parcel-burn-records", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("BOUNDARY_FILE", "valley.shp")
	t.Setenv("NAIP_DIR", "/data/naip")
	t.Setenv("OUTPUT_DIR", "/tmp/burn")
	t.Setenv("DST_CRS", "EPSG:32611")
	t.Setenv("DEM_BUFFER_M", "20")
	t.Setenv("SEVERITY_BUFFER_M", "45.5")
	t.Setenv("WORKERS", "4")
	t.Setenv("USGS_TIMEOUT", "2m")
	t.Setenv("USGS_BLOCK_SIZE", "1024")
	t.Setenv("SLOPE_THRESHOLDS", "10, 25")
	t.Setenv("SEVERITY_THRESHOLDS", "20,40,80")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-records")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "valley.shp", cfg.BoundaryFile)
	assert.Equal(t, "/data/naip", cfg.NAIPDir)
	assert.Equal(t, "/tmp/burn", cfg.OutputDir)
	assert.Equal(t, "EPSG:32611", cfg.DstCRS)
	assert.Equal(t, 20.0, cfg.DEMBuffer)
	assert.Equal(t, 45.5, cfg.SeverityBuffer)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2*time.Minute, cfg.USGSTimeout)
	assert.Equal(t, 1024, cfg.USGSBlockSize)
	assert.Equal(t, domain.Tiers{Slope: [2]float64{10, 25}, Severity: [3]float64{20, 40, 80}}, cfg.Tiers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-records", cfg.KafkaTopic)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantMsg string
	}{
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"usgs timeout", "USGS_TIMEOUT", "bad", "USGS_TIMEOUT"},
		{"zero workers", "WORKERS", "0", "WORKERS"},
		{"negative buffer", "DEM_BUFFER_M", "-5", "DEM_BUFFER_M"},
		{"non-numeric tolerance", "ALIGN_TOLERANCE", "tight", "ALIGN_TOLERANCE"},
		{"NaN tolerance", "ALIGN_TOLERANCE", "NaN", "ALIGN_TOLERANCE"},
		{"infinite tolerance", "ALIGN_TOLERANCE", "Inf", "ALIGN_TOLERANCE"},
		{"infinite buffer", "DEM_BUFFER_M", "+Inf", "DEM_BUFFER_M"},
		{"NaN overlay buffer", "OVERLAY_BUFFER_M", "nan", "OVERLAY_BUFFER_M"},
		{"NaN slope threshold", "SLOPE_THRESHOLDS", "NaN,30", "SLOPE_THRESHOLDS"},
		{"block size", "USGS_BLOCK_SIZE", "x", "USGS_BLOCK_SIZE"},
		{"slope count", "SLOPE_THRESHOLDS", "15", "SLOPE_THRESHOLDS"},
		{"severity order", "SEVERITY_THRESHOLDS", "75,50,25", "tier thresholds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_BufferErrorsInOrder(t *testing.T) {
	setRequired(t)
	t.Setenv("DEM_BUFFER_M", "-1")
	t.Setenv("SEVERITY_BUFFER_M", "NaN")
	t.Setenv("OVERLAY_BUFFER_M", "+Inf")
	t.Setenv("ALIGN_TOLERANCE", "NaN")

	for range 20 {
		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "invalid DEM_BUFFER_M", err.Error())
	}

	t.Setenv("DEM_BUFFER_M", "15")
	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, "invalid SEVERITY_BUFFER_M", err.Error())
}

func TestLoad_MissingInputs(t *testing.T) {
	t.Run("parcels", func(t *testing.T) {
		t.Setenv("PARCELS_FILE", "")
		t.Setenv("BURN_SEVERITY_FILE", testSeverity)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PARCELS_FILE")
	})
	t.Run("severity", func(t *testing.T) {
		t.Setenv("PARCELS_FILE", testParcels)
		t.Setenv("BURN_SEVERITY_FILE", "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BURN_SEVERITY_FILE")
	})
}

func writeTiers(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTiersFile(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		tiers, err := LoadTiersFile(writeTiers(t, "slope: [12.5, 30]\nseverity: [10, 50, 90]\n"))
		require.NoError(t, err)
		assert.Equal(t, domain.Tiers{Slope: [2]float64{12.5, 30}, Severity: [3]float64{10, 50, 90}}, tiers)
	})

	t.Run("partial keeps defaults", func(t *testing.T) {
		tiers, err := LoadTiersFile(writeTiers(t, "slope: [20, 35]\n"))
		require.NoError(t, err)
		assert.Equal(t, [2]float64{20, 35}, tiers.Slope)
		assert.Equal(t, domain.DefaultTiers().Severity, tiers.Severity)
	})

	t.Run("wrong count", func(t *testing.T) {
		_, err := LoadTiersFile(writeTiers(t, "severity: [25, 75]\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "severity")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTiersFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoad_TiersFileThenEnvOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("TIERS_FILE", writeTiers(t, "slope: [10, 20]\nseverity: [30, 60, 90]\n"))
	t.Setenv("SLOPE_THRESHOLDS", "15,30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, [2]float64{15, 30}, cfg.Tiers.Slope)
	assert.Equal(t, [3]float64{30, 60, 90}, cfg.Tiers.Severity)
}
