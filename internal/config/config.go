package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	ParcelsFile      string
	ParcelNameField  string
	ParcelCRS        string
	BoundaryFile     string
	BoundaryName     string
	BurnSeverityFile string
	NAIPDir          string
	OutputDir        string
	OwnersFile       string

	DstCRS          string
	DEMBuffer       float64
	SeverityBuffer  float64
	OverlayBuffer   float64
	AlignTolerance  float64
	Tiers           domain.Tiers
	Workers         int
	NAIPIndexSize   int
	USGSEndpoint    string
	USGSTimeout     time.Duration
	USGSBlockSize   int
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional record sink.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// TempDir holds intermediate rasters shared between parcels.
func (c *Config) TempDir() string { return filepath.Join(c.OutputDir, "tmp") }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usgsTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("USGS_TIMEOUT", "60s"))
	if err != nil || usgsTimeout <= 0 {
		return nil, errors.New("invalid USGS_TIMEOUT")
	}

	cfg := &Config{
		ParcelsFile:      os.Getenv("PARCELS_FILE"),
		ParcelNameField:  sharedcfg.EnvOrDefault("PARCEL_NAME_FIELD", "Name"),
		ParcelCRS:        sharedcfg.EnvOrDefault("PARCEL_CRS", "EPSG:4326"),
		BoundaryFile:     os.Getenv("BOUNDARY_FILE"),
		BoundaryName:     sharedcfg.EnvOrDefault("BOUNDARY_NAME", "All_Valley"),
		BurnSeverityFile: os.Getenv("BURN_SEVERITY_FILE"),
		NAIPDir:          os.Getenv("NAIP_DIR"),
		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		OwnersFile:       os.Getenv("OWNERS_FILE"),
		DstCRS:           sharedcfg.EnvOrDefault("DST_CRS", "EPSG:32610"),
		USGSEndpoint:     sharedcfg.EnvOrDefault("USGS_ENDPOINT", "https://elevation.nationalmap.gov/arcgis/rest/services/3DEPElevation/ImageServer/exportImage"),
		USGSTimeout:      usgsTimeout,
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "parcel-burn-records"),
	}

	for _, f := range []struct {
		key, def string
		dst      *float64
	}{
		{"DEM_BUFFER_M", "15", &cfg.DEMBuffer},
		{"SEVERITY_BUFFER_M", "30", &cfg.SeverityBuffer},
		{"OVERLAY_BUFFER_M", "10000", &cfg.OverlayBuffer},
		{"ALIGN_TOLERANCE", "0.01", &cfg.AlignTolerance},
	} {
		if *f.dst, err = parseNonNegative(f.key, sharedcfg.EnvOrDefault(f.key, f.def)); err != nil {
			return nil, err
		}
	}

	if cfg.Workers, err = parsePositiveInt("WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.USGSBlockSize, err = parsePositiveInt("USGS_BLOCK_SIZE", 2048); err != nil {
		return nil, err
	}
	cfg.NAIPIndexSize = parseNAIPIndexSize()

	if cfg.Tiers, err = loadTiers(); err != nil {
		return nil, err
	}

	if cfg.ParcelsFile == "" {
		return nil, errors.New("PARCELS_FILE is required")
	}
	if cfg.BurnSeverityFile == "" {
		return nil, errors.New("BURN_SEVERITY_FILE is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

// loadTiers starts from the defaults, applies TIERS_FILE, then the
// SLOPE_THRESHOLDS and SEVERITY_THRESHOLDS overrides.
func loadTiers() (domain.Tiers, error) {
	tiers := domain.DefaultTiers()
	if path := os.Getenv("TIERS_FILE"); path != "" {
		fromFile, err := LoadTiersFile(path)
		if err != nil {
			return tiers, err
		}
		tiers = fromFile
	}
	if s := os.Getenv("SLOPE_THRESHOLDS"); s != "" {
		v, err := parseList("SLOPE_THRESHOLDS", s, 2)
		if err != nil {
			return tiers, err
		}
		copy(tiers.Slope[:], v)
	}
	if s := os.Getenv("SEVERITY_THRESHOLDS"); s != "" {
		v, err := parseList("SEVERITY_THRESHOLDS", s, 3)
		if err != nil {
			return tiers, err
		}
		copy(tiers.Severity[:], v)
	}
	if err := tiers.Validate(); err != nil {
		return tiers, fmt.Errorf("invalid tier thresholds: %w", err)
	}
	return tiers, nil
}

func parseList(key, s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("invalid %s: want %d comma-separated values", key, n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if !isFinite(v) {
			return nil, fmt.Errorf("invalid %s: %q is not a finite number", key, p)
		}
		out[i] = v
	}
	return out, nil
}

func parseNonNegative(key, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) || v < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNAIPIndexSize() int {
	if s := os.Getenv("NAIP_INDEX_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 512
}
