package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// tiersFile is the on-disk layout of TIERS_FILE:
//
//	slope: [15, 30]
//	severity: [25, 50, 75]
type tiersFile struct {
	Slope    []float64 `yaml:"slope"`
	Severity []float64 `yaml:"severity"`
}

// LoadTiersFile reads tier thresholds from a YAML file. Omitted keys keep
// their default thresholds.
func LoadTiersFile(path string) (domain.Tiers, error) {
	tiers := domain.DefaultTiers()

	data, err := os.ReadFile(path)
	if err != nil {
		return tiers, fmt.Errorf("read TIERS_FILE: %w", err)
	}
	var f tiersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return tiers, fmt.Errorf("parse TIERS_FILE: %w", err)
	}

	if f.Slope != nil {
		if len(f.Slope) != domain.NumSlopeTiers-1 {
			return tiers, fmt.Errorf("TIERS_FILE: slope needs %d thresholds, got %d", domain.NumSlopeTiers-1, len(f.Slope))
		}
		copy(tiers.Slope[:], f.Slope)
	}
	if f.Severity != nil {
		if len(f.Severity) != domain.NumSeverityTiers-1 {
			return tiers, fmt.Errorf("TIERS_FILE: severity needs %d thresholds, got %d", domain.NumSeverityTiers-1, len(f.Severity))
		}
		copy(tiers.Severity[:], f.Severity)
	}
	return tiers, nil
}
