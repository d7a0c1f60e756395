// Command validate checks a finished burnscar output directory for internal
// consistency: the table against its CSV twin, acreage sums, report links
// and the web map layer.
//
// Usage:
//
//	go run ./cmd/validate -dir out [-tiers tiers.yaml]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/burnscar-etl/internal/config"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/report"
)

// binTolerance absorbs float formatting in table.csv; the bins are
// apportioned to sum to the total exactly.
const binTolerance = 0.01

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "out", "output directory of a finished run")
	tiersFile := flag.String("tiers", "", "tiers file the run used")
	flag.Parse()

	tiers := domain.DefaultTiers()
	if *tiersFile != "" {
		var err error
		if tiers, err = config.LoadTiersFile(*tiersFile); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
	}

	if code := run(*dir, tiers); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, tiers domain.Tiers) int {
	fmt.Println("=== Burnscar Output Validation ===")
	fmt.Println()

	layout := report.Layout{Dir: dir}
	table, err := layout.ReadTable(tiers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load table: %v\n", err)
		return 1
	}

	mapAPNs, err := loadMapAPNs(layout.Path(report.MapGeoJSON))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load map: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateFiles(layout),
		validateAcreage(table),
		validateOrdering(table),
		validateReports(layout, table),
		validateMap(table, mapAPNs),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d table rows, %d map features\n", table.Len(), len(mapAPNs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadMapAPNs returns the apn property of every map.geojson feature.
func loadMapAPNs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc struct {
		Features []struct {
			Properties struct {
				APN string `json:"apn"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	apns := make([]string, len(fc.Features))
	for i, f := range fc.Features {
		apns[i] = f.Properties.APN
	}
	return apns, nil
}

func validateFiles(l report.Layout) *phase {
	p := &phase{name: "Batch outputs present"}
	for _, name := range []string{report.TableHTML, report.TableCSV, report.MapGeoJSON, report.MapHTML} {
		if _, err := os.Stat(l.Path(name)); err != nil {
			p.errorf("%s: %v", name, err)
		}
	}
	return p
}

func validateAcreage(t domain.Table) *phase {
	p := &phase{name: "Acreage sums"}
	for _, r := range t.Records {
		a := r.Acreage
		if d := math.Abs(a.BinSum() - a.Total); d > binTolerance {
			p.errorf("%s: bins sum to %.2f, total %.2f", r.APN, a.BinSum(), a.Total)
		}
		for s := range a.Acres {
			for v, acres := range a.Acres[s] {
				if acres < 0 {
					p.errorf("%s: negative acreage %.2f in bin (%d,%d)", r.APN, acres, s, v)
				}
			}
		}
		if a.AllSlopesSevere() > a.Total+binTolerance {
			p.errorf("%s: severe %.2f exceeds total %.2f", r.APN, a.AllSlopesSevere(), a.Total)
		}
	}
	return p
}

func validateOrdering(t domain.Table) *phase {
	p := &phase{name: "Table ordering and keys"}
	key := domain.RecordColumns(t.Tiers)[report.SortColumn].Value
	seen := make(map[string]bool, t.Len())
	for i, r := range t.Records {
		if seen[r.APN] {
			p.errorf("duplicate APN %s", r.APN)
		}
		seen[r.APN] = true
		if i > 0 && key(r) > key(t.Records[i-1]) {
			p.errorf("row %d (%s) out of order: %.2f after %.2f", i+1, r.APN, key(r), key(t.Records[i-1]))
		}
	}
	return p
}

func validateReports(l report.Layout, t domain.Table) *phase {
	p := &phase{name: "Parcel reports linked"}
	for _, r := range t.Records {
		if r.ReportPath != l.ReportLink(r.APN) {
			p.errorf("%s: report link %q, want %q", r.APN, r.ReportPath, l.ReportLink(r.APN))
			continue
		}
		if _, err := os.Stat(filepath.Join(l.Dir, filepath.FromSlash(r.ReportPath))); err != nil {
			p.errorf("%s: %v", r.APN, err)
		}
	}
	return p
}

func validateMap(t domain.Table, apns []string) *phase {
	p := &phase{name: "Map layer matches table"}
	inTable := make(map[string]bool, t.Len())
	for _, r := range t.Records {
		inTable[r.APN] = true
	}
	for _, apn := range apns {
		if !inTable[apn] {
			p.errorf("map feature %s has no table row", apn)
		}
	}
	if len(apns) > t.Len() {
		p.errorf("%d map features for %d table rows", len(apns), t.Len())
	}
	return p
}
