// Package report writes the per-parcel HTML reports and the cross-parcel
// outputs: the sorted table, the owner summary and the web map.
package report

import (
	"path/filepath"
	"strings"
)

// Batch output file names, relative to the output directory.
const (
	TableHTML   = "table.html"
	TableCSV    = "table.csv"
	SummaryHTML = "summary.html"
	MapGeoJSON  = "map.geojson"
	MapHTML     = "map.html"
	OverlayPNG  = "severity_overlay.png"
)

// Layout places every output under one directory.
type Layout struct {
	Dir string
}

// Slug makes an APN safe to use as a file name.
func Slug(apn string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", " ", "_", ":", "_")
	s := r.Replace(strings.TrimSpace(apn))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// ReportLink is the report location relative to the output directory, as
// linked from the table and the map.
func (l Layout) ReportLink(apn string) string { return "doc/" + Slug(apn) + ".html" }

// ReportPath is the absolute location of a parcel report.
func (l Layout) ReportPath(apn string) string {
	return filepath.Join(l.Dir, filepath.FromSlash(l.ReportLink(apn)))
}

// FigureDir holds a parcel's figures and derived rasters.
func (l Layout) FigureDir(apn string) string { return filepath.Join(l.Dir, "figs", Slug(apn)) }

// Path joins a batch output name onto the output directory.
func (l Layout) Path(name string) string { return filepath.Join(l.Dir, name) }
