package report

import (
	"bytes"
	"fmt"
	"html/template"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
)

var parcelTmpl = template.Must(template.New("parcel").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Parcel {{.APN}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 10px; text-align: center; }
td.swatch { color: #000; }
figure { display: inline-block; margin: 1em; }
figure img { max-width: 560px; }
</style>
</head>
<body>
<h1>Parcel {{.APN}}</h1>
<p>Parcel area {{printf "%.2f" .ParcelAcres}} acres. Classified {{printf "%.2f" .Total}} acres at {{printf "%.4f" .PixelAcres}} acres per pixel.</p>
<h2>Acres by slope and basal area loss</h2>
<table>
<tr><th></th>{{range .SeverityLabels}}<th>{{.}}</th>{{end}}<th>Total</th></tr>
{{range .Rows}}<tr><th>{{.Label}}</th>{{range .Cells}}<td class="swatch" style="background: {{.Color}}">{{printf "%.2f" .Acres}}</td>{{end}}<td>{{printf "%.2f" .Sum}}</td></tr>
{{end}}<tr><th>All slopes</th>{{range .ColumnSums}}<td>{{printf "%.2f" .}}</td>{{end}}<td>{{printf "%.2f" .Total}}</td></tr>
</table>
{{if .Figures}}<h2>Figures</h2>
{{range .Figures}}<figure><a href="{{.}}"><img src="{{.}}" alt="{{.}}"></a></figure>
{{end}}{{end}}
</body>
</html>
`))

type cell struct {
	Acres float64
	Color template.CSS
}

type row struct {
	Label string
	Cells []cell
	Sum   float64
}

type parcelPage struct {
	APN            string
	ParcelAcres    float64
	PixelAcres     float64
	Total          float64
	SeverityLabels [domain.NumSeverityTiers]string
	Rows           []row
	ColumnSums     []float64
	Figures        []string
}

// WriteParcel renders the report of one parcel. figures maps figure names to
// file paths; they are linked relative to the report.
func (l Layout) WriteParcel(rec domain.ParcelRecord, tiers domain.Tiers, palette domain.Palette, figures map[string]string) (string, error) {
	path := l.ReportPath(rec.APN)
	page := parcelPage{
		APN:            rec.APN,
		ParcelAcres:    rec.ParcelAcres,
		PixelAcres:     rec.Acreage.PixelAcres,
		Total:          rec.Acreage.Total,
		SeverityLabels: tiers.SeverityLabels(),
	}
	slopeLabels := tiers.SlopeLabels()
	for s := domain.SlopeSteep; s <= domain.SlopeGentle; s++ {
		r := row{Label: slopeLabels[s], Sum: rec.Acreage.SlopeRow(s)}
		for v := domain.SeverityLow; v <= domain.SeveritySevere; v++ {
			r.Cells = append(r.Cells, cell{Acres: rec.Acreage.At(s, v), Color: cssColor(palette.Bins[s][v])})
		}
		page.Rows = append(page.Rows, r)
	}
	for v := domain.SeverityLow; v <= domain.SeveritySevere; v++ {
		page.ColumnSums = append(page.ColumnSums, rec.Acreage.SeverityColumn(v))
	}

	names := make([]string, 0, len(figures))
	for name := range figures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rel, err := filepath.Rel(filepath.Dir(path), figures[name])
		if err != nil {
			return "", fmt.Errorf("link figure %s: %w", name, err)
		}
		page.Figures = append(page.Figures, filepath.ToSlash(rel))
	}

	var buf bytes.Buffer
	if err := parcelTmpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("render report %s: %w", rec.APN, err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func cssColor(c color.RGBA) template.CSS {
	return template.CSS(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // reports are served publicly
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
