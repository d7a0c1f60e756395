package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strconv"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
)

// SortColumn is the table column rows are ranked by: severe loss on gentle
// slopes, the ground most at risk of losing its seed trees.
const SortColumn = 3

// Sorted returns the records ordered by SortColumn, largest first. Ties keep
// their processing order.
func Sorted(t domain.Table) []domain.ParcelRecord {
	key := domain.RecordColumns(t.Tiers)[SortColumn].Value
	out := append([]domain.ParcelRecord(nil), t.Records...)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) > key(out[j]) })
	return out
}

var tableTmpl = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Parcels</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 8px; text-align: right; }
th { background: #eee; }
</style>
</head>
<body>
<table>
<tr><th>APN</th>{{range .Headers}}<th>{{.}}</th>{{end}}<th>Parcel Acres</th><th>Report</th></tr>
{{range .Rows}}<tr><td>{{.APN}}</td>{{range .Values}}<td>{{printf "%.2f" .}}</td>{{end}}<td>{{printf "%.2f" .ParcelAcres}}</td><td><a href="{{.Link}}">{{.APN}}</a></td></tr>
{{end}}</table>
</body>
</html>
`))

type tableRow struct {
	APN         string
	Values      []float64
	ParcelAcres float64
	Link        string
}

// WriteTable writes table.html and table.csv.
func (l Layout) WriteTable(t domain.Table) error {
	cols := domain.RecordColumns(t.Tiers)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	records := Sorted(t)

	rows := make([]tableRow, len(records))
	for i, r := range records {
		vals := make([]float64, len(cols))
		for j, c := range cols {
			vals[j] = c.Value(r)
		}
		rows[i] = tableRow{APN: r.APN, Values: vals, ParcelAcres: r.ParcelAcres, Link: l.ReportLink(r.APN)}
	}

	var page bytes.Buffer
	if err := tableTmpl.Execute(&page, struct {
		Headers []string
		Rows    []tableRow
	}{headers, rows}); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if err := writeFile(l.Path(TableHTML), page.Bytes()); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(append(append([]string{"APN"}, headers...), "Parcel Acres", "Report")) //nolint:errcheck // checked via w.Error
	for _, r := range rows {
		line := []string{r.APN}
		for _, v := range r.Values {
			line = append(line, strconv.FormatFloat(v, 'f', 2, 64))
		}
		line = append(line, strconv.FormatFloat(r.ParcelAcres, 'f', 2, 64), r.Link)
		w.Write(line) //nolint:errcheck // checked via w.Error
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write table csv: %w", err)
	}
	return writeFile(l.Path(TableCSV), buf.Bytes())
}

// ReadTable loads a table.csv written by WriteTable under the same tiers.
// Records carry the APN, the bin acreages, the parcel acreage and the report
// link; geometry and timestamps are not part of the CSV.
func (l Layout) ReadTable(tiers domain.Tiers) (domain.Table, error) {
	path := l.Path(TableCSV)
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return domain.Table{}, fmt.Errorf("read table %s: %w", path, err)
	}
	if len(rows) == 0 {
		return domain.Table{}, fmt.Errorf("read table %s: no header", path)
	}

	cols := domain.RecordColumns(tiers)
	want := len(cols) + 3
	header := rows[0]
	if len(header) != want {
		return domain.Table{}, fmt.Errorf("read table %s: %d columns, want %d", path, len(header), want)
	}
	for i, c := range cols {
		if header[i+1] != c.Header {
			return domain.Table{}, fmt.Errorf("read table %s: column %d is %q, want %q (tiers differ?)", path, i+1, header[i+1], c.Header)
		}
	}

	t := domain.Table{Tiers: tiers}
	for n, row := range rows[1:] {
		rec := domain.ParcelRecord{APN: row[0], ReportPath: row[want-1]}
		for i, c := range cols {
			if c.Set == nil {
				continue
			}
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return domain.Table{}, fmt.Errorf("read table %s: row %d: %w", path, n+2, err)
			}
			c.Set(&rec, v)
		}
		if rec.ParcelAcres, err = strconv.ParseFloat(row[want-2], 64); err != nil {
			return domain.Table{}, fmt.Errorf("read table %s: row %d: %w", path, n+2, err)
		}
		t.Append(rec)
	}
	return t, nil
}
