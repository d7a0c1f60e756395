package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"sort"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// PrivateOwner collects every parcel not listed under an owner group.
const PrivateOwner = "PRIVATE"

// Owners maps an owner group (USFS, NPS, CDFW, ...) to its APNs.
type Owners map[string][]string

// LoadOwners reads an owners file. YAML and JSON are both accepted.
func LoadOwners(path string) (Owners, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read owners %s: %w", path, err)
	}
	var o Owners
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse owners %s: %w", path, err)
	}
	if _, ok := o[PrivateOwner]; ok {
		return nil, fmt.Errorf("owners %s: %s is the implicit remainder group", path, PrivateOwner)
	}
	return o, nil
}

// OwnerRow is one owner group's column totals.
type OwnerRow struct {
	Owner   string
	Parcels int
	Values  []float64
}

// Summarize totals every table column per owner group. Records not claimed by
// a group, other than exclude, fall into PRIVATE. Rows are sorted by the
// headline column, largest first.
func Summarize(t domain.Table, owners Owners, exclude string) []OwnerRow {
	cols := domain.RecordColumns(t.Tiers)
	groupOf := map[string]string{}
	names := make([]string, 0, len(owners)+1)
	for name, apns := range owners {
		names = append(names, name)
		for _, apn := range apns {
			groupOf[apn] = name
		}
	}
	sort.Strings(names)
	names = append(names, PrivateOwner)

	rows := make(map[string]*OwnerRow, len(names))
	for _, n := range names {
		rows[n] = &OwnerRow{Owner: n, Values: make([]float64, len(cols))}
	}
	for _, r := range t.Records {
		if r.APN == exclude {
			continue
		}
		g, ok := groupOf[r.APN]
		if !ok {
			g = PrivateOwner
		}
		row := rows[g]
		row.Parcels++
		for i, c := range cols {
			row.Values[i] += c.Value(r)
		}
	}

	out := make([]OwnerRow, 0, len(names))
	for _, n := range names {
		row := rows[n]
		for i := range row.Values {
			row.Values[i] = domain.RoundAcres(row.Values[i])
		}
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Values[0] > out[j].Values[0] })
	return out
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Owner summary</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 8px; text-align: right; }
th { background: #eee; }
</style>
</head>
<body>
<table>
<tr><th>owner</th><th>parcels</th>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr><td>{{.Owner}}</td><td>{{.Parcels}}</td>{{range .Values}}<td>{{printf "%.2f" .}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

// WriteSummary writes summary.html.
func (l Layout) WriteSummary(tiers domain.Tiers, rows []OwnerRow) error {
	cols := domain.RecordColumns(tiers)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, struct {
		Headers []string
		Rows    []OwnerRow
	}{headers, rows}); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return writeFile(l.Path(SummaryHTML), buf.Bytes())
}
