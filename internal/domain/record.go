package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParcelRecord is one row of the cross-parcel table. ProcessedAt stamps the
// run that produced it; a re-run of an unchanged parcel differs only there.
type ParcelRecord struct {
	APN         string           `json:"apn"`
	Acreage     AcreageTable     `json:"acreage"`
	ParcelAcres float64          `json:"parcel_acres"`
	Geometry    orb.MultiPolygon `json:"-"`
	ReportPath  string           `json:"report_path"`
	ProcessedAt time.Time        `json:"processed_at"`
}

// MarshalJSON embeds the geometry as GeoJSON.
func (r ParcelRecord) MarshalJSON() ([]byte, error) {
	type plain ParcelRecord
	return json.Marshal(struct {
		plain
		Geometry *geojson.Geometry `json:"geometry,omitempty"`
		Headline float64           `json:"ba_gt75_all_slopes"`
	}{
		plain:    plain(r),
		Geometry: geometryOrNil(r.Geometry),
		Headline: r.Acreage.AllSlopesSevere(),
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (r *ParcelRecord) UnmarshalJSON(data []byte) error {
	type plain ParcelRecord
	aux := struct {
		*plain
		Geometry *geojson.Geometry `json:"geometry"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Geometry == nil {
		return nil
	}
	switch g := aux.Geometry.Geometry().(type) {
	case orb.MultiPolygon:
		r.Geometry = g
	case orb.Polygon:
		r.Geometry = orb.MultiPolygon{g}
	default:
		return fmt.Errorf("parcel %s: unexpected geometry %T", r.APN, g)
	}
	return nil
}

func geometryOrNil(mp orb.MultiPolygon) *geojson.Geometry {
	if len(mp) == 0 {
		return nil
	}
	return geojson.NewGeometry(mp)
}

// Column is one numeric column of the cross-parcel table. Set is nil for
// derived columns.
type Column struct {
	Header string
	Value  func(ParcelRecord) float64
	Set    func(*ParcelRecord, float64)
}

// RecordColumns lists the table columns: the headline all-slopes figure, the
// three slope rows of the top severity tier, then the remaining bins.
func RecordColumns(t Tiers) []Column {
	slope := t.ShortSlope()
	sev := t.ShortSeverity()
	cols := []Column{{
		Header: sev[SeveritySevere] + " All Slopes",
		Value:  func(r ParcelRecord) float64 { return r.Acreage.AllSlopesSevere() },
	}}
	add := func(s SlopeTier, v SeverityTier) {
		cols = append(cols, Column{
			Header: sev[v] + " & " + slope[s],
			Value:  func(r ParcelRecord) float64 { return r.Acreage.At(s, v) },
			Set:    func(r *ParcelRecord, a float64) { r.Acreage.Acres[s][v] = a },
		})
	}
	for s := SlopeSteep; s <= SlopeGentle; s++ {
		add(s, SeveritySevere)
	}
	for v := SeverityHigh; v >= SeverityLow; v-- {
		for s := SlopeSteep; s <= SlopeGentle; s++ {
			add(s, v)
		}
	}
	cols = append(cols, Column{
		Header: "Total Acres",
		Value:  func(r ParcelRecord) float64 { return r.Acreage.Total },
		Set:    func(r *ParcelRecord, a float64) { r.Acreage.Total = a },
	})
	return cols
}

// Table is the ordered collection of successful parcel records.
type Table struct {
	Tiers   Tiers
	Records []ParcelRecord
}

// Append adds a record at the end.
func (t *Table) Append(r ParcelRecord) { t.Records = append(t.Records, r) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Records) }
