package report

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/render"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// WebCRS is the web map projection the overlay is drawn in.
	WebCRS = "EPSG:3857"
	// LonLat is the CRS of record geometries and map bounds.
	LonLat = "EPSG:4326"
)

// OverlayTools is what building the severity overlay needs from the raster layer.
type OverlayTools interface {
	domain.RasterStore
	domain.Warper
	domain.Projector
}

// WriteOverlay draws the burn severity raster around area, buffered by
// buffer metres, as a web map overlay and returns its lon/lat bounds.
func (l Layout) WriteOverlay(tools OverlayTools, severityFile string, area domain.AOI, buffer float64, tmpDir string) (orb.Bound, error) {
	base := strings.TrimSuffix(filepath.Base(severityFile), filepath.Ext(severityFile))
	merc := filepath.Join(tmpDir, base+"_3857.tif")
	if !tools.Exists(merc) {
		opts := domain.ReprojectOptions{CRS: WebCRS, Resampling: domain.ResampleNearest}
		if err := tools.Reproject(severityFile, merc, opts); err != nil {
			return orb.Bound{}, fmt.Errorf("overlay: %w", err)
		}
	}

	aoi, err := tools.ProjectAOI(area, WebCRS)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("overlay: %w", err)
	}
	if aoi, err = tools.Buffer(aoi, buffer); err != nil {
		return orb.Bound{}, fmt.Errorf("overlay: %w", err)
	}
	sev, err := tools.Open(merc)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("overlay: %w", err)
	}
	crop, err := domain.CropBound(sev, aoi.Bounds())
	if err != nil {
		return orb.Bound{}, fmt.Errorf("overlay: %w", err)
	}
	if err := render.Overlay(l.Path(OverlayPNG), crop); err != nil {
		return orb.Bound{}, err
	}
	return tools.ProjectBounds(crop.Bounds(), WebCRS, LonLat)
}

// MapCollection builds the parcel layer of the web map. Record geometries
// are lon/lat.
func (l Layout) MapCollection(records []domain.ParcelRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		if len(r.Geometry) == 0 {
			continue
		}
		f := geojson.NewFeature(r.Geometry)
		f.ID = r.APN
		f.Properties["apn"] = r.APN
		f.Properties["report"] = l.ReportLink(r.APN)
		f.Properties["ba_gt75_all_slopes"] = r.Acreage.AllSlopesSevere()
		f.Properties["total_acres"] = r.Acreage.Total
		fc.Append(f)
	}
	return fc
}

var mapTmpl = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Parcels</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map');
var light = L.tileLayer('https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors &copy; CARTO'
}).addTo(map);
var imagery = L.tileLayer('https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}', {
  attribution: 'Esri World Imagery'
});
var overlays = {};
{{if .Overlay}}overlays['Basal area loss'] = L.imageOverlay({{.OverlayFile}}, {{.Overlay}}, {opacity: 0.6}).addTo(map);
{{end}}var parcels = L.geoJSON({{.Parcels}}, {
  style: {color: '#333', weight: 1, fillColor: 'white', fillOpacity: 0.2},
  onEachFeature: function (f, layer) {
    var a = document.createElement('a');
    a.href = f.properties.report;
    a.textContent = f.properties.apn + ' (' + f.properties.ba_gt75_all_slopes.toFixed(2) + ' ac severe)';
    layer.bindPopup(a);
  }
}).addTo(map);
overlays['Parcels'] = parcels;
L.control.layers({'Light': light, 'Imagery': imagery}, overlays).addTo(map);
if (parcels.getLayers().length) { map.fitBounds(parcels.getBounds()); } else { map.setView([40.419, -121.331], 12); }
</script>
</body>
</html>
`))

// WriteMap writes map.geojson and the Leaflet page map.html. overlay, when
// set, holds the lon/lat bounds of the severity overlay image.
func (l Layout) WriteMap(records []domain.ParcelRecord, overlay *orb.Bound) error {
	fc := l.MapCollection(records)
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode map: %w", err)
	}
	if err := writeFile(l.Path(MapGeoJSON), data); err != nil {
		return err
	}

	page := struct {
		Parcels     *geojson.FeatureCollection
		OverlayFile string
		Overlay     [][2]float64
	}{Parcels: fc, OverlayFile: OverlayPNG}
	if overlay != nil {
		page.Overlay = [][2]float64{
			{overlay.Min[1], overlay.Min[0]},
			{overlay.Max[1], overlay.Max[0]},
		}
	}
	var buf bytes.Buffer
	if err := mapTmpl.Execute(&buf, page); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return writeFile(l.Path(MapHTML), buf.Bytes())
}
