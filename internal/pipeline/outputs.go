package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/burnscar-etl/internal/config"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/report"
	"github.com/paulmach/orb"
)

// Outputs writes the cross-parcel products of a batch: the table, the owner
// summary and the web map with its burn severity overlay.
type Outputs struct {
	layout        report.Layout
	tools         Tools
	severityFile  string
	overlayBuffer float64
	tmpDir        string
	owners        report.Owners
	boundary      string
	logger        *slog.Logger
}

// NewOutputs builds the batch writer. owners may be nil to skip the summary.
func NewOutputs(cfg *config.Config, layout report.Layout, tools Tools, owners report.Owners, logger *slog.Logger) *Outputs {
	o := &Outputs{
		layout:        layout,
		tools:         tools,
		severityFile:  cfg.BurnSeverityFile,
		overlayBuffer: cfg.OverlayBuffer,
		tmpDir:        cfg.TempDir(),
		owners:        owners,
		logger:        logger,
	}
	if cfg.BoundaryFile != "" {
		o.boundary = cfg.BoundaryName
	}
	return o
}

// Write renders every batch product. The overlay is best effort: without it
// the map still shows the parcels.
func (o *Outputs) Write(batch Batch, aois []domain.AOI) error {
	if err := o.layout.WriteTable(batch.Table); err != nil {
		return err
	}
	if o.owners != nil {
		rows := report.Summarize(batch.Table, o.owners, o.boundary)
		if err := o.layout.WriteSummary(batch.Table.Tiers, rows); err != nil {
			return err
		}
	}

	var overlay *orb.Bound
	if area, err := o.overlayArea(aois); err != nil {
		o.logger.Warn("no overlay area", "error", err)
	} else if b, err := o.layout.WriteOverlay(o.tools, o.severityFile, area, o.overlayBuffer, o.tmpDir); err != nil {
		o.logger.Warn("severity overlay failed", "error", err)
	} else {
		overlay = &b
	}
	if err := o.layout.WriteMap(batch.Table.Records, overlay); err != nil {
		return err
	}
	o.logger.Info("batch outputs written", "dir", o.layout.Dir, "records", batch.Table.Len(), "overlay", overlay != nil)
	return nil
}

// overlayArea is the watershed boundary when there is one, otherwise the
// extent of every parcel.
func (o *Outputs) overlayArea(aois []domain.AOI) (domain.AOI, error) {
	if len(aois) == 0 {
		return domain.AOI{}, errors.New("no parcels")
	}
	for _, a := range aois {
		if o.boundary != "" && a.Name == o.boundary {
			return a, nil
		}
	}
	b := aois[0].Bounds()
	for _, a := range aois[1:] {
		if a.CRS != aois[0].CRS {
			return domain.AOI{}, fmt.Errorf("parcels in %s and %s", aois[0].CRS, a.CRS)
		}
		b = b.Union(a.Bounds())
	}
	return domain.NewAOI("extent", aois[0].CRS, b.ToPolygon())
}
