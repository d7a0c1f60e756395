package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/couchcryptid/burnscar-etl/internal/config"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/observability"
	"github.com/couchcryptid/burnscar-etl/internal/render"
	"github.com/couchcryptid/burnscar-etl/internal/report"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
)

// Derived raster names inside a parcel's figure directory.
const (
	demFile       = "dem.tif"
	slopeFile     = "slope.tif"
	hillshadeFile = "hillshade.tif"
	severityFile  = "ba.tif"
	imageryFile   = "naip.tif"
)

// Tools is the raster and geometry layer a parcel run needs.
type Tools interface {
	domain.RasterStore
	domain.Warper
	domain.Projector
}

// Settings are the processing parameters of a run.
type Settings struct {
	SeverityFile   string
	DstCRS         string
	DEMBuffer      float64
	SeverityBuffer float64
	AlignTolerance float64
	Tiers          domain.Tiers
	Palette        domain.Palette
}

// SettingsFromConfig copies the processing parameters out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SeverityFile:   cfg.BurnSeverityFile,
		DstCRS:         cfg.DstCRS,
		DEMBuffer:      cfg.DEMBuffer,
		SeverityBuffer: cfg.SeverityBuffer,
		AlignTolerance: cfg.AlignTolerance,
		Tiers:          cfg.Tiers,
		Palette:        domain.DefaultPalette(),
	}
}

// Result is the outcome of one parcel. Err is a *domain.ProcessingError when
// the parcel produced no record. Warnings collect non-fatal failures such as
// missing imagery or a figure that did not render; the record still stands.
type Result struct {
	Record    domain.ParcelRecord
	Artifacts map[string]string
	Err       error
	Warnings  []error
}

// OK reports whether the parcel produced a record.
func (r Result) OK() bool { return r.Err == nil }

// Processor runs the per-parcel stages: prepare, elevation, terrain,
// severity, imagery, classify and render. Every derived raster lives at a
// deterministic path and is skipped when it already exists.
type Processor struct {
	tools     Tools
	elevation domain.ElevationSource
	imagery   domain.ImagerySource
	layout    report.Layout
	settings  Settings
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewProcessor wires a Processor. imagery may be nil.
func NewProcessor(tools Tools, elevation domain.ElevationSource, imagery domain.ImagerySource, layout report.Layout, settings Settings, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Processor {
	return &Processor{
		tools:     tools,
		elevation: elevation,
		imagery:   imagery,
		layout:    layout,
		settings:  settings,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// parcelRun carries the intermediate products of one parcel between stages.
type parcelRun struct {
	aoi      domain.AOI // in the destination CRS
	lonLat   domain.AOI
	dir      string
	dem      *domain.Raster
	slope    *domain.Raster
	hill     *domain.Raster
	severity *domain.Raster
	imagery  *domain.Raster
	pair     domain.AlignedPair
	classes  *domain.Classification
	acreage  domain.AcreageTable
	result   Result
}

// Process runs every stage for aoi. It never panics on bad input; failures
// come back on the Result.
func (p *Processor) Process(ctx context.Context, aoi domain.AOI) Result {
	run := &parcelRun{
		dir:    p.layout.FigureDir(aoi.Name),
		result: Result{Artifacts: map[string]string{}},
	}
	stages := []struct {
		stage domain.Stage
		fn    func(context.Context, domain.AOI, *parcelRun) error
	}{
		{domain.StagePrepare, p.prepare},
		{domain.StageElevation, p.fetchElevation},
		{domain.StageTerrain, p.terrain},
		{domain.StageSeverity, p.severity},
		{domain.StageImagery, p.fetchImagery},
		{domain.StageClassify, p.classify},
		{domain.StageRender, p.render},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			run.result.Err = &domain.ProcessingError{APN: aoi.Name, Stage: s.stage, Err: err}
			return run.result
		}
		start := p.clock.Now()
		err := s.fn(ctx, aoi, run)
		p.metrics.StageDuration.WithLabelValues(string(s.stage)).Observe(p.clock.Since(start).Seconds())
		if err != nil {
			run.result.Err = &domain.ProcessingError{APN: aoi.Name, Stage: s.stage, Err: err}
			return run.result
		}
	}
	return run.result
}

func (p *Processor) prepare(_ context.Context, aoi domain.AOI, run *parcelRun) error {
	var err error
	if run.aoi, err = p.tools.ProjectAOI(aoi, p.settings.DstCRS); err != nil {
		return err
	}
	if run.lonLat, err = p.tools.ProjectAOI(aoi, report.LonLat); err != nil {
		return err
	}
	return nil
}

func (p *Processor) fetchElevation(ctx context.Context, _ domain.AOI, run *parcelRun) error {
	path := filepath.Join(run.dir, demFile)
	err := p.cached("dem", path, func() error {
		buffered, err := p.tools.Buffer(run.aoi, p.settings.DEMBuffer)
		if err != nil {
			return err
		}
		return p.elevation.FetchElevation(ctx, buffered, p.settings.DstCRS, path)
	})
	if err != nil {
		return err
	}
	run.dem, err = p.tools.Open(path)
	run.result.Artifacts[demFile] = path
	return err
}

func (p *Processor) terrain(_ context.Context, _ domain.AOI, run *parcelRun) error {
	var err error
	if run.slope, err = p.derive("slope", filepath.Join(run.dir, slopeFile), run, func() (*domain.Raster, error) {
		return domain.Slope(run.dem)
	}); err != nil {
		return err
	}
	run.hill, err = p.derive("hillshade", filepath.Join(run.dir, hillshadeFile), run, func() (*domain.Raster, error) {
		return domain.Hillshade(run.dem, domain.HillshadeAzimuth, domain.HillshadeAltitude)
	})
	return err
}

// severity warps burn severity onto the DEM's pixel lattice, widened to
// cover the parcel plus the severity buffer, so both crop to the same window.
func (p *Processor) severity(_ context.Context, _ domain.AOI, run *parcelRun) error {
	path := filepath.Join(run.dir, severityFile)
	err := p.cached("severity", path, func() error {
		buffered, err := p.tools.Buffer(run.aoi, p.settings.SeverityBuffer)
		if err != nil {
			return err
		}
		res := run.dem.Resolution()
		extent := snapBound(buffered.Bounds(), run.dem.Transform)
		return p.tools.Reproject(p.settings.SeverityFile, path, domain.ReprojectOptions{
			CRS:        p.settings.DstCRS,
			Resolution: &res,
			Extent:     &extent,
			Resampling: domain.ResampleNearest,
		})
	})
	if err != nil {
		return err
	}
	run.result.Artifacts[severityFile] = path
	run.severity, err = p.tools.Open(path)
	return err
}

// fetchImagery is best effort: imagery only feeds the figures.
func (p *Processor) fetchImagery(ctx context.Context, aoi domain.AOI, run *parcelRun) error {
	if p.imagery == nil {
		return nil
	}
	path := filepath.Join(run.dir, imageryFile)
	err := p.cached("imagery", path, func() error {
		return p.imagery.FetchImagery(ctx, aoi, p.settings.DstCRS, path)
	})
	if err == nil {
		run.imagery, err = p.tools.Open(path)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.warn(run, aoi.Name, domain.StageImagery, err)
		return nil
	}
	run.result.Artifacts[imageryFile] = path
	return nil
}

func (p *Processor) classify(_ context.Context, aoi domain.AOI, run *parcelRun) error {
	slope, err := domain.Crop(run.slope.Masked(), run.aoi, math.NaN())
	if err != nil {
		return err
	}
	if len(domain.FiniteValues(slope.Band())) == 0 {
		return fmt.Errorf("no finite slope inside parcel: %w", domain.ErrEmptyAOI)
	}
	sev, err := domain.Crop(run.severity.Masked(), run.aoi, math.NaN())
	if err != nil {
		return err
	}
	if run.pair, err = domain.Align(slope, sev, p.settings.AlignTolerance); err != nil {
		return err
	}

	run.classes = domain.Classify(run.pair, p.settings.Tiers, p.settings.Palette)
	run.acreage = domain.Aggregate(run.classes, run.pair.Resolution())
	run.result.Record = domain.ParcelRecord{
		APN:         aoi.Name,
		Acreage:     run.acreage,
		ParcelAcres: domain.GeodesicAcres(run.lonLat.Geometry),
		Geometry:    run.lonLat.Geometry,
		ReportPath:  p.layout.ReportLink(aoi.Name),
		ProcessedAt: p.clock.Now().UTC(),
	}
	return nil
}

// render draws the figures and the parcel report. Failures are warnings; a
// histogram that cannot be built leaves only its own panel empty.
func (p *Processor) render(_ context.Context, aoi domain.AOI, run *parcelRun) error {
	figs := render.Figures{
		AOI:            run.aoi,
		DEM:            run.dem,
		Slope:          run.slope,
		Hillshade:      run.hill,
		Severity:       run.severity,
		Imagery:        run.imagery,
		Classification: run.classes,
		PixelAcres:     run.acreage.PixelAcres,
	}
	var errs []error
	var err error
	if figs.SlopeHist, err = domain.SlopeHistogram(run.pair.Slope); err != nil {
		errs = append(errs, err)
	}
	if figs.SeverityHist, err = domain.SeverityHistogram(run.pair.Severity); err != nil {
		errs = append(errs, err)
	}

	written, err := render.Parcel(run.dir, figs)
	if err != nil {
		errs = append(errs, err)
	}
	for name, path := range written {
		run.result.Artifacts[name] = path
	}

	reportPath, err := p.layout.WriteParcel(run.result.Record, p.settings.Tiers, p.settings.Palette, written)
	if err != nil {
		errs = append(errs, err)
	} else {
		run.result.Artifacts["report"] = reportPath
	}
	if err := errors.Join(errs...); err != nil {
		p.warn(run, aoi.Name, domain.StageRender, err)
	}
	return nil
}

// cached runs build unless path already holds a readable raster.
func (p *Processor) cached(artifact, path string, build func() error) error {
	if p.tools.Exists(path) {
		p.metrics.ArtifactCache.WithLabelValues(artifact, "hit").Inc()
		p.logger.Debug("artifact exists, skipping", "artifact", artifact, "path", path)
		return nil
	}
	p.metrics.ArtifactCache.WithLabelValues(artifact, "miss").Inc()
	return build()
}

// derive opens path if present, otherwise computes and writes it.
func (p *Processor) derive(artifact, path string, run *parcelRun, compute func() (*domain.Raster, error)) (*domain.Raster, error) {
	var out *domain.Raster
	err := p.cached(artifact, path, func() error {
		r, err := compute()
		if err != nil {
			return err
		}
		out = r
		return p.tools.Write(path, r)
	})
	if err != nil {
		return nil, err
	}
	run.result.Artifacts[filepath.Base(path)] = path
	if out != nil {
		return out, nil
	}
	return p.tools.Open(path)
}

func (p *Processor) warn(run *parcelRun, apn string, stage domain.Stage, err error) {
	p.logger.Warn("parcel stage degraded", "apn", apn, "stage", stage, "error", err)
	run.result.Warnings = append(run.result.Warnings, &domain.ProcessingError{APN: apn, Stage: stage, Err: err})
}

// snapBound widens b outward onto the pixel lattice of t.
func snapBound(b orb.Bound, t domain.Transform) orb.Bound {
	res := t.Resolution()
	snap := func(v, origin, step float64, round func(float64) float64) float64 {
		return origin + round((v-origin)/step)*step
	}
	return orb.Bound{
		Min: orb.Point{snap(b.Min[0], t[0], res.X, math.Floor), snap(b.Min[1], t[3], res.Y, math.Floor)},
		Max: orb.Point{snap(b.Max[0], t[0], res.X, math.Ceil), snap(b.Max[1], t[3], res.Y, math.Ceil)},
	}
}
