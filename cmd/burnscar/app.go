package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/burnscar-etl/internal/adapter/gdal"
	httpadapter "github.com/couchcryptid/burnscar-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/burnscar-etl/internal/adapter/kafka"
	"github.com/couchcryptid/burnscar-etl/internal/adapter/naip"
	"github.com/couchcryptid/burnscar-etl/internal/adapter/parcels"
	"github.com/couchcryptid/burnscar-etl/internal/adapter/usgs"
	"github.com/couchcryptid/burnscar-etl/internal/config"
	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/observability"
	"github.com/couchcryptid/burnscar-etl/internal/pipeline"
	"github.com/couchcryptid/burnscar-etl/internal/report"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"gopkg.in/cheggaaa/pb.v1"
)

// app holds the process-wide collaborators shared by run and serve.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	tools   *gdal.Toolbox
	writer  *kafkaadapter.Writer
	clock   clockwork.Clock
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, err
	}
	if err := os.MkdirAll(cfg.TempDir(), 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", cfg.TempDir(), err)
	}

	logger := observability.NewLogger(cfg)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		tools:   gdal.NewToolbox(cfg.TempDir(), logger),
		clock:   clockwork.NewRealClock(),
	}
	if cfg.KafkaEnabled {
		a.writer = kafkaadapter.NewWriter(cfg, a.metrics, logger)
		logger.Info("kafka record sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	return a, nil
}

func (a *app) close() {
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	a.tools.Close()
}

func (a *app) newRunner() *pipeline.Runner {
	cfg := a.cfg
	elevation := usgs.NewClient(cfg.USGSEndpoint, cfg.USGSTimeout, cfg.USGSBlockSize, cfg.TempDir(), a.tools, a.metrics, a.logger)

	var imagery domain.ImagerySource
	if cfg.NAIPDir != "" {
		imagery = naip.NewSource(cfg.NAIPDir, cfg.TempDir(), cfg.NAIPIndexSize, a.tools, a.metrics, a.logger)
	} else {
		a.logger.Info("NAIP_DIR not set, figures will have no imagery")
	}

	proc := pipeline.NewProcessor(a.tools, elevation, imagery, report.Layout{Dir: cfg.OutputDir}, pipeline.SettingsFromConfig(cfg), a.clock, a.metrics, a.logger)

	var sink pipeline.RecordSink
	if a.writer != nil {
		sink = a.writer
	}
	return pipeline.NewRunner(proc, sink, cfg.Tiers, cfg.Workers, a.clock, a.logger, a.metrics)
}

func (a *app) loadParcels() ([]domain.AOI, error) {
	cfg := a.cfg
	aois, err := parcels.Load(cfg.ParcelsFile, cfg.ParcelNameField, cfg.ParcelCRS)
	if err != nil {
		return nil, err
	}
	if cfg.BoundaryFile != "" {
		boundary, err := parcels.LoadBoundary(cfg.BoundaryFile, cfg.BoundaryName, cfg.ParcelCRS)
		if err != nil {
			return nil, err
		}
		aois = parcels.WithinBoundary(aois, boundary)
	}
	a.logger.Info("parcels loaded", "file", cfg.ParcelsFile, "parcels", len(aois))
	return aois, nil
}

// run processes the parcels and writes the batch outputs. Parcel failures
// are logged by the runner; only a cancelled run, a sink failure or an
// output write error fails the command.
func (a *app) run(ctx context.Context, runner *pipeline.Runner, progress bool) error {
	aois, err := a.loadParcels()
	if err != nil {
		return err
	}

	var owners report.Owners
	if a.cfg.OwnersFile != "" {
		if owners, err = report.LoadOwners(a.cfg.OwnersFile); err != nil {
			return err
		}
	}

	if progress {
		bar := pb.New(len(aois))
		bar.Output = os.Stderr
		bar.ShowTimeLeft = false
		bar.Start()
		runner.OnProgress(func(pipeline.Result) { bar.Increment() })
		defer bar.FinishPrint("parcels processed")
	}

	batch, runErr := runner.Run(ctx, aois)
	for _, res := range batch.Failed() {
		a.logger.Debug("parcel left out of outputs", "error", res.Err)
	}
	if errors.Is(runErr, context.Canceled) {
		return runErr
	}

	outputs := pipeline.NewOutputs(a.cfg, report.Layout{Dir: a.cfg.OutputDir}, a.tools, owners, a.logger)
	if err := outputs.Write(batch, aois); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// serve exposes the output directory until ctx ends. With runFirst the
// parcels are processed in the background and readiness follows the run.
func (a *app) serve(ctx context.Context, runFirst bool) error {
	var ready sharedobs.ReadinessChecker = httpadapter.OutputChecker{Dir: a.cfg.OutputDir}

	var runner *pipeline.Runner
	if runFirst {
		runner = a.newRunner()
		ready = runner
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.cfg.OutputDir, ready, a.logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	if runner != nil {
		go func() {
			if err := a.run(ctx, runner, false); err != nil {
				a.logger.Error("parcel run error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

func writeOwners(dir, ownersFile, exclude, tiersFile string) error {
	tiers := domain.DefaultTiers()
	if tiersFile != "" {
		var err error
		if tiers, err = config.LoadTiersFile(tiersFile); err != nil {
			return err
		}
	}
	owners, err := report.LoadOwners(ownersFile)
	if err != nil {
		return err
	}
	layout := report.Layout{Dir: dir}
	table, err := layout.ReadTable(tiers)
	if err != nil {
		return err
	}
	return layout.WriteSummary(tiers, report.Summarize(table, owners, exclude))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
