package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/burnscar-etl/internal/domain"
	"github.com/couchcryptid/burnscar-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ParcelProcessor turns one parcel into a Result.
type ParcelProcessor interface {
	Process(ctx context.Context, aoi domain.AOI) Result
}

// RecordSink receives the records of a finished batch.
type RecordSink interface {
	Publish(ctx context.Context, records []domain.ParcelRecord) error
}

// Batch is the outcome of a run. Results follow input order; Table holds the
// records of the parcels that succeeded, in the same order.
type Batch struct {
	Results []Result
	Table   domain.Table
}

// Failed returns the results that produced no record.
func (b Batch) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

const publishAttempts = 3

// Runner processes a list of parcels, optionally in parallel, and hands the
// records to a sink.
type Runner struct {
	processor ParcelProcessor
	sink      RecordSink
	tiers     domain.Tiers
	workers   int
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	progress  func(Result)
	ready     atomic.Bool
}

// NewRunner creates a Runner. sink may be nil; workers below 1 mean 1.
func NewRunner(p ParcelProcessor, sink RecordSink, tiers domain.Tiers, workers int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		processor: p,
		sink:      sink,
		tiers:     tiers,
		workers:   workers,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// OnProgress registers fn to be called once per finished parcel. Calls are
// serialized but arrive in completion order.
func (r *Runner) OnProgress(fn func(Result)) { r.progress = fn }

// CheckReadiness returns nil once a run has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no parcel run has completed yet")
	}
	return nil
}

// Run processes every parcel. A failed parcel is logged and left out of the
// table; it never stops the batch. The error is non-nil only when ctx ends
// the run early or the sink rejects the records; the Batch is usable either way.
func (r *Runner) Run(ctx context.Context, aois []domain.AOI) (Batch, error) {
	r.logger.Info("parcel run started", "parcels", len(aois), "workers", r.workers)
	r.metrics.RunActive.Set(1)
	defer r.metrics.RunActive.Set(0)

	start := r.clock.Now()
	results := r.processAll(ctx, aois)

	batch := Batch{Results: results, Table: domain.Table{Tiers: r.tiers}}
	for _, res := range results {
		if res.OK() {
			batch.Table.Append(res.Record)
		}
	}
	r.logger.Info("parcel run finished",
		"parcels", len(aois),
		"records", batch.Table.Len(),
		"failed", len(aois)-batch.Table.Len(),
		"duration", r.clock.Since(start),
	)

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	if err := r.publish(ctx, batch.Table.Records); err != nil {
		return batch, err
	}
	r.ready.Store(true)
	return batch, nil
}

// processAll fans parcels out to the workers and gathers results by index.
func (r *Runner) processAll(ctx context.Context, aois []domain.AOI) []Result {
	results := make([]Result, len(aois))
	jobs := make(chan int)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := r.processOne(ctx, aois[i])
				results[i] = res
				if r.progress != nil {
					mu.Lock()
					r.progress(res)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range aois {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(aois); j++ {
				results[j] = Result{Err: &domain.ProcessingError{APN: aois[j].Name, Stage: domain.StagePrepare, Err: ctx.Err()}}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (r *Runner) processOne(ctx context.Context, aoi domain.AOI) Result {
	start := r.clock.Now()
	res := r.processor.Process(ctx, aoi)
	r.metrics.ParcelDuration.Observe(r.clock.Since(start).Seconds())

	if res.Err != nil {
		var pe *domain.ProcessingError
		stage := domain.Stage("unknown")
		if errors.As(res.Err, &pe) {
			stage = pe.Stage
		}
		if errors.Is(res.Err, domain.ErrEmptyAOI) {
			r.metrics.ParcelsSkipped.Inc()
		} else {
			r.metrics.ParcelErrors.WithLabelValues(string(stage)).Inc()
		}
		r.logger.Warn("parcel failed, skipping", "apn", aoi.Name, "stage", stage, "error", res.Err)
		return res
	}

	r.metrics.ParcelsProcessed.Inc()
	for v, label := range r.tiers.ShortSeverity() {
		r.metrics.BurnedAcres.WithLabelValues(label).Add(res.Record.Acreage.SeverityColumn(domain.SeverityTier(v)))
	}
	r.logger.Info("parcel processed",
		"apn", aoi.Name,
		"total_acres", res.Record.Acreage.Total,
		"ba_gt75_all_slopes", res.Record.Acreage.AllSlopesSevere(),
		"warnings", len(res.Warnings),
	)
	return res
}

// publish hands records to the sink, retrying with exponential backoff.
func (r *Runner) publish(ctx context.Context, records []domain.ParcelRecord) error {
	if r.sink == nil || len(records) == 0 {
		return nil
	}
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = r.sink.Publish(ctx, records); err == nil {
			return nil
		}
		r.logger.Error("publish records failed", "error", err, "attempt", attempt, "records", len(records))
		if attempt == publishAttempts || !r.sleep(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish %d records: %w", len(records), err)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
