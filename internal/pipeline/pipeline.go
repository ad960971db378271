package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/couchcryptid/ghg-merge/internal/observability"
)

// ErrPersist wraps failures writing the merged-data file. The run output is
// still returned alongside it.
var ErrPersist = errors.New("persist run output")

// OutputWriter writes a run output to a single file at path.
type OutputWriter interface {
	WriteRunOutput(ctx context.Context, out *domain.RunOutput, path string) error
}

// Notifier announces completed runs to downstream consumers.
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, summary domain.RunSummary) error
}

// Stores groups the dataset retrieval ports used by a run.
type Stores struct {
	Observations       domain.ObservationStore
	Footprints         domain.FootprintStore
	Fluxes             domain.FluxStore
	BoundaryConditions domain.BoundaryConditionStore
}

// Options tunes an Assembler. Augmenter, Writer and Notifier are optional.
type Options struct {
	// SiteConcurrency bounds how many sites are assembled at once. Values
	// below 2 assemble sites one after another.
	SiteConcurrency int
	CodeVersion     string
	// OutputDir is used when a request asks to save but names no directory.
	OutputDir string

	Augmenter domain.AveragingErrorAugmenter
	Writer    OutputWriter
	Notifier  Notifier
}

// Assembler runs the merge pipeline: it collects fluxes, assembles every site
// and builds the run output.
type Assembler struct {
	stores  Stores
	builder domain.ScenarioBuilder
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[domain.RunSummary]
}

// New creates an Assembler with the given stores, merge kernel and observability.
func New(stores Stores, builder domain.ScenarioBuilder, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Assembler {
	return &Assembler{
		stores:  stores,
		builder: builder,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the assembler has completed a run,
// or an error describing why the service is not yet ready.
func (a *Assembler) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("assembler has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent successful run.
func (a *Assembler) LastRun() (domain.RunSummary, bool) {
	s := a.last.Load()
	if s == nil {
		return domain.RunSummary{}, false
	}
	return *s, true
}

// Run assembles the request into a RunOutput. Any retrieval, unit or grid
// failure aborts the run. When persistence fails the output is returned
// together with an error wrapping ErrPersist.
func (a *Assembler) Run(ctx context.Context, req domain.RunRequest) (*domain.RunOutput, error) {
	start := time.Now()
	a.metrics.PipelineRunning.Set(1)
	defer a.metrics.PipelineRunning.Set(0)

	out, err := a.assemble(ctx, &req)
	if err != nil {
		a.metrics.RunFailures.Inc()
		a.logger.Error("run failed", "species", req.Species, "error", err)
		return nil, err
	}

	path, err := a.persist(ctx, req, out)
	if err != nil {
		a.metrics.PersistFailures.Inc()
		a.logger.Error("persist run output failed", "run_id", out.RunID, "error", err)
		return out, err
	}
	summary := domain.Summarize(out, path)
	a.last.Store(&summary)
	a.notify(ctx, summary)

	a.metrics.RunsCompleted.Inc()
	a.metrics.RunDuration.Observe(time.Since(start).Seconds())
	a.ready.Store(true)
	a.logger.Info("run completed",
		"run_id", out.RunID,
		"species", out.Species,
		"sites", len(out.SiteOrder),
		"output", path,
		"duration", time.Since(start),
	)
	return out, nil
}

func (a *Assembler) assemble(ctx context.Context, req *domain.RunRequest) (*domain.RunOutput, error) {
	sites, err := domain.NormalizeSites(req)
	if err != nil {
		return nil, fmt.Errorf("normalize parameters: %w", err)
	}
	if len(sites) == 0 {
		return nil, domain.ErrNoSites
	}
	sectors, err := validateSectors(req.Sectors)
	if err != nil {
		return nil, err
	}

	a.logger.Info("run started",
		"species", req.Species,
		"sites", req.Sites,
		"sectors", sectors,
		"use_bc", req.UseBC,
		"start", req.TimeRange.Start,
		"end", req.TimeRange.End,
		"code_version", a.opts.CodeVersion,
	)

	fluxes, err := a.collectFluxes(ctx, *req, sectors)
	if err != nil {
		return nil, err
	}
	results, err := a.assembleSites(ctx, *req, sites, fluxes, sectors)
	if err != nil {
		return nil, err
	}
	return a.finalize(ctx, *req, sites, sectors, fluxes, results)
}

func (a *Assembler) persist(ctx context.Context, req domain.RunRequest, out *domain.RunOutput) (string, error) {
	if !req.SaveMergedData {
		return "", nil
	}
	if a.opts.Writer == nil {
		return "", fmt.Errorf("%w: no output writer configured", ErrPersist)
	}
	dir := req.MergedDataDir
	if dir == "" {
		dir = a.opts.OutputDir
	}
	label := req.MergedDataName
	if label == "" {
		label = "run"
	}
	path := filepath.Join(dir, domain.MergedDataFilename(req.Species, out.TimeRange.Start, label))
	if err := a.opts.Writer.WriteRunOutput(ctx, out, path); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return path, nil
}

func (a *Assembler) notify(ctx context.Context, summary domain.RunSummary) {
	if a.opts.Notifier == nil {
		return
	}
	if err := a.opts.Notifier.NotifyRunCompleted(ctx, summary); err != nil {
		a.logger.Warn("run notification failed", "run_id", summary.RunID, "error", err)
	}
}
