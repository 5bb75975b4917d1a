// Package pipeline runs dataset generation for a set of domains and
// handles everything around it: writing files, archiving, publishing,
// the run catalog, and progress reporting.
//
// Each domain runs in isolation. A failing domain produces a failed
// Result and never stops the others.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/battsim/internal/archive"
	"github.com/nvandessel/battsim/internal/config"
	"github.com/nvandessel/battsim/internal/dataset"
	"github.com/nvandessel/battsim/internal/logging"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/publish"
	"github.com/nvandessel/battsim/internal/sanitize"
	"github.com/nvandessel/battsim/internal/store"
	"github.com/nvandessel/battsim/internal/synth"
)

// Result is the outcome of one domain run.
type Result struct {
	RunID   string        `json:"run_id"`
	BatchID string        `json:"batch_id"`
	Domain  models.Domain `json:"domain"`
	Seed    int64         `json:"seed"`
	Samples int           `json:"samples"`
	Format  string        `json:"format"`

	Path        string `json:"path,omitempty"`
	Bytes       int64  `json:"bytes,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	LabelCounts []int  `json:"label_counts,omitempty"`

	ArchivePath string          `json:"archive_path,omitempty"`
	Object      *publish.Object `json:"object,omitempty"`

	Duration time.Duration `json:"duration"`

	// Stage and Err are set when the run failed.
	Stage synth.Stage `json:"stage,omitempty"`
	Err   error       `json:"-"`
	Error string      `json:"error,omitempty"`
}

// OK reports whether the domain run succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Runner generates datasets according to a Config.
type Runner struct {
	cfg       *config.Config
	root      string
	catalog   store.RunCatalog
	publisher publish.Publisher
	observer  Observer
	trace     *logging.TraceLogger
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithCatalog records every run in c.
func WithCatalog(c store.RunCatalog) Option {
	return func(r *Runner) { r.catalog = c }
}

// WithPublisher uploads every written dataset through p.
func WithPublisher(p publish.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithTraceLogger enables per-row trace events.
func WithTraceLogger(tl *logging.TraceLogger) Option {
	return func(r *Runner) { r.trace = tl }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for cfg. Relative paths in cfg resolve
// against root. The config is validated here.
func NewRunner(cfg *config.Config, root string, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:      cfg,
		root:     root,
		observer: Observers(nil),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run generates every enabled domain, or only the given domains when
// any are passed. It returns one Result per domain in order. The error
// is non-nil only when ctx was cancelled before all domains ran.
func (r *Runner) Run(ctx context.Context, domains ...models.Domain) ([]Result, error) {
	if len(domains) == 0 {
		domains = r.cfg.EnabledDomains()
	}
	batchID := uuid.NewString()

	results := make([]Result, 0, len(domains))
	for _, d := range domains {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("generation cancelled before %s: %w", d, err)
		}
		results = append(results, r.runDomain(ctx, batchID, d))
	}
	return results, nil
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

func (r *Runner) runDomain(ctx context.Context, batchID string, d models.Domain) Result {
	res := Result{
		RunID:   uuid.NewString(),
		BatchID: batchID,
		Domain:  d,
		Seed:    r.cfg.SeedFor(d),
		Samples: r.cfg.SamplesFor(d),
		Format:  r.cfg.Generation.Format,
	}
	started := r.now()
	r.observer.DomainStarted(d, res.Samples)

	run := store.Run{
		ID:        res.RunID,
		BatchID:   batchID,
		Domain:    d,
		Seed:      res.Seed,
		Samples:   res.Samples,
		Format:    res.Format,
		Status:    store.StatusRunning,
		StartedAt: started,
	}
	if err := r.record(ctx, run); err != nil {
		return r.finish(ctx, res, run, started, synth.NewError(d, synth.StageCatalog, err))
	}

	err := r.generate(ctx, &res)
	return r.finish(ctx, res, run, started, err)
}

func (r *Runner) generate(ctx context.Context, res *Result) error {
	d := res.Domain
	dom, err := synth.NewWithOverrides(d, r.cfg.Domain(d).Overrides)
	if err != nil {
		return err
	}

	ds, err := synth.Generate(ctx, dom, res.Samples, res.Seed,
		synth.WithWorkers(r.cfg.Generation.Workers),
		synth.WithRowHook(func(row int, s models.Sample) {
			r.trace.LogSample(res.RunID, d, row, s)
		}),
	)
	if err != nil {
		return err
	}
	res.LabelCounts = ds.LabelCounts()

	path := filepath.Join(r.cfg.OutputDir(r.root), d.DatasetFileName(res.Samples, res.Format))
	written, err := dataset.WriteFile(path, ds, res.Format)
	if err != nil {
		return synth.NewError(d, synth.StageIO, err)
	}
	res.Path = written.Path
	res.Bytes = written.Bytes
	res.Checksum = written.Checksum

	if r.cfg.Archive.Enabled {
		if err := r.archive(res); err != nil {
			return synth.NewError(d, synth.StageIO, err)
		}
	}

	if r.publisher != nil {
		key := publish.ObjectKey(string(d), res.BatchID, res.Path)
		md := publish.Metadata(res.RunID, string(d), res.Seed, res.Samples, res.Checksum)
		obj, err := r.publisher.Publish(ctx, res.Path, key, md)
		if err != nil {
			return synth.NewError(d, synth.StagePublish, err)
		}
		res.Object = obj
	}
	return nil
}

func (r *Runner) archive(res *Result) error {
	dir := r.cfg.ArchiveDir(r.root)
	entry, err := archive.Archive(dir, res.Path, archive.Meta{
		RunID:  res.RunID,
		Domain: res.Domain,
		Seed:   res.Seed,
		Rows:   res.Samples,
		Format: res.Format,
	})
	if err != nil {
		return err
	}
	res.ArchivePath = entry.Path

	policy := archive.NewPolicy(r.cfg.Archive.MaxCount, r.cfg.Archive.MaxAge, 0)
	deleted, err := archive.Prune(dir, policy)
	if err != nil {
		// The new bundle is in place; a failed prune only delays cleanup.
		r.logger.Warn("archive retention failed", "dir", dir, "error", err)
	}
	if len(deleted) > 0 {
		r.logger.Debug("pruned archive bundles", "count", len(deleted))
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, res Result, run store.Run, started time.Time, err error) Result {
	finished := r.now()
	res.Duration = finished.Sub(started)

	if err != nil {
		res.Err = err
		res.Error = sanitize.Message(err.Error())
		res.Stage = synth.StageOf(err)
		if res.Stage == "" {
			res.Stage = synth.StageSampling
		}
	}

	run.FinishedAt = &finished
	run.Path = res.Path
	run.Checksum = res.Checksum
	run.Bytes = res.Bytes
	run.LabelCounts = res.LabelCounts
	run.ArchivePath = res.ArchivePath
	if res.Object != nil {
		run.ObjectKey = res.Object.Key
	}
	run.Status = store.StatusSucceeded
	if res.Err != nil {
		run.Status = store.StatusFailed
		run.Stage = string(res.Stage)
		run.Error = res.Error
	}

	// A cancelled run is still recorded.
	if recErr := r.record(context.WithoutCancel(ctx), run); recErr != nil && res.Err == nil {
		res.Err = synth.NewError(res.Domain, synth.StageCatalog, recErr)
		res.Error = sanitize.Message(res.Err.Error())
		res.Stage = synth.StageCatalog
	}

	r.observer.DomainFinished(res)
	return res
}

func (r *Runner) record(ctx context.Context, run store.Run) error {
	if r.catalog == nil {
		return nil
	}
	if err := r.catalog.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// ErrDomainsFailed is returned by callers that turn failed results into
// a process error.
var ErrDomainsFailed = errors.New("one or more domains failed")
