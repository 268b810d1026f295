package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"redcapdl/internal/accumulator"
	"redcapdl/internal/blob"
	"redcapdl/internal/cleaning"
	"redcapdl/internal/export"
	"redcapdl/internal/ledger"
	"redcapdl/internal/metrics"
)

// Runner holds everything one run needs. Store and Sources are required;
// Ledger and Metrics may be nil.
type Runner struct {
	Sources  []Source
	Store    blob.Store
	Ledger   ledger.Store
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
	Deriver  accumulator.Deriver
	Cleaning cleaning.Options
	Formats  []export.Format
	// Prefix is prepended to artifact keys.
	Prefix string
	// MetricsPath receives the Prometheus textfile; empty skips it.
	MetricsPath string
	Version     string

	Now   func() time.Time
	NewID func() string
}

// Run executes one download: aggregate every source, log totals, clean and
// publish the variable dictionary and the report. The returned run record is
// complete even when err is set.
func (r *Runner) Run(ctx context.Context) (ledger.Run, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	newID := r.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	run := ledger.Run{ID: newID(), Version: r.Version, Status: ledger.StatusRunning, StartedAt: now().UTC()}
	log = log.Named("pipeline").With(zap.String("run_id", run.ID))
	if r.Store == nil {
		return run, errors.New("pipeline: no blob store configured")
	}
	if len(r.Sources) == 0 {
		return run, errors.New("pipeline: no sources configured")
	}
	if r.Ledger != nil {
		if err := r.Ledger.Save(ctx, run); err != nil {
			return run, fmt.Errorf("record run start: %w", err)
		}
	}

	err := r.execute(ctx, &run, log)
	finished := now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status, run.Error = ledger.StatusFailed, err.Error()
		log.Error("run failed", zap.Error(err))
	} else {
		run.Status = ledger.StatusSucceeded
		log.Info("run finished", zap.Duration("elapsed", finished.Sub(run.StartedAt)))
	}
	r.finish(ctx, run, log)
	return run, err
}

func (r *Runner) execute(ctx context.Context, run *ledger.Run, log *zap.Logger) error {
	start := time.Now()
	acc, summaries, err := Aggregate(ctx, r.Sources, NewAccumulators(r.Deriver), log)
	run.Sources = summaries
	for _, s := range summaries {
		r.Metrics.SourceProcessed(s.Outcome == accumulator.OutcomeConflicting.String())
	}
	r.Metrics.Observe(ctx, "aggregate", err == nil, time.Since(start))
	if err != nil {
		return err
	}
	LogTotals(acc, log)

	pub, err := export.NewPublisher(r.Store, export.Options{
		Formats: r.Formats,
		Prefix:  r.Prefix,
		RunID:   run.ID,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	start = time.Now()
	results, err := cleaning.NewCleaner(pub, r.Cleaning, log).Run(ctx, acc.Variables, acc.Report)
	r.Metrics.Observe(ctx, "clean", err == nil, time.Since(start))
	for _, res := range results {
		r.record(run, res)
	}
	return err
}

func (r *Runner) record(run *ledger.Run, res cleaning.Result) {
	run.MergeConflicts += len(res.Conflicts)
	r.Metrics.MergeConflicts(res.Kind, len(res.Conflicts))
	switch res.Kind {
	case cleaning.KindReport:
		r.Metrics.ReportShape(res.Rows, res.Columns)
	case cleaning.KindVariables:
		r.Metrics.VariablesRows(res.Rows)
	}
	for _, info := range res.Artifacts {
		run.Artifacts = append(run.Artifacts, ledger.Artifact{Key: info.Key, Size: info.Size, ETag: info.ETag, URL: info.URL})
		r.Metrics.Artifact(info.Key, info.Size)
	}
}

// finish records the outcome. Failures here are logged only: the artifacts
// are already published.
func (r *Runner) finish(ctx context.Context, run ledger.Run, log *zap.Logger) {
	if r.Ledger != nil {
		if err := r.Ledger.Save(ctx, run); err != nil {
			log.Error("failed to record run outcome", zap.Error(err))
		}
	}
	if r.Metrics == nil {
		return
	}
	r.Metrics.RunFinished(run.FinishedAt.Sub(run.StartedAt), run.Status == ledger.StatusSucceeded, *run.FinishedAt)
	if err := r.Metrics.WriteTextfile(r.MetricsPath); err != nil {
		log.Error("failed to write metrics", zap.Error(err))
	}
}
