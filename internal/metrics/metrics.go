// Package metrics collects per-run counters and gauges in a private
// Prometheus registry and writes them for the node exporter textfile
// collector.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the registry for one run. A nil *Recorder is a no-op.
type Recorder struct {
	reg *prometheus.Registry

	sources         prometheus.Counter
	typeConflicts   prometheus.Counter
	mergeConflicts  *prometheus.CounterVec
	operations      *prometheus.CounterVec
	opDuration      *prometheus.HistogramVec
	reportRows      prometheus.Gauge
	reportColumns   prometheus.Gauge
	variablesRows   prometheus.Gauge
	artifactBytes   *prometheus.GaugeVec
	runDuration     prometheus.Gauge
	lastSuccessUnix prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		sources: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redcapdl_sources_processed_total",
			Help: "REDCap projects folded into the run.",
		}),
		typeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redcapdl_datatype_conflicts_total",
			Help: "Projects whose derived data type differed from the first project's.",
		}),
		mergeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redcapdl_merge_conflicts_total",
			Help: "Rows where same-named columns held different values.",
		}, []string{"artifact"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redcapdl_operations_total",
			Help: "Run stages by outcome.",
		}, []string{"operation", "status"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redcapdl_operation_duration_seconds",
			Help:    "Run stage latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"operation"}),
		reportRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redcapdl_report_rows",
			Help: "Rows in the cleaned report.",
		}),
		reportColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redcapdl_report_columns",
			Help: "Columns in the cleaned report.",
		}),
		variablesRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redcapdl_variables_rows",
			Help: "Rows in the cleaned variable dictionary.",
		}),
		artifactBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "redcapdl_artifact_bytes",
			Help: "Size of each published artifact.",
		}, []string{"artifact"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redcapdl_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastSuccessUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redcapdl_last_success_timestamp_seconds",
			Help: "Unix time the last successful run finished.",
		}),
	}
	r.reg.MustRegister(
		r.sources, r.typeConflicts, r.mergeConflicts, r.operations, r.opDuration,
		r.reportRows, r.reportColumns, r.variablesRows, r.artifactBytes,
		r.runDuration, r.lastSuccessUnix,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Observe records the outcome and latency of one run stage.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	if r == nil || operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SourceProcessed counts one folded project; conflicting marks a data type
// mismatch.
func (r *Recorder) SourceProcessed(conflicting bool) {
	if r == nil {
		return
	}
	r.sources.Inc()
	if conflicting {
		r.typeConflicts.Inc()
	}
}

// MergeConflicts adds n conflicts for an artifact kind.
func (r *Recorder) MergeConflicts(artifact string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.mergeConflicts.WithLabelValues(artifact).Add(float64(n))
}

// ReportShape sets the cleaned report dimensions.
func (r *Recorder) ReportShape(rows, cols int) {
	if r == nil {
		return
	}
	r.reportRows.Set(float64(rows))
	r.reportColumns.Set(float64(cols))
}

// VariablesRows sets the cleaned variable dictionary row count.
func (r *Recorder) VariablesRows(rows int) {
	if r == nil {
		return
	}
	r.variablesRows.Set(float64(rows))
}

// Artifact records the size of a published artifact.
func (r *Recorder) Artifact(key string, size int64) {
	if r == nil {
		return
	}
	r.artifactBytes.WithLabelValues(key).Set(float64(size))
}

// RunFinished sets the run duration and, on success, the success timestamp.
func (r *Recorder) RunFinished(d time.Duration, success bool, at time.Time) {
	if r == nil {
		return
	}
	r.runDuration.Set(d.Seconds())
	if success {
		r.lastSuccessUnix.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes the registry in text exposition format. The write is
// atomic so a scraping collector never sees a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
