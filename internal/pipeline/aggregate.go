// Package pipeline drives one downloader run: it folds every configured
// REDCap project into the report and variable accumulators, then cleans and
// publishes the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"redcapdl/internal/accumulator"
	"redcapdl/internal/ledger"
	"redcapdl/internal/table"
)

// Source is one REDCap project. *redcap.Client implements it.
type Source interface {
	ProjectTitle(ctx context.Context) (string, error)
	Report(ctx context.Context) (*table.Table, error)
	Variables(ctx context.Context) (*table.Table, error)
}

// AccessChecker is implemented by sources that can probe access up front.
type AccessChecker interface {
	CheckAccess(ctx context.Context) error
}

// Named is implemented by sources with a log-safe identity (a masked token).
type Named interface {
	Token() string
}

// Grouping columns for the post-aggregation totals.
const (
	EventColumn            = "redcap_event_name"
	RepeatInstrumentColumn = "redcap_repeat_instrument"
)

// Accumulators are the two tables a run builds up.
type Accumulators struct {
	Report    *accumulator.Accumulator
	Variables *accumulator.Accumulator
}

// NewAccumulators returns empty accumulators sharing one data type deriver.
func NewAccumulators(derive accumulator.Deriver) Accumulators {
	return Accumulators{
		Report:    accumulator.New("report", derive),
		Variables: accumulator.New("variables", derive),
	}
}

// Aggregate processes sources in order and returns the grown accumulators
// together with one summary per source. The first failing source aborts the
// run; data type mismatches are only warned about.
func Aggregate(ctx context.Context, sources []Source, acc Accumulators, log *zap.Logger) (Accumulators, []ledger.Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if acc.Report == nil || acc.Variables == nil {
		return acc, nil, errors.New("pipeline: accumulators not initialised")
	}
	summaries := make([]ledger.Source, 0, len(sources))
	for i, src := range sources {
		summary, err := foldSource(ctx, src, acc, log)
		if err != nil {
			return acc, summaries, fmt.Errorf("source %d (%s): %w", i+1, summary.Token, err)
		}
		summaries = append(summaries, summary)
	}
	return acc, summaries, nil
}

func foldSource(ctx context.Context, src Source, acc Accumulators, log *zap.Logger) (ledger.Source, error) {
	var summary ledger.Source
	if n, ok := src.(Named); ok {
		summary.Token = n.Token()
	}
	log.Debug("trying to access REDCap", zap.String("token", summary.Token))
	if ac, ok := src.(AccessChecker); ok {
		if err := ac.CheckAccess(ctx); err != nil {
			return summary, fmt.Errorf("check access: %w", err)
		}
	}

	title, err := src.ProjectTitle(ctx)
	if err != nil {
		return summary, err
	}
	summary.Title = title
	log.Info("processing REDCap project", zap.String("project", title))

	report, err := src.Report(ctx)
	if err != nil {
		return summary, err
	}
	variables, err := src.Variables(ctx)
	if err != nil {
		return summary, err
	}
	if err := acc.Report.Append(report); err != nil {
		return summary, err
	}
	if err := acc.Variables.Append(variables); err != nil {
		return summary, err
	}
	summary.ReportRows, summary.ReportColumns = report.Len(), report.Width()
	summary.VariableRows = variables.Len()

	label, outcome := acc.Report.SetDataType(title)
	acc.Variables.SetDataType(title)
	summary.DataType, summary.Outcome = label, outcome.String()
	log.Debug("report data type", zap.String("data_type", label), zap.Stringer("outcome", outcome))
	if outcome == accumulator.OutcomeConflicting {
		stored, _ := acc.Report.DataType()
		log.Warn("REDCap projects have different data types, check your API tokens",
			zap.String("project", title),
			zap.String("expected", stored),
			zap.String("got", label))
	}
	return summary, nil
}

// GroupColumn picks the column report totals are grouped by.
func GroupColumn(dataType string) string {
	if dataType == accumulator.Questionnaire {
		return EventColumn
	}
	return RepeatInstrumentColumn
}

// LogTotals narrates the aggregated sizes: report rows per event or repeat
// instrument, and the number of variables.
func LogTotals(acc Accumulators, log *zap.Logger) {
	dataType, _ := acc.Report.DataType()
	grouper := GroupColumn(dataType)
	data := acc.Report.Data()
	counts, err := data.GroupCounts(grouper)
	if err != nil {
		log.Warn("cannot group report totals", zap.String("column", grouper), zap.Error(err))
	} else {
		parts := make([]string, len(counts))
		for i, gc := range counts {
			parts[i] = fmt.Sprintf("%s=%d", gc.Value, gc.Count)
		}
		log.Info("total number of reports",
			zap.Int("rows", data.Len()),
			zap.String("grouped_by", grouper),
			zap.String("counts", strings.Join(parts, ", ")))
	}
	log.Info("total number of variables", zap.Int("rows", acc.Variables.Data().Len()))
}
