package cleaning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"redcapdl/internal/accumulator"
	"redcapdl/internal/blob"
	"redcapdl/internal/table"
)

// Artifact kinds, used in keys and metrics labels.
const (
	KindVariables = "variables"
	KindReport    = "report"
)

// UnknownDataType labels artifacts of an accumulator that never saw a source.
const UnknownDataType = "unknown"

// Publisher persists one cleaned table. export.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, dataType, kind string, t *table.Table) ([]blob.Info, error)
}

// Options configures report cleaning.
type Options struct {
	// IDTag prefixes rendered participant identifiers. Empty means DefaultIDTag.
	IDTag string
	// TextColumns are the report columns that receive Replacements.
	TextColumns  []string
	Replacements []Replacement
}

// Result summarises one cleaned artifact.
type Result struct {
	Kind      string
	DataType  string
	Rows      int
	Columns   int
	Conflicts []MergeConflict
	// Skipped lists designated text columns absent from the report.
	Skipped   []string
	Artifacts []blob.Info
}

// Cleaner repairs the accumulated tables and hands them to a Publisher.
type Cleaner struct {
	pub  Publisher
	opts Options
	log  *zap.Logger
}

// NewCleaner returns a Cleaner. A nil logger discards output.
func NewCleaner(pub Publisher, opts Options, log *zap.Logger) *Cleaner {
	if opts.IDTag == "" {
		opts.IDTag = DefaultIDTag
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{pub: pub, opts: opts, log: log.Named("cleaner")}
}

// Run cleans and persists the variable dictionary, then the report.
func (c *Cleaner) Run(ctx context.Context, variables, report *accumulator.Accumulator) ([]Result, error) {
	v, err := c.SaveCleanedVariables(ctx, variables)
	if err != nil {
		return nil, err
	}
	r, err := c.SaveCleanedReports(ctx, report)
	if err != nil {
		return []Result{v}, err
	}
	return []Result{v, r}, nil
}

// SaveCleanedVariables drops empty columns, merges duplicates and persists
// the variable dictionary.
func (c *Cleaner) SaveCleanedVariables(ctx context.Context, acc *accumulator.Accumulator) (Result, error) {
	cleaned, conflicts := MergeDuplicateColumnsReport(DropEmptyColumns(acc.Data()))
	res := Result{Kind: KindVariables, DataType: dataTypeOf(acc), Conflicts: conflicts}
	c.warnConflicts(res.Kind, conflicts)
	return c.publish(ctx, res, cleaned)
}

// SaveCleanedReports drops empty columns, merges duplicates, fills participant
// identifiers and applies the configured substitutions before persisting the
// report. Any repair failure aborts before the artifact is written.
func (c *Cleaner) SaveCleanedReports(ctx context.Context, acc *accumulator.Accumulator) (Result, error) {
	cleaned, conflicts := MergeDuplicateColumnsReport(DropEmptyColumns(acc.Data()))
	res := Result{Kind: KindReport, DataType: dataTypeOf(acc), Conflicts: conflicts}
	c.warnConflicts(res.Kind, conflicts)

	cleaned, err := FillParticipantIDs(cleaned, c.opts.IDTag)
	if err != nil {
		return res, fmt.Errorf("clean report: %w", err)
	}
	for _, name := range c.opts.TextColumns {
		col, pos, ok := cleaned.Lookup(name)
		if !ok {
			c.log.Warn("text column not in report, skipping replacements", zap.String("column", name))
			res.Skipped = append(res.Skipped, name)
			continue
		}
		replaced, err := ReplaceStrings(col, c.opts.Replacements)
		if err != nil {
			return res, fmt.Errorf("clean report: %w", err)
		}
		if cleaned, err = cleaned.Replace(pos, replaced); err != nil {
			return res, fmt.Errorf("clean report: %w", err)
		}
	}
	return c.publish(ctx, res, cleaned)
}

func (c *Cleaner) publish(ctx context.Context, res Result, t *table.Table) (Result, error) {
	if c.pub == nil {
		return res, errors.New("cleaning: no publisher configured")
	}
	res.Rows, res.Columns = t.Len(), t.Width()
	infos, err := c.pub.Publish(ctx, res.DataType, res.Kind, t)
	res.Artifacts = infos
	if err != nil {
		return res, fmt.Errorf("persist %s: %w", res.Kind, err)
	}
	c.log.Info("saved cleaned "+res.Kind,
		zap.String("data_type", res.DataType),
		zap.Int("rows", res.Rows),
		zap.Int("columns", res.Columns))
	return res, nil
}

func (c *Cleaner) warnConflicts(kind string, conflicts []MergeConflict) {
	for _, mc := range conflicts {
		c.log.Warn("duplicate columns disagree, keeping left-most value",
			zap.String("artifact", kind),
			zap.String("column", mc.Column),
			zap.Int("row", mc.Row),
			zap.String("kept", mc.Kept.String()),
			zap.String("discarded", mc.Discarded.String()))
	}
}

func dataTypeOf(acc *accumulator.Accumulator) string {
	if dt, ok := acc.DataType(); ok {
		return dt
	}
	return UnknownDataType
}
