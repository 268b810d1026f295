package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"redcapdl/internal/accumulator"
	"redcapdl/internal/blob"
	"redcapdl/internal/ledger"
	"redcapdl/internal/metrics"
	"redcapdl/internal/pipeline"
	"redcapdl/internal/redcap"
)

func (a *app) clients() ([]*redcap.Client, error) {
	out := make([]*redcap.Client, 0, len(a.cfg.Tokens))
	for i, token := range a.cfg.Tokens {
		c, err := redcap.NewClient(a.cfg.APIURL, token, redcap.WithLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *app) download(ctx context.Context) error {
	clients, err := a.clients()
	if err != nil {
		return err
	}
	sources := make([]pipeline.Source, len(clients))
	for i, c := range clients {
		sources[i] = c
	}

	store, err := blob.Open(ctx, a.cfg.BlobStore())
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	runs, err := ledger.Open(ctx, ledger.Config{
		Driver: a.cfg.Ledger.Driver,
		DSN:    a.cfg.Ledger.DSN,
		Dir:    a.cfg.DownloadFolder,
	})
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	if runs != nil {
		defer func() {
			if err := runs.Close(); err != nil {
				a.logger.Warn("closing run ledger", zap.Error(err))
			}
		}()
	}
	formats, err := a.cfg.Formats()
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		Sources:     sources,
		Store:       store,
		Ledger:      runs,
		Metrics:     metrics.New(),
		Logger:      a.logger,
		Deriver:     accumulator.KeywordDeriver(a.cfg.DataTypes),
		Cleaning:    a.cfg.CleaningOptions(),
		Formats:     formats,
		Prefix:      a.cfg.Export.Prefix,
		MetricsPath: a.cfg.Metrics.TextfilePath,
		Version:     version,
	}
	run, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "run %s %s: %d sources, %d artifacts\n", run.ID, run.Status, len(run.Sources), len(run.Artifacts))
	return err
}
