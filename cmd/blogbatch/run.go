// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdhender/blogbatch/export"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/batch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func cmdRun(a *app) *cobra.Command {
	var outputDir, s3Bucket, s3Prefix, prefix, user string
	var workers int
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().StringVarP(&outputDir, "output-dir", "o", outputDir, "write the archive to this directory")
		cmd.Flags().StringVar(&prefix, "prefix", prefix, "archive name prefix")
		cmd.Flags().StringVar(&s3Bucket, "s3-bucket", s3Bucket, "also upload the archive to this bucket")
		cmd.Flags().StringVar(&s3Prefix, "s3-prefix", s3Prefix, "key prefix for the uploaded archive")
		cmd.Flags().StringVar(&user, "user", "cli", "author recorded on generated posts")
		cmd.Flags().IntVar(&workers, "workers", workers, "rows generated at once")
		return nil
	}
	var cmd = &cobra.Command{
		Use:          "run <spreadsheet>",
		Short:        "generate posts for every row of a spreadsheet and export them",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1), // require path to spreadsheet
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("output-dir") {
				cfg.Export.OutputDir = outputDir
			}
			if cmd.Flags().Changed("prefix") {
				cfg.Export.Prefix = prefix
			}
			if cmd.Flags().Changed("s3-bucket") {
				cfg.Export.S3Bucket = s3Bucket
			}
			if cmd.Flags().Changed("s3-prefix") {
				cfg.Export.S3Prefix = s3Prefix
			}
			if cmd.Flags().Changed("workers") {
				cfg.Batch.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			started := time.Now()
			ingested, err := a.newIngest(st).IngestFile(ctx, args[0], user)
			if err != nil {
				return err
			}
			a.logger.Info("run: loaded spreadsheet", zap.String("file", args[0]), zap.Stringer("ingest", ingested))

			total := len(ingested.Rows)
			p := a.newPipeline(st, batch.Hooks{
				OnRowStart: func(index int, row model.Row) {
					a.logger.Info(fmt.Sprintf("run: %d/%d %s", index+1, total, model.DisplayName(row.StoreName, index)))
				},
				OnRowDone: func(result model.ProcessResult, elapsed time.Duration) {
					if result.Error != nil {
						a.logger.Warn("run: row failed", zap.Int("row", result.RowIndex+1), zap.String("error", *result.Error))
						return
					}
					a.logger.Info("run: row completed", zap.Int("row", result.RowIndex+1), zap.Duration("elapsed", elapsed))
				},
			})
			w, err := a.newWorker(st)
			if err != nil {
				return err
			}
			// the run gets its own context so the interrupt goes through Stop
			if _, err := p.LoadAndStart(context.Background(), ingested.RunID, ingested.Rows, w.ForRun(ingested.RunID, user)); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				a.logger.Warn("run: interrupted, stopping")
				p.Stop()
			case <-p.Done():
			}
			p.Wait()

			run := p.Snapshot()
			counts := run.Counts()
			a.logger.Info("run: finished",
				zap.String("run", run.ID),
				zap.String("status", string(run.Status)),
				zap.Int("completed", counts[model.RowCompleted]),
				zap.Int("failed", counts[model.RowFailed]),
				zap.Int("waiting", counts[model.RowWaiting]),
				zap.Duration("elapsed", time.Since(started)))

			return exportRun(context.Background(), a, p.Selected())
		},
	}
	if err := addFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// exportRun writes the archive to the output directory and, when a bucket
// is configured, uploads it.
func exportRun(ctx context.Context, a *app, selected []model.ProcessResult) error {
	cfg := a.cfg.Export
	name := export.ArchiveName(cfg.Prefix, time.Now())

	path, n, err := export.SaveTo(a.fs, cfg.OutputDir, name, selected)
	if errors.Is(err, export.ErrNothingSelected) {
		a.logger.Warn("run: no completed posts, nothing exported")
		return nil
	} else if err != nil {
		return err
	}
	a.logger.Info("run: wrote archive", zap.String("path", path), zap.Int("posts", n))

	if cfg.S3Bucket == "" {
		return nil
	}
	sink, err := export.NewS3SinkFromEnv(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Endpoint)
	if err != nil {
		return err
	}
	key, _, err := sink.Upload(ctx, name, selected)
	if err != nil {
		return err
	}
	a.logger.Info("run: uploaded archive", zap.String("bucket", cfg.S3Bucket), zap.String("key", key))
	return nil
}
