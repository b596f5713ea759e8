// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"net/http"

	"github.com/mdhender/blogbatch/config"
	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/batch"
	"github.com/mdhender/blogbatch/pipelines/enrich"
	"github.com/mdhender/blogbatch/pipelines/generate"
	"github.com/mdhender/blogbatch/pipelines/stages"
	store "github.com/mdhender/blogbatch/stores/sqlite"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// app carries the settings and collaborators shared by the commands.
type app struct {
	fs      afero.Fs
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// openStore opens the configured database, or a fresh in-memory one when no path is set.
func (a *app) openStore() (*store.SQLiteStore, error) {
	var st *store.SQLiteStore
	var err error
	if a.cfg.Database.Path == "" {
		a.logger.Info("store: using in-memory SQLite")
		st, err = store.NewSQLiteStore()
	} else {
		a.logger.Info("store: using file-based SQLite", zap.String("path", a.cfg.Database.Path))
		st, err = store.NewSQLiteStoreWithConfig(store.StoreConfig{Path: a.cfg.Database.Path})
	}
	if err != nil {
		return nil, err
	}
	st.SetDailyLimit(a.cfg.Posts.DailyLimit)
	return st, nil
}

// hasher returns the password hasher for the configured bcrypt cost.
func (a *app) hasher() (auth.Hasher, error) {
	return auth.NewHasher(a.cfg.Server.BcryptCost)
}

// newWorker wires the scrape client and the generation client into a row worker.
func (a *app) newWorker(posts stages.PostStore) (*stages.Worker, error) {
	cfg := a.cfg

	enricher := enrich.NewClient(cfg.Scraper.URL)
	enricher.SetHTTPClient(&http.Client{Timeout: cfg.Scraper.Timeout})
	enricher.SetLogger(a.logger.Named("enrich"))
	enricher.SetMetrics(a.metrics)

	dialect, err := generate.ParseDialect(cfg.Generation.Dialect)
	if err != nil {
		return nil, err
	}
	generator := generate.NewClient(cfg.Generation.URL, cfg.Generation.APIKey)
	generator.SetDialect(dialect)
	generator.SetHTTPClient(&http.Client{Timeout: cfg.Generation.Timeout})
	generator.SetRetryPolicy(generate.RetryPolicy{
		MaxAttempts:  cfg.Generation.MaxAttempts,
		InitialDelay: cfg.Generation.InitialDelay,
		Multiplier:   generate.DefaultRetryPolicy().Multiplier,
	})
	if rpm := cfg.Generation.RequestsPerMinute; rpm > 0 {
		generator.SetLimiter(rate.NewLimiter(rate.Limit(rpm/60), 1))
	}
	generator.SetLogger(a.logger.Named("generate"))
	generator.SetMetrics(a.metrics)

	tmpl, err := cfg.Template(a.fs)
	if err != nil {
		return nil, err
	}

	w := stages.NewWorker(enricher, generator, posts)
	w.SetTemplate(tmpl)
	w.SetLogger(a.logger.Named("worker"))
	w.SetMetrics(a.metrics)
	return w, nil
}

// newIngest returns the spreadsheet ingest service for st.
func (a *app) newIngest(st stages.IngestStore) *stages.IngestService {
	svc := stages.NewIngestService(st, a.cfg.DataDir)
	svc.SetFS(a.fs)
	svc.SetAliases(a.cfg.Aliases)
	return svc
}

// newPipeline returns a pipeline that records every finished run in st.
func (a *app) newPipeline(st *store.SQLiteStore, hooks batch.Hooks) *batch.Pipeline {
	onRunDone := hooks.OnRunDone
	hooks.OnRunDone = func(run model.BatchRun) {
		if err := st.SaveRun(context.Background(), store.RunRecordFrom(run)); err != nil {
			a.logger.Error("batch: save run", zap.String("run", run.ID), zap.Error(err))
		}
		if onRunDone != nil {
			onRunDone(run)
		}
	}
	return batch.New(batch.Options{
		Workers: a.cfg.Batch.Workers,
		Hooks:   hooks,
		Logger:  a.logger.Named("batch"),
		Metrics: a.metrics,
	})
}
