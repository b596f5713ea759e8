// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"context"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/generate"
	"go.uber.org/zap"
)

// Enricher returns a store introduction for a url, or "".
type Enricher interface {
	Enrich(ctx context.Context, url string) string
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PostStore defines the store operations needed by Worker.
type PostStore interface {
	CreateBlogPost(ctx context.Context, post *model.BlogPost) (int64, error)
}

// Worker runs one row through enrichment, generation and persistence.
type Worker struct {
	enricher  Enricher
	generator Generator
	chooser   generate.Chooser
	template  string
	store     PostStore
	runID     string
	createdBy string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewWorker creates a Worker with a random persona chooser and the default
// prompt template. A nil store disables persistence.
func NewWorker(enricher Enricher, generator Generator, store PostStore) *Worker {
	return &Worker{
		enricher:  enricher,
		generator: generator,
		chooser:   generate.RandomChooser{},
		template:  generate.DefaultTemplate,
		store:     store,
		logger:    zap.L(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) SetChooser(c generate.Chooser) {
	w.chooser = c
}

// SetTemplate replaces the prompt template. An empty template is ignored.
func (w *Worker) SetTemplate(tmpl string) {
	if tmpl != "" {
		w.template = tmpl
	}
}

func (w *Worker) SetLogger(logger *zap.Logger) {
	w.logger = logger
}

func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// ForRun returns a copy of the worker that tags persisted posts with the
// run id and author.
func (w *Worker) ForRun(runID, createdBy string) *Worker {
	cp := *w
	cp.runID = runID
	cp.createdBy = createdBy
	return &cp
}

// Process enriches the row, builds the prompt and generates the post.
// A failure to persist the post is logged and does not fail the row.
func (w *Worker) Process(ctx context.Context, index int, row model.Row) (string, error) {
	details := w.enricher.Enrich(ctx, row.StoreURL)
	prompt := generate.Prompt(w.template, generate.NewPromptData(row, details, w.chooser))

	text, err := w.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &ErrGenerate{Row: index, Err: err}
	}

	if w.store != nil {
		post := model.NewBlogPost(w.runID, row, text, w.createdBy, w.now())
		if _, err := w.store.CreateBlogPost(ctx, post); err != nil {
			err = &ErrDatabase{Op: "insert blog_post", Err: err}
			w.logger.Warn("worker: post not saved; returning generated text",
				zap.Int("row", index),
				zap.String("store", row.StoreName),
				zap.String("code", ErrorCode(err)),
				zap.Error(err))
			w.metrics.PersistFailed()
		}
	}
	return text, nil
}
