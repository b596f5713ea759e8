// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/mdhender/blogbatch"
	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/pipelines/batch"
	"github.com/mdhender/blogbatch/pipelines/enrich"
	"github.com/mdhender/blogbatch/pipelines/stages"
	store "github.com/mdhender/blogbatch/stores/sqlite"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/mdhender/blogbatch/web/templates"
	"go.uber.org/zap"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store        *store.SQLiteStore
	sessions     *auth.SessionStore
	ingest       *stages.IngestService
	pipeline     *batch.Pipeline
	worker       *stages.Worker
	scraper      *enrich.Scraper
	metrics      *metrics.Metrics
	logger       *zap.Logger
	baseCtx      context.Context
	exportPrefix string
	now          func() time.Time
	autoAuthUser *auth.User

	sheetMu sync.Mutex
	sheet   templates.Sheet // the spreadsheet behind the current run
}

// Options carries the collaborators of the web handlers.
// Scraper and Metrics are optional.
type Options struct {
	Store    *store.SQLiteStore
	Sessions *auth.SessionStore
	Ingest   *stages.IngestService
	Pipeline *batch.Pipeline
	Worker   *stages.Worker
	Scraper  *enrich.Scraper
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// BaseContext bounds batch runs started from a request; runs outlive
	// the request that started them.
	BaseContext  context.Context
	ExportPrefix string
}

func New(opts Options) *Handlers {
	h := &Handlers{
		store:        opts.Store,
		sessions:     opts.Sessions,
		ingest:       opts.Ingest,
		pipeline:     opts.Pipeline,
		worker:       opts.Worker,
		scraper:      opts.Scraper,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		baseCtx:      opts.BaseContext,
		exportPrefix: opts.ExportPrefix,
		now:          time.Now,
	}
	if h.sessions == nil {
		h.sessions = auth.NewSessionStore()
	}
	if h.logger == nil {
		h.logger = zap.L()
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	return h
}

// getLayoutData returns layout data for the user on the request, if any.
func (h *Handlers) getLayoutData(r *http.Request) templates.LayoutData {
	data := templates.LayoutData{
		Version:     blogbatch.Version().String(),
		CurrentPath: r.URL.Path,
	}
	if user, ok := auth.UserFrom(r.Context()); ok {
		data.UserHandle = user.Handle
		data.IsAdmin = user.IsAdmin()
	}
	return data
}

// Sessions returns the session store.
func (h *Handlers) Sessions() *auth.SessionStore {
	return h.sessions
}

// SetAutoAuth configures automatic authentication for testing.
func (h *Handlers) SetAutoAuth(handle, role string) {
	h.autoAuthUser = &auth.User{
		Handle:   handle,
		UserName: handle,
		Role:     role,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// wantsJSON reports whether the client asked for JSON rather than a page.
func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.URL.Query().Get("format") == "json"
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	renderStatus(w, r, http.StatusOK, c)
}

func renderStatus(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		zap.L().Warn("render", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
