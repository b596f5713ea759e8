// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package batch drives a spreadsheet's rows through enrichment and
// generation and tracks the per-row results.
//
// Row states:
//
//	waiting -> processing -> completed | failed
//
// Run states:
//
//	idle -> processing -> completed | stopped
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoRun        = errors.New("no rows loaded")
	ErrRunning      = errors.New("a run is already in progress")
	ErrFinished     = errors.New("run already finished")
	ErrRowIndex     = errors.New("row index out of range")
	ErrNotCompleted = errors.New("row is not completed")
)

// RowProcessor produces the generated text for one row.
type RowProcessor interface {
	Process(ctx context.Context, index int, row model.Row) (string, error)
}

// ProcessorFunc adapts a function to RowProcessor.
type ProcessorFunc func(ctx context.Context, index int, row model.Row) (string, error)

func (f ProcessorFunc) Process(ctx context.Context, index int, row model.Row) (string, error) {
	return f(ctx, index, row)
}

// Hooks observe the run. They are called without the pipeline lock held
// and may read the pipeline, but must not call Load, Start, or Reset.
type Hooks struct {
	OnRowStart func(index int, row model.Row)
	OnRowDone  func(result model.ProcessResult, elapsed time.Duration)
	OnRunDone  func(run model.BatchRun)
	// OnReset lets the owner of the loaded spreadsheet discard it.
	OnReset func()
}

// Options configure a Pipeline.
type Options struct {
	Workers int // rows in flight at once; values below 2 mean strictly sequential
	Hooks   Hooks
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Pipeline owns the rows and results of at most one run.
type Pipeline struct {
	ctl sync.Mutex // serializes Load, Start, and Reset

	mu           sync.Mutex
	runID        string
	rows         []model.Row
	results      []model.ProcessResult
	inflight     map[int]bool
	currentIndex int
	status       model.RunStatus
	startedAt    time.Time
	finishedAt   time.Time
	cancel       context.CancelFunc
	done         chan struct{}

	stopped atomic.Bool

	workers int
	hooks   Hooks
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		currentIndex: -1,
		status:       model.RunIdle,
		inflight:     map[int]bool{},
		workers:      max(opts.Workers, 1),
		hooks:        opts.Hooks,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if p.logger == nil {
		p.logger = zap.L()
	}
	return p
}

// Load replaces any previous run with rows, all waiting. A run in
// progress is stopped and waited for first.
func (p *Pipeline) Load(runID string, rows []model.Row) model.BatchRun {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	return p.load(runID, rows)
}

func (p *Pipeline) load(runID string, rows []model.Row) model.BatchRun {
	p.Stop()
	p.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.rows = append([]model.Row(nil), rows...)
	p.results = make([]model.ProcessResult, len(rows))
	for i, row := range rows {
		p.results[i] = model.ProcessResult{
			RowIndex:  i,
			StoreName: model.DisplayName(row.StoreName, i),
			Status:    model.RowWaiting,
		}
	}
	p.inflight = map[int]bool{}
	p.currentIndex = -1
	p.status = model.RunIdle
	p.startedAt, p.finishedAt = time.Time{}, time.Time{}
	p.cancel, p.done = nil, nil
	p.stopped.Store(false)
	return p.snapshot()
}

// Start runs the loaded rows through proc in the background.
// Only an idle run can be started.
func (p *Pipeline) Start(ctx context.Context, proc RowProcessor) error {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	return p.start(ctx, proc)
}

func (p *Pipeline) start(ctx context.Context, proc RowProcessor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case len(p.rows) == 0:
		return ErrNoRun
	case p.status == model.RunProcessing:
		return ErrRunning
	case p.status != model.RunIdle:
		return ErrFinished
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.status = model.RunProcessing
	p.startedAt = p.now()
	p.logger.Info("batch: run started",
		zap.String("run", p.runID),
		zap.Int("rows", len(p.rows)),
		zap.Int("workers", p.workers))

	go p.run(runCtx, proc, p.done)
	return nil
}

// LoadAndStart loads rows and starts processing them at once.
func (p *Pipeline) LoadAndStart(ctx context.Context, runID string, rows []model.Row, proc RowProcessor) (model.BatchRun, error) {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.load(runID, rows)
	if err := p.start(ctx, proc); err != nil {
		return p.Snapshot(), err
	}
	return p.Snapshot(), nil
}

// Stop cancels the current run. Rows not yet started stay waiting; a row
// cut off mid-call is marked failed. Stop on an idle pipeline is a no-op.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	if p.status == model.RunProcessing {
		p.stopped.Store(true)
		p.status = model.RunStopped
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset stops any run, discards rows and results, and calls Hooks.OnReset.
func (p *Pipeline) Reset() {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.Stop()
	p.Wait()

	p.mu.Lock()
	p.runID = ""
	p.rows, p.results = nil, nil
	p.inflight = map[int]bool{}
	p.currentIndex = -1
	p.status = model.RunIdle
	p.startedAt, p.finishedAt = time.Time{}, time.Time{}
	p.cancel, p.done = nil, nil
	p.stopped.Store(false)
	p.mu.Unlock()

	if p.hooks.OnReset != nil {
		p.hooks.OnReset()
	}
}

// Wait blocks until the current run, if any, has finished.
func (p *Pipeline) Wait() {
	<-p.Done()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed when the current run finishes. It is already closed
// when no run was started.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return closedChan
	}
	return p.done
}

func (p *Pipeline) run(ctx context.Context, proc RowProcessor, done chan struct{}) {
	defer close(done)

	p.mu.Lock()
	n := len(p.rows)
	p.mu.Unlock()

	if p.workers < 2 {
		for i := range n {
			if p.stopped.Load() {
				break
			}
			p.processRow(ctx, proc, i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i := range n {
			if p.stopped.Load() {
				break
			}
			g.Go(func() error {
				if !p.stopped.Load() {
					p.processRow(ctx, proc, i)
				}
				return nil
			})
		}
		g.Wait()
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.status == model.RunProcessing {
		p.status = model.RunCompleted
	}
	p.finishedAt = p.now()
	snap := p.snapshot()
	p.mu.Unlock()

	counts := snap.Counts()
	p.logger.Info("batch: run finished",
		zap.String("run", snap.ID),
		zap.String("status", string(snap.Status)),
		zap.Int("completed", counts[model.RowCompleted]),
		zap.Int("failed", counts[model.RowFailed]),
		zap.Int("waiting", counts[model.RowWaiting]),
		zap.Duration("elapsed", snap.FinishedAt.Sub(snap.StartedAt)))
	p.metrics.RunDone(string(snap.Status))
	if p.hooks.OnRunDone != nil {
		p.hooks.OnRunDone(snap)
	}
}

func (p *Pipeline) processRow(ctx context.Context, proc RowProcessor, i int) {
	p.mu.Lock()
	row := p.rows[i]
	p.results[i].Status = model.RowProcessing
	p.inflight[i] = true
	p.currentIndex = p.lowestInflight()
	p.mu.Unlock()

	if p.hooks.OnRowStart != nil {
		p.hooks.OnRowStart(i, row)
	}

	started := time.Now()
	text, err := proc.Process(ctx, i, row)
	elapsed := time.Since(started)

	p.mu.Lock()
	res := &p.results[i]
	if err != nil {
		msg := err.Error()
		res.Status, res.Result, res.Error, res.IsSelected = model.RowFailed, nil, &msg, false
	} else {
		res.Status, res.Result, res.Error, res.IsSelected = model.RowCompleted, &text, nil, true
	}
	result := cloneResult(*res)
	delete(p.inflight, i)
	p.currentIndex = p.lowestInflight()
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("batch: row failed", zap.Int("row", i), zap.String("store", result.StoreName), zap.Error(err))
	} else {
		p.logger.Debug("batch: row completed", zap.Int("row", i), zap.String("store", result.StoreName), zap.Duration("elapsed", elapsed))
	}
	p.metrics.RowDone(string(result.Status), elapsed)
	if p.hooks.OnRowDone != nil {
		p.hooks.OnRowDone(result, elapsed)
	}
}

// lowestInflight returns -1 when no row is in flight. It expects p.mu to be held.
func (p *Pipeline) lowestInflight() int {
	lowest := -1
	for i := range p.inflight {
		if lowest == -1 || i < lowest {
			lowest = i
		}
	}
	return lowest
}

// ToggleOne sets the selection of a completed row.
func (p *Pipeline) ToggleOne(index int, selected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.results) {
		return fmt.Errorf("%d: %w", index, ErrRowIndex)
	}
	if p.results[index].Status != model.RowCompleted {
		return fmt.Errorf("%d: %w", index, ErrNotCompleted)
	}
	p.results[index].IsSelected = selected
	return nil
}

// ToggleAll sets the selection of every completed row and leaves the rest alone.
func (p *Pipeline) ToggleAll(selected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.results {
		if p.results[i].Status == model.RowCompleted {
			p.results[i].IsSelected = selected
		}
	}
}

// AllSelected reports whether at least one row is completed and every
// completed row is selected.
func (p *Pipeline) AllSelected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return allSelected(p.results)
}

func (p *Pipeline) SelectedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return selectedCount(p.results)
}

// Selected returns copies of the completed rows that are selected, in row order.
func (p *Pipeline) Selected() []model.ProcessResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	var list []model.ProcessResult
	for _, r := range p.results {
		if r.Status == model.RowCompleted && r.IsSelected {
			list = append(list, cloneResult(r))
		}
	}
	return list
}

// Snapshot returns a deep copy of the pipeline state.
func (p *Pipeline) Snapshot() model.BatchRun {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// snapshot expects p.mu to be held.
func (p *Pipeline) snapshot() model.BatchRun {
	run := model.BatchRun{
		ID:            p.runID,
		Rows:          append([]model.Row(nil), p.rows...),
		Results:       make([]model.ProcessResult, len(p.results)),
		CurrentIndex:  p.currentIndex,
		Status:        p.status,
		StartedAt:     p.startedAt,
		FinishedAt:    p.finishedAt,
		AllSelected:   allSelected(p.results),
		SelectedCount: selectedCount(p.results),
	}
	for i, r := range p.results {
		run.Results[i] = cloneResult(r)
		if r.Status == model.RowCompleted {
			run.HasCompleted = true
		}
	}
	return run
}

func allSelected(results []model.ProcessResult) bool {
	found := false
	for _, r := range results {
		if r.Status != model.RowCompleted {
			continue
		}
		if !r.IsSelected {
			return false
		}
		found = true
	}
	return found
}

func selectedCount(results []model.ProcessResult) int {
	n := 0
	for _, r := range results {
		if r.Status == model.RowCompleted && r.IsSelected {
			n++
		}
	}
	return n
}

func cloneResult(r model.ProcessResult) model.ProcessResult {
	if r.Result != nil {
		s := *r.Result
		r.Result = &s
	}
	if r.Error != nil {
		s := *r.Error
		r.Error = &s
	}
	return r
}
