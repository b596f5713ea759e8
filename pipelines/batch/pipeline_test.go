// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package batch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/batch"
	"github.com/mdhender/blogbatch/pipelines/enrich"
	"github.com/mdhender/blogbatch/pipelines/generate"
	"github.com/mdhender/blogbatch/pipelines/stages"
)

func makeRows(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{StoreName: fmt.Sprintf("store %d", i), MainKeyword: "kw"}
	}
	return rows
}

// failOn succeeds for every row except the given indexes.
func failOn(bad ...int) batch.ProcessorFunc {
	return func(_ context.Context, index int, row model.Row) (string, error) {
		for _, b := range bad {
			if b == index {
				return "", &generate.StatusError{Status: 400, Body: "bad prompt"}
			}
		}
		return "post for " + row.StoreName, nil
	}
}

func runToEnd(t *testing.T, p *batch.Pipeline, rows []model.Row, proc batch.RowProcessor) model.BatchRun {
	t.Helper()
	if _, err := p.LoadAndStart(context.Background(), "run", rows, proc); err != nil {
		t.Fatalf("LoadAndStart: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	return p.Snapshot()
}

func checkCoupling(t *testing.T, results []model.ProcessResult) {
	t.Helper()
	for i, r := range results {
		if r.RowIndex != i {
			t.Errorf("results[%d].RowIndex = %d", i, r.RowIndex)
		}
		if (r.Status == model.RowCompleted) != (r.Result != nil) {
			t.Errorf("results[%d]: status %s with result %v", i, r.Status, r.Result)
		}
		if (r.Status == model.RowFailed) != (r.Error != nil) {
			t.Errorf("results[%d]: status %s with error %v", i, r.Status, r.Error)
		}
	}
}

func TestPipeline_LoadInitializesWaitingRows(t *testing.T) {
	p := batch.New(batch.Options{})
	rows := makeRows(3)
	rows[1].StoreName = ""
	snap := p.Load("run-1", rows)

	if snap.Status != model.RunIdle || snap.CurrentIndex != -1 || snap.ID != "run-1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(snap.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(snap.Results))
	}
	for i, r := range snap.Results {
		if r.Status != model.RowWaiting || r.IsSelected {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
	if snap.Results[1].StoreName != "data #2" {
		t.Errorf("expected fallback name, got %q", snap.Results[1].StoreName)
	}
}

func TestPipeline_OneResultPerRow(t *testing.T) {
	p := batch.New(batch.Options{})
	snap := runToEnd(t, p, makeRows(5), failOn())

	if snap.Status != model.RunCompleted {
		t.Errorf("status = %s", snap.Status)
	}
	if len(snap.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(snap.Results))
	}
	checkCoupling(t, snap.Results)
	for i, r := range snap.Results {
		if r.Status != model.RowCompleted || !r.IsSelected || *r.Result != fmt.Sprintf("post for store %d", i) {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
	if snap.CurrentIndex != -1 {
		t.Errorf("CurrentIndex = %d, want -1 after the last row", snap.CurrentIndex)
	}
	if !snap.AllSelected || snap.SelectedCount != 5 || !snap.HasCompleted {
		t.Errorf("unexpected selection state %+v", snap)
	}
}

func TestPipeline_CurrentIndexTracksActiveRow(t *testing.T) {
	p := batch.New(batch.Options{})
	var seen []int
	proc := batch.ProcessorFunc(func(_ context.Context, index int, row model.Row) (string, error) {
		seen = append(seen, p.Snapshot().CurrentIndex)
		return "post for " + row.StoreName, nil
	})
	snap := runToEnd(t, p, makeRows(3), proc)

	for i, idx := range seen {
		if idx != i {
			t.Errorf("row %d: CurrentIndex = %d", i, idx)
		}
	}
	if len(seen) != 3 || snap.CurrentIndex != -1 {
		t.Errorf("seen %v, final CurrentIndex %d", seen, snap.CurrentIndex)
	}
}

func TestPipeline_PartialFailureContinues(t *testing.T) {
	p := batch.New(batch.Options{})
	snap := runToEnd(t, p, makeRows(4), failOn(2))

	if snap.Status != model.RunCompleted {
		t.Errorf("status = %s", snap.Status)
	}
	checkCoupling(t, snap.Results)
	for i, r := range snap.Results {
		want := model.RowCompleted
		if i == 2 {
			want = model.RowFailed
		}
		if r.Status != want {
			t.Errorf("results[%d].Status = %s, want %s", i, r.Status, want)
		}
	}
	if got := *snap.Results[2].Error; !strings.Contains(got, "status 400") {
		t.Errorf("unexpected error message %q", got)
	}
	if snap.Results[2].IsSelected {
		t.Error("failed row must not be selected")
	}
}

func TestPipeline_StopHaltsBeforeNextRow(t *testing.T) {
	started := make(chan int, 4)
	proc := batch.ProcessorFunc(func(ctx context.Context, index int, row model.Row) (string, error) {
		started <- index
		if index == 0 {
			return "first", nil
		}
		<-ctx.Done()
		return "", &stages.ErrGenerate{Row: index, Err: ctx.Err()}
	})

	p := batch.New(batch.Options{})
	if _, err := p.LoadAndStart(context.Background(), "run", makeRows(4), proc); err != nil {
		t.Fatalf("LoadAndStart: %v", err)
	}
	<-started // row 0
	<-started // row 1 is in flight
	p.Stop()
	p.Wait()

	snap := p.Snapshot()
	if snap.Status != model.RunStopped {
		t.Errorf("status = %s, want stopped", snap.Status)
	}
	checkCoupling(t, snap.Results)
	want := []model.RowStatus{model.RowCompleted, model.RowFailed, model.RowWaiting, model.RowWaiting}
	for i, r := range snap.Results {
		if r.Status != want[i] {
			t.Errorf("results[%d].Status = %s, want %s", i, r.Status, want[i])
		}
	}
	if len(started) != 0 {
		t.Errorf("rows started after stop: %d", len(started))
	}
	if err := p.Start(context.Background(), proc); !errors.Is(err, batch.ErrFinished) {
		t.Errorf("restart: expected ErrFinished, got %v", err)
	}
}

func TestPipeline_ResetClearsAndCallsHook(t *testing.T) {
	var resets atomic.Int32
	p := batch.New(batch.Options{Hooks: batch.Hooks{OnReset: func() { resets.Add(1) }}})
	runToEnd(t, p, makeRows(2), failOn())

	p.Reset()
	snap := p.Snapshot()
	if len(snap.Results) != 0 || len(snap.Rows) != 0 || snap.Status != model.RunIdle || snap.CurrentIndex != -1 || snap.ID != "" {
		t.Errorf("unexpected snapshot after reset %+v", snap)
	}
	if resets.Load() != 1 {
		t.Errorf("OnReset called %d times", resets.Load())
	}
	if err := p.Start(context.Background(), failOn()); !errors.Is(err, batch.ErrNoRun) {
		t.Errorf("expected ErrNoRun, got %v", err)
	}
}

func TestPipeline_Selection(t *testing.T) {
	p := batch.New(batch.Options{})
	runToEnd(t, p, makeRows(4), failOn(3))

	if !p.AllSelected() || p.SelectedCount() != 3 {
		t.Fatalf("after run: all=%v count=%d", p.AllSelected(), p.SelectedCount())
	}
	if err := p.ToggleOne(1, false); err != nil {
		t.Fatalf("ToggleOne: %v", err)
	}
	if p.AllSelected() || p.SelectedCount() != 2 {
		t.Errorf("after deselect: all=%v count=%d", p.AllSelected(), p.SelectedCount())
	}
	sel := p.Selected()
	if len(sel) != 2 || sel[0].RowIndex != 0 || sel[1].RowIndex != 2 {
		t.Errorf("unexpected selection %+v", sel)
	}

	if err := p.ToggleOne(3, true); !errors.Is(err, batch.ErrNotCompleted) {
		t.Errorf("toggle failed row: expected ErrNotCompleted, got %v", err)
	}
	if err := p.ToggleOne(9, true); !errors.Is(err, batch.ErrRowIndex) {
		t.Errorf("toggle out of range: expected ErrRowIndex, got %v", err)
	}

	p.ToggleAll(false)
	if p.SelectedCount() != 0 || p.AllSelected() {
		t.Errorf("after ToggleAll(false): all=%v count=%d", p.AllSelected(), p.SelectedCount())
	}
	p.ToggleAll(true)
	if !p.AllSelected() || p.SelectedCount() != 3 {
		t.Errorf("after ToggleAll(true): all=%v count=%d", p.AllSelected(), p.SelectedCount())
	}
	if snap := p.Snapshot(); snap.Results[3].IsSelected {
		t.Error("ToggleAll selected a failed row")
	}
}

func TestPipeline_AllSelectedNeedsACompletedRow(t *testing.T) {
	p := batch.New(batch.Options{})
	runToEnd(t, p, makeRows(2), failOn(0, 1))
	if p.AllSelected() {
		t.Error("AllSelected with no completed rows")
	}
}

func TestPipeline_SnapshotIsACopy(t *testing.T) {
	p := batch.New(batch.Options{})
	snap := runToEnd(t, p, makeRows(1), failOn())
	*snap.Results[0].Result = "changed"
	snap.Results[0].IsSelected = false
	if again := p.Snapshot(); *again.Results[0].Result != "post for store 0" || !again.Results[0].IsSelected {
		t.Errorf("snapshot shares state with the pipeline: %+v", again.Results[0])
	}
}

func TestPipeline_Hooks(t *testing.T) {
	var mu sync.Mutex
	var startedRows, doneRows []int
	var runs []model.BatchRun
	p := batch.New(batch.Options{Hooks: batch.Hooks{
		OnRowStart: func(index int, _ model.Row) {
			mu.Lock()
			startedRows = append(startedRows, index)
			mu.Unlock()
		},
		OnRowDone: func(r model.ProcessResult, _ time.Duration) {
			mu.Lock()
			doneRows = append(doneRows, r.RowIndex)
			mu.Unlock()
		},
		OnRunDone: func(run model.BatchRun) {
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
		},
	}})
	runToEnd(t, p, makeRows(3), failOn(1))

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(startedRows) != "[0 1 2]" || fmt.Sprint(doneRows) != "[0 1 2]" {
		t.Errorf("started=%v done=%v", startedRows, doneRows)
	}
	if len(runs) != 1 || runs[0].Status != model.RunCompleted {
		t.Errorf("unexpected run hooks %+v", runs)
	}
}

func TestPipeline_WorkersBoundConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	proc := batch.ProcessorFunc(func(_ context.Context, index int, _ model.Row) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return fmt.Sprint(index), nil
	})

	p := batch.New(batch.Options{Workers: 3})
	snap := runToEnd(t, p, makeRows(12), proc)
	if snap.Status != model.RunCompleted {
		t.Errorf("status = %s", snap.Status)
	}
	checkCoupling(t, snap.Results)
	for i, r := range snap.Results {
		if r.Status != model.RowCompleted || *r.Result != fmt.Sprint(i) {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency %d exceeds 3 workers", got)
	}
}

func TestPipeline_StartTwice(t *testing.T) {
	release := make(chan struct{})
	proc := batch.ProcessorFunc(func(ctx context.Context, _ int, _ model.Row) (string, error) {
		<-release
		return "ok", nil
	})
	p := batch.New(batch.Options{})
	p.Load("run", makeRows(1))
	if err := p.Start(context.Background(), proc); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background(), proc); !errors.Is(err, batch.ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", err)
	}
	close(release)
	p.Wait()
}

func TestPipeline_EnrichmentFailureUsesFallback(t *testing.T) {
	scrape := httptest.NewServer(http.NotFoundHandler())
	scrapeURL := scrape.URL
	scrape.Close()

	var mu sync.Mutex
	var prompts []string
	gen := generatorFunc(func(_ context.Context, prompt string) (string, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		return "post", nil
	})

	w := stages.NewWorker(enrich.NewClient(scrapeURL), gen, nil)
	rows := []model.Row{{StoreName: "Blue Door Cafe", StoreURL: "https://naver.me/a", MainKeyword: "brunch"}}
	snap := runToEnd(t, batch.New(batch.Options{}), rows, w)

	if snap.Results[0].Status != model.RowCompleted {
		t.Fatalf("row status = %s (%v)", snap.Results[0].Status, snap.Results[0].Error)
	}
	if len(prompts) != 1 || !strings.Contains(prompts[0], generate.FallbackDetails) {
		t.Errorf("prompt does not use the fallback sentence: %v", prompts)
	}
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
