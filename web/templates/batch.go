// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package templates

import (
	"context"

	"github.com/a-h/templ"
	"github.com/mdhender/blogbatch/model"
)

// Sheet describes the spreadsheet currently loaded into the pipeline.
type Sheet struct {
	Filename   string
	Rows       int
	UploadedBy string
}

// BatchPage shows the upload form, progress, and per-row results.
func BatchPage(data LayoutData, run model.BatchRun, sheet Sheet) templ.Component {
	data.Title = "Batch"
	return page(data, func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Blog batch</h1>`)
		hw.raw(`<form method="post" action="/batch" enctype="multipart/form-data">` +
			`<input type="file" name="file" accept=".xlsx,.csv,.json" required>` +
			`<button type="submit">Upload and start</button></form>`)
		if sheet.Filename != "" {
			hw.raw(`<p class="sheet">Spreadsheet <strong>`)
			hw.text(sheet.Filename)
			hw.printf(`</strong>: %d rows, uploaded by `, sheet.Rows)
			hw.text(sheet.UploadedBy)
			hw.raw(`</p>`)
		}
		if len(run.Rows) == 0 {
			hw.raw(`<p>No spreadsheet loaded.</p>`)
			return
		}
		writeProgress(hw, run)
		hw.raw(`<form method="post" action="/batch/stop"><button type="submit">Stop</button></form>`)
		hw.raw(`<form method="post" action="/batch/reset"><button type="submit">Reset</button></form>`)
		if run.HasCompleted {
			hw.raw(`<form method="post" action="/batch/select-all">`)
			hw.printf(`<input type="hidden" name="selected" value="%t">`, !run.AllSelected)
			if run.AllSelected {
				hw.raw(`<button type="submit">Deselect all</button></form>`)
			} else {
				hw.raw(`<button type="submit">Select all</button></form>`)
			}
			hw.printf(`<a href="/batch/export">Download %d selected</a>`, run.SelectedCount)
		}
		writeResults(hw, run.Results)
	})
}

func writeProgress(hw *htmlWriter, run model.BatchRun) {
	counts := run.Counts()
	done := counts[model.RowCompleted] + counts[model.RowFailed]
	hw.printf(`<p class="progress">Run <code>%s</code>: `, templ.EscapeString(run.ID))
	hw.text(string(run.Status))
	hw.printf(` (%d/%d done, %d completed, %d failed)`, done, len(run.Results), counts[model.RowCompleted], counts[model.RowFailed])
	if run.Status == model.RunProcessing && run.CurrentIndex >= 0 && run.CurrentIndex < len(run.Results) {
		hw.raw(` working on `)
		hw.text(model.DisplayName(run.Results[run.CurrentIndex].StoreName, run.CurrentIndex))
	}
	hw.printf(`<progress max="%d" value="%d"></progress></p>`, len(run.Results), done)
}

func writeResults(hw *htmlWriter, results []model.ProcessResult) {
	hw.raw(`<table><thead><tr><th></th><th>#</th><th>Store</th><th>Status</th><th>Post</th></tr></thead><tbody>`)
	for _, r := range results {
		hw.printf(`<tr class="%s"><td>`, templ.EscapeString(string(r.Status)))
		if r.Status == model.RowCompleted {
			hw.printf(`<form method="post" action="/batch/select"><input type="hidden" name="index" value="%d">`, r.RowIndex)
			hw.printf(`<input type="hidden" name="selected" value="%t">`, !r.IsSelected)
			if r.IsSelected {
				hw.raw(`<button type="submit" aria-pressed="true">&#10003;</button></form>`)
			} else {
				hw.raw(`<button type="submit" aria-pressed="false">&#9633;</button></form>`)
			}
		}
		hw.printf(`</td><td>%d</td><td>`, r.RowIndex+1)
		hw.text(model.DisplayName(r.StoreName, r.RowIndex))
		hw.raw(`</td><td>`)
		hw.text(string(r.Status))
		hw.raw(`</td><td>`)
		switch {
		case r.Result != nil:
			hw.raw(`<details><summary>View</summary><pre>`)
			hw.text(*r.Result)
			hw.raw(`</pre></details>`)
		case r.Error != nil:
			hw.raw(`<span class="error">`)
			hw.text(*r.Error)
			hw.raw(`</span>`)
		}
		hw.raw(`</td></tr>`)
	}
	hw.raw(`</tbody></table>`)
}
