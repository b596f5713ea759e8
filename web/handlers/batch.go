// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mdhender/blogbatch/export"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/batch"
	"github.com/mdhender/blogbatch/pipelines/stages"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/mdhender/blogbatch/web/templates"
	"go.uber.org/zap"
)

const maxUploadSize = 32 << 20

type uploadResponse struct {
	RunID     string         `json:"runId"`
	Filename  string         `json:"filename"`
	Rows      int            `json:"rows"`
	Duplicate bool           `json:"duplicate"`
	Run       model.BatchRun `json:"run"`
}

// Batch serves GET (snapshot) and POST (upload and start) on /batch.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.pipeline.Snapshot())
	case http.MethodPost:
		h.upload(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// upload ingests the multipart "file" field, loads its rows, and starts a run.
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}

	user, _ := auth.UserFrom(r.Context())
	result, err := h.ingest.Ingest(r.Context(), stages.IngestRequest{
		Filename:  header.Filename,
		Data:      data,
		CreatedBy: user.Handle,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var spreadsheetErr *stages.ErrSpreadsheet
		if errors.As(err, &spreadsheetErr) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("batch: ingest failed", zap.String("file", header.Filename), zap.Error(err))
		writeJSON(w, status, errorResponse{Error: err.Error(), Code: stages.ErrorCode(err)})
		return
	}
	if result.Duplicate {
		h.logger.Info("batch: spreadsheet was uploaded before", zap.String("file", header.Filename))
	}

	proc := h.worker.ForRun(result.RunID, user.Handle)
	run, err := h.pipeline.LoadAndStart(h.baseCtx, result.RunID, result.Rows, proc)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.setSheet(templates.Sheet{Filename: header.Filename, Rows: len(result.Rows), UploadedBy: user.Handle})

	writeJSON(w, http.StatusAccepted, uploadResponse{
		RunID:     result.RunID,
		Filename:  header.Filename,
		Rows:      len(result.Rows),
		Duplicate: result.Duplicate,
		Run:       run,
	})
}

func (h *Handlers) setSheet(sheet templates.Sheet) {
	h.sheetMu.Lock()
	defer h.sheetMu.Unlock()
	h.sheet = sheet
}

func (h *Handlers) loadedSheet() templates.Sheet {
	h.sheetMu.Lock()
	defer h.sheetMu.Unlock()
	return h.sheet
}

// ClearSheet forgets the loaded spreadsheet. Wire it to the pipeline's
// OnReset hook.
func (h *Handlers) ClearSheet() {
	h.setSheet(templates.Sheet{})
}

// Stop halts the current run. Completed rows keep their results.
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.pipeline.Stop()
	h.respondSnapshot(w, r)
}

// Reset discards the loaded rows and results.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.pipeline.Reset()
	h.respondSnapshot(w, r)
}

// Select toggles one completed row. Form fields: index, selected.
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return
	}
	selected, err := strconv.ParseBool(r.FormValue("selected"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "selected must be true or false")
		return
	}
	if err := h.pipeline.ToggleOne(index, selected); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, batch.ErrNotCompleted) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	h.respondSnapshot(w, r)
}

// SelectAll sets the selection of every completed row. Form field: selected.
func (h *Handlers) SelectAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	selected, err := strconv.ParseBool(r.FormValue("selected"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "selected must be true or false")
		return
	}
	h.pipeline.ToggleAll(selected)
	h.respondSnapshot(w, r)
}

// Export downloads the selected posts as a ZIP archive.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, n, err := export.Bytes(h.pipeline.Selected())
	if errors.Is(err, export.ErrNothingSelected) {
		writeError(w, http.StatusConflict, "select at least one completed post to download")
		return
	} else if err != nil {
		h.logger.Error("batch: export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := export.ArchiveName(h.exportPrefix, h.now())
	h.logger.Info("batch: exported", zap.String("archive", name), zap.Int("posts", n))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// respondSnapshot answers form posts from the page with a redirect and
// API calls with the current snapshot.
func (h *Handlers) respondSnapshot(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, h.pipeline.Snapshot())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
