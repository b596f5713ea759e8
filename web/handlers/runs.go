// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/mdhender/blogbatch/model"
	"go.uber.org/zap"
)

type runsResponse struct {
	Runs   []*model.RunRecord `json:"runs"`
	Tables map[string]int64   `json:"tables"`
}

// Runs reports recent batch runs and table row counts. ?limit= defaults to 20.
func (h *Handlers) Runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("runs: list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	tables, err := h.store.TableStats(r.Context())
	if err != nil {
		h.logger.Error("runs: table stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read table stats")
		return
	}
	if runs == nil {
		runs = []*model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs, Tables: tables})
}
