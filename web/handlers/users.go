// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	store "github.com/mdhender/blogbatch/stores/sqlite"
	"github.com/mdhender/blogbatch/web/auth"
	"go.uber.org/zap"
)

// Points returns the signed-in user's balance and latest ledger entries.
// ?limit= caps the entries (default 10).
func (h *Handlers) Points(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	user, _ := auth.UserFrom(r.Context())
	pts, err := h.store.GetPoints(r.Context(), user.Handle, limit)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		h.logger.Error("users: points failed", zap.String("user", user.Handle), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load points")
		return
	}
	writeJSON(w, http.StatusOK, pts)
}

// WorkCount returns the signed-in user's completions for today.
func (h *Handlers) WorkCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, _ := auth.UserFrom(r.Context())
	wc, err := h.store.DailyWorkCount(r.Context(), user.Handle)
	if err != nil {
		h.logger.Error("users: work count failed", zap.String("user", user.Handle), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load work count")
		return
	}
	writeJSON(w, http.StatusOK, wc)
}

// ApprovalPoints sets the points a user earns per approved post.
// Form field: points.
func (h *Handlers) ApprovalPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	handle := r.PathValue("handle")
	points, err := strconv.ParseInt(r.FormValue("points"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "points must be a number")
		return
	}
	switch err := h.store.SetApprovalPoints(r.Context(), handle, points); {
	case errors.Is(err, store.ErrInvalidPoints):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("users: set approval points failed", zap.String("user", handle), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	admin, _ := auth.UserFrom(r.Context())
	h.logger.Info("users: approval points changed",
		zap.String("admin", admin.Handle), zap.String("user", handle), zap.Int64("points", points))
	writeJSON(w, http.StatusOK, map[string]any{"handle": handle, "blogApprovalPoints": points})
}
