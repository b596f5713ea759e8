// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mdhender/blogbatch/model"
	store "github.com/mdhender/blogbatch/stores/sqlite"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/mdhender/blogbatch/web/templates"
	"go.uber.org/zap"
)

// Posts lists persisted posts, filtered by ?status= when present.
func (h *Handlers) Posts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var status model.PostStatus
	if s := r.URL.Query().Get("status"); s != "" {
		ps, ok := model.ParsePostStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(s))
			return
		}
		status = ps
	}

	posts, err := h.store.ListBlogPosts(r.Context(), status)
	if err != nil {
		h.logger.Error("posts: list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	if wantsJSON(r) {
		if posts == nil {
			posts = []*model.BlogPost{}
		}
		writeJSON(w, http.StatusOK, posts)
		return
	}
	render(w, r, templates.PostsPage(h.getLayoutData(r), posts, status))
}

// PostAction applies a lifecycle action to a post. Form fields: blogUrl,
// notes (complete, resubmit), feedback (approve), reason (reject).
func (h *Handlers) PostAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	user, _ := auth.UserFrom(r.Context())
	ctx := r.Context()

	var post *model.BlogPost
	switch action := r.PathValue("action"); action {
	case "reserve":
		post, err = h.store.ReservePost(ctx, id, user.Handle)
	case "cancel":
		post, err = h.store.CancelReservation(ctx, id, user.Handle)
	case "complete":
		post, err = h.store.CompletePost(ctx, id, user.Handle, r.FormValue("blogUrl"), r.FormValue("notes"))
	case "resubmit":
		post, err = h.store.ResubmitPost(ctx, id, user.Handle, r.FormValue("blogUrl"), r.FormValue("notes"))
	case "approve", "reject":
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		if action == "approve" {
			post, err = h.store.ApprovePost(ctx, id, user.Handle, r.FormValue("feedback"))
		} else {
			post, err = h.store.RejectPost(ctx, id, user.Handle, r.FormValue("reason"))
		}
	default:
		writeError(w, http.StatusNotFound, "unknown action "+strconv.Quote(action))
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, store.ErrNotAssignee):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, store.ErrBlogURLRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrDailyLimit):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case err != nil:
		h.logger.Error("posts: action failed", zap.Int64("post", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update post")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, post)
		return
	}
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}
