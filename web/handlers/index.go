// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"net/http"

	"github.com/mdhender/blogbatch/web/auth"
	"github.com/mdhender/blogbatch/web/templates"
)

// Index shows the batch page to admins and sends writers to their posts.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if user, _ := auth.UserFrom(r.Context()); !user.IsAdmin() {
		http.Redirect(w, r, "/posts", http.StatusSeeOther)
		return
	}

	render(w, r, templates.BatchPage(h.getLayoutData(r), h.pipeline.Snapshot(), h.loadedSheet()))
}
