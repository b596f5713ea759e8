// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import "net/http"

// Routes returns the application mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", h.RequireAuth(h.Index))
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Login(w, r)
		} else {
			h.LoginPage(w, r)
		}
	})
	mux.HandleFunc("/logout", h.Logout)

	mux.HandleFunc("/batch", h.RequireAdmin(h.Batch))
	mux.HandleFunc("/batch/stop", h.RequireAdmin(h.Stop))
	mux.HandleFunc("/batch/reset", h.RequireAdmin(h.Reset))
	mux.HandleFunc("/batch/select", h.RequireAdmin(h.Select))
	mux.HandleFunc("/batch/select-all", h.RequireAdmin(h.SelectAll))
	mux.HandleFunc("/batch/export", h.RequireAdmin(h.Export))
	mux.HandleFunc("/runs", h.RequireAdmin(h.Runs))

	mux.HandleFunc("/posts", h.RequireAuth(h.Posts))
	mux.HandleFunc("/posts/{id}/{action}", h.RequireAuth(h.PostAction))

	mux.HandleFunc("/users/points", h.RequireAuth(h.Points))
	mux.HandleFunc("/users/work-count", h.RequireAuth(h.WorkCount))
	mux.HandleFunc("/users/{handle}/approval-points", h.RequireAdmin(h.ApprovalPoints))

	if h.scraper != nil {
		mux.Handle("/api/crawler", h.scraper.Handler())
	}
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}
	return mux
}
