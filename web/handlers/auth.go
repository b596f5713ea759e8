// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package handlers

import (
	"net/http"

	"github.com/mdhender/blogbatch/web/auth"
	"github.com/mdhender/blogbatch/web/templates"
)

func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if session := auth.GetSessionFromRequest(r, h.sessions); session != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	render(w, r, templates.LoginPage("", h.getLayoutData(r)))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := h.getLayoutData(r)

	if err := r.ParseForm(); err != nil {
		renderStatus(w, r, http.StatusBadRequest, templates.LoginPage("Invalid form submission", data))
		return
	}

	handle := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.store.ValidateCredentials(r.Context(), handle, password)
	if err != nil {
		h.logger.Sugar().Errorf("login: %s: %v", handle, err)
		renderStatus(w, r, http.StatusInternalServerError, templates.LoginPage("Authentication error", data))
		return
	}
	if user == nil {
		renderStatus(w, r, http.StatusUnauthorized, templates.LoginPage("Invalid username or password", data))
		return
	}

	session := h.sessions.Create(*user)
	auth.SetSessionCookie(w, session)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		h.sessions.Delete(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// RequireAuth redirects anonymous requests to the login page and puts
// the session user on the request context.
func (h *Handlers) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := auth.GetSessionFromRequest(r, h.sessions)
		if session == nil {
			if h.autoAuthUser != nil {
				session = h.sessions.Create(*h.autoAuthUser)
				auth.SetSessionCookie(w, session)
			} else if wantsJSON(r) || r.Method != http.MethodGet {
				writeError(w, http.StatusUnauthorized, "login required")
				return
			} else {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), session.User)))
	}
}

// RequireAdmin is RequireAuth limited to admins.
func (h *Handlers) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if user, _ := auth.UserFrom(r.Context()); !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}
