// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package templates renders the operator screens as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// LayoutData is shared by every page.
type LayoutData struct {
	Title       string
	Version     string
	UserHandle  string
	IsAdmin     bool
	CurrentPath string
}

// htmlWriter accumulates the first write error so page bodies read top to bottom.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err == nil {
		_, hw.err = io.WriteString(hw.w, s)
	}
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) printf(format string, args ...any) {
	hw.raw(fmt.Sprintf(format, args...))
}

func page(data LayoutData, body func(ctx context.Context, hw *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		if data.Title != "" {
			hw.text(data.Title + " - ")
		}
		hw.raw(`blogbatch</title></head><body><header><nav>`)
		if data.UserHandle != "" {
			navLink(hw, data.CurrentPath, "/", "Batch")
			navLink(hw, data.CurrentPath, "/posts", "Posts")
			hw.raw(`<span class="user">`)
			hw.text(data.UserHandle)
			hw.raw(`</span> <a href="/logout">Log out</a>`)
		}
		hw.raw(`</nav></header><main>`)
		body(ctx, hw)
		hw.raw(`</main><footer>blogbatch `)
		hw.text(data.Version)
		hw.raw(`</footer></body></html>`)
		return hw.err
	})
}

func navLink(hw *htmlWriter, current, href, label string) {
	if current == href {
		hw.printf(`<a href="%s" aria-current="page">`, href)
	} else {
		hw.printf(`<a href="%s">`, href)
	}
	hw.text(label)
	hw.raw(`</a> `)
}

// LoginPage renders the login form with an optional error message.
func LoginPage(errMsg string, data LayoutData) templ.Component {
	data.Title = "Log in"
	return page(data, func(_ context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Log in</h1>`)
		if errMsg != "" {
			hw.raw(`<p class="error">`)
			hw.text(errMsg)
			hw.raw(`</p>`)
		}
		hw.raw(`<form method="post" action="/login">` +
			`<label>Username <input name="username" autocomplete="username" required></label>` +
			`<label>Password <input name="password" type="password" autocomplete="current-password" required></label>` +
			`<button type="submit">Log in</button></form>`)
	})
}
