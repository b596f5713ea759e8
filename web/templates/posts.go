// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package templates

import (
	"context"

	"github.com/a-h/templ"
	"github.com/mdhender/blogbatch/model"
)

var postStatuses = []model.PostStatus{
	model.PostCreated, model.PostReserved, model.PostCompleted, model.PostApproved, model.PostRejected,
}

// PostsPage lists persisted posts, optionally filtered by status.
func PostsPage(data LayoutData, posts []*model.BlogPost, status model.PostStatus) templ.Component {
	data.Title = "Posts"
	return page(data, func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Posts</h1><p class="filters"><a href="/posts">all</a>`)
		for _, s := range postStatuses {
			if s == status {
				hw.printf(` <strong>%s</strong>`, s)
			} else {
				hw.printf(` <a href="/posts?status=%s">%s</a>`, s, s)
			}
		}
		hw.raw(`</p>`)
		if len(posts) == 0 {
			hw.raw(`<p>No posts.</p>`)
			return
		}
		hw.raw(`<table><thead><tr><th>ID</th><th>Store</th><th>Keyword</th><th>Status</th><th>Writer</th><th></th></tr></thead><tbody>`)
		for _, p := range posts {
			hw.printf(`<tr><td>%d</td><td>`, p.ID)
			hw.text(p.StoreName)
			hw.raw(`</td><td>`)
			hw.text(p.MainKeyword)
			hw.raw(`</td><td>`)
			hw.text(string(p.Status))
			hw.raw(`</td><td>`)
			hw.text(p.AssignedTo)
			hw.raw(`</td><td>`)
			for _, action := range actionsFor(p, data.UserHandle, data.IsAdmin) {
				hw.printf(`<form method="post" action="/posts/%d/%s">`, p.ID, action)
				if action == "complete" || action == "resubmit" {
					hw.raw(`<input type="url" name="blogUrl" placeholder="blog url" required value="`)
					hw.text(p.BlogURL)
					hw.raw(`"><input type="text" name="notes" placeholder="notes">`)
				}
				hw.printf(`<button type="submit">%s</button></form>`, action)
			}
			hw.raw(`</td></tr>`)
		}
		hw.raw(`</tbody></table>`)
	})
}

// actionsFor lists the buttons offered to handle for a post.
// Only the assigned writer may work on a reserved or rejected post.
func actionsFor(p *model.BlogPost, handle string, isAdmin bool) []string {
	switch p.Status {
	case model.PostCreated:
		return []string{"reserve"}
	case model.PostReserved:
		if p.AssignedTo == handle {
			return []string{"complete", "cancel"}
		}
	case model.PostCompleted:
		if isAdmin {
			return []string{"approve", "reject"}
		}
	case model.PostRejected:
		if p.AssignedTo == handle {
			return []string{"resubmit"}
		}
	}
	return nil
}
