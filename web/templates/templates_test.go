// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package templates_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/web/templates"
)

func TestLoginPage_EscapesMessage(t *testing.T) {
	var buf bytes.Buffer
	err := templates.LoginPage("<script>alert(1)</script>", templates.LayoutData{Version: "1.0.0"}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	if strings.Contains(html, "<script>") {
		t.Error("error message was not escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") || !strings.Contains(html, "1.0.0") {
		t.Errorf("unexpected page %q", html)
	}
}

func TestBatchPage(t *testing.T) {
	text, msg := "Hello & welcome", "boom"
	run := model.BatchRun{
		ID:     "run-1",
		Rows:   []model.Row{{StoreName: "Cafe"}, {}},
		Status: model.RunCompleted,
		Results: []model.ProcessResult{
			{RowIndex: 0, StoreName: "Cafe", Status: model.RowCompleted, Result: &text, IsSelected: true},
			{RowIndex: 1, Status: model.RowFailed, Error: &msg},
		},
		CurrentIndex:  1,
		AllSelected:   true,
		SelectedCount: 1,
		HasCompleted:  true,
	}
	var buf bytes.Buffer
	if err := templates.BatchPage(templates.LayoutData{UserHandle: "admin", IsAdmin: true}, run, templates.Sheet{Filename: "stores<1>.xlsx", Rows: 2, UploadedBy: "admin"}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	for _, want := range []string{"Hello &amp; welcome", "data #2", "boom", "Download 1 selected", "Deselect all", "1 completed, 1 failed", "stores&lt;1&gt;.xlsx"} {
		if !strings.Contains(html, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestPostsPage_ActionsByRole(t *testing.T) {
	posts := []*model.BlogPost{{ID: 7, StoreName: "Cafe", Status: model.PostCompleted}}

	var writer, admin bytes.Buffer
	templates.PostsPage(templates.LayoutData{UserHandle: "w"}, posts, "").Render(context.Background(), &writer)
	templates.PostsPage(templates.LayoutData{UserHandle: "a", IsAdmin: true}, posts, "").Render(context.Background(), &admin)

	if strings.Contains(writer.String(), "/posts/7/approve") {
		t.Error("writer should not see approve")
	}
	if !strings.Contains(admin.String(), "/posts/7/approve") || !strings.Contains(admin.String(), "/posts/7/reject") {
		t.Error("admin should see approve and reject")
	}
}

func TestPostsPage_ActionsByAssignee(t *testing.T) {
	posts := []*model.BlogPost{{ID: 8, StoreName: "Cafe", Status: model.PostReserved, AssignedTo: "alice"}}

	var alice, bob bytes.Buffer
	templates.PostsPage(templates.LayoutData{UserHandle: "alice"}, posts, "").Render(context.Background(), &alice)
	templates.PostsPage(templates.LayoutData{UserHandle: "bob"}, posts, "").Render(context.Background(), &bob)

	if !strings.Contains(alice.String(), "/posts/8/complete") || !strings.Contains(alice.String(), `name="blogUrl"`) {
		t.Error("assignee should see the complete form with a blog url field")
	}
	if strings.Contains(bob.String(), "/posts/8/complete") || strings.Contains(bob.String(), "/posts/8/cancel") {
		t.Error("other writers should not see complete or cancel")
	}
}
