// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/generate"
	"github.com/mdhender/blogbatch/pipelines/stages"
	store "github.com/mdhender/blogbatch/stores/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubEnricher struct {
	intro string
	urls  []string
}

func (s *stubEnricher) Enrich(_ context.Context, url string) string {
	s.urls = append(s.urls, url)
	return s.intro
}

type stubGenerator struct {
	text    string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

type mockPostStore struct {
	posts []*model.BlogPost
	err   error
}

func (m *mockPostStore) CreateBlogPost(_ context.Context, post *model.BlogPost) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.posts = append(m.posts, post)
	post.ID = int64(len(m.posts))
	return post.ID, nil
}

var testRow = model.Row{
	StoreName:   "Blue Door Cafe",
	StoreURL:    "https://naver.me/a",
	MainKeyword: "brunch",
	SubKeywords: []string{"latte", "terrace"},
}

func TestWorker_Process(t *testing.T) {
	enr := &stubEnricher{intro: "Family run since 2019."}
	gen := &stubGenerator{text: "a lovely post"}
	store := &mockPostStore{}

	w := stages.NewWorker(enr, gen, store).ForRun("run-1", "admin")
	w.SetChooser(generate.FixedChooser{G: "female", A: "20s"})
	w.SetTemplate("{{storeName}}/{{storeDetails}}/{{subKeywords}}/{{customerGender}}/{{ageGroup}}")

	text, err := w.Process(context.Background(), 0, testRow)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if text != "a lovely post" {
		t.Errorf("got %q", text)
	}
	if len(enr.urls) != 1 || enr.urls[0] != testRow.StoreURL {
		t.Errorf("unexpected enrich calls %v", enr.urls)
	}
	if want := "Blue Door Cafe/Family run since 2019./latte, terrace/female/20s"; gen.prompts[0] != want {
		t.Errorf("prompt = %q, want %q", gen.prompts[0], want)
	}
	if len(store.posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(store.posts))
	}
	post := store.posts[0]
	if post.RunID != "run-1" || post.CreatedBy != "admin" || post.Status != model.PostCreated || post.AIContent != "a lovely post" {
		t.Errorf("unexpected post %+v", post)
	}
}

func TestWorker_EmptyEnrichmentUsesFallback(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	w := stages.NewWorker(&stubEnricher{}, gen, nil)

	if _, err := w.Process(context.Background(), 0, model.Row{StoreName: "x"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(gen.prompts[0], generate.FallbackDetails) {
		t.Errorf("prompt does not contain the fallback sentence:\n%s", gen.prompts[0])
	}
}

func TestWorker_GenerateFailureFailsRow(t *testing.T) {
	cause := &generate.StatusError{Status: 500, Body: "boom"}
	store := &mockPostStore{}
	w := stages.NewWorker(&stubEnricher{}, &stubGenerator{err: cause}, store)

	_, err := w.Process(context.Background(), 2, testRow)
	var se *generate.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	if code := stages.ErrorCode(err); code != stages.ErrCodeGenerate {
		t.Errorf("expected %s, got %s", stages.ErrCodeGenerate, code)
	}
	if !strings.HasPrefix(err.Error(), "row 3: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if len(store.posts) != 0 {
		t.Errorf("expected no posts, got %d", len(store.posts))
	}
}

func TestWorker_PersistFailureKeepsText(t *testing.T) {
	m := metrics.New()
	w := stages.NewWorker(&stubEnricher{}, &stubGenerator{text: "kept"}, &mockPostStore{err: errors.New("locked")})
	w.SetMetrics(m)

	text, err := w.Process(context.Background(), 0, testRow)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if text != "kept" {
		t.Errorf("got %q", text)
	}
	if got := testutil.ToFloat64(m.PersistFailures); got != 1 {
		t.Errorf("persist failures = %v, want 1", got)
	}
}

func TestWorker_PersistsToSQLite(t *testing.T) {
	ctx := context.Background()
	sqlStore, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer sqlStore.Close()

	w := stages.NewWorker(&stubEnricher{}, &stubGenerator{text: "persisted post"}, sqlStore).ForRun("run-9", "admin")
	if _, err := w.Process(ctx, 0, testRow); err != nil {
		t.Fatalf("process: %v", err)
	}

	posts, err := sqlStore.ListBlogPosts(ctx, model.PostCreated)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if p := posts[0]; p.RunID != "run-9" || p.AIContent != "persisted post" || p.SubKeyword2 != "terrace" {
		t.Errorf("unexpected post %+v", p)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&stages.ErrWriteFile{Op: "write", Path: "/x", Err: errors.New("x")}, stages.ErrCodeWriteFile},
		{&stages.ErrDatabase{Op: "insert", Err: errors.New("x")}, stages.ErrCodeDatabase},
		{&stages.ErrSpreadsheet{Filename: "a.csv", Err: stages.ErrNoRows}, stages.ErrCodeSpreadsheet},
		{&stages.ErrGenerate{Row: 0, Err: errors.New("x")}, stages.ErrCodeGenerate},
		{&stages.ErrGenerate{Row: 0, Err: context.Canceled}, stages.ErrCodeCanceled},
		{errors.New("other"), stages.ErrCodeUnknown},
	}
	for _, tc := range tests {
		if got := stages.ErrorCode(tc.err); got != tc.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
