// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package generate_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/pipelines/generate"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const geminiOK = `{"candidates":[{"content":{"parts":[{"text":"generated post"}]}}]}`

// scriptedServer answers with statuses[i] for the i'th call and repeats the last one.
func scriptedServer(t *testing.T, calls *atomic.Int32, statuses ...int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		status := statuses[min(n, len(statuses)-1)]
		w.WriteHeader(status)
		if status == http.StatusOK {
			io.WriteString(w, geminiOK)
		} else {
			io.WriteString(w, "quota exceeded")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// recordingSleeper records the requested delays without waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestClient(url string, s *recordingSleeper) *generate.Client {
	c := generate.NewClient(url, "test-key")
	c.SetSleeper(s.sleep)
	return c
}

func TestGenerate_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 429, 429, 200)
	s := &recordingSleeper{}
	c := newTestClient(srv.URL, s)
	m := metrics.New()
	c.SetMetrics(m)

	got, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "generated post" {
		t.Errorf("got %q", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 calls, got %d", n)
	}
	if want := []time.Duration{2 * time.Second, 4 * time.Second}; !slices.Equal(s.delays, want) {
		t.Errorf("delays = %v, want %v", s.delays, want)
	}
	if got := testutil.ToFloat64(m.GenerationAttempts.WithLabelValues(metrics.AttemptRateLimited)); got != 2 {
		t.Errorf("rate limited attempts = %v, want 2", got)
	}
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 429)
	s := &recordingSleeper{}
	c := newTestClient(srv.URL, s)

	_, err := c.Generate(context.Background(), "hello")
	var ex *generate.ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected *ExhaustedError, got %v", err)
	}
	if ex.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", ex.Attempts)
	}
	var se *generate.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests {
		t.Errorf("expected last failure to be a 429 StatusError, got %v", ex.Last)
	}
	if n := calls.Load(); n != 5 {
		t.Errorf("expected 5 calls, got %d", n)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if !slices.Equal(s.delays, want) {
		t.Errorf("delays = %v, want %v", s.delays, want)
	}
}

func TestGenerate_OtherStatusIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 500)
	s := &recordingSleeper{}
	c := newTestClient(srv.URL, s)

	_, err := c.Generate(context.Background(), "hello")
	var se *generate.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Status != 500 || se.Body != "quota exceeded" {
		t.Errorf("got %+v", se)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
	if len(s.delays) != 0 {
		t.Errorf("expected no sleeps, got %v", s.delays)
	}
}

func TestGenerate_MissingTextIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	got, err := generate.NewClient(srv.URL, "").Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestGenerate_GeminiWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				Temperature     float64 `json:"temperature"`
				MaxOutputTokens int     `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected contents %+v", req.Contents)
		}
		if req.GenerationConfig.Temperature != 1.0 || req.GenerationConfig.MaxOutputTokens != 2048 {
			t.Errorf("unexpected config %+v", req.GenerationConfig)
		}
		io.WriteString(w, geminiOK)
	}))
	defer srv.Close()

	got, err := generate.NewClient(srv.URL, "test-key").Generate(context.Background(), "hello")
	if err != nil || got != "generated post" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestGenerate_PlainDialect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{"text": "echo: " + req["prompt"]})
	}))
	defer srv.Close()

	d, err := generate.ParseDialect("plain")
	if err != nil {
		t.Fatalf("ParseDialect: %v", err)
	}
	c := generate.NewClient(srv.URL, "")
	c.SetDialect(d)
	got, err := c.Generate(context.Background(), "hi")
	if err != nil || got != "echo: hi" {
		t.Errorf("got %q, %v", got, err)
	}

	if _, err := generate.ParseDialect("smoke-signals"); err == nil {
		t.Errorf("expected error for unknown dialect")
	}
}

func TestGenerate_TransportErrorsAreRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := &recordingSleeper{}
	c := newTestClient(url, s)
	c.SetRetryPolicy(generate.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2})

	_, err := c.Generate(context.Background(), "hello")
	var ex *generate.ExhaustedError
	if !errors.As(err, &ex) || ex.Attempts != 3 {
		t.Fatalf("expected *ExhaustedError after 3 attempts, got %v", err)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; !slices.Equal(s.delays, want) {
		t.Errorf("delays = %v, want %v", s.delays, want)
	}
}

func TestGenerate_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 429)
	ctx, cancel := context.WithCancel(context.Background())

	c := generate.NewClient(srv.URL, "")
	c.SetSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return generate.SleepContext(ctx, d)
	})

	_, err := c.Generate(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}
