// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrInvalidRequest is returned when the request cannot be built.
	ErrInvalidRequest = errors.New("invalid generation request")
)

// StatusError is a non-2xx answer from the generation service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation service: status %d: %s", e.Status, e.Body)
}

// ExhaustedError is returned after every allowed attempt has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("generation service: giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Client calls the generation service with retry on rate limiting.
type Client struct {
	endpoint string
	apiKey   string
	dialect  Dialect
	http     *http.Client
	policy   RetryPolicy
	sleep    Sleeper
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewClient returns a Gemini client for endpoint using the default retry policy.
func NewClient(endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	dialect, _ := ParseDialect("gemini")
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		dialect:  dialect,
		http:     &http.Client{Timeout: 2 * time.Minute},
		policy:   DefaultRetryPolicy(),
		sleep:    SleepContext,
		logger:   zap.L(),
	}
}

func (c *Client) SetDialect(d Dialect) {
	c.dialect = d
}

func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http = hc
}

func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.policy = p
}

// SetSleeper replaces the function used to wait between attempts.
func (c *Client) SetSleeper(s Sleeper) {
	c.sleep = s
}

// SetLimiter makes every attempt wait on l first. Nil disables limiting.
func (c *Client) SetLimiter(l *rate.Limiter) {
	c.limiter = l
}

func (c *Client) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Generate sends prompt and returns the generated text.
//
// A 429 or a transport failure is retried after RetryPolicy.Delay(attempt),
// up to MaxAttempts in total. Any other non-2xx status is returned at once
// as a *StatusError. When every attempt fails the result is an
// *ExhaustedError wrapping the last failure.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	attempts := c.policy.attempts()
	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		text, err := c.attempt(ctx, prompt)
		if err == nil {
			c.metrics.GenerationAttempt(metrics.AttemptOK)
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var se *StatusError
		switch {
		case errors.As(err, &se) && se.Status == http.StatusTooManyRequests:
			c.metrics.GenerationAttempt(metrics.AttemptRateLimited)
		case errors.As(err, &se), errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrInvalidRequest):
			c.metrics.GenerationAttempt(metrics.AttemptRejected)
			return "", err
		default:
			c.metrics.GenerationAttempt(metrics.AttemptTransport)
		}
		last = err

		if attempt+1 == attempts {
			break
		}
		delay := c.policy.Delay(attempt)
		c.logger.Warn("generate: retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", &ExhaustedError{Attempts: attempts, Last: last}
}

func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	req, err := c.dialect.NewRequest(ctx, c.endpoint, c.apiKey, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return c.dialect.Decode(body)
}
