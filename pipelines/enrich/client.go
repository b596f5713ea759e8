// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package enrich fetches best-effort store descriptions from a scrape service.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"go.uber.org/zap"
)

// Client calls the scrape service. Enrich never returns an error: any
// failure is logged and reported as an empty description.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewClient returns a client for the scrape service at endpoint.
// An empty endpoint disables enrichment.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 90 * time.Second},
		logger:   zap.L(),
	}
}

// SetHTTPClient replaces the HTTP client used for scrape calls.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http = hc
}

// SetLogger replaces the logger.
func (c *Client) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

// SetMetrics attaches the collectors that count enrichment outcomes.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// scrapeResponse accepts both the flat form and the {data: {...}} envelope.
type scrapeResponse struct {
	Introduction string `json:"introduction"`
	Status       string `json:"status"`
	Data         *struct {
		Introduction string `json:"introduction"`
		Status       string `json:"status"`
	} `json:"data"`
}

// Enrich returns the store introduction for url, or "" when the url is
// blank or anything goes wrong.
func (c *Client) Enrich(ctx context.Context, url string) string {
	url = strings.TrimSpace(url)
	if url == "" || c.endpoint == "" {
		c.metrics.Enrichment(metrics.EnrichSkipped)
		return ""
	}

	intro, err := c.fetch(ctx, url)
	if err != nil {
		c.logger.Warn("enrich: scrape failed", zap.String("url", url), zap.Error(err))
		c.metrics.Enrichment(metrics.EnrichError)
		return ""
	}
	if intro == "" {
		c.logger.Debug("enrich: no introduction", zap.String("url", url))
		c.metrics.Enrichment(metrics.EnrichEmpty)
		return ""
	}
	c.metrics.Enrichment(metrics.EnrichOK)
	return intro
}

func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(scrapeRequest{URL: url})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("scrape service: status %d", resp.StatusCode)
	}

	var sr scrapeResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	intro := sr.Introduction
	if intro == "" && sr.Data != nil {
		intro = sr.Data.Introduction
	}
	return strings.TrimSpace(intro), nil
}
