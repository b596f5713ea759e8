// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Scrape result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed" // page fetched, nothing usable on it
	StatusError   = "error"  // page could not be fetched
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ScrapeResult is the answer of the scrape service for one url.
type ScrapeResult struct {
	Introduction string `json:"introduction"`
	Status       string `json:"status"`
}

// Scraper is a generic scrape service. It reads the page description from
// og:description, then the description meta tag, then the first paragraph.
type Scraper struct {
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

func NewScraper() *Scraper {
	return &Scraper{
		http:      &http.Client{Timeout: 60 * time.Second},
		userAgent: defaultUserAgent,
		logger:    zap.L(),
	}
}

// SetHTTPClient replaces the HTTP client used to fetch pages.
func (s *Scraper) SetHTTPClient(hc *http.Client) {
	s.http = hc
}

// Scrape fetches url and extracts an introduction.
func (s *Scraper) Scrape(ctx context.Context, url string) ScrapeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Debug("scrape: bad url", zap.String("url", url), zap.Error(err))
		return ScrapeResult{Status: StatusError}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Debug("scrape: fetch failed", zap.String("url", url), zap.Error(err))
		return ScrapeResult{Status: StatusError}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("scrape: fetch failed", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return ScrapeResult{Status: StatusError}
	}

	intro, err := extractIntroduction(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		s.logger.Debug("scrape: parse failed", zap.String("url", url), zap.Error(err))
		return ScrapeResult{Status: StatusFailed}
	}
	if intro == "" {
		return ScrapeResult{Status: StatusFailed}
	}
	return ScrapeResult{Introduction: intro, Status: StatusSuccess}
}

func extractIntroduction(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	for _, selector := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if text := collapse(content); text != "" {
				return text, nil
			}
		}
	}
	var intro string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		intro = collapse(p.Text())
		return intro == ""
	})
	return intro, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Handler serves POST {"url": ...} and answers with a ScrapeResult.
func (s *Scraper) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
			return
		}
		var req scrapeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "url is required"})
			return
		}
		json.NewEncoder(w).Encode(s.Scrape(r.Context(), strings.TrimSpace(req.URL)))
	}
}
