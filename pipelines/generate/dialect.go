// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultGeminiEndpoint is the generateContent endpoint used when none is configured.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

// Dialect is the wire format of a generation backend.
type Dialect interface {
	Name() string
	// NewRequest encodes prompt as a request to endpoint.
	NewRequest(ctx context.Context, endpoint, apiKey, prompt string) (*http.Request, error)
	// Decode extracts the generated text from a successful response body.
	// A missing text field is "" and no error.
	Decode(body []byte) (string, error)
}

// ParseDialect returns the dialect with the given name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		return GeminiDialect{Temperature: 1.0, MaxOutputTokens: 2048}, nil
	case "plain":
		return PlainDialect{}, nil
	}
	return nil, fmt.Errorf("unknown generation dialect %q", name)
}

// GeminiDialect speaks the Gemini generateContent API.
type GeminiDialect struct {
	Temperature     float64
	MaxOutputTokens int
}

func (GeminiDialect) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (d GeminiDialect) NewRequest(ctx context.Context, endpoint, apiKey, prompt string) (*http.Request, error) {
	var body geminiRequest
	body.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	body.GenerationConfig.Temperature = d.Temperature
	body.GenerationConfig.MaxOutputTokens = d.MaxOutputTokens
	req, err := newJSONRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}
	return req, nil
}

func (GeminiDialect) Decode(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// PlainDialect posts {"prompt": ...} and reads {"text": ...}.
type PlainDialect struct{}

func (PlainDialect) Name() string { return "plain" }

func (PlainDialect) NewRequest(ctx context.Context, endpoint, apiKey, prompt string) (*http.Request, error) {
	req, err := newJSONRequest(ctx, endpoint, struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

func (PlainDialect) Decode(body []byte) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.Text, nil
}

func newJSONRequest(ctx context.Context, endpoint string, v any) (*http.Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
