// Copyright 2025 Joseph Cumines
//
// Package scrape fetches web pages and converts them to markdown.

package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "windows-mcp/1.0 (+https://github.com/joeycumines/windows-mcp)"
	// DefaultMaxBytes bounds the body read from a single page.
	DefaultMaxBytes = 10 << 20
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("scrape: invalid url")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("scrape: unexpected status")
)

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	client    *http.Client
	UserAgent string
	MaxBytes  int64
}

// New returns a Fetcher using client, or a client with DefaultTimeout when nil.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{client: client, UserAgent: DefaultUserAgent, MaxBytes: DefaultMaxBytes}
}

// ValidateURL checks that raw is an absolute http or https URL.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// Markdown fetches raw and returns the page converted to markdown.
func (f *Fetcher) Markdown(ctx context.Context, raw string) (string, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("scrape: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape: get %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %s", ErrStatus, u.Redacted(), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return "", fmt.Errorf("scrape: read %s: %w", u.Redacted(), err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("scrape: convert %s: %w", u.Redacted(), err)
	}
	return strings.TrimSpace(md), nil
}
