package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "Mozilla/5.0 (compatible; NoteFoxBot/1.0)"

// ErrInvalidURL means the address cannot be fetched at all.
var ErrInvalidURL = errors.New("invalid url")

// FetchError reports a non-2xx answer from the fetched page.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Fetcher downloads web pages and extracts their text.
type Fetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

func NewFetcher(maxBytes int64) *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		MaxBytes:   maxBytes,
	}
}

// NormalizeURL trims the address and defaults a missing scheme to https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// FromURL fetches a page and returns its cleaned text.
func (f *Fetcher) FromURL(ctx context.Context, raw string) (string, error) {
	target, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", target, err)
	}

	kind, err := kindOfMIME(resp.Header.Get("Content-Type"))
	if err != nil {
		if kind, err = DetectKind("", body); err != nil {
			return "", err
		}
	}
	return FromReader(bytes.NewReader(body), kind)
}
