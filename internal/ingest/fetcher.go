package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDisallowed is returned for URLs excluded by robots.txt.
var ErrDisallowed = errors.New("URL blocked by robots.txt")

// ErrUnsupportedContent is returned for responses that are not HTML, PDF or
// plain text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// maxPageBytes caps downloaded page bodies.
var maxPageBytes int64 = 20 << 20

// Fetcher downloads seed pages politely, serving repeats from the cache.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	politeness *Politeness
	cache      *PageCache
	logger     *logrus.Entry
}

// NewFetcher creates a fetcher. cache may be nil.
func NewFetcher(timeout time.Duration, userAgent string, minDelay time.Duration, robotsCheck bool, cache *PageCache, logger *logrus.Entry) *Fetcher {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Fetcher{
		client:     client,
		userAgent:  userAgent,
		politeness: NewPoliteness(client, userAgent, minDelay, robotsCheck, logger),
		cache:      cache,
		logger:     logger.WithField("component", "fetcher"),
	}
}

// Fetch downloads and parses a page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only HTTP/HTTPS URLs are supported: %s", rawURL)
	}

	if f.cache != nil {
		page, err := f.cache.Get(rawURL)
		if err != nil {
			f.logger.WithError(err).WithField("url", rawURL).Warn("Ignoring unreadable cache entry")
		} else if page != nil {
			f.logger.WithField("url", rawURL).Debug("Serving page from cache")
			return page, nil
		}
	}

	if !f.politeness.Allowed(ctx, u) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	if err := f.politeness.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > maxPageBytes {
		return nil, fmt.Errorf("page exceeds %d bytes", maxPageBytes)
	}

	page, err := parsePage(ctx, resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, fmt.Errorf("parsing error: %w", err)
	}
	page.URL = rawURL

	if f.cache != nil {
		if err := f.cache.Save(page); err != nil {
			f.logger.WithError(err).WithField("url", rawURL).Warn("Failed to cache page")
		}
	}
	return page, nil
}

// parsePage dispatches on the response media type, sniffing the body when
// the server sends none.
func parsePage(ctx context.Context, contentType string, data []byte) (*Page, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContent, contentType)
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return parseHTML(bytes.NewReader(data))
	case "application/pdf":
		text, err := ExtractPDFText(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Page{Text: cleanText(text)}, nil
	case "text/plain":
		return &Page{Text: cleanText(string(data))}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
	}
}
