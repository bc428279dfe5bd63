// Package enrich fetches weather and soil samples from public REST APIs.
// Lookups never fail from the caller's point of view: on any error the
// documented default values are returned and the error is only logged.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBodyBytes caps upstream response bodies.
const maxBodyBytes = 4 << 20

type getter struct {
	client    *http.Client
	userAgent string
	logger    *logrus.Entry
}

func newGetter(timeout time.Duration, userAgent string, logger *logrus.Entry) *getter {
	if logger == nil {
		logger = logrus.WithField("component", "enrich")
	}
	return &getter{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// get issues a GET and returns the body of a 200 response.
func (g *getter) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}
	return body, nil
}
