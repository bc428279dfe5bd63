package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// Politeness enforces robots.txt and a minimum delay between requests to
// the same host.
type Politeness struct {
	client      *http.Client
	userAgent   string
	minDelay    time.Duration
	robotsCheck bool
	logger      *logrus.Entry

	mu     sync.Mutex
	hosts  map[string]*hostState
	robots map[string]*robotstxt.RobotsData
}

type hostState struct {
	mu   sync.Mutex
	last time.Time
}

func NewPoliteness(client *http.Client, userAgent string, minDelay time.Duration, robotsCheck bool, logger *logrus.Entry) *Politeness {
	return &Politeness{
		client:      client,
		userAgent:   userAgent,
		minDelay:    minDelay,
		robotsCheck: robotsCheck,
		logger:      logger.WithField("component", "politeness"),
		hosts:       make(map[string]*hostState),
		robots:      make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed checks u against the host's robots.txt. A robots.txt that cannot
// be fetched allows the request.
func (p *Politeness) Allowed(ctx context.Context, u *url.URL) bool {
	if !p.robotsCheck {
		return true
	}
	robots, err := p.robotsFor(ctx, u)
	if err != nil {
		p.logger.WithError(err).WithField("host", u.Host).Warn("Failed to get robots.txt, allowing request")
		return true
	}
	if robots == nil {
		return true
	}
	group := robots.FindGroup(p.userAgent)
	if group == nil {
		return true
	}
	return group.Test(u.EscapedPath())
}

// Wait blocks until a request to host respects the minimum delay, then
// records it.
func (p *Politeness) Wait(ctx context.Context, host string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state := p.host(host)
	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.last.IsZero() {
		if wait := p.minDelay - time.Since(state.last); wait > 0 {
			p.logger.WithFields(logrus.Fields{
				"host":      host,
				"wait_time": wait,
			}).Debug("Waiting for politeness delay")
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	state.last = time.Now()
	return nil
}

func (p *Politeness) host(host string) *hostState {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.hosts[host]
	if !ok {
		state = &hostState{}
		p.hosts[host] = state
	}
	return state
}

// robotsFor fetches and caches robots.txt. A missing robots.txt is cached
// as nil.
func (p *Politeness) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	p.mu.Lock()
	robots, ok := p.robots[u.Host]
	p.mu.Unlock()
	if ok {
		return robots, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		robots, err = robotstxt.FromResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
		}
	}

	p.mu.Lock()
	p.robots[u.Host] = robots
	p.mu.Unlock()
	return robots, nil
}
