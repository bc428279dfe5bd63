package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PageCache stores fetched pages as JSON files so rebuilding the index does
// not refetch seed URLs.
type PageCache struct {
	baseDir string
	mu      sync.RWMutex
}

func NewPageCache(baseDir string) (*PageCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &PageCache{baseDir: baseDir}, nil
}

func (c *PageCache) Save(page *Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	if err := os.WriteFile(c.path(page.URL), data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Get returns the cached page, or nil when rawURL has not been cached.
func (c *PageCache) Get(rawURL string) (*Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(rawURL))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page: %w", err)
	}
	return &page, nil
}

// path keeps a readable prefix of the URL and a hash of the whole, so long
// URLs sharing a prefix do not collide.
func (c *PageCache) path(rawURL string) string {
	var b strings.Builder
	for _, r := range rawURL {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL))
	return filepath.Join(c.baseDir, b.String()+"-"+id.String()[:8]+".json")
}
