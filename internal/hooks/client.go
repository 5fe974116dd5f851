// Package hooks proxies the externally managed hook-metadata
// directory. Records are cached with a TTL; a missing record is an
// expected miss, not an error.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metadata describes one registered hook contract.
type Metadata struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ProjectURL  string   `json:"project_url"`
	Audited     bool     `json:"audited"`
	Tags        []string `json:"tags"`
}

// Config holds the upstream directory endpoint and auth.
type Config struct {
	BaseURL  string
	APIToken string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Client fetches hook metadata with a TTL cache in front.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	meta      Metadata
	found     bool
	fetchedAt time.Time
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hooks base url is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}, nil
}

// Lookup returns the metadata for a hook address. found is false when
// the directory has no record, which callers render as "unknown hook".
func (c *Client) Lookup(ctx context.Context, address string) (Metadata, bool, error) {
	key := strings.ToLower(address)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.cfg.CacheTTL {
		return entry.meta, entry.found, nil
	}

	meta, found, err := c.fetch(ctx, key)
	if err != nil {
		// Serve the stale entry if we have one; a directory outage
		// should not blank out already-displayed names.
		if ok {
			c.logger.Warn("hook directory fetch failed, serving stale", zap.String("hook", key), zap.Error(err))
			return entry.meta, entry.found, nil
		}
		return Metadata{}, false, err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{meta: meta, found: found, fetchedAt: time.Now()}
	c.mu.Unlock()

	return meta, found, nil
}

type directoryRecord struct {
	Fields struct {
		Address     string `json:"address"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ProjectURL  string `json:"project_url"`
		Audited     bool   `json:"audited"`
		Tags        string `json:"tags"`
	} `json:"fields"`
}

type directoryResponse struct {
	Records []directoryRecord `json:"records"`
}

func (c *Client) fetch(ctx context.Context, address string) (Metadata, bool, error) {
	endpoint := fmt.Sprintf("%s?filterByFormula=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.QueryEscape(fmt.Sprintf(`LOWER({address})=%q`, address)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("hook directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Metadata{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Metadata{}, false, fmt.Errorf("hook directory status %d: %s", resp.StatusCode, body)
	}

	var parsed directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Metadata{}, false, fmt.Errorf("decode hook directory: %w", err)
	}
	if len(parsed.Records) == 0 {
		return Metadata{}, false, nil
	}

	fields := parsed.Records[0].Fields
	meta := Metadata{
		Address:     address,
		Name:        fields.Name,
		Description: fields.Description,
		ProjectURL:  fields.ProjectURL,
		Audited:     fields.Audited,
	}
	for _, tag := range strings.Split(fields.Tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	}
	return meta, true, nil
}
