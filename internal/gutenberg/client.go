// Package gutenberg resolves a Project Gutenberg book ID to its raw text,
// fronted by the shared cache.
package gutenberg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"litlens/internal/apperr"
	"litlens/internal/cache"
	"litlens/pkg/logging"

	"go.uber.org/zap"
)

// truncationMarker is appended when book text exceeds MaxTextLen.
const truncationMarker = "..."

type Config struct {
	// BaseURL of the plain-text mirror; the per-book path is
	// {BaseURL}/{id}/{id}-0.txt.
	BaseURL string

	UserAgent string

	// FetchTimeout bounds the single outbound request (default 10s).
	FetchTimeout time.Duration

	// MaxTextLen caps the text stored and returned (default 5000). Longer
	// payloads are cut to MaxTextLen and the truncation marker appended.
	MaxTextLen int

	// TextTTL is the cache lifetime for fetched text (default 7 days).
	TextTTL time.Duration

	// Custom HTTP client (for testing)
	HTTPClient *http.Client
}

func (c *Config) withDefaults() Config {
	cfg := *c
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = "litlens/1.0 (book analysis)"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = 5000
	}
	if cfg.TextTTL <= 0 {
		cfg.TextTTL = 7 * 24 * time.Hour
	}
	return cfg
}

// Client fetches book text over HTTP and publishes it through the cache under
// the deterministic text key. Truncation happens before caching, so the cache
// and live fetch paths look identical to callers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.SafeCache
}

func NewClient(cfg Config, store *cache.SafeCache) *Client {
	cfg = cfg.withDefaults()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      store,
	}
}

// FetchText returns the (possibly truncated) text for a book ID.
func (c *Client) FetchText(ctx context.Context, bookID string) (string, error) {
	id := strings.TrimSpace(bookID)
	if id == "" {
		return "", apperr.Validation("book ID is required")
	}

	logger := logging.L(ctx).With(zap.String("book_id", id))

	key := cache.TextKey(id)
	if cached, ok := c.cache.Get(ctx, key); ok {
		return string(cached), nil
	}

	text, err := c.fetch(ctx, id)
	if err != nil {
		logger.Warn("book text fetch failed", zap.Error(err))
		return "", err
	}

	if len(text) > c.cfg.MaxTextLen {
		text = text[:c.cfg.MaxTextLen] + truncationMarker
		logger.Info("book text truncated",
			zap.Int("max_len", c.cfg.MaxTextLen),
		)
	}

	c.cache.Set(ctx, key, []byte(text), c.cfg.TextTTL)

	logger.Info("book text fetched", zap.Int("length", len(text)))
	return text, nil
}

func (c *Client) fetch(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/%s-0.txt", c.cfg.BaseURL, id, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Upstream("failed to build book request", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", apperr.NotFound(fmt.Sprintf("Book with ID %s not found", id))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Upstream(
			fmt.Sprintf("book provider returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Upstream("failed to read book response", err)
	}

	text := string(body)
	if strings.TrimSpace(text) == "" {
		return "", apperr.MalformedResponse("book provider returned an empty body")
	}

	return text, nil
}

// classifyTransportError maps a transport failure onto the error taxonomy:
// deadline/timeout, connection/DNS, or generic upstream with the original
// message preserved.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("request to book provider timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Timeout("request to book provider timed out", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return apperr.Connectivity("could not resolve book provider host", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return apperr.Connectivity("could not connect to book provider", err)
	}

	return apperr.Upstream(err.Error(), err)
}
