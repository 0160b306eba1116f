// Package fetch implements HTTP retrieval with mirror-domain failover.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/metrics"
)

// Timeouts are tuned for tunneled networks: generous connect handshake,
// bounded total request time, keep-alives to hold the tunnel open.
const (
	connectTimeout  = 10 * time.Second
	requestTimeout  = 30 * time.Second
	keepAlivePeriod = 60 * time.Second
	idleConnTimeout = 90 * time.Second
	maxRedirects    = 100
)

// Config controls Client behavior.
type Config struct {
	// DomainKeyword marks URLs eligible for mirror substitution. URLs whose
	// host does not contain it are fetched directly, once.
	DomainKeyword string
	// MirrorExtensions are tried in order as "<keyword>.<ext>" hosts.
	MirrorExtensions []string
	UserAgent        string
}

// Client fetches pages, rotating through mirror hosts for the target domain.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client with a pooled, keep-alive transport.
func New(cfg Config, logger *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: keepAlivePeriod,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     idleConnTimeout,
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		logger: logger,
	}
}

// Fetch retrieves the URL. For hosts outside the target domain a single GET
// is issued and only a 2xx counts as success. For the target domain, each
// mirror extension is tried in order; a 2xx or 4xx response is terminal and
// returned as-is, anything else moves on to the next mirror. When every
// mirror fails the last error is surfaced in an aggregated error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (catalog.Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("parse url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return catalog.Page{}, fmt.Errorf("no host in url %q", rawURL)
	}

	if !strings.Contains(host, c.cfg.DomainKeyword) {
		page, err := c.get(ctx, rawURL)
		if err != nil {
			return catalog.Page{}, err
		}
		if page.StatusCode < 200 || page.StatusCode >= 300 {
			return catalog.Page{}, fmt.Errorf("request to %s failed with status %d", rawURL, page.StatusCode)
		}
		return page, nil
	}

	var lastErr error
	for _, ext := range c.cfg.MirrorExtensions {
		mirrored := *parsed
		mirrored.Host = fmt.Sprintf("%s.%s", c.cfg.DomainKeyword, ext)
		mirrorURL := mirrored.String()
		c.logger.Debug("trying mirror", zap.String("url", mirrorURL))

		page, err := c.get(ctx, mirrorURL)
		if err != nil {
			if ctx.Err() != nil {
				return catalog.Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
			}
			c.logger.Warn("mirror request failed", zap.String("url", mirrorURL), zap.Error(err))
			lastErr = err
			continue
		}
		// A 4xx is informative, not a reason to try another mirror.
		if (page.StatusCode >= 200 && page.StatusCode < 300) ||
			(page.StatusCode >= 400 && page.StatusCode < 500) {
			return page, nil
		}
		c.logger.Warn("mirror returned retryable status",
			zap.String("url", mirrorURL),
			zap.Int("status", page.StatusCode),
		)
		lastErr = fmt.Errorf("status %d from %s", page.StatusCode, mirrorURL)
	}
	return catalog.Page{}, fmt.Errorf("all mirrors failed for %s: %w", rawURL, lastErr)
}

func (c *Client) get(ctx context.Context, rawURL string) (catalog.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	metrics.ObserveFetch(rawURL, resp.StatusCode)
	return catalog.Page{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
