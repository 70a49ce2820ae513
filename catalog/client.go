// Package catalog fetches the product list from its remote source, with a
// local static file standing in when the remote is unreachable.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskcart-api/domain"
)

const fetchMaxSize = 8 * 1024 * 1024 // 8 MiB

// UnavailableError is the terminal fetch failure: both the remote source and
// the local fallback failed. Callers surface it as a retryable error state.
type UnavailableError struct {
	Primary  error
	Fallback error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("catalog unavailable: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

// Client reads the product catalog.
type Client struct {
	http         *http.Client
	url          string
	fallbackPath string
	logger       *log.Logger
}

// NewClient creates a catalog client hitting url, falling back to the JSON
// file at fallbackPath. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, url, fallbackPath string, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{http: httpClient, url: url, fallbackPath: fallbackPath, logger: logger}
}

// Fetch returns the product page from the remote source, or from the local
// fallback file on any remote failure. When both fail it returns an
// *UnavailableError.
func (c *Client) Fetch(ctx context.Context) (domain.ProductsPage, error) {
	page, primaryErr := c.fetchRemote(ctx)
	if primaryErr == nil {
		return page, nil
	}
	c.logger.Warnf("catalog fetch failed, trying local fallback: %v", primaryErr)

	page, fallbackErr := c.readFallback()
	if fallbackErr == nil {
		return page, nil
	}
	return domain.ProductsPage{}, &UnavailableError{Primary: primaryErr, Fallback: fallbackErr}
}

func (c *Client) fetchRemote(ctx context.Context) (domain.ProductsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.ProductsPage{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ProductsPage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ProductsPage{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var page domain.ProductsPage
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, fetchMaxSize))
	if err := dec.Decode(&page); err != nil {
		return domain.ProductsPage{}, fmt.Errorf("decode response: %w", err)
	}
	return page, nil
}

func (c *Client) readFallback() (domain.ProductsPage, error) {
	if c.fallbackPath == "" {
		return domain.ProductsPage{}, fmt.Errorf("no fallback configured")
	}
	data, err := os.ReadFile(c.fallbackPath)
	if err != nil {
		return domain.ProductsPage{}, err
	}
	var page domain.ProductsPage
	if err := sonic.Unmarshal(data, &page); err != nil {
		return domain.ProductsPage{}, fmt.Errorf("decode fallback: %w", err)
	}
	return page, nil
}
