package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// HTTPClient re-requests the project page once the autostart has finished,
// the terminal counterpart of reloading the page in a browser.
type HTTPClient struct {
	pageURL string
	client  *http.Client
}

// NewHTTPClient creates a client for pageURL (e.g. "http://demo.localhost/").
func NewHTTPClient(pageURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		pageURL: pageURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// PageURL returns the reloaded URL.
func (c *HTTPClient) PageURL() string {
	return c.pageURL
}

// Reload returns a command that GETs the project page and yields ReloadedMsg.
func (c *HTTPClient) Reload(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		code, err := c.get(ctx)
		return ReloadedMsg{URL: c.pageURL, StatusCode: code, Err: err}
	}
}

func (c *HTTPClient) get(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Redirects have been followed; anything but 2xx is a failure.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("GET %s: %d %s", c.pageURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// DerivePageURL converts the autostart endpoint into the page it was served
// from: ws://host:port/path → http://host:port/.
func DerivePageURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", wsURL)
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") || u.Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, u.Host), nil
}
