package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://cloud-api.yandex.net"

// Client uploads files to Yandex Disk through its REST API.
type Client struct {
	baseURL    string
	apiClient  *http.Client
	fileClient *http.Client
	dirs       *dirCache
	backoff    func(attempt int) time.Duration
	logger     *slog.Logger
}

func NewClient(token, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// Yandex expects "Authorization: OAuth <token>".
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "OAuth"})
	api := oauth2.NewClient(context.Background(), src)
	api.Timeout = 30 * time.Second

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiClient: api,
		// Upload hrefs are pre-signed and take no credentials.
		fileClient: &http.Client{Timeout: 5 * time.Minute},
		dirs:       newDirCache(time.Hour),
		backoff:    backoff,
		logger:     logger,
	}
}

// Upload copies the local file to remotePath, replacing any existing file.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}
	return c.UploadBytes(ctx, data, remotePath)
}

// UploadBytes stores data at remotePath, creating parent folders as needed.
// When the disk reports the parent missing although it is cached, e.g.
// after it was deleted remotely, the cache is dropped and the folders are
// created again once.
func (c *Client) UploadBytes(ctx context.Context, data []byte, remotePath string) error {
	remotePath = diskPath(remotePath)
	dir := path.Dir(remotePath)
	if err := c.EnsureDir(ctx, dir); err != nil {
		return err
	}

	q := url.Values{"path": {remotePath}, "overwrite": {"true"}}
	linkURL := c.baseURL + "/v1/disk/resources/upload?" + q.Encode()
	body, status, err := c.doRequest(ctx, c.apiClient, http.MethodGet, linkURL, nil)
	if err != nil && (status == http.StatusNotFound || status == http.StatusConflict) {
		c.logger.Debug("upload folder missing, recreating", "dir", dir, "status", status)
		c.dirs.Invalidate()
		if err := c.EnsureDir(ctx, dir); err != nil {
			return err
		}
		body, _, err = c.doRequest(ctx, c.apiClient, http.MethodGet, linkURL, nil)
	}
	if err != nil {
		return fmt.Errorf("requesting upload link: %w", err)
	}

	var link Link
	if err := json.Unmarshal(body, &link); err != nil {
		return fmt.Errorf("parsing upload link: %w", err)
	}
	if link.Href == "" {
		return fmt.Errorf("upload link for %s is empty", remotePath)
	}
	method := link.Method
	if method == "" {
		method = http.MethodPut
	}

	if _, _, err := c.doRequest(ctx, c.fileClient, method, link.Href, data); err != nil {
		return fmt.Errorf("uploading %s: %w", remotePath, err)
	}

	c.logger.Info("backup uploaded", "path", remotePath, "bytes", len(data))
	return nil
}

// EnsureDir creates dir and its parents. Folders that already exist are
// not an error.
func (c *Client) EnsureDir(ctx context.Context, dir string) error {
	dir = strings.TrimSuffix(diskPath(dir), "/")
	if dir == "" || dir == "disk:" || c.dirs.Has(dir) {
		return nil
	}

	current := "disk:"
	for _, part := range strings.Split(strings.TrimPrefix(dir, "disk:/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		if c.dirs.Has(current) {
			continue
		}

		q := url.Values{"path": {current}}
		_, status, err := c.doRequest(ctx, c.apiClient, http.MethodPut, c.baseURL+"/v1/disk/resources?"+q.Encode(), nil)
		if err != nil && status != http.StatusConflict {
			return fmt.Errorf("creating folder %s: %w", current, err)
		}
		c.dirs.Add(current)
	}
	return nil
}

// doRequest sends the request, retrying transport errors, 429 and 5xx with
// exponential backoff. It returns the response status alongside any error.
func (c *Client) doRequest(ctx context.Context, client *http.Client, method, target string, body []byte) ([]byte, int, error) {
	c.logger.Debug("disk API request", "method", method, "url", redact(target))

	maxRetries := 3
	requestStart := time.Now()
	var resp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err = client.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				c.logger.Error("disk request transport error", "method", method, "error", err, "elapsed", time.Since(requestStart))
				return nil, 0, fmt.Errorf("sending request: %w", err)
			}
			c.logger.Debug("disk request transport error, retrying", "method", method, "attempt", attempt+1, "error", err)
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, 0, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				c.logger.Error("disk request failed after retries", "method", method, "status", resp.StatusCode, "attempts", maxRetries+1, "elapsed", time.Since(requestStart))
				return nil, resp.StatusCode, fmt.Errorf("API returned status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.logger.Debug("disk request retryable error", "method", method, "status", resp.StatusCode, "attempt", attempt+1)
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, resp.StatusCode, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("disk API response", "method", method, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := truncate(string(respBody), 200)
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Error()
		}
		return nil, resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg)
	}

	return respBody, resp.StatusCode, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// diskPath normalizes p to the "disk:/..." form the API uses.
func diskPath(p string) string {
	if strings.HasPrefix(p, "disk:") {
		return p
	}
	return "disk:/" + strings.TrimPrefix(p, "/")
}

// redact drops the query string, which carries signed upload parameters.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
