package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrAdapter marks source fetch failures. Failures are isolated per source:
// the scan cycle continues with the remaining adapters.
var ErrAdapter = errors.New("adapter error")

// FeedClient makes rate-limited JSON requests against one upstream feed
type FeedClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewFeedClient creates a client that allows requestsPerSecond sustained
// fetches with a burst of one
func NewFeedClient(requestsPerSecond float64) *FeedClient {
	return &FeedClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		userAgent: "Mozilla/5.0 (compatible; FortunaBot/1.0)",
	}
}

// fetchJSON makes a rate-limited GET and decodes the response into out
func (c *FeedClient) fetchJSON(ctx context.Context, url string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("feed error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
