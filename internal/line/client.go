// ABOUTME: HTTP client for the LINE Messaging API reply and push endpoints.
// ABOUTME: Pushes are rate-limited; delivery is best effort and errors surface to callers.

package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIBase is the production Messaging API endpoint.
const DefaultAPIBase = "https://api.line.me"

// maxMessagesPerRequest is the platform limit on messages per reply/push call.
const maxMessagesPerRequest = 5

// Client talks to the LINE Messaging API. The zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client

	// pushLimiter throttles out-of-band pushes so long chunked results
	// don't trip the platform's rate limits.
	pushLimiter *rate.Limiter
}

// NewClient creates a Messaging API client. baseURL may be empty to use
// the production endpoint.
func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		pushLimiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

// Reply sends a same-turn reply using the one-shot reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...SendMessage) error {
	if replyToken == "" {
		return fmt.Errorf("reply token is required")
	}
	payload := struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []SendMessage `json:"messages"`
	}{ReplyToken: replyToken, Messages: messages}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// Push sends an out-of-band message to a user, used for delivering
// research results after the original reply token has been consumed.
func (c *Client) Push(ctx context.Context, userID string, messages ...SendMessage) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := c.pushLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for push slot: %w", err)
	}
	payload := struct {
		To       string        `json:"to"`
		Messages []SendMessage `json:"messages"`
	}{To: userID, Messages: messages}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

// PushText pushes a sequence of plain text messages, batching to the
// platform's per-request message limit.
func (c *Client) PushText(ctx context.Context, userID string, texts ...string) error {
	for start := 0; start < len(texts); start += maxMessagesPerRequest {
		end := start + maxMessagesPerRequest
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]SendMessage, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, NewText(t))
		}
		if err := c.Push(ctx, userID, batch...); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("messaging api %s returned status %d: %s", path, resp.StatusCode, string(detail))
	}
	return nil
}
