// Package notifier defines the chat-notification sink boundary and a
// concrete HTTP-based implementation, in the same client shape as
// internal/gateway.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier posts a formatted notice, optionally threaded against a prior
// post, and returns the thread reference to use for subsequent posts.
type Notifier interface {
	Post(ctx context.Context, text string, threadRef string) (newThreadRef string, err error)
}

// HTTPNotifier posts to a chat webhook (e.g. a Slack incoming-webhook-style
// endpoint) carrying a bot token and channel.
type HTTPNotifier struct {
	postURL  string
	botToken string
	channel  string
	client   *http.Client
}

func New(postURL, botToken, channel string) *HTTPNotifier {
	return &HTTPNotifier{
		postURL:  postURL,
		botToken: botToken,
		channel:  channel,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type postRequest struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	ThreadRef string `json:"thread_ref,omitempty"`
}

type postResponse struct {
	ThreadRef string `json:"thread_ref"`
}

func (n *HTTPNotifier) Post(ctx context.Context, text string, threadRef string) (string, error) {
	reqBody, err := json.Marshal(postRequest{Channel: n.channel, Text: text, ThreadRef: threadRef})
	if err != nil {
		return "", fmt.Errorf("notifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.postURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.botToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("notifier: post: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notifier: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var pr postResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("notifier: decode response: %w", err)
	}
	if pr.ThreadRef == "" {
		pr.ThreadRef = threadRef
	}
	return pr.ThreadRef, nil
}
