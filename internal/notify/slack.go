package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

// SlackDispatcher posts messages to a Slack incoming webhook.
type SlackDispatcher struct {
	webhookURL string
	client     *http.Client
}

func NewSlackDispatcher(webhookURL string) *SlackDispatcher {
	return &SlackDispatcher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
	}
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (d *SlackDispatcher) Notify(ctx context.Context, channel, message string) error {
	body, err := json.Marshal(slackPayload{Channel: channel, Text: message})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}

var _ Dispatcher = (*SlackDispatcher)(nil)
