package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// BarkNotifier sends notifications via Bark app.
type BarkNotifier struct {
	baseURL string
	client  *resty.Client
}

// NewBarkNotifier creates a new Bark notifier for a device URL such as
// https://api.day.app/<key>.
func NewBarkNotifier(baseURL string) (*BarkNotifier, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("bark url is empty")
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &BarkNotifier{baseURL: baseURL, client: client}, nil
}

func (b *BarkNotifier) Send(ctx context.Context, title, body string) error {
	// Query parameters instead of path segments so long bodies need no escaping.
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"title": title,
			"body":  body,
			"group": "resumecron",
		}).
		Post(b.baseURL)
	if err != nil {
		return fmt.Errorf("send bark notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("bark api returned status: %d", resp.StatusCode())
	}
	return nil
}
