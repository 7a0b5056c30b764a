package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cuongbtq/pgjobqueue/internal/worker/domain"
)

// WebhookRelay posts the "text" argument of a job to a chat webhook.
// Field is the JSON key the target service expects the message under.
type WebhookRelay struct {
	URL    string
	Field  string
	Client *http.Client
}

// Handle implements worker.Handler
func (r *WebhookRelay) Handle(ctx context.Context, args domain.Args) (string, error) {
	text, ok := args["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("missing text argument")
	}

	if r.URL == "" {
		return "", fmt.Errorf("webhook url is not configured")
	}

	payload, err := json.Marshal(map[string]string{r.Field: text})
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := send(ctx, r.Client, r.URL, payload); err != nil {
		return "", err
	}
	return domain.StatusOK, nil
}

func send(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST: %w", err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("response code %d", resp.StatusCode)
	}
	return nil
}
