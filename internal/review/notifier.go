package review

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

var webhookClient = &http.Client{Timeout: 10 * time.Second}

// Notifier posts new review items to a webhook so reviewers see them without
// polling. Delivery is best-effort.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// NewNotifier creates a Notifier. An empty URL disables notification.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     webhookClient,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

// NotifyCreated posts the review item as JSON to the configured webhook.
func (n *Notifier) NotifyCreated(ctx context.Context, item *model.ReviewItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "review: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "review: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "review: webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("review: webhook returned status %d", resp.StatusCode)
	}

	return nil
}
