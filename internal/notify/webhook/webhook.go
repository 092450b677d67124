// Package webhook forwards SLA breach alerts to a generic HTTP
// endpoint, in the style of Alertmanager's webhook receiver contract.
// The POST/error-handling shape is adapted from plugin/webhook's
// Post: marshal, POST, inspect the status code, wrap every failure.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/idna"

	"github.com/chatsla/sentinel/internal/notify"
)

const timeout = 30 * time.Second

// payload mirrors the common Alertmanager webhook receiver shape
// closely enough for generic receivers (Slack/Discord bridges, custom
// ops tooling) to consume without bespoke parsing.
type payload struct {
	Status      string            `json:"status"`
	RequestID   string            `json:"requestId"`
	ChatID      int64             `json:"chatId"`
	AlertType   string            `json:"alertType"`
	Level       int               `json:"level"`
	Summary     string            `json:"summary"`
	Labels      map[string]string `json:"labels"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Notifier POSTs a JSON payload to a single configured URL.
type Notifier struct {
	URL    string
	Client *http.Client
}

func New(url string) (*Notifier, error) {
	if url != "" {
		if err := validateHost(url); err != nil {
			return nil, err
		}
	}
	return &Notifier{URL: url, Client: &http.Client{Timeout: timeout}}, nil
}

var _ notify.OpsNotifier = (*Notifier)(nil)

func (n *Notifier) Notify(ctx context.Context, alert notify.AlertMessage, summary string) error {
	if n.URL == "" {
		return nil
	}
	body, err := json.Marshal(payload{
		Status:    "firing",
		RequestID: alert.RequestID,
		ChatID:    alert.ChatID,
		AlertType: string(alert.AlertType),
		Level:     alert.Level,
		Summary:   summary,
		Labels: map[string]string{
			"recipient_tier": alert.RecipientTier,
			"chat_title":     alert.ChatTitle,
		},
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: construct request to %s: %w", n.URL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post to %s: %w", n.URL, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("webhook: read response from %s: %w", n.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: %s returned status %d: %s", n.URL, resp.StatusCode, b)
	}
	return nil
}

// validateHost rejects webhook URLs whose host doesn't survive IDNA
// normalization, catching homograph/typo hostnames before the first
// breach ever tries to reach them.
func validateHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("webhook: parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("webhook: url has no host")
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return fmt.Errorf("webhook: invalid host %q: %w", host, err)
	}
	return nil
}
