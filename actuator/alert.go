package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/phoenix/health"
)

// AlertConfig configures the alert actuator.
type AlertConfig struct {
	// URL is a Slack-compatible incoming webhook.
	URL string

	// Channel overrides the webhook's default channel when set.
	Channel string

	// Client sends the request.
	// Default: a client with a 10 second timeout
	Client *http.Client
}

// Alert pages the team through a chat webhook. It reports success when the
// message is accepted; the service itself is untouched.
type Alert struct {
	config AlertConfig
}

// NewAlert creates an alert actuator.
func NewAlert(config AlertConfig) *Alert {
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Alert{config: config}
}

type alertMessage struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Execute posts a message describing h.
func (a *Alert) Execute(ctx context.Context, h health.ServiceHealth) (bool, error) {
	if a.config.URL == "" {
		return false, fmt.Errorf("%w: no alert webhook configured", ErrTargetNotFound)
	}

	body, err := json.Marshal(alertMessage{Text: AlertText(h), Channel: a.config.Channel})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.config.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: alert webhook answered %d", ErrRemote, resp.StatusCode)
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("%w: alert webhook answered %d", ErrRejected, resp.StatusCode)
	}
	return true, nil
}

// AlertText renders the page for h.
func AlertText(h health.ServiceHealth) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *%s* is %s", h.Name, strings.ToUpper(h.Status.String()))
	fmt.Fprintf(&b, " (uptime %.1f, error rate %.1f%%", h.UptimeScore, h.ErrorRate)
	if h.ResponseTimeMs > 0 {
		fmt.Fprintf(&b, ", %dms", h.ResponseTimeMs)
	}
	b.WriteString(")")
	if h.LastError != "" {
		fmt.Fprintf(&b, "\nlast error: %s", h.LastError)
	}
	if h.Endpoint != "" {
		fmt.Fprintf(&b, "\nendpoint: %s", h.Endpoint)
	}
	return b.String()
}
