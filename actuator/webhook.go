package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/recovery"
)

// WebhookConfig configures a webhook actuator.
type WebhookConfig struct {
	// URL receives the request. A service's webhook attribute overrides it.
	URL string

	// SigningKey signs an HS256 bearer token per request. Empty disables
	// signing.
	SigningKey []byte

	// Issuer and Audience are set on the token.
	// Default issuer: "phoenix"
	Issuer   string
	Audience string

	// TokenTTL bounds token validity.
	// Default: 1 minute
	TokenTTL time.Duration

	// Client sends the request.
	// Default: a client with a 10 second timeout
	Client *http.Client

	Clock clockwork.Clock
}

// WebhookRequest is the JSON body posted to the endpoint.
type WebhookRequest struct {
	Action      string            `json:"action"`
	Service     string            `json:"service"`
	Endpoint    string            `json:"endpoint"`
	Status      health.Status     `json:"status"`
	UptimeScore float64           `json:"uptimeScore"`
	ErrorRate   float64           `json:"errorRate"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// WebhookResponse is the optional JSON reply. When the body does not decode,
// a 2xx status alone means success.
type WebhookResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Webhook delegates an action to an external orchestrator over HTTP.
//
// 2xx replies succeed unless the body says otherwise. 4xx replies fail with
// ErrRejected and 5xx replies with ErrRemote, which guards retry.
type Webhook struct {
	action recovery.Action
	config WebhookConfig
}

// NewWebhook creates a webhook actuator for action.
func NewWebhook(action recovery.Action, config WebhookConfig) *Webhook {
	if config.Issuer == "" {
		config.Issuer = "phoenix"
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Minute
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Webhook{action: action, config: config}
}

// Execute posts the request for h.
func (w *Webhook) Execute(ctx context.Context, h health.ServiceHealth) (bool, error) {
	url := attr(h, AttrWebhook, w.config.URL)
	if url == "" {
		return false, fmt.Errorf("%w: no webhook url for %s", ErrTargetNotFound, h.Name)
	}

	body, err := json.Marshal(WebhookRequest{
		Action:      string(w.action),
		Service:     h.Name,
		Endpoint:    h.Endpoint,
		Status:      h.Status,
		UptimeScore: h.UptimeScore,
		ErrorRate:   h.ErrorRate,
		Attributes:  h.Attributes,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.config.SigningKey) > 0 {
		token, err := w.sign(h.Name)
		if err != nil {
			return false, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := w.config.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: %s answered %d", ErrRemote, url, resp.StatusCode)
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("%w: %s answered %d: %s", ErrRejected, url, resp.StatusCode, bytes.TrimSpace(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("%w: %s answered %d", ErrRejected, url, resp.StatusCode)
	}

	var out WebhookResponse
	if err := json.Unmarshal(data, &out); err == nil && out.Success != nil {
		if !*out.Success && out.Message != "" {
			return false, fmt.Errorf("%w: %s", ErrRejected, out.Message)
		}
		return *out.Success, nil
	}
	return true, nil
}

func (w *Webhook) sign(service string) (string, error) {
	now := w.config.Clock.Now()
	claims := jwt.MapClaims{
		"iss":     w.config.Issuer,
		"sub":     service,
		"action":  string(w.action),
		"iat":     now.Unix(),
		"exp":     now.Add(w.config.TokenTTL).Unix(),
		"purpose": "recovery",
	}
	if w.config.Audience != "" {
		claims["aud"] = w.config.Audience
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(w.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("actuator: sign webhook token: %w", err)
	}
	return token, nil
}
