// Package email provides the outbound email provider client.
//
// The provider exposes an HTTP JSON API: one POST per email, authenticated
// with a server token header. Delivery guarantees beyond the provider
// accepting the request are the delivery worker's concern.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mailfold/mailfold/internal/models"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 10 * time.Second

var validate = validator.New()

// ValidateAddress checks that addr is a well-formed email address.
func ValidateAddress(addr string) error {
	if err := validate.Var(addr, "required,email"); err != nil {
		return fmt.Errorf("%w: %q", models.ErrInvalidEmail, addr)
	}
	return nil
}

// sendEmailRequest is the provider's wire format.
type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	HTMLBody string `json:"HtmlBody"`
}

// Client sends email through the provider's HTTP API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	sender      string
	serverToken string
}

// NewClient creates a provider client. baseURL is the provider API root,
// sender is the From address, serverToken authenticates requests. A
// non-positive timeout falls back to DefaultTimeout.
func NewClient(baseURL, sender, serverToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		sender:      sender,
		serverToken: serverToken,
	}
}

// Send delivers one email. Any non-2xx provider status is an error; the
// caller decides whether the failure is worth retrying.
func (c *Client) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	payload, err := json.Marshal(sendEmailRequest{
		From:     c.sender,
		To:       to,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal send request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email provider returned status %d for %s", resp.StatusCode, to)
	}
	slog.Debug("Client.Send: email accepted by provider", "to", to, "subject", subject)
	return nil
}
