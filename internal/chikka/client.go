package chikka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
)

// maxResponseBody caps how much of a provider response is read (64KB).
// Real responses are a few hundred bytes of JSON.
const maxResponseBody = 64 << 10

// Message types accepted by the provider API.
const (
	messageTypeSend  = "SEND"
	messageTypeReply = "REPLY"
)

// Client sends messages through the Chikka SMS API.
//
// Each send is a single POST of an urlencoded form to the provider's
// fixed endpoint. No retries are performed here; retry policy, if any,
// belongs to the caller.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	cfg        config.ChikkaConfig
	httpClient *http.Client
}

// New creates a provider client from the chikka section of config.yaml.
func New(cfg config.ChikkaConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendReply acknowledges an inbound message back to its sender.
//
// Replies reference the aggregator's request_id and are free of charge
// to the recipient (request_cost=FREE), matching the provider contract.
//
// Parameters:
//   - ctx: Context for cancellation; the underlying call is bounded by
//     the client timeout either way
//   - mobileNumber: Recipient device identity
//   - requestID: The request_id from the inbound webhook being answered
//   - messageID: Provider-unique message identity (see NewMessageID)
//
// Returns:
//   - error: nil on acknowledged delivery, ErrTransport or
//     ErrProviderRejected otherwise
func (c *Client) SendReply(ctx context.Context, mobileNumber, requestID, messageID string) error {
	form := url.Values{}
	form.Set("message_type", messageTypeReply)
	form.Set("mobile_number", mobileNumber)
	form.Set("shortcode", c.cfg.ShortCode)
	form.Set("request_id", requestID)
	form.Set("message_id", messageID)
	form.Set("message", "Data Processed")
	form.Set("request_cost", "FREE")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("secret_key", c.cfg.SecretKey)

	return c.post(ctx, form)
}

// SendCommand delivers a command text to a device.
//
// The commandID doubles as the provider message identity so the
// delivery can be traced end to end by the command's correlation key.
func (c *Client) SendCommand(ctx context.Context, mobileNumber, commandID, commandText string) error {
	form := url.Values{}
	form.Set("message_type", messageTypeSend)
	form.Set("mobile_number", mobileNumber)
	form.Set("shortcode", c.cfg.ShortCode)
	form.Set("message_id", commandID)
	form.Set("message", commandText)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("secret_key", c.cfg.SecretKey)

	return c.post(ctx, form)
}

// post performs the single provider call and maps the response to the
// delivery error taxonomy.
func (c *Client) post(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SendURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side only

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP status %d", ErrProviderRejected, resp.StatusCode)
	}

	return checkEmbeddedStatus(body)
}

// providerResponse is the JSON envelope the provider returns inside a
// 200-level HTTP response. Status is the only success marker and may be
// a number or a numeral string.
type providerResponse struct {
	Status  statusCode `json:"status"`
	Message string     `json:"message"`
}

// statusCode tolerates the provider's habit of sending status as either
// a JSON number (200) or a numeral string ("200").
type statusCode string

func (s *statusCode) UnmarshalJSON(data []byte) error {
	*s = statusCode(strings.Trim(string(data), `"`))
	return nil
}

// checkEmbeddedStatus inspects the status field embedded in the body.
// Only an embedded 200 counts as success; everything else, including an
// unparseable body, is a provider rejection.
func checkEmbeddedStatus(body []byte) error {
	var pr providerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return fmt.Errorf("%w: unparseable response body: %w", ErrProviderRejected, err)
	}

	if pr.Status == "200" {
		return nil
	}
	return fmt.Errorf("%w: status %s", ErrProviderRejected, string(pr.Status))
}
