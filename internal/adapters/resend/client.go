package resend

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"line-order-intake/pkg/httputil"
)

// DefaultBaseURL is the Resend API host.
const DefaultBaseURL = "https://api.resend.com"

// Tag labels an email for Resend analytics.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Email is the body of POST /emails.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

// SendResponse is returned by POST /emails.
type SendResponse struct {
	ID string `json:"id"`
}

// Client struct holds the configuration for the Resend client.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient creates a new Resend client.
func NewClient(baseURL, apiToken string) (*Client, error) {
	if apiToken == "" {
		return nil, fmt.Errorf("Resend API token cannot be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := httputil.NewClient(baseURL).
		SetAuthToken(apiToken).
		SetHeader("Content-Type", "application/json")

	log.Info().Str("baseURL", baseURL).Msg("Resend client configured")

	return &Client{httpClient: client, baseURL: baseURL}, nil
}

// Send delivers one email.
func (c *Client) Send(ctx context.Context, email Email) (*SendResponse, error) {
	url := "/emails"

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(email).
		SetResult(&SendResponse{}).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Strs("to", email.To).Msg("Resend API: Send request failed")
		return nil, fmt.Errorf("Resend API Send request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Strs("to", email.To).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msg("Resend API: Send returned an error")
		return nil, fmt.Errorf("Resend API Send error: status %s, body: %s", resp.Status(), resp.String())
	}

	out := resp.Result().(*SendResponse)
	log.Info().Str("emailId", out.ID).Str("subject", email.Subject).Msg("Email sent via Resend")
	return out, nil
}
