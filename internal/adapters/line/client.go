package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"line-order-intake/pkg/httputil"
)

// DefaultBaseURL is the Messaging API host.
const DefaultBaseURL = "https://api.line.me"

// SignatureHeader carries the base64 HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Line-Signature"

// maxReplyMessages is the Messaging API limit per reply call.
const maxReplyMessages = 5

// ErrInvalidSignature is returned when a webhook body does not match its signature.
var ErrInvalidSignature = errors.New("invalid LINE signature")

// Client calls the LINE Messaging API. Channel access tokens are per shop,
// so they are passed on each call rather than fixed on the client.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient creates a new LINE Messaging API client.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := httputil.NewClient(baseURL).
		SetHeader("Content-Type", "application/json")

	log.Info().Str("baseURL", baseURL).Msg("LINE client configured")

	return &Client{
		httpClient: client,
		baseURL:    baseURL,
	}, nil
}

// Reply sends up to five messages using a single-use reply token.
func (c *Client) Reply(ctx context.Context, accessToken, replyToken string, msgs []Message) error {
	if replyToken == "" {
		return fmt.Errorf("LINE reply: empty reply token")
	}
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > maxReplyMessages {
		return fmt.Errorf("LINE reply: %d messages exceeds limit of %d", len(msgs), maxReplyMessages)
	}

	url := "/v2/bot/message/reply"
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(ReplyRequest{ReplyToken: replyToken, Messages: msgs}).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("LINE API: Reply request failed")
		return fmt.Errorf("LINE API Reply request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().
			Str("url", url).
			Int("statusCode", resp.StatusCode()).
			Str("requestId", resp.Header().Get("X-Line-Request-Id")).
			Str("responseBody", string(resp.Body())).
			Msg("LINE API: Reply returned an error")
		return fmt.Errorf("LINE API Reply error: status %s, body: %s", resp.Status(), resp.String())
	}

	log.Debug().Int("messages", len(msgs)).Msg("LINE reply sent")
	return nil
}

// Sign computes the X-Line-Signature value for body.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks a webhook body against its X-Line-Signature header.
func ValidateSignature(channelSecret, signature string, body []byte) error {
	if channelSecret == "" || signature == "" {
		return ErrInvalidSignature
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
