package clicksend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"line-order-intake/pkg/httputil"
)

// DefaultBaseURL is the ClickSend REST host.
const DefaultBaseURL = "https://rest.clicksend.com"

// UploadResponse is returned by POST /v3/uploads.
type UploadResponse struct {
	HTTPCode     int    `json:"http_code"`
	ResponseCode string `json:"response_code"`
	Data         struct {
		URL string `json:"_url"`
	} `json:"data"`
}

// FaxMessage is one recipient of a fax send.
type FaxMessage struct {
	Source       string `json:"source,omitempty"`
	To           string `json:"to"`
	From         string `json:"from,omitempty"`
	CustomString string `json:"custom_string,omitempty"`
}

// FaxSendRequest is the body of POST /v3/fax/send.
type FaxSendRequest struct {
	FileURL  string       `json:"file_url"`
	Messages []FaxMessage `json:"messages"`
}

// FaxSendResponse is returned by POST /v3/fax/send.
type FaxSendResponse struct {
	HTTPCode     int    `json:"http_code"`
	ResponseCode string `json:"response_code"`
	Data         struct {
		TotalCount  int `json:"total_count"`
		QueuedCount int `json:"queued_count"`
		Messages    []struct {
			MessageID string `json:"message_id"`
			To        string `json:"to"`
			Status    string `json:"status"`
		} `json:"messages"`
	} `json:"data"`
}

// Client struct holds the configuration for the ClickSend client.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient creates a new ClickSend client using basic auth.
func NewClient(baseURL, username, apiKey string) (*Client, error) {
	if username == "" || apiKey == "" {
		return nil, fmt.Errorf("ClickSend credentials are missing")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := httputil.NewClient(baseURL).SetBasicAuth(username, apiKey)

	log.Info().Str("baseURL", baseURL).Msg("ClickSend client configured")

	return &Client{httpClient: client, baseURL: baseURL}, nil
}

// UploadFax uploads a PDF converted for fax and returns its hosted URL.
func (c *Client) UploadFax(ctx context.Context, filename string, pdf []byte) (string, error) {
	url := "/v3/uploads"

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("convert", "fax").
		SetFileReader("file", filename, bytes.NewReader(pdf)).
		SetResult(&UploadResponse{}).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Str("filename", filename).Msg("ClickSend API: UploadFax request failed")
		return "", fmt.Errorf("ClickSend API UploadFax request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msg("ClickSend API: UploadFax returned an error")
		return "", fmt.Errorf("ClickSend API UploadFax error: status %s, body: %s", resp.Status(), resp.String())
	}

	out := resp.Result().(*UploadResponse)
	if out.Data.URL == "" {
		return "", fmt.Errorf("ClickSend API UploadFax: response has no file url")
	}
	return out.Data.URL, nil
}

// SendFax sends an uploaded document to one or more fax numbers.
func (c *Client) SendFax(ctx context.Context, req FaxSendRequest) (*FaxSendResponse, error) {
	url := "/v3/fax/send"

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&FaxSendResponse{}).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("ClickSend API: SendFax request failed")
		return nil, fmt.Errorf("ClickSend API SendFax request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msg("ClickSend API: SendFax returned an error")
		return nil, fmt.Errorf("ClickSend API SendFax error: status %s, body: %s", resp.Status(), resp.String())
	}

	out := resp.Result().(*FaxSendResponse)
	log.Info().Int("queued", out.Data.QueuedCount).Msg("Fax queued via ClickSend")
	return out, nil
}
