package notion

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"line-order-intake/pkg/httputil"
)

const (
	// DefaultBaseURL is the public Notion API host.
	DefaultBaseURL = "https://api.notion.com"
	// APIVersion is sent as the Notion-Version header.
	APIVersion = "2022-06-28"
	// RequestsPerSecond is Notion's average rate limit per integration.
	RequestsPerSecond = 3
)

// Client struct holds the configuration for the Notion client.
type Client struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	baseURL    string
}

// NewClient creates a new Notion client. Requests are paced to
// RequestsPerSecond.
func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("Notion token cannot be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := httputil.NewClient(baseURL).
		SetAuthToken(token).
		SetHeader("Notion-Version", APIVersion).
		SetHeader("Content-Type", "application/json")

	log.Info().Str("baseURL", baseURL).Str("notionVersion", APIVersion).Msg("Notion client configured")

	return &Client{
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(RequestsPerSecond), RequestsPerSecond),
		baseURL:    baseURL,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, url string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("Notion API %s rate limit wait: %w", op, err)
	}

	req := c.httpClient.R().SetContext(ctx).SetResult(result)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msgf("Notion API: %s request failed", op)
		return fmt.Errorf("Notion API %s request failed: %w", op, err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msgf("Notion API: %s returned an error", op)
		return fmt.Errorf("Notion API %s error: status %s, body: %s", op, resp.Status(), resp.String())
	}
	return nil
}

// CreatePage inserts a row into a database.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props map[string]Property) (*Page, error) {
	page := &Page{}
	err := c.do(ctx, "CreatePage", resty.MethodPost, "/v1/pages", CreatePageRequest{
		Parent:     Parent{DatabaseID: databaseID},
		Properties: props,
	}, page)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("pageId", page.ID).Msg("Created Notion page")
	return page, nil
}

// QueryDatabase runs a filtered query and returns the first result page.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q QueryRequest) (*QueryResponse, error) {
	res := &QueryResponse{}
	url := fmt.Sprintf("/v1/databases/%s/query", databaseID)
	if err := c.do(ctx, "QueryDatabase", resty.MethodPost, url, q, res); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdatePage patches the given properties of a page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props map[string]Property) (*Page, error) {
	page := &Page{}
	url := fmt.Sprintf("/v1/pages/%s", pageID)
	if err := c.do(ctx, "UpdatePage", resty.MethodPatch, url, UpdatePageRequest{Properties: props}, page); err != nil {
		return nil, err
	}
	return page, nil
}

// GetPage retrieves a page with its properties.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	page := &Page{}
	url := fmt.Sprintf("/v1/pages/%s", pageID)
	if err := c.do(ctx, "GetPage", resty.MethodGet, url, nil, page); err != nil {
		return nil, err
	}
	return page, nil
}
