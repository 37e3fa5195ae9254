package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the magnate API. Trigger and admin calls carry the
// shared secret; read calls go out bare.
type Client struct {
	http   *resty.Client
	secret string
}

func NewClient(baseURL, secret string) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: r, secret: secret}
}

func (c *Client) TriggerActions(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/v1/turns/actions", nil)
}

func (c *Client) TriggerMarket(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/v1/turns/market", nil)
}

func (c *Client) TriggerSalaries(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/v1/turns/salaries", nil)
}

func (c *Client) TriggerPrices(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/v1/turns/prices", nil)
}

func (c *Client) TriggerProposals(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/v1/turns/proposals", nil)
}

func (c *Client) RunTurn(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/v1/turns/run", nil)
}

func (c *Client) SetJobs(ctx context.Context, enabled bool) (map[string]any, error) {
	return c.post(ctx, "/v1/admin/jobs", map[string]any{"enabled": enabled})
}

func (c *Client) JobsStatus(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/v1/admin/jobs", true)
}

func (c *Client) MarketPrices(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/v1/market/prices", false)
}

func (c *Client) Corporations(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/v1/corporations", false)
}

func (c *Client) Corporation(ctx context.Context, id int64) (map[string]any, error) {
	return c.get(ctx, fmt.Sprintf("/v1/corporations/%d", id), false)
}

func (c *Client) SectorConfig(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/v1/admin/sector-config", true)
}

func (c *Client) SaveSectorConfig(ctx context.Context, body []byte) (map[string]any, error) {
	var out map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Trigger-Secret", c.secret).
		SetHeader("Content-Type", "application/yaml").
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Put("/v1/admin/sector-config")
	return finish(resp, out, err)
}

func (c *Client) post(ctx context.Context, path string, body any) (map[string]any, error) {
	var out map[string]any
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Trigger-Secret", c.secret).
		SetResult(&out).
		SetError(&out)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	return finish(resp, out, err)
}

func (c *Client) get(ctx context.Context, path string, authed bool) (map[string]any, error) {
	var out map[string]any
	req := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out)
	if authed {
		req.SetHeader("X-Trigger-Secret", c.secret)
	}
	resp, err := req.Get(path)
	return finish(resp, out, err)
}

func finish(resp *resty.Response, out map[string]any, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		msg, _ := out["error"].(string)
		if msg == "" {
			msg = resp.Status()
		}
		return out, fmt.Errorf("api: %s", msg)
	}
	return out, nil
}
