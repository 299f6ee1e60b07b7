// Package api wraps the tenant-scoped REST endpoints consumed by the sync
// layer.
package api

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// Client issues REST calls for one session token and tenant.
type Client struct {
	http *resty.Client
}

// New wraps a resty client built by the client package.
func New(http *resty.Client) *Client {
	return &Client{http: http}
}

// HTTP exposes the underlying resty client.
func (c *Client) HTTP() *resty.Client {
	return c.http
}

// r decodes every body as JSON, whatever Content-Type the server sent.
func (c *Client) r(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).ForceContentType("application/json")
}

func (c *Client) getList(ctx context.Context, path, field string, params map[string]string, out interface{}) error {
	resp, err := c.r(ctx).SetQueryParams(params).Get(path)
	if err := CheckResponse(resp, err); err != nil {
		return err
	}
	return decodeList(resp.Body(), field, out)
}
