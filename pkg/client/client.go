package client

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/sidechain/community/pkg/config"
	"github.com/zfogg/sidechain/community/pkg/logger"
)

// UserAgent is sent with every request.
const UserAgent = "Sidechain-Community/0.1.0"

// TenantHeader scopes a request to one community.
const TenantHeader = "X-Tenant-Slug"

// Options configures a tenant-scoped HTTP client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Token   string
	Tenant  string
}

// OptionsFromConfig fills BaseURL and Timeout from configuration.
func OptionsFromConfig(token, tenant string) Options {
	return Options{
		BaseURL: config.RESTBaseURL(),
		Timeout: time.Duration(config.GetInt("api.timeout")) * time.Second,
		Token:   token,
		Tenant:  tenant,
	}
}

// New builds a resty client bound to one session token and tenant.
func New(opts Options) *resty.Client {
	c := resty.New()
	c.SetBaseURL(opts.BaseURL)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	c.SetHeader("User-Agent", UserAgent)
	c.SetHeader("Accept", "application/json")
	if opts.Token != "" {
		c.SetAuthToken(opts.Token)
	}
	if opts.Tenant != "" {
		c.SetHeader(TenantHeader, opts.Tenant)
	}

	log := logger.Component("http")

	c.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		log.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})

	c.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		log.Debug("HTTP Response", "status", resp.StatusCode(), "url", resp.Request.URL, "took", resp.Time())
		return nil
	})

	return c
}
