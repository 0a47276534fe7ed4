package portal

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/providers"
)

const (
	defaultDataGoKrBaseURL = "https://apis.data.go.kr"
	defaultODCloudBaseURL  = "https://api.odcloud.kr/api"
	defaultOnbidBaseURL    = "http://openapi.onbid.co.kr/openapi/services"
	defaultTimeoutSeconds  = 15
	defaultUserAgent       = "realestate/0.1"
	defaultRateLimitPerSec = 5
	defaultRateLimitBurst  = 2
	defaultMaxAttempts     = 4
	defaultBaseDelay       = 500 * time.Millisecond
	defaultMaxDelay        = 8 * time.Second
	serviceKeyParam        = "serviceKey"
)

type ODCloudMode string

const (
	ODCloudAuthorization ODCloudMode = "authorization"
	ODCloudServiceKey    ODCloudMode = "serviceKey"
)

// Credentials are opaque portal keys. Empty keys fall back as documented on
// Client.credential.
type Credentials struct {
	DataGoKr          string
	Onbid             string
	ODCloudAPIKey     string
	ODCloudServiceKey string
}

type Config struct {
	DataGoKrBaseURL string
	ODCloudBaseURL  string
	OnbidBaseURL    string
	Credentials     Credentials
	Timeout         time.Duration
	UserAgent       string
	RateLimitPerSec float64
	RateLimitBurst  int
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
}

type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(cfg Config) *Client {
	if strings.TrimSpace(cfg.DataGoKrBaseURL) == "" {
		cfg.DataGoKrBaseURL = defaultDataGoKrBaseURL
	}
	if strings.TrimSpace(cfg.ODCloudBaseURL) == "" {
		cfg.ODCloudBaseURL = defaultODCloudBaseURL
	}
	if strings.TrimSpace(cfg.OnbidBaseURL) == "" {
		cfg.OnbidBaseURL = defaultOnbidBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
	}
}

type credential struct {
	key    string
	header bool
}

// credential picks the key for desc. Onbid falls back to the data.go.kr key.
// ODCloud prefers its own key sent as an Authorization header, then its
// serviceKey, then the data.go.kr key as serviceKey.
func (c *Client) credential(desc endpoint.Descriptor) (credential, error) {
	creds := c.config.Credentials
	var cred credential
	switch desc.Credential {
	case endpoint.CredentialOnbid:
		cred.key = firstNonEmpty(creds.Onbid, creds.DataGoKr)
	case endpoint.CredentialODCloud:
		switch {
		case strings.TrimSpace(creds.ODCloudAPIKey) != "":
			cred.key = creds.ODCloudAPIKey
			cred.header = desc.Auth == endpoint.AuthHeaderOrServiceKey
		default:
			cred.key = firstNonEmpty(creds.ODCloudServiceKey, creds.DataGoKr)
		}
	default:
		cred.key = creds.DataGoKr
	}
	cred.key = strings.TrimSpace(cred.key)
	if cred.key == "" {
		return credential{}, apperr.New(apperr.KindAuthFailure, "no api key configured for %s (%s)", desc.Tool, desc.Credential)
	}
	return cred, nil
}

func (c *Client) baseURL(portal endpoint.Portal) string {
	switch portal {
	case endpoint.PortalODCloud:
		return c.config.ODCloudBaseURL
	case endpoint.PortalOnbid:
		return c.config.OnbidBaseURL
	default:
		return c.config.DataGoKrBaseURL
	}
}

func (c *Client) endpointURL(desc endpoint.Descriptor, pathParams map[string]string) string {
	path := desc.Path
	for name, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	return strings.TrimRight(c.baseURL(desc.Portal), "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) buildURL(desc endpoint.Descriptor, req model.QueryRequest, month model.Month, pageNo, pageSize int, cred credential) string {
	query := url.Values{}
	for key, value := range desc.FixedParams {
		query.Set(key, value)
	}
	for key, value := range req.Params {
		query.Set(key, value)
	}
	if desc.Date.MonthParam != "" && desc.Date.Mode == endpoint.DateMonthly && !month.IsZero() {
		query.Set(desc.Date.MonthParam, month.Compact())
	}
	query.Set(desc.Paging.PageParam, strconv.Itoa(pageNo))
	query.Set(desc.Paging.SizeParam, strconv.Itoa(pageSize))

	encoded := query.Encode()
	if !cred.header {
		encoded = appendServiceKey(encoded, cred.key)
	}
	return c.endpointURL(desc, req.PathParams) + "?" + encoded
}

// appendServiceKey adds the key without re-encoding keys that portals hand
// out already percent-encoded.
func appendServiceKey(encoded, key string) string {
	value := key
	if !isPercentEncoded(key) {
		value = url.QueryEscape(key)
	}
	if encoded == "" {
		return serviceKeyParam + "=" + value
	}
	return serviceKeyParam + "=" + value + "&" + encoded
}

func isPercentEncoded(value string) bool {
	if !strings.Contains(value, "%") {
		return false
	}
	decoded, err := url.QueryUnescape(value)
	return err == nil && decoded != value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

var _ providers.Fetcher = (*Client)(nil)
