// Package cloudflare implements provider.Client on top of the Cloudflare v4 API.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
	"golang.org/x/time/rate"

	"gitlab.bluewillows.net/root/dnsbot/pkg/httputil"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// Client is a zone-scoped Cloudflare DNS client.
type Client struct {
	api    *cf.API
	rc     *cf.ResourceContainer
	zoneID string
	logger *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// withLimiter shares a request budget between clients.
func withLimiter(l *rate.Limiter) ClientOption {
	return func(o *clientOptions) {
		o.limiter = l
	}
}

// NewClient creates a client for one zone. The SDK's retry policy is
// disabled: every failure is returned to the caller on the first attempt.
// Requests are limited to cfg.RateLimit per second; clients from one
// NewFactory share that budget.
func NewClient(zoneID, token string, cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := validateZone(zoneID, token); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conf := *cfg
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout: conf.Timeout,
			Logger:  o.logger,
		})
	}
	if o.limiter == nil {
		o.limiter = newLimiter(conf.RateLimit)
	}

	// The SDK's own limiter is per client; the transport's limiter replaces it.
	api, err := cf.NewWithAPIToken(token,
		cf.BaseURL(strings.TrimRight(conf.APIEndpoint, "/")),
		cf.HTTPClient(wrapHTTPClient(o.httpClient, o.limiter)),
		cf.UsingRetryPolicy(0, 0, 0),
		cf.UsingRateLimit(math.Inf(1)),
		cf.UserAgent(httputil.DefaultUserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cloudflare client: %w", err)
	}

	return &Client{
		api:    api,
		rc:     cf.ZoneIdentifier(zoneID),
		zoneID: zoneID,
		logger: o.logger,
	}, nil
}

// NewFactory returns a provider.Factory building clients that share cfg and opts.
func NewFactory(cfg *Config, opts ...ClientOption) provider.Factory {
	conf := DefaultConfig()
	if cfg != nil {
		conf = &Config{APIEndpoint: cfg.APIEndpoint, Timeout: cfg.Timeout, RateLimit: cfg.RateLimit}
	}
	conf.applyDefaults()
	shared := append(append([]ClientOption(nil), opts...), withLimiter(newLimiter(conf.RateLimit)))

	return func(zoneID, credential string) (provider.Client, error) {
		return NewClient(zoneID, credential, conf, shared...)
	}
}

// Ping verifies the API token.
func (c *Client) Ping(ctx context.Context) error {
	ctx, f := trackFailure(ctx)
	res, err := c.api.VerifyAPIToken(ctx)
	if err != nil {
		return classify("verify token", err, f)
	}
	if res.Status != "" && res.Status != "active" {
		return &provider.RejectedError{
			Operation: "verify token",
			Status:    http.StatusOK,
			Messages:  []string{"token status is " + res.Status},
		}
	}
	return nil
}

// ListRecords returns the zone's records matching filter in provider order.
func (c *Client) ListRecords(ctx context.Context, filter provider.Filter) ([]provider.Record, error) {
	ctx, f := trackFailure(ctx)
	records, _, err := c.api.ListDNSRecords(ctx, c.rc, cf.ListDNSRecordsParams{
		Name: filter.Name,
		Type: string(filter.Type),
	})
	if err != nil {
		return nil, classify("list records", err, f)
	}

	out := make([]provider.Record, 0, len(records))
	for _, r := range records {
		out = append(out, toRecord(r))
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", c.zoneID),
		slog.String("name", filter.Name),
		slog.String("type", string(filter.Type)),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// CreateRecord creates a record and returns its id. Proxied is dropped for
// types that cannot be proxied and the TTL is always automatic.
func (c *Client) CreateRecord(ctx context.Context, spec provider.RecordSpec) (string, error) {
	spec = spec.Normalize()

	params := cf.CreateDNSRecordParams{
		Type:    string(spec.Type),
		Name:    spec.Name,
		Content: spec.Content,
		TTL:     spec.TTL,
		Proxied: cf.BoolPtr(spec.Proxied),
	}
	if spec.Data != nil {
		params.Data = spec.Data
	}

	ctx, f := trackFailure(ctx)
	rec, err := c.api.CreateDNSRecord(ctx, c.rc, params)
	if err != nil {
		return "", classify("create record", err, f)
	}
	if rec.ID == "" {
		return "", &provider.RejectedError{
			Operation: "create record",
			Status:    http.StatusOK,
			Messages:  []string{"provider returned no record id"},
		}
	}

	c.logger.Info("created DNS record",
		slog.String("zone_id", c.zoneID),
		slog.String("type", string(spec.Type)),
		slog.String("name", spec.Name),
		slog.String("record_id", rec.ID),
		slog.Bool("proxied", spec.Proxied),
	)

	return rec.ID, nil
}

// DeleteRecord deletes a record by id.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	ctx, f := trackFailure(ctx)
	if err := c.api.DeleteDNSRecord(ctx, c.rc, id); err != nil {
		return classify("delete record", err, f)
	}

	c.logger.Info("deleted DNS record",
		slog.String("zone_id", c.zoneID),
		slog.String("record_id", id),
	)

	return nil
}

func toRecord(r cf.DNSRecord) provider.Record {
	rec := provider.Record{
		ID:      r.ID,
		Type:    provider.RecordType(r.Type),
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
	}
	if r.Proxied != nil {
		rec.Proxied = *r.Proxied
	}
	if data, ok := r.Data.(map[string]interface{}); ok {
		rec.Data = data
	}
	return rec
}

// apiError is satisfied by every typed error the SDK builds from an error
// payload.
type apiError interface {
	error
	ErrorCodes() []int
	ErrorMessages() []string
	Type() cf.ErrorType
}

// classify maps an SDK error onto the provider error taxonomy. A 429, or a
// 5xx carrying an error payload, is a rejection: the SDK reports those as
// plain errors, so f supplies the captured payload.
func classify(op string, err error, f *failure) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &provider.UnavailableError{Operation: op, Err: err}
	}
	if f != nil {
		if rej := f.rejection(op); rej != nil {
			return rej
		}
	}

	var payload apiError
	if !errors.As(err, &payload) {
		return &provider.UnavailableError{Operation: op, Err: err}
	}

	return &provider.RejectedError{
		Operation: op,
		Status:    statusOf(payload.Type()),
		Codes:     payload.ErrorCodes(),
		Messages:  payload.ErrorMessages(),
	}
}

func statusOf(kind cf.ErrorType) int {
	switch kind {
	case cf.ErrorTypeNotFound:
		return http.StatusNotFound
	case cf.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case cf.ErrorTypeAuthorization:
		return http.StatusForbidden
	case cf.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case cf.ErrorTypeService:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Operation names a provider API request for metrics labels.
func Operation(req *http.Request) string {
	path := req.URL.Path
	switch {
	case strings.HasSuffix(path, "/user/tokens/verify"):
		return "verify"
	case strings.Contains(path, "/dns_records"):
		switch req.Method {
		case http.MethodGet:
			return "list"
		case http.MethodPost:
			return "create"
		case http.MethodDelete:
			return "delete"
		}
	}
	return "other"
}
