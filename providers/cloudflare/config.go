package cloudflare

import (
	"net/url"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout is the HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the client-side request rate, in requests per second.
	DefaultRateLimit = 4.0
)

// Config holds the settings shared by every zone client.
// Zone ids and tokens are per domain and come from the registry.
type Config struct {
	APIEndpoint string
	Timeout     time.Duration
	RateLimit   float64
}

// DefaultConfig returns a Config pointing at the public API.
func DefaultConfig() *Config {
	return &Config{
		APIEndpoint: DefaultAPIEndpoint,
		Timeout:     DefaultTimeout,
		RateLimit:   DefaultRateLimit,
	}
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.APIEndpoint == "" {
		c.APIEndpoint = DefaultAPIEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// validate checks the shared settings after defaults are applied.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return provider.ErrConfigInvalid("api_endpoint", c.APIEndpoint, "must be an absolute URL")
	}
	return nil
}

// validateZone checks the per-domain settings.
func validateZone(zoneID, token string) error {
	if zoneID == "" {
		return provider.ErrConfigMissing("zone_id")
	}
	if token == "" {
		return provider.ErrConfigMissing("token")
	}
	return nil
}
