package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ca-srg/yelpmcp/internal/types"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

var validAuthMethods = map[string]struct{}{
	"none":   {},
	"ip":     {},
	"oidc":   {},
	"both":   {},
	"either": {},
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config.MCPAllowedIPs = SplitList(config.MCPAllowedIPsStr)
	config.MCPBypassIPs = SplitList(config.MCPBypassIPsStr)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	config.RapidAPIKey = strings.TrimSpace(config.RapidAPIKey)

	if err := validateUpstreamConfig(config); err != nil {
		return fmt.Errorf("upstream configuration validation failed: %w", err)
	}

	if err := ValidateServerConfig(config); err != nil {
		return fmt.Errorf("MCP server configuration validation failed: %w", err)
	}

	return nil
}

func validateUpstreamConfig(config *Config) error {
	parsedURL, err := url.Parse(config.YelpAPIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid YELP_API_BASE_URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("YELP_API_BASE_URL scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("YELP_API_BASE_URL must include a valid host")
	}
	config.YelpAPIBaseURL = strings.TrimSuffix(config.YelpAPIBaseURL, "/")

	if strings.TrimSpace(config.YelpAPIHost) == "" {
		return fmt.Errorf("YELP_API_HOST cannot be empty")
	}

	if config.YelpRequestTimeout <= 0 {
		return fmt.Errorf("YELP_REQUEST_TIMEOUT must be greater than 0")
	}

	return nil
}

// ValidateServerConfig checks the fan-out bounds, transport and auth settings. It is exported
// so command flags can be re-validated after they override the environment.
func ValidateServerConfig(config *Config) error {
	// 0 disables a bound; a negative value is a mistake, not a request for no cap
	if config.FullListMaxConcurrency < 0 {
		return fmt.Errorf("YELP_FULL_LIST_MAX_CONCURRENCY must be >= 0, got %d", config.FullListMaxConcurrency)
	}
	if config.FullListMaxPages < 0 {
		return fmt.Errorf("YELP_FULL_LIST_MAX_PAGES must be >= 0, got %d", config.FullListMaxPages)
	}

	config.MCPTransport = strings.ToLower(strings.TrimSpace(config.MCPTransport))
	switch config.MCPTransport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("MCP_TRANSPORT must be %s or %s, got %q", TransportStdio, TransportHTTP, config.MCPTransport)
	}

	config.MCPAuthMethod = strings.ToLower(strings.TrimSpace(config.MCPAuthMethod))
	if _, ok := validAuthMethods[config.MCPAuthMethod]; !ok {
		return fmt.Errorf("MCP_AUTH_METHOD must be one of none|ip|oidc|both|either, got %q", config.MCPAuthMethod)
	}

	// HTTP listener settings only matter for the http transport
	if config.MCPTransport != TransportHTTP {
		return nil
	}

	if config.MCPServerPort < 1 || config.MCPServerPort > 65535 {
		return fmt.Errorf("MCP_SERVER_PORT must be between 1 and 65535, got %d", config.MCPServerPort)
	}

	switch config.MCPAuthMethod {
	case "ip", "both", "either":
		if len(config.MCPAllowedIPs) == 0 {
			return fmt.Errorf("MCP_ALLOWED_IPS cannot be empty when auth method is %s", config.MCPAuthMethod)
		}
	}

	switch config.MCPAuthMethod {
	case "oidc", "both", "either":
		if config.OIDCIssuer == "" {
			return fmt.Errorf("OIDC_ISSUER is required when auth method is %s", config.MCPAuthMethod)
		}
		if config.OIDCClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when auth method is %s", config.MCPAuthMethod)
		}
	}

	return nil
}
