package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ca-srg/yelpmcp/internal/aggregator"
	"github.com/ca-srg/yelpmcp/internal/config"
	"github.com/ca-srg/yelpmcp/internal/mcpserver"
	"github.com/ca-srg/yelpmcp/internal/yelpapi"
)

// serverFlags are the configuration overrides shared by every subcommand that
// builds the tool set.
type serverFlags struct {
	transport    string
	host         string
	port         int
	toolPrefix   string
	authMethod   string
	allowedIPs   []string
	bypassIPs    []string
	oidcIssuer   string
	oidcClientID string
	oidcJWKSURL  string
	maxPages     int
}

func (f *serverFlags) registerToolFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.toolPrefix, "tool-prefix", "", "Prefix added to every tool name; overrides MCP_TOOL_PREFIX")
	fs.IntVar(&f.maxPages, "max-pages", 50, "Page cap for get_full_yelp_list, 0 for none; overrides YELP_FULL_LIST_MAX_PAGES")
}

func (f *serverFlags) registerServerFlags(fs *pflag.FlagSet) {
	f.registerToolFlags(fs)
	fs.StringVar(&f.transport, "transport", "stdio", "Transport: stdio or http; overrides MCP_TRANSPORT")
	fs.StringVar(&f.host, "host", "localhost", "HTTP listen host; overrides MCP_SERVER_HOST")
	fs.IntVar(&f.port, "port", 9997, "HTTP listen port; overrides MCP_SERVER_PORT")
	fs.StringVar(&f.authMethod, "auth-method", "ip", "Authentication method: none, ip, oidc, both, either")
	fs.StringSliceVar(&f.allowedIPs, "allowed-ips", nil, "Comma-separated list of allowed IP addresses/ranges")
	fs.StringSliceVar(&f.bypassIPs, "bypass-ips", nil, "Comma-separated list of trusted ranges that skip authentication")
	fs.StringVar(&f.oidcIssuer, "oidc-issuer", "", "OIDC issuer URL (e.g., https://accounts.google.com)")
	fs.StringVar(&f.oidcClientID, "oidc-client-id", "", "OIDC client ID expected in the token audience")
	fs.StringVar(&f.oidcJWKSURL, "oidc-jwks-url", "", "Custom JWKS endpoint URL, skips discovery")
}

// apply copies the flags the user actually set onto cfg.
func (f *serverFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("tool-prefix") {
		cfg.MCPToolPrefix = f.toolPrefix
	}
	if fs.Changed("max-pages") {
		cfg.FullListMaxPages = f.maxPages
	}
	if fs.Changed("transport") {
		cfg.MCPTransport = f.transport
	}
	if fs.Changed("host") {
		cfg.MCPServerHost = f.host
	}
	if fs.Changed("port") {
		cfg.MCPServerPort = f.port
	}
	if fs.Changed("auth-method") {
		cfg.MCPAuthMethod = f.authMethod
	}
	if fs.Changed("allowed-ips") {
		cfg.MCPAllowedIPs = f.allowedIPs
	}
	if fs.Changed("bypass-ips") {
		cfg.MCPBypassIPs = f.bypassIPs
	}
	if fs.Changed("oidc-issuer") {
		cfg.OIDCIssuer = f.oidcIssuer
	}
	if fs.Changed("oidc-client-id") {
		cfg.OIDCClientID = f.oidcClientID
	}
	if fs.Changed("oidc-jwks-url") {
		cfg.OIDCJWKSURL = f.oidcJWKSURL
	}
}

// loadConfig reads the environment, applies flag overrides and re-validates
// the server settings they may have changed.
func loadConfig(fs *pflag.FlagSet, flags *serverFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags.apply(fs, cfg)

	if err := config.ValidateServerConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid server flags: %w", err)
	}
	return cfg, nil
}

// resolveAPIKey returns RAPID_API_KEY or the value stored in Secrets Manager.
func resolveAPIKey(ctx context.Context, cfg *config.Config) (string, error) {
	var getter config.SecretGetter
	if cfg.RapidAPIKey == "" && cfg.RapidAPIKeySecretID != "" {
		client, err := config.NewSecretsManagerClient(ctx, cfg.AWSRegion)
		if err != nil {
			return "", err
		}
		getter = client
	}

	key, err := config.ResolveAPIKey(ctx, cfg, getter)
	if err != nil {
		return "", fmt.Errorf("failed to resolve RapidAPI key: %w", err)
	}
	return key, nil
}

// buildToolRegistry wires the upstream client, the aggregator and the tool
// handlers into a registry ready to install on an MCP server.
func buildToolRegistry(cfg *config.Config, apiKey string) (*mcpserver.ToolRegistry, error) {
	client, err := yelpapi.New(yelpapi.Config{
		BaseURL: cfg.YelpAPIBaseURL,
		APIHost: cfg.YelpAPIHost,
		APIKey:  apiKey,
		Timeout: cfg.YelpRequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Yelp API client: %w", err)
	}

	lister, err := aggregator.New(client, aggregator.Config{
		MaxConcurrency: cfg.FullListMaxConcurrency,
		MaxPages:       cfg.FullListMaxPages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create full list aggregator: %w", err)
	}

	tools, err := mcpserver.NewYelpTools(client, lister, cfg.FullListMaxPages)
	if err != nil {
		return nil, err
	}

	registry := mcpserver.NewToolRegistry(cfg.MCPToolPrefix)
	if err := tools.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	log.Debug().Int("tools", registry.ToolCount()).Str("prefix", registry.Prefix()).Msg("Tool registry built")
	return registry, nil
}
