package mcpserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/yelpmcp/internal/types"
)

func newTestConfig() *types.Config {
	return &types.Config{
		YelpAPIBaseURL:            "https://yelp-business-api.p.rapidapi.com",
		YelpAPIHost:               "yelp-business-api.p.rapidapi.com",
		YelpRequestTimeout:        30 * time.Second,
		FullListMaxConcurrency:    8,
		FullListMaxPages:          50,
		MCPTransport:              "http",
		MCPServerHost:             "127.0.0.1",
		MCPServerPort:             9997,
		MCPServerReadTimeout:      30 * time.Second,
		MCPServerWriteTimeout:     120 * time.Second,
		MCPServerIdleTimeout:      120 * time.Second,
		MCPServerShutdownTimeout:  10 * time.Second,
		MCPServerMaxHeaderBytes:   1 << 20,
		MCPServerGracefulShutdown: true,
		MCPAuthMethod:             "none",
	}
}

func TestConfigAdapterToSDKConfig(t *testing.T) {
	cfg := newTestConfig()
	cfg.MCPAuthMethod = "either"
	cfg.MCPAllowedIPs = []string{"127.0.0.1", "10.0.0.0/8"}
	cfg.OIDCIssuer = "https://issuer.example.com"
	cfg.OIDCClientID = "client"
	cfg.MCPToolPrefix = "yelp_"

	sdkCfg, err := NewConfigAdapter(cfg).ToSDKConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", sdkCfg.Host)
	assert.Equal(t, 9997, sdkCfg.Port)
	assert.Equal(t, AuthMethodEither, sdkCfg.AuthMethod)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.0/8"}, sdkCfg.AllowedIPs)
	assert.Equal(t, "yelp_", sdkCfg.ToolPrefix)
	assert.Equal(t, 50, sdkCfg.FullListMaxPages)
	assert.Equal(t, 10*time.Second, sdkCfg.ShutdownTimeout)
}

func TestConfigAdapterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
	}{
		{"empty host", func(c *types.Config) { c.MCPServerHost = "" }},
		{"port zero", func(c *types.Config) { c.MCPServerPort = 0 }},
		{"port too large", func(c *types.Config) { c.MCPServerPort = 70000 }},
		{"read timeout", func(c *types.Config) { c.MCPServerReadTimeout = 0 }},
		{"shutdown timeout", func(c *types.Config) { c.MCPServerShutdownTimeout = -time.Second }},
		{"header bytes", func(c *types.Config) { c.MCPServerMaxHeaderBytes = 11 << 20 }},
		{"unknown auth", func(c *types.Config) { c.MCPAuthMethod = "token" }},
		{"ip without list", func(c *types.Config) { c.MCPAuthMethod = "ip" }},
		{"bad ip entry", func(c *types.Config) { c.MCPAuthMethod = "ip"; c.MCPAllowedIPs = []string{"localhost"} }},
		{"bad bypass entry", func(c *types.Config) { c.MCPBypassIPs = []string{"10.0.0.0/40"} }},
		{"oidc without issuer", func(c *types.Config) { c.MCPAuthMethod = "oidc"; c.OIDCClientID = "client" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)
			_, err := NewConfigAdapter(cfg).ToSDKConfig()
			assert.Error(t, err)
		})
	}

	_, err := NewConfigAdapter(nil).ToSDKConfig()
	assert.Error(t, err)
}

func TestGetServerAddress(t *testing.T) {
	cfg := newTestConfig()
	assert.Equal(t, "127.0.0.1:9997", NewConfigAdapter(cfg).GetServerAddress())

	cfg.MCPServerHost = "::1"
	assert.Equal(t, "[::1]:9997", NewConfigAdapter(cfg).GetServerAddress())
}
