package mcpserver

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ca-srg/yelpmcp/internal/types"
)

// SDKServerConfig is the subset of the application configuration the MCP
// server and its HTTP listener need.
type SDKServerConfig struct {
	// Server configuration
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	ReadTimeout      time.Duration `json:"read_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	IdleTimeout      time.Duration `json:"idle_timeout"`
	MaxHeaderBytes   int           `json:"max_header_bytes"`
	GracefulShutdown bool          `json:"graceful_shutdown"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout"`

	// Authentication configuration
	AuthMethod   AuthMethod `json:"auth_method"`
	AllowedIPs   []string   `json:"allowed_ips"`
	OIDCIssuer   string     `json:"oidc_issuer"`
	OIDCClientID string     `json:"oidc_client_id"`
	OIDCJWKSURL  string     `json:"oidc_jwks_url"`

	// Tool configuration
	ToolPrefix       string `json:"tool_prefix"`
	FullListMaxPages int    `json:"full_list_max_pages"`
}

// ConfigAdapter converts application configuration into SDKServerConfig
type ConfigAdapter struct {
	config *types.Config
}

// NewConfigAdapter creates a new configuration adapter
func NewConfigAdapter(config *types.Config) *ConfigAdapter {
	return &ConfigAdapter{
		config: config,
	}
}

// ToSDKConfig validates and converts the configuration
func (ca *ConfigAdapter) ToSDKConfig() (*SDKServerConfig, error) {
	if ca.config == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	if err := ca.ValidateSDKCompatibility(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &SDKServerConfig{
		Host:             ca.config.MCPServerHost,
		Port:             ca.config.MCPServerPort,
		ReadTimeout:      ca.config.MCPServerReadTimeout,
		WriteTimeout:     ca.config.MCPServerWriteTimeout,
		IdleTimeout:      ca.config.MCPServerIdleTimeout,
		MaxHeaderBytes:   ca.config.MCPServerMaxHeaderBytes,
		GracefulShutdown: ca.config.MCPServerGracefulShutdown,
		ShutdownTimeout:  ca.config.MCPServerShutdownTimeout,

		AuthMethod:   AuthMethod(ca.config.MCPAuthMethod),
		AllowedIPs:   ca.config.MCPAllowedIPs,
		OIDCIssuer:   ca.config.OIDCIssuer,
		OIDCClientID: ca.config.OIDCClientID,
		OIDCJWKSURL:  ca.config.OIDCJWKSURL,

		ToolPrefix:       ca.config.MCPToolPrefix,
		FullListMaxPages: ca.config.FullListMaxPages,
	}, nil
}

// ValidateSDKCompatibility checks the fields the HTTP server depends on
func (ca *ConfigAdapter) ValidateSDKCompatibility() error {
	if ca.config == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := ca.validateServerConfig(); err != nil {
		return fmt.Errorf("server configuration validation failed: %w", err)
	}

	if err := ca.validateAuthConfig(); err != nil {
		return fmt.Errorf("authentication configuration validation failed: %w", err)
	}

	return nil
}

func (ca *ConfigAdapter) validateServerConfig() error {
	if ca.config.MCPServerHost == "" {
		return fmt.Errorf("MCP server host cannot be empty")
	}

	if ca.config.MCPServerPort < 1 || ca.config.MCPServerPort > 65535 {
		return fmt.Errorf("MCP server port must be between 1 and 65535, got: %d", ca.config.MCPServerPort)
	}

	if ca.config.MCPServerReadTimeout <= 0 {
		return fmt.Errorf("MCP server read timeout must be positive, got: %v", ca.config.MCPServerReadTimeout)
	}
	if ca.config.MCPServerWriteTimeout <= 0 {
		return fmt.Errorf("MCP server write timeout must be positive, got: %v", ca.config.MCPServerWriteTimeout)
	}
	if ca.config.MCPServerIdleTimeout <= 0 {
		return fmt.Errorf("MCP server idle timeout must be positive, got: %v", ca.config.MCPServerIdleTimeout)
	}
	if ca.config.MCPServerShutdownTimeout <= 0 {
		return fmt.Errorf("MCP server shutdown timeout must be positive, got: %v", ca.config.MCPServerShutdownTimeout)
	}

	if ca.config.MCPServerMaxHeaderBytes <= 0 {
		return fmt.Errorf("MCP server max header bytes must be positive, got: %d", ca.config.MCPServerMaxHeaderBytes)
	}
	if ca.config.MCPServerMaxHeaderBytes > 10<<20 { // 10MB limit
		return fmt.Errorf("MCP server max header bytes cannot exceed 10MB, got: %d", ca.config.MCPServerMaxHeaderBytes)
	}

	return nil
}

func (ca *ConfigAdapter) validateAuthConfig() error {
	method, err := ParseAuthMethod(ca.config.MCPAuthMethod)
	if err != nil {
		return err
	}

	if method.usesIP() {
		if len(ca.config.MCPAllowedIPs) == 0 {
			return fmt.Errorf("MCP allowed IPs cannot be empty when auth method is %s", method)
		}
		for _, ip := range ca.config.MCPAllowedIPs {
			if _, err := ParseCIDROrIP(ip); err != nil {
				return fmt.Errorf("invalid entry in allowed IPs: %w", err)
			}
		}
	}

	for _, ip := range ca.config.MCPBypassIPs {
		if _, err := ParseCIDROrIP(ip); err != nil {
			return fmt.Errorf("invalid entry in bypass IPs: %w", err)
		}
	}

	if method.usesOIDC() && (ca.config.OIDCIssuer == "" || ca.config.OIDCClientID == "") {
		return fmt.Errorf("OIDC issuer and client ID are required when auth method is %s", method)
	}

	return nil
}

// GetServerAddress returns host:port for the HTTP listener
func (ca *ConfigAdapter) GetServerAddress() string {
	return net.JoinHostPort(ca.config.MCPServerHost, strconv.Itoa(ca.config.MCPServerPort))
}
