package types

import "time"

// Config holds the runtime configuration resolved from the environment.
type Config struct {
	// Upstream business API
	RapidAPIKey            string        `env:"RAPID_API_KEY"`
	RapidAPIKeySecretID    string        `env:"RAPID_API_KEY_SECRET_ID"`
	RapidAPIKeySecretField string        `env:"RAPID_API_KEY_SECRET_FIELD,default=RAPID_API_KEY"`
	AWSRegion              string        `env:"AWS_REGION,default=us-east-1"`
	YelpAPIBaseURL         string        `env:"YELP_API_BASE_URL,default=https://yelp-business-api.p.rapidapi.com"`
	YelpAPIHost            string        `env:"YELP_API_HOST,default=yelp-business-api.p.rapidapi.com"`
	YelpRequestTimeout     time.Duration `env:"YELP_REQUEST_TIMEOUT,default=30s"`

	// get_full_yelp_list fan-out bounds, 0 disables the bound
	FullListMaxConcurrency int `env:"YELP_FULL_LIST_MAX_CONCURRENCY,default=8"`
	FullListMaxPages       int `env:"YELP_FULL_LIST_MAX_PAGES,default=50"`

	// MCP Server Configuration
	MCPTransport              string        `env:"MCP_TRANSPORT,default=stdio"`
	MCPServerHost             string        `env:"MCP_SERVER_HOST,default=localhost"`
	MCPServerPort             int           `env:"MCP_SERVER_PORT,default=9997"`
	MCPServerReadTimeout      time.Duration `env:"MCP_SERVER_READ_TIMEOUT,default=30s"`
	MCPServerWriteTimeout     time.Duration `env:"MCP_SERVER_WRITE_TIMEOUT,default=120s"`
	MCPServerIdleTimeout      time.Duration `env:"MCP_SERVER_IDLE_TIMEOUT,default=120s"`
	MCPServerShutdownTimeout  time.Duration `env:"MCP_SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	MCPServerMaxHeaderBytes   int           `env:"MCP_SERVER_MAX_HEADER_BYTES,default=1048576"`
	MCPServerGracefulShutdown bool          `env:"MCP_SERVER_GRACEFUL_SHUTDOWN,default=true"`
	MCPToolPrefix             string        `env:"MCP_TOOL_PREFIX"`
	MCPAuthMethod             string        `env:"MCP_AUTH_METHOD,default=ip"`
	MCPAllowedIPsStr          string        `env:"MCP_ALLOWED_IPS,default=127.0.0.1"`
	MCPAllowedIPs             []string      // parsed from MCPAllowedIPsStr
	MCPBypassIPsStr           string        `env:"MCP_AUTH_BYPASS_IPS"`
	MCPBypassIPs              []string      // parsed from MCPBypassIPsStr

	// OIDC bearer token verification
	OIDCIssuer   string `env:"OIDC_ISSUER"`
	OIDCClientID string `env:"OIDC_CLIENT_ID"`
	OIDCJWKSURL  string `env:"OIDC_JWKS_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`

	// OpenTelemetry
	OTelEnabled              bool    `env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `env:"OTEL_SERVICE_NAME,default=yelpmcp"`
	OTelExporterOTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string  `env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string  `env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}
