package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ca-srg/yelpmcp/internal/config"
	"github.com/ca-srg/yelpmcp/internal/mcpserver"
	"github.com/ca-srg/yelpmcp/internal/observability"
)

var mcpFlags serverFlags

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server exposing the Yelp business tools",
	Long: `
Start an MCP server that exposes the RapidAPI Yelp business API as tools for
MCP-compatible clients like Claude Desktop, IDEs and agents.

With --transport stdio (the default) the server talks JSON-RPC over stdin and
stdout. With --transport http it listens on host:port and serves both the
streamable HTTP and the legacy SSE transports, guarded by the configured
authentication method.

Configuration is loaded from environment variables (see README for details).

Examples:
  yelpmcp mcp-server                                      # stdio for a local client
  yelpmcp mcp-server --transport http --port 9000         # HTTP on a custom port
  yelpmcp mcp-server --transport http --auth-method none  # no auth (not recommended)
  yelpmcp mcp-server --transport http --allowed-ips "192.168.1.0/24"
`,
	RunE: runMCPServer,
}

func init() {
	mcpFlags.registerServerFlags(mcpServerCmd.Flags())
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), &mcpFlags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Init(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.MCPServerShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	apiKey, err := resolveAPIKey(ctx, cfg)
	if err != nil {
		return err
	}

	registry, err := buildToolRegistry(cfg, apiKey)
	if err != nil {
		return err
	}

	server, err := mcpserver.NewServerWrapper(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create server wrapper: %w", err)
	}
	if err := server.RegisterTools(registry); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	if cfg.MCPTransport == config.TransportStdio {
		return server.RunStdio(ctx)
	}

	return serveHTTP(ctx, cfg, server, registry)
}

func serveHTTP(ctx context.Context, cfg *config.Config, server *mcpserver.ServerWrapper, registry *mcpserver.ToolRegistry) error {
	method, err := mcpserver.ParseAuthMethod(cfg.MCPAuthMethod)
	if err != nil {
		return err
	}

	if method == mcpserver.AuthMethodNone {
		log.Warn().Msg("No authentication middleware enabled (auth-method=none)")
	} else {
		unified, err := mcpserver.NewUnifiedAuthMiddleware(ctx, &mcpserver.UnifiedAuthConfig{
			AuthMethod: method,
			AllowedIPs: cfg.MCPAllowedIPs,
			BypassIPs:  cfg.MCPBypassIPs,
			OIDCConfig: &mcpserver.OIDCConfig{
				Issuer:   cfg.OIDCIssuer,
				ClientID: cfg.OIDCClientID,
				JWKSURL:  cfg.OIDCJWKSURL,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create unified auth middleware: %w", err)
		}
		server.SetUnifiedAuthMiddleware(unified)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}

	names := make([]string, 0, registry.ToolCount())
	for _, tool := range registry.ListTools() {
		names = append(names, tool.Name)
	}
	log.Info().
		Str("address", server.Addr()).
		Str("auth_method", string(method)).
		Strs("tools", names).
		Msg("MCP server listening")

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, stopping server")

	if err := server.Stop(); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	log.Info().Msg("MCP server stopped")
	return nil
}
