package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ca-srg/yelpmcp/internal/mcpserver"
)

var (
	callFlags  serverFlags
	callArgs   string
	callOutput string
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke one tool in-process and print its result",
	Long: `
Invoke a tool through an in-memory MCP session, exactly as a client would, and
print the upstream JSON. Useful for checking credentials and arguments without
configuring an MCP client.

Examples:
  yelpmcp call upcheck --args '{"check":"ping"}'
  yelpmcp call search_yelp --args '{"location":"Austin, TX","search_term":"tacos","limit":5}'
  yelpmcp call get_full_yelp_list --args '{"location":"SF","search_term":"pizza","start_page":1,"end_page":3}' -o yaml
`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callFlags.registerToolFlags(callCmd.Flags())
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "{}", "Tool arguments as a JSON object")
	callCmd.Flags().StringVarP(&callOutput, "output", "o", "json", "Output format: json or yaml")
}

func runCall(cmd *cobra.Command, args []string) error {
	switch callOutput {
	case "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q (allowed: json|yaml)", callOutput)
	}

	var arguments json.RawMessage
	if err := json.Unmarshal([]byte(callArgs), &arguments); err != nil {
		return fmt.Errorf("--args must be valid JSON: %w", err)
	}

	cfg, err := loadConfig(cmd.Flags(), &callFlags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

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
		return err
	}

	result, err := callInMemory(ctx, server.GetSDKServer(), args[0], arguments)
	if err != nil {
		return err
	}

	if err := writeCallResult(cmd.OutOrStdout(), result, callOutput); err != nil {
		return err
	}
	if result.IsError {
		return fmt.Errorf("tool %s reported an error", args[0])
	}
	return nil
}

// callInMemory connects a client to server over in-memory transports and
// performs a single tools/call.
func callInMemory(ctx context.Context, server *mcp.Server, name string, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start in-memory server session: %w", err)
	}
	defer func() {
		_ = serverSession.Close()
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "yelpmcp-cli", Version: version}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect in-memory client: %w", err)
	}
	defer func() {
		_ = session.Close()
	}()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", name, err)
	}
	return result, nil
}

func writeCallResult(w io.Writer, result *mcp.CallToolResult, format string) error {
	var text strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	body := []byte(text.String())

	// Error results carry plain text rather than JSON.
	if !json.Valid(body) {
		_, err := fmt.Fprintln(w, text.String())
		return err
	}

	if format == "yaml" {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(decoded); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(w)
	return err
}
