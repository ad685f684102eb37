package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var (
	toolsFlags serverFlags
	toolsJSON  bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the MCP tools this server exposes",
	Long: `
List every tool the MCP server registers, with its required parameters.
Use --json to print the full tool definitions including input schemas.
`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsFlags.registerToolFlags(toolsCmd.Flags())
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Print full tool definitions as JSON")
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags(), &toolsFlags)
	if err != nil {
		return err
	}

	// Listing never reaches the upstream, so no key is resolved.
	registry, err := buildToolRegistry(cfg, "")
	if err != nil {
		return err
	}

	return printTools(cmd.OutOrStdout(), registry.ListTools(), toolsJSON)
}

func printTools(w io.Writer, tools []*mcp.Tool, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tREQUIRED\tDESCRIPTION")
	for _, tool := range tools {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", tool.Name, requiredParams(tool), firstLine(tool.Description))
	}
	return tw.Flush()
}

func requiredParams(tool *mcp.Tool) string {
	schema, ok := tool.InputSchema.(*jsonschema.Schema)
	if !ok || len(schema.Required) == 0 {
		return "-"
	}
	return strings.Join(schema.Required, ",")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".\n"); i >= 0 {
		return s[:i+1]
	}
	return s
}
