package mcpserver

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func testTool(name string) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: "test tool",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}
}

func TestToolRegistryPrefixesWithoutMutatingDefinition(t *testing.T) {
	registry := NewToolRegistry(" acme_ ")
	tool := testTool("search")

	require.NoError(t, registry.RegisterTool(tool, noopHandler))

	assert.Equal(t, "search", tool.Name)
	info, ok := registry.GetTool("acme_search")
	require.True(t, ok)
	assert.Equal(t, "acme_search", info.Tool.Name)
	assert.Equal(t, "acme_", registry.Prefix())
}

func TestToolRegistryKeepsRegistrationOrder(t *testing.T) {
	registry := NewToolRegistry("")
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, registry.RegisterTool(testTool(name), noopHandler))
	}

	var names []string
	for _, tool := range registry.ListTools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
	assert.Equal(t, 3, registry.ToolCount())
}

func TestToolRegistryRejectsInvalidRegistrations(t *testing.T) {
	registry := NewToolRegistry("")
	require.NoError(t, registry.RegisterTool(testTool("dup"), noopHandler))

	assert.Error(t, registry.RegisterTool(testTool("dup"), noopHandler))
	assert.Error(t, registry.RegisterTool(nil, noopHandler))
	assert.Error(t, registry.RegisterTool(testTool("nil_handler"), nil))
	assert.Error(t, registry.RegisterTool(testTool(""), noopHandler))
	assert.Error(t, registry.RegisterTool(&mcp.Tool{Name: "no_desc", InputSchema: &jsonschema.Schema{Type: "object"}}, noopHandler))
	assert.Error(t, registry.RegisterTool(&mcp.Tool{Name: "no_schema", Description: "x"}, noopHandler))
	assert.Error(t, registry.RegisterTool(&mcp.Tool{Name: "array", Description: "x", InputSchema: &jsonschema.Schema{Type: "array"}}, noopHandler))

	assert.Equal(t, 1, registry.ToolCount())
}

func TestToolRegistryInstallInto(t *testing.T) {
	registry := NewToolRegistry("")
	require.NoError(t, registry.RegisterTool(testTool("one"), noopHandler))

	assert.Error(t, registry.InstallInto(nil))

	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "test"}, nil)
	require.NoError(t, registry.InstallInto(server))
}
