package mcpserver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

// ToolInfo pairs a tool definition with its handler.
type ToolInfo struct {
	Tool    *mcp.Tool
	Handler mcp.ToolHandler
}

// ToolRegistry collects tools before they are installed on an SDK server.
// Names are prefixed with the configured prefix at registration time.
type ToolRegistry struct {
	prefix string
	tools  map[string]*ToolInfo
	order  []string
	mutex  sync.RWMutex
	logger zerolog.Logger
}

// NewToolRegistry creates a registry that prefixes every tool name with prefix.
func NewToolRegistry(prefix string) *ToolRegistry {
	return &ToolRegistry{
		prefix: strings.TrimSpace(prefix),
		tools:  make(map[string]*ToolInfo),
		logger: logging.NewLogger("tool-registry"),
	}
}

// RegisterTool registers a copy of tool under its prefixed name
func (tr *ToolRegistry) RegisterTool(tool *mcp.Tool, handler mcp.ToolHandler) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if err := ValidateToolDefinition(tool); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	registered := *tool
	registered.Name = tr.prefix + tool.Name

	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if _, exists := tr.tools[registered.Name]; exists {
		return fmt.Errorf("tool with name '%s' already registered", registered.Name)
	}

	tr.tools[registered.Name] = &ToolInfo{Tool: &registered, Handler: handler}
	tr.order = append(tr.order, registered.Name)

	tr.logger.Debug().Str("tool", registered.Name).Str("internal", tool.Name).Msg("Registered tool")
	return nil
}

// ListTools returns tool definitions in registration order
func (tr *ToolRegistry) ListTools() []*mcp.Tool {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	tools := make([]*mcp.Tool, 0, len(tr.order))
	for _, name := range tr.order {
		tools = append(tools, tr.tools[name].Tool)
	}
	return tools
}

// GetTool returns a tool by its registered (prefixed) name
func (tr *ToolRegistry) GetTool(name string) (*ToolInfo, bool) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	info, ok := tr.tools[name]
	return info, ok
}

// ToolCount returns the number of registered tools
func (tr *ToolRegistry) ToolCount() int {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	return len(tr.tools)
}

// Prefix returns the configured tool name prefix
func (tr *ToolRegistry) Prefix() string {
	return tr.prefix
}

// InstallInto adds every registered tool to server.
func (tr *ToolRegistry) InstallInto(server *mcp.Server) error {
	if server == nil {
		return fmt.Errorf("SDK server cannot be nil")
	}

	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	for _, name := range tr.order {
		info := tr.tools[name]
		server.AddTool(info.Tool, info.Handler)
	}
	tr.logger.Info().Int("count", len(tr.order)).Msg("Tools installed on MCP server")
	return nil
}

// ValidateToolDefinition validates a tool definition. The SDK panics on a
// missing or non-object input schema, so those are caught here.
func ValidateToolDefinition(tool *mcp.Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if tool.InputSchema == nil {
		return fmt.Errorf("tool input schema cannot be nil")
	}
	if schema, ok := tool.InputSchema.(*jsonschema.Schema); ok && schema.Type != "object" {
		return fmt.Errorf("tool input schema must be an object, got %q", schema.Type)
	}
	return nil
}
