package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/tools"
)

// Executor implements tools.Executor for MCP server tools. It manages
// connections to multiple MCP servers, discovers their tools, and routes
// tool calls to the server that provides them.
type Executor struct {
	mu sync.RWMutex

	// clients in configuration order; earlier servers win name conflicts.
	clients []*Client

	// toolToClient maps tool name to the client that provides it.
	toolToClient map[string]*Client

	defs       []api.ToolDefinition
	discovered bool
}

var _ tools.Executor = (*Executor)(nil)

// NewExecutor creates an Executor over already connected clients.
func NewExecutor(clients ...*Client) *Executor {
	return &Executor{
		clients:      clients,
		toolToClient: make(map[string]*Client),
	}
}

// Connect dials every configured server and discovers its tools. Servers
// that fail to connect are logged and skipped; an error is returned only
// when servers were configured and none could be reached.
func Connect(ctx context.Context, servers []ServerConfig) (*Executor, error) {
	var clients []*Client
	var errs []error
	for _, cfg := range servers {
		c := NewClient(cfg)
		if err := c.Connect(ctx); err != nil {
			slog.Warn("skipping MCP server", "server", cfg.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		clients = append(clients, c)
	}
	if len(servers) > 0 && len(clients) == 0 {
		return nil, fmt.Errorf("no MCP server reachable: %w", errors.Join(errs...))
	}

	e := NewExecutor(clients...)
	e.Discover(ctx)
	return e, nil
}

// Discover lists the tools of every server once. Later calls are no-ops.
func (e *Executor) Discover(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.discovered {
		return
	}

	for _, client := range e.clients {
		toolDefs, err := client.DiscoverTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server",
				"server", client.Name(),
				"error", err,
			)
			continue
		}

		for _, td := range toolDefs {
			name := td.Function.Name
			if _, exists := e.toolToClient[name]; exists {
				slog.Warn("duplicate MCP tool name, using first provider",
					"tool", name,
					"server", client.Name(),
				)
				continue
			}
			e.toolToClient[name] = client
			e.defs = append(e.defs, td)
		}

		slog.Info("discovered MCP tools",
			"server", client.Name(),
			"count", len(toolDefs),
		)
	}

	e.discovered = true
}

// Definitions returns the discovered tools of all servers.
func (e *Executor) Definitions() []api.ToolDefinition {
	e.Discover(context.Background())

	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]api.ToolDefinition(nil), e.defs...)
}

// CanExecute returns true if any connected MCP server provides the named tool.
func (e *Executor) CanExecute(toolName string) bool {
	e.Discover(context.Background())

	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.toolToClient[toolName]
	return ok
}

// Execute routes the tool call to the correct MCP server and returns the result.
func (e *Executor) Execute(ctx context.Context, call api.ToolCall) (*tools.ToolResult, error) {
	e.Discover(ctx)

	e.mu.RLock()
	client, ok := e.toolToClient[call.Function.Name]
	e.mu.RUnlock()

	if !ok {
		return tools.ErrorResult(call, "no MCP server provides tool %q", call.Function.Name), nil
	}
	return client.CallTool(ctx, call)
}

// Close closes all MCP client connections.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for _, client := range e.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", client.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
