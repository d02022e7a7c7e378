package tools

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
)

// Func is an in-process tool implementation. args holds the decoded
// argument object of the call.
type Func func(ctx context.Context, args map[string]any) (string, error)

type registeredTool struct {
	def api.ToolDefinition
	fn  Func
}

// Registry executes tools implemented as Go functions.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]registeredTool
}

var _ Executor = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool. Names are resolved first-come, first-served: a
// second registration under the same name is ignored with a warning.
func (r *Registry) Register(def api.ToolDefinition, fn Func) {
	if def.Type == "" {
		def.Type = "function"
	}
	name := def.Function.Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		slog.Warn("tool name conflict, keeping first registration", "tool", name)
		return
	}
	r.tools[name] = registeredTool{def: def, fn: fn}
	r.order = append(r.order, name)
	debug.Log(debug.Tools, "registered tool", "tool", name)
}

// Definitions returns the registered tool definitions in registration order.
func (r *Registry) Definitions() []api.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]api.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// CanExecute returns true if a tool with the given name is registered.
func (r *Registry) CanExecute(toolName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[toolName]
	return ok
}

// Execute decodes the call arguments and runs the registered function.
// Argument errors, function errors and panics all become error results.
func (r *Registry) Execute(ctx context.Context, call api.ToolCall) (result *ToolResult, err error) {
	r.mu.RLock()
	t, ok := r.tools[call.Function.Name]
	r.mu.RUnlock()

	if !ok {
		return ErrorResult(call, "no tool registered as %q", call.Function.Name), nil
	}

	args, perr := call.ParseArguments()
	if perr != nil {
		return ErrorResult(call, "%v", perr), nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", call.Function.Name, "panic", rec)
			result = ErrorResult(call, "internal error: tool %q panicked", call.Function.Name)
			err = nil
		}
	}()

	out, ferr := t.fn(ctx, args)
	if ferr != nil {
		return ErrorResult(call, "%v", ferr), nil
	}
	return &ToolResult{CallID: call.ID, Output: out}, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

