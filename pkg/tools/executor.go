package tools

import (
	"context"
	"fmt"

	"github.com/rhuss/streamrelay/pkg/api"
)

// Executor executes tool calls requested by the model.
type Executor interface {
	// Definitions returns the tools this executor offers to the model.
	Definitions() []api.ToolDefinition

	// CanExecute checks if this executor can handle the given tool name.
	CanExecute(toolName string) bool

	// Execute runs the tool and returns the result. Failures inside the tool
	// are reported as a result with IsError set; a returned error means the
	// executor itself could not run.
	Execute(ctx context.Context, call api.ToolCall) (*ToolResult, error)
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	// CallID matches the originating ToolCall.ID.
	CallID string

	// Output is the tool output content (text).
	Output string

	// IsError indicates that the output is an error message.
	IsError bool
}

// ErrorResult builds an error result for call.
func ErrorResult(call api.ToolCall, format string, args ...any) *ToolResult {
	return &ToolResult{
		CallID:  call.ID,
		Output:  fmt.Sprintf(format, args...),
		IsError: true,
	}
}

// MultiExecutor routes each call to the first executor that can handle it.
type MultiExecutor []Executor

var _ Executor = MultiExecutor(nil)

// Definitions returns the definitions of all executors. A name offered by
// more than one executor is listed once, from the first executor.
func (m MultiExecutor) Definitions() []api.ToolDefinition {
	seen := make(map[string]bool)
	var defs []api.ToolDefinition
	for _, e := range m {
		for _, d := range e.Definitions() {
			if seen[d.Function.Name] {
				continue
			}
			seen[d.Function.Name] = true
			defs = append(defs, d)
		}
	}
	return defs
}

// CanExecute reports whether any executor handles toolName.
func (m MultiExecutor) CanExecute(toolName string) bool {
	for _, e := range m {
		if e.CanExecute(toolName) {
			return true
		}
	}
	return false
}

// Execute runs call on the first executor that handles it. An unknown tool
// yields an error result so the model can see what went wrong.
func (m MultiExecutor) Execute(ctx context.Context, call api.ToolCall) (*ToolResult, error) {
	for _, e := range m {
		if e.CanExecute(call.Function.Name) {
			return e.Execute(ctx, call)
		}
	}
	return ErrorResult(call, "unknown tool %q", call.Function.Name), nil
}
