package tools

import (
	"slices"

	"github.com/rhuss/streamrelay/pkg/api"
)

// Rejection returns the error result for a call whose tool is not in
// allowed, or nil when the call may run. An empty allow list permits every
// call. The result is tied to the call itself, so calls with empty or
// repeated IDs are judged one by one.
func Rejection(call api.ToolCall, allowed []string) *ToolResult {
	if len(allowed) == 0 || slices.Contains(allowed, call.Function.Name) {
		return nil
	}
	return ErrorResult(call, "tool %s is not in the allowed tools list", call.Function.Name)
}
