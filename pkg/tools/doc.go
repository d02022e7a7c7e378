// Package tools defines the tool-execution collaborator used by the chat
// session controller. When a model response ends with tool calls, the
// controller hands them to an Executor and feeds the results back to the
// model in a follow-up exchange.
//
// Registry runs in-process Go functions, pkg/tools/mcp runs tools hosted
// on MCP servers, and MultiExecutor routes a call to the first executor
// that can handle it.
package tools
