// Package mcp provides the MCP (Model Context Protocol) client integration
// for the chat session's tool loop. It connects to external MCP servers,
// discovers their tools, and executes the tool calls a model requests.
//
// The package wraps the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk)
// and implements tools.Executor, so MCP server tools can be combined with
// in-process tools through tools.MultiExecutor.
package mcp
