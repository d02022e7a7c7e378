// Command mcp-test-server runs a small MCP server for trying tool calls
// with the chat client. It provides "get_weather" (canned answers) and
// "echo" over streamable HTTP on /mcp.
//
// Configuration:
//
//	PORT - Listen port (default: 8090)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	transporthttp "github.com/rhuss/streamrelay/pkg/transport/http"
)

type weatherInput struct {
	Location string `json:"location" jsonschema:"City name, e.g. San Francisco"`
	Unit     string `json:"unit,omitempty" jsonschema:"celsius or fahrenheit"`
}

type echoInput struct {
	Message string `json:"message" jsonschema:"The message to echo back"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "streamrelay-test-mcp", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_weather",
		Description: "Returns the current weather for a city",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in weatherInput) (*mcp.CallToolResult, struct{}, error) {
		if strings.TrimSpace(in.Location) == "" {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "location is required"}},
			}, struct{}{}, nil
		}
		temp, unit := 18, "°C"
		if strings.EqualFold(in.Unit, "fahrenheit") {
			temp, unit = 64, "°F"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%s: %d%s, sunny", in.Location, temp, unit)},
			},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Echo: " + in.Message}},
		}, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	srv := transporthttp.NewServer(mux, []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + port),
	})
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("MCP test server failed", "error", err)
		os.Exit(1)
	}
}
