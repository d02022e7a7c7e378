package mcp

import (
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transport names accepted in ServerConfig.Transport.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ServerConfig describes one MCP server. An empty Transport means
// streamable HTTP. Headers are added to every request, usually for
// credentials.
type ServerConfig struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// newTransport builds the SDK transport for the server. A nil httpClient
// leaves the SDK default in place.
func (c ServerConfig) newTransport(httpClient *http.Client) (mcp.Transport, error) {
	switch c.Transport {
	case TransportSSE:
		t := &mcp.SSEClientTransport{Endpoint: c.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case TransportStreamableHTTP, "":
		t := &mcp.StreamableClientTransport{Endpoint: c.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.Transport)
	}
}
