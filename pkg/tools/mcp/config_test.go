package mcp

import (
	"net/http"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestServerConfigTransport(t *testing.T) {
	client := &http.Client{}

	tests := []struct {
		transport string
		check     func(t *testing.T, tr mcp.Transport)
	}{
		{"", func(t *testing.T, tr mcp.Transport) {
			if s, ok := tr.(*mcp.StreamableClientTransport); !ok || s.Endpoint != "http://mcp.local/mcp" || s.HTTPClient != client {
				t.Errorf("transport = %#v, want streamable HTTP with client", tr)
			}
		}},
		{TransportStreamableHTTP, func(t *testing.T, tr mcp.Transport) {
			if _, ok := tr.(*mcp.StreamableClientTransport); !ok {
				t.Errorf("transport = %T, want *mcp.StreamableClientTransport", tr)
			}
		}},
		{TransportSSE, func(t *testing.T, tr mcp.Transport) {
			if s, ok := tr.(*mcp.SSEClientTransport); !ok || s.Endpoint != "http://mcp.local/mcp" {
				t.Errorf("transport = %#v, want SSE", tr)
			}
		}},
	}

	for _, tt := range tests {
		t.Run("transport="+tt.transport, func(t *testing.T) {
			cfg := ServerConfig{Name: "x", Transport: tt.transport, URL: "http://mcp.local/mcp"}
			tr, err := cfg.newTransport(client)
			if err != nil {
				t.Fatalf("newTransport: %v", err)
			}
			tt.check(t, tr)
		})
	}

	if _, err := (ServerConfig{Transport: "stdio"}).newTransport(nil); err == nil {
		t.Error("newTransport(stdio) succeeded, want error")
	}
}
