// Command mock-backend runs a deterministic, deliberately slow chat
// completions provider for exercising the relay and the chat client. It
// stays silent before answering, streams reasoning before content, splits
// tool-call arguments across fragments, and fails on request.
//
// The last user message selects the behavior:
//
//	contains "tool"   - request get_weather with fragmented arguments
//	contains "fail"   - respond 500 with a JSON error body
//	contains "broken" - emit an in-band error frame after a few tokens
//	otherwise         - reason, then answer
//
// Configuration:
//
//	MOCK_PORT  - Listen port (default: 9090)
//	MOCK_DELAY - Silence before the first byte (default: 12s)
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	transporthttp "github.com/rhuss/streamrelay/pkg/transport/http"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	delay := 12 * time.Second
	if v := os.Getenv("MOCK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		delay = d
	}

	b := &backend{delay: delay, tokenGap: 40 * time.Millisecond}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", b.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := transporthttp.NewServer(mux, []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + port),
		transporthttp.WithShutdownTimeout(5 * time.Second),
	})
	slog.Info("mock backend configured", "port", port, "delay", delay)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []any         `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role             string     `json:"role"`
	Content          *string    `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function funcCall `json:"function"`
}

type funcCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// --- Scenarios ---

type scenario struct {
	reasoning []string
	content   []string
	// argChunks split the get_weather arguments; non-empty means a tool call.
	argChunks []string
	failAfter int
}

const weatherArgs = `{"location":"San Francisco","unit":"celsius"}`

func pickScenario(req *chatRequest) scenario {
	last := strings.ToLower(lastUserMessage(req))

	// A tool result in the history means the follow-up round.
	if hasToolResult(req) {
		return scenario{
			reasoning: []string{"The tool ", "answered; ", "summarizing."},
			content:   []string{"It is ", "18°C ", "and sunny ", "in San Francisco."},
		}
	}
	switch {
	case strings.Contains(last, "tool") && len(req.Tools) > 0:
		return scenario{
			reasoning: []string{"I should ", "look up ", "the weather."},
			argChunks: []string{`{"loca`, `tion":"San Fr`, `ancisco","unit"`, `:"celsius"}`},
		}
	case strings.Contains(last, "broken"):
		return scenario{content: []string{"Starting ", "an answer "}, failAfter: 2}
	default:
		return scenario{
			reasoning: []string{"Let me ", "think ", "about ", "this."},
			content:   []string{"Hello", ", ", "nice ", "day", "!"},
		}
	}
}

// --- Handler ---

type backend struct {
	delay    time.Duration
	tokenGap time.Duration
}

func (b *backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}
	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	if strings.Contains(strings.ToLower(lastUserMessage(&req)), "fail") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"mock backend failure","type":"server_error"}}`))
		return
	}

	// Silence before the first byte; this is what heartbeats cover.
	select {
	case <-time.After(b.delay):
	case <-r.Context().Done():
		return
	}

	sc := pickScenario(&req)
	if req.Stream {
		b.stream(w, r, model, sc)
		return
	}

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{{
			Message: chatMsg{
				Role:             "assistant",
				ReasoningContent: strings.Join(sc.reasoning, ""),
			},
			FinishReason: "stop",
		}},
	}
	if len(sc.argChunks) > 0 {
		resp.Choices[0].Message.ToolCalls = []toolCall{{
			ID:       "call_mock_1",
			Type:     "function",
			Function: funcCall{Name: "get_weather", Arguments: weatherArgs},
		}}
		resp.Choices[0].FinishReason = "tool_calls"
	} else {
		text := strings.Join(sc.content, "")
		resp.Choices[0].Message.Content = &text
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (b *backend) stream(w http.ResponseWriter, r *http.Request, model string, sc scenario) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	send := func(delta map[string]any, finish any) bool {
		writeChunk(w, model, delta, finish)
		flusher.Flush()
		select {
		case <-time.After(b.tokenGap):
			return true
		case <-r.Context().Done():
			return false
		}
	}

	if !send(map[string]any{"role": "assistant"}, nil) {
		return
	}
	for _, t := range sc.reasoning {
		if !send(map[string]any{"reasoning_content": t}, nil) {
			return
		}
	}
	for i, t := range sc.content {
		if sc.failAfter > 0 && i == sc.failAfter {
			break
		}
		if !send(map[string]any{"content": t}, nil) {
			return
		}
	}
	if sc.failAfter > 0 {
		fmt.Fprintf(w, "data: %s\n\n", `{"error":{"message":"mock stream interrupted","type":"server_error"}}`)
		flusher.Flush()
		return
	}

	finish := "stop"
	for i, chunk := range sc.argChunks {
		tc := map[string]any{"index": 0, "function": map[string]any{"arguments": chunk}}
		if i == 0 {
			tc["id"] = "call_mock_1"
			tc["type"] = "function"
			tc["function"].(map[string]any)["name"] = "get_weather"
		}
		if !send(map[string]any{"tool_calls": []any{tc}}, nil) {
			return
		}
		finish = "tool_calls"
	}

	writeChunk(w, model, map[string]any{}, finish)
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, model string, delta map[string]any, finish any) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	}
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "streamrelay-mock"},
			{"id": "mock-thinking", "object": "model", "owned_by": "streamrelay-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		switch v := req.Messages[i].Content.(type) {
		case string:
			return v
		case []any:
			for _, part := range v {
				if m, ok := part.(map[string]any); ok && m["type"] == "text" {
					if text, ok := m["text"].(string); ok {
						return text
					}
				}
			}
		}
	}
	return ""
}

func hasToolResult(req *chatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "tool" {
			return true
		}
	}
	return false
}
