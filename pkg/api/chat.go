package api

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one element of multimodal message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatMessage is a single conversation turn. Content holds either a string
// or a []ContentPart; a nil Content marshals as JSON null, which is what
// assistant tool-call messages carry.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Content    any        `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// UnmarshalJSON decodes Content into a string or a []ContentPart.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type wire struct {
		Role       Role            `json:"role"`
		Content    json.RawMessage `json:"content"`
		ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
		ToolCallID string          `json:"tool_call_id,omitempty"`
		Name       string          `json:"name,omitempty"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.ToolCalls = w.ToolCalls
	m.ToolCallID = w.ToolCallID
	m.Name = w.Name
	m.Content = nil

	trimmed := strings.TrimSpace(string(w.Content))
	switch {
	case trimmed == "" || trimmed == "null":
	case strings.HasPrefix(trimmed, "["):
		var parts []ContentPart
		if err := json.Unmarshal(w.Content, &parts); err != nil {
			return fmt.Errorf("decoding content parts: %w", err)
		}
		m.Content = parts
	default:
		var s string
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return fmt.Errorf("decoding content: %w", err)
		}
		m.Content = s
	}
	return nil
}

// Text returns the textual content of the message. For multimodal content
// the text parts are joined with newlines; non-text parts are skipped.
func (m ChatMessage) Text() string {
	switch v := m.Content.(type) {
	case string:
		return v
	case []ContentPart:
		var texts []string
		for _, p := range v {
			if p.Type == "text" && p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	default:
		return ""
	}
}

var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> blocks from assistant text so
// earlier reasoning is not resent to the model as part of the history.
func StripThinking(text string) string {
	return strings.TrimSpace(thinkBlockPattern.ReplaceAllString(text, ""))
}

// FunctionCall holds the function name and the JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a completed function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ParseArguments decodes the accumulated argument string as one JSON object.
// An empty argument string decodes to an empty map.
func (tc ToolCall) ParseArguments() (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(tc.Function.Arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("tool call %q (%s): invalid arguments JSON: %w", tc.ID, tc.Function.Name, err)
	}
	return args, nil
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is the function half of a ToolDefinition.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// RequestPayload is the body sent to the upstream chat completions
// endpoint. It is built once per exchange.
type RequestPayload struct {
	Messages         []ChatMessage    `json:"messages"`
	Model            string           `json:"model"`
	Stream           bool             `json:"stream"`
	Temperature      float64          `json:"temperature"`
	PresencePenalty  float64          `json:"presence_penalty"`
	FrequencyPenalty float64          `json:"frequency_penalty"`
	TopP             float64          `json:"top_p"`
	MaxTokens        *int             `json:"max_tokens,omitempty"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
}

// ToolResultMessage builds the tool-role message that carries a tool's
// output back to the model.
func ToolResultMessage(callID, output string) ChatMessage {
	return ChatMessage{
		Role:       RoleTool,
		Content:    output,
		ToolCallID: callID,
	}
}

// AssistantToolCallMessage builds the assistant message that precedes tool
// results in the follow-up exchange.
func AssistantToolCallMessage(content string, calls []ToolCall) ChatMessage {
	msg := ChatMessage{
		Role:      RoleAssistant,
		ToolCalls: calls,
	}
	if content != "" {
		msg.Content = content
	}
	return msg
}
