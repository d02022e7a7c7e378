package stream

import (
	"encoding/json"
	"strings"
)

// DoneSentinel is the payload that marks the end of an event stream.
const DoneSentinel = "[DONE]"

// Kind identifies the variant carried by a Delta.
type Kind int

const (
	// KindReasoning carries model "thinking" text in Delta.Text.
	KindReasoning Kind = iota + 1
	// KindContent carries final answer text in Delta.Text.
	KindContent
	// KindToolCall carries a fragment in Delta.ToolCall.
	KindToolCall
	// KindDone marks the terminal sentinel.
	KindDone
	// KindMalformed carries the unparseable payload in Delta.Raw and the
	// parse failure in Delta.Err.
	KindMalformed
	// KindError carries an in-band error message in Delta.Text.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindReasoning:
		return "reasoning"
	case KindContent:
		return "content"
	case KindToolCall:
		return "tool_call"
	case KindDone:
		return "done"
	case KindMalformed:
		return "malformed"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ToolCallFragment is one piece of a tool call as it arrives on the wire.
// ID is empty for continuation fragments.
type ToolCallFragment struct {
	Index     int
	ID        string
	Type      string
	Name      string
	ArgsChunk string
}

// Delta is one incremental unit of a streamed response.
type Delta struct {
	Kind     Kind
	Text     string
	ToolCall *ToolCallFragment
	Raw      string
	Err      error
}

// Decode converts one event-stream payload (the text after "data:") into
// deltas.
//
// The result is empty when a well-formed frame carries nothing observable
// (role-only or usage-only chunks, empty text). Tool-call fragments come
// first, one per entry, followed by at most one text delta: reasoning text
// takes precedence over answer text within a single frame.
func Decode(payload string) []Delta {
	payload = strings.TrimSpace(payload)
	if payload == DoneSentinel {
		return []Delta{{Kind: KindDone}}
	}

	var chunk ChatCompletionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return []Delta{{Kind: KindMalformed, Raw: payload, Err: err}}
	}

	if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
		return []Delta{{Kind: KindError, Text: errorMessage(chunk.Error)}}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}

	delta := chunk.Choices[0].Delta
	var out []Delta

	for _, tc := range delta.ToolCalls {
		out = append(out, Delta{
			Kind: KindToolCall,
			ToolCall: &ToolCallFragment{
				Index:     tc.Index,
				ID:        tc.ID,
				Type:      tc.Type,
				Name:      tc.Function.Name,
				ArgsChunk: tc.Function.Arguments,
			},
		})
	}

	if reasoning := reasoningText(delta); reasoning != "" {
		out = append(out, Delta{Kind: KindReasoning, Text: reasoning})
	} else if content := deref(delta.Content); content != "" {
		out = append(out, Delta{Kind: KindContent, Text: content})
	}

	return out
}

func reasoningText(d ChatChunkDelta) string {
	if r := deref(d.ReasoningContent); r != "" {
		return r
	}
	return deref(d.Reasoning)
}

// errorMessage extracts a human-readable message from the "error" member of
// a frame. The member is either a string (the relay's synthetic frame, which
// may itself hold an upstream JSON error body) or an error object.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if msg := ExtractErrorMessage(s); msg != "" {
			return msg
		}
		return s
	}

	var body ChatErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(raw)
}

// ExtractErrorMessage tries to parse text as a Chat Completions error
// envelope and returns the message if found.
func ExtractErrorMessage(text string) string {
	var errResp ChatErrorResponse
	if err := json.Unmarshal([]byte(text), &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Truncate limits a string to maxLen bytes for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
