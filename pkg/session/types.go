package session

import (
	"net/http"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/tools"
)

// State is the lifecycle position of a chat exchange.
type State int

const (
	StateBuilding State = iota
	StateSent
	StateStreaming
	StateFinished
	StateErrored
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSent:
		return "sent"
	case StateStreaming:
		return "streaming"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends the exchange.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateErrored || s == StateCancelled
}

// ChatRequest is one user turn. Nil overrides fall back to the controller's
// ModelConfig and Stream setting.
type ChatRequest struct {
	Messages []api.ChatMessage

	Model            string
	Temperature      *float64
	TopP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	MaxTokens        *int
	Stream           *bool
}

// Response describes the last upstream response of an exchange.
type Response struct {
	ExchangeID string
	Status     int
	Header     http.Header
}

// Callbacks receives the progress of one Chat call. Callbacks are never
// invoked concurrently. Exactly one of OnFinish and OnError is called, and
// nothing is called after it. Every field is optional.
type Callbacks struct {
	// OnUpdate receives the paced answer text: the full revealed text and
	// the slice just added.
	OnUpdate func(revealed, delta string)
	// OnReasoning receives reasoning text as it arrives, unpaced.
	OnReasoning func(reasoning, delta string)
	// OnToolCall is called after each executed tool.
	OnToolCall func(call api.ToolCall, result tools.ToolResult)
	// OnFinish receives the final answer. A cancelled exchange finishes
	// with the text revealed so far.
	OnFinish func(text string, resp *Response)
	OnError  func(err error)
	// OnController hands out the abort function before the request is sent.
	OnController func(abort func())
	OnState      func(state State)
}
