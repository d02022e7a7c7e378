package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
)

// heartbeatIDPrefix marks OpenAI-format heartbeat chunks so consumers can
// tell them apart from model output.
const heartbeatIDPrefix = "heartbeat-"

var errHeartbeatsExhausted = errors.New("heartbeat limit reached before the upstream responded")

// IsHeartbeat reports whether an event-stream payload is a synthetic
// OpenAI-format heartbeat frame.
func IsHeartbeat(payload string) bool {
	return strings.HasPrefix(gjson.Get(payload, "id").String(), heartbeatIDPrefix)
}

type heartbeatChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []heartbeatChoice `json:"choices"`
}

type heartbeatChoice struct {
	Index        int            `json:"index"`
	Delta        map[string]any `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type geminiHeartbeat struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content       geminiContent  `json:"content"`
	Index         int            `json:"index"`
	SafetyRatings []safetyRating `json:"safetyRatings"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type safetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

var negligibleRatings = []safetyRating{
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Probability: "NEGLIGIBLE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Probability: "NEGLIGIBLE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Probability: "NEGLIGIBLE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Probability: "NEGLIGIBLE"},
}

// heartbeat emits keep-alive frames into a frameWriter until the upstream
// produces its first byte.
type heartbeat struct {
	cfg   HeartbeatConfig
	clock clock.WithTicker
}

// frame renders one complete "data: ...\n\n" heartbeat event.
func (h *heartbeat) frame() []byte {
	var v any
	switch h.cfg.Format {
	case FormatGemini:
		v = geminiHeartbeat{Candidates: []geminiCandidate{{
			Content: geminiContent{
				Parts: []geminiPart{{Text: h.cfg.Text}},
				Role:  "model",
			},
			SafetyRatings: negligibleRatings,
		}}}
	default:
		v = heartbeatChunk{
			ID:      heartbeatIDPrefix + uuid.NewString(),
			Object:  "chat.completion.chunk",
			Created: h.clock.Now().Unix(),
			Model:   "heartbeat",
			Choices: []heartbeatChoice{{
				Delta: map[string]any{"role": "assistant", "reasoning_content": h.cfg.Text},
			}},
		}
	}
	data, _ := json.Marshal(v)
	return []byte(fmt.Sprintf("data: %s\n\n", data))
}

// run writes one heartbeat immediately and one per interval until fw goes
// live, upstreamDone closes, or ctx ends. It returns errHeartbeatsExhausted
// when MaxCount heartbeats went unanswered and no payload byte was written.
func (h *heartbeat) run(ctx context.Context, fw *frameWriter, upstreamDone <-chan struct{}) error {
	ticker := h.clock.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	sent := 0
	emit := func() (bool, error) {
		if fw.Live() {
			return false, nil
		}
		if sent >= h.cfg.MaxCount {
			if !fw.Expire() {
				return false, nil
			}
			return false, errHeartbeatsExhausted
		}
		written, err := fw.WriteHeartbeat(h.frame())
		if err != nil || !written {
			return false, err
		}
		sent++
		observability.HeartbeatsTotal.WithLabelValues(string(h.cfg.Format)).Inc()
		debug.Log(debug.Heartbeat, "heartbeat sent", "count", sent, "format", h.cfg.Format)
		return true, nil
	}

	if more, err := emit(); !more {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-upstreamDone:
			return nil
		case <-ticker.C():
			if more, err := emit(); !more {
				return err
			}
		}
	}
}
