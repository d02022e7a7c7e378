package relay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/rhuss/streamrelay/pkg/stream"
)

func TestHeartbeatFrame_OpenAI(t *testing.T) {
	hb := &heartbeat{cfg: Config{}.withDefaults().Heartbeat, clock: newFakeClock()}
	frame := string(hb.frame())

	payload, ok := stream.PayloadOf(strings.TrimSuffix(frame, "\n\n"))
	if !ok || !strings.HasSuffix(frame, "\n\n") {
		t.Fatalf("frame is not a complete data event: %q", frame)
	}
	if !IsHeartbeat(payload) {
		t.Errorf("IsHeartbeat(%q) = false", payload)
	}
	if got := gjson.Get(payload, "object").String(); got != "chat.completion.chunk" {
		t.Errorf("object = %q", got)
	}
	if got := gjson.Get(payload, "created").Int(); got != 1700000000 {
		t.Errorf("created = %d, want fake clock time", got)
	}
	if got := gjson.Get(payload, "choices.0.delta.reasoning_content").String(); got != DefaultHeartbeatText {
		t.Errorf("reasoning_content = %q", got)
	}
}

func TestHeartbeatFrame_Gemini(t *testing.T) {
	cfg := Config{Heartbeat: HeartbeatConfig{Format: FormatGemini, Text: "thinking..."}}.withDefaults()
	hb := &heartbeat{cfg: cfg.Heartbeat, clock: newFakeClock()}

	payload, _ := stream.PayloadOf(strings.TrimSpace(string(hb.frame())))
	if got := gjson.Get(payload, "candidates.0.content.parts.0.text").String(); got != "thinking..." {
		t.Errorf("text = %q", got)
	}
	if got := gjson.Get(payload, "candidates.0.content.role").String(); got != "model" {
		t.Errorf("role = %q", got)
	}
	if got := gjson.Get(payload, "candidates.0.safetyRatings.#").Int(); got != 4 {
		t.Errorf("safetyRatings = %d, want 4", got)
	}
	if len(stream.Decode(payload)) != 0 {
		t.Error("gemini heartbeat should not decode into chat deltas")
	}
}

func TestIsHeartbeat(t *testing.T) {
	if IsHeartbeat(contentChunk) {
		t.Error("model chunk reported as heartbeat")
	}
	if IsHeartbeat("[DONE]") || IsHeartbeat("{bad") {
		t.Error("non-JSON payload reported as heartbeat")
	}
}

func TestFrameWriter_RefusesHeartbeatOnceLive(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)

	if ok, err := fw.WriteHeartbeat([]byte("hb1\n")); !ok || err != nil {
		t.Fatalf("first heartbeat = %v, %v", ok, err)
	}
	if _, err := fw.WritePayload([]byte("payload\n")); err != nil {
		t.Fatal(err)
	}
	if ok, _ := fw.WriteHeartbeat([]byte("hb2\n")); ok {
		t.Error("heartbeat written after payload")
	}
	if !fw.Live() {
		t.Error("writer should be live")
	}
	if buf.String() != "hb1\npayload\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFrameWriter_ErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	if err := fw.WriteError(`boom "quoted"`); err != nil {
		t.Fatal(err)
	}
	want := "data: {\"error\":\"boom \\\"quoted\\\"\"}\n\n"
	if buf.String() != want {
		t.Errorf("frame = %q, want %q", buf.String(), want)
	}
}

func TestHeartbeatRun_StopsWhenUpstreamDone(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	hb := &heartbeat{cfg: Config{}.withDefaults().Heartbeat, clock: newFakeClock()}

	done := make(chan struct{})
	close(done)
	if err := hb.run(context.Background(), fw, done); err != nil {
		t.Fatalf("run = %v", err)
	}
	if strings.Count(buf.String(), "data: ") != 1 {
		t.Errorf("expected exactly the initial heartbeat, got %q", buf.String())
	}
}

func TestHeartbeatRun_ZeroBudget(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	hb := &heartbeat{cfg: HeartbeatConfig{Interval: 1, MaxCount: 0}, clock: newFakeClock()}

	if err := hb.run(context.Background(), fw, nil); !errors.Is(err, errHeartbeatsExhausted) {
		t.Fatalf("run = %v, want errHeartbeatsExhausted", err)
	}
}

func TestHeartbeatRun_LiveWriterIgnoresBudget(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	if _, err := fw.WritePayload([]byte("payload\n")); err != nil {
		t.Fatal(err)
	}
	hb := &heartbeat{cfg: HeartbeatConfig{Interval: 1, MaxCount: 0}, clock: newFakeClock()}

	if err := hb.run(context.Background(), fw, nil); err != nil {
		t.Fatalf("run = %v, want nil once payload has begun", err)
	}
	if buf.String() != "payload\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFrameWriter_Expire(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	if !fw.Expire() {
		t.Fatal("Expire on a silent writer = false, want true")
	}
	if _, err := fw.WritePayload([]byte("late\n")); !errors.Is(err, errHeartbeatsExhausted) {
		t.Errorf("WritePayload after Expire = %v, want errHeartbeatsExhausted", err)
	}
	if buf.Len() != 0 {
		t.Errorf("late payload was written: %q", buf.String())
	}

	live := newFrameWriter(&buf)
	live.WritePayload([]byte("x"))
	if live.Expire() {
		t.Error("Expire on a live writer = true, want false")
	}
	if _, err := live.WritePayload([]byte("y")); err != nil {
		t.Errorf("WritePayload on live writer = %v", err)
	}
}
