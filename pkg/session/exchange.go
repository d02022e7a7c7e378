package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
	"github.com/rhuss/streamrelay/pkg/relay"
	"github.com/rhuss/streamrelay/pkg/stream"
)

const (
	// maxResponseBody bounds non-streaming and error bodies.
	maxResponseBody = 8 << 20

	unauthorizedHint = "unauthorized: check the API key configured for this client or the relay"
)

// round performs one upstream request and collects its answer text and
// tool calls. Content is pushed to the reveal scheduler as it arrives.
func (x *exchange) round(ctx context.Context, payload api.RequestPayload) (string, []api.ToolCall, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, api.NewServerError(fmt.Sprintf("encoding request: %s", err.Error()))
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dl := armDeadline(rctx, cancel, x.ctrl.clock, x.ctrl.cfg.Timeouts.For(payload.Model))
	defer dl.disarm()

	req := &relay.Request{
		Path:   x.ctrl.cfg.Path,
		Body:   body,
		Stream: payload.Stream,
	}
	if x.ctrl.cfg.APIKey != "" {
		req.APIKey = "Bearer " + x.ctrl.cfg.APIKey
	}

	x.setState(StateSent)
	res, err := x.ctrl.sender.Send(rctx, req)
	if err != nil {
		return "", nil, dl.wrap(err)
	}
	defer res.Body.Close()

	x.resp = &Response{ExchangeID: x.id, Status: res.Status, Header: res.Header}

	if res.Status < 200 || res.Status >= 300 {
		dl.disarm()
		data, _ := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
		return "", nil, upstreamError(res.Status, string(data))
	}

	if res.Stream || isEventStream(res.Header) {
		return x.readStream(rctx, res.Body, dl)
	}
	return x.readUnary(res.Body, dl)
}

func (x *exchange) readStream(ctx context.Context, body io.Reader, dl *deadline) (string, []api.ToolCall, error) {
	r := stream.NewReader(body)
	defer r.Close()

	acc := stream.NewAccumulator()
	var text strings.Builder
	streaming := false

	for {
		payload, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() == nil {
				err = fmt.Errorf("reading response stream: %w", err)
			}
			return text.String(), nil, dl.wrap(err)
		}

		if relay.IsHeartbeat(payload) {
			observability.FramesTotal.WithLabelValues("heartbeat").Inc()
			debug.Trace(debug.Heartbeat, "skipping heartbeat frame", "exchange_id", x.id)
			continue
		}

		deltas := stream.Decode(payload)
		if len(deltas) == 0 {
			debug.Trace(debug.Stream, "skipping frame without deltas", "exchange_id", x.id)
			continue
		}

		dl.disarm()
		if !streaming {
			streaming = true
			x.setState(StateStreaming)
		}

		done := false
		for _, d := range deltas {
			observability.FramesTotal.WithLabelValues(d.Kind.String()).Inc()

			switch d.Kind {
			case stream.KindDone:
				done = true
			case stream.KindMalformed:
				slog.Warn("skipping malformed frame",
					"exchange_id", x.id,
					"payload", stream.Truncate(d.Raw, 200),
					"error", d.Err,
				)
			case stream.KindError:
				return text.String(), nil, inBandError(d.Text)
			case stream.KindReasoning:
				x.addReasoning(d.Text)
			case stream.KindContent:
				text.WriteString(d.Text)
				x.sched.Push(d.Text)
			case stream.KindToolCall:
				if err := acc.Merge(*d.ToolCall); err != nil {
					observability.OrphanToolFragmentsTotal.Inc()
					slog.Warn("dropping tool call fragment", "exchange_id", x.id, "error", err)
				}
			}
		}
		if done {
			break
		}
	}

	calls := acc.Finalize()
	debug.Log(debug.Stream, "stream complete",
		"exchange_id", x.id,
		"content_runes", len([]rune(text.String())),
		"tool_calls", len(calls),
	)
	return text.String(), calls, nil
}

// readUnary handles a complete chat.completion body.
func (x *exchange) readUnary(body io.Reader, dl *deadline) (string, []api.ToolCall, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBody))
	dl.disarm()
	if err != nil {
		return "", nil, dl.wrap(fmt.Errorf("reading response: %w", err))
	}
	x.setState(StateStreaming)

	if !gjson.ValidBytes(data) {
		return "", nil, api.NewMalformedFrameError("invalid JSON response: " + stream.Truncate(string(data), 200))
	}
	res := gjson.ParseBytes(data)

	if e := res.Get("error"); e.Exists() && e.Type != gjson.Null {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.String()
		}
		return "", nil, inBandError(msg)
	}

	msg := res.Get("choices.0.message")
	reasoning := msg.Get("reasoning_content").String()
	if reasoning == "" {
		reasoning = msg.Get("reasoning").String()
	}
	if reasoning != "" {
		x.addReasoning(reasoning)
	}

	content := msg.Get("content").String()
	x.sched.Push(content)

	var calls []api.ToolCall
	if tc := msg.Get("tool_calls"); tc.IsArray() {
		if err := json.Unmarshal([]byte(tc.Raw), &calls); err != nil {
			return content, nil, api.NewMalformedFrameError("invalid tool_calls: " + err.Error())
		}
		for i := range calls {
			if calls[i].Type == "" {
				calls[i].Type = stream.DefaultToolType
			}
		}
	}
	return content, calls, nil
}

func isEventStream(h http.Header) bool {
	return strings.Contains(h.Get("Content-Type"), "text/event-stream")
}

// upstreamError builds the error for a non-2xx response. A 401 carries a
// hint about credentials.
func upstreamError(status int, body string) error {
	msg := stream.ExtractErrorMessage(body)
	if msg == "" {
		msg = strings.TrimSpace(body)
	}
	if status == http.StatusUnauthorized {
		if msg != "" {
			msg += "\n\n"
		}
		msg += unauthorizedHint
	}
	return api.NewUpstreamNonSuccessError(status, msg)
}

// inBandError builds the error for an error frame inside a 2xx response.
func inBandError(msg string) error {
	if msg == "" {
		msg = "upstream reported an error"
	}
	return api.NewUpstreamNonSuccessError(http.StatusBadGateway, msg)
}

// deadline cancels a request whose first real byte does not arrive in time.
type deadline struct {
	timeout  time.Duration
	disarmed chan struct{}
	once     sync.Once
	fired    atomic.Bool
}

func armDeadline(ctx context.Context, cancel context.CancelFunc, clk clock.WithTicker, timeout time.Duration) *deadline {
	dl := &deadline{timeout: timeout, disarmed: make(chan struct{})}
	timer := clk.NewTimer(timeout)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C():
			select {
			case <-dl.disarmed:
			default:
				dl.fired.Store(true)
				cancel()
			}
		case <-dl.disarmed:
		case <-ctx.Done():
		}
	}()
	return dl
}

func (d *deadline) disarm() {
	d.once.Do(func() { close(d.disarmed) })
}

// wrap turns the failure caused by an expired deadline into a timeout
// error.
func (d *deadline) wrap(err error) error {
	if d.fired.Load() {
		return api.NewTimeoutError(fmt.Sprintf("no response within %s", d.timeout))
	}
	return err
}
