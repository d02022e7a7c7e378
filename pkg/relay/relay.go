package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
)

// maxErrorBody bounds how much of a non-2xx upstream body is captured for
// the error frame.
const maxErrorBody = 64 << 10

// Request describes one outbound upstream call.
type Request struct {
	// Method defaults to POST.
	Method string
	// Path is appended to the upstream base URL, e.g. "/v1/chat/completions".
	Path string
	// RawQuery is forwarded unchanged.
	RawQuery string
	Body     []byte
	// Stream selects the streaming relay.
	Stream bool
	// APIKey is the credential header value, sent verbatim under the
	// configured header name. Empty sends no credential.
	APIKey string
}

// Result is the relay's answer. Body must be closed by the caller; closing
// a streaming body cancels the upstream call.
type Result struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
	Stream bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient sets the client used for upstream calls. Redirect
// following is disabled on a copy of the client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.httpClient = c }
}

// WithClock sets the clock that drives heartbeats.
func WithClock(c clock.WithTicker) Option {
	return func(r *Relay) { r.clock = c }
}

// Relay forwards requests to one upstream provider.
type Relay struct {
	cfg          Config
	httpClient   *http.Client
	streamClient *http.Client
	clock        clock.WithTicker
}

// New creates a Relay.
func New(cfg Config, opts ...Option) *Relay {
	r := &Relay{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{},
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}

	unary := *r.httpClient
	unary.CheckRedirect = noRedirect
	if r.cfg.Timeout > 0 {
		unary.Timeout = r.cfg.Timeout
	}

	// Streams can legitimately outlast any fixed timeout; their lifetime
	// is controlled by the request context.
	streaming := unary
	streaming.Timeout = 0

	r.httpClient = &unary
	r.streamClient = &streaming
	return r
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Config returns the effective configuration.
func (r *Relay) Config() Config {
	return r.cfg
}

// Send performs the upstream call. In streaming mode it returns at once
// with an event-stream body fed by a background goroutine; upstream
// failures arrive in-band as an error frame. In non-streaming mode the
// upstream status and body are returned unmodified, and only a dial
// failure is reported as an error.
func (r *Relay) Send(ctx context.Context, req *Request) (*Result, error) {
	if req.Stream {
		return r.sendStream(ctx, req), nil
	}
	return r.sendUnary(ctx, req)
}

func (r *Relay) newUpstreamRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	url := r.cfg.BaseURL + req.Path
	if req.RawQuery != "" {
		url += "?" + req.RawQuery
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create upstream request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-store")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if req.APIKey != "" {
		httpReq.Header.Set(r.cfg.APIKeyHeader, req.APIKey)
	}
	return httpReq, nil
}

func (r *Relay) sendUnary(ctx context.Context, req *Request) (*Result, error) {
	httpReq, err := r.newUpstreamRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	debug.Log(debug.Relay, "upstream request", "method", httpReq.Method, "url", httpReq.URL.String(), "stream", false)

	start := r.clock.Now()
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		outcome := "unreachable"
		if ctx.Err() != nil {
			outcome = "cancelled"
		}
		observability.RelaysTotal.WithLabelValues("unary", outcome).Inc()
		return nil, api.NewUpstreamUnreachableError(err)
	}
	observability.UpstreamFirstByteSeconds.WithLabelValues("unary").Observe(r.clock.Since(start).Seconds())
	observability.RelaysTotal.WithLabelValues("unary", statusOutcome(resp.StatusCode)).Inc()

	header := resp.Header.Clone()
	header.Del("Www-Authenticate")
	header.Set("X-Accel-Buffering", "no")

	return &Result{
		Status: resp.StatusCode,
		Header: header,
		Body:   resp.Body,
	}, nil
}

func statusOutcome(status int) string {
	if status >= 200 && status < 300 {
		return "ok"
	}
	return "upstream_error"
}

// streamBody is the client side of the relay pipe.
type streamBody struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	b.cancel()
	return b.PipeReader.Close()
}

func (r *Relay) sendStream(ctx context.Context, req *Request) *Result {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	go r.pump(ctx, cancel, req, pw)

	header := make(http.Header)
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	return &Result{
		Status: http.StatusOK,
		Header: header,
		Body:   &streamBody{PipeReader: pr, cancel: cancel},
		Stream: true,
	}
}

// pump runs the heartbeat loop and the upstream copy as a pair. The first
// to fail cancels the other; pump alone writes the terminal error frame.
func (r *Relay) pump(ctx context.Context, cancel context.CancelFunc, req *Request, pw *io.PipeWriter) {
	defer cancel()
	defer pw.Close()

	observability.RelaysInFlight.Inc()
	defer observability.RelaysInFlight.Dec()

	fw := newFrameWriter(pw)
	hb := &heartbeat{cfg: r.cfg.Heartbeat, clock: r.clock}
	upstreamDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hb.run(gctx, fw, upstreamDone)
	})
	g.Go(func() error {
		defer close(upstreamDone)
		return r.forward(gctx, req, fw)
	})
	err := g.Wait()

	outcome := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil || errors.Is(err, io.ErrClosedPipe):
		outcome = "cancelled"
		debug.Log(debug.Relay, "relay cancelled", "error", err)
	case errors.Is(err, errHeartbeatsExhausted):
		outcome = "heartbeat_exhausted"
		slog.Warn("upstream silent, closing stream",
			"heartbeats", r.cfg.Heartbeat.MaxCount,
			"interval", r.cfg.Heartbeat.Interval,
		)
		_ = fw.WriteError(err.Error())
	default:
		var apiErr *api.APIError
		msg := err.Error()
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
			if apiErr.Type == api.ErrorTypeUpstreamUnreachable {
				outcome = "unreachable"
			} else {
				outcome = "upstream_error"
			}
		} else {
			outcome = "stream_error"
		}
		slog.Warn("upstream stream failed", "error", err)
		_ = fw.WriteError(msg)
	}
	observability.RelaysTotal.WithLabelValues("stream", outcome).Inc()
}

// forward performs the upstream call and copies its body into fw.
func (r *Relay) forward(ctx context.Context, req *Request, fw *frameWriter) error {
	httpReq, err := r.newUpstreamRequest(ctx, req)
	if err != nil {
		return err
	}

	debug.Log(debug.Relay, "upstream request", "method", httpReq.Method, "url", httpReq.URL.String(), "stream", true)

	start := r.clock.Now()
	resp, err := r.streamClient.Do(httpReq)
	if err != nil {
		return api.NewUpstreamUnreachableError(err)
	}
	defer resp.Body.Close()
	observability.UpstreamFirstByteSeconds.WithLabelValues("stream").Observe(r.clock.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return api.NewUpstreamNonSuccessError(resp.StatusCode, string(body))
	}

	buf := make([]byte, 32<<10)
	first := true
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if first {
				debug.Log(debug.Relay, "first upstream byte", "after", r.clock.Since(start))
				first = false
			}
			if _, werr := fw.WritePayload(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("reading upstream stream: %w", rerr)
		}
	}
}
