package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
	"github.com/rhuss/streamrelay/pkg/relay"
	"github.com/rhuss/streamrelay/pkg/reveal"
	"github.com/rhuss/streamrelay/pkg/tools"
)

// Sender performs one upstream call. *relay.Relay implements it.
type Sender interface {
	Send(ctx context.Context, req *relay.Request) (*relay.Result, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock that drives request timeouts and reveal pacing.
func WithClock(c clock.WithTicker) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithTools sets the executor for tool calls. Without one, tool calls end
// the exchange with whatever text the model produced.
func WithTools(e tools.Executor) Option {
	return func(ctrl *Controller) { ctrl.tools = e }
}

// Controller runs chat exchanges against one Sender.
type Controller struct {
	cfg    Config
	sender Sender
	tools  tools.Executor
	clock  clock.WithTicker
}

// New creates a Controller.
func New(cfg Config, sender Sender, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		sender: sender,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat runs one exchange, including any tool follow-ups, and blocks until
// the terminal callback has returned. It returns the terminal state.
func (c *Controller) Chat(ctx context.Context, req ChatRequest, cb Callbacks) State {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	x := &exchange{
		ctrl:   c,
		id:     api.NewExchangeID(),
		cb:     cb,
		cancel: cancel,
		start:  c.clock.Now(),
	}
	return x.run(ctx, req)
}

// buildPayload merges the configured model defaults with the request
// overrides. Assistant history is resent without its <think> blocks.
func (c *Controller) buildPayload(req ChatRequest) api.RequestPayload {
	m := c.cfg.Model
	p := api.RequestPayload{
		Model:            m.Model,
		Stream:           c.cfg.Stream,
		Temperature:      m.Temperature,
		TopP:             m.TopP,
		PresencePenalty:  m.PresencePenalty,
		FrequencyPenalty: m.FrequencyPenalty,
	}
	if m.MaxTokens > 0 {
		n := m.MaxTokens
		p.MaxTokens = &n
	}

	if req.Model != "" {
		p.Model = req.Model
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	if req.PresencePenalty != nil {
		p.PresencePenalty = *req.PresencePenalty
	}
	if req.FrequencyPenalty != nil {
		p.FrequencyPenalty = *req.FrequencyPenalty
	}
	if req.MaxTokens != nil {
		n := *req.MaxTokens
		p.MaxTokens = &n
	}
	if req.Stream != nil {
		p.Stream = *req.Stream
	}

	p.Messages = make([]api.ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == api.RoleAssistant && msg.Content != nil {
			msg.Content = api.StripThinking(msg.Text())
		}
		p.Messages = append(p.Messages, msg)
	}

	if c.tools != nil {
		p.Tools = c.tools.Definitions()
	}
	return p
}

// exchange is the state of one Chat call.
type exchange struct {
	ctrl   *Controller
	id     string
	cb     Callbacks
	cancel context.CancelFunc
	start  time.Time
	model  string
	sched  *reveal.Scheduler

	// cbMu keeps callbacks from running concurrently.
	cbMu sync.Mutex

	// Written by the controller goroutine only.
	reasoning strings.Builder
	resp      *Response
	rounds    int

	// Terminal result reported by the scheduler.
	mu        sync.Mutex
	finalText string
	finalErr  error
}

func (x *exchange) run(ctx context.Context, req ChatRequest) State {
	x.setState(StateBuilding)
	payload := x.ctrl.buildPayload(req)
	x.model = payload.Model

	debug.Log(debug.Session, "exchange started",
		"exchange_id", x.id,
		"model", payload.Model,
		"stream", payload.Stream,
		"messages", len(payload.Messages),
		"tools", len(payload.Tools),
	)

	if x.cb.OnController != nil {
		x.emit(func() { x.cb.OnController(x.cancel) })
	}

	x.sched = reveal.New(x.ctrl.cfg.Reveal, x.ctrl.clock, x)
	x.sched.Start(ctx)

	var err error
	for {
		var text string
		var calls []api.ToolCall
		text, calls, err = x.round(ctx, payload)
		if err != nil || len(calls) == 0 {
			break
		}
		if x.ctrl.tools == nil {
			slog.Warn("model requested tools but no executor is configured",
				"exchange_id", x.id,
				"calls", len(calls),
			)
			break
		}
		if x.rounds >= x.ctrl.cfg.MaxToolRounds {
			slog.Warn("tool round limit reached",
				"exchange_id", x.id,
				"max_tool_rounds", x.ctrl.cfg.MaxToolRounds,
			)
			break
		}
		x.rounds++

		var msgs []api.ChatMessage
		msgs, err = x.runTools(ctx, calls, text)
		if err != nil {
			break
		}
		payload.Messages = append(payload.Messages, msgs...)
	}

	return x.finish(ctx, err)
}

// finish issues the single terminal callback.
func (x *exchange) finish(ctx context.Context, err error) State {
	var state State
	switch {
	case ctx.Err() != nil:
		x.sched.Abort()
		state = StateCancelled
	case err != nil:
		x.sched.Abort()
		state = StateErrored
	default:
		x.sched.Finish()
		state = StateFinished
	}

	x.mu.Lock()
	text, serr := x.finalText, x.finalErr
	x.mu.Unlock()

	if state == StateFinished && serr != nil {
		state, err = StateErrored, serr
	}

	x.setState(state)

	observability.ExchangesTotal.WithLabelValues(x.model, state.String()).Inc()
	observability.ExchangeDuration.WithLabelValues(x.model).Observe(x.ctrl.clock.Since(x.start).Seconds())

	switch state {
	case StateErrored:
		slog.Warn("exchange failed", "exchange_id", x.id, "model", x.model, "error", err)
		x.emit(func() {
			if x.cb.OnError != nil {
				x.cb.OnError(err)
			}
		})
	default:
		debug.Log(debug.Session, "exchange finished",
			"exchange_id", x.id,
			"state", state.String(),
			"runes", len([]rune(text)),
			"tool_rounds", x.rounds,
		)
		x.emit(func() {
			if x.cb.OnFinish != nil {
				x.cb.OnFinish(text, x.resp)
			}
		})
	}
	return state
}

func (x *exchange) emit(fn func()) {
	x.cbMu.Lock()
	defer x.cbMu.Unlock()
	fn()
}

func (x *exchange) setState(s State) {
	debug.Log(debug.Session, "state", "exchange_id", x.id, "state", s.String())
	if x.cb.OnState != nil {
		x.emit(func() { x.cb.OnState(s) })
	}
}

func (x *exchange) addReasoning(delta string) {
	x.reasoning.WriteString(delta)
	if x.cb.OnReasoning != nil {
		full := x.reasoning.String()
		x.emit(func() { x.cb.OnReasoning(full, delta) })
	}
}

// Update implements reveal.Sink.
func (x *exchange) Update(revealed, delta string) {
	if x.cb.OnUpdate != nil {
		x.emit(func() { x.cb.OnUpdate(revealed, delta) })
	}
}

// Finish implements reveal.Sink. The terminal callback is issued by finish.
func (x *exchange) Finish(text string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.finalText = text
}

// Error implements reveal.Sink.
func (x *exchange) Error(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.finalErr = err
}

