// Package reveal paces the visible growth of streamed text.
//
// Network chunks arrive in bursts; a [Scheduler] buffers them and moves a
// proportional slice of the pending text to the revealed text on every
// tick, so the display grows at a steady rate and catches up quickly when
// a lot of text is waiting.
package reveal

import (
	"context"
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
)

// Defaults for Config.
const (
	DefaultInterval = 16 * time.Millisecond
	DefaultDivisor  = 60
)

// Sink receives the scheduler's output. Exactly one of Finish or Error is
// called, after every Update. Sink methods run with the scheduler's emit
// lock held and must not call back into the Scheduler.
type Sink interface {
	// Update reports the full revealed text and the slice just added.
	Update(revealed, delta string)
	Finish(text string)
	Error(err error)
}

// Config controls pacing.
type Config struct {
	// Interval between reveal steps.
	Interval time.Duration
	// Divisor sets the step size: each tick reveals
	// max(1, round(pending/Divisor)) runes.
	Divisor int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Divisor <= 0 {
		c.Divisor = DefaultDivisor
	}
	return c
}

// Scheduler buffers pushed text and reveals it at a fixed rate.
type Scheduler struct {
	cfg   Config
	clock clock.WithTicker
	sink  Sink

	// emitMu serializes sink callbacks so no Update follows the terminal
	// callback.
	emitMu sync.Mutex

	mu         sync.Mutex
	revealed   []rune
	pending    []rune
	started    bool
	terminated bool
	done       chan struct{}
}

// New creates a Scheduler that reports to sink. A nil clock uses the real
// clock.
func New(cfg Config, clk clock.WithTicker, sink Sink) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scheduler{
		cfg:   cfg.withDefaults(),
		clock: clk,
		sink:  sink,
		done:  make(chan struct{}),
	}
}

// Push appends a chunk to the pending text. It never blocks on the sink and
// is ignored after the scheduler has terminated.
func (s *Scheduler) Push(chunk string) {
	if chunk == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.pending = append(s.pending, []rune(chunk)...)
}

// Start begins ticking. Cancelling ctx aborts the scheduler. Calling Start
// more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.terminated {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	ticker := s.clock.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				s.Abort()
				return
			case <-ticker.C():
				s.step()
			}
		}
	}()
}

// Finish flushes all pending text in one final Update and reports the full
// text to the sink. If no text was ever pushed the sink receives
// api.ErrEmptyResponse instead.
func (s *Scheduler) Finish() {
	s.terminate(false)
}

// Abort folds pending text into the revealed text and reports it through
// Finish, even when empty. It runs synchronously.
func (s *Scheduler) Abort() {
	s.terminate(true)
}

// Done is closed once the terminal callback has been issued.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the revealed and pending text.
func (s *Scheduler) Snapshot() (revealed, pending string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.revealed), string(s.pending)
}

func (s *Scheduler) step() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.terminated || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	n := StepSize(len(s.pending), s.cfg.Divisor)
	slice := string(s.pending[:n])
	s.revealed = append(s.revealed, s.pending[:n]...)
	s.pending = s.pending[n:]
	full := string(s.revealed)
	s.mu.Unlock()

	observability.RevealUpdatesTotal.Inc()
	s.sink.Update(full, slice)
}

func (s *Scheduler) terminate(aborted bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	rest := string(s.pending)
	s.revealed = append(s.revealed, s.pending...)
	s.pending = nil
	full := string(s.revealed)
	close(s.done)
	s.mu.Unlock()

	debug.Log(debug.Reveal, "scheduler terminated", "aborted", aborted, "runes", len([]rune(full)), "flushed", len(rest))

	if rest != "" {
		observability.RevealUpdatesTotal.Inc()
		s.sink.Update(full, rest)
	}
	if full == "" && !aborted {
		s.sink.Error(api.ErrEmptyResponse)
		return
	}
	s.sink.Finish(full)
}

// StepSize returns how many runes one tick reveals when pending runes are
// waiting: max(1, round(pending/divisor)), capped at pending.
func StepSize(pending, divisor int) int {
	if pending <= 0 {
		return 0
	}
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	n := int(math.Round(float64(pending) / float64(divisor)))
	return min(max(1, n), pending)
}
