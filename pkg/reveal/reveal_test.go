package reveal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/rhuss/streamrelay/pkg/api"
)

type event struct {
	kind     string
	revealed string
	delta    string
	err      error
}

// recordingSink captures sink callbacks and signals each one on a channel.
type recordingSink struct {
	mu     sync.Mutex
	events []event
	ch     chan event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan event, 256)}
}

func (s *recordingSink) record(e event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	s.ch <- e
}

func (s *recordingSink) Update(revealed, delta string) {
	s.record(event{kind: "update", revealed: revealed, delta: delta})
}

func (s *recordingSink) Finish(text string) {
	s.record(event{kind: "finish", revealed: text})
}

func (s *recordingSink) Error(err error) {
	s.record(event{kind: "error", err: err})
}

func (s *recordingSink) all() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

func (s *recordingSink) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-s.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink callback")
		return event{}
	}
}

func terminalCount(events []event) int {
	n := 0
	for _, e := range events {
		if e.kind == "finish" || e.kind == "error" {
			n++
		}
	}
	return n
}

func newTestScheduler(sink Sink) (*Scheduler, *clocktesting.FakeClock) {
	fc := clocktesting.NewFakeClock(time.Unix(0, 0))
	return New(Config{}, fc, sink), fc
}

func TestStepSize(t *testing.T) {
	tests := []struct {
		pending int
		divisor int
		want    int
	}{
		{0, 60, 0},
		{1, 60, 1},
		{29, 60, 1},
		{30, 60, 1},
		{90, 60, 2},
		{120, 60, 2},
		{600, 60, 10},
		{5, 0, 1},
		{10, 1, 10},
	}
	for _, tt := range tests {
		if got := StepSize(tt.pending, tt.divisor); got != tt.want {
			t.Errorf("StepSize(%d, %d) = %d, want %d", tt.pending, tt.divisor, got, tt.want)
		}
	}
}

func TestScheduler_PacesAndConserves(t *testing.T) {
	sink := newRecordingSink()
	s, fc := newTestScheduler(sink)

	total := strings.Repeat("a", 120)
	s.Push(total[:70])
	s.Push(total[70:])
	s.Start(context.Background())

	e := func() event {
		fc.Step(DefaultInterval)
		return sink.next(t)
	}()
	if e.kind != "update" || e.delta != "aa" {
		t.Fatalf("first tick = %+v, want 2-rune update", e)
	}

	for i := 0; i < 5; i++ {
		fc.Step(DefaultInterval)
		e = sink.next(t)
		revealed, pending := s.Snapshot()
		if revealed+pending != total {
			t.Fatalf("revealed+pending != total after tick %d", i)
		}
		if e.revealed != revealed {
			t.Errorf("update revealed %q, snapshot %q", e.revealed, revealed)
		}
	}

	s.Finish()
	<-s.Done()
}

func TestScheduler_NoTickWhenPendingEmpty(t *testing.T) {
	sink := newRecordingSink()
	s, fc := newTestScheduler(sink)
	s.Start(context.Background())

	fc.Step(DefaultInterval)
	s.Push("x")
	fc.Step(DefaultInterval)
	e := sink.next(t)
	if e.kind != "update" || e.revealed != "x" {
		t.Fatalf("event = %+v", e)
	}

	s.Finish()
	if got := sink.next(t); got.kind != "finish" || got.revealed != "x" {
		t.Errorf("terminal = %+v", got)
	}
}

func TestScheduler_FinishFlushesPending(t *testing.T) {
	sink := newRecordingSink()
	s, fc := newTestScheduler(sink)

	s.Push("Hello")
	s.Start(context.Background())
	fc.Step(DefaultInterval)
	if e := sink.next(t); e.delta != "H" {
		t.Fatalf("first update delta = %q, want H", e.delta)
	}

	s.Finish()

	flush := sink.next(t)
	if flush.kind != "update" || flush.delta != "ello" || flush.revealed != "Hello" {
		t.Errorf("flush = %+v", flush)
	}
	fin := sink.next(t)
	if fin.kind != "finish" || fin.revealed != "Hello" {
		t.Errorf("finish = %+v", fin)
	}

	revealed, pending := s.Snapshot()
	if revealed != "Hello" || pending != "" {
		t.Errorf("snapshot = %q, %q", revealed, pending)
	}
}

func TestScheduler_FinishBeforeStart(t *testing.T) {
	sink := newRecordingSink()
	s, _ := newTestScheduler(sink)

	s.Push("done")
	s.Finish()

	events := sink.all()
	if len(events) != 2 || events[0].delta != "done" || events[1].kind != "finish" {
		t.Fatalf("events = %+v", events)
	}
}

func TestScheduler_EmptyFinishReportsError(t *testing.T) {
	sink := newRecordingSink()
	s, _ := newTestScheduler(sink)
	s.Start(context.Background())

	s.Finish()

	events := sink.all()
	if len(events) != 1 || events[0].kind != "error" {
		t.Fatalf("events = %+v, want single error", events)
	}
	if !errors.Is(events[0].err, api.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", events[0].err)
	}
}

func TestScheduler_AbortEmptyFinishes(t *testing.T) {
	sink := newRecordingSink()
	s, _ := newTestScheduler(sink)
	s.Start(context.Background())

	s.Abort()

	events := sink.all()
	if len(events) != 1 || events[0].kind != "finish" || events[0].revealed != "" {
		t.Fatalf("events = %+v, want single empty finish", events)
	}
}

func TestScheduler_AbortFoldsPending(t *testing.T) {
	sink := newRecordingSink()
	s, _ := newTestScheduler(sink)
	s.Start(context.Background())

	s.Push("partial answer")
	s.Abort()

	events := sink.all()
	if terminalCount(events) != 1 {
		t.Fatalf("terminal callbacks = %d, want 1", terminalCount(events))
	}
	last := events[len(events)-1]
	if last.kind != "finish" || last.revealed != "partial answer" {
		t.Errorf("terminal = %+v", last)
	}
}

func TestScheduler_SingleTerminalCallback(t *testing.T) {
	sink := newRecordingSink()
	s, _ := newTestScheduler(sink)
	s.Start(context.Background())

	s.Push("text")
	s.Finish()
	s.Finish()
	s.Abort()
	s.Push("ignored")

	events := sink.all()
	if terminalCount(events) != 1 {
		t.Fatalf("terminal callbacks = %d, want 1: %+v", terminalCount(events), events)
	}
	revealed, pending := s.Snapshot()
	if revealed != "text" || pending != "" {
		t.Errorf("push after terminate changed state: %q, %q", revealed, pending)
	}
}

func TestScheduler_ContextCancelAborts(t *testing.T) {
	sink := newRecordingSink()
	s, _ := newTestScheduler(sink)

	ctx, cancel := context.WithCancel(context.Background())
	s.Push("abc")
	s.Start(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not terminate on context cancel")
	}

	events := sink.all()
	last := events[len(events)-1]
	if last.kind != "finish" || last.revealed != "abc" {
		t.Errorf("terminal = %+v", last)
	}
}

func TestScheduler_RuneSafeSlices(t *testing.T) {
	sink := newRecordingSink()
	s, fc := newTestScheduler(sink)

	text := "héllo wörld 日本語 🙂"
	s.Push(text)
	s.Start(context.Background())

	for range utf8.RuneCountInString(text) {
		fc.Step(DefaultInterval)
		e := sink.next(t)
		if !utf8.ValidString(e.delta) || !utf8.ValidString(e.revealed) {
			t.Fatalf("invalid UTF-8 in update %+v", e)
		}
		if e.revealed == text {
			break
		}
	}

	s.Finish()
	e := sink.next(t)
	if e.kind != "finish" || e.revealed != text {
		t.Errorf("terminal = %+v", e)
	}
}
