package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInFlightRegistry_Cancel(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := 0
	r.Register(InFlight{ID: "rly_a"}, func() { cancelled++ })

	if !r.Cancel("rly_a") {
		t.Fatal("Cancel(rly_a) = false, want true")
	}
	if cancelled != 1 {
		t.Errorf("cancel called %d times, want 1", cancelled)
	}
	if r.Cancel("rly_a") {
		t.Error("second Cancel(rly_a) = true, want false")
	}
	if r.Cancel("rly_unknown") {
		t.Error("Cancel(rly_unknown) = true, want false")
	}
}

func TestInFlightRegistry_Release(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	release := r.Register(InFlight{ID: "rly_a"}, func() { cancelled = true })
	release()
	release()

	if r.Len() != 0 {
		t.Errorf("Len = %d after release, want 0", r.Len())
	}
	if r.Cancel("rly_a") {
		t.Error("Cancel after release = true, want false")
	}
	if cancelled {
		t.Error("release must not cancel")
	}
}

func TestInFlightRegistry_List(t *testing.T) {
	r := NewInFlightRegistry()
	base := time.Unix(1700000000, 0)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	r.Register(InFlight{ID: "rly_first", Path: "/chat/completions", Model: "gpt-4o", Stream: true}, func() {})
	r.Register(InFlight{ID: "rly_second", Path: "/models"}, func() {})
	r.Register(InFlight{ID: "rly_early", Started: base}, func() {})

	got := r.List()
	want := []string{"rly_early", "rly_first", "rly_second"}
	if len(got) != len(want) {
		t.Fatalf("List returned %d entries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[1].Model != "gpt-4o" || !got[1].Stream || got[1].Started != base.Add(time.Second) {
		t.Errorf("List()[1] = %+v, want recorded info with assigned start", got[1])
	}
}

func TestInFlightRegistry_ConcurrentAccess(t *testing.T) {
	r := NewInFlightRegistry()
	var cancels atomic.Int64
	const n = 100

	releases := make([]func(), n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			releases[i] = r.Register(InFlight{ID: fmt.Sprintf("rly_%03d", i)}, func() { cancels.Add(1) })
		}()
	}
	wg.Wait()

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				r.Cancel(fmt.Sprintf("rly_%03d", i))
			} else {
				releases[i]()
			}
		}()
	}
	wg.Wait()

	if cancels.Load() != n/2 {
		t.Errorf("cancellations = %d, want %d", cancels.Load(), n/2)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
