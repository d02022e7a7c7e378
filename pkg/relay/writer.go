package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// frameWriter is the single writer shared by the heartbeat loop and the
// upstream copy loop. Once the first payload byte is written it is live
// and refuses further heartbeats.
type frameWriter struct {
	mu      sync.Mutex
	w       io.Writer
	live    bool
	expired bool
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: w}
}

// WriteHeartbeat writes frame unless payload has begun. It reports whether
// the frame was written.
func (f *frameWriter) WriteHeartbeat(frame []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live {
		return false, nil
	}
	if _, err := f.w.Write(frame); err != nil {
		return false, err
	}
	return true, nil
}

// WritePayload copies upstream bytes verbatim and marks the writer live.
// It fails with errHeartbeatsExhausted once the writer has expired.
func (f *frameWriter) WritePayload(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired {
		return 0, errHeartbeatsExhausted
	}
	f.live = true
	return f.w.Write(p)
}

// WriteError writes the terminal in-band error frame.
func (f *frameWriter) WriteError(message string) error {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = true
	_, err = fmt.Fprintf(f.w, "data: %s\n\n", data)
	return err
}

// Expire gives up on the upstream. It reports false, and changes nothing,
// when payload has already begun.
func (f *frameWriter) Expire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live {
		return false
	}
	f.expired = true
	return true
}

// Live reports whether payload has begun.
func (f *frameWriter) Live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}
