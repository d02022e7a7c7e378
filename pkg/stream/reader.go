package stream

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// maxLineSize bounds a single event-stream line. Tool-call argument chunks
// and long reasoning frames can exceed bufio's 64 KiB default.
const maxLineSize = 1 << 20

type frame struct {
	payload string
	err     error
}

// Reader splits an event-stream body into "data:" payloads. Each data line
// is one payload; comment, "event:", "id:", "retry:" and blank lines are
// skipped.
//
// The blocking read runs on a background goroutine so that Next can observe
// context cancellation. Callers that stop early must call Close and close
// the underlying body to release that goroutine.
type Reader struct {
	body      io.Reader
	frames    chan frame
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewReader returns a Reader over body.
func NewReader(body io.Reader) *Reader {
	return &Reader{
		body:   body,
		frames: make(chan frame),
		done:   make(chan struct{}),
	}
}

// Next returns the next payload. It returns io.EOF once the body is
// exhausted, the scanner error if reading failed, or ctx.Err() when the
// context ends first.
func (r *Reader) Next(ctx context.Context) (string, error) {
	r.startOnce.Do(func() { go r.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case f, ok := <-r.frames:
		if !ok {
			return "", io.EOF
		}
		return f.payload, f.err
	}
}

// Close stops delivery of further payloads.
func (r *Reader) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Reader) scan() {
	defer close(r.frames)

	scanner := bufio.NewScanner(r.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		payload, ok := PayloadOf(scanner.Text())
		if !ok {
			continue
		}
		if !r.send(frame{payload: payload}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		r.send(frame{err: err})
	}
}

func (r *Reader) send(f frame) bool {
	select {
	case r.frames <- f:
		return true
	case <-r.done:
		return false
	}
}

// PayloadOf returns the payload of an event-stream line and whether the
// line carried one. A single space after "data:" is optional.
func PayloadOf(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
