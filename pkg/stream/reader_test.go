package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func readAll(t *testing.T, body io.Reader) []string {
	t.Helper()
	r := NewReader(body)
	defer r.Close()

	var payloads []string
	for {
		p, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return payloads
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		payloads = append(payloads, p)
	}
}

func TestReader_SplitsDataLines(t *testing.T) {
	body := ": keep-alive comment\n" +
		"event: message\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"data:{\"b\":2}\r\n" +
		"id: 7\n" +
		"retry: 100\n" +
		"\n" +
		"data: [DONE]\n"

	got := readAll(t, strings.NewReader(body))
	want := []string{`{"a":1}`, `{"b":2}`, "[DONE]"}
	if len(got) != len(want) {
		t.Fatalf("got %d payloads %q, want %q", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("payload[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReader_EmptyStream(t *testing.T) {
	if got := readAll(t, strings.NewReader("")); len(got) != 0 {
		t.Errorf("expected no payloads, got %q", got)
	}
}

func TestReader_LongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	got := readAll(t, strings.NewReader("data: "+long+"\n"))
	if len(got) != 1 || len(got[0]) != len(long) {
		t.Fatalf("expected one payload of %d bytes", len(long))
	}
}

func TestReader_ContextCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := NewReader(pr)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Next(ctx)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}

func TestReader_ReadError(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("data: one\n"))
		pw.CloseWithError(errors.New("connection reset"))
	}()

	r := NewReader(pr)
	defer r.Close()

	p, err := r.Next(context.Background())
	if err != nil || p != "one" {
		t.Fatalf("first Next = %q, %v", p, err)
	}
	_, err = r.Next(context.Background())
	if err == nil || err.Error() != "connection reset" {
		t.Fatalf("second Next error = %v, want connection reset", err)
	}
	if _, err := r.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("third Next error = %v, want EOF", err)
	}
}

func TestPayloadOf(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"data: x", "x", true},
		{"data:x", "x", true},
		{"data:  x", " x", true},
		{"data:", "", true},
		{": comment", "", false},
		{"event: ping", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := PayloadOf(tt.line)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PayloadOf(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}
