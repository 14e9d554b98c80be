package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Frame is one client stream event: incremental content, terminal success,
// or terminal failure.
type Frame struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sink receives client frames.
type Sink interface {
	// Open commits to a streaming response without sending a frame.
	Open() error
	Send(f Frame) error
	// Close ends a stream that was opened.
	Close() error
	// Started reports whether the stream has been opened.
	Started() bool
}

// SSEWriter writes frames as server-sent events. Headers are written on
// Open or the first Send, so a caller can still answer with a plain error
// response before then.
type SSEWriter struct {
	w       http.ResponseWriter
	started bool
	closed  bool
}

// NewSSEWriter wraps w.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	return &SSEWriter{w: w}
}

func (s *SSEWriter) Started() bool { return s.started }

func (s *SSEWriter) Open() error {
	if s.started {
		return nil
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
	s.flush()
	return nil
}

func (s *SSEWriter) Send(f Frame) error {
	if err := s.Open(); err != nil {
		return err
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("relay: encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		return fmt.Errorf("relay: write frame: %w", err)
	}
	s.flush()
	return nil
}

// Close writes the [DONE] sentinel line once.
func (s *SSEWriter) Close() error {
	if !s.started || s.closed {
		return nil
	}
	s.closed = true
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("relay: write sentinel: %w", err)
	}
	s.flush()
	return nil
}

func (s *SSEWriter) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
