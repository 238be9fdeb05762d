package streamserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// SSEWriter is the minimal surface a response writer needs for SSE:
// write bytes, then flush them to the client immediately.
type SSEWriter interface {
	Write(p []byte) (int, error)
	Flush()
}

// sseSink serializes TreeStreamEvent values as `data: <json>\n\n`
// records onto an SSEWriter, and implements scheduler.EventSink. It is
// safe to Close concurrently with Emit: once closed, further emissions
// are silently dropped, which is what happens when the client
// disconnects mid-build.
type sseSink struct {
	mu     sync.Mutex
	writer SSEWriter
	closed bool
}

func newSSESink(w SSEWriter) *sseSink {
	return &sseSink{writer: w}
}

func (s *sseSink) Emit(event treemodel.TreeStreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		// An event that cannot marshal is a programming error in one of
		// the Data payload types, not a runtime condition to recover
		// from mid-stream.
		panic(fmt.Sprintf("streamserver: marshal event %q: %v", event.Type, err))
	}

	fmt.Fprintf(s.writer, "data: %s\n\n", payload)
	s.writer.Flush()
}

func (s *sseSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

var _ http.Flusher = (*responseWriter)(nil)
