// Package streamserver exposes the TreeBuilder over a long-lived
// streaming HTTP endpoint: POST /generate-tree/stream, plus /healthz
// and /metrics.
package streamserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthieujules/psychohistory/internal/corelib/errs"
	"github.com/matthieujules/psychohistory/internal/scheduler"
	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// Builder is the narrow interface Server needs from scheduler.TreeBuilder.
type Builder interface {
	Build(ctx context.Context, seed treemodel.SeedInput, sink scheduler.EventSink) (*treemodel.EventNode, error)
}

// Server wires the stream endpoint. A new Builder is expected per
// request, since one tree is built per request with no multi-user
// session isolation; newBuilder constructs one.
type Server struct {
	newBuilder   func() Builder
	log          *slog.Logger
	router       *chi.Mux
	defaultDepth int
}

// New builds a Server. newBuilder is called once per incoming request
// to produce a fresh, unshared TreeBuilder. defaultDepth overrides a
// request's maxDepth when the seed omits it (0 means "use the
// treemodel package default").
func New(newBuilder func() Builder, log *slog.Logger, defaultDepth int) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{newBuilder: newBuilder, log: log, defaultDepth: defaultDepth}
	s.router = chi.NewRouter()
	s.router.Use(recoverMiddleware(log), loggingMiddleware(log))
	s.router.Post("/generate-tree/stream", s.handleGenerateTreeStream)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleGenerateTreeStream validates the request body, opens an SSE
// response, and streams tree-build lifecycle events until the build
// completes or the client disconnects.
func (s *Server) handleGenerateTreeStream(w http.ResponseWriter, r *http.Request) {
	var seed treemodel.SeedInput
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		s.writeValidationError(w, &errs.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()})
		return
	}
	if seed.Event == "" {
		s.writeValidationError(w, &errs.ValidationError{Field: "event", Message: "must be non-empty"})
		return
	}
	if seed.MaxDepth == 0 && s.defaultDepth != 0 {
		seed.MaxDepth = s.defaultDepth
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(flusherWriter{w: w, f: flusher})
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		<-ctx.Done()
		sink.Close()
	}()

	builder := s.newBuilder()
	if _, err := builder.Build(ctx, seed, sink); err != nil {
		s.log.Error("streamserver: build failed", "error", err)
		sink.Emit(treemodel.NewErrorEvent(err.Error(), ""))
	}
}

func (s *Server) writeValidationError(w http.ResponseWriter, verr *errs.ValidationError) {
	s.log.Warn("streamserver: validation error", "field", verr.Field, "message", verr.Message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": verr.Error()})
}

// flusherWriter adapts an http.ResponseWriter + http.Flusher pair to
// the SSEWriter interface sseSink expects.
type flusherWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flusherWriter) Write(p []byte) (int, error) { return fw.w.Write(p) }
func (fw flusherWriter) Flush()                      { fw.f.Flush() }
