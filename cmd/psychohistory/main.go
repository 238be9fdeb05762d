// Command psychohistory serves the branching probability-tree stream
// endpoint over HTTP.
//
// Usage:
//
//	psychohistory serve --addr :8080
//	psychohistory version
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matthieujules/psychohistory/internal/clock"
	"github.com/matthieujules/psychohistory/internal/config"
	"github.com/matthieujules/psychohistory/internal/idgen"
	"github.com/matthieujules/psychohistory/internal/llm"
	"github.com/matthieujules/psychohistory/internal/logging"
	"github.com/matthieujules/psychohistory/internal/metrics"
	"github.com/matthieujules/psychohistory/internal/pipeline"
	"github.com/matthieujules/psychohistory/internal/researcher"
	"github.com/matthieujules/psychohistory/internal/scheduler"
	"github.com/matthieujules/psychohistory/internal/search"
	"github.com/matthieujules/psychohistory/internal/streamserver"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the tree-generation stream server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("psychohistory version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP stream server.
type ServeCmd struct {
	Addr           string        `help:"Address to listen on." default:":8080"`
	MaxDepth       int           `name:"max-depth" help:"Default maxDepth applied when a request omits one (1-5)." default:"3"`
	MaxConcurrent  int           `name:"max-concurrent" help:"Maximum node pipelines processed per batch." default:"20"`
	SearchProvider string        `name:"search-provider" help:"Search provider to use (mock, real-A, real-B); overrides SEARCH_PROVIDER." default:""`
	DrainTimeout   time.Duration `name:"drain-timeout" help:"Grace period for in-flight requests during shutdown." default:"10s"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	log := logging.New(cli.LogLevel)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.SearchProvider != "" {
		cfg.SearchProvider = config.SearchProviderKind(c.SearchProvider)
	}

	m := metrics.NewRegistry(prometheus.DefaultRegisterer)
	sysClock := clock.System{}

	var provider search.Provider
	switch cfg.SearchProvider {
	case config.SearchProviderMock:
		provider = search.MockProvider{}
	default:
		log.Warn("no concrete search provider wired for this configuration; falling back to mock",
			"provider", cfg.SearchProvider)
		provider = search.MockProvider{}
	}

	searchClient, err := search.NewClient(provider, search.LimiterConfig{Limit: 5, Window: time.Second}, sysClock, m, log)
	if err != nil {
		return fmt.Errorf("build search client: %w", err)
	}

	llmClient := newLLMClient(cfg)

	newBuilder := func() streamserver.Builder {
		r := researcher.New(llmClient, searchClient, sysClock, log)
		np := pipeline.New(llmClient, r, idgen.UUIDSource{}, sysClock, log)
		return scheduler.New(np, idgen.UUIDSource{}, sysClock, m, log, scheduler.Config{MaxConcurrent: c.MaxConcurrent})
	}

	srv := streamserver.New(newBuilder, log, c.MaxDepth)
	httpServer := &http.Server{Addr: c.Addr, Handler: srv}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.DrainTimeout)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", c.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// newLLMClient is the seam where a concrete LLM provider gets wired in.
// No concrete provider ships with this core; operators swap this
// function out for one that constructs a real llm.Client (OpenAI,
// Anthropic, or another implementation of the interface in
// internal/llm) before running in anything but mock mode.
func newLLMClient(cfg *config.Config) llm.Client {
	if cfg.LLMAPIKey == "" {
		panic("psychohistory: LLM_API_KEY is not set and no concrete llm.Client implementation is wired")
	}
	panic("psychohistory: no concrete llm.Client implementation is wired; see newLLMClient")
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("psychohistory"),
		kong.Description("PsychoHistory branching probability-tree generator"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
