// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sklonger/sklonger/internal/api"
	"github.com/sklonger/sklonger/internal/bluesky"
	"github.com/sklonger/sklonger/internal/clock/system"
	"github.com/sklonger/sklonger/internal/config"
	"github.com/sklonger/sklonger/internal/hash/sha256"
	"github.com/sklonger/sklonger/internal/id/uuid"
	"github.com/sklonger/sklonger/internal/metrics"
	"github.com/sklonger/sklonger/internal/page"
	"github.com/sklonger/sklonger/internal/policy/ratelimit"
	"github.com/sklonger/sklonger/internal/reference"
	"github.com/sklonger/sklonger/internal/render"
	"github.com/sklonger/sklonger/internal/thread"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// App holds the shared, long-lived services. It is built once at startup.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	resolver *thread.Resolver
	pages    *page.Assembler
	server   *api.Server
}

// New wires the upstream client, walker, resolver, page assembler and HTTP
// server from cfg. It fails fast when any of them cannot be built.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	transport := &ratelimit.Transport{
		Base: bluesky.NewTransport(),
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.Upstream.RateLimitRPS,
			Burst: cfg.Upstream.RateLimitBurst,
		}),
	}
	client, err := bluesky.New(bluesky.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.UpstreamTimeout(),
		UserAgent: cfg.Upstream.UserAgent,
	}, transport, logger.Named("bluesky"))
	if err != nil {
		return nil, fmt.Errorf("init bluesky client: %w", err)
	}

	walker := thread.NewWalker(client,
		thread.WithMaxSteps(cfg.Walker.MaxSteps),
		thread.WithLogger(logger.Named("walker")),
		thread.WithStepObserver(metrics.ObserveWalkSteps),
	)
	resolver := thread.NewResolver(client, walker, logger.Named("resolver"))

	pages, err := page.New()
	if err != nil {
		return nil, fmt.Errorf("init page assembler: %w", err)
	}

	server := api.NewServer(
		resolver,
		pages,
		uuid.New(),
		sha256.New(),
		system.New(),
		cfg,
		logger.Named("api"),
	)

	logger.Info("application services initialized",
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int("max_steps", walker.MaxSteps()),
		zap.Bool("streaming", cfg.Server.Streaming),
		zap.Bool("poll", cfg.Poll.Enabled),
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		pages:    pages,
		server:   server,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run listens on the configured port until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then marks the
// service not ready and drains in-flight requests.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		a.server.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("shutdown complete")
	return err
}

// RenderThread resolves ref once and writes the complete HTML document to w.
func (a *App) RenderThread(ctx context.Context, w io.Writer, ref reference.Reference) error {
	th, err := a.resolver.Resolve(ctx, ref.Handle, ref.PostID)
	metrics.ObserveThread(thread.Label(err), len(th.Posts))
	if err != nil {
		return err
	}
	var opts render.Options
	if base := strings.TrimRight(a.cfg.Server.PublicURL, "/"); base != "" {
		opts.CanonicalURL = base + "/profile/" + ref.Handle + "/post/" + ref.PostID
	}
	if err := a.pages.Thread(w, render.Render(th, opts)); err != nil {
		return fmt.Errorf("write thread: %w", err)
	}
	return nil
}

// Close flushes buffered logs.
func (a *App) Close() {
	// Sync fails on non-file sinks such as stderr on some platforms.
	_ = a.logger.Sync()
}
