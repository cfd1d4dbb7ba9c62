// Package server assembles the gateway's HTTP router and runs it, together
// with the standalone socket listener, until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/ehrgate/ehrgate/internal/handler"
	"github.com/ehrgate/ehrgate/internal/server/middleware"
	"github.com/ehrgate/ehrgate/internal/telemetry"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	SocketPort      int // 0 disables the standalone socket listener
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int   // requests per minute per client; 0 disables
	MaxBodySize     int64 // bytes
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8000,
		SocketPort:      7777,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
	}
}

// Server owns the router and the listeners.
type Server struct {
	cfg     Config
	router  chi.Router
	socket  http.Handler
	gateway *handler.Gateway
	mcp     http.Handler
	openapi handler.DocumentFunc
	metrics *telemetry.Metrics
	logger  *slog.Logger

	// ready is closed once Run has bound its listeners or failed to.
	ready chan struct{}
	addrs []net.Addr
}

// New wires routes and middleware. mcpHandler serves /mcp; openapi builds
// the document served at /openapi.json.
func New(cfg Config, gw *handler.Gateway, mcpHandler http.Handler, openapi handler.DocumentFunc, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		gateway: gw,
		mcp:     mcpHandler,
		openapi: openapi,
		metrics: metrics,
		logger:  logger,
		ready:   make(chan struct{}),
	}
	s.setupRouter()
	s.setupSocket()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Metrics(s.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Bearer)

	// --- Health, discovery, and metrics (never rate limited) ---
	r.Get("/health", s.gateway.Health)
	r.Get("/healthz", s.gateway.Healthz)
	r.Get("/readyz", s.gateway.Readyz)
	r.Get("/openapi.json", handler.OpenAPI(s.openapi))
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// --- Gateway routes ---
	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(s.cfg.RateLimit))
		}
		if s.cfg.MaxBodySize > 0 {
			r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
		}

		r.Get("/", s.gateway.ServerInfo)
		r.Post("/", s.gateway.RPCOr(s.gateway.ServerInfo))
		r.Get("/tools", s.gateway.Tools)
		r.Post("/tools", s.gateway.RPCOr(s.gateway.Tools))
		r.Post("/call", s.gateway.Call)
		r.Post("/authenticate", s.gateway.Authenticate)
		r.Get("/sse", s.gateway.Events)
		r.Get("/ws", s.gateway.Socket)
		r.Handle("/mcp", s.mcp)
	})

	s.router = r
}

// setupSocket builds the handler for the standalone socket listener, which
// accepts upgrades on any path.
func (s *Server) setupSocket() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Bearer)
	r.Get("/*", s.gateway.Socket)
	s.socket = r
}

// ListenAndServe runs until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves the gateway and, when configured, the socket listener until
// ctx is cancelled or a listener fails. In-flight requests are drained for
// up to ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	// Request contexts derive from base so open streams end at shutdown.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	servers := []*http.Server{s.newHTTPServer(base, s.cfg.Port, s.router)}
	if s.cfg.SocketPort > 0 {
		servers = append(servers, s.newHTTPServer(base, s.cfg.SocketPort, s.socket))
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			close(s.ready)
			return fmt.Errorf("server listen %s: %w", srv.Addr, err)
		}
		listeners = append(listeners, ln)
		s.addrs = append(s.addrs, ln.Addr())
	}
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		srv, ln := srv, listeners[i]
		g.Go(func() error {
			s.logger.Info("server starting", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutdown signal received, draining connections...")

		cancelBase()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) newHTTPServer(base context.Context, port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(port)),
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

// Addrs blocks until Run has bound its listeners and returns their
// addresses: the gateway first, then the socket listener if enabled. It is
// empty if binding failed.
func (s *Server) Addrs() []net.Addr {
	<-s.ready
	return s.addrs
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
