// Package api provides the HTTP surface of vimbiso-chatserver: the channel
// webhook endpoints that feed inbound messages to the flow processor, plus
// health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// MessageProcessor runs one conversation turn for an extracted inbound
// message. Satisfied by *flow.Processor; tests substitute stubs.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, in *flow.Inbound) string
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server is the webhook HTTP server.
type Server struct {
	addr      string
	processor MessageProcessor
	store     store.Store
	router    chi.Router
	httpSrv   *http.Server
}

// NewServer wires the router. The store is only used by the health probe.
func NewServer(processor MessageProcessor, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{addr: cfg.Addr, processor: processor, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Post("/bot/webhook", s.whatsappWebhookHandler)
	r.Post("/sms/webhook", s.smsWebhookHandler)
	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler exposes the router (tests mount it on httptest servers).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("Server shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}
