// Package server monta o router HTTP do gateway e controla o ciclo de vida
// do http.Server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chatbot-gateway/gate"
	"chatbot-gateway/middleware/ratelimit"
	"chatbot-gateway/middleware/ratelimit/domain"
	"chatbot-gateway/middleware/ratelimit/infra"
	"chatbot-gateway/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

// StatsSource expõe os contadores em GET /stats.
type StatsSource interface {
	Snapshot() infra.StatsSnapshot
}

type Options struct {
	Addr         string
	ChatEndpoint string
	Gate         *gate.Gate

	// Flood nil desliga o flood guard.
	Flood      domain.LimiterStore
	TrustProxy bool

	// Pool nil desliga o limite de concorrência.
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	Stats    domain.StatsStore
	Snapshot StatsSource
	Logger   *slog.Logger
}

type Server struct {
	router *chi.Mux
	server *http.Server
	log    *slog.Logger
}

func New(opts Options) *Server {
	if opts.ChatEndpoint == "" {
		opts.ChatEndpoint = "/api/chat"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{router: chi.NewRouter(), log: opts.Logger}

	// requestid → recoverer → log; concorrência e flood guard só na rota de chat
	s.router.Use(requestid.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(accessLog(opts.Logger))

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		gate.WriteError(w, gate.NotFoundError())
	})

	s.router.Get("/healthz", healthHandler(opts.Pool))
	if opts.Snapshot != nil {
		s.router.Get("/stats", statsHandler(opts.Snapshot))
	}

	g := opts.Gate
	chat := s.router.With(
		ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Pool:           opts.Pool,
			AcquireTimeout: opts.AcquireTimeout,
			Stats:          opts.Stats,
			Reject: func(w http.ResponseWriter, r *http.Request) {
				g.Reject(w, r, gate.OverloadedError())
			},
		}),
		ratelimit.Middleware(ratelimit.Options{
			Store:      opts.Flood,
			Stats:      opts.Stats,
			TrustProxy: opts.TrustProxy,
			Reject: func(w http.ResponseWriter, r *http.Request, dec domain.Decision) {
				g.Reject(w, r, gate.RateLimitError(dec))
			},
		}),
	)
	chat.Handle(opts.ChatEndpoint, g)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	return s
}

// Handler expõe o router, usado nos testes.
func (s *Server) Handler() http.Handler { return s.router }

// Run escuta em Addr até ctx ser cancelado e então faz shutdown gracioso.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("chat gateway listening", "addr", ln.Addr().String())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
