package server

import (
	"auxchat/internal/chat"
	"context"
	"fmt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds waiting for in-flight requests on shutdown
const shutdownTimeout = 10 * time.Second

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
}

// NewServer returns new Server struct serving messaging API of svc.
// mp may be nil, then media presign endpoint answers 503.
func NewServer(logger *zap.SugaredLogger, svc *chat.Service, ident identifier, mp presigner, opts ...Option) (*Server, error) {
	if svc == nil || ident == nil {
		return nil, fmt.Errorf("service and identifier are required")
	}

	h := &handler{
		logger: logger,
		svc:    svc,
		media:  mp,
	}

	c := &config{
		httpServer: &http.Server{Addr: ":9000"},
		handlers: map[string]http.Handler{
			"/messages/get":     http.HandlerFunc(h.messagesGet),
			"/messages/add":     http.HandlerFunc(h.messagesAdd),
			"/messages/delete":  http.HandlerFunc(h.messagesDelete),
			"/typing/set":       http.HandlerFunc(h.typingSet),
			"/typing/get":       http.HandlerFunc(h.typingGet),
			"/activity/touch":   http.HandlerFunc(h.activityTouch),
			"/users/get":        http.HandlerFunc(h.usersGet),
			"/users/update":     http.HandlerFunc(h.usersUpdate),
			"/users/push-token": http.HandlerFunc(h.pushToken),
			"/blacklist/add":    h.blacklist(true),
			"/blacklist/remove": h.blacklist(false),
			"/media/presign":    http.HandlerFunc(h.mediaPresign),
		},
		corsOrigin: "*",
	}

	for _, opt := range opts {
		opt.apply(c)
	}

	// innermost first
	middlewares := []Option{
		applyAuth(ident),
		applyEnforcePostJson(),
		applyMetrics(),
		applyLog(logger.Desugar()),
		applyCORS(),
		registerHandlers(map[string]http.Handler{
			"/metrics": promhttp.Handler(),
			"/healthz": http.HandlerFunc(healthz),
		}),
	}
	for _, m := range middlewares {
		m.apply(c)
	}

	c.httpServer.Handler = otelhttp.NewHandler(c.httpServer.Handler, "auxchat.http")

	return &Server{
		logger:        logger,
		httpServer:    c.httpServer,
		afterShutdown: c.afterShutdown,
	}, nil
}

// Handler returns root http.Handler of the server
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
