// Package server exposes the query service over HTTP and owns its
// lifecycle from first accepted request to fully drained shutdown.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dhaneshkk/prolog-service/internal/admission"
	"github.com/dhaneshkk/prolog-service/internal/runner"
	"github.com/dhaneshkk/prolog-service/pkg/logger"
	"github.com/dhaneshkk/prolog-service/pkg/middleware/logging"
	"github.com/dhaneshkk/prolog-service/pkg/middleware/recovery"
	"github.com/dhaneshkk/prolog-service/pkg/middleware/requestid"
	"github.com/dhaneshkk/prolog-service/pkg/server/health"
	"github.com/dhaneshkk/prolog-service/pkg/telemetry"
)

// State is the coarse lifecycle phase the server is in.
type State int32

const (
	StateStarting State = iota
	StateAccepting
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Dispatcher runs one evaluation under admission control.
type Dispatcher interface {
	Dispatch(ctx context.Context, program, query string) ([]runner.Entry, error)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Program string `json:"program"`
	Query   string `json:"query"`
}

// Server serves the query and health endpoints.
type Server struct {
	logger     logger.Logger
	dispatcher Dispatcher

	addr               string
	corsAllowedOrigins []string
	corsAllowedHeaders []string
	traceEnabled       bool
	tlsConfig          *tls.Config
	shutdownTimeout    time.Duration

	state    atomic.Int32
	listenAt atomic.Value // net.Addr, set once the listener is bound
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithListenAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

func WithCORSAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.corsAllowedOrigins = origins }
}

func WithCORSAllowedHeaders(headers []string) Option {
	return func(s *Server) { s.corsAllowedHeaders = headers }
}

func WithTracingEnabled(enabled bool) Option {
	return func(s *Server) { s.traceEnabled = enabled }
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Server) { s.tlsConfig = cfg }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

func New(dispatcher Dispatcher, opts ...Option) *Server {
	s := &Server{
		logger:             logger.NewNoopLogger(),
		dispatcher:         dispatcher,
		addr:               "0.0.0.0:3030",
		corsAllowedOrigins: []string{"*"},
		corsAllowedHeaders: []string{"*"},
		shutdownTimeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(StateStarting))
	return s
}

// State reports the server's current lifecycle phase.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr reports the address the listener is bound to. It is nil until Run
// has bound the listener, which is observable as State() >= StateAccepting.
func (s *Server) Addr() net.Addr {
	addr, _ := s.listenAt.Load().(net.Addr)
	return addr
}

// Handler builds the full middleware chain around the query and health
// routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", s.handleQuery)
	mux.Handle("/health", health.NewHandler(health.AlwaysReady{}, s.logger))

	var handler http.Handler = mux
	if s.traceEnabled {
		handler = otelhttp.NewHandler(handler, "prolog-service")
	}
	handler = logging.NewHandler(handler, s.logger)
	handler = requestid.NewHandler(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: s.corsAllowedOrigins,
		AllowedHeaders: s.corsAllowedHeaders,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(handler)
	handler = recovery.HTTPPanicRecoveryHandler(handler, s.logger)

	return handler
}

// Run serves HTTP until ctx is cancelled, then drains. In-flight query
// handlers block on their evaluation goroutine, so http.Server.Shutdown
// does not return until every admitted evaluation has delivered its
// response.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("listen on '%s': %w", s.addr, err)
	}
	s.listenAt.Store(lis.Addr())

	httpServer := &http.Server{
		Handler:   s.Handler(),
		TLSConfig: s.tlsConfig,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.state.Store(int32(StateAccepting))
		s.logger.Info(fmt.Sprintf("🚀 starting HTTP server on '%s'...", lis.Addr()))
		var err error
		if s.tlsConfig != nil {
			err = httpServer.ServeTLS(lis, "", "")
		} else {
			err = httpServer.Serve(lis)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		s.state.Store(int32(StateStopped))
		return err
	case <-ctx.Done():
	}

	s.state.Store(int32(StateDraining))
	s.logger.Info("draining in-flight evaluations...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("drain HTTP server: %w", err)
	}

	s.state.Store(int32(StateStopped))
	s.logger.Info("HTTP server stopped")
	return <-serveErr
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	entries, err := s.dispatcher.Dispatch(r.Context(), req.Program, req.Query)
	if err != nil {
		telemetry.TraceError(trace.SpanFromContext(r.Context()), err)
		if errors.Is(err, admission.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "service unavailable"})
			return
		}
		s.logger.ErrorWithContext(r.Context(), "evaluation failed", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"error": err.Error()})
		return
	}

	if entries == nil {
		// zero answers still marshal as [], not null
		entries = make([]runner.Entry, 0)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
