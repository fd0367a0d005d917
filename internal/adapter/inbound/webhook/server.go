package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RateLimit    int           `yaml:"rateLimit"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
}

// Address returns host:port, defaulting the host to all interfaces.
func (c ServerConfig) Address() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, fmt.Sprint(c.Port))
}

// Server is an adapter-owned webhook listener. It can be started and stopped
// repeatedly, matching the adapter connect/disconnect cycle.
type Server struct {
	cfg     ServerConfig
	handler http.Handler
	logger  *slog.Logger

	routes http.Handler

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer wraps handler (usually an adapter's Router) in the middleware stack.
func NewServer(cfg ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 600
	}
	s := &Server{cfg: cfg, handler: handler, logger: logger}
	s.routes = s.SetupRoutes()
	return s
}

// SetupRoutes builds and returns an http.Handler with all middleware applied.
// Route layout:
//
//	GET  /health  - Health check
//	*    /        - Adapter router
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HealthHandler())
	mux.Handle("/", s.handler)

	// Apply middleware stack (outermost = first to execute):
	//   BodyReader -> Logging -> RateLimit -> SecurityHeaders
	var h http.Handler = mux
	h = middleware.SecurityHeaders(h)
	h = middleware.NewRateLimiter(s.cfg.RateLimit)(h)
	h = middleware.NewLoggingMiddleware(s.logger)(h)
	h = middleware.BodyReader(s.cfg.MaxBodyBytes)(h)

	return h
}

// Listen binds the configured address and serves in the background. Bind
// errors are returned synchronously.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address(), err)
	}

	srv := &http.Server{
		Handler:      s.routes,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.srv, s.ln = srv, ln

	go func() {
		s.logger.Info("webhook server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server stopped", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts the server down. Calling Close on a stopped server is a no-op.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("webhook server shutdown error: %w", err)
	}
	return nil
}

// Addr returns the bound address, or "" when the server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// HealthHandler returns a handler that reports the server as alive.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
