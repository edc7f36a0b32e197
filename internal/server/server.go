package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"carlot/internal/links"
	"carlot/internal/metrics"
	"carlot/internal/reconcile"
	"carlot/internal/retrieval"
	"carlot/internal/store"
	"carlot/internal/upload"
)

const (
	allowRemoteEnvKey         = "CARLOT_ALLOW_REMOTE"
	readHeaderTimeout         = 5 * time.Second
	readTimeout               = 5 * time.Minute
	writeTimeout              = 5 * time.Minute
	idleTimeout               = 60 * time.Second
	shutdownTimeout           = 15 * time.Second
	uploadConcurrencyLimit    = 8
	reconcileConcurrencyLimit = 1
)

// Options carries the components a Server routes requests to.
type Options struct {
	Records   store.RecordStore
	Pipeline  *upload.Pipeline
	Links     *links.Manager
	Gateway   *retrieval.Gateway
	Sweeper   *reconcile.Sweeper
	Metrics   *metrics.Metrics
	// FieldName is the multipart field carrying files.
	FieldName string
}

// Server wraps HTTP handlers for the carlot API.
type Server struct {
	addr             string
	store            store.RecordStore
	service          *RecordService
	pipeline         *upload.Pipeline
	gateway          *retrieval.Gateway
	sweeper          *reconcile.Sweeper
	metrics          *metrics.Metrics
	fieldName        string
	observer         metrics.Observer
	logger           *slog.Logger
	uploadLimiter    chan struct{}
	reconcileLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	var observer metrics.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}

	fieldName := strings.TrimSpace(opts.FieldName)
	if fieldName == "" {
		fieldName = upload.DefaultFieldName
	}

	return &Server{
		addr:             addr,
		store:            opts.Records,
		service:          NewRecordService(opts.Records, opts.Pipeline, opts.Links, logger),
		pipeline:         opts.Pipeline,
		gateway:          opts.Gateway,
		sweeper:          opts.Sweeper,
		metrics:          opts.Metrics,
		fieldName:        fieldName,
		observer:         metrics.OrNoop(observer),
		logger:           logger,
		uploadLimiter:    make(chan struct{}, uploadConcurrencyLimit),
		reconcileLimiter: make(chan struct{}, reconcileConcurrencyLimit),
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("starting server", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server", "addr", s.addr)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
