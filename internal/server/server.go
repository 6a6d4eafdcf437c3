package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"fieldsign/internal/blobstore"
	"fieldsign/internal/policy"
	"fieldsign/internal/signing"
	"fieldsign/internal/store"
)

const (
	allowRemoteEnvKey = "FIELDSIGN_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second

	loginMaxFailures = 5
	loginWindow      = time.Minute
	loginBlockedFor  = 5 * time.Minute
)

// Options collects the collaborators the server needs. All services are
// constructed by the caller and injected.
type Options struct {
	Addr       string
	Store      *store.Store
	Signing    *signing.Service
	Engine     *policy.Engine
	Limiter    *policy.PhotoRateLimiter
	Catalog    policy.Catalog
	Blobs      *blobstore.CAS
	JWTSecret  []byte
	SessionTTL time.Duration
	Version    string
	Logger     *slog.Logger
}

// Server wraps HTTP handlers for the fieldsign API.
type Server struct {
	addr         string
	store        *store.Store
	signing      *signing.Service
	engine       *policy.Engine
	limiter      *policy.PhotoRateLimiter
	catalog      policy.Catalog
	blobs        *blobstore.CAS
	jwtSecret    []byte
	sessionTTL   time.Duration
	version      string
	logger       *slog.Logger
	loginLimiter *loginRateLimiter
	now          func() time.Time
}

// New creates a new server instance.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:         opts.Addr,
		store:        opts.Store,
		signing:      opts.Signing,
		engine:       opts.Engine,
		limiter:      opts.Limiter,
		catalog:      opts.Catalog,
		blobs:        opts.Blobs,
		jwtSecret:    opts.JWTSecret,
		sessionTTL:   opts.SessionTTL,
		version:      opts.Version,
		logger:       logger,
		loginLimiter: newLoginRateLimiter(loginMaxFailures, loginWindow, loginBlockedFor),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// HTTPServer builds the configured http.Server; the caller owns its
// lifecycle so it can be shut down gracefully.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	return s.HTTPServer().ListenAndServe()
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

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
