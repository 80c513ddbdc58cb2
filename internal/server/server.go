// Package server hosts the wizard over HTTP: the fragment catalog, editable
// sessions with live previews pushed over websockets, and the fragment files
// that remote fetchers read.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/mpwizard/internal/config"
	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/generator"
	"github.com/conneroisu/mpwizard/internal/logging"
	"github.com/conneroisu/mpwizard/internal/session"
)

// DefaultMaxSessions bounds the in-memory session store.
const DefaultMaxSessions = 256

// Options carries the collaborators of a PreviewServer. Zero values fall
// back to the shipped catalog, the embedded fragment files and a discarding
// logger.
type Options struct {
	Library     *fragments.Library
	Generator   *generator.Generator
	Files       fs.FS
	Logger      logging.Logger
	MaxSessions int
}

// PreviewServer serves the wizard API and live previews.
type PreviewServer struct {
	config    *config.Config
	lib       *fragments.Library
	generator *generator.Generator
	files     fs.FS
	logger    logging.Logger
	errors    *errors.ErrorHandler
	sessions  *sessionStore
	limiter   *RateLimiter
	hub       *hub

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a preview server.
func New(cfg *config.Config, opts Options) *PreviewServer {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if opts.Library == nil {
		opts.Library = fragments.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Generator == nil {
		opts.Generator = generator.New(opts.Library, nil, nil, opts.Logger, generator.Options{
			DefaultVersion: cfg.Assembly.DefaultVersion,
		})
	}
	if opts.Files == nil {
		opts.Files = fragments.FS()
	}
	if opts.MaxSessions == 0 {
		opts.MaxSessions = DefaultMaxSessions
	}

	logger := opts.Logger.WithComponent("server")

	s := &PreviewServer{
		config:    cfg,
		lib:       opts.Library,
		generator: opts.Generator,
		files:     opts.Files,
		logger:    logger,
		errors:    errors.NewErrorHandler(logger),
		sessions:  newSessionStore(opts.MaxSessions),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	s.hub = newHub(cfg.Watch.Debounce, s.render, logger)

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", templ.Handler(indexPage(s.lib)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/fragments", s.handleFragments)
	mux.HandleFunc("POST /api/assemble", s.handleAssemble)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleReplaceSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PUT /api/sessions/{id}/basic", s.handleSetBasicInfo)
	mux.HandleFunc("POST /api/sessions/{id}/instances", s.handleAddInstance)
	mux.HandleFunc("DELETE /api/sessions/{id}/instances/{instanceID}", s.handleRemoveInstance)
	mux.HandleFunc("PUT /api/sessions/{id}/discovery", s.handleSetDiscovery)
	mux.HandleFunc("PUT /api/sessions/{id}/values", s.handleSetValue)
	mux.HandleFunc("POST /api/sessions/{id}/import", s.handleImport)
	mux.HandleFunc("DELETE /api/sessions/{id}/import", s.handleDetachImport)
	mux.HandleFunc("GET /api/sessions/{id}/preview", s.handlePreview)
	mux.HandleFunc("GET /api/sessions/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /api/sessions/{id}/deploy-script", s.handleDeployScript)

	prefix := "/" + strings.Trim(s.config.Fragments.LibraryDir, "/") + "/"
	mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServerFS(s.files)))

	return s.addMiddleware(mux)
}

// Start serves until ctx is cancelled or the server is shut down.
func (s *PreviewServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.serverMutex.Lock()
	s.httpServer = server
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown incomplete")
		}
	}()

	url := "http://" + addr
	s.logger.Info(ctx, "Preview server listening", "url", url)
	if s.config.Server.Open {
		go s.openBrowser(ctx, url)
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.NewIOError(errors.ErrCodeInternalError, "server error", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.hub.close()
		if s.limiter != nil {
			s.limiter.Stop()
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// render produces the preview of a stored session.
func (s *PreviewServer) render(ctx context.Context, id string) (string, error) {
	e, err := s.sessions.get(id)
	if err != nil {
		return "", err
	}

	var out string
	_ = e.view(func(sess *session.Session) error {
		out = s.generator.Preview(ctx, sess)

		return nil
	})

	return out, nil
}

func (s *PreviewServer) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond) // Give server time to start

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	api := handler
	if s.limiter != nil {
		api = s.limiter.Middleware(handler)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)

			return
		}

		next := handler
		if strings.HasPrefix(r.URL.Path, "/api/") {
			next = api
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", logging.SanitizeForLog(r.URL.Path),
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// isAllowedOrigin checks if the origin is in the allowed origins list
func (s *PreviewServer) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range s.config.Server.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket handshake take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols

	return hj.Hijack()
}
