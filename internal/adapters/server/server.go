// Package server hosts the REST and MCP transports behind one listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/hylla/cardflow/internal/adapters/server/httpapi"
	"github.com/hylla/cardflow/internal/adapters/server/mcpapi"
	"github.com/hylla/cardflow/internal/app"
)

const (
	defaultBind       = "127.0.0.1:8080"
	defaultAPIPath    = "/api/v1"
	defaultMCPPath    = "/mcp"
	defaultActor      = "system"
	shutdownGraceTime = 5 * time.Second
)

// Config names the listen address, mount paths and identity of a serve process.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
	DefaultActor  string
}

// Dependencies carries the card service both transports drive.
type Dependencies struct {
	Service common.CardService
	Logger  app.Logger
}

// NewHandler mounts health probes, the REST API and the MCP endpoint on one mux.
// It returns the config with defaults filled in.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	resolved, err := withDefaults(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Service == nil {
		return nil, Config{}, fmt.Errorf("card service dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(
		mcpapi.Config{
			ServerName:    resolved.ServerName,
			ServerVersion: resolved.ServerVersion,
			EndpointPath:  resolved.MCPEndpoint,
			DefaultActor:  resolved.DefaultActor,
		},
		deps.Service,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	apiHandler := httpapi.NewHandler(deps.Service, resolved.DefaultActor)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", writeOK)
	mux.HandleFunc("/readyz", writeOK)
	mux.Handle(resolved.MCPEndpoint, mcpHandler)
	mux.Handle(resolved.APIEndpoint, http.StripPrefix(resolved.APIEndpoint, apiHandler))
	mux.Handle(resolved.APIEndpoint+"/", http.StripPrefix(resolved.APIEndpoint, apiHandler))
	return withRequestLog(mux, deps.Logger), resolved, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, resolved, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	httpServer := &http.Server{
		Addr:    resolved.HTTPBind,
		Handler: handler,
	}

	if deps.Logger != nil {
		deps.Logger.Info("serving", "bind", resolved.HTTPBind, "api", resolved.APIEndpoint, "mcp", resolved.MCPEndpoint)
	}
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		return drain(httpServer, serveErrCh)
	}
}

func drain(httpServer *http.Server, serveErrCh <-chan error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGraceTime)
	defer cancel()
	shutdownErr := httpServer.Shutdown(shutdownCtx)
	serveErr := <-serveErrCh
	if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", serveErr)
	}
	return nil
}

func withDefaults(cfg Config) (Config, error) {
	cfg.HTTPBind = orDefault(cfg.HTTPBind, defaultBind)
	cfg.APIEndpoint = mountPath(cfg.APIEndpoint, defaultAPIPath)
	cfg.MCPEndpoint = mountPath(cfg.MCPEndpoint, defaultMCPPath)
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ, both are %s", cfg.APIEndpoint)
	}
	cfg.ServerName = orDefault(cfg.ServerName, "cardflow")
	cfg.ServerVersion = orDefault(cfg.ServerVersion, "dev")
	cfg.DefaultActor = orDefault(cfg.DefaultActor, defaultActor)
	return cfg, nil
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

// mountPath cleans p into a rooted path without a trailing slash; the root itself is not mountable.
func mountPath(p, fallback string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	if p == "/" {
		return fallback
	}
	return p
}

func writeOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streamable MCP responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withRequestLog logs one debug line per request. A nil logger disables it.
func withRequestLog(next http.Handler, logger app.Logger) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started))
	})
}
