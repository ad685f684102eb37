package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ca-srg/yelpmcp/internal/logging"
	"github.com/ca-srg/yelpmcp/internal/types"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "yelp-business-api"

const requestIDHeader = "X-Request-ID"

// ServerWrapper owns the SDK server and, for the http transport, its listener.
type ServerWrapper struct {
	sdkServer  *mcp.Server
	httpServer *http.Server
	listener   net.Listener

	configAdapter *ConfigAdapter
	sdkConfig     *SDKServerConfig
	config        *types.Config
	version       string

	toolRegistry          *ToolRegistry
	unifiedAuthMiddleware *UnifiedAuthMiddleware

	logger    zerolog.Logger
	wg        sync.WaitGroup
	mutex     sync.RWMutex
	isRunning bool
	startedAt time.Time
}

// NewServerWrapper creates the SDK server for the given configuration.
func NewServerWrapper(config *types.Config, version string) (*ServerWrapper, error) {
	if config == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	configAdapter := NewConfigAdapter(config)
	sdkConfig, err := configAdapter.ToSDKConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to convert configuration: %w", err)
	}

	if version == "" {
		version = "dev"
	}

	sw := &ServerWrapper{
		configAdapter: configAdapter,
		sdkConfig:     sdkConfig,
		config:        config,
		version:       version,
		logger:        logging.NewLogger("mcp-server"),
	}

	impl := &mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}
	sw.sdkServer = mcp.NewServer(impl, nil)

	sw.logger.Debug().Str("name", impl.Name).Str("version", impl.Version).Msg("SDK server initialized")
	return sw, nil
}

// RegisterTools installs every tool from registry on the SDK server.
func (sw *ServerWrapper) RegisterTools(registry *ToolRegistry) error {
	if err := registry.InstallInto(sw.sdkServer); err != nil {
		return err
	}

	sw.mutex.Lock()
	sw.toolRegistry = registry
	sw.mutex.Unlock()
	return nil
}

// SetUnifiedAuthMiddleware sets the authentication applied to every HTTP route.
func (sw *ServerWrapper) SetUnifiedAuthMiddleware(middleware *UnifiedAuthMiddleware) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	sw.unifiedAuthMiddleware = middleware
	if middleware != nil {
		sw.logger.Info().Str("method", string(middleware.GetAuthMethod())).Msg("Unified authentication middleware set")
	}
}

// RunStdio serves a single client over stdin/stdout until ctx is done or the
// client disconnects.
func (sw *ServerWrapper) RunStdio(ctx context.Context) error {
	sw.logger.Info().Int("tools", sw.toolCount()).Msg("Serving MCP over stdio")
	if err := sw.sdkServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server failed: %w", err)
	}
	return nil
}

// Handler builds the full HTTP handler chain: routes, auth, request ids and
// access logging.
func (sw *ServerWrapper) Handler() http.Handler {
	mux := http.NewServeMux()

	getServer := func(*http.Request) *mcp.Server { return sw.sdkServer }
	mux.Handle("/", mcp.NewStreamableHTTPHandler(getServer, nil))
	mux.Handle("/mcp", NewDualTransportHandler(getServer))
	mux.HandleFunc("/health", sw.handleHealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux

	sw.mutex.RLock()
	auth := sw.unifiedAuthMiddleware
	sw.mutex.RUnlock()
	if auth != nil {
		handler = auth.Middleware(handler)
	}

	handler = sw.loggingMiddleware(handler)
	return requestIDMiddleware(handler)
}

// Start binds the listener and serves HTTP in the background.
func (sw *ServerWrapper) Start() error {
	handler := sw.Handler()

	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if sw.isRunning {
		return fmt.Errorf("server is already running")
	}

	addr := sw.configAdapter.GetServerAddress()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	sw.listener = listener
	sw.httpServer = &http.Server{
		Handler:        handler,
		ReadTimeout:    sw.sdkConfig.ReadTimeout,
		WriteTimeout:   sw.sdkConfig.WriteTimeout,
		IdleTimeout:    sw.sdkConfig.IdleTimeout,
		MaxHeaderBytes: sw.sdkConfig.MaxHeaderBytes,
	}

	server := sw.httpServer
	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sw.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	sw.isRunning = true
	sw.startedAt = time.Now()
	sw.logger.Info().
		Str("address", listener.Addr().String()).
		Int("tools", sw.toolCountLocked()).
		Msg("MCP server started")
	return nil
}

// Stop shuts the HTTP server down, gracefully when configured.
func (sw *ServerWrapper) Stop() error {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if !sw.isRunning {
		return fmt.Errorf("server is not running")
	}

	sw.logger.Info().Msg("Stopping MCP server")

	if sw.sdkConfig.GracefulShutdown {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sw.sdkConfig.ShutdownTimeout)
		defer cancel()

		if err := sw.httpServer.Shutdown(shutdownCtx); err != nil {
			sw.logger.Warn().Err(err).Msg("Graceful shutdown failed, forcing close")
			if err := sw.httpServer.Close(); err != nil {
				sw.logger.Error().Err(err).Msg("Failed to close HTTP server")
			}
		}
	} else if err := sw.httpServer.Close(); err != nil {
		sw.logger.Error().Err(err).Msg("Failed to close HTTP server")
	}

	sw.wg.Wait()
	sw.isRunning = false
	sw.logger.Info().Msg("MCP server stopped")
	return nil
}

// IsRunning returns whether the HTTP server is serving
func (sw *ServerWrapper) IsRunning() bool {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()
	return sw.isRunning
}

// Addr returns the bound listener address, or the configured one before Start.
func (sw *ServerWrapper) Addr() string {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()
	if sw.listener != nil {
		return sw.listener.Addr().String()
	}
	return sw.configAdapter.GetServerAddress()
}

// GetConfig returns the server configuration
func (sw *ServerWrapper) GetConfig() *SDKServerConfig {
	return sw.sdkConfig
}

// GetSDKServer returns the underlying SDK server instance
func (sw *ServerWrapper) GetSDKServer() *mcp.Server {
	return sw.sdkServer
}

func (sw *ServerWrapper) toolCount() int {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()
	return sw.toolCountLocked()
}

func (sw *ServerWrapper) toolCountLocked() int {
	if sw.toolRegistry == nil {
		return 0
	}
	return sw.toolRegistry.ToolCount()
}

type healthStatus struct {
	Status  string `json:"status"`
	Server  string `json:"server"`
	Version string `json:"version"`
	Running bool   `json:"running"`
	Tools   int    `json:"tools"`
	Uptime  string `json:"uptime,omitempty"`
}

func (sw *ServerWrapper) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	sw.mutex.RLock()
	status := healthStatus{
		Status:  "healthy",
		Server:  ServerName,
		Version: sw.version,
		Running: sw.isRunning,
		Tools:   sw.toolCountLocked(),
	}
	if sw.isRunning {
		status.Uptime = time.Since(sw.startedAt).Round(time.Second).String()
	}
	sw.mutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		sw.logger.Error().Err(err).Msg("Failed to write health response")
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += int64(n)
	return n, err
}

// Flush keeps SSE streaming working through the wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func (sw *ServerWrapper) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := newLoggingResponseWriter(w)
		next.ServeHTTP(lrw, r)

		sw.logger.Info().
			Str("request_id", getRequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", lrw.status).
			Int64("bytes", lrw.size).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Str("client_ip", ExtractClientIP(r)).
			Str("forwarded", strings.Join(r.Header.Values("X-Forwarded-For"), ",")).
			Str("user_agent", r.Header.Get("User-Agent")).
			Msg("Request")
	})
}

// requestIDMiddleware propagates X-Request-ID, generating one when absent.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
