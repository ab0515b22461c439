package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/config"
	"alpacon-mcp/pkg/logging"
)

// Config controls how the MCP server is exposed.
type Config struct {
	Name    string
	Version string

	Transport string // stdio, sse or streamable-http
	Host      string
	Port      int
	// BaseURL is advertised by the SSE transport (default http://host:port).
	BaseURL string

	// MetricsHandler is mounted at MetricsPath on HTTP transports when set.
	MetricsHandler http.Handler
	MetricsPath    string

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// Server is the MCP server exposing every tool provider.
type Server struct {
	config      Config
	providers   []api.ToolProvider
	credentials CredentialStatus
	callers     map[string]envelopeCaller

	mcpServer *server.MCPServer

	sseServer            *server.SSEServer
	streamableHTTPServer *server.StreamableHTTPServer
	stdioServer          *server.StdioServer
	httpServer           *http.Server
	listener             net.Listener

	ctx        context.Context
	cancelFunc context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
}

// New creates a Server. creds may be nil, in which case the auth resources
// are not registered.
func New(cfg Config, providers []api.ToolProvider, creds CredentialStatus) *Server {
	if cfg.Name == "" {
		cfg.Name = "alpacon-mcp"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Transport == "" {
		cfg.Transport = config.MCPTransportStdio
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	s := &Server{
		config:      cfg,
		providers:   providers,
		credentials: creds,
		callers:     map[string]envelopeCaller{},
		done:        make(chan struct{}),
	}
	for _, p := range providers {
		caller, ok := p.(envelopeCaller)
		if !ok {
			continue
		}
		for _, meta := range p.GetTools() {
			s.callers[meta.Name] = caller
		}
	}
	s.buildMCPServer()
	return s
}

func (s *Server) buildMCPServer() {
	s.mcpServer = server.NewMCPServer(
		s.config.Name,
		s.config.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)
	tools := s.createToolsFromProviders()
	s.mcpServer.AddTools(tools...)
	s.registerResources()
	logging.Info("Server", "Registered %d tools from %d providers", len(tools), len(s.providers))
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Start starts the configured transport. It returns once the transport is
// listening; Done is closed when the transport exits.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return fmt.Errorf("server already started")
	}
	s.ctx, s.cancelFunc = context.WithCancel(ctx)

	switch s.config.Transport {
	case config.MCPTransportStdio:
		logging.Info("Server", "Starting MCP server with stdio transport")
		s.stdioServer = server.NewStdioServer(s.mcpServer)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer close(s.done)
			if err := s.stdioServer.Listen(s.ctx, s.config.Stdin, s.config.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Server", err, "Stdio server error")
			}
		}()
		return nil

	case config.MCPTransportSSE, config.MCPTransportStreamableHTTP:
		return s.startHTTP()

	default:
		s.cancelFunc()
		s.ctx = nil
		return fmt.Errorf("unsupported transport %q", s.config.Transport)
	}
}

func (s *Server) startHTTP() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancelFunc()
		s.ctx = nil
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.handler(ln.Addr().String()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.Info("Server", "Starting MCP server with %s transport on %s", s.config.Transport, ln.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server", err, "HTTP server error")
		}
	}()
	return nil
}

// handler builds the HTTP mux for the active transport plus /healthz and,
// when enabled, the metrics endpoint.
func (s *Server) handler(listenAddr string) http.Handler {
	mux := http.NewServeMux()

	switch s.config.Transport {
	case config.MCPTransportSSE:
		baseURL := s.config.BaseURL
		if baseURL == "" {
			baseURL = "http://" + listenAddr
		}
		s.sseServer = server.NewSSEServer(
			s.mcpServer,
			server.WithBaseURL(baseURL),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
			server.WithKeepAlive(true),
			server.WithKeepAliveInterval(30*time.Second),
		)
		mux.Handle("/sse", s.sseServer)
		mux.Handle("/message", s.sseServer)
	default:
		s.streamableHTTPServer = server.NewStreamableHTTPServer(s.mcpServer)
		mux.Handle("/mcp", s.streamableHTTPServer)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if s.config.MetricsHandler != nil {
		mux.Handle(s.config.MetricsPath, s.config.MetricsHandler)
	}
	return mux
}

// Addr returns the bound address of an HTTP transport, or "" for stdio.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done is closed when the transport stops, e.g. when stdin is closed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Stop shuts the transport down and waits for it to exit.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return fmt.Errorf("server not started")
	}
	logging.Info("Server", "Stopping MCP server")

	cancelFunc := s.cancelFunc
	sseServer := s.sseServer
	streamableServer := s.streamableHTTPServer
	httpServer := s.httpServer
	s.mu.Unlock()

	cancelFunc()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server", err, "Error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server", err, "Error shutting down streamable HTTP server")
		}
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server", err, "Error shutting down HTTP server")
		}
	}

	// Stdio stops on context cancellation; a blocked stdin read may keep the
	// goroutine alive, so waiting is bounded by ctx.
	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-shutdownCtx.Done():
		logging.Warn("Server", "Timed out waiting for the transport to exit")
	}

	s.mu.Lock()
	s.sseServer = nil
	s.streamableHTTPServer = nil
	s.stdioServer = nil
	s.httpServer = nil
	s.mu.Unlock()
	return nil
}
