// Package httpserver exposes the KYB system over HTTP: the MCP JSON-RPC
// endpoints with an SSE transport, the direct assessment endpoints and the
// sentiment screening endpoint.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kybradar/kybradar/core/pipeline"
	"github.com/kybradar/kybradar/core/sentiment"
	"github.com/kybradar/kybradar/mcp"
	"github.com/kybradar/kybradar/refdata"
)

const maxMessageBytes = 1 << 20

// Server is the HTTP front of the KYB system.
type Server struct {
	conductor *pipeline.Conductor
	mcpServer *mcp.Server
	hub       *mcp.Hub
	client    *mcp.Client
	analyzer  *sentiment.Analyzer
	log       *slog.Logger

	httpServer *http.Server
}

// New assembles the server. client and analyzer are optional; their
// endpoints report unavailability when absent.
func New(addr string, conductor *pipeline.Conductor, mcpServer *mcp.Server, hub *mcp.Hub, client *mcp.Client, analyzer *sentiment.Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		conductor: conductor,
		mcpServer: mcpServer,
		hub:       hub,
		client:    client,
		analyzer:  analyzer,
		log:       logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/mcp", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/message", s.handleMessage)
		r.Get("/sse", s.handleSSE)
		r.Post("/sse/message", s.handleSSEMessage)
	})

	r.Route("/kyb", func(r chi.Router) {
		r.Get("/run/{customerID}", s.handleRunKYB)
		r.Get("/mcp/run/{customerID}", s.handleRunKYBViaMCP)
		r.Get("/scope/{customerID}", s.handleRiskScope)
		r.Get("/sentiment/{customerID}", s.handleSentiment)
	})

	return r
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"server":      mcp.ServerName,
		"version":     mcp.ServerVersion,
		"subscribers": s.hub.Len(),
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}
	resp := s.mcpServer.HandleMessage(r.Context(), body)
	writeJSON(w, http.StatusOK, resp)
}

// handleSSEMessage accepts a message over the SSE transport: the response is
// broadcast to subscribers rather than returned on this connection.
func (s *Server) handleSSEMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}
	resp := s.mcpServer.HandleMessage(r.Context(), body)
	if b, err := json.Marshal(resp); err == nil {
		s.hub.Broadcast(b)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID, messages := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sessionID)

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp/sse/message?session_id=%s\n\n", sessionID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) handleRunKYB(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	outcome, err := s.conductor.RunKYB(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, refdata.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":       "not_found",
				"message":     err.Error(),
				"customer_id": customerID,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRunKYBViaMCP(w http.ResponseWriter, r *http.Request) {
	if s.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "mcp_client_unconfigured"})
		return
	}
	customerID := chi.URLParam(r, "customerID")
	outcome, err := s.client.RunKYB(r.Context(), customerID)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), refdata.ErrNotFound.Error()) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]any{"error": "mcp_run_failed", "message": err.Error(), "customer_id": customerID})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRiskScope(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	scope, err := s.conductor.AssessRiskScope(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, refdata.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":       "not_found",
				"message":     err.Error(),
				"customer_id": customerID,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, scope)
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "sentiment_unavailable"})
		return
	}
	customerID := chi.URLParam(r, "customerID")
	result, err := s.analyzer.AnalyzeCustomer(customerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
