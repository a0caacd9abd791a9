package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Server dispatches JSON-RPC messages to the protocol methods. It is
// transport-agnostic; the HTTP layer feeds it raw message bytes.
type Server struct {
	registry *Registry
	log      *slog.Logger
}

// NewServer creates a server over a tool registry.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, log: logger}
}

// HandleMessage processes one JSON-RPC message and returns the response.
// The response always echoes the request id. A panic in a handler becomes an
// internal error response instead of tearing down the transport.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) (resp *Message) {
	var req Message
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorMessage(nil, CodeInvalidParams, fmt.Sprintf("malformed message: %v", err))
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in message handler", "method", req.Method, "panic", fmt.Sprint(r))
			resp = errorMessage(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return resultMessage(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    ServerName,
				"version": ServerVersion,
			},
		})
	case "tools/list":
		return resultMessage(req.ID, map[string]any{"tools": s.registry.Tools()})
	case "tools/call":
		var params CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorMessage(req.ID, CodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err))
		}
		s.log.Debug("tool call", "tool", params.Name)
		result, callErr := s.registry.CallTool(ctx, params)
		if callErr != nil {
			return &Message{JSONRPC: JSONRPCVersion, ID: req.ID, Error: callErr}
		}
		return resultMessage(req.ID, result)
	default:
		return errorMessage(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func resultMessage(id any, result any) *Message {
	return &Message{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func errorMessage(id any, code int, message string) *Message {
	return &Message{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: code, Message: message}}
}
