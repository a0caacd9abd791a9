// Package mcp implements the Model Context Protocol surface of the KYB
// system: the JSON-RPC message types, the tool registry over the assessment
// pipeline, a transport-agnostic server, an SSE broadcast hub and an HTTP
// client with a degraded-mode fallback.
package mcp

import "encoding/json"

// Protocol identity constants. These are part of the wire contract.
const (
	JSONRPCVersion  = "2.0"
	ProtocolVersion = "2024-11-05"
	ServerName      = "mcp-kyb-server"
	ServerVersion   = "1.0.0"
)

// JSON-RPC error codes used by the server.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message is a JSON-RPC 2.0 request or response envelope.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Tool describes one callable tool in the catalog.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ToolInputSchema is the JSON-schema shaped argument declaration of a tool.
type ToolInputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema declares one tool argument.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// CallToolParams are the params of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolContent is one content block of a wrapped tool result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
