package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybradar/kybradar/model"
)

// testTransport serves the client over httptest: a health endpoint plus a
// message endpoint backed by handle, which may rewrite responses per tool.
func testTransport(t *testing.T, handle func(ctx context.Context, raw []byte) *Message) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/mcp/message", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(handle(r.Context(), body)))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ts, NewClient(ts.URL+"/mcp", logger)
}

func TestClientRunKYB(t *testing.T) {
	t.Run("Unreachable server fails fast", func(t *testing.T) {
		ts, client := testTransport(t, func(ctx context.Context, raw []byte) *Message { return nil })
		ts.Close()

		_, err := client.RunKYB(context.Background(), "CUST-3001")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "mcp server unavailable")
	})

	t.Run("Composite tool result is decoded from top level keys", func(t *testing.T) {
		server := testServer()
		_, client := testTransport(t, server.HandleMessage)

		outcome, err := client.RunKYB(context.Background(), "CUST-3001")

		require.NoError(t, err)
		assert.Equal(t, "Harbor Freight Ltd", outcome.EntityProfile.LegalName)
		assert.NotEmpty(t, outcome.RiskAssessment.RiskBand)
		assert.NotEmpty(t, outcome.KYBNote)
		require.NotNil(t, outcome.AuditTrail)
	})

	t.Run("Structured field takes precedence over content text", func(t *testing.T) {
		_, client := testTransport(t, func(ctx context.Context, raw []byte) *Message {
			var req Message
			require.NoError(t, json.Unmarshal(raw, &req))
			return &Message{JSONRPC: JSONRPCVersion, ID: req.ID, Result: map[string]any{
				"structured": map[string]any{
					"journey_type": model.JourneySoleTrader,
					"kyb_note":     "from structured",
				},
				"content": []ToolContent{{Type: "text", Text: `{"kyb_note":"from content"}`}},
			}}
		})

		outcome, err := client.RunKYB(context.Background(), "CUST-3001")

		require.NoError(t, err)
		assert.Equal(t, model.JourneySoleTrader, outcome.JourneyType)
		assert.Equal(t, "from structured", outcome.KYBNote)
	})

	t.Run("Content text JSON is parsed when no top level keys exist", func(t *testing.T) {
		_, client := testTransport(t, func(ctx context.Context, raw []byte) *Message {
			var req Message
			require.NoError(t, json.Unmarshal(raw, &req))
			return &Message{JSONRPC: JSONRPCVersion, ID: req.ID, Result: map[string]any{
				"content": []ToolContent{{Type: "text", Text: `{"journey_type":"GROUP","kyb_note":"from content"}`}},
			}}
		})

		outcome, err := client.RunKYB(context.Background(), "CUST-3001")

		require.NoError(t, err)
		assert.Equal(t, model.JourneyGroup, outcome.JourneyType)
		assert.Equal(t, "from content", outcome.KYBNote)
	})

	t.Run("Composite failure falls back to the atomic tools", func(t *testing.T) {
		server := testServer()
		var calledTools []string
		_, client := testTransport(t, func(ctx context.Context, raw []byte) *Message {
			var req Message
			require.NoError(t, json.Unmarshal(raw, &req))
			if req.Method == "tools/call" {
				var params CallToolParams
				require.NoError(t, json.Unmarshal(req.Params, &params))
				calledTools = append(calledTools, params.Name)
				if params.Name == ToolRunKYB {
					return &Message{JSONRPC: JSONRPCVersion, ID: req.ID,
						Error: &Error{Code: CodeInternalError, Message: "composite workflow disabled"}}
				}
			}
			return server.HandleMessage(ctx, raw)
		})

		outcome, err := client.RunKYB(context.Background(), "CUST-3001")

		require.NoError(t, err)
		assert.Equal(t, []string{
			ToolRunKYB, ToolGetCustomerProfile, ToolAnalyzeTransactions, ToolAssessRisk, ToolGenerateKYBNote,
		}, calledTools)
		assert.Equal(t, "Harbor Freight Ltd", outcome.EntityProfile.LegalName)
		assert.NotEmpty(t, outcome.KYBNote)
		require.NotNil(t, outcome.AuditTrail)
		assert.Equal(t, []string{
			ToolGetCustomerProfile, ToolAnalyzeTransactions, ToolAssessRisk, ToolGenerateKYBNote,
		}, outcome.AuditTrail.AgentsCalled)
	})

	t.Run("Fallback fails when the profile tool fails", func(t *testing.T) {
		_, client := testTransport(t, func(ctx context.Context, raw []byte) *Message {
			var req Message
			require.NoError(t, json.Unmarshal(raw, &req))
			return &Message{JSONRPC: JSONRPCVersion, ID: req.ID,
				Error: &Error{Code: CodeInternalError, Message: "customer CUST-9999: record not found"}}
		})

		_, err := client.RunKYB(context.Background(), "CUST-9999")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "record not found")
	})
}

func TestClientListTools(t *testing.T) {
	t.Run("Catalog round trips through the wire", func(t *testing.T) {
		server := testServer()
		_, client := testTransport(t, server.HandleMessage)

		tools, err := client.ListTools(context.Background())

		require.NoError(t, err)
		require.Len(t, tools, 6)
		assert.Equal(t, ToolGetCustomerProfile, tools[0].Name)
	})
}

func TestClientAssessRiskScope(t *testing.T) {
	t.Run("Scope payload comes back as a map", func(t *testing.T) {
		server := testServer()
		_, client := testTransport(t, server.HandleMessage)

		scope, err := client.AssessRiskScope(context.Background(), "CUST-3001")

		require.NoError(t, err)
		assert.Contains(t, scope, "risk_scope")
		assert.Contains(t, scope, "risk_actions")
	})
}
