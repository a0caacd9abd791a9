package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybradar/kybradar/core/pipeline"
	"github.com/kybradar/kybradar/refdata"
)

type memStore map[string]string

func (m memStore) Load(name string) ([]byte, error) {
	doc, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", name, refdata.ErrNotFound)
	}
	return []byte(doc), nil
}

func testServer() *Server {
	library := refdata.NewLibrary(memStore{
		refdata.DocCRM: `{"customers":[
			{"customer_id":"CUST-3001","legal_name":"Harbor Freight Ltd","sector":"Logistics",
			 "internal_risk_rating":"MEDIUM","kyb_last_review_date":"2025-02-01"}
		]}`,
		refdata.DocParties: `{"customers":{}}`,
		refdata.DocTransactions: `{"customers":{
			"CUST-3001":{"monthly_stats":[
				{"period":"2025-06","intl_outward_amount":10000,"total_outward_amount":50000,
				 "high_risk_country_volume":500,"cash_deposits_amount":2000},
				{"period":"2025-07","intl_outward_amount":12000,"total_outward_amount":52000,
				 "high_risk_country_volume":600,"cash_deposits_amount":2100}
			]}
		}}`,
		refdata.DocCompanies: `{"businesses":[]}`,
		refdata.DocRules: `{
			"risk_scoring_model":{
				"base_scores":{"LOW":10,"MEDIUM":20,"HIGH":40},
				"bands":[
					{"min_score":0,"max_score":29,"risk_band":"GREEN"},
					{"min_score":30,"max_score":999,"risk_band":"RED"}
				]
			}
		}`,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conductor := pipeline.NewConductor(library, nil, logger, 5*time.Second)
	return NewServer(NewRegistry(conductor, logger), logger)
}

func message(t *testing.T, id any, method string, params any) []byte {
	t.Helper()
	msg := Message{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		msg.Params = b
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func TestServerHandleMessage(t *testing.T) {
	server := testServer()
	ctx := context.Background()

	t.Run("Initialize returns the protocol identity and echoes the id", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-1", "initialize", nil))

		require.NotNil(t, resp)
		require.Nil(t, resp.Error)
		assert.Equal(t, JSONRPCVersion, resp.JSONRPC)
		assert.Equal(t, "req-1", resp.ID)

		result, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, ProtocolVersion, result["protocolVersion"])
		serverInfo, ok := result["serverInfo"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, ServerName, serverInfo["name"])
		assert.Equal(t, ServerVersion, serverInfo["version"])
	})

	t.Run("Unknown method yields method not found", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-2", "resources/list", nil))

		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
		assert.Equal(t, "req-2", resp.ID)
	})

	t.Run("Malformed message yields invalid params", func(t *testing.T) {
		resp := server.HandleMessage(ctx, []byte("{not json"))

		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("Tools list contains the full catalog", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-3", "tools/list", nil))

		require.Nil(t, resp.Error)
		result, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		tools, ok := result["tools"].([]Tool)
		require.True(t, ok)
		require.Len(t, tools, 6)

		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, tool.Name)
			assert.Equal(t, "object", tool.InputSchema.Type)
			assert.Contains(t, tool.InputSchema.Required, "customer_id")
		}
		assert.Equal(t, []string{
			ToolGetCustomerProfile, ToolAnalyzeTransactions, ToolAssessRisk,
			ToolGenerateKYBNote, ToolRunKYB, ToolAssessRiskScope,
		}, names)
	})

	t.Run("Missing customer_id yields invalid params", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-4", "tools/call",
			CallToolParams{Name: ToolRunKYB, Arguments: map[string]any{}}))

		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("Unknown tool yields invalid params", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-5", "tools/call",
			CallToolParams{Name: "deleteCustomer", Arguments: map[string]any{"customer_id": "CUST-3001"}}))

		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("Unknown customer yields internal error", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-6", "tools/call",
			CallToolParams{Name: ToolRunKYB, Arguments: map[string]any{"customer_id": "CUST-9999"}}))

		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInternalError, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "record not found")
	})

	t.Run("Composite tool result is flattened to top level keys", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-7", "tools/call",
			CallToolParams{Name: ToolRunKYB, Arguments: map[string]any{"customer_id": "CUST-3001"}}))

		require.Nil(t, resp.Error)
		result, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, result, "journey_type")
		assert.Contains(t, result, "risk_assessment")
		assert.Contains(t, result, "entity_profile")
		assert.Contains(t, result, "_audit_trail")
		assert.NotContains(t, result, "content")
	})

	t.Run("Atomic tool result is wrapped in a content block", func(t *testing.T) {
		resp := server.HandleMessage(ctx, message(t, "req-8", "tools/call",
			CallToolParams{Name: ToolGetCustomerProfile, Arguments: map[string]any{"customer_id": "CUST-3001"}}))

		require.Nil(t, resp.Error)
		result, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		content, ok := result["content"].([]ToolContent)
		require.True(t, ok)
		require.Len(t, content, 1)
		assert.Equal(t, "text", content[0].Type)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(content[0].Text), &payload))
		assert.Contains(t, payload, "entity_profile")
		assert.Contains(t, payload, "party_summary")
	})
}
