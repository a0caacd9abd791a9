package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kybradar/kybradar/core/pipeline"
	"github.com/kybradar/kybradar/helper"
	"github.com/kybradar/kybradar/model"
)

// Client talks to an MCP KYB server over HTTP. RunKYB prefers the composite
// runKYB tool and falls back to orchestrating the atomic tools client-side
// when the composite call fails.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client for a server base URL, e.g.
// "http://localhost:8080/mcp".
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger,
	}
}

// Health checks the server health endpoint. Any non-200 status is an error.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return helper.NewError("build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return helper.NewError("health check", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// call sends one JSON-RPC request and returns the result payload. Request
// ids are fresh UUIDs; a response with a mismatched id is rejected.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := uuid.NewString()

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, helper.NewError("marshal params", err)
		}
		rawParams = b
	}

	body, err := json.Marshal(Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, helper.NewError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return nil, helper.NewError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, helper.NewError(fmt.Sprintf("call %s", method), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, helper.NewError("read response", err)
	}

	var msg struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      any             `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
	}
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, helper.NewError("parse response", err)
	}
	if msg.Error != nil {
		return nil, fmt.Errorf("call %s: server error %d: %s", method, msg.Error.Code, msg.Error.Message)
	}
	if got, ok := msg.ID.(string); ok && got != id {
		return nil, fmt.Errorf("call %s: response id %q does not match request id %q", method, got, id)
	}
	return msg.Result, nil
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      map[string]any{"name": "mcp-kyb-client", "version": ServerVersion},
	})
	return err
}

// ListTools returns the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, helper.NewError("parse tool list", err)
	}
	return out.Tools, nil
}

// CallTool invokes one tool and returns the raw result object.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	result, err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, helper.NewError(fmt.Sprintf("parse %s result", name), err)
	}
	return out, nil
}

// RunKYB runs the full assessment through the server. The composite runKYB
// tool is preferred; if it fails the client orchestrates the atomic tools
// itself. An unreachable server fails fast before any tool call.
func (c *Client) RunKYB(ctx context.Context, customerID string) (model.KYBOutcome, error) {
	if err := c.Health(ctx); err != nil {
		return model.KYBOutcome{}, fmt.Errorf("mcp server unavailable: %w", err)
	}

	result, err := c.CallTool(ctx, ToolRunKYB, map[string]any{"customer_id": customerID})
	if err == nil {
		outcome := decodeOutcome(extractPayload(result), customerID)
		return enrichGroupStructure(outcome, result), nil
	}

	c.log.Warn("runKYB tool failed, orchestrating atomic tools", "customer_id", customerID, "error", err)
	return c.runAtomic(ctx, customerID)
}

// AssessRiskScope invokes the standalone review-scope tool.
func (c *Client) AssessRiskScope(ctx context.Context, customerID string) (map[string]any, error) {
	if err := c.Health(ctx); err != nil {
		return nil, fmt.Errorf("mcp server unavailable: %w", err)
	}
	result, err := c.CallTool(ctx, ToolAssessRiskScope, map[string]any{"customer_id": customerID})
	if err != nil {
		return nil, err
	}
	if payload, ok := extractPayload(result).(map[string]any); ok {
		return payload, nil
	}
	return result, nil
}

// runAtomic rebuilds the outcome from the four atomic tools. Only the
// profile tool is mandatory; every other failure degrades to defaults.
func (c *Client) runAtomic(ctx context.Context, customerID string) (model.KYBOutcome, error) {
	args := map[string]any{"customer_id": customerID}

	profileRes, err := c.CallTool(ctx, ToolGetCustomerProfile, args)
	if err != nil {
		return model.KYBOutcome{}, fmt.Errorf("atomic fallback: %w", err)
	}
	var profilePayload struct {
		JourneyType   string             `json:"journey_type"`
		EntityProfile model.EntityProfile `json:"entity_profile"`
		PartySummary  json.RawMessage     `json:"party_summary"`
	}
	decodePayload(extractPayload(profileRes), &profilePayload)

	journeyType := profilePayload.JourneyType
	if journeyType == "" {
		journeyType = model.JourneyLimitedSingle
	}
	profile := model.NormalizeEntityProfile(profilePayload.EntityProfile,
		model.EntityProfile{CustomerID: customerID, InternalRiskRating: "MEDIUM"})
	parties := model.NormalizePartySummary([]byte(profilePayload.PartySummary), model.DefaultPartySummary(customerID))

	insights := model.DefaultTransactionInsights()
	if txRes, err := c.CallTool(ctx, ToolAnalyzeTransactions, args); err == nil {
		insights = model.NormalizeTransactionInsights(extractPayload(txRes), insights)
	} else {
		c.log.Warn("transaction tool failed", "customer_id", customerID, "error", err)
	}

	assessment := model.DefaultRiskAssessment(journeyType)
	if riskRes, err := c.CallTool(ctx, ToolAssessRisk, args); err == nil {
		var riskPayload struct {
			RiskAssessment model.RiskAssessment `json:"risk_assessment"`
		}
		decodePayload(extractPayload(riskRes), &riskPayload)
		assessment = model.NormalizeRiskAssessment(riskPayload.RiskAssessment, journeyType)
	} else {
		c.log.Warn("risk tool failed", "customer_id", customerID, "error", err)
	}

	note := pipeline.FallbackKYBNote(profile, assessment, insights)
	actions := pipeline.DefaultActions(assessment)
	if noteRes, err := c.CallTool(ctx, ToolGenerateKYBNote, args); err == nil {
		if n, a, ok := model.NormalizeNarrative(extractPayload(noteRes)); ok {
			note, actions = n, a
		}
	} else {
		c.log.Warn("note tool failed", "customer_id", customerID, "error", err)
	}

	outcome := model.NormalizeOutcome(model.KYBOutcome{
		JourneyType:         journeyType,
		EntityProfile:       profile,
		PartySummary:        parties,
		TransactionInsights: insights,
		RiskAssessment:      assessment,
		KYBNote:             note,
		RecommendedActions:  actions,
		AuditTrail: &model.AuditTrail{
			AgentsCalled: []string{ToolGetCustomerProfile, ToolAnalyzeTransactions, ToolAssessRisk, ToolGenerateKYBNote},
			CustomerID:   customerID,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		},
	}, customerID)
	return outcome, nil
}

// extractPayload resolves a tool result to its business payload. Precedence:
// an explicit "structured" field, then recognisable top-level business keys,
// then JSON parsed from the first content text block, then the raw text.
func extractPayload(result map[string]any) any {
	if s, ok := result["structured"]; ok && s != nil {
		return s
	}
	if hasBusinessKeys(result) {
		return result
	}
	if text := firstContentText(result); text != "" {
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err == nil {
			return parsed
		}
		return text
	}
	return result
}

func hasBusinessKeys(result map[string]any) bool {
	for _, key := range []string{"journey_type", "entity_profile", "risk_assessment", "transaction_insights", "kyb_note", "risk_scope"} {
		if _, ok := result[key]; ok {
			return true
		}
	}
	return false
}

func firstContentText(result map[string]any) string {
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		return ""
	}
	block, ok := content[0].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := block["text"].(string)
	return text
}

func decodePayload(payload any, out any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = json.Unmarshal(b, out)
}

func decodeOutcome(payload any, customerID string) model.KYBOutcome {
	var outcome model.KYBOutcome
	decodePayload(payload, &outcome)
	return model.NormalizeOutcome(outcome, customerID)
}

// enrichGroupStructure fills a missing group structure description from an
// organization_structure field the server may carry alongside the outcome.
func enrichGroupStructure(outcome model.KYBOutcome, raw map[string]any) model.KYBOutcome {
	if outcome.GroupContext == nil || outcome.GroupContext.GroupStructure != "" {
		return outcome
	}
	if s, ok := raw["organization_structure"].(string); ok && s != "" {
		outcome.GroupContext.GroupStructure = s
	}
	return outcome
}
