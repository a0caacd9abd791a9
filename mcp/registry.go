package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kybradar/kybradar/core/pipeline"
	"github.com/kybradar/kybradar/model"
)

// Tool names exposed by the registry. These are part of the wire contract.
const (
	ToolGetCustomerProfile  = "getCustomerProfile"
	ToolAnalyzeTransactions = "analyzeTransactions"
	ToolAssessRisk          = "assessRisk"
	ToolGenerateKYBNote     = "generateKYBNote"
	ToolRunKYB              = "runKYB"
	ToolAssessRiskScope     = "assessRiskScopeAndActions"
)

// Registry maps the tool catalog onto the assessment pipeline. Atomic tool
// results are wrapped in a content block; the composite runKYB and
// assessRiskScopeAndActions results are flattened to top-level keys.
type Registry struct {
	conductor *pipeline.Conductor
	log       *slog.Logger
}

// NewRegistry creates a registry over a conductor.
func NewRegistry(conductor *pipeline.Conductor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{conductor: conductor, log: logger}
}

func customerIDSchema(description string) ToolInputSchema {
	return ToolInputSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"customer_id": {Type: "string", Description: description},
		},
		Required: []string{"customer_id"},
	}
}

// Tools returns the tool catalog.
func (r *Registry) Tools() []Tool {
	return []Tool{
		{
			Name:        ToolGetCustomerProfile,
			Description: "Build the entity profile and party summary for a business customer.",
			InputSchema: customerIDSchema("CRM customer identifier, e.g. CUST-1001"),
		},
		{
			Name:        ToolAnalyzeTransactions,
			Description: "Analyze the customer's recent transaction behaviour for risk-relevant patterns.",
			InputSchema: customerIDSchema("CRM customer identifier"),
		},
		{
			Name:        ToolAssessRisk,
			Description: "Run the deterministic risk rule engine and return the scored assessment.",
			InputSchema: customerIDSchema("CRM customer identifier"),
		},
		{
			Name:        ToolGenerateKYBNote,
			Description: "Write the KYB review note and recommended actions for a customer.",
			InputSchema: customerIDSchema("CRM customer identifier"),
		},
		{
			Name:        ToolRunKYB,
			Description: "Run the complete KYB assessment workflow and return the full outcome.",
			InputSchema: customerIDSchema("CRM customer identifier"),
		},
		{
			Name:        ToolAssessRiskScope,
			Description: "Assess the required review depth and concrete review actions for a customer.",
			InputSchema: customerIDSchema("CRM customer identifier"),
		},
	}
}

// CallTool validates the arguments and dispatches to the named tool.
func (r *Registry) CallTool(ctx context.Context, params CallToolParams) (any, *Error) {
	customerID, ok := params.Arguments["customer_id"].(string)
	if !ok || strings.TrimSpace(customerID) == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "customer_id is required and must be a string"}
	}
	customerID = strings.TrimSpace(customerID)

	switch params.Name {
	case ToolGetCustomerProfile:
		return r.getCustomerProfile(ctx, customerID)
	case ToolAnalyzeTransactions:
		return textResult(map[string]any{
			"transaction_insights": r.conductor.Transactions(ctx, customerID),
		}), nil
	case ToolAssessRisk:
		return r.assessRisk(ctx, customerID)
	case ToolGenerateKYBNote:
		return r.generateKYBNote(ctx, customerID)
	case ToolRunKYB:
		outcome, err := r.conductor.RunKYB(ctx, customerID)
		if err != nil {
			return nil, toolError(err)
		}
		return flattened(outcome)
	case ToolAssessRiskScope:
		scope, err := r.conductor.AssessRiskScope(ctx, customerID)
		if err != nil {
			return nil, toolError(err)
		}
		return scope, nil
	default:
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", params.Name)}
	}
}

func (r *Registry) getCustomerProfile(ctx context.Context, customerID string) (any, *Error) {
	classification, err := r.conductor.Classify(ctx, customerID)
	if err != nil {
		return nil, toolError(err)
	}
	profile, parties, err := r.conductor.Profile(ctx, customerID, classification.JourneyType)
	if err != nil {
		return nil, toolError(err)
	}
	return textResult(map[string]any{
		"journey_type":   classification.JourneyType,
		"entity_profile": profile,
		"party_summary":  parties,
	}), nil
}

func (r *Registry) assessRisk(ctx context.Context, customerID string) (any, *Error) {
	classification, err := r.conductor.Classify(ctx, customerID)
	if err != nil {
		return nil, toolError(err)
	}
	profile, parties, err := r.conductor.Profile(ctx, customerID, classification.JourneyType)
	if err != nil {
		return nil, toolError(err)
	}
	var group *model.GroupContext
	if classification.HasLinkedCustomers {
		group = r.conductor.Group(ctx, customerID)
	}
	insights := r.conductor.Transactions(ctx, customerID)
	assessment := r.conductor.Assess(profile, parties, group, insights, classification.JourneyType)
	return textResult(map[string]any{"risk_assessment": assessment}), nil
}

func (r *Registry) generateKYBNote(ctx context.Context, customerID string) (any, *Error) {
	classification, err := r.conductor.Classify(ctx, customerID)
	if err != nil {
		return nil, toolError(err)
	}
	profile, parties, err := r.conductor.Profile(ctx, customerID, classification.JourneyType)
	if err != nil {
		return nil, toolError(err)
	}
	insights := r.conductor.Transactions(ctx, customerID)
	assessment := r.conductor.Assess(profile, parties, nil, insights, classification.JourneyType)
	note, actions := r.conductor.Narrative(ctx, profile, parties, insights, assessment)
	return textResult(map[string]any{
		"kyb_note":            note,
		"recommended_actions": actions,
	}), nil
}

// textResult wraps a payload in the MCP content-block shape.
func textResult(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("{}")
	}
	return map[string]any{
		"content": []ToolContent{{Type: "text", Text: string(b)}},
	}
}

// flattened exposes the payload's own keys as the tool result.
func flattened(v any) (any, *Error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return out, nil
}

func toolError(err error) *Error {
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
