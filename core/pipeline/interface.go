// Package pipeline implements the KYB assessment workflow: function-typed
// stages over unreliable producers, default stage constructors backed by the
// reference library and an LLM completer, and the Conductor that sequences
// them into the outcome contract.
package pipeline

import (
	"context"

	"github.com/kybradar/kybradar/model"
)

// CompleteFunc is the reasoning capability: given a system and user prompt,
// return text, possibly JSON. Implementations are expected to be
// non-deterministic; every call site normalizes the output.
type CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// ClassifyFunc classifies a customer's legal journey.
type ClassifyFunc func(ctx context.Context, customerID string) (model.JourneyClassification, error)

// ProfileFunc builds the entity profile and party summary for a customer.
type ProfileFunc func(ctx context.Context, customerID, journeyType string) (model.EntityProfile, model.PartySummary, error)

// GroupFunc resolves group/affiliate relationships. A nil context with nil
// error means no group affiliation is known.
type GroupFunc func(ctx context.Context, customerID string) (*model.GroupContext, error)

// TransactionsFunc analyzes a customer's transaction behaviour.
type TransactionsFunc func(ctx context.Context, customerID string) (model.TransactionInsights, error)

// NarrativeFunc generates the KYB note and recommended actions.
type NarrativeFunc func(ctx context.Context, profileSummary, transactionSummary string, assessment model.RiskAssessment) (string, []string, error)

// RiskScopeFunc assesses review scope and concrete actions from registry,
// CRM, transaction and rules data.
type RiskScopeFunc func(ctx context.Context, customerID string) (map[string]any, error)
