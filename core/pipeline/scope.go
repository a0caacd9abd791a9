package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kybradar/kybradar/core/rules"
	"github.com/kybradar/kybradar/model"
	"github.com/kybradar/kybradar/refdata"
)

const (
	scopeSystemPrompt = "You are a KYB review planner. From registry data, transaction analysis and the " +
		"rule-based assessment, decide how deep the periodic review must go and which concrete actions to take. " +
		"Respond with a single JSON object with keys risk_scope (object with review_depth and rationale), " +
		"key_risk_drivers (object with registry, profile and transactions lists), risk_actions (list of " +
		"imperative strings) and data_points_used."

	scopeUserPrompt = "CRM record:\n%s\n\nCompany registry extracts:\n%s\n\nTransaction insights:\n%s\n\nRisk assessment:\n%s"
)

// DefaultRiskScope assesses review scope and actions. The completer refines
// the result when configured; the deterministic assembly is both fallback and
// validation anchor. A missing customer is the only error returned.
func DefaultRiskScope(lib *refdata.Library, engine *rules.Engine, complete CompleteFunc) RiskScopeFunc {
	return func(ctx context.Context, customerID string) (map[string]any, error) {
		record, err := lib.Customer(customerID)
		if err != nil {
			return nil, err
		}
		businesses, _ := lib.Businesses(customerID)
		raw, _ := lib.Parties(customerID)
		stats, _ := lib.MonthlyStats(customerID)
		cfg, cfgErr := lib.Rules()
		if cfgErr != nil {
			cfg = model.RulesConfig{}
		}

		insights := model.DefaultTransactionInsights()
		if len(stats) >= 2 {
			insights = AnalyzeMonthlyStats(stats, cfg)
		}
		profile := record.EntityProfile()
		parties := buildPartySummary(customerID, raw)
		journeyType := inferClassification(record, len(raw)).JourneyType
		assessment := engine.Assess(profile, parties, nil, insights, journeyType, cfg)

		deterministic := scopeFromAssessment(record, businesses, parties, insights, assessment)
		if complete == nil {
			return deterministic, nil
		}

		text, err := complete(ctx, scopeSystemPrompt,
			fmt.Sprintf(scopeUserPrompt, mustJSON(record), mustJSON(businesses), mustJSON(insights), mustJSON(assessment)))
		if err != nil {
			return deterministic, nil
		}
		var out map[string]any
		if json.Unmarshal([]byte(model.StripCodeFence(text)), &out) != nil || out["risk_scope"] == nil {
			return deterministic, nil
		}
		return out, nil
	}
}

func scopeFromAssessment(
	record refdata.CustomerRecord,
	businesses []refdata.BusinessRecord,
	parties model.PartySummary,
	insights model.TransactionInsights,
	assessment model.RiskAssessment,
) map[string]any {
	reviewDepth := "LIGHT_TOUCH"
	switch assessment.RiskBand {
	case model.BandRed:
		reviewDepth = "FULL_SCOPE_ENHANCED"
	case model.BandAmber:
		reviewDepth = "TARGETED"
	}

	registryDrivers := []string{}
	for _, b := range businesses {
		if b.FilingOverdue {
			registryDrivers = append(registryDrivers, fmt.Sprintf("Company %s has overdue filings.", b.CompanyNumber))
		}
		if b.CompanyStatus != "" && b.CompanyStatus != "active" {
			registryDrivers = append(registryDrivers, fmt.Sprintf("Company %s status is %s.", b.CompanyNumber, b.CompanyStatus))
		}
		if b.ChargesRegistered > 0 {
			registryDrivers = append(registryDrivers, fmt.Sprintf("Company %s has %d registered charges.", b.CompanyNumber, b.ChargesRegistered))
		}
	}

	profileDrivers := []string{}
	for _, p := range parties.Parties {
		for _, flag := range p.KeyFlags {
			if flag != model.FlagDataGapParties {
				profileDrivers = append(profileDrivers, fmt.Sprintf("Party %s flagged %s.", p.Name, flag))
			}
		}
	}

	transactionDrivers := []string{}
	for _, t := range assessment.TriggersFired {
		transactionDrivers = append(transactionDrivers, t.Reason)
	}

	return map[string]any{
		"risk_scope": map[string]any{
			"review_depth": reviewDepth,
			"rationale": fmt.Sprintf("Risk band %s with score %d from the rule-based assessment.",
				assessment.RiskBand, assessment.Score),
		},
		"key_risk_drivers": map[string]any{
			"registry":     registryDrivers,
			"profile":      profileDrivers,
			"transactions": transactionDrivers,
		},
		"risk_actions": DefaultActions(assessment),
		"data_points_used": map[string]any{
			"customer_id":           record.CustomerID,
			"registry_records":      len(businesses),
			"parties":               len(parties.Parties),
			"period_covered_months": insights.SupportingMetrics.PeriodCoveredMonths,
		},
	}
}
