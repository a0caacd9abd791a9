package pipeline

import (
	"fmt"
	"strings"

	"github.com/kybradar/kybradar/model"
)

// FallbackKYBNote builds the deterministic review note used when no usable
// narrative output exists. It restates the assessment and appends the
// transaction summary when one is available.
func FallbackKYBNote(profile model.EntityProfile, assessment model.RiskAssessment, insights model.TransactionInsights) string {
	name := profile.LegalName
	if name == "" {
		name = "The customer"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s is assessed as %s risk with a score of %d. ", name, assessment.RiskBand, assessment.Score)
	b.WriteString(assessment.OverallReasoning)
	if insights.Summary != "" && insights.Summary != model.TransactionsUnavailableSummary {
		b.WriteString(" ")
		b.WriteString(insights.Summary)
	}
	return b.String()
}

// DefaultActions derives recommended actions from the risk band plus
// trigger-specific follow-ups.
func DefaultActions(assessment model.RiskAssessment) []string {
	var actions []string
	switch assessment.RiskBand {
	case model.BandRed:
		actions = append(actions,
			"Initiate urgent KYB review with enhanced due diligence.",
			"Escalate to financial crime team for approval to continue the relationship.")
	case model.BandAmber:
		actions = append(actions,
			"Schedule a KYB review within 30 days.",
			"Request updated documentation for outstanding data gaps.")
	default:
		actions = append(actions, "Continue standard monitoring; no immediate action required.")
	}

	for _, t := range assessment.TriggersFired {
		switch t.Code {
		case model.TrigHighRiskCountry:
			actions = append(actions, "Verify the business rationale for high-risk country payment corridors.")
		case model.TrigCashHeavy:
			actions = append(actions, "Validate the sources of cash deposits against the declared business model.")
		case model.TrigKYBOverdue:
			actions = append(actions, "Complete the overdue periodic KYB documentation refresh.")
		}
	}
	return actions
}
