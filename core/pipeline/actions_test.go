package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kybradar/kybradar/model"
)

func TestDefaultActions(t *testing.T) {
	t.Run("Red band demands urgent review and escalation", func(t *testing.T) {
		actions := DefaultActions(model.RiskAssessment{RiskBand: model.BandRed})

		assert.Len(t, actions, 2)
		assert.Contains(t, actions[0], "urgent KYB review")
		assert.Contains(t, actions[1], "Escalate")
	})

	t.Run("Green band continues monitoring", func(t *testing.T) {
		actions := DefaultActions(model.RiskAssessment{RiskBand: model.BandGreen})

		assert.Len(t, actions, 1)
		assert.Contains(t, actions[0], "Continue standard monitoring")
	})

	t.Run("Fired triggers append their follow ups", func(t *testing.T) {
		actions := DefaultActions(model.RiskAssessment{
			RiskBand: model.BandAmber,
			TriggersFired: []model.TriggerRecord{
				{Code: model.TrigHighRiskCountry},
				{Code: model.TrigCashHeavy},
				{Code: model.TrigKYBOverdue},
				{Code: model.TrigSectorHighRisk},
			},
		})

		assert.Len(t, actions, 5, "Two band actions plus three trigger follow ups")
		assert.Contains(t, actions[2], "high-risk country")
		assert.Contains(t, actions[3], "cash deposits")
		assert.Contains(t, actions[4], "overdue periodic KYB")
	})
}

func TestFallbackKYBNote(t *testing.T) {
	assessment := model.RiskAssessment{
		RiskBand:         model.BandAmber,
		Score:            35,
		OverallReasoning: "Base score 20 derived from internal rating MEDIUM for journey type SOLE_TRADER. No additional triggers fired. Final band AMBER.",
	}

	t.Run("Note restates the assessment", func(t *testing.T) {
		note := FallbackKYBNote(model.EntityProfile{LegalName: "Acme Ltd"}, assessment, model.DefaultTransactionInsights())

		assert.Contains(t, note, "Acme Ltd is assessed as AMBER risk with a score of 35.")
		assert.Contains(t, note, "Final band AMBER.")
		assert.NotContains(t, note, model.TransactionsUnavailableSummary)
	})

	t.Run("Transaction summary is appended when available", func(t *testing.T) {
		insights := model.TransactionInsights{Summary: "Across 6 months ending 2026-07."}

		note := FallbackKYBNote(model.EntityProfile{}, assessment, insights)

		assert.Contains(t, note, "The customer is assessed as")
		assert.Contains(t, note, "Across 6 months ending 2026-07.")
	})
}
