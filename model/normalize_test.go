package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	t.Run("Removes json fence", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	})

	t.Run("Removes plain fence", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	})

	t.Run("Leaves unfenced text alone", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, StripCodeFence(`{"a":1}`))
	})
}

func TestNormalizeJourney(t *testing.T) {
	fallback := DefaultJourneyClassification()

	t.Run("Valid JSON text is parsed", func(t *testing.T) {
		out := NormalizeJourney(`{"journey_type":"GROUP","has_linked_customers":true,"num_parties":3}`, fallback)

		assert.Equal(t, JourneyGroup, out.JourneyType)
		assert.True(t, out.HasLinkedCustomers)
		assert.Equal(t, 3, out.NumParties)
	})

	t.Run("Fenced JSON is parsed", func(t *testing.T) {
		out := NormalizeJourney("```json\n{\"journey_type\":\"SOLE_TRADER\"}\n```", fallback)

		assert.Equal(t, JourneySoleTrader, out.JourneyType)
	})

	t.Run("Prose falls back wholesale", func(t *testing.T) {
		out := NormalizeJourney("I could not classify this customer.", fallback)

		assert.Equal(t, fallback, out)
	})

	t.Run("Missing journey type takes the fallback type", func(t *testing.T) {
		out := NormalizeJourney(`{"num_parties":2}`, fallback)

		assert.Equal(t, JourneyLimitedSingle, out.JourneyType)
		assert.Equal(t, 2, out.NumParties)
	})

	t.Run("Nil falls back wholesale", func(t *testing.T) {
		assert.Equal(t, fallback, NormalizeJourney(nil, fallback))
	})
}

func TestNormalizePartySummary(t *testing.T) {
	fallback := DefaultPartySummary("CUST-9000")

	t.Run("Bare string becomes observations over fallback parties", func(t *testing.T) {
		out := NormalizePartySummary("Two directors, one PEP.", fallback)

		assert.Equal(t, fallback.Parties, out.Parties)
		assert.Equal(t, "Two directors, one PEP.", out.KeyObservations)
	})

	t.Run("Party records get unknown and medium defaults", func(t *testing.T) {
		out := NormalizePartySummary(`{"parties":[{"name":"Jo Smith"}],"key_observations":"ok"}`, fallback)

		require.Len(t, out.Parties, 1)
		assert.Equal(t, "UNKNOWN", out.Parties[0].PartyID)
		assert.Equal(t, "Jo Smith", out.Parties[0].Name)
		assert.Equal(t, "UNKNOWN", out.Parties[0].Role)
		assert.Equal(t, "MEDIUM", out.Parties[0].RiskLabel)
		assert.NotNil(t, out.Parties[0].KeyFlags)
	})

	t.Run("Empty party list keeps the fallback parties", func(t *testing.T) {
		out := NormalizePartySummary(`{"parties":[],"key_observations":"nothing found"}`, fallback)

		assert.Equal(t, fallback.Parties, out.Parties)
		assert.Equal(t, "nothing found", out.KeyObservations)
	})

	t.Run("Default summary carries the data gap flag", func(t *testing.T) {
		require.Len(t, fallback.Parties, 1)
		assert.Equal(t, "CUST-9000-P01", fallback.Parties[0].PartyID)
		assert.Contains(t, fallback.Parties[0].KeyFlags, FlagDataGapParties)
		assert.Equal(t, "Party information not available", fallback.KeyObservations)
	})
}

func TestNormalizeGroupContext(t *testing.T) {
	t.Run("Nil input is the no affiliation state", func(t *testing.T) {
		assert.Nil(t, NormalizeGroupContext(nil))
	})

	t.Run("Context without linked entities collapses to nil", func(t *testing.T) {
		assert.Nil(t, NormalizeGroupContext(`{"group_structure":"unclear"}`))
		assert.Nil(t, NormalizeGroupContext(&GroupContext{GroupStructure: "unclear"}))
	})

	t.Run("Linked entities survive", func(t *testing.T) {
		out := NormalizeGroupContext(`{"linked_entities":["CUST-1004"],"relationship_types":["OWNERSHIP"]}`)

		require.NotNil(t, out)
		assert.Equal(t, []string{"CUST-1004"}, out.LinkedEntities)
	})
}

func TestNormalizeTransactionInsights(t *testing.T) {
	fallback := DefaultTransactionInsights()

	t.Run("Envelope form is unwrapped", func(t *testing.T) {
		out := NormalizeTransactionInsights(`{"transaction_insights":{"summary":"calm month","candidate_triggers":[]}}`, fallback)

		assert.Equal(t, "calm month", out.Summary)
	})

	t.Run("Unparseable input falls back to the placeholder", func(t *testing.T) {
		out := NormalizeTransactionInsights("no data", fallback)

		assert.Equal(t, TransactionsUnavailableSummary, out.Summary)
		assert.NotNil(t, out.CandidateTriggers)
	})

	t.Run("Missing trigger list becomes empty not nil", func(t *testing.T) {
		out := NormalizeTransactionInsights(`{"summary":"ok"}`, fallback)

		assert.NotNil(t, out.CandidateTriggers)
		assert.Empty(t, out.CandidateTriggers)
	})
}

func TestNormalizeNarrative(t *testing.T) {
	t.Run("Canonical object parses", func(t *testing.T) {
		note, actions, ok := NormalizeNarrative(`{"kyb_note":"All fine.","recommended_actions":["Continue monitoring."]}`)

		require.True(t, ok)
		assert.Equal(t, "All fine.", note)
		assert.Equal(t, []string{"Continue monitoring."}, actions)
	})

	t.Run("Missing note is rejected", func(t *testing.T) {
		_, _, ok := NormalizeNarrative(`{"recommended_actions":["x"]}`)

		assert.False(t, ok)
	})

	t.Run("Missing actions become empty list", func(t *testing.T) {
		_, actions, ok := NormalizeNarrative(`{"kyb_note":"n"}`)

		require.True(t, ok)
		assert.NotNil(t, actions)
		assert.Empty(t, actions)
	})
}

func TestNormalizeOutcome(t *testing.T) {
	t.Run("Zero outcome gains every contract field", func(t *testing.T) {
		out := NormalizeOutcome(KYBOutcome{}, "CUST-1001")

		assert.Equal(t, JourneyLimitedSingle, out.JourneyType)
		assert.Equal(t, "CUST-1001", out.EntityProfile.CustomerID)
		assert.NotNil(t, out.PartySummary.Parties)
		assert.Equal(t, TransactionsUnavailableSummary, out.TransactionInsights.Summary)
		assert.Equal(t, BandAmber, out.RiskAssessment.RiskBand)
		assert.Equal(t, 20, out.RiskAssessment.Score)
		assert.NotNil(t, out.RecommendedActions)
	})

	t.Run("Normalization is idempotent", func(t *testing.T) {
		first := NormalizeOutcome(KYBOutcome{}, "CUST-1001")
		second := NormalizeOutcome(first, "CUST-1001")

		assert.Equal(t, first, second)
	})
}
