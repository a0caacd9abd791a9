package model

// KYBOutcome is the single contract object returned across the system
// boundary. Every field is always present with the correct type, even when
// upstream producers fail; group_context is the one nullable field.
type KYBOutcome struct {
	JourneyType         string              `json:"journey_type"`
	EntityProfile       EntityProfile       `json:"entity_profile"`
	PartySummary        PartySummary        `json:"party_summary"`
	GroupContext        *GroupContext       `json:"group_context"`
	TransactionInsights TransactionInsights `json:"transaction_insights"`
	RiskAssessment      RiskAssessment      `json:"risk_assessment"`
	KYBNote             string              `json:"kyb_note"`
	RecommendedActions  []string            `json:"recommended_actions"`
	AuditTrail          *AuditTrail         `json:"_audit_trail,omitempty"`
}

// AuditTrail records which agents ran for an outcome.
type AuditTrail struct {
	AgentsCalled []string `json:"agents_called"`
	CustomerID   string   `json:"customer_id"`
	Timestamp    string   `json:"timestamp"`
}

// NormalizeOutcome re-asserts every required field of the contract, filling
// defaults for anything missing. It is idempotent: normalizing an already
// valid outcome returns it unchanged.
func NormalizeOutcome(o KYBOutcome, customerID string) KYBOutcome {
	if o.JourneyType == "" {
		o.JourneyType = JourneyLimitedSingle
	}
	if o.EntityProfile.CustomerID == "" {
		o.EntityProfile.CustomerID = customerID
	}
	if len(o.PartySummary.Parties) == 0 {
		o.PartySummary.Parties = []PartyRecord{}
	}
	if o.PartySummary.KeyObservations == "" {
		o.PartySummary.KeyObservations = "Party information not available"
	}
	o.TransactionInsights = NormalizeTransactionInsights(o.TransactionInsights, DefaultTransactionInsights())
	o.RiskAssessment = NormalizeRiskAssessment(o.RiskAssessment, o.JourneyType)
	if o.RecommendedActions == nil {
		o.RecommendedActions = []string{}
	}
	return o
}
