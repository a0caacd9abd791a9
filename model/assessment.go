package model

// Risk bands derived from the numeric score.
const (
	BandGreen = "GREEN"
	BandAmber = "AMBER"
	BandRed   = "RED"
)

// Trigger codes known to the rule engine.
const (
	TrigSectorHighRisk  = "TRIG_SECTOR_HIGH_RISK"
	TrigKYBOverdue      = "TRIG_KYB_OVERDUE"
	TrigIntlSpike       = "TRIG_INTL_SPIKE"
	TrigHighRiskCountry = "TRIG_HIGH_RISK_COUNTRY"
	TrigCashHeavy       = "TRIG_CASH_HEAVY"
)

// TriggerRecord reports one fired trigger for audit.
type TriggerRecord struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// TriggerImpact is the signed score delta a fired trigger contributed.
type TriggerImpact struct {
	Code  string `json:"code"`
	Delta int    `json:"delta"`
}

// ScoreBreakdown decomposes a score into its base and trigger deltas.
// The invariant score == base_score + sum(deltas) always holds.
type ScoreBreakdown struct {
	BaseScore      int             `json:"base_score"`
	TriggerImpacts []TriggerImpact `json:"trigger_impacts"`
}

// RiskAssessment is the rule engine output.
type RiskAssessment struct {
	RiskBand         string          `json:"risk_band"`
	Score            int             `json:"score"`
	JourneyType      string          `json:"journey_type"`
	TriggersFired    []TriggerRecord `json:"triggers_fired"`
	ScoreBreakdown   ScoreBreakdown  `json:"score_breakdown"`
	OverallReasoning string          `json:"overall_reasoning"`
}

// DefaultRiskAssessment returns the conservative AMBER/20 assessment used
// when no valid engine output exists.
func DefaultRiskAssessment(journeyType string) RiskAssessment {
	return RiskAssessment{
		RiskBand:    BandAmber,
		Score:       20,
		JourneyType: journeyType,
		TriggersFired: []TriggerRecord{},
		ScoreBreakdown: ScoreBreakdown{
			BaseScore:      20,
			TriggerImpacts: []TriggerImpact{},
		},
		OverallReasoning: "Risk assessment completed",
	}
}
