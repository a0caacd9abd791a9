package model

// RulesConfig is the externally supplied rules document. It is loaded once
// per invocation and never mutated; all lookups fall back to conservative
// defaults so a missing or malformed document still yields a valid
// assessment.
type RulesConfig struct {
	SectorRisk        map[string]string   `json:"sector_risk"`
	RiskThresholds    map[string]float64  `json:"risk_thresholds"`
	RiskScoringModel  RiskScoringModel    `json:"risk_scoring_model"`
	KYBReviewTriggers []TriggerDefinition `json:"kyb_review_triggers"`
}

// RiskScoringModel holds base scores, trigger deltas and the band table.
type RiskScoringModel struct {
	BaseScores          map[string]int `json:"base_scores"`
	TriggerScoreImpacts map[string]int `json:"trigger_score_impacts"`
	Bands               []ScoreBand    `json:"bands"`
}

// ScoreBand maps an inclusive score range to a band label.
type ScoreBand struct {
	MinScore int    `json:"min_score"`
	MaxScore int    `json:"max_score"`
	RiskBand string `json:"risk_band"`
}

// TriggerDefinition declares a trigger code with severity and description.
type TriggerDefinition struct {
	Code        string `json:"code"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Threshold keys understood by the engine and the transaction stage.
const (
	ThresholdIntlOutwardSpike     = "intl_outward_mom_spike_pct"
	ThresholdHighRiskCountryRatio = "high_risk_country_volume_ratio"
	ThresholdCashDepositRatio     = "cash_deposit_to_turnover_ratio"
	ThresholdReviewMonthsHighRisk = "months_without_kyb_review_for_high_risk"
	ThresholdReviewMonthsOthers   = "months_without_kyb_review_for_others"
)

// Threshold returns the named threshold or def when absent.
func (c RulesConfig) Threshold(key string, def float64) float64 {
	if v, ok := c.RiskThresholds[key]; ok {
		return v
	}
	return def
}

// BaseScore returns the base score for a rating key, or def when absent.
func (m RiskScoringModel) BaseScore(rating string, def int) int {
	if v, ok := m.BaseScores[rating]; ok {
		return v
	}
	return def
}

// TriggerDelta returns the score delta for a trigger code, default 0.
func (m RiskScoringModel) TriggerDelta(code string) int {
	return m.TriggerScoreImpacts[code]
}

// TriggerDefinitionFor resolves a trigger definition by code, defaulting to
// MEDIUM severity for undeclared codes.
func (c RulesConfig) TriggerDefinitionFor(code string) TriggerDefinition {
	for _, def := range c.KYBReviewTriggers {
		if def.Code == code {
			if def.Severity == "" {
				def.Severity = "MEDIUM"
			}
			return def
		}
	}
	return TriggerDefinition{Code: code, Severity: "MEDIUM"}
}
