package model

// SupportingMetrics carries the numeric evidence behind transaction insights.
// Percentages are whole-number rounded.
type SupportingMetrics struct {
	IntlOutwardChangePct    float64 `json:"intl_outward_change_pct"`
	HighRiskCountrySharePct float64 `json:"high_risk_country_share_pct"`
	CashDepositRatioPct     float64 `json:"cash_deposit_ratio_pct"`
	PeriodCoveredMonths     int     `json:"period_covered_months"`
	LatestPeriod            string  `json:"latest_period,omitempty"`
}

// TransactionInsights is the output of the transaction analysis stage.
type TransactionInsights struct {
	Summary           string            `json:"summary"`
	CandidateTriggers []string          `json:"candidate_triggers"`
	SupportingMetrics SupportingMetrics `json:"supporting_metrics"`
}

// TransactionsUnavailableSummary is the documented placeholder used when no
// usable transaction history exists for a customer.
const TransactionsUnavailableSummary = "Transaction analysis not available"

// DefaultTransactionInsights returns the "not available" placeholder.
func DefaultTransactionInsights() TransactionInsights {
	return TransactionInsights{
		Summary:           TransactionsUnavailableSummary,
		CandidateTriggers: []string{},
	}
}
