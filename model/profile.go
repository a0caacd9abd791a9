package model

// EntityProfile holds the KYB-relevant attributes of a business customer.
// It is produced by the profiling stage and consumed read-only by the rule
// engine and the narrative stage. The final outcome always carries a profile
// object, never null.
type EntityProfile struct {
	LegalName            string   `json:"legal_name,omitempty"`
	CustomerID           string   `json:"customer_id,omitempty"`
	Sector               string   `json:"sector,omitempty"`
	SubSector            string   `json:"sub_sector,omitempty"`
	IncorporationCountry string   `json:"incorporation_country,omitempty"`
	OperatingCountry     string   `json:"operating_country,omitempty"`
	OnboardingDate       string   `json:"onboarding_date,omitempty"`
	TurnoverBand         string   `json:"turnover_band,omitempty"`
	InternalRiskRating   string   `json:"internal_risk_rating,omitempty"`
	PEPFlag              bool     `json:"pep_flag"`
	SanctionsFlag        bool     `json:"sanctions_flag"`
	KYBStatus            string   `json:"kyb_status,omitempty"`
	KYBLastReviewDate    string   `json:"kyb_last_review_date,omitempty"`
	Products             []string `json:"products,omitempty"`
}

// JourneyClassification is the output of the journey classification stage.
type JourneyClassification struct {
	JourneyType        string `json:"journey_type"`
	HasLinkedCustomers bool   `json:"has_linked_customers"`
	NumParties         int    `json:"num_parties"`
	Reasoning          string `json:"reasoning,omitempty"`
}

// Journey types recognised by the classifier.
const (
	JourneySoleTrader     = "SOLE_TRADER"
	JourneyLimitedSingle  = "LIMITED_COMPANY_SINGLE"
	JourneyLimitedMulti   = "LIMITED_COMPANY_MULTI"
	JourneyPartnershipLLP = "PARTNERSHIP_LLP"
	JourneyGroup          = "GROUP"
)

// DefaultJourneyClassification returns the conservative single-party limited
// company classification used when the classifier output is unusable.
func DefaultJourneyClassification() JourneyClassification {
	return JourneyClassification{
		JourneyType:        JourneyLimitedSingle,
		HasLinkedCustomers: false,
		NumParties:         1,
	}
}
