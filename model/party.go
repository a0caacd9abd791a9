package model

// PartyRecord describes one associated party (director, beneficial owner,
// partner or signatory) with its KYC attributes.
type PartyRecord struct {
	PartyID   string   `json:"party_id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	RiskLabel string   `json:"risk_label"`
	KeyFlags  []string `json:"key_flags"`
}

// PartySummary is the party view of a customer: the ordered party records
// plus a free-text observation string from the profiling stage.
type PartySummary struct {
	Parties         []PartyRecord `json:"parties"`
	KeyObservations string        `json:"key_observations"`
}

// Party flag codes surfaced on records.
const (
	FlagPEP                     = "PEP"
	FlagSanctionsHit            = "SANCTIONS_HIT"
	FlagDataGapParties          = "DATA_GAP_PARTIES"
	FlagHighRiskResidencyPrefix = "HIGH_RISK_RESIDENCY_"
)

// DefaultPartySummary returns the summary used when no party data exists:
// one synthetic record flagged as a data gap.
func DefaultPartySummary(customerID string) PartySummary {
	return PartySummary{
		Parties: []PartyRecord{{
			PartyID:   customerID + "-P01",
			Name:      "Unknown Party",
			Role:      "UNKNOWN",
			RiskLabel: "MEDIUM",
			KeyFlags:  []string{FlagDataGapParties},
		}},
		KeyObservations: "Party information not available",
	}
}

// GroupContext describes known group affiliations of a customer. A nil
// GroupContext is a valid terminal state meaning no group affiliation is
// known; it is distinct from "not yet computed".
type GroupContext struct {
	LinkedEntities          []string `json:"linked_entities"`
	GroupStructure          string   `json:"group_structure,omitempty"`
	RelationshipTypes       []string `json:"relationship_types,omitempty"`
	AggregateRiskIndicators string   `json:"aggregate_risk_indicators,omitempty"`
}
