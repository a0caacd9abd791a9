package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kybradar/kybradar/model"
	"github.com/kybradar/kybradar/refdata"
)

const (
	classifySystemPrompt = "You are a KYB journey classifier for a business bank. " +
		"Classify the customer into exactly one journey type: SOLE_TRADER, LIMITED_COMPANY_SINGLE, " +
		"LIMITED_COMPANY_MULTI, PARTNERSHIP_LLP or GROUP. " +
		"Respond with a single JSON object with keys journey_type, has_linked_customers, num_parties, reasoning."

	classifyUserPrompt = "CRM record:\n%s\n\nNumber of registered parties: %d\n\nClassify this customer."

	profileSystemPrompt = "You are a KYB analyst summarising a business customer. " +
		"From the CRM record and party register, produce a JSON object with keys entity_profile and party_summary. " +
		"entity_profile mirrors the CRM fields. party_summary has keys parties (list of party_id, name, role, " +
		"risk_label, key_flags) and key_observations (short free text on PEP, sanctions and residency risks). " +
		"Do not invent data that is not in the inputs."

	profileUserPrompt = "Journey type: %s\n\nCRM record:\n%s\n\nParty register:\n%s"

	groupSystemPrompt = "You are a KYB analyst describing group relationships of a business customer. " +
		"Respond with a single JSON object with keys linked_entities, group_structure, relationship_types, " +
		"aggregate_risk_indicators. Only include entities supported by the input data."

	groupUserPrompt = "CRM record:\n%s\n\nDeterministic group view:\n%s\n\nDescribe the group context."

	narrativeSystemPrompt = "You are a KYB analyst writing a review note for a compliance file. " +
		"Write in plain professional prose grounded only in the supplied facts. " +
		"Respond with a single JSON object with keys kyb_note (one paragraph) and recommended_actions " +
		"(list of short imperative action strings)."

	narrativeUserPrompt = "Customer profile:\n%s\n\nTransaction analysis:\n%s\n\nRisk assessment:\n%s\n\nWrite the KYB note."
)

// DefaultClassifier classifies via the completer when one is configured,
// with a deterministic CRM-derived classification as fallback and as the
// normalization anchor. A missing customer is the only error returned.
func DefaultClassifier(lib *refdata.Library, complete CompleteFunc) ClassifyFunc {
	return func(ctx context.Context, customerID string) (model.JourneyClassification, error) {
		record, err := lib.Customer(customerID)
		if err != nil {
			return model.JourneyClassification{}, err
		}
		parties, _ := lib.Parties(customerID)

		inferred := inferClassification(record, len(parties))
		if complete == nil {
			return inferred, nil
		}

		text, err := complete(ctx, classifySystemPrompt, fmt.Sprintf(classifyUserPrompt, mustJSON(record), len(parties)))
		if err != nil {
			return inferred, nil
		}
		out := model.NormalizeJourney(text, inferred)
		// CRM linkage is a hard fact; the model cannot talk it away.
		if len(record.LinkedCustomerIDs) > 0 {
			out.HasLinkedCustomers = true
		}
		return out, nil
	}
}

// inferClassification derives a journey classification from the CRM record
// and the party count alone.
func inferClassification(record refdata.CustomerRecord, numParties int) model.JourneyClassification {
	name := strings.ToUpper(record.LegalName)
	jc := model.JourneyClassification{NumParties: max(numParties, 1)}

	switch {
	case len(record.LinkedCustomerIDs) > 0:
		jc.JourneyType = model.JourneyGroup
		jc.HasLinkedCustomers = true
		jc.Reasoning = "CRM record links the customer to other entities."
	case strings.Contains(name, "LLP") || strings.Contains(name, "PARTNERSHIP"):
		jc.JourneyType = model.JourneyPartnershipLLP
		jc.Reasoning = "Legal name indicates a partnership structure."
	case strings.Contains(name, "LTD") || strings.Contains(name, "LIMITED") || strings.Contains(name, "PLC"):
		jc.JourneyType = model.JourneyLimitedSingle
		jc.Reasoning = "Legal name indicates a limited company."
		if numParties > 1 {
			jc.JourneyType = model.JourneyLimitedMulti
			jc.Reasoning = "Legal name indicates a limited company with multiple registered parties."
		}
	case numParties > 1:
		jc.JourneyType = model.JourneyLimitedMulti
		jc.Reasoning = "Multiple registered parties without partnership naming."
	default:
		jc.JourneyType = model.JourneySoleTrader
		jc.Reasoning = "Single party and no company naming convention."
	}
	return jc
}

// DefaultProfiler builds the entity profile and party summary, preferring the
// completer's structured output and falling back to the raw reference data.
func DefaultProfiler(lib *refdata.Library, complete CompleteFunc) ProfileFunc {
	return func(ctx context.Context, customerID, journeyType string) (model.EntityProfile, model.PartySummary, error) {
		record, err := lib.Customer(customerID)
		if err != nil {
			return model.EntityProfile{}, model.PartySummary{}, err
		}
		raw, _ := lib.Parties(customerID)

		fallbackProfile := record.EntityProfile()
		fallbackParties := buildPartySummary(customerID, raw)
		if complete == nil {
			return fallbackProfile, fallbackParties, nil
		}

		text, err := complete(ctx, profileSystemPrompt, fmt.Sprintf(profileUserPrompt, journeyType, mustJSON(record), mustJSON(raw)))
		if err != nil {
			return fallbackProfile, fallbackParties, nil
		}

		var envelope struct {
			EntityProfile json.RawMessage `json:"entity_profile"`
			PartySummary  json.RawMessage `json:"party_summary"`
		}
		if json.Unmarshal([]byte(model.StripCodeFence(text)), &envelope) != nil {
			return fallbackProfile, fallbackParties, nil
		}
		profile := model.NormalizeEntityProfile([]byte(envelope.EntityProfile), fallbackProfile)
		parties := model.NormalizePartySummary([]byte(envelope.PartySummary), fallbackParties)
		return profile, parties, nil
	}
}

// buildPartySummary maps raw register entries onto party records with derived
// flags and assembles the observation text. No entries yields the data-gap
// summary.
func buildPartySummary(customerID string, raw []refdata.PartyRawRecord) model.PartySummary {
	if len(raw) == 0 {
		return model.DefaultPartySummary(customerID)
	}

	records := make([]model.PartyRecord, 0, len(raw))
	var observations []string
	for _, p := range raw {
		flags := []string{}
		if p.PEP {
			flags = append(flags, model.FlagPEP)
			observations = append(observations, fmt.Sprintf("%s is a politically exposed person.", p.Name))
		}
		if p.Sanctions {
			flags = append(flags, model.FlagSanctionsHit)
			observations = append(observations, fmt.Sprintf("%s has a sanctions list match.", p.Name))
		}
		if p.HighRiskResidency && p.Residency != "" {
			flags = append(flags, model.FlagHighRiskResidencyPrefix+strings.ToUpper(p.Residency))
			observations = append(observations, fmt.Sprintf("%s is resident in high-risk jurisdiction %s.", p.Name, strings.ToUpper(p.Residency)))
		}

		riskLabel := p.RiskLabel
		if riskLabel == "" {
			riskLabel = "MEDIUM"
		}
		records = append(records, model.PartyRecord{
			PartyID:   p.PartyID,
			Name:      p.Name,
			Role:      p.Role,
			RiskLabel: riskLabel,
			KeyFlags:  flags,
		})
	}

	obs := "No adverse party indicators identified."
	if len(observations) > 0 {
		obs = strings.Join(observations, " ")
	}
	return model.PartySummary{Parties: records, KeyObservations: obs}
}

// DefaultGroupResolver resolves group context from recorded CRM linkage, or
// heuristically from sector and name similarity when nothing is recorded.
func DefaultGroupResolver(lib *refdata.Library, complete CompleteFunc) GroupFunc {
	return func(ctx context.Context, customerID string) (*model.GroupContext, error) {
		record, err := lib.Customer(customerID)
		if err != nil {
			return nil, err
		}

		fallback := resolveGroup(lib, record)
		if complete == nil || fallback == nil {
			return fallback, nil
		}

		text, err := complete(ctx, groupSystemPrompt, fmt.Sprintf(groupUserPrompt, mustJSON(record), mustJSON(fallback)))
		if err != nil {
			return fallback, nil
		}
		if gc := model.NormalizeGroupContext(text); gc != nil {
			return gc, nil
		}
		return fallback, nil
	}
}

func resolveGroup(lib *refdata.Library, record refdata.CustomerRecord) *model.GroupContext {
	if len(record.LinkedCustomerIDs) > 0 {
		structure := record.OrganizationStructure
		if structure == "" {
			structure = "Linked customer relationship recorded in CRM"
		}
		return &model.GroupContext{
			LinkedEntities:          record.LinkedCustomerIDs,
			GroupStructure:          structure,
			RelationshipTypes:       []string{"OWNERSHIP"},
			AggregateRiskIndicators: "Assessment should consider group-wide exposure across linked entities.",
		}
	}

	// A shared name stem within the same sector hints at an unrecorded group.
	customers, err := lib.Customers()
	if err != nil {
		return nil
	}
	stem := nameStem(record.LegalName)
	var linked []string
	for _, c := range customers {
		if c.CustomerID == record.CustomerID || stem == "" {
			continue
		}
		if c.Sector == record.Sector && strings.HasPrefix(strings.ToUpper(c.LegalName), stem) {
			linked = append(linked, c.CustomerID)
		}
	}
	if len(linked) == 0 {
		return nil
	}
	return &model.GroupContext{
		LinkedEntities:          linked,
		GroupStructure:          "Potential group relationship inferred from sector and name similarity",
		RelationshipTypes:       []string{"SECTOR_SIMILARITY", "NAME_SIMILARITY"},
		AggregateRiskIndicators: "Unconfirmed affiliation; verify ownership links before relying on group view.",
	}
}

func nameStem(name string) string {
	fields := strings.Fields(strings.ToUpper(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// DefaultTransactionAnalyzer computes insights from the stored monthly stats.
// The analysis is purely numeric; errors surface so the caller can degrade to
// the "not available" placeholder.
func DefaultTransactionAnalyzer(lib *refdata.Library) TransactionsFunc {
	return func(ctx context.Context, customerID string) (model.TransactionInsights, error) {
		stats, err := lib.MonthlyStats(customerID)
		if err != nil {
			return model.TransactionInsights{}, err
		}
		if len(stats) < 2 {
			return model.TransactionInsights{}, fmt.Errorf("transactions for %s: need at least two months of history", customerID)
		}
		cfg, err := lib.Rules()
		if err != nil {
			cfg = model.RulesConfig{}
		}
		return AnalyzeMonthlyStats(stats, cfg), nil
	}
}

// AnalyzeMonthlyStats derives supporting metrics, candidate triggers and a
// templated summary from at least two months of stats ordered ascending.
func AnalyzeMonthlyStats(stats []refdata.MonthlyStat, cfg model.RulesConfig) model.TransactionInsights {
	latest := stats[len(stats)-1]
	previous := stats[len(stats)-2]

	var changePct, sharePct, cashPct float64
	if previous.IntlOutwardAmount > 0 {
		changePct = (latest.IntlOutwardAmount - previous.IntlOutwardAmount) / previous.IntlOutwardAmount * 100
	}
	if latest.TotalOutwardAmount > 0 {
		sharePct = latest.HighRiskCountryVolume / latest.TotalOutwardAmount * 100
		cashPct = latest.CashDepositsAmount / latest.TotalOutwardAmount * 100
	}

	metrics := model.SupportingMetrics{
		IntlOutwardChangePct:    math.Round(changePct),
		HighRiskCountrySharePct: math.Round(sharePct),
		CashDepositRatioPct:     math.Round(cashPct),
		PeriodCoveredMonths:     len(stats),
		LatestPeriod:            latest.Period,
	}

	candidates := []string{}
	if metrics.IntlOutwardChangePct > cfg.Threshold(model.ThresholdIntlOutwardSpike, 100) {
		candidates = append(candidates, model.TrigIntlSpike)
	}
	if metrics.HighRiskCountrySharePct > cfg.Threshold(model.ThresholdHighRiskCountryRatio, 0.05)*100 {
		candidates = append(candidates, model.TrigHighRiskCountry)
	}
	if metrics.CashDepositRatioPct > cfg.Threshold(model.ThresholdCashDepositRatio, 0.30)*100 {
		candidates = append(candidates, model.TrigCashHeavy)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Across %d months ending %s. ", len(stats), latest.Period)
	fmt.Fprintf(&b, "International outward payments changed approx. %d%% MoM. ", int(metrics.IntlOutwardChangePct))
	fmt.Fprintf(&b, "High-risk country share at %d%% of outward flows; cash deposits around %d%% of outward amounts. ",
		int(metrics.HighRiskCountrySharePct), int(metrics.CashDepositRatioPct))
	if len(candidates) == 0 {
		b.WriteString("No major trigger-worthy anomalies detected.")
	} else {
		b.WriteString("Candidate triggers identified: " + strings.Join(candidates, ", ") + ".")
	}

	return model.TransactionInsights{
		Summary:           b.String(),
		CandidateTriggers: candidates,
		SupportingMetrics: metrics,
	}
}

// DefaultNarrator writes the KYB note through the completer. Without a
// completer or with unusable output it errors; the conductor substitutes the
// deterministic note.
func DefaultNarrator(complete CompleteFunc) NarrativeFunc {
	return func(ctx context.Context, profileSummary, transactionSummary string, assessment model.RiskAssessment) (string, []string, error) {
		if complete == nil {
			return "", nil, fmt.Errorf("narrative: no completer configured")
		}
		text, err := complete(ctx, narrativeSystemPrompt,
			fmt.Sprintf(narrativeUserPrompt, profileSummary, transactionSummary, mustJSON(assessment)))
		if err != nil {
			return "", nil, fmt.Errorf("narrative: %w", err)
		}
		note, actions, ok := model.NormalizeNarrative(text)
		if !ok {
			return "", nil, fmt.Errorf("narrative: unusable model output")
		}
		return note, actions, nil
	}
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
