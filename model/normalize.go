package model

import (
	"encoding/json"
	"strings"
)

// The normalizers below are the seam between unreliable stage producers and
// the outcome contract. Each accepts whatever a producer returned — the
// canonical struct, a generic map, a JSON text blob (possibly wrapped in a
// markdown code fence) — and coerces it into the canonical shape, filling
// defaults. On nil or unparseable input the fallback is substituted
// wholesale. None of them ever fail.

// StripCodeFence removes a surrounding markdown code fence from LLM output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func decodeInto(raw any, out any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case string:
		s := StripCodeFence(v)
		if s == "" || !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
			return false
		}
		return json.Unmarshal([]byte(s), out) == nil
	case []byte:
		return json.Unmarshal(v, out) == nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return false
		}
		return json.Unmarshal(b, out) == nil
	}
}

// NormalizeJourney coerces a classifier result, defaulting the journey type
// from the fallback when missing or unparseable.
func NormalizeJourney(raw any, fallback JourneyClassification) JourneyClassification {
	if jc, ok := raw.(JourneyClassification); ok {
		raw = &jc
	}
	var out JourneyClassification
	if !decodeInto(raw, &out) {
		return fallback
	}
	if out.JourneyType == "" {
		out.JourneyType = fallback.JourneyType
	}
	if out.NumParties <= 0 {
		out.NumParties = fallback.NumParties
	}
	return out
}

// NormalizeEntityProfile coerces a profiling result into an EntityProfile.
func NormalizeEntityProfile(raw any, fallback EntityProfile) EntityProfile {
	if p, ok := raw.(EntityProfile); ok {
		raw = &p
	}
	var out EntityProfile
	if !decodeInto(raw, &out) {
		return fallback
	}
	if out.CustomerID == "" {
		out.CustomerID = fallback.CustomerID
	}
	if out.InternalRiskRating == "" {
		out.InternalRiskRating = fallback.InternalRiskRating
	}
	return out
}

// NormalizePartySummary coerces a party summary. A bare string becomes the
// fallback's parties with the string as observations. Party records get
// UNKNOWN/MEDIUM defaults; an empty record list keeps the fallback's parties.
func NormalizePartySummary(raw any, fallback PartySummary) PartySummary {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(StripCodeFence(s))
		if trimmed != "" && !strings.HasPrefix(trimmed, "{") {
			out := fallback
			out.KeyObservations = trimmed
			return out
		}
	}
	if ps, ok := raw.(PartySummary); ok {
		raw = &ps
	}
	var out PartySummary
	if !decodeInto(raw, &out) {
		return fallback
	}
	for i := range out.Parties {
		out.Parties[i] = normalizePartyRecord(out.Parties[i])
	}
	if len(out.Parties) == 0 {
		out.Parties = fallback.Parties
	}
	if strings.TrimSpace(out.KeyObservations) == "" {
		out.KeyObservations = fallback.KeyObservations
	}
	return out
}

func normalizePartyRecord(p PartyRecord) PartyRecord {
	if p.PartyID == "" {
		p.PartyID = "UNKNOWN"
	}
	if p.Name == "" {
		p.Name = "UNKNOWN"
	}
	if p.Role == "" {
		p.Role = "UNKNOWN"
	}
	if p.RiskLabel == "" {
		p.RiskLabel = "MEDIUM"
	}
	if p.KeyFlags == nil {
		p.KeyFlags = []string{}
	}
	return p
}

// NormalizeGroupContext coerces a resolver result. It returns nil — the
// terminal "no group affiliation" state — for nil input, unparseable input,
// or a context without linked entities.
func NormalizeGroupContext(raw any) *GroupContext {
	if gc, ok := raw.(*GroupContext); ok {
		if gc == nil || len(gc.LinkedEntities) == 0 {
			return nil
		}
		return gc
	}
	var out GroupContext
	if !decodeInto(raw, &out) {
		return nil
	}
	if len(out.LinkedEntities) == 0 {
		return nil
	}
	return &out
}

// NormalizeTransactionInsights coerces an analysis result, accepting either
// the insights object itself or a {"transaction_insights": {...}} envelope.
func NormalizeTransactionInsights(raw any, fallback TransactionInsights) TransactionInsights {
	if ti, ok := raw.(TransactionInsights); ok {
		raw = &ti
	}
	var envelope struct {
		TransactionInsights *TransactionInsights `json:"transaction_insights"`
	}
	if decodeInto(raw, &envelope) && envelope.TransactionInsights != nil {
		return fillInsights(*envelope.TransactionInsights, fallback)
	}
	var out TransactionInsights
	if !decodeInto(raw, &out) {
		return fallback
	}
	return fillInsights(out, fallback)
}

func fillInsights(out, fallback TransactionInsights) TransactionInsights {
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = fallback.Summary
	}
	if out.CandidateTriggers == nil {
		out.CandidateTriggers = []string{}
	}
	return out
}

// NormalizeRiskAssessment fills defaults on an assessment so the contract
// shape always holds. A zero-valued assessment becomes the conservative
// default for the journey type.
func NormalizeRiskAssessment(a RiskAssessment, journeyType string) RiskAssessment {
	if a.RiskBand == "" && a.OverallReasoning == "" {
		return DefaultRiskAssessment(journeyType)
	}
	if a.RiskBand == "" {
		a.RiskBand = BandAmber
	}
	if a.JourneyType == "" {
		a.JourneyType = journeyType
	}
	if a.TriggersFired == nil {
		a.TriggersFired = []TriggerRecord{}
	}
	if a.ScoreBreakdown.TriggerImpacts == nil {
		a.ScoreBreakdown.TriggerImpacts = []TriggerImpact{}
	}
	if a.OverallReasoning == "" {
		a.OverallReasoning = "Risk assessment completed"
	}
	return a
}

// NormalizeNarrative coerces a narrative stage result into a note and action
// list. It accepts the canonical {"kyb_note": ..., "recommended_actions":
// [...]} object or a JSON blob of it.
func NormalizeNarrative(raw any) (string, []string, bool) {
	var out struct {
		KYBNote            string   `json:"kyb_note"`
		RecommendedActions []string `json:"recommended_actions"`
	}
	if !decodeInto(raw, &out) || out.KYBNote == "" {
		return "", nil, false
	}
	if out.RecommendedActions == nil {
		out.RecommendedActions = []string{}
	}
	return out.KYBNote, out.RecommendedActions, true
}
