// Package rules implements the deterministic KYB risk rule engine. Given
// structured profile and transaction facts plus a rules configuration it
// produces a reproducible score, band and trigger list. The engine performs
// no I/O and never fails: every lookup has a conservative default so a
// missing or malformed rules document still yields a valid AMBER/20
// assessment.
package rules

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kybradar/kybradar/model"
)

// Engine evaluates risk assessments. Now is the clock used for the overdue
// review check; it defaults to time.Now and is injectable for reproducible
// output.
type Engine struct {
	Now func() time.Time
}

// NewEngine returns an engine on the wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

const (
	defaultBaseScore            = 20
	defaultIntlSpikePct         = 100
	defaultHighRiskCountryRatio = 0.05
	defaultCashDepositRatio     = 0.30
	defaultReviewMonthsHighRisk = 12
	defaultReviewMonthsOthers   = 18
)

// Assess computes a risk assessment from the stage outputs and the rules
// configuration. Identical inputs (under a fixed clock) produce a
// byte-identical assessment.
func (e *Engine) Assess(
	profile model.EntityProfile,
	parties model.PartySummary,
	group *model.GroupContext,
	insights model.TransactionInsights,
	journeyType string,
	cfg model.RulesConfig,
) model.RiskAssessment {
	baseScore := e.baseScore(profile, cfg)

	var fired []model.TriggerRecord
	var impacts []model.TriggerImpact
	totalScore := baseScore

	addTrigger := func(code, reason string) {
		delta := cfg.RiskScoringModel.TriggerDelta(code)
		def := cfg.TriggerDefinitionFor(code)
		fired = append(fired, model.TriggerRecord{Code: code, Severity: def.Severity, Reason: reason})
		impacts = append(impacts, model.TriggerImpact{Code: code, Delta: delta})
		totalScore += delta
	}

	if e.isHighRiskSector(profile, cfg) {
		addTrigger(model.TrigSectorHighRisk, "Sector classified as high risk per rules.")
	}
	if overdue, reason := e.kybOverdue(profile, cfg); overdue {
		addTrigger(model.TrigKYBOverdue, reason)
	}

	m := insights.SupportingMetrics
	if m.IntlOutwardChangePct > cfg.Threshold(model.ThresholdIntlOutwardSpike, defaultIntlSpikePct) {
		addTrigger(model.TrigIntlSpike,
			fmt.Sprintf("International outward payments up approx %d%% MoM.", round(m.IntlOutwardChangePct)))
	}
	if m.HighRiskCountrySharePct > cfg.Threshold(model.ThresholdHighRiskCountryRatio, defaultHighRiskCountryRatio)*100 {
		addTrigger(model.TrigHighRiskCountry,
			fmt.Sprintf("High-risk country share approx %d%% of outward flows.", round(m.HighRiskCountrySharePct)))
	}
	if m.CashDepositRatioPct > cfg.Threshold(model.ThresholdCashDepositRatio, defaultCashDepositRatio)*100 {
		addTrigger(model.TrigCashHeavy,
			fmt.Sprintf("Cash deposits around %d%% of outward amounts.", round(m.CashDepositRatioPct)))
	}

	band := bandFor(totalScore, cfg.RiskScoringModel.Bands)

	if fired == nil {
		fired = []model.TriggerRecord{}
	}
	if impacts == nil {
		impacts = []model.TriggerImpact{}
	}

	return model.RiskAssessment{
		RiskBand:      band,
		Score:         totalScore,
		JourneyType:   journeyType,
		TriggersFired: fired,
		ScoreBreakdown: model.ScoreBreakdown{
			BaseScore:      baseScore,
			TriggerImpacts: impacts,
		},
		OverallReasoning: reasoning(baseScore, fired, band, profile, journeyType),
	}
}

// baseScore is the maximum of the internal-rating score and the
// sector-mapped score, each resolved against base_scores with default 20.
func (e *Engine) baseScore(profile model.EntityProfile, cfg model.RulesConfig) int {
	internalRisk := ratingOrMedium(profile.InternalRiskRating)
	sector := sectorOrUnknown(profile.Sector)

	sectorRisk := internalRisk
	if mapped, ok := cfg.SectorRisk[sector]; ok && mapped != "" {
		sectorRisk = strings.ToUpper(mapped)
	}

	baseInternal := cfg.RiskScoringModel.BaseScore(internalRisk, defaultBaseScore)
	baseSector := cfg.RiskScoringModel.BaseScore(sectorRisk, baseInternal)
	return max(baseInternal, baseSector)
}

func (e *Engine) isHighRiskSector(profile model.EntityProfile, cfg model.RulesConfig) bool {
	sectorRisk, ok := cfg.SectorRisk[sectorOrUnknown(profile.Sector)]
	if !ok {
		return false
	}
	return strings.EqualFold(sectorRisk, "HIGH")
}

// kybOverdue checks the last review date against the rating-dependent month
// limit. An unparsable or absent date never fires the trigger.
func (e *Engine) kybOverdue(profile model.EntityProfile, cfg model.RulesConfig) (bool, string) {
	lastReview := strings.TrimSpace(profile.KYBLastReviewDate)
	if lastReview == "" {
		return false, ""
	}
	reviewDate, ok := parseFlexibleDate(lastReview)
	if !ok {
		return false, ""
	}

	highRisk := ratingOrMedium(profile.InternalRiskRating) == "HIGH"
	limit := defaultReviewMonthsOthers
	key := model.ThresholdReviewMonthsOthers
	if highRisk {
		limit = defaultReviewMonthsHighRisk
		key = model.ThresholdReviewMonthsHighRisk
	}
	limit = int(cfg.Threshold(key, float64(limit)))

	if monthsBetween(reviewDate, e.Now()) <= limit {
		return false, ""
	}
	return true, fmt.Sprintf("Last KYB review on %s exceeds %d month limit.", lastReview, limit)
}

// parseFlexibleDate accepts yyyy-MM-dd or yyyy-MM, defaulting to the first
// day of the month when the day is absent.
func parseFlexibleDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// monthsBetween counts elapsed whole months from from to to.
func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}

// bandFor returns the first band whose inclusive range contains score,
// defaulting to AMBER when no band matches.
func bandFor(score int, bands []model.ScoreBand) string {
	for _, b := range bands {
		if score >= b.MinScore && score <= b.MaxScore {
			if b.RiskBand == "" {
				return model.BandAmber
			}
			return b.RiskBand
		}
	}
	return model.BandAmber
}

// reasoning builds the deterministic, templated reasoning sentence. The text
// is not model-generated and is byte-reproducible for identical inputs.
func reasoning(baseScore int, fired []model.TriggerRecord, band string, profile model.EntityProfile, journeyType string) string {
	rating := profile.InternalRiskRating
	if rating == "" {
		rating = "MEDIUM"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Base score %d derived from internal rating %s for journey type %s. ", baseScore, rating, journeyType)
	if len(fired) == 0 {
		b.WriteString("No additional triggers fired. ")
	} else {
		b.WriteString("Triggers fired: ")
		parts := make([]string, 0, len(fired))
		for _, t := range fired {
			parts = append(parts, fmt.Sprintf("%s (%s)", t.Code, t.Reason))
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "Final band %s.", band)
	return b.String()
}

func ratingOrMedium(rating string) string {
	rating = strings.ToUpper(strings.TrimSpace(rating))
	if rating == "" {
		return "MEDIUM"
	}
	return rating
}

func sectorOrUnknown(sector string) string {
	if strings.TrimSpace(sector) == "" {
		return "UNKNOWN"
	}
	return sector
}

func round(v float64) int {
	return int(math.Round(v))
}
