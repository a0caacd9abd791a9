package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kybradar/kybradar/core/rules"
	"github.com/kybradar/kybradar/model"
	"github.com/kybradar/kybradar/refdata"
)

// Agent names recorded on the outcome audit trail.
const (
	agentJourneyClassifier = "JourneyClassifierAgent"
	agentCustomerProfile   = "CustomerPartyProfileAgent"
	agentGroupRelationship = "GroupRelationshipAgent"
	agentTransactionScan   = "TransactionPatternAgent"
	agentRiskRules         = "RiskRulesAgent"
	agentKYBNote           = "KYBNoteAgent"
)

// Conductor sequences the KYB stages into the outcome contract. Stage fields
// are exported so callers can swap any stage; the defaults degrade to
// deterministic reference-data behaviour when a stage producer fails. The
// only fatal condition is an unknown customer.
type Conductor struct {
	Classifier          ClassifyFunc
	Profiler            ProfileFunc
	GroupResolver       GroupFunc
	TransactionAnalyzer TransactionsFunc
	NarrativeGenerator  NarrativeFunc
	RiskScope           RiskScopeFunc

	engine       *rules.Engine
	library      *refdata.Library
	stageTimeout time.Duration
	log          *slog.Logger
}

// NewConductor wires the default stages over a reference library and an
// optional completer. A nil completer yields a fully deterministic pipeline.
func NewConductor(library *refdata.Library, complete CompleteFunc, logger *slog.Logger, stageTimeout time.Duration) *Conductor {
	if logger == nil {
		logger = slog.Default()
	}
	if stageTimeout <= 0 {
		stageTimeout = 30 * time.Second
	}
	engine := rules.NewEngine()
	return &Conductor{
		Classifier:          DefaultClassifier(library, complete),
		Profiler:            DefaultProfiler(library, complete),
		GroupResolver:       DefaultGroupResolver(library, complete),
		TransactionAnalyzer: DefaultTransactionAnalyzer(library),
		NarrativeGenerator:  DefaultNarrator(complete),
		RiskScope:           DefaultRiskScope(library, engine, complete),
		engine:              engine,
		library:             library,
		stageTimeout:        stageTimeout,
		log:                 logger,
	}
}

// Engine returns the conductor's rule engine.
func (c *Conductor) Engine() *rules.Engine {
	return c.engine
}

// Library returns the conductor's reference library.
func (c *Conductor) Library() *refdata.Library {
	return c.library
}

func (c *Conductor) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.stageTimeout)
}

// Classify runs the journey classification stage. An unknown customer is
// fatal; any other failure degrades to the default classification.
func (c *Conductor) Classify(ctx context.Context, customerID string) (model.JourneyClassification, error) {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	jc, err := c.Classifier(sctx, customerID)
	if err != nil {
		if errors.Is(err, refdata.ErrNotFound) {
			return model.JourneyClassification{}, err
		}
		c.log.Warn("journey classification degraded", "customer_id", customerID, "error", err)
		return model.DefaultJourneyClassification(), nil
	}
	return model.NormalizeJourney(jc, model.DefaultJourneyClassification()), nil
}

// Profile runs the profiling stage. An unknown customer is fatal; any other
// failure degrades to a minimal profile and the data-gap party summary.
func (c *Conductor) Profile(ctx context.Context, customerID, journeyType string) (model.EntityProfile, model.PartySummary, error) {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	fallback := model.EntityProfile{CustomerID: customerID, InternalRiskRating: "MEDIUM"}
	profile, parties, err := c.Profiler(sctx, customerID, journeyType)
	if err != nil {
		if errors.Is(err, refdata.ErrNotFound) {
			return model.EntityProfile{}, model.PartySummary{}, err
		}
		c.log.Warn("profiling degraded", "customer_id", customerID, "error", err)
		return fallback, model.DefaultPartySummary(customerID), nil
	}
	profile = model.NormalizeEntityProfile(profile, fallback)
	parties = model.NormalizePartySummary(parties, model.DefaultPartySummary(customerID))
	return profile, parties, nil
}

// Group runs the group resolution stage. It never fails; unknown or
// unresolvable affiliation yields nil.
func (c *Conductor) Group(ctx context.Context, customerID string) *model.GroupContext {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	group, err := c.GroupResolver(sctx, customerID)
	if err != nil {
		c.log.Warn("group resolution degraded", "customer_id", customerID, "error", err)
		return nil
	}
	return model.NormalizeGroupContext(group)
}

// Transactions runs the transaction analysis stage, degrading to the "not
// available" placeholder when no usable history exists.
func (c *Conductor) Transactions(ctx context.Context, customerID string) model.TransactionInsights {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	insights, err := c.TransactionAnalyzer(sctx, customerID)
	if err != nil {
		c.log.Info("transaction analysis unavailable", "customer_id", customerID, "error", err)
		return model.DefaultTransactionInsights()
	}
	return model.NormalizeTransactionInsights(insights, model.DefaultTransactionInsights())
}

// Assess runs the rule engine against the stage outputs, loading the rules
// document fresh for each call.
func (c *Conductor) Assess(
	profile model.EntityProfile,
	parties model.PartySummary,
	group *model.GroupContext,
	insights model.TransactionInsights,
	journeyType string,
) model.RiskAssessment {
	cfg, err := c.library.Rules()
	if err != nil {
		c.log.Warn("rules document unavailable, using engine defaults", "error", err)
		cfg = model.RulesConfig{}
	}
	assessment := c.engine.Assess(profile, parties, group, insights, journeyType, cfg)
	return model.NormalizeRiskAssessment(assessment, journeyType)
}

// Narrative runs the note generation stage, substituting the deterministic
// note and band-derived actions when the generator fails.
func (c *Conductor) Narrative(
	ctx context.Context,
	profile model.EntityProfile,
	parties model.PartySummary,
	insights model.TransactionInsights,
	assessment model.RiskAssessment,
) (string, []string) {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	note, actions, err := c.NarrativeGenerator(sctx, FormatProfileSummary(profile, parties), insights.Summary, assessment)
	if err != nil || strings.TrimSpace(note) == "" {
		if err != nil {
			c.log.Warn("narrative generation degraded", "error", err)
		}
		return FallbackKYBNote(profile, assessment, insights), DefaultActions(assessment)
	}
	if len(actions) == 0 {
		actions = DefaultActions(assessment)
	}
	return note, actions
}

// RunKYB executes the full assessment workflow for one customer. The
// returned outcome always satisfies the contract; the only error condition
// is refdata.ErrNotFound for an unknown customer.
func (c *Conductor) RunKYB(ctx context.Context, customerID string) (model.KYBOutcome, error) {
	started := time.Now()
	agents := make([]string, 0, 6)

	classification, err := c.Classify(ctx, customerID)
	if err != nil {
		return model.KYBOutcome{}, fmt.Errorf("classify %s: %w", customerID, err)
	}
	agents = append(agents, agentJourneyClassifier)

	profile, parties, err := c.Profile(ctx, customerID, classification.JourneyType)
	if err != nil {
		return model.KYBOutcome{}, fmt.Errorf("profile %s: %w", customerID, err)
	}
	agents = append(agents, agentCustomerProfile)

	var group *model.GroupContext
	if classification.HasLinkedCustomers {
		group = c.Group(ctx, customerID)
		agents = append(agents, agentGroupRelationship)
	}

	insights := c.Transactions(ctx, customerID)
	agents = append(agents, agentTransactionScan)

	assessment := c.Assess(profile, parties, group, insights, classification.JourneyType)
	agents = append(agents, agentRiskRules)

	note, actions := c.Narrative(ctx, profile, parties, insights, assessment)
	agents = append(agents, agentKYBNote)

	outcome := model.NormalizeOutcome(model.KYBOutcome{
		JourneyType:         classification.JourneyType,
		EntityProfile:       profile,
		PartySummary:        parties,
		GroupContext:        group,
		TransactionInsights: insights,
		RiskAssessment:      assessment,
		KYBNote:             note,
		RecommendedActions:  actions,
		AuditTrail: &model.AuditTrail{
			AgentsCalled: agents,
			CustomerID:   customerID,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		},
	}, customerID)

	c.log.Info("kyb assessment completed",
		"customer_id", customerID,
		"journey_type", outcome.JourneyType,
		"risk_band", outcome.RiskAssessment.RiskBand,
		"score", outcome.RiskAssessment.Score,
		"duration", time.Since(started).Round(time.Millisecond).String(),
	)
	return outcome, nil
}

// AssessRiskScope runs the standalone review-scope assessment.
func (c *Conductor) AssessRiskScope(ctx context.Context, customerID string) (map[string]any, error) {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()
	return c.RiskScope(sctx, customerID)
}

// FormatProfileSummary renders the profile into the flat text handed to the
// narrative stage.
func FormatProfileSummary(profile model.EntityProfile, parties model.PartySummary) string {
	return fmt.Sprintf(
		"Entity: %s. Customer ID: %s. Sector: %s - %s. Turnover Band: %s. Internal Risk Rating: %s. "+
			"Onboarding Date: %s. PEP Flag: %t. Sanctions Flag: %t. Party Observations: %s",
		orUnknown(profile.LegalName),
		orUnknown(profile.CustomerID),
		orUnknown(profile.Sector),
		orUnknown(profile.SubSector),
		orUnknown(profile.TurnoverBand),
		orUnknown(profile.InternalRiskRating),
		orUnknown(profile.OnboardingDate),
		profile.PEPFlag,
		profile.SanctionsFlag,
		parties.KeyObservations,
	)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
