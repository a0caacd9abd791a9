// Package kybradar assembles the KYB risk assessment system: reference data
// access, the staged assessment pipeline, the deterministic rule engine and
// the MCP protocol surface.
package kybradar

import (
	"context"
	"log/slog"
	"os"

	"github.com/kybradar/kybradar/core/pipeline"
	"github.com/kybradar/kybradar/core/sentiment"
	"github.com/kybradar/kybradar/helper"
	"github.com/kybradar/kybradar/mcp"
	"github.com/kybradar/kybradar/model"
	"github.com/kybradar/kybradar/refdata"
)

// Radar provides a unified interface to the assessment system.
type Radar struct {
	Library   *refdata.Library
	Conductor *pipeline.Conductor
	Registry  *mcp.Registry
	Server    *mcp.Server
	Hub       *mcp.Hub
	Sentiment *sentiment.Analyzer // Optional media screening
	// Logging
	log    *slog.Logger
	closer func() error
}

// New creates a Radar instance from configuration. Reference data comes from
// Postgres when DatabaseURL is set (seeded from the embedded defaults on
// first start), otherwise from RefDataDir with embedded fallback. Without an
// OpenAI key the pipeline runs fully deterministic.
func New(cfg helper.Config) (*Radar, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	var store refdata.DocumentStore
	var closer func() error
	if cfg.DatabaseURL != "" {
		pg, err := refdata.NewPostgresStore(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, helper.NewError("open postgres reference store", err)
		}
		if err := pg.SeedFromEmbedded(); err != nil {
			_ = pg.Close()
			return nil, helper.NewError("seed reference documents", err)
		}
		store = pg
		closer = pg.Close
	} else {
		store = refdata.NewFileStore(cfg.RefDataDir)
	}
	library := refdata.NewLibrary(store)

	var complete pipeline.CompleteFunc
	if cfg.OpenAIAPIKey != "" {
		complete = pipeline.DefaultCompleter(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	} else {
		logger.Warn("no OpenAI API key configured, running deterministic pipeline")
	}

	conductor := pipeline.NewConductor(library, complete, logger, cfg.StageTimeout)
	registry := mcp.NewRegistry(conductor, logger)

	return &Radar{
		Library:   library,
		Conductor: conductor,
		Registry:  registry,
		Server:    mcp.NewServer(registry, logger),
		Hub:       mcp.NewHub(16),
		log:       logger,
		closer:    closer,
	}, nil
}

// UseSentiment enables media sentiment screening, downloading the local
// classification model on first use.
func (r *Radar) UseSentiment() error {
	analyzer, err := sentiment.NewAnalyzer(r.Library)
	if err != nil {
		return helper.NewError("create sentiment analyzer", err)
	}
	r.Sentiment = analyzer
	return nil
}

// RunKYB runs the full assessment workflow for one customer.
func (r *Radar) RunKYB(ctx context.Context, customerID string) (model.KYBOutcome, error) {
	return r.Conductor.RunKYB(ctx, customerID)
}

// AssessRiskScope runs the standalone review-scope assessment.
func (r *Radar) AssessRiskScope(ctx context.Context, customerID string) (map[string]any, error) {
	return r.Conductor.AssessRiskScope(ctx, customerID)
}

// Logger returns the configured logger.
func (r *Radar) Logger() *slog.Logger {
	return r.log
}

// Close releases the reference store and the sentiment session, if any.
func (r *Radar) Close() error {
	if r.Sentiment != nil {
		if err := r.Sentiment.Close(); err != nil {
			return err
		}
	}
	if r.closer != nil {
		return r.closer()
	}
	return nil
}
