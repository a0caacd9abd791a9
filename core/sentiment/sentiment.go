// Package sentiment scores stored news and social snippets about a customer
// with a local ONNX text classification model. It is a screening aid for the
// KYB reviewer; the rule engine never consumes sentiment directly.
package sentiment

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"

	"github.com/kybradar/kybradar/helper"
	"github.com/kybradar/kybradar/refdata"
)

// ClassifyTextFunc scores one text, returning the winning label and its
// confidence.
type ClassifyTextFunc func(text string) (label string, score float64, err error)

// SnippetSentiment is the per-snippet classification result.
type SnippetSentiment struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
}

// Result is the aggregated sentiment view of a customer's media coverage.
type Result struct {
	CustomerID    string             `json:"customer_id"`
	Snippets      []SnippetSentiment `json:"snippets"`
	OverallLabel  string             `json:"overall_label"`
	NegativeShare float64            `json:"negative_share"`
}

// Analyzer classifies snippets from the reference library.
type Analyzer struct {
	library  *refdata.Library
	classify ClassifyTextFunc
	close    func() error
}

// NewAnalyzer creates an analyzer backed by a local SST-2 sentiment model,
// downloading it on first use.
func NewAnalyzer(library *refdata.Library) (*Analyzer, error) {
	modelName := "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "sentiment-pipeline",
	}
	sentimentPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentiment pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentiment pipeline: %w", err)
	}

	classify := func(text string) (string, float64, error) {
		result, err := sentimentPipeline.RunPipeline([]string{text})
		if err != nil {
			return "", 0, fmt.Errorf("failed to run sentiment classification: %w", err)
		}
		if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
			return "", 0, fmt.Errorf("empty classification output")
		}
		top := result.ClassificationOutputs[0][0]
		return top.Label, float64(top.Score), nil
	}

	return &Analyzer{library: library, classify: classify, close: session.Destroy}, nil
}

// NewAnalyzerWithClassifier creates an analyzer over a caller-supplied
// classifier. Used by tests and by deployments with a remote scorer.
func NewAnalyzerWithClassifier(library *refdata.Library, classify ClassifyTextFunc) *Analyzer {
	return &Analyzer{library: library, classify: classify}
}

// AnalyzeCustomer classifies every stored snippet for a customer. A customer
// without snippets yields an empty result with NEUTRAL overall label.
func (a *Analyzer) AnalyzeCustomer(customerID string) (Result, error) {
	snippets, err := a.library.Snippets(customerID)
	if err != nil {
		return Result{}, helper.NewError("load snippets", err)
	}

	out := Result{CustomerID: customerID, Snippets: []SnippetSentiment{}}
	labels := make([]string, 0, len(snippets))
	for _, s := range snippets {
		label, score, err := a.classify(s.Text)
		if err != nil {
			return Result{}, helper.NewError("classify snippet", err)
		}
		out.Snippets = append(out.Snippets, SnippetSentiment{
			Source: s.Source,
			Text:   s.Text,
			Label:  strings.ToUpper(label),
			Score:  score,
		})
		labels = append(labels, label)
	}

	out.OverallLabel, out.NegativeShare = Aggregate(labels)
	return out, nil
}

// Close releases the model session, if any.
func (a *Analyzer) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Aggregate reduces per-snippet labels to an overall label and the share of
// negative snippets. More negative than positive labels means NEGATIVE
// overall; a tie or no labels at all means NEUTRAL.
func Aggregate(labels []string) (string, float64) {
	if len(labels) == 0 {
		return "NEUTRAL", 0
	}
	var negative, positive int
	for _, l := range labels {
		switch strings.ToUpper(l) {
		case "NEGATIVE":
			negative++
		case "POSITIVE":
			positive++
		}
	}
	share := float64(negative) / float64(len(labels))
	switch {
	case negative > positive:
		return "NEGATIVE", share
	case positive > negative:
		return "POSITIVE", share
	default:
		return "NEUTRAL", share
	}
}
