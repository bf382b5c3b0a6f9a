package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
	"github.com/givemeone1astkiss/ribo/internal/prompts"
)

// Classification confidences.
const (
	confidenceDomain   = 0.9
	confidenceOther    = 0.7
	confidenceFallback = 0.5
)

// DefaultClassifyTimeout bounds the model call of the classifier.
const DefaultClassifyTimeout = 30 * time.Second

// RoutingRules is the rules table consulted before the model.
// An utterance that matches is labelled rna_design without a model call.
type RoutingRules struct {
	// DomainTerms are lower-case words or phrases that only occur in RNA
	// design questions.
	DomainTerms []string

	// MatchSequences labels utterances containing an RNA sequence.
	MatchSequences bool
}

// DefaultRoutingRules returns the built-in rules table.
func DefaultRoutingRules() RoutingRules {
	terms := []string{
		"rna", "mrna", "sirna", "mirna", "microrna", "lncrna", "trna", "rrna", "sgrna", "shrna",
		"ribozyme", "ribozymes", "aptamer", "aptamers", "riboswitch", "riboswitches",
		"pseudoknot", "pseudoknots", "dot bracket", "dot-bracket", "rna folding",
		"secondary structure prediction", "inverse folding",
	}
	for _, id := range domain.AllToolIDs() {
		if id == domain.ToolReformer || id == domain.ToolCoPRA {
			// Ordinary words; too ambiguous to route on.
			continue
		}
		terms = append(terms, string(id))
	}
	return RoutingRules{DomainTerms: terms, MatchSequences: true}
}

// Match returns the rule-based label for text, if any rule applies.
func (r RoutingRules) Match(text string) (domain.Label, bool) {
	if r.MatchSequences && len(ExtractRNASequences(text)) > 0 {
		return domain.LabelRNADesign, true
	}
	normalised := " " + normaliseWords(text) + " "
	for _, term := range r.DomainTerms {
		if strings.Contains(normalised, " "+normaliseWords(term)+" ") {
			return domain.LabelRNADesign, true
		}
	}
	return "", false
}

// normaliseWords lowercases s and collapses everything that is not a
// letter or digit into single spaces.
func normaliseWords(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}), " ")
}

// Classifier labels utterances as rna_design, general_bioinfo or off_topic.
type Classifier struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	rules   RoutingRules
	timeout time.Duration
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRoutingRules replaces the rules table.
func WithRoutingRules(rules RoutingRules) ClassifierOption {
	return func(c *Classifier) { c.rules = rules }
}

// WithClassifyTimeout bounds the model call.
func WithClassifyTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClassifier creates a classifier. llm and promptStore may be nil.
func NewClassifier(llm driven.LLMService, promptStore driven.PromptStore, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		llm:     llm,
		prompts: promptStore,
		rules:   DefaultRoutingRules(),
		timeout: DefaultClassifyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns exactly one label for the utterance. It never fails:
// when the model cannot be consulted the result is off_topic with
// confidence 0.5.
func (c *Classifier) Classify(ctx context.Context, utterance string) domain.Classification {
	if label, ok := c.rules.Match(utterance); ok {
		logger.Debug("Classified by rules: %s", label)
		return domain.Classification{Label: label, Confidence: confidenceFor(label), Source: domain.ClassifiedByRules}
	}

	label, err := c.classifyWithModel(ctx, utterance)
	if err != nil {
		logger.Warn("%v", fmt.Errorf("%w: %w", domain.ErrClassification, err))
		return domain.Classification{
			Label:      domain.LabelOffTopic,
			Confidence: confidenceFallback,
			Source:     domain.ClassifiedByFallback,
		}
	}
	logger.Debug("Classified by model: %s", label)
	return domain.Classification{Label: label, Confidence: confidenceFor(label), Source: domain.ClassifiedByModel}
}

func (c *Classifier) classifyWithModel(ctx context.Context, utterance string) (domain.Label, error) {
	if c.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := prompts.Render(loadPrompt(c.prompts, driven.PromptClassify), utterance, "")
	reply, err := c.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 10, Temperature: 0})
	if err != nil {
		return "", err
	}
	return ParseLabel(reply), nil
}

// ParseLabel maps a model reply onto a label. Replies naming no known
// label map to off_topic.
func ParseLabel(reply string) domain.Label {
	r := strings.ToLower(reply)
	r = strings.NewReplacer("-", "_", " ", "_").Replace(r)

	best, bestAt := domain.LabelOffTopic, -1
	for _, l := range []domain.Label{domain.LabelRNADesign, domain.LabelGeneralBioinfo, domain.LabelOffTopic} {
		if at := strings.Index(r, string(l)); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = l, at
		}
	}
	return best
}

func confidenceFor(label domain.Label) float64 {
	if label == domain.LabelRNADesign {
		return confidenceDomain
	}
	return confidenceOther
}
