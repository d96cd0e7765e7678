// Package pipeline implements the multi-layer inspection pipeline: static
// rules, then the ML classifier for prompts, then the output validator for
// responses. Stages short-circuit on the first block, and every block writes
// exactly one attack event before the verdict returns.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/metrics"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/services"
	"github.com/promptshield/promptshield/backend/internal/store"
	"github.com/promptshield/promptshield/backend/internal/util"
)

// Verdict is the outcome of one inspection.
type Verdict struct {
	Safe       bool    `json:"safe"`
	Layer      string  `json:"layer,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Pipeline evaluates prompts and responses against the active defenses.
// Invocations are stateless aside from reads of the shared rule store and
// appends to the event log, so they are safe to run concurrently.
type Pipeline struct {
	rules          *store.RuleStore
	scorer         Scorer
	events         *services.EventService
	sensitiveTerms []string
	threshold      float64
	maxInput       int

	// compiled caches pattern compilation across inspections. A pattern
	// that fails to compile is cached as nil and skipped thereafter.
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// New constructs a Pipeline. sensitiveTerms are matched case-insensitively
// as substrings of model output.
func New(rules *store.RuleStore, scorer Scorer, events *services.EventService, sensitiveTerms []string, threshold float64, maxInput int) *Pipeline {
	terms := make([]string, 0, len(sensitiveTerms))
	for _, t := range sensitiveTerms {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, strings.ToLower(t))
		}
	}

	if threshold <= 0 || threshold > 1 {
		threshold = 0.90
	}
	if maxInput <= 0 {
		maxInput = 512
	}

	return &Pipeline{
		rules:          rules,
		scorer:         scorer,
		events:         events,
		sensitiveTerms: terms,
		threshold:      threshold,
		maxInput:       maxInput,
		compiled:       make(map[string]*regexp.Regexp),
	}
}

// InspectPrompt runs the static layer, then the classifier layer. A non-nil
// error means the classifier failed and no verdict could be reached; it is
// never folded into a Safe verdict.
func (p *Pipeline) InspectPrompt(ctx context.Context, text string) (Verdict, error) {
	metrics.IncInspection("prompt")

	if v, blocked := p.staticLayer(text); blocked {
		return v, nil
	}

	return p.classifierLayer(ctx, text)
}

// InspectResponse scans a model response for sensitive terms. On a hit the
// event records the original prompt, not the leaked text, as its prompt.
func (p *Pipeline) InspectResponse(ctx context.Context, response, originalPrompt string) (Verdict, error) {
	metrics.IncInspection("response")

	lower := strings.ToLower(response)
	for _, term := range p.sensitiveTerms {
		if !strings.Contains(lower, term) {
			continue
		}

		content := response
		p.record(&models.AttackEvent{
			Prompt:          originalPrompt,
			BlockedLayer:    models.LayerOutput,
			ConfidenceScore: 1.0,
			BlockedContent:  &content,
		})
		return Verdict{
			Layer:      models.LayerOutput,
			Reason:     "Blocked: Data Leakage Detected",
			Confidence: 1.0,
		}, nil
	}

	return Verdict{Safe: true}, nil
}

// staticLayer searches each active pattern case-insensitively. The first
// match blocks with confidence 1.0. A pattern that fails to compile is
// skipped so a bad rule can never take the pipeline down.
func (p *Pipeline) staticLayer(text string) (Verdict, bool) {
	for _, pattern := range p.rules.Patterns() {
		re := p.compile(pattern)
		if re == nil || !re.MatchString(text) {
			continue
		}

		p.record(&models.AttackEvent{
			Prompt:          text,
			BlockedLayer:    models.LayerStatic,
			ConfidenceScore: 1.0,
		})
		return Verdict{
			Layer:      models.LayerStatic,
			Reason:     fmt.Sprintf("Blocked by Static Rule: %q", pattern),
			Confidence: 1.0,
		}, true
	}

	return Verdict{}, false
}

func (p *Pipeline) classifierLayer(ctx context.Context, text string) (Verdict, error) {
	score, err := p.scorer.Score(ctx, util.Truncate(text, p.maxInput))
	if err != nil {
		metrics.IncClassifierError()
		return Verdict{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	if score > p.threshold {
		p.record(&models.AttackEvent{
			Prompt:          text,
			BlockedLayer:    models.LayerClassifier,
			ConfidenceScore: score,
		})
		return Verdict{
			Layer:      models.LayerClassifier,
			Reason:     fmt.Sprintf("Blocked by ML Classifier (confidence %.2f)", score),
			Confidence: score,
		}, nil
	}

	return Verdict{Safe: true}, nil
}

// compile returns the cached case-insensitive regexp for pattern, or nil
// when the pattern does not compile.
func (p *Pipeline) compile(pattern string) *regexp.Regexp {
	p.mu.RLock()
	re, seen := p.compiled[pattern]
	p.mu.RUnlock()
	if seen {
		return re
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		logger.Log().WithError(err).WithField("pattern", pattern).
			Warn("active rule does not compile; skipping it")
		re = nil
	}

	p.mu.Lock()
	p.compiled[pattern] = re
	p.mu.Unlock()

	return re
}

// record writes the attack event and bumps the block counter. Logging
// completes (or is retried and reported) before the verdict returns.
func (p *Pipeline) record(event *models.AttackEvent) {
	metrics.IncBlocked(event.BlockedLayer)
	if err := p.events.LogAttack(event); err != nil {
		logger.Log().WithError(err).
			WithField("prompt", util.SanitizeForLog(util.Truncate(event.Prompt, 200))).
			Error("blocked interaction could not be logged")
	}
}
