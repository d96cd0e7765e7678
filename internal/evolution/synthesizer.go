package evolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/promptshield/promptshield/backend/internal/llm"
)

// ErrSynthesis marks a cycle where the generative model produced no usable
// candidate. Never retried synchronously; the next scheduled cycle tries
// again.
var ErrSynthesis = errors.New("rule synthesis failed")

// Candidate is a proposed detection pattern with its justification.
type Candidate struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
	Source  string `json:"-"`
}

// Synthesizer asks a generative model to propose one regular-expression rule
// from a batch of attack samples.
type Synthesizer struct {
	provider    llm.Provider
	source      string
	sampleCap   int
	patternTail int
}

// NewSynthesizer builds a Synthesizer. source tags every candidate it
// produces, e.g. "Hybrid Analysis".
func NewSynthesizer(provider llm.Provider, source string) *Synthesizer {
	if source == "" {
		source = "Hybrid Analysis"
	}

	return &Synthesizer{
		provider:    provider,
		source:      source,
		sampleCap:   20,
		patternTail: 10,
	}
}

// Propose requests a single candidate for the batch. existingPatterns bias
// the model away from proposing a rule that is already active.
func (s *Synthesizer) Propose(ctx context.Context, batch *Batch, existingPatterns []string) (*Candidate, error) {
	if batch == nil || len(batch.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty sample batch", ErrSynthesis)
	}

	reply, err := s.provider.CompleteJSON(ctx, s.buildMessages(batch, existingPatterns))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	var candidate Candidate
	if err := json.Unmarshal([]byte(extractJSON(reply)), &candidate); err != nil {
		return nil, fmt.Errorf("%w: malformed model reply: %v", ErrSynthesis, err)
	}
	if strings.TrimSpace(candidate.Pattern) == "" || strings.TrimSpace(candidate.Reason) == "" {
		return nil, fmt.Errorf("%w: model reply missing pattern or reason", ErrSynthesis)
	}

	candidate.Pattern = strings.TrimSpace(candidate.Pattern)
	candidate.Reason = strings.TrimSpace(candidate.Reason)
	candidate.Source = s.source

	return &candidate, nil
}

func (s *Synthesizer) buildMessages(batch *Batch, existingPatterns []string) []llm.Message {
	samples := batch.Samples
	if len(samples) > s.sampleCap {
		samples = samples[:s.sampleCap]
	}

	tail := existingPatterns
	if len(tail) > s.patternTail {
		tail = tail[len(tail)-s.patternTail:]
	}

	var b strings.Builder
	b.WriteString("Analyze these malicious prompts blocked by our firewall:\n")
	for _, sample := range samples {
		fmt.Fprintf(&b, "- %s\n", sample)
	}
	if len(batch.Summary.Keywords) > 0 {
		fmt.Fprintf(&b, "\nFrequent keywords: %s\n", strings.Join(batch.Summary.Keywords, ", "))
	}
	if len(batch.Summary.Motifs) > 0 {
		fmt.Fprintf(&b, "Observed behaviors: %s\n", strings.Join(batch.Summary.Motifs, ", "))
	}
	if len(tail) > 0 {
		b.WriteString("\nThese patterns are already active, do NOT duplicate them:\n")
		for _, p := range tail {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	b.WriteString("\nIdentify one new regex pattern that connects the prompts above. ")
	b.WriteString(`Return ONLY a JSON object: {"pattern": "regex_here", "reason": "explanation_here"}`)

	return []llm.Message{
		{Role: "system", Content: "You are a security architect. Output JSON only."},
		{Role: "user", Content: b.String()},
	}
}

// jsonBlockRegex matches a fenced code block, greedy to the last fence so
// nested backticks inside the JSON survive.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*)```")

// extractJSON strips a markdown code fence when the model wrapped its reply
// in one despite the JSON-only instruction.
func extractJSON(text string) string {
	if m := jsonBlockRegex.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
