package evolution

import (
	"sort"
	"strings"

	"github.com/promptshield/promptshield/backend/internal/policy"
)

// Summary is advisory context for rule synthesis: frequency-ranked keywords
// and the behavioral motifs detected across the batch. It never influences
// blocking decisions.
type Summary struct {
	Keywords []string `json:"keywords"`
	Motifs   []string `json:"motifs"`
}

const minKeywordLen = 4

// Summarize extracts the topN most frequent keywords (tokens of at least
// four characters) and the motifs whose keyword sets appear in the samples.
func Summarize(samples []string, motifs []policy.Motif, topN int) Summary {
	counts := make(map[string]int)
	var joined strings.Builder
	for _, s := range samples {
		lower := strings.ToLower(s)
		joined.WriteString(lower)
		joined.WriteByte(' ')
		for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
			return !isWordRune(r)
		}) {
			if len(tok) >= minKeywordLen {
				counts[tok]++
			}
		}
	}

	keywords := make([]string, 0, len(counts))
	for k := range counts {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if topN > 0 && len(keywords) > topN {
		keywords = keywords[:topN]
	}

	text := joined.String()
	var hits []string
	for _, motif := range motifs {
		for _, kw := range motif.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				hits = append(hits, motif.Name)
				break
			}
		}
	}

	return Summary{Keywords: keywords, Motifs: hits}
}

func isWordRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
		(r >= 'A' && r <= 'Z')
}
