package evolution

import (
	"math"
	"regexp"
)

// Verify scores a candidate pattern against a sample batch. The pattern is
// compiled case-insensitively; one that does not compile is rejected with
// zero coverage, never a panic. coverage is the fraction of samples matched,
// and the candidate is accepted when the match count reaches
// ceil(len(batch) * minCoverage).
//
// This is the only gate between a hallucinated or overly broad pattern and
// human review, so it stays deterministic and side-effect free.
func Verify(pattern string, batch []string, minCoverage float64) (bool, float64) {
	if len(batch) == 0 {
		return false, 0
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, 0
	}

	matches := 0
	for _, sample := range batch {
		if re.MatchString(sample) {
			matches++
		}
	}

	coverage := float64(matches) / float64(len(batch))
	required := int(math.Ceil(float64(len(batch)) * minCoverage))

	return matches >= required, coverage
}
