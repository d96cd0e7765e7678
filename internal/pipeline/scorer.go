package pipeline

import (
	"context"
	"errors"
)

// ErrClassifierUnavailable wraps scoring failures. The pipeline surfaces it
// as an inspection error distinct from a Safe verdict: the caller decides the
// fallback policy, the pipeline never fails open on a dead classifier.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Scorer is the narrow contract over the pretrained injection classifier.
// Implementations must return a likelihood in [0,1].
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}
