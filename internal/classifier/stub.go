package classifier

import "context"

// Stub returns a fixed score for every input. It backs tests and the
// zero-configuration development mode.
type Stub struct {
	Fixed float64
	Err   error
}

func (s Stub) Score(ctx context.Context, text string) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Fixed, nil
}
