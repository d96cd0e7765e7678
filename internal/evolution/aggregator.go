// Package evolution contains the autonomous rule-evolution engine: it mines
// blocked traffic and an external threat feed, asks a generative model for a
// candidate detection pattern, scores the candidate deterministically, and
// queues accepted candidates for human review.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/policy"
	"github.com/promptshield/promptshield/backend/internal/services"
)

const maxFeedBytes = 1 << 20

// Batch is the ephemeral sample set assembled for one evolution cycle.
type Batch struct {
	Samples []string
	Summary Summary
}

// Aggregator gathers attack samples from the event log and an external
// threat feed.
type Aggregator struct {
	events   *services.EventService
	feedURL  string
	client   *http.Client
	fallback []string
	motifs   []policy.Motif
}

// NewAggregator builds an Aggregator. fallback substitutes for the feed on
// any fetch failure so a cycle can always proceed.
func NewAggregator(events *services.EventService, feedURL string, timeout time.Duration, fallback []string, motifs []policy.Motif) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Aggregator{
		events:   events,
		feedURL:  feedURL,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		motifs:   motifs,
	}
}

// Collect merges recent internal attack prompts with external feed samples,
// preserving first-seen order and deduplicating by exact text. Feed failure
// is never fatal: the fallback samples stand in.
func (a *Aggregator) Collect(ctx context.Context, internalLimit, externalLimit int) (*Batch, error) {
	internal, err := a.events.RecentAttackPrompts(internalLimit)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	external := a.fetchFeed(ctx, externalLimit)

	seen := make(map[string]struct{})
	samples := make([]string, 0, len(internal)+len(external))
	for _, s := range append(internal, external...) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		samples = append(samples, s)
	}

	return &Batch{
		Samples: samples,
		Summary: Summarize(samples, a.motifs, 10),
	}, nil
}

// fetchFeed pulls the external threat feed. Any failure (network, non-200,
// malformed body) degrades to the fallback sample set.
func (a *Aggregator) fetchFeed(ctx context.Context, limit int) []string {
	if a.feedURL == "" {
		return bounded(a.fallback, limit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return bounded(a.fallback, limit)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		logger.Log().WithError(err).Warn("threat feed unavailable; using fallback samples")
		return bounded(a.fallback, limit)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Log().WithField("status", resp.StatusCode).
			Warn("threat feed returned non-200; using fallback samples")
		return bounded(a.fallback, limit)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		logger.Log().WithError(err).Warn("threat feed read failed; using fallback samples")
		return bounded(a.fallback, limit)
	}

	samples := parseFeed(data)
	if len(samples) == 0 {
		logger.Log().Warn("threat feed empty or malformed; using fallback samples")
		return bounded(a.fallback, limit)
	}

	return bounded(samples, limit)
}

// parseFeed accepts either a JSON array of strings or newline-delimited text.
func parseFeed(data []byte) []string {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func bounded(samples []string, limit int) []string {
	if limit > 0 && len(samples) > limit {
		return samples[:limit]
	}
	return samples
}
