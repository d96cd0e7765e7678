package evolution

import (
	"context"
	"fmt"
	"sync"

	"github.com/promptshield/promptshield/backend/internal/logger"
	"github.com/promptshield/promptshield/backend/internal/metrics"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/services"
	"github.com/promptshield/promptshield/backend/internal/store"
)

// State names one stage of the evolution cycle.
type State string

const (
	StateIdle         State = "idle"
	StateCollecting   State = "collecting"
	StateSynthesizing State = "synthesizing"
	StateVerifying    State = "verifying"
	StatePublishing   State = "publishing"
)

// Engine drives one evolution cycle at a time: collect samples, synthesize a
// candidate, verify its coverage, publish it to the pending queue. Any stage
// failure ends the cycle early; nothing here can take the serving path down.
type Engine struct {
	aggregator    *Aggregator
	synthesizer   *Synthesizer
	rules         *store.RuleStore
	pending       *store.PendingStore
	notifications *services.NotificationService

	internalLimit int
	externalLimit int
	minCoverage   float64

	mu      sync.Mutex
	running bool
	state   State
}

// NewEngine wires the cycle stages together.
func NewEngine(agg *Aggregator, synth *Synthesizer, rules *store.RuleStore, pending *store.PendingStore, ns *services.NotificationService, internalLimit, externalLimit int, minCoverage float64) *Engine {
	if internalLimit <= 0 {
		internalLimit = 50
	}
	if externalLimit <= 0 {
		externalLimit = 50
	}
	if minCoverage <= 0 || minCoverage > 1 {
		minCoverage = 0.4
	}

	return &Engine{
		aggregator:    agg,
		synthesizer:   synth,
		rules:         rules,
		pending:       pending,
		notifications: ns,
		internalLimit: internalLimit,
		externalLimit: externalLimit,
		minCoverage:   minCoverage,
		state:         StateIdle,
	}
}

// State reports the current cycle stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// RunCycle executes one full cycle. Overlapping invocations are dropped:
// only one cycle may be in flight, since cycle end and governance actions
// share the pending-rule file.
func (e *Engine) RunCycle(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		logger.Log().Debug("evolution cycle already running; trigger dropped")
		return
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.state = StateIdle
		e.mu.Unlock()
	}()

	log := logger.WithFields(map[string]interface{}{"component": "evolution"})

	e.setState(StateCollecting)
	batch, err := e.aggregator.Collect(ctx, e.internalLimit, e.externalLimit)
	if err != nil {
		log.WithError(err).Warn("cycle ended: sample collection failed")
		metrics.IncCycle("collect_failed")
		return
	}
	if len(batch.Samples) == 0 {
		log.Info("cycle ended: no attack samples available")
		metrics.IncCycle("empty_batch")
		return
	}
	log.WithField("samples", len(batch.Samples)).Debug("collected attack batch")

	e.setState(StateSynthesizing)
	candidate, err := e.synthesizer.Propose(ctx, batch, e.rules.Patterns())
	if err != nil {
		log.WithError(err).Warn("cycle ended: no candidate produced")
		metrics.IncCycle("synthesis_failed")
		return
	}

	e.setState(StateVerifying)
	accepted, coverage := Verify(candidate.Pattern, batch.Samples, e.minCoverage)
	if !accepted {
		log.WithFields(map[string]interface{}{
			"pattern":  candidate.Pattern,
			"coverage": fmt.Sprintf("%.2f", coverage),
		}).Info("cycle ended: candidate below coverage threshold")
		metrics.IncCycle("verification_rejected")
		return
	}

	e.setState(StatePublishing)
	published, err := e.pending.Publish(store.PendingRule{
		Pattern:  candidate.Pattern,
		Reason:   candidate.Reason,
		Source:   candidate.Source,
		Coverage: coverage,
	})
	if err != nil {
		log.WithError(err).Error("cycle ended: pending queue write failed")
		metrics.IncCycle("publish_failed")
		return
	}
	if !published {
		log.WithField("pattern", candidate.Pattern).
			Info("cycle ended: candidate already pending")
		metrics.IncCycle("duplicate")
		return
	}

	metrics.IncCycle("published")
	metrics.IncCandidatePublished()
	log.WithFields(map[string]interface{}{
		"pattern":  candidate.Pattern,
		"coverage": fmt.Sprintf("%.2f", coverage),
	}).Info("candidate rule queued for review")

	if e.notifications != nil {
		e.notifications.Notify(models.NotificationTypeInfo, "New rule proposed",
			fmt.Sprintf("Pattern %q (coverage %.0f%%) awaits review: %s",
				candidate.Pattern, coverage*100, candidate.Reason))
	}
}
