package judge

import (
	"sync"
	"time"

	"github.com/himanishpuri/PitchMatch/internal/model"
)

const (
	// PointsPerMatch is awarded for every accepted pair.
	PointsPerMatch = 10

	DefaultFeedbackHold = 500 * time.Millisecond
)

// State is a read-only view of the score engine.
type State struct {
	Score          int
	Feedback       model.Feedback
	FeedbackExpiry time.Time // zero when no feedback is pending
}

// Engine accumulates points and drives the transient feedback state.
// Score only ever grows; Reset is the sole way back to zero.
type Engine struct {
	mu       sync.Mutex
	hold     time.Duration
	now      func() time.Time
	score    int
	feedback model.Feedback
	expiry   time.Time
}

// NewEngine creates an engine. A zero hold uses DefaultFeedbackHold and a
// nil clock uses time.Now.
func NewEngine(hold time.Duration, now func() time.Time) *Engine {
	if hold <= 0 {
		hold = DefaultFeedbackHold
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{hold: hold, now: now}
}

// Apply awards points for the pairs and returns the points added.
func (e *Engine) Apply(pairs []model.Pair) int {
	if len(pairs) == 0 {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for range pairs {
		e.score += PointsPerMatch
		added += PointsPerMatch
		e.feedback = model.Correct
		e.expiry = e.now().Add(e.hold)
	}
	return added
}

// State returns the current score and feedback, reverting expired
// feedback to Neutral first.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireLocked()
	return State{Score: e.score, Feedback: e.feedback, FeedbackExpiry: e.expiry}
}

// Score returns the cumulative score.
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Reset sets the score to zero and clears feedback.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.score = 0
	e.feedback = model.Neutral
	e.expiry = time.Time{}
}

func (e *Engine) expireLocked() {
	if e.feedback == model.Neutral || e.expiry.IsZero() {
		return
	}
	if !e.now().Before(e.expiry) {
		e.feedback = model.Neutral
		e.expiry = time.Time{}
	}
}
