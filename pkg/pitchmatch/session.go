package pitchmatch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/himanishpuri/PitchMatch/internal/gameloop"
	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/internal/track"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
)

type TickResult = gameloop.TickResult

var (
	// ErrEmptyScore is returned when a session is created for a score with
	// no notes.
	ErrEmptyScore = errors.New("score has no notes")
	ErrNoClock    = errors.New("session needs a reference clock and an audio clock")
)

// Session is one play-through of a score. It owns the sample buffer, the
// score engine and the game loop; the caller owns the clocks and feeds
// detections in.
type Session struct {
	id        string
	trackID   string
	score     Score
	reference Clock
	audio     Clock
	buf       *judge.SampleBuffer
	engine    *judge.Engine
	loop      *gameloop.Loop
	sink      Sink
	log       Logger
	createdAt time.Time

	sampleInterval time.Duration

	mu        sync.Mutex
	matched   int
	lastPitch float64
	hasPitch  bool
}

func NewSession(score Score, reference, audio Clock, opts ...SessionOption) (*Session, error) {
	if len(score) == 0 {
		return nil, ErrEmptyScore
	}
	if reference == nil || audio == nil {
		return nil, ErrNoClock
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.sink == nil {
		cfg.sink = NopSink{}
	}
	if cfg.log == nil {
		cfg.log = logger.GetLogger()
	}
	score = track.FromNotes(score)

	s := &Session{
		id:        cfg.id,
		trackID:   cfg.trackID,
		score:     score,
		reference: reference,
		audio:     audio,
		buf:       judge.NewSampleBuffer(cfg.retention),
		engine:    judge.NewEngine(cfg.feedbackHold, cfg.now),
		sink:      cfg.sink,
		log:       cfg.log,
		createdAt: cfg.now(),

		sampleInterval: cfg.sampleInterval,
	}
	s.loop = gameloop.New(score, s.buf, s.engine, reference, audio, sessionSink{s}, gameloop.Config{
		Interval:        cfg.tickInterval,
		NoteToleranceMs: cfg.noteToleranceMs,
		Tolerances:      cfg.tolerances,
	}, cfg.log)

	return s, nil
}

// SampleInterval is how often a sampler feeding this session should poll.
func (s *Session) SampleInterval() time.Duration {
	return s.sampleInterval
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) TrackID() string {
	return s.trackID
}

func (s *Session) Score() Score {
	return s.score
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// PushDetection records a raw detector result. Results with confidence at
// or below the acceptance threshold, or without a frequency, are dropped
// and PushDetection returns false.
func (s *Session) PushDetection(frequency, confidence, audioTime float64) bool {
	smp, ok := judge.SampleFromDetection(frequency, confidence, audioTime)
	if !ok {
		return false
	}
	s.PushSample(smp.Pitch, smp.Timestamp)
	return true
}

// PushSample appends an already converted pitch sample.
func (s *Session) PushSample(pitchValue, audioTime float64) PitchSample {
	stored := s.buf.Append(PitchSample{Pitch: pitchValue, Timestamp: audioTime})

	s.mu.Lock()
	s.lastPitch = pitchValue
	s.hasPitch = true
	s.mu.Unlock()

	return stored
}

// Start begins periodic evaluation. It is a no-op on a running session.
func (s *Session) Start() {
	if s.loop.Running() {
		return
	}
	s.loop.Start()
	s.log.Infof("▶️  Session %s started (%d notes)", s.id, len(s.score))
}

// Stop halts evaluation after the in-flight tick and clears the detected
// pitch indicator.
func (s *Session) Stop() {
	wasRunning := s.loop.Running()
	s.loop.Stop()

	s.mu.Lock()
	s.hasPitch = false
	s.lastPitch = 0
	s.mu.Unlock()

	if wasRunning {
		s.log.Infof("⏹️  Session %s stopped (score %d)", s.id, s.engine.Score())
	}
}

func (s *Session) Running() bool {
	return s.loop.Running()
}

// Tick runs one evaluation synchronously, regardless of whether the session
// is running.
func (s *Session) Tick() TickResult {
	return s.loop.Tick()
}

// Reset zeroes the score, empties the sample buffer and forgets which
// notes were already matched.
func (s *Session) Reset() {
	s.engine.Reset()
	s.buf.Reset()
	s.loop.ResetJudgments()

	s.mu.Lock()
	s.matched = 0
	s.hasPitch = false
	s.lastPitch = 0
	s.mu.Unlock()

	s.log.Debugf("Session %s reset", s.id)
}

func (s *Session) State() State {
	return s.engine.State()
}

func (s *Session) Snapshot() SessionState {
	st := s.engine.State()
	snap := SessionState{
		ID:            s.id,
		TrackID:       s.trackID,
		Running:       s.loop.Running(),
		Score:         st.Score,
		Feedback:      st.Feedback.String(),
		ReferenceTime: s.reference.CurrentTime(),
		AudioTime:     s.audio.CurrentTime(),
		TotalNotes:    len(s.score),
	}
	if !st.FeedbackExpiry.IsZero() {
		expiry := st.FeedbackExpiry
		snap.FeedbackExpiry = &expiry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Matched = s.matched
	if s.hasPitch {
		p := s.lastPitch
		snap.DetectedPitch = &p
		snap.DetectedNote = pitch.NearestName(p)
	}
	return snap
}

// sessionSink tags loop notifications with the session id.
type sessionSink struct {
	s *Session
}

func (k sessionSink) NoteMatched(p Pair) {
	k.s.mu.Lock()
	k.s.matched++
	k.s.mu.Unlock()
	k.s.sink.NoteMatched(k.s.id, p)
}

func (k sessionSink) ScoreUpdated(st State) {
	k.s.sink.ScoreUpdated(k.s.id, st)
}
