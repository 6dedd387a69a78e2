package gameloop

import (
	"sync"
	"time"

	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/model"
)

// DefaultInterval is the evaluation tick period.
const DefaultInterval = 50 * time.Millisecond

// Clock reports a position in seconds.
type Clock interface {
	CurrentTime() float64
}

// Sink receives the outcome of every tick: one call per match, then the
// cumulative state.
type Sink interface {
	NoteMatched(p model.Pair)
	ScoreUpdated(st judge.State)
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

type Config struct {
	Interval        time.Duration
	NoteToleranceMs float64
	Tolerances      judge.Tolerances
}

func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		NoteToleranceMs: judge.DefaultNoteToleranceMs,
		Tolerances:      judge.DefaultTolerances(),
	}
}

// TickResult describes one evaluation.
type TickResult struct {
	ReferenceTime float64
	AudioTime     float64
	Expected      int
	Matches       []model.Pair
	Points        int
	State         judge.State
}

// Loop is the game clock: while running it evaluates the score against
// the sample buffer every interval.
//
// A note that has been matched, and a sample that has been consumed, are
// retired until ResetJudgments. A held note stays due for several ticks
// and would otherwise score on each of them.
type Loop struct {
	score     model.Score
	buf       *judge.SampleBuffer
	engine    *judge.Engine
	reference Clock
	audio     Clock
	sink      Sink
	cfg       Config
	log       Logger

	tickMu         sync.Mutex
	retiredNotes   map[int]struct{}
	retiredSamples map[uint64]struct{}

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New wires a loop. The score must be sorted by start time; the loop keeps
// its own copy with each note's ID set to its index. Zero config fields
// take their defaults; sink and log may be nil.
func New(score model.Score, buf *judge.SampleBuffer, engine *judge.Engine, reference, audio Clock, sink Sink, cfg Config, log Logger) *Loop {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.NoteToleranceMs <= 0 {
		cfg.NoteToleranceMs = def.NoteToleranceMs
	}
	if cfg.Tolerances.PitchSemitones <= 0 {
		cfg.Tolerances.PitchSemitones = def.Tolerances.PitchSemitones
	}
	if cfg.Tolerances.TimingMs <= 0 {
		cfg.Tolerances.TimingMs = def.Tolerances.TimingMs
	}
	indexed := make(model.Score, len(score))
	copy(indexed, score)
	for i := range indexed {
		indexed[i].ID = i
	}
	return &Loop{
		score:          indexed,
		buf:            buf,
		engine:         engine,
		reference:      reference,
		audio:          audio,
		sink:           sink,
		cfg:            cfg,
		log:            log,
		retiredNotes:   make(map[int]struct{}),
		retiredSamples: make(map[uint64]struct{}),
	}
}

func (l *Loop) Config() Config {
	return l.cfg
}

// Start begins ticking. Calling Start on a running loop does nothing.
func (l *Loop) Start() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
	l.debugf("game loop started (interval %s)", l.cfg.Interval)
}

// Stop halts ticking and waits for an in-flight tick to finish. Calling
// Stop on a stopped loop does nothing.
func (l *Loop) Stop() {
	l.runMu.Lock()
	if !l.running {
		l.runMu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	done := l.done
	l.runMu.Unlock()

	<-done
	l.debugf("game loop stopped")
}

func (l *Loop) Running() bool {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.running
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs one evaluation synchronously.
func (l *Loop) Tick() TickResult {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	// 1. Read both clocks
	refTime := l.reference.CurrentTime()
	audioNow := l.audio.CurrentTime()

	// 2. Notes due now, minus those already judged
	due := judge.Due(l.score, refTime, l.cfg.NoteToleranceMs)
	expected := due[:0:0]
	for _, n := range due {
		if _, done := l.retiredNotes[n.ID]; !done {
			expected = append(expected, n)
		}
	}

	// 3. Buffered samples not yet consumed
	snapshot := l.buf.Snapshot()
	detected := make([]model.PitchSample, 0, len(snapshot))
	live := make(map[uint64]struct{}, len(snapshot))
	for _, s := range snapshot {
		live[s.Seq] = struct{}{}
		if _, used := l.retiredSamples[s.Seq]; !used {
			detected = append(detected, s)
		}
	}
	for seq := range l.retiredSamples {
		if _, ok := live[seq]; !ok {
			delete(l.retiredSamples, seq)
		}
	}

	// 4. Match and score
	pairs := judge.Match(expected, detected, refTime, audioNow, l.cfg.Tolerances)
	for _, p := range pairs {
		l.retiredNotes[p.Note.ID] = struct{}{}
		l.retiredSamples[p.Sample.Seq] = struct{}{}
	}
	points := l.engine.Apply(pairs)
	state := l.engine.State()

	if len(pairs) > 0 {
		l.debugf("tick ref=%.3fs audio=%.3fs: %d match(es), +%d, score %d", refTime, audioNow, len(pairs), points, state.Score)
	}

	// 5. Notify
	if l.sink != nil {
		for _, p := range pairs {
			l.sink.NoteMatched(p)
		}
		l.sink.ScoreUpdated(state)
	}

	return TickResult{
		ReferenceTime: refTime,
		AudioTime:     audioNow,
		Expected:      len(expected),
		Matches:       pairs,
		Points:        points,
		State:         state,
	}
}

// ResetJudgments forgets which notes and samples were already matched, so
// a replayed passage can score again.
func (l *Loop) ResetJudgments() {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	l.retiredNotes = make(map[int]struct{})
	l.retiredSamples = make(map[uint64]struct{})
}

func (l *Loop) debugf(format string, args ...any) {
	if l.log != nil {
		l.log.Debugf(format, args...)
	}
}
