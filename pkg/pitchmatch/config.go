package pitchmatch

import (
	"time"

	"github.com/himanishpuri/PitchMatch/internal/config"
	"github.com/himanishpuri/PitchMatch/internal/gameloop"
	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/internal/storage"
)

type Config struct {
	DBPath  string
	Logger  Logger
	Storage Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath: storage.DefaultDBFile,
	}
}

type sessionConfig struct {
	id              string
	trackID         string
	tickInterval    time.Duration
	sampleInterval  time.Duration
	noteToleranceMs float64
	tolerances      judge.Tolerances
	retention       float64
	feedbackHold    time.Duration
	sink            Sink
	log             Logger
	now             func() time.Time
	audioOffset     float64
}

// SessionOption configures a Session or a Replay.
type SessionOption func(*sessionConfig)

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) {
		c.id = id
	}
}

func WithTrackID(id string) SessionOption {
	return func(c *sessionConfig) {
		c.trackID = id
	}
}

func WithTickInterval(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.tickInterval = d
	}
}

// WithSampleInterval sets how often the pitch sampler feeding the session
// polls its audio source. Non-positive values keep the default.
func WithSampleInterval(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		if d > 0 {
			c.sampleInterval = d
		}
	}
}

// WithNoteTolerance sets how far, in milliseconds, a note start may be
// from the reference time and still be due.
func WithNoteTolerance(ms float64) SessionOption {
	return func(c *sessionConfig) {
		c.noteToleranceMs = ms
	}
}

// WithTimingTolerance sets the allowed timing error of a match in
// milliseconds.
func WithTimingTolerance(ms float64) SessionOption {
	return func(c *sessionConfig) {
		c.tolerances.TimingMs = ms
	}
}

func WithPitchTolerance(semitones float64) SessionOption {
	return func(c *sessionConfig) {
		c.tolerances.PitchSemitones = semitones
	}
}

// WithRetention sets how many seconds of samples the buffer keeps.
func WithRetention(seconds float64) SessionOption {
	return func(c *sessionConfig) {
		c.retention = seconds
	}
}

func WithFeedbackHold(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.feedbackHold = d
	}
}

func WithSink(sink Sink) SessionOption {
	return func(c *sessionConfig) {
		c.sink = sink
	}
}

func WithSessionLogger(log Logger) SessionOption {
	return func(c *sessionConfig) {
		c.log = log
	}
}

// WithNow replaces the wall clock used for feedback expiry.
func WithNow(now func() time.Time) SessionOption {
	return func(c *sessionConfig) {
		c.now = now
	}
}

// WithAudioOffset sets the audio clock reading at the moment the
// performance starts. Only Replay uses it; live sessions are handed their
// clocks.
func WithAudioOffset(seconds float64) SessionOption {
	return func(c *sessionConfig) {
		c.audioOffset = seconds
	}
}

// SessionOptionsFromConfig maps environment configuration onto session
// options.
func SessionOptionsFromConfig(cfg *config.Config) []SessionOption {
	return []SessionOption{
		WithTickInterval(cfg.TickInterval),
		WithSampleInterval(cfg.SampleInterval),
		WithNoteTolerance(cfg.NoteToleranceMs),
		WithTimingTolerance(cfg.TimingToleranceMs),
		WithPitchTolerance(cfg.PitchTolerance),
		WithRetention(cfg.RetentionSeconds),
		WithFeedbackHold(cfg.FeedbackHold),
	}
}

func defaultSessionConfig() *sessionConfig {
	return &sessionConfig{
		tickInterval:    gameloop.DefaultInterval,
		sampleInterval:  pitch.DefaultSampleInterval,
		noteToleranceMs: judge.DefaultNoteToleranceMs,
		tolerances:      judge.DefaultTolerances(),
		retention:       judge.DefaultRetention,
		feedbackHold:    judge.DefaultFeedbackHold,
		now:             time.Now,
	}
}
