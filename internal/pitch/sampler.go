package pitch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/model"
)

// DefaultSampleInterval is how often the sampler polls the audio source.
const DefaultSampleInterval = 100 * time.Millisecond

// ErrDevice marks failures of the audio input.
var ErrDevice = errors.New("audio device error")

// FrameSource supplies the most recent audio. ReadFrame fills dst with the
// latest len(dst) samples and returns the audio-clock time of the last one.
type FrameSource interface {
	ReadFrame(dst []float64) (audioTime float64, err error)
	SampleRate() int
}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Reading is the raw outcome of one sampling step.
type Reading struct {
	Frequency float64
	Clarity   float64
	AudioTime float64
	Accepted  bool
	Pitch     float64
}

// Sampler periodically detects the pitch of the source and hands accepted
// samples to emit. A failing source is reported once; afterwards the
// sampler keeps running and produces nothing until the source recovers.
type Sampler struct {
	src      FrameSource
	det      *Detector
	emit     func(model.PitchSample)
	interval time.Duration
	log      Logger

	mu      sync.Mutex
	frame   []float64
	last    Reading
	failed  bool
	lastErr error

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewSampler(src FrameSource, emit func(model.PitchSample), interval time.Duration, log Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		src:      src,
		det:      NewDetector(src.SampleRate()),
		emit:     emit,
		interval: interval,
		log:      log,
		frame:    make([]float64, DefaultFrameSize),
	}
}

// SampleOnce performs one sampling step.
func (s *Sampler) SampleOnce() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	audioTime, err := s.src.ReadFrame(s.frame)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrDevice, err)
		if !s.failed {
			s.failed = true
			if s.log != nil {
				s.log.Warnf("pitch sampler: %v; no further samples until the source recovers", err)
			}
		}
		s.lastErr = wrapped
		s.last = Reading{}
		return Reading{}, wrapped
	}
	if s.failed && s.log != nil {
		s.log.Debugf("pitch sampler: source recovered")
	}
	s.failed = false

	freq, clarity := s.det.FindPitch(s.frame)
	r := Reading{Frequency: freq, Clarity: clarity, AudioTime: audioTime}
	if smp, ok := judge.SampleFromDetection(freq, clarity, audioTime); ok {
		r.Accepted = true
		r.Pitch = smp.Pitch
		if s.emit != nil {
			s.emit(smp)
		}
	}
	s.last = r
	return r, nil
}

// Last returns the most recent reading.
func (s *Sampler) Last() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Err returns the last source error, nil if the source is healthy.
func (s *Sampler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failed {
		return nil
	}
	return s.lastErr
}

func (s *Sampler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

// Stop halts sampling and clears the last reading.
func (s *Sampler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.runMu.Unlock()
	<-done

	s.mu.Lock()
	s.last = Reading{}
	s.mu.Unlock()
}

func (s *Sampler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

func (s *Sampler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.SampleOnce()
		}
	}
}
