package judge

import (
	"sync"

	"github.com/himanishpuri/PitchMatch/internal/model"
)

// DefaultRetention is how long, in seconds, a sample stays in the buffer.
const DefaultRetention = 2.0

// SampleBuffer holds recent pitch samples ordered by timestamp. Samples
// older than the retention horizon, measured from the newest timestamp
// ever appended, are evicted on every append.
type SampleBuffer struct {
	mu        sync.Mutex
	retention float64
	samples   []model.PitchSample
	latest    float64
	seen      bool
	nextSeq   uint64
}

// NewSampleBuffer creates a buffer. A non-positive retention falls back to
// DefaultRetention.
func NewSampleBuffer(retention float64) *SampleBuffer {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SampleBuffer{retention: retention, nextSeq: 1}
}

// Retention returns the retention horizon in seconds.
func (b *SampleBuffer) Retention() float64 {
	return b.retention
}

// Append stores a sample and returns it with its sequence number set.
func (b *SampleBuffer) Append(s model.PitchSample) model.PitchSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	s.Seq = b.nextSeq
	b.nextSeq++

	// Samples normally arrive in order, so scan from the tail.
	i := len(b.samples)
	for i > 0 && b.samples[i-1].Timestamp > s.Timestamp {
		i--
	}
	b.samples = append(b.samples, model.PitchSample{})
	copy(b.samples[i+1:], b.samples[i:])
	b.samples[i] = s

	if !b.seen || s.Timestamp > b.latest {
		b.latest = s.Timestamp
		b.seen = true
	}

	horizon := b.latest - b.retention
	drop := 0
	for drop < len(b.samples) && b.samples[drop].Timestamp < horizon {
		drop++
	}
	if drop > 0 {
		b.samples = append(b.samples[:0], b.samples[drop:]...)
	}

	return s
}

// Snapshot returns a copy of the buffered samples, oldest first.
func (b *SampleBuffer) Snapshot() []model.PitchSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.PitchSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Reset drops every sample. Sequence numbers keep increasing.
func (b *SampleBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
	b.latest = 0
	b.seen = false
}
