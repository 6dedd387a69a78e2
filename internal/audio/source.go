package audio

import (
	"io"
)

// Clock reports a position in seconds.
type Clock interface {
	CurrentTime() float64
}

// WavSource serves frames out of decoded audio as if it were a live input:
// the frame returned is the audio that ends at the clock's current time.
type WavSource struct {
	samples []float64
	rate    int
	clock   Clock
	start   float64
}

func NewWavSource(samples []float64, sampleRate int, clock Clock) *WavSource {
	return &WavSource{samples: samples, rate: sampleRate, clock: clock}
}

// StartAt sets the clock time at which the first sample plays.
func (w *WavSource) StartAt(t float64) *WavSource {
	w.start = t
	return w
}

func (w *WavSource) SampleRate() int {
	return w.rate
}

// Duration returns the length of the audio in seconds.
func (w *WavSource) Duration() float64 {
	if w.rate == 0 {
		return 0
	}
	return float64(len(w.samples)) / float64(w.rate)
}

// ReadFrame copies the len(dst) samples preceding the current clock time
// into dst. Positions before the start read as silence; once the clock
// passes the end of the audio it returns io.EOF.
func (w *WavSource) ReadFrame(dst []float64) (float64, error) {
	t := w.clock.CurrentTime()
	end := int((t - w.start) * float64(w.rate))
	if end > len(w.samples) {
		return t, io.EOF
	}

	start := end - len(dst)
	for i := range dst {
		j := start + i
		if j < 0 || j >= end {
			dst[i] = 0
			continue
		}
		dst[i] = w.samples[j]
	}
	return t, nil
}
