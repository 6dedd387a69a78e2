package judge

import (
	"math"

	"github.com/himanishpuri/PitchMatch/internal/model"
	"golang.org/x/exp/constraints"
)

const (
	DefaultPitchToleranceSemitones = 0.5
	DefaultTimingToleranceMs       = 200.0

	// MinConfidence is the detector clarity a reading must exceed to be kept.
	MinConfidence = 0.9
)

// Tolerances bounds how far a sample may be from an expected note.
type Tolerances struct {
	PitchSemitones float64
	TimingMs       float64
}

// DefaultTolerances returns 0.5 semitones and 200 ms.
func DefaultTolerances() Tolerances {
	return Tolerances{
		PitchSemitones: DefaultPitchToleranceSemitones,
		TimingMs:       DefaultTimingToleranceMs,
	}
}

func absDiff[T constraints.Integer | constraints.Float](a, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}

// Match pairs expected notes with detected samples, greedy first-fit:
// notes in order, each taking the oldest unused sample that fits. Sample
// offsets are measured from audioNow and note offsets from refTime, so the
// two clocks never need a common origin.
func Match(expected []model.Note, detected []model.PitchSample, refTime, audioNow float64, tol Tolerances) []model.Pair {
	if len(expected) == 0 || len(detected) == 0 {
		return nil
	}

	used := make([]bool, len(detected))
	var pairs []model.Pair

	for _, note := range expected {
		noteOffsetMs := (note.StartTime - refTime) * 1000
		for i, sample := range detected {
			if used[i] {
				continue
			}
			if absDiff(float64(note.Pitch), sample.Pitch) > tol.PitchSemitones {
				continue
			}
			sampleOffsetMs := (sample.Timestamp - audioNow) * 1000
			if absDiff(sampleOffsetMs, noteOffsetMs) > tol.TimingMs {
				continue
			}
			used[i] = true
			pairs = append(pairs, model.Pair{Note: note, Sample: sample})
			break
		}
	}
	return pairs
}

// FrequencyToPitch converts a frequency in Hz to a fractional MIDI note
// number, A4 = 440 Hz = 69.
func FrequencyToPitch(freq float64) float64 {
	return 69 + 12*math.Log2(freq/440)
}

// SampleFromDetection applies the confidence threshold to a detector
// reading and converts it to a pitch sample. The second result is false
// when the reading is rejected.
func SampleFromDetection(freq, confidence, audioTime float64) (model.PitchSample, bool) {
	if !(confidence > MinConfidence) || !(freq > 0) {
		return model.PitchSample{}, false
	}
	return model.PitchSample{
		Pitch:     FrequencyToPitch(freq),
		Timestamp: audioTime,
	}, true
}
