package pitch

import (
	"fmt"
	"math"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchToFrequency converts a MIDI note number to Hz. The inverse is
// judge.FrequencyToPitch.
func PitchToFrequency(pitch float64) float64 {
	return 440 * math.Pow(2, (pitch-69)/12)
}

// PitchName returns the scientific pitch name of a MIDI note, e.g. 69 -> "A4".
func PitchName(pitch int) string {
	if pitch < 0 || pitch > 127 {
		return fmt.Sprintf("?%d", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], pitch/12-1)
}

// NearestName rounds a fractional pitch and names it.
func NearestName(pitch float64) string {
	return PitchName(int(math.Round(pitch)))
}
