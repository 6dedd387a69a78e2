package model

import "sort"

// Note is one expected note of a score. Times are in seconds on the
// reference (playback) clock.
type Note struct {
	ID        int     // index within the sorted score
	Pitch     int     // MIDI note number 0-127
	StartTime float64 // seconds
	EndTime   float64 // seconds
	Velocity  float64 // 0-1
}

// Score is a sequence of notes sorted ascending by StartTime.
type Score []Note

// Duration returns the latest note end time in seconds.
func (s Score) Duration() float64 {
	var d float64
	for _, n := range s {
		if n.EndTime > d {
			d = n.EndTime
		}
	}
	return d
}

// Sorted reports whether the notes are ordered by start time.
func (s Score) Sorted() bool {
	return sort.SliceIsSorted(s, func(i, j int) bool {
		return s[i].StartTime < s[j].StartTime
	})
}

// PitchSample is a single accepted pitch detection. Timestamp is on the
// audio clock, which is not necessarily aligned with the reference clock.
type PitchSample struct {
	Seq       uint64  // assigned by the sample buffer
	Pitch     float64 // fractional MIDI note number
	Timestamp float64 // seconds
}

// Pair is one accepted note/sample match.
type Pair struct {
	Note   Note
	Sample PitchSample
}

// Feedback is the transient visual judgment shown after a match.
type Feedback int

const (
	Neutral Feedback = iota
	Correct
	Incorrect
)

func (f Feedback) String() string {
	switch f {
	case Neutral:
		return "neutral"
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}
