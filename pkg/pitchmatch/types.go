package pitchmatch

import (
	"time"

	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/model"
)

type (
	Note        = model.Note
	Score       = model.Score
	PitchSample = model.PitchSample
	Pair        = model.Pair
	Feedback    = model.Feedback
	State       = judge.State
)

const (
	Neutral   = model.Neutral
	Correct   = model.Correct
	Incorrect = model.Incorrect
)

// Track is a catalog entry.
type Track struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	YouTubeID  string    `json:"youtube_id,omitempty"`
	DurationMs int       `json:"duration_ms"`
	NoteCount  int       `json:"note_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionState is a point-in-time view of a session, for display.
type SessionState struct {
	ID             string     `json:"id"`
	TrackID        string     `json:"track_id,omitempty"`
	Running        bool       `json:"running"`
	Score          int        `json:"score"`
	Feedback       string     `json:"feedback"`
	FeedbackExpiry *time.Time `json:"feedback_expiry,omitempty"`
	ReferenceTime  float64    `json:"reference_time"`
	AudioTime      float64    `json:"audio_time"`
	DetectedPitch  *float64   `json:"detected_pitch,omitempty"`
	DetectedNote   string     `json:"detected_note,omitempty"`
	Matched        int        `json:"matched"`
	TotalNotes     int        `json:"total_notes"`
}

// ReplayResult is the outcome of replaying a recorded performance.
type ReplayResult struct {
	Score    int     `json:"score"`
	Matches  []Pair  `json:"matches"`
	Samples  int     `json:"samples"`
	Ticks    int     `json:"ticks"`
	Duration float64 `json:"duration"`
}
