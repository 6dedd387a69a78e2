package pitchmatch

import (
	"context"
)

// Service manages the track catalog.
type Service interface {
	AddTrack(ctx context.Context, path, title, artist, youtubeID string) (string, error)
	ImportTrack(ctx context.Context, data []byte, title, artist, youtubeID string) (string, error)
	LoadScore(trackID string) (Score, error)
	GetTrackByID(trackID string) (*Track, error)
	ListTracks() ([]Track, error)
	DeleteTrack(trackID string) error
	Close() error
}

type Storage interface {
	RegisterTrack(title, artist, youtubeID string, durationMs int) (string, error)
	StoreNotes(trackID string, score Score) error
	GetNotes(trackID string) (Score, error)
	GetNoteCount(trackID string) (int, error)
	GetTrackByID(trackID string) (*Track, error)
	ListTracks() ([]Track, error)
	DeleteTrackByID(trackID string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Clock reports a playback position in seconds.
type Clock interface {
	CurrentTime() float64
}

// Sink receives one-way notifications from running sessions.
type Sink interface {
	NoteMatched(sessionID string, p Pair)
	ScoreUpdated(sessionID string, st State)
}
