package pitchmatch

import (
	"github.com/himanishpuri/PitchMatch/internal/storage"
)

// ErrTrackNotFound is returned for unknown track ids.
var ErrTrackNotFound = storage.ErrTrackNotFound

// storageAdapter adapts storage.DBClient to the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage opens (creating if needed) a SQLite catalog.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) RegisterTrack(title, artist, youtubeID string, durationMs int) (string, error) {
	return s.db.RegisterTrack(title, artist, youtubeID, durationMs)
}

func (s *storageAdapter) StoreNotes(trackID string, score Score) error {
	return s.db.StoreNotes(trackID, score)
}

func (s *storageAdapter) GetNotes(trackID string) (Score, error) {
	return s.db.GetNotes(trackID)
}

func (s *storageAdapter) GetNoteCount(trackID string) (int, error) {
	return s.db.GetNoteCount(trackID)
}

func (s *storageAdapter) GetTrackByID(trackID string) (*Track, error) {
	dbTrack, err := s.db.GetTrackByID(trackID)
	if err != nil {
		return nil, err
	}
	tr := toTrack(*dbTrack)
	return &tr, nil
}

func (s *storageAdapter) ListTracks() ([]Track, error) {
	dbTracks, err := s.db.ListTracks()
	if err != nil {
		return nil, err
	}

	tracks := make([]Track, len(dbTracks))
	for i, t := range dbTracks {
		tracks[i] = toTrack(t)
	}
	return tracks, nil
}

func (s *storageAdapter) DeleteTrackByID(trackID string) error {
	return s.db.DeleteTrackByID(trackID)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toTrack(t storage.Track) Track {
	return Track{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		YouTubeID:  t.YouTubeID,
		DurationMs: t.DurationMs,
		NoteCount:  t.NoteCount,
		CreatedAt:  t.CreatedAt,
	}
}
