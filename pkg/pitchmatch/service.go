package pitchmatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/himanishpuri/PitchMatch/internal/audio"
	"github.com/himanishpuri/PitchMatch/internal/track"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/utils"
)

// ErrMissingTitle is returned when a track is added without a title.
var ErrMissingTitle = errors.New("track title is required")

// pitchService is the default implementation of the Service interface.
type pitchService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &pitchService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// AddTrack loads a score file (Standard MIDI or JSON) into the catalog.
func (s *pitchService) AddTrack(ctx context.Context, path, title, artist, youtubeID string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read track file: %w", err)
	}
	return s.ImportTrack(ctx, data, title, artist, youtubeID)
}

// ImportTrack parses score bytes and stores them under title and artist.
// Importing the same title and artist again replaces the notes.
func (s *pitchService) ImportTrack(ctx context.Context, data []byte, title, artist, youtubeID string) (string, error) {
	if title == "" {
		return "", ErrMissingTitle
	}
	s.log.Infof("Importing track: %s by %s", title, artist)

	// 1. Parse the score
	score, err := track.Load(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse track: %w", err)
	}
	s.log.Infof("Parsed %d notes (%.1fs)", len(score), score.Duration())

	// 2. Resolve the video reference
	if youtubeID != "" {
		if youtubeID, err = utils.NormalizeVideoRef(youtubeID); err != nil {
			return "", err
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// 3. Register track in DB
	trackID, err := s.storage.RegisterTrack(title, artist, youtubeID, int(score.Duration()*1000))
	if err != nil {
		return "", fmt.Errorf("failed to register track: %w", err)
	}

	// 4. Store notes
	if err := s.storage.StoreNotes(trackID, score); err != nil {
		if n, countErr := s.storage.GetNoteCount(trackID); countErr == nil && n == 0 {
			s.storage.DeleteTrackByID(trackID) // Rollback
		}
		return "", fmt.Errorf("failed to store notes: %w", err)
	}

	s.log.Infof("Successfully added track ID=%s", trackID)
	return trackID, nil
}

// LoadScore returns the stored notes of a track, ready for a session.
func (s *pitchService) LoadScore(trackID string) (Score, error) {
	score, err := s.storage.GetNotes(trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	if len(score) == 0 {
		if _, err := s.storage.GetTrackByID(trackID); err != nil {
			return nil, err
		}
		return nil, ErrEmptyScore
	}
	return score, nil
}

func (s *pitchService) GetTrackByID(trackID string) (*Track, error) {
	return s.storage.GetTrackByID(trackID)
}

func (s *pitchService) ListTracks() ([]Track, error) {
	return s.storage.ListTracks()
}

// DeleteTrack removes a track and its notes.
func (s *pitchService) DeleteTrack(trackID string) error {
	return s.storage.DeleteTrackByID(trackID)
}

func (s *pitchService) Close() error {
	return s.storage.Close()
}

// LoadPerformance reads a recorded performance as mono samples. Files that
// are not WAV go through ffmpeg first.
func LoadPerformance(ctx context.Context, path, tempDir string) ([]float64, int, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return audio.LoadMono(ctx, path, tempDir)
}
