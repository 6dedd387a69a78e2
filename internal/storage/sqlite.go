//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/PitchMatch/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "pitchmatch.sqlite3"
const errDBClientNil = "db client is nil"

// ErrTrackNotFound is returned when a track id has no row.
var ErrTrackNotFound = errors.New("track not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"uniqueIndex:idx_track_unique,priority:1;index:idx_track_meta,priority:1" json:"title"`
	Artist     string `gorm:"uniqueIndex:idx_track_unique,priority:2;index:idx_track_meta,priority:2" json:"artist"`
	YouTubeID  string `gorm:"index:idx_youtube_id" json:"youtube_id"`
	DurationMs int    `json:"duration_ms"`
	NoteCount  int    `json:"note_count"`
	CreatedAt  time.Time
}

type TrackNote struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	TrackID   string  `gorm:"type:varchar(36);index:idx_track_seq,priority:1" json:"track_id"`
	Seq       int     `gorm:"index:idx_track_seq,priority:2" json:"seq"`
	Pitch     int     `json:"pitch"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Velocity  float64 `json:"velocity"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("PITCHMATCH_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &TrackNote{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterTrack returns the id of the track with this title and artist,
// creating it if needed. An existing track without a YouTube id picks up
// the one given.
func (c *DBClient) RegisterTrack(title, artist, youtubeID string, durationMs int) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	var tr Track

	err := c.DB.Where("title = ? AND artist = ?", title, artist).First(&tr).Error
	if err == nil {
		updates := map[string]any{}
		if tr.YouTubeID == "" && youtubeID != "" {
			updates["YouTubeID"] = youtubeID
		}
		if durationMs > 0 && tr.DurationMs != durationMs {
			updates["DurationMs"] = durationMs
		}
		if len(updates) > 0 {
			if err := c.DB.Model(&tr).Updates(updates).Error; err != nil {
				return "", fmt.Errorf("updating track: %w", err)
			}
		}
		return tr.ID, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing track: %w", err)
	}

	tr = Track{ID: uuid.NewString(), Title: title, Artist: artist, YouTubeID: youtubeID, DurationMs: durationMs}
	err = c.DB.Create(&tr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if fetchErr := c.DB.Where("title = ? AND artist = ?", title, artist).First(&tr).Error; fetchErr != nil {
				return "", fmt.Errorf("fetching track after constraint violation: %w", fetchErr)
			}
			return tr.ID, nil
		}
		return "", fmt.Errorf("creating track: %w", err)
	}

	return tr.ID, nil
}

// StoreNotes replaces the notes of a track.
func (c *DBClient) StoreNotes(trackID string, score model.Score) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	rows := make([]TrackNote, len(score))
	for i, n := range score {
		rows[i] = TrackNote{
			TrackID:   trackID,
			Seq:       i,
			Pitch:     n.Pitch,
			StartTime: n.StartTime,
			EndTime:   n.EndTime,
			Velocity:  n.Velocity,
		}
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&TrackNote{}).Error; err != nil {
			return fmt.Errorf("clearing notes: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("batch insert notes: %w", err)
			}
		}
		if err := tx.Model(&Track{}).Where("id = ?", trackID).Update("note_count", len(rows)).Error; err != nil {
			return fmt.Errorf("updating note count: %w", err)
		}
		return nil
	})
}

// GetNotes returns a track's notes in score order.
func (c *DBClient) GetNotes(trackID string) (model.Score, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []TrackNote
	if err := c.DB.Where("track_id = ?", trackID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	score := make(model.Score, len(rows))
	for i, r := range rows {
		score[i] = model.Note{
			ID:        r.Seq,
			Pitch:     r.Pitch,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Velocity:  r.Velocity,
		}
	}
	return score, nil
}

func (c *DBClient) GetNoteCount(trackID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&TrackNote{}).Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return int(count), nil
}

func (c *DBClient) GetTrackByID(trackID string) (*Track, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var tr Track
	err := c.DB.Where("id = ?", trackID).First(&tr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &tr, nil
}

func (c *DBClient) ListTracks() ([]Track, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var tracks []Track
	if err := c.DB.Order("created_at").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	return tracks, nil
}

func (c *DBClient) DeleteTrackByID(trackID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&TrackNote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", trackID).Delete(&Track{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTrackNotFound
		}
		return nil
	})
}

// CountNotes returns the number of stored notes across all tracks.
func (c *DBClient) CountNotes() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&TrackNote{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return count, nil
}
