package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/PitchMatch/internal/model"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_pitchmatch.sqlite3")

	t.Setenv("PITCHMATCH_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func testScore() model.Score {
	return model.Score{
		{ID: 0, Pitch: 60, StartTime: 0, EndTime: 0.5, Velocity: 0.8},
		{ID: 1, Pitch: 62, StartTime: 0.5, EndTime: 1, Velocity: 0.8},
		{ID: 2, Pitch: 64, StartTime: 1, EndTime: 2, Velocity: 1},
	}
}

// TestNewDBClient tests database initialization
func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client == nil {
		t.Fatal("Expected non-nil DB client")
	}
	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

// TestNewDBClientWithCustomPath tests database creation in a missing directory
func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

// TestRegisterTrack tests track registration
func TestRegisterTrack(t *testing.T) {
	client, _ := setupTestDB(t)

	trackID, err := client.RegisterTrack("Test Track", "Test Artist", "dQw4w9WgXcQ", 180000)
	if err != nil {
		t.Fatalf("Failed to register track: %v", err)
	}
	if trackID == "" {
		t.Fatal("Expected non-empty track ID")
	}

	tr, err := client.GetTrackByID(trackID)
	if err != nil {
		t.Fatalf("Failed to retrieve registered track: %v", err)
	}
	if tr.Title != "Test Track" {
		t.Errorf("Expected title 'Test Track', got '%s'", tr.Title)
	}
	if tr.Artist != "Test Artist" {
		t.Errorf("Expected artist 'Test Artist', got '%s'", tr.Artist)
	}
	if tr.YouTubeID != "dQw4w9WgXcQ" {
		t.Errorf("Expected YouTubeID 'dQw4w9WgXcQ', got '%s'", tr.YouTubeID)
	}
	if tr.DurationMs != 180000 {
		t.Errorf("Expected duration 180000, got %d", tr.DurationMs)
	}
}

// TestRegisterTrackIdempotent tests that registering the same track twice returns the same ID
func TestRegisterTrackIdempotent(t *testing.T) {
	client, _ := setupTestDB(t)

	id1, err := client.RegisterTrack("Duplicate Track", "Duplicate Artist", "yt1", 120000)
	if err != nil {
		t.Fatalf("Failed to register track first time: %v", err)
	}
	id2, err := client.RegisterTrack("Duplicate Track", "Duplicate Artist", "yt2", 120000)
	if err != nil {
		t.Fatalf("Failed to register track second time: %v", err)
	}

	if id1 != id2 {
		t.Errorf("Expected same track ID for duplicate registration, got %s and %s", id1, id2)
	}

	var count int64
	client.DB.Model(&Track{}).Where("title = ? AND artist = ?", "Duplicate Track", "Duplicate Artist").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 track in database, found %d", count)
	}

	tr, _ := client.GetTrackByID(id1)
	if tr.YouTubeID != "yt1" {
		t.Errorf("Expected existing YouTubeID to be kept, got '%s'", tr.YouTubeID)
	}
}

// TestRegisterTrackUpdatesYouTubeID tests that a missing YouTube ID gets filled in
func TestRegisterTrackUpdatesYouTubeID(t *testing.T) {
	client, _ := setupTestDB(t)

	id1, err := client.RegisterTrack("Update Test", "Update Artist", "", 150000)
	if err != nil {
		t.Fatalf("Failed to register track: %v", err)
	}
	id2, err := client.RegisterTrack("Update Test", "Update Artist", "newYouTubeID", 150000)
	if err != nil {
		t.Fatalf("Failed to register track with YouTube ID: %v", err)
	}
	if id1 != id2 {
		t.Errorf("Expected same track ID, got %s and %s", id1, id2)
	}

	tr, err := client.GetTrackByID(id1)
	if err != nil {
		t.Fatalf("Failed to get track: %v", err)
	}
	if tr.YouTubeID != "newYouTubeID" {
		t.Errorf("Expected YouTubeID to be updated to 'newYouTubeID', got '%s'", tr.YouTubeID)
	}
}

// TestStoreAndGetNotes tests that notes round-trip in order
func TestStoreAndGetNotes(t *testing.T) {
	client, _ := setupTestDB(t)

	trackID, _ := client.RegisterTrack("Scale", "Tester", "", 2000)
	if err := client.StoreNotes(trackID, testScore()); err != nil {
		t.Fatalf("Failed to store notes: %v", err)
	}

	notes, err := client.GetNotes(trackID)
	if err != nil {
		t.Fatalf("Failed to get notes: %v", err)
	}

	want := testScore()
	if len(notes) != len(want) {
		t.Fatalf("Expected %d notes, got %d", len(want), len(notes))
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("Note %d: expected %+v, got %+v", i, want[i], notes[i])
		}
	}

	tr, _ := client.GetTrackByID(trackID)
	if tr.NoteCount != len(want) {
		t.Errorf("Expected note count %d, got %d", len(want), tr.NoteCount)
	}
}

// TestStoreNotesReplaces tests that storing again replaces the previous notes
func TestStoreNotesReplaces(t *testing.T) {
	client, _ := setupTestDB(t)

	trackID, _ := client.RegisterTrack("Replace", "Tester", "", 2000)
	if err := client.StoreNotes(trackID, testScore()); err != nil {
		t.Fatalf("Failed to store notes: %v", err)
	}
	if err := client.StoreNotes(trackID, testScore()[:1]); err != nil {
		t.Fatalf("Failed to store notes again: %v", err)
	}

	count, err := client.GetNoteCount(trackID)
	if err != nil {
		t.Fatalf("Failed to count notes: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 note after replace, got %d", count)
	}
}

// TestStoreNotesLargeBatch tests batch insertion with a long score
func TestStoreNotesLargeBatch(t *testing.T) {
	client, _ := setupTestDB(t)

	trackID, _ := client.RegisterTrack("Long", "Batch Artist", "", 0)
	score := make(model.Score, 1500)
	for i := range score {
		score[i] = model.Note{ID: i, Pitch: 40 + i%40, StartTime: float64(i) * 0.1, EndTime: float64(i)*0.1 + 0.1, Velocity: 1}
	}

	if err := client.StoreNotes(trackID, score); err != nil {
		t.Fatalf("Failed to store large batch: %v", err)
	}

	total, err := client.CountNotes()
	if err != nil {
		t.Fatalf("Failed to count notes: %v", err)
	}
	if total != 1500 {
		t.Errorf("Expected 1500 notes, got %d", total)
	}
}

// TestDeleteTrackWithNotes tests that deleting a track removes its notes
func TestDeleteTrackWithNotes(t *testing.T) {
	client, _ := setupTestDB(t)

	trackID, err := client.RegisterTrack("To Delete", "Delete Artist", "", 1000)
	if err != nil {
		t.Fatalf("Failed to register track: %v", err)
	}
	if err := client.StoreNotes(trackID, testScore()); err != nil {
		t.Fatalf("Failed to store notes: %v", err)
	}

	if err := client.DeleteTrackByID(trackID); err != nil {
		t.Fatalf("Failed to delete track: %v", err)
	}

	if _, err := client.GetTrackByID(trackID); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound after delete, got %v", err)
	}
	count, _ := client.GetNoteCount(trackID)
	if count != 0 {
		t.Errorf("Expected notes to be deleted, found %d", count)
	}

	if err := client.DeleteTrackByID(trackID); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound deleting twice, got %v", err)
	}
}

// TestListTracks tests listing several tracks
func TestListTracks(t *testing.T) {
	client, _ := setupTestDB(t)

	ids := map[string]bool{}
	for _, title := range []string{"Track A", "Track B", "Track C"} {
		id, err := client.RegisterTrack(title, "Artist", "", 1000)
		if err != nil {
			t.Fatalf("Failed to register %s: %v", title, err)
		}
		ids[id] = true
	}

	tracks, err := client.ListTracks()
	if err != nil {
		t.Fatalf("Failed to list tracks: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("Expected 3 tracks, got %d", len(tracks))
	}
	for _, tr := range tracks {
		if !ids[tr.ID] {
			t.Errorf("Unexpected track ID %s", tr.ID)
		}
	}
}

// TestNilClient tests that a nil client returns errors instead of panicking
func TestNilClient(t *testing.T) {
	var client *DBClient

	if _, err := client.RegisterTrack("a", "b", "", 0); err == nil {
		t.Error("Expected error from nil client")
	}
	if err := client.StoreNotes("x", nil); err == nil {
		t.Error("Expected error from nil client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Expected nil error closing nil client, got %v", err)
	}
}
