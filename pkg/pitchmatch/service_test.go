package pitchmatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/PitchMatch/internal/track"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scaleJSON = `{"tracks":[{"notes":[
	{"midi":60,"time":0,"duration":0.5,"velocity":0.8},
	{"midi":62,"time":0.5,"duration":0.5,"velocity":0.8},
	{"midi":64,"time":1.0,"duration":1.0,"velocity":0.8}
]}]}`

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(
		WithDBPath(filepath.Join(t.TempDir(), "test.sqlite3")),
		WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestServiceImportAndLoadScore(t *testing.T) {
	svc := newTestService(t)

	id, err := svc.ImportTrack(context.Background(), []byte(scaleJSON), "Scale", "Tester", "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	tr, err := svc.GetTrackByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Scale", tr.Title)
	assert.Equal(t, "dQw4w9WgXcQ", tr.YouTubeID)
	assert.Equal(t, 2000, tr.DurationMs)
	assert.Equal(t, 3, tr.NoteCount)

	score, err := svc.LoadScore(id)
	require.NoError(t, err)
	require.Len(t, score, 3)
	assert.Equal(t, []int{60, 62, 64}, []int{score[0].Pitch, score[1].Pitch, score[2].Pitch})
	assert.True(t, score.Sorted())
}

func TestServiceAddTrackFromFile(t *testing.T) {
	svc := newTestService(t)
	path := filepath.Join(t.TempDir(), "scale.json")
	require.NoError(t, os.WriteFile(path, []byte(scaleJSON), 0o644))

	id, err := svc.AddTrack(context.Background(), path, "Scale", "Tester", "")
	require.NoError(t, err)

	again, err := svc.AddTrack(context.Background(), path, "Scale", "Tester", "")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	tracks, err := svc.ListTracks()
	require.NoError(t, err)
	assert.Len(t, tracks, 1)

	_, err = svc.AddTrack(context.Background(), filepath.Join(t.TempDir(), "missing.mid"), "X", "Y", "")
	assert.Error(t, err)
}

func TestServiceRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportTrack(ctx, []byte("not a score"), "Bad", "Tester", "")
	assert.ErrorIs(t, err, track.ErrInvalidTrack)

	_, err = svc.ImportTrack(ctx, []byte(scaleJSON), "", "Tester", "")
	assert.ErrorIs(t, err, ErrMissingTitle)

	_, err = svc.ImportTrack(ctx, []byte(scaleJSON), "Scale", "Tester", "nope")
	assert.ErrorIs(t, err, utils.ErrInvalidVideoRef)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.ImportTrack(cancelled, []byte(scaleJSON), "Scale", "Tester", "")
	assert.ErrorIs(t, err, context.Canceled)

	tracks, err := svc.ListTracks()
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestServiceDeleteTrack(t *testing.T) {
	svc := newTestService(t)
	id, err := svc.ImportTrack(context.Background(), []byte(scaleJSON), "Scale", "Tester", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTrack(id))

	_, err = svc.GetTrackByID(id)
	assert.ErrorIs(t, err, ErrTrackNotFound)
	_, err = svc.LoadScore(id)
	assert.ErrorIs(t, err, ErrTrackNotFound)
	assert.ErrorIs(t, svc.DeleteTrack(id), ErrTrackNotFound)
}
