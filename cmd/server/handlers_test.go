//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const a4JSON = `{"tracks":[{"notes":[
	{"midi":69,"time":2.0,"duration":0.5,"velocity":1},
	{"midi":72,"time":3.0,"duration":0.5,"velocity":1}
]}]}`

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	svc, err := pitchmatch.NewService(
		pitchmatch.WithDBPath(filepath.Join(t.TempDir(), "server.sqlite3")),
		pitchmatch.WithLogger(logger.Discard()),
	)
	require.NoError(t, err)

	s := newServerWithLogger(svc, &ServerConfig{
		Port:       0,
		DBPath:     "test",
		SessionTTL: time.Minute,
	}, logger.Discard())
	t.Cleanup(func() {
		s.Close()
		svc.Close()
	})
	return s, s.setupRoutes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadTrack(t *testing.T, h http.Handler, fields map[string]string, score string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if score != "" {
		fw, err := mw.CreateFormFile("track", "score.json")
		require.NoError(t, err)
		_, err = fw.Write([]byte(score))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func addA4Track(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := uploadTrack(t, h, map[string]string{"title": "A4", "artist": "Tuner"}, a4JSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AddTrackResponse](t, rec).Track.ID
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/api/health/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	m := decode[MetricsResponse](t, rec)
	assert.Equal(t, 0, m.TrackCount)
	assert.Equal(t, 0, m.ActiveSessions)
}

func TestTrackLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	rec := uploadTrack(t, h, map[string]string{
		"title":       "A4",
		"artist":      "Tuner",
		"youtube_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}, a4JSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[AddTrackResponse](t, rec)
	require.NotNil(t, added.Track)
	assert.Equal(t, "dQw4w9WgXcQ", added.Track.YouTubeID)
	assert.Equal(t, 2, added.Track.NoteCount)
	id := added.Track.ID

	rec = do(t, h, http.MethodGet, "/api/tracks", nil)
	assert.Equal(t, 1, decode[ListTracksResponse](t, rec).Count)

	rec = do(t, h, http.MethodGet, "/api/tracks/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A4", decode[pitchmatch.Track](t, rec).Title)

	rec = do(t, h, http.MethodGet, "/api/tracks/"+id+"/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[NotesResponse](t, rec)
	require.Len(t, notes.Notes, 2)
	assert.Equal(t, "A4", notes.Notes[0].Name)
	assert.Equal(t, "C5", notes.Notes[1].Name)
	assert.InDelta(t, 2.5, notes.Notes[0].EndTime, 1e-9)

	rec = do(t, h, http.MethodDelete, "/api/tracks/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/tracks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/tracks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddTrackRejectsBadUploads(t *testing.T) {
	_, h := newTestServer(t)

	tests := []struct {
		name   string
		fields map[string]string
		score  string
	}{
		{"missing title", map[string]string{"artist": "x"}, a4JSON},
		{"missing file", map[string]string{"title": "x"}, ""},
		{"bad youtube id", map[string]string{"title": "x", "youtube_id": "short"}, a4JSON},
		{"malformed youtube id", map[string]string{"title": "x", "youtube_id": "!!!!!!!!!!!"}, a4JSON},
		{"non-youtube url", map[string]string{"title": "x", "youtube_url": "https://example.com/v"}, a4JSON},
		{"unparseable score", map[string]string{"title": "x"}, "not a score"},
		{"no notes", map[string]string{"title": "x"}, `{"tracks":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := uploadTrack(t, h, tt.fields, tt.score)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, http.StatusBadRequest, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func getSession(t *testing.T, h http.Handler, id string) pitchmatch.SessionState {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[pitchmatch.SessionState](t, rec)
}

func TestSessionFlow(t *testing.T) {
	s, h := newTestServer(t)
	trackID := addA4Track(t, h)

	rec := do(t, h, http.MethodPost, "/api/sessions", CreateSessionRequest{TrackID: trackID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := decode[pitchmatch.SessionState](t, rec)
	assert.Equal(t, trackID, snap.TrackID)
	assert.Equal(t, 2, snap.TotalNotes)
	assert.False(t, snap.Running)
	id := snap.ID

	// Playing heartbeat: reference at 2.0s, audio clock 8s ahead.
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/clock", `{"reference_time":2.0,"audio_time":10.0,"playing":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.True(t, getSession(t, h, id).Running)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/detections", `{"frequency":440,"confidence":0.5,"audio_time":10.0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[DetectionResponse](t, rec).Accepted)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/detections", `{"frequency":440,"confidence":0.95,"audio_time":10.0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	det := decode[DetectionResponse](t, rec)
	assert.True(t, det.Accepted)
	assert.InDelta(t, 69.0, det.Pitch, 1e-9)

	ls, ok := s.sessions.Get(id)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return ls.session.State().Score == 10
	}, 2*time.Second, 10*time.Millisecond)

	snap = getSession(t, h, id)
	assert.Equal(t, 1, snap.Matched)
	assert.Equal(t, "A4", snap.DetectedNote)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/stop", nil)
	assert.False(t, decode[pitchmatch.SessionState](t, rec).Running)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/start", nil)
	assert.True(t, decode[pitchmatch.SessionState](t, rec).Running)

	rec = do(t, h, http.MethodGet, "/api/health/metrics", nil)
	assert.Equal(t, 1, decode[MetricsResponse](t, rec).ActiveSessions)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPausedHeartbeatStopsScoring(t *testing.T) {
	_, h := newTestServer(t)
	trackID := addA4Track(t, h)

	rec := do(t, h, http.MethodPost, "/api/sessions", CreateSessionRequest{TrackID: trackID})
	id := decode[pitchmatch.SessionState](t, rec).ID

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/start", nil)
	require.True(t, decode[pitchmatch.SessionState](t, rec).Running)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/clock", `{"reference_time":2.0,"playing":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/detections", `{"frequency":440,"confidence":0.95,"audio_time":2.0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[DetectionResponse](t, rec).Accepted)

	time.Sleep(200 * time.Millisecond)

	snap := getSession(t, h, id)
	assert.False(t, snap.Running)
	assert.Equal(t, 0, snap.Score)
	assert.Nil(t, snap.DetectedPitch)
	assert.Empty(t, snap.DetectedNote)

	// Resuming restarts evaluation.
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/clock", `{"reference_time":2.0,"playing":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, getSession(t, h, id).Running)
}

func TestClockWithoutAudioTimeFollowsReference(t *testing.T) {
	s, h := newTestServer(t)
	trackID := addA4Track(t, h)

	rec := do(t, h, http.MethodPost, "/api/sessions", CreateSessionRequest{TrackID: trackID})
	id := decode[pitchmatch.SessionState](t, rec).ID

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/clock", `{"reference_time":1.5}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	ls, ok := s.sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, 1.5, ls.audio.CurrentTime())
}

func TestSessionRequestValidation(t *testing.T) {
	_, h := newTestServer(t)
	trackID := addA4Track(t, h)

	rec := do(t, h, http.MethodPost, "/api/sessions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "TrackID")

	rec = do(t, h, http.MethodPost, "/api/sessions", `{"track_id":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sessions", CreateSessionRequest{TrackID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sessions", CreateSessionRequest{TrackID: trackID})
	id := decode[pitchmatch.SessionState](t, rec).ID

	bad := []string{
		`{"audio_time":1}`,
		`{"reference_time":-1}`,
		`not json`,
	}
	for _, body := range bad {
		rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/clock", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/detections", `{"frequency":440,"confidence":1.5,"audio_time":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/detections", `{"frequency":440,"confidence":0.95}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSessionAndRoute(t *testing.T) {
	_, h := newTestServer(t)

	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/events"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := do(t, h, http.MethodPost, "/api/sessions/nope/clock", `{"reference_time":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPut, "/api/tracks", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/tracks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type sseEvent struct {
	id   string
	name string
	data string
}

func readEvent(t *testing.T, sc *bufio.Scanner) sseEvent {
	t.Helper()
	var evt sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if evt.name != "" {
				return evt
			}
		case strings.HasPrefix(line, "id: "):
			evt.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			evt.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			evt.data = strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return evt
}

func TestSessionEventStream(t *testing.T) {
	s, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	trackID := addA4Track(t, h)
	rec := do(t, h, http.MethodPost, "/api/sessions", CreateSessionRequest{TrackID: trackID})
	id := decode[pitchmatch.SessionState](t, rec).ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	first := readEvent(t, sc)
	assert.Equal(t, "state", first.name)
	var snap pitchmatch.SessionState
	require.NoError(t, json.Unmarshal([]byte(first.data), &snap))
	assert.Equal(t, id, snap.ID)

	ls, ok := s.sessions.Get(id)
	require.True(t, ok)
	ls.reference.Update(2.0, false)
	ls.audio.Update(2.0, false)
	require.True(t, ls.session.PushDetection(440, 0.95, 2.0))
	ls.session.Tick()

	got := map[string]pitchmatch.Event{}
	for len(got) < 2 {
		raw := readEvent(t, sc)
		assert.NotEmpty(t, raw.id)
		var evt pitchmatch.Event
		require.NoError(t, json.Unmarshal([]byte(raw.data), &evt))
		assert.Equal(t, raw.name, evt.Type)
		got[evt.Type] = evt
	}

	require.NotNil(t, got[pitchmatch.EventMatch].Match)
	assert.Equal(t, "A4", got[pitchmatch.EventMatch].Match.NoteName)
	require.NotNil(t, got[pitchmatch.EventScore].Score)
	assert.Equal(t, 10, got[pitchmatch.EventScore].Score.Score)
}
