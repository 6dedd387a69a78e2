//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/internal/playback"
	"github.com/himanishpuri/PitchMatch/internal/track"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
	"github.com/himanishpuri/PitchMatch/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service   pitchmatch.Service
	config    *ServerConfig
	log       pitchmatch.Logger
	sessions  *sessionRegistry
	events    *pitchmatch.EventSink
	startedAt time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port             int
	DBPath           string
	AllowedOrigins   []string
	HeartbeatTimeout time.Duration
	SessionTTL       time.Duration
	SessionOptions   []pitchmatch.SessionOption
}

// NewServer creates a new server instance
func NewServer(service pitchmatch.Service, config *ServerConfig) *Server {
	return newServerWithLogger(service, config, logger.GetLogger())
}

func newServerWithLogger(service pitchmatch.Service, config *ServerConfig, log pitchmatch.Logger) *Server {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if config.HeartbeatTimeout <= 0 {
		config.HeartbeatTimeout = playback.DefaultHeartbeatTimeout
	}
	return &Server{
		service:   service,
		config:    config,
		log:       log,
		sessions:  newSessionRegistry(config.SessionTTL, log),
		events:    pitchmatch.NewEventSink(log),
		startedAt: time.Now(),
	}
}

// Close stops all sessions and ends event streams.
func (s *Server) Close() error {
	s.sessions.Close()
	return s.events.Close()
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps service errors onto status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, pitchmatch.ErrTrackNotFound):
		s.respondError(w, http.StatusNotFound, "Track not found")
	case errors.Is(err, track.ErrInvalidTrack), errors.Is(err, pitchmatch.ErrEmptyScore), errors.Is(err, pitchmatch.ErrMissingTitle),
		errors.Is(err, utils.ErrInvalidVideoRef):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Errorf("Failed to %s: %v", what, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to "+what)
	}
}

// decodeJSON reads and validates a JSON request body into dst.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "PitchMatch API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"metrics":       "GET /api/health/metrics",
			"tracks":        "GET /api/tracks",
			"addTrack":      "POST /api/tracks",
			"getTrack":      "GET /api/tracks/{id}",
			"trackNotes":    "GET /api/tracks/{id}/notes",
			"deleteTrack":   "DELETE /api/tracks/{id}",
			"createSession": "POST /api/sessions",
			"getSession":    "GET /api/sessions/{id}",
			"deleteSession": "DELETE /api/sessions/{id}",
			"startSession":  "POST /api/sessions/{id}/start",
			"stopSession":   "POST /api/sessions/{id}/stop",
			"clock":         "POST /api/sessions/{id}/clock",
			"detections":    "POST /api/sessions/{id}/detections",
			"events":        "GET /api/sessions/{id}/events",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		TrackCount:     len(tracks),
		ActiveSessions: s.sessions.Count(),
		Uptime:         time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.respondServiceError(w, err, "retrieve tracks")
		return
	}
	if tracks == nil {
		tracks = []pitchmatch.Track{}
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{Tracks: tracks, Count: len(tracks)})
}

// handleAddTrack handles POST /api/tracks (multipart: track file plus
// title, artist and youtube_id or youtube_url)
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxTrackUploadBytes)
	if err := r.ParseMultipartForm(MaxTrackUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	form := AddTrackForm{
		Title:      r.FormValue("title"),
		Artist:     r.FormValue("artist"),
		YouTubeID:  r.FormValue("youtube_id"),
		YouTubeURL: r.FormValue("youtube_url"),
	}
	if err := validate.Struct(form); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	youtubeID := form.YouTubeID
	if form.YouTubeURL != "" {
		id, err := utils.ExtractYouTubeID(form.YouTubeURL)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		youtubeID = id
	}

	file, header, err := r.FormFile("track")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Missing 'track' file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	s.log.Infof("Received track upload %s (%d bytes)", header.Filename, len(data))

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	trackID, err := s.service.ImportTrack(ctx, data, form.Title, form.Artist, youtubeID)
	if err != nil {
		s.respondServiceError(w, err, "add track")
		return
	}
	tr, err := s.service.GetTrackByID(trackID)
	if err != nil {
		s.respondServiceError(w, err, "read back track")
		return
	}

	s.respondJSON(w, http.StatusCreated, AddTrackResponse{
		Message: "Track added successfully",
		Track:   tr,
	})
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	tr, err := s.service.GetTrackByID(mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err, "retrieve track")
		return
	}
	s.respondJSON(w, http.StatusOK, tr)
}

// handleTrackNotes handles GET /api/tracks/{id}/notes
func (s *Server) handleTrackNotes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	score, err := s.service.LoadScore(id)
	if err != nil {
		s.respondServiceError(w, err, "load notes")
		return
	}

	notes := make([]NoteDTO, len(score))
	for i, n := range score {
		notes[i] = NoteDTO{
			ID:        n.ID,
			Pitch:     n.Pitch,
			Name:      pitch.PitchName(n.Pitch),
			StartTime: n.StartTime,
			EndTime:   n.EndTime,
			Velocity:  n.Velocity,
		}
	}
	s.respondJSON(w, http.StatusOK, NotesResponse{TrackID: id, Notes: notes, Count: len(notes)})
}

// handleDeleteTrack handles DELETE /api/tracks/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteTrack(id); err != nil {
		s.respondServiceError(w, err, "delete track")
		return
	}
	s.log.Infof("Deleted track ID=%s", id)
	s.respondJSON(w, http.StatusOK, DeleteResponse{Message: "Track deleted successfully", ID: id})
}

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	score, err := s.service.LoadScore(req.TrackID)
	if err != nil {
		s.respondServiceError(w, err, "load score")
		return
	}

	ls := &liveSession{
		reference: playback.NewRemoteClock(s.config.HeartbeatTimeout, nil),
		audio:     playback.NewRemoteClock(s.config.HeartbeatTimeout, nil),
	}
	opts := append(append([]pitchmatch.SessionOption{}, s.config.SessionOptions...),
		pitchmatch.WithTrackID(req.TrackID),
		pitchmatch.WithSink(pitchmatch.MultiSink{s.events, pitchmatch.LogSink{Log: s.log}}),
		pitchmatch.WithSessionLogger(s.log),
	)
	ls.session, err = pitchmatch.NewSession(score, ls.reference, ls.audio, opts...)
	if err != nil {
		s.respondServiceError(w, err, "create session")
		return
	}
	s.sessions.Add(ls)

	s.log.Infof("🎤 Session %s created for track %s (%d notes)", ls.session.ID(), req.TrackID, len(score))
	s.respondJSON(w, http.StatusCreated, ls.session.Snapshot())
}

// lookupSession resolves {id} or writes a 404.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	ls, ok := s.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "Session not found")
	}
	return ls, ok
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if ls, ok := s.lookupSession(w, r); ok {
		s.respondJSON(w, http.StatusOK, ls.session.Snapshot())
	}
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteResponse{Message: "Session closed", ID: id})
}

// handleStartSession handles POST /api/sessions/{id}/start
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if ls, ok := s.lookupSession(w, r); ok {
		ls.session.Start()
		s.respondJSON(w, http.StatusOK, ls.session.Snapshot())
	}
}

// handleStopSession handles POST /api/sessions/{id}/stop
func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if ls, ok := s.lookupSession(w, r); ok {
		ls.session.Stop()
		s.respondJSON(w, http.StatusOK, ls.session.Snapshot())
	}
}

// handleClock handles POST /api/sessions/{id}/clock
func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req ClockUpdateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ls.reference.Update(*req.ReferenceTime, req.Playing)
	audioTime := *req.ReferenceTime
	if req.AudioTime != nil {
		audioTime = *req.AudioTime
	}
	ls.audio.Update(audioTime, req.Playing)

	// The session follows the player: pausing stops evaluation and clears
	// the detected pitch.
	if req.Playing {
		ls.session.Start()
	} else {
		ls.session.Stop()
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDetection handles POST /api/sessions/{id}/detections
func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req DetectionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	// Detections arriving while the session is stopped are dropped.
	var resp DetectionResponse
	if ls.session.Running() {
		resp.Accepted = ls.session.PushDetection(req.Frequency, req.Confidence, *req.AudioTime)
	}
	if resp.Accepted {
		resp.Pitch = judge.FrequencyToPitch(req.Frequency)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleEvents handles GET /api/sessions/{id}/events as a Server-Sent
// Events stream. The first event is the current state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()
	events, err := s.events.Subscribe(ctx, ls.session.ID())
	if err != nil {
		s.respondServiceError(w, err, "subscribe to session")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, 0, "state", ls.session.Snapshot())
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, evt.Seq, evt.Type, evt)
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, id uint64, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if id > 0 {
		fmt.Fprintf(w, "id: %d\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
