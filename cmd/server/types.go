//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
)

const (
	// MaxTrackUploadBytes bounds multipart track uploads.
	MaxTrackUploadBytes = 10 << 20

	maxJSONBodyBytes = 64 << 10
)

var validate = validator.New()

// AddTrackForm holds the non-file fields of POST /api/tracks
type AddTrackForm struct {
	Title      string `validate:"required,max=200"`
	Artist     string `validate:"max=200"`
	YouTubeID  string `validate:"omitempty,len=11"`
	YouTubeURL string `validate:"omitempty,url"`
}

// AddTrackResponse is the response for a successful upload
type AddTrackResponse struct {
	Message string            `json:"message"`
	Track   *pitchmatch.Track `json:"track"`
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []pitchmatch.Track `json:"tracks"`
	Count  int                `json:"count"`
}

// NoteDTO represents a note in API responses
type NoteDTO struct {
	ID        int     `json:"id"`
	Pitch     int     `json:"pitch"`
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Velocity  float64 `json:"velocity"`
}

// NotesResponse is the response for GET /api/tracks/{id}/notes
type NotesResponse struct {
	TrackID string    `json:"track_id"`
	Notes   []NoteDTO `json:"notes"`
	Count   int       `json:"count"`
}

// DeleteResponse is the response for DELETE endpoints
type DeleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// CreateSessionRequest is the request body for POST /api/sessions
type CreateSessionRequest struct {
	TrackID string `json:"track_id" validate:"required"`
}

// ClockUpdateRequest is a playback heartbeat. AudioTime is the sampler's
// clock; when omitted the audio clock follows the reference clock.
type ClockUpdateRequest struct {
	ReferenceTime *float64 `json:"reference_time" validate:"required,gte=0"`
	AudioTime     *float64 `json:"audio_time" validate:"omitempty,gte=0"`
	Playing       bool     `json:"playing"`
}

// DetectionRequest is one pitch detector result
type DetectionRequest struct {
	Frequency  float64  `json:"frequency" validate:"gte=0"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	AudioTime  *float64 `json:"audio_time" validate:"required,gte=0"`
}

// DetectionResponse reports whether a detection entered the buffer
type DetectionResponse struct {
	Accepted bool    `json:"accepted"`
	Pitch    float64 `json:"pitch,omitempty"`
}

// MetricsResponse provides server health and catalog metrics
type MetricsResponse struct {
	Status         string `json:"status"`
	DatabasePath   string `json:"database_path"`
	TrackCount     int    `json:"track_count"`
	ActiveSessions int    `json:"active_sessions"`
	Uptime         string `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// validationMessage turns validator output into a one-line message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}
