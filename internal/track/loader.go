package track

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/himanishpuri/PitchMatch/internal/model"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrInvalidTrack is wrapped by every ParseError.
var ErrInvalidTrack = errors.New("invalid track")

// ParseError reports a score that could not be loaded.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("parse track: %v", e.Err)
	}
	return fmt.Sprintf("parse %s track: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidTrack, e.Err}
}

const (
	FormatMIDI = "midi"
	FormatJSON = "json"
)

var validate = validator.New()

// Load parses a Standard MIDI File or a JSON note track. The format is
// detected from the content.
func Load(data []byte) (model.Score, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case bytes.HasPrefix(data, []byte("MThd")):
		return LoadSMF(data)
	case len(trimmed) > 0 && trimmed[0] == '{':
		return LoadJSON(data)
	default:
		return nil, &ParseError{Err: errors.New("unrecognized format")}
	}
}

// LoadFile reads and parses a track file.
func LoadFile(path string) (model.Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading track file: %w", err)
	}
	return Load(data)
}

// FromNotes sorts notes by start time, stable for equal starts, and
// numbers them.
func FromNotes(notes []model.Note) model.Score {
	score := make(model.Score, len(notes))
	copy(score, notes)
	sort.SliceStable(score, func(i, j int) bool {
		return score[i].StartTime < score[j].StartTime
	})
	for i := range score {
		score[i].ID = i
	}
	return score
}

type noteKey struct {
	channel uint8
	key     uint8
}

type openNote struct {
	start    float64
	velocity uint8
}

// LoadSMF parses a Standard MIDI File. Note-on with velocity zero counts
// as note-off; notes still sounding at the end of their track end there.
func LoadSMF(data []byte) (score model.Score, err error) {
	// the smf reader can panic on malformed input
	defer func() {
		if r := recover(); r != nil {
			score = nil
			err = &ParseError{Format: FormatMIDI, Err: fmt.Errorf("%v", r)}
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Format: FormatMIDI, Err: err}
	}

	var notes []model.Note
	for _, events := range s.Tracks {
		open := make(map[noteKey][]openNote)
		var absTicks int64
		var trackEnd float64

		for _, event := range events {
			absTicks += int64(event.Delta)
			absTime := float64(s.TimeAt(absTicks)) / 1e6
			trackEnd = absTime

			var channel, key, velocity uint8
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				k := noteKey{channel, key}
				open[k] = append(open[k], openNote{start: absTime, velocity: velocity})
			case event.Message.GetNoteOn(&channel, &key, &velocity),
				event.Message.GetNoteOff(&channel, &key, &velocity):
				k := noteKey{channel, key}
				stack := open[k]
				if len(stack) == 0 {
					continue
				}
				on := stack[0]
				open[k] = stack[1:]
				notes = append(notes, model.Note{
					Pitch:     int(key),
					StartTime: on.start,
					EndTime:   absTime,
					Velocity:  float64(on.velocity) / 127,
				})
			}
		}

		for k, stack := range open {
			for _, on := range stack {
				notes = append(notes, model.Note{
					Pitch:     int(k.key),
					StartTime: on.start,
					EndTime:   trackEnd,
					Velocity:  float64(on.velocity) / 127,
				})
			}
		}
	}

	if len(notes) == 0 {
		return nil, &ParseError{Format: FormatMIDI, Err: errors.New("no notes")}
	}
	return FromNotes(notes), nil
}

// jsonTrack is the note layout exported by Tone.js' MIDI converter.
type jsonTrack struct {
	Tracks []struct {
		Name  string     `json:"name"`
		Notes []jsonNote `json:"notes" validate:"dive"`
	} `json:"tracks" validate:"dive"`
}

type jsonNote struct {
	Midi     int     `json:"midi" validate:"gte=0,lte=127"`
	Time     float64 `json:"time" validate:"gte=0"`
	Duration float64 `json:"duration" validate:"gte=0"`
	Velocity float64 `json:"velocity" validate:"gte=0,lte=1"`
	Name     string  `json:"name,omitempty"`
}

// LoadJSON parses {"tracks":[{"notes":[{"midi","time","duration","velocity"}]}]}.
func LoadJSON(data []byte) (model.Score, error) {
	var doc jsonTrack
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Format: FormatJSON, Err: err}
	}
	if err := validate.Struct(doc); err != nil {
		return nil, &ParseError{Format: FormatJSON, Err: err}
	}

	var notes []model.Note
	for _, tr := range doc.Tracks {
		for _, n := range tr.Notes {
			notes = append(notes, model.Note{
				Pitch:     n.Midi,
				StartTime: n.Time,
				EndTime:   n.Time + n.Duration,
				Velocity:  n.Velocity,
			})
		}
	}
	if len(notes) == 0 {
		return nil, &ParseError{Format: FormatJSON, Err: errors.New("no notes")}
	}
	return FromNotes(notes), nil
}

// MarshalJSON encodes a score in the same layout LoadJSON reads.
func MarshalJSON(score model.Score) ([]byte, error) {
	notes := make([]jsonNote, len(score))
	for i, n := range score {
		notes[i] = jsonNote{
			Midi:     n.Pitch,
			Time:     n.StartTime,
			Duration: n.EndTime - n.StartTime,
			Velocity: n.Velocity,
		}
	}
	doc := map[string]any{
		"tracks": []map[string]any{{"notes": notes}},
	}
	return json.Marshal(doc)
}
