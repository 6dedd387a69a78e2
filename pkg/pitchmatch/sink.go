package pitchmatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
)

// NopSink discards every notification.
type NopSink struct{}

func (NopSink) NoteMatched(string, Pair)   {}
func (NopSink) ScoreUpdated(string, State) {}

// LogSink writes matches to a logger.
type LogSink struct {
	Log Logger
}

func (l LogSink) NoteMatched(sessionID string, p Pair) {
	l.Log.Infof("🎯 [%s] %s at %.2fs matched (sung %.2f at %.2fs)",
		shortID(sessionID), pitch.PitchName(p.Note.Pitch), p.Note.StartTime, p.Sample.Pitch, p.Sample.Timestamp)
}

func (l LogSink) ScoreUpdated(sessionID string, st State) {
	l.Log.Debugf("[%s] score %d (%s)", shortID(sessionID), st.Score, st.Feedback)
}

// MultiSink fans notifications out in order.
type MultiSink []Sink

func (m MultiSink) NoteMatched(sessionID string, p Pair) {
	for _, s := range m {
		s.NoteMatched(sessionID, p)
	}
}

func (m MultiSink) ScoreUpdated(sessionID string, st State) {
	for _, s := range m {
		s.ScoreUpdated(sessionID, st)
	}
}

const (
	EventMatch = "match"
	EventScore = "score"

	topicPrefix = "pitchmatch.session."
)

// Topic is the pub/sub topic carrying a session's events.
func Topic(sessionID string) string {
	return topicPrefix + sessionID
}

// Event is the wire form of a sink notification. Seq grows across all
// sessions of one EventSink and orders events, since delivery order is not
// guaranteed.
type Event struct {
	Seq       uint64      `json:"seq"`
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Match     *MatchEvent `json:"match,omitempty"`
	Score     *ScoreEvent `json:"score,omitempty"`
}

type MatchEvent struct {
	NoteID        int     `json:"note_id"`
	Pitch         int     `json:"pitch"`
	NoteName      string  `json:"note_name"`
	StartTime     float64 `json:"start_time"`
	DetectedPitch float64 `json:"detected_pitch"`
	DetectedAt    float64 `json:"detected_at"`
}

type ScoreEvent struct {
	Score          int        `json:"score"`
	Feedback       string     `json:"feedback"`
	FeedbackExpiry *time.Time `json:"feedback_expiry,omitempty"`
}

// EventSink publishes notifications on an in-process bus so that any number
// of subscribers (SSE streams, tests) can follow a session.
type EventSink struct {
	pubSub *gochannel.GoChannel
	log    Logger
	seq    atomic.Uint64
}

func NewEventSink(log Logger) *EventSink {
	if log == nil {
		log = logger.GetLogger()
	}
	return &EventSink{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermillLogger{log: log},
		),
		log: log,
	}
}

func (e *EventSink) NoteMatched(sessionID string, p Pair) {
	e.publish(sessionID, Event{
		Type: EventMatch,
		Match: &MatchEvent{
			NoteID:        p.Note.ID,
			Pitch:         p.Note.Pitch,
			NoteName:      pitch.PitchName(p.Note.Pitch),
			StartTime:     p.Note.StartTime,
			DetectedPitch: p.Sample.Pitch,
			DetectedAt:    p.Sample.Timestamp,
		},
	})
}

func (e *EventSink) ScoreUpdated(sessionID string, st State) {
	evt := &ScoreEvent{Score: st.Score, Feedback: st.Feedback.String()}
	if !st.FeedbackExpiry.IsZero() {
		expiry := st.FeedbackExpiry
		evt.FeedbackExpiry = &expiry
	}
	e.publish(sessionID, Event{Type: EventScore, Score: evt})
}

func (e *EventSink) publish(sessionID string, evt Event) {
	evt.SessionID = sessionID
	evt.Seq = e.seq.Add(1)

	payload, err := json.Marshal(evt)
	if err != nil {
		e.log.Errorf("failed to encode %s event: %v", evt.Type, err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubSub.Publish(Topic(sessionID), msg); err != nil {
		e.log.Warnf("failed to publish %s event for session %s: %v", evt.Type, sessionID, err)
	}
}

// Subscribe streams the events of one session until ctx is done. Events
// published while nobody is subscribed are dropped.
func (e *EventSink) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	msgs, err := e.pubSub.Subscribe(ctx, Topic(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionID, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var evt Event
			err := json.Unmarshal(msg.Payload, &evt)
			msg.Ack()
			if err != nil {
				e.log.Warnf("dropping malformed event %s: %v", msg.UUID, err)
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (e *EventSink) Close() error {
	return e.pubSub.Close()
}

// watermillLogger routes the bus's own logging into ours. Its info output
// is chatty, so it goes to debug.
type watermillLogger struct {
	log    Logger
	fields watermill.LogFields
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Errorf("watermill: %s: %v %v", msg, err, w.fields.Add(fields))
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Debugf("watermill: %s %v", msg, w.fields.Add(fields))
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debugf("watermill: %s %v", msg, w.fields.Add(fields))
}

func (w watermillLogger) Trace(string, watermill.LogFields) {}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: w.log, fields: w.fields.Add(fields)}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
