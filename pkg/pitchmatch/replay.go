package pitchmatch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/PitchMatch/internal/audio"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/internal/playback"
)

// Replay plays a recorded performance against score on simulated clocks.
// Both clocks start at the beginning of the recording (the audio clock at
// the WithAudioOffset value) and advance together; the sampler runs at the
// WithSampleInterval period (100ms by default) and the game loop at its tick interval, sampling first when both
// are due. Feedback expiry follows simulated time.
func Replay(ctx context.Context, score Score, samples []float64, sampleRate int, opts ...SessionOption) (*ReplayResult, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ref := playback.NewManualClock(0)
	audioClock := playback.NewManualClock(cfg.audioOffset)
	epoch := time.Unix(0, 0).UTC()
	simNow := func() time.Time {
		return epoch.Add(time.Duration(ref.CurrentTime() * float64(time.Second)))
	}

	collected := &matchCollector{}
	var sink Sink = collected
	if cfg.sink != nil {
		sink = MultiSink{cfg.sink, collected}
	}

	sessOpts := append(append([]SessionOption{}, opts...), WithSink(sink), WithNow(simNow))
	sess, err := NewSession(score, ref, audioClock, sessOpts...)
	if err != nil {
		return nil, err
	}

	src := audio.NewWavSource(samples, sampleRate, audioClock).StartAt(cfg.audioOffset)
	taken := 0
	sampler := pitch.NewSampler(src, func(p PitchSample) {
		sess.PushSample(p.Pitch, p.Timestamp)
		taken++
	}, sess.SampleInterval(), sess.log)

	tick := cfg.tickInterval
	if tick <= 0 {
		tick = sess.loop.Config().Interval
	}
	sampleEvery := sess.SampleInterval()
	end := time.Duration(math.Max(sess.score.Duration(), src.Duration())*float64(time.Second)) + tick

	sess.log.Infof("🎬 Replaying %.1fs of audio against %d notes", src.Duration(), len(sess.score))

	var nextSample, nextTick time.Duration
	ticks := 0
	for nextTick <= end {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		at := min(nextSample, nextTick)
		ref.Set(at.Seconds())
		audioClock.Set(cfg.audioOffset + at.Seconds())

		if nextSample <= nextTick {
			if at.Seconds() < src.Duration() {
				sampler.SampleOnce()
			}
			nextSample += sampleEvery
			continue
		}

		sess.Tick()
		ticks++
		nextTick += tick
	}

	res := &ReplayResult{
		Score:    sess.State().Score,
		Matches:  collected.pairs,
		Samples:  taken,
		Ticks:    ticks,
		Duration: end.Seconds(),
	}
	sess.log.Infof("✅ Replay finished: %d/%d notes matched, score %d", len(res.Matches), len(sess.score), res.Score)
	return res, nil
}

// matchCollector records matches. Replay ticks synchronously, so it needs
// no locking.
type matchCollector struct {
	pairs []Pair
}

func (c *matchCollector) NoteMatched(_ string, p Pair) {
	c.pairs = append(c.pairs, p)
}

func (c *matchCollector) ScoreUpdated(string, State) {}
