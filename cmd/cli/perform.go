//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/himanishpuri/PitchMatch/internal/audio"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/internal/playback"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
	"github.com/spf13/cobra"
)

var replayOffsetMs float64

func init() {
	replayCmd.Flags().Float64Var(&replayOffsetMs, "offset-ms", 0, "Audio clock reading when the recording starts, in milliseconds")

	rootCmd.AddCommand(replayCmd, playCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <track-id|score-file> <performance-audio>",
	Short: "Score a recorded performance offline",
	Long: `Replays a recording against a score on simulated clocks, sampling
and evaluating at the configured intervals. The result is deterministic.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		score, trackID, samples, rate := preparePerformance(ctx, args[0], args[1])

		fmt.Println("🎬 Replaying performance...")
		opts := append(pitchmatch.SessionOptionsFromConfig(cfg),
			pitchmatch.WithTrackID(trackID),
			pitchmatch.WithAudioOffset(replayOffsetMs/1000),
		)
		res, err := pitchmatch.Replay(ctx, score, samples, rate, opts...)
		if err != nil {
			fail("Replay failed: %v", err)
		}

		fmt.Printf("\n✅ Replay complete: %d/%d notes hit\n\n", len(res.Matches), len(score))
		for _, m := range res.Matches {
			fmt.Printf("   🎯 %-4s at %6.2fs  (sung %.2f, %+.0f cents)\n",
				pitch.PitchName(m.Note.Pitch), m.Note.StartTime, m.Sample.Pitch,
				(m.Sample.Pitch-float64(m.Note.Pitch))*100)
		}
		fmt.Printf("\n⭐ Score: %d\n", res.Score)
		logger.GetLogger().Debugf("Replay took %d ticks over %.2fs with %d samples", res.Ticks, res.Duration, res.Samples)
	},
}

var playCmd = &cobra.Command{
	Use:   "play <track-id|score-file> <performance-audio>",
	Short: "Play a performance in real time and score it live",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.GetLogger()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		score, trackID, samples, rate := preparePerformance(ctx, args[0], args[1])

		ref := playback.NewWallClock(time.Now)
		audioClock := playback.NewWallClock(time.Now)

		opts := append(pitchmatch.SessionOptionsFromConfig(cfg),
			pitchmatch.WithTrackID(trackID),
			pitchmatch.WithSink(pitchmatch.LogSink{Log: log}),
		)
		sess, err := pitchmatch.NewSession(score, ref, audioClock, opts...)
		if err != nil {
			fail("Failed to create session: %v", err)
		}

		src := audio.NewWavSource(samples, rate, audioClock)
		sampler := pitch.NewSampler(src, func(p pitchmatch.PitchSample) {
			sess.PushSample(p.Pitch, p.Timestamp)
		}, sess.SampleInterval(), log)

		length := time.Duration(math.Max(score.Duration(), src.Duration()) * float64(time.Second))
		fmt.Printf("▶️  Playing %.1fs (Ctrl+C to stop)\n\n", length.Seconds())

		ref.Play()
		audioClock.Play()
		sess.Start()
		sampler.Start()

		status := time.NewTicker(time.Second)
		defer status.Stop()
		done := time.After(length)

	loop:
		for {
			select {
			case <-ctx.Done():
				fmt.Println("\n⏹️  Interrupted")
				break loop
			case <-done:
				break loop
			case <-status.C:
				snap := sess.Snapshot()
				note := "--"
				if snap.DetectedNote != "" {
					note = snap.DetectedNote
				}
				fmt.Printf("⏱  %6.1fs   🎤 %-4s   ⭐ %d\n", snap.ReferenceTime, note, snap.Score)
			}
		}

		sampler.Stop()
		sess.Stop()
		ref.Pause()
		audioClock.Pause()

		snap := sess.Snapshot()
		fmt.Printf("\n✅ Finished: %d/%d notes hit, score %d\n", snap.Matched, snap.TotalNotes, snap.Score)
	},
}

func preparePerformance(ctx context.Context, scoreRef, audioPath string) (pitchmatch.Score, string, []float64, int) {
	fmt.Println("🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	score, trackID, err := loadScore(svc, scoreRef)
	if err != nil {
		fail("Failed to load score: %v", err)
	}

	fmt.Println("🎧 Loading performance audio...")
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	samples, rate, err := pitchmatch.LoadPerformance(loadCtx, audioPath, tempDir)
	if err != nil {
		fail("Failed to load performance: %v", err)
	}
	fmt.Printf("   %d notes, %.1fs of audio at %d Hz\n\n", len(score), float64(len(samples))/float64(rate), rate)
	return score, trackID, samples, rate
}
