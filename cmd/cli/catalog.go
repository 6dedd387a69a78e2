//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/PitchMatch/internal/pitch"
	"github.com/himanishpuri/PitchMatch/internal/track"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
	"github.com/himanishpuri/PitchMatch/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	addTitle      string
	addArtist     string
	addYouTube    string
	addYouTubeURL string
	notesJSON     bool
)

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Track title (required)")
	addCmd.Flags().StringVar(&addArtist, "artist", "", "Artist name")
	addCmd.Flags().StringVar(&addYouTube, "youtube", "", "YouTube video ID of the backing video")
	addCmd.Flags().StringVar(&addYouTubeURL, "youtube-url", "", "YouTube URL of the backing video (alternative to --youtube)")
	notesCmd.Flags().BoolVar(&notesJSON, "json", false, "Print the notes in the JSON track format accepted by add")
	addCmd.MarkFlagRequired("title")
	addCmd.MarkFlagsMutuallyExclusive("youtube", "youtube-url")

	rootCmd.AddCommand(addCmd, listCmd, deleteCmd, notesCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <score-file>",
	Short: "Add a MIDI or JSON note track to the catalog",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.GetLogger()
		path := args[0]

		youtube := addYouTube
		if addYouTubeURL != "" {
			id, err := utils.ExtractYouTubeID(addYouTubeURL)
			if err != nil {
				fail("Invalid YouTube URL: %v", err)
			}
			youtube = id
			log.Infof("Extracted YouTube ID: %s", id)
		}

		fmt.Println("🔧 Initializing service...")
		svc, err := createService()
		if err != nil {
			fail("Failed to create service: %v", err)
		}
		defer svc.Close()

		fmt.Println("🎼 Loading note track...")
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		trackID, err := svc.AddTrack(ctx, path, addTitle, addArtist, youtube)
		if err != nil {
			fail("Failed to add track: %v", err)
		}
		tr, err := svc.GetTrackByID(trackID)
		if err != nil {
			fail("Track stored but could not be read back: %v", err)
		}

		fmt.Println("\n✅ Successfully added track to catalog!")
		printTrack(tr)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tracks in the catalog",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := createService()
		if err != nil {
			fail("Failed to create service: %v", err)
		}
		defer svc.Close()

		tracks, err := svc.ListTracks()
		if err != nil {
			fail("Failed to list tracks: %v", err)
		}
		if len(tracks) == 0 {
			fmt.Println("📭 No tracks in catalog")
			return
		}

		fmt.Printf("📚 Found %d track(s):\n\n", len(tracks))
		for i := range tracks {
			fmt.Printf("%d.", i+1)
			printTrack(&tracks[i])
			fmt.Println()
		}
		logger.GetLogger().Debugf("Listed %d tracks", len(tracks))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <track-id>",
	Short: "Delete a track and its notes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := createService()
		if err != nil {
			fail("Failed to create service: %v", err)
		}
		defer svc.Close()

		tr, err := svc.GetTrackByID(args[0])
		if errors.Is(err, pitchmatch.ErrTrackNotFound) {
			fail("Track not found (ID: %s)", args[0])
		} else if err != nil {
			fail("Failed to look up track: %v", err)
		}

		if err := svc.DeleteTrack(tr.ID); err != nil {
			fail("Failed to delete track: %v", err)
		}

		fmt.Println("✅ Successfully deleted track:")
		printTrack(tr)
		logger.GetLogger().Infof("Deleted track ID=%s ('%s' by '%s')", tr.ID, tr.Title, tr.Artist)
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes <track-id>",
	Short: "Print the notes of a track",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := createService()
		if err != nil {
			fail("Failed to create service: %v", err)
		}
		defer svc.Close()

		score, err := svc.LoadScore(args[0])
		if err != nil {
			fail("Failed to load notes: %v", err)
		}

		if notesJSON {
			data, err := track.MarshalJSON(score)
			if err != nil {
				fail("Failed to encode notes: %v", err)
			}
			fmt.Println(string(data))
			return
		}

		fmt.Printf("🎼 %d note(s), %.2fs\n\n", len(score), score.Duration())
		fmt.Printf("%5s  %-5s  %8s  %8s  %5s\n", "#", "Note", "Start", "End", "Vel")
		for _, n := range score {
			fmt.Printf("%5d  %-5s  %7.3fs  %7.3fs  %5.2f\n", n.ID, pitch.PitchName(n.Pitch), n.StartTime, n.EndTime, n.Velocity)
		}
	},
}

func printTrack(tr *pitchmatch.Track) {
	fmt.Printf("   ID:       %s\n", tr.ID)
	fmt.Printf("   Title:    %s\n", tr.Title)
	if tr.Artist != "" {
		fmt.Printf("   Artist:   %s\n", tr.Artist)
	}
	fmt.Printf("   Notes:    %d\n", tr.NoteCount)
	if tr.DurationMs > 0 {
		d := tr.DurationMs / 1000
		fmt.Printf("   Duration: %d:%02d\n", d/60, d%60)
	}
	if tr.YouTubeID != "" {
		fmt.Printf("   YouTube:  https://youtube.com/watch?v=%s\n", tr.YouTubeID)
	}
}
