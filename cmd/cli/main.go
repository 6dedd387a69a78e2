//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"fmt"
	"os"

	"github.com/himanishpuri/PitchMatch/internal/config"
	"github.com/himanishpuri/PitchMatch/internal/track"
	"github.com/himanishpuri/PitchMatch/pkg/logger"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfg      *config.Config
	dbPath   string
	tempDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pitchmatch",
	Short: "Sing along to a score and get judged in real time",
	Long: `PitchMatch compares a sung pitch stream against a note track in sync
with playback. The CLI manages the track catalog and evaluates recorded
or live performances.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level, ok := logger.ParseLevel(logLevel); ok {
			logger.SetLevel(level)
		}
		if !notesJSON {
			printBanner()
		}
		logger.GetLogger().Debugf("Executing command: %s", cmd.Name())
	},
}

func init() {
	cfg, _ = config.Load()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "Path to the SQLite database file (env: PITCHMATCH_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp", cfg.TempDir, "Directory for temporary audio conversion files (env: PITCHMATCH_TEMP_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
}

// createService creates a catalog service with the configured options
func createService() (pitchmatch.Service, error) {
	return pitchmatch.NewService(
		pitchmatch.WithDBPath(dbPath),
	)
}

// loadScore resolves a score argument: an existing file is parsed
// directly, anything else is looked up as a track id.
func loadScore(svc pitchmatch.Service, ref string) (pitchmatch.Score, string, error) {
	if _, err := os.Stat(ref); err == nil {
		score, err := track.LoadFile(ref)
		return score, "", err
	}
	score, err := svc.LoadScore(ref)
	return score, ref, err
}

func printBanner() {
	banner := `
 ____  _ _       _     __  __       _       _
|  _ \(_) |_ ___| |__ |  \/  | __ _| |_ ___| |__
| |_) | | __/ __| '_ \| |\/| |/ _' | __/ __| '_ \
|  __/| | || (__| | | | |  | | (_| | || (__| | | |
|_|   |_|\__\___|_| |_|_|  |_|\__,_|\__\___|_| |_|

           Real-time Pitch Scoring CLI
`
	fmt.Println(banner)
}

func fail(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	logger.GetLogger().Errorf(format, args...)
	os.Exit(1)
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
