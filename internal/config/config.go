package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath         string
	TempDir        string
	Port           int
	AllowedOrigins []string
	LogLevel       string
	LogFile        string

	TickInterval      time.Duration
	SampleInterval    time.Duration
	NoteToleranceMs   float64
	TimingToleranceMs float64
	PitchTolerance    float64
	RetentionSeconds  float64
	FeedbackHold      time.Duration

	HeartbeatTimeout time.Duration
	SessionTTL       time.Duration
}

// Load reads .env if present, then the environment. Missing values take
// their defaults.
func Load() (*Config, bool) {
	envLoaded := godotenv.Load() == nil

	return &Config{
		DBPath:         getEnv("PITCHMATCH_DB_PATH", "pitchmatch.sqlite3"),
		TempDir:        getEnv("PITCHMATCH_TEMP_DIR", os.TempDir()),
		Port:           getEnvAsInt("PORT", 8080),
		AllowedOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		LogFile:        getEnv("LOG_FILE", ""),

		TickInterval:      getEnvAsDuration("PITCHMATCH_TICK_INTERVAL", 50*time.Millisecond),
		SampleInterval:    getEnvAsDuration("PITCHMATCH_SAMPLE_INTERVAL", 100*time.Millisecond),
		NoteToleranceMs:   getEnvAsFloat("PITCHMATCH_NOTE_TOLERANCE_MS", 200),
		TimingToleranceMs: getEnvAsFloat("PITCHMATCH_TIMING_TOLERANCE_MS", 200),
		PitchTolerance:    getEnvAsFloat("PITCHMATCH_PITCH_TOLERANCE", 0.5),
		RetentionSeconds:  getEnvAsFloat("PITCHMATCH_RETENTION_SECONDS", 2),
		FeedbackHold:      getEnvAsDuration("PITCHMATCH_FEEDBACK_HOLD", 500*time.Millisecond),

		HeartbeatTimeout: getEnvAsDuration("PITCHMATCH_HEARTBEAT_TIMEOUT", 2*time.Second),
		SessionTTL:       getEnvAsDuration("PITCHMATCH_SESSION_TTL", 30*time.Minute),
	}, envLoaded
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
