package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSampleRate keeps enough bandwidth for vocal harmonics.
const DefaultSampleRate = 44100

type ConvertWAVConfig struct {
	SampleRate int
}

// ConvertToMonoWAV converts any audio file ffmpeg understands to 16-bit
// mono PCM WAV in outputDir and returns the new path.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".mono.wav")

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return "", fmt.Errorf("moving converted file: %w", err)
	}
	return outputPath, nil
}

// LoadMono reads path as mono samples, converting through ffmpeg first
// unless it already is a WAV file.
func LoadMono(ctx context.Context, path, tempDir string) ([]float64, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, rate, err := ReadWav(path)
		if err == nil {
			return samples, rate, nil
		}
	}

	wavPath, err := ConvertToMonoWAV(ctx, path, tempDir, ConvertWAVConfig{})
	if err != nil {
		return nil, 0, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(wavPath)

	return ReadWav(wavPath)
}
