package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWav is returned for input that is not a readable PCM WAV.
var ErrInvalidWav = errors.New("not a valid PCM WAV file")

// ReadWav reads a PCM WAV file and returns mono samples normalized to
// [-1, 1] together with the sample rate.
func ReadWav(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	samples, rate, err := DecodeWav(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, rate, nil
}

// DecodeWav decodes a PCM WAV stream. Multi-channel audio is averaged down
// to mono.
func DecodeWav(r io.ReadSeeker) ([]float64, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, ErrInvalidWav
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, ErrInvalidWav
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = int(decoder.NumChans)
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	mono, err := downmix(buf.Data, channels, scale)
	if err != nil {
		return nil, 0, err
	}
	return mono, int(decoder.SampleRate), nil
}

// downmix averages interleaved channels and scales to float.
func downmix(data []int, channels int, scale float64) ([]float64, error) {
	if channels < 1 {
		return nil, errors.New("unsupported channel count")
	}
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels) * scale
	}
	return out, nil
}

// WriteWav writes mono samples in [-1, 1] as a 16-bit PCM WAV file.
func WriteWav(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}
