package pitch

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	DefaultFrameSize    = 2048
	DefaultMinVolumeDB  = -20.0
	DefaultKeyThreshold = 0.9
)

// Detector estimates the fundamental frequency of a mono frame with the
// McLeod pitch method: a normalized square difference function computed
// from an FFT autocorrelation, followed by key-maximum peak picking.
type Detector struct {
	SampleRate   int
	MinVolumeDB  float64 // frames quieter than this (dBFS, RMS) are ignored
	KeyThreshold float64 // fraction of the highest key maximum a peak must reach
}

func NewDetector(sampleRate int) *Detector {
	return &Detector{
		SampleRate:   sampleRate,
		MinVolumeDB:  DefaultMinVolumeDB,
		KeyThreshold: DefaultKeyThreshold,
	}
}

// FindPitch returns the detected frequency in Hz and its clarity in [0, 1].
// Both are zero when the frame is empty, too quiet or aperiodic.
func (d *Detector) FindPitch(frame []float64) (freq, clarity float64) {
	n := len(frame)
	if n < 4 || d.SampleRate <= 0 {
		return 0, 0
	}
	if VolumeDB(frame) < d.MinVolumeDB {
		return 0, 0
	}

	nsdf := normalizedSquareDifference(frame)
	peaks := keyMaxima(nsdf[:n/2])
	if len(peaks) == 0 {
		return 0, 0
	}

	highest := 0.0
	for _, p := range peaks {
		if nsdf[p] > highest {
			highest = nsdf[p]
		}
	}

	threshold := d.KeyThreshold
	if threshold <= 0 {
		threshold = DefaultKeyThreshold
	}
	for _, p := range peaks {
		if nsdf[p] >= threshold*highest {
			tau, value := parabolicPeak(nsdf, p)
			if tau <= 0 {
				return 0, 0
			}
			return float64(d.SampleRate) / tau, math.Min(value, 1)
		}
	}
	return 0, 0
}

// VolumeDB returns the RMS level of the frame in dBFS.
func VolumeDB(frame []float64) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, x := range frame {
		sum += x * x
	}
	return 10 * math.Log10(sum/float64(len(frame)))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func normalizedSquareDifference(frame []float64) []float64 {
	n := len(frame)

	// Autocorrelation via FFT; zero padding to 2n avoids circular wrap.
	padded := make([]float64, nextPow2(2*n))
	copy(padded, frame)
	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		re, im := real(c), imag(c)
		spectrum[i] = complex(re*re+im*im, 0)
	}
	acf := fft.IFFT(spectrum)

	var energy float64
	for _, x := range frame {
		energy += x * x
	}
	nsdf := make([]float64, n)
	r0 := real(acf[0])
	if energy == 0 || r0 == 0 {
		return nsdf
	}
	scale := energy / r0

	m := 2 * energy
	for tau := 0; tau < n; tau++ {
		if tau > 0 {
			m -= frame[tau-1]*frame[tau-1] + frame[n-tau]*frame[n-tau]
		}
		if m > 1e-12 {
			nsdf[tau] = 2 * real(acf[tau]) * scale / m
		}
	}
	return nsdf
}

// keyMaxima returns the index of the highest value between each pair of
// positive-going zero crossings, skipping the lobe around lag zero.
func keyMaxima(nsdf []float64) []int {
	n := len(nsdf)
	var maxima []int
	pos := 0
	cur := 0

	for pos < (n-1)/3 && nsdf[pos] > 0 {
		pos++
	}
	for pos < n-1 && nsdf[pos] <= 0 {
		pos++
	}
	if pos == 0 {
		pos = 1
	}

	for pos < n-1 {
		if nsdf[pos] > nsdf[pos-1] && nsdf[pos] >= nsdf[pos+1] {
			if cur == 0 || nsdf[pos] > nsdf[cur] {
				cur = pos
			}
		}
		pos++
		if pos < n-1 && nsdf[pos] <= 0 {
			if cur > 0 {
				maxima = append(maxima, cur)
				cur = 0
			}
			for pos < n-1 && nsdf[pos] <= 0 {
				pos++
			}
		}
	}
	if cur > 0 {
		maxima = append(maxima, cur)
	}
	return maxima
}

func parabolicPeak(y []float64, i int) (x, value float64) {
	if i <= 0 || i >= len(y)-1 {
		return float64(i), y[i]
	}
	a, b, c := y[i-1], y[i], y[i+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(i), b
	}
	delta := (a - c) / (2 * den)
	return float64(i) + delta, b - (a-c)*(a-c)/(8*den)
}
