package groove

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// onsetEnvelope computes the framewise onset-strength envelope: for each
// Hann-windowed STFT frame, the positive magnitude rise per frequency bin
// since the previous frame, aggregated by the median across bins. The
// median (not the mean) keeps a single resonant bin from dominating the
// envelope. Returns one value per frame; a buffer shorter than one frame
// yields nil.
func onsetEnvelope(samples []float64, sampleRate int, cfg DetectorConfig) []float64 {
	frameSize := cfg.FrameSize
	hop := cfg.HopLength
	if len(samples) < frameSize || frameSize <= 0 || hop <= 0 {
		return nil
	}

	bins := bandBins(sampleRate, frameSize, cfg)
	numFrames := 1 + (len(samples)-frameSize)/hop
	env := make([]float64, numFrames)
	if len(bins) == 0 {
		return env
	}

	frame := make([]float64, frameSize)
	prev := make([]float64, len(bins))
	rises := make([]float64, len(bins))

	for i := 0; i < numFrames; i++ {
		copy(frame, samples[i*hop:i*hop+frameSize])
		window.Apply(frame, window.Hann)
		spectrum := fft.FFTReal(frame)

		for j, k := range bins {
			mag := cmplx.Abs(spectrum[k])
			rise := mag - prev[j]
			if rise < 0 || i == 0 {
				rise = 0
			}
			rises[j] = rise
			prev[j] = mag
		}
		env[i] = median(rises)
	}
	return env
}

// bandBins returns the FFT bin indices contributing to the flux: bins
// inside [BandLow, BandHigh] (all bins when BandHigh is zero) minus any
// bin within the hum-guard mask.
func bandBins(sampleRate, frameSize int, cfg DetectorConfig) []int {
	binHz := float64(sampleRate) / float64(frameSize)
	bins := make([]int, 0, frameSize/2+1)

	for k := 0; k <= frameSize/2; k++ {
		f := float64(k) * binHz
		if cfg.BandHigh > 0 && (f < cfg.BandLow || f > cfg.BandHigh) {
			continue
		}
		if humMasked(f, cfg.HumBins) {
			continue
		}
		bins = append(bins, k)
	}
	return bins
}

// humMasked reports whether frequency f falls inside the masked region
// around any hum frequency.
func humMasked(f float64, humBins []float64) bool {
	for _, h := range humBins {
		if math.Abs(f-h) <= humMaskHalfWidthHz {
			return true
		}
	}
	return false
}

// normaliseEnvelope scales the envelope in place so its peak is 1.0 and
// returns the original peak. A flat or empty envelope is left untouched.
func normaliseEnvelope(env []float64) float64 {
	peak := 0.0
	for _, v := range env {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return peak
	}
	inv := 1.0 / peak
	for i := range env {
		env[i] *= inv
	}
	return peak
}

// median returns the median of values; an even count averages the two
// middle elements. The input slice is not modified.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// localMedian returns the median of env over the clipped index window
// [t-pre, t+post].
func localMedian(env []float64, t, pre, post int) float64 {
	lo := t - pre
	if lo < 0 {
		lo = 0
	}
	hi := t + post
	if hi > len(env)-1 {
		hi = len(env) - 1
	}
	return median(env[lo : hi+1])
}
