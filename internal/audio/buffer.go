package audio

import "math"

// silenceFloor is the peak below which a buffer is treated as silent
// (-60 dBFS). Normalising below this would amplify noise into phantom
// onsets.
const silenceFloor = 0.001

// downmix averages interleaved integer channels into mono and scales by
// the given full-scale divisor so output samples land in [-1, 1].
func downmix(data []int, channels int, fullScale float64) []float64 {
	if channels < 1 {
		channels = 1
	}
	if fullScale <= 0 {
		fullScale = 1 << 15
	}

	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels) / fullScale
	}
	return out
}

// Normalise scales samples in place so the absolute peak sits at 1.0 and
// returns the original peak. Near-silent buffers are left untouched.
func Normalise(samples []float64) float64 {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < silenceFloor {
		return peak
	}

	inv := 1.0 / peak
	for i := range samples {
		samples[i] *= inv
	}
	return peak
}

// Mono returns a copy of src downmixed from the given channel count,
// for callers holding already-decoded float samples (stems from an
// upstream separator).
func Mono(src []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(src))
		copy(out, src)
		return out
	}

	frames := len(src) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += src[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
