package groove

import (
	"math"
	"testing"
)

const testSampleRate = 44100

// newNoiseSource returns a deterministic noise generator in [-1, 1].
// A simple LCG avoids math/rand seeding differences across runs.
func newNoiseSource(seed uint32) func() float64 {
	state := seed
	return func() float64 {
		// LCG parameters from Numerical Recipes
		state = state*1664525 + 1013904223
		return (float64(state)/float64(0xFFFFFFFF))*2.0 - 1.0
	}
}

// burstSpec places one percussive event in a synthetic buffer.
type burstSpec struct {
	At  float64 // seconds
	Dur float64 // seconds (0 = 40ms default)
	Amp float64 // peak amplitude (0 = 0.5 default)
}

// burstBuffer builds a mono buffer of the given duration containing one
// noise burst per burstSpec. Noise bursts are broadband, so they register
// on the full-spectrum envelope and on every band-limited preset alike.
func burstBuffer(t *testing.T, durationSecs float64, bursts []burstSpec) []float64 {
	t.Helper()

	buf := make([]float64, int(durationSecs*testSampleRate))
	noise := newNoiseSource(12345)

	for _, b := range bursts {
		dur := b.Dur
		if dur == 0 {
			dur = 0.040
		}
		amp := b.Amp
		if amp == 0 {
			amp = 0.5
		}

		start := int(b.At * testSampleRate)
		end := start + int(dur*testSampleRate)
		if start < 0 || end > len(buf) {
			t.Fatalf("burst at %.3fs (%.0fms) does not fit a %.2fs buffer", b.At, dur*1000, durationSecs)
		}
		for i := start; i < end; i++ {
			buf[i] = amp * noise()
		}
	}
	return buf
}

// addToneBurst mixes a sine burst into an existing buffer. Unlike noise
// bursts, tone bursts confine their energy to a few FFT bins, which is
// what band-limiting and hum-guard tests need.
func addToneBurst(t *testing.T, buf []float64, at, dur, freq, amp float64) {
	t.Helper()

	start := int(at * testSampleRate)
	end := start + int(dur*testSampleRate)
	if start < 0 || end > len(buf) {
		t.Fatalf("tone burst at %.3fs (%.0fms) does not fit the buffer", at, dur*1000)
	}
	for i := start; i < end; i++ {
		buf[i] += amp * math.Sin(2*math.Pi*freq*float64(i-start)/testSampleRate)
	}
}

// clickBuffer builds a mono buffer with a single-sample impulse at each
// time. Impulses are spectrally flat, which suits envelope and tempo
// tests where event energy should not smear over multiple frames.
func clickBuffer(t *testing.T, durationSecs float64, clickTimes []float64, amp float64) []float64 {
	t.Helper()

	buf := make([]float64, int(durationSecs*testSampleRate))
	for _, at := range clickTimes {
		i := int(at * testSampleRate)
		if i < 0 || i >= len(buf) {
			t.Fatalf("click at %.3fs does not fit a %.2fs buffer", at, durationSecs)
		}
		buf[i] = amp
	}
	return buf
}

// decayBuffer builds a hit with a 10ms unit plateau followed by an
// exponential decay that reaches a tenth of the peak at exactly decayMs
// after the buffer start. This pins the measured sustain to decayMs
// within the envelope smoothing error (well under a millisecond).
func decayBuffer(t *testing.T, durationSecs, decayMs float64) []float64 {
	t.Helper()

	const plateauMs = 10.0
	if decayMs <= plateauMs {
		t.Fatalf("decay %gms must exceed the %gms plateau", decayMs, plateauMs)
	}

	buf := make([]float64, int(durationSecs*testSampleRate))
	plateau := int(plateauMs / 1000 * testSampleRate)
	tau := (decayMs - plateauMs) / 1000 / math.Ln10

	for i := range buf {
		tSec := float64(i) / testSampleRate
		switch {
		case i < plateau:
			buf[i] = 1.0
		default:
			buf[i] = math.Exp(-(tSec - plateauMs/1000) / tau)
		}
	}
	return buf
}

// gridTime returns the ideal time of a 1-based bar and step at the
// given tempo on the sixteenth-note grid.
func gridTime(bar, step int, bpm float64) float64 {
	gridInterval := 60.0 / bpm / defaultSubdivision
	return float64((bar-1)*stepsPerBar+step-1) * gridInterval
}

// onsetsAt wraps times into full-strength onsets of one channel.
func onsetsAt(ch Channel, times ...float64) []Onset {
	out := make([]Onset, len(times))
	for i, at := range times {
		out[i] = Onset{Time: at, Strength: 1.0, Channel: ch}
	}
	return out
}

// styleOnsets builds a perfect rendition of a style template: every
// expected hit exactly on the grid for the given number of bars, full
// strength throughout.
func styleOnsets(t *testing.T, style StyleID, bars int, bpm float64) OnsetsByChannel {
	t.Helper()

	tmpl, ok := TemplateFor(style)
	if !ok {
		t.Fatalf("no template for style %q", style)
	}

	out := OnsetsByChannel{}
	for _, ch := range []Channel{ChannelKick, ChannelSnare, ChannelHihat} {
		for bar := 1; bar <= bars; bar++ {
			for _, step := range tmpl.Steps(ch) {
				out[ch] = append(out[ch], Onset{
					Time:     gridTime(bar, step, bpm),
					Strength: 1.0,
					Channel:  ch,
				})
			}
		}
	}
	return out
}

// styleBursts renders a style template as noise bursts: one burst per
// expected hit across the given bars, suitable for running the full
// detection pipeline over.
func styleBursts(t *testing.T, style StyleID, ch Channel, bars int, bpm float64, amp float64) []float64 {
	t.Helper()

	tmpl, ok := TemplateFor(style)
	if !ok {
		t.Fatalf("no template for style %q", style)
	}

	barDur := 4 * 60.0 / bpm
	total := float64(bars)*barDur + 0.5
	var bursts []burstSpec
	for bar := 1; bar <= bars; bar++ {
		for _, step := range tmpl.Steps(ch) {
			bursts = append(bursts, burstSpec{At: gridTime(bar, step, bpm), Amp: amp})
		}
	}
	return burstBuffer(t, total, bursts)
}
