package groove

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// SnareArticulation distinguishes how the snare was struck.
type SnareArticulation string

const (
	SnareCrossStick SnareArticulation = "cross_stick"
	SnareFull       SnareArticulation = "snare_full"
)

// SnareClassifierFunc classifies the snare hit at onsetTime within an
// isolated snare-channel buffer. Classification is a function value so a
// trained model can replace the sustain heuristic without touching
// callers.
type SnareClassifierFunc func(samples []float64, sampleRate int, onsetTime float64) SnareArticulation

// ClassifySnare is the default classifier: a hit whose sustain dies
// inside 150ms is a cross-stick (rocksteady and one drop backbeats live
// here), anything that rings longer is a full snare.
func ClassifySnare(samples []float64, sampleRate int, onsetTime float64) SnareArticulation {
	if sustainMs(samples, sampleRate, onsetTime) < crossStickMaxMs {
		return SnareCrossStick
	}
	return SnareFull
}

// sustainMs measures how long the hit at onsetTime rings: the time from
// the onset until the smoothed amplitude envelope first falls 20dB below
// its peak or under the noise floor, whichever threshold is higher,
// searched within a bounded window. A segment that never decays inside
// the window reports its full duration.
func sustainMs(samples []float64, sampleRate int, onsetTime float64) float64 {
	seg := segmentAfter(samples, sampleRate, onsetTime, sustainSearchWindowMs)
	if len(seg) == 0 {
		return 0
	}

	env := amplitudeEnvelope(seg, sampleRate, sustainSmoothingMs)
	peak, peakIdx := envelopePeak(env)
	if peak <= 0 {
		return 0
	}

	threshold := peak * math.Pow(10, sustainDecayDB/20)
	if threshold < noiseFloorAmplitude {
		threshold = noiseFloorAmplitude
	}
	for i := peakIdx; i < len(env); i++ {
		if env[i] < threshold {
			return float64(i) / float64(sampleRate) * 1000
		}
	}
	return float64(len(seg)) / float64(sampleRate) * 1000
}

// HihatArticulation distinguishes open from closed hi-hat hits.
type HihatArticulation string

const (
	HihatClosed  HihatArticulation = "closed"
	HihatOpen    HihatArticulation = "open"
	HihatUnknown HihatArticulation = "unknown"
)

// HihatClassification carries the decision and how sure the classifier
// is about it. Hi-hat is the least reliable channel, so callers treat
// this as advisory.
type HihatClassification struct {
	Articulation HihatArticulation
	Confidence   float64
}

// HihatClassifierFunc classifies the hi-hat hit at onsetTime, on the
// same swappable seam as SnareClassifierFunc.
type HihatClassifierFunc func(samples []float64, sampleRate int, onsetTime float64) HihatClassification

// Uncertain-zone scoring for hits whose decay alone does not settle
// open versus closed.
const (
	hihatMinSegment = 100 // samples - shorter segments are unclassifiable

	hihatWeightDecay    = 0.40
	hihatWeightAmp      = 0.25
	hihatWeightTemporal = 0.20
	hihatWeightSpectral = 0.15

	hihatAmpProbeMs       = 100.0 // ms into the segment - open hats still ring here
	hihatAmpProbeWindowMs = 10.0  // ms - RMS window around the probe point
	hihatTypicalAmp       = 0.1   // normalisation ceiling for the probe RMS
	hihatTypicalCentroid  = 0.15  // seconds - normalisation ceiling for the centroid

	hihatUncertainMaxConfidence = 0.7
)

// ClassifyHihat is the default HihatClassifierFunc. Decay time settles
// the clear cases: under 100ms is closed, over 200ms is open. Between
// the two, a weighted score over decay, late amplitude, temporal
// centroid, and spectral flatness decides, with confidence capped below
// the clear-case floor.
func ClassifyHihat(samples []float64, sampleRate int, onsetTime float64) HihatClassification {
	seg := segmentAfter(samples, sampleRate, onsetTime, hihatDecayWindowMs)
	if len(seg) < hihatMinSegment {
		return HihatClassification{Articulation: HihatUnknown}
	}

	decayMs := decayTimeMs(seg, sampleRate)

	if decayMs < hihatClosedMaxMs {
		conf := 0.8 + 0.2*(1-decayMs/hihatClosedMaxMs)
		return HihatClassification{HihatClosed, math.Min(1, conf)}
	}
	if decayMs > hihatOpenMinMs {
		conf := 0.8 + 0.2*math.Min(1, (decayMs-hihatOpenMinMs)/hihatOpenMinMs)
		return HihatClassification{HihatOpen, math.Min(1, conf)}
	}

	score := (decayMs - hihatClosedMaxMs) / (hihatOpenMinMs - hihatClosedMaxMs) * hihatWeightDecay
	score += math.Min(1, probeRMS(seg, sampleRate)/hihatTypicalAmp) * hihatWeightAmp
	score += math.Min(1, temporalCentroid(seg, sampleRate)/hihatTypicalCentroid) * hihatWeightTemporal
	score += spectralFlatness(seg) * hihatWeightSpectral

	if score > 0.5 {
		return HihatClassification{HihatOpen, math.Min(hihatUncertainMaxConfidence, score)}
	}
	return HihatClassification{HihatClosed, math.Min(hihatUncertainMaxConfidence, 1-score)}
}

// decayTimeMs measures the time from the envelope peak until it falls to
// a tenth of that peak. An envelope still ringing at the end of the
// segment reports the remaining segment length.
func decayTimeMs(seg []float64, sampleRate int) float64 {
	env := amplitudeEnvelope(seg, sampleRate, sustainSmoothingMs)
	peak, peakIdx := envelopePeak(env)
	if peak <= 0 {
		return 0
	}

	threshold := peak * hihatDecayFraction
	for i := peakIdx; i < len(env); i++ {
		if env[i] < threshold {
			return float64(i-peakIdx) / float64(sampleRate) * 1000
		}
	}
	return float64(len(seg)-peakIdx) / float64(sampleRate) * 1000
}

// probeRMS measures RMS in a short window around the late-amplitude
// probe point.
func probeRMS(seg []float64, sampleRate int) float64 {
	centre := int(hihatAmpProbeMs / 1000 * float64(sampleRate))
	half := int(hihatAmpProbeWindowMs / 1000 * float64(sampleRate) / 2)
	lo := centre - half
	if lo < 0 {
		lo = 0
	}
	hi := centre + half
	if hi > len(seg) {
		hi = len(seg)
	}
	return rootMeanSquare(seg, lo, hi)
}

// temporalCentroid returns the energy centre of mass of the segment in
// seconds. Closed hats concentrate energy at the attack; open hats push
// the centroid later.
func temporalCentroid(seg []float64, sampleRate int) float64 {
	var total, weighted float64
	for i, s := range seg {
		e := s * s
		total += e
		weighted += float64(i) / float64(sampleRate) * e
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// spectralFlatness returns the ratio of geometric to arithmetic mean of
// the magnitude spectrum: 0 for a pure tone, approaching 1 for noise.
func spectralFlatness(seg []float64) float64 {
	spectrum := fft.FFTReal(seg)
	n := len(seg)/2 + 1
	if n < 2 {
		return 0
	}

	var logSum, sum float64
	count := 0
	for k := 1; k < n; k++ {
		mag := cmplx.Abs(spectrum[k]) + dbEpsilon
		logSum += math.Log(mag)
		sum += mag
		count++
	}
	return math.Exp(logSum/float64(count)) / (sum / float64(count))
}

// GuessChannel estimates a drum voice for a mixed-buffer onset from its
// metric position and loudness: hits on a beat or on the offbeat 8th are
// kick when loud and snare otherwise, everything between lands on hihat.
// Stems always win over this guess when present.
func GuessChannel(beatPosition float64, velocity int) Channel {
	frac := math.Mod(beatPosition, 1)
	onBeat := frac < strongPositionTolerance || math.Abs(frac-0.5) < strongPositionTolerance
	if !onBeat {
		return ChannelHihat
	}
	if velocity > kickVelocityFloor {
		return ChannelKick
	}
	return ChannelSnare
}

const (
	strongPositionTolerance = 0.1 // of a beat - how close counts as on it
	kickVelocityFloor       = 90  // velocity above this on a strong beat reads as kick
)

// segmentAfter returns the clipped slice of samples covering windowMs
// starting at time t seconds.
func segmentAfter(samples []float64, sampleRate int, t, windowMs float64) []float64 {
	start := int(t * float64(sampleRate))
	if start < 0 {
		start = 0
	}
	if start >= len(samples) {
		return nil
	}
	end := start + int(windowMs/1000*float64(sampleRate))
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end]
}

// amplitudeEnvelope rectifies the segment and smooths it with a centred
// moving average of smoothMs.
func amplitudeEnvelope(seg []float64, sampleRate int, smoothMs float64) []float64 {
	env := make([]float64, len(seg))
	for i, s := range seg {
		env[i] = math.Abs(s)
	}

	win := int(smoothMs / 1000 * float64(sampleRate))
	if win <= 1 || len(env) <= win {
		return env
	}

	prefix := make([]float64, len(env)+1)
	for i, v := range env {
		prefix[i+1] = prefix[i] + v
	}

	smoothed := make([]float64, len(env))
	half := win / 2
	for i := range env {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(env)-1 {
			hi = len(env) - 1
		}
		smoothed[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}
	return smoothed
}

// envelopePeak returns the envelope maximum and the first index it
// occurs at.
func envelopePeak(env []float64) (float64, int) {
	peak, idx := 0.0, 0
	for i, v := range env {
		if v > peak {
			peak, idx = v, i
		}
	}
	return peak, idx
}
