package groove

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrTempoNotFound reports that the recording carries no periodic energy
// to estimate a tempo from.
var ErrTempoNotFound = errors.New("no tempo found")

// TempoCorrection names the octave-error fix applied to a detected BPM.
type TempoCorrection string

const (
	CorrectionNone    TempoCorrection = "none"
	CorrectionHalved  TempoCorrection = "halved"
	CorrectionDoubled TempoCorrection = "doubled"
)

// TempoResult carries the estimated tempo and the session-quality
// signals derived alongside it.
type TempoResult struct {
	DetectedBPM  float64 // raw autocorrelation pick
	BPM          float64 // after octave correction
	Correction   TempoCorrection
	Style        StyleID // best tempo-range fit after correction
	Confidence   float64
	TempoDrift   float64 // CV of beat-length gaps between envelope peaks
	IsVintage    bool    // drift says nobody played to a click
	Alternatives []StyleSuggestion
}

// slowStyles never sit above the halving threshold. A detection up there
// is the 8th-note level of a half-time groove, the classic failure mode
// when one drop meets a beat tracker.
var slowStyles = map[StyleID]bool{
	StyleOneDrop:    true,
	StyleSteppers:   true,
	StyleRocksteady: true,
}

// TempoAnalyzer estimates tempo by autocorrelating the onset-strength
// envelope of the mix.
type TempoAnalyzer struct {
	cfg DetectorConfig
}

// NewTempoAnalyzer returns an analyzer using the full-mix envelope
// framing.
func NewTempoAnalyzer() *TempoAnalyzer {
	return &TempoAnalyzer{cfg: DefaultDetectorConfig()}
}

// Analyze estimates the tempo of the buffer. A style hint, when not
// unknown, drives the octave correction the way a session engineer
// would: one drop at 152 BPM is really 76. Silence or an aperiodic
// envelope returns ErrTempoNotFound.
func (a *TempoAnalyzer) Analyze(samples []float64, sampleRate int, styleHint StyleID) (TempoResult, error) {
	if sampleRate <= 0 {
		return TempoResult{}, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, ErrInvalidConfig)
	}

	env := onsetEnvelope(samples, sampleRate, a.cfg)
	if normaliseEnvelope(env) <= 0 {
		return TempoResult{}, ErrTempoNotFound
	}

	detected := a.autocorrelate(env, sampleRate)
	if detected <= 0 {
		return TempoResult{}, ErrTempoNotFound
	}

	bpm, correction := correctOctave(detected, styleHint)

	res := TempoResult{
		DetectedBPM:  detected,
		BPM:          bpm,
		Correction:   correction,
		Style:        StyleUnknown,
		Alternatives: SuggestStylesFromBPM(bpm),
	}
	if len(res.Alternatives) > 0 {
		res.Style = res.Alternatives[0].Style
		res.Confidence = res.Alternatives[0].Confidence
	}

	res.TempoDrift = a.drift(env, sampleRate, bpm)
	res.IsVintage = res.TempoDrift > vintageDriftCV
	return res, nil
}

// autocorrelate scores every envelope lag in the searchable tempo band
// and returns the BPM of the strongest one.
func (a *TempoAnalyzer) autocorrelate(env []float64, sampleRate int) float64 {
	framesPerSecond := float64(sampleRate) / float64(a.cfg.HopLength)
	minLag := int(60 / tempoMaxBPM * framesPerSecond)
	if minLag < 1 {
		minLag = 1
	}
	maxLag := int(math.Ceil(60 / tempoMinBPM * framesPerSecond))
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if maxLag < minLag {
		return 0
	}

	bestLag, bestScore := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for t := 0; t+lag < len(env); t++ {
			sum += env[t] * env[t+lag]
		}
		if score := sum / float64(len(env)-lag); score > bestScore {
			bestScore, bestLag = score, lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return 60 * framesPerSecond / float64(bestLag)
}

// correctOctave fixes the double-time and half-time detection errors
// common in the genre family. With a hint the caller's intent rules:
// slow styles halve a high detection, ska doubles a low one, and the
// result stays inside the hinted style's range. Without a hint only the
// tempo-range fit of the raw detection drives the correction.
func correctOctave(detected float64, hint StyleID) (float64, TempoCorrection) {
	style := hint
	if style == "" || style == StyleUnknown {
		style = StyleUnknown
		if s := SuggestStylesFromBPM(detected); len(s) > 0 {
			style = s[0].Style
		}
	}

	bpm, correction := detected, CorrectionNone
	switch {
	case slowStyles[style] && detected > tempoHalveAboveBPM:
		bpm, correction = detected/2, CorrectionHalved
	case style == StyleSka && detected < tempoDoubleBelow:
		bpm, correction = detected*2, CorrectionDoubled
	}

	if hint != "" && hint != StyleUnknown {
		if t, ok := TemplateFor(hint); ok {
			bpm = clamp(bpm, t.MinBPM, t.MaxBPM)
		}
	}
	return bpm, correction
}

// drift measures tempo instability as the coefficient of variation of
// beat-length gaps between envelope peaks. Gaps far from one beat are
// fills or dropouts and do not count.
func (a *TempoAnalyzer) drift(env []float64, sampleRate int, bpm float64) float64 {
	det := OnsetDetector{cfg: a.cfg}
	peaks := det.pickPeaks(env, sampleRate)
	if len(peaks) < 3 {
		return 0
	}

	beat := 60 / bpm
	var intervals []float64
	for i := 1; i < len(peaks); i++ {
		iv := peaks[i].Time - peaks[i-1].Time
		if iv >= driftIntervalLow*beat && iv <= driftIntervalHigh*beat {
			intervals = append(intervals, iv)
		}
	}
	if len(intervals) == 0 {
		return 0
	}

	mean := stat.Mean(intervals, nil)
	if mean == 0 {
		return 0
	}
	return stat.PopStdDev(intervals, nil) / mean
}
