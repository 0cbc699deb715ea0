// Package groove implements the drum groove analysis pipeline: onset
// detection, dynamics extraction, grid-relative timing, style-pattern
// matching, segment validation, and humanization statistics.
package groove

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig marks configuration errors. They are reported before
// any processing starts and are never retried. Callers branch with
// errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// Detection and analysis tuning constants. These control how the
// pipeline adapts to tempo and recording quality.
const (
	// Onset envelope framing
	defaultFrameSize = 2048 // samples - STFT frame for the flux envelope
	defaultHopLength = 512  // samples - envelope resolution ~11.6ms at 44.1kHz
	stemHopLength    = 256  // samples - finer resolution for separated stems

	// Peak picking context (in envelope frames)
	defaultPreMax  = 3 // strict local max lookback
	defaultPostMax = 3 // strict local max lookahead
	defaultPreAvg  = 3 // local median lookback
	defaultPostAvg = 5 // local median lookahead

	// Detection thresholds (envelope normalised to [0,1])
	defaultDelta = 0.2  // full mix - conservative
	kickDelta    = 0.07 // kick stem - low band is sparse and clean
	snareDelta   = 0.05 // snare stem
	hihatDelta   = 0.03 // hihat stem - quiet, needs sensitivity

	// Debounce (envelope frames between accepted onsets)
	defaultWait = 10 // full mix
	kickWait    = 30 // kick rarely plays faster than 8ths
	snareWait   = 20
	hihatWait   = 10 // hihat can run 16ths

	// Debounce ceiling as a fraction of one grid step. Waiting longer
	// than this swallows genuine 16th-note hits at fast ska tempos.
	maxWaitGridFraction = 0.5

	// Analysis bands (Hz) per instrument
	kickBandLow   = 20.0
	kickBandHigh  = 150.0
	snareBandLow  = 150.0
	snareBandHigh = 5000.0
	hihatBandLow  = 5000.0
	hihatBandHigh = 16000.0

	// Mains hum guard: half-width of the masked region around each hum
	// frequency. One bin width at the default frame, so the mask always
	// covers the bin holding the hum plus its nearest neighbour. Steady
	// hum carries no flux on its own; the mask keeps hum level changes
	// out of the kick envelope.
	humMaskHalfWidthHz = 22.0

	// Dynamics measurement
	defaultDynamicsWindowMs = 25.0  // ms - half-window around the onset
	defaultDBMin            = -60.0 // dBFS - maps to velocity 1
	defaultDBMax            = -6.0  // dBFS - maps to velocity 127
	dbEpsilon               = 1e-10 // avoids log10(0) at digital silence

	// Grid
	beatsPerBar        = 4                                // the style catalog is 4/4 throughout
	defaultSubdivision = 4                                // 16th-note resolution
	stepsPerBar        = beatsPerBar * defaultSubdivision // humanization vectors are fixed 16-wide

	// Pattern matching
	defaultMinBars          = 4     // shortest segment worth extracting
	defaultQualityThreshold = 0.8   // fraction of expected hits present
	defaultMatchTolerance   = 0.125 // beats - half a 16th either side
	defaultHihatReliability = 0.5   // mean strength gate for hihat trust

	// Snare articulation (sustain measurement)
	sustainSearchWindowMs = 500.0 // ms - bounded decay search
	sustainDecayDB        = -20.0 // dB below onset peak = note end
	sustainSmoothingMs    = 5.0   // ms - envelope moving average
	crossStickMaxMs       = 150.0 // ms - shorter sustain is a cross-stick
	noiseFloorAmplitude   = 1e-3  // -60dBFS - decay targets never sit below this

	// Hihat articulation (decay measurement)
	hihatDecayWindowMs = 300.0 // ms - bounded decay search
	hihatDecayFraction = 0.1   // of peak = decay endpoint (-20dB)
	hihatOpenMinMs     = 200.0 // ms - longer decay is an open hihat
	hihatClosedMaxMs   = 100.0 // ms - shorter decay is closed

	// Tempo detection
	tempoMinBPM        = 40.0  // autocorrelation search floor
	tempoMaxBPM        = 200.0 // autocorrelation search ceiling
	tempoHalveAboveBPM = 130.0 // reggae-family octave-error correction
	tempoDoubleBelow   = 60.0  // ska octave-error correction
	vintageDriftCV     = 0.02  // beat-interval CV above this = no click track
	driftIntervalLow   = 0.7   // of a beat - shortest gap counted for drift
	driftIntervalHigh  = 1.3   // of a beat - longest gap counted for drift

	// Humanization
	extractionMatchGate = 0.8 // matched-step fraction below this: refuse extraction
	onGridToleranceMs   = 5.0 // |deviation| within this counts as on-grid

	// Swing
	swingStraightPct  = 50.0 // perfectly even 8ths
	swingThresholdPct = 52.0 // above this the feel is swung
)

// DetectorConfig controls the onset-strength envelope and peak picking.
type DetectorConfig struct {
	FrameSize int     // STFT frame length in samples
	HopLength int     // samples between envelope frames
	PreMax    int     // frames - strict local max lookback
	PostMax   int     // frames - strict local max lookahead
	PreAvg    int     // frames - local median lookback
	PostAvg   int     // frames - local median lookahead
	Delta     float64 // required height above the local median
	Wait      int     // frames - debounce between accepted onsets
	Backtrack bool    // move onset times to the preceding envelope minimum

	// Band limiting (Hz). Zero BandHigh disables the band mask and the
	// whole spectrum contributes to the flux.
	BandLow  float64
	BandHigh float64

	// HumBins lists frequencies (Hz) masked out of the band, one bin
	// width to each side. Populated for the kick band from the local
	// mains frequency.
	HumBins []float64
}

// DefaultDetectorConfig returns the full-mix detection settings.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		FrameSize: defaultFrameSize,
		HopLength: defaultHopLength,
		PreMax:    defaultPreMax,
		PostMax:   defaultPostMax,
		PreAvg:    defaultPreAvg,
		PostAvg:   defaultPostAvg,
		Delta:     defaultDelta,
		Wait:      defaultWait,
	}
}

// KickDetectorConfig returns band-limited settings for the kick channel.
// humBins carries the local mains hum frequencies to mask (nil disables
// the guard).
func KickDetectorConfig(humBins []float64) DetectorConfig {
	cfg := DefaultDetectorConfig()
	cfg.Delta = kickDelta
	cfg.Wait = kickWait
	cfg.BandLow = kickBandLow
	cfg.BandHigh = kickBandHigh
	cfg.HumBins = humBins
	return cfg
}

// SnareDetectorConfig returns band-limited settings for the snare channel.
func SnareDetectorConfig() DetectorConfig {
	cfg := DefaultDetectorConfig()
	cfg.HopLength = stemHopLength
	cfg.Delta = snareDelta
	cfg.Wait = snareWait
	cfg.BandLow = snareBandLow
	cfg.BandHigh = snareBandHigh
	return cfg
}

// HihatDetectorConfig returns band-limited settings for the hihat channel.
func HihatDetectorConfig() DetectorConfig {
	cfg := DefaultDetectorConfig()
	cfg.HopLength = stemHopLength
	cfg.Delta = hihatDelta
	cfg.Wait = hihatWait
	cfg.BandLow = hihatBandLow
	cfg.BandHigh = hihatBandHigh
	return cfg
}

// Validate reports the first invalid detector field.
func (c DetectorConfig) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive, got %d: %w", c.FrameSize, ErrInvalidConfig)
	}
	if c.HopLength <= 0 {
		return fmt.Errorf("hop length must be positive, got %d: %w", c.HopLength, ErrInvalidConfig)
	}
	if c.HopLength > c.FrameSize {
		return fmt.Errorf("hop length %d exceeds frame size %d: %w", c.HopLength, c.FrameSize, ErrInvalidConfig)
	}
	if c.PreMax < 0 || c.PostMax < 0 || c.PreAvg < 0 || c.PostAvg < 0 {
		return fmt.Errorf("peak-picking context must not be negative: %w", ErrInvalidConfig)
	}
	if c.Delta < 0 {
		return fmt.Errorf("delta must not be negative, got %g: %w", c.Delta, ErrInvalidConfig)
	}
	if c.Wait < 0 {
		return fmt.Errorf("wait must not be negative, got %d: %w", c.Wait, ErrInvalidConfig)
	}
	if c.BandHigh > 0 && c.BandLow >= c.BandHigh {
		return fmt.Errorf("band low %g must sit below band high %g: %w", c.BandLow, c.BandHigh, ErrInvalidConfig)
	}
	return nil
}

// TuneDetectorForTempo caps the debounce so it never exceeds half a grid
// step at the given tempo. The per-instrument wait defaults assume
// mid-tempo reggae; at 180 BPM ska a 30-frame kick wait would swallow
// legitimate 8th-note kicks.
func TuneDetectorForTempo(cfg DetectorConfig, bpm float64, sampleRate int) DetectorConfig {
	if bpm <= 0 || sampleRate <= 0 || cfg.HopLength <= 0 {
		return cfg
	}

	gridInterval := 60.0 / bpm / defaultSubdivision
	maxWait := int(maxWaitGridFraction * gridInterval * float64(sampleRate) / float64(cfg.HopLength))
	if maxWait < 1 {
		maxWait = 1
	}
	if cfg.Wait > maxWait {
		cfg.Wait = maxWait
	}
	return cfg
}

// DynamicsConfig controls RMS measurement and velocity mapping.
type DynamicsConfig struct {
	WindowMs float64 // half-window each side of the onset, milliseconds
	DBMin    float64 // dBFS mapped to velocity 1
	DBMax    float64 // dBFS mapped to velocity 127
}

// DefaultDynamicsConfig returns the standard measurement window and
// velocity mapping range.
func DefaultDynamicsConfig() DynamicsConfig {
	return DynamicsConfig{
		WindowMs: defaultDynamicsWindowMs,
		DBMin:    defaultDBMin,
		DBMax:    defaultDBMax,
	}
}

// Validate reports the first invalid dynamics field.
func (c DynamicsConfig) Validate() error {
	if c.WindowMs <= 0 {
		return fmt.Errorf("dynamics window must be positive, got %gms: %w", c.WindowMs, ErrInvalidConfig)
	}
	if c.DBMin >= c.DBMax {
		return fmt.Errorf("dB floor %g must sit below dB ceiling %g: %w", c.DBMin, c.DBMax, ErrInvalidConfig)
	}
	return nil
}

// PatternConfig controls style matching and segment scanning.
type PatternConfig struct {
	MinBars          int     // sliding window length in bars
	QualityThreshold float64 // accept the first window at or above this
	MatchTolerance   float64 // beats - onset-to-template matching radius
	HihatReliability float64 // mean hihat strength required to trust the channel
}

// DefaultPatternConfig returns the standard scan settings.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		MinBars:          defaultMinBars,
		QualityThreshold: defaultQualityThreshold,
		MatchTolerance:   defaultMatchTolerance,
		HihatReliability: defaultHihatReliability,
	}
}

// Validate reports the first invalid pattern field.
func (c PatternConfig) Validate() error {
	if c.MinBars <= 0 {
		return fmt.Errorf("min bars must be positive, got %d: %w", c.MinBars, ErrInvalidConfig)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("quality threshold must be in [0,1], got %g: %w", c.QualityThreshold, ErrInvalidConfig)
	}
	if c.MatchTolerance <= 0 {
		return fmt.Errorf("match tolerance must be positive, got %g beats: %w", c.MatchTolerance, ErrInvalidConfig)
	}
	if c.HihatReliability < 0 || c.HihatReliability > 1 {
		return fmt.Errorf("hihat reliability must be in [0,1], got %g: %w", c.HihatReliability, ErrInvalidConfig)
	}
	return nil
}

// sanitizeFloat returns defaultVal if val is NaN or Inf.
func sanitizeFloat(val, defaultVal float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return defaultVal
	}
	return val
}

// clamp restricts val to the range [lo, hi].
func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
