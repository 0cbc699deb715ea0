package groove

import "math"

// Dynamics describes the loudness of one onset: its local RMS energy,
// that energy on a decibel scale, and the decibel value mapped onto the
// 1..127 range used by sequencers and drum samplers.
type Dynamics struct {
	RMS         float64
	AmplitudeDB float64
	Velocity    int
}

// DynamicsAnalyzer measures per-onset loudness over a short window
// centred on the event time.
type DynamicsAnalyzer struct {
	cfg DynamicsConfig
}

// NewDynamicsAnalyzer validates the configuration and returns an analyzer.
func NewDynamicsAnalyzer(cfg DynamicsConfig) (*DynamicsAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DynamicsAnalyzer{cfg: cfg}, nil
}

// Analyze measures the dynamics of the event at time t seconds over the
// window [t-w, t+w], with w the configured half-window. The window is
// clipped to the buffer, so onsets near the edges use whatever samples
// exist. An empty window yields zero RMS, which maps to the silence
// floor rather than an error.
func (a *DynamicsAnalyzer) Analyze(samples []float64, sampleRate int, t float64) Dynamics {
	half := a.cfg.WindowMs / 1000.0 * float64(sampleRate)
	lo := int(t*float64(sampleRate) - half)
	hi := int(t*float64(sampleRate) + half)
	if lo < 0 {
		lo = 0
	}
	if hi > len(samples) {
		hi = len(samples)
	}

	rms := rootMeanSquare(samples, lo, hi)
	db := 20 * math.Log10(rms+dbEpsilon)
	return Dynamics{
		RMS:         rms,
		AmplitudeDB: db,
		Velocity:    a.velocity(db),
	}
}

// velocity maps a decibel value onto 1..127. The mapping is linear
// between the configured floor and ceiling, truncated to an integer and
// clamped, so anything at or below the floor plays at velocity 1 and
// anything at or above the ceiling at full 127.
func (a *DynamicsAnalyzer) velocity(db float64) int {
	v := int(127 * (db - a.cfg.DBMin) / (a.cfg.DBMax - a.cfg.DBMin))
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}

// rootMeanSquare computes the RMS of samples[lo:hi]. An empty range is
// silence.
func rootMeanSquare(samples []float64, lo, hi int) float64 {
	if hi <= lo {
		return 0
	}
	var sum float64
	for _, s := range samples[lo:hi] {
		sum += s * s
	}
	return math.Sqrt(sum / float64(hi-lo))
}
