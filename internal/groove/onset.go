package groove

import "fmt"

// Channel identifies the drum voice an onset belongs to. Assignment
// happens after detection: from the stem the onset was found in, or from
// the mixed-buffer heuristic when no stems are available.
type Channel string

const (
	ChannelKick    Channel = "kick"
	ChannelSnare   Channel = "snare"
	ChannelHihat   Channel = "hihat"
	ChannelUnknown Channel = "unknown"
)

// Onset is a detected percussive event. Immutable once created.
type Onset struct {
	Time     float64 // seconds from recording start
	Strength float64 // relative envelope peak height in [0,1]
	Channel  Channel
}

// OnsetDetector finds percussive event times in a mono sample buffer.
type OnsetDetector struct {
	cfg DetectorConfig
}

// NewOnsetDetector validates the configuration and returns a detector.
func NewOnsetDetector(cfg DetectorConfig) (*OnsetDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OnsetDetector{cfg: cfg}, nil
}

// Config returns the detector's configuration.
func (d *OnsetDetector) Config() DetectorConfig {
	return d.cfg
}

// Detect returns the ordered, time-increasing onsets in samples. A
// buffer shorter than one analysis frame, or one with no envelope
// activity, yields an empty result; silence is a legitimate outcome,
// not an error. An invalid sample rate is a configuration error.
func (d *OnsetDetector) Detect(samples []float64, sampleRate int) ([]Onset, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, ErrInvalidConfig)
	}
	if len(samples) < d.cfg.FrameSize {
		return nil, nil
	}

	env := onsetEnvelope(samples, sampleRate, d.cfg)
	if normaliseEnvelope(env) <= 0 {
		return nil, nil
	}

	return d.pickPeaks(env, sampleRate), nil
}

// pickPeaks runs peak picking over a normalised envelope: a frame is an
// onset iff it is a strict local maximum over the pre/post context AND
// rises above the local median by delta. Accepted peaks suppress further
// onsets for Wait frames. With Backtrack set, the reported time moves to
// the nearest preceding envelope minimum (the attack start) while the
// strength stays the peak height.
func (d *OnsetDetector) pickPeaks(env []float64, sampleRate int) []Onset {
	cfg := d.cfg
	var onsets []Onset
	lastPeak := -cfg.Wait - 1

	for t := range env {
		if t-lastPeak <= cfg.Wait {
			continue
		}
		if !strictLocalMax(env, t, cfg.PreMax, cfg.PostMax) {
			continue
		}
		if env[t] <= localMedian(env, t, cfg.PreAvg, cfg.PostAvg)+cfg.Delta {
			continue
		}

		frame := t
		if cfg.Backtrack {
			frame = backtrackToMinimum(env, t)
		}
		onsets = append(onsets, Onset{
			Time:     d.frameTime(frame, sampleRate),
			Strength: env[t],
			Channel:  ChannelUnknown,
		})
		lastPeak = t
	}
	return onsets
}

// frameTime converts an envelope frame index to seconds. Each analysis
// frame spans FrameSize samples starting at frame*HopLength; the event
// it measures sits at the frame centre.
func (d *OnsetDetector) frameTime(frame, sampleRate int) float64 {
	return (float64(frame*d.cfg.HopLength) + float64(d.cfg.FrameSize)/2) / float64(sampleRate)
}

// strictLocalMax reports whether env[t] strictly exceeds every other
// value in the clipped window [t-pre, t+post].
func strictLocalMax(env []float64, t, pre, post int) bool {
	lo := t - pre
	if lo < 0 {
		lo = 0
	}
	hi := t + post
	if hi > len(env)-1 {
		hi = len(env) - 1
	}
	for i := lo; i <= hi; i++ {
		if i != t && env[i] >= env[t] {
			return false
		}
	}
	return true
}

// backtrackToMinimum walks backwards from a peak to the nearest
// preceding local minimum of the envelope. The comparison is strict: on
// a flat valley floor the walk stops at the edge nearest the rise, so a
// long silent stretch cannot drag the onset back to the buffer start.
func backtrackToMinimum(env []float64, peak int) int {
	k := peak
	for k > 0 && env[k-1] < env[k] {
		k--
	}
	return k
}
