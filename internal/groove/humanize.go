package groove

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrLowQualitySegment reports that a segment handed to the extractor no
// longer clears the acceptance gate. The extractor re-checks instead of
// trusting the segment's recorded quality.
var ErrLowQualitySegment = errors.New("segment quality below extraction gate")

// StepSample is one of the sixteen per-bar humanization slots. Present
// separates a slot with no matching onset from one measured dead on the
// grid; zero is a legitimate deviation, so absence needs its own flag.
type StepSample struct {
	Present      bool
	Channel      Channel
	DeviationMs  float64
	Velocity     int
	Articulation string // cross_stick, snare_full, open, closed; empty when unmeasured
}

// BarVector is one bar of extracted feel: a sample, or an absence, for
// each grid step. Bar is the 1-based bar within the recording; zero
// marks a vector averaged across a segment.
type BarVector struct {
	Bar   int
	Steps [stepsPerBar]StepSample
}

// HumanizationData is the feel extracted from a validated segment: what
// a drum machine would need to play the part back like the drummer did.
type HumanizationData struct {
	Style    StyleID
	StartBar int
	EndBar   int
	Averaged bool
	Bars     []BarVector
}

// ChannelAudio hands measurement code whatever isolated audio exists.
// Mix is the fallback when a channel has no stem.
type ChannelAudio struct {
	Mix        []float64
	Stems      map[Channel][]float64
	SampleRate int
}

// bufferFor returns the stem for a channel, or the mix.
func (c ChannelAudio) bufferFor(ch Channel) []float64 {
	if b, ok := c.Stems[ch]; ok && len(b) > 0 {
		return b
	}
	return c.Mix
}

// ExtractorOptions configures a HumanizationExtractor. The zero value
// works: catalog defaults, heuristic classifiers, one vector per bar.
type ExtractorOptions struct {
	Pattern     PatternConfig       // zero value uses DefaultPatternConfig
	Dynamics    DynamicsConfig      // zero value uses DefaultDynamicsConfig
	Snare       SnareClassifierFunc // nil uses ClassifySnare
	Hihat       HihatClassifierFunc // nil uses ClassifyHihat
	AverageBars bool                // emit one averaged vector instead of one per bar
}

// HumanizationExtractor pulls per-step timing deviations and velocities
// out of a validated segment.
type HumanizationExtractor struct {
	cfg      PatternConfig
	dynamics *DynamicsAnalyzer
	snare    SnareClassifierFunc
	hihat    HihatClassifierFunc
	average  bool
}

// NewHumanizationExtractor fills unset options with defaults and
// validates the rest.
func NewHumanizationExtractor(opts ExtractorOptions) (*HumanizationExtractor, error) {
	if opts.Pattern == (PatternConfig{}) {
		opts.Pattern = DefaultPatternConfig()
	}
	if err := opts.Pattern.Validate(); err != nil {
		return nil, err
	}
	if opts.Dynamics == (DynamicsConfig{}) {
		opts.Dynamics = DefaultDynamicsConfig()
	}
	dyn, err := NewDynamicsAnalyzer(opts.Dynamics)
	if err != nil {
		return nil, err
	}

	snare := opts.Snare
	if snare == nil {
		snare = ClassifySnare
	}
	hihat := opts.Hihat
	if hihat == nil {
		hihat = ClassifyHihat
	}

	return &HumanizationExtractor{
		cfg:      opts.Pattern,
		dynamics: dyn,
		snare:    snare,
		hihat:    hihat,
		average:  opts.AverageBars,
	}, nil
}

// Extract measures one BarVector per segment bar. For every step the
// template expects a hit on, the nearest onset of an expected channel
// within tolerance fills the slot; steps with no match stay absent.
// Kick and snare extract unconditionally; hi-hat steps fill only when
// the segment found the channel reliable. A segment whose matched
// fraction has fallen under the acceptance gate refuses extraction.
func (e *HumanizationExtractor) Extract(seg *Segment, onsets OnsetsByChannel, audio ChannelAudio, bpm float64) (*HumanizationData, error) {
	if seg == nil {
		return nil, fmt.Errorf("nil segment: %w", ErrInvalidConfig)
	}
	tmpl, ok := TemplateFor(seg.Style)
	if !ok {
		return nil, fmt.Errorf("no template for style %q: %w", seg.Style, ErrInvalidConfig)
	}
	grid, err := NewTimingGrid(bpm, defaultSubdivision)
	if err != nil {
		return nil, err
	}

	times := map[Channel][]float64{
		ChannelKick:  sortedTimes(onsets[ChannelKick]),
		ChannelSnare: sortedTimes(onsets[ChannelSnare]),
		ChannelHihat: sortedTimes(onsets[ChannelHihat]),
	}
	tol := e.cfg.MatchTolerance * grid.BeatInterval()

	if q := segmentQuality(times, tmpl, seg, grid, tol); q < extractionMatchGate {
		return nil, fmt.Errorf("matched fraction %.2f under %.2f: %w", q, extractionMatchGate, ErrLowQualitySegment)
	}

	data := &HumanizationData{
		Style:    seg.Style,
		StartBar: seg.StartBar,
		EndBar:   seg.EndBar,
	}
	for bar := seg.StartBar; bar <= seg.EndBar; bar++ {
		data.Bars = append(data.Bars, e.extractBar(bar, tmpl, seg, times, audio, grid, tol))
	}
	if e.average {
		data.Bars = []BarVector{averageBars(data.Bars)}
		data.Averaged = true
	}
	return data, nil
}

func (e *HumanizationExtractor) extractBar(bar int, tmpl StyleTemplate, seg *Segment, times map[Channel][]float64, audio ChannelAudio, grid *TimingGrid, tol float64) BarVector {
	vec := BarVector{Bar: bar}
	per := grid.StepsPerBar()

	for step := 1; step <= per && step <= stepsPerBar; step++ {
		expected := float64((bar-1)*per+step-1) * grid.GridInterval()

		bestDist := math.Inf(1)
		var bestCh Channel
		var bestTime float64
		for _, ch := range expectedChannels(tmpl, step, seg.HihatReliable) {
			t, found := nearestTime(times[ch], expected, tol)
			if !found {
				continue
			}
			if d := math.Abs(t - expected); d < bestDist {
				bestDist, bestCh, bestTime = d, ch, t
			}
		}
		if math.IsInf(bestDist, 1) {
			continue
		}

		dyn := e.dynamics.Analyze(audio.bufferFor(bestCh), audio.SampleRate, bestTime)
		vec.Steps[step-1] = StepSample{
			Present:      true,
			Channel:      bestCh,
			DeviationMs:  (bestTime - expected) * 1000,
			Velocity:     dyn.Velocity,
			Articulation: e.articulationFor(bestCh, audio, bestTime),
		}
	}
	return vec
}

// articulationFor classifies a hit when an isolated stem exists for its
// channel. The classifiers are contracted for isolated audio, so a
// mixed-only analysis leaves articulation unmeasured.
func (e *HumanizationExtractor) articulationFor(ch Channel, audio ChannelAudio, t float64) string {
	stem, ok := audio.Stems[ch]
	if !ok || len(stem) == 0 {
		return ""
	}
	switch ch {
	case ChannelSnare:
		return string(e.snare(stem, audio.SampleRate, t))
	case ChannelHihat:
		return string(e.hihat(stem, audio.SampleRate, t).Articulation)
	}
	return ""
}

// expectedChannels lists the drum voices the template expects at a
// 1-based step, in kick, snare, hihat order.
func expectedChannels(tmpl StyleTemplate, step int, hihatReliable bool) []Channel {
	var out []Channel
	if slices.Contains(tmpl.KickSteps, step) {
		out = append(out, ChannelKick)
	}
	if slices.Contains(tmpl.SnareSteps, step) {
		out = append(out, ChannelSnare)
	}
	if hihatReliable && slices.Contains(tmpl.HihatSteps, step) {
		out = append(out, ChannelHihat)
	}
	return out
}

// segmentQuality recomputes the matched fraction over a segment's bars,
// mirroring the acceptance scan.
func segmentQuality(times map[Channel][]float64, tmpl StyleTemplate, seg *Segment, grid *TimingGrid, tol float64) float64 {
	matched := countMatchedSteps(times[ChannelKick], tmpl.KickSteps, seg.StartBar, seg.EndBar, grid, tol) +
		countMatchedSteps(times[ChannelSnare], tmpl.SnareSteps, seg.StartBar, seg.EndBar, grid, tol)
	expected := (len(tmpl.KickSteps) + len(tmpl.SnareSteps)) * seg.Bars()
	if seg.HihatReliable {
		matched += countMatchedSteps(times[ChannelHihat], tmpl.HihatSteps, seg.StartBar, seg.EndBar, grid, tol)
		expected += len(tmpl.HihatSteps) * seg.Bars()
	}
	if expected == 0 {
		return 0
	}
	return float64(matched) / float64(expected)
}

// nearestTime returns the value in sorted times closest to t, if any
// lies within tol.
func nearestTime(times []float64, t, tol float64) (float64, bool) {
	if len(times) == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(times, t)
	best := math.Inf(1)
	var at float64
	if i < len(times) {
		best, at = times[i]-t, times[i]
	}
	if i > 0 && t-times[i-1] < best {
		best, at = t-times[i-1], times[i-1]
	}
	if best > tol {
		return 0, false
	}
	return at, true
}

// averageBars folds per-bar vectors into one typical bar: per step, the
// mean deviation and velocity over the bars where the step is present,
// and the most common articulation.
func averageBars(bars []BarVector) BarVector {
	var avg BarVector
	for i := range avg.Steps {
		var devSum, velSum float64
		var ch Channel
		n := 0
		arts := make(map[string]int)

		for _, b := range bars {
			s := b.Steps[i]
			if !s.Present {
				continue
			}
			devSum += s.DeviationMs
			velSum += float64(s.Velocity)
			if ch == "" {
				ch = s.Channel
			}
			if s.Articulation != "" {
				arts[s.Articulation]++
			}
			n++
		}
		if n == 0 {
			continue
		}
		avg.Steps[i] = StepSample{
			Present:      true,
			Channel:      ch,
			DeviationMs:  devSum / float64(n),
			Velocity:     int(math.Round(velSum / float64(n))),
			Articulation: commonest(arts),
		}
	}
	return avg
}

// commonest returns the most frequent key; ties break lexicographically
// so the result is stable.
func commonest(counts map[string]int) string {
	best, bestN := "", 0
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best
}

// HumanizationStats summarises the feel of a performance: where it sits
// against the grid and how much the dynamics breathe.
type HumanizationStats struct {
	// AvgTimingDeviationMs is signed: negative means the player rushes
	// ahead of the grid, positive means dragging behind it.
	AvgTimingDeviationMs float64 `json:"avg_timing_deviation_ms"`
	StdTimingDeviationMs float64 `json:"std_timing_deviation_ms"`
	AvgVelocityVariation float64 `json:"avg_velocity_variation"`
	SwingFactor          float64 `json:"swing_factor"`
}

// ComputeHumanizationStats summarises parallel slices of deviations,
// velocities, and 1-based bar steps. Empty input yields the zero value.
func ComputeHumanizationStats(devMs []float64, velocities []int, steps []int) HumanizationStats {
	if len(devMs) == 0 {
		return HumanizationStats{}
	}

	out := HumanizationStats{
		AvgTimingDeviationMs: stat.Mean(devMs, nil),
		StdTimingDeviationMs: stat.PopStdDev(devMs, nil),
		SwingFactor:          swingFactor(devMs, steps),
	}

	if len(velocities) > 0 {
		velFloats := make([]float64, len(velocities))
		for i, v := range velocities {
			velFloats[i] = float64(v)
		}
		mean := stat.Mean(velFloats, nil)
		var sum float64
		for _, v := range velFloats {
			sum += math.Abs(v-mean) / 127
		}
		out.AvgVelocityVariation = sum / float64(len(velFloats))
	}
	return out
}

// swingFactor measures the gap between mean deviations on odd bar steps
// {1,3,5,...} and even steps {2,4,6,...}, scaled by a fixed 1/100 and
// clipped to [0,1]. The split is fixed by step parity, not per style.
// Fewer than four samples, or either side empty, reads as no swing.
func swingFactor(devMs []float64, steps []int) float64 {
	if len(devMs) < 4 || len(steps) != len(devMs) {
		return 0
	}

	var odd, even []float64
	for i, s := range steps {
		if s%2 == 1 {
			odd = append(odd, devMs[i])
		} else {
			even = append(even, devMs[i])
		}
	}
	if len(odd) == 0 || len(even) == 0 {
		return 0
	}
	return clamp(math.Abs(stat.Mean(odd, nil)-stat.Mean(even, nil))/100, 0, 1)
}

// Stats summarises the present slots of the extracted vectors.
func (h *HumanizationData) Stats() HumanizationStats {
	devs, vels, steps := h.flatten()
	return ComputeHumanizationStats(devs, vels, steps)
}

// GridStats summarises grid placement over the present slots.
func (h *HumanizationData) GridStats() GridVectorStats {
	devs, _, _ := h.flatten()
	return ComputeGridVectorStats(devs)
}

func (h *HumanizationData) flatten() (devs []float64, velocities []int, steps []int) {
	for _, bar := range h.Bars {
		for i, s := range bar.Steps {
			if !s.Present {
				continue
			}
			devs = append(devs, s.DeviationMs)
			velocities = append(velocities, s.Velocity)
			steps = append(steps, i+1)
		}
	}
	return devs, velocities, steps
}

// GridVectorStats describes how a performance sits on the grid. Rushing
// is early (negative deviation), dragging late (positive); the average
// and maximum take absolute deviations.
type GridVectorStats struct {
	RushingPercent  float64 `json:"rushing_percent"`
	DraggingPercent float64 `json:"dragging_percent"`
	OnGridPercent   float64 `json:"on_grid_percent"`
	AvgDeviationMs  float64 `json:"avg_deviation_ms"`
	MaxDeviationMs  float64 `json:"max_deviation_ms"`
}

// ComputeGridVectorStats buckets each deviation as rushing, dragging, or
// on-grid within the 5ms tolerance.
func ComputeGridVectorStats(devMs []float64) GridVectorStats {
	if len(devMs) == 0 {
		return GridVectorStats{}
	}

	var rushing, dragging, onGrid int
	var absSum, absMax float64
	for _, d := range devMs {
		switch {
		case d < -onGridToleranceMs:
			rushing++
		case d > onGridToleranceMs:
			dragging++
		default:
			onGrid++
		}
		a := math.Abs(d)
		absSum += a
		if a > absMax {
			absMax = a
		}
	}

	total := float64(len(devMs))
	return GridVectorStats{
		RushingPercent:  float64(rushing) / total * 100,
		DraggingPercent: float64(dragging) / total * 100,
		OnGridPercent:   float64(onGrid) / total * 100,
		AvgDeviationMs:  absSum / total,
		MaxDeviationMs:  absMax,
	}
}
