package groove

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Pipeline stages in execution order, reported through ProgressFunc.
const (
	StageTempo = iota + 1
	StageOnsets
	StageDynamics
	StagePattern
	StageHumanization
	StageStatistics
)

// Overall completion after each stage. Tempo resolution is quick;
// onset detection dominates the runtime.
const (
	fracTempo        = 0.20
	fracOnsets       = 0.45
	fracDynamics     = 0.60
	fracPattern      = 0.75
	fracHumanization = 0.90
	fracStatistics   = 1.00
)

const defaultTimeSignature = "4/4"

// ProgressFunc receives a completion event per pipeline stage: the
// stage index, its display name, the overall fraction complete, and the
// running onset count.
type ProgressFunc func(stage int, name string, fraction float64, onsets int)

// Input is one recording ready for analysis: decoded mono samples plus
// whatever the caller already knows about it. BPM zero asks for
// detection; a positive BPM always wins. Stems are optional; with none
// present, channels come from the mixed-buffer heuristic.
type Input struct {
	FilePath      string
	Samples       []float64
	SampleRate    int
	Stems         map[Channel][]float64
	BPM           float64
	TimeSignature string    // "4/4" when empty
	StyleHint     StyleID   // optional; overrides style detection
	HumBins       []float64 // mains frequencies masked from the kick band
}

// Metadata describes the analyzed recording.
type Metadata struct {
	AudioFile       string  `json:"audio_file"`
	SampleRate      int     `json:"sample_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	TempoBPM        float64 `json:"tempo_bpm"`
	TimeSignature   string  `json:"time_signature"`
}

// GrooveRow is the per-onset analysis record, one per detected onset in
// time order.
type GrooveRow struct {
	OnsetTime         float64 `json:"onset_time"`
	BeatPosition      float64 `json:"beat_position"`
	BarNumber         int     `json:"bar_number"`
	DrumType          string  `json:"drum_type"`
	Velocity          int     `json:"velocity"`
	AmplitudeDB       float64 `json:"amplitude_db"`
	TimingDeviationMs float64 `json:"timing_deviation_ms"`
	VelocityVariation float64 `json:"velocity_variation"`
	OnsetStrength     float64 `json:"onset_strength"`

	// Step is the absolute grid step, kept for statistics and report
	// tables; the JSON document does not carry it.
	Step int `json:"-"`
}

// Result is the complete groove analysis of one recording. The caller
// owns it outright; the engine keeps no reference after returning.
type Result struct {
	Metadata     Metadata
	Onsets       []Onset
	Rows         []GrooveRow
	Tempo        *TempoResult // nil when the caller supplied the BPM
	Style        StyleID
	StyleScores  []StyleScore
	Segment      *Segment          // nil when no window cleared the quality gate
	Humanization *HumanizationData // nil without a valid segment
	Stats        HumanizationStats // over every groove row
	GridStats    GridVectorStats   // over every groove row
	Swing        SwingResult
	Bars         []BarReport
}

// EngineOptions assembles an analysis pipeline. The zero value uses
// catalog defaults end to end.
type EngineOptions struct {
	Detector    DetectorConfig      // mixed-buffer detection; zero uses DefaultDetectorConfig
	Dynamics    DynamicsConfig      // zero uses DefaultDynamicsConfig
	Pattern     PatternConfig       // zero uses DefaultPatternConfig
	Snare       SnareClassifierFunc // nil uses ClassifySnare
	Hihat       HihatClassifierFunc // nil uses ClassifyHihat
	AverageBars bool                // humanization as one averaged vector per segment
	Progress    ProgressFunc
}

// Engine runs the full groove analysis pipeline over one recording per
// call. An Engine is stateless between calls; independent recordings
// may be analyzed concurrently, one goroutine per call.
type Engine struct {
	detector  DetectorConfig
	dynamics  *DynamicsAnalyzer
	pattern   *PatternDetector
	extractor *HumanizationExtractor
	tempo     *TempoAnalyzer
	progress  ProgressFunc
}

// NewEngine validates the options and assembles the pipeline.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if reflect.DeepEqual(opts.Detector, DetectorConfig{}) {
		opts.Detector = DefaultDetectorConfig()
	}
	if err := opts.Detector.Validate(); err != nil {
		return nil, err
	}
	if opts.Dynamics == (DynamicsConfig{}) {
		opts.Dynamics = DefaultDynamicsConfig()
	}
	if opts.Pattern == (PatternConfig{}) {
		opts.Pattern = DefaultPatternConfig()
	}

	dyn, err := NewDynamicsAnalyzer(opts.Dynamics)
	if err != nil {
		return nil, err
	}
	pat, err := NewPatternDetector(opts.Pattern)
	if err != nil {
		return nil, err
	}
	ext, err := NewHumanizationExtractor(ExtractorOptions{
		Pattern:     opts.Pattern,
		Dynamics:    opts.Dynamics,
		Snare:       opts.Snare,
		Hihat:       opts.Hihat,
		AverageBars: opts.AverageBars,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		detector:  opts.Detector,
		dynamics:  dyn,
		pattern:   pat,
		extractor: ext,
		tempo:     NewTempoAnalyzer(),
		progress:  opts.Progress,
	}, nil
}

// Analyze runs the pipeline: tempo, onsets, dynamics, pattern,
// humanization, statistics. No-signal outcomes (no onsets, no valid
// segment) come back inside the Result; errors mean the analysis could
// not run at all. Cancellation during the segment scan returns the
// context's error and no result.
func (e *Engine) Analyze(ctx context.Context, in Input) (*Result, error) {
	tsig, err := normaliseTimeSignature(in.TimeSignature)
	if err != nil {
		return nil, err
	}
	if in.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d: %w", in.SampleRate, ErrInvalidConfig)
	}
	if in.BPM < 0 {
		return nil, fmt.Errorf("bpm must not be negative, got %g: %w", in.BPM, ErrInvalidConfig)
	}

	res := &Result{Style: StyleUnknown}

	// Tempo: the caller's BPM always wins; detection fills the gap.
	bpm := in.BPM
	if bpm == 0 {
		tr, err := e.tempo.Analyze(in.Samples, in.SampleRate, in.StyleHint)
		if err != nil {
			return nil, fmt.Errorf("tempo detection: %w", err)
		}
		res.Tempo = &tr
		bpm = tr.BPM
	}
	e.report(StageTempo, "Tempo", fracTempo, 0)

	grid, err := NewTimingGrid(bpm, defaultSubdivision)
	if err != nil {
		return nil, err
	}
	res.Metadata = Metadata{
		AudioFile:       in.FilePath,
		SampleRate:      in.SampleRate,
		DurationSeconds: float64(len(in.Samples)) / float64(in.SampleRate),
		TempoBPM:        bpm,
		TimeSignature:   tsig,
	}

	onsets, err := e.detectOnsets(in, bpm)
	if err != nil {
		return nil, err
	}
	e.report(StageOnsets, "Onsets", fracOnsets, len(onsets))

	audio := ChannelAudio{Mix: in.Samples, Stems: in.Stems, SampleRate: in.SampleRate}
	res.Rows = e.buildRows(onsets, audio, grid, len(in.Stems) > 0)
	res.Onsets = onsets
	e.report(StageDynamics, "Dynamics", fracDynamics, len(onsets))

	byChannel := groupByChannel(onsets)
	res.Style, res.StyleScores, err = e.resolveStyle(in.StyleHint, byChannel, bpm)
	if err != nil {
		return nil, err
	}

	if res.Style != StyleUnknown {
		seg, err := e.pattern.FindValidSegment(ctx, byChannel, res.Style, bpm)
		switch {
		case err == nil:
			res.Segment = seg
		case errors.Is(err, ErrNoValidSegment):
			// Legitimate outcome; the caller decides what to tell the user.
		default:
			return nil, err
		}

		res.Bars, err = e.pattern.ClassifyBars(byChannel, res.Style, bpm)
		if err != nil {
			return nil, err
		}
	}
	e.report(StagePattern, "Pattern", fracPattern, len(onsets))

	if res.Segment != nil {
		res.Humanization, err = e.extractor.Extract(res.Segment, byChannel, audio, bpm)
		if err != nil {
			return nil, fmt.Errorf("humanization extraction: %w", err)
		}
	}
	e.report(StageHumanization, "Humanization", fracHumanization, len(onsets))

	e.fillStatistics(res, byChannel, grid)
	e.report(StageStatistics, "Statistics", fracStatistics, len(onsets))

	return res, nil
}

// detectOnsets runs per-stem detection with the instrument presets when
// stems exist, or a single mixed-buffer pass otherwise. Channels of
// mixed-buffer onsets stay unknown here; the dynamics pass assigns them
// once velocities exist.
func (e *Engine) detectOnsets(in Input, bpm float64) ([]Onset, error) {
	if len(in.Stems) == 0 {
		det, err := NewOnsetDetector(TuneDetectorForTempo(e.detector, bpm, in.SampleRate))
		if err != nil {
			return nil, err
		}
		return det.Detect(in.Samples, in.SampleRate)
	}

	presets := map[Channel]DetectorConfig{
		ChannelKick:  KickDetectorConfig(in.HumBins),
		ChannelSnare: SnareDetectorConfig(),
		ChannelHihat: HihatDetectorConfig(),
	}

	var union []Onset
	for _, ch := range []Channel{ChannelKick, ChannelSnare, ChannelHihat} {
		stem := in.Stems[ch]
		if len(stem) == 0 {
			continue
		}
		det, err := NewOnsetDetector(TuneDetectorForTempo(presets[ch], bpm, in.SampleRate))
		if err != nil {
			return nil, err
		}
		list, err := det.Detect(stem, in.SampleRate)
		if err != nil {
			return nil, err
		}
		for i := range list {
			list[i].Channel = ch
		}
		union = append(union, list...)
	}

	sort.Slice(union, func(i, j int) bool { return union[i].Time < union[j].Time })
	return union, nil
}

// buildRows measures every onset against the grid and the dynamics
// window. Without stems the drum type comes from the position/loudness
// heuristic, written back onto the onset so the pattern stage sees it.
func (e *Engine) buildRows(onsets []Onset, audio ChannelAudio, grid *TimingGrid, haveStems bool) []GrooveRow {
	rows := make([]GrooveRow, len(onsets))
	for i, o := range onsets {
		point := grid.Quantize(o.Time)
		beatPos := grid.BeatPosition(o.Time)
		dyn := e.dynamics.Analyze(audio.bufferFor(o.Channel), audio.SampleRate, o.Time)

		ch := o.Channel
		if !haveStems {
			ch = GuessChannel(beatPos, dyn.Velocity)
			onsets[i].Channel = ch
		}

		rows[i] = GrooveRow{
			OnsetTime:         o.Time,
			BeatPosition:      beatPos,
			BarNumber:         grid.BarNumber(o.Time),
			DrumType:          string(ch),
			Velocity:          dyn.Velocity,
			AmplitudeDB:       dyn.AmplitudeDB,
			TimingDeviationMs: point.DeviationMs,
			OnsetStrength:     o.Strength,
			Step:              point.Step,
		}
	}

	// Velocity variation needs the mean over the whole take.
	if len(rows) > 0 {
		var mean float64
		for _, r := range rows {
			mean += float64(r.Velocity)
		}
		mean /= float64(len(rows))
		for i := range rows {
			v := float64(rows[i].Velocity)
			rows[i].VelocityVariation = clamp(math.Abs(v-mean)/127, 0, 1)
		}
	}
	return rows
}

// resolveStyle uses the caller's hint when it names a catalog style and
// falls back to template detection over kick and snare.
func (e *Engine) resolveStyle(hint StyleID, byChannel OnsetsByChannel, bpm float64) (StyleID, []StyleScore, error) {
	scores, err := e.pattern.ScoreStyles(byChannel[ChannelKick], byChannel[ChannelSnare], bpm)
	if err != nil {
		return StyleUnknown, nil, err
	}

	if _, ok := TemplateFor(hint); ok {
		return hint, scores, nil
	}

	style, err := e.pattern.DetectStyle(byChannel[ChannelKick], byChannel[ChannelSnare], bpm)
	if err != nil {
		return StyleUnknown, nil, err
	}
	return style, scores, nil
}

// fillStatistics computes the whole-take summaries: humanization stats
// and grid placement over every row, and swing from the steadiest
// interval source available. Hi-hat carries the 8th-note pulse, so its
// channel is preferred when it produced onsets.
func (e *Engine) fillStatistics(res *Result, byChannel OnsetsByChannel, grid *TimingGrid) {
	devs := make([]float64, len(res.Rows))
	vels := make([]int, len(res.Rows))
	steps := make([]int, len(res.Rows))
	for i, r := range res.Rows {
		devs[i] = r.TimingDeviationMs
		vels[i] = r.Velocity
		_, steps[i] = grid.StepInBar(r.Step)
	}
	res.Stats = ComputeHumanizationStats(devs, vels, steps)
	res.GridStats = ComputeGridVectorStats(devs)

	swingSource := byChannel[ChannelHihat]
	if len(swingSource) < minSwingIntervals+1 {
		swingSource = res.Onsets
	}
	res.Swing = AnalyzeSwing(swingSource)
}

func (e *Engine) report(stage int, name string, fraction float64, onsets int) {
	if e.progress != nil {
		e.progress(stage, name, fraction, onsets)
	}
}

// groupByChannel splits onsets per drum voice, preserving time order.
func groupByChannel(onsets []Onset) OnsetsByChannel {
	out := OnsetsByChannel{}
	for _, o := range onsets {
		out[o.Channel] = append(out[o.Channel], o)
	}
	return out
}

// normaliseTimeSignature fills the default and rejects anything the
// 16-step grid cannot represent. The style catalog is 4/4 throughout.
func normaliseTimeSignature(s string) (string, error) {
	if s == "" {
		return defaultTimeSignature, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed time signature %q: %w", s, ErrInvalidConfig)
	}
	num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", fmt.Errorf("malformed time signature %q: %w", s, ErrInvalidConfig)
	}
	den, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", fmt.Errorf("malformed time signature %q: %w", s, ErrInvalidConfig)
	}
	if num != beatsPerBar || den != 4 {
		return "", fmt.Errorf("unsupported time signature %d/%d, only 4/4 is analyzable: %w", num, den, ErrInvalidConfig)
	}
	return defaultTimeSignature, nil
}
