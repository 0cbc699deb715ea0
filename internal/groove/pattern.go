package groove

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNoValidSegment reports that no window of bars matched the style
// template well enough to extract from. It is an explicit outcome the
// caller must surface, never a degraded low-quality segment.
var ErrNoValidSegment = errors.New("no valid segment found")

// OnsetsByChannel groups detected onsets per drum voice.
type OnsetsByChannel map[Channel][]Onset

// StyleScore pairs a style with its template match score in [0,1].
type StyleScore struct {
	Style StyleID
	Score float64
}

// Segment is a validated stretch of bars that matches a style template
// well enough for humanization extraction. Bars are 1-based and
// inclusive at both ends.
type Segment struct {
	Style         StyleID
	StartBar      int
	EndBar        int
	StartTime     float64 // seconds
	EndTime       float64 // seconds
	Quality       float64 // fraction of expected template hits present
	HihatReliable bool
}

// Bars returns the segment length in bars.
func (s *Segment) Bars() int { return s.EndBar - s.StartBar + 1 }

// BarClass labels how one bar relates to the style template.
type BarClass string

const (
	BarRhythm      BarClass = "RHYTHM"
	BarVariation   BarClass = "VARIATION"
	BarFillOrBreak BarClass = "FILL_OR_BREAK"
)

// BarReport is the per-bar diagnostic: how many template hits landed,
// went missing, or arrived unexpected, and the resulting label.
type BarReport struct {
	Bar     int
	Class   BarClass
	Matched int
	Missing int
	Extra   int
}

// PatternDetector matches onset sequences against the style catalog and
// locates segments stable enough to extract humanization from.
type PatternDetector struct {
	cfg PatternConfig
}

// NewPatternDetector validates the configuration and returns a detector.
func NewPatternDetector(cfg PatternConfig) (*PatternDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PatternDetector{cfg: cfg}, nil
}

// ScoreStyles scores every catalog template against the kick and snare
// onsets. Hi-hat is deliberately left out of style scoring. A template's
// score is the fraction of its expected kick and snare hits, across all
// bars the recording spans, that an onset of the right channel lands on
// within the matching tolerance.
func (d *PatternDetector) ScoreStyles(kick, snare []Onset, bpm float64) ([]StyleScore, error) {
	grid, err := NewTimingGrid(bpm, defaultSubdivision)
	if err != nil {
		return nil, err
	}

	kickTimes := sortedTimes(kick)
	snareTimes := sortedTimes(snare)
	lastBar := lastBarOf(OnsetsByChannel{ChannelKick: kick, ChannelSnare: snare}, grid)
	if lastBar == 0 {
		return nil, nil
	}

	tol := d.cfg.MatchTolerance * grid.BeatInterval()
	scores := make([]StyleScore, 0, len(styleCatalog))
	for _, t := range styleCatalog {
		matched := countMatchedSteps(kickTimes, t.KickSteps, 1, lastBar, grid, tol) +
			countMatchedSteps(snareTimes, t.SnareSteps, 1, lastBar, grid, tol)
		expected := (len(t.KickSteps) + len(t.SnareSteps)) * lastBar
		score := 0.0
		if expected > 0 {
			score = float64(matched) / float64(expected)
		}
		scores = append(scores, StyleScore{Style: t.ID, Score: score})
	}
	return scores, nil
}

// DetectStyle returns the style whose template best explains the kick
// and snare onsets. Ties go to the more distinctive template, since the
// looser ones over-match. No onsets, or nothing matching anywhere,
// comes back as StyleUnknown.
func (d *PatternDetector) DetectStyle(kick, snare []Onset, bpm float64) (StyleID, error) {
	scores, err := d.ScoreStyles(kick, snare, bpm)
	if err != nil {
		return StyleUnknown, err
	}
	if len(scores) == 0 {
		return StyleUnknown, nil
	}

	byStyle := make(map[StyleID]float64, len(scores))
	for _, s := range scores {
		byStyle[s.Style] = s.Score
	}

	best := StyleUnknown
	bestScore := 0.0
	for _, id := range specificityOrder {
		if s, ok := byStyle[id]; ok && s > bestScore {
			best, bestScore = id, s
		}
	}
	return best, nil
}

// FindValidSegment scans forward bar-by-bar for the first window of
// MinBars consecutive bars whose quality reaches the acceptance
// threshold. Quality is the fraction of the template's expected kick and
// snare hits present in the window; hi-hat joins the count only when its
// mean onset strength across the window clears the reliability gate.
//
// The first acceptable window wins: style is locally stable in this
// genre family, and scanning on would only trade the verse for a fill.
// Reaching the end without a hit returns ErrNoValidSegment. Cancellation
// is checked between windows and returns the context's error instead.
func (d *PatternDetector) FindValidSegment(ctx context.Context, onsets OnsetsByChannel, style StyleID, bpm float64) (*Segment, error) {
	tmpl, ok := TemplateFor(style)
	if !ok {
		return nil, fmt.Errorf("no template for style %q: %w", style, ErrInvalidConfig)
	}
	grid, err := NewTimingGrid(bpm, defaultSubdivision)
	if err != nil {
		return nil, err
	}

	kickTimes := sortedTimes(onsets[ChannelKick])
	snareTimes := sortedTimes(onsets[ChannelSnare])
	hihat := onsets[ChannelHihat]
	hihatTimes := sortedTimes(hihat)

	lastBar := lastBarOf(onsets, grid)
	tol := d.cfg.MatchTolerance * grid.BeatInterval()
	barDur := float64(beatsPerBar) * grid.BeatInterval()

	for start := 1; start+d.cfg.MinBars-1 <= lastBar; start++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + d.cfg.MinBars - 1
		from := float64(start-1) * barDur
		to := float64(end) * barDur

		hihatOK := meanStrengthWithin(hihat, from, to) >= d.cfg.HihatReliability

		matched := countMatchedSteps(kickTimes, tmpl.KickSteps, start, end, grid, tol) +
			countMatchedSteps(snareTimes, tmpl.SnareSteps, start, end, grid, tol)
		expected := (len(tmpl.KickSteps) + len(tmpl.SnareSteps)) * d.cfg.MinBars
		if hihatOK {
			matched += countMatchedSteps(hihatTimes, tmpl.HihatSteps, start, end, grid, tol)
			expected += len(tmpl.HihatSteps) * d.cfg.MinBars
		}
		if expected == 0 {
			continue
		}

		quality := float64(matched) / float64(expected)
		if quality >= d.cfg.QualityThreshold {
			return &Segment{
				Style:         style,
				StartBar:      start,
				EndBar:        end,
				StartTime:     from,
				EndTime:       to,
				Quality:       quality,
				HihatReliable: hihatOK,
			}, nil
		}
	}
	return nil, ErrNoValidSegment
}

// ClassifyBars labels every bar the recording spans against the style
// template. Diagnostics only; nothing downstream gates on these.
func (d *PatternDetector) ClassifyBars(onsets OnsetsByChannel, style StyleID, bpm float64) ([]BarReport, error) {
	tmpl, ok := TemplateFor(style)
	if !ok {
		return nil, fmt.Errorf("no template for style %q: %w", style, ErrInvalidConfig)
	}
	grid, err := NewTimingGrid(bpm, defaultSubdivision)
	if err != nil {
		return nil, err
	}

	lastBar := lastBarOf(onsets, grid)
	if lastBar == 0 {
		return nil, nil
	}

	tol := d.cfg.MatchTolerance * grid.BeatInterval()
	channels := []Channel{ChannelKick, ChannelSnare, ChannelHihat}
	times := make(map[Channel][]float64, len(channels))
	for _, ch := range channels {
		times[ch] = sortedTimes(onsets[ch])
	}

	reports := make([]BarReport, 0, lastBar)
	for bar := 1; bar <= lastBar; bar++ {
		var r BarReport
		r.Bar = bar

		events := 0
		for _, ch := range channels {
			steps := tmpl.Steps(ch)
			matched := countMatchedSteps(times[ch], steps, bar, bar, grid, tol)
			r.Matched += matched
			r.Missing += len(steps) - matched

			inBar := countWithin(times[ch], float64(bar-1)*beatsPerBar*grid.BeatInterval(), float64(bar)*beatsPerBar*grid.BeatInterval())
			events += inBar
			if extra := inBar - matched; extra > 0 {
				r.Extra += extra
			}
		}

		diff := r.Missing + r.Extra
		switch {
		case diff == 0:
			r.Class = BarRhythm
		case float64(diff) > float64(events)/2:
			r.Class = BarFillOrBreak
		default:
			r.Class = BarVariation
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// countMatchedSteps counts how many template steps across bars
// [fromBar, toBar] have an onset within tol seconds of their expected
// time. Each step matches at most once per bar.
func countMatchedSteps(times []float64, steps []int, fromBar, toBar int, grid *TimingGrid, tol float64) int {
	if len(times) == 0 || len(steps) == 0 {
		return 0
	}
	per := grid.StepsPerBar()
	matched := 0
	for bar := fromBar; bar <= toBar; bar++ {
		for _, s := range steps {
			expected := float64((bar-1)*per+s-1) * grid.GridInterval()
			if hasTimeNear(times, expected, tol) {
				matched++
			}
		}
	}
	return matched
}

// hasTimeNear reports whether sorted times contains a value within tol
// of t.
func hasTimeNear(times []float64, t, tol float64) bool {
	i := sort.SearchFloat64s(times, t)
	if i < len(times) && times[i]-t <= tol {
		return true
	}
	return i > 0 && t-times[i-1] <= tol
}

// countWithin counts sorted times inside the half-open interval
// [from, to).
func countWithin(times []float64, from, to float64) int {
	lo := sort.SearchFloat64s(times, from)
	hi := sort.SearchFloat64s(times, to)
	return hi - lo
}

// meanStrengthWithin averages onset strength over [from, to). No onsets
// in the interval means zero strength, which always fails a positive
// reliability gate.
func meanStrengthWithin(onsets []Onset, from, to float64) float64 {
	var sum float64
	n := 0
	for _, o := range onsets {
		if o.Time >= from && o.Time < to {
			sum += o.Strength
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// sortedTimes extracts onset times in ascending order.
func sortedTimes(onsets []Onset) []float64 {
	times := make([]float64, len(onsets))
	for i, o := range onsets {
		times[i] = o.Time
	}
	sort.Float64s(times)
	return times
}

// lastBarOf returns the highest 1-based bar number any onset falls in,
// or zero when there are no onsets.
func lastBarOf(onsets OnsetsByChannel, grid *TimingGrid) int {
	last := 0
	for _, list := range onsets {
		for _, o := range list {
			if b := grid.BarNumber(o.Time); b > last {
				last = b
			}
		}
	}
	return last
}
