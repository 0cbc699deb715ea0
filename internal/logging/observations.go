package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/riddimlab/grooveprint/internal/groove"
)

// Observation represents a single piece of performance feedback derived
// from groove analysis results.
type Observation struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable note (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "loose_timing")
}

// MaxObservations is the maximum number of observations to return.
const MaxObservations = 5

// minRowsForTimingRules is the fewest groove rows before the timing and
// dynamics rules have enough material to say anything.
const minRowsForTimingRules = 16

// GenerateObservations analyses a groove result and returns prioritised
// notes about the performance and the extraction.
func GenerateObservations(res *groove.Result) []Observation {
	if res == nil {
		return nil
	}

	// Nothing detected means nothing else is measurable.
	if len(res.Onsets) == 0 {
		return []Observation{{
			Priority: 10,
			RuleID:   "no_onsets",
			Message:  "No percussive events were detected. Check that the recording contains drums and is not silent or heavily filtered.",
		}}
	}

	var obs []Observation
	firedRules := make(map[string]bool)

	rules := []func(*groove.Result) *Observation{
		obsNoValidSegment,
		obsSegmentQuality,
		obsHihatUnreliable,
		obsLooseTiming,
		obsRushing,
		obsDragging,
		obsQuantized,
		obsFlatDynamics,
		obsVintageDrift,
		obsSwingOutsideStyle,
		obsStyleAmbiguous,
	}

	for _, rule := range rules {
		if o := rule(res); o != nil {
			obs = append(obs, *o)
			firedRules[o.RuleID] = true
		}
	}

	// Apply mutual exclusion
	obs = applyExclusions(obs, firedRules)

	// Sort by priority (descending)
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].Priority > obs[j].Priority
	})

	// Cap at maximum
	if len(obs) > MaxObservations {
		obs = obs[:MaxObservations]
	}

	return obs
}

// applyExclusions removes observations that are redundant when a more
// fundamental one has already fired. Wide timing scatter makes the mean
// deviation and the quantization read meaningless, so those notes are
// suppressed while "loose_timing" stands.
func applyExclusions(obs []Observation, fired map[string]bool) []Observation {
	var result []Observation
	for _, o := range obs {
		switch o.RuleID {
		case "rushing", "dragging", "quantized":
			if fired["loose_timing"] {
				continue
			}
		case "swing_outside_style":
			if fired["loose_timing"] || fired["no_valid_segment"] {
				continue
			}
		}
		result = append(result, o)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// obsNoValidSegment fires when onsets exist but no run of consecutive
// bars cleared the quality gate, so nothing could be extracted.
func obsNoValidSegment(res *groove.Result) *Observation {
	if res.Segment != nil {
		return nil
	}
	msg := "No run of consecutive bars matched a style template cleanly enough to extract feel from. Try a section with a steadier groove."
	if res.Style != groove.StyleUnknown {
		msg = fmt.Sprintf("No run of consecutive bars matched the %s template cleanly enough to extract feel from. Try a steadier section, or pass a different style if the detection looks wrong.", res.Style)
	}
	return &Observation{
		Priority: 9,
		RuleID:   "no_valid_segment",
		Message:  msg,
	}
}

// obsSegmentQuality fires when the accepted segment sits near the
// bottom of the acceptance band (below 90% template coverage).
func obsSegmentQuality(res *groove.Result) *Observation {
	if res.Segment == nil || res.Segment.Quality >= 0.9 {
		return nil
	}
	return &Observation{
		Priority: 6,
		RuleID:   "segment_quality",
		Message:  fmt.Sprintf("The best segment matched only %.0f%% of the template, so the extracted grid will have gaps where hits went missing.", res.Segment.Quality*100),
	}
}

// obsHihatUnreliable fires when the segment was accepted without the
// hi-hat channel because its onsets were too weak to trust.
func obsHihatUnreliable(res *groove.Result) *Observation {
	if res.Segment == nil || res.Segment.HihatReliable {
		return nil
	}
	return &Observation{
		Priority: 5,
		RuleID:   "hihat_unreliable",
		Message:  "Hi-hat onsets were too weak to trust, so hat steps were left out of the extraction. A brighter mix or an isolated hat stem would fill them in.",
	}
}

// obsLooseTiming fires when timing scatter is wide enough that the grid
// itself is suspect. A wrong BPM produces exactly this signature.
func obsLooseTiming(res *groove.Result) *Observation {
	if len(res.Rows) < minRowsForTimingRules {
		return nil
	}
	std := res.Stats.StdTimingDeviationMs
	if std <= 25.0 {
		return nil
	}
	return &Observation{
		Priority: 8,
		RuleID:   "loose_timing",
		Message:  fmt.Sprintf("Timing scatter is wide (±%.0f ms around the grid). Check the tempo used for the grid, or pick a steadier section - a wrong BPM shows up exactly like this.", std),
	}
}

// obsRushing fires when the performance sits well ahead of the grid.
func obsRushing(res *groove.Result) *Observation {
	if len(res.Rows) < minRowsForTimingRules {
		return nil
	}
	avg := res.Stats.AvgTimingDeviationMs
	if avg >= -8.0 {
		return nil
	}
	return &Observation{
		Priority: 7,
		RuleID:   "rushing",
		Message:  fmt.Sprintf("The performance runs about %.0f ms ahead of the beat. If that urgency is not intentional, slow practice with a click would settle it.", -avg),
	}
}

// obsDragging fires when the performance sits well behind the grid.
// Laying back is part of the idiom, so the note stays informational.
func obsDragging(res *groove.Result) *Observation {
	if len(res.Rows) < minRowsForTimingRules {
		return nil
	}
	avg := res.Stats.AvgTimingDeviationMs
	if avg <= 8.0 {
		return nil
	}
	return &Observation{
		Priority: 7,
		RuleID:   "dragging",
		Message:  fmt.Sprintf("The performance sits about %.0f ms behind the beat - a laid-back feel. Nothing to fix unless the track is meant to push forward.", avg),
	}
}

// obsQuantized fires when deviations are so small the material is
// almost certainly programmed or already quantized.
func obsQuantized(res *groove.Result) *Observation {
	if len(res.Rows) < minRowsForTimingRules {
		return nil
	}
	if res.Stats.StdTimingDeviationMs >= 1.5 {
		return nil
	}
	return &Observation{
		Priority: 4,
		RuleID:   "quantized",
		Message:  "Timing deviations are near zero. This sounds like programmed or quantized material, so the extracted humanization will not add much life.",
	}
}

// obsFlatDynamics fires when velocity variation is negligible,
// usually heavy compression or programmed parts.
func obsFlatDynamics(res *groove.Result) *Observation {
	if len(res.Rows) < minRowsForTimingRules {
		return nil
	}
	if res.Stats.AvgVelocityVariation >= 0.02 {
		return nil
	}
	return &Observation{
		Priority: 5,
		RuleID:   "flat_dynamics",
		Message:  "Velocities barely move between hits. Heavy compression or programmed drums flatten exactly the dynamics this analysis is after.",
	}
}

// obsVintageDrift fires when detected tempo drift says the take was
// recorded without a click.
func obsVintageDrift(res *groove.Result) *Observation {
	if res.Tempo == nil || !res.Tempo.IsVintage {
		return nil
	}
	return &Observation{
		Priority: 6,
		RuleID:   "vintage_drift",
		Message:  fmt.Sprintf("The tempo drifts %.0f%% across the take, the signature of a session without a click track. Per-bar extraction absorbs the drift, but averaged vectors will smear it.", res.Tempo.TempoDrift*100),
	}
}

// obsSwingOutsideStyle fires when measured swing falls outside the
// typical window for the detected style.
func obsSwingOutsideStyle(res *groove.Result) *Observation {
	if res.Style == groove.StyleUnknown || res.Swing.Confidence < 0.5 {
		return nil
	}
	cmp, ok := groove.SwingWithinStyle(res.Swing.Percentage, res.Style)
	if !ok || cmp == 0 {
		return nil
	}
	low, high, _ := groove.SwingRangeForStyle(res.Style)
	direction := "below"
	if cmp > 0 {
		direction = "above"
	}
	return &Observation{
		Priority: 4,
		RuleID:   "swing_outside_style",
		Message:  fmt.Sprintf("Swing measures %.1f%%, %s the usual %.0f-%.0f%% window for %s.", res.Swing.Percentage, direction, low, high, res.Style),
	}
}

// obsStyleAmbiguous fires when the top two style scores sit close
// enough that the specificity tiebreak did real work.
func obsStyleAmbiguous(res *groove.Result) *Observation {
	if res.Style == groove.StyleUnknown || len(res.StyleScores) < 2 {
		return nil
	}

	scores := append([]groove.StyleScore(nil), res.StyleScores...)
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	best := scores[0]
	var runnerUp *groove.StyleScore
	for i := 1; i < len(scores); i++ {
		if scores[i].Style != best.Style {
			runnerUp = &scores[i]
			break
		}
	}
	if runnerUp == nil || best.Score < 0.3 || best.Score-runnerUp.Score >= 0.1 {
		return nil
	}
	return &Observation{
		Priority: 3,
		RuleID:   "style_ambiguous",
		Message:  fmt.Sprintf("Style scores are close between %s (%.2f) and %s (%.2f). If the detected style looks wrong, pass one explicitly.", best.Style, best.Score, runnerUp.Style, runnerUp.Score),
	}
}
