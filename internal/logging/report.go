// Package logging handles generation of analysis reports for analyzed recordings

package logging

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riddimlab/grooveprint/internal/audio"
	"github.com/riddimlab/grooveprint/internal/groove"
)

// ============================================================================
// Groove Measurement Interpretation Functions
// ============================================================================
// These functions interpret groove measurements and return human-readable
// descriptions of the performance. Thresholds follow common session and
// drum-machine programming conventions.

// interpretTiming describes where the performance sits against the grid.
// Negative deviations are early (rushing), positive are late (dragging).
// Reggae drummers habitually lay back a few milliseconds; only double
// digit offsets read as a tendency rather than feel.
func interpretTiming(avgMs float64) string {
	switch {
	case avgMs < -8:
		return "rushes well ahead of the beat"
	case avgMs < -3:
		return "pushes slightly ahead, urgent feel"
	case avgMs <= 3:
		return "sits square on the grid"
	case avgMs <= 8:
		return "lays back slightly, relaxed feel"
	default:
		return "drags well behind the beat"
	}
}

// interpretTightness describes the spread of timing deviations.
// Below ~3 ms is machine territory; a live drummer lands somewhere
// between 5 and 20 ms depending on tempo and intent.
func interpretTightness(stdMs float64) string {
	switch {
	case stdMs < 1.5:
		return "machine-tight, likely quantized"
	case stdMs < 5:
		return "very tight, disciplined playing"
	case stdMs < 12:
		return "natural human timing"
	case stdMs < 25:
		return "loose, live feel"
	default:
		return "very loose, grid or tempo suspect"
	}
}

// interpretVelocitySpread describes dynamic movement between hits.
// The variation is the mean absolute velocity delta as a fraction of
// full scale.
func interpretVelocitySpread(variation float64) string {
	switch {
	case variation < 0.02:
		return "flat dynamics, possibly programmed or compressed"
	case variation < 0.08:
		return "controlled, even dynamics"
	case variation < 0.18:
		return "natural dynamic breathing"
	default:
		return "wide dynamics, accent-heavy playing"
	}
}

// interpretQuality describes segment template coverage. The acceptance
// gate sits at 0.8, so everything reported here is at least usable.
func interpretQuality(q float64) string {
	switch {
	case q >= 0.97:
		return "excellent match, clean extraction"
	case q >= 0.9:
		return "strong match"
	case q >= 0.85:
		return "usable, minor gaps"
	default:
		return "marginal, expect gaps in the grid"
	}
}

// interpretDrift describes tempo stability across the take. Drift is
// the coefficient of variation of beat-to-beat intervals.
func interpretDrift(drift float64) string {
	switch {
	case drift < 0.02:
		return "steady, click-like"
	case drift < 0.05:
		return "minor drift, controlled live take"
	case drift < 0.10:
		return "noticeable drift, vintage session feel"
	default:
		return "heavy drift, tempo map recommended"
	}
}

// interpretStrength describes mean normalised onset strength for a
// channel; weak channels produce unreliable grids.
func interpretStrength(s float64) string {
	switch {
	case s <= 0:
		return "not detected"
	case s < 0.3:
		return "weak, borderline detections"
	case s < 0.6:
		return "moderate"
	default:
		return "strong, confident detections"
	}
}

// =============================================================================
// Report Section Formatting Helpers
// =============================================================================

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData contains all the information needed to generate an analysis report
type ReportData struct {
	InputPath    string
	JSONPath     string // analysis document written alongside the input
	StartTime    time.Time
	EndTime      time.Time
	DecodeTime   time.Duration
	AnalysisTime time.Duration
	Meta         *audio.Metadata
	Result       *groove.Result
}

// ReportPath derives the report path for an input file:
// "take.wav" becomes "take-groove.log" alongside it.
func ReportPath(inputPath string) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + "-groove.log"
}

// GenerateReport creates a detailed analysis report and saves it alongside
// the input file. The report filename will be <input>-groove.log
func GenerateReport(data ReportData) error {
	logPath := ReportPath(data.InputPath)

	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	WriteAnalysis(f, data)
	return nil
}

// WriteAnalysis writes the full analysis to w. The same renderer backs
// the report file and the plain console mode.
//
// Report structure:
//  1. Header - file info and timestamp
//  2. Analysis Summary - timings
//  3. Recording - decoded stream properties
//  4. Tempo - BPM, octave correction, drift
//  5. Style Detection - score table and detected style
//  6. Onset Detection - per-channel counts and strengths
//  7. Segment - the extraction window and its quality
//  8. Bar Classification - rhythm/variation/fill labels
//  9. Groove Data - the per-onset record
//  10. Humanization Vectors - per-bar velocity and timing rows
//  11. Statistics - feel summary and grid distribution
//  12. Swing - ratio, feel, style window check
//  13. Observations - prioritised performance notes
func WriteAnalysis(w io.Writer, data ReportData) {
	writeReportHeader(w, data)
	writeAnalysisSummary(w, data)
	writeRecordingInfo(w, data.Meta)

	res := data.Result
	if res == nil {
		fmt.Fprintln(w, "No analysis result available")
		return
	}

	writeTempoSection(w, res)
	writeStyleSection(w, res)
	writeOnsetSection(w, res)
	writeSegmentSection(w, res)
	writeBarClassification(w, res)
	writeGrooveData(w, res)
	writeHumanizationVectors(w, res)
	writeStatisticsSection(w, res)
	writeSwingSection(w, res)
	writeObservations(w, res)
}

// writeReportHeader outputs the report header with file info and timestamp.
func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "Grooveprint Analysis Report")
	fmt.Fprintln(w, "===========================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(w, "Analyzed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if data.JSONPath != "" {
		fmt.Fprintf(w, "Document: %s\n", filepath.Base(data.JSONPath))
	}
	fmt.Fprintln(w, "")
}

// writeAnalysisSummary outputs the processing time summary.
func writeAnalysisSummary(w io.Writer, data ReportData) {
	writeSection(w, "Analysis Summary")

	fmt.Fprintf(w, "Decode:   %s\n", formatDuration(data.DecodeTime))
	fmt.Fprintf(w, "Analysis: %s\n", formatDuration(data.AnalysisTime))

	totalTime := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Total:    %s", formatDuration(totalTime))

	if data.Meta != nil && data.Meta.Duration > 0 && totalTime > 0 {
		audioDuration := time.Duration(data.Meta.Duration * float64(time.Second))
		rtf := float64(audioDuration) / float64(totalTime)
		fmt.Fprintf(w, " (%.0fx real-time)", rtf)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "")
}

// writeRecordingInfo outputs the decoded stream properties.
func writeRecordingInfo(w io.Writer, meta *audio.Metadata) {
	writeSection(w, "Recording")

	if meta == nil {
		fmt.Fprintln(w, "No stream metadata available")
		fmt.Fprintln(w, "")
		return
	}

	fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(meta.Duration))
	fmt.Fprintf(w, "Format:      %s\n", meta.Format)
	fmt.Fprintf(w, "Sample Rate: %d Hz\n", meta.SampleRate)
	fmt.Fprintf(w, "Channels:    %s\n", channelName(meta.Channels))
	if meta.BitDepth > 0 {
		fmt.Fprintf(w, "Bit Depth:   %d bit\n", meta.BitDepth)
	}
	fmt.Fprintln(w, "")
}

// writeTempoSection outputs the tempo line plus detection diagnostics
// when the BPM came from the analyzer rather than the caller.
func writeTempoSection(w io.Writer, res *groove.Result) {
	writeSection(w, "Tempo")

	fmt.Fprintf(w, "BPM:            %.1f", res.Metadata.TempoBPM)
	if res.Tempo == nil {
		fmt.Fprint(w, " (given)")
	} else {
		fmt.Fprint(w, " (detected)")
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Time Signature: %s\n", res.Metadata.TimeSignature)

	if t := res.Tempo; t != nil {
		if t.Correction != groove.CorrectionNone {
			fmt.Fprintf(w, "Correction:     %s (raw detection %.1f BPM)\n", t.Correction, t.DetectedBPM)
		}
		fmt.Fprintf(w, "Confidence:     %.2f\n", t.Confidence)
		fmt.Fprintf(w, "Drift:          %.1f%% (%s)\n", t.TempoDrift*100, interpretDrift(t.TempoDrift))
		if t.IsVintage {
			fmt.Fprintln(w, "Vintage:        yes - no click track on this session")
		}
	}
	fmt.Fprintln(w, "")
}

// writeStyleSection outputs the style score table and the verdict.
func writeStyleSection(w io.Writer, res *groove.Result) {
	writeSection(w, "Style Detection")

	if len(res.StyleScores) > 0 {
		table := NewMetricTable("Score")
		for _, s := range res.StyleScores {
			marker := ""
			if s.Style == res.Style {
				marker = "<- detected"
			}
			table.AddRow(string(s.Style), []string{formatMetric(s.Score, 2)}, "", marker)
		}
		fmt.Fprint(w, table.String())
		fmt.Fprintln(w, "")
	}

	if res.Style == groove.StyleUnknown {
		fmt.Fprintln(w, "Style: unknown - no template explained the kick and snare pattern")
		if suggestions := groove.SuggestStylesFromBPM(res.Metadata.TempoBPM); len(suggestions) > 0 {
			parts := make([]string, len(suggestions))
			for i, s := range suggestions {
				parts[i] = fmt.Sprintf("%s (%.2f)", s.Style, s.Confidence)
			}
			fmt.Fprintf(w, "Tempo suggests: %s\n", strings.Join(parts, ", "))
		}
	} else {
		fmt.Fprintf(w, "Style: %s", res.Style)
		if t, ok := groove.TemplateFor(res.Style); ok {
			fmt.Fprintf(w, " - %s", t.Description)
		}
		fmt.Fprintln(w, "")
	}
	fmt.Fprintln(w, "")
}

// writeOnsetSection outputs per-channel onset counts and strength means.
func writeOnsetSection(w io.Writer, res *groove.Result) {
	writeSection(w, "Onset Detection")

	counts := map[groove.Channel]int{}
	strengthSums := map[groove.Channel]float64{}
	for _, o := range res.Onsets {
		counts[o.Channel]++
		strengthSums[o.Channel] += o.Strength
	}

	channels := []groove.Channel{groove.ChannelKick, groove.ChannelSnare, groove.ChannelHihat}
	table := NewMetricTable("Kick", "Snare", "Hi-hat")

	countVals := make([]string, len(channels))
	strengthVals := make([]string, len(channels))
	var weakest groove.Channel
	weakestMean := math.Inf(1)
	for i, ch := range channels {
		countVals[i] = fmt.Sprintf("%d", counts[ch])
		mean := 0.0
		if counts[ch] > 0 {
			mean = strengthSums[ch] / float64(counts[ch])
		}
		strengthVals[i] = formatMetric(mean, 2)
		if mean < weakestMean {
			weakest, weakestMean = ch, mean
		}
	}
	table.AddRow("Onsets", countVals, "", "")
	table.AddRow("Mean strength", strengthVals, "", interpretStrength(weakestMean)+" ("+string(weakest)+")")

	fmt.Fprint(w, table.String())
	fmt.Fprintf(w, "Total: %d onsets", len(res.Onsets))
	if n := counts[groove.ChannelUnknown]; n > 0 {
		fmt.Fprintf(w, " (%d unassigned)", n)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "")
}

// writeSegmentSection outputs the extraction window verdict.
func writeSegmentSection(w io.Writer, res *groove.Result) {
	writeSection(w, "Segment")

	seg := res.Segment
	if seg == nil {
		fmt.Fprintln(w, "No stable segment found - humanization not extracted")
		fmt.Fprintln(w, "")
		return
	}

	fmt.Fprintf(w, "Style:    %s\n", seg.Style)
	fmt.Fprintf(w, "Bars:     %d-%d (%d bars)\n", seg.StartBar, seg.EndBar, seg.Bars())
	fmt.Fprintf(w, "Time:     %.2fs - %.2fs\n", seg.StartTime, seg.EndTime)
	fmt.Fprintf(w, "Quality:  %.0f%% (%s)\n", seg.Quality*100, interpretQuality(seg.Quality))
	if seg.HihatReliable {
		fmt.Fprintln(w, "Hi-hat:   reliable, included in extraction")
	} else {
		fmt.Fprintln(w, "Hi-hat:   unreliable, excluded from extraction")
	}
	fmt.Fprintln(w, "")
}

// writeBarClassification outputs the per-bar template labels.
func writeBarClassification(w io.Writer, res *groove.Result) {
	if len(res.Bars) == 0 {
		return
	}
	writeSection(w, "Bar Classification")

	counts := map[groove.BarClass]int{}
	for _, b := range res.Bars {
		counts[b.Class]++
	}
	fmt.Fprintf(w, "Rhythm: %d | Variation: %d | Fill/Break: %d\n\n",
		counts[groove.BarRhythm], counts[groove.BarVariation], counts[groove.BarFillOrBreak])

	for _, b := range res.Bars {
		fmt.Fprintf(w, "Bar %3d: %-13s matched %d, missing %d, extra %d\n",
			b.Bar, b.Class, b.Matched, b.Missing, b.Extra)
	}
	fmt.Fprintln(w, "")
}

// writeGrooveData outputs the per-onset record, one line per hit.
func writeGrooveData(w io.Writer, res *groove.Result) {
	writeSection(w, "Groove Data")

	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "No onsets detected")
		fmt.Fprintln(w, "")
		return
	}

	fmt.Fprintf(w, "%9s  %4s  %5s  %-12s  %4s  %7s  %8s  %6s\n",
		"Time", "Bar", "Beat", "Drum", "Vel", "dB", "Dev(ms)", "Onset")
	for _, r := range res.Rows {
		fmt.Fprintf(w, "%8.3fs  %4d  %5.2f  %-12s  %4d  %7s  %8s  %6s\n",
			r.OnsetTime,
			r.BarNumber,
			r.BeatPosition,
			r.DrumType,
			r.Velocity,
			formatMetricDB(r.AmplitudeDB, 1),
			formatMetricSigned(r.TimingDeviationMs, 1),
			formatMetric(r.OnsetStrength, 2))
	}
	fmt.Fprintln(w, "")
}

// writeHumanizationVectors outputs per-bar velocity and timing rows in
// the V1..V16 / T1..T16 layout the generation side consumes. Rests show
// as "-" so absence never reads as a zero measurement.
func writeHumanizationVectors(w io.Writer, res *groove.Result) {
	h := res.Humanization
	if h == nil {
		return
	}
	writeSection(w, "Humanization Vectors")

	if h.Averaged {
		fmt.Fprintf(w, "Averaged over bars %d-%d\n\n", h.StartBar, h.EndBar)
	}

	for _, bar := range h.Bars {
		label := fmt.Sprintf("Bar %d", bar.Bar)
		if bar.Bar == 0 {
			label = "Average"
		}
		fmt.Fprintln(w, label)

		var vel, dev, chs [16]string
		for i, s := range bar.Steps {
			if !s.Present {
				vel[i], dev[i], chs[i] = MissingValue, MissingValue, MissingValue
				continue
			}
			vel[i] = fmt.Sprintf("%d", s.Velocity)
			dev[i] = formatMetricSigned(s.DeviationMs, 1)
			chs[i] = shortChannel(s.Channel, s.Articulation)
		}
		fmt.Fprintf(w, "  Drum %s\n", joinCells(chs[:]))
		fmt.Fprintf(w, "  V    %s\n", joinCells(vel[:]))
		fmt.Fprintf(w, "  T    %s\n", joinCells(dev[:]))
	}
	fmt.Fprintln(w, "")
}

// joinCells right-aligns vector cells into fixed-width columns.
func joinCells(cells []string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprintf("%6s", c)
	}
	return strings.Join(parts, " ")
}

// shortChannel abbreviates a hit for the vector drum row.
func shortChannel(ch groove.Channel, articulation string) string {
	switch {
	case ch == groove.ChannelSnare && articulation == string(groove.SnareCrossStick):
		return "xstick"
	case ch == groove.ChannelHihat && articulation == string(groove.HihatOpen):
		return "hh-o"
	case ch == groove.ChannelHihat && articulation == string(groove.HihatClosed):
		return "hh-c"
	case ch == groove.ChannelHihat:
		return "hh"
	default:
		return string(ch)
	}
}

// writeStatisticsSection outputs the feel summary and grid distribution.
func writeStatisticsSection(w io.Writer, res *groove.Result) {
	writeSection(w, "Statistics")

	stats := res.Stats
	table := NewMetricTable("Value")
	table.AddRow("Avg timing deviation", []string{formatMetricSigned(stats.AvgTimingDeviationMs, 1)}, "ms", interpretTiming(stats.AvgTimingDeviationMs))
	table.AddRow("Std timing deviation", []string{formatMetric(stats.StdTimingDeviationMs, 1)}, "ms", interpretTightness(stats.StdTimingDeviationMs))
	table.AddRow("Velocity variation", []string{formatMetric(stats.AvgVelocityVariation, 3)}, "", interpretVelocitySpread(stats.AvgVelocityVariation))
	table.AddRow("Swing factor", []string{formatMetric(stats.SwingFactor, 2)}, "", "")
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")

	gs := res.GridStats
	fmt.Fprintf(w, "Grid placement: %.0f%% rushing | %.0f%% on grid | %.0f%% dragging\n",
		gs.RushingPercent, gs.OnGridPercent, gs.DraggingPercent)
	fmt.Fprintf(w, "Deviation:      %.1f ms avg, %.1f ms max\n", gs.AvgDeviationMs, gs.MaxDeviationMs)
	fmt.Fprintln(w, "")
}

// writeSwingSection outputs the swing measurement and the style check.
func writeSwingSection(w io.Writer, res *groove.Result) {
	writeSection(w, "Swing")

	sw := res.Swing
	fmt.Fprintf(w, "Percentage: %.1f%%\n", sw.Percentage)
	fmt.Fprintf(w, "Ratio:      %.2f:1\n", sw.Ratio)
	fmt.Fprintf(w, "Feel:       %s\n", sw.Feel)
	fmt.Fprintf(w, "Confidence: %.2f\n", sw.Confidence)

	if res.Style != groove.StyleUnknown {
		if low, high, ok := groove.SwingRangeForStyle(res.Style); ok {
			cmp, _ := groove.SwingWithinStyle(sw.Percentage, res.Style)
			verdict := "inside"
			switch {
			case cmp < 0:
				verdict = "below"
			case cmp > 0:
				verdict = "above"
			}
			fmt.Fprintf(w, "Style check: %s the %.0f-%.0f%% window typical for %s\n", verdict, low, high, res.Style)
		}
	}
	fmt.Fprintln(w, "")
}

// writeObservations outputs prioritised performance notes.
func writeObservations(w io.Writer, res *groove.Result) {
	obs := GenerateObservations(res)
	if len(obs) == 0 {
		return
	}
	writeSection(w, "Observations")

	for i, o := range obs {
		prefix := fmt.Sprintf("%d. ", i+1)
		indent := strings.Repeat(" ", len(prefix))
		fmt.Fprintf(w, "%s%s\n", prefix, wrapText(o.Message, 76-len(prefix), indent))
	}
	fmt.Fprintln(w, "")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// formatDurationHMS formats duration as "Xh Ym Zs" or "Ym Zs" or "Z.Xs".
func formatDurationHMS(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}

// channelName returns a human-readable channel layout name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo (downmixed to mono for analysis)"
	default:
		return fmt.Sprintf("%d channels (downmixed to mono for analysis)", channels)
	}
}
