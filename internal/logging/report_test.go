package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riddimlab/grooveprint/internal/audio"
	"github.com/riddimlab/grooveprint/internal/groove"
)

func TestReportPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"wav", "take.wav", "take-groove.log"},
		{"mp3_with_dir", "/tmp/session/riddim.mp3", "/tmp/session/riddim-groove.log"},
		{"no_extension", "take", "take-groove.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReportPath(tt.input); got != tt.want {
				t.Errorf("ReportPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// reportResult builds a clean complete analysis for rendering tests.
func reportResult() *groove.Result {
	res := &groove.Result{
		Metadata: groove.Metadata{
			AudioFile:       "take.wav",
			SampleRate:      44100,
			DurationSeconds: 30.0,
			TempoBPM:        75.0,
			TimeSignature:   "4/4",
		},
		Onsets: []groove.Onset{
			{Time: 0.8, Strength: 0.8, Channel: groove.ChannelKick},
			{Time: 1.6, Strength: 0.7, Channel: groove.ChannelSnare},
			{Time: 2.0, Strength: 0.5, Channel: groove.ChannelHihat},
		},
		Rows: []groove.GrooveRow{
			{OnsetTime: 0.8, BeatPosition: 1.0, BarNumber: 1, DrumType: "kick", Velocity: 110, AmplitudeDB: -8.2, TimingDeviationMs: -2.0, OnsetStrength: 0.8},
			{OnsetTime: 1.6, BeatPosition: 3.0, BarNumber: 1, DrumType: "cross_stick", Velocity: 62, AmplitudeDB: -15.1, TimingDeviationMs: 3.4, OnsetStrength: 0.7},
		},
		Tempo: &groove.TempoResult{
			DetectedBPM: 75.2,
			BPM:         75.2,
			Correction:  groove.CorrectionNone,
			Confidence:  0.85,
			TempoDrift:  0.03,
		},
		Style: groove.StyleOneDrop,
		StyleScores: []groove.StyleScore{
			{Style: groove.StyleSka, Score: 0.35},
			{Style: groove.StyleRocksteady, Score: 0.3},
			{Style: groove.StyleEarlyReggae, Score: 0.3},
			{Style: groove.StyleOneDrop, Score: 0.9},
			{Style: groove.StyleSteppers, Score: 0.4},
		},
		Segment: &groove.Segment{
			Style:         groove.StyleOneDrop,
			StartBar:      3,
			EndBar:        6,
			StartTime:     6.4,
			EndTime:       19.2,
			Quality:       0.92,
			HihatReliable: true,
		},
		Bars: []groove.BarReport{
			{Bar: 3, Class: groove.BarRhythm, Matched: 7},
			{Bar: 4, Class: groove.BarVariation, Matched: 6, Missing: 1, Extra: 1},
		},
	}

	avg := groove.BarVector{Bar: 0}
	avg.Steps[0] = groove.StepSample{Present: true, Channel: groove.ChannelKick, Velocity: 110, DeviationMs: -2.0}
	avg.Steps[8] = groove.StepSample{Present: true, Channel: groove.ChannelSnare, Velocity: 62, DeviationMs: 3.4, Articulation: string(groove.SnareCrossStick)}
	res.Humanization = &groove.HumanizationData{
		Style:    groove.StyleOneDrop,
		StartBar: 3,
		EndBar:   6,
		Averaged: true,
		Bars:     []groove.BarVector{avg},
	}

	res.Stats.AvgTimingDeviationMs = 2.0
	res.Stats.StdTimingDeviationMs = 9.0
	res.Stats.AvgVelocityVariation = 0.08
	res.Stats.SwingFactor = 0.58
	res.GridStats.RushingPercent = 20.0
	res.GridStats.OnGridPercent = 60.0
	res.GridStats.DraggingPercent = 20.0
	res.GridStats.AvgDeviationMs = 6.0
	res.GridStats.MaxDeviationMs = 18.0
	res.Swing.Percentage = 58.0
	res.Swing.Ratio = 1.38
	res.Swing.IsSwung = true
	res.Swing.Confidence = 0.9
	res.Swing.Feel = "light shuffle"

	return res
}

func reportData(res *groove.Result) ReportData {
	start := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return ReportData{
		InputPath:    "take.wav",
		JSONPath:     "take-groove.json",
		StartTime:    start,
		EndTime:      start.Add(500 * time.Millisecond),
		DecodeTime:   120 * time.Millisecond,
		AnalysisTime: 380 * time.Millisecond,
		Meta: &audio.Metadata{
			Path:       "take.wav",
			Format:     "wav",
			SampleRate: 44100,
			Channels:   1,
			BitDepth:   16,
			Duration:   30.0,
		},
		Result: res,
	}
}

func TestWriteAnalysis(t *testing.T) {
	var buf bytes.Buffer
	WriteAnalysis(&buf, reportData(reportResult()))
	out := buf.String()

	sections := []string{
		"Grooveprint Analysis Report",
		"Analysis Summary",
		"Recording",
		"Tempo",
		"Style Detection",
		"Onset Detection",
		"Segment",
		"Bar Classification",
		"Groove Data",
		"Humanization Vectors",
		"Statistics",
		"Swing",
	}
	for _, s := range sections {
		if !strings.Contains(out, s) {
			t.Errorf("report should contain section %q", s)
		}
	}

	spotChecks := []string{
		"75.0 (detected)",
		"<- detected",
		"Total: 3 onsets",
		"3-6 (4 bars)",
		"real-time",
		"mono",
		"xstick",
		"inside the 55-65% window typical for one_drop",
	}
	for _, s := range spotChecks {
		if !strings.Contains(out, s) {
			t.Errorf("report should contain %q", s)
		}
	}

	// A clean take produces no observations section.
	if strings.Contains(out, "Observations") {
		t.Error("clean take should not produce an observations section")
	}
}

func TestWriteAnalysisWithoutResult(t *testing.T) {
	var buf bytes.Buffer
	data := reportData(nil)
	data.Meta = nil
	WriteAnalysis(&buf, data)
	out := buf.String()

	if !strings.Contains(out, "No stream metadata available") {
		t.Error("missing metadata notice not rendered")
	}
	if !strings.Contains(out, "No analysis result available") {
		t.Error("missing result notice not rendered")
	}
}

func TestGenerateReport(t *testing.T) {
	dir := t.TempDir()
	data := reportData(reportResult())
	data.InputPath = filepath.Join(dir, "take.wav")

	if err := GenerateReport(data); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "take-groove.log"))
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !strings.HasPrefix(string(content), "Grooveprint Analysis Report") {
		t.Error("report file should start with the header")
	}
}
