package export

import (
	"testing"

	"github.com/google/uuid"
	"github.com/riddimlab/grooveprint/internal/groove"
)

// sampleResult builds a two-bar one drop result with enough variety to
// exercise every table: a kick, a full snare, a cross stick, and both
// hi-hat articulations.
func sampleResult(t *testing.T) *groove.Result {
	t.Helper()

	step := func(ch groove.Channel, dev float64, vel int, art string) groove.StepSample {
		return groove.StepSample{Present: true, Channel: ch, DeviationMs: dev, Velocity: vel, Articulation: art}
	}

	bar1 := groove.BarVector{Bar: 3}
	bar1.Steps[2] = step(groove.ChannelHihat, -1.5, 70, "closed")
	bar1.Steps[8] = step(groove.ChannelSnare, 2.346, 100, "snare_full")
	bar1.Steps[10] = step(groove.ChannelHihat, 0.8, 64, "open")

	bar2 := groove.BarVector{Bar: 4}
	bar2.Steps[0] = step(groove.ChannelKick, -3.0, 110, "")
	bar2.Steps[8] = step(groove.ChannelSnare, 1.0, 55, "cross_stick")

	return &groove.Result{
		Metadata: groove.Metadata{
			AudioFile:       "take.wav",
			SampleRate:      44100,
			DurationSeconds: 30,
			TempoBPM:        75,
			TimeSignature:   "4/4",
		},
		Style: groove.StyleOneDrop,
		Segment: &groove.Segment{
			Style:    groove.StyleOneDrop,
			StartBar: 3,
			EndBar:   4,
			Quality:  0.9,
		},
		Humanization: &groove.HumanizationData{
			Style:    groove.StyleOneDrop,
			StartBar: 3,
			EndBar:   4,
			Bars:     []groove.BarVector{bar1, bar2},
		},
	}
}

func TestBuildWorkbookPatternRow(t *testing.T) {
	wb := BuildWorkbook(sampleResult(t))

	if len(wb.Patterns) != 1 {
		t.Fatalf("patterns rows = %d, want 1", len(wb.Patterns))
	}
	row := wb.Patterns[0]
	if _, err := uuid.Parse(row.ID); err != nil {
		t.Errorf("pattern ID %q is not a UUID: %v", row.ID, err)
	}
	if row.AudioFile != "take.wav" {
		t.Errorf("audio file = %q, want take.wav", row.AudioFile)
	}
	if row.Style != "one_drop" {
		t.Errorf("style = %q, want one_drop", row.Style)
	}
	if row.StartBar != 3 || row.EndBar != 4 {
		t.Errorf("segment bars = %d..%d, want 3..4", row.StartBar, row.EndBar)
	}
	if row.Quality != 0.9 {
		t.Errorf("quality = %v, want 0.9", row.Quality)
	}
	if row.CreatedAt.IsZero() {
		t.Error("created at not stamped")
	}
}

func TestBuildWorkbookStylesTable(t *testing.T) {
	wb := BuildWorkbook(sampleResult(t))

	if len(wb.Styles) != 5 {
		t.Fatalf("style rows = %d, want 5", len(wb.Styles))
	}
	order := []string{"ska", "rocksteady", "early_reggae", "one_drop", "steppers"}
	for i, want := range order {
		if wb.Styles[i].ID != want {
			t.Errorf("style row %d = %q, want %q", i, wb.Styles[i].ID, want)
		}
	}
	for _, row := range wb.Styles {
		if row.MinBPM <= 0 || row.MaxBPM <= row.MinBPM {
			t.Errorf("%s: tempo range %v..%v malformed", row.ID, row.MinBPM, row.MaxBPM)
		}
		if row.Description == "" {
			t.Errorf("%s: empty description", row.ID)
		}
	}
}

func TestBuildWorkbookGridRows(t *testing.T) {
	wb := BuildWorkbook(sampleResult(t))

	byID := map[string]GridRow{}
	for _, g := range wb.Grids {
		byID[g.PatternID] = g
	}

	tests := []struct {
		name    string
		id      string
		steps   []int // 1-based hit positions
		baseVel int
	}{
		{name: "bar one full snare", id: "snare_1", steps: []int{9}, baseVel: 100},
		{name: "bar one closed hat", id: "hihat_closed_1", steps: []int{3}, baseVel: 70},
		{name: "bar one open hat", id: "hihat_open_1", steps: []int{11}, baseVel: 64},
		{name: "bar two kick", id: "kick_2", steps: []int{1}, baseVel: 110},
		{name: "bar two cross stick", id: "cross_stick_2", steps: []int{9}, baseVel: 55},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, ok := byID[tc.id]
			if !ok {
				t.Fatalf("no grid row %q (have %d rows)", tc.id, len(wb.Grids))
			}
			want := [16]int{}
			for _, s := range tc.steps {
				want[s-1] = 1
			}
			if g.Steps != want {
				t.Errorf("steps = %v, want %v", g.Steps, want)
			}
			if g.BaseVelocity != tc.baseVel {
				t.Errorf("base velocity = %d, want %d", g.BaseVelocity, tc.baseVel)
			}
		})
	}

	if len(wb.Grids) != len(tests) {
		t.Errorf("grid rows = %d, want %d", len(wb.Grids), len(tests))
	}
}

func TestBuildWorkbookHumanizationRows(t *testing.T) {
	wb := BuildWorkbook(sampleResult(t))

	var snare *HumanizationRow
	for i := range wb.Humanization {
		if wb.Humanization[i].PatternID == "snare_1" {
			snare = &wb.Humanization[i]
		}
	}
	if snare == nil {
		t.Fatal("no humanization row snare_1")
	}

	if !snare.Played[8] {
		t.Error("step 9 not marked played")
	}
	if snare.Played[0] {
		t.Error("step 1 marked played on a rest")
	}
	if snare.Velocities[8] != 100 {
		t.Errorf("V9 = %d, want 100", snare.Velocities[8])
	}
	if snare.TimingMs[8] != 2.35 {
		t.Errorf("T9 = %v, want 2.35 (rounded to two decimals)", snare.TimingMs[8])
	}

	// 75 BPM, four beats to the bar.
	wantDur := 4 * 60.0 / 75
	if snare.BarDurationSeconds != wantDur {
		t.Errorf("bar duration = %v, want %v", snare.BarDurationSeconds, wantDur)
	}
}

func TestBuildWorkbookWithoutSegment(t *testing.T) {
	res := sampleResult(t)
	res.Segment = nil
	res.Humanization = nil

	wb := BuildWorkbook(res)
	if len(wb.Grids) != 0 || len(wb.Humanization) != 0 {
		t.Errorf("grids=%d humanization=%d, want both empty without a segment",
			len(wb.Grids), len(wb.Humanization))
	}
	if len(wb.Patterns) != 1 {
		t.Fatalf("patterns rows = %d, want 1", len(wb.Patterns))
	}
	if wb.Patterns[0].StartBar != 0 || wb.Patterns[0].Quality != 0 {
		t.Error("pattern row should carry zero segment fields without a segment")
	}
}

func TestInstrumentCatalog(t *testing.T) {
	rows := Instruments()
	if len(rows) != 11 {
		t.Fatalf("catalog size = %d, want 11", len(rows))
	}

	tests := []struct {
		name string
		note int
	}{
		{"kick", 36},
		{"cross_stick", 37},
		{"snare", 38},
		{"hihat_closed", 42},
		{"hihat_pedal", 44},
		{"tom_low", 45},
		{"hihat_open", 46},
		{"tom_mid", 47},
		{"crash", 49},
		{"tom_high", 50},
		{"ride", 51},
	}
	for _, tc := range tests {
		note, ok := MIDINoteFor(tc.name)
		if !ok {
			t.Errorf("%s missing from catalog", tc.name)
			continue
		}
		if note != tc.note {
			t.Errorf("%s = note %d, want %d", tc.name, note, tc.note)
		}
	}

	if _, ok := MIDINoteFor("cowbell"); ok {
		t.Error("unexpected catalog entry for cowbell")
	}
}
