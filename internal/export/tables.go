// Package export shapes groove analysis results into the document and
// table forms downstream tooling consumes: a JSON analysis document and
// the five logical tables a spreadsheet exporter serializes. Shaping
// happens here; serialization beyond the JSON document does not.
package export

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/riddimlab/grooveprint/internal/groove"
)

// StyleRow is one catalog entry in the styles table.
type StyleRow struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	MinBPM      float64 `json:"min_bpm"`
	MaxBPM      float64 `json:"max_bpm"`
	TypicalBPM  float64 `json:"typical_bpm"`
}

// PatternRow is the per-analysis metadata row in the patterns table.
// One row per analyzed recording.
type PatternRow struct {
	ID        string    `json:"id"` // analysis UUID
	AudioFile string    `json:"audio_file"`
	Style     string    `json:"style"`
	TempoBPM  float64   `json:"tempo_bpm"`
	StartBar  int       `json:"start_bar"` // zero when no segment was found
	EndBar    int       `json:"end_bar"`
	Quality   float64   `json:"quality"`
	CreatedAt time.Time `json:"created_at"`
}

// GridRow is one bar of one instrument in the grids table: which of the
// sixteen steps carry a hit, plus the bar's base velocity.
type GridRow struct {
	PatternID    string  `json:"pattern_id"` // "<instrument>_<bar>"
	Instrument   string  `json:"instrument"`
	Steps        [16]int `json:"steps"` // 1 = hit, 0 = rest
	BaseVelocity int     `json:"base_velocity"`
}

// HumanizationRow is one bar of one instrument in the humanization
// table: V1..V16 velocities and T1..T16 timing deviations. Played marks
// the steps that carry measured values; the zeros elsewhere are rests,
// not measurements.
type HumanizationRow struct {
	PatternID          string      `json:"pattern_id"`
	Instrument         string      `json:"instrument"`
	Velocities         [16]int     `json:"velocities"`
	TimingMs           [16]float64 `json:"timing_ms"`
	Played             [16]bool    `json:"played"`
	BarDurationSeconds float64     `json:"bar_duration_seconds"`
}

// InstrumentRow maps a drum voice to its General MIDI note.
type InstrumentRow struct {
	Name        string `json:"name"`
	MIDINote    int    `json:"midi_note"`
	Description string `json:"description"`
}

// Workbook holds the five logical tables of one analysis, ready for a
// spreadsheet exporter.
type Workbook struct {
	Styles       []StyleRow        `json:"styles"`
	Patterns     []PatternRow      `json:"patterns"`
	Grids        []GridRow         `json:"grids"`
	Humanization []HumanizationRow `json:"humanization"`
	Instruments  []InstrumentRow   `json:"instruments"`
}

// instrumentCatalog is the GM drum map (channel 10) the generation
// subsystem plays extracted grooves back through. Loaded once, never
// mutated.
var instrumentCatalog = []InstrumentRow{
	{Name: "kick", MIDINote: 36, Description: "Bass Drum 1"},
	{Name: "snare", MIDINote: 38, Description: "Acoustic Snare"},
	{Name: "cross_stick", MIDINote: 37, Description: "Side Stick"},
	{Name: "hihat_closed", MIDINote: 42, Description: "Closed Hi-Hat"},
	{Name: "hihat_open", MIDINote: 46, Description: "Open Hi-Hat"},
	{Name: "hihat_pedal", MIDINote: 44, Description: "Pedal Hi-Hat"},
	{Name: "tom_high", MIDINote: 50, Description: "High Tom"},
	{Name: "tom_mid", MIDINote: 47, Description: "Low-Mid Tom"},
	{Name: "tom_low", MIDINote: 45, Description: "Low Tom"},
	{Name: "crash", MIDINote: 49, Description: "Crash Cymbal 1"},
	{Name: "ride", MIDINote: 51, Description: "Ride Cymbal 1"},
}

// Instruments returns the GM drum catalog. The returned slice is
// shared; callers must not modify it.
func Instruments() []InstrumentRow {
	return instrumentCatalog
}

// MIDINoteFor returns the GM note for an instrument name.
func MIDINoteFor(name string) (int, bool) {
	for _, row := range instrumentCatalog {
		if row.Name == name {
			return row.MIDINote, true
		}
	}
	return 0, false
}

// BuildWorkbook shapes one analysis result into the five tables. A
// result without a valid segment yields empty grid and humanization
// tables; the patterns row records the analysis either way.
func BuildWorkbook(res *groove.Result) Workbook {
	wb := Workbook{
		Styles:      styleRows(),
		Instruments: instrumentCatalog,
	}

	row := PatternRow{
		ID:        uuid.NewString(),
		AudioFile: res.Metadata.AudioFile,
		Style:     string(res.Style),
		TempoBPM:  res.Metadata.TempoBPM,
		CreatedAt: time.Now().UTC(),
	}
	if res.Segment != nil {
		row.StartBar = res.Segment.StartBar
		row.EndBar = res.Segment.EndBar
		row.Quality = res.Segment.Quality
	}
	wb.Patterns = []PatternRow{row}

	if res.Humanization != nil {
		wb.Grids, wb.Humanization = vectorRows(res.Humanization, res.Metadata.TempoBPM)
	}
	return wb
}

// styleRows renders the immutable style catalog as table rows.
func styleRows() []StyleRow {
	styles := groove.Styles()
	rows := make([]StyleRow, len(styles))
	for i, s := range styles {
		rows[i] = StyleRow{
			ID:          string(s.ID),
			Description: s.Description,
			MinBPM:      s.MinBPM,
			MaxBPM:      s.MaxBPM,
			TypicalBPM:  s.TypicalBPM,
		}
	}
	return rows
}

// vectorRows unpacks extracted bar vectors into per-instrument grid and
// humanization rows. Each bar contributes one row per instrument that
// actually plays in it; bar numbering restarts at 1 within the segment,
// matching how the generation side indexes patterns.
func vectorRows(h *groove.HumanizationData, bpm float64) ([]GridRow, []HumanizationRow) {
	barDur := 0.0
	if bpm > 0 {
		barDur = 4 * 60.0 / bpm
	}

	var grids []GridRow
	var rows []HumanizationRow

	for barIdx, bar := range h.Bars {
		byInst := map[string][]int{}
		for i, s := range bar.Steps {
			if !s.Present {
				continue
			}
			name := instrumentName(s.Channel, s.Articulation)
			byInst[name] = append(byInst[name], i)
		}

		// Catalog order keeps the output stable across runs.
		for _, inst := range instrumentCatalog {
			steps, ok := byInst[inst.Name]
			if !ok {
				continue
			}
			grid := GridRow{
				PatternID:  fmt.Sprintf("%s_%d", inst.Name, barIdx+1),
				Instrument: inst.Name,
			}
			hum := HumanizationRow{
				PatternID:          grid.PatternID,
				Instrument:         inst.Name,
				BarDurationSeconds: barDur,
			}

			velSum := 0
			for _, i := range steps {
				s := bar.Steps[i]
				grid.Steps[i] = 1
				hum.Velocities[i] = s.Velocity
				hum.TimingMs[i] = roundMs(s.DeviationMs)
				hum.Played[i] = true
				velSum += s.Velocity
			}

			grid.BaseVelocity = velSum / len(steps)
			grids = append(grids, grid)
			rows = append(rows, hum)
		}
	}
	return grids, rows
}

// instrumentName resolves a channel and measured articulation to a
// catalog instrument. Unmeasured articulations fall back to the
// channel's default voice.
func instrumentName(ch groove.Channel, articulation string) string {
	switch ch {
	case groove.ChannelSnare:
		if articulation == string(groove.SnareCrossStick) {
			return "cross_stick"
		}
		return "snare"
	case groove.ChannelHihat:
		if articulation == string(groove.HihatOpen) {
			return "hihat_open"
		}
		return "hihat_closed"
	default:
		return string(ch)
	}
}

// roundMs rounds a deviation to two decimals for the exported tables.
func roundMs(ms float64) float64 {
	return math.Round(ms*100) / 100
}
