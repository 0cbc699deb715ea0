package groove

import (
	"fmt"
	"math"
)

// TimingGrid maps wall-clock onset times onto the ideal metric grid of
// a performance at a known tempo. All methods are pure; a grid can be
// shared freely across goroutines.
type TimingGrid struct {
	bpm          float64
	subdivision  int
	beatInterval float64 // seconds per quarter note
	gridInterval float64 // seconds per grid step
}

// GridPoint is the result of quantizing one moment in time: the nearest
// grid step, that step's ideal time, and how far the moment deviates
// from it. Negative deviation means early (rushing), positive late
// (dragging).
type GridPoint struct {
	Step        int
	Expected    float64 // seconds
	DeviationMs float64
}

// NewTimingGrid builds a grid for the given tempo. Subdivision is the
// number of steps per beat; 4 gives the usual sixteenth-note grid.
func NewTimingGrid(bpm float64, subdivision int) (*TimingGrid, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("bpm must be positive, got %g: %w", bpm, ErrInvalidConfig)
	}
	if subdivision <= 0 {
		return nil, fmt.Errorf("subdivision must be positive, got %d: %w", subdivision, ErrInvalidConfig)
	}
	beat := 60.0 / bpm
	return &TimingGrid{
		bpm:          bpm,
		subdivision:  subdivision,
		beatInterval: beat,
		gridInterval: beat / float64(subdivision),
	}, nil
}

// BPM returns the tempo the grid was built for.
func (g *TimingGrid) BPM() float64 { return g.bpm }

// BeatInterval returns the duration of one beat in seconds.
func (g *TimingGrid) BeatInterval() float64 { return g.beatInterval }

// GridInterval returns the duration of one grid step in seconds.
func (g *TimingGrid) GridInterval() float64 { return g.gridInterval }

// StepsPerBar returns the number of grid steps in one 4/4 bar.
func (g *TimingGrid) StepsPerBar() int { return beatsPerBar * g.subdivision }

// Quantize snaps a time to the nearest grid step. A time exactly halfway
// between two steps rounds to the even-numbered one.
func (g *TimingGrid) Quantize(t float64) GridPoint {
	step := int(math.RoundToEven(t / g.gridInterval))
	expected := float64(step) * g.gridInterval
	return GridPoint{
		Step:        step,
		Expected:    expected,
		DeviationMs: (t - expected) * 1000,
	}
}

// BeatPosition returns where a time falls within its bar as a 1-based
// beat count, fractional part included. Values lie in [1, 5): 1.0 is the
// downbeat, 2.5 the and of two.
func (g *TimingGrid) BeatPosition(t float64) float64 {
	return math.Mod(t/g.beatInterval, beatsPerBar) + 1
}

// BarNumber returns the 1-based bar a time falls in.
func (g *TimingGrid) BarNumber(t float64) int {
	return int(t/(beatsPerBar*g.beatInterval)) + 1
}

// StepInBar converts an absolute grid step to its 1-based bar number and
// 1-based step within that bar.
func (g *TimingGrid) StepInBar(step int) (bar, stepInBar int) {
	per := g.StepsPerBar()
	return step/per + 1, step%per + 1
}
