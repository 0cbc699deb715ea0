package groove

import (
	"gonum.org/v1/gonum/stat"
)

// SwingResult describes the long-short feel of consecutive 8th-note
// intervals. A percentage of 50 is dead straight; 66.7 is a full
// triplet shuffle.
type SwingResult struct {
	Percentage float64 `json:"swing_percentage"`
	Ratio      float64 `json:"swing_ratio"` // 1.0 straight, 2.0 full shuffle
	IsSwung    bool    `json:"is_swung"`
	Confidence float64 `json:"confidence"`
	Feel       string  `json:"feel"`
}

// minSwingIntervals is the fewest consecutive intervals worth measuring.
const minSwingIntervals = 4

// AnalyzeSwing measures swing from consecutive onset intervals, usually
// on the hi-hat channel. Intervals pair up without overlap and each pair
// contributes long/(long+short); the mean of those ratios is the swing
// percentage. Too little material comes back straight with zero
// confidence rather than as an error.
func AnalyzeSwing(onsets []Onset) SwingResult {
	if len(onsets) < 2 {
		return straightSwing()
	}
	intervals := make([]float64, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		intervals[i-1] = onsets[i].Time - onsets[i-1].Time
	}
	return SwingFromIntervals(intervals)
}

// SwingFromIntervals measures swing from pre-computed inter-onset
// intervals in seconds.
func SwingFromIntervals(intervals []float64) SwingResult {
	if len(intervals) < minSwingIntervals {
		return straightSwing()
	}

	var ratios []float64
	for i := 0; i+1 < len(intervals); i += 2 {
		long, short := intervals[i], intervals[i+1]
		if short > long {
			long, short = short, long
		}
		if total := long + short; total > 0 {
			ratios = append(ratios, long/total)
		}
	}
	if len(ratios) == 0 {
		return straightSwing()
	}

	mean := stat.Mean(ratios, nil)
	spread := stat.PopStdDev(ratios, nil)

	pct := mean * 100
	ratio := 1.0
	if mean > 0.5 {
		ratio = mean / (1 - mean)
	}

	return SwingResult{
		Percentage: pct,
		Ratio:      ratio,
		IsSwung:    pct > swingThresholdPct,
		Confidence: clamp(1-spread*10, 0, 1),
		Feel:       swingFeel(pct),
	}
}

func straightSwing() SwingResult {
	return SwingResult{
		Percentage: swingStraightPct,
		Ratio:      1.0,
		Feel:       swingFeel(swingStraightPct),
	}
}

// swingFeel names the groove a swing percentage implies.
func swingFeel(pct float64) string {
	switch {
	case pct < 52:
		return "straight"
	case pct < 58:
		return "light swing"
	case pct < 64:
		return "moderate swing"
	default:
		return "heavy shuffle"
	}
}

// swingRangeByStyle holds the typical swing window per style. Ska and
// steppers sit almost straight; one drop leans hardest on the shuffle.
// Early reggae never settled on a window, so it has no entry.
var swingRangeByStyle = map[StyleID][2]float64{
	StyleSka:        {50, 55},
	StyleRocksteady: {52, 60},
	StyleOneDrop:    {55, 65},
	StyleSteppers:   {50, 55},
}

// SwingWithinStyle places a measured swing percentage against the
// style's typical window: -1 below it, 0 inside, +1 above. The second
// return is false when the style has no recorded window.
func SwingWithinStyle(pct float64, style StyleID) (int, bool) {
	r, ok := swingRangeByStyle[style]
	if !ok {
		return 0, false
	}
	switch {
	case pct < r[0]:
		return -1, true
	case pct > r[1]:
		return 1, true
	}
	return 0, true
}

// SwingRangeForStyle returns the style's typical swing window.
func SwingRangeForStyle(style StyleID) (low, high float64, ok bool) {
	r, found := swingRangeByStyle[style]
	if !found {
		return 0, 0, false
	}
	return r[0], r[1], true
}
