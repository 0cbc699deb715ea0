package groove

import (
	"math"
	"sort"
)

// StyleID names a Jamaican drum style in the catalog.
type StyleID string

const (
	StyleSka         StyleID = "ska"
	StyleRocksteady  StyleID = "rocksteady"
	StyleEarlyReggae StyleID = "early_reggae"
	StyleOneDrop     StyleID = "one_drop"
	StyleSteppers    StyleID = "steppers"
	StyleUnknown     StyleID = "unknown"
)

// StyleTemplate is one catalog entry: the characteristic 16-step bar per
// drum voice plus the tempo range the style lives in. Steps are 1-based
// within the bar; step 1 is the downbeat, step 9 is beat three.
type StyleTemplate struct {
	ID          StyleID
	Description string
	KickSteps   []int
	SnareSteps  []int
	HihatSteps  []int
	MinBPM      float64
	MaxBPM      float64
	TypicalBPM  float64
}

// Steps returns the template steps for one drum voice.
func (t StyleTemplate) Steps(ch Channel) []int {
	switch ch {
	case ChannelKick:
		return t.KickSteps
	case ChannelSnare:
		return t.SnareSteps
	case ChannelHihat:
		return t.HihatSteps
	}
	return nil
}

// InRange reports whether bpm falls inside the style's tempo range.
func (t StyleTemplate) InRange(bpm float64) bool {
	return bpm >= t.MinBPM && bpm <= t.MaxBPM
}

// styleCatalog holds the five core styles in their historical order, ska
// through steppers. Tempo ranges follow common session practice.
var styleCatalog = []StyleTemplate{
	{
		ID:          StyleSka,
		Description: "kick on 1 and 3, snare afterbeat on 2 and 4, hihat with the kick",
		KickSteps:   []int{1, 9},
		SnareSteps:  []int{5, 13},
		HihatSteps:  []int{1, 5, 9, 13},
		MinBPM:      110, MaxBPM: 180, TypicalBPM: 145,
	},
	{
		ID:          StyleRocksteady,
		Description: "kick on 1 and 3, single snare on 3, hihat on the offbeat 8ths",
		KickSteps:   []int{1, 9},
		SnareSteps:  []int{9},
		HihatSteps:  []int{3, 7, 11, 15},
		MinBPM:      70, MaxBPM: 95, TypicalBPM: 82,
	},
	{
		ID:          StyleEarlyReggae,
		Description: "kick on 1 and 3, snare on 3, straight 8th hihat",
		KickSteps:   []int{1, 9},
		SnareSteps:  []int{9},
		HihatSteps:  []int{1, 3, 5, 7, 9, 11, 13, 15},
		MinBPM:      72, MaxBPM: 100, TypicalBPM: 85,
	},
	{
		ID:          StyleOneDrop,
		Description: "kick and snare together on 3 only, nothing on the one",
		KickSteps:   []int{9},
		SnareSteps:  []int{9},
		HihatSteps:  []int{3, 7, 11, 15},
		MinBPM:      65, MaxBPM: 90, TypicalBPM: 76,
	},
	{
		ID:          StyleSteppers,
		Description: "four-on-the-floor kick, snare on 3, offbeat hihat",
		KickSteps:   []int{1, 5, 9, 13},
		SnareSteps:  []int{9},
		HihatSteps:  []int{3, 7, 11, 15},
		MinBPM:      70, MaxBPM: 92, TypicalBPM: 78,
	},
}

// specificityOrder ranks styles for score tie-breaking, most distinctive
// first. One drop's bare step 9 is unmistakable; ska's busy grid matches
// loosely against almost anything.
var specificityOrder = []StyleID{
	StyleOneDrop,
	StyleSteppers,
	StyleRocksteady,
	StyleEarlyReggae,
	StyleSka,
}

// Styles returns the full catalog in display order. The returned slice
// is shared; callers must not modify it.
func Styles() []StyleTemplate {
	return styleCatalog
}

// TemplateFor returns the catalog entry for a style.
func TemplateFor(id StyleID) (StyleTemplate, bool) {
	for _, t := range styleCatalog {
		if t.ID == id {
			return t, true
		}
	}
	return StyleTemplate{}, false
}

// StyleSuggestion pairs a style with how well a tempo fits it.
type StyleSuggestion struct {
	Style      StyleID
	Confidence float64
}

// SuggestStylesFromBPM returns the styles whose tempo range contains
// bpm, most confident first. Confidence grows towards 1.0 as the tempo
// approaches the style's typical BPM and never drops below 0.5 for an
// in-range match.
func SuggestStylesFromBPM(bpm float64) []StyleSuggestion {
	var out []StyleSuggestion
	for _, t := range styleCatalog {
		if !t.InRange(bpm) {
			continue
		}
		halfRange := (t.MaxBPM - t.MinBPM) / 2
		conf := 1.0
		if halfRange > 0 {
			conf = 1.0 - math.Abs(bpm-t.TypicalBPM)/halfRange
		}
		out = append(out, StyleSuggestion{Style: t.ID, Confidence: clamp(conf, 0.5, 1.0)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
