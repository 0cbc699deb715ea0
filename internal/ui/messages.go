package ui

import (
	"github.com/riddimlab/grooveprint/internal/groove"
)

// ProgressMsg represents a progress update from the analysis engine
type ProgressMsg struct {
	Stage     int     // pipeline stage, 0 while decoding
	StageName string  // "Tempo", "Onsets", ...
	Fraction  float64 // 0.0 to 1.0
	Onsets    int     // onsets detected so far
}

// FileStartMsg indicates a new file has started analysis
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileCompleteMsg indicates a file has finished analysis
type FileCompleteMsg struct {
	FileIndex  int
	Result     *groove.Result
	JSONPath   string
	ReportPath string
	Error      error
}

// AllCompleteMsg indicates all files have been analyzed
type AllCompleteMsg struct{}
