package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riddimlab/grooveprint/internal/groove"
)

// Document is the JSON analysis document written next to each input.
// Field names are a wire contract; the generation tooling reads them
// verbatim.
type Document struct {
	Metadata          documentMetadata         `json:"metadata"`
	GrooveData        []groove.GrooveRow       `json:"groove_data"`
	HumanizationStats groove.HumanizationStats `json:"humanization_stats"`
}

type documentMetadata struct {
	groove.Metadata
	AnalyzedDate    string `json:"analyzed_date"`
	AnalyzerVersion string `json:"analyzer_version"`
}

// BuildDocument shapes a result into the JSON document. version is the
// analyzer build version stamped into the metadata.
func BuildDocument(res *groove.Result, version string) Document {
	rows := res.Rows
	if rows == nil {
		// Silence yields an empty array, never null.
		rows = []groove.GrooveRow{}
	}
	return Document{
		Metadata: documentMetadata{
			Metadata:        res.Metadata,
			AnalyzedDate:    time.Now().UTC().Format(time.RFC3339),
			AnalyzerVersion: version,
		},
		GrooveData:        rows,
		HumanizationStats: res.Stats,
	}
}

// WriteFile serializes the document to path, indented for human eyes.
func WriteFile(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding analysis document: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing analysis document: %w", err)
	}
	return nil
}

// JSONPath derives the document path for an input file:
// "take.wav" becomes "take-groove.json" alongside it.
func JSONPath(inputPath string) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + "-groove.json"
}
