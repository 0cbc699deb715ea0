package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderAnalysisView renders the main analysis view
func renderAnalysisView(m Model) string {
	var b strings.Builder

	// Header
	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	// File queue
	b.WriteString(renderFileQueue(m))
	b.WriteString("\n\n")

	// Overall progress
	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#A40000")).
		Render("Grooveprint 🥁 - Drum Groove Analyzer")

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true).
		Render(fmt.Sprintf("Analyzing %d file(s)", m.TotalFiles))

	return title + "\n" + subtitle
}

// renderFileQueue renders the list of files with their status
func renderFileQueue(m Model) string {
	var b strings.Builder

	spinner := spinnerFrames[m.spinnerIndex]
	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file, spinner))
		b.WriteString("\n")
	}

	return b.String()
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress, spinner string) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		// ✓ completed file with summary
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")
		return fmt.Sprintf(" %s %s → %s\n   %s",
			icon, fileName, filepath.Base(file.JSONPath), resultSummary(file))

	case StatusAnalyzing:
		// ⚙ active file with detailed progress
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Render("⚙")
		return fmt.Sprintf(" %s %s\n%s", icon, fileName, renderFileDetails(file, spinner))

	case StatusError:
		// ✗ failed file
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		// ○ queued file
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// resultSummary produces the one-line verdict for a completed file.
func resultSummary(file FileProgress) string {
	res := file.Result
	if res == nil {
		return "Done"
	}

	parts := []string{
		fmt.Sprintf("Style: %s", res.Style),
		fmt.Sprintf("%.1f BPM", res.Metadata.TempoBPM),
		fmt.Sprintf("Swing %.0f%%", res.Swing.Percentage),
	}
	if seg := res.Segment; seg != nil {
		parts = append(parts, fmt.Sprintf("Bars %d-%d @ %.0f%%", seg.StartBar, seg.EndBar, seg.Quality*100))
	} else {
		parts = append(parts, "no stable segment")
	}
	return strings.Join(parts, " | ")
}

// renderFileDetails renders detailed progress for the active file
func renderFileDetails(file FileProgress, spinner string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#A40000")).
		Padding(0, 1).
		Width(60)

	var content strings.Builder

	// Stage indicator
	stageName := file.StageName
	if stageName == "" {
		stageName = "Decoding"
	}
	if file.Stage > 0 {
		content.WriteString(fmt.Sprintf("Stage %d/%d: %s\n", file.Stage, totalStages, stageName))
	} else {
		content.WriteString(stageName + "\n")
	}

	// Progress bar with spinner
	spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	content.WriteString(spinnerStyle.Render(spinner))
	content.WriteString(" ")
	content.WriteString(renderProgressBar(file.Fraction, 40))
	content.WriteString("\n\n")

	// Time estimates
	elapsed := file.ElapsedTime.Seconds()
	var remaining float64
	if file.Fraction > 0 {
		remaining = (elapsed / file.Fraction) - elapsed
	}
	content.WriteString(fmt.Sprintf("⏱  Elapsed: %.1fs | Remaining: ~%.1fs\n", elapsed, remaining))

	// Onset counter once detection has run
	if file.Onsets > 0 {
		content.WriteString(fmt.Sprintf("🥁 Onsets: %d", file.Onsets))
	}

	return box.Render(content.String())
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %d%%", bar, percentage)
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#888888")).
		Padding(0, 1).
		Width(60)

	// Show current file being analyzed
	var content string
	if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
		currentFile := m.CurrentIndex + 1 // 1-indexed for display
		content = fmt.Sprintf("Analyzing file %d of %d (%d complete)",
			currentFile, m.TotalFiles, m.CompletedFiles)
	} else {
		content = fmt.Sprintf("Overall Progress: %d/%d complete", m.CompletedFiles, m.TotalFiles)
	}

	return box.Render(content)
}

// renderCompletionSummary renders the final completion summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	// Completion header
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00AA00")).
		Render("✨ Analysis Complete!")
	b.WriteString(header)
	b.WriteString("\n\n")

	// Summary for each file
	for _, file := range m.Files {
		switch file.Status {
		case StatusComplete:
			b.WriteString(renderCompletedFile(file))
			b.WriteString("\n")
		case StatusError:
			icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
			b.WriteString(fmt.Sprintf(" %s %s\n   Error: %v\n", icon, filepath.Base(file.InputPath), file.Error))
		}
	}

	// Overall summary
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	b.WriteString("Groove data written alongside each recording ✓\n")
	b.WriteString("Import the -groove.json documents into your pattern tooling!\n")

	return b.String()
}

// renderCompletedFile renders a summary for a completed file
func renderCompletedFile(file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")

	var b strings.Builder
	fmt.Fprintf(&b, " %s %s → %s\n", icon, fileName, filepath.Base(file.JSONPath))
	fmt.Fprintf(&b, "   %s", resultSummary(file))
	if file.ReportPath != "" {
		fmt.Fprintf(&b, "\n   Report: %s", filepath.Base(file.ReportPath))
	}

	return b.String()
}
