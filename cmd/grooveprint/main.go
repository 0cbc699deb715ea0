package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/riddimlab/grooveprint/internal/audio"
	"github.com/riddimlab/grooveprint/internal/cli"
	"github.com/riddimlab/grooveprint/internal/export"
	"github.com/riddimlab/grooveprint/internal/groove"
	"github.com/riddimlab/grooveprint/internal/logging"
	"github.com/riddimlab/grooveprint/internal/mains"
	"github.com/riddimlab/grooveprint/internal/ui"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version     bool     `short:"v" help:"Show version information"`
	BPM         float64  `help:"Known tempo in BPM; skips detection" default:"0"`
	Style       string   `help:"Style hint: ska, rocksteady, early_reggae, one_drop or steppers"`
	Sig         string   `help:"Time signature of the recording" default:"4/4"`
	KickStem    string   `type:"existingfile" help:"Isolated kick stem (single input file only)"`
	SnareStem   string   `type:"existingfile" help:"Isolated snare stem (single input file only)"`
	HihatStem   string   `type:"existingfile" help:"Isolated hi-hat stem (single input file only)"`
	Mains       int      `help:"Mains frequency in Hz for hum masking; 0 detects from the timezone, negative disables" default:"0"`
	AverageBars bool     `help:"Average humanization vectors across the segment"`
	Logs        bool     `help:"Save detailed analysis reports"`
	NoTui       bool     `help:"Plain console output instead of the TUI"`
	Files       []string `arg:"" name:"files" help:"Audio files to analyze" type:"existingfile" optional:""`
}

// runOptions carries the per-run analysis settings derived from flags.
type runOptions struct {
	BPM           float64
	TimeSignature string
	StyleHint     groove.StyleID
	HumBins       []float64
	Logs          bool
	KickStem      string
	SnareStem     string
	HihatStem     string
}

// fileAnalysis is everything produced for one input file.
type fileAnalysis struct {
	Report     logging.ReportData
	ReportPath string // empty unless --logs
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("grooveprint"),
		kong.Description("Drum groove analyzer for Jamaican styles"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	// Validate input
	if len(cliArgs.Files) == 0 {
		cli.PrintError("No input files specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	// Validate the style hint against the catalog
	styleHint := groove.StyleUnknown
	if cliArgs.Style != "" {
		id := groove.StyleID(cliArgs.Style)
		if _, ok := groove.TemplateFor(id); !ok {
			cli.PrintError(fmt.Sprintf("Unknown style %q (choose from %s)", cliArgs.Style, styleNames()))
			os.Exit(1)
		}
		styleHint = id
	}

	// Stems describe one recording, so they pair with one input file
	hasStems := cliArgs.KickStem != "" || cliArgs.SnareStem != "" || cliArgs.HihatStem != ""
	if hasStems && len(cliArgs.Files) > 1 {
		cli.PrintError("Stem flags apply to a single input file")
		os.Exit(1)
	}

	// Resolve mains hum masking
	mainsHz := cliArgs.Mains
	if mainsHz == 0 {
		mainsHz = mains.Frequency()
	}

	run := runOptions{
		BPM:           cliArgs.BPM,
		TimeSignature: cliArgs.Sig,
		StyleHint:     styleHint,
		HumBins:       mains.HumBins(mainsHz),
		Logs:          cliArgs.Logs,
		KickStem:      cliArgs.KickStem,
		SnareStem:     cliArgs.SnareStem,
		HihatStem:     cliArgs.HihatStem,
	}

	if cliArgs.NoTui {
		os.Exit(runPlain(cliArgs, run))
	}
	os.Exit(runTUI(cliArgs, run))
}

// runTUI drives the Bubbletea interface with a background analysis worker.
func runTUI(cliArgs *CLI, run runOptions) int {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the Bubbletea UI model
	model := ui.NewModel(cliArgs.Files, cancel)

	// Start the TUI
	p := tea.NewProgram(model, tea.WithAltScreen())

	eng, err := groove.NewEngine(groove.EngineOptions{
		AverageBars: cliArgs.AverageBars,
		Progress: func(stage int, name string, fraction float64, onsets int) {
			p.Send(ui.ProgressMsg{Stage: stage, StageName: name, Fraction: fraction, Onsets: onsets})
		},
	})
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}

	// Start analysis in background
	go func() {
		for i, inputPath := range cliArgs.Files {
			if runCtx.Err() != nil {
				break
			}

			// Signal file start
			p.Send(ui.FileStartMsg{
				FileIndex: i,
				FileName:  inputPath,
			})
			p.Send(ui.ProgressMsg{StageName: "Decoding", Fraction: 0.05})

			a, err := analyzeFile(runCtx, eng, inputPath, run)
			if err != nil {
				p.Send(ui.FileCompleteMsg{
					FileIndex: i,
					Error:     err,
				})
				continue
			}

			// Signal file complete with actual data
			p.Send(ui.FileCompleteMsg{
				FileIndex:  i,
				Result:     a.Report.Result,
				JSONPath:   a.Report.JSONPath,
				ReportPath: a.ReportPath,
			})
		}

		// Signal all complete
		p.Send(ui.AllCompleteMsg{})
	}()

	// Run the program
	finalModel, err := p.Run()
	if err != nil {
		cli.PrintError(fmt.Sprintf("UI error: %v", err))
		return 1
	}
	if m, ok := finalModel.(ui.Model); ok && m.FailedFiles > 0 {
		return 1
	}
	return 0
}

// runPlain analyzes each file and prints the full report to stdout.
func runPlain(cliArgs *CLI, run runOptions) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := groove.NewEngine(groove.EngineOptions{
		AverageBars: cliArgs.AverageBars,
	})
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}

	failed := 0
	for i, inputPath := range cliArgs.Files {
		if ctx.Err() != nil {
			break
		}

		a, err := analyzeFile(ctx, eng, inputPath, run)
		if err != nil {
			cli.PrintError(fmt.Sprintf("%s: %v", filepath.Base(inputPath), err))
			failed++
			continue
		}

		if i > 0 {
			fmt.Println()
		}
		logging.WriteAnalysis(os.Stdout, a.Report)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// analyzeFile decodes one recording, runs the pipeline and writes the
// groove document (and report, with --logs) alongside the input.
func analyzeFile(ctx context.Context, eng *groove.Engine, inputPath string, run runOptions) (fileAnalysis, error) {
	start := time.Now()

	buf, meta, err := audio.Load(inputPath)
	if err != nil {
		return fileAnalysis{}, err
	}
	audio.Normalise(buf.Samples)
	decodeTime := time.Since(start)

	stems, err := loadStems(run, meta.SampleRate)
	if err != nil {
		return fileAnalysis{}, err
	}

	analysisStart := time.Now()
	res, err := eng.Analyze(ctx, groove.Input{
		FilePath:      inputPath,
		Samples:       buf.Samples,
		SampleRate:    buf.SampleRate,
		Stems:         stems,
		BPM:           run.BPM,
		TimeSignature: run.TimeSignature,
		StyleHint:     run.StyleHint,
		HumBins:       run.HumBins,
	})
	if err != nil {
		return fileAnalysis{}, err
	}
	analysisTime := time.Since(analysisStart)

	jsonPath := export.JSONPath(inputPath)
	if err := export.WriteFile(jsonPath, export.BuildDocument(res, version)); err != nil {
		return fileAnalysis{}, err
	}

	fa := fileAnalysis{
		Report: logging.ReportData{
			InputPath:    inputPath,
			JSONPath:     jsonPath,
			StartTime:    start,
			EndTime:      time.Now(),
			DecodeTime:   decodeTime,
			AnalysisTime: analysisTime,
			Meta:         meta,
			Result:       res,
		},
	}

	// Generate analysis report if --logs flag is set
	if run.Logs {
		fa.ReportPath = logging.ReportPath(inputPath)
		if err := logging.GenerateReport(fa.Report); err != nil {
			return fileAnalysis{}, err
		}
	}

	return fa, nil
}

// loadStems decodes any isolated stem files. Stems must share the
// sample rate of the mix or the grid positions would not line up.
func loadStems(run runOptions, sampleRate int) (map[groove.Channel][]float64, error) {
	paths := []struct {
		ch   groove.Channel
		path string
	}{
		{groove.ChannelKick, run.KickStem},
		{groove.ChannelSnare, run.SnareStem},
		{groove.ChannelHihat, run.HihatStem},
	}

	var stems map[groove.Channel][]float64
	for _, s := range paths {
		if s.path == "" {
			continue
		}
		buf, _, err := audio.Load(s.path)
		if err != nil {
			return nil, fmt.Errorf("%s stem: %w", s.ch, err)
		}
		if buf.SampleRate != sampleRate {
			return nil, fmt.Errorf("%s stem sample rate %d Hz does not match the mix (%d Hz)", s.ch, buf.SampleRate, sampleRate)
		}
		audio.Normalise(buf.Samples)
		if stems == nil {
			stems = make(map[groove.Channel][]float64)
		}
		stems[s.ch] = buf.Samples
	}
	return stems, nil
}

// styleNames lists the catalog styles for error messages.
func styleNames() string {
	templates := groove.Styles()
	names := make([]string, len(templates))
	for i, t := range templates {
		names[i] = string(t.ID)
	}
	return strings.Join(names, ", ")
}
