package groove

import (
	"errors"
	"math"
	"testing"
)

func TestNewOnsetDetector(t *testing.T) {
	det, err := NewOnsetDetector(DefaultDetectorConfig())
	if err != nil {
		t.Fatalf("NewOnsetDetector() error = %v", err)
	}
	if got := det.Config().FrameSize; got != defaultFrameSize {
		t.Errorf("Config().FrameSize = %d, want %d", got, defaultFrameSize)
	}

	bad := DefaultDetectorConfig()
	bad.HopLength = 0
	if _, err := NewOnsetDetector(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid config error = %v, want ErrInvalidConfig", err)
	}
}

func TestDetectValidation(t *testing.T) {
	det, _ := NewOnsetDetector(DefaultDetectorConfig())

	if _, err := det.Detect(make([]float64, testSampleRate), 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero sample rate error = %v, want ErrInvalidConfig", err)
	}

	// Silence and too-short buffers are empty results, not errors.
	onsets, err := det.Detect(make([]float64, testSampleRate), testSampleRate)
	if err != nil || len(onsets) != 0 {
		t.Errorf("silence = (%v, %v), want no onsets and no error", onsets, err)
	}
	onsets, err = det.Detect(make([]float64, 100), testSampleRate)
	if err != nil || len(onsets) != 0 {
		t.Errorf("short buffer = (%v, %v), want no onsets and no error", onsets, err)
	}
}

func TestDetectBursts(t *testing.T) {
	times := []float64{0.5, 1.0, 1.5}
	specs := make([]burstSpec, len(times))
	for i, at := range times {
		specs[i] = burstSpec{At: at}
	}
	buf := burstBuffer(t, 2.2, specs)

	det, _ := NewOnsetDetector(DefaultDetectorConfig())
	onsets, err := det.Detect(buf, testSampleRate)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(onsets) != len(times) {
		t.Fatalf("got %d onsets, want %d: %v", len(onsets), len(times), onsets)
	}

	for i, on := range onsets {
		if math.Abs(on.Time-times[i]) > 0.06 {
			t.Errorf("onset %d at %.3fs, want near %.3fs", i, on.Time, times[i])
		}
		if on.Strength <= 0 || on.Strength > 1 {
			t.Errorf("onset %d strength = %g, want in (0, 1]", i, on.Strength)
		}
		if on.Channel != ChannelUnknown {
			t.Errorf("onset %d channel = %s, want unknown before assignment", i, on.Channel)
		}
		if i > 0 && on.Time <= onsets[i-1].Time {
			t.Errorf("onsets out of order: %v", onsets)
		}
	}
}

func TestDetectStrengthTracksLevel(t *testing.T) {
	buf := burstBuffer(t, 2.0, []burstSpec{
		{At: 0.5, Amp: 0.9},
		{At: 1.2, Amp: 0.3},
	})

	det, _ := NewOnsetDetector(DefaultDetectorConfig())
	onsets, err := det.Detect(buf, testSampleRate)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(onsets) != 2 {
		t.Fatalf("got %d onsets, want 2: %v", len(onsets), onsets)
	}
	if onsets[0].Strength != 1.0 {
		t.Errorf("loud burst strength = %g, want 1.0 after normalisation", onsets[0].Strength)
	}
	if onsets[1].Strength >= onsets[0].Strength {
		t.Errorf("quiet burst strength %g not below loud burst %g", onsets[1].Strength, onsets[0].Strength)
	}
}

func TestDetectDebounce(t *testing.T) {
	// Two bursts 50ms apart fall inside the default 10-frame wait, so
	// only the first survives.
	buf := burstBuffer(t, 1.2, []burstSpec{{At: 0.5}, {At: 0.55}})

	det, _ := NewOnsetDetector(DefaultDetectorConfig())
	onsets, err := det.Detect(buf, testSampleRate)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(onsets) != 1 {
		t.Fatalf("got %d onsets, want the flam debounced to 1: %v", len(onsets), onsets)
	}

	// 200ms apart clears the wait comfortably.
	buf = burstBuffer(t, 1.2, []burstSpec{{At: 0.5}, {At: 0.7}})
	onsets, err = det.Detect(buf, testSampleRate)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(onsets) != 2 {
		t.Fatalf("got %d onsets, want 2: %v", len(onsets), onsets)
	}
}

func TestDetectBandLimiting(t *testing.T) {
	// One low tone and one high tone: the kick preset must hear only
	// the former, the hihat preset only the latter.
	buf := make([]float64, int(2.0*testSampleRate))
	addToneBurst(t, buf, 0.5, 0.06, 100, 0.6)
	addToneBurst(t, buf, 1.3, 0.06, 8000, 0.6)

	t.Run("kick preset", func(t *testing.T) {
		det, err := NewOnsetDetector(KickDetectorConfig(nil))
		if err != nil {
			t.Fatalf("NewOnsetDetector() error = %v", err)
		}
		onsets, err := det.Detect(buf, testSampleRate)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(onsets) != 1 {
			t.Fatalf("got %d onsets, want 1: %v", len(onsets), onsets)
		}
		if math.Abs(onsets[0].Time-0.5) > 0.07 {
			t.Errorf("onset at %.3fs, want near the 100Hz burst at 0.5s", onsets[0].Time)
		}
	})

	t.Run("hihat preset", func(t *testing.T) {
		det, err := NewOnsetDetector(HihatDetectorConfig())
		if err != nil {
			t.Fatalf("NewOnsetDetector() error = %v", err)
		}
		onsets, err := det.Detect(buf, testSampleRate)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(onsets) != 1 {
			t.Fatalf("got %d onsets, want 1: %v", len(onsets), onsets)
		}
		if math.Abs(onsets[0].Time-1.3) > 0.07 {
			t.Errorf("onset at %.3fs, want near the 8kHz burst at 1.3s", onsets[0].Time)
		}
	})
}

func TestDetectHumGuard(t *testing.T) {
	// A kick burst placed halfway between FFT bins so its energy spreads
	// across the band, plus 50Hz and 100Hz mains hum switching on at
	// 1.3s. The hum level step rises in four of the six kick band bins,
	// enough to clear the bin median; masking the hum bins leaves only
	// the burst.
	const burstHz = 5.5 * testSampleRate / 2048.0

	buf := make([]float64, int(3.0*testSampleRate))
	addToneBurst(t, buf, 0.5, 0.06, burstHz, 0.6)
	addToneBurst(t, buf, 1.3, 1.69, 50, 0.05)
	addToneBurst(t, buf, 1.3, 1.69, 100, 0.05)

	t.Run("guarded", func(t *testing.T) {
		det, err := NewOnsetDetector(KickDetectorConfig([]float64{50, 100}))
		if err != nil {
			t.Fatalf("NewOnsetDetector() error = %v", err)
		}
		onsets, err := det.Detect(buf, testSampleRate)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(onsets) != 1 {
			t.Fatalf("got %d onsets, want only the kick burst: %v", len(onsets), onsets)
		}
		if math.Abs(onsets[0].Time-0.5) > 0.07 {
			t.Errorf("onset at %.3fs, want near the burst at 0.5s", onsets[0].Time)
		}
	})

	t.Run("unguarded", func(t *testing.T) {
		det, err := NewOnsetDetector(KickDetectorConfig(nil))
		if err != nil {
			t.Fatalf("NewOnsetDetector() error = %v", err)
		}
		onsets, err := det.Detect(buf, testSampleRate)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(onsets) != 2 {
			t.Fatalf("got %d onsets, want the burst and the hum step: %v", len(onsets), onsets)
		}
		if math.Abs(onsets[0].Time-0.5) > 0.07 {
			t.Errorf("first onset at %.3fs, want near the burst at 0.5s", onsets[0].Time)
		}
		if math.Abs(onsets[1].Time-1.3) > 0.07 {
			t.Errorf("second onset at %.3fs, want near the hum step at 1.3s", onsets[1].Time)
		}
	})
}

func TestStrictLocalMax(t *testing.T) {
	env := []float64{0, 1, 3, 1, 3, 0}

	tests := []struct {
		name string
		t    int
		want bool
	}{
		{"clear peak over a short context", 2, true},
		{"equal value in context is not strict", 4, false},
		{"valley", 3, false},
		{"edge clips the window", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strictLocalMax(env, tt.t, 2, 1); got != tt.want {
				t.Errorf("strictLocalMax(%v, %d) = %v, want %v", env, tt.t, got, tt.want)
			}
		})
	}
}

func TestBacktrackToMinimum(t *testing.T) {
	env := []float64{0.5, 0.1, 0.2, 0.6, 1.0, 0.4}

	if got := backtrackToMinimum(env, 4); got != 1 {
		t.Errorf("backtrack from 4 = %d, want the minimum at 1", got)
	}
	if got := backtrackToMinimum(env, 0); got != 0 {
		t.Errorf("backtrack from 0 = %d, want 0", got)
	}
}

func TestDetectBacktrack(t *testing.T) {
	buf := burstBuffer(t, 1.2, []burstSpec{{At: 0.5}})

	cfg := DefaultDetectorConfig()
	cfg.Backtrack = true
	det, err := NewOnsetDetector(cfg)
	if err != nil {
		t.Fatalf("NewOnsetDetector() error = %v", err)
	}
	onsets, err := det.Detect(buf, testSampleRate)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(onsets) != 1 {
		t.Fatalf("got %d onsets, want 1: %v", len(onsets), onsets)
	}
	// Backtracking moves the reported time to the envelope rise, which
	// starts no later than the peak and at most a few frames earlier.
	if onsets[0].Time > 0.56 || onsets[0].Time < 0.40 {
		t.Errorf("backtracked onset at %.3fs, want just before the burst at 0.5s", onsets[0].Time)
	}
}
