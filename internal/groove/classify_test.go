package groove

import (
	"math"
	"testing"
)

func TestClassifySnare(t *testing.T) {
	tests := []struct {
		name    string
		decayMs float64
		want    SnareArticulation
	}{
		{"sharp cross stick", 80, SnareCrossStick},
		{"just under the sustain limit", 140, SnareCrossStick},
		{"one ms under the limit", 149, SnareCrossStick},
		{"one ms over the limit", 151, SnareFull},
		{"just over the sustain limit", 160, SnareFull},
		{"ringing full snare", 300, SnareFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := decayBuffer(t, 0.6, tt.decayMs)
			if got := ClassifySnare(buf, testSampleRate, 0); got != tt.want {
				t.Errorf("ClassifySnare(decay %gms) = %s, want %s", tt.decayMs, got, tt.want)
			}
		})
	}
}

func TestClassifySnareOffsetOnset(t *testing.T) {
	// The same hit placed mid-buffer must classify identically.
	buf := make([]float64, int(0.5*testSampleRate))
	hit := decayBuffer(t, 0.35, 80)
	at := int(0.1 * testSampleRate)
	copy(buf[at:], hit)

	if got := ClassifySnare(buf, testSampleRate, 0.1); got != SnareCrossStick {
		t.Errorf("ClassifySnare at offset = %s, want cross_stick", got)
	}
}

func TestClassifyHihat(t *testing.T) {
	tests := []struct {
		name    string
		decayMs float64
		want    HihatArticulation
	}{
		{"tight closed hat", 40, HihatClosed},
		{"closed hat near the limit", 80, HihatClosed},
		{"open hat", 250, HihatOpen},
		{"open hat ringing past the window", 500, HihatOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := decayBuffer(t, 0.6, tt.decayMs)
			got := ClassifyHihat(buf, testSampleRate, 0)
			if got.Articulation != tt.want {
				t.Errorf("ClassifyHihat(decay %gms) = %s, want %s", tt.decayMs, got.Articulation, tt.want)
			}
			if got.Confidence < 0.8 {
				t.Errorf("clear-case confidence = %g, want >= 0.8", got.Confidence)
			}
		})
	}
}

func TestClassifyHihatUncertainZone(t *testing.T) {
	// A 150ms decay sits between the closed and open clear cases, so the
	// weighted score decides with capped confidence.
	buf := decayBuffer(t, 0.6, 150)
	got := ClassifyHihat(buf, testSampleRate, 0)
	if got.Articulation == HihatUnknown {
		t.Fatal("uncertain-zone hit came back unknown")
	}
	if got.Confidence > hihatUncertainMaxConfidence {
		t.Errorf("uncertain confidence = %g, want <= %g", got.Confidence, hihatUncertainMaxConfidence)
	}
}

func TestClassifyHihatTooShort(t *testing.T) {
	buf := decayBuffer(t, 0.2, 40)

	got := ClassifyHihat(buf, testSampleRate, 0.199)
	if got.Articulation != HihatUnknown {
		t.Errorf("near-end hit = %s, want unknown", got.Articulation)
	}
	if got.Confidence != 0 {
		t.Errorf("unknown confidence = %g, want 0", got.Confidence)
	}

	if got := ClassifyHihat(buf, testSampleRate, 5.0); got.Articulation != HihatUnknown {
		t.Errorf("out-of-range hit = %s, want unknown", got.Articulation)
	}
}

func TestGuessChannel(t *testing.T) {
	tests := []struct {
		name     string
		beatPos  float64
		velocity int
		want     Channel
	}{
		{"loud on the beat", 2.0, 110, ChannelKick},
		{"soft on the beat", 2.0, 70, ChannelSnare},
		{"loud on the offbeat eighth", 2.5, 110, ChannelKick},
		{"soft on the offbeat eighth", 2.5, 70, ChannelSnare},
		{"sixteenth between beats", 2.25, 120, ChannelHihat},
		{"late sixteenth", 3.75, 120, ChannelHihat},
		{"velocity floor is exclusive", 1.0, 90, ChannelSnare},
		{"just above the floor", 1.0, 91, ChannelKick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuessChannel(tt.beatPos, tt.velocity); got != tt.want {
				t.Errorf("GuessChannel(%g, %d) = %s, want %s", tt.beatPos, tt.velocity, got, tt.want)
			}
		})
	}
}

func TestSegmentAfter(t *testing.T) {
	samples := make([]float64, testSampleRate) // one second

	tests := []struct {
		name     string
		at       float64
		windowMs float64
		wantLen  int
	}{
		{"full window", 0.1, 100, int(0.1 * testSampleRate)},
		{"clipped at the end", 0.95, 100, int(0.05 * testSampleRate)},
		{"negative onset clips to the start", -0.5, 100, int(0.1 * testSampleRate)},
		{"onset past the end", 2.0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segmentAfter(samples, testSampleRate, tt.at, tt.windowMs)
			if len(got) != tt.wantLen {
				t.Errorf("segment length = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestAmplitudeEnvelope(t *testing.T) {
	// Smoothing a constant signal must not move it: every window
	// averages identical values.
	seg := make([]float64, 4410)
	for i := range seg {
		seg[i] = 0.75
	}
	env := amplitudeEnvelope(seg, testSampleRate, sustainSmoothingMs)
	if len(env) != len(seg) {
		t.Fatalf("envelope length = %d, want %d", len(env), len(seg))
	}
	for i, v := range env {
		if math.Abs(v-0.75) > 1e-9 {
			t.Fatalf("env[%d] = %g, want 0.75", i, v)
		}
	}

	// Rectification folds negative samples up.
	env = amplitudeEnvelope([]float64{-1, 1, -1, 1}, testSampleRate, sustainSmoothingMs)
	for i, v := range env {
		if v != 1 {
			t.Errorf("env[%d] = %g, want 1", i, v)
		}
	}
}

func TestTemporalCentroid(t *testing.T) {
	seg := make([]float64, 1000)

	seg[0] = 1
	if got := temporalCentroid(seg, testSampleRate); got != 0 {
		t.Errorf("centroid of an attack-only segment = %g, want 0", got)
	}

	seg[0] = 0
	seg[999] = 1
	want := 999.0 / testSampleRate
	if got := temporalCentroid(seg, testSampleRate); math.Abs(got-want) > 1e-9 {
		t.Errorf("centroid of a tail-only segment = %g, want %g", got, want)
	}

	if got := temporalCentroid(make([]float64, 100), testSampleRate); got != 0 {
		t.Errorf("centroid of silence = %g, want 0", got)
	}
}

func TestSpectralFlatness(t *testing.T) {
	const n = 2048

	// A bin-centred sine concentrates all energy in one bin.
	sine := make([]float64, n)
	for i := range sine {
		sine[i] = math.Sin(2 * math.Pi * 32 * float64(i) / n)
	}
	if got := spectralFlatness(sine); got > 0.01 {
		t.Errorf("flatness(sine) = %g, want near 0", got)
	}

	noise := make([]float64, n)
	next := newNoiseSource(7)
	for i := range noise {
		noise[i] = next()
	}
	if got := spectralFlatness(noise); got < 0.5 {
		t.Errorf("flatness(noise) = %g, want > 0.5", got)
	}
}
