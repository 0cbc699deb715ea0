// Package audio decodes WAV and MP3 recordings into mono sample buffers
// for groove analysis.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Buffer holds decoded mono audio with samples in [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Metadata describes the decoded source file.
type Metadata struct {
	Path       string
	Format     string // "wav" or "mp3"
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
}

// Load decodes an audio file into a mono buffer. Stereo sources are
// downmixed by channel averaging. The format is chosen by extension;
// anything other than WAV or MP3 is rejected up front.
func Load(path string) (*Buffer, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return loadWAV(f, path)
	case ".mp3":
		return loadMP3(f, path)
	default:
		return nil, nil, fmt.Errorf("unsupported audio format %q (want .wav or .mp3): %s", filepath.Ext(path), path)
	}
}

// loadWAV decodes a PCM WAV file via go-audio/wav.
func loadWAV(f *os.File, path string) (*Buffer, *Metadata, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("not a valid WAV file: %s", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, nil, fmt.Errorf("WAV file contains no samples: %s", path)
	}

	channels, bitDepth := wavFormat(dec, pcm)
	samples := downmix(pcm.Data, channels, float64(int64(1)<<(bitDepth-1)))

	buf := &Buffer{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
	}
	meta := &Metadata{
		Path:       path,
		Format:     "wav",
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
		Duration:   buf.Duration(),
	}
	return buf, meta, nil
}

// wavFormat resolves the channel count and bit depth of a decoded WAV,
// preferring the PCM buffer's own format over the decoder header and
// falling back to 16-bit mono when both are silent.
func wavFormat(dec *wav.Decoder, pcm *goaudio.IntBuffer) (channels, bitDepth int) {
	channels = int(dec.NumChans)
	if pcm.Format != nil && pcm.Format.NumChannels > 0 {
		channels = pcm.Format.NumChannels
	}
	if channels <= 0 {
		channels = 1
	}

	bitDepth = int(dec.BitDepth)
	if pcm.SourceBitDepth > 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return channels, bitDepth
}

// loadMP3 decodes an MP3 stream via go-mp3, which always emits
// interleaved 16-bit little-endian stereo regardless of the source.
func loadMP3(f *os.File, path string) (*Buffer, *Metadata, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open MP3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode MP3 data: %w", err)
	}

	// 4 bytes per frame: left int16 + right int16
	frames := len(raw) / 4
	if frames == 0 {
		return nil, nil, fmt.Errorf("MP3 file contains no samples: %s", path)
	}

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	buf := &Buffer{
		Samples:    samples,
		SampleRate: dec.SampleRate(),
	}
	meta := &Metadata{
		Path:       path,
		Format:     "mp3",
		SampleRate: dec.SampleRate(),
		Channels:   2,
		BitDepth:   16,
		Duration:   buf.Duration(),
	}
	return buf, meta, nil
}
