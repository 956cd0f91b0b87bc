package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestShutterSoundPlaysOnceThenSilence(t *testing.T) {
	s := &shutterSound{samples: []float32{0.5, -0.5, 0.25}, volume: 1.0}

	// Not yet triggered: silence.
	if v := s.next(); v != 0 {
		t.Fatalf("expected silence before rewind, got %v", v)
	}

	s.rewind()
	want := []float32{0.5, -0.5, 0.25}
	for i, w := range want {
		if v := s.next(); v != w {
			t.Fatalf("sample %d: expected %v, got %v", i, w, v)
		}
	}
	// Exhausted: silence again, and it stays silent.
	for i := 0; i < 4; i++ {
		if v := s.next(); v != 0 {
			t.Fatalf("expected silence after clip end, got %v", v)
		}
	}
}

func TestShutterSoundVolumeScaling(t *testing.T) {
	s := &shutterSound{samples: []float32{0.8}, volume: 0.5}
	s.rewind()
	if v := s.next(); v != 0.4 {
		t.Fatalf("expected 0.4, got %v", v)
	}
}

func TestAdaptChannels(t *testing.T) {
	mono := []float32{0.1, 0.2}
	stereo := adaptChannels(mono, 1, 2)
	wantStereo := []float32{0.1, 0.1, 0.2, 0.2}
	if len(stereo) != len(wantStereo) {
		t.Fatalf("stereo length %d", len(stereo))
	}
	for i := range wantStereo {
		if stereo[i] != wantStereo[i] {
			t.Fatalf("stereo[%d]: expected %v, got %v", i, wantStereo[i], stereo[i])
		}
	}

	back := adaptChannels(stereo, 2, 1)
	for i := range mono {
		if back[i] != mono[i] {
			t.Fatalf("mono[%d]: expected %v, got %v", i, mono[i], back[i])
		}
	}
}

func TestLoadShutterSoundFromWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shutter.wav")
	writeTestWAV(t, path, 48000, 1, []int{0, 8192, -8192, 16384})

	s, err := loadShutterSound(path, 1.0, 48000, 2, slog.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Mono file duplicated to stereo, no resampling needed.
	if len(s.samples) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(s.samples))
	}
	if s.samples[2] != s.samples[3] {
		t.Fatal("stereo channels should be identical for a mono source")
	}
	if s.samples[2] != 8192.0/maxInt16 {
		t.Fatalf("unexpected amplitude %v", s.samples[2])
	}
}

func TestLoadShutterSoundMissingFile(t *testing.T) {
	if _, err := loadShutterSound("/nonexistent/shutter.wav", 1.0, 48000, 2, slog.Default()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func writeTestWAV(t *testing.T, path string, sampleRate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}
