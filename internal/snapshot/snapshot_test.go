package snapshot

import (
	"errors"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/awerune/capview/internal/video"
)

func redFrame(w, h int) video.Frame {
	data := make([]byte, w*h*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = 0xFF
	}
	return video.Frame{Width: w, Height: h, Data: data}
}

func TestSaveWritesDecodableJPEG(t *testing.T) {
	dir := t.TempDir()
	s := NewSaver(dir, 90, slog.Default())

	path, err := s.Save(redFrame(16, 8))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("snapshot written outside target dir: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("decoded size %dx%d, want 16x8", b.Dx(), b.Dy())
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots", "nested")
	s := NewSaver(dir, 90, slog.Default())

	if _, err := s.Save(redFrame(4, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestSaveBurstGetsDistinctNames(t *testing.T) {
	s := NewSaver(t.TempDir(), 90, slog.Default())
	// Freeze the clock so every shot lands in the same second.
	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		path, err := s.Save(redFrame(4, 4))
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("duplicate snapshot path %s", path)
		}
		seen[path] = true
	}
	for path := range seen {
		if !strings.Contains(filepath.Base(path), "20260825-120000") {
			t.Fatalf("unexpected name %s", path)
		}
	}
}

func TestSaveRejectsEmptyFrame(t *testing.T) {
	s := NewSaver(t.TempDir(), 90, slog.Default())
	if _, err := s.Save(video.Frame{}); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestQualityFallback(t *testing.T) {
	for _, q := range []int{0, -3, 101} {
		if s := NewSaver(t.TempDir(), q, slog.Default()); s.quality != defaultQuality {
			t.Errorf("quality %d: got %d, want %d", q, s.quality, defaultQuality)
		}
	}
}
