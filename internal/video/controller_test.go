package video

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestListDevicesInReadsSysfs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []struct{ dir, name string }{
		{"video2", "Rear Camera\n"},
		{"video0", "HD Webcam\n"},
	} {
		if err := os.MkdirAll(filepath.Join(root, d.dir), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, d.dir, "name"), []byte(d.name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-capture entries are skipped.
	if err := os.MkdirAll(filepath.Join(root, "v4l-subdev0"), 0o755); err != nil {
		t.Fatal(err)
	}

	devices, err := listDevicesIn(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].Path != "/dev/video0" || devices[0].Name != "HD Webcam" {
		t.Fatalf("first device: %+v", devices[0])
	}
	if devices[1].Path != "/dev/video2" || devices[1].Name != "Rear Camera" {
		t.Fatalf("second device: %+v", devices[1])
	}
}

func TestListDevicesInMissingRoot(t *testing.T) {
	devices, err := listDevicesIn(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if devices != nil {
		t.Fatalf("expected no devices, got %v", devices)
	}
}

func TestResolveDevice(t *testing.T) {
	devices := []Device{
		{Path: "/dev/video0", Name: "HD Webcam"},
		{Path: "/dev/video2", Name: "Rear Camera"},
	}

	if d, err := resolveDevice(devices, ""); err != nil || d.Path != "/dev/video0" {
		t.Fatalf("default device: %+v, %v", d, err)
	}
	if d, err := resolveDevice(devices, "Rear Camera"); err != nil || d.Path != "/dev/video2" {
		t.Fatalf("by name: %+v, %v", d, err)
	}
	if d, err := resolveDevice(devices, "/dev/video2"); err != nil || d.Name != "Rear Camera" {
		t.Fatalf("by path: %+v, %v", d, err)
	}
	if _, err := resolveDevice(devices, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if _, err := resolveDevice(nil, ""); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound for empty list, got %v", err)
	}
}

func TestClampFPS(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, defaultFPS},
		{-5, defaultFPS},
		{1, minFPS},
		{30, 30},
		{500, maxFPS},
	}
	for _, c := range cases {
		if got := clampFPS(c.in); got != c.want {
			t.Errorf("clampFPS(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatAllowsFast(t *testing.T) {
	for _, f := range []string{"", "YUY2", "yuyv", "MJPEG", "rgb24"} {
		if !formatAllowsFast(f) {
			t.Errorf("hint %q should allow the raw path", f)
		}
	}
	for _, f := range []string{"H264", "NV12"} {
		if formatAllowsFast(f) {
			t.Errorf("hint %q should force the converting path", f)
		}
	}
}

func TestIngestFastPath(t *testing.T) {
	c := NewController(slog.Default())
	frames := NewFrameBuffer()

	const w, h = 1280, 720
	yuy2 := make([]byte, w*h*2)
	c.ingest(yuy2, w, h, true, frames)

	frame, ok := frames.TakeFront()
	if !ok {
		t.Fatal("expected a frame")
	}
	if len(frame.Data) != w*h*3 {
		t.Fatalf("frame size %d, want %d", len(frame.Data), w*h*3)
	}
	if s := frames.Stats(); s.FastFrames != 1 || s.FallbackFrames != 0 {
		t.Fatalf("path counts: %+v", s)
	}
}

func TestIngestDropsShortSample(t *testing.T) {
	c := NewController(slog.Default())
	frames := NewFrameBuffer()

	c.ingest(make([]byte, 10), 1280, 720, true, frames)
	c.ingest(make([]byte, 10), 1280, 720, false, frames)

	if _, ok := frames.TakeFront(); ok {
		t.Fatal("short samples must not produce frames")
	}
	if got := c.Stats().FramesDropped; got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestIngestFallbackCopies(t *testing.T) {
	c := NewController(slog.Default())
	frames := NewFrameBuffer()

	const w, h = 4, 2
	rgb := make([]byte, w*h*3)
	for i := range rgb {
		rgb[i] = byte(i)
	}
	c.ingest(rgb, w, h, false, frames)
	rgb[0] = 0xFF

	frame, ok := frames.TakeFront()
	if !ok {
		t.Fatal("expected a frame")
	}
	if frame.Data[0] != 0 {
		t.Fatal("frame must not alias the mapped sample")
	}
}

func TestStopWithoutStart(t *testing.T) {
	c := NewController(slog.Default())
	c.Stop()
	c.Stop()
	if c.Running() {
		t.Fatal("controller should be idle")
	}
	if _, ok := c.LatestFrame(); ok {
		t.Fatal("no frame expected from an idle controller")
	}
}
