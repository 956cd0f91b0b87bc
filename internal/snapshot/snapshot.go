// Package snapshot writes captured video frames to disk as JPEG
// stills.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/awerune/capview/internal/video"
)

// ErrEmptyFrame is returned when the frame has no pixel data.
var ErrEmptyFrame = errors.New("snapshot: empty frame")

const (
	defaultQuality = 90
	timeFormat     = "20060102-150405"
)

// bufferPool pools encode buffers so rapid snapshots do not allocate a
// megabyte-sized buffer per shot.
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256*1024))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 4*1024*1024 {
		return
	}
	bufferPool.Put(buf)
}

// Saver encodes frames and writes them under a fixed directory with
// timestamped names.
type Saver struct {
	dir     string
	quality int
	logger  *slog.Logger
	now     func() time.Time
}

// NewSaver returns a Saver writing into dir. A quality outside 1..100
// falls back to the default.
func NewSaver(dir string, quality int, logger *slog.Logger) *Saver {
	if quality < 1 || quality > 100 {
		quality = defaultQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		dir:     dir,
		quality: quality,
		logger:  logger.With("component", "snapshot"),
		now:     time.Now,
	}
}

// Save encodes frame as JPEG and writes it to a timestamped file,
// creating the directory on first use. It returns the path of the
// written file.
func (s *Saver) Save(frame video.Frame) (string, error) {
	if len(frame.Data) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return "", ErrEmptyFrame
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create directory: %w", err)
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if err := jpeg.Encode(buf, toImage(frame), &jpeg.Options{Quality: s.quality}); err != nil {
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}

	path := s.pickPath()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write: %w", err)
	}

	s.logger.Info("snapshot saved",
		"path", path,
		"width", frame.Width,
		"height", frame.Height,
		"bytes", buf.Len(),
	)
	return path, nil
}

// pickPath returns a timestamped filename, suffixing a counter when a
// burst lands several shots in the same second.
func (s *Saver) pickPath() string {
	stamp := s.now().Format(timeFormat)
	path := filepath.Join(s.dir, stamp+".jpg")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s (%d).jpg", stamp, n))
	}
}

// toImage wraps the packed RGB data in an image.RGBA without copying
// rows one pixel at a time.
func toImage(frame video.Frame) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	src := frame.Data
	dst := img.Pix
	for si, di := 0, 0; si+2 < len(src) && di+3 < len(dst); si, di = si+3, di+4 {
		dst[di] = src[si]
		dst[di+1] = src[si+1]
		dst[di+2] = src[si+2]
		dst[di+3] = 0xFF
	}
	return img
}
