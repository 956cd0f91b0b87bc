package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-audio/wav"
	"github.com/oov/audio/resampler"
)

const resampleQuality = 10

// shutterSound is a short one-shot clip mixed over the passthrough
// audio when a snapshot is taken. It is loaded and resampled to the
// negotiated stream format at session start; after that it is touched
// only by the output callback, so playback state needs no locking.
type shutterSound struct {
	samples []float32 // interleaved, output rate and channel count
	volume  float32
	pos     int
	playing bool
}

func (s *shutterSound) rewind() {
	s.pos = 0
	s.playing = true
}

// next returns the next mixed sample, or 0 once the clip has finished.
func (s *shutterSound) next() float32 {
	if !s.playing {
		return 0
	}
	if s.pos >= len(s.samples) {
		s.playing = false
		return 0
	}
	v := s.samples[s.pos] * s.volume
	s.pos++
	return v
}

// loadShutterSound decodes a WAV file and converts it to the given
// stream format (interleaved, outChannels channels at outRate).
// Only mono and stereo files are supported.
func loadShutterSound(path string, volume float64, outRate, outChannels int, logger *slog.Logger) (*shutterSound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shutter sound: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, errors.New("shutter sound is not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode shutter sound: %w", err)
	}

	srcRate := int(decoder.SampleRate)
	srcChannels := int(decoder.NumChans)
	if srcChannels < 1 || srcChannels > 2 || outChannels < 1 || outChannels > 2 {
		return nil, fmt.Errorf("unsupported channel layout: file %d, stream %d", srcChannels, outChannels)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / maxInt16
	}

	samples = adaptChannels(samples, srcChannels, outChannels)
	if srcRate != outRate {
		samples = resample(samples, outChannels, srcRate, outRate)
	}

	if volume < 0 {
		volume = 0
	} else if volume > 2 {
		volume = 2
	}

	logger.Debug("loaded shutter sound",
		"path", path,
		"fileRate", srcRate,
		"fileChannels", srcChannels,
		"samples", len(samples),
	)
	return &shutterSound{samples: samples, volume: float32(volume)}, nil
}

// adaptChannels converts between interleaved mono and stereo layouts.
func adaptChannels(in []float32, srcChannels, dstChannels int) []float32 {
	switch {
	case srcChannels == dstChannels:
		return in
	case srcChannels == 1 && dstChannels == 2:
		out := make([]float32, 2*len(in))
		for i, v := range in {
			out[2*i] = v
			out[2*i+1] = v
		}
		return out
	default: // stereo to mono
		n := len(in) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = (in[2*i] + in[2*i+1]) / 2
		}
		return out
	}
}

// resample converts interleaved samples between rates, processing each
// channel planar as the resampler expects.
func resample(in []float32, channels, srcRate, dstRate int) []float32 {
	frames := len(in) / channels
	outFrames := frames*dstRate/srcRate + 512

	r := resampler.New(channels, srcRate, dstRate, resampleQuality)

	src := make([]float32, frames)
	dst := make([]float32, outFrames)
	out := make([]float32, 0, outFrames*channels)

	written := 0
	planar := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames; i++ {
			src[i] = in[i*channels+ch]
		}
		_, n := r.ProcessFloat32(ch, src, dst)
		written = n
		planar[ch] = append([]float32(nil), dst[:n]...)
	}

	for i := 0; i < written; i++ {
		for ch := 0; ch < channels; ch++ {
			out = append(out, planar[ch][i])
		}
	}
	return out
}
