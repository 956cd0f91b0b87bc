package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/awerune/capview/pkg/ring"
)

// SampleFormat selects the native sample format requested from both
// devices. The pipeline itself always works in normalized float32.
type SampleFormat int

const (
	// FormatS16 streams 16-bit signed integer samples and converts to
	// and from float at the device boundary. This is the widest
	// supported format and the default.
	FormatS16 SampleFormat = iota
	// FormatF32 streams float32 samples natively.
	FormatF32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

const (
	defaultSampleRate = 48000
	defaultChannels   = 2
	defaultLatency    = 50 * time.Millisecond
)

var errStreamOpen = errors.New("audio stream open failed")

// StartOptions selects the devices and stream parameters for a
// passthrough session. Zero values mean "use the default".
type StartOptions struct {
	// InputDevice and OutputDevice are device names as reported by
	// ListInputDevices/ListOutputDevices. Empty selects the system
	// default.
	InputDevice  string
	OutputDevice string

	SampleRate int
	Channels   int

	// TargetLatency sizes the ring between the two callbacks.
	TargetLatency time.Duration

	Format SampleFormat
}

// RingCapacity computes the sample capacity of the passthrough ring:
// enough samples to cover the target latency, doubled for headroom.
func RingCapacity(sampleRate, channels int, targetLatency time.Duration) int {
	return sampleRate * channels * int(targetLatency.Milliseconds()) / 1000 * 2
}

// Stats is a snapshot of the passthrough diagnostic counters. Overruns
// and underruns are compensated silently (drop / silence) and only
// counted here.
type Stats struct {
	Overruns   uint64
	Underruns  uint64
	Contention uint64
}

// Controller owns one input stream and one output stream bound by one
// sample ring, plus the volume and enable state consulted by the output
// callback. Volume and the passthrough flag outlive sessions; the ring
// and the device handles are per-session.
//
// Start, Stop, SetVolume and SetPassthroughEnabled are called from the
// application thread. The two device callbacks run on backend threads
// and never block: producer/consumer access uses TryLock and degrades
// to dropped samples or silence under contention.
type Controller struct {
	logger *slog.Logger

	mu       sync.Mutex // session lifecycle
	backend  *malgo.AllocatedContext
	inDev    *malgo.Device
	outDev   *malgo.Device
	active   bool
	capacity int

	// Callback-side handles. The lifecycle path takes both locks to
	// swap sessions; callbacks only ever TryLock.
	prodMu sync.Mutex
	prod   *ring.Producer
	consMu sync.Mutex
	cons   *ring.Consumer

	volumeBits  atomic.Uint64 // math.Float64bits of the amplitude multiplier
	passthrough atomic.Bool

	overruns   atomic.Uint64
	underruns  atomic.Uint64
	contention atomic.Uint64

	shutterPath    string
	shutterVolume  float64
	shutter        *shutterSound // owned by the output callback once set
	shutterTrigger atomic.Bool
}

// NewController returns an inactive controller with volume 100% and
// passthrough enabled.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		logger: logger.With("component", "audio"),
	}
	c.volumeBits.Store(math.Float64bits(1.0))
	c.passthrough.Store(true)
	return c
}

// SetVolume maps a 0-200 percentage to the amplitude multiplier
// consulted by the output callback. Out-of-range values are clamped,
// never rejected.
func (c *Controller) SetVolume(percent float64) {
	amp := percent / 100
	if amp < 0 {
		amp = 0
	} else if amp > 2 {
		amp = 2
	}
	c.volumeBits.Store(math.Float64bits(amp))
}

// Volume returns the current amplitude multiplier in [0, 2].
func (c *Controller) Volume() float64 {
	return math.Float64frombits(c.volumeBits.Load())
}

// SetPassthroughEnabled toggles audible output. When disabled the
// output callback keeps draining the ring but emits silence, so
// re-enabling resumes from live audio rather than a stale backlog.
func (c *Controller) SetPassthroughEnabled(enabled bool) {
	c.passthrough.Store(enabled)
}

// PassthroughEnabled reports whether passthrough audio is audible.
func (c *Controller) PassthroughEnabled() bool {
	return c.passthrough.Load()
}

// SetShutterSound configures a WAV file to be mixed into the output on
// the next TriggerShutterSound. Takes effect at the next Start, when
// the file can be resampled to the negotiated stream format. An empty
// path disables the sound.
func (c *Controller) SetShutterSound(path string, volumePercent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutterPath = path
	c.shutterVolume = volumePercent / 100
}

// TriggerShutterSound arms the shutter sound for playback. The flag is
// consumed exactly once, by the output callback; triggering while the
// sound is already armed or playing restarts it.
func (c *Controller) TriggerShutterSound() {
	c.shutterTrigger.Store(true)
}

// Active reports whether a passthrough session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Capacity returns the ring capacity of the current session in
// samples, or 0 when inactive.
func (c *Controller) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Stats returns a snapshot of the diagnostic counters. Counters
// accumulate across sessions.
func (c *Controller) Stats() Stats {
	return Stats{
		Overruns:   c.overruns.Load(),
		Underruns:  c.underruns.Load(),
		Contention: c.contention.Load(),
	}
}

// Start resolves the requested devices, builds the sample ring and
// opens both streams. Any failure tears down whatever was opened and
// leaves the controller inactive; the caller decides whether to retry.
func (c *Controller) Start(opts StartOptions) error {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	sessionID := uuid.New()
	logger := c.logger.With("session", sessionID)

	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	channels := opts.Channels
	if channels <= 0 {
		channels = defaultChannels
	}
	latency := opts.TargetLatency
	if latency <= 0 {
		latency = defaultLatency
	}

	backend, err := newBackendContext(logger)
	if err != nil {
		return err
	}

	inInfo, err := resolveDevice(backend, malgo.Capture, opts.InputDevice)
	if err != nil {
		teardownBackend(backend)
		return err
	}
	outInfo, err := resolveDevice(backend, malgo.Playback, opts.OutputDevice)
	if err != nil {
		teardownBackend(backend)
		return err
	}

	capacity := RingCapacity(sampleRate, channels, latency)
	prod, cons := ring.New(capacity)

	logger.Info("starting audio passthrough",
		"input", inInfo.Name(),
		"output", outInfo.Name(),
		"sampleRate", sampleRate,
		"channels", channels,
		"format", opts.Format,
		"ringCapacity", capacity,
	)

	var shutter *shutterSound
	if c.shutterPath != "" {
		shutter, err = loadShutterSound(c.shutterPath, c.shutterVolume, sampleRate, channels, logger)
		if err != nil {
			// The shutter sound is a convenience; a broken file must not
			// keep live audio from starting.
			logger.Warn("shutter sound unavailable", "path", c.shutterPath, "err", err)
			shutter = nil
		}
	}
	c.shutter = shutter
	c.shutterTrigger.Store(false)

	inID := inInfo.ID
	inConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	inConfig.SampleRate = uint32(sampleRate)
	inConfig.Capture.DeviceID = inID.Pointer()
	inConfig.Capture.Format = malgoFormat(opts.Format)
	inConfig.Capture.Channels = uint32(channels)
	inConfig.Alsa.NoMMap = 1

	outID := outInfo.ID
	outConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	outConfig.SampleRate = uint32(sampleRate)
	outConfig.Playback.DeviceID = outID.Pointer()
	outConfig.Playback.Format = malgoFormat(opts.Format)
	outConfig.Playback.Channels = uint32(channels)
	outConfig.Alsa.NoMMap = 1

	inDev, err := malgo.InitDevice(backend.Context, inConfig, malgo.DeviceCallbacks{
		Data: c.inputCallback(opts.Format),
	})
	if err != nil {
		teardownBackend(backend)
		return fmt.Errorf("%w: input %q: %v", errStreamOpen, inInfo.Name(), err)
	}

	outDev, err := malgo.InitDevice(backend.Context, outConfig, malgo.DeviceCallbacks{
		Data: c.outputCallback(opts.Format),
	})
	if err != nil {
		inDev.Uninit()
		teardownBackend(backend)
		return fmt.Errorf("%w: output %q: %v", errStreamOpen, outInfo.Name(), err)
	}

	// Publish the ring before the streams run so the first callback
	// invocation already sees it.
	c.prodMu.Lock()
	c.prod = prod
	c.prodMu.Unlock()
	c.consMu.Lock()
	c.cons = cons
	c.consMu.Unlock()

	if err := inDev.Start(); err != nil {
		c.detachRing()
		outDev.Uninit()
		inDev.Uninit()
		teardownBackend(backend)
		return fmt.Errorf("%w: start input: %v", errStreamOpen, err)
	}
	if err := outDev.Start(); err != nil {
		c.detachRing()
		_ = inDev.Stop()
		outDev.Uninit()
		inDev.Uninit()
		teardownBackend(backend)
		return fmt.Errorf("%w: start output: %v", errStreamOpen, err)
	}

	c.backend = backend
	c.inDev = inDev
	c.outDev = outDev
	c.active = true
	c.capacity = capacity
	return nil
}

// Stop pauses and releases both streams. Idempotent. Active and
// capacity state are reset even if the underlying stop calls fail.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inDev != nil {
		if err := c.inDev.Stop(); err != nil {
			c.logger.Warn("stopping input stream", "err", err)
		}
	}
	if c.outDev != nil {
		if err := c.outDev.Stop(); err != nil {
			c.logger.Warn("stopping output stream", "err", err)
		}
	}

	// Detach the ring before freeing the devices; an in-flight callback
	// then sees a nil handle and degrades to drop/silence.
	c.detachRing()

	if c.inDev != nil {
		c.inDev.Uninit()
		c.inDev = nil
	}
	if c.outDev != nil {
		c.outDev.Uninit()
		c.outDev = nil
	}
	if c.backend != nil {
		teardownBackend(c.backend)
		c.backend = nil
	}

	if c.active {
		c.logger.Info("audio passthrough stopped")
	}
	c.active = false
	c.capacity = 0
	c.shutter = nil
}

func (c *Controller) detachRing() {
	c.prodMu.Lock()
	c.prod = nil
	c.prodMu.Unlock()
	c.consMu.Lock()
	c.cons = nil
	c.consMu.Unlock()
}

// inputCallback converts the hardware buffer to normalized floats and
// pushes into the ring. It must never block: on lock contention the
// whole buffer is skipped, trading a glitch for bounded callback time.
func (c *Controller) inputCallback(format SampleFormat) malgo.DataProc {
	return func(_, in []byte, frameCount uint32) {
		if !c.prodMu.TryLock() {
			c.contention.Add(1)
			return
		}
		prod := c.prod
		if prod == nil {
			c.prodMu.Unlock()
			return
		}

		var dropped uint64
		switch format {
		case FormatF32:
			for i := 0; i+4 <= len(in); i += 4 {
				if !prod.Push(f32FromBytes(in[i:])) {
					dropped++
				}
			}
		default:
			for i := 0; i+2 <= len(in); i += 2 {
				if !prod.Push(s16ToFloat(in[i:])) {
					dropped++
				}
			}
		}
		c.prodMu.Unlock()

		if dropped > 0 {
			c.overruns.Add(dropped)
		}
	}
}

// outputCallback drains the ring into the hardware buffer, applying
// volume and the passthrough flag, and mixes the shutter sound when
// armed. Underrun slots and contention are rendered as silence.
func (c *Controller) outputCallback(format SampleFormat) malgo.DataProc {
	return func(out, _ []byte, frameCount uint32) {
		volume := float32(c.Volume())
		enabled := c.passthrough.Load()

		shutter := c.shutter
		if shutter != nil && c.shutterTrigger.CompareAndSwap(true, false) {
			shutter.rewind()
		}

		if !c.consMu.TryLock() {
			c.contention.Add(1)
			writeSilence(out)
			return
		}
		cons := c.cons
		if cons == nil {
			c.consMu.Unlock()
			writeSilence(out)
			return
		}

		stride := sampleBytes(format)
		var starved uint64
		for i := 0; i+stride <= len(out); i += stride {
			sample, ok := cons.Pop()
			if !ok {
				sample = 0
				starved++
			}
			if !enabled {
				sample = 0
			}
			sample *= volume
			if shutter != nil {
				sample += shutter.next()
			}
			writeSample(out[i:], sample, format)
		}
		c.consMu.Unlock()

		if starved > 0 {
			c.underruns.Add(starved)
		}
	}
}

func malgoFormat(f SampleFormat) malgo.FormatType {
	if f == FormatF32 {
		return malgo.FormatF32
	}
	return malgo.FormatS16
}

func sampleBytes(f SampleFormat) int {
	if f == FormatF32 {
		return 4
	}
	return 2
}

func writeSample(b []byte, s float32, f SampleFormat) {
	if f == FormatF32 {
		f32ToBytes(b, s)
		return
	}
	floatToS16(b, s)
}

// writeSilence zeroes the buffer; zero bytes are silence in both
// supported formats.
func writeSilence(out []byte) {
	for i := range out {
		out[i] = 0
	}
}

func teardownBackend(backend *malgo.AllocatedContext) {
	_ = backend.Uninit()
	backend.Free()
}
