package video

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/awerune/capview/pkg/pixconv"
)

var (
	// ErrFormatNegotiation is returned when neither the raw YUY2 path
	// nor the converting fallback path could be negotiated with the
	// device.
	ErrFormatNegotiation = errors.New("video format negotiation failed")

	// ErrStreamOpen is returned when the device exists but the capture
	// stream could not be started.
	ErrStreamOpen = errors.New("video stream open failed")
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
	defaultFPS    = 60
	minFPS        = 15
	maxFPS        = 120

	// startupTimeout bounds how long Start waits for the pipeline to
	// reach PLAYING before assuming negotiation succeeded.
	startupTimeout = 3 * time.Second
)

// Options selects the device and capture mode for a session. Zero
// values fall back to 1280x720 at 60 fps on the first device.
type Options struct {
	// Device is a device node path or card name; empty picks the
	// first enumerated device.
	Device string
	Width  int
	Height int
	FPS    int
	// Format is the preferred source format hint. Raw-capable hints
	// try the YUY2 path first; anything else goes straight to the
	// converting fallback.
	Format string
}

// Stats is a point-in-time snapshot of capture diagnostics.
type Stats struct {
	FrameStats
	FramesDropped uint64
}

// Controller owns one capture pipeline at a time. Start tears down any
// previous session before opening the next, so a Controller can be
// restarted with new options without an explicit Stop in between.
type Controller struct {
	logger *slog.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	sink     *app.Sink
	frames   *FrameBuffer
	active   bool
	fastPath bool
	busStop  chan struct{}
	busDone  sync.WaitGroup

	dropped atomic.Uint64
	errs    chan error
}

// NewController returns an idle controller.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger: logger.With("component", "video"),
		errs:   make(chan error, 4),
	}
}

// Errors delivers asynchronous pipeline failures (device unplugged,
// driver errors, end of stream). The channel is never closed; callers
// typically feed it into a reconnect loop.
func (c *Controller) Errors() <-chan error {
	return c.errs
}

// Start opens the configured device and begins capturing. The raw YUY2
// path is tried first for raw-capable format hints; if the device
// rejects it, the converting fallback path is attempted before giving
// up with ErrFormatNegotiation.
func (c *Controller) Start(opts Options) error {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	devices, err := ListDevices()
	if err != nil {
		return err
	}
	device, err := resolveDevice(devices, opts.Device)
	if err != nil {
		return err
	}

	cfg := pipelineConfig{
		DevicePath: device.Path,
		Width:      opts.Width,
		Height:     opts.Height,
		FPS:        clampFPS(opts.FPS),
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}

	logger := c.logger.With("session", uuid.New(), "device", device.Path)
	logger.Info("starting video capture",
		"name", device.Name,
		"width", cfg.Width,
		"height", cfg.Height,
		"fps", cfg.FPS,
		"format", opts.Format,
	)

	frames := NewFrameBuffer()
	elems, fast, err := c.openPipeline(cfg, opts.Format, frames, logger)
	if err != nil {
		return err
	}

	c.pipeline = elems.Pipeline
	c.sink = elems.Sink
	c.frames = frames
	c.fastPath = fast
	c.active = true
	c.busStop = make(chan struct{})
	c.busDone.Add(1)
	go c.monitorBus(elems.Pipeline, c.busStop, logger)

	logger.Info("video capture running", "fast_path", fast)
	return nil
}

// openPipeline tries the fast path first when the format hint allows
// it, then the fallback. The returned pipeline is already playing with
// sample callbacks attached.
func (c *Controller) openPipeline(cfg pipelineConfig, format string, frames *FrameBuffer, logger *slog.Logger) (*pipelineElements, bool, error) {
	if formatAllowsFast(format) {
		elems, err := newFastPipeline(cfg)
		if err == nil {
			c.attachSampleHandler(elems.Sink, cfg, true, frames)
			if err = playPipeline(elems.Pipeline); err == nil {
				return elems, true, nil
			}
			elems.Pipeline.SetState(gst.StateNull)
		}
		logger.Warn("raw capture path rejected, trying converting path", "error", err)
	}

	elems, err := newFallbackPipeline(cfg)
	if err != nil {
		return nil, false, classifyPipelineError(err)
	}
	c.attachSampleHandler(elems.Sink, cfg, false, frames)
	if err := playPipeline(elems.Pipeline); err != nil {
		elems.Pipeline.SetState(gst.StateNull)
		return nil, false, classifyPipelineError(err)
	}
	return elems, false, nil
}

// Stop halts the pipeline and releases the session. Safe to call when
// nothing is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.logger.Info("stopping video capture")

	// NULL flushes the streaming threads, so no sample callback is in
	// flight once SetState returns.
	if c.pipeline != nil {
		c.pipeline.SetState(gst.StateNull)
	}
	close(c.busStop)
	c.busDone.Wait()

	c.pipeline = nil
	c.sink = nil
	c.frames = nil
	c.active = false
	c.fastPath = false
}

// LatestFrame returns a copy of the newest complete frame, or false
// when no session is active or no frame has arrived yet. Stale buffers
// are released on the way out.
func (c *Controller) LatestFrame() (Frame, bool) {
	c.mu.Lock()
	frames := c.frames
	c.mu.Unlock()
	if frames == nil {
		return Frame{}, false
	}

	frame, ok := frames.TakeFront()
	frames.ClearOldFrames()
	return frame, ok
}

// Running reports whether a capture session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// FastPath reports whether the active session captures raw YUY2.
func (c *Controller) FastPath() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.fastPath
}

// Stats returns capture diagnostics for the active session. The drop
// counter accumulates across sessions.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	frames := c.frames
	c.mu.Unlock()

	s := Stats{FramesDropped: c.dropped.Load()}
	if frames != nil {
		s.FrameStats = frames.Stats()
	}
	return s
}

// attachSampleHandler wires the appsink callback for one session. The
// frame store and geometry are captured by value so a late callback
// from a torn-down session cannot touch the next session's state.
func (c *Controller) attachSampleHandler(sink *app.Sink, cfg pipelineConfig, fast bool, frames *FrameBuffer) {
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			sample := sink.PullSample()
			if sample == nil {
				return gst.FlowOK
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}
			mapInfo := buffer.Map(gst.MapRead)
			data := mapInfo.Bytes()
			c.ingest(data, cfg.Width, cfg.Height, fast, frames)
			buffer.Unmap()
			return gst.FlowOK
		},
	})
}

// ingest converts one mapped sample into an RGB frame and publishes
// it. Malformed samples are counted and dropped; the stream keeps
// running.
func (c *Controller) ingest(data []byte, width, height int, fast bool, frames *FrameBuffer) {
	start := time.Now()

	var frame Frame
	if fast {
		rgb, err := pixconv.YUY2ToRGBAlloc(data, width, height)
		if err != nil {
			c.dropped.Add(1)
			return
		}
		frame = Frame{Width: width, Height: height, Data: rgb}
	} else {
		need := pixconv.RGBSize(width, height)
		if len(data) < need {
			c.dropped.Add(1)
			return
		}
		rgb := make([]byte, need)
		copy(rgb, data[:need])
		frame = Frame{Width: width, Height: height, Data: rgb}
	}

	frames.PushBack(frame, time.Since(start), fast)
}

// monitorBus drains the pipeline bus until the session stops,
// forwarding fatal messages to the error channel.
func (c *Controller) monitorBus(pipeline *gst.Pipeline, stop <-chan struct{}, logger *slog.Logger) {
	defer c.busDone.Done()
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-stop:
			return
		default:
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}
			switch msg.Type() {
			case gst.MessageEOS:
				logger.Info("video stream ended")
				c.reportError(errors.New("video stream ended"))
			case gst.MessageError:
				gerr := msg.ParseError()
				logger.Error("video pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
				)
				c.reportError(fmt.Errorf("video pipeline: %s", gerr.Error()))
			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					old, next := msg.ParseStateChanged()
					logger.Debug("pipeline state changed", "from", old, "to", next)
				}
			}
		}
	}
}

func (c *Controller) reportError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// playPipeline sets the pipeline to PLAYING and waits briefly for it
// to get there, surfacing any error the bus posts during startup. Caps
// negotiation failures show up here as bus errors.
func playPipeline(pipeline *gst.Pipeline) error {
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("pipeline error: %s", gerr.Error())
		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				if _, next := msg.ParseStateChanged(); next == gst.StatePlaying {
					return nil
				}
			}
		}
	}
	// No error surfaced within the window; some drivers are just slow
	// to report the transition.
	return nil
}

// formatAllowsFast reports whether the format hint permits the raw
// YUY2 capture path. Unknown hints route to the converting fallback.
func formatAllowsFast(format string) bool {
	switch strings.ToUpper(format) {
	case "", "YUY2", "YUYV", "MJPEG", "RGB24":
		return true
	}
	return false
}

func classifyPipelineError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "negotiat") || strings.Contains(msg, "caps") {
		return fmt.Errorf("%w: %v", ErrFormatNegotiation, err)
	}
	return fmt.Errorf("%w: %v", ErrStreamOpen, err)
}

func clampFPS(fps int) int {
	switch {
	case fps <= 0:
		return defaultFPS
	case fps < minFPS:
		return minFPS
	case fps > maxFPS:
		return maxFPS
	}
	return fps
}
