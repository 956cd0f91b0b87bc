package video

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pipelineConfig describes one capture pipeline.
type pipelineConfig struct {
	DevicePath string
	Width      int
	Height     int
	FPS        int
}

// pipelineElements holds the references needed for callbacks and
// teardown.
type pipelineElements struct {
	Pipeline *gst.Pipeline
	Sink     *app.Sink
}

// newFastPipeline builds the raw YUY2 path:
//
//	v4l2src → capsfilter(YUY2,w,h,fps) → appsink
//
// The device hands us packed 4:2:2 directly and the color conversion
// runs in our own callback. The pipeline is configured but not started.
func newFastPipeline(cfg pipelineConfig) (*pipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("create v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.DevicePath)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(fastCapsString(cfg)))

	sink, err := newCaptureSink()
	if err != nil {
		return nil, err
	}

	pipeline.AddMany(src, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, capsfilter, sink.Element); err != nil {
		return nil, fmt.Errorf("link fast pipeline: %w", err)
	}
	return &pipelineElements{Pipeline: pipeline, Sink: sink}, nil
}

// newFallbackPipeline builds the generic decode path:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGB,w,h) → appsink
//
// Whatever the device produces, GStreamer decodes and scales it to
// packed RGB before it reaches the callback.
func newFallbackPipeline(cfg pipelineConfig) (*pipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("create v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.DevicePath)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(fallbackCapsString(cfg)))

	sink, err := newCaptureSink()
	if err != nil {
		return nil, err
	}

	pipeline.AddMany(src, converter, scaler, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, sink.Element); err != nil {
		return nil, fmt.Errorf("link fallback pipeline: %w", err)
	}
	return &pipelineElements{Pipeline: pipeline, Sink: sink}, nil
}

// newCaptureSink creates an appsink tuned for a live preview: never
// sync to the clock, keep only the latest buffer, drop the rest.
func newCaptureSink() (*app.Sink, error) {
	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)
	return sink, nil
}

func fastCapsString(cfg pipelineConfig) string {
	return fmt.Sprintf("video/x-raw,format=YUY2,width=%d,height=%d,framerate=%d/1",
		cfg.Width, cfg.Height, cfg.FPS)
}

func fallbackCapsString(cfg pipelineConfig) string {
	return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d",
		cfg.Width, cfg.Height)
}
