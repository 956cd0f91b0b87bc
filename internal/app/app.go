// Package app wires the audio and video controllers, the snapshot
// saver and the metric instruments into one supervised capture
// session.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/awerune/capview/internal/audio"
	"github.com/awerune/capview/internal/observe"
	"github.com/awerune/capview/internal/snapshot"
	"github.com/awerune/capview/internal/video"
)

const defaultStatsInterval = 30 * time.Second

// Settings is the resolved runtime configuration for one capture
// session.
type Settings struct {
	Audio audio.StartOptions

	// VolumePercent is the passthrough volume, 0-200.
	VolumePercent      float64
	PassthroughEnabled bool

	// ShutterSoundPath optionally names a WAV file mixed into the
	// output when a snapshot is taken. ShutterSoundVolume is 0-200.
	ShutterSoundPath   string
	ShutterSoundVolume float64

	Video video.Options

	SnapshotDir     string
	SnapshotQuality int

	// StatsInterval is how often diagnostics are logged and flushed
	// to the metric instruments.
	StatsInterval time.Duration

	Retry RetryConfig
}

// App supervises the capture controllers for the lifetime of one Run
// call. Snapshots are triggered with SIGUSR1.
type App struct {
	logger  *slog.Logger
	metrics *observe.Metrics

	settingsMu sync.Mutex
	settings   Settings

	audio *audio.Controller
	video *video.Controller
	saver *snapshot.Saver

	// Counter snapshots from the previous flush, for delta reporting.
	lastAudio audio.Stats
	lastVideo video.Stats
}

// New builds an App from resolved settings. A nil metrics uses the
// package default instruments.
func New(settings Settings, logger *slog.Logger, metrics *observe.Metrics) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	normalizeSettings(&settings)
	return &App{
		logger:   logger,
		settings: settings,
		metrics:  metrics,
		audio:    audio.NewController(logger),
		video:    video.NewController(logger),
		saver:    snapshot.NewSaver(settings.SnapshotDir, settings.SnapshotQuality, logger),
	}
}

func normalizeSettings(s *Settings) {
	if s.StatsInterval <= 0 {
		s.StatsInterval = defaultStatsInterval
	}
	if s.Retry == (RetryConfig{}) {
		s.Retry = DefaultRetryConfig()
	}
}

func (a *App) currentSettings() Settings {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	return a.settings
}

// ApplySettings replaces the runtime settings. Volume, passthrough and
// shutter state take effect immediately; running capture sessions are
// restarted so device and stream parameter changes apply too. Sessions
// that are not running are left alone.
func (a *App) ApplySettings(settings Settings) error {
	normalizeSettings(&settings)

	a.settingsMu.Lock()
	a.settings = settings
	a.saver = snapshot.NewSaver(settings.SnapshotDir, settings.SnapshotQuality, a.logger)
	a.settingsMu.Unlock()

	a.applyAudioState(settings)

	if a.audio.Active() {
		if err := a.audio.Start(settings.Audio); err != nil {
			return err
		}
	}
	if a.video.Running() {
		if err := a.video.Start(settings.Video); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) applyAudioState(settings Settings) {
	a.audio.SetVolume(settings.VolumePercent)
	a.audio.SetPassthroughEnabled(settings.PassthroughEnabled)
	a.audio.SetShutterSound(settings.ShutterSoundPath, settings.ShutterSoundVolume)
}

// Run starts both capture sessions and supervises them until ctx is
// cancelled. Video pipeline failures are retried with backoff; audio
// failures only fail the initial start, since the devices do not
// detach mid-session the way a camera does.
func (a *App) Run(ctx context.Context) error {
	settings := a.currentSettings()
	a.applyAudioState(settings)

	if err := runWithRetry(ctx, a.logger, "audio", settings.Retry, func() error {
		return a.audio.Start(a.currentSettings().Audio)
	}); err != nil {
		return err
	}
	defer a.audio.Stop()

	if err := runWithRetry(ctx, a.logger, "video", settings.Retry, func() error {
		return a.video.Start(a.currentSettings().Video)
	}); err != nil {
		return err
	}
	defer a.video.Stop()

	shots := make(chan os.Signal, 1)
	signal.Notify(shots, syscall.SIGUSR1)
	defer signal.Stop(shots)

	ticker := time.NewTicker(settings.StatsInterval)
	defer ticker.Stop()

	a.logger.Info("capture running",
		"snapshot_dir", settings.SnapshotDir,
		"stats_interval", settings.StatsInterval,
	)

	for {
		select {
		case <-ctx.Done():
			a.flushStats(context.WithoutCancel(ctx))
			return ctx.Err()

		case err := <-a.video.Errors():
			a.logger.Error("video session failed, restarting", "error", err)
			if err := runWithRetry(ctx, a.logger, "video", a.currentSettings().Retry, func() error {
				return a.video.Start(a.currentSettings().Video)
			}); err != nil {
				return err
			}

		case <-shots:
			a.Snapshot(ctx)

		case <-ticker.C:
			a.flushStats(ctx)
		}
	}
}

// Snapshot grabs the newest frame, writes it to disk and plays the
// shutter sound. A missing frame is logged, not fatal.
func (a *App) Snapshot(ctx context.Context) {
	frame, ok := a.video.LatestFrame()
	if !ok {
		a.logger.Warn("snapshot requested but no frame is available")
		return
	}

	a.settingsMu.Lock()
	saver := a.saver
	a.settingsMu.Unlock()

	path, err := saver.Save(frame)
	a.metrics.RecordSnapshot(ctx, err)
	if err != nil {
		a.logger.Error("snapshot failed", "error", err)
		return
	}
	a.audio.TriggerShutterSound()
	a.logger.Info("snapshot taken", "path", path)
}

// SetVolume adjusts the passthrough volume, 0-200 percent.
func (a *App) SetVolume(percent float64) {
	a.audio.SetVolume(percent)
}

// SetPassthroughEnabled toggles audible passthrough.
func (a *App) SetPassthroughEnabled(enabled bool) {
	a.audio.SetPassthroughEnabled(enabled)
}

// flushStats logs a diagnostics summary and feeds the counter deltas
// since the previous flush into the metric instruments.
func (a *App) flushStats(ctx context.Context) {
	as := a.audio.Stats()
	vs := a.video.Stats()

	a.metrics.RecordAudioStats(ctx,
		counterDelta(a.lastAudio.Overruns, as.Overruns),
		counterDelta(a.lastAudio.Underruns, as.Underruns),
		counterDelta(a.lastAudio.Contention, as.Contention),
	)
	a.metrics.RecordVideoFrames(ctx, "fast",
		counterDelta(a.lastVideo.FastFrames, vs.FastFrames))
	a.metrics.RecordVideoFrames(ctx, "fallback",
		counterDelta(a.lastVideo.FallbackFrames, vs.FallbackFrames))
	if d := counterDelta(a.lastVideo.FramesDropped, vs.FramesDropped); d > 0 {
		a.metrics.VideoFramesDropped.Add(ctx, int64(d))
	}
	if vs.LastDecodeMS > 0 {
		a.metrics.VideoDecodeDuration.Record(ctx, vs.LastDecodeMS/1000)
	}

	a.logger.Info("capture stats",
		"audio_overruns", as.Overruns,
		"audio_underruns", as.Underruns,
		"audio_contention", as.Contention,
		"video_fast", vs.FastFrames,
		"video_fallback", vs.FallbackFrames,
		"video_dropped", vs.FramesDropped,
		"decode_ms", vs.LastDecodeMS,
		"mean_interval_ms", vs.MeanIntervalMS,
	)

	a.lastAudio = as
	a.lastVideo = vs
}

// counterDelta handles counters that reset when a session restarts.
func counterDelta(prev, cur uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}
