package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/awerune/capview/cmd/capview/config"
	"github.com/awerune/capview/internal/app"
	"github.com/awerune/capview/internal/audio"
	"github.com/awerune/capview/internal/observe"
	"github.com/awerune/capview/internal/utils"
	"github.com/awerune/capview/internal/video"
)

func settingsFromConfig() app.Settings {
	format := audio.FormatS16
	if viper.GetString("audio.format") == "f32" {
		format = audio.FormatF32
	}

	return app.Settings{
		Audio: audio.StartOptions{
			InputDevice:   viper.GetString("audio.inputdevice"),
			OutputDevice:  viper.GetString("audio.outputdevice"),
			SampleRate:    viper.GetInt("audio.samplerate"),
			Channels:      viper.GetInt("audio.channels"),
			TargetLatency: time.Duration(viper.GetInt("audio.latencyms")) * time.Millisecond,
			Format:        format,
		},
		VolumePercent:      viper.GetFloat64("audio.volume"),
		PassthroughEnabled: viper.GetBool("audio.passthrough"),
		ShutterSoundPath:   viper.GetString("snapshot.shuttersound"),
		ShutterSoundVolume: viper.GetFloat64("snapshot.shuttervolume"),
		Video: video.Options{
			Device: viper.GetString("video.device"),
			Width:  viper.GetInt("video.width"),
			Height: viper.GetInt("video.height"),
			FPS:    viper.GetInt("video.fps"),
			Format: viper.GetString("video.format"),
		},
		SnapshotDir:     viper.GetString("snapshot.dir"),
		SnapshotQuality: viper.GetInt("snapshot.quality"),
		StatsInterval:   time.Duration(viper.GetInt("statsintervalseconds")) * time.Second,
	}
}

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		MetricsAddr: viper.GetString("metrics.addr"),
	})
	if err != nil {
		slog.Error("error while initializing metrics", "err", err)
		panic(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("error while shutting down metrics", "err", err)
		}
	}()

	capture := app.New(settingsFromConfig(), slog.Default(), observe.DefaultMetrics())
	if err := capture.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("capture terminated", "err", err)
		os.Exit(1)
	}
}
