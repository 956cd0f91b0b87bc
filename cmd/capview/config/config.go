package config

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

func setViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.SetDefault("audio.inputdevice", "")
	viper.SetDefault("audio.outputdevice", "")
	viper.SetDefault("audio.samplerate", 48000)
	viper.SetDefault("audio.channels", 2)
	viper.SetDefault("audio.latencyms", 50)
	viper.SetDefault("audio.format", "s16")
	viper.SetDefault("audio.volume", 100)
	viper.SetDefault("audio.passthrough", true)

	viper.SetDefault("video.device", "")
	viper.SetDefault("video.width", 1280)
	viper.SetDefault("video.height", 720)
	viper.SetDefault("video.fps", 60)
	viper.SetDefault("video.format", "")

	viper.SetDefault("snapshot.dir", "snapshots")
	viper.SetDefault("snapshot.quality", 90)
	viper.SetDefault("snapshot.shuttersound", "")
	viper.SetDefault("snapshot.shuttervolume", 100)

	viper.SetDefault("metrics.addr", "")
	viper.SetDefault("statsintervalseconds", 30)
}

// LoadConfig reads the config file into viper on top of the defaults.
// A missing file is fine; every key has a usable default.
func LoadConfig(configFilePath string) {
	setViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}
