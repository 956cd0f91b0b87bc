package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
)

// ErrDeviceNotFound is returned when a device is requested by name but
// no device with that name is present at enumeration time.
var ErrDeviceNotFound = errors.New("audio device not found")

// Device describes one audio endpoint known to the backend.
type Device struct {
	Name      string
	IsDefault bool
}

// ListInputDevices enumerates the capture devices currently visible to
// the audio backend.
func ListInputDevices() ([]Device, error) {
	return listDevices(malgo.Capture)
}

// ListOutputDevices enumerates the playback devices currently visible
// to the audio backend.
func ListOutputDevices() ([]Device, error) {
	return listDevices(malgo.Playback)
}

func listDevices(kind malgo.DeviceType) ([]Device, error) {
	ctx, err := newBackendContext(slog.Default())
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// newBackendContext initializes a miniaudio context whose log messages
// are forwarded to the given slog logger.
func newBackendContext(logger *slog.Logger) (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "msg", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("initialize audio backend: %w", err)
	}
	return ctx, nil
}

// resolveDevice finds the device to open: the named device when name is
// non-empty (ErrDeviceNotFound when absent), otherwise the backend's
// default, otherwise the first enumerated device.
func resolveDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("enumerate devices: %w", err)
	}
	if len(infos) == 0 {
		return malgo.DeviceInfo{}, fmt.Errorf("%w: no devices available", ErrDeviceNotFound)
	}

	if name != "" {
		for _, info := range infos {
			if info.Name() == name {
				return info, nil
			}
		}
		return malgo.DeviceInfo{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}

	for _, info := range infos {
		if info.IsDefault != 0 {
			return info, nil
		}
	}
	return infos[0], nil
}
