package video

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrDeviceNotFound is returned when a capture device is requested by
// name but no device with that name or path is present.
var ErrDeviceNotFound = errors.New("video device not found")

const sysVideoRoot = "/sys/class/video4linux"

// Device describes one V4L2 capture device.
type Device struct {
	// Path is the device node, e.g. /dev/video0.
	Path string
	// Name is the card name the driver reports.
	Name string
}

// ListDevices enumerates the V4L2 devices registered with the kernel.
func ListDevices() ([]Device, error) {
	return listDevicesIn(sysVideoRoot)
}

func listDevicesIn(root string) ([]Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate video devices: %w", err)
	}

	devices := make([]Device, 0, len(entries))
	for _, entry := range entries {
		index, ok := strings.CutPrefix(entry.Name(), "video")
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(index); err != nil {
			continue
		}

		name := entry.Name()
		if raw, err := os.ReadFile(filepath.Join(root, entry.Name(), "name")); err == nil {
			name = strings.TrimSpace(string(raw))
		}
		devices = append(devices, Device{
			Path: "/dev/" + entry.Name(),
			Name: name,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return deviceIndex(devices[i].Path) < deviceIndex(devices[j].Path)
	})
	return devices, nil
}

func deviceIndex(path string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(path, "/dev/video"))
	return n
}

// resolveDevice picks the device node to open. An empty name selects
// the first available device; otherwise the name is matched against
// device paths and card names.
func resolveDevice(devices []Device, name string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, fmt.Errorf("%w: no devices available", ErrDeviceNotFound)
	}
	if name == "" {
		return devices[0], nil
	}
	for _, d := range devices {
		if d.Path == name || d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
