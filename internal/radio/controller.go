package radio

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// meshFreqPattern matches the "channel <n> (<freq> MHz)" line in
// `iw dev <iface> info` output.
var meshFreqPattern = regexp.MustCompile(`channel\s+\d+\s+\((\d+)\s*MHz\)`)

// IWController drives channel switching and mesh-frequency queries
// through the `iw` command-line tool, and reads MAC address/operstate
// from sysfs.
type IWController struct {
	// ReadFile reads a sysfs file's trimmed string contents.
	ReadFile func(path string) (string, error)

	// Run executes an external command and returns its stdout.
	Run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewIWController creates a controller backed by real sysfs reads and
// subprocess invocations.
func NewIWController() *IWController {
	return &IWController{
		ReadFile: readSysfsFile,
		Run:      runCommand,
	}
}

// CurrentFrequency runs `iw dev <iface> info` and extracts the mesh
// operating frequency in MHz.
func (c *IWController) CurrentFrequency(ctx context.Context, iface string) (int, error) {
	out, err := c.Run(ctx, "iw", "dev", iface, "info")
	if err != nil {
		return 0, fmt.Errorf("%w: iw dev %s info: %w", ErrProbeFailed, iface, err)
	}

	m := meshFreqPattern.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("%w: no channel line in iw dev %s info output", ErrProbeFailed, iface)
	}

	freq, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: parse frequency: %w", ErrProbeFailed, err)
	}

	return freq, nil
}

// MACAddress reads /sys/class/net/<iface>/address.
func (c *IWController) MACAddress(_ context.Context, iface string) (string, error) {
	s, err := c.ReadFile(fmt.Sprintf("/sys/class/net/%s/address", iface))
	if err != nil {
		return "", fmt.Errorf("%w: read MAC address: %w", ErrProbeFailed, err)
	}
	return strings.TrimSpace(s), nil
}

// Operstate reads /sys/class/net/<iface>/operstate.
func (c *IWController) Operstate(_ context.Context, iface string) (string, error) {
	s, err := c.ReadFile(fmt.Sprintf("/sys/class/net/%s/operstate", iface))
	if err != nil {
		return "", fmt.Errorf("%w: read operstate: %w", ErrProbeFailed, err)
	}
	return strings.TrimSpace(s), nil
}

// SwitchFrequency runs `iw dev <iface> switch freq <freq> HT<bandwidth>
// beacons <beaconCount>`. A nil return means the kernel
// accepted the command (exit code 0); it does not by itself confirm the
// interface reached freq.
func (c *IWController) SwitchFrequency(ctx context.Context, iface string, freq, bandwidthMHz, beaconCount int) error {
	_, err := c.Run(ctx, "iw", "dev", iface, "switch", "freq",
		strconv.Itoa(freq), fmt.Sprintf("HT%d", bandwidthMHz), "beacons", strconv.Itoa(beaconCount))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSwitchFailed, err)
	}

	return nil
}
