// Package radio abstracts the three external collaborators the control
// plane depends on but does not itself implement: the spectral-scan
// quality scorer, the sysfs/ethtool traffic-and-error probe, and the
// `iw`-driven channel-switch controller. Each is a small interface with a
// subprocess/sysfs-backed production implementation and a fake for
// deterministic FSM tests.
package radio

import (
	"context"
	"errors"
)

// ErrScanFailed indicates the external spectral-scan analyser returned a
// non-zero exit code or unparsable output.
var ErrScanFailed = errors.New("radio: spectral scan failed")

// ErrProbeFailed indicates a sysfs read or ethtool invocation failed.
var ErrProbeFailed = errors.New("radio: traffic/error probe failed")

// ErrSwitchFailed indicates the `iw` channel-switch subprocess returned a
// non-zero exit code.
var ErrSwitchFailed = errors.New("radio: channel switch failed")

// Scanner performs an off-channel spectral scan and returns a scalar
// channel quality index for freq on iface; lower is better.
type Scanner interface {
	Scan(ctx context.Context, iface string, freq int) (quality int, err error)
}

// Reading is one sample from a Probe.
type Reading struct {
	// TxRateKbps is the current TX bitrate in kbps.
	TxRateKbps int

	// PhyErrorDelta is the change in PHY error counters since the
	// previous reading.
	PhyErrorDelta int

	// TxTimeoutDelta is the change in TX-timeout counters since the
	// previous reading.
	TxTimeoutDelta int

	// AirTimePercent is the channel busy/active time ratio, 0-100.
	AirTimePercent int
}

// Probe samples traffic and error counters for iface over a short window.
type Probe interface {
	Read(ctx context.Context, iface string) (Reading, error)
}

// Controller queries and commands a mesh radio's operating frequency.
type Controller interface {
	// CurrentFrequency returns the interface's current mesh operating
	// frequency in MHz.
	CurrentFrequency(ctx context.Context, iface string) (int, error)

	// MACAddress returns the interface's hardware address.
	MACAddress(ctx context.Context, iface string) (string, error)

	// Operstate returns the sysfs operstate string ("up", "down", ...).
	Operstate(ctx context.Context, iface string) (string, error)

	// SwitchFrequency commands iface to switch to freq with the given
	// bandwidth (MHz) and beacon count, and returns whether the switch
	// subprocess was accepted (exit code 0). A nil error does not by
	// itself confirm the switch: callers re-read CurrentFrequency after
	// waiting out the beacon count.
	SwitchFrequency(ctx context.Context, iface string, freq, bandwidthMHz, beaconCount int) error
}
