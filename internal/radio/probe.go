package radio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SysfsProbe samples tx_bytes from sysfs and d_rx_phy_err/d_tx_timeout via
// ethtool, taking two readings SampleWindow apart and returning the
// delta.
type SysfsProbe struct {
	// SampleWindow is the delay between the two samples used to compute
	// each delta. 2 seconds by default.
	SampleWindow time.Duration

	// ReadFile reads a sysfs file's trimmed string contents.
	// Overridable for tests.
	ReadFile func(path string) (string, error)

	// Run executes an external command and returns its stdout.
	// Overridable for tests so no real subprocess is spawned.
	Run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSysfsProbe creates a probe with the default 2-second sample window.
func NewSysfsProbe() *SysfsProbe {
	return &SysfsProbe{
		SampleWindow: 2 * time.Second,
		ReadFile:     readSysfsFile,
		Run:          runCommand,
	}
}

var (
	phyErrorPattern  = regexp.MustCompile(`(?i)d_rx_phy_err:\s*(\d+)`)
	txTimeoutPattern = regexp.MustCompile(`(?i)d_tx_timeout:\s*(\d+)`)
)

// Read takes two samples of iface's tx_bytes, PHY-error, and TX-timeout
// counters SampleWindow apart and returns the deltas as a Reading.
// AirTimePercent is left at zero: it requires a live `iw survey dump`
// against the interface's current mesh frequency, which callers with
// access to a Controller should compute separately and merge in.
func (p *SysfsProbe) Read(ctx context.Context, iface string) (Reading, error) {
	txBytesPath := fmt.Sprintf("/sys/class/net/%s/statistics/tx_bytes", iface)

	prevTxBytes, err := p.readInt(txBytesPath)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: read tx_bytes: %w", ErrProbeFailed, err)
	}

	prevPhyErr, err := p.ethtoolCounter(ctx, iface, phyErrorPattern)
	if err != nil {
		return Reading{}, err
	}

	prevTxTimeout, err := p.ethtoolCounter(ctx, iface, txTimeoutPattern)
	if err != nil {
		return Reading{}, err
	}

	select {
	case <-time.After(p.SampleWindow):
	case <-ctx.Done():
		return Reading{}, fmt.Errorf("%w: %w", ErrProbeFailed, ctx.Err())
	}

	curTxBytes, err := p.readInt(txBytesPath)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: read tx_bytes: %w", ErrProbeFailed, err)
	}

	curPhyErr, err := p.ethtoolCounter(ctx, iface, phyErrorPattern)
	if err != nil {
		return Reading{}, err
	}

	curTxTimeout, err := p.ethtoolCounter(ctx, iface, txTimeoutPattern)
	if err != nil {
		return Reading{}, err
	}

	windowSeconds := p.SampleWindow.Seconds()
	if windowSeconds <= 0 {
		windowSeconds = 1
	}

	// tx_bytes delta to kbps: bytes -> bits (*8) -> kilobits (/1000).
	txRateKbps := int(float64((curTxBytes-prevTxBytes)*8) / (windowSeconds * 1000))

	return Reading{
		TxRateKbps:     txRateKbps,
		PhyErrorDelta:  curPhyErr - prevPhyErr,
		TxTimeoutDelta: curTxTimeout - prevTxTimeout,
	}, nil
}

// ethtoolCounter runs `ethtool -S <iface>` and extracts the counter
// matched by pattern.
func (p *SysfsProbe) ethtoolCounter(ctx context.Context, iface string, pattern *regexp.Regexp) (int, error) {
	out, err := p.Run(ctx, "ethtool", "-S", iface)
	if err != nil {
		return 0, fmt.Errorf("%w: ethtool -S %s: %w", ErrProbeFailed, iface, err)
	}

	m := pattern.FindSubmatch(out)
	if m == nil {
		return 0, nil
	}

	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: parse ethtool counter: %w", ErrProbeFailed, err)
	}

	return n, nil
}

// readInt reads and parses an integer-valued sysfs file.
func (p *SysfsProbe) readInt(path string) (int64, error) {
	s, err := p.ReadFile(path)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	return n, nil
}

// readSysfsFile reads a single-line sysfs file and returns its trimmed
// contents.
func readSysfsFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return scanner.Text(), nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return "", nil
}
