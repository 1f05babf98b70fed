package radio

import (
	"context"
	"sync"
)

// FakeScanner returns a pre-programmed quality index per frequency, for
// deterministic FSM and PFH tests.
type FakeScanner struct {
	mu       sync.Mutex
	Quality  map[int]int
	ScanErr  error
	ScanCall []int // frequencies passed to Scan, in call order
}

// NewFakeScanner creates a FakeScanner returning quality from the given map.
func NewFakeScanner(quality map[int]int) *FakeScanner {
	return &FakeScanner{Quality: quality}
}

func (f *FakeScanner) Scan(_ context.Context, _ string, freq int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ScanCall = append(f.ScanCall, freq)
	if f.ScanErr != nil {
		return 0, f.ScanErr
	}
	return f.Quality[freq], nil
}

// FakeProbe returns a pre-programmed sequence of Readings, one per call,
// repeating the last entry once exhausted.
type FakeProbe struct {
	mu       sync.Mutex
	Readings []Reading
	call     int
	ProbeErr error
}

// NewFakeProbe creates a FakeProbe stepping through readings in order.
func NewFakeProbe(readings ...Reading) *FakeProbe {
	return &FakeProbe{Readings: readings}
}

func (f *FakeProbe) Read(_ context.Context, _ string) (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ProbeErr != nil {
		return Reading{}, f.ProbeErr
	}

	if len(f.Readings) == 0 {
		return Reading{}, nil
	}

	idx := f.call
	if idx >= len(f.Readings) {
		idx = len(f.Readings) - 1
	}
	f.call++

	return f.Readings[idx], nil
}

// FakeController simulates a radio's current frequency, MAC, operstate,
// and switch outcome without touching the kernel.
type FakeController struct {
	mu sync.Mutex

	Freq      int
	MAC       string
	State     string
	SwitchErr error

	// SwitchBehavior, if set, is called on every SwitchFrequency and may
	// mutate Freq to simulate the radio actually moving.
	SwitchBehavior func(freq int)

	SwitchCalls int
}

// NewFakeController creates a FakeController starting at startFreq.
func NewFakeController(startFreq int) *FakeController {
	return &FakeController{
		Freq:  startFreq,
		MAC:   "02:00:00:00:00:01",
		State: "up",
	}
}

func (f *FakeController) CurrentFrequency(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Freq, nil
}

func (f *FakeController) MACAddress(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.MAC, nil
}

func (f *FakeController) Operstate(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.State, nil
}

func (f *FakeController) SwitchFrequency(_ context.Context, _ string, freq, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SwitchCalls++
	if f.SwitchErr != nil {
		return f.SwitchErr
	}

	if f.SwitchBehavior != nil {
		f.SwitchBehavior(freq)
	} else {
		f.Freq = freq
	}

	return nil
}
