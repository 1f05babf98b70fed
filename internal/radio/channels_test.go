package radio_test

import (
	"context"
	"testing"

	"github.com/tiiuae/rmacs/internal/radio"
)

func TestFrequencyForChannel(t *testing.T) {
	t.Parallel()

	freq, ok := radio.FrequencyForChannel(36)
	if !ok || freq != 5180 {
		t.Errorf("FrequencyForChannel(36) = %d, %v; want 5180, true", freq, ok)
	}

	if _, ok := radio.FrequencyForChannel(9999); ok {
		t.Error("FrequencyForChannel(9999) ok = true, want false")
	}
}

func TestChannelForFrequency(t *testing.T) {
	t.Parallel()

	ch, ok := radio.ChannelForFrequency(5805)
	if !ok || ch != 161 {
		t.Errorf("ChannelForFrequency(5805) = %d, %v; want 161, true", ch, ok)
	}

	if _, ok := radio.ChannelForFrequency(1234); ok {
		t.Error("ChannelForFrequency(1234) ok = true, want false")
	}
}

func TestFakeScannerReturnsProgrammedQuality(t *testing.T) {
	t.Parallel()

	s := radio.NewFakeScanner(map[int]int{5180: 3, 5200: 7})

	q, err := s.Scan(context.Background(), "wlan0", 5200)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if q != 7 {
		t.Errorf("Scan(5200) = %d, want 7", q)
	}
	if len(s.ScanCall) != 1 || s.ScanCall[0] != 5200 {
		t.Errorf("ScanCall = %v, want [5200]", s.ScanCall)
	}
}

func TestFakeControllerSwitchFrequency(t *testing.T) {
	t.Parallel()

	c := radio.NewFakeController(5180)

	if err := c.SwitchFrequency(context.Background(), "wlan0", 5200, 20, 10); err != nil {
		t.Fatalf("SwitchFrequency() error: %v", err)
	}

	got, err := c.CurrentFrequency(context.Background(), "wlan0")
	if err != nil {
		t.Fatalf("CurrentFrequency() error: %v", err)
	}
	if got != 5200 {
		t.Errorf("CurrentFrequency() = %d, want 5200", got)
	}
	if c.SwitchCalls != 1 {
		t.Errorf("SwitchCalls = %d, want 1", c.SwitchCalls)
	}
}
