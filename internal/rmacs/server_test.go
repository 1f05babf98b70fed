package rmacs

import (
	"context"
	"testing"
	"time"

	"github.com/tiiuae/rmacs/internal/config"
	"github.com/tiiuae/rmacs/internal/radio"
)

func testServerConfig() config.RMACSConfig {
	return config.RMACSConfig{
		PrimaryRadio:                   "wlan0",
		StartingFrequency:              5180,
		ChannelBandwidth:               20,
		ServerBeaconCount:              0,
		ReportExpiryWindow:             30 * time.Second,
		BCQIThresholdTime:              0,
		PeriodicOperatingFreqBroadcast: time.Hour,
		HopInterval:                    0,
		StabilityThreshold:             2,
		SeqLimit:                       3,
		BufferPeriod:                   0,
	}
}

func newTestServer(t *testing.T, controller radio.Controller) (*Server, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	s := NewServer(testServerConfig(), ft, controller, nil, nil)
	s.mac = "02:00:00:00:00:02"
	return s, ft
}

func TestServerIngestReport(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, radio.NewFakeController(5180))

	qual := 3
	s.lastReport = Payload{Freq: 5200, Device: "node-a", Qual: &qual}
	s.process(context.Background(), ServerEventChannelQualityReport)

	if got := s.State(); got != ServerStateIdle {
		t.Errorf("State() = %v, want IDLE", got)
	}
	if s.ledger.Len() != 1 {
		t.Fatalf("ledger.Len() = %d, want 1", s.ledger.Len())
	}
}

func TestServerBroadcastOperatingFrequency(t *testing.T) {
	t.Parallel()

	s, ft := newTestServer(t, radio.NewFakeController(5180))

	s.process(context.Background(), ServerEventPeriodicOperatingFreqBroadcast)

	if got := s.State(); got != ServerStateIdle {
		t.Errorf("State() = %v, want IDLE", got)
	}
	if ft.sentCount() != 1 {
		t.Fatalf("sentCount() = %d, want 1", ft.sentCount())
	}
	if ft.lastSent().Payload.ActionID != ActionOperatingFrequency {
		t.Errorf("lastSent action = %v, want ActionOperatingFrequency", ft.lastSent().Payload.ActionID)
	}
	if ft.lastSent().Payload.Freq != 5180 {
		t.Errorf("lastSent freq = %d, want 5180", ft.lastSent().Payload.Freq)
	}
}

func TestServerBCQIDebounce(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig()
	cfg.BCQIThresholdTime = time.Hour

	ft := newFakeTransport()
	s := NewServer(cfg, ft, radio.NewFakeController(5180), nil, nil)

	qual := 9
	first := Payload{ActionID: ActionBadChannelQualityIndex, Freq: 5180, Device: "node-a", Qual: &qual}
	s.HandleInbound(frameFor(ControlMessage{Payload: first}))

	if s.pendingBCQI == nil {
		t.Fatal("pendingBCQI = nil after first accepted alert, want non-nil")
	}

	// Consume it, simulating the tick draining the slot.
	s.mu.Lock()
	s.pendingBCQI = nil
	s.mu.Unlock()

	second := Payload{ActionID: ActionBadChannelQualityIndex, Freq: 5180, Device: "node-b", Qual: &qual}
	s.HandleInbound(frameFor(ControlMessage{Payload: second}))

	if s.pendingBCQI != nil {
		t.Error("pendingBCQI set on second alert within threshold window, want debounced")
	}
}

func TestServerBCQIIgnoredForDifferentFrequency(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, radio.NewFakeController(5180))

	qual := 9
	p := Payload{ActionID: ActionBadChannelQualityIndex, Freq: 5200, Device: "node-a", Qual: &qual}
	s.HandleInbound(frameFor(ControlMessage{Payload: p}))

	if s.pendingBCQI != nil {
		t.Error("pendingBCQI set for alert naming a different frequency, want ignored")
	}
}

func TestServerPartialFrequencyHoppingConvergesToBestFreq(t *testing.T) {
	t.Parallel()

	controller := radio.NewFakeController(5180)
	s, _ := newTestServer(t, controller)

	now := time.Now()
	s.ledger.Ingest(5180, "node-a", 9, now)
	s.ledger.Ingest(5200, "node-a", 1, now)
	s.ledger.Ingest(5220, "node-a", 5, now)

	s.process(context.Background(), ServerEventBadChannelQualityIndex)

	// PFH keeps cycling ChannelSwitchRequest <-> PartialFrequencyHopping
	// internally via process()'s own loop until stability_threshold
	// consecutive iterations agree, then lands back at IDLE having
	// adopted the best-ranked frequency (5200, quality 1). The ledger
	// already ranks 5200 best before the first hop, so with
	// StabilityThreshold=2 it takes exactly 2 iterations, not 3.
	if got := s.State(); got != ServerStateIdle {
		t.Errorf("State() = %v, want IDLE", got)
	}
	if got := s.OperatingFrequency(); got != 5200 {
		t.Errorf("OperatingFrequency() = %d, want 5200 (best average_quality)", got)
	}
	if controller.SwitchCalls != 2 {
		t.Errorf("SwitchCalls = %d, want 2 (PFH converges in stability_threshold iterations)", controller.SwitchCalls)
	}
}

func TestServerPartialFrequencyHoppingSingleFrequencyConvergesWithinStabilityThreshold(t *testing.T) {
	t.Parallel()

	controller := radio.NewFakeController(5180)
	s, _ := newTestServer(t, controller)

	s.ledger.Ingest(5180, "node-a", 3, time.Now())

	s.process(context.Background(), ServerEventBadChannelQualityIndex)

	if got := s.State(); got != ServerStateIdle {
		t.Errorf("State() = %v, want IDLE", got)
	}
	if got := s.OperatingFrequency(); got != 5180 {
		t.Errorf("OperatingFrequency() = %d, want 5180 (only ledger entry)", got)
	}
	if controller.SwitchCalls != 2 {
		t.Errorf("SwitchCalls = %d, want 2 (stability_threshold iterations, not 3)", controller.SwitchCalls)
	}
}

func TestServerPartialFrequencyHoppingNoLedgerEntriesCompletesImmediately(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, radio.NewFakeController(5180))

	s.process(context.Background(), ServerEventBadChannelQualityIndex)

	if got := s.State(); got != ServerStateIdle {
		t.Errorf("State() = %v, want IDLE", got)
	}
}

func TestServerHandleInboundQueuesChannelQualityReport(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, radio.NewFakeController(5180))

	qual := 4
	p := Payload{ActionID: ActionChannelQualityReport, Freq: 5200, Device: "node-a", Qual: &qual}
	s.HandleInbound(frameFor(ControlMessage{Payload: p}))

	s.mu.Lock()
	n := len(s.pendingReports)
	s.mu.Unlock()

	if n != 1 {
		t.Errorf("len(pendingReports) = %d, want 1", n)
	}
}
