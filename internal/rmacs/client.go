package rmacs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiiuae/rmacs/internal/config"
	rmacsmetrics "github.com/tiiuae/rmacs/internal/metrics"
	"github.com/tiiuae/rmacs/internal/radio"
)

// Transport is the subset of *transport.Transport the FSM drivers in
// this package depend on. Defining it here, rather than importing the
// concrete type everywhere, lets tests substitute an in-memory fake.
type Transport interface {
	Recv() <-chan Frame
	Send(iface string, msg ControlMessage) error
	Broadcast(msg ControlMessage, repeat int)
	Interfaces() []string
}

// Client drives the client-side interference-detection FSM: a 5-second
// tick schedules traffic monitoring from IDLE, FSM actions chain
// synchronously until the machine settles back at IDLE, and inbound
// SwitchFrequency/OperatingFrequency commands for a different frequency
// are dispatched immediately as EXT_SWITCH_EVENT, bypassing the tick.
type Client struct {
	cfg        config.RMACSConfig
	iface      string
	transport  Transport
	scanner    radio.Scanner
	probe      radio.Probe
	controller radio.Controller
	dedup      *Dedup
	metrics    *rmacsmetrics.Collector
	logger     *slog.Logger

	// serverInbound receives BadChannelQualityIndex and
	// ChannelQualityReport frames this node's own receive loop observed;
	// set by the supervisor only on the orchestrator node. Nil elsewhere.
	serverInbound func(Frame)

	mu                   sync.Mutex
	state                ClientState
	freqCursor           int
	currentOperatingFreq int
	switchingFreq        int
	scannedFreq          int
	scannedQuality       int
	lastReading          radio.Reading
	retries              int
	mac                  string

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewClient creates a Client bound to cfg.RMACS.PrimaryRadio.
func NewClient(
	cfg config.RMACSConfig,
	t Transport,
	scanner radio.Scanner,
	probe radio.Probe,
	controller radio.Controller,
	metrics *rmacsmetrics.Collector,
	logger *slog.Logger,
) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:                   cfg,
		iface:                 cfg.PrimaryRadio,
		transport:             t,
		scanner:               scanner,
		probe:                 probe,
		controller:            controller,
		dedup:                 NewDedup(),
		metrics:               metrics,
		logger:                logger.With(slog.String("component", "rmacs.client")),
		state:                 ClientStateIdle,
		currentOperatingFreq:  cfg.StartingFrequency,
		freqCursor:            -1,
		stop:                  make(chan struct{}),
	}
}

// SetServerInbound registers the callback the receive loop hands
// BadChannelQualityIndex and ChannelQualityReport frames to. Called by
// the supervisor only when this process also runs the server FSM.
func (c *Client) SetServerInbound(fn func(Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverInbound = fn
}

// Run starts the tick-driven driver loop and the inbound receive
// dispatcher. It blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	if freq, err := c.controller.CurrentFrequency(ctx, c.iface); err == nil {
		c.mu.Lock()
		c.currentOperatingFreq = freq
		c.mu.Unlock()
	} else {
		c.logger.Warn("could not read initial operating frequency, using configured starting frequency",
			slog.Any("error", err))
	}

	c.mac, _ = c.controller.MACAddress(ctx, c.iface)

	c.wg.Add(2)
	go c.tickLoop(ctx)
	go c.receiveLoop(ctx)

	<-ctx.Done()
	close(c.stop)
	c.wg.Wait()
}

// tickLoop enqueues TRAFFIC_MONITOR once per ~5s tick while idle.
func (c *Client) tickLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			idle := c.state == ClientStateIdle
			c.mu.Unlock()
			if idle {
				c.process(ctx, ClientEventTrafficMonitor)
			}
		}
	}
}

// receiveLoop dispatches inbound frames: OperatingFrequency/SwitchFrequency
// messages naming a different frequency trigger EXT_SWITCH_EVENT;
// BadChannelQualityIndex/ChannelQualityReport are forwarded to the server
// FSM when present. Duplicate message_ids are dropped here, once, for the
// whole node.
func (c *Client) receiveLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case frame, ok := <-c.transport.Recv():
			if !ok {
				return
			}
			c.dispatch(ctx, frame)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame Frame) {
	if !c.dedup.Accept(frame.Message.Payload.MessageID) {
		if c.metrics != nil {
			c.metrics.IncMessagesDropped(frame.Interface)
		}
		return
	}

	switch frame.Message.Payload.ActionID {
	case ActionOperatingFrequency, ActionSwitchFrequency:
		c.mu.Lock()
		differs := frame.Message.Payload.Freq != c.currentOperatingFreq
		if differs {
			c.switchingFreq = frame.Message.Payload.Freq
		}
		c.mu.Unlock()

		if differs {
			c.process(ctx, ClientEventExtSwitchEvent)
		}

	case ActionBadChannelQualityIndex, ActionChannelQualityReport:
		c.mu.Lock()
		fn := c.serverInbound
		c.mu.Unlock()
		if fn != nil {
			fn(frame)
		}
	}
}

// process applies event to the FSM and executes the resulting action,
// feeding the action's own terminating event back in until the chain
// settles.
func (c *Client) process(ctx context.Context, event ClientEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		result := ApplyClientEvent(c.state, event)
		c.state = result.NewState

		next, ok := c.execute(ctx, result.Action)
		if !ok {
			return
		}
		event = next
	}
}

// execute runs action's side effect while c.mu is held, and returns the
// event it produces. Callers must hold c.mu.
func (c *Client) execute(ctx context.Context, action ClientAction) (ClientEvent, bool) {
	switch action {
	case ClientActionTrafficMonitoring:
		return c.trafficMonitoring(ctx), true

	case ClientActionErrorMonitoring:
		return c.errorMonitoring(ctx), true

	case ClientActionOffChannelScan:
		return c.offChannelScan(ctx), true

	case ClientActionScanCurrentFreq:
		return c.scanCurrentFreq(ctx), true

	case ClientActionSendBCQI:
		return c.sendBCQI(), true

	case ClientActionReportQuality:
		return c.reportQuality(), true

	case ClientActionSwitchFrequency:
		return c.switchFrequency(ctx)

	case ClientActionNone:
		return 0, false

	default:
		return 0, false
	}
}

// trafficMonitoring samples TX bitrate and emits TRAFFIC or NO_TRAFFIC.
func (c *Client) trafficMonitoring(ctx context.Context) ClientEvent {
	reading, err := c.probe.Read(ctx, c.iface)
	if err != nil {
		c.logger.Warn("traffic probe failed", slog.Any("error", err))
		return ClientEventNoTraffic
	}

	c.lastReading = reading

	if reading.TxRateKbps > c.cfg.TrafficThreshold {
		return ClientEventTraffic
	}
	return ClientEventNoTraffic
}

// errorMonitoring samples PHY-error/TX-timeout/air-time deltas up to
// max_error_check times.
func (c *Client) errorMonitoring(ctx context.Context) ClientEvent {
	badCount := 0

	for i := 0; i < c.cfg.MaxErrorCheck; i++ {
		reading, err := c.probe.Read(ctx, c.iface)
		if err != nil {
			c.logger.Warn("error probe failed", slog.Any("error", err))
			return ClientEventNoError
		}
		c.lastReading = reading

		bad := reading.PhyErrorDelta > c.cfg.PhyErrorLimit ||
			reading.TxTimeoutDelta > c.cfg.TxTimeoutLimit ||
			reading.AirTimePercent > c.cfg.AirTimeLimit

		if !bad {
			return ClientEventNoError
		}

		badCount++
		if badCount >= c.cfg.MaxErrorCheck {
			return ClientEventError
		}
	}

	return ClientEventNoError
}

// offChannelScan advances the frequency cursor, scores the candidate,
// and always emits PERFORMED_CHANNEL_SCAN.
func (c *Client) offChannelScan(ctx context.Context) ClientEvent {
	if len(c.cfg.FreqList) == 0 {
		return ClientEventPerformedChannelScan
	}

	c.freqCursor = (c.freqCursor + 1) % len(c.cfg.FreqList)
	freq := c.cfg.FreqList[c.freqCursor]

	quality, err := c.scanner.Scan(ctx, c.iface, freq)
	if err != nil {
		c.logger.Warn("off-channel scan failed", slog.Int("freq", freq), slog.Any("error", err))
	}

	c.scannedFreq = freq
	c.scannedQuality = quality

	if c.metrics != nil {
		c.metrics.IncScansPerformed(freq)
	}

	return ClientEventPerformedChannelScan
}

// scanCurrentFreq scores the current operating frequency and emits
// BAD_ or GOOD_CHANNEL_QUALITY_INDEX.
func (c *Client) scanCurrentFreq(ctx context.Context) ClientEvent {
	freq := c.currentOperatingFreq

	quality, err := c.scanner.Scan(ctx, c.iface, freq)
	if err != nil {
		c.logger.Warn("operating-channel scan failed", slog.Int("freq", freq), slog.Any("error", err))
		return ClientEventGoodChannelQualityIndex
	}

	c.scannedFreq = freq
	c.scannedQuality = quality

	if c.metrics != nil {
		c.metrics.IncScansPerformed(freq)
	}

	if quality > c.cfg.ChannelQualityIndexThreshold {
		return ClientEventBadChannelQualityIndex
	}
	return ClientEventGoodChannelQualityIndex
}

// sendBCQI broadcasts a BadChannelQualityIndex report twice on every
// socket.
func (c *Client) sendBCQI() ClientEvent {
	msg := NewQualityMessage(ActionBadChannelQualityIndex, c.mac, c.scannedFreq, c.scannedQuality,
		c.lastReading.TxRateKbps, c.lastReading.PhyErrorDelta, c.lastReading.TxTimeoutDelta)

	c.transport.Broadcast(msg, 2)

	if c.metrics != nil {
		c.metrics.IncBCQIAlertsSent()
	}

	return ClientEventSentBadChannelQualityIndex
}

// reportQuality broadcasts a ChannelQualityReport for the scanned
// candidate frequency, once per socket.
func (c *Client) reportQuality() ClientEvent {
	msg := NewQualityMessage(ActionChannelQualityReport, c.mac, c.scannedFreq, c.scannedQuality,
		c.lastReading.TxRateKbps, c.lastReading.PhyErrorDelta, c.lastReading.TxTimeoutDelta)

	c.transport.Broadcast(msg, 1)

	if c.metrics != nil {
		c.metrics.IncQualityReportsSent()
	}

	return ClientEventReportedChannelQuality
}

// switchFrequency executes a commanded channel switch and verifies it by
// re-reading the current frequency after the beacon count settles. If
// the radio never reaches the target frequency and retries are
// exhausted, the FSM is left parked in CHANNEL_SWITCH: no terminating
// event fires, since none of SWITCH_SUCCESSFUL/SWITCH_UNSUCCESSFUL
// applies once the retry budget is spent.
func (c *Client) switchFrequency(ctx context.Context) (ClientEvent, bool) {
	target := c.switchingFreq

	if target == c.currentOperatingFreq {
		if c.metrics != nil {
			c.metrics.IncSwitchesAttempted(rmacsmetrics.SwitchResultNotRequired)
		}
		return ClientEventSwitchNotRequired, true
	}

	if err := c.controller.SwitchFrequency(ctx, c.iface, target, c.cfg.ChannelBandwidth, c.cfg.ClientBeaconCount); err != nil {
		c.logger.Warn("switch command failed", slog.Any("error", err))
	}

	select {
	case <-time.After(time.Duration(c.cfg.ClientBeaconCount) * time.Second):
	case <-ctx.Done():
		return 0, false
	}

	cur, err := c.controller.CurrentFrequency(ctx, c.iface)
	if err != nil {
		c.logger.Warn("could not verify switch", slog.Any("error", err))
	}

	if cur == target {
		c.currentOperatingFreq = target
		c.retries = 0
		if c.metrics != nil {
			c.metrics.IncSwitchesAttempted(rmacsmetrics.SwitchResultSuccessful)
		}
		return ClientEventSwitchSuccessful, true
	}

	if c.retries < c.cfg.MaxSwitchRetries {
		c.retries++
		if c.metrics != nil {
			c.metrics.IncSwitchesAttempted(rmacsmetrics.SwitchResultUnsuccessful)
		}
		return ClientEventSwitchUnsuccessful, true
	}

	c.logger.Error("switch retries exhausted, frequency mismatch remains",
		slog.Int("target", target), slog.Int("current", cur))
	return 0, false
}

// State returns the client FSM's current state, for status reporting.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OperatingFrequency returns the client's locally tracked operating
// frequency, for status reporting.
func (c *Client) OperatingFrequency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentOperatingFreq
}

// Dedup exposes the node-wide processed-message-id set for the operator
// status endpoint.
func (c *Client) Dedup() *Dedup {
	return c.dedup
}
