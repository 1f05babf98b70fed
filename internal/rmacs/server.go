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

// Server drives the orchestrator-side frequency-selection FSM: a 2-second tick drains at most one buffered BCQI alert, one
// buffered channel-quality report, and checks the periodic
// operating-frequency broadcast deadline, all from IDLE. Inbound BCQI
// and report frames are handed in by the client's receive loop via
// HandleInbound when this process is also the orchestrator node.
type Server struct {
	cfg        config.RMACSConfig
	iface      string
	transport  Transport
	controller radio.Controller
	ledger     *Ledger
	metrics    *rmacsmetrics.Collector
	logger     *slog.Logger
	mac        string

	mu             sync.Mutex
	state          ServerState
	operatingFreq  int
	pendingBCQI    *Payload
	pendingReports []Payload
	lastReport     Payload
	lastBroadcast  time.Time
	lastBCQIAccept time.Time

	// PFH loop state, carried across the PartialFrequencyHopping <->
	// SendChannelSwitchRequest round trip.
	pfhCursor           int
	pfhTopFreq          *int
	pfhStabilityCounter int
	pfhCandidate        int

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewServer creates a Server bound to cfg.RMACS.PrimaryRadio, seeded
// with cfg.StartingFrequency as the initial operating frequency.
func NewServer(
	cfg config.RMACSConfig,
	t Transport,
	controller radio.Controller,
	metrics *rmacsmetrics.Collector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:           cfg,
		iface:         cfg.PrimaryRadio,
		transport:     t,
		controller:    controller,
		ledger:        NewLedger(cfg.ReportExpiryWindow),
		metrics:       metrics,
		logger:        logger.With(slog.String("component", "rmacs.server")),
		state:         ServerStateIdle,
		operatingFreq: cfg.StartingFrequency,
		stop:          make(chan struct{}),
	}
}

// Run starts the tick-driven driver loop. It blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) {
	if freq, err := s.controller.CurrentFrequency(ctx, s.iface); err == nil {
		s.mu.Lock()
		s.operatingFreq = freq
		s.mu.Unlock()
	} else {
		s.logger.Warn("could not read initial operating frequency, using configured starting frequency",
			slog.Any("error", err))
	}

	s.mac, _ = s.controller.MACAddress(ctx, s.iface)

	s.wg.Add(1)
	go s.tickLoop(ctx)

	<-ctx.Done()
	close(s.stop)
	s.wg.Wait()
}

// tickLoop drains buffered work once per ~2s tick while idle.
func (s *Server) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Server) tick(ctx context.Context) {
	s.mu.Lock()
	idle := s.state == ServerStateIdle
	bcqi := s.pendingBCQI
	if idle && bcqi != nil {
		s.pendingBCQI = nil
	}
	var broadcastDue bool
	if idle && bcqi == nil {
		broadcastDue = time.Since(s.lastBroadcast) >= s.cfg.PeriodicOperatingFreqBroadcast
	}
	var report *Payload
	if idle && len(s.pendingReports) > 0 {
		r := s.pendingReports[0]
		s.pendingReports = s.pendingReports[1:]
		report = &r
	}
	s.mu.Unlock()

	switch {
	case idle && bcqi != nil:
		s.processBCQI(ctx, *bcqi)
	case idle && broadcastDue:
		s.process(ctx, ServerEventPeriodicOperatingFreqBroadcast)
	}

	if report != nil {
		s.processReport(ctx, *report)
	}
}

// HandleInbound is wired by the supervisor as the client receive loop's
// server-forwarding callback when this process runs the orchestrator
// role.
func (s *Server) HandleInbound(frame Frame) {
	p := frame.Message.Payload

	switch p.ActionID {
	case ActionBadChannelQualityIndex:
		s.mu.Lock()
		defer s.mu.Unlock()

		if p.Freq != s.operatingFreq {
			return
		}
		if time.Since(s.lastBCQIAccept) <= s.cfg.BCQIThresholdTime {
			if s.metrics != nil {
				s.metrics.IncBCQIAlertsDebounced()
			}
			return
		}

		s.lastBCQIAccept = time.Now()
		pending := p
		s.pendingBCQI = &pending
		if s.metrics != nil {
			s.metrics.IncBCQIAlertsAccepted()
		}

	case ActionChannelQualityReport:
		s.mu.Lock()
		s.pendingReports = append(s.pendingReports, p)
		s.mu.Unlock()
	}
}

// processBCQI feeds a stashed BCQI alert's data into the ledger's
// consideration by driving the PFH branch of the FSM starting from the
// report's own quality reading.
func (s *Server) processBCQI(ctx context.Context, p Payload) {
	s.mu.Lock()
	if p.Qual != nil {
		s.ledger.Ingest(p.Freq, p.Device, *p.Qual, time.Now())
	}
	s.mu.Unlock()

	s.process(ctx, ServerEventBadChannelQualityIndex)
}

// processReport ingests one buffered channel-quality report.
func (s *Server) processReport(ctx context.Context, p Payload) {
	s.mu.Lock()
	s.lastReport = p
	s.mu.Unlock()

	s.process(ctx, ServerEventChannelQualityReport)
}

// process applies event to the FSM and executes the resulting action,
// feeding the action's own terminating event back in until the chain
// settles (mirrors client.go's driver pattern).
func (s *Server) process(ctx context.Context, event ServerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		result := ApplyServerEvent(s.state, event)
		s.state = result.NewState

		next, ok := s.execute(ctx, result.Action)
		if !ok {
			return
		}
		event = next
	}
}

// execute runs action's side effect while s.mu is held, and returns the
// event it produces. Callers must hold s.mu.
func (s *Server) execute(ctx context.Context, action ServerAction) (ServerEvent, bool) {
	switch action {
	case ServerActionIngestReport:
		return s.ingestReport(), true

	case ServerActionPartialFreqHopping:
		return s.partialFreqHopping(ctx)

	case ServerActionSendSwitchRequest:
		return s.sendSwitchRequest(), true

	case ServerActionBroadcastOpFreq:
		return s.broadcastOpFreq(), true

	case ServerActionNone:
		return 0, false

	default:
		return 0, false
	}
}

// ingestReport records the buffered channel-quality report in the
// ledger.
func (s *Server) ingestReport() ServerEvent {
	p := s.lastReport
	if p.Qual != nil {
		s.ledger.Ingest(p.Freq, p.Device, *p.Qual, time.Now())
	}
	return ServerEventChannelQualityUpdateComplete
}

// partialFreqHopping runs one iteration of the PFH algorithm: rank the ledger, step through the
// top seq_limit candidates one hop_interval apart, and converge once
// the best candidate is stable for stability_threshold consecutive
// iterations.
func (s *Server) partialFreqHopping(ctx context.Context) (ServerEvent, bool) {
	sorted := s.ledger.SortedByQuality()
	if len(sorted) == 0 {
		return ServerEventFrequencyHoppingComplete, true
	}

	n := s.cfg.SeqLimit
	if n > len(sorted) {
		n = len(sorted)
	}
	if n <= 0 {
		return ServerEventFrequencyHoppingComplete, true
	}

	if s.pfhTopFreq == nil {
		top := sorted[0].Freq
		s.pfhTopFreq = &top
	}

	if s.pfhStabilityCounter > 0 {
		select {
		case <-time.After(s.cfg.HopInterval):
		case <-ctx.Done():
			return 0, false
		}
	}

	candidate := sorted[s.pfhCursor%n].Freq
	s.pfhCursor = (s.pfhCursor + 1) % n

	if err := s.controller.SwitchFrequency(ctx, s.iface, candidate, s.cfg.ChannelBandwidth, s.cfg.ServerBeaconCount); err != nil {
		s.logger.Warn("PFH probe switch failed", slog.Int("candidate", candidate), slog.Any("error", err))
	}

	settle := time.Duration(s.cfg.ServerBeaconCount)*time.Second + s.cfg.BufferPeriod
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return 0, false
	}

	switch cur, err := s.controller.CurrentFrequency(ctx, s.iface); {
	case err != nil:
		s.logger.Warn("could not verify PFH probe switch", slog.Int("candidate", candidate), slog.Any("error", err))
	case cur != candidate:
		s.logger.Warn("PFH probe switch not confirmed", slog.Int("candidate", candidate), slog.Int("current", cur))
		if s.metrics != nil {
			s.metrics.IncSwitchesAttempted(rmacsmetrics.SwitchResultUnsuccessful)
		}
	case s.metrics != nil:
		s.metrics.IncSwitchesAttempted(rmacsmetrics.SwitchResultSuccessful)
	}

	resorted := s.ledger.SortedByQuality()
	rn := s.cfg.SeqLimit
	if rn > len(resorted) {
		rn = len(resorted)
	}
	best := candidate
	if rn > 0 {
		best = resorted[0].Freq
	}

	if s.pfhTopFreq != nil && *s.pfhTopFreq == best {
		s.pfhStabilityCounter++
	} else {
		s.pfhStabilityCounter = 0
		top := best
		s.pfhTopFreq = &top
	}

	if s.metrics != nil {
		s.metrics.IncPFHIterations()
	}

	if s.pfhStabilityCounter >= s.cfg.StabilityThreshold {
		s.operatingFreq = *s.pfhTopFreq
		s.pfhCursor = 0
		s.pfhTopFreq = nil
		s.pfhStabilityCounter = 0

		if s.metrics != nil {
			s.metrics.IncPFHConvergences()
		}
		return ServerEventFrequencyHoppingComplete, true
	}

	s.pfhCandidate = candidate
	return ServerEventChannelSwitchRequest, true
}

// sendSwitchRequest broadcasts a SwitchFrequency command for the
// current PFH candidate.
func (s *Server) sendSwitchRequest() ServerEvent {
	msg := NewFrequencyMessage(ActionSwitchFrequency, s.mac, s.pfhCandidate)
	s.transport.Broadcast(msg, 1)
	return ServerEventChannelSwitchRequestSent
}

// broadcastOpFreq broadcasts the current operating frequency on every
// socket.
func (s *Server) broadcastOpFreq() ServerEvent {
	msg := NewFrequencyMessage(ActionOperatingFrequency, s.mac, s.operatingFreq)
	s.transport.Broadcast(msg, 1)
	s.lastBroadcast = time.Now()

	if s.metrics != nil {
		s.metrics.IncOperatingFreqBroadcasts()
	}

	return ServerEventBroadcastComplete
}

// State returns the server FSM's current state, for status reporting.
func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OperatingFrequency returns the server's current operating frequency,
// for status reporting.
func (s *Server) OperatingFrequency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operatingFreq
}

// Ledger exposes the channel-quality ledger for the operator status
// endpoint.
func (s *Server) Ledger() *Ledger {
	return s.ledger
}

// BroadcastOperatingFrequency forces an immediate operating-frequency
// broadcast, bypassing the periodic_operating_freq_broadcast deadline.
// Wired to POST /v1/broadcast as an operator convenience, not part of
// the distributed protocol itself.
func (s *Server) BroadcastOperatingFrequency() {
	s.process(context.Background(), ServerEventPeriodicOperatingFreqBroadcast)
}
