package rmacs

// This file implements the client-side interference-detection FSM
// the way the BFD session FSM is implemented: a pure
// function over a transition table, no side effects, paired with a
// stateful driver (client.go) that executes the returned action and
// feeds the resulting event back in.
//
// EXT_SWITCH_EVENT is not part of the table: it is handled as a global,
// state-independent priority transition into ClientStateChannelSwitch,
// applied directly by ApplyClientEvent before the table lookup.

// ClientState is a state of the client interference-detection FSM.
type ClientState uint8

const (
	ClientStateIdle ClientState = iota
	ClientStateMonitorTraffic
	ClientStateMonitorError
	ClientStateChannelScan
	ClientStateOperatingChannelScan
	ClientStateReportBCQI
	ClientStateReportChannelQuality
	ClientStateChannelSwitch
)

// String returns the transition-table name of the state.
func (s ClientState) String() string {
	switch s {
	case ClientStateIdle:
		return "IDLE"
	case ClientStateMonitorTraffic:
		return "MONITOR_TRAFFIC"
	case ClientStateMonitorError:
		return "MONITOR_ERROR"
	case ClientStateChannelScan:
		return "CHANNEL_SCAN"
	case ClientStateOperatingChannelScan:
		return "OPERATING_CHANNEL_SCAN"
	case ClientStateReportBCQI:
		return "REPORT_BCQI"
	case ClientStateReportChannelQuality:
		return "REPORT_CHANNEL_QUALITY"
	case ClientStateChannelSwitch:
		return "CHANNEL_SWITCH"
	default:
		return "UNKNOWN"
	}
}

// ClientEvent is an event accepted by the client FSM.
type ClientEvent uint8

const (
	ClientEventTrafficMonitor ClientEvent = iota
	ClientEventTraffic
	ClientEventNoTraffic
	ClientEventError
	ClientEventNoError
	ClientEventPerformedChannelScan
	ClientEventReportedChannelQuality
	ClientEventBadChannelQualityIndex
	ClientEventGoodChannelQualityIndex
	ClientEventSentBadChannelQualityIndex
	ClientEventSwitchNotRequired
	ClientEventSwitchSuccessful
	ClientEventSwitchUnsuccessful

	// ClientEventExtSwitchEvent is the external, global-priority event
	// delivered by the receive loop when a SwitchFrequency or
	// OperatingFrequency command names a frequency other than the
	// client's current operating frequency.
	ClientEventExtSwitchEvent
)

// String returns the transition-table name of the event.
func (e ClientEvent) String() string {
	switch e {
	case ClientEventTrafficMonitor:
		return "TRAFFIC_MONITOR"
	case ClientEventTraffic:
		return "TRAFFIC"
	case ClientEventNoTraffic:
		return "NO_TRAFFIC"
	case ClientEventError:
		return "ERROR"
	case ClientEventNoError:
		return "NO_ERROR"
	case ClientEventPerformedChannelScan:
		return "PERFORMED_CHANNEL_SCAN"
	case ClientEventReportedChannelQuality:
		return "REPORTED_CHANNEL_QUALITY"
	case ClientEventBadChannelQualityIndex:
		return "BAD_CHANNEL_QUALITY_INDEX"
	case ClientEventGoodChannelQualityIndex:
		return "GOOD_CHANNEL_QUALITY_INDEX"
	case ClientEventSentBadChannelQualityIndex:
		return "SENT_BAD_CHANNEL_QUALITY_INDEX"
	case ClientEventSwitchNotRequired:
		return "SWITCH_NOT_REQUIRED"
	case ClientEventSwitchSuccessful:
		return "SWITCH_SUCCESSFUL"
	case ClientEventSwitchUnsuccessful:
		return "SWITCH_UNSUCCESSFUL"
	case ClientEventExtSwitchEvent:
		return "EXT_SWITCH_EVENT"
	default:
		return "UNKNOWN"
	}
}

// ClientAction is a side-effect the driver must execute after a client
// FSM transition.
type ClientAction uint8

const (
	// ClientActionNone means the transition carries no side effect.
	ClientActionNone ClientAction = iota

	// ClientActionTrafficMonitoring samples TX bitrate and emits
	// TRAFFIC or NO_TRAFFIC.
	ClientActionTrafficMonitoring

	// ClientActionErrorMonitoring samples PHY error/timeout/air-time
	// deltas up to max_error_check times and emits ERROR or NO_ERROR.
	ClientActionErrorMonitoring

	// ClientActionOffChannelScan advances the frequency cursor, scores
	// the next candidate, and emits PERFORMED_CHANNEL_SCAN.
	ClientActionOffChannelScan

	// ClientActionScanCurrentFreq scores the current operating
	// frequency and emits BAD_ or GOOD_CHANNEL_QUALITY_INDEX.
	ClientActionScanCurrentFreq

	// ClientActionSendBCQI sends a BadChannelQualityIndex report twice
	// on every socket and emits SENT_BAD_CHANNEL_QUALITY_INDEX.
	ClientActionSendBCQI

	// ClientActionReportQuality sends a ChannelQualityReport for the
	// scanned frequency and emits REPORTED_CHANNEL_QUALITY.
	ClientActionReportQuality

	// ClientActionSwitchFrequency invokes the radio-control switch
	// command and emits one of the three SWITCH_* events.
	ClientActionSwitchFrequency
)

// clientStateEvent is the client FSM transition table key.
type clientStateEvent struct {
	state ClientState
	event ClientEvent
}

// clientTransition describes the target state and action for one
// (state, event) pair.
type clientTransition struct {
	newState ClientState
	action   ClientAction
}

// ClientFSMResult holds the outcome of applying an event to the client FSM.
type ClientFSMResult struct {
	OldState ClientState
	NewState ClientState
	Action   ClientAction
	Changed  bool
}

// clientFSMTable is the complete client FSM transition table. Unlisted (state, event) pairs are silently ignored.
//
//nolint:gochecknoglobals // transition table is intentionally package-level.
var clientFSMTable = map[clientStateEvent]clientTransition{
	{ClientStateIdle, ClientEventTrafficMonitor}: {
		newState: ClientStateMonitorTraffic,
		action:   ClientActionTrafficMonitoring,
	},
	{ClientStateMonitorTraffic, ClientEventTraffic}: {
		newState: ClientStateMonitorError,
		action:   ClientActionErrorMonitoring,
	},
	{ClientStateMonitorTraffic, ClientEventNoTraffic}: {
		newState: ClientStateChannelScan,
		action:   ClientActionOffChannelScan,
	},
	{ClientStateMonitorError, ClientEventError}: {
		newState: ClientStateOperatingChannelScan,
		action:   ClientActionScanCurrentFreq,
	},
	{ClientStateMonitorError, ClientEventNoError}: {
		newState: ClientStateIdle,
		action:   ClientActionNone,
	},
	{ClientStateOperatingChannelScan, ClientEventGoodChannelQualityIndex}: {
		newState: ClientStateMonitorTraffic,
		action:   ClientActionTrafficMonitoring,
	},
	{ClientStateOperatingChannelScan, ClientEventBadChannelQualityIndex}: {
		newState: ClientStateReportBCQI,
		action:   ClientActionSendBCQI,
	},
	{ClientStateReportBCQI, ClientEventSentBadChannelQualityIndex}: {
		newState: ClientStateIdle,
		action:   ClientActionNone,
	},
	{ClientStateChannelScan, ClientEventPerformedChannelScan}: {
		newState: ClientStateReportChannelQuality,
		action:   ClientActionReportQuality,
	},
	{ClientStateReportChannelQuality, ClientEventReportedChannelQuality}: {
		newState: ClientStateIdle,
		action:   ClientActionNone,
	},
	{ClientStateChannelSwitch, ClientEventSwitchNotRequired}: {
		newState: ClientStateIdle,
		action:   ClientActionNone,
	},
	{ClientStateChannelSwitch, ClientEventSwitchSuccessful}: {
		newState: ClientStateIdle,
		action:   ClientActionNone,
	},
	{ClientStateChannelSwitch, ClientEventSwitchUnsuccessful}: {
		newState: ClientStateIdle,
		action:   ClientActionNone,
	},
}

// ApplyClientEvent applies an event to the client FSM and returns the
// result. It is a pure function: the caller executes Action and
// schedules the next event.
//
// EXT_SWITCH_EVENT bypasses the table entirely and is handled first,
// regardless of currentState: it unconditionally enters
// ClientStateChannelSwitch and requests ClientActionSwitchFrequency.
func ApplyClientEvent(currentState ClientState, event ClientEvent) ClientFSMResult {
	if event == ClientEventExtSwitchEvent {
		return ClientFSMResult{
			OldState: currentState,
			NewState: ClientStateChannelSwitch,
			Action:   ClientActionSwitchFrequency,
			Changed:  currentState != ClientStateChannelSwitch,
		}
	}

	key := clientStateEvent{state: currentState, event: event}
	tr, ok := clientFSMTable[key]
	if !ok {
		return ClientFSMResult{
			OldState: currentState,
			NewState: currentState,
			Action:   ClientActionNone,
			Changed:  false,
		}
	}

	return ClientFSMResult{
		OldState: currentState,
		NewState: tr.newState,
		Action:   tr.action,
		Changed:  currentState != tr.newState,
	}
}
