package rmacs

// This file implements the orchestrator-side frequency-selection FSM
//, in the same pure-transition-table style as
// clientfsm.go and the BFD session FSM it is both grounded on.

// ServerState is a state of the orchestrator FSM.
type ServerState uint8

const (
	ServerStateIdle ServerState = iota
	ServerStatePartialFrequencyHopping
	ServerStateSendChannelSwitchRequest
	ServerStateUpdateFreqHoppingSequence
	ServerStateBroadcastOperatingFreq
	ServerStateResetClientMessages
)

// String returns the transition-table name of the state.
func (s ServerState) String() string {
	switch s {
	case ServerStateIdle:
		return "IDLE"
	case ServerStatePartialFrequencyHopping:
		return "PARTIAL_FREQUENCY_HOPPING"
	case ServerStateSendChannelSwitchRequest:
		return "SEND_CHANNEL_SWITCH_REQUEST"
	case ServerStateUpdateFreqHoppingSequence:
		return "UPDATE_FREQ_HOPPING_SEQUENCE"
	case ServerStateBroadcastOperatingFreq:
		return "BROADCAST_OPERATING_FREQ"
	case ServerStateResetClientMessages:
		return "RESET_CLIENT_MESSAGES"
	default:
		return "UNKNOWN"
	}
}

// ServerEvent is an event accepted by the server FSM.
type ServerEvent uint8

const (
	ServerEventBadChannelQualityIndex ServerEvent = iota
	ServerEventChannelQualityReport
	ServerEventChannelSwitchRequest
	ServerEventChannelSwitchRequestSent
	ServerEventPeriodicOperatingFreqBroadcast
	ServerEventBroadcastComplete
	ServerEventChannelQualityUpdateComplete
	ServerEventFrequencyHoppingComplete
)

// String returns the transition-table name of the event.
func (e ServerEvent) String() string {
	switch e {
	case ServerEventBadChannelQualityIndex:
		return "BAD_CHANNEL_QUALITY_INDEX"
	case ServerEventChannelQualityReport:
		return "CHANNEL_QUALITY_REPORT"
	case ServerEventChannelSwitchRequest:
		return "CHANNEL_SWITCH_REQUEST"
	case ServerEventChannelSwitchRequestSent:
		return "CHANNEL_SWITCH_REQUEST_SENT"
	case ServerEventPeriodicOperatingFreqBroadcast:
		return "PERIODIC_OPERATING_FREQ_BROADCAST"
	case ServerEventBroadcastComplete:
		return "BROADCAST_COMPLETE"
	case ServerEventChannelQualityUpdateComplete:
		return "CHANNEL_QUALITY_UPDATE_COMPLETE"
	case ServerEventFrequencyHoppingComplete:
		return "FREQUENCY_HOPPING_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// ServerAction is a side-effect the driver must execute after a server
// FSM transition.
type ServerAction uint8

const (
	// ServerActionNone means the transition carries no side effect.
	ServerActionNone ServerAction = iota

	// ServerActionPartialFreqHopping runs one PFH loop iteration.
	ServerActionPartialFreqHopping

	// ServerActionIngestReport ingests a buffered channel-quality report
	// into the ledger. (An accepted BCQI is ingested by the driver before
	// it enters PFH, not by this action.)
	ServerActionIngestReport

	// ServerActionBroadcastOpFreq broadcasts the current operating
	// frequency on every socket.
	ServerActionBroadcastOpFreq

	// ServerActionSendSwitchRequest sends a SwitchFrequency command for
	// the current PFH candidate.
	ServerActionSendSwitchRequest
)

// serverStateEvent is the server FSM transition table key.
type serverStateEvent struct {
	state ServerState
	event ServerEvent
}

// serverTransition describes the target state and action for one
// (state, event) pair.
type serverTransition struct {
	newState ServerState
	action   ServerAction
}

// serverFSMTable is the complete server FSM transition table. Unlisted (state, event) pairs are silently ignored.
//
//nolint:gochecknoglobals // transition table is intentionally package-level.
var serverFSMTable = map[serverStateEvent]serverTransition{
	{ServerStateIdle, ServerEventBadChannelQualityIndex}: {
		newState: ServerStatePartialFrequencyHopping,
		action:   ServerActionPartialFreqHopping,
	},
	{ServerStateIdle, ServerEventChannelQualityReport}: {
		newState: ServerStateUpdateFreqHoppingSequence,
		action:   ServerActionIngestReport,
	},
	{ServerStateIdle, ServerEventPeriodicOperatingFreqBroadcast}: {
		newState: ServerStateBroadcastOperatingFreq,
		action:   ServerActionBroadcastOpFreq,
	},
	{ServerStateUpdateFreqHoppingSequence, ServerEventChannelQualityUpdateComplete}: {
		newState: ServerStateIdle,
		action:   ServerActionNone,
	},
	{ServerStateBroadcastOperatingFreq, ServerEventBroadcastComplete}: {
		newState: ServerStateIdle,
		action:   ServerActionNone,
	},
	{ServerStatePartialFrequencyHopping, ServerEventChannelSwitchRequest}: {
		newState: ServerStateSendChannelSwitchRequest,
		action:   ServerActionSendSwitchRequest,
	},
	{ServerStateSendChannelSwitchRequest, ServerEventChannelSwitchRequestSent}: {
		newState: ServerStatePartialFrequencyHopping,
		action:   ServerActionPartialFreqHopping,
	},
	{ServerStatePartialFrequencyHopping, ServerEventFrequencyHoppingComplete}: {
		newState: ServerStateIdle,
		action:   ServerActionNone,
	},
}

// ServerFSMResult holds the outcome of applying an event to the server FSM.
type ServerFSMResult struct {
	OldState ServerState
	NewState ServerState
	Action   ServerAction
	Changed  bool
}

// ApplyServerEvent applies an event to the server FSM and returns the
// result. It is a pure function: the caller executes Action and
// schedules the next event.
func ApplyServerEvent(currentState ServerState, event ServerEvent) ServerFSMResult {
	key := serverStateEvent{state: currentState, event: event}
	tr, ok := serverFSMTable[key]
	if !ok {
		return ServerFSMResult{
			OldState: currentState,
			NewState: currentState,
			Action:   ServerActionNone,
			Changed:  false,
		}
	}

	return ServerFSMResult{
		OldState: currentState,
		NewState: tr.newState,
		Action:   tr.action,
		Changed:  currentState != tr.newState,
	}
}
