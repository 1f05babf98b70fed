// Package rmacs implements the Resilient Mesh Automatic Channel Selection
// control plane: the client-side interference-detection FSM, the
// orchestrator-side frequency-selection FSM, the wire message codec, the
// duplicate-suppressing message-ID set, and the channel-quality ledger that
// couples them.
//
// The two FSMs (Client, Server) are implemented the way RFC 5880's state
// machine is implemented in a BFD daemon: a pure transition-table function
// with no side effects, paired with a stateful driver that executes the
// action returned by a transition and feeds the next event back in. Unlike
// a from-scratch reimplementation, side effects here (radio control,
// scanning, transport) are injected as interfaces so the FSM driver remains
// deterministically testable.
package rmacs
