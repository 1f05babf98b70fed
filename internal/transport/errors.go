package transport

import "errors"

// ErrNoSockets is returned by New when every configured interface failed
// to produce a usable multicast socket.
var ErrNoSockets = errors.New("transport: no multicast sockets could be created")

// ErrUnknownInterface is returned by Send when asked to transmit on an
// interface that has no open socket, either because it was never
// configured or because socket creation failed for it at startup.
var ErrUnknownInterface = errors.New("transport: unknown or unavailable interface")

// ErrClosed is returned by Send after Close has been called; Broadcast
// logs it per interface instead of returning it.
var ErrClosed = errors.New("transport: closed")
