// Package transport implements the RMACS multicast wire transport: one
// IPv6 UDP multicast socket per control-channel interface, each bound to
// an interface-specific (group, port) pair.
//
// Socket creation and group membership use golang.org/x/net/ipv6 and
// golang.org/x/sys/unix, with low-level, explicit socket options:
// SO_REUSEADDR set directly on the raw file descriptor, the outgoing
// multicast interface selected by kernel interface index, and per-socket
// failures tolerated rather than aborting the whole transport.
package transport
