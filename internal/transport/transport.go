package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/tiiuae/rmacs/internal/config"
	rmacsmetrics "github.com/tiiuae/rmacs/internal/metrics"
	"github.com/tiiuae/rmacs/internal/rmacs"
)

// Transport owns one multicast socket per control-channel interface
//. Interfaces for which socket creation failed are
// skipped; the transport remains usable as long as at least one
// interface succeeded.
type Transport struct {
	logger  *slog.Logger
	metrics *rmacsmetrics.Collector

	sockets map[string]*socket

	frames chan rmacs.Frame
	wg     sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// New opens a multicast socket for every named interface that has a
// corresponding entry in cfg, starts a receive goroutine per socket, and
// returns the running Transport. metrics may be nil.
func New(
	ctx context.Context,
	interfaces []string,
	cfg map[string]config.SocketConfig,
	logger *slog.Logger,
	metrics *rmacsmetrics.Collector,
) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Transport{
		logger:  logger.With(slog.String("component", "transport")),
		metrics: metrics,
		sockets: make(map[string]*socket),
		frames:  make(chan rmacs.Frame, 256),
		closed:  make(chan struct{}),
	}

	for _, ifName := range interfaces {
		sockCfg, ok := cfg[ifName]
		if !ok {
			t.logger.Warn("no multicast config for interface, skipping", slog.String("interface", ifName))
			continue
		}

		sock, err := newSocket(ifName, sockCfg)
		if err != nil {
			t.logger.Warn("failed to create multicast socket, skipping interface",
				slog.String("interface", ifName), slog.Any("error", err))
			continue
		}

		t.sockets[ifName] = sock
	}

	if len(t.sockets) == 0 {
		return nil, ErrNoSockets
	}

	for ifName, sock := range t.sockets {
		t.wg.Add(1)
		go t.recvLoop(ctx, ifName, sock)
	}

	return t, nil
}

// recvLoop reads frames from one interface's socket until ctx is
// cancelled or the transport is closed. Malformed frames are logged and
// dropped without stopping the loop.
func (t *Transport) recvLoop(ctx context.Context, ifName string, sock *socket) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		default:
		}

		buf, err := sock.recv()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			t.logger.Warn("receive error", slog.String("interface", ifName), slog.Any("error", err))
			continue
		}

		msg, err := rmacs.Decode(buf)
		if err != nil {
			t.logger.Warn("dropping malformed frame", slog.String("interface", ifName), slog.Any("error", err))
			if t.metrics != nil {
				t.metrics.IncMessagesDropped(ifName)
			}
			continue
		}

		select {
		case t.frames <- rmacs.Frame{Message: msg, Interface: ifName}:
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		}
	}
}

// Recv returns the channel of inbound frames, fed from every open
// interface's receive loop.
func (t *Transport) Recv() <-chan rmacs.Frame {
	return t.frames
}

// Send transmits msg once on the named interface's socket.
func (t *Transport) Send(ifName string, msg rmacs.ControlMessage) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	sock, ok := t.sockets[ifName]
	if !ok {
		return fmt.Errorf("send on %s: %w", ifName, ErrUnknownInterface)
	}

	buf, err := rmacs.Encode(msg)
	if err != nil {
		return fmt.Errorf("send on %s: %w", ifName, err)
	}

	return sock.send(buf)
}

// Broadcast transmits msg on every open interface's socket, repeat times
// each. A producer may send a message up to twice per socket (used for
// BCQI alerts); all other messages are sent once per socket. Per-socket
// send failures are logged and do not abort the broadcast to the
// remaining interfaces.
func (t *Transport) Broadcast(msg rmacs.ControlMessage, repeat int) {
	if repeat < 1 {
		repeat = 1
	}

	for ifName := range t.sockets {
		for i := 0; i < repeat; i++ {
			if err := t.Send(ifName, msg); err != nil {
				t.logger.Warn("broadcast send failed", slog.String("interface", ifName), slog.Any("error", err))
			}
		}
	}
}

// Interfaces returns the names of interfaces with a live socket.
func (t *Transport) Interfaces() []string {
	names := make([]string, 0, len(t.sockets))
	for ifName := range t.sockets {
		names = append(names, ifName)
	}
	return names
}

// Close stops all receive loops and closes every socket.
func (t *Transport) Close() error {
	var closeErr error

	t.closeOnce.Do(func() {
		close(t.closed)

		for ifName, sock := range t.sockets {
			if err := sock.close(); err != nil {
				t.logger.Warn("error closing socket", slog.String("interface", ifName), slog.Any("error", err))
				closeErr = err
			}
		}

		t.wg.Wait()
		close(t.frames)
	})

	return closeErr
}
