// Package transport defines the socket abstraction the wire protocol
// engine runs over: a UDP datagram conn and a non-blocking TCP contract
// with callback-driven readiness notification. This package defines
// contracts only; a production binary supplies concrete UDP/TCP
// implementations (e.g. over net.UDPConn and net.TCPConn) that satisfy
// them.
package transport

import "net/netip"

// PacketConn is the UDP transport contract: fire-and-forget datagram
// send, and a callback-driven receive loop so the caller controls its
// own read scheduling instead of blocking a dedicated goroutine per
// conn.
type PacketConn interface {
	// SendUDP sends b to addr. It never blocks past the OS socket
	// buffer; a full buffer is a dropped packet, matching the wire
	// protocol's tolerance for loss.
	SendUDP(b []byte, addr netip.AddrPort) error

	// SetOnData registers the callback invoked for every received
	// datagram. It must be set before the conn starts delivering
	// packets and must not be changed concurrently with delivery.
	SetOnData(f func(b []byte, from netip.AddrPort))

	// LocalAddr returns the address the conn is bound to.
	LocalAddr() netip.AddrPort

	// Close releases the underlying socket.
	Close() error
}

// Conn is one non-blocking TCP connection, used for relay fallback
// when direct UDP paths are unavailable.
type Conn interface {
	// Send queues b for writing. It returns immediately; OnWritable
	// fires once buffered data has actually gone out and more can be
	// queued without unbounded growth.
	Send(b []byte) error

	// Close closes the connection, eventually firing OnClose.
	Close() error

	// SetOnData registers the callback invoked with each chunk of bytes
	// read from the connection.
	SetOnData(f func(b []byte))

	// SetOnWritable registers the OnWritable callback.
	SetOnWritable(f func())

	// SetOnClose registers the OnClose callback.
	SetOnClose(f func())

	RemoteAddr() netip.AddrPort
}

// Listener accepts inbound TCP connections and dispatches lifecycle
// events through callbacks rather than a blocking Accept loop, so a
// single-threaded event loop can multiplex many listeners and
// connections behind one poll-equivalent.
type Listener interface {
	// SetOnAccept registers the callback invoked for each newly
	// accepted connection.
	SetOnAccept(f func(c Conn))

	Close() error
}

// Dialer opens outbound TCP connections without blocking the caller;
// the result (success or failure) arrives via onConnect.
type Dialer interface {
	// Connect begins connecting to addr. onConnect is called exactly
	// once, with a non-nil error on failure or a non-nil Conn on
	// success.
	Connect(addr netip.AddrPort, onConnect func(c Conn, err error))
}

// EventLoop is the poll-equivalent multiplexer: it waits for any
// registered conn to become readable, writable, or erroring, or for
// Wake to be called from another goroutine, and dispatches the
// corresponding callbacks (OnData, OnWritable, OnClose) registered on
// those conns. A concrete implementation typically wraps epoll/kqueue
// or a runtime-scheduled goroutine-per-conn model; this package
// specifies only the contract two components need to agree on.
type EventLoop interface {
	// Run blocks, dispatching events, until Stop is called.
	Run() error

	// Wake interrupts a blocked Run from another goroutine, e.g. after
	// registering a new conn or listener. Safe to call from any
	// goroutine, including from within a callback.
	Wake()

	// Stop causes a blocked Run to return.
	Stop()
}
