package amqp

import (
	"time"

	"github.com/yumeiwang/amqp-engine/internal/list"
)

// defaultMaxFrameSize is the max-frame-size this engine advertises in
// its OPEN unless the application overrides it before Open. It is only
// advertised: inbound frames are not checked against it, and outbound
// TRANSFERs are sized from the peer's advertised max-frame-size.
const defaultMaxFrameSize = 65536

// Connection is the top-level endpoint: it owns the sessions multiplexed
// over it and the transport-facing state (local/remote OPEN fields,
// idle-timeout bookkeeping) that has no per-session scope. Grounded on
// proton-c's pn_connection_t plus pn_transport_t's connection-level
// fields that this single-engine design folds together (see
// transport.go for why transport and connection are one object here).
type Connection struct {
	Endpoint

	ContainerID string
	Hostname    string

	MaxFrameSize uint32
	ChannelMax   uint16
	IdleTimeout  time.Duration

	RemoteContainerID string
	RemoteHostname    string
	RemoteMaxFrameSize uint32
	RemoteChannelMax   uint16
	RemoteIdleTimeout  time.Duration

	sessionsByChannel       map[uint16]*Session
	sessionsByRemoteChannel map[uint16]*Session

	// modified holds sessions and links with local state (C1) that
	// hasn't been reflected in an emitted frame yet.
	modified list.List[Modifiable]

	// work holds deliveries with pending transport work: a new local
	// state to report via DISPOSITION, or (indirectly, via their
	// link's pending queue) payload still to send via TRANSFER.
	work list.List[*Delivery]

	transport *Transport

	// openSent/closeSent record whether this connection's own OPEN/CLOSE
	// have gone out yet, so Process (process.go) emits each exactly once.
	openSent  bool
	closeSent bool
}

// NewConnection creates a connection in the UNINIT/UNINIT state. Set
// ContainerID (and optionally Hostname, MaxFrameSize, ChannelMax)
// before calling Open.
func NewConnection() *Connection {
	return &Connection{
		MaxFrameSize:            defaultMaxFrameSize,
		ChannelMax:              65535,
		sessionsByChannel:       make(map[uint16]*Session),
		sessionsByRemoteChannel: make(map[uint16]*Session),
	}
}

// Open moves the connection's local state to active, queuing an OPEN
// frame for the next Process() call.
func (c *Connection) Open() {
	if c.Local != StateUninit {
		return
	}
	c.Local = StateActive
}

// Close moves the connection's local state to closed, queuing a CLOSE
// frame. Every session (and transitively every link) is implicitly
// closed with it, matching proton-c's connection-teardown cascade.
func (c *Connection) Close(cond *Condition) {
	if c.Local == StateClosed {
		return
	}
	if cond != nil {
		cond.copyInto(&c.LocalCondition)
	}
	for _, s := range c.sessionsByChannel {
		s.Close(nil)
	}
	c.Local = StateClosed
}

// NewSession creates a session, allocating the smallest unused local
// channel number (proton-c's pn_session_init / channel allocation).
func (c *Connection) NewSession() *Session {
	ch := c.allocateChannel()
	s := newSession(c)
	s.localChannel = ch
	s.hasLocalChannel = true
	c.sessionsByChannel[ch] = s
	return s
}

// allocateChannel returns the smallest channel number not currently
// bound to a local session.
func (c *Connection) allocateChannel() uint16 {
	for ch := uint16(0); ; ch++ {
		if _, used := c.sessionsByChannel[ch]; !used {
			return ch
		}
		if ch == c.ChannelMax {
			return ch
		}
	}
}

// addWork queues d on the connection's work list if it isn't already
// there.
func (c *Connection) addWork(d *Delivery) {
	if d.workElem == nil {
		d.workElem = c.work.PushBack(d)
	}
}

// removeSession drops a session's channel bindings once END has been
// exchanged in both directions.
func (c *Connection) removeSession(s *Session) {
	if s.hasLocalChannel {
		delete(c.sessionsByChannel, s.localChannel)
	}
	delete(c.sessionsByRemoteChannel, s.remoteChannel)
}
