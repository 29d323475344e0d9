package amqp

import (
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/queue"
)

// defaultWindow is the session transfer-window size this engine
// advertises when an application hasn't set one explicitly. Proton
// computes incoming-window from a byte-capacity budget; this engine
// does not buffer unread payload on the caller's behalf (delivery data
// is handed to the application as it arrives, see dispatch.go), so a
// frame-count window is sufficient and is all §4 actually requires.
const defaultWindow = 2147483647

// Session multiplexes links over a connection channel and enforces the
// transfer-count windows that bound how many TRANSFER frames may be
// outstanding in each direction (AMQP 1.0 §2.5.5, §2.7.3). Grounded on
// proton-c's pn_session_t.
type Session struct {
	Endpoint
	conn *Connection

	localChannel    uint16
	hasLocalChannel bool
	remoteChannel   uint16
	hasRemoteChannel bool

	// beginSent/endSent record whether this session's own BEGIN/END have
	// gone out yet, mirroring Connection.openSent/closeSent.
	beginSent bool
	endSent   bool

	// windowFlowPending is set once IncomingWindow has been replenished
	// after hitting zero (§4.3's TRANSFER handler) and cleared once the
	// announcing FLOW has been sent.
	windowFlowPending bool

	OutgoingDeliveries uint32
	IncomingDeliveries uint32

	// Batched outbound disposition state (§4.6): at most one run is
	// buffered per session at a time, extended while a newly-posted
	// disposition is contiguous and state-equal, flushed otherwise.
	dispActive  bool
	dispRole    encoding.Role
	dispSettled bool
	dispState   DeliveryState
	dispFirst   uint32
	dispLast    uint32

	// nextOutgoingID is this session's own transfer-id sequence; it
	// advances by one for every TRANSFER frame this session sends,
	// regardless of which link it belongs to.
	nextOutgoingID uint32

	// nextIncomingID is what this session expects the peer's next
	// TRANSFER's implicit transfer-id to be; seeded from the peer's
	// BEGIN.next-outgoing-id once BEGIN is exchanged.
	nextIncomingID    uint32
	hasNextIncomingID bool

	IncomingWindow       uint32
	OutgoingWindow       uint32
	remoteIncomingWindow uint32
	remoteOutgoingWindow uint32

	HandleMax           uint32
	linksByHandle       map[uint32]*Link
	linksByRemoteHandle map[uint32]*Link
	linksByLocalName    map[string]*Link

	// incomingLinks queues links that were created in response to a
	// peer-initiated ATTACH (no matching local link existed by name),
	// so the application can discover and respond to them by draining
	// this queue after a call to Process/Read. Mirrors the Receiver's
	// own ready queue pattern in link.go.
	incomingLinks *queue.Queue[*Link]

	// outgoing/incoming index deliveries by the delivery-id this
	// session assigned (outgoing) or the peer assigned (incoming), so
	// a DISPOSITION's [first,last] range resolves without a link scan.
	outgoing *deliveryMap
	incoming *deliveryMap

	nextDeliveryID uint32
}

func newSession(conn *Connection) *Session {
	return &Session{
		conn:                conn,
		IncomingWindow:      defaultWindow,
		OutgoingWindow:      defaultWindow,
		HandleMax:           4294967295,
		linksByHandle:       make(map[uint32]*Link),
		linksByRemoteHandle: make(map[uint32]*Link),
		linksByLocalName:    make(map[string]*Link),
		incomingLinks:       queue.New[*Link](4),
		outgoing:            newDeliveryMap(),
		incoming:            newDeliveryMap(),
	}
}

// linksByName resolves a link previously created on this session by its
// link name, the key ATTACH uses to pair a peer's ATTACH with a link the
// application already created locally (AMQP §2.6.3).
func (s *Session) linksByName(name string) (*Link, bool) {
	l, ok := s.linksByLocalName[name]
	return l, ok
}

// IncomingLink dequeues the next link this session auto-created to
// answer a peer-initiated ATTACH that had no matching local link by
// name. Returns nil, false if none are waiting.
func (s *Session) IncomingLink() (*Link, bool) {
	l := s.incomingLinks.Dequeue()
	if l == nil {
		return nil, false
	}
	return *l, true
}

// touch queues s on the connection's modified list if it isn't already
// there, so Process() will consider it for a BEGIN/FLOW/END frame.
func (s *Session) touch() {
	if s.modifiedElem == nil {
		s.modifiedElem = s.conn.modified.PushBack(Modifiable(s))
	}
}

// Open moves the session's local state to active, queuing a BEGIN frame.
func (s *Session) Open() {
	if s.Local != StateUninit {
		return
	}
	s.Local = StateActive
	s.touch()
}

// Close moves the session's local state to closed, queuing an END frame.
// Every link still attached on the session is implicitly closed with it
// (AMQP §2.6.10): proton tears down the whole subtree rather than
// require the caller to detach each link first.
func (s *Session) Close(cond *Condition) {
	if s.Local == StateClosed {
		return
	}
	if cond != nil {
		cond.copyInto(&s.LocalCondition)
	}
	for _, l := range s.linksByHandle {
		l.localClose(nil)
	}
	s.Local = StateClosed
	s.touch()
}

// allocateHandle returns the smallest handle not currently in use on
// this session, matching proton-c's pn_session_allocate_handle's
// smallest-free-handle scan. ok is false if handleMax has no room.
func (s *Session) allocateHandle() (handle uint32, ok bool) {
	for h := uint32(0); h <= s.HandleMax; h++ {
		if _, used := s.linksByHandle[h]; !used {
			return h, true
		}
		if h == s.HandleMax {
			break
		}
	}
	return 0, false
}

// windowOK reports whether this session may accept one more incoming
// TRANSFER frame without violating the window it last advertised.
func (s *Session) windowOK() bool {
	return s.IncomingWindow > 0
}
