package amqp

import (
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/queue"
)

// linkQueueSegment is the segment size used for each link's pending
// (sender) and ready (receiver) delivery queues; links rarely have more
// than a handful of deliveries in flight at once; internal/queue grows
// by allocating another same-sized segment rather than reallocating.
const linkQueueSegment = 16

// Link is the handle-scoped half of an attached sender or receiver.
// Sender and Receiver wrap *Link to expose direction-specific behavior;
// lifecycle, credit and settlement bookkeeping live here since both
// directions share it. Grounded on proton-c's pn_link_t.
type Link struct {
	Endpoint
	session *Session

	Name string
	Role encoding.Role

	localHandle    uint32
	hasLocalHandle bool
	remoteHandle   uint32

	Source *Terminus
	Target *Terminus

	SenderSettleMode   *encoding.SenderSettleMode
	ReceiverSettleMode *encoding.ReceiverSettleMode

	// deliveryCount is this link's delivery-count as defined by AMQP
	// §2.6.7: the sender's count of deliveries attempted, mirrored by
	// the receiver from FLOW frames.
	deliveryCount uint32
	LinkCredit    uint32
	Available     uint32
	Drain         bool

	unsettled map[string]*Delivery

	pending *queue.Queue[*Delivery] // sender: deliveries not yet transmitted
	sending *Delivery               // sender: delivery currently being chunked across TRANSFER frames
	ready   *queue.Queue[*Delivery] // receiver: completed deliveries awaiting Receive()
	current *Delivery               // receiver: delivery being assembled across partial transfers

	nextDeliveryTag uint64

	// attachSent/detachSent record whether this link's own ATTACH/DETACH
	// have gone out yet, mirroring Connection.openSent/closeSent.
	attachSent  bool
	detachSent  bool
	pendingFlow bool // a credit/drain change needs a FLOW (receiver side)
}

func newLink(s *Session, name string, role encoding.Role) *Link {
	l := &Link{
		session:   s,
		Name:      name,
		Role:      role,
		unsettled: make(map[string]*Delivery),
		pending:   queue.New[*Delivery](linkQueueSegment),
		ready:     queue.New[*Delivery](linkQueueSegment),
	}
	s.linksByLocalName[name] = l
	return l
}

// Handle returns the local handle assigned to this link, valid once
// Attach has been called.
func (l *Link) Handle() uint32 { return l.localHandle }

// Open moves a peer-initiated link's local state to active, queuing the
// replying ATTACH frame. Links created locally via NewSender/NewReceiver
// are already active by the time they're returned, so Open only matters
// for links surfaced through Session.IncomingLink.
func (l *Link) Open() {
	if l.Local != StateUninit {
		return
	}
	if !l.hasLocalHandle {
		h, ok := l.session.allocateHandle()
		if !ok {
			return
		}
		l.localHandle = h
		l.hasLocalHandle = true
		l.session.linksByHandle[h] = l
	}
	l.Local = StateActive
	l.touch()
}

// touch queues l on the connection's modified list.
func (l *Link) touch() {
	if l.modifiedElem == nil {
		l.modifiedElem = l.session.conn.modified.PushBack(Modifiable(l))
	}
}

// attach allocates a handle and moves the link's local state to active,
// queuing an ATTACH frame. Shared by Sender/Receiver constructors.
func (l *Link) attach() error {
	h, ok := l.session.allocateHandle()
	if !ok {
		return newProtocolError(ErrCondResourceLimitExceeded, "link %q: no free handles", l.Name)
	}
	l.localHandle = h
	l.hasLocalHandle = true
	l.session.linksByHandle[h] = l
	l.Local = StateActive
	l.touch()
	return nil
}

// localClose moves the link's local state to closed, queuing a DETACH
// frame (always sent with closed=true).
func (l *Link) localClose(cond *Condition) {
	if l.Local == StateClosed {
		return
	}
	if cond != nil {
		cond.copyInto(&l.LocalCondition)
	}
	l.Local = StateClosed
	l.touch()
}

// Detach closes the link exactly as Close(nil) does: the DETACH frame
// carries closed=true. A closed=false (temporary) detach is not sent.
func (l *Link) Detach() { l.localClose(nil) }

// Close detaches the link permanently.
func (l *Link) Close(cond *Condition) { l.localClose(cond) }

// Flow grants credit (receiver side) or requests drain, queuing a FLOW
// frame that carries both this link's and the session's window fields.
func (l *Link) Flow(credit uint32, drain bool) {
	l.LinkCredit = credit
	l.Drain = drain
	l.pendingFlow = true
	l.touch()
}

// hasOutboundBacklog reports whether this sender link still has payload
// queued or in flight that teardown must not silently discard (§4.4).
func (l *Link) hasOutboundBacklog() bool {
	return l.pending.Len() > 0 || l.sending != nil
}

// removeFromSession drops the link's handle and remote-handle bindings
// once DETACH has been exchanged in both directions, freeing the handle
// for reuse by a later ATTACH.
func (l *Link) removeFromSession() {
	if l.hasLocalHandle {
		delete(l.session.linksByHandle, l.localHandle)
		l.hasLocalHandle = false
	}
	delete(l.session.linksByRemoteHandle, l.remoteHandle)
}
