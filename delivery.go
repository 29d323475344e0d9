package amqp

import (
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/list"
)

// DeliveryState is the engine's own outcome/state vocabulary (AMQP 1.0
// §3.4), kept distinct from frames.DeliveryState so applications never
// need to import the internal codec package to read or set a
// delivery's state.
type DeliveryState interface {
	isDeliveryState()
}

// Received marks a partial TRANSFER's resume point.
type Received struct {
	SectionNumber uint32
	SectionOffset uint64
}

// Accepted is the terminal "accepted" outcome.
type Accepted struct{}

// Rejected is the terminal "rejected" outcome.
type Rejected struct {
	Error *Condition
}

// Released is the terminal "released" outcome.
type Released struct{}

// Modified is the terminal "modified" outcome.
type Modified struct {
	DeliveryFailed     bool
	UndeliverableHere  bool
	MessageAnnotations map[string]interface{}
}

func (*Received) isDeliveryState() {}
func (*Accepted) isDeliveryState() {}
func (*Rejected) isDeliveryState() {}
func (*Released) isDeliveryState() {}
func (*Modified) isDeliveryState() {}

// Delivery is one message attempt on a link: the unit deliveries'
// settlement, state and work-list membership are tracked against.
// Grounded on proton-c's pn_delivery_t.
type Delivery struct {
	link *Link
	Tag  []byte

	id    uint32
	hasID bool

	LocalState  DeliveryState
	RemoteState DeliveryState

	locallySettled  bool
	remotelySettled bool

	// Buf accumulates payload bytes across partial (More=true) TRANSFER
	// frames on the receiving side; Complete reports whether the final
	// chunk has arrived.
	Buf      []byte
	Complete bool
	Aborted  bool

	// sendOffset is how much of Buf the sender side has already framed
	// onto the wire; transmitted is true once the final (more=false)
	// TRANSFER carrying the rest of Buf has been sent.
	sendOffset  int
	transmitted bool

	workElem *list.Element[*Delivery]
}

// Link returns the link this delivery belongs to.
func (d *Delivery) Link() *Link { return d.link }

// Settled reports whether this side has settled the delivery.
func (d *Delivery) Settled() bool { return d.locallySettled }

// RemoteSettled reports whether the peer has settled the delivery.
func (d *Delivery) RemoteSettled() bool { return d.remotelySettled }

// fullySettled is true once this side has let go of the delivery and,
// for a sender, the delivery has actually gone out on the wire — a
// receiver needs nothing more than its own settlement (§4.5: full-settle
// on local.settled alone), while a sender also requires state.sent
// (§4.5: local.settled && state.sent) since full-settle must never race
// ahead of the TRANSFER that makes the delivery real to the peer.
// Neither side waits on the other's settlement: proton-c's own
// full-settle (engine.c:2569/2586) doesn't either.
func (d *Delivery) fullySettled() bool {
	if d.link.Role == encoding.RoleReceiver {
		return d.locallySettled
	}
	return d.locallySettled && d.transmitted
}

// Update records a new local delivery state and queues the delivery on
// the connection's work list so Process() will emit a DISPOSITION.
// Grounded on pn_delivery_update + pn_work_update.
func (d *Delivery) Update(state DeliveryState) {
	d.LocalState = state
	d.link.session.conn.addWork(d)
}

// Settle marks the delivery settled on this side. This alone (plus, for
// a sender, the delivery having been transmitted) is what lets the next
// Process() drop it from the session's delivery map; the peer's
// settlement is not waited for (see fullySettled). Grounded on
// pn_delivery_settle.
func (d *Delivery) Settle() {
	if d.locallySettled {
		return
	}
	d.locallySettled = true
	d.link.session.conn.addWork(d)
}

// Accept is shorthand for Update(&Accepted{}) followed by Settle,
// the common case for a receiver that consumed a message successfully.
func (d *Delivery) Accept() {
	d.Update(&Accepted{})
	d.Settle()
}

// Reject is shorthand for Update(&Rejected{...}) followed by Settle.
func (d *Delivery) Reject(cond *Condition) {
	d.Update(&Rejected{Error: cond})
	d.Settle()
}

// Release is shorthand for Update(&Released{}) followed by Settle.
func (d *Delivery) Release() {
	d.Update(&Released{})
	d.Settle()
}
