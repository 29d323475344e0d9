package amqp

import (
	"context"
	"log/slog"

	"github.com/yumeiwang/amqp-engine/internal/debug"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/frames"
	"github.com/yumeiwang/amqp-engine/internal/list"
)

// transferOverhead is a conservative estimate of a TRANSFER performative's
// encoded size (handle, delivery-id, tag, flags) plus the frame header,
// reserved out of the peer's advertised max-frame-size before payload is
// chunked across frames (§4.5, §6).
const transferOverhead = 64

// Process drains every pending local change — new OPEN/BEGIN/ATTACH/FLOW
// state, queued sends, and settlements — into outbound frames on the
// bound Transport's output buffer, in the fixed phase order of §4.4.
// It must be called by the embedder after any application call that
// might have produced work (Open/Close/Flow/Send/Settle/...) and after
// Transport.Read, before Pending/Pop are consulted. Grounded on
// proton-c's pn_process + pni_process_conn_setup..pni_process_tpwork.
func (c *Connection) Process() error {
	if c.transport == nil {
		return nil
	}
	c.connSetup()
	c.ssnSetup()
	c.linkSetup()
	c.flowPhase()
	c.tpworkPass()
	c.tpworkPass()
	c.flushAllDisp()
	c.flowSenderPhase()
	c.linkTeardown()
	c.ssnTeardown()
	c.connTeardown()
	c.sweepModified()
	return c.transport.Err
}

// connSetup is phase 1: emit OPEN once the connection has been opened
// locally.
func (c *Connection) connSetup() {
	if c.Local == StateUninit || c.openSent {
		return
	}
	c.transport.writeFrame(frames.Frame{Channel: 0, Body: &frames.Open{
		ContainerID:  c.ContainerID,
		Hostname:     c.Hostname,
		MaxFrameSize: c.MaxFrameSize,
		ChannelMax:   c.ChannelMax,
		IdleTimeout:  c.IdleTimeout,
	}})
	c.openSent = true
	debug.Log(context.Background(), slog.LevelDebug, "sent OPEN", slog.String("container-id", c.ContainerID))
}

// ssnSetup is phase 2: emit BEGIN for every session that has been
// opened locally but hasn't announced itself yet. Channel allocation
// itself already happened eagerly in Connection.NewSession — a
// documented simplification from proton-c's defer-to-process_setup
// timing (see DESIGN.md).
func (c *Connection) ssnSetup() {
	if !c.openSent {
		return
	}
	c.modified.Each(func(e *list.Element[Modifiable]) {
		s, ok := e.Value.(*Session)
		if !ok || s.Local == StateUninit || !s.hasLocalChannel || s.beginSent {
			return
		}
		var remoteChannel *uint16
		if s.hasRemoteChannel {
			rc := s.remoteChannel
			remoteChannel = &rc
		}
		c.transport.writeFrame(frames.Frame{Channel: s.localChannel, Body: &frames.Begin{
			RemoteChannel:  remoteChannel,
			NextOutgoingID: s.nextOutgoingID,
			IncomingWindow: s.IncomingWindow,
			OutgoingWindow: s.OutgoingWindow,
			HandleMax:      s.HandleMax,
		}})
		s.beginSent = true
	})
}

// linkSetup is phase 3: emit ATTACH for every link whose session has
// already announced itself.
func (c *Connection) linkSetup() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		l, ok := e.Value.(*Link)
		if !ok || l.Local == StateUninit || !l.hasLocalHandle || l.attachSent || !l.session.beginSent {
			return
		}
		var idc *uint32
		if l.Role == encoding.RoleSender {
			v := l.deliveryCount
			idc = &v
		}
		c.transport.writeFrame(frames.Frame{Channel: l.session.localChannel, Body: &frames.Attach{
			Name:                 l.Name,
			Handle:               l.localHandle,
			Role:                 l.Role,
			SenderSettleMode:     l.SenderSettleMode,
			ReceiverSettleMode:   l.ReceiverSettleMode,
			Source:               l.Source.toSourceFrame(),
			Target:               l.Target.toTargetFrame(),
			InitialDeliveryCount: idc,
		}})
		l.attachSent = true
	})
}

// flowPhase is phase 4: emit FLOW for receiver links with a pending
// credit/drain change, and for sessions whose incoming window was
// silently replenished by an inbound TRANSFER (§4.3).
func (c *Connection) flowPhase() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		switch v := e.Value.(type) {
		case *Session:
			if v.windowFlowPending && v.beginSent {
				c.writeSessionFlow(v, nil)
				v.windowFlowPending = false
			}
		case *Link:
			if v.Role == encoding.RoleReceiver && v.attachSent && v.pendingFlow {
				c.writeLinkFlow(v)
				v.pendingFlow = false
			}
		}
	})
}

// flowSenderPhase is phase 7: once a draining sender has nothing left
// queued, advance delivery-count to consume the unused credit and
// report link-credit 0 (§8 scenario S6).
func (c *Connection) flowSenderPhase() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		l, ok := e.Value.(*Link)
		if !ok || l.Role != encoding.RoleSender || !l.attachSent || !l.Drain {
			return
		}
		if l.hasOutboundBacklog() {
			return
		}
		l.deliveryCount += l.LinkCredit
		l.LinkCredit = 0
		l.Drain = false
		c.writeLinkFlow(l)
	})
}

func (c *Connection) writeSessionFlow(s *Session, l *Link) {
	var handle, deliveryCount, linkCredit *uint32
	if l != nil {
		h := l.localHandle
		handle = &h
		dc := l.deliveryCount
		deliveryCount = &dc
		lc := l.LinkCredit
		linkCredit = &lc
	}
	nid := s.nextIncomingID
	c.transport.writeFrame(frames.Frame{Channel: s.localChannel, Body: &frames.Flow{
		NextIncomingID: &nid,
		IncomingWindow: s.IncomingWindow,
		NextOutgoingID: s.nextOutgoingID,
		OutgoingWindow: s.OutgoingWindow,
		Handle:         handle,
		DeliveryCount:  deliveryCount,
		LinkCredit:     linkCredit,
	}})
}

func (c *Connection) writeLinkFlow(l *Link) {
	s := l.session
	handle := l.localHandle
	deliveryCount := l.deliveryCount
	linkCredit := l.LinkCredit
	nid := s.nextIncomingID
	c.transport.writeFrame(frames.Frame{Channel: s.localChannel, Body: &frames.Flow{
		NextIncomingID: &nid,
		IncomingWindow: s.IncomingWindow,
		NextOutgoingID: s.nextOutgoingID,
		OutgoingWindow: s.OutgoingWindow,
		Handle:         &handle,
		DeliveryCount:  &deliveryCount,
		LinkCredit:     &linkCredit,
		Drain:          l.Drain,
	}})
}

// tpworkPass is phase 5, run twice per Process call since settlement
// discovered on the first pass can free window/credit that lets more
// work go out on the second (§4.4). It drains each sender link's
// pending queue directly (so freshly Sent deliveries go out even
// before the application ever calls Update/Settle on them), then walks
// the connection's work list for deliveries that need a DISPOSITION or
// have become eligible for full settlement.
func (c *Connection) tpworkPass() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		l, ok := e.Value.(*Link)
		if !ok || l.Role != encoding.RoleSender || !l.attachSent {
			return
		}
		tpworkSender(l)
	})
	c.work.Each(func(e *list.Element[*Delivery]) {
		tpworkDelivery(e.Value)
	})
}

// tpworkSender chunks queued deliveries on a sender link into TRANSFER
// frames as session window and link credit allow, assigning each a
// delivery-id the moment it starts transmitting. Grounded on proton-c's
// pni_process_tpwork_sender's per-link send loop.
func tpworkSender(l *Link) {
	s := l.session
	if !s.hasLocalChannel || !s.beginSent {
		return
	}
	maxFrame := s.conn.RemoteMaxFrameSize
	if maxFrame == 0 {
		maxFrame = 4294967295
	}
	chunk := int(maxFrame) - transferOverhead
	if chunk < 1 {
		chunk = 1
	}
	for s.remoteIncomingWindow > 0 {
		if l.sending == nil {
			if l.LinkCredit == 0 {
				return
			}
			next := l.pending.Peek()
			if next == nil {
				return
			}
			l.pending.Dequeue()
			d := *next
			d.id = s.nextDeliveryID
			s.nextDeliveryID++
			d.hasID = true
			s.outgoing.put(d.id, d)
			l.sending = d
		}
		d := l.sending
		rest := d.Buf[d.sendOffset:]
		n := len(rest)
		more := n > chunk
		if more {
			n = chunk
		}
		var deliveryID *uint32
		var tag []byte
		var settled *bool
		if d.sendOffset == 0 {
			id := d.id
			deliveryID = &id
			tag = d.Tag
			v := d.locallySettled
			settled = &v
		}
		if err := s.conn.transport.writeFrame(frames.Frame{
			Channel: s.localChannel,
			Body: &frames.Transfer{
				Handle:      l.localHandle,
				DeliveryID:  deliveryID,
				DeliveryTag: tag,
				Settled:     settled,
				More:        more,
			},
			Payload: rest[:n],
		}); err != nil {
			return
		}
		d.sendOffset += n
		s.nextOutgoingID++
		s.remoteIncomingWindow--
		if more {
			continue
		}
		d.transmitted = true
		l.deliveryCount++
		l.LinkCredit--
		s.OutgoingDeliveries++
		l.sending = nil
	}
}

// tpworkDelivery reports a delivery's local disposition, if any, and
// drops it once this side has settled it (and, for a sender, it has
// been transmitted; see fullySettled). Driven purely off the
// connection's work list, so it applies identically to sender and
// receiver deliveries — the only role-specific bit is which half of
// the DISPOSITION's role field gets written (handled by postDisp/
// writeDispositionFrame off d.link.Role).
func tpworkDelivery(d *Delivery) {
	if !d.hasID {
		// sender delivery still sitting in its link's pending queue,
		// not yet assigned an id by tpworkSender: nothing to report.
		return
	}
	if d.LocalState != nil || d.locallySettled {
		postDisp(d)
	}
	if d.fullySettled() {
		fullSettle(d)
	}
}

// flushAllDisp is phase 6: flush every session's batched disposition,
// whether or not this pass's tpwork extended it further.
func (c *Connection) flushAllDisp() {
	for _, s := range c.sessionsByChannel {
		flushDisp(s)
	}
}

// linkTeardown is phase 8: emit DETACH for locally-closed links, unless
// a sender still has unflushed queued sends and the peer hasn't torn
// down first (§4.4's pointful-buffering rule).
func (c *Connection) linkTeardown() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		l, ok := e.Value.(*Link)
		if !ok || l.Local != StateClosed || !l.hasLocalHandle || !l.session.beginSent || l.detachSent {
			return
		}
		if l.Role == encoding.RoleSender && l.hasOutboundBacklog() && l.Remote != StateClosed {
			return
		}
		c.transport.writeFrame(frames.Frame{Channel: l.session.localChannel, Body: &frames.Detach{
			Handle: l.localHandle,
			Closed: true,
			Error:  toWireCondition(&l.LocalCondition),
		}})
		l.detachSent = true
		if l.Remote == StateClosed {
			l.removeFromSession()
		}
	})
}

// ssnTeardown is phase 9: emit END, deferred while any sender on the
// session still has live, unflushed queued sends.
func (c *Connection) ssnTeardown() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		s, ok := e.Value.(*Session)
		if !ok || s.Local != StateClosed || !s.hasLocalChannel || s.endSent {
			return
		}
		if sessionHasLiveSenderBacklog(s) {
			return
		}
		c.transport.writeFrame(frames.Frame{Channel: s.localChannel, Body: &frames.End{
			Error: toWireCondition(&s.LocalCondition),
		}})
		s.endSent = true
		if s.Remote == StateClosed {
			c.removeSession(s)
		}
	})
}

// connTeardown is phase 10: emit CLOSE, deferred by the same buffering
// rule applied connection-wide.
func (c *Connection) connTeardown() {
	if c.Local != StateClosed || c.closeSent {
		return
	}
	for _, s := range c.sessionsByChannel {
		if sessionHasLiveSenderBacklog(s) {
			return
		}
	}
	c.transport.writeFrame(frames.Frame{Channel: 0, Body: &frames.Close{
		Error: toWireCondition(&c.LocalCondition),
	}})
	c.closeSent = true
	if c.Remote == StateClosed {
		c.transport.Closed = true
	}
}

func sessionHasLiveSenderBacklog(s *Session) bool {
	for _, l := range s.linksByHandle {
		if l.Role == encoding.RoleSender && l.hasOutboundBacklog() && l.Remote != StateClosed {
			return true
		}
	}
	return false
}

// sweepModified drops any endpoint from the modified list that has
// nothing further for any phase to act on, so a quiescent attached link
// or session isn't rescanned on every future Process call.
func (c *Connection) sweepModified() {
	c.modified.Each(func(e *list.Element[Modifiable]) {
		switch v := e.Value.(type) {
		case *Session:
			if sessionQuiescent(v) {
				c.modified.Remove(e)
				v.modifiedElem = nil
			}
		case *Link:
			if linkQuiescent(v) {
				c.modified.Remove(e)
				v.modifiedElem = nil
			}
		}
	})
}

func sessionQuiescent(s *Session) bool {
	if !s.beginSent || s.windowFlowPending {
		return false
	}
	if s.Local == StateClosed && !s.endSent {
		return false
	}
	return true
}

func linkQuiescent(l *Link) bool {
	if !l.attachSent || l.pendingFlow {
		return false
	}
	if l.Drain && l.Role == encoding.RoleSender {
		return false
	}
	if l.Local == StateClosed && !l.detachSent {
		return false
	}
	return true
}

// fullSettle removes a delivery from its session's delivery map and its
// link's unsettled set once this side has let go of it (see
// fullySettled), matching pn_full_settle. It also drops the delivery from the connection's work
// list, since nothing further will ever need to be reported for it.
func fullSettle(d *Delivery) {
	s := d.link.session
	if d.hasID {
		if d.link.Role == encoding.RoleSender {
			s.outgoing.remove(d.id)
		} else {
			s.incoming.remove(d.id)
		}
		d.hasID = false
	}
	delete(d.link.unsettled, string(d.Tag))
	if d.workElem != nil {
		s.conn.work.Remove(d.workElem)
		d.workElem = nil
	}
}

func isBatchable(s DeliveryState) bool {
	switch s.(type) {
	case nil, *Accepted, *Released:
		return true
	default:
		return false
	}
}

// postDisp reports a delivery's local disposition, batching it into the
// session's pending run when the outcome is batchable and contiguous
// with what's already buffered (§4.6).
func postDisp(d *Delivery) {
	s := d.link.session
	if d.LocalState == nil && !d.locallySettled {
		return
	}
	if !isBatchable(d.LocalState) {
		flushDisp(s)
		writeDispositionFrame(s, d.link.Role, d.id, d.id, d.locallySettled, d.LocalState)
		return
	}
	if s.dispActive && s.dispRole == d.link.Role && s.dispSettled == d.locallySettled &&
		stateEqual(s.dispState, d.LocalState) && (d.id+1 == s.dispFirst || d.id == s.dispLast+1) {
		if d.id < s.dispFirst {
			s.dispFirst = d.id
		} else {
			s.dispLast = d.id
		}
		return
	}
	flushDisp(s)
	s.dispActive = true
	s.dispRole = d.link.Role
	s.dispSettled = d.locallySettled
	s.dispState = d.LocalState
	s.dispFirst = d.id
	s.dispLast = d.id
}

func flushDisp(s *Session) {
	if !s.dispActive {
		return
	}
	writeDispositionFrame(s, s.dispRole, s.dispFirst, s.dispLast, s.dispSettled, s.dispState)
	s.dispActive = false
	s.dispState = nil
}

func writeDispositionFrame(s *Session, role encoding.Role, first, last uint32, settled bool, state DeliveryState) {
	var lastPtr *uint32
	if last != first {
		l := last
		lastPtr = &l
	}
	s.conn.transport.writeFrame(frames.Frame{Channel: s.localChannel, Body: &frames.Disposition{
		Role:    role,
		First:   first,
		Last:    lastPtr,
		Settled: settled,
		State:   toFrameState(state),
	}})
}
