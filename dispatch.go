package amqp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yumeiwang/amqp-engine/internal/debug"
	"github.com/yumeiwang/amqp-engine/internal/encoding"
	"github.com/yumeiwang/amqp-engine/internal/frames"
)

// dispatch applies one decoded frame's effect to conn's state. It is
// the engine's only entry point for inbound data (besides the protocol
// header, matched in transport.go) — grounded on proton-c's
// pn_dispatcher's nine pn_do_* handlers (engine.c).
func dispatch(conn *Connection, fr frames.Frame) error {
	debug.Log(context.Background(), slog.LevelDebug, "dispatch",
		slog.Uint64("channel", uint64(fr.Channel)), slog.String("body", fmt.Sprintf("%T", fr.Body)))
	switch body := fr.Body.(type) {
	case nil:
		return nil // heartbeat: no-op, just resets the idle clock (tick.go)
	case *frames.Open:
		return dispatchOpen(conn, body)
	case *frames.Begin:
		return dispatchBegin(conn, fr.Channel, body)
	case *frames.Attach:
		return dispatchAttach(conn, fr.Channel, body)
	case *frames.Flow:
		return dispatchFlow(conn, fr.Channel, body)
	case *frames.Transfer:
		return dispatchTransfer(conn, fr.Channel, body, fr.Payload)
	case *frames.Disposition:
		return dispatchDisposition(conn, fr.Channel, body)
	case *frames.Detach:
		return dispatchDetach(conn, fr.Channel, body)
	case *frames.End:
		return dispatchEnd(conn, fr.Channel, body)
	case *frames.Close:
		return dispatchClose(conn, body)
	default:
		return newProtocolError(ErrCondNotImplemented, "unhandled performative %T", body)
	}
}

func sessionByChannel(conn *Connection, ch uint16) (*Session, bool) {
	s, ok := conn.sessionsByRemoteChannel[ch]
	return s, ok
}

func dispatchOpen(conn *Connection, o *frames.Open) error {
	if conn.Remote != StateUninit {
		return newProtocolError(ErrCondIllegalState, "duplicate OPEN")
	}
	conn.RemoteContainerID = o.ContainerID
	conn.RemoteHostname = o.Hostname
	conn.RemoteMaxFrameSize = o.MaxFrameSize
	conn.RemoteChannelMax = o.ChannelMax
	conn.RemoteIdleTimeout = o.IdleTimeout
	conn.Remote = StateActive
	return nil
}

func dispatchBegin(conn *Connection, ch uint16, b *frames.Begin) error {
	var s *Session
	if b.RemoteChannel != nil {
		local, ok := conn.sessionsByChannel[*b.RemoteChannel]
		if !ok {
			return newProtocolError(ErrCondNotAllowed, "BEGIN replies to unknown channel %d", *b.RemoteChannel)
		}
		s = local
	} else {
		s = conn.NewSession()
		s.Local = StateActive
		s.touch() // peer-initiated: our own BEGIN reply is now due
	}
	s.remoteChannel = ch
	s.hasRemoteChannel = true
	conn.sessionsByRemoteChannel[ch] = s
	s.nextIncomingID = b.NextOutgoingID
	s.hasNextIncomingID = true
	s.remoteIncomingWindow = b.IncomingWindow
	s.remoteOutgoingWindow = b.OutgoingWindow
	s.Remote = StateActive
	return nil
}

func dispatchAttach(conn *Connection, ch uint16, a *frames.Attach) error {
	s, ok := sessionByChannel(conn, ch)
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "ATTACH on unknown channel %d", ch)
	}
	l, ok := s.linksByName(a.Name)
	if !ok {
		// Peer-initiated: create the complementary link so the
		// application can discover and respond to it.
		role := encoding.RoleSender
		if a.Role == encoding.RoleSender {
			role = encoding.RoleReceiver
		}
		l = newLink(s, a.Name, role)
		h, allocated := s.allocateHandle()
		if !allocated {
			return newProtocolError(ErrCondResourceLimitExceeded, "no free handles for incoming ATTACH %q", a.Name)
		}
		l.localHandle = h
		l.hasLocalHandle = true
		s.linksByHandle[h] = l
		if a.InitialDeliveryCount != nil {
			l.deliveryCount = *a.InitialDeliveryCount
		}
		s.incomingLinks.Enqueue(l)
	}
	l.remoteHandle = a.Handle
	s.linksByRemoteHandle[a.Handle] = l
	l.SenderSettleMode = a.SenderSettleMode
	l.ReceiverSettleMode = a.ReceiverSettleMode
	if a.Source != nil {
		l.Source = terminusFromSourceFrame(a.Source)
	}
	if a.Target != nil {
		l.Target = terminusFromTargetFrame(a.Target)
	}
	l.Remote = StateActive
	return nil
}

func applyFlowToLink(l *Link, f *frames.Flow) {
	if f.Available != nil {
		l.Available = *f.Available
	}
	if f.Drain {
		l.Drain = true
	}
	if l.Role == encoding.RoleSender {
		if f.DeliveryCount != nil {
			lc := uint32(0)
			if f.LinkCredit != nil {
				lc = *f.LinkCredit
			}
			l.LinkCredit = *f.DeliveryCount + lc - l.deliveryCount
		} else if f.LinkCredit != nil {
			l.LinkCredit = *f.LinkCredit
		}
		return
	}
	// Receiver link: the peer is telling us how far it has actually
	// gotten (its own delivery-count), which only ever catches up to
	// ours when it has consumed credit we granted — most visibly via a
	// drain reply that jumps straight to the credit we handed out.
	if f.DeliveryCount == nil {
		return
	}
	delta := int64(*f.DeliveryCount) - int64(l.deliveryCount)
	if delta <= 0 {
		return
	}
	if delta > int64(l.LinkCredit) {
		delta = int64(l.LinkCredit)
	}
	l.deliveryCount = *f.DeliveryCount
	l.LinkCredit -= uint32(delta)
	if l.LinkCredit == 0 {
		l.Drain = false
	}
}

func dispatchFlow(conn *Connection, ch uint16, f *frames.Flow) error {
	s, ok := sessionByChannel(conn, ch)
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "FLOW on unknown channel %d", ch)
	}
	if f.NextIncomingID != nil {
		s.remoteIncomingWindow = *f.NextIncomingID + f.IncomingWindow - s.nextOutgoingID
	} else {
		s.remoteIncomingWindow = f.IncomingWindow
	}
	s.remoteOutgoingWindow = f.OutgoingWindow

	if f.Handle == nil {
		return nil
	}
	l, ok := s.linksByRemoteHandle[*f.Handle]
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "FLOW for unattached handle %d", *f.Handle)
	}
	applyFlowToLink(l, f)
	if l.pending.Len() > 0 || l.Drain {
		l.touch()
	}
	return nil
}

func dispatchTransfer(conn *Connection, ch uint16, t *frames.Transfer, payload []byte) error {
	s, ok := sessionByChannel(conn, ch)
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "TRANSFER on unknown channel %d", ch)
	}
	if !s.windowOK() {
		return newProtocolError(ErrCondWindowViolation, "incoming window exceeded")
	}
	l, ok := s.linksByRemoteHandle[t.Handle]
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "TRANSFER for unattached handle %d", t.Handle)
	}

	d := l.current
	if t.DeliveryID != nil {
		d = &Delivery{link: l, Tag: t.DeliveryTag, id: *t.DeliveryID, hasID: true}
		s.incoming.put(d.id, d)
		l.unsettled[string(d.Tag)] = d
		l.current = d
		s.IncomingDeliveries++
	}
	if d == nil {
		return newProtocolError(ErrCondIllegalState, "continuation TRANSFER with no current delivery")
	}

	if t.Settled != nil && *t.Settled {
		d.remotelySettled = true
	}
	if t.State != nil {
		d.RemoteState = fromFrameState(t.State)
	}

	s.IncomingWindow--
	s.nextIncomingID++
	if s.IncomingWindow == 0 && l.hasLocalHandle {
		s.IncomingWindow = defaultWindow
		s.windowFlowPending = true
		s.touch()
	}

	if t.Aborted {
		l.current = nil
		delete(l.unsettled, string(d.Tag))
		s.incoming.remove(d.id)
		return nil
	}

	d.Buf = append(d.Buf, payload...)
	if t.More {
		return nil
	}

	d.Complete = true
	l.current = nil
	l.deliveryCount++
	if l.LinkCredit > 0 {
		l.LinkCredit--
	}
	l.ready.Enqueue(d)
	return nil
}

func dispatchDisposition(conn *Connection, ch uint16, disp *frames.Disposition) error {
	s, ok := sessionByChannel(conn, ch)
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "DISPOSITION on unknown channel %d", ch)
	}
	last := disp.First
	if disp.Last != nil {
		last = *disp.Last
	}
	dm := s.outgoing
	if disp.Role == encoding.RoleSender {
		dm = s.incoming
	}
	state := fromFrameState(disp.State)
	dm.each(disp.First, last, func(d *Delivery) {
		if disp.State != nil {
			d.RemoteState = state
		}
		if disp.Settled {
			d.remotelySettled = true
		}
		if d.fullySettled() {
			fullSettle(d)
		}
	})
	return nil
}

func dispatchDetach(conn *Connection, ch uint16, det *frames.Detach) error {
	s, ok := sessionByChannel(conn, ch)
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "DETACH on unknown channel %d", ch)
	}
	l, ok := s.linksByRemoteHandle[det.Handle]
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "DETACH for unattached handle %d", det.Handle)
	}
	if det.Error != nil {
		fromWireCondition(det.Error).copyInto(&l.RemoteCondition)
	}
	l.Remote = StateClosed
	if l.Local == StateClosed {
		l.touch() // our own DETACH reply, if not already queued, is now due
	}
	return nil
}

func dispatchEnd(conn *Connection, ch uint16, e *frames.End) error {
	s, ok := sessionByChannel(conn, ch)
	if !ok {
		return newProtocolError(ErrCondUnattachedHandle, "END on unknown channel %d", ch)
	}
	if e.Error != nil {
		fromWireCondition(e.Error).copyInto(&s.RemoteCondition)
	}
	s.Remote = StateClosed
	if s.Local == StateClosed {
		s.touch()
	}
	return nil
}

func dispatchClose(conn *Connection, c *frames.Close) error {
	if c.Error != nil {
		fromWireCondition(c.Error).copyInto(&conn.RemoteCondition)
	}
	conn.Remote = StateClosed
	return nil
}
