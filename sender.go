package amqp

import "github.com/yumeiwang/amqp-engine/internal/encoding"

// Sender is the sending half of an attached link.
type Sender struct {
	*Link
}

// NewSender creates a sender link on s with the given name and target,
// queuing an ATTACH frame for the next Process() call.
func NewSender(s *Session, name string, target *Terminus) (*Sender, error) {
	l := newLink(s, name, encoding.RoleSender)
	l.Target = target
	if err := l.attach(); err != nil {
		return nil, err
	}
	return &Sender{Link: l}, nil
}

// Send enqueues a delivery for transmission. It does not block on
// anything arriving from the peer: Process() assigns the delivery-id
// and emits the TRANSFER frame(s) once link credit and the session's
// outgoing window allow it, chunking payload across frames no larger
// than the connection's negotiated max-frame-size (the supplemented
// chunking behavior described alongside the outbound pipeline).
func (s *Sender) Send(tag []byte, payload []byte, settled bool) *Delivery {
	d := &Delivery{
		link:           s.Link,
		Tag:            append([]byte(nil), tag...),
		Buf:            payload,
		locallySettled: settled,
	}
	s.unsettled[string(d.Tag)] = d
	s.pending.Enqueue(d)
	s.touch()
	return d
}

// Unsettled returns the number of deliveries sent on this link that
// this side has not yet settled.
func (s *Sender) Unsettled() int { return len(s.unsettled) }
