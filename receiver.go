package amqp

import "github.com/yumeiwang/amqp-engine/internal/encoding"

// Receiver is the receiving half of an attached link.
type Receiver struct {
	*Link
}

// NewReceiver creates a receiver link on s with the given name and
// source, queuing an ATTACH frame for the next Process() call.
func NewReceiver(s *Session, name string, source *Terminus) (*Receiver, error) {
	l := newLink(s, name, encoding.RoleReceiver)
	l.Source = source
	if err := l.attach(); err != nil {
		return nil, err
	}
	return &Receiver{Link: l}, nil
}

// Receive pops the next fully-assembled delivery, or returns ok=false
// if none is ready yet. It never blocks: a caller driving the engine
// from a single event loop calls this after Process()/dispatch report
// new incoming data.
func (r *Receiver) Receive() (d *Delivery, ok bool) {
	got := r.ready.Dequeue()
	if got == nil {
		return nil, false
	}
	return *got, true
}

// Unsettled returns the number of deliveries received on this link
// this side has not yet settled.
func (r *Receiver) Unsettled() int { return len(r.unsettled) }
