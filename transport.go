package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/yumeiwang/amqp-engine/internal/buffer"
	"github.com/yumeiwang/amqp-engine/internal/debug"
	"github.com/yumeiwang/amqp-engine/internal/frames"
)

// Transport is the engine's only point of contact with actual bytes: it
// owns the input/output buffers, the protocol header matcher and the
// frame boundary scanner, and hands decoded frames to dispatch.go. It
// performs no I/O of its own — the caller is responsible for reading
// from and writing to whatever socket or pipe it likes and pumping the
// bytes through Read/Pending/Pop. Grounded on proton-c's pn_transport_t,
// folded together with pn_connection_t's bind/unbind (C10) since this
// engine only ever supports one transport per connection at a time.
type Transport struct {
	conn *Connection

	Layers []IoLayer

	header     headerMatcher
	headerSent bool

	in  buffer.Buffer
	out buffer.Buffer

	Closed bool
	Err    error

	LastInput  time.Time
	LastOutput time.Time
}

// Bind attaches a transport to conn. Grounded on pn_transport_bind.
func Bind(conn *Connection) *Transport {
	t := &Transport{conn: conn, Layers: []IoLayer{passthroughLayer{}}}
	conn.transport = t
	return t
}

// Unbind detaches the transport from its connection; the connection's
// endpoint state, sessions, links and pending work all survive and can
// later be bound to a fresh Transport. Grounded on pn_transport_unbind.
func (t *Transport) Unbind() {
	if t.conn != nil {
		t.conn.transport = nil
	}
	t.conn = nil
}

// Read feeds bytes arriving from the network into the engine: it
// matches the protocol header, then parses and dispatches as many
// complete frames as p contains. It always reports len(p) consumed
// (the caller never needs to retain a partial chunk); a framing or
// protocol error is recorded on Err, returned, and Closed is set.
func (t *Transport) Read(p []byte) (int, error) {
	if t.Closed {
		return 0, errors.New("amqp: transport closed")
	}
	total := len(p)
	t.LastInput = time.Now()

	if !t.header.complete() {
		consumed, complete := t.header.feed(p)
		p = p[consumed:]
		if !complete {
			return total, nil
		}
		if !t.header.valid() {
			t.fail(newProtocolError(ErrCondFramingError, "invalid protocol header"))
			return total, t.Err
		}
	}

	rest, err := runLayers(t.Layers, p)
	if err != nil {
		t.fail(err)
		return total, t.Err
	}
	if len(rest) > 0 {
		if _, err := t.in.Write(rest); err != nil {
			return total, err
		}
	}

	for {
		size, ok := frames.FrameSize(t.in.Bytes())
		if !ok || t.in.Len() < int(size) {
			break
		}
		raw, _ := t.in.Next(int(size))
		fr, err := frames.ReadFrame(raw)
		if err != nil {
			t.fail(newProtocolError(ErrCondFramingError, "%v", err))
			return total, t.Err
		}
		if err := dispatch(t.conn, fr); err != nil {
			t.fail(err)
			return total, t.Err
		}
	}
	t.in.Compact()
	return total, nil
}

// Pending returns bytes ready to be written to the network. Call
// Process (in process.go) first to give the engine a chance to fill it.
func (t *Transport) Pending() []byte { return t.out.Bytes() }

// Pop discards the first n bytes of Pending, once the caller has
// written them to the network.
func (t *Transport) Pop(n int) {
	t.out.Skip(n)
	t.out.Compact()
	t.LastOutput = time.Now()
}

// fail records a fatal transport/protocol error. A ProtocolError also
// drives the connection's own local state to CLOSED with the violated
// condition, so Process (process.go) still emits a CLOSE frame before
// the transport is done — matching §7's "drains its output, then
// returns EOS" recovery path.
func (t *Transport) fail(err error) {
	if t.Err == nil {
		t.Err = err
	}
	debug.Assert(context.Background(), false, slog.String("transport error", err.Error()))
	if pe, ok := err.(*ProtocolError); ok && t.conn != nil && t.conn.Local != StateClosed {
		t.conn.Close(&Condition{Name: string(pe.Condition), Description: pe.Message})
	}
	t.Closed = true
}

// writeHeader emits the protocol header exactly once, before the first
// frame this side sends.
func (t *Transport) writeHeader() {
	if t.headerSent {
		return
	}
	t.out.Write(protocolHeader[:])
	t.headerSent = true
}

func (t *Transport) writeFrame(fr frames.Frame) error {
	t.writeHeader()
	return frames.WriteFrame(&t.out, fr)
}
