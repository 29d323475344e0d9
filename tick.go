package amqp

import (
	"time"

	"github.com/yumeiwang/amqp-engine/internal/frames"
)

// idleGraceFactor is how much slack this engine gives a peer beyond its
// own declared idle-timeout before treating it as dead, matching
// proton-c's pn_transport_tick (which applies a similar fudge factor
// rather than closing at the exact nominal deadline a clock skew or a
// scheduler hiccup could spuriously trip).
const idleGraceFactor = 9 // applied as a /4, i.e. 2.25x

// Tick advances idle-timeout and keepalive bookkeeping to now, emitting
// an empty (heartbeat) frame if this side's own advertised idle-timeout
// is about to lapse, and closing the connection locally with
// amqp:resource-limit-exceeded if the peer's advertised idle-timeout
// has lapsed without any input (§4.8, §8 scenario S5). It returns the
// next absolute time the caller should call Tick again, or the zero
// Time if idle-timeout isn't in play on either side. Grounded on
// proton-c's pn_transport_tick; like the rest of this engine, it
// performs no I/O of its own — the caller still drains Pending()/Pop()
// and feeds bytes via Read().
func (c *Connection) Tick(now time.Time) time.Time {
	t := c.transport
	if t == nil || !c.openSent {
		return time.Time{}
	}

	var deadline time.Time

	if c.IdleTimeout > 0 {
		last := t.LastOutput
		if last.IsZero() {
			last = now
		}
		keepaliveBy := last.Add(c.IdleTimeout / 2)
		if !now.Before(keepaliveBy) {
			t.writeFrame(frames.Frame{Channel: 0})
			keepaliveBy = now.Add(c.IdleTimeout / 2)
		}
		deadline = earliest(deadline, keepaliveBy)
	}

	if c.RemoteIdleTimeout > 0 && c.Remote != StateClosed {
		last := t.LastInput
		if last.IsZero() {
			last = now
		}
		expiry := last.Add(c.RemoteIdleTimeout * idleGraceFactor / 4)
		if !now.Before(expiry) {
			c.Close(&Condition{
				Name:        string(ErrCondResourceLimitExceeded),
				Description: "no frame received within the peer's advertised idle-timeout",
			})
			return time.Time{}
		}
		deadline = earliest(deadline, expiry)
	}

	return deadline
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}
