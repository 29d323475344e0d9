package amqp

import "github.com/yumeiwang/amqp-engine/internal/list"

// State is one half (local or remote) of an endpoint's lifecycle.
// Connections, sessions and links each carry two independent State
// values; the pair only needs to agree at the moments OPEN/CLOSE (or
// BEGIN/END, ATTACH/DETACH) are actually exchanged. Grounded on
// proton-c's PN_LOCAL_*/PN_REMOTE_* state bits.
type State uint8

const (
	StateUninit State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Endpoint is the state shared by Connection, Session and Link: the
// local/remote lifecycle halves and the local/remote error conditions
// attached to them. It is embedded, not referenced through an
// interface, since nothing in this engine needs to treat connections,
// sessions and links polymorphically as endpoints — only the modified
// bookkeeping below is shared behavior.
type Endpoint struct {
	Local  State
	Remote State

	LocalCondition  Condition
	RemoteCondition Condition

	// modifiedElem is non-nil while this endpoint sits on the
	// connection's modified list (C1): it has local state — a
	// lifecycle half-transition, a freshly-set condition, or (for
	// links) a credit/flow change — a frame hasn't been emitted for
	// yet. process.go removes it from the list once that frame goes
	// out.
	modifiedElem *list.Element[Modifiable]
}

// needsUpdate reports whether this endpoint is currently queued for a
// frame. Satisfies Modifiable via promotion from Session/Link.
func (e *Endpoint) needsUpdate() bool {
	return e.modifiedElem != nil
}

// Modifiable is implemented by the endpoint types (Session, Link) that
// can be queued on the connection's modified list (internal/list,
// genuinely O(1) membership test/removal since a link can flip back
// and forth between modified and quiescent many times across a single
// connection's lifetime). Grounded on proton-c's modified doubly-linked
// list threaded through pn_endpoint_t.
type Modifiable interface {
	needsUpdate() bool
}
