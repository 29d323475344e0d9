package amqp

import "fmt"

// ErrCond is an AMQP defined error condition name. See
// http://docs.oasis-open.org/amqp/core/v1.0/os/amqp-core-transport-v1.0-os.html#type-amqp-error
// for their meaning.
type ErrCond string

// Error Conditions
const (
	// AMQP Errors
	ErrCondInternalError         ErrCond = "amqp:internal-error"
	ErrCondNotFound              ErrCond = "amqp:not-found"
	ErrCondUnauthorizedAccess    ErrCond = "amqp:unauthorized-access"
	ErrCondDecodeError           ErrCond = "amqp:decode-error"
	ErrCondResourceLimitExceeded ErrCond = "amqp:resource-limit-exceeded"
	ErrCondNotAllowed            ErrCond = "amqp:not-allowed"
	ErrCondInvalidField          ErrCond = "amqp:invalid-field"
	ErrCondNotImplemented        ErrCond = "amqp:not-implemented"
	ErrCondResourceLocked        ErrCond = "amqp:resource-locked"
	ErrCondPreconditionFailed    ErrCond = "amqp:precondition-failed"
	ErrCondResourceDeleted       ErrCond = "amqp:resource-deleted"
	ErrCondIllegalState          ErrCond = "amqp:illegal-state"
	ErrCondFrameSizeTooSmall     ErrCond = "amqp:frame-size-too-small"

	// Connection Errors
	ErrCondConnectionForced   ErrCond = "amqp:connection:forced"
	ErrCondFramingError       ErrCond = "amqp:connection:framing-error"
	ErrCondConnectionRedirect ErrCond = "amqp:connection:redirect"

	// Session Errors
	ErrCondWindowViolation  ErrCond = "amqp:session:window-violation"
	ErrCondErrantLink       ErrCond = "amqp:session:errant-link"
	ErrCondHandleInUse      ErrCond = "amqp:session:handle-in-use"
	ErrCondUnattachedHandle ErrCond = "amqp:session:unattached-handle"

	// Link Errors
	ErrCondDetachForced          ErrCond = "amqp:link:detach-forced"
	ErrCondTransferLimitExceeded ErrCond = "amqp:link:transfer-limit-exceeded"
	ErrCondMessageSizeExceeded   ErrCond = "amqp:link:message-size-exceeded"
	ErrCondLinkRedirect          ErrCond = "amqp:link:redirect"
	ErrCondStolen                ErrCond = "amqp:link:stolen"
)

// StateError reports an API call attempted against an endpoint in a
// state that does not permit it. Grounded on proton-c's PN_STATE_ERR
// returns. No function in this package currently returns it; Link.Flow,
// for one, applies credit without checking the link's state.
type StateError struct {
	Op  string
	Cur State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("amqp: %s not permitted in current state (%s)", e.Op, e.Cur)
}

// ProtocolError is raised by dispatch when a peer's frame violates a
// session or link invariant this engine enforces (window/credit
// bookkeeping, unattached handle references, sequencing). Dispatch
// reports it by setting it as the connection's local Condition and
// closing the transport, matching proton-c's close-on-protocol-violation
// behavior.
type ProtocolError struct {
	Condition ErrCond
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("amqp: %s: %s", e.Condition, e.Message)
}

func newProtocolError(condition ErrCond, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Condition: condition, Message: fmt.Sprintf(format, args...)}
}

// DetachError describes a link whose remote end reported an error on
// DETACH. No function in this package currently returns it; the peer's
// error is recorded on the link's RemoteCondition instead.
type DetachError struct {
	RemoteError *Condition
}

func (e *DetachError) Error() string {
	return fmt.Sprintf("amqp: link detached, reason: %+v", e.RemoteError)
}
