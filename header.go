package amqp

// protocolHeader is the fixed 8-byte AMQP 1.0 preamble every connection
// exchanges before any frame (AMQP 1.0 §2.2): "AMQP" + protocol-id(0) +
// major(1) + minor(0) + revision(0).
var protocolHeader = [8]byte{'A', 'M', 'Q', 'P', 0, 1, 0, 0}

// headerMatcher accumulates the first 8 bytes of an incoming stream and
// validates them against protocolHeader. Grounded on proton-c's
// pni_protocol_header_match state machine, trimmed to the single
// protocol this engine speaks (no SASL/TLS header negotiation).
type headerMatcher struct {
	buf [8]byte
	n   int
}

func (h *headerMatcher) complete() bool { return h.n == 8 }

// feed consumes bytes from p until either the header is complete or p
// is exhausted, returning how many bytes it took.
func (h *headerMatcher) feed(p []byte) (consumed int, complete bool) {
	for consumed < len(p) && h.n < 8 {
		h.buf[h.n] = p[consumed]
		h.n++
		consumed++
	}
	return consumed, h.complete()
}

func (h *headerMatcher) valid() bool {
	return h.buf == protocolHeader
}
